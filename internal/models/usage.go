package models

import (
	"time"

	"github.com/google/uuid"
)

// UsageRecord is a per-org, per-calendar-month counter, upserted on every
// message persist and API call (spec §3, §4.I). Unique on
// (OrgID, PeriodStart).
type UsageRecord struct {
	ID               uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OrgID            uuid.UUID `gorm:"type:uuid;not null;index:idx_usage_org_period,unique"`
	PeriodStart      time.Time `gorm:"not null;index:idx_usage_org_period,unique"` // first day of the calendar month
	MessagesSent     int64     `gorm:"not null;default:0"`
	MessagesReceived int64     `gorm:"not null;default:0"`
	ActiveSessions   int       `gorm:"not null;default:0"`
	APICalls         int64     `gorm:"not null;default:0"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (UsageRecord) TableName() string { return "usage_records" }

// PeriodStart truncates t to the first day of its calendar month, UTC.
func PeriodStart(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)
}
