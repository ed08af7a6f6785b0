package models

import (
	"time"

	"github.com/google/uuid"
)

type WebhookStatus string

const (
	WebhookPending  WebhookStatus = "pending"
	WebhookSuccess  WebhookStatus = "success"
	WebhookFailed   WebhookStatus = "failed"
	WebhookRetrying WebhookStatus = "retrying"
)

// WebhookLog is an append-only audit row of one delivery attempt
// (spec §3, §4.F).
type WebhookLog struct {
	ID             uuid.UUID     `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OrgID          uuid.UUID     `gorm:"type:uuid;not null;index"`
	MessageID      uuid.UUID     `gorm:"type:uuid;not null;index"`
	URL            string        `gorm:"size:500;not null"`
	Payload        []byte        `gorm:"type:jsonb"`
	HTTPStatus     int           `gorm:"not null;default:0"`
	ResponseBody   string        `gorm:"type:text"`
	RetryCount     int           `gorm:"not null;default:0"`
	Status         WebhookStatus `gorm:"size:20;not null;index"`
	ErrorMessage   string        `gorm:"type:text"`
	Timestamp      time.Time     `gorm:"not null;index"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (WebhookLog) TableName() string { return "webhook_logs" }

// WebhookLogInput is the insert payload for Store.LogWebhook.
type WebhookLogInput struct {
	OrgID        uuid.UUID
	MessageID    uuid.UUID
	URL          string
	Payload      []byte
	HTTPStatus   int
	ResponseBody string
	RetryCount   int
	Status       WebhookStatus
	ErrorMessage string
	Timestamp    time.Time
}
