package models

import (
	"time"

	"github.com/google/uuid"
)

// Tier mirrors config.Tier without importing internal/config, to keep the
// models package dependency-free.
type Tier string

const (
	TierFree       Tier = "free"
	TierStarter    Tier = "starter"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

// Organization is the billing-and-isolation boundary that owns sessions and
// messages (spec §3).
type Organization struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerID   string    `gorm:"size:100;not null;index"`
	Name      string    `gorm:"size:150;not null"`
	Tier      Tier      `gorm:"size:20;not null;default:'free'"`

	MaxAccounts         int    `gorm:"not null;default:0"` // 0 means "use tier default"
	MaxMessagesPerMonth int    `gorm:"not null;default:0"`
	WebhookURL          string `gorm:"size:500"`
	WebhookAPIKey       string `gorm:"size:200"`
	WebhookLocationID   string `gorm:"size:200"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (Organization) TableName() string { return "organizations" }
