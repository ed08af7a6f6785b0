package models

import (
	"time"

	"github.com/google/uuid"
)

type SessionStatus string

const (
	SessionConnecting   SessionStatus = "connecting"
	SessionConnected    SessionStatus = "connected"
	SessionDisconnected SessionStatus = "disconnected"
	SessionError        SessionStatus = "error"
)

// Session is one live (or resumable) WhatsApp-Web client bound to a phone
// number (spec §3). SessionID is opaque, globally unique, and caller
// supplied; AuthState is never exposed outside the process boundary.
type Session struct {
	SessionID  string        `gorm:"primaryKey;size:100"`
	OrgID      uuid.UUID     `gorm:"type:uuid;not null;index"`
	PhoneNumber string       `gorm:"size:32"`
	Status     SessionStatus `gorm:"size:20;not null;default:'connecting';index"`

	AuthState []byte `gorm:"type:bytea"` // tagged-JSON blob, see internal/authstate

	LastQRCode        string `gorm:"type:text"`
	LastSeenAt        time.Time
	ErrorMessage      string `gorm:"type:text"`
	ReconnectAttempts int    `gorm:"not null;default:0"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (Session) TableName() string { return "whatsapp_sessions" }

// RestorableSession is the projection listRestorableSessions returns
// (spec §4.A).
type RestorableSession struct {
	SessionID   string
	OrgID       uuid.UUID
	AuthState   []byte
	PhoneNumber string
}
