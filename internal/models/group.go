package models

import "time"

// Group is a session-scoped WhatsApp group record (spec §3). Unique on
// (SessionID, GroupJID).
type Group struct {
	ID               uint64 `gorm:"primaryKey;autoIncrement"`
	SessionID        string `gorm:"size:100;not null;index:idx_group_session_jid,unique"`
	GroupJID         string `gorm:"size:100;not null;index:idx_group_session_jid,unique"`
	Name             string `gorm:"size:200"`
	Description      string `gorm:"type:text"`
	ParticipantCount int    `gorm:"not null;default:0"`
	IsAdmin          bool   `gorm:"not null;default:false"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (Group) TableName() string { return "whatsapp_groups" }

// GroupInput is the upsert payload for Store.UpsertGroup.
type GroupInput struct {
	SessionID        string
	GroupJID         string
	Name             string
	Description      string
	ParticipantCount int
	IsAdmin          bool
}
