package models

import (
	"time"

	"github.com/google/uuid"
)

type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

type MessageStatus string

const (
	MessagePending   MessageStatus = "pending"
	MessageSent      MessageStatus = "sent"
	MessageDelivered MessageStatus = "delivered"
	MessageRead      MessageStatus = "read"
	MessageFailed    MessageStatus = "failed"
)

// Message is one inbound or outbound WhatsApp message (spec §3).
// (MessageID, SessionID) is unique; outbound rows are only created after a
// successful send attempt.
type Message struct {
	ID            uuid.UUID     `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	SessionID     string        `gorm:"size:100;not null;index:idx_message_session_external,unique"`
	ExternalID    string        `gorm:"column:message_id;size:100;not null;index:idx_message_session_external,unique"`
	OrgID         uuid.UUID     `gorm:"type:uuid;not null;index"`
	Direction     Direction     `gorm:"size:10;not null"`
	FromNumber    string        `gorm:"size:32"`
	ToNumber      string        `gorm:"size:32"`
	MessageType   string        `gorm:"size:20;not null;default:'text'"`
	Content       []byte        `gorm:"type:jsonb"`
	Status        MessageStatus `gorm:"size:20;not null;default:'pending';index"`
	IsGroupMessage bool         `gorm:"not null;default:false"`
	GroupJID      string        `gorm:"size:100"`
	SyncedToCRM   bool          `gorm:"column:synced_to_crm;not null;default:false"`
	CRMMessageID  string        `gorm:"column:crm_message_id;size:100"`
	Timestamp     time.Time     `gorm:"not null;index"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (Message) TableName() string { return "messages" }

// MessageInput is what callers provide to Store.SaveMessage; the store
// assigns ID/CreatedAt/UpdatedAt.
type MessageInput struct {
	SessionID      string
	ExternalID     string
	OrgID          uuid.UUID
	Direction      Direction
	FromNumber     string
	ToNumber       string
	MessageType    string
	Content        []byte
	Status         MessageStatus
	IsGroupMessage bool
	GroupJID       string
	Timestamp      time.Time
}
