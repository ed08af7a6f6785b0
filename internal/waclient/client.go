// Package waclient narrows the whatsmeow API surface the Supervisor needs
// down to a small interface, so supervisor logic can be tested against a
// fake instead of a live WhatsApp socket.
package waclient

import "context"

// DisconnectReason classifies a connection-close event (spec §4.C). Only
// LoggedOut and RateLimited get special handling; everything else is
// Other and goes through the normal backoff path.
type DisconnectReason int

const (
	DisconnectOther DisconnectReason = iota
	DisconnectLoggedOut
	DisconnectRateLimited
)

// InboundMessage is the subset of a WhatsApp message the gateway persists
// and forwards. MessageType is "text" unless the payload carries media.
type InboundMessage struct {
	MessageID      string
	FromJID        string
	ToJID          string
	PushName       string
	MessageType    string
	Text           string
	RawContent     []byte // structured blob, stored as Message.Content
	IsGroupMessage bool
	GroupJID       string
	Timestamp      int64 // unix seconds
}

// GroupUpdate is a best-effort group-metadata change notification.
type GroupUpdate struct {
	GroupJID         string
	Name             string
	Description      string
	ParticipantCount int
	IsAdmin          bool
}

// EventHandler receives every event a Client emits, dispatched in arrival
// order and never concurrently (spec §5). Only the methods relevant to the
// event fire; the rest are no-ops for that call.
type EventHandler interface {
	OnQR(code string)
	OnCredentialsUpdated(blob []byte)
	OnConnected(phoneNumber string)
	OnDisconnected(reason DisconnectReason)
	OnMessageBatch(batchType string, messages []InboundMessage)
	OnGroupUpdate(update GroupUpdate)
}

// Client is the narrow surface Supervisor drives. One Client maps to one
// whatsapp_sessions row.
type Client interface {
	// SetEventHandler installs the single event sink for this client.
	// Must be called before Connect.
	SetEventHandler(h EventHandler)

	// Connect starts (or resumes) the WhatsApp-Web connection. If no valid
	// auth state is present, a QR pairing flow begins and OnQR fires
	// repeatedly until paired or the context is canceled.
	Connect(ctx context.Context) error

	// Disconnect closes the socket without logging out; the auth state
	// remains valid for a future Connect.
	Disconnect()

	// Logout invalidates the remote session and clears local credentials.
	// Failures are expected when the socket is already dead and should be
	// swallowed by the caller (spec §4.C Destroy).
	Logout(ctx context.Context) error

	// IsConnected reports the current socket state.
	IsConnected() bool

	// PhoneNumber returns the connected number, or "" if not yet known.
	PhoneNumber() string

	// SendText sends a plain-text message to jid and returns the
	// WhatsApp-assigned message id.
	SendText(ctx context.Context, jid, text string) (messageID string, err error)

	// Group operations. All require IsConnected() per spec §4.C.
	CreateGroup(ctx context.Context, name string, participantJIDs []string) (groupJID string, err error)
	AddParticipants(ctx context.Context, groupJID string, participantJIDs []string) error
	RemoveParticipant(ctx context.Context, groupJID, participantJID string) error
	PromoteParticipant(ctx context.Context, groupJID, participantJID string) error
	DemoteParticipant(ctx context.Context, groupJID, participantJID string) error
	LeaveGroup(ctx context.Context, groupJID string) error
	GroupMetadata(ctx context.Context, groupJID string) (GroupUpdate, error)
	SetGroupSetting(ctx context.Context, groupJID, setting, value string) error
	BroadcastToMembers(ctx context.Context, groupJID, text string) (messageID string, err error)
}
