package waclient

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sync"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"
)

var bareDigits = regexp.MustCompile(`^\d+$`)

// ToJID turns a bare digit string into a contact JID, or passes an
// already-suffixed JID (group or contact) through unchanged (spec §4.C).
func ToJID(raw string) (types.JID, error) {
	if bareDigits.MatchString(raw) {
		return types.NewJID(raw, types.DefaultUserServer), nil
	}
	return types.ParseJID(raw)
}

// WhatsmeowClient adapts a real *whatsmeow.Client to the Client interface.
// Grounded on other_examples/AzielCF-az-wap__init.go's InitWaCLI/handler
// wiring: one whatsmeow.Client per session, device store loaded from a
// per-session sqlite container, events dispatched through a single handler
// func that fans out by concrete event type.
type WhatsmeowClient struct {
	sessionID string
	container *sqlstore.Container
	cli       *whatsmeow.Client

	mu      sync.Mutex
	handler EventHandler
}

// NewWhatsmeowClient opens (or creates) the sqlite device store at dbPath
// and constructs the whatsmeow client bound to its first (only) device.
func NewWhatsmeowClient(ctx context.Context, sessionID, dbPath string, logLevel string) (*WhatsmeowClient, error) {
	dbLog := waLog.Stdout("Store-"+sessionID, logLevel, true)
	container, err := sqlstore.New(ctx, "sqlite3", fmt.Sprintf("file:%s?_foreign_keys=on", dbPath), dbLog)
	if err != nil {
		return nil, fmt.Errorf("waclient: open device store: %w", err)
	}
	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("waclient: get device: %w", err)
	}
	cli := whatsmeow.NewClient(device, waLog.Stdout("Client-"+sessionID, logLevel, true))
	cli.EnableAutoReconnect = false // reconnection is owned by internal/reconnect
	cli.AutoTrustIdentity = true

	w := &WhatsmeowClient{sessionID: sessionID, container: container, cli: cli}
	cli.AddEventHandler(w.dispatch)
	return w, nil
}

func (w *WhatsmeowClient) SetEventHandler(h EventHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handler = h
}

func (w *WhatsmeowClient) handlerOrNil() EventHandler {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.handler
}

func (w *WhatsmeowClient) dispatch(rawEvt interface{}) {
	h := w.handlerOrNil()
	if h == nil {
		return
	}
	switch evt := rawEvt.(type) {
	case *events.Connected:
		h.OnConnected(w.PhoneNumber())
	case *events.LoggedOut:
		h.OnDisconnected(DisconnectLoggedOut)
	case *events.Disconnected:
		h.OnDisconnected(classifyDisconnect(evt))
	case *events.StreamReplaced:
		h.OnDisconnected(DisconnectOther)
	case *events.PairSuccess:
		h.OnCredentialsUpdated(nil) // snapshot taken from disk by the Supervisor
	case *events.Message:
		h.OnMessageBatch("notify", []InboundMessage{toInboundMessage(evt)})
	case *events.GroupInfo:
		h.OnGroupUpdate(GroupUpdate{GroupJID: evt.JID.String()})
	}
}

// classifyDisconnect has no structured reason on *events.Disconnected in
// the whatsmeow API beyond the event type itself; rate-limit detection
// happens at the CLOSE level via stream errors, which whatsmeow surfaces
// as a LoggedOut or a plain Disconnected depending on server response.
// We default to Other and let the Reconnection Controller's backoff
// handle it; true rate-limit signals come from HTTP 429s elsewhere
// (webhook dispatch), not this socket.
func classifyDisconnect(_ *events.Disconnected) DisconnectReason {
	return DisconnectOther
}

func toInboundMessage(evt *events.Message) InboundMessage {
	text := extractText(evt.Message)
	isGroup := evt.Info.Chat.Server == types.GroupServer
	raw, _ := json.Marshal(map[string]string{"text": text, "pushName": evt.Info.PushName})
	msg := InboundMessage{
		MessageID:      evt.Info.ID,
		FromJID:        evt.Info.Sender.String(),
		ToJID:          evt.Info.Chat.String(),
		PushName:       evt.Info.PushName,
		MessageType:    "text",
		Text:           text,
		RawContent:     raw,
		IsGroupMessage: isGroup,
		Timestamp:      evt.Info.Timestamp.Unix(),
	}
	if isGroup {
		msg.GroupJID = evt.Info.Chat.String()
	}
	return msg
}

func extractText(m *waE2E.Message) string {
	if m == nil {
		return ""
	}
	if m.GetConversation() != "" {
		return m.GetConversation()
	}
	if ext := m.GetExtendedTextMessage(); ext != nil {
		return ext.GetText()
	}
	return ""
}

func (w *WhatsmeowClient) Connect(ctx context.Context) error {
	if w.cli.Store.ID == nil {
		qrChan, err := w.cli.GetQRChannel(ctx)
		if err != nil {
			return err
		}
		if err := w.cli.Connect(); err != nil {
			return err
		}
		go func() {
			for item := range qrChan {
				if item.Event == "code" {
					if h := w.handlerOrNil(); h != nil {
						h.OnQR(item.Code)
					}
				}
			}
		}()
		return nil
	}
	return w.cli.Connect()
}

func (w *WhatsmeowClient) Disconnect() {
	w.cli.Disconnect()
}

func (w *WhatsmeowClient) Logout(ctx context.Context) error {
	return w.cli.Logout(ctx)
}

func (w *WhatsmeowClient) IsConnected() bool {
	return w.cli.IsConnected()
}

func (w *WhatsmeowClient) PhoneNumber() string {
	if w.cli.Store.ID == nil {
		return ""
	}
	return w.cli.Store.ID.User
}

func (w *WhatsmeowClient) SendText(ctx context.Context, jid, text string) (string, error) {
	target, err := ToJID(jid)
	if err != nil {
		return "", fmt.Errorf("waclient: parse jid %q: %w", jid, err)
	}
	resp, err := w.cli.SendMessage(ctx, target, &waE2E.Message{Conversation: proto.String(text)})
	if err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (w *WhatsmeowClient) CreateGroup(ctx context.Context, name string, participantJIDs []string) (string, error) {
	participants := make([]types.JID, 0, len(participantJIDs))
	for _, p := range participantJIDs {
		j, err := ToJID(p)
		if err != nil {
			return "", err
		}
		participants = append(participants, j)
	}
	resp, err := w.cli.CreateGroup(ctx, whatsmeow.ReqCreateGroup{Name: name, Participants: participants})
	if err != nil {
		return "", err
	}
	return resp.JID.String(), nil
}

func (w *WhatsmeowClient) AddParticipants(ctx context.Context, groupJID string, participantJIDs []string) error {
	return w.updateParticipants(ctx, groupJID, participantJIDs, whatsmeow.ParticipantChangeAdd)
}

func (w *WhatsmeowClient) RemoveParticipant(ctx context.Context, groupJID, participantJID string) error {
	return w.updateParticipants(ctx, groupJID, []string{participantJID}, whatsmeow.ParticipantChangeRemove)
}

func (w *WhatsmeowClient) PromoteParticipant(ctx context.Context, groupJID, participantJID string) error {
	return w.updateParticipants(ctx, groupJID, []string{participantJID}, whatsmeow.ParticipantChangePromote)
}

func (w *WhatsmeowClient) DemoteParticipant(ctx context.Context, groupJID, participantJID string) error {
	return w.updateParticipants(ctx, groupJID, []string{participantJID}, whatsmeow.ParticipantChangeDemote)
}

func (w *WhatsmeowClient) updateParticipants(ctx context.Context, groupJID string, participantJIDs []string, change whatsmeow.ParticipantChange) error {
	g, err := ToJID(groupJID)
	if err != nil {
		return err
	}
	participants := make([]types.JID, 0, len(participantJIDs))
	for _, p := range participantJIDs {
		j, err := ToJID(p)
		if err != nil {
			return err
		}
		participants = append(participants, j)
	}
	_, err = w.cli.UpdateGroupParticipants(ctx, g, participants, change)
	return err
}

func (w *WhatsmeowClient) LeaveGroup(ctx context.Context, groupJID string) error {
	g, err := ToJID(groupJID)
	if err != nil {
		return err
	}
	return w.cli.LeaveGroup(ctx, g)
}

func (w *WhatsmeowClient) GroupMetadata(ctx context.Context, groupJID string) (GroupUpdate, error) {
	g, err := ToJID(groupJID)
	if err != nil {
		return GroupUpdate{}, err
	}
	info, err := w.cli.GetGroupInfo(ctx, g)
	if err != nil {
		return GroupUpdate{}, err
	}
	return GroupUpdate{
		GroupJID:         g.String(),
		Name:             info.Name,
		Description:      info.Topic,
		ParticipantCount: len(info.Participants),
	}, nil
}

func (w *WhatsmeowClient) SetGroupSetting(ctx context.Context, groupJID, setting, value string) error {
	g, err := ToJID(groupJID)
	if err != nil {
		return err
	}
	switch setting {
	case "announce":
		return w.cli.SetGroupAnnounce(ctx, g, value == "true")
	case "locked":
		return w.cli.SetGroupLocked(ctx, g, value == "true")
	default:
		return fmt.Errorf("waclient: unknown group setting %q", setting)
	}
}

func (w *WhatsmeowClient) BroadcastToMembers(ctx context.Context, groupJID, text string) (string, error) {
	return w.SendText(ctx, groupJID, text)
}
