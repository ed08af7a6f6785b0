package waclient

import (
	"context"
	"fmt"
	"sync"
)

// FakeClient is an in-memory Client double for supervisor tests. Call
// methods like SimulateQR/SimulateConnect/SimulateDisconnect to
// drive events the way a real socket would.
type FakeClient struct {
	mu          sync.Mutex
	handler     EventHandler
	connected   bool
	phoneNumber string

	SendErr    error
	SentCount  int
	LastJID    string
	LastText   string
	NextMsgID  string
}

func NewFakeClient() *FakeClient {
	return &FakeClient{}
}

func (f *FakeClient) SetEventHandler(h EventHandler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handler = h
}

func (f *FakeClient) Connect(ctx context.Context) error {
	return nil
}

func (f *FakeClient) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
}

func (f *FakeClient) Logout(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	return nil
}

func (f *FakeClient) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *FakeClient) PhoneNumber() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.phoneNumber
}

// SimulateQR fires OnQR as if a pairing QR code was just issued.
func (f *FakeClient) SimulateQR(code string) {
	if h := f.eventHandler(); h != nil {
		h.OnQR(code)
	}
}

// SimulateConnect fires OnConnected and flips the client to connected.
func (f *FakeClient) SimulateConnect(phoneNumber string) {
	f.mu.Lock()
	f.connected = true
	f.phoneNumber = phoneNumber
	f.mu.Unlock()
	if h := f.eventHandler(); h != nil {
		h.OnConnected(phoneNumber)
	}
}

// SimulateDisconnect fires OnDisconnected with the given reason.
func (f *FakeClient) SimulateDisconnect(reason DisconnectReason) {
	f.mu.Lock()
	f.connected = false
	f.mu.Unlock()
	if h := f.eventHandler(); h != nil {
		h.OnDisconnected(reason)
	}
}

// SimulateMessage fires OnMessageBatch with a single message.
func (f *FakeClient) SimulateMessage(batchType string, msg InboundMessage) {
	if h := f.eventHandler(); h != nil {
		h.OnMessageBatch(batchType, []InboundMessage{msg})
	}
}

func (f *FakeClient) eventHandler() EventHandler {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handler
}

func (f *FakeClient) SendText(ctx context.Context, jid, text string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return "", fmt.Errorf("waclient: fake client not connected")
	}
	if f.SendErr != nil {
		return "", f.SendErr
	}
	f.SentCount++
	f.LastJID = jid
	f.LastText = text
	if f.NextMsgID != "" {
		return f.NextMsgID, nil
	}
	return fmt.Sprintf("fake-msg-%d", f.SentCount), nil
}

func (f *FakeClient) CreateGroup(ctx context.Context, name string, participantJIDs []string) (string, error) {
	return "fake-group@g.us", nil
}

func (f *FakeClient) AddParticipants(ctx context.Context, groupJID string, participantJIDs []string) error {
	return nil
}

func (f *FakeClient) RemoveParticipant(ctx context.Context, groupJID, participantJID string) error {
	return nil
}

func (f *FakeClient) PromoteParticipant(ctx context.Context, groupJID, participantJID string) error {
	return nil
}

func (f *FakeClient) DemoteParticipant(ctx context.Context, groupJID, participantJID string) error {
	return nil
}

func (f *FakeClient) LeaveGroup(ctx context.Context, groupJID string) error {
	return nil
}

func (f *FakeClient) GroupMetadata(ctx context.Context, groupJID string) (GroupUpdate, error) {
	return GroupUpdate{GroupJID: groupJID}, nil
}

func (f *FakeClient) SetGroupSetting(ctx context.Context, groupJID, setting, value string) error {
	return nil
}

func (f *FakeClient) BroadcastToMembers(ctx context.Context, groupJID, text string) (string, error) {
	return f.SendText(ctx, groupJID, text)
}
