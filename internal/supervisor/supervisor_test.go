package supervisor

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kovshim30-boop/whatsapp-ghl-il/internal/eventbus"
	"github.com/kovshim30-boop/whatsapp-ghl-il/internal/models"
	"github.com/kovshim30-boop/whatsapp-ghl-il/internal/registry"
	"github.com/kovshim30-boop/whatsapp-ghl-il/internal/store"
	"github.com/kovshim30-boop/whatsapp-ghl-il/internal/waclient"
)

type allowAllGuard struct{}

func (allowAllGuard) CheckAccountLimit(ctx context.Context, orgID uuid.UUID) error { return nil }

type recordingWebhook struct {
	enqueued []*models.Message
}

func (w *recordingWebhook) Enqueue(ctx context.Context, msg *models.Message, org *models.Organization) error {
	w.enqueued = append(w.enqueued, msg)
	return nil
}

type testFixture struct {
	sup     *Supervisor
	st      *store.MemStore
	fake    *waclient.FakeClient
	webhook *recordingWebhook
	orgID   uuid.UUID
}

func newFixture(t *testing.T) *testFixture {
	t.Helper()
	dir := t.TempDir()
	st := store.NewMemStore()
	orgID := uuid.New()
	st.PutOrganization(&models.Organization{ID: orgID, WebhookURL: "https://hook.test/in"})

	fake := waclient.NewFakeClient()
	webhook := &recordingWebhook{}
	sup := New(
		zap.NewNop(),
		st,
		registry.New(),
		eventbus.New(zap.NewNop(), nil, ""),
		webhook,
		allowAllGuard{},
		func(ctx context.Context, sessionID, dbPath string) (waclient.Client, error) { return fake, nil },
		dir,
	)
	return &testFixture{sup: sup, st: st, fake: fake, webhook: webhook, orgID: orgID}
}

func TestCreateRegistersAndConnects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.sup.Create(ctx, "s1", f.orgID, nil); err != nil {
		t.Fatalf("create: %v", err)
	}

	sess, err := f.st.GetSession(ctx, "s1")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if sess.Status != models.SessionConnecting {
		t.Fatalf("expected connecting, got %s", sess.Status)
	}
}

func TestConnectedEventResetsReconnectAttemptsAndUpdatesStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_ = f.sup.Create(ctx, "s1", f.orgID, nil)
	_, _ = f.st.IncrementReconnectAttempts(ctx, "s1")

	f.fake.SimulateConnect("15551234567")

	sess, err := f.st.GetSession(ctx, "s1")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if sess.Status != models.SessionConnected || sess.PhoneNumber != "15551234567" {
		t.Fatalf("unexpected session state: %+v", sess)
	}
	if sess.ReconnectAttempts != 0 {
		t.Fatalf("expected reconnect attempts reset, got %d", sess.ReconnectAttempts)
	}
}

func TestSendRequiresConnected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_ = f.sup.Create(ctx, "s1", f.orgID, nil)

	_, err := f.sup.Send(ctx, "s1", "15551234567", "hi")
	if err == nil {
		t.Fatal("expected NotConnected error before connection opens")
	}
}

func TestSendAfterConnectPersistsOutboundMessage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_ = f.sup.Create(ctx, "s1", f.orgID, nil)
	f.fake.SimulateConnect("15551234567")

	msgID, err := f.sup.Send(ctx, "s1", "15559876543", "hello")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if msgID == "" {
		t.Fatal("expected non-empty message id")
	}
	usage, err := f.st.GetUsage(ctx, f.orgID, time.Now())
	if err != nil {
		t.Fatalf("get usage: %v", err)
	}
	if usage.MessagesSent != 1 {
		t.Fatalf("expected messages_sent=1, got %d", usage.MessagesSent)
	}
}

func TestInboundMessagePersistsEnqueuesWebhookAndMetersUsage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_ = f.sup.Create(ctx, "s1", f.orgID, nil)
	f.fake.SimulateConnect("15551234567")

	f.fake.SimulateMessage("notify", waclient.InboundMessage{
		MessageID:   "wamid-1",
		FromJID:     "15559876543@s.whatsapp.net",
		ToJID:       "15551234567@s.whatsapp.net",
		MessageType: "text",
		Text:        "hi there",
		Timestamp:   time.Now().Unix(),
	})

	if len(f.webhook.enqueued) != 1 {
		t.Fatalf("expected 1 webhook enqueue, got %d", len(f.webhook.enqueued))
	}
	usage, err := f.st.GetUsage(ctx, f.orgID, time.Now())
	if err != nil {
		t.Fatalf("get usage: %v", err)
	}
	if usage.MessagesReceived != 1 {
		t.Fatalf("expected messages_received=1, got %d", usage.MessagesReceived)
	}
}

func TestHistoryBatchIsNotForwarded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_ = f.sup.Create(ctx, "s1", f.orgID, nil)
	f.fake.SimulateConnect("15551234567")

	f.fake.SimulateMessage("history", waclient.InboundMessage{MessageID: "wamid-old"})

	if len(f.webhook.enqueued) != 0 {
		t.Fatalf("expected history batch to be ignored, got %d webhook enqueues", len(f.webhook.enqueued))
	}
}

func TestLoggedOutDisconnectDeregisters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_ = f.sup.Create(ctx, "s1", f.orgID, nil)
	f.fake.SimulateConnect("15551234567")

	f.fake.SimulateDisconnect(waclient.DisconnectLoggedOut)

	if _, err := f.sup.Send(ctx, "s1", "15559876543", "hi"); err == nil {
		t.Fatal("expected NotConnected after logout")
	}
	sess, err := f.st.GetSession(ctx, "s1")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if sess.Status != models.SessionDisconnected {
		t.Fatalf("expected disconnected status, got %s", sess.Status)
	}
}

func TestDestroyDeregistersAndClearsAuthState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_ = f.sup.Create(ctx, "s1", f.orgID, nil)
	f.fake.SimulateConnect("15551234567")
	_ = f.st.SaveAuthState(ctx, "s1", []byte("blob"))

	if err := f.sup.Destroy(ctx, "s1"); err != nil {
		t.Fatalf("destroy: %v", err)
	}

	blob, err := f.st.LoadAuthState(ctx, "s1")
	if err != nil {
		t.Fatalf("load auth state: %v", err)
	}
	if blob != nil {
		t.Fatalf("expected auth state cleared, got %v", blob)
	}
	if _, err := f.sup.Send(ctx, "s1", "15559876543", "hi"); err == nil {
		t.Fatal("expected NotConnected after destroy")
	}
}
