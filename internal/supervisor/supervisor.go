// Package supervisor implements the Session Supervisor (spec §4.C): the
// only component that touches the Session Registry and the WhatsApp client
// library. It owns Session records end-to-end and wires their lifecycle
// events to Persistence and to the Event Bus.
package supervisor

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kovshim30-boop/whatsapp-ghl-il/internal/apperr"
	"github.com/kovshim30-boop/whatsapp-ghl-il/internal/authstate"
	"github.com/kovshim30-boop/whatsapp-ghl-il/internal/eventbus"
	"github.com/kovshim30-boop/whatsapp-ghl-il/internal/models"
	"github.com/kovshim30-boop/whatsapp-ghl-il/internal/registry"
	"github.com/kovshim30-boop/whatsapp-ghl-il/internal/store"
	"github.com/kovshim30-boop/whatsapp-ghl-il/internal/waclient"
)

// ConnectInfo is passed to Callbacks.OnConnected.
type ConnectInfo struct {
	SessionID   string
	PhoneNumber string
}

// Callbacks is the capability set a caller supplies to Create (spec §9,
// "dynamic callback objects"). A nil Callbacks is valid; Supervisor
// substitutes a no-op implementation so event handling never needs to
// nil-check the caller's bag.
type Callbacks interface {
	OnQR(code string)
	OnConnected(info ConnectInfo)
	OnMessage(msg models.Message)
	OnDisconnect()
	OnGroupUpdate(update waclient.GroupUpdate)
}

type noopCallbacks struct{}

func (noopCallbacks) OnQR(string)                        {}
func (noopCallbacks) OnConnected(ConnectInfo)             {}
func (noopCallbacks) OnMessage(models.Message)            {}
func (noopCallbacks) OnDisconnect()                       {}
func (noopCallbacks) OnGroupUpdate(waclient.GroupUpdate)  {}

// Reconnector is implemented by internal/reconnect.Controller. Supervisor
// depends on this narrow interface rather than the concrete package to
// avoid an import cycle (the controller calls back into Supervisor.Reconnect).
type Reconnector interface {
	ScheduleReconnect(sessionID string, rateLimited bool)
	CancelPending(sessionID string)
}

// WebhookEnqueuer is implemented by internal/webhook.Dispatcher.
type WebhookEnqueuer interface {
	Enqueue(ctx context.Context, msg *models.Message, org *models.Organization) error
}

// LimitGuard is implemented by internal/limitguard.Guard.
type LimitGuard interface {
	CheckAccountLimit(ctx context.Context, orgID uuid.UUID) error
}

// ClientFactory constructs a waclient.Client for a session. Swappable for
// tests (waclient.NewFakeClient) or the real whatsmeow adapter.
type ClientFactory func(ctx context.Context, sessionID, dbPath string) (waclient.Client, error)

// Supervisor is the single owner of live session handles (spec §9,
// "cyclic references" — no back-pointer from handle to Supervisor; events
// are dispatched through a per-session handler instead).
type Supervisor struct {
	log         *zap.Logger
	store       store.Store
	registry    *registry.Registry
	bus         *eventbus.Bus
	webhook     WebhookEnqueuer
	limitGuard  LimitGuard
	clientFor   ClientFactory
	storageDir  string

	reconnector Reconnector // set via SetReconnector after construction
}

func New(log *zap.Logger, st store.Store, reg *registry.Registry, bus *eventbus.Bus, webhook WebhookEnqueuer, limitGuard LimitGuard, clientFor ClientFactory, storageDir string) *Supervisor {
	return &Supervisor{
		log:        log,
		store:      st,
		registry:   reg,
		bus:        bus,
		webhook:    webhook,
		limitGuard: limitGuard,
		clientFor:  clientFor,
		storageDir: storageDir,
	}
}

// SetReconnector breaks the construction-order cycle between Supervisor
// and Reconnector: main constructs Supervisor first, then Controller
// (which needs Supervisor), then wires the Controller back in here.
func (s *Supervisor) SetReconnector(r Reconnector) {
	s.reconnector = r
}

// Create registers a brand-new session and begins the QR pairing flow
// (spec §4.C Create).
func (s *Supervisor) Create(ctx context.Context, sessionID string, orgID uuid.UUID, callbacks Callbacks) error {
	if err := s.limitGuard.CheckAccountLimit(ctx, orgID); err != nil {
		return err
	}
	if _, err := s.store.CreateSession(ctx, orgID, sessionID, ""); err != nil {
		return err
	}
	return s.startClient(ctx, sessionID, orgID, nil, callbacks)
}

// RestoreAll restores every session that was connected or connecting at
// last shutdown (spec §4.C Restore-all). Per-session failures are
// isolated: that session's status flips to error and every other
// restoration continues.
func (s *Supervisor) RestoreAll(ctx context.Context) error {
	sessions, err := s.store.ListRestorableSessions(ctx)
	if err != nil {
		return err
	}
	for _, rs := range sessions {
		if err := authstate.Restore(s.storageDir, rs.SessionID, rs.AuthState); err != nil {
			s.log.Error("supervisor: restore auth state failed",
				zap.String("session_id", rs.SessionID), zap.Error(err))
			_ = s.store.UpdateSessionStatus(ctx, rs.SessionID, models.SessionError, "", err.Error())
			continue
		}
		if err := s.startClient(ctx, rs.SessionID, rs.OrgID, nil, nil); err != nil {
			s.log.Error("supervisor: restore session failed",
				zap.String("session_id", rs.SessionID), zap.Error(err))
			_ = s.store.UpdateSessionStatus(ctx, rs.SessionID, models.SessionError, "", err.Error())
			continue
		}
	}
	return nil
}

func (s *Supervisor) startClient(ctx context.Context, sessionID string, orgID uuid.UUID, _ []byte, callbacks Callbacks) error {
	if callbacks == nil {
		callbacks = noopCallbacks{}
	}
	dbPath := authstate.DevicePath(s.storageDir, sessionID)
	cli, err := s.clientFor(ctx, sessionID, dbPath)
	if err != nil {
		return apperr.Fatalf(err, "supervisor: construct client for session %s", sessionID)
	}

	h := &registry.Handle{
		SessionID: sessionID,
		OrgID:     orgID,
		Client:    cli,
		Status:    models.SessionConnecting,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.registry.Register(h); err != nil {
		return err
	}

	handler := &sessionEventHandler{
		sup:       s,
		sessionID: sessionID,
		orgID:     orgID,
		callbacks: callbacks,
	}
	cli.SetEventHandler(handler)

	if err := cli.Connect(ctx); err != nil {
		s.registry.Deregister(sessionID)
		return apperr.Transientf(err, "supervisor: connect session %s", sessionID)
	}
	return nil
}

// Reconnect re-establishes a client for a session that already exists in
// the Registry (left present by a non-logout disconnect, spec §4.C) or
// that needs restoring without going through the fresh-pairing Create
// path. Invoked by the Reconnection Controller when its timer fires.
func (s *Supervisor) Reconnect(ctx context.Context, sessionID string) error {
	h := s.registry.Get(sessionID)
	var orgID uuid.UUID
	if h != nil {
		orgID = h.OrgID
	} else {
		sess, err := s.store.GetSession(ctx, sessionID)
		if err != nil {
			return err
		}
		orgID = sess.OrgID
	}

	dbPath := authstate.DevicePath(s.storageDir, sessionID)
	cli, err := s.clientFor(ctx, sessionID, dbPath)
	if err != nil {
		return apperr.Fatalf(err, "supervisor: construct client for session %s", sessionID)
	}
	cli.SetEventHandler(&sessionEventHandler{sup: s, sessionID: sessionID, orgID: orgID, callbacks: noopCallbacks{}})

	if h != nil {
		s.registry.SetClient(sessionID, cli)
	} else if err := s.registry.Register(&registry.Handle{
		SessionID: sessionID, OrgID: orgID, Client: cli,
		Status: models.SessionConnecting, CreatedAt: time.Now().UTC(),
	}); err != nil {
		return err
	}

	if err := cli.Connect(ctx); err != nil {
		return apperr.Transientf(err, "supervisor: reconnect session %s", sessionID)
	}
	return nil
}

// Send delivers a single outbound message through the session's live
// client (spec §4.C Send). Requires status=connected.
func (s *Supervisor) Send(ctx context.Context, sessionID, jid, message string) (string, error) {
	h := s.registry.Get(sessionID)
	if h == nil || h.Status != models.SessionConnected {
		return "", apperr.NotConnectedErr(sessionID)
	}
	msgID, err := h.Client.SendText(ctx, jid, message)
	if err != nil {
		return "", apperr.Transientf(err, "supervisor: send on session %s", sessionID)
	}
	saved, err := s.store.SaveMessage(ctx, models.MessageInput{
		SessionID:   sessionID,
		ExternalID:  msgID,
		OrgID:       h.OrgID,
		Direction:   models.DirectionOutbound,
		ToNumber:    jid,
		MessageType: "text",
		Status:      models.MessageSent,
		Timestamp:   time.Now().UTC(),
	})
	if err != nil {
		s.log.Error("supervisor: persist outbound message failed",
			zap.String("session_id", sessionID), zap.Error(err))
	} else if err := s.store.RecordUsage(ctx, h.OrgID, saved.Timestamp, 1, 0); err != nil {
		s.log.Error("supervisor: record outbound usage failed", zap.Error(err))
	}
	return msgID, nil
}

// Destroy logs the session out, removes its registry entry, and deletes
// its on-disk auth state (spec §4.C Destroy). Logout failures against an
// already-dead socket are swallowed.
func (s *Supervisor) Destroy(ctx context.Context, sessionID string) error {
	if s.reconnector != nil {
		s.reconnector.CancelPending(sessionID)
	}
	h := s.registry.Get(sessionID)
	if h != nil && h.Client != nil {
		if err := h.Client.Logout(ctx); err != nil {
			s.log.Warn("supervisor: logout failed, continuing teardown",
				zap.String("session_id", sessionID), zap.Error(err))
		}
	}
	s.registry.Deregister(sessionID)
	if err := s.store.SaveAuthState(ctx, sessionID, nil); err != nil {
		s.log.Warn("supervisor: clear auth state failed", zap.String("session_id", sessionID), zap.Error(err))
	}
	if err := os.Remove(authstate.DevicePath(s.storageDir, sessionID)); err != nil && !os.IsNotExist(err) {
		s.log.Warn("supervisor: remove device store file failed", zap.String("session_id", sessionID), zap.Error(err))
	}
	return s.store.UpdateSessionStatus(ctx, sessionID, models.SessionDisconnected, "", "")
}

// connectedHandle returns the live handle for sessionID, enforcing the
// status=connected precondition every group operation shares (spec §4.C).
func (s *Supervisor) connectedHandle(sessionID string) (*registry.Handle, error) {
	h := s.registry.Get(sessionID)
	if h == nil || h.Status != models.SessionConnected {
		return nil, apperr.NotConnectedErr(sessionID)
	}
	return h, nil
}

func (s *Supervisor) CreateGroup(ctx context.Context, sessionID, name string, participantJIDs []string) (string, error) {
	h, err := s.connectedHandle(sessionID)
	if err != nil {
		return "", err
	}
	jid, err := h.Client.CreateGroup(ctx, name, participantJIDs)
	if err != nil {
		return "", apperr.Transientf(err, "supervisor: create group on session %s", sessionID)
	}
	return jid, nil
}

func (s *Supervisor) AddParticipants(ctx context.Context, sessionID, groupJID string, participantJIDs []string) error {
	h, err := s.connectedHandle(sessionID)
	if err != nil {
		return err
	}
	return wrapTransient(h.Client.AddParticipants(ctx, groupJID, participantJIDs), sessionID, "add participants")
}

func (s *Supervisor) RemoveParticipant(ctx context.Context, sessionID, groupJID, participantJID string) error {
	h, err := s.connectedHandle(sessionID)
	if err != nil {
		return err
	}
	return wrapTransient(h.Client.RemoveParticipant(ctx, groupJID, participantJID), sessionID, "remove participant")
}

func (s *Supervisor) PromoteParticipant(ctx context.Context, sessionID, groupJID, participantJID string) error {
	h, err := s.connectedHandle(sessionID)
	if err != nil {
		return err
	}
	return wrapTransient(h.Client.PromoteParticipant(ctx, groupJID, participantJID), sessionID, "promote participant")
}

func (s *Supervisor) DemoteParticipant(ctx context.Context, sessionID, groupJID, participantJID string) error {
	h, err := s.connectedHandle(sessionID)
	if err != nil {
		return err
	}
	return wrapTransient(h.Client.DemoteParticipant(ctx, groupJID, participantJID), sessionID, "demote participant")
}

func (s *Supervisor) LeaveGroup(ctx context.Context, sessionID, groupJID string) error {
	h, err := s.connectedHandle(sessionID)
	if err != nil {
		return err
	}
	return wrapTransient(h.Client.LeaveGroup(ctx, groupJID), sessionID, "leave group")
}

func (s *Supervisor) GroupMetadata(ctx context.Context, sessionID, groupJID string) (waclient.GroupUpdate, error) {
	h, err := s.connectedHandle(sessionID)
	if err != nil {
		return waclient.GroupUpdate{}, err
	}
	meta, err := h.Client.GroupMetadata(ctx, groupJID)
	if err != nil {
		return waclient.GroupUpdate{}, apperr.Transientf(err, "supervisor: group metadata on session %s", sessionID)
	}
	return meta, nil
}

func (s *Supervisor) SetGroupSetting(ctx context.Context, sessionID, groupJID, setting, value string) error {
	h, err := s.connectedHandle(sessionID)
	if err != nil {
		return err
	}
	return wrapTransient(h.Client.SetGroupSetting(ctx, groupJID, setting, value), sessionID, "set group setting")
}

func (s *Supervisor) BroadcastToMembers(ctx context.Context, sessionID, groupJID, text string) (string, error) {
	h, err := s.connectedHandle(sessionID)
	if err != nil {
		return "", err
	}
	id, err := h.Client.BroadcastToMembers(ctx, groupJID, text)
	if err != nil {
		return "", apperr.Transientf(err, "supervisor: broadcast on session %s", sessionID)
	}
	return id, nil
}

func wrapTransient(err error, sessionID, op string) error {
	if err == nil {
		return nil
	}
	return apperr.Transientf(err, "supervisor: %s on session %s", op, sessionID)
}
