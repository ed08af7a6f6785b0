package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kovshim30-boop/whatsapp-ghl-il/internal/models"
)

// MemStore is an in-memory Store used by component tests that don't need a
// real Postgres instance.
type MemStore struct {
	mu sync.Mutex

	sessions map[string]*models.Session
	messages map[string]*models.Message // keyed by ID.String()
	groups   map[string]*models.Group   // keyed by sessionID+"/"+groupJID
	orgs     map[uuid.UUID]*models.Organization
	usage    map[string]*models.UsageRecord // keyed by orgID+"/"+periodStart
	webhooks []models.WebhookLog
}

func NewMemStore() *MemStore {
	return &MemStore{
		sessions: make(map[string]*models.Session),
		messages: make(map[string]*models.Message),
		groups:   make(map[string]*models.Group),
		orgs:     make(map[uuid.UUID]*models.Organization),
		usage:    make(map[string]*models.UsageRecord),
	}
}

// PutOrganization seeds an organization for tests.
func (m *MemStore) PutOrganization(org *models.Organization) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orgs[org.ID] = org
}

func (m *MemStore) CreateSession(ctx context.Context, orgID uuid.UUID, sessionID, phoneNumber string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess := &models.Session{
		SessionID:   sessionID,
		OrgID:       orgID,
		PhoneNumber: phoneNumber,
		Status:      models.SessionConnecting,
		LastSeenAt:  time.Now().UTC(),
	}
	m.sessions[sessionID] = sess
	return sess, nil
}

func (m *MemStore) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *sess
	return &cp, nil
}

func (m *MemStore) LoadAuthState(ctx context.Context, sessionID string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return sess.AuthState, nil
}

func (m *MemStore) SaveAuthState(ctx context.Context, sessionID string, blob []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	sess.AuthState = blob
	return nil
}

func (m *MemStore) UpdateSessionStatus(ctx context.Context, sessionID string, status models.SessionStatus, phoneNumber, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	sess.Status = status
	sess.ErrorMessage = errMsg
	sess.LastSeenAt = time.Now().UTC()
	if phoneNumber != "" {
		sess.PhoneNumber = phoneNumber
	}
	return nil
}

func (m *MemStore) SaveQRCode(ctx context.Context, sessionID, qrCode string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	sess.LastQRCode = qrCode
	return nil
}

func (m *MemStore) ListRestorableSessions(ctx context.Context) ([]models.RestorableSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.RestorableSession
	for _, sess := range m.sessions {
		restorable := sess.Status == models.SessionConnected || sess.Status == models.SessionConnecting
		if !restorable || len(sess.AuthState) == 0 {
			continue
		}
		out = append(out, models.RestorableSession{
			SessionID:   sess.SessionID,
			OrgID:       sess.OrgID,
			AuthState:   sess.AuthState,
			PhoneNumber: sess.PhoneNumber,
		})
	}
	return out, nil
}

func (m *MemStore) IncrementReconnectAttempts(ctx context.Context, sessionID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[sessionID]
	if !ok {
		return 0, ErrNotFound
	}
	sess.ReconnectAttempts++
	return sess.ReconnectAttempts, nil
}

func (m *MemStore) ResetReconnectAttempts(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	sess.ReconnectAttempts = 0
	return nil
}

func (m *MemStore) DeleteSession(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
	return nil
}

func (m *MemStore) SaveMessage(ctx context.Context, in models.MessageInput) (*models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.messages {
		if existing.SessionID == in.SessionID && existing.ExternalID == in.ExternalID {
			cp := *existing
			return &cp, nil
		}
	}
	msg := &models.Message{
		ID:             uuid.New(),
		SessionID:      in.SessionID,
		ExternalID:     in.ExternalID,
		OrgID:          in.OrgID,
		Direction:      in.Direction,
		FromNumber:     in.FromNumber,
		ToNumber:       in.ToNumber,
		MessageType:    in.MessageType,
		Content:        in.Content,
		Status:         in.Status,
		IsGroupMessage: in.IsGroupMessage,
		GroupJID:       in.GroupJID,
		Timestamp:      in.Timestamp,
	}
	if msg.MessageType == "" {
		msg.MessageType = "text"
	}
	m.messages[msg.ID.String()] = msg
	cp := *msg
	return &cp, nil
}

func (m *MemStore) MarkMessageSynced(ctx context.Context, messageID uuid.UUID, crmMessageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[messageID.String()]
	if !ok {
		return ErrNotFound
	}
	msg.SyncedToCRM = true
	msg.CRMMessageID = crmMessageID
	return nil
}

func (m *MemStore) UpdateMessageStatus(ctx context.Context, messageID uuid.UUID, status models.MessageStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[messageID.String()]
	if !ok {
		return ErrNotFound
	}
	msg.Status = status
	return nil
}

func (m *MemStore) ListPendingCRMSync(ctx context.Context, orgID uuid.UUID, limit int) ([]models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Message
	for _, msg := range m.messages {
		if msg.OrgID != orgID || msg.SyncedToCRM || msg.Direction != models.DirectionInbound || msg.Status == models.MessageFailed {
			continue
		}
		out = append(out, *msg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemStore) UpsertGroup(ctx context.Context, in models.GroupInput) (*models.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := in.SessionID + "/" + in.GroupJID
	g, ok := m.groups[key]
	if !ok {
		g = &models.Group{SessionID: in.SessionID, GroupJID: in.GroupJID}
		m.groups[key] = g
	}
	g.Name = in.Name
	g.Description = in.Description
	g.ParticipantCount = in.ParticipantCount
	g.IsAdmin = in.IsAdmin
	cp := *g
	return &cp, nil
}

func (m *MemStore) ListGroups(ctx context.Context, sessionID string) ([]models.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Group
	for _, g := range m.groups {
		if g.SessionID == sessionID {
			out = append(out, *g)
		}
	}
	return out, nil
}

func (m *MemStore) LogWebhook(ctx context.Context, in models.WebhookLogInput) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.webhooks = append(m.webhooks, models.WebhookLog{
		OrgID:        in.OrgID,
		MessageID:    in.MessageID,
		URL:          in.URL,
		Payload:      in.Payload,
		HTTPStatus:   in.HTTPStatus,
		ResponseBody: in.ResponseBody,
		RetryCount:   in.RetryCount,
		Status:       in.Status,
		ErrorMessage: in.ErrorMessage,
		Timestamp:    in.Timestamp,
	})
	return nil
}

// WebhookLogs exposes recorded delivery attempts for assertions in tests.
func (m *MemStore) WebhookLogs() []models.WebhookLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.WebhookLog, len(m.webhooks))
	copy(out, m.webhooks)
	return out
}

func (m *MemStore) GetOrganization(ctx context.Context, orgID uuid.UUID) (*models.Organization, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	org, ok := m.orgs[orgID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *org
	return &cp, nil
}

// CountActiveSessions counts non-error sessions for the org (spec §4.H:
// "compare count of non-error sessions for the org against maxAccounts").
func (m *MemStore) CountActiveSessions(ctx context.Context, orgID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, sess := range m.sessions {
		if sess.OrgID == orgID && sess.Status != models.SessionError {
			n++
		}
	}
	return n, nil
}

func (m *MemStore) RecordUsage(ctx context.Context, orgID uuid.UUID, at time.Time, sent, received int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.usageFor(orgID, at)
	rec.MessagesSent += sent
	rec.MessagesReceived += received
	return nil
}

func (m *MemStore) IncrementAPICalls(ctx context.Context, orgID uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.usageFor(orgID, at)
	rec.APICalls++
	return nil
}

func (m *MemStore) GetUsage(ctx context.Context, orgID uuid.UUID, periodStart time.Time) (*models.UsageRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := orgID.String() + "/" + models.PeriodStart(periodStart).String()
	rec, ok := m.usage[key]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

// usageFor must be called under m.mu.
func (m *MemStore) usageFor(orgID uuid.UUID, at time.Time) *models.UsageRecord {
	period := models.PeriodStart(at)
	key := orgID.String() + "/" + period.String()
	rec, ok := m.usage[key]
	if !ok {
		rec = &models.UsageRecord{OrgID: orgID, PeriodStart: period}
		m.usage[key] = rec
	}
	return rec
}
