// Package store defines the Persistence Store contract (spec §4.A): the
// single boundary every other component uses to read and write
// organizations, sessions, messages, groups, webhook logs, and usage
// counters. Implementations never mutate session state on their own
// initiative — every write is caller-driven.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/kovshim30-boop/whatsapp-ghl-il/internal/models"
)

// Store is implemented by GormStore (Postgres, production) and
// MemStore (in-memory, tests).
type Store interface {
	CreateSession(ctx context.Context, orgID uuid.UUID, sessionID, phoneNumber string) (*models.Session, error)
	GetSession(ctx context.Context, sessionID string) (*models.Session, error)
	LoadAuthState(ctx context.Context, sessionID string) ([]byte, error)
	SaveAuthState(ctx context.Context, sessionID string, blob []byte) error
	UpdateSessionStatus(ctx context.Context, sessionID string, status models.SessionStatus, phoneNumber, errMsg string) error
	SaveQRCode(ctx context.Context, sessionID, qrCode string) error
	ListRestorableSessions(ctx context.Context) ([]models.RestorableSession, error)
	IncrementReconnectAttempts(ctx context.Context, sessionID string) (int, error)
	ResetReconnectAttempts(ctx context.Context, sessionID string) error
	DeleteSession(ctx context.Context, sessionID string) error

	SaveMessage(ctx context.Context, in models.MessageInput) (*models.Message, error)
	MarkMessageSynced(ctx context.Context, messageID uuid.UUID, crmMessageID string) error
	UpdateMessageStatus(ctx context.Context, messageID uuid.UUID, status models.MessageStatus) error
	ListPendingCRMSync(ctx context.Context, orgID uuid.UUID, limit int) ([]models.Message, error)

	UpsertGroup(ctx context.Context, in models.GroupInput) (*models.Group, error)
	ListGroups(ctx context.Context, sessionID string) ([]models.Group, error)

	LogWebhook(ctx context.Context, in models.WebhookLogInput) error

	GetOrganization(ctx context.Context, orgID uuid.UUID) (*models.Organization, error)
	CountActiveSessions(ctx context.Context, orgID uuid.UUID) (int, error)
	RecordUsage(ctx context.Context, orgID uuid.UUID, at time.Time, sent, received int64) error
	IncrementAPICalls(ctx context.Context, orgID uuid.UUID, at time.Time) error
	GetUsage(ctx context.Context, orgID uuid.UUID, periodStart time.Time) (*models.UsageRecord, error)
}

// ErrNotFound is returned by lookups when no row matches.
var ErrNotFound = errNotFound{}

type errNotFound struct{}

func (errNotFound) Error() string { return "store: not found" }
