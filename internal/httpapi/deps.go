// Package httpapi implements the HTTP edge contract spec §6 describes as
// an external collaborator — built here only far enough to exercise the
// core end-to-end and satisfy the route/status-code contract. Router
// wiring follows the teacher's cmd/notification_api/app/routes package;
// the bearer-auth middleware is grounded on
// iliyamo-cinema-seat-reservation/internal/middleware/jwt.go, ported from
// Echo to gin.
package httpapi

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kovshim30-boop/whatsapp-ghl-il/internal/models"
	"github.com/kovshim30-boop/whatsapp-ghl-il/internal/registry"
	"github.com/kovshim30-boop/whatsapp-ghl-il/internal/store"
	"github.com/kovshim30-boop/whatsapp-ghl-il/internal/supervisor"
	"github.com/kovshim30-boop/whatsapp-ghl-il/internal/waclient"
)

// SupervisorAPI is the narrow surface handlers drive — satisfied by
// *supervisor.Supervisor.
type SupervisorAPI interface {
	Create(ctx context.Context, sessionID string, orgID uuid.UUID, callbacks supervisor.Callbacks) error
	Destroy(ctx context.Context, sessionID string) error
	CreateGroup(ctx context.Context, sessionID, name string, participantJIDs []string) (string, error)
	AddParticipants(ctx context.Context, sessionID, groupJID string, participantJIDs []string) error
	RemoveParticipant(ctx context.Context, sessionID, groupJID, participantJID string) error
	PromoteParticipant(ctx context.Context, sessionID, groupJID, participantJID string) error
	SetGroupSetting(ctx context.Context, sessionID, groupJID, setting, value string) error
	BroadcastToMembers(ctx context.Context, sessionID, groupJID, text string) (string, error)
	GroupMetadata(ctx context.Context, sessionID, groupJID string) (waclient.GroupUpdate, error)
}

// OutboundAPI is the narrow surface for outbound sends — satisfied by
// *outboundqueue.Queue.
type OutboundAPI interface {
	Enqueue(sessionID, jid, content, messageType string) (string, error)
	BulkEnqueue(ctx context.Context, orgID uuid.UUID, sessionID string, sends []struct{ JID, Content, MessageType string }) ([]string, error)
	ImmediateSend(ctx context.Context, sessionID, jid, message string) (string, error)
}

// UsageAPI is the narrow surface the usage-reporting route drives —
// satisfied by *usage.Meter.
type UsageAPI interface {
	CurrentPeriod(ctx context.Context, orgID uuid.UUID) (models.UsageRecord, error)
}

// Deps bundles everything the route handlers need. Handlers close over a
// *Deps set on the gin.Engine.
type Deps struct {
	Log       *zap.Logger
	Store     store.Store
	Registry  *registry.Registry
	Sup       SupervisorAPI
	Outbound  OutboundAPI
	Usage     UsageAPI
	JWTSecret string
	StartedAt int64 // unix seconds, stamped by main at process start
}
