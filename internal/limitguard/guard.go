// Package limitguard implements the advisory account/message caps from
// spec §4.H/I. It backs two independent narrow interfaces elsewhere in the
// tree — supervisor.LimitGuard (checked before a session create) and
// outboundqueue.LimitGuard (checked before a send batch) — with a single
// concrete Guard satisfying both implicitly.
package limitguard

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kovshim30-boop/whatsapp-ghl-il/internal/apperr"
	"github.com/kovshim30-boop/whatsapp-ghl-il/internal/config"
	"github.com/kovshim30-boop/whatsapp-ghl-il/internal/models"
	"github.com/kovshim30-boop/whatsapp-ghl-il/internal/store"
)

// Store is the narrow read surface the guard needs.
type Store interface {
	GetOrganization(ctx context.Context, orgID uuid.UUID) (*models.Organization, error)
	CountActiveSessions(ctx context.Context, orgID uuid.UUID) (int, error)
	GetUsage(ctx context.Context, orgID uuid.UUID, periodStart time.Time) (*models.UsageRecord, error)
}

// Guard checks organization caps, resolving an org-level override (non-zero
// MaxAccounts/MaxMessagesPerMonth) ahead of the tier default.
type Guard struct {
	store      Store
	tierConfig config.TierConfig
}

func New(st Store, tierConfig config.TierConfig) *Guard {
	return &Guard{store: st, tierConfig: tierConfig}
}

// CheckAccountLimit implements supervisor.LimitGuard. Spec §4.H: "before a
// session create, compare count of active sessions for the org against
// maxAccounts."
func (g *Guard) CheckAccountLimit(ctx context.Context, orgID uuid.UUID) error {
	org, err := g.store.GetOrganization(ctx, orgID)
	if err != nil {
		return err
	}
	limit := g.accountCap(org)

	count, err := g.store.CountActiveSessions(ctx, orgID)
	if err != nil {
		return err
	}
	if count >= limit {
		return apperr.LimitExceededErr(
			fmt.Sprintf("organization %s has reached its session limit", orgID), count, limit)
	}
	return nil
}

// CheckMessageLimit implements outboundqueue.LimitGuard. Spec §4.I: "before
// a send batch, compare current-month message total against
// maxMessagesPerMonth."
func (g *Guard) CheckMessageLimit(ctx context.Context, orgID uuid.UUID) error {
	org, err := g.store.GetOrganization(ctx, orgID)
	if err != nil {
		return err
	}
	limit := g.messageCap(org)

	usage, err := g.store.GetUsage(ctx, orgID, time.Now())
	if err != nil && err != store.ErrNotFound {
		return err
	}
	var sent int64
	if usage != nil {
		sent = usage.MessagesSent
	}
	if sent >= int64(limit) {
		return apperr.LimitExceededErr(
			fmt.Sprintf("organization %s has reached its monthly message limit", orgID), int(sent), limit)
	}
	return nil
}

func (g *Guard) accountCap(org *models.Organization) int {
	if org.MaxAccounts > 0 {
		return org.MaxAccounts
	}
	return g.tierConfig.Caps(config.Tier(org.Tier)).MaxAccounts
}

func (g *Guard) messageCap(org *models.Organization) int {
	if org.MaxMessagesPerMonth > 0 {
		return org.MaxMessagesPerMonth
	}
	return g.tierConfig.Caps(config.Tier(org.Tier)).MaxMessagesPerMonth
}
