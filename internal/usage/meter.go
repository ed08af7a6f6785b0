// Package usage provides the read-facing view of per-organization usage
// counters (spec §4.H/I: "messagesSent, messagesReceived, apiCalls by
// month"). internal/supervisor writes counters directly via store.Store
// on the message hot path; Meter exists for callers that only need to
// report or reason about totals — the HTTP usage endpoint — without
// depending on the wider Store interface. internal/limitguard reads usage
// through its own store interface, not through Meter.
package usage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/kovshim30-boop/whatsapp-ghl-il/internal/models"
	"github.com/kovshim30-boop/whatsapp-ghl-il/internal/store"
)

// Store is the narrow read/write surface Meter needs.
type Store interface {
	GetUsage(ctx context.Context, orgID uuid.UUID, periodStart time.Time) (*models.UsageRecord, error)
	RecordUsage(ctx context.Context, orgID uuid.UUID, at time.Time, sent, received int64) error
	IncrementAPICalls(ctx context.Context, orgID uuid.UUID, at time.Time) error
}

type Meter struct {
	store Store
}

func New(store Store) *Meter {
	return &Meter{store: store}
}

// CurrentPeriod returns the usage record for the organization's current
// calendar-month period, or a zero-valued record if nothing has been
// recorded yet this month.
func (m *Meter) CurrentPeriod(ctx context.Context, orgID uuid.UUID) (models.UsageRecord, error) {
	return m.ForPeriod(ctx, orgID, time.Now())
}

// ForPeriod returns the usage record covering the month containing at.
func (m *Meter) ForPeriod(ctx context.Context, orgID uuid.UUID, at time.Time) (models.UsageRecord, error) {
	rec, err := m.store.GetUsage(ctx, orgID, at)
	if err == nil {
		return *rec, nil
	}
	if err != store.ErrNotFound {
		return models.UsageRecord{}, err
	}
	return models.UsageRecord{OrgID: orgID, PeriodStart: models.PeriodStart(at)}, nil
}

// RecordSent/RecordReceived/RecordAPICall are thin pass-throughs kept for
// callers (e.g. batch backfill jobs) that don't otherwise hold a
// store.Store reference.
func (m *Meter) RecordSent(ctx context.Context, orgID uuid.UUID, at time.Time, n int64) error {
	return m.store.RecordUsage(ctx, orgID, at, n, 0)
}

func (m *Meter) RecordReceived(ctx context.Context, orgID uuid.UUID, at time.Time, n int64) error {
	return m.store.RecordUsage(ctx, orgID, at, 0, n)
}

func (m *Meter) RecordAPICall(ctx context.Context, orgID uuid.UUID, at time.Time) error {
	return m.store.IncrementAPICalls(ctx, orgID, at)
}
