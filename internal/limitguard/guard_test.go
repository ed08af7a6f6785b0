package limitguard

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/kovshim30-boop/whatsapp-ghl-il/internal/apperr"
	"github.com/kovshim30-boop/whatsapp-ghl-il/internal/config"
	"github.com/kovshim30-boop/whatsapp-ghl-il/internal/models"
	"github.com/kovshim30-boop/whatsapp-ghl-il/internal/store"
)

func testTierConfig() config.TierConfig {
	cfg, err := config.LoadTierConfig("/nonexistent")
	if err != nil {
		panic(err)
	}
	return cfg
}

func seedOrg(t *testing.T, st *store.MemStore, org *models.Organization) {
	t.Helper()
	st.PutOrganization(org)
}

func TestCheckAccountLimitUsesTierDefaultWhenOrgCapUnset(t *testing.T) {
	st := store.NewMemStore()
	orgID := uuid.New()
	seedOrg(t, st, &models.Organization{ID: orgID, Tier: models.TierFree})

	g := New(st, testTierConfig())

	if err := g.CheckAccountLimit(context.Background(), orgID); err != nil {
		t.Fatalf("expected no error under cap, got %v", err)
	}

	if _, err := st.CreateSession(context.Background(), orgID, "s1", "+15551234567"); err != nil {
		t.Fatalf("create session: %v", err)
	}
	if err := st.UpdateSessionStatus(context.Background(), "s1", models.SessionConnected, "", ""); err != nil {
		t.Fatalf("update status: %v", err)
	}

	err := g.CheckAccountLimit(context.Background(), orgID)
	if err == nil {
		t.Fatal("expected limit exceeded once free-tier cap of 1 is reached")
	}
	var appErr *apperr.Error
	if e, ok := err.(*apperr.Error); ok {
		appErr = e
	}
	if appErr == nil || appErr.Kind != apperr.LimitExceeded {
		t.Fatalf("expected apperr.LimitExceeded, got %v", err)
	}
	if appErr.Current != 1 || appErr.Limit != 1 {
		t.Fatalf("expected current=1 limit=1, got current=%d limit=%d", appErr.Current, appErr.Limit)
	}
}

func TestCheckAccountLimitHonorsOrgOverride(t *testing.T) {
	st := store.NewMemStore()
	orgID := uuid.New()
	seedOrg(t, st, &models.Organization{ID: orgID, Tier: models.TierFree, MaxAccounts: 5})

	g := New(st, testTierConfig())

	for i := 0; i < 4; i++ {
		sessionID := uuid.NewString()
		if _, err := st.CreateSession(context.Background(), orgID, sessionID, "+15551234567"); err != nil {
			t.Fatalf("create session: %v", err)
		}
		if err := st.UpdateSessionStatus(context.Background(), sessionID, models.SessionConnected, "", ""); err != nil {
			t.Fatalf("update status: %v", err)
		}
	}

	if err := g.CheckAccountLimit(context.Background(), orgID); err != nil {
		t.Fatalf("expected org override of 5 to allow 4 active sessions, got %v", err)
	}
}

func TestCheckMessageLimitAllowsWhenNoUsageRecordYet(t *testing.T) {
	st := store.NewMemStore()
	orgID := uuid.New()
	seedOrg(t, st, &models.Organization{ID: orgID, Tier: models.TierFree})

	g := New(st, testTierConfig())

	if err := g.CheckMessageLimit(context.Background(), orgID); err != nil {
		t.Fatalf("expected no error with no usage recorded yet, got %v", err)
	}
}

func TestCheckMessageLimitRejectsOverTierCap(t *testing.T) {
	st := store.NewMemStore()
	orgID := uuid.New()
	seedOrg(t, st, &models.Organization{ID: orgID, Tier: models.TierFree})

	if err := st.RecordUsage(context.Background(), orgID, time.Now(), 200, 0); err != nil {
		t.Fatalf("record usage: %v", err)
	}

	g := New(st, testTierConfig())

	err := g.CheckMessageLimit(context.Background(), orgID)
	if err == nil {
		t.Fatal("expected limit exceeded at free-tier cap of 200")
	}
}

func TestCheckMessageLimitHonorsOrgOverride(t *testing.T) {
	st := store.NewMemStore()
	orgID := uuid.New()
	seedOrg(t, st, &models.Organization{ID: orgID, Tier: models.TierFree, MaxMessagesPerMonth: 1000})

	if err := st.RecordUsage(context.Background(), orgID, time.Now(), 500, 0); err != nil {
		t.Fatalf("record usage: %v", err)
	}

	g := New(st, testTierConfig())

	if err := g.CheckMessageLimit(context.Background(), orgID); err != nil {
		t.Fatalf("expected org override of 1000 to allow 500 sent, got %v", err)
	}
}
