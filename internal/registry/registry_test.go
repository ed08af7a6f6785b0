package registry

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/kovshim30-boop/whatsapp-ghl-il/internal/models"
)

func TestRegisterAndGet(t *testing.T) {
	r := New()
	h := &Handle{SessionID: "s1", OrgID: uuid.New(), Status: models.SessionConnecting, CreatedAt: time.Now()}
	if err := r.Register(h); err != nil {
		t.Fatalf("register: %v", err)
	}
	got := r.Get("s1")
	if got == nil || got.SessionID != "s1" {
		t.Fatalf("expected handle for s1, got %v", got)
	}
}

func TestRegisterDuplicateFails(t *testing.T) {
	r := New()
	h := &Handle{SessionID: "s1", CreatedAt: time.Now()}
	if err := r.Register(h); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := r.Register(h); err == nil {
		t.Fatalf("expected error registering duplicate session id")
	}
}

func TestDeregisterRemovesHandle(t *testing.T) {
	r := New()
	h := &Handle{SessionID: "s1", CreatedAt: time.Now()}
	_ = r.Register(h)
	r.Deregister("s1")
	if r.Get("s1") != nil {
		t.Fatalf("expected handle removed")
	}
}

func TestUpdateStatusMutatesInPlace(t *testing.T) {
	r := New()
	h := &Handle{SessionID: "s1", Status: models.SessionConnecting, CreatedAt: time.Now()}
	_ = r.Register(h)
	r.UpdateStatus("s1", models.SessionConnected, "+15551234567")
	got := r.Get("s1")
	if got.Status != models.SessionConnected || got.PhoneNumber != "+15551234567" {
		t.Fatalf("unexpected handle state: %+v", got)
	}
}

func TestListReturnsSnapshot(t *testing.T) {
	r := New()
	_ = r.Register(&Handle{SessionID: "s1", CreatedAt: time.Now()})
	_ = r.Register(&Handle{SessionID: "s2", CreatedAt: time.Now()})
	list := r.List()
	if len(list) != 2 {
		t.Fatalf("expected 2 handles, got %d", len(list))
	}
	if r.Count() != 2 {
		t.Fatalf("expected count 2, got %d", r.Count())
	}
}
