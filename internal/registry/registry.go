// Package registry implements the process-local Session Registry (spec
// §4.B): a map of session id to live handle, guarded so reads are cheap and
// writes are serialized.
package registry

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kovshim30-boop/whatsapp-ghl-il/internal/apperr"
	"github.com/kovshim30-boop/whatsapp-ghl-il/internal/models"
	"github.com/kovshim30-boop/whatsapp-ghl-il/internal/waclient"
)

// Handle is the live state for one session. Client is nil until the
// WhatsApp client has been constructed; PhoneNumber is empty until the
// connection opens.
type Handle struct {
	SessionID   string
	OrgID       uuid.UUID
	Client      waclient.Client
	Status      models.SessionStatus
	PhoneNumber string
	CreatedAt   time.Time
}

// Registry is the single globally shared mutable structure (spec §5).
// All mutations are serialized; concurrent reads are permitted.
type Registry struct {
	mu       sync.RWMutex
	handles  map[string]*Handle
}

func New() *Registry {
	return &Registry{handles: make(map[string]*Handle)}
}

// Register adds a new handle. Fails with apperr.Fatal if the id already
// exists — callers are expected to check first when that's recoverable,
// but Register itself never silently overwrites a live handle.
func (r *Registry) Register(h *Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handles[h.SessionID]; exists {
		return apperr.Fatalf(nil, "registry: session %s already registered", h.SessionID)
	}
	r.handles[h.SessionID] = h
	return nil
}

// Deregister removes a handle. Invoked by the Supervisor on permanent
// teardown (logout, or a disconnect that should not reconnect).
func (r *Registry) Deregister(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handles, sessionID)
}

// Get returns the handle for sessionID, or nil if not registered.
func (r *Registry) Get(sessionID string) *Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.handles[sessionID]
}

// SetClient swaps the live client on an existing handle — used by the
// Reconnection Controller, which reconnects in place rather than
// re-registering (the handle survives a non-logout disconnect per spec
// §4.C). No-op if the session isn't registered.
func (r *Registry) SetClient(sessionID string, client waclient.Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.handles[sessionID]
	if !ok {
		return
	}
	h.Client = client
}

// UpdateStatus mutates the status (and optionally phone number) of a live
// handle in place. No-op if the session isn't registered.
func (r *Registry) UpdateStatus(sessionID string, status models.SessionStatus, phoneNumber string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.handles[sessionID]
	if !ok {
		return
	}
	h.Status = status
	if phoneNumber != "" {
		h.PhoneNumber = phoneNumber
	}
}

// List returns a snapshot of every live handle, for the sessions-list API
// route.
func (r *Registry) List() []*Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Handle, 0, len(r.handles))
	for _, h := range r.handles {
		cp := *h
		out = append(out, &cp)
	}
	return out
}

// Count returns how many live handles are currently registered.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handles)
}
