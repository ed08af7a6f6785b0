// Package authstate implements the tagged-JSON blob codec the Persistence
// Store uses for Session.AuthState (spec §3, §4.A). whatsmeow keeps its
// signal-protocol device store in a local sqlite file; rather than
// reimplementing that schema relationally, the codec wraps the raw bytes of
// the per-session sqlite file in a small tagged envelope, so Postgres sees
// an opaque blob while the on-disk whatsmeow store keeps its native shape.
package authstate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Format is the only envelope version the codec currently emits. Future
// revisions bump this and Decode rejects envelopes it doesn't recognize.
const Format = "whatsmeow-sqlite-v1"

// Envelope is the tagged-JSON wrapper persisted in Session.AuthState.
// Data is base64-encoded by encoding/json's default []byte handling.
type Envelope struct {
	Format string `json:"format"`
	Data   []byte `json:"data"`
}

// Encode wraps the raw bytes of a whatsmeow sqlite device-store file in a
// tagged envelope suitable for Store.SaveAuthState.
func Encode(sqliteBytes []byte) ([]byte, error) {
	env := Envelope{Format: Format, Data: sqliteBytes}
	out, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("authstate: encode: %w", err)
	}
	return out, nil
}

// Decode unwraps a blob previously produced by Encode, returning the raw
// sqlite file bytes.
func Decode(blob []byte) ([]byte, error) {
	if len(blob) == 0 {
		return nil, nil
	}
	var env Envelope
	if err := json.Unmarshal(blob, &env); err != nil {
		return nil, fmt.Errorf("authstate: decode: %w", err)
	}
	if env.Format != Format {
		return nil, fmt.Errorf("authstate: unrecognized envelope format %q", env.Format)
	}
	return env.Data, nil
}

// DevicePath returns the on-disk sqlite path for a session, rooted at the
// configured SESSION_STORAGE_PATH.
func DevicePath(storageDir, sessionID string) string {
	return filepath.Join(storageDir, fmt.Sprintf("whatsapp-%s.db", sessionID))
}

// Snapshot reads the session's sqlite file off disk and encodes it for
// persistence. Returns (nil, nil) if the file does not exist yet (a brand
// new session that hasn't completed pairing).
func Snapshot(storageDir, sessionID string) ([]byte, error) {
	path := DevicePath(storageDir, sessionID)
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("authstate: read device store %s: %w", path, err)
	}
	return Encode(raw)
}

// Restore decodes a persisted blob and writes it back to the session's
// on-disk sqlite path, so whatsmeow's sqlstore.Container can open it. A nil
// or empty blob is a no-op (fresh session, nothing to restore).
func Restore(storageDir, sessionID string, blob []byte) error {
	raw, err := Decode(blob)
	if err != nil {
		return err
	}
	if len(raw) == 0 {
		return nil
	}
	path := DevicePath(storageDir, sessionID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("authstate: mkdir %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return fmt.Errorf("authstate: write device store %s: %w", path, err)
	}
	return nil
}
