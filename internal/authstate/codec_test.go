package authstate

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	raw := []byte("sqlite-bytes-here")
	blob, err := Encode(raw)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := Decode(blob)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(got) != string(raw) {
		t.Fatalf("expected round trip, got %q", got)
	}
}

func TestDecodeEmptyBlob(t *testing.T) {
	got, err := Decode(nil)
	if err != nil {
		t.Fatalf("decode nil: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}

func TestDecodeRejectsUnknownFormat(t *testing.T) {
	_, err := Decode([]byte(`{"format":"something-else","data":"AA=="}`))
	if err == nil {
		t.Fatalf("expected error for unrecognized format")
	}
}

func TestSnapshotMissingFileReturnsNil(t *testing.T) {
	dir := t.TempDir()
	blob, err := Snapshot(dir, "no-such-session")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if blob != nil {
		t.Fatalf("expected nil blob for missing device store")
	}
}

func TestSnapshotAndRestoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	sessionID := "sess-1"
	path := DevicePath(dir, sessionID)
	if err := os.WriteFile(path, []byte("device-store-contents"), 0o600); err != nil {
		t.Fatalf("seed device store: %v", err)
	}

	blob, err := Snapshot(dir, sessionID)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if blob == nil {
		t.Fatalf("expected non-nil blob")
	}

	restoreDir := filepath.Join(dir, "restored")
	if err := Restore(restoreDir, sessionID, blob); err != nil {
		t.Fatalf("restore: %v", err)
	}
	got, err := os.ReadFile(DevicePath(restoreDir, sessionID))
	if err != nil {
		t.Fatalf("read restored device store: %v", err)
	}
	if string(got) != "device-store-contents" {
		t.Fatalf("expected restored contents, got %q", got)
	}
}

func TestRestoreEmptyBlobIsNoop(t *testing.T) {
	dir := t.TempDir()
	if err := Restore(dir, "sess-2", nil); err != nil {
		t.Fatalf("restore empty: %v", err)
	}
	if _, err := os.Stat(DevicePath(dir, "sess-2")); !os.IsNotExist(err) {
		t.Fatalf("expected no file to be created")
	}
}
