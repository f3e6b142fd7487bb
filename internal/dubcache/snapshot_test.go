package dubcache

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestSnapshot(t *testing.T, path string) *Snapshot {
	t.Helper()
	snapshot, err := OpenSnapshot(path)
	if err != nil {
		t.Fatalf("OpenSnapshot: %v", err)
	}
	t.Cleanup(func() { _ = snapshot.Close() })
	return snapshot
}

func TestSnapshotRoundTrip(t *testing.T) {
	snapshot := openTestSnapshot(t, filepath.Join(t.TempDir(), "snapshot.db"))

	if err := snapshot.Put("k", []byte(`{"v":1}`), time.Hour); err != nil {
		t.Fatalf("Put: %v", err)
	}

	value, ok := snapshot.Get("k")
	if !ok || string(value) != `{"v":1}` {
		t.Fatalf("Get = (%q, %v), want the stored payload", value, ok)
	}

	if err := snapshot.Invalidate("k"); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if _, ok := snapshot.Get("k"); ok {
		t.Error("invalidated key should miss")
	}
}

func TestSnapshotExpiry(t *testing.T) {
	snapshot := openTestSnapshot(t, filepath.Join(t.TempDir(), "snapshot.db"))

	current := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	snapshot.now = func() time.Time { return current }

	if err := snapshot.Put("k", []byte("v"), time.Hour); err != nil {
		t.Fatalf("Put: %v", err)
	}

	current = current.Add(30 * time.Minute)
	if !snapshot.Fresh("k") {
		t.Error("entry should be fresh before its TTL")
	}

	current = current.Add(time.Hour)
	if snapshot.Fresh("k") {
		t.Error("entry should expire after its TTL")
	}
}

func TestSnapshotReportsRemainingTTL(t *testing.T) {
	snapshot := openTestSnapshot(t, filepath.Join(t.TempDir(), "snapshot.db"))

	current := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	snapshot.now = func() time.Time { return current }

	if err := snapshot.Put("k", []byte("v"), time.Hour); err != nil {
		t.Fatalf("Put: %v", err)
	}

	current = current.Add(40 * time.Minute)
	_, remaining, ok := snapshot.GetWithTTL("k")
	if !ok {
		t.Fatal("entry should still be live")
	}
	if remaining != 20*time.Minute {
		t.Errorf("remaining = %s, want 20m", remaining)
	}
}

func TestSnapshotSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.db")

	first, err := OpenSnapshot(path)
	if err != nil {
		t.Fatalf("OpenSnapshot: %v", err)
	}
	if err := first.Put("k", []byte("persisted"), time.Hour); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	second := openTestSnapshot(t, path)
	value, ok := second.Get("k")
	if !ok || string(value) != "persisted" {
		t.Errorf("reopened Get = (%q, %v), want (persisted, true)", value, ok)
	}
}

func TestSnapshotMissingKey(t *testing.T) {
	snapshot := openTestSnapshot(t, filepath.Join(t.TempDir(), "snapshot.db"))
	if _, ok := snapshot.Get("absent"); ok {
		t.Error("missing key should miss")
	}
	if err := snapshot.Invalidate("absent"); err != nil {
		t.Errorf("Invalidate on a missing key: %v", err)
	}
}
