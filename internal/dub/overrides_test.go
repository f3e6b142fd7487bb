package dub

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeOverrides(t *testing.T, content string) *Overrides {
	t.Helper()
	path := filepath.Join(t.TempDir(), "overrides.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write overrides: %v", err)
	}
	return NewOverrides(path, nil)
}

func TestOverridesLookupArrayForm(t *testing.T) {
	overrides := writeOverrides(t, `[
		{"external_ids": [100], "status": "DUBBED", "platforms": ["Crunchyroll"], "note": "confirmed"},
		{"mal_ids": [555], "status": "NONE"}
	]`)

	entry, found, err := overrides.Lookup(100, 0)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !found {
		t.Fatal("external id 100 should match")
	}
	if entry.Status != OverrideDubbed || len(entry.Platforms) != 1 {
		t.Errorf("entry = %+v", entry)
	}

	entry, found, err = overrides.Lookup(999, 555)
	if err != nil {
		t.Fatalf("Lookup by mal id: %v", err)
	}
	if !found || entry.Status != OverrideNone {
		t.Errorf("mal id 555 lookup = (%+v, %v), want the NONE entry", entry, found)
	}

	if _, found, _ := overrides.Lookup(42, 0); found {
		t.Error("unmatched ids should not find an entry")
	}
}

func TestOverridesLookupWrapperForm(t *testing.T) {
	overrides := writeOverrides(t, `{"overrides": [
		{"external_ids": [7], "status": "dubbed", "platforms": ["Netflix"]}
	]}`)

	entry, found, err := overrides.Lookup(7, 0)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !found {
		t.Fatal("wrapper-form entry should match")
	}
	// Status is normalized to upper case on load.
	if entry.Status != OverrideDubbed {
		t.Errorf("Status = %q, want DUBBED", entry.Status)
	}
}

func TestOverridesDefaultStatusIsDubbed(t *testing.T) {
	overrides := writeOverrides(t, `[{"external_ids": [1]}]`)
	entry, found, err := overrides.Lookup(1, 0)
	if err != nil || !found {
		t.Fatalf("Lookup = (%v, %v)", err, found)
	}
	if entry.Status != OverrideDubbed {
		t.Errorf("empty status should default to DUBBED, got %q", entry.Status)
	}
}

func TestOverridesMissingFileMatchesNothing(t *testing.T) {
	overrides := NewOverrides(filepath.Join(t.TempDir(), "absent.json"), nil)
	if _, found, err := overrides.Lookup(1, 1); err != nil || found {
		t.Errorf("missing file Lookup = (%v, %v), want silent miss", found, err)
	}
}

func TestOverridesNilStore(t *testing.T) {
	var overrides *Overrides
	if _, found, err := overrides.Lookup(1, 1); err != nil || found {
		t.Errorf("nil store Lookup = (%v, %v), want silent miss", found, err)
	}
	if NewOverrides("   ", nil) != nil {
		t.Error("blank path should yield a nil store")
	}
}

func TestOverridesReloadOnMtimeChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "overrides.json")
	if err := os.WriteFile(path, []byte(`[{"external_ids": [1]}]`), 0o644); err != nil {
		t.Fatalf("write overrides: %v", err)
	}
	overrides := NewOverrides(path, nil)

	if _, found, _ := overrides.Lookup(1, 0); !found {
		t.Fatal("initial entry should match")
	}
	if _, found, _ := overrides.Lookup(2, 0); found {
		t.Fatal("id 2 should not match yet")
	}

	// Rewrite with a bumped mtime; the next lookup picks it up.
	if err := os.WriteFile(path, []byte(`[{"external_ids": [2]}]`), 0o644); err != nil {
		t.Fatalf("rewrite overrides: %v", err)
	}
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatalf("bump mtime: %v", err)
	}

	if _, found, _ := overrides.Lookup(2, 0); !found {
		t.Error("rewritten entry should match after reload")
	}
	if _, found, _ := overrides.Lookup(1, 0); found {
		t.Error("stale entry should be gone after reload")
	}
}

func TestParseOverridesRejectsGarbage(t *testing.T) {
	if _, err := parseOverrides([]byte(`{"overrides": "nope"}`)); err == nil {
		t.Error("malformed wrapper should error")
	}
	if _, err := parseOverrides([]byte(`not json`)); err == nil {
		t.Error("non-JSON payload should error")
	}
	entries, err := parseOverrides([]byte("  "))
	if err != nil || entries != nil {
		t.Errorf("blank payload = (%v, %v), want empty success", entries, err)
	}
}
