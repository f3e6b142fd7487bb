package testsupport

import (
	"context"
	"testing"
	"time"

	"dubtrack/internal/catalog"
	"dubtrack/internal/config"
	"dubtrack/internal/store"
)

// MustOpenStore opens a store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	s, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

// SeedEntity upserts a minimal entity for tests and returns it.
func SeedEntity(t testing.TB, s *store.Store, externalID int64, state catalog.LifecycleState) catalog.Entity {
	t.Helper()

	entity := catalog.Entity{
		ExternalID:  externalID,
		TitleRomaji: "Test Title",
		Season:      catalog.SeasonWinter,
		Year:        2026,
		State:       state,
		UpdatedAt:   time.Now(),
	}
	if _, err := s.UpsertEntity(context.Background(), entity); err != nil {
		t.Fatalf("seed entity: %v", err)
	}
	return entity
}
