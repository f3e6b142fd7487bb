package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"dubtrack/internal/catalog"
	"dubtrack/internal/services"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenAt(filepath.Join(t.TempDir(), "dubtrack.db"))
	if err != nil {
		t.Fatalf("OpenAt: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testEntity(externalID int64) catalog.Entity {
	return catalog.Entity{
		ExternalID:       externalID,
		SecondaryID:      externalID * 10,
		TitleRomaji:      "Sousou no Frieren",
		TitleEnglish:     "Frieren: Beyond Journey's End",
		Season:           catalog.SeasonWinter,
		Year:             2026,
		TotalEpisodes:    12,
		EpisodesObserved: 4,
		State:            catalog.StateOngoing,
		Popularity:       90000,
		Score:            88,
		Studios:          []string{"Madhouse"},
		ExternalLinks: []catalog.ExternalLink{
			{Site: "Crunchyroll", URL: "https://example.test/cr", Language: "English", Type: "STREAMING"},
		},
		StreamingEpisodes: []string{"Episode 1 (English Dub)"},
		UpdatedAt:         time.Date(2026, time.January, 15, 0, 0, 0, 0, time.UTC),
	}
}

func TestUpsertEntityCreateThenNoOp(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	entity := testEntity(100)

	result, err := s.UpsertEntity(ctx, entity)
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if !result.IsNew {
		t.Error("first upsert should report a new row")
	}

	// Identical payload again: no delta.
	result, err = s.UpsertEntity(ctx, entity)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if result.IsNew || result.Changed {
		t.Errorf("identical upsert = %+v, want neither new nor changed", result)
	}
}

func TestUpsertEntityRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	entity := testEntity(101)

	if _, err := s.UpsertEntity(ctx, entity); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	found, err := s.FindEntity(ctx, 101)
	if err != nil {
		t.Fatalf("FindEntity: %v", err)
	}
	if found == nil {
		t.Fatal("entity not found after upsert")
	}
	if found.TitleEnglish != entity.TitleEnglish || found.Season != entity.Season || found.Year != entity.Year {
		t.Errorf("round trip mismatch: got %+v", found)
	}
	if found.SecondaryID != 1010 {
		t.Errorf("SecondaryID = %d, want 1010", found.SecondaryID)
	}
	if len(found.Studios) != 1 || found.Studios[0] != "Madhouse" {
		t.Errorf("Studios = %v, want [Madhouse]", found.Studios)
	}
	if len(found.ExternalLinks) != 1 || found.ExternalLinks[0].Site != "Crunchyroll" {
		t.Errorf("ExternalLinks = %v", found.ExternalLinks)
	}
	if len(found.StreamingEpisodes) != 1 {
		t.Errorf("StreamingEpisodes = %v", found.StreamingEpisodes)
	}
}

func TestUpsertEntityEpisodesNeverRegress(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	entity := testEntity(102)
	entity.EpisodesObserved = 9
	if _, err := s.UpsertEntity(ctx, entity); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	entity.EpisodesObserved = 5
	if _, err := s.UpsertEntity(ctx, entity); err != nil {
		t.Fatalf("regressing upsert: %v", err)
	}

	found, err := s.FindEntity(ctx, 102)
	if err != nil {
		t.Fatalf("FindEntity: %v", err)
	}
	if found.EpisodesObserved != 9 {
		t.Errorf("EpisodesObserved = %d, want 9 (maximum ever supplied)", found.EpisodesObserved)
	}
}

func TestUpsertEntityFinishedIsTerminal(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	entity := testEntity(103)
	entity.State = catalog.StateFinished
	if _, err := s.UpsertEntity(ctx, entity); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	entity.State = catalog.StateOngoing
	if _, err := s.UpsertEntity(ctx, entity); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	found, err := s.FindEntity(ctx, 103)
	if err != nil {
		t.Fatalf("FindEntity: %v", err)
	}
	if found.State != catalog.StateFinished {
		t.Errorf("State = %s, want FINISHED to stick", found.State)
	}
}

func TestUpsertEntityRejectsInvalidID(t *testing.T) {
	s := openTestStore(t)
	_, err := s.UpsertEntity(context.Background(), catalog.Entity{ExternalID: 0})
	if err == nil {
		t.Fatal("zero external id should be rejected")
	}
	if !errors.Is(err, services.ErrValidation) {
		t.Errorf("error %v should carry the validation marker", err)
	}
}

func TestFindEntityAbsent(t *testing.T) {
	s := openTestStore(t)
	found, err := s.FindEntity(context.Background(), 9999)
	if err != nil {
		t.Fatalf("FindEntity: %v", err)
	}
	if found != nil {
		t.Errorf("absent entity = %+v, want nil", found)
	}
}

func TestEntitiesByStateAndSeason(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	ongoing := testEntity(200)
	finished := testEntity(201)
	finished.State = catalog.StateFinished
	finished.Season = catalog.SeasonFall
	finished.Year = 2025
	for _, entity := range []catalog.Entity{ongoing, finished} {
		if _, err := s.UpsertEntity(ctx, entity); err != nil {
			t.Fatalf("upsert %d: %v", entity.ExternalID, err)
		}
	}

	got, err := s.EntitiesByState(ctx, catalog.StateOngoing)
	if err != nil {
		t.Fatalf("EntitiesByState: %v", err)
	}
	if len(got) != 1 || got[0].ExternalID != 200 {
		t.Errorf("ongoing entities = %v, want the single id 200", got)
	}

	got, err = s.EntitiesBySeason(ctx, catalog.SeasonFall, 2025)
	if err != nil {
		t.Fatalf("EntitiesBySeason: %v", err)
	}
	if len(got) != 1 || got[0].ExternalID != 201 {
		t.Errorf("fall 2025 entities = %v, want the single id 201", got)
	}
}

func TestFinishCandidates(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	done := testEntity(300)
	done.TotalEpisodes = 12
	done.EpisodesObserved = 12

	partial := testEntity(301)
	partial.TotalEpisodes = 12
	partial.EpisodesObserved = 7

	unknownTotal := testEntity(302)
	unknownTotal.TotalEpisodes = 0
	unknownTotal.EpisodesObserved = 40

	for _, entity := range []catalog.Entity{done, partial, unknownTotal} {
		if _, err := s.UpsertEntity(ctx, entity); err != nil {
			t.Fatalf("upsert %d: %v", entity.ExternalID, err)
		}
	}

	candidates, err := s.FinishCandidates(ctx)
	if err != nil {
		t.Fatalf("FinishCandidates: %v", err)
	}
	if len(candidates) != 1 || candidates[0].ExternalID != 300 {
		t.Errorf("candidates = %v, want only id 300", candidates)
	}
}

func TestSetLifecycleState(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	entity := testEntity(400)
	if _, err := s.UpsertEntity(ctx, entity); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	if err := s.SetLifecycleState(ctx, 400, catalog.StateFinished); err != nil {
		t.Fatalf("SetLifecycleState: %v", err)
	}
	found, err := s.FindEntity(ctx, 400)
	if err != nil {
		t.Fatalf("FindEntity: %v", err)
	}
	if found.State != catalog.StateFinished {
		t.Errorf("State = %s, want FINISHED", found.State)
	}

	// FINISHED is terminal even through the direct setter.
	if err := s.SetLifecycleState(ctx, 400, catalog.StateOngoing); err != nil {
		t.Fatalf("second SetLifecycleState: %v", err)
	}
	found, _ = s.FindEntity(ctx, 400)
	if found.State != catalog.StateFinished {
		t.Errorf("State = %s, want FINISHED to stick", found.State)
	}

	if err := s.SetLifecycleState(ctx, 400, catalog.LifecycleState("BOGUS")); err == nil {
		t.Error("invalid state should be rejected")
	}
}

func TestSchemaMismatchDetected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dubtrack.db")
	s, err := OpenAt(path)
	if err != nil {
		t.Fatalf("OpenAt: %v", err)
	}
	if _, err := s.db.Exec("UPDATE schema_version SET version = 99"); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if _, err := OpenAt(path); !errors.Is(err, ErrSchemaMismatch) {
		t.Errorf("reopen error = %v, want schema mismatch", err)
	}
}
