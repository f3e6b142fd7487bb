package store

import (
	"context"
	"testing"
	"time"
)

func TestCreateAndCompleteRun(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, JobSeasonSync)
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	if run.ID == "" {
		t.Fatal("run id should be assigned")
	}
	if run.Status != RunRunning {
		t.Errorf("Status = %s, want RUNNING", run.Status)
	}

	run.Status = RunSuccess
	run.Added = 4
	run.Updated = 2
	run.Errors = []string{"upsert 7: boom"}
	if err := s.CompleteRun(ctx, run); err != nil {
		t.Fatalf("CompleteRun: %v", err)
	}

	runs, err := s.RecentRuns(ctx, 10)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("got %d runs, want 1", len(runs))
	}
	got := runs[0]
	if got.Status != RunSuccess || got.Added != 4 || got.Updated != 2 {
		t.Errorf("run = %+v, want SUCCESS/4/2", got)
	}
	if len(got.Errors) != 1 || got.Errors[0] != "upsert 7: boom" {
		t.Errorf("Errors = %v", got.Errors)
	}
	if got.CompletedAt.IsZero() {
		t.Error("CompletedAt should be recorded")
	}
}

func TestCompleteRunIsSetOnce(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, JobDailyUpdate)
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	run.Status = RunSuccess
	run.Added = 1
	if err := s.CompleteRun(ctx, run); err != nil {
		t.Fatalf("first CompleteRun: %v", err)
	}

	// A second completion is silently ignored.
	run.Status = RunError
	run.Added = 99
	run.CompletedAt = run.CompletedAt.Add(time.Hour)
	if err := s.CompleteRun(ctx, run); err != nil {
		t.Fatalf("second CompleteRun: %v", err)
	}

	runs, err := s.RecentRuns(ctx, 1)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if runs[0].Status != RunSuccess || runs[0].Added != 1 {
		t.Errorf("run = %+v, first completion should stick", runs[0])
	}
}

func TestCompleteRunRejectsMissingID(t *testing.T) {
	s := openTestStore(t)
	if err := s.CompleteRun(context.Background(), &SyncRun{}); err == nil {
		t.Error("missing run id should be rejected")
	}
	if err := s.CompleteRun(context.Background(), nil); err == nil {
		t.Error("nil run should be rejected")
	}
}

func TestRecentRunsNewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first, err := s.CreateRun(ctx, JobSeasonSync)
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	// Separate started_at values so ordering is deterministic.
	if err := s.execWithRetry(ctx, "UPDATE sync_runs SET started_at = ? WHERE id = ?",
		time.Now().Add(-time.Hour).UTC().Format(time.RFC3339Nano), first.ID); err != nil {
		t.Fatalf("backdate run: %v", err)
	}

	second, err := s.CreateRun(ctx, JobDailyUpdate)
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	runs, err := s.RecentRuns(ctx, 10)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d runs, want 2", len(runs))
	}
	if runs[0].ID != second.ID || runs[1].ID != first.ID {
		t.Errorf("order = [%s %s], want newest first", runs[0].ID, runs[1].ID)
	}

	runs, err = s.RecentRuns(ctx, 1)
	if err != nil {
		t.Fatalf("RecentRuns limit: %v", err)
	}
	if len(runs) != 1 {
		t.Errorf("limit 1 returned %d runs", len(runs))
	}
}
