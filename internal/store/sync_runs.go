package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"dubtrack/internal/services"
)

// JobType identifies which sync job produced a run record.
type JobType string

const (
	JobSeasonSync  JobType = "SEASON_SYNC"
	JobDailyUpdate JobType = "DAILY_UPDATE"
)

// RunStatus is the lifecycle of a sync run.
type RunStatus string

const (
	RunRunning RunStatus = "RUNNING"
	RunSuccess RunStatus = "SUCCESS"
	RunError   RunStatus = "ERROR"
)

// SyncRun is the append-only record of one sync job execution.
type SyncRun struct {
	ID          string
	JobType     JobType
	Status      RunStatus
	Added       int
	Updated     int
	Errors      []string
	StartedAt   time.Time
	CompletedAt time.Time
}

// CreateRun inserts a RUNNING run record and returns it.
func (s *Store) CreateRun(ctx context.Context, jobType JobType) (*SyncRun, error) {
	ctx = ensureContext(ctx)
	run := &SyncRun{
		ID:        uuid.NewString(),
		JobType:   jobType,
		Status:    RunRunning,
		StartedAt: time.Now().UTC(),
	}
	err := s.execWithRetry(ctx, `
        INSERT INTO sync_runs (id, job_type, status, added, updated, errors_json, started_at)
        VALUES (?, ?, ?, 0, 0, '[]', ?)`,
		run.ID, string(run.JobType), string(run.Status),
		run.StartedAt.Format(time.RFC3339Nano))
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, "store", "create run", string(jobType), err)
	}
	return run, nil
}

// CompleteRun records a run's terminal outcome. The completed_at guard makes
// completion a set-once operation.
func (s *Store) CompleteRun(ctx context.Context, run *SyncRun) error {
	ctx = ensureContext(ctx)
	if run == nil || run.ID == "" {
		return services.Wrap(services.ErrValidation, "store", "complete run", "missing run id", nil)
	}
	errorsJSON, err := json.Marshal(emptyIfNil(run.Errors))
	if err != nil {
		return services.Wrap(services.ErrPersistence, "store", "complete run", "marshal errors", err)
	}
	if run.CompletedAt.IsZero() {
		run.CompletedAt = time.Now().UTC()
	}
	err = s.execWithRetry(ctx, `
        UPDATE sync_runs SET status = ?, added = ?, updated = ?, errors_json = ?, completed_at = ?
        WHERE id = ? AND completed_at IS NULL`,
		string(run.Status), run.Added, run.Updated, string(errorsJSON),
		run.CompletedAt.Format(time.RFC3339Nano), run.ID)
	if err != nil {
		return services.Wrap(services.ErrPersistence, "store", "complete run", run.ID, err)
	}
	return nil
}

// RecentRuns lists run records newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]SyncRun, error) {
	ctx = ensureContext(ctx)
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, job_type, status, added, updated, errors_json, started_at, completed_at
        FROM sync_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, "store", "recent runs", "", err)
	}
	defer rows.Close()

	var runs []SyncRun
	for rows.Next() {
		var (
			run         SyncRun
			jobType     string
			status      string
			errorsJSON  string
			startedAt   string
			completedAt sql.NullString
		)
		if err := rows.Scan(&run.ID, &jobType, &status, &run.Added, &run.Updated, &errorsJSON, &startedAt, &completedAt); err != nil {
			return nil, services.Wrap(services.ErrPersistence, "store", "recent runs", "scan row", err)
		}
		run.JobType = JobType(jobType)
		run.Status = RunStatus(status)
		_ = json.Unmarshal([]byte(errorsJSON), &run.Errors)
		if parsed, err := time.Parse(time.RFC3339Nano, startedAt); err == nil {
			run.StartedAt = parsed
		}
		run.CompletedAt = parseNullableTime(completedAt)
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, services.Wrap(services.ErrPersistence, "store", "recent runs", "iterate", err)
	}
	return runs, nil
}
