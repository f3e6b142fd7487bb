package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"dubtrack/internal/catalog"
	"dubtrack/internal/dubcache"
	"dubtrack/internal/logging"
	"dubtrack/internal/services"
	"dubtrack/internal/sources/anilist"
	"dubtrack/internal/store"
)

// EntityStore is the persistence surface the orchestrator consumes.
type EntityStore interface {
	UpsertEntity(ctx context.Context, e catalog.Entity) (store.UpsertResult, error)
	EntitiesByState(ctx context.Context, state catalog.LifecycleState) ([]catalog.Entity, error)
	FinishCandidates(ctx context.Context) ([]catalog.Entity, error)
	SetLifecycleState(ctx context.Context, externalID int64, state catalog.LifecycleState) error
	CreateRun(ctx context.Context, jobType store.JobType) (*store.SyncRun, error)
	CompleteRun(ctx context.Context, run *store.SyncRun) error
}

// Orchestrator pages the upstream catalog and diff-upserts into the store.
type Orchestrator struct {
	store    EntityStore
	catalog  anilist.Lister
	cache    dubcache.Cache
	pageSize int
	lockDir  string
	logger   *slog.Logger
	now      func() time.Time
}

// Options configures optional orchestrator collaborators.
type Options struct {
	// Cache, when set, holds season bucket snapshots for merge-on-refresh
	// and has entity verdict keys invalidated on lifecycle transitions.
	Cache    dubcache.Cache
	PageSize int
	// LockDir holds the advisory per-job-type run locks. Empty disables
	// overlap detection.
	LockDir string
	Logger  *slog.Logger
	Now     func() time.Time
}

const defaultPageSize = 50

// New creates an orchestrator over the given store and catalog client.
func New(entityStore EntityStore, lister anilist.Lister, opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	pageSize := opts.PageSize
	if pageSize <= 0 || pageSize > 50 {
		pageSize = defaultPageSize
	}
	return &Orchestrator{
		store:    entityStore,
		catalog:  lister,
		cache:    opts.Cache,
		pageSize: pageSize,
		lockDir:  opts.LockDir,
		logger:   logging.WithComponent(logger, "syncer"),
		now:      now,
	}
}

// SeasonSync pages through one season's catalog listing (plus the following
// season, pre-seeding upcoming titles) and upserts every entity. Item-level
// failures are collected without aborting the run; a page fetch failure
// aborts, because a missing page would silently truncate the season.
func (o *Orchestrator) SeasonSync(ctx context.Context, season catalog.Season, year int) (*store.SyncRun, error) {
	// Season and year default independently: an explicit season with a zero
	// year still gets the current year, never a literal year 0.
	current, currentYear := catalog.CurrentSeason(o.now())
	if !season.Valid() {
		season = current
	}
	if year == 0 {
		year = currentYear
	}

	run, err := o.store.CreateRun(ctx, store.JobSeasonSync)
	if err != nil {
		return nil, err
	}
	lock := acquireRunLock(o.lockDir, store.JobSeasonSync)
	defer lock.release()
	if lock.Overlapping() {
		note := "another season sync appears to be running"
		o.logger.Warn(note, logging.String("run_id", run.ID))
		run.Errors = append(run.Errors, note)
	}

	o.logger.Info("season sync started",
		logging.String("run_id", run.ID),
		logging.String("season", string(season)),
		logging.Int("year", year))

	if err := o.syncSeason(ctx, run, season, year); err != nil {
		return o.failRun(ctx, run, err)
	}

	nextSeason, rollover := season.Next()
	nextYear := year
	if rollover {
		nextYear++
	}
	if err := o.syncSeason(ctx, run, nextSeason, nextYear); err != nil {
		return o.failRun(ctx, run, err)
	}

	return o.completeRun(ctx, run)
}

func (o *Orchestrator) syncSeason(ctx context.Context, run *store.SyncRun, season catalog.Season, year int) error {
	key := dubcache.SeasonKey(string(season), year)
	if catalog.SeasonAge(season, year, o.now()) > 0 && o.seasonFresh(key) {
		// A finished season whose bucket snapshot is within its TTL is
		// stable; refetching it would be wasted upstream calls.
		o.logger.Info("season bucket still fresh, skipping refresh",
			logging.String("season", string(season)),
			logging.Int("year", year))
		return nil
	}

	var fresh []catalog.Entity
	for page := 1; ; page++ {
		listing, err := o.fetchSeasonPage(ctx, season, year, page)
		if err != nil {
			return fmt.Errorf("fetch %s %d page %d: %w", season, year, page, err)
		}
		fresh = append(fresh, listing.Entities...)
		if !listing.HasNextPage {
			break
		}
	}

	merged := dubcache.MergeEntities(o.cachedSeason(key), fresh)
	o.upsertAll(ctx, run, merged)
	o.storeSeason(key, season, year, merged)
	return nil
}

// fetchSeasonPage retries a failed page fetch once, but only when the failure
// looks transient; malformed queries fail the same way twice.
func (o *Orchestrator) fetchSeasonPage(ctx context.Context, season catalog.Season, year, page int) (*anilist.Page, error) {
	listing, err := o.catalog.SeasonPage(ctx, season, year, page, o.pageSize)
	if err == nil {
		return listing, nil
	}
	if !services.IsRetriable(err) {
		return nil, err
	}
	o.logger.Warn("page fetch failed, retrying once",
		logging.String("season", string(season)),
		logging.Int("page", page),
		logging.Error(err))
	return o.catalog.SeasonPage(ctx, season, year, page, o.pageSize)
}

// seasonFresh asks the snapshot tier whether a bucket is within its TTL. The
// memo tier alone never answers this; only persisted snapshots count.
func (o *Orchestrator) seasonFresh(key string) bool {
	freshness, ok := o.cache.(interface{ Fresh(key string) bool })
	return ok && freshness.Fresh(key)
}

func (o *Orchestrator) cachedSeason(key string) []catalog.Entity {
	if o.cache == nil {
		return nil
	}
	raw, ok := o.cache.Get(key)
	if !ok {
		return nil
	}
	var entities []catalog.Entity
	if err := json.Unmarshal(raw, &entities); err != nil {
		o.logger.Warn("discarding unreadable season bucket",
			logging.String("key", key),
			logging.Error(err))
		return nil
	}
	return entities
}

func (o *Orchestrator) storeSeason(key string, season catalog.Season, year int, entities []catalog.Entity) {
	if o.cache == nil || len(entities) == 0 {
		return
	}
	raw, err := json.Marshal(entities)
	if err != nil {
		return
	}
	if err := o.cache.Put(key, raw, dubcache.SeasonTTL(season, year, o.now())); err != nil {
		o.logger.Warn("season bucket write failed",
			logging.String("key", key),
			logging.Error(err))
	}
}

func (o *Orchestrator) upsertAll(ctx context.Context, run *store.SyncRun, entities []catalog.Entity) {
	for _, entity := range entities {
		result, err := o.store.UpsertEntity(ctx, entity)
		if err != nil {
			run.Errors = append(run.Errors, fmt.Sprintf("upsert %d (%s): %v",
				entity.ExternalID, entity.DisplayTitle(), err))
			continue
		}
		switch {
		case result.IsNew:
			run.Added++
		case result.Changed:
			run.Updated++
		}
	}
}

// DailyUpdate refreshes ongoing entities that the catalog still lists as
// airing, then promotes finish candidates whose episode counts indicate
// completion even when the catalog's own signal lags.
func (o *Orchestrator) DailyUpdate(ctx context.Context) (*store.SyncRun, error) {
	run, err := o.store.CreateRun(ctx, store.JobDailyUpdate)
	if err != nil {
		return nil, err
	}
	lock := acquireRunLock(o.lockDir, store.JobDailyUpdate)
	defer lock.release()
	if lock.Overlapping() {
		note := "another daily update appears to be running"
		o.logger.Warn(note, logging.String("run_id", run.ID))
		run.Errors = append(run.Errors, note)
	}

	o.logger.Info("daily update started", logging.String("run_id", run.ID))

	ongoing, err := o.store.EntitiesByState(ctx, catalog.StateOngoing)
	if err != nil {
		return o.failRun(ctx, run, err)
	}

	airing, err := o.airingIDs(ctx)
	if err != nil {
		return o.failRun(ctx, run, err)
	}

	// Entities the catalog has dropped from "airing" are usually finished;
	// re-fetching them would be wasted calls. Only the intersection gets a
	// fresh detail fetch.
	for _, entity := range ongoing {
		if _, listed := airing[entity.ExternalID]; !listed {
			continue
		}
		fresh, err := o.catalog.MediaByID(ctx, entity.ExternalID)
		if err != nil {
			run.Errors = append(run.Errors, fmt.Sprintf("refresh %d (%s): %v",
				entity.ExternalID, entity.DisplayTitle(), err))
			continue
		}
		result, err := o.store.UpsertEntity(ctx, *fresh)
		if err != nil {
			run.Errors = append(run.Errors, fmt.Sprintf("upsert %d (%s): %v",
				entity.ExternalID, entity.DisplayTitle(), err))
			continue
		}
		if result.Changed {
			run.Updated++
		}
		if fresh.EpisodesObserved < entity.EpisodesObserved {
			// The stored value already won via the never-regress merge rule;
			// the anomaly is still recorded on the run without failing it.
			o.logger.Warn("episode count regression from upstream",
				logging.Int64("entity_id", entity.ExternalID),
				logging.Int("stored", entity.EpisodesObserved),
				logging.Int("fresh", fresh.EpisodesObserved))
			run.Errors = append(run.Errors, fmt.Sprintf(
				"episode count regression for %d (%s): stored %d, upstream %d",
				entity.ExternalID, entity.DisplayTitle(),
				entity.EpisodesObserved, fresh.EpisodesObserved))
		}
	}

	// Finish candidates are queried independently of the airing listing:
	// the catalog's completion signal can lag a full pass or more.
	candidates, err := o.store.FinishCandidates(ctx)
	if err != nil {
		return o.failRun(ctx, run, err)
	}
	for _, entity := range candidates {
		if err := o.store.SetLifecycleState(ctx, entity.ExternalID, catalog.StateFinished); err != nil {
			run.Errors = append(run.Errors, fmt.Sprintf("finish %d (%s): %v",
				entity.ExternalID, entity.DisplayTitle(), err))
			continue
		}
		run.Updated++
		o.logger.Info("entity promoted to finished",
			logging.Int64("entity_id", entity.ExternalID),
			logging.String("title", entity.DisplayTitle()))
		if o.cache != nil {
			// Lifecycle transitions change TTL policy; force a re-check.
			_ = o.cache.Invalidate(dubcache.VerdictKey(entity.ExternalID))
		}
	}

	return o.completeRun(ctx, run)
}

func (o *Orchestrator) airingIDs(ctx context.Context) (map[int64]struct{}, error) {
	ids := make(map[int64]struct{})
	for page := 1; ; page++ {
		listing, err := o.catalog.AiringPage(ctx, page, o.pageSize)
		if err != nil {
			return nil, fmt.Errorf("fetch airing page %d: %w", page, err)
		}
		for _, entity := range listing.Entities {
			ids[entity.ExternalID] = struct{}{}
		}
		if !listing.HasNextPage {
			return ids, nil
		}
	}
}

func (o *Orchestrator) completeRun(ctx context.Context, run *store.SyncRun) (*store.SyncRun, error) {
	// Item-level failures leave the run successful; only a fetch failure
	// flips the status.
	run.Status = store.RunSuccess
	run.CompletedAt = o.now().UTC()
	if err := o.store.CompleteRun(ctx, run); err != nil {
		return run, err
	}
	o.logger.Info("sync run completed",
		logging.String("run_id", run.ID),
		logging.String("job_type", string(run.JobType)),
		logging.Int("added", run.Added),
		logging.Int("updated", run.Updated),
		logging.Int("errors", len(run.Errors)))
	return run, nil
}

func (o *Orchestrator) failRun(ctx context.Context, run *store.SyncRun, cause error) (*store.SyncRun, error) {
	run.Status = store.RunError
	run.Errors = append(run.Errors, cause.Error())
	run.CompletedAt = o.now().UTC()
	if err := o.store.CompleteRun(ctx, run); err != nil {
		o.logger.Error("failed to record failed run",
			logging.String("run_id", run.ID),
			logging.Error(err))
	}
	o.logger.Error("sync run failed",
		logging.String("run_id", run.ID),
		logging.String("job_type", string(run.JobType)),
		logging.Error(cause))
	return run, cause
}
