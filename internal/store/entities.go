package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"dubtrack/internal/catalog"
	"dubtrack/internal/services"
)

// UpsertResult reports the outcome of an entity upsert.
type UpsertResult struct {
	IsNew   bool
	Changed bool
}

// entityMetadata bundles the upstream fields stored as one JSON column.
type entityMetadata struct {
	Studios           []string               `json:"studios,omitempty"`
	ExternalLinks     []catalog.ExternalLink `json:"external_links,omitempty"`
	StreamingEpisodes []string               `json:"streaming_episodes,omitempty"`
}

// UpsertEntity performs an idempotent create-or-update keyed by external id.
// The write is atomic per key: the conflict clause applies the monotonic
// guards (episodes never regress, FINISHED is terminal) at the SQL level, so
// interleaved writers cannot undo them.
func (s *Store) UpsertEntity(ctx context.Context, fresh catalog.Entity) (UpsertResult, error) {
	ctx = ensureContext(ctx)
	if fresh.ExternalID <= 0 {
		return UpsertResult{}, services.Wrap(services.ErrValidation, "store", "upsert entity", "external id must be positive", nil)
	}

	stored, err := s.FindEntity(ctx, fresh.ExternalID)
	if err != nil {
		return UpsertResult{}, err
	}

	merged := fresh
	result := UpsertResult{IsNew: stored == nil}
	if stored != nil {
		merged, result.Changed = catalog.Merge(*stored, fresh)
		if !result.Changed {
			return result, nil
		}
	}

	if err := s.writeEntity(ctx, merged); err != nil {
		return UpsertResult{}, err
	}
	return result, nil
}

func (s *Store) writeEntity(ctx context.Context, e catalog.Entity) error {
	metadata, err := json.Marshal(entityMetadata{
		Studios:           e.Studios,
		ExternalLinks:     e.ExternalLinks,
		StreamingEpisodes: e.StreamingEpisodes,
	})
	if err != nil {
		return services.Wrap(services.ErrPersistence, "store", "upsert entity", "marshal metadata", err)
	}
	platforms, err := json.Marshal(emptyIfNil(e.DubPlatforms))
	if err != nil {
		return services.Wrap(services.ErrPersistence, "store", "upsert entity", "marshal platforms", err)
	}

	updatedAt := e.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	err = s.execWithRetry(ctx, `
        INSERT INTO entities (
            external_id, secondary_id, title_romaji, title_english, title_native,
            season, year, total_episodes, episodes_observed, state,
            next_episode_at, popularity, score, metadata_json,
            has_dub, dub_confidence, dub_platforms_json, dub_resolved_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(external_id) DO UPDATE SET
            secondary_id = CASE WHEN excluded.secondary_id != 0 THEN excluded.secondary_id ELSE entities.secondary_id END,
            title_romaji = excluded.title_romaji,
            title_english = excluded.title_english,
            title_native = excluded.title_native,
            season = excluded.season,
            year = excluded.year,
            total_episodes = CASE WHEN excluded.total_episodes != 0 THEN excluded.total_episodes ELSE entities.total_episodes END,
            episodes_observed = MAX(entities.episodes_observed, excluded.episodes_observed),
            state = CASE WHEN entities.state = 'FINISHED' THEN entities.state ELSE excluded.state END,
            next_episode_at = excluded.next_episode_at,
            popularity = excluded.popularity,
            score = excluded.score,
            metadata_json = excluded.metadata_json,
            has_dub = excluded.has_dub,
            dub_confidence = excluded.dub_confidence,
            dub_platforms_json = excluded.dub_platforms_json,
            dub_resolved_at = excluded.dub_resolved_at,
            updated_at = excluded.updated_at`,
		e.ExternalID, e.SecondaryID, e.TitleRomaji, e.TitleEnglish, e.TitleNative,
		string(e.Season), e.Year, e.TotalEpisodes, e.EpisodesObserved, string(e.State),
		nullableTime(e.NextEpisodeAt), e.Popularity, e.Score, string(metadata),
		boolToInt(e.HasDub), e.DubConfidence, string(platforms), nullableTime(e.DubResolvedAt),
		updatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return services.Wrap(services.ErrPersistence, "store", "upsert entity",
			fmt.Sprintf("external id %d", e.ExternalID), err)
	}
	return nil
}

const entityColumns = `external_id, secondary_id, title_romaji, title_english, title_native,
    season, year, total_episodes, episodes_observed, state,
    next_episode_at, popularity, score, metadata_json,
    has_dub, dub_confidence, dub_platforms_json, dub_resolved_at, updated_at`

// FindEntity looks up one entity by external id. A missing row yields
// (nil, nil).
func (s *Store) FindEntity(ctx context.Context, externalID int64) (*catalog.Entity, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		"SELECT "+entityColumns+" FROM entities WHERE external_id = ?", externalID)
	entity, err := scanEntity(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, services.Wrap(services.ErrPersistence, "store", "find entity",
			fmt.Sprintf("external id %d", externalID), err)
	}
	return entity, nil
}

// EntitiesByState returns all entities in the given lifecycle state.
func (s *Store) EntitiesByState(ctx context.Context, state catalog.LifecycleState) ([]catalog.Entity, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+entityColumns+" FROM entities WHERE state = ? ORDER BY external_id", string(state))
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, "store", "entities by state", string(state), err)
	}
	defer rows.Close()
	return collectEntities(rows)
}

// EntitiesBySeason returns all entities in one season bucket.
func (s *Store) EntitiesBySeason(ctx context.Context, season catalog.Season, year int) ([]catalog.Entity, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+entityColumns+" FROM entities WHERE season = ? AND year = ? ORDER BY external_id",
		string(season), year)
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, "store", "entities by season",
			fmt.Sprintf("%s %d", season, year), err)
	}
	defer rows.Close()
	return collectEntities(rows)
}

// FinishCandidates returns ongoing entities whose observed episode count has
// reached the confirmed total. The upstream catalog's own completion signal
// can lag, so these are promoted independently of the airing listing.
func (s *Store) FinishCandidates(ctx context.Context) ([]catalog.Entity, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+entityColumns+` FROM entities
         WHERE state = ? AND total_episodes > 0 AND episodes_observed >= total_episodes
         ORDER BY external_id`, string(catalog.StateOngoing))
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, "store", "finish candidates", "", err)
	}
	defer rows.Close()
	return collectEntities(rows)
}

// SetLifecycleState transitions an entity's state, honoring the terminal
// FINISHED guard at the SQL level.
func (s *Store) SetLifecycleState(ctx context.Context, externalID int64, state catalog.LifecycleState) error {
	ctx = ensureContext(ctx)
	if !state.Valid() {
		return services.Wrap(services.ErrValidation, "store", "set state", fmt.Sprintf("invalid state %q", state), nil)
	}
	err := s.execWithRetry(ctx, `
        UPDATE entities SET state = ?, updated_at = ?
        WHERE external_id = ? AND state != 'FINISHED'`,
		string(state), time.Now().UTC().Format(time.RFC3339Nano), externalID)
	if err != nil {
		return services.Wrap(services.ErrPersistence, "store", "set state",
			fmt.Sprintf("external id %d", externalID), err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntity(row rowScanner) (*catalog.Entity, error) {
	var (
		e             catalog.Entity
		season, state string
		nextEpisodeAt sql.NullString
		metadataJSON  string
		hasDub        int
		platformsJSON string
		dubResolvedAt sql.NullString
		updatedAt     string
	)
	err := row.Scan(
		&e.ExternalID, &e.SecondaryID, &e.TitleRomaji, &e.TitleEnglish, &e.TitleNative,
		&season, &e.Year, &e.TotalEpisodes, &e.EpisodesObserved, &state,
		&nextEpisodeAt, &e.Popularity, &e.Score, &metadataJSON,
		&hasDub, &e.DubConfidence, &platformsJSON, &dubResolvedAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.Season = catalog.Season(season)
	e.State = catalog.LifecycleState(state)
	e.NextEpisodeAt = parseNullableTime(nextEpisodeAt)
	e.HasDub = hasDub != 0
	e.DubResolvedAt = parseNullableTime(dubResolvedAt)
	if parsed, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
		e.UpdatedAt = parsed
	}

	var metadata entityMetadata
	if err := json.Unmarshal([]byte(metadataJSON), &metadata); err == nil {
		e.Studios = metadata.Studios
		e.ExternalLinks = metadata.ExternalLinks
		e.StreamingEpisodes = metadata.StreamingEpisodes
	}
	var platforms []string
	if err := json.Unmarshal([]byte(platformsJSON), &platforms); err == nil && len(platforms) > 0 {
		e.DubPlatforms = platforms
	}
	return &e, nil
}

func collectEntities(rows *sql.Rows) ([]catalog.Entity, error) {
	var entities []catalog.Entity
	for rows.Next() {
		entity, err := scanEntity(rows)
		if err != nil {
			return nil, services.Wrap(services.ErrPersistence, "store", "scan entity", "", err)
		}
		entities = append(entities, *entity)
	}
	if err := rows.Err(); err != nil {
		return nil, services.Wrap(services.ErrPersistence, "store", "iterate entities", "", err)
	}
	return entities, nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func emptyIfNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
