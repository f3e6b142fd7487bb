package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"dubtrack/internal/services"
)

// DubRecord is one persisted (entity, platform) dub row. A row with an empty
// platform records an explicit "confirmed no dub" verdict, which is distinct
// from having no rows at all ("never checked").
type DubRecord struct {
	EntityID   int64
	Platform   string
	HasDub     bool
	Confidence int
	Sources    []string
	ResolvedAt time.Time
}

// SaveDubVerdict replaces the dub rows for one entity with the supplied
// resolution and refreshes the entity's denormalized dub fields. Each new
// resolution supersedes the previous one; verdicts are not versioned.
func (s *Store) SaveDubVerdict(ctx context.Context, entityID int64, hasDub bool, confidence int, platforms, sources []string, resolvedAt time.Time) error {
	ctx = ensureContext(ctx)
	if entityID <= 0 {
		return services.Wrap(services.ErrValidation, "store", "save dub verdict", "entity id must be positive", nil)
	}

	sourcesJSON, err := json.Marshal(emptyIfNil(sources))
	if err != nil {
		return services.Wrap(services.ErrPersistence, "store", "save dub verdict", "marshal sources", err)
	}
	platformsJSON, err := json.Marshal(emptyIfNil(platforms))
	if err != nil {
		return services.Wrap(services.ErrPersistence, "store", "save dub verdict", "marshal platforms", err)
	}
	resolvedAtText := resolvedAt.UTC().Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return services.Wrap(services.ErrPersistence, "store", "save dub verdict", "begin tx", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM dub_records WHERE entity_id = ?", entityID); err != nil {
		return services.Wrap(services.ErrPersistence, "store", "save dub verdict", "clear rows", err)
	}

	rows := platforms
	if len(rows) == 0 {
		// Keyed on the empty platform so the explicit verdict survives.
		rows = []string{""}
	}
	for _, platform := range rows {
		if _, err := tx.ExecContext(ctx, `
            INSERT INTO dub_records (entity_id, platform, has_dub, confidence, sources_json, resolved_at)
            VALUES (?, ?, ?, ?, ?, ?)
            ON CONFLICT(entity_id, platform) DO UPDATE SET
                has_dub = excluded.has_dub,
                confidence = excluded.confidence,
                sources_json = excluded.sources_json,
                resolved_at = excluded.resolved_at`,
			entityID, platform, boolToInt(hasDub), confidence, string(sourcesJSON), resolvedAtText,
		); err != nil {
			return services.Wrap(services.ErrPersistence, "store", "save dub verdict",
				fmt.Sprintf("platform %q", platform), err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
        UPDATE entities SET has_dub = ?, dub_confidence = ?, dub_platforms_json = ?, dub_resolved_at = ?
        WHERE external_id = ?`,
		boolToInt(hasDub), confidence, string(platformsJSON), resolvedAtText, entityID,
	); err != nil {
		return services.Wrap(services.ErrPersistence, "store", "save dub verdict", "denormalize", err)
	}

	if err := tx.Commit(); err != nil {
		return services.Wrap(services.ErrPersistence, "store", "save dub verdict", "commit", err)
	}
	return nil
}

// DubRecords returns the persisted dub rows for one entity. An empty slice
// means the entity has never been resolved.
func (s *Store) DubRecords(ctx context.Context, entityID int64) ([]DubRecord, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `
        SELECT entity_id, platform, has_dub, confidence, sources_json, resolved_at
        FROM dub_records WHERE entity_id = ? ORDER BY platform`, entityID)
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, "store", "dub records",
			fmt.Sprintf("entity id %d", entityID), err)
	}
	defer rows.Close()

	var records []DubRecord
	for rows.Next() {
		var (
			record      DubRecord
			hasDub      int
			sourcesJSON string
			resolvedAt  sql.NullString
		)
		if err := rows.Scan(&record.EntityID, &record.Platform, &hasDub, &record.Confidence, &sourcesJSON, &resolvedAt); err != nil {
			return nil, services.Wrap(services.ErrPersistence, "store", "dub records", "scan row", err)
		}
		record.HasDub = hasDub != 0
		record.ResolvedAt = parseNullableTime(resolvedAt)
		_ = json.Unmarshal([]byte(sourcesJSON), &record.Sources)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, services.Wrap(services.ErrPersistence, "store", "dub records", "iterate", err)
	}
	return records, nil
}
