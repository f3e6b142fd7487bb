package dubcache

import (
	"time"

	"dubtrack/internal/catalog"
)

// TTL policy. The memo tier caps at defaultMemoTTL unless configured
// otherwise; the snapshot tier uses the lifecycle-derived values below.
const (
	defaultMemoTTL = 6 * time.Hour

	// ActiveTTL applies to entities still airing or upcoming.
	ActiveTTL = 24 * time.Hour
	// RecentTTL applies to entities whose season ended within the recency
	// window: finished, but dub announcements still happen.
	RecentTTL = 7 * 24 * time.Hour
	// HistoricalTTL applies to entities whose season has been over for more
	// than the recency window; their data is stable.
	HistoricalTTL = 180 * 24 * time.Hour

	// historicalCutoff separates recently-finished from historical seasons.
	historicalCutoff = 6 * 30 * 24 * time.Hour
)

// TTLFor derives a snapshot TTL from the subject's lifecycle state and how
// long ago its season bucket ended. Pure function of its inputs.
func TTLFor(state catalog.LifecycleState, season catalog.Season, year int, now time.Time) time.Duration {
	switch state {
	case catalog.StateOngoing, catalog.StateNotStarted, catalog.StateHiatus:
		return ActiveTTL
	}
	if !season.Valid() || year == 0 {
		return RecentTTL
	}
	if catalog.SeasonAge(season, year, now) > historicalCutoff {
		return HistoricalTTL
	}
	return RecentTTL
}

// SeasonTTL derives a snapshot TTL for a whole season bucket. Buckets still
// in progress or upcoming churn daily; finished buckets age like finished
// entities.
func SeasonTTL(season catalog.Season, year int, now time.Time) time.Duration {
	if !season.Valid() || year == 0 {
		return RecentTTL
	}
	if catalog.SeasonAge(season, year, now) < 0 {
		return ActiveTTL
	}
	return TTLFor(catalog.StateFinished, season, year, now)
}

// MergeEntities reconciles a background refresh against the previously
// cached season bucket. Fresh fields win, but cache-only enrichments (a
// resolved dub verdict the refreshed source knows nothing about) are
// preserved unless the refresh supplies its own resolution. Entities absent
// from the refresh are dropped.
func MergeEntities(cached, fresh []catalog.Entity) []catalog.Entity {
	previous := make(map[int64]catalog.Entity, len(cached))
	for _, entity := range cached {
		previous[entity.ExternalID] = entity
	}
	merged := make([]catalog.Entity, 0, len(fresh))
	for _, entity := range fresh {
		if stored, ok := previous[entity.ExternalID]; ok {
			reconciled, _ := catalog.Merge(stored, entity)
			merged = append(merged, reconciled)
			continue
		}
		merged = append(merged, entity)
	}
	return merged
}
