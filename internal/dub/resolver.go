package dub

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"dubtrack/internal/catalog"
	"dubtrack/internal/dubcache"
	"dubtrack/internal/logging"
	"dubtrack/internal/services"
	"dubtrack/internal/sources/animeschedule"
	"dubtrack/internal/sources/jikan"
)

// ResolverConfig bundles the resolver's collaborators and tuning.
type ResolverConfig struct {
	Overrides           *Overrides
	Store               VerdictStore
	Community           jikan.FactFinder
	Scrape              animeschedule.StreamLister
	Cache               dubcache.Cache
	PopularityThreshold int
	Workers             int
	Logger              *slog.Logger
	Now                 func() time.Time
}

// Resolver fans out to the adapter cascade and fuses partial verdicts into
// one decision per entity.
type Resolver struct {
	adapters []Adapter
	cache    dubcache.Cache
	store    VerdictStore
	workers  int
	logger   *slog.Logger
	now      func() time.Time
}

const defaultWorkers = 3

// NewResolver assembles the adapter cascade in priority order. Community and
// scrape adapters are skipped when their clients are absent.
func NewResolver(cfg ResolverConfig) *Resolver {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.WithComponent(logger, "dub")

	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	popularity := cfg.PopularityThreshold
	if popularity <= 0 {
		popularity = 50000
	}

	// Cascade priority order is load-bearing: the override short-circuit
	// and the corroboration rule both depend on it.
	adapters := []Adapter{
		&overrideAdapter{overrides: cfg.Overrides, logger: logger},
	}
	if cfg.Store != nil {
		adapters = append(adapters, &persistedAdapter{store: cfg.Store})
	}
	adapters = append(adapters, &catalogAdapter{})
	if cfg.Community != nil {
		adapters = append(adapters, &communityAdapter{
			client:              cfg.Community,
			popularityThreshold: popularity,
			logger:              logger,
		})
	}
	if cfg.Scrape != nil {
		adapters = append(adapters, &scrapeAdapter{client: cfg.Scrape})
	}
	adapters = append(adapters, &patternAdapter{})

	return &Resolver{
		adapters: adapters,
		cache:    cfg.Cache,
		store:    cfg.Store,
		workers:  workers,
		logger:   logger,
		now:      now,
	}
}

// Resolve computes the dub verdict for one entity: cache first, then the
// adapter cascade. The verdict is always returned; a persistence failure is
// reported alongside it so batch callers can record and continue.
func (r *Resolver) Resolve(ctx context.Context, entity catalog.Entity) (Verdict, error) {
	key := dubcache.VerdictKey(entity.ExternalID)
	if r.cache != nil {
		if raw, ok := r.cache.Get(key); ok {
			var cached Verdict
			if err := json.Unmarshal(raw, &cached); err == nil {
				return cached, nil
			}
			_ = r.cache.Invalidate(key)
		}
	}

	verdict, authoritative := r.runCascade(ctx, entity)

	if r.cache != nil {
		if raw, err := json.Marshal(verdict); err == nil {
			ttl := dubcache.TTLFor(entity.State, entity.Season, entity.Year, r.now())
			if err := r.cache.Put(key, raw, ttl); err != nil {
				r.logger.Warn("verdict cache write failed",
					logging.Int64("entity_id", entity.ExternalID),
					logging.Error(err))
			}
		}
	}

	// Positive verdicts are denormalized for fast reads; authoritative
	// no-dub verdicts persist too so they survive cache eviction.
	if r.store != nil && (verdict.HasDub || authoritative) {
		err := r.store.SaveDubVerdict(ctx, verdict.EntityID, verdict.HasDub,
			verdict.Confidence, verdict.Platforms, verdict.Sources, verdict.ResolvedAt)
		if err != nil {
			return verdict, services.Wrap(services.ErrPersistence, "dub", "persist verdict", "", err)
		}
	}

	return verdict, nil
}

func (r *Resolver) runCascade(ctx context.Context, entity catalog.Entity) (Verdict, bool) {
	verdict := Verdict{EntityID: entity.ExternalID, ResolvedAt: r.now().UTC()}

	var applicable []Probe
	for _, adapter := range r.adapters {
		probe := adapter.Probe(ctx, entity)
		if !probe.Applicable {
			r.logger.Debug("adapter not applicable",
				logging.Int64("entity_id", entity.ExternalID),
				logging.String("source", probe.Source),
				logging.String("reason", probe.Reason))
			continue
		}
		if probe.Authoritative {
			// The override fully determines the verdict and discards all
			// other contributions.
			verdict.HasDub = probe.HasDub
			verdict.Confidence = weightOverride
			verdict.Platforms = catalog.NormalizePlatforms(probe.Platforms)
			verdict.Sources = []string{probe.Source}
			return verdict, true
		}
		applicable = append(applicable, probe)
	}

	corroborated := false
	for _, probe := range applicable {
		if probe.HasDub && !probe.NeedsCorroboration && probe.Weight > 0 {
			corroborated = true
			break
		}
	}

	var (
		confidence int
		platforms  []string
		sources    []string
		hasDub     bool
	)
	for _, probe := range applicable {
		if probe.NeedsCorroboration && !corroborated {
			r.logger.Debug("uncorroborated source discarded",
				logging.Int64("entity_id", entity.ExternalID),
				logging.String("source", probe.Source))
			continue
		}
		sources = append(sources, probe.Source)
		if !probe.HasDub {
			continue
		}
		if probe.Weight > 0 {
			hasDub = true
			confidence += probe.Weight
			platforms = append(platforms, probe.Platforms...)
		}
	}

	// The persisted tier carries no weight but is authoritative for the
	// boolean when no stronger source produced evidence.
	if !hasDub {
		for _, probe := range applicable {
			if probe.Source == SourcePersisted {
				hasDub = probe.HasDub
				platforms = append(platforms, probe.Platforms...)
				break
			}
		}
	}

	if confidence > 100 {
		confidence = 100
	}
	verdict.HasDub = hasDub
	verdict.Confidence = confidence
	verdict.Platforms = catalog.NormalizePlatforms(platforms)
	verdict.Sources = sources
	return verdict, false
}

// Invalidate drops the cached verdict for one entity, forcing the next
// resolution through the cascade.
func (r *Resolver) Invalidate(entityID int64) {
	if r.cache != nil {
		_ = r.cache.Invalidate(dubcache.VerdictKey(entityID))
	}
}
