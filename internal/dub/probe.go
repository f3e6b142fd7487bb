package dub

import (
	"context"
	"time"

	"dubtrack/internal/catalog"
)

// Adapter source names, in cascade priority order.
const (
	SourceOverride  = "override"
	SourcePersisted = "persisted"
	SourceCatalog   = "catalog"
	SourceCommunity = "community"
	SourceScrape    = "scrape"
	SourcePattern   = "pattern"
)

// Per-source confidence weights.
const (
	weightOverride  = 100
	weightPersisted = 0
	weightCatalog   = 30
	weightCommunity = 40
	weightScrape    = 20
	weightPattern   = 30
)

// Probe is one adapter's partial verdict. Exactly one of the two variants
// applies: an applicable result carrying evidence, or a not-applicable
// result carrying a diagnostic.
type Probe struct {
	Source     string
	Applicable bool

	HasDub    bool
	Platforms []string
	Weight    int
	// Authoritative marks the override source, which determines the final
	// verdict by itself.
	Authoritative bool
	// NeedsCorroboration marks sources whose false-positive rate is too
	// high to count alone.
	NeedsCorroboration bool

	Reason string
}

// Applicable builds the evidence-carrying variant.
func Applicable(source string, hasDub bool, platforms []string, weight int) Probe {
	return Probe{
		Source:     source,
		Applicable: true,
		HasDub:     hasDub,
		Platforms:  platforms,
		Weight:     weight,
	}
}

// NotApplicable builds the degraded variant with a diagnostic.
func NotApplicable(source, reason string) Probe {
	return Probe{Source: source, Reason: reason}
}

// Adapter is the uniform probe contract. Implementations never return an
// error to the caller: transport and parse failures are caught internally
// and reported as a not-applicable probe, so a single flaky source degrades
// resolution rather than aborting it.
type Adapter interface {
	Name() string
	Probe(ctx context.Context, entity catalog.Entity) Probe
}

// Verdict is the resolved dub status for one entity.
type Verdict struct {
	EntityID   int64     `json:"entity_id"`
	HasDub     bool      `json:"has_dub"`
	Confidence int       `json:"confidence"`
	Platforms  []string  `json:"platforms,omitempty"`
	Sources    []string  `json:"sources,omitempty"`
	ResolvedAt time.Time `json:"resolved_at"`
}
