package catalog

import (
	"strings"
	"time"
)

// LifecycleState represents an entity's airing status.
type LifecycleState string

const (
	StateNotStarted LifecycleState = "NOT_STARTED"
	StateOngoing    LifecycleState = "ONGOING"
	StateFinished   LifecycleState = "FINISHED"
	StateHiatus     LifecycleState = "HIATUS"
	StateCancelled  LifecycleState = "CANCELLED"
)

var allStates = []LifecycleState{
	StateNotStarted,
	StateOngoing,
	StateFinished,
	StateHiatus,
	StateCancelled,
}

// Valid reports whether s is a known lifecycle state.
func (s LifecycleState) Valid() bool {
	for _, state := range allStates {
		if state == s {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions are allowed from s.
func (s LifecycleState) Terminal() bool {
	return s == StateFinished
}

var allowedTransitions = map[LifecycleState][]LifecycleState{
	StateNotStarted: {StateOngoing, StateFinished, StateHiatus, StateCancelled},
	StateOngoing:    {StateFinished, StateHiatus, StateCancelled},
	StateHiatus:     {StateOngoing, StateFinished, StateCancelled},
	StateCancelled:  {},
	StateFinished:   {},
}

// CanTransitionTo reports whether moving from s to next is a forward
// transition. Identity transitions are always allowed.
func (s LifecycleState) CanTransitionTo(next LifecycleState) bool {
	if s == next {
		return true
	}
	for _, candidate := range allowedTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// MergeState applies the forward-only transition rule: fresh wins when the
// transition is legal, otherwise the stored state is retained.
func MergeState(stored, fresh LifecycleState) LifecycleState {
	if !fresh.Valid() {
		return stored
	}
	if !stored.Valid() {
		return fresh
	}
	if stored.CanTransitionTo(fresh) {
		return fresh
	}
	return stored
}

// ExternalLink is one outbound link attached to a catalog entity.
type ExternalLink struct {
	Site     string `json:"site"`
	URL      string `json:"url"`
	Language string `json:"language"`
	Type     string `json:"type"`
}

// Entity is one tracked title, keyed by the upstream catalog id.
type Entity struct {
	ExternalID       int64          `json:"external_id"`
	SecondaryID      int64          `json:"secondary_id,omitempty"`
	TitleRomaji      string         `json:"title_romaji"`
	TitleEnglish     string         `json:"title_english,omitempty"`
	TitleNative      string         `json:"title_native,omitempty"`
	Season           Season         `json:"season"`
	Year             int            `json:"year"`
	TotalEpisodes    int            `json:"total_episodes,omitempty"`
	EpisodesObserved int            `json:"episodes_observed"`
	State            LifecycleState `json:"state"`
	NextEpisodeAt    time.Time      `json:"next_episode_at,omitempty"`
	Popularity       int            `json:"popularity,omitempty"`
	Score            int            `json:"score,omitempty"`

	// Upstream metadata carried for dub heuristics.
	Studios           []string       `json:"studios,omitempty"`
	ExternalLinks     []ExternalLink `json:"external_links,omitempty"`
	StreamingEpisodes []string       `json:"streaming_episodes,omitempty"`

	// Denormalized dub verdict for fast reads.
	HasDub        bool      `json:"has_dub"`
	DubConfidence int       `json:"dub_confidence,omitempty"`
	DubPlatforms  []string  `json:"dub_platforms,omitempty"`
	DubResolvedAt time.Time `json:"dub_resolved_at,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// DisplayTitle picks the best available title variant.
func (e Entity) DisplayTitle() string {
	if title := strings.TrimSpace(e.TitleEnglish); title != "" {
		return title
	}
	if title := strings.TrimSpace(e.TitleRomaji); title != "" {
		return title
	}
	return strings.TrimSpace(e.TitleNative)
}

// Merge reconciles fresh upstream data against the stored record. It returns
// the merged entity and whether any persisted field changed. Monotonic
// invariants are enforced here: episodes observed never regress and the
// lifecycle state only moves forward. Dub fields are cache-only enrichment
// and survive a refresh unless the fresh record carries its own resolution.
func Merge(stored, fresh Entity) (Entity, bool) {
	merged := fresh
	merged.ExternalID = stored.ExternalID

	if merged.SecondaryID == 0 {
		merged.SecondaryID = stored.SecondaryID
	}
	if merged.EpisodesObserved < stored.EpisodesObserved {
		merged.EpisodesObserved = stored.EpisodesObserved
	}
	if merged.TotalEpisodes == 0 {
		merged.TotalEpisodes = stored.TotalEpisodes
	}
	merged.State = MergeState(stored.State, fresh.State)

	if fresh.DubResolvedAt.IsZero() {
		merged.HasDub = stored.HasDub
		merged.DubConfidence = stored.DubConfidence
		merged.DubPlatforms = stored.DubPlatforms
		merged.DubResolvedAt = stored.DubResolvedAt
	}

	return merged, changed(stored, merged)
}

func changed(stored, merged Entity) bool {
	switch {
	case stored.SecondaryID != merged.SecondaryID,
		stored.TitleRomaji != merged.TitleRomaji,
		stored.TitleEnglish != merged.TitleEnglish,
		stored.TitleNative != merged.TitleNative,
		stored.Season != merged.Season,
		stored.Year != merged.Year,
		stored.TotalEpisodes != merged.TotalEpisodes,
		stored.EpisodesObserved != merged.EpisodesObserved,
		stored.State != merged.State,
		!stored.NextEpisodeAt.Equal(merged.NextEpisodeAt),
		stored.Popularity != merged.Popularity,
		stored.Score != merged.Score:
		return true
	}
	if !equalStrings(stored.Studios, merged.Studios) {
		return true
	}
	if !equalStrings(stored.StreamingEpisodes, merged.StreamingEpisodes) {
		return true
	}
	if len(stored.ExternalLinks) != len(merged.ExternalLinks) {
		return true
	}
	for i := range stored.ExternalLinks {
		if stored.ExternalLinks[i] != merged.ExternalLinks[i] {
			return true
		}
	}
	return false
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
