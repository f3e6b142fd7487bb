package dub

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"dubtrack/internal/catalog"
	"dubtrack/internal/logging"
	"dubtrack/internal/services"
	"dubtrack/internal/sources/animeschedule"
	"dubtrack/internal/sources/jikan"
	"dubtrack/internal/store"
)

// VerdictStore is the persistence surface the adapters and resolver consume.
type VerdictStore interface {
	DubRecords(ctx context.Context, entityID int64) ([]store.DubRecord, error)
	SaveDubVerdict(ctx context.Context, entityID int64, hasDub bool, confidence int, platforms, sources []string, resolvedAt time.Time) error
}

// overrideAdapter consults the manually curated override file. A hit fully
// determines the resolution.
type overrideAdapter struct {
	overrides *Overrides
	logger    *slog.Logger
}

func (a *overrideAdapter) Name() string { return SourceOverride }

func (a *overrideAdapter) Probe(ctx context.Context, entity catalog.Entity) Probe {
	entry, found, err := a.overrides.Lookup(entity.ExternalID, entity.SecondaryID)
	if err != nil {
		a.logger.Warn("override lookup failed", logging.Error(err))
		return NotApplicable(SourceOverride, err.Error())
	}
	if !found {
		return NotApplicable(SourceOverride, "no override entry")
	}
	probe := Applicable(SourceOverride, entry.Status != OverrideNone, entry.Platforms, weightOverride)
	probe.Authoritative = true
	return probe
}

// persistedAdapter checks previously-resolved dub rows. A prior explicit
// "no dub" row is itself a valid verdict; only the complete absence of rows
// means the entity has never been checked.
type persistedAdapter struct {
	store VerdictStore
}

func (a *persistedAdapter) Name() string { return SourcePersisted }

func (a *persistedAdapter) Probe(ctx context.Context, entity catalog.Entity) Probe {
	records, err := a.store.DubRecords(ctx, entity.ExternalID)
	if err != nil {
		return NotApplicable(SourcePersisted, err.Error())
	}
	if len(records) == 0 {
		return NotApplicable(SourcePersisted, "never resolved")
	}
	hasDub := false
	var platforms []string
	for _, record := range records {
		if record.HasDub {
			hasDub = true
		}
		if record.Platform != "" {
			platforms = append(platforms, record.Platform)
		}
	}
	return Applicable(SourcePersisted, hasDub, platforms, weightPersisted)
}

// Licensors and studios known to produce English dubs.
var dubCompanies = map[string]struct{}{
	"funimation":               {},
	"crunchyroll":              {},
	"aniplex of america":       {},
	"sentai filmworks":         {},
	"viz media":                {},
	"bang zoom! entertainment": {},
	"ocean productions":        {},
	"nyav post":                {},
	"sound cadence studios":    {},
}

var majorLicensors = map[string]struct{}{
	"crunchyroll":        {},
	"funimation":         {},
	"aniplex of america": {},
	"netflix":            {},
	"sentai filmworks":   {},
}

func knownDubCompany(names []string) (string, bool) {
	for _, name := range names {
		if _, ok := dubCompanies[strings.ToLower(strings.TrimSpace(name))]; ok {
			return name, true
		}
	}
	return "", false
}

// catalogAdapter inspects the upstream catalog entity's own metadata for
// English-audio indicators: dub-titled streaming episodes, English-language
// external links on known platforms, and dub-producing studios.
type catalogAdapter struct{}

func (a *catalogAdapter) Name() string { return SourceCatalog }

func (a *catalogAdapter) Probe(ctx context.Context, entity catalog.Entity) Probe {
	var platforms []string
	evidence := false

	for _, title := range entity.StreamingEpisodes {
		lower := strings.ToLower(title)
		if strings.Contains(lower, "english") || strings.Contains(lower, "dub") {
			evidence = true
			break
		}
	}

	for _, link := range entity.ExternalLinks {
		if link.Type != "" && !strings.EqualFold(link.Type, "STREAMING") {
			continue
		}
		if !catalog.KnownPlatform(link.Site) {
			continue
		}
		if strings.EqualFold(link.Language, "english") {
			evidence = true
			platforms = append(platforms, link.Site)
		}
	}

	if _, ok := knownDubCompany(entity.Studios); ok {
		evidence = true
	}

	if !evidence {
		return NotApplicable(SourceCatalog, "no dub indicators in catalog metadata")
	}
	return Applicable(SourceCatalog, true, platforms, weightCatalog)
}

// communityAdapter inspects the community wiki's licensor, producer, and
// streaming fields. Signal: a known dub company, or high popularity combined
// with a major licensor.
type communityAdapter struct {
	client              jikan.FactFinder
	popularityThreshold int
	logger              *slog.Logger
}

func (a *communityAdapter) Name() string { return SourceCommunity }

func (a *communityAdapter) Probe(ctx context.Context, entity catalog.Entity) Probe {
	if entity.SecondaryID == 0 {
		return NotApplicable(SourceCommunity, "no secondary id")
	}
	facts, err := a.client.AnimeFacts(ctx, entity.SecondaryID)
	if err != nil {
		// Transient upstream trouble degrades quietly; anything else (a
		// persistence or validation failure) deserves a louder signal.
		if services.Degradable(err) {
			a.logger.Debug("community probe degraded",
				logging.Int64("mal_id", entity.SecondaryID),
				logging.Error(err))
		} else {
			a.logger.Warn("community probe failed",
				logging.Int64("mal_id", entity.SecondaryID),
				logging.Error(err))
		}
		return NotApplicable(SourceCommunity, err.Error())
	}

	companies := append(append([]string{}, facts.Licensors...), facts.Producers...)
	_, hasDubCompany := knownDubCompany(companies)

	hasMajorLicensor := false
	for _, name := range facts.Licensors {
		if _, ok := majorLicensors[strings.ToLower(strings.TrimSpace(name))]; ok {
			hasMajorLicensor = true
			break
		}
	}
	popular := facts.Members >= a.popularityThreshold

	if !hasDubCompany && !(popular && hasMajorLicensor) {
		return NotApplicable(SourceCommunity, "no licensor signal")
	}

	var platforms []string
	for _, service := range facts.Streaming {
		if catalog.KnownPlatform(service.Name) {
			platforms = append(platforms, service.Name)
		}
	}
	return Applicable(SourceCommunity, true, platforms, weightCommunity)
}

// scrapeAdapter consults the unofficial stream listing. It is the least
// trustworthy source: every failure is silent, and its contribution only
// counts when another source corroborates it.
type scrapeAdapter struct {
	client animeschedule.StreamLister
}

func (a *scrapeAdapter) Name() string { return SourceScrape }

func (a *scrapeAdapter) Probe(ctx context.Context, entity catalog.Entity) Probe {
	streams, err := a.client.Streams(ctx, entity.ExternalID)
	if err != nil {
		return NotApplicable(SourceScrape, err.Error())
	}
	var platforms []string
	for _, stream := range streams {
		if stream.Dubbed() {
			platforms = append(platforms, stream.Service)
		}
	}
	if len(platforms) == 0 {
		return NotApplicable(SourceScrape, "no dubbed streams listed")
	}
	probe := Applicable(SourceScrape, true, platforms, weightScrape)
	probe.NeedsCorroboration = true
	return probe
}

// Franchises whose new entries are reliably dubbed. Last-resort heuristic.
var dubFranchises = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bone piece\b`),
	regexp.MustCompile(`(?i)\bnaruto\b`),
	regexp.MustCompile(`(?i)\bboruto\b`),
	regexp.MustCompile(`(?i)\bdragon ball\b`),
	regexp.MustCompile(`(?i)\bmy hero academia\b`),
	regexp.MustCompile(`(?i)\battack on titan\b`),
	regexp.MustCompile(`(?i)\bdemon slayer\b`),
	regexp.MustCompile(`(?i)\bjujutsu kaisen\b`),
	regexp.MustCompile(`(?i)\bpok[eé]mon\b`),
	regexp.MustCompile(`(?i)\bsword art online\b`),
	regexp.MustCompile(`(?i)\bspy\s*[x×]\s*family\b`),
}

var patternPlatforms = []string{catalog.PlatformCrunchyroll}

// patternAdapter matches the title against the curated franchise list.
type patternAdapter struct{}

func (a *patternAdapter) Name() string { return SourcePattern }

func (a *patternAdapter) Probe(ctx context.Context, entity catalog.Entity) Probe {
	titles := []string{entity.TitleEnglish, entity.TitleRomaji}
	for _, title := range titles {
		if title == "" {
			continue
		}
		for _, pattern := range dubFranchises {
			if pattern.MatchString(title) {
				return Applicable(SourcePattern, true, patternPlatforms, weightPattern)
			}
		}
	}
	return NotApplicable(SourcePattern, fmt.Sprintf("no franchise match for %q", entity.DisplayTitle()))
}
