package catalog

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Canonical streaming platform names. Alias folding maps the many spellings
// sources use onto these.
const (
	PlatformCrunchyroll = "Crunchyroll"
	PlatformNetflix     = "Netflix"
	PlatformHulu        = "Hulu"
	PlatformPrimeVideo  = "Prime Video"
	PlatformDisneyPlus  = "Disney+"
	PlatformHIDIVE      = "HIDIVE"
	PlatformMax         = "Max"
	PlatformFunimation  = "Crunchyroll" // merged catalog, folded forward
)

var platformAliases = map[string]string{
	"crunchyroll":        PlatformCrunchyroll,
	"cr":                 PlatformCrunchyroll,
	"vrv":                PlatformCrunchyroll,
	"funimation":         PlatformCrunchyroll,
	"netflix":            PlatformNetflix,
	"hulu":               PlatformHulu,
	"prime video":        PlatformPrimeVideo,
	"amazon prime":       PlatformPrimeVideo,
	"amazon prime video": PlatformPrimeVideo,
	"amazon":             PlatformPrimeVideo,
	"disney+":            PlatformDisneyPlus,
	"disney plus":        PlatformDisneyPlus,
	"disneyplus":         PlatformDisneyPlus,
	"hidive":             PlatformHIDIVE,
	"max":                PlatformMax,
	"hbo max":            PlatformMax,
}

var titleCaser = cases.Title(language.English)

// NormalizePlatform folds a raw platform name onto its canonical form.
// Unknown names are trimmed and title-cased rather than dropped.
func NormalizePlatform(name string) string {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return ""
	}
	if canonical, ok := platformAliases[strings.ToLower(trimmed)]; ok {
		return canonical
	}
	return titleCaser.String(strings.ToLower(trimmed))
}

// NormalizePlatforms folds, deduplicates, and order-preserves a platform
// list. Empty entries are dropped.
func NormalizePlatforms(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		canonical := NormalizePlatform(name)
		if canonical == "" {
			continue
		}
		if _, ok := seen[canonical]; ok {
			continue
		}
		seen[canonical] = struct{}{}
		out = append(out, canonical)
	}
	return out
}

// KnownPlatform reports whether the name folds onto a recognized streaming
// platform rather than an arbitrary site.
func KnownPlatform(name string) bool {
	_, ok := platformAliases[strings.ToLower(strings.TrimSpace(name))]
	return ok
}
