package catalog

import (
	"fmt"
	"strings"
	"time"
)

// Season identifies one of the four broadcast seasons.
type Season string

const (
	SeasonWinter Season = "WINTER"
	SeasonSpring Season = "SPRING"
	SeasonSummer Season = "SUMMER"
	SeasonFall   Season = "FALL"
)

var allSeasons = []Season{SeasonWinter, SeasonSpring, SeasonSummer, SeasonFall}

// ParseSeason converts user or upstream input into a Season.
func ParseSeason(value string) (Season, error) {
	normalized := Season(strings.ToUpper(strings.TrimSpace(value)))
	if normalized == "AUTUMN" {
		normalized = SeasonFall
	}
	for _, season := range allSeasons {
		if season == normalized {
			return season, nil
		}
	}
	return "", fmt.Errorf("unknown season %q", value)
}

// Valid reports whether s is one of the four enumerated seasons.
func (s Season) Valid() bool {
	for _, season := range allSeasons {
		if season == s {
			return true
		}
	}
	return false
}

// Next returns the following season and whether the year rolls over.
func (s Season) Next() (Season, bool) {
	switch s {
	case SeasonWinter:
		return SeasonSpring, false
	case SeasonSpring:
		return SeasonSummer, false
	case SeasonSummer:
		return SeasonFall, false
	default:
		return SeasonWinter, true
	}
}

// CurrentSeason returns the season bucket containing the given instant.
func CurrentSeason(now time.Time) (Season, int) {
	switch now.Month() {
	case time.January, time.February, time.March:
		return SeasonWinter, now.Year()
	case time.April, time.May, time.June:
		return SeasonSpring, now.Year()
	case time.July, time.August, time.September:
		return SeasonSummer, now.Year()
	default:
		return SeasonFall, now.Year()
	}
}

// seasonEnd approximates the final day of a season bucket, used when
// deriving cache staleness from season recency.
func seasonEnd(season Season, year int) time.Time {
	var month time.Month
	switch season {
	case SeasonWinter:
		month = time.March
	case SeasonSpring:
		month = time.June
	case SeasonSummer:
		month = time.September
	default:
		month = time.December
	}
	return time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC).Add(-24 * time.Hour)
}

// SeasonAge returns how long ago the season bucket ended. Negative values
// mean the season is still in progress or upcoming.
func SeasonAge(season Season, year int, now time.Time) time.Duration {
	return now.Sub(seasonEnd(season, year))
}
