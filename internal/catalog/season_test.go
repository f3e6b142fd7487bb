package catalog

import (
	"testing"
	"time"
)

func TestParseSeason(t *testing.T) {
	tests := []struct {
		input   string
		want    Season
		wantErr bool
	}{
		{"WINTER", SeasonWinter, false},
		{"spring", SeasonSpring, false},
		{"  Summer  ", SeasonSummer, false},
		{"FALL", SeasonFall, false},
		{"autumn", SeasonFall, false},
		{"AUTUMN", SeasonFall, false},
		{"monsoon", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseSeason(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseSeason(%q) expected error, got %q", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseSeason(%q): %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseSeason(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSeasonNext(t *testing.T) {
	tests := []struct {
		season       Season
		want         Season
		wantRollover bool
	}{
		{SeasonWinter, SeasonSpring, false},
		{SeasonSpring, SeasonSummer, false},
		{SeasonSummer, SeasonFall, false},
		{SeasonFall, SeasonWinter, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.season), func(t *testing.T) {
			got, rollover := tt.season.Next()
			if got != tt.want || rollover != tt.wantRollover {
				t.Errorf("%s.Next() = (%s, %v), want (%s, %v)",
					tt.season, got, rollover, tt.want, tt.wantRollover)
			}
		})
	}
}

func TestCurrentSeason(t *testing.T) {
	tests := []struct {
		month time.Month
		want  Season
	}{
		{time.January, SeasonWinter},
		{time.March, SeasonWinter},
		{time.April, SeasonSpring},
		{time.June, SeasonSpring},
		{time.July, SeasonSummer},
		{time.September, SeasonSummer},
		{time.October, SeasonFall},
		{time.December, SeasonFall},
	}

	for _, tt := range tests {
		now := time.Date(2026, tt.month, 15, 12, 0, 0, 0, time.UTC)
		season, year := CurrentSeason(now)
		if season != tt.want {
			t.Errorf("CurrentSeason(%s) = %s, want %s", tt.month, season, tt.want)
		}
		if year != 2026 {
			t.Errorf("CurrentSeason(%s) year = %d, want 2026", tt.month, year)
		}
	}
}

func TestSeasonAge(t *testing.T) {
	now := time.Date(2026, time.August, 29, 0, 0, 0, 0, time.UTC)

	if age := SeasonAge(SeasonWinter, 2026, now); age <= 0 {
		t.Errorf("winter 2026 should have ended before %s, age = %s", now, age)
	}
	if age := SeasonAge(SeasonSummer, 2026, now); age >= 0 {
		t.Errorf("summer 2026 should still be in progress at %s, age = %s", now, age)
	}
	if age := SeasonAge(SeasonFall, 2026, now); age >= 0 {
		t.Errorf("fall 2026 should be upcoming at %s, age = %s", now, age)
	}

	old := SeasonAge(SeasonSpring, 2020, now)
	recent := SeasonAge(SeasonSpring, 2026, now)
	if old <= recent {
		t.Errorf("spring 2020 age (%s) should exceed spring 2026 age (%s)", old, recent)
	}
}
