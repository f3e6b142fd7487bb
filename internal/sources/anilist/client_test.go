package anilist

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"dubtrack/internal/catalog"
	"dubtrack/internal/fetch"
	"dubtrack/internal/services"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := New(server.URL, fetch.NewFetcher(nil, nil))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return client
}

const seasonPagePayload = `{
  "data": {
    "Page": {
      "pageInfo": {"hasNextPage": true},
      "media": [
        {
          "id": 101,
          "idMal": 201,
          "title": {"romaji": "Sousou no Frieren", "english": "Frieren", "native": "葬送のフリーレン"},
          "season": "WINTER",
          "seasonYear": 2026,
          "episodes": 12,
          "status": "RELEASING",
          "popularity": 95000,
          "averageScore": 89,
          "nextAiringEpisode": {"airingAt": 1767225600, "episode": 6},
          "studios": {"nodes": [{"name": "Madhouse"}]},
          "externalLinks": [
            {"site": "Crunchyroll", "url": "https://example.test/cr", "language": "English", "type": "STREAMING"}
          ],
          "streamingEpisodes": [{"title": "Episode 1 (English Dub)"}]
        },
        {
          "id": 102,
          "title": {"romaji": "Owatta Mono"},
          "season": "WINTER",
          "seasonYear": 2026,
          "episodes": 13,
          "status": "FINISHED"
        }
      ]
    }
  }
}`

func TestSeasonPageMapsEntities(t *testing.T) {
	var captured struct {
		Query     string         `json:"query"`
		Variables map[string]any `json:"variables"`
	}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &captured)
		_, _ = io.WriteString(w, seasonPagePayload)
	})

	page, err := client.SeasonPage(context.Background(), catalog.SeasonWinter, 2026, 1, 50)
	if err != nil {
		t.Fatalf("SeasonPage: %v", err)
	}
	if !page.HasNextPage {
		t.Error("HasNextPage should carry through")
	}
	if len(page.Entities) != 2 {
		t.Fatalf("got %d entities, want 2", len(page.Entities))
	}

	airing := page.Entities[0]
	if airing.ExternalID != 101 || airing.SecondaryID != 201 {
		t.Errorf("ids = (%d, %d), want (101, 201)", airing.ExternalID, airing.SecondaryID)
	}
	if airing.State != catalog.StateOngoing {
		t.Errorf("State = %s, want ONGOING", airing.State)
	}
	// Next episode 6 implies 5 aired.
	if airing.EpisodesObserved != 5 {
		t.Errorf("EpisodesObserved = %d, want 5", airing.EpisodesObserved)
	}
	if airing.NextEpisodeAt.IsZero() {
		t.Error("NextEpisodeAt should be set from the airing schedule")
	}
	if len(airing.Studios) != 1 || airing.Studios[0] != "Madhouse" {
		t.Errorf("Studios = %v", airing.Studios)
	}
	if len(airing.ExternalLinks) != 1 || airing.ExternalLinks[0].Language != "English" {
		t.Errorf("ExternalLinks = %v", airing.ExternalLinks)
	}

	finished := page.Entities[1]
	if finished.State != catalog.StateFinished {
		t.Errorf("State = %s, want FINISHED", finished.State)
	}
	// Finished titles with no airing schedule count every episode as seen.
	if finished.EpisodesObserved != 13 {
		t.Errorf("EpisodesObserved = %d, want 13", finished.EpisodesObserved)
	}

	if captured.Variables["season"] != "WINTER" {
		t.Errorf("season variable = %v, want WINTER", captured.Variables["season"])
	}
	if captured.Variables["perPage"] != float64(50) {
		t.Errorf("perPage variable = %v, want 50", captured.Variables["perPage"])
	}
}

func TestSeasonPageRejectsInvalidSeason(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("server should not be reached for invalid input")
	})
	_, err := client.SeasonPage(context.Background(), catalog.Season("MONSOON"), 2026, 1, 50)
	if !errors.Is(err, services.ErrValidation) {
		t.Errorf("error = %v, want validation marker", err)
	}
}

func TestSeasonPageSurfacesGraphQLErrors(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"data": {}, "errors": [{"message": "rate exceeded"}]}`)
	})
	_, err := client.SeasonPage(context.Background(), catalog.SeasonWinter, 2026, 1, 50)
	if !errors.Is(err, services.ErrShape) {
		t.Errorf("error = %v, want shape marker", err)
	}
}

func TestMediaByID(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{
		  "data": {
		    "Media": {
		      "id": 300,
		      "title": {"romaji": "Tantei wa Mou"},
		      "season": "SPRING",
		      "seasonYear": 2026,
		      "status": "NOT_YET_RELEASED"
		    }
		  }
		}`)
	})

	entity, err := client.MediaByID(context.Background(), 300)
	if err != nil {
		t.Fatalf("MediaByID: %v", err)
	}
	if entity.ExternalID != 300 || entity.Season != catalog.SeasonSpring {
		t.Errorf("entity = %+v", entity)
	}
	if entity.State != catalog.StateNotStarted {
		t.Errorf("State = %s, want NOT_STARTED", entity.State)
	}
}

func TestMediaByIDNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"data": {"Media": null}}`)
	})
	_, err := client.MediaByID(context.Background(), 300)
	if !errors.Is(err, services.ErrNotFound) {
		t.Errorf("error = %v, want not-found marker", err)
	}
}

func TestMediaByIDRejectsInvalidID(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	_, err := client.MediaByID(context.Background(), 0)
	if !errors.Is(err, services.ErrValidation) {
		t.Errorf("error = %v, want validation marker", err)
	}
}

func TestNewRequiresCollaborators(t *testing.T) {
	if _, err := New("", fetch.NewFetcher(nil, nil)); err == nil {
		t.Error("blank base url should be rejected")
	}
	if _, err := New("https://example.test", nil); err == nil {
		t.Error("nil fetcher should be rejected")
	}
}
