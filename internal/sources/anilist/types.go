package anilist

import (
	"time"

	"dubtrack/internal/catalog"
)

// Page is one page of catalog entities.
type Page struct {
	Entities    []catalog.Entity
	HasNextPage bool
}

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphqlError struct {
	Message string `json:"message"`
}

type pageResponse struct {
	Data struct {
		Page struct {
			PageInfo struct {
				HasNextPage bool `json:"hasNextPage"`
			} `json:"pageInfo"`
			Media []media `json:"media"`
		} `json:"Page"`
	} `json:"data"`
	Errors []graphqlError `json:"errors"`
}

type mediaResponse struct {
	Data struct {
		Media *media `json:"Media"`
	} `json:"data"`
	Errors []graphqlError `json:"errors"`
}

type media struct {
	ID    int64 `json:"id"`
	IDMal int64 `json:"idMal"`
	Title struct {
		Romaji  string `json:"romaji"`
		English string `json:"english"`
		Native  string `json:"native"`
	} `json:"title"`
	Season            string `json:"season"`
	SeasonYear        int    `json:"seasonYear"`
	Episodes          int    `json:"episodes"`
	Status            string `json:"status"`
	Popularity        int    `json:"popularity"`
	AverageScore      int    `json:"averageScore"`
	NextAiringEpisode *struct {
		AiringAt int64 `json:"airingAt"`
		Episode  int   `json:"episode"`
	} `json:"nextAiringEpisode"`
	Studios struct {
		Nodes []struct {
			Name string `json:"name"`
		} `json:"nodes"`
	} `json:"studios"`
	ExternalLinks []struct {
		Site     string `json:"site"`
		URL      string `json:"url"`
		Language string `json:"language"`
		Type     string `json:"type"`
	} `json:"externalLinks"`
	StreamingEpisodes []struct {
		Title string `json:"title"`
	} `json:"streamingEpisodes"`
}

// toEntity maps the upstream media shape onto the domain entity.
func (m media) toEntity(now time.Time) catalog.Entity {
	entity := catalog.Entity{
		ExternalID:    m.ID,
		SecondaryID:   m.IDMal,
		TitleRomaji:   m.Title.Romaji,
		TitleEnglish:  m.Title.English,
		TitleNative:   m.Title.Native,
		Year:          m.SeasonYear,
		TotalEpisodes: m.Episodes,
		State:         mapStatus(m.Status),
		Popularity:    m.Popularity,
		Score:         m.AverageScore,
		UpdatedAt:     now,
	}
	if season, err := catalog.ParseSeason(m.Season); err == nil {
		entity.Season = season
	}
	switch {
	case m.NextAiringEpisode != nil:
		// The next episode number implies everything before it has aired.
		entity.EpisodesObserved = m.NextAiringEpisode.Episode - 1
		entity.NextEpisodeAt = time.Unix(m.NextAiringEpisode.AiringAt, 0).UTC()
	case entity.State == catalog.StateFinished:
		entity.EpisodesObserved = m.Episodes
	}
	if entity.EpisodesObserved < 0 {
		entity.EpisodesObserved = 0
	}
	for _, node := range m.Studios.Nodes {
		if node.Name != "" {
			entity.Studios = append(entity.Studios, node.Name)
		}
	}
	for _, link := range m.ExternalLinks {
		entity.ExternalLinks = append(entity.ExternalLinks, catalog.ExternalLink{
			Site:     link.Site,
			URL:      link.URL,
			Language: link.Language,
			Type:     link.Type,
		})
	}
	for _, episode := range m.StreamingEpisodes {
		if episode.Title != "" {
			entity.StreamingEpisodes = append(entity.StreamingEpisodes, episode.Title)
		}
	}
	return entity
}

func mapStatus(status string) catalog.LifecycleState {
	switch status {
	case "NOT_YET_RELEASED":
		return catalog.StateNotStarted
	case "RELEASING":
		return catalog.StateOngoing
	case "FINISHED":
		return catalog.StateFinished
	case "HIATUS":
		return catalog.StateHiatus
	case "CANCELLED":
		return catalog.StateCancelled
	default:
		return catalog.StateNotStarted
	}
}
