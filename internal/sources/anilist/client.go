package anilist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"dubtrack/internal/catalog"
	"dubtrack/internal/fetch"
	"dubtrack/internal/services"
)

const mediaFields = `
id
idMal
title { romaji english native }
season
seasonYear
episodes
status
popularity
averageScore
nextAiringEpisode { airingAt episode }
studios(isMain: true) { nodes { name } }
externalLinks { site url language type }
streamingEpisodes { title }`

var seasonPageQuery = fmt.Sprintf(`query ($season: MediaSeason, $seasonYear: Int, $page: Int, $perPage: Int) {
  Page(page: $page, perPage: $perPage) {
    pageInfo { hasNextPage }
    media(season: $season, seasonYear: $seasonYear, type: ANIME, format_in: [TV, TV_SHORT, ONA]) {%s
    }
  }
}`, mediaFields)

var airingPageQuery = fmt.Sprintf(`query ($page: Int, $perPage: Int) {
  Page(page: $page, perPage: $perPage) {
    pageInfo { hasNextPage }
    media(status: RELEASING, type: ANIME, format_in: [TV, TV_SHORT, ONA]) {%s
    }
  }
}`, mediaFields)

var mediaByIDQuery = fmt.Sprintf(`query ($id: Int) {
  Media(id: $id, type: ANIME) {%s
  }
}`, mediaFields)

// Lister defines the catalog operations the sync orchestrator consumes.
type Lister interface {
	SeasonPage(ctx context.Context, season catalog.Season, year, page, perPage int) (*Page, error)
	AiringPage(ctx context.Context, page, perPage int) (*Page, error)
	MediaByID(ctx context.Context, externalID int64) (*catalog.Entity, error)
}

// Client queries the AniList GraphQL endpoint through the rate-limited
// fetcher.
type Client struct {
	baseURL string
	fetcher *fetch.Fetcher
	now     func() time.Time
}

var _ Lister = (*Client)(nil)

// New creates a catalog client.
func New(baseURL string, fetcher *fetch.Fetcher) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("anilist base url required")
	}
	if fetcher == nil {
		return nil, errors.New("anilist fetcher required")
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		fetcher: fetcher,
		now:     time.Now,
	}, nil
}

// SeasonPage fetches one page of a season's catalog listing.
func (c *Client) SeasonPage(ctx context.Context, season catalog.Season, year, page, perPage int) (*Page, error) {
	if !season.Valid() {
		return nil, services.Wrap(services.ErrValidation, "anilist", "season page", fmt.Sprintf("invalid season %q", season), nil)
	}
	variables := map[string]any{
		"season":     string(season),
		"seasonYear": year,
		"page":       page,
		"perPage":    perPage,
	}
	return c.fetchPage(ctx, "season page", seasonPageQuery, variables)
}

// AiringPage fetches one page of the currently-airing listing.
func (c *Client) AiringPage(ctx context.Context, page, perPage int) (*Page, error) {
	variables := map[string]any{
		"page":    page,
		"perPage": perPage,
	}
	return c.fetchPage(ctx, "airing page", airingPageQuery, variables)
}

// MediaByID fetches a single entity's full detail.
func (c *Client) MediaByID(ctx context.Context, externalID int64) (*catalog.Entity, error) {
	if externalID <= 0 {
		return nil, services.Wrap(services.ErrValidation, "anilist", "media by id", "id must be positive", nil)
	}
	body, err := c.post(ctx, mediaByIDQuery, map[string]any{"id": externalID})
	if err != nil {
		return nil, err
	}
	var payload mediaResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, services.Wrap(services.ErrShape, "anilist", "media by id", "decode response", err)
	}
	if len(payload.Errors) > 0 {
		return nil, services.Wrap(services.ErrShape, "anilist", "media by id", payload.Errors[0].Message, nil)
	}
	if payload.Data.Media == nil {
		return nil, services.Wrap(services.ErrNotFound, "anilist", "media by id", fmt.Sprintf("id %d", externalID), nil)
	}
	entity := payload.Data.Media.toEntity(c.now())
	return &entity, nil
}

func (c *Client) fetchPage(ctx context.Context, operation, query string, variables map[string]any) (*Page, error) {
	body, err := c.post(ctx, query, variables)
	if err != nil {
		return nil, err
	}
	var payload pageResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, services.Wrap(services.ErrShape, "anilist", operation, "decode response", err)
	}
	if len(payload.Errors) > 0 {
		return nil, services.Wrap(services.ErrShape, "anilist", operation, payload.Errors[0].Message, nil)
	}
	now := c.now()
	page := &Page{HasNextPage: payload.Data.Page.PageInfo.HasNextPage}
	for _, item := range payload.Data.Page.Media {
		page.Entities = append(page.Entities, item.toEntity(now))
	}
	return page, nil
}

func (c *Client) post(ctx context.Context, query string, variables map[string]any) ([]byte, error) {
	payload, err := json.Marshal(graphqlRequest{Query: query, Variables: variables})
	if err != nil {
		return nil, services.Wrap(services.ErrShape, "anilist", "post", "marshal request", err)
	}

	resp, err := c.fetcher.Do(ctx, fetch.SourceAniList, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, services.Wrap(services.ErrTransport, "anilist", "post",
			fmt.Sprintf("status %d", resp.StatusCode), nil)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, services.Wrap(services.ErrTransport, "anilist", "post", "read body", err)
	}
	return buf.Bytes(), nil
}
