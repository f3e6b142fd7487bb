// Package jikan implements the community wiki API client. Lookups are keyed
// by the entity's secondary (MyAnimeList) id.
package jikan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"dubtrack/internal/fetch"
	"dubtrack/internal/services"
)

// Facts bundles the community-sourced fields the dub heuristics consume.
type Facts struct {
	Licensors []string
	Producers []string
	Studios   []string
	Streaming []Service
	Score     float64
	Members   int
}

// Service is one streaming listing attached to a community record.
type Service struct {
	Name string
	URL  string
}

// FactFinder defines the lookup the community adapter consumes.
type FactFinder interface {
	AnimeFacts(ctx context.Context, malID int64) (*Facts, error)
}

// Client queries the Jikan REST API through the rate-limited fetcher.
type Client struct {
	baseURL string
	fetcher *fetch.Fetcher
}

var _ FactFinder = (*Client)(nil)

// New creates a community API client.
func New(baseURL string, fetcher *fetch.Fetcher) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("jikan base url required")
	}
	if fetcher == nil {
		return nil, errors.New("jikan fetcher required")
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), fetcher: fetcher}, nil
}

type animeFullResponse struct {
	Data struct {
		Score     float64 `json:"score"`
		Members   int     `json:"members"`
		Licensors []struct {
			Name string `json:"name"`
		} `json:"licensors"`
		Producers []struct {
			Name string `json:"name"`
		} `json:"producers"`
		Studios []struct {
			Name string `json:"name"`
		} `json:"studios"`
		Streaming []struct {
			Name string `json:"name"`
			URL  string `json:"url"`
		} `json:"streaming"`
	} `json:"data"`
}

// AnimeFacts fetches producer, licensor, and streaming data for one title.
func (c *Client) AnimeFacts(ctx context.Context, malID int64) (*Facts, error) {
	if malID <= 0 {
		return nil, services.Wrap(services.ErrValidation, "jikan", "anime facts", "mal id must be positive", nil)
	}
	endpoint := fmt.Sprintf("%s/anime/%d/full", c.baseURL, malID)

	resp, err := c.fetcher.Do(ctx, fetch.SourceJikan, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, services.Wrap(services.ErrNotFound, "jikan", "anime facts", fmt.Sprintf("mal id %d", malID), nil)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, services.Wrap(services.ErrTransport, "jikan", "anime facts",
			fmt.Sprintf("status %d", resp.StatusCode), nil)
	}

	var payload animeFullResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, services.Wrap(services.ErrShape, "jikan", "anime facts", "decode response", err)
	}

	facts := &Facts{Score: payload.Data.Score, Members: payload.Data.Members}
	for _, entry := range payload.Data.Licensors {
		facts.Licensors = append(facts.Licensors, entry.Name)
	}
	for _, entry := range payload.Data.Producers {
		facts.Producers = append(facts.Producers, entry.Name)
	}
	for _, entry := range payload.Data.Studios {
		facts.Studios = append(facts.Studios, entry.Name)
	}
	for _, entry := range payload.Data.Streaming {
		facts.Streaming = append(facts.Streaming, Service{Name: entry.Name, URL: entry.URL})
	}
	return facts, nil
}
