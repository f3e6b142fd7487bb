// Package animeschedule implements the unofficial stream-listing endpoint.
// This source is untrusted and optional; callers must treat every failure
// as an absent result, never as a hard error.
package animeschedule

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

// Stream is one (service, audio track, status) tuple from the listing.
type Stream struct {
	Service    string `json:"service"`
	AudioTrack string `json:"audio"`
	Status     string `json:"status"`
}

// Dubbed reports whether the tuple indicates an available English dub.
func (s Stream) Dubbed() bool {
	audio := strings.ToLower(strings.TrimSpace(s.AudioTrack))
	if audio != "dub" && audio != "english" && audio != "english dub" {
		return false
	}
	status := strings.ToLower(strings.TrimSpace(s.Status))
	return status == "" || status == "available" || status == "streaming" || status == "ongoing"
}

// StreamLister defines the lookup the scrape adapter consumes.
type StreamLister interface {
	Streams(ctx context.Context, externalID int64) ([]Stream, error)
}

// Client queries the unofficial endpoint through the rate-limited fetcher.
type Client struct {
	baseURL string
	fetcher *fetch.Fetcher
}

var _ StreamLister = (*Client)(nil)

// New creates a scrape client.
func New(baseURL string, fetcher *fetch.Fetcher) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("animeschedule base url required")
	}
	if fetcher == nil {
		return nil, errors.New("animeschedule fetcher required")
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), fetcher: fetcher}, nil
}

// Streams fetches the best-effort stream listing for one title.
func (c *Client) Streams(ctx context.Context, externalID int64) ([]Stream, error) {
	if externalID <= 0 {
		return nil, services.Wrap(services.ErrValidation, "animeschedule", "streams", "id must be positive", nil)
	}
	endpoint := fmt.Sprintf("%s/anime/%d/streams", c.baseURL, externalID)

	resp, err := c.fetcher.Do(ctx, fetch.SourceScrape, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, services.Wrap(services.ErrTransport, "animeschedule", "streams",
			fmt.Sprintf("status %d", resp.StatusCode), nil)
	}

	var payload struct {
		Streams []Stream `json:"streams"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, services.Wrap(services.ErrShape, "animeschedule", "streams", "decode response", err)
	}
	return payload.Streams, nil
}
