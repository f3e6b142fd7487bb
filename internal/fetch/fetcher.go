package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"dubtrack/internal/logging"
	"dubtrack/internal/services"
)

const (
	defaultRetryAfter  = 60 * time.Second
	defaultHTTPTimeout = 15 * time.Second
)

// RateLimitedError reports that a source refused the call even after the
// mandated backoff. RetryAfter carries the server-specified delay.
type RateLimitedError struct {
	Source     Source
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("source %s rate limited (retry after %s)", e.Source, e.RetryAfter)
}

func (e *RateLimitedError) Unwrap() error { return services.ErrRateLimited }

// RequestBuilder constructs the outbound request. It is invoked again when a
// 429 forces a retry, so request bodies are never replayed from a consumed
// reader.
type RequestBuilder func(ctx context.Context) (*http.Request, error)

// Fetcher performs throttled HTTP calls against the configured sources.
// It carries no persistent state and is safe to reconstruct per process.
type Fetcher struct {
	limiter  *Limiter
	client   *http.Client
	clients  map[Source]*http.Client
	timeouts map[Source]time.Duration
	logger   *slog.Logger
	sleep    func(context.Context, time.Duration) error
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(f *Fetcher) {
		if client != nil {
			f.client = client
		}
	}
}

// WithTimeouts sets per-source request timeouts covering the full exchange,
// body read included. Sources absent from the map keep the client default.
func WithTimeouts(timeouts map[Source]time.Duration) Option {
	return func(f *Fetcher) {
		for source, timeout := range timeouts {
			if timeout > 0 {
				f.timeouts[source] = timeout
			}
		}
	}
}

// WithSleep overrides the backoff sleep, used by tests to avoid real delays.
func WithSleep(sleep func(context.Context, time.Duration) error) Option {
	return func(f *Fetcher) {
		if sleep != nil {
			f.sleep = sleep
		}
	}
}

// NewFetcher builds a fetcher over the supplied limiter.
func NewFetcher(limiter *Limiter, logger *slog.Logger, opts ...Option) *Fetcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	fetcher := &Fetcher{
		limiter:  limiter,
		client:   &http.Client{Timeout: defaultHTTPTimeout},
		timeouts: make(map[Source]time.Duration),
		logger:   logging.WithComponent(logger, "fetch"),
		sleep:    SleepWithContext,
	}
	for _, opt := range opts {
		opt(fetcher)
	}
	fetcher.clients = make(map[Source]*http.Client, len(fetcher.timeouts))
	for source, timeout := range fetcher.timeouts {
		client := *fetcher.client
		client.Timeout = timeout
		fetcher.clients[source] = &client
	}
	return fetcher
}

func (f *Fetcher) clientFor(source Source) *http.Client {
	if client, ok := f.clients[source]; ok {
		return client
	}
	return f.client
}

// Do waits for the source's rate-limit slot, issues the request, and retries
// exactly once after a 429, honoring the Retry-After header (default 60s).
// A second 429 surfaces as a RateLimitedError; network failures surface as
// transport errors.
func (f *Fetcher) Do(ctx context.Context, source Source, build RequestBuilder) (*http.Response, error) {
	resp, err := f.doOnce(ctx, source, build)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusTooManyRequests {
		return resp, nil
	}

	retryAfter := parseRetryAfter(resp)
	drainBody(resp)
	f.logger.Warn("upstream rate limited, backing off",
		logging.String("source", string(source)),
		logging.Duration("retry_after", retryAfter))

	if err := f.sleep(ctx, retryAfter); err != nil {
		return nil, services.Wrap(services.ErrRateLimited, "fetch", "backoff", string(source), err)
	}

	resp, err = f.doOnce(ctx, source, build)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter = parseRetryAfter(resp)
		drainBody(resp)
		return nil, &RateLimitedError{Source: source, RetryAfter: retryAfter}
	}
	return resp, nil
}

func (f *Fetcher) doOnce(ctx context.Context, source Source, build RequestBuilder) (*http.Response, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx, source); err != nil {
			return nil, services.Wrap(services.ErrTransport, "fetch", "wait", string(source), err)
		}
	}
	req, err := build(ctx)
	if err != nil {
		return nil, services.Wrap(services.ErrTransport, "fetch", "build request", string(source), err)
	}

	requestStart := time.Now()
	resp, err := f.clientFor(source).Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		return nil, services.Wrap(services.ErrTransport, "fetch", "execute",
			fmt.Sprintf("%s (latency=%v)", source, latency), err)
	}
	return resp, nil
}

func parseRetryAfter(resp *http.Response) time.Duration {
	header := resp.Header.Get("Retry-After")
	if header == "" {
		return defaultRetryAfter
	}
	if seconds, err := strconv.Atoi(header); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(header); err == nil {
		if wait := time.Until(at); wait > 0 {
			return wait
		}
	}
	return defaultRetryAfter
}

func drainBody(resp *http.Response) {
	if resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	_ = resp.Body.Close()
}
