// Package fetch wraps outbound HTTP calls with per-source minimum-interval
// throttling and a single 429 backoff-retry. Every call site goes through
// the limiter so no business logic carries inline sleeps.
package fetch
