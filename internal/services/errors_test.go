package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestWrapTagsMarker(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(ErrTransport, "fetch", "execute", "anilist", cause)

	if !errors.Is(err, ErrTransport) {
		t.Error("wrapped error should match its marker")
	}
	if !errors.Is(err, cause) {
		t.Error("wrapped error should match its cause")
	}
	if errors.Is(err, ErrPersistence) {
		t.Error("wrapped error should not match unrelated markers")
	}
}

func TestWrapWithoutCause(t *testing.T) {
	err := Wrap(ErrValidation, "store", "upsert entity", "external id must be positive", nil)
	if !errors.Is(err, ErrValidation) {
		t.Error("marker lost")
	}
	want := "validation error: store: upsert entity: external id must be positive"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestWrapNilMarkerDefaultsToTransport(t *testing.T) {
	err := Wrap(nil, "fetch", "wait", "", errors.New("boom"))
	if !errors.Is(err, ErrTransport) {
		t.Error("nil marker should default to transport")
	}
}

func TestIsRetriable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limited marker", fmt.Errorf("wrapped: %w", ErrRateLimited), true},
		{"deadline exceeded", context.DeadlineExceeded, true},
		{"429 in message", errors.New("unexpected status 429"), true},
		{"rate limit text", errors.New("rate limit exceeded"), true},
		{"bad gateway", errors.New("upstream returned 502"), true},
		{"service unavailable", errors.New("status 503"), true},
		{"timeout text", errors.New("request timeout while awaiting headers"), true},
		{"connection reset", errors.New("read: connection reset by peer"), true},
		{"not found", errors.New("status 404"), false},
		{"shape error", Wrap(ErrShape, "anilist", "season page", "decode response", nil), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetriable(tt.err); got != tt.want {
				t.Errorf("IsRetriable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestDegradable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"transport", Wrap(ErrTransport, "fetch", "execute", "", errors.New("eof")), true},
		{"shape", Wrap(ErrShape, "jikan", "anime facts", "decode response", nil), true},
		{"rate limited", Wrap(ErrRateLimited, "fetch", "backoff", "", nil), true},
		{"persistence", Wrap(ErrPersistence, "store", "save dub verdict", "commit", nil), false},
		{"validation", Wrap(ErrValidation, "store", "upsert entity", "", nil), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Degradable(tt.err); got != tt.want {
				t.Errorf("Degradable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
