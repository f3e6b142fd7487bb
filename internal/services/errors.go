package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

var (
	ErrRateLimited = errors.New("rate limited")
	ErrTransport   = errors.New("transport error")
	ErrShape       = errors.New("unexpected response shape")
	ErrPersistence = errors.New("persistence error")
	ErrNotFound    = errors.New("not found")
	ErrValidation  = errors.New("validation error")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransport
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}

// IsRetriable reports whether err represents a transient condition that
// warrants an automatic retry (rate limits, timeouts, connection errors).
func IsRetriable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	message := strings.ToLower(err.Error())
	if strings.Contains(message, "429") || strings.Contains(message, "rate limit") {
		return true
	}
	// Server errors are typically transient (outages, deploys, overload).
	for _, code := range []string{"502", "503", "504"} {
		if strings.Contains(message, code) {
			return true
		}
	}
	timeoutTokens := []string{
		"timeout",
		"deadline exceeded",
		"connection reset",
		"connection refused",
		"temporary failure",
		"awaiting headers",
	}
	for _, token := range timeoutTokens {
		if strings.Contains(message, token) {
			return true
		}
	}
	return false
}

// Degradable reports whether err should demote a single source probe to a
// not-applicable result instead of failing the resolution. Transport, shape,
// and rate-limit failures all degrade; persistence failures do not.
func Degradable(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrTransport) ||
		errors.Is(err, ErrShape) ||
		errors.Is(err, ErrRateLimited) ||
		IsRetriable(err)
}
