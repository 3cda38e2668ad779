package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

var (
	// ErrProviderUnavailable means no provider or no credential is configured.
	ErrProviderUnavailable = errors.New("ai provider unavailable")
	// ErrProviderTimeout means the bounded wait for a provider elapsed.
	ErrProviderTimeout = errors.New("ai provider timed out")
	// ErrUnparsableResponse means no JSON could be extracted from a completion.
	ErrUnparsableResponse = errors.New("ai response unparsable")
)

// HTTPError carries a non-2xx provider response.
type HTTPError struct {
	Provider string
	Status   int
	Message  string
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: status %d", e.Provider, e.Status)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.Status, e.Message)
}

// Retryable reports whether the status is worth another attempt.
func (e *HTTPError) Retryable() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

func shouldRetry(err error) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Retryable()
	}
	return false
}

// shouldFallback reports whether a second provider may succeed where the
// first failed.
func shouldFallback(err error) bool {
	if errors.Is(err, ErrProviderUnavailable) || errors.Is(err, ErrProviderTimeout) {
		return true
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Status >= 500 || httpErr.Status == http.StatusTooManyRequests
	}
	return false
}

// classifyTransport turns deadline and network timeouts into ErrProviderTimeout.
// callerCtx is the context the caller passed in, so a caller cancellation is
// reported as such rather than as a provider timeout.
func classifyTransport(callerCtx context.Context, provider string, err error) error {
	if err == nil {
		return nil
	}
	if callerCtx.Err() != nil && !errors.Is(callerCtx.Err(), context.DeadlineExceeded) {
		return callerCtx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", provider, ErrProviderTimeout)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%s: %w", provider, ErrProviderTimeout)
	}
	return fmt.Errorf("%s request: %w", provider, err)
}
