package gateway

import (
	"context"
	"time"
)

const (
	defaultMaxAttempts = 2
	baseDelay          = time.Second
	maxDelay           = 10 * time.Second
)

// withRetry retries fn on transport/HTTP failure with exponential backoff.
// Schema-level failures are handled one layer up and never reach here.
func withRetry[T any](ctx context.Context, maxAttempts int, fn func() (T, error)) (T, error) {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	var zero T
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		out, err := fn()
		if err == nil {
			return out, nil
		}
		lastErr = err
		if attempt == maxAttempts {
			break
		}
		delay := baseDelay << (attempt - 1)
		if delay > maxDelay {
			delay = maxDelay
		}
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
	}
	return zero, lastErr
}
