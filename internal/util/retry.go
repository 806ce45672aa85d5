package util

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// RetryWithBackoff calls fn up to maxRetries+1 times with exponential backoff
// starting at one second.
func RetryWithBackoff(ctx context.Context, maxRetries int, fn func(attempt int) error) error {
	return RetryWithBackoffBase(ctx, maxRetries, time.Second, fn)
}

// RetryWithBackoffBase is RetryWithBackoff with a configurable first delay;
// the delay doubles after each failed attempt.
// Attempts are numbered from zero.
// Cancellation of ctx ends the loop with ctx.Err().
func RetryWithBackoffBase(ctx context.Context, maxRetries int, base time.Duration, fn func(attempt int) error) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		lastErr = fn(attempt)
		if lastErr == nil {
			return nil
		}

		// no sleep after the final attempt
		if attempt == maxRetries {
			break
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		backoff := base << attempt
		slog.Debug("Retrying after failure", "attempt", attempt+1, "backoff", backoff, "error", lastErr)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return fmt.Errorf("failed after %d retries: %w", maxRetries, lastErr)
}
