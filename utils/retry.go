package utils

import (
	"context"
	"math/rand"
	"strings"
	"time"
)

// RetryConfig holds the parameters for the retry strategy. It is usable over
// any fallible operation, not just page fetches.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Logger      *Logger
}

// Do executes fn with jittered exponential back-off until it succeeds or the
// attempt budget is exhausted. The base delay is doubled when the previous
// failure looks like a rate-limit response. When all attempts fail, the last
// error is returned unwrapped so callers can still inspect its type.
func (r *RetryConfig) Do(ctx context.Context, operationName string, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt < r.MaxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if attempt == r.MaxAttempts-1 {
			break
		}

		delay := backoffDelay(r.BaseDelay, attempt, lastErr)
		r.Logger.Warn("[retry] %s failed (attempt %d/%d): %v — retrying in %s",
			operationName, attempt+1, r.MaxAttempts, lastErr, delay.Round(time.Second))

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	r.Logger.Error("[retry] %s failed after %d attempts: %v", operationName, r.MaxAttempts, lastErr)
	return lastErr
}

// backoffDelay computes base * 2^attempt scaled by a jitter in [0.75, 1.25).
// Rate-limited failures double the base before the exponent applies.
func backoffDelay(base time.Duration, attempt int, err error) time.Duration {
	if IsRateLimited(err) {
		base *= 2
	}
	jitter := 0.75 + rand.Float64()*0.5
	return time.Duration(float64(base) * float64(int64(1)<<uint(attempt)) * jitter)
}

// IsRateLimited reports whether err looks like an HTTP 429 response.
func IsRateLimited(err error) bool {
	return err != nil && strings.Contains(err.Error(), "429")
}
