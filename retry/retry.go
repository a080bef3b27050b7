// Package retry runs read-only RPC calls with exponential backoff. It must not be
// used for state-changing calls such as settlement submission, where a retry
// could broadcast a second transaction.
package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// Config holds retry configuration.
type Config struct {
	MaxAttempts    int           // attempts including the first one
	InitialDelay   time.Duration // delay before the second attempt
	MaxDelay       time.Duration // cap on the delay between attempts
	Multiplier     float64       // backoff growth factor
	AttemptTimeout time.Duration // per-attempt deadline, zero for none
}

// DefaultConfig is used for chain id lookups at startup.
var DefaultConfig = Config{
	MaxAttempts:    3,
	InitialDelay:   100 * time.Millisecond,
	MaxDelay:       5 * time.Second,
	Multiplier:     2.0,
	AttemptTimeout: 5 * time.Second,
}

// IsRetryable determines if an error should trigger a retry.
type IsRetryable func(error) bool

// IsTransient reports whether err looks like a network hiccup worth retrying.
// Cancellation of the caller's context is never transient.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// Always retries every error.
func Always(error) bool { return true }

// WithRetry calls fn until it succeeds, returns a non-retryable error, or the
// attempts are exhausted. Each attempt gets its own context bounded by
// AttemptTimeout.
func WithRetry[T any](
	ctx context.Context,
	config Config,
	isRetryable IsRetryable,
	fn func(ctx context.Context) (T, error),
) (T, error) {
	var zero T
	if config.MaxAttempts < 1 {
		return zero, fmt.Errorf("retry: MaxAttempts must be at least 1, got %d", config.MaxAttempts)
	}

	var lastErr error
	delay := config.InitialDelay

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, fmt.Errorf("context cancelled: %w", err)
		}

		result, err := attemptOnce(ctx, config.AttemptTimeout, fn)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !isRetryable(err) || attempt == config.MaxAttempts {
			break
		}

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		}
		delay = time.Duration(float64(delay) * config.Multiplier)
		if delay > config.MaxDelay {
			delay = config.MaxDelay
		}
	}

	if !isRetryable(lastErr) {
		return zero, lastErr
	}
	return zero, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func attemptOnce[T any](ctx context.Context, timeout time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(attemptCtx)
}
