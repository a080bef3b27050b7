package retry

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"
)

var fastConfig = Config{
	MaxAttempts:  3,
	InitialDelay: time.Millisecond,
	MaxDelay:     5 * time.Millisecond,
	Multiplier:   2.0,
}

func TestWithRetry(t *testing.T) {
	t.Run("succeeds on first attempt", func(t *testing.T) {
		calls := 0
		result, err := WithRetry(context.Background(), fastConfig, Always,
			func(context.Context) (string, error) {
				calls++
				return "success", nil
			},
		)

		if err != nil {
			t.Errorf("expected no error, got %v", err)
		}
		if result != "success" {
			t.Errorf("expected 'success', got %s", result)
		}
		if calls != 1 {
			t.Errorf("expected 1 call, got %d", calls)
		}
	})

	t.Run("retries on retryable error", func(t *testing.T) {
		calls := 0
		result, err := WithRetry(context.Background(), fastConfig, Always,
			func(context.Context) (int64, error) {
				calls++
				if calls < 3 {
					return 0, errors.New("temporary error")
				}
				return 84532, nil
			},
		)

		if err != nil {
			t.Errorf("expected no error, got %v", err)
		}
		if result != 84532 {
			t.Errorf("expected 84532, got %d", result)
		}
		if calls != 3 {
			t.Errorf("expected 3 calls, got %d", calls)
		}
	})

	t.Run("respects max attempts", func(t *testing.T) {
		calls := 0
		persistent := errors.New("persistent error")
		_, err := WithRetry(context.Background(), fastConfig, Always,
			func(context.Context) (string, error) {
				calls++
				return "", persistent
			},
		)

		if !errors.Is(err, persistent) {
			t.Errorf("expected wrapped persistent error, got %v", err)
		}
		if calls != 3 {
			t.Errorf("expected 3 calls, got %d", calls)
		}
	})

	t.Run("does not retry non-retryable errors", func(t *testing.T) {
		calls := 0
		fatal := errors.New("non-retryable error")

		_, err := WithRetry(context.Background(), fastConfig,
			func(err error) bool { return !errors.Is(err, fatal) },
			func(context.Context) (string, error) {
				calls++
				return "", fatal
			},
		)

		if err != fatal {
			t.Errorf("expected the unwrapped error, got %v", err)
		}
		if calls != 1 {
			t.Errorf("expected 1 call (no retries), got %d", calls)
		}
	})

	t.Run("respects context cancellation before attempt", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		calls := 0
		_, err := WithRetry(ctx, fastConfig, Always,
			func(context.Context) (string, error) {
				calls++
				return "", errors.New("error")
			},
		)

		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if calls != 0 {
			t.Errorf("expected 0 calls, got %d", calls)
		}
	})

	t.Run("respects context cancellation during delay", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		calls := 0
		config := Config{MaxAttempts: 10, InitialDelay: 100 * time.Millisecond, MaxDelay: time.Second, Multiplier: 2}
		_, err := WithRetry(ctx, config, Always,
			func(context.Context) (string, error) {
				calls++
				return "", errors.New("error")
			},
		)

		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected context.DeadlineExceeded, got %v", err)
		}
		if calls != 1 {
			t.Errorf("expected 1 call before the deadline, got %d", calls)
		}
	})

	t.Run("applies per-attempt timeout", func(t *testing.T) {
		config := fastConfig
		config.AttemptTimeout = 5 * time.Millisecond

		calls := 0
		_, err := WithRetry(context.Background(), config, IsTransient,
			func(ctx context.Context) (string, error) {
				calls++
				<-ctx.Done()
				return "", ctx.Err()
			},
		)

		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected DeadlineExceeded, got %v", err)
		}
		if calls != 3 {
			t.Errorf("expected every attempt to time out and retry, got %d calls", calls)
		}
	})

	t.Run("rejects invalid MaxAttempts", func(t *testing.T) {
		for _, attempts := range []int{0, -1} {
			config := fastConfig
			config.MaxAttempts = attempts
			calls := 0
			_, err := WithRetry(context.Background(), config, Always,
				func(context.Context) (string, error) {
					calls++
					return "success", nil
				},
			)
			if err == nil {
				t.Errorf("expected error for MaxAttempts=%d", attempts)
			}
			if calls != 0 {
				t.Errorf("expected 0 calls, got %d", calls)
			}
		}
	})
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, true},
		{"op error", &net.OpError{Op: "dial", Err: errors.New("connection refused")}, true},
		{"dns error", &net.DNSError{Err: "no such host", Name: "rpc.example"}, true},
		{"plain error", errors.New("execution reverted"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}
