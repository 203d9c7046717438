package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// RetryConfig caps whole-call retries. Re-sending a script re-runs its side effects.
type RetryConfig struct {
	Attempts int
	Backoff  BackoffConfig
	// Retryable decides whether err warrants another attempt; nil retries everything.
	Retryable func(error) bool
	// Sleep waits between attempts; nil uses a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
	// OnRetry observes each scheduled retry.
	OnRetry func(attempt int, delay time.Duration, err error)
	Rand    *rand.Rand
}

// ExhaustedError is returned when every attempt failed.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("session: gave up after %d attempt(s): %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Last
}

// RunWithRetries calls fn until it succeeds, returns a non-retryable error,
// the context ends, or cfg.Attempts calls have failed.
func RunWithRetries(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context, attempt int) error) error {
	attempts := cfg.Attempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var last error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if last != nil {
				return fmt.Errorf("session: %w (last error: %v)", err, last)
			}
			return err
		}
		last = fn(ctx, attempt)
		if last == nil {
			return nil
		}
		if cfg.Retryable != nil && !cfg.Retryable(last) {
			return last
		}
		if attempt == attempts {
			break
		}
		delay := NextBackoffDelay(cfg.Backoff, attempt, cfg.Rand)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, delay, last)
		}
		if err := sleep(ctx, delay); err != nil {
			return fmt.Errorf("session: %w (last error: %v)", err, last)
		}
	}
	return &ExhaustedError{Attempts: attempts, Last: last}
}

// IsExhausted reports whether err came from running out of attempts.
func IsExhausted(err error) bool {
	var ex *ExhaustedError
	return errors.As(err, &ex)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
