package session

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/danmuck/legosorter/internal/testutil/testlog"
	"github.com/stretchr/testify/require"
)

func TestNextBackoffDelayDeterministicNoJitter(t *testing.T) {
	testlog.Start(t)
	cfg := BackoffConfig{
		InitialDelay: 250 * time.Millisecond,
		Multiplier:   2.0,
		MaxDelay:     5 * time.Second,
		Jitter:       false,
	}
	if got := NextBackoffDelay(cfg, 1, nil); got != 250*time.Millisecond {
		t.Fatalf("attempt1 got=%v", got)
	}
	if got := NextBackoffDelay(cfg, 2, nil); got != 500*time.Millisecond {
		t.Fatalf("attempt2 got=%v", got)
	}
	if got := NextBackoffDelay(cfg, 3, nil); got != time.Second {
		t.Fatalf("attempt3 got=%v", got)
	}
	if got := NextBackoffDelay(cfg, 6, nil); got != 5*time.Second {
		t.Fatalf("attempt6 got=%v", got)
	}
}

func TestNextBackoffDelayJitterBounds(t *testing.T) {
	testlog.Start(t)
	cfg := BackoffConfig{InitialDelay: time.Second, Multiplier: 2, MaxDelay: time.Minute, Jitter: true}
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 50; i++ {
		got := NextBackoffDelay(cfg, 3, rng)
		require.GreaterOrEqual(t, got, 2*time.Second)
		require.Less(t, got, 6*time.Second)
	}
	require.Equal(t, 2*time.Second, NextBackoffDelay(cfg, 3, nil))
}

func TestNextBackoffDelayJitterNeverShrinks(t *testing.T) {
	testlog.Start(t)
	cfg := BackoffConfig{InitialDelay: time.Second, Multiplier: 1.25, MaxDelay: 3 * time.Second, Jitter: true}
	rng := rand.New(rand.NewSource(11))
	for round := 0; round < 20; round++ {
		for attempt := 2; attempt <= 10; attempt++ {
			got := NextBackoffDelay(cfg, attempt, rng)
			require.GreaterOrEqual(t, got, stepDelay(cfg, attempt-1), "attempt %d", attempt)
			require.LessOrEqual(t, got, cfg.MaxDelay, "attempt %d", attempt)
		}
	}
	// at the cap jitter has no room left
	require.Equal(t, 3*time.Second, NextBackoffDelay(cfg, 10, nil))
	require.Equal(t, 3*time.Second, NextBackoffDelay(cfg, 10, rng))
}

func TestRunWithRetriesInvokesExactlyNTimesWithIncreasingBackoff(t *testing.T) {
	testlog.Start(t)
	var delays []time.Duration
	calls := 0
	boom := errors.New("read timeout")
	cfg := RetryConfig{
		Attempts: 4,
		Backoff:  BackoffConfig{InitialDelay: 100 * time.Millisecond, Multiplier: 2, MaxDelay: time.Second},
		Sleep: func(ctx context.Context, d time.Duration) error {
			delays = append(delays, d)
			return nil
		},
	}

	err := RunWithRetries(context.Background(), cfg, func(ctx context.Context, attempt int) error {
		calls++
		require.Equal(t, calls, attempt)
		return boom
	})

	require.Error(t, err)
	require.ErrorIs(t, err, boom)
	require.True(t, IsExhausted(err))
	require.Equal(t, 4, calls)
	require.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond}, delays)
	for i := 1; i < len(delays); i++ {
		require.Greater(t, delays[i], delays[i-1])
	}
}

func TestRunWithRetriesStopsOnSuccess(t *testing.T) {
	testlog.Start(t)
	calls := 0
	var observed []int
	cfg := RetryConfig{
		Attempts: 5,
		Sleep:    func(context.Context, time.Duration) error { return nil },
		OnRetry:  func(attempt int, _ time.Duration, _ error) { observed = append(observed, attempt) },
	}
	err := RunWithRetries(context.Background(), cfg, func(ctx context.Context, attempt int) error {
		calls++
		if attempt < 3 {
			return errors.New("not yet")
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
	require.Equal(t, []int{1, 2}, observed)
}

func TestRunWithRetriesNonRetryableReturnsImmediately(t *testing.T) {
	testlog.Start(t)
	permanent := errors.New("connection refused")
	calls := 0
	cfg := RetryConfig{
		Attempts:  5,
		Retryable: func(err error) bool { return !errors.Is(err, permanent) },
		Sleep:     func(context.Context, time.Duration) error { t.Fatalf("must not sleep"); return nil },
	}
	err := RunWithRetries(context.Background(), cfg, func(ctx context.Context, attempt int) error {
		calls++
		return permanent
	})
	require.ErrorIs(t, err, permanent)
	require.False(t, IsExhausted(err))
	require.Equal(t, 1, calls)
}

func TestRunWithRetriesHonoursContext(t *testing.T) {
	testlog.Start(t)
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	cfg := RetryConfig{
		Attempts: 3,
		Backoff:  BackoffConfig{InitialDelay: time.Hour},
	}
	err := RunWithRetries(ctx, cfg, func(ctx context.Context, attempt int) error {
		calls++
		cancel()
		return errors.New("slow host")
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, calls)
}

func TestRunWithRetriesZeroAttemptsRunsOnce(t *testing.T) {
	testlog.Start(t)
	calls := 0
	err := RunWithRetries(context.Background(), RetryConfig{}, func(ctx context.Context, attempt int) error {
		calls++
		return errors.New("fail")
	})
	require.True(t, IsExhausted(err))
	require.Equal(t, 1, calls)
}

func TestDebugProfile(t *testing.T) {
	testlog.Start(t)
	cfg := Debug(DefaultConfig())
	require.Equal(t, DebugTimeoutCap, cfg.Timeout)
	require.Equal(t, 2*time.Second, cfg.HeartbeatInterval)
	require.Equal(t, 2, cfg.Retry.Attempts)
	require.Equal(t, 5*time.Second, cfg.Retry.Backoff.MaxDelay)

	require.Equal(t, 5*time.Second, CapTimeout(5*time.Second, true))
	require.Equal(t, DebugTimeoutCap, CapTimeout(10*time.Minute, true))
	require.Equal(t, 10*time.Minute, CapTimeout(10*time.Minute, false))
}
