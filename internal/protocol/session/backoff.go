package session

import (
	"math"
	"math/rand"
	"time"
)

// NextBackoffDelay returns the sleep after failed attempt N (1-based).
// Jitter spreads the delay between the previous step and 1.5x the current
// one, so a retry never waits less than the one before it. MaxDelay caps
// the result either way.
func NextBackoffDelay(cfg BackoffConfig, attempt int, rng *rand.Rand) time.Duration {
	if attempt <= 1 {
		return cfg.InitialDelay
	}
	if cfg.InitialDelay <= 0 {
		return 0
	}
	step := stepDelay(cfg, attempt)
	if !cfg.Jitter {
		return step
	}

	f := 0.5
	if rng != nil {
		f += rng.Float64()
	}
	delay := max(time.Duration(float64(step)*f), stepDelay(cfg, attempt-1))
	if cfg.MaxDelay > 0 {
		delay = min(delay, cfg.MaxDelay)
	}
	return delay
}

// stepDelay is the un-jittered delay for attempt N.
func stepDelay(cfg BackoffConfig, attempt int) time.Duration {
	mult := max(cfg.Multiplier, 1.0)
	delay := float64(cfg.InitialDelay) * math.Pow(mult, float64(attempt-1))
	if cfg.MaxDelay > 0 && delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}
	return time.Duration(delay)
}
