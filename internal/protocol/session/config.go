package session

import "time"

// BackoffConfig defines retry backoff behavior.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

// Config defines per-call timing against the host.
type Config struct {
	ConnectTimeout    time.Duration
	Timeout           time.Duration
	PollInterval      time.Duration
	HeartbeatInterval time.Duration
	Retry             RetryConfig
}

// DebugTimeoutCap bounds every per-call timeout in debug mode.
const DebugTimeoutCap = 20 * time.Second

// DefaultConfig returns the defaults used when no config file overrides them.
func DefaultConfig() Config {
	return Config{
		ConnectTimeout:    5 * time.Second,
		Timeout:           120 * time.Second,
		PollInterval:      500 * time.Millisecond,
		HeartbeatInterval: 10 * time.Second,
		Retry: RetryConfig{
			Attempts: 3,
			Backoff: BackoffConfig{
				InitialDelay: time.Second,
				Multiplier:   2.0,
				MaxDelay:     30 * time.Second,
				Jitter:       false,
			},
		},
	}
}

// Debug shortens cfg for fast feedback while iterating on scripts.
func Debug(cfg Config) Config {
	cfg.Timeout = CapTimeout(cfg.Timeout, true)
	cfg.HeartbeatInterval = 2 * time.Second
	if cfg.Retry.Attempts > 2 {
		cfg.Retry.Attempts = 2
	}
	if cfg.Retry.Backoff.MaxDelay <= 0 || cfg.Retry.Backoff.MaxDelay > 5*time.Second {
		cfg.Retry.Backoff.MaxDelay = 5 * time.Second
	}
	return cfg
}

// CapTimeout applies the debug cap to d when debug is set.
func CapTimeout(d time.Duration, debug bool) time.Duration {
	if debug && (d <= 0 || d > DebugTimeoutCap) {
		return DebugTimeoutCap
	}
	return d
}
