package config

import (
	"net"
	"strconv"
	"time"

	"github.com/danmuck/legosorter/internal/mcp"
	"github.com/danmuck/legosorter/internal/protocol/session"
)

// Addr is the host add-on address as host:port.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Blender.Host, strconv.Itoa(c.Blender.Port))
}

// Session maps the file onto the client timing policy, debug profile applied.
func (c Config) Session() session.Config {
	s := session.Config{
		ConnectTimeout:    c.Blender.ConnectTimeout.Duration,
		Timeout:           c.Blender.Timeout.Duration,
		PollInterval:      c.Blender.PollInterval.Duration,
		HeartbeatInterval: c.Blender.HeartbeatInterval.Duration,
		Retry: session.RetryConfig{
			Attempts: c.Retry.Attempts,
			Backoff: session.BackoffConfig{
				InitialDelay: c.Retry.InitialDelay.Duration,
				Multiplier:   c.Retry.Multiplier,
				MaxDelay:     c.Retry.MaxDelay.Duration,
				Jitter:       c.Retry.Jitter,
			},
		},
	}
	if c.TimeoutOverride > 0 {
		s.Timeout = c.TimeoutOverride
	}
	if c.Debug {
		s = session.Debug(s)
	}
	return s
}

// StageTimeout resolves the reply timeout for one stage: the env override wins,
// then the per-stage entry, then the blender default.
func (c Config) StageTimeout(id string) time.Duration {
	d := c.Blender.Timeout.Duration
	if st, ok := c.Pipeline.StageTimeouts[id]; ok && st.Duration > 0 {
		d = st.Duration
	}
	if c.TimeoutOverride > 0 {
		d = c.TimeoutOverride
	}
	return session.CapTimeout(d, c.Debug)
}

// Tunnel returns the SSH tunnel settings, ok false when the tunnel is off.
func (c Config) Tunnel() (mcp.SSHConfig, bool) {
	ssh := c.Blender.SSH
	if !ssh.Enabled {
		return mcp.SSHConfig{}, false
	}
	return mcp.SSHConfig{
		Host:                        ssh.Host,
		Port:                        ssh.Port,
		User:                        ssh.User,
		KeyPath:                     ssh.KeyPath,
		KnownHostsPath:              ssh.KnownHostsPath,
		InsecureSkipHostKeyChecking: ssh.InsecureSkipHostKeyChecking,
		Timeout:                     ssh.Timeout.Duration,
		Remote:                      c.Addr(),
	}, true
}
