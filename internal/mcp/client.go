package mcp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/danmuck/legosorter/internal/observability"
	"github.com/danmuck/legosorter/internal/protocol"
	"github.com/danmuck/legosorter/internal/protocol/session"
	"github.com/rs/zerolog/log"
)

const readChunkSize = 8192

// Dialer opens the TCP connection to the host.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// ExecOptions tunes one execution.
type ExecOptions struct {
	// Description names the script in logs.
	Description string
	// Timeout bounds the wait for the reply; zero uses the client default.
	Timeout time.Duration
	// Heartbeat is called every HeartbeatInterval while waiting; nil logs instead.
	Heartbeat func(elapsed time.Duration)
}

// Result is a successful execution.
type Result struct {
	Output   string
	Duration time.Duration
	Attempts int
}

// Client talks to one host address.
type Client struct {
	addr   string
	cfg    session.Config
	dialer Dialer
}

type Option func(*Client)

// WithDialer replaces the direct TCP dialer.
func WithDialer(d Dialer) Option {
	return func(c *Client) {
		if d != nil {
			c.dialer = d
		}
	}
}

// NewClient constructs a client bound to addr.
func NewClient(addr string, cfg session.Config, opts ...Option) *Client {
	c := &Client{
		addr:   strings.TrimSpace(addr),
		cfg:    cfg,
		dialer: &net.Dialer{Timeout: cfg.ConnectTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Addr() string {
	return c.addr
}

func (c *Client) Config() session.Config {
	return c.cfg
}

// Ping checks that something is listening on the host address.
func (c *Client) Ping(ctx context.Context) error {
	conn, err := c.dial(ctx)
	if err != nil {
		log.Warn().Str("addr", c.addr).Err(err).Msg("mcp.ping unreachable")
		return err
	}
	_ = conn.Close()
	log.Info().Str("addr", c.addr).Msg("mcp.ping ok")
	return nil
}

// Execute sends code once and waits for the reply.
func (c *Client) Execute(ctx context.Context, code string, opts ExecOptions) (Result, error) {
	start := time.Now()
	desc := describe(opts.Description)

	line, err := protocol.EncodeRequest(code)
	if err != nil {
		return Result{}, err
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = c.cfg.Timeout
	}

	conn, err := c.dial(ctx)
	if err != nil {
		observability.RecordExecution(observability.OutcomeUnreachable, time.Since(start))
		return Result{}, err
	}
	defer conn.Close()

	deadline := start.Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	log.Debug().Str("script", desc).Int("bytes", len(line)).Dur("timeout", timeout).Msg("mcp.execute send")
	_ = conn.SetWriteDeadline(deadline)
	if _, err := conn.Write(line); err != nil {
		observability.RecordExecution(observability.OutcomeTransport, time.Since(start))
		return Result{}, fmt.Errorf("mcp: send %s: %w", desc, err)
	}

	body, err := c.readResponse(ctx, conn, start, deadline, desc, opts.Heartbeat)
	if err != nil {
		observability.RecordExecution(outcomeOf(err), time.Since(start))
		return Result{}, err
	}

	resp, err := protocol.DecodeResponse(body)
	if err != nil {
		observability.RecordExecution(observability.OutcomeMalformed, time.Since(start))
		return Result{}, err
	}
	if err := resp.Err(); err != nil {
		observability.RecordExecution(outcomeOf(err), time.Since(start))
		return Result{}, err
	}

	elapsed := time.Since(start)
	observability.RecordExecution(observability.OutcomeSuccess, elapsed)
	log.Debug().Str("script", desc).Dur("elapsed", elapsed).Msg("mcp.execute ok")
	return Result{Output: resp.Output(), Duration: elapsed, Attempts: 1}, nil
}

// ExecuteWithRetries re-sends code after timeouts with exponential backoff.
// Every other failure is returned as-is after the first attempt.
func (c *Client) ExecuteWithRetries(ctx context.Context, code string, opts ExecOptions) (Result, error) {
	desc := describe(opts.Description)
	retry := c.cfg.Retry
	retry.Retryable = IsTimeout
	userOnRetry := retry.OnRetry
	retry.OnRetry = func(attempt int, delay time.Duration, err error) {
		observability.RecordRetry()
		log.Warn().
			Str("script", desc).
			Int("attempt", attempt).
			Dur("backoff", delay).
			Err(err).
			Msg("mcp.execute retry")
		if userOnRetry != nil {
			userOnRetry(attempt, delay, err)
		}
	}

	var out Result
	attempts := 0
	err := session.RunWithRetries(ctx, retry, func(ctx context.Context, attempt int) error {
		attempts = attempt
		res, err := c.Execute(ctx, code, opts)
		if err != nil {
			return err
		}
		out = res
		return nil
	})
	out.Attempts = attempts
	return out, err
}

// ExecuteScript reads a script file and executes it with retries.
func (c *Client) ExecuteScript(ctx context.Context, path string, opts ExecOptions) (Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Result{}, fmt.Errorf("%w: %s", ErrScriptNotFound, path)
		}
		return Result{}, fmt.Errorf("mcp: read script %s: %w", path, err)
	}
	if opts.Description == "" {
		opts.Description = filepath.Base(path)
	}
	log.Info().Str("path", path).Msg("mcp.execute script")
	return c.ExecuteWithRetries(ctx, string(data), opts)
}

func (c *Client) dial(ctx context.Context) (net.Conn, error) {
	if c.addr == "" {
		return nil, fmt.Errorf("%w: address required", ErrUnreachable)
	}
	dctx := ctx
	if c.cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		dctx, cancel = context.WithTimeout(ctx, c.cfg.ConnectTimeout)
		defer cancel()
	}
	conn, err := c.dialer.DialContext(dctx, "tcp", c.addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnreachable, c.addr, err)
	}
	return conn, nil
}

// readResponse polls the connection until the buffer holds one JSON value.
func (c *Client) readResponse(
	ctx context.Context,
	conn net.Conn,
	start, deadline time.Time,
	desc string,
	heartbeat func(time.Duration),
) ([]byte, error) {
	poll := c.cfg.PollInterval
	if poll <= 0 {
		poll = 500 * time.Millisecond
	}
	if heartbeat == nil {
		heartbeat = func(elapsed time.Duration) {
			log.Info().Str("script", desc).Dur("elapsed", elapsed.Round(time.Second)).Msg("mcp.execute waiting for host")
		}
	}

	buf := make([]byte, 0, readChunkSize)
	chunk := make([]byte, readChunkSize)
	lastBeat := start
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		now := time.Now()
		if !now.Before(deadline) {
			return nil, fmt.Errorf("%w: %s after %s", ErrTimeout, desc, now.Sub(start).Round(time.Millisecond))
		}
		if c.cfg.HeartbeatInterval > 0 && now.Sub(lastBeat) >= c.cfg.HeartbeatInterval {
			lastBeat = now
			heartbeat(now.Sub(start))
		}

		readUntil := now.Add(poll)
		if readUntil.After(deadline) {
			readUntil = deadline
		}
		_ = conn.SetReadDeadline(readUntil)

		n, err := conn.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			if protocol.Complete(buf) {
				return buf, nil
			}
		}
		if err == nil {
			continue
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			continue
		}
		if errors.Is(err, io.EOF) {
			if len(bytes.TrimSpace(buf)) == 0 {
				return nil, fmt.Errorf("%w: connection closed without a reply", protocol.ErrMalformedResponse)
			}
			return buf, nil
		}
		return nil, fmt.Errorf("mcp: read %s: %w", desc, err)
	}
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return observability.OutcomeSuccess
	case IsTimeout(err):
		return observability.OutcomeTimeout
	case IsUnreachable(err):
		return observability.OutcomeUnreachable
	case IsRemote(err):
		return observability.OutcomeRemoteError
	case IsMalformed(err):
		return observability.OutcomeMalformed
	default:
		return observability.OutcomeTransport
	}
}

func describe(desc string) string {
	desc = strings.TrimSpace(desc)
	if desc == "" {
		return "code"
	}
	return desc
}
