package mcp

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/danmuck/legosorter/internal/protocol"
	"github.com/danmuck/legosorter/internal/protocol/session"
	"github.com/danmuck/legosorter/internal/testutil/mcptest"
	"github.com/danmuck/legosorter/internal/testutil/testlog"
	"github.com/stretchr/testify/require"
)

func fastConfig() session.Config {
	cfg := session.DefaultConfig()
	cfg.ConnectTimeout = time.Second
	cfg.Timeout = 2 * time.Second
	cfg.PollInterval = 20 * time.Millisecond
	cfg.HeartbeatInterval = 50 * time.Millisecond
	cfg.Retry.Sleep = func(context.Context, time.Duration) error { return nil }
	return cfg
}

func TestExecuteRoundTripsSetAndRead(t *testing.T) {
	testlog.Start(t)

	var mu sync.Mutex
	values := map[string]string{}
	srv := mcptest.Start(t, mcptest.ReplyFunc(func(code string) string {
		mu.Lock()
		defer mu.Unlock()
		if rest, ok := strings.CutPrefix(code, "set "); ok {
			k, v, _ := strings.Cut(rest, "=")
			values[k] = v
			return "ok"
		}
		return values[strings.TrimPrefix(code, "get ")]
	}))

	client := NewClient(srv.Addr(), fastConfig())
	_, err := client.Execute(context.Background(), "set marker=lego-42", ExecOptions{})
	require.NoError(t, err)

	res, err := client.Execute(context.Background(), "get marker", ExecOptions{Description: "read marker"})
	require.NoError(t, err)
	require.Equal(t, "lego-42", res.Output)
	require.Equal(t, 1, res.Attempts)

	reqs := srv.Requests()
	require.Len(t, reqs, 2)
	require.Equal(t, protocol.TypeExecuteCode, reqs[0].Type)
	require.Equal(t, "set marker=lego-42", reqs[0].Params.Code)
}

func TestExecuteReadsSplitReply(t *testing.T) {
	testlog.Start(t)

	output := strings.Repeat("brick ", 200)
	srv := mcptest.Start(t, mcptest.Split(output, 7, 2*time.Millisecond))

	res, err := NewClient(srv.Addr(), fastConfig()).Execute(context.Background(), "print('x')", ExecOptions{})
	require.NoError(t, err)
	require.Equal(t, output, res.Output)
}

func TestExecuteReportsTimeoutWithHeartbeats(t *testing.T) {
	testlog.Start(t)

	srv := mcptest.Start(t, mcptest.Delay(time.Second, mcptest.Reply("late")))

	var beats int
	start := time.Now()
	_, err := NewClient(srv.Addr(), fastConfig()).Execute(context.Background(), "sleep", ExecOptions{
		Timeout:   250 * time.Millisecond,
		Heartbeat: func(time.Duration) { beats++ },
	})
	require.ErrorIs(t, err, ErrTimeout)
	require.True(t, IsTimeout(err))
	require.Less(t, time.Since(start), 900*time.Millisecond)
	require.GreaterOrEqual(t, beats, 2)
}

func TestExecuteUnreachableIsImmediate(t *testing.T) {
	testlog.Start(t)

	client := NewClient(mcptest.ClosedAddr(t), fastConfig())
	start := time.Now()
	_, err := client.ExecuteWithRetries(context.Background(), "print(1)", ExecOptions{})
	require.ErrorIs(t, err, ErrUnreachable)
	require.False(t, session.IsExhausted(err))
	require.Less(t, time.Since(start), time.Second)

	require.ErrorIs(t, client.Ping(context.Background()), ErrUnreachable)
}

func TestExecuteRemoteError(t *testing.T) {
	testlog.Start(t)

	srv := mcptest.Start(t, mcptest.Fail("NameError: name 'bpy' is not defined"))
	_, err := NewClient(srv.Addr(), fastConfig()).ExecuteWithRetries(context.Background(), "bpy", ExecOptions{})
	require.True(t, IsRemote(err))

	var remote *protocol.RemoteError
	require.ErrorAs(t, err, &remote)
	require.Contains(t, remote.Message, "NameError")
	require.Len(t, srv.Requests(), 1)
}

func TestExecuteMalformedReplies(t *testing.T) {
	testlog.Start(t)

	cases := map[string]mcptest.Handler{
		"not json":       mcptest.Raw("hello there"),
		"truncated":      mcptest.Raw(`{"status":"succ`),
		"hangup":         mcptest.Hangup(),
		"unknown status": mcptest.Raw(`{"status":"pending"}`),
		"not an object":  mcptest.Raw(`["success"]`),
	}
	for name, handler := range cases {
		t.Run(name, func(t *testing.T) {
			srv := mcptest.Start(t, handler)
			_, err := NewClient(srv.Addr(), fastConfig()).Execute(context.Background(), "x", ExecOptions{})
			require.Error(t, err)
			require.True(t, IsMalformed(err), "got %v", err)
		})
	}
}

func TestExecuteWithRetriesCallsExactlyAttemptsTimes(t *testing.T) {
	testlog.Start(t)

	srv := mcptest.Start(t, mcptest.Delay(300*time.Millisecond, nil))

	cfg := fastConfig()
	cfg.Retry.Attempts = 3
	var delays []time.Duration
	cfg.Retry.Sleep = func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}

	res, err := NewClient(srv.Addr(), cfg).ExecuteWithRetries(context.Background(), "slow()", ExecOptions{
		Timeout: 60 * time.Millisecond,
	})
	require.ErrorIs(t, err, ErrTimeout)
	require.True(t, session.IsExhausted(err))
	require.Equal(t, 3, res.Attempts)
	require.Equal(t, []time.Duration{time.Second, 2 * time.Second}, delays)

	require.Eventually(t, func() bool { return len(srv.Requests()) == 3 }, time.Second, 10*time.Millisecond)
}

func TestExecuteWithRetriesRecoversAfterTimeout(t *testing.T) {
	testlog.Start(t)

	srv := mcptest.Start(t, mcptest.Sequence(
		mcptest.Delay(300*time.Millisecond, nil),
		mcptest.Reply("second try"),
	))

	res, err := NewClient(srv.Addr(), fastConfig()).ExecuteWithRetries(context.Background(), "x", ExecOptions{
		Timeout: 80 * time.Millisecond,
	})
	require.NoError(t, err)
	require.Equal(t, "second try", res.Output)
	require.Equal(t, 2, res.Attempts)
}

func TestExecuteScript(t *testing.T) {
	testlog.Start(t)

	srv := mcptest.Start(t, mcptest.ReplyFunc(func(code string) string { return "ran:" + code }))
	client := NewClient(srv.Addr(), fastConfig())

	dir := t.TempDir()
	path := filepath.Join(dir, "hello.py")
	require.NoError(t, os.WriteFile(path, []byte("print('hi')"), 0o644))

	res, err := client.ExecuteScript(context.Background(), path, ExecOptions{})
	require.NoError(t, err)
	require.Equal(t, "ran:print('hi')", res.Output)

	_, err = client.ExecuteScript(context.Background(), filepath.Join(dir, "missing.py"), ExecOptions{})
	require.ErrorIs(t, err, ErrScriptNotFound)
	require.Len(t, srv.Requests(), 1)
}

func TestExecuteRejectsEmptyCodeWithoutDialing(t *testing.T) {
	testlog.Start(t)

	srv := mcptest.Start(t, mcptest.Reply("unused"))
	_, err := NewClient(srv.Addr(), fastConfig()).Execute(context.Background(), "  ", ExecOptions{})
	require.ErrorIs(t, err, protocol.ErrEmptyCode)
	require.Zero(t, srv.Connections())
}

type countingDialer struct {
	mu    sync.Mutex
	calls int
	net.Dialer
}

func (d *countingDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	d.mu.Lock()
	d.calls++
	d.mu.Unlock()
	return d.Dialer.DialContext(ctx, network, address)
}

func TestWithDialerIsUsed(t *testing.T) {
	testlog.Start(t)

	srv := mcptest.Start(t, mcptest.Reply("ok"))
	dialer := &countingDialer{}
	client := NewClient(srv.Addr(), fastConfig(), WithDialer(dialer))
	require.NoError(t, client.Ping(context.Background()))
	_, err := client.Execute(context.Background(), "x", ExecOptions{})
	require.NoError(t, err)
	require.Equal(t, 2, dialer.calls)
}

func TestSSHConfigValidation(t *testing.T) {
	cfg := SSHConfig{}
	_, err := cfg.address()
	require.Error(t, err)

	cfg.Host = "render-box"
	addr, err := cfg.address()
	require.NoError(t, err)
	require.Equal(t, "render-box:22", addr)

	cfg.Port = "2222"
	addr, err = cfg.address()
	require.NoError(t, err)
	require.Equal(t, "render-box:2222", addr)

	_, err = cfg.clientConfig()
	require.Error(t, err)

	cfg.User = "blender"
	_, err = cfg.clientConfig()
	require.ErrorContains(t, err, "key path")

	_, err = OpenTunnel(context.Background(), SSHConfig{Host: "render-box"})
	require.ErrorContains(t, err, "remote address")
}

func TestTunnelDialsRemoteForEachCall(t *testing.T) {
	testlog.Start(t)
	srv := mcptest.Start(t, mcptest.Reply("through the tunnel"))

	var dialed []string
	var mu sync.Mutex
	tun := newTunnel(SSHConfig{Remote: srv.Addr()}, func(ctx context.Context, network, address string) (net.Conn, error) {
		mu.Lock()
		dialed = append(dialed, address)
		mu.Unlock()
		var d net.Dialer
		return d.DialContext(ctx, network, address)
	})
	t.Cleanup(func() { require.NoError(t, tun.Close()) })

	client := NewClient(tun.Addr(), fastConfig(), WithDialer(tun))
	require.NoError(t, client.Ping(context.Background()))
	res, err := client.Execute(context.Background(), "print('hi')", ExecOptions{})
	require.NoError(t, err)
	require.Equal(t, "through the tunnel", res.Output)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{srv.Addr(), srv.Addr()}, dialed)
}

func TestTunnelReportsClosedRemoteAsUnreachable(t *testing.T) {
	testlog.Start(t)
	remote := mcptest.ClosedAddr(t)
	tun := newTunnel(SSHConfig{Remote: remote}, func(ctx context.Context, network, address string) (net.Conn, error) {
		var d net.Dialer
		return d.DialContext(ctx, network, address)
	})
	t.Cleanup(func() { require.NoError(t, tun.Close()) })

	client := NewClient(tun.Addr(), fastConfig(), WithDialer(tun))
	err := client.Ping(context.Background())
	require.True(t, IsUnreachable(err), "%v", err)

	_, err = client.ExecuteWithRetries(context.Background(), "print('hi')", ExecOptions{})
	require.True(t, IsUnreachable(err), "%v", err)
}
