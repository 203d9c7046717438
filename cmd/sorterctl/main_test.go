package main

import (
	"bytes"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/danmuck/legosorter/internal/testutil/mcptest"
	"github.com/danmuck/legosorter/internal/testutil/testlog"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, addr string) string {
	t.Helper()
	host, port, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "legosorter.toml")
	body := fmt.Sprintf("[blender]\nhost = %q\nport = %s\nconnect_timeout = \"1s\"\npoll_interval = \"20ms\"\n\n[render]\ndir = %q\n",
		host, port, filepath.Join(t.TempDir(), "renders"))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func runCLI(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestUsageErrorsExitOne(t *testing.T) {
	testlog.Start(t)
	cfg := writeConfig(t, mcptest.ClosedAddr(t))

	code, _, stderr := runCLI("-config", cfg, "teleport")
	require.Equal(t, 1, code)
	require.Contains(t, stderr, `unknown command "teleport"`)

	code, _, _ = runCLI("-nope")
	require.Equal(t, 1, code)

	code, _, stderr = runCLI("-config", cfg, "stage")
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "exactly one stage id")

	code, _, _ = runCLI("-config", cfg, "stage", "unknown_stage")
	require.Equal(t, 1, code)

	code, _, _ = runCLI("-config", cfg, "render", "-frames", "0")
	require.Equal(t, 1, code)

	code, _, stderr = runCLI("-config", cfg, "render", "extra")
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "unexpected arguments")

	code, _, _ = runCLI("-config", cfg, "diagnose", "-frame", "3", "more")
	require.Equal(t, 1, code)

	code, _, _ = runCLI("-config", cfg, "scenarios", "show", "missing")
	require.Equal(t, 1, code)

	code, _, stderr = runCLI("-config", cfg, "history")
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "history is disabled")
}

func TestConfigErrorsExitOne(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[blender]\nport = \"nine\"\n"), 0o600))
	code, _, stderr := runCLI("-config", path, "ping")
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "sorterctl:")
}

func TestHostFailuresAreLoggedNotExited(t *testing.T) {
	testlog.Start(t)
	cfg := writeConfig(t, mcptest.ClosedAddr(t))

	code, stdout, _ := runCLI("-config", cfg, "ping")
	require.Equal(t, 0, code)
	require.Contains(t, stdout, "not reachable")
	require.Contains(t, stdout, "BlenderMCP")

	code, stdout, _ = runCLI("-config", cfg, "run")
	require.Equal(t, 0, code)
	require.Contains(t, stdout, "Start the add-on server")
}

func TestPingAndStageAgainstHost(t *testing.T) {
	testlog.Start(t)
	srv := mcptest.Start(t, mcptest.Reply("scene cleared"))
	cfg := writeConfig(t, srv.Addr())

	code, stdout, _ := runCLI("-config", cfg, "ping")
	require.Equal(t, 0, code)
	require.Contains(t, stdout, "listening at "+srv.Addr())

	code, stdout, _ = runCLI("-config", cfg, "stage", "clear_scene")
	require.Equal(t, 0, code)
	require.Contains(t, stdout, "scene cleared")
	require.Contains(t, stdout, "clear_scene: success")
}

func TestScenariosListAndShowNeedNoHost(t *testing.T) {
	testlog.Start(t)
	cfg := writeConfig(t, mcptest.ClosedAddr(t))

	code, stdout, _ := runCLI("-config", cfg, "scenarios")
	require.Equal(t, 0, code)
	require.Contains(t, stdout, "basic_gravity")
	require.Contains(t, stdout, "lighting_setup")

	code, stdout, _ = runCLI("-config", cfg, "scenarios", "show", "physics_stability")
	require.Equal(t, 0, code)
	require.Contains(t, stdout, "Simulation Frames: 200")
}

func TestParseFrames(t *testing.T) {
	testlog.Start(t)
	frames, err := parseFrames(" 1, 5,20 ")
	require.NoError(t, err)
	require.Equal(t, []int{1, 5, 20}, frames)

	frames, err = parseFrames("")
	require.NoError(t, err)
	require.Nil(t, frames)

	for _, bad := range []string{"1,x", "5x", "-2", "1,,2"} {
		_, err := parseFrames(bad)
		require.ErrorIs(t, err, errUsage, bad)
	}
}
