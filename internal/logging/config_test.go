package logging

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"trace":   zerolog.TraceLevel,
		"DEBUG":   zerolog.DebugLevel,
		" info ":  zerolog.InfoLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"off":     zerolog.Disabled,
	}
	for raw, want := range cases {
		got, ok := parseLevel(raw)
		require.True(t, ok, raw)
		require.Equal(t, want, got, raw)
	}
	_, ok := parseLevel("loud")
	require.False(t, ok)
	_, ok = parseLevel("")
	require.False(t, ok)
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv(EnvLogLevel, "warn")
	t.Setenv(EnvLogTimestamp, "false")
	t.Setenv(EnvLogNoColor, "1")
	t.Setenv(EnvLogFile, "/tmp/legosorter-test.log")

	cfg := defaultConfig(ProfileRuntime)
	applyEnvOverrides(&cfg)
	require.Equal(t, zerolog.WarnLevel, cfg.Level)
	require.False(t, cfg.Timestamp)
	require.True(t, cfg.NoColor)
	require.Equal(t, "/tmp/legosorter-test.log", cfg.File)
}

func TestNewWritesAtConfiguredLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: zerolog.WarnLevel, NoColor: true, Out: &buf})
	logger.Info().Msg("hidden")
	logger.Warn().Str("stage", "clear_scene").Msg("visible")

	out := buf.String()
	require.NotContains(t, out, "hidden")
	require.Contains(t, out, "visible")
	require.Contains(t, out, "stage=clear_scene")
}
