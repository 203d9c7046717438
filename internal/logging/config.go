package logging

import (
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	EnvLogLevel     = "LEGOSORTER_LOG_LEVEL"
	EnvLogTimestamp = "LEGOSORTER_LOG_TIMESTAMP"
	EnvLogNoColor   = "LEGOSORTER_LOG_NOCOLOR"
	EnvLogFile      = "LEGOSORTER_LOG_FILE"
)

type Profile int

const (
	ProfileRuntime Profile = iota
	ProfileTest
)

// Config is the resolved logger setup for one process.
type Config struct {
	Level     zerolog.Level
	Timestamp bool
	NoColor   bool
	// File tees output into a rotating log file when non-empty.
	File string
	Out  io.Writer
}

var configureOnce sync.Once

func ConfigureRuntime() {
	Configure(ProfileRuntime, "")
}

func ConfigureTests() {
	Configure(ProfileTest, "")
}

// Configure installs the global logger once; later calls are no-ops.
func Configure(profile Profile, file string) {
	configureOnce.Do(func() {
		cfg := defaultConfig(profile)
		if strings.TrimSpace(file) != "" {
			cfg.File = strings.TrimSpace(file)
		}
		applyEnvOverrides(&cfg)
		log.Logger = New(cfg)
		zerolog.SetGlobalLevel(cfg.Level)
	})
}

// New builds a logger from cfg without touching global state.
func New(cfg Config) zerolog.Logger {
	out := cfg.Out
	if out == nil {
		out = os.Stdout
	}
	console := zerolog.ConsoleWriter{
		Out:     out,
		NoColor: cfg.NoColor,
	}
	if cfg.Timestamp {
		console.TimeFormat = time.DateTime
	} else {
		console.PartsExclude = []string{zerolog.TimestampFieldName}
	}

	var w io.Writer = console
	if cfg.File != "" {
		w = zerolog.MultiLevelWriter(console, &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    10,
			MaxAge:     7,
			MaxBackups: 3,
		})
	}
	return zerolog.New(w).Level(cfg.Level).With().Timestamp().Str("app", "legosorter").Logger()
}

func defaultConfig(profile Profile) Config {
	switch profile {
	case ProfileTest:
		return Config{Level: zerolog.DebugLevel, Timestamp: false}
	default:
		return Config{Level: zerolog.InfoLevel, Timestamp: true}
	}
}

func applyEnvOverrides(cfg *Config) {
	if lvl, ok := parseLevel(os.Getenv(EnvLogLevel)); ok {
		cfg.Level = lvl
	}
	if v, ok := parseBool(os.Getenv(EnvLogTimestamp)); ok {
		cfg.Timestamp = v
	}
	if v, ok := parseBool(os.Getenv(EnvLogNoColor)); ok {
		cfg.NoColor = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.File = v
	}
}

func parseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return zerolog.InfoLevel, false
	case "trace", "diagnostics":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "disabled", "disable", "off", "none", "inactive":
		return zerolog.Disabled, true
	default:
		return zerolog.InfoLevel, false
	}
}

func parseBool(raw string) (bool, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
