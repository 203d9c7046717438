package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/legosorter/internal/scripts"
)

// Environment overrides applied after the file.
const (
	EnvHost         = "BLENDER_MCP_HOST"
	EnvPort         = "BLENDER_MCP_PORT"
	EnvTimeout      = "BLENDER_MCP_TIMEOUT"
	EnvDebug        = "BLENDER_MCP_DEBUG"
	EnvSkipConveyor = "SKIP_CONVEYOR"
	EnvRenderDir    = "LEGOSORTER_RENDER_DIR"
	EnvServerToken  = "LEGOSORTER_SERVER_TOKEN"
)

const DefaultPath = "legosorter.toml"

// Config is the whole legosorter.toml file.
type Config struct {
	Blender  BlenderConfig  `toml:"blender"`
	Retry    RetryConfig    `toml:"retry"`
	Pipeline PipelineConfig `toml:"pipeline"`
	Scene    scripts.Params `toml:"scene"`
	Render   RenderConfig   `toml:"render"`
	History  HistoryConfig  `toml:"history"`
	Server   ServerConfig   `toml:"server"`
	Logging  LoggingConfig  `toml:"logging"`

	// Debug shortens timeouts and retries; set from BLENDER_MCP_DEBUG.
	Debug bool `toml:"debug"`
	// TimeoutOverride replaces every per-call timeout; set from BLENDER_MCP_TIMEOUT.
	TimeoutOverride time.Duration `toml:"-"`
}

type BlenderConfig struct {
	Host              string    `toml:"host"`
	Port              int       `toml:"port"`
	ConnectTimeout    Duration  `toml:"connect_timeout"`
	Timeout           Duration  `toml:"timeout"`
	PollInterval      Duration  `toml:"poll_interval"`
	HeartbeatInterval Duration  `toml:"heartbeat_interval"`
	SSH               SSHConfig `toml:"ssh"`
}

// SSHConfig reaches a host add-on that only listens on a remote loopback.
type SSHConfig struct {
	Enabled                     bool     `toml:"enabled"`
	Host                        string   `toml:"host"`
	Port                        string   `toml:"port"`
	User                        string   `toml:"user"`
	KeyPath                     string   `toml:"key_path"`
	KnownHostsPath              string   `toml:"known_hosts_path"`
	InsecureSkipHostKeyChecking bool     `toml:"insecure_skip_host_key_checking"`
	Timeout                     Duration `toml:"timeout"`
}

type RetryConfig struct {
	Attempts     int      `toml:"attempts"`
	InitialDelay Duration `toml:"initial_delay"`
	Multiplier   float64  `toml:"multiplier"`
	MaxDelay     Duration `toml:"max_delay"`
	Jitter       bool     `toml:"jitter"`
}

type PipelineConfig struct {
	SkipConveyor    bool                `toml:"skip_conveyor"`
	ContinueOnError bool                `toml:"continue_on_error"`
	StageTimeouts   map[string]Duration `toml:"stage_timeouts"`
}

type RenderConfig struct {
	Dir              string   `toml:"dir"`
	Frames           []int    `toml:"frames"`
	OrthoViews       []string `toml:"ortho_views"`
	PerspectiveViews []string `toml:"perspective_views"`
	Engine           string   `toml:"engine"`
	ResolutionX      int      `toml:"resolution_x"`
	ResolutionY      int      `toml:"resolution_y"`
	Percentage       int      `toml:"percentage"`
	ClipStart        float64  `toml:"clip_start"`
	ClipEnd          float64  `toml:"clip_end"`
	LensMM           float64  `toml:"lens_mm"`
	OrthoPadding     float64  `toml:"ortho_padding"`
	BoundsFrame      int      `toml:"bounds_frame"`
	Clear            bool     `toml:"clear"`
}

type HistoryConfig struct {
	// Path of the sqlite journal; empty disables history.
	Path string `toml:"path"`
}

type ServerConfig struct {
	Addr        string   `toml:"addr"`
	CorsOrigins []string `toml:"cors_origins"`
	// Token guards the mutating API routes; empty leaves them open.
	Token string `toml:"token"`
}

type LoggingConfig struct {
	File string `toml:"file"`
}

// Duration decodes "1.5s" style strings.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func dur(d time.Duration) Duration { return Duration{Duration: d} }

// Default mirrors the behaviour of a bare run against a local host.
func Default() Config {
	return Config{
		Blender: BlenderConfig{
			Host:              "localhost",
			Port:              9876,
			ConnectTimeout:    dur(5 * time.Second),
			Timeout:           dur(120 * time.Second),
			PollInterval:      dur(500 * time.Millisecond),
			HeartbeatInterval: dur(10 * time.Second),
			SSH: SSHConfig{
				Port:    "22",
				Timeout: dur(10 * time.Second),
			},
		},
		Retry: RetryConfig{
			Attempts:     3,
			InitialDelay: dur(time.Second),
			Multiplier:   2,
			MaxDelay:     dur(30 * time.Second),
		},
		Pipeline: PipelineConfig{
			ContinueOnError: true,
			StageTimeouts: map[string]Duration{
				scripts.ClearScene:          dur(30 * time.Second),
				scripts.CreateSortingBucket: dur(60 * time.Second),
				scripts.CreateConveyorBelt:  dur(60 * time.Second),
				scripts.ImportLegoParts:     dur(180 * time.Second),
				scripts.AnimateLegoPhysics:  dur(300 * time.Second),
				scripts.SetupLighting:       dur(60 * time.Second),
			},
		},
		Scene: scripts.DefaultParams(),
		Render: RenderConfig{
			Dir:    "renders",
			Frames: []int{1, 5, 10, 20},
			OrthoViews: []string{
				"front", "back", "right", "left", "top", "bottom",
				"iso_ne", "iso_nw", "iso_se", "iso_sw",
			},
			Engine:       "BLENDER_EEVEE_NEXT",
			ResolutionX:  1920,
			ResolutionY:  1080,
			Percentage:   100,
			ClipStart:    0.01,
			ClipEnd:      2000,
			LensMM:       50,
			OrthoPadding: 1.05,
			BoundsFrame:  1,
			Clear:        true,
		},
		Server: ServerConfig{
			Addr:        "127.0.0.1:8087",
			CorsOrigins: []string{"http://localhost:3000"},
		},
	}
}

// Load reads path over the defaults then applies environment overrides.
// An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) != "" {
		if err := decodeFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := ApplyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadOptional is Load that tolerates a missing file at path.
func LoadOptional(path string) (Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return Load("")
	}
	return Load(path)
}

func decodeFile(path string, cfg *Config) error {
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return fmt.Errorf("config %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}

	// An explicit part list without a count means every listed part.
	if meta.IsDefined("scene", "parts", "names") && !meta.IsDefined("scene", "parts", "count") {
		cfg.Scene.Parts.Count = 0
	}
	// Declaring a tunnel host turns the tunnel on unless enabled is spelled out.
	if meta.IsDefined("blender", "ssh", "host") && !meta.IsDefined("blender", "ssh", "enabled") {
		cfg.Blender.SSH.Enabled = true
	}
	return nil
}

// ApplyEnv overlays the process environment, read through lookup.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	if v, ok := lookupTrimmed(lookup, EnvHost); ok {
		cfg.Blender.Host = v
	}
	if v, ok := lookupTrimmed(lookup, EnvPort); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvPort, err)
		}
		cfg.Blender.Port = port
	}
	if v, ok := lookupTrimmed(lookup, EnvTimeout); ok {
		secs, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvTimeout, err)
		}
		if secs <= 0 {
			return fmt.Errorf("%s must be positive, got %s", EnvTimeout, v)
		}
		cfg.TimeoutOverride = time.Duration(secs * float64(time.Second))
	}
	if v, ok := lookupTrimmed(lookup, EnvDebug); ok {
		cfg.Debug = truthy(v)
	}
	if v, ok := lookupTrimmed(lookup, EnvSkipConveyor); ok {
		cfg.Pipeline.SkipConveyor = truthy(v)
	}
	if v, ok := lookupTrimmed(lookup, EnvRenderDir); ok {
		cfg.Render.Dir = v
	}
	if v, ok := lookupTrimmed(lookup, EnvServerToken); ok {
		cfg.Server.Token = v
	}
	return nil
}

func lookupTrimmed(lookup func(string) (string, bool), key string) (string, bool) {
	if lookup == nil {
		return "", false
	}
	v, ok := lookup(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func truthy(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on", "y", "t":
		return true
	}
	return false
}

func Validate(cfg Config) error {
	if strings.TrimSpace(cfg.Blender.Host) == "" {
		return fmt.Errorf("blender config missing host")
	}
	if cfg.Blender.Port <= 0 || cfg.Blender.Port > 65535 {
		return fmt.Errorf("blender port out of range: %d", cfg.Blender.Port)
	}
	for name, d := range map[string]Duration{
		"blender.connect_timeout":    cfg.Blender.ConnectTimeout,
		"blender.timeout":            cfg.Blender.Timeout,
		"blender.poll_interval":      cfg.Blender.PollInterval,
		"blender.heartbeat_interval": cfg.Blender.HeartbeatInterval,
	} {
		if d.Duration <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	for id, d := range cfg.Pipeline.StageTimeouts {
		if d.Duration <= 0 {
			return fmt.Errorf("pipeline.stage_timeouts.%s must be positive", id)
		}
	}
	if cfg.Blender.SSH.Enabled {
		if strings.TrimSpace(cfg.Blender.SSH.Host) == "" {
			return fmt.Errorf("blender.ssh enabled without host")
		}
		if strings.TrimSpace(cfg.Blender.SSH.User) == "" {
			return fmt.Errorf("blender.ssh enabled without user")
		}
	}
	if cfg.Retry.Attempts < 1 {
		return fmt.Errorf("retry.attempts must be at least 1")
	}
	if cfg.Retry.Multiplier < 1 {
		return fmt.Errorf("retry.multiplier must be at least 1")
	}
	if cfg.Retry.InitialDelay.Duration < 0 || cfg.Retry.MaxDelay.Duration < 0 {
		return fmt.Errorf("retry delays must not be negative")
	}
	if strings.TrimSpace(cfg.Render.Dir) == "" {
		return fmt.Errorf("render config missing dir")
	}
	for _, f := range cfg.Render.Frames {
		if f < 1 {
			return fmt.Errorf("render frame must be positive, got %d", f)
		}
	}
	if cfg.Render.ResolutionX <= 0 || cfg.Render.ResolutionY <= 0 {
		return fmt.Errorf("render resolution must be positive")
	}
	if cfg.Render.ClipStart <= 0 || cfg.Render.ClipEnd <= cfg.Render.ClipStart {
		return fmt.Errorf("render clip range invalid: %g..%g", cfg.Render.ClipStart, cfg.Render.ClipEnd)
	}
	p := cfg.Scene
	if p.Physics.FrameEnd < p.Physics.FrameStart {
		return fmt.Errorf("scene.physics frame_end %d before frame_start %d", p.Physics.FrameEnd, p.Physics.FrameStart)
	}
	if p.Parts.Count < 0 {
		return fmt.Errorf("scene.parts.count must not be negative")
	}
	if len(p.Parts.Names) == 0 {
		return fmt.Errorf("scene.parts.names is empty")
	}
	if strings.TrimSpace(cfg.Server.Addr) == "" {
		return fmt.Errorf("server config missing addr")
	}
	return nil
}
