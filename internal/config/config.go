package config

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/vango-dev/reactor/internal/errors"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "reactor.json"

	// DefaultSweepInterval is the default pause between liveness sweeps.
	DefaultSweepInterval = time.Second

	// DefaultEvalTimeout is the default bound on a single evaluation.
	DefaultEvalTimeout = 250 * time.Millisecond

	// DefaultProgramCacheSize is the default number of cached programs.
	DefaultProgramCacheSize = 512

	// DefaultInspectorAddr is the default inspector listen address.
	DefaultInspectorAddr = "127.0.0.1:7070"
)

// Duration is a time.Duration written as a string such as "250ms".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config represents reactor.json.
type Config struct {
	// SweepInterval is the pause between liveness sweeps. A negative value
	// disables the background sweeper.
	SweepInterval Duration `json:"sweepInterval,omitempty" env:"REACTOR_SWEEP_INTERVAL"`

	// EvalTimeout bounds a single evaluation. Zero means no limit.
	EvalTimeout Duration `json:"evalTimeout,omitempty" env:"REACTOR_EVAL_TIMEOUT"`

	// ProgramCacheSize is the number of compiled expressions kept.
	ProgramCacheSize int `json:"programCacheSize,omitempty" env:"REACTOR_PROGRAM_CACHE_SIZE"`

	// Inspector configures the HTTP inspector.
	Inspector InspectorConfig `json:"inspector,omitempty"`

	// Log configures process logging.
	Log LogConfig `json:"log,omitempty"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// InspectorConfig configures the HTTP inspector.
type InspectorConfig struct {
	// Addr is the listen address.
	Addr string `json:"addr,omitempty" env:"REACTOR_INSPECTOR_ADDR"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is one of debug, info, warn or error.
	Level string `json:"level,omitempty" env:"REACTOR_LOG_LEVEL"`

	// Format is text or json.
	Format string `json:"format,omitempty" env:"REACTOR_LOG_FORMAT"`
}

// New creates a configuration with default values.
func New() *Config {
	return &Config{
		SweepInterval:    Duration(DefaultSweepInterval),
		EvalTimeout:      Duration(DefaultEvalTimeout),
		ProgramCacheSize: DefaultProgramCacheSize,
		Inspector: InspectorConfig{
			Addr: DefaultInspectorAddr,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads reactor.json from dir.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, ConfigFileName))
}

// LoadFile reads configuration from the specified file path. Fields the file
// leaves out keep their defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.CodeConfigRead).
				WithDetail("No " + ConfigFileName + " found at " + path).
				WithSuggestion("Create the file or omit --config to use defaults")
		}
		return nil, errors.New(errors.CodeConfigRead).Wrap(err)
	}

	cfg := New()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.New(errors.CodeConfigRead).
			WithDetail("Failed to parse " + path + ": " + err.Error()).
			WithSuggestion("Check that the file is valid JSON")
	}
	cfg.configPath = path
	return cfg, nil
}

// Resolve loads path, or the defaults when path is empty, applies the
// environment overlay and validates the result.
func Resolve(path string) (*Config, error) {
	cfg := New()
	if path != "" {
		loaded, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from REACTOR_* environment variables.
func (c *Config) ApplyEnv() error {
	if err := env.Parse(c); err != nil {
		return errors.New(errors.CodeConfigRead).
			WithDetail("Failed to parse environment: " + err.Error())
	}
	return nil
}

// SaveTo writes the configuration to path.
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.New(errors.CodeConfigRead).Wrap(err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New(errors.CodeConfigRead).Wrap(err)
	}
	c.configPath = path
	return nil
}

// Path returns the path the configuration was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.EvalTimeout < 0 {
		return errors.New(errors.CodeConfigInvalid).
			WithDetail("evalTimeout must not be negative")
	}
	if _, ok := parseLevel(c.Log.Level); !ok {
		return errors.New(errors.CodeConfigInvalid).
			WithDetail(fmt.Sprintf("unknown log level %q", c.Log.Level)).
			WithSuggestion("Use debug, info, warn or error")
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return errors.New(errors.CodeConfigInvalid).
			WithDetail(fmt.Sprintf("unknown log format %q", c.Log.Format)).
			WithSuggestion("Use text or json")
	}
	return nil
}

// Level returns the configured slog level.
func (c *Config) Level() slog.Level {
	level, _ := parseLevel(c.Log.Level)
	return level
}

// Logger builds a logger writing to w in the configured format and level.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.Level()}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(s) {
	case "", "info":
		return slog.LevelInfo, true
	case "debug":
		return slog.LevelDebug, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}
