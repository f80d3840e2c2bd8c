package reactor

import (
	"log/slog"
	"time"

	"github.com/vango-dev/reactor/pkg/sandbox"
	"github.com/vango-dev/reactor/pkg/sweep"
	"github.com/vango-dev/reactor/pkg/telemetry"
)

// =============================================================================
// Configuration Types
// =============================================================================

// Config configures a Runtime.
type Config struct {
	// Data is the instance data. It is transformed into a reactive object
	// and exposed to expressions as local names and as $root.
	Data map[string]any

	// GlobalData is the lowest-precedence scope layer, shared by every
	// expression the runtime evaluates.
	GlobalData map[string]any

	// Logger is the structured logger for the runtime.
	// If nil, slog.Default() is used.
	Logger *slog.Logger

	// SweepInterval is the pause between liveness sweeps.
	// Zero uses the default; a negative value disables the background
	// sweeper, leaving Sweep to the caller.
	SweepInterval time.Duration

	// EvalTimeout bounds a single evaluation. Zero means no limit.
	EvalTimeout time.Duration

	// ProgramCacheSize is the number of compiled expressions kept.
	// Zero uses the default; a negative value disables caching.
	ProgramCacheSize int

	// Metrics records kernel activity. Nil disables metrics.
	Metrics *telemetry.Metrics

	// Tracer records evaluation and sweep spans. Nil disables tracing.
	Tracer *telemetry.Tracer
}

// =============================================================================
// Default Configurations
// =============================================================================

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		SweepInterval:    sweep.DefaultInterval,
		ProgramCacheSize: sandbox.DefaultCacheSize,
	}
}

func (c Config) withDefaults() Config {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.SweepInterval == 0 {
		c.SweepInterval = sweep.DefaultInterval
	}
	switch {
	case c.ProgramCacheSize == 0:
		c.ProgramCacheSize = sandbox.DefaultCacheSize
	case c.ProgramCacheSize < 0:
		c.ProgramCacheSize = 0
	}
	return c
}
