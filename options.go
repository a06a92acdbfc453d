package banderole

import (
	"fmt"
	"log/slog"

	"github.com/banderole-io/banderole/internal/cache"
	"github.com/banderole-io/banderole/internal/logging"
	"github.com/banderole-io/banderole/internal/telemetry"
)

// Option configures an engine.
type Option func(*engineConfig) error

// engineConfig holds internal configuration.
type engineConfig struct {
	logger    *slog.Logger
	telemetry telemetry.Provider

	cacheEnabled bool
	cacheSize    int64
}

func defaultConfig() *engineConfig {
	return &engineConfig{
		logger:       logging.New(slog.LevelInfo),
		telemetry:    telemetry.NewNoOp(),
		cacheEnabled: true,
		cacheSize:    cache.DefaultMaxEntries,
	}
}

// WithLogger sets the structured logger the engine logs through.
// Default: a JSON logger on stderr at info level.
func WithLogger(logger *slog.Logger) Option {
	return func(c *engineConfig) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		c.logger = logger
		return nil
	}
}

// WithLogLevel sets the level of the engine's default logger.
// Accepted levels: "debug", "info", "warn", "error".
//
// Example: banderole.WithLogLevel("debug")
func WithLogLevel(level string) Option {
	return func(c *engineConfig) error {
		parsed, err := logging.ParseLevel(level)
		if err != nil {
			return err
		}
		c.logger = logging.New(parsed)
		return nil
	}
}

// WithOpenTelemetry enables OpenTelemetry traces and metrics using the
// globally registered tracer and meter providers.
func WithOpenTelemetry() Option {
	return func(c *engineConfig) error {
		provider, err := telemetry.NewOTel()
		if err != nil {
			return fmt.Errorf("failed to build telemetry provider: %w", err)
		}
		c.telemetry = provider
		return nil
	}
}

// WithCacheSize sets the maximum number of cached evaluation results.
// Default: 65536.
//
// Example: banderole.WithCacheSize(100_000)
func WithCacheSize(maxEntries int64) Option {
	return func(c *engineConfig) error {
		if maxEntries <= 0 {
			return fmt.Errorf("cache size must be positive")
		}
		c.cacheSize = maxEntries
		return nil
	}
}

// WithoutCache disables the evaluation result cache.
// Every call then evaluates against the active snapshot directly.
func WithoutCache() Option {
	return func(c *engineConfig) error {
		c.cacheEnabled = false
		return nil
	}
}
