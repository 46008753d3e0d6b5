// Package config defines service configuration structures and loading hooks.
package config

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/okian/libero/internal/domain/scoring"
)

// ErrInvalidConfig marks values Validate refuses; ErrLoadConfig marks a
// config file that could not be read or parsed.
var (
	ErrInvalidConfig = errors.New("invalid libero configuration")
	ErrLoadConfig    = errors.New("cannot load libero configuration")
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json log lines.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// DBPath is the SQLite ledger database. Empty keeps ledgers in memory only.
	DBPath string `koanf:"db_path"`

	// QueueSize bounds the commands queued across all recorder workers. Each
	// worker gets an equal share, at least one.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of recorder workers. Matches are hashed onto them.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets how many idempotency keys are remembered.
	DedupeSize int `koanf:"dedupe_size"`

	// Set-closing rule applied to matches created without an override.
	SetTarget         int `koanf:"set_target"`
	DecidingSetTarget int `koanf:"deciding_set_target"`
	MinMargin         int `koanf:"min_margin"`
	SetsToWin         int `koanf:"sets_to_win"`
	MaxSubstitutions  int `koanf:"max_substitutions"`

	// OTelEndpoint enables OTLP/HTTP trace export when set.
	OTelEndpoint string `koanf:"otel_endpoint"`

	// AggregateTimeout bounds a single stats or report request.
	AggregateTimeout time.Duration `koanf:"aggregate_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// New creates a Config holding the defaults. Context is accepted first to
// follow the project-wide convention.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:          "info",
		LogFormat:         "text",
		Addr:              ":9080",
		QueueSize:         1024,
		WorkerCount:       runtime.NumCPU(),
		DedupeSize:        50_000,
		SetTarget:         scoring.DefaultSetTarget,
		DecidingSetTarget: scoring.DefaultDecidingSetTarget,
		MinMargin:         scoring.DefaultMinMargin,
		SetsToWin:         scoring.DefaultSetsToWin,
		MaxSubstitutions:  scoring.DefaultMaxSubstitutions,
		AggregateTimeout:  5 * time.Second,
		ShutdownTimeout:   10 * time.Second,
	}
}

// Rules returns the configured set-closing rule.
func (c *Config) Rules() (scoring.Rules, error) {
	r, err := scoring.New(
		scoring.WithSetTarget(c.SetTarget),
		scoring.WithDecidingSetTarget(c.DecidingSetTarget),
		scoring.WithMinMargin(c.MinMargin),
		scoring.WithSetsToWin(c.SetsToWin),
		scoring.WithMaxSubstitutions(c.MaxSubstitutions),
	)
	if err != nil {
		return scoring.Rules{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return r, nil
}

// Validate checks values that would make the service unusable.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.QueueSize < 1:
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	case c.WorkerCount < 1:
		return fmt.Errorf("%w: worker_count must be positive", ErrInvalidConfig)
	case c.AggregateTimeout <= 0:
		return fmt.Errorf("%w: aggregate_timeout must be positive", ErrInvalidConfig)
	case c.LogFormat != "text" && c.LogFormat != "json":
		return fmt.Errorf("%w: log_format must be text or json", ErrInvalidConfig)
	}
	_, err := c.Rules()
	return err
}
