// Package config handles YAML configuration loading, environment
// variable expansion, and structural validation for threadline.
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/threadline/internal/observability"
)

// Duration is a time.Duration that unmarshals from YAML strings like
// "90s" or "1h30m".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Currently only "1" is supported.
	Version string `yaml:"version"`

	Log     LogConfig                    `yaml:"log"`
	Store   StoreConfig                  `yaml:"store"`
	Models  ModelsConfig                 `yaml:"models"`
	Gateway GatewayConfig                `yaml:"gateway"`
	Tracing *observability.TracingConfig `yaml:"tracing,omitempty"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error. Defaults to info.
	Level string `yaml:"level"`
}

// Store backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// StoreConfig selects and tunes the thread store.
type StoreConfig struct {
	// Backend is "memory" or "sqlite". Defaults to memory.
	Backend string `yaml:"backend"`

	// Path is the SQLite database file. Required for the sqlite backend.
	Path string `yaml:"path"`

	// TTL is the fixed lifetime of a thread, measured from creation.
	TTL Duration `yaml:"ttl"`

	// MaxTurns caps the number of turns per thread.
	MaxTurns int `yaml:"max_turns"`

	// SweepSchedule is a cron expression for physical cleanup of expired
	// threads (sqlite backend only).
	SweepSchedule string `yaml:"sweep_schedule"`
}

// ModelsConfig tunes model resolution and token estimation.
type ModelsConfig struct {
	// Default is the model used when a request names none.
	Default string `yaml:"default"`

	// ContextWindows extends or overrides the built-in capability table.
	ContextWindows map[string]int `yaml:"context_windows,omitempty"`

	// CharsPerToken is the estimation ratio. Defaults to 4.
	CharsPerToken float64 `yaml:"chars_per_token"`
}

// GatewayConfig controls the ops HTTP server.
type GatewayConfig struct {
	Enabled         bool     `yaml:"enabled"`
	Bind            string   `yaml:"bind"`
	ReadTimeout     Duration `yaml:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}
