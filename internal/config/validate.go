package config

import (
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"
)

// sweepParser accepts standard five-field cron expressions.
var sweepParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
)

// Validate checks the structural validity of a Config. All problems are
// reported at once via errors.Join.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Version == "" {
		errs = append(errs, errors.New("config: version field is required"))
	} else if cfg.Version != "1" {
		errs = append(errs, fmt.Errorf("config: unsupported version %q (supported: \"1\")", cfg.Version))
	}

	switch cfg.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("config: unknown log level %q", cfg.Log.Level))
	}

	errs = append(errs, validateStore(cfg.Store)...)
	errs = append(errs, validateModels(cfg.Models)...)

	return errors.Join(errs...)
}

func validateStore(s StoreConfig) []error {
	var errs []error

	switch s.Backend {
	case "", BackendMemory:
	case BackendSQLite:
		if s.Path == "" {
			errs = append(errs, errors.New("config: store.path is required for the sqlite backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("config: unknown store backend %q", s.Backend))
	}

	if s.TTL < 0 {
		errs = append(errs, errors.New("config: store.ttl must not be negative"))
	}
	if s.MaxTurns < 0 {
		errs = append(errs, errors.New("config: store.max_turns must not be negative"))
	}
	if s.SweepSchedule != "" {
		if _, err := sweepParser.Parse(s.SweepSchedule); err != nil {
			errs = append(errs, fmt.Errorf("config: invalid store.sweep_schedule: %w", err))
		}
	}

	return errs
}

func validateModels(m ModelsConfig) []error {
	var errs []error

	if m.CharsPerToken < 0 {
		errs = append(errs, errors.New("config: models.chars_per_token must not be negative"))
	}
	for name, window := range m.ContextWindows {
		if window <= 0 {
			errs = append(errs, fmt.Errorf("config: models.context_windows[%q] must be positive, got %d", name, window))
		}
	}

	return errs
}
