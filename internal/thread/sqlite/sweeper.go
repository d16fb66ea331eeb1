package sqlite

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// DefaultSweepSchedule runs the sweep every ten minutes.
const DefaultSweepSchedule = "*/10 * * * *"

// Sweeper periodically deletes expired threads from the store using a
// cron schedule. A TryLock guard skips a tick if the previous sweep is
// still running.
type Sweeper struct {
	store    *Store
	schedule string
	logger   *slog.Logger
	cron     *cron.Cron
	running  sync.Mutex
}

// NewSweeper creates a sweeper for the store. An empty schedule selects
// DefaultSweepSchedule.
func NewSweeper(store *Store, schedule string, logger *slog.Logger) *Sweeper {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		store:    store,
		schedule: schedule,
		logger:   logger,
	}
}

// Start begins periodic sweeping. Returns an error if the schedule
// expression is invalid.
func (s *Sweeper) Start() error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	s.cron = cron.New(cron.WithParser(parser))

	_, err := s.cron.AddFunc(s.schedule, func() {
		if !s.running.TryLock() {
			s.logger.Warn("thread sweep still running, skipping tick")
			return
		}
		defer s.running.Unlock()

		removed, err := s.store.Sweep(context.Background())
		if err != nil {
			s.logger.Error("thread sweep failed", "error", err)
			return
		}
		if removed > 0 {
			s.logger.Info("expired threads swept", "removed", removed)
		}
	})
	if err != nil {
		return fmt.Errorf("sqlite: invalid sweep schedule %q: %w", s.schedule, err)
	}

	s.cron.Start()
	s.logger.Info("thread sweeper started", "schedule", s.schedule)
	return nil
}

// Stop shuts down the sweeper, waiting for an in-flight sweep.
func (s *Sweeper) Stop(ctx context.Context) error {
	if s.cron == nil {
		return nil
	}
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	s.logger.Info("thread sweeper stopped")
	return nil
}
