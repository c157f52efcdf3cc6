// Package retention periodically purges soft-deleted sessions once they age
// past the retention window.
package retention

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/chatback/chatback/pkg/persistence"
)

// DefaultWindow is how long a soft-deleted session stays recoverable.
const DefaultWindow = 30 * 24 * time.Hour

// DefaultSchedule runs the sweep hourly.
const DefaultSchedule = "0 * * * *"

// Sweeper drives periodic purges against a persistence backend that
// supports bulk removal of soft-deleted sessions.
type Sweeper struct {
	purger persistence.PurgeOlderThan
	window time.Duration
	cron   *cron.Cron
	logger *slog.Logger
}

// NewSweeper creates a sweeper. A non-positive window falls back to
// DefaultWindow.
func NewSweeper(purger persistence.PurgeOlderThan, window time.Duration, logger *slog.Logger) *Sweeper {
	if window <= 0 {
		window = DefaultWindow
	}

	return &Sweeper{
		purger: purger,
		window: window,
		logger: logger.With("module", "retention"),
	}
}

// Start schedules the sweep on the given cron expression and runs one
// sweep immediately so a long schedule does not delay the first purge.
func (s *Sweeper) Start(ctx context.Context, schedule string) error {
	if s.cron != nil {
		return errors.New("sweeper already started")
	}

	if schedule == "" {
		schedule = DefaultSchedule
	}

	s.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	_, err := s.cron.AddFunc(schedule, func() {
		_, err := s.Sweep(ctx)
		if err != nil {
			s.logger.ErrorContext(ctx, "Retention sweep failed", "error", err)
		}
	})
	if err != nil {
		s.cron = nil

		return fmt.Errorf("invalid retention schedule %q: %w", schedule, err)
	}

	s.logger.InfoContext(ctx, "Starting retention sweeper", "schedule", schedule, "window", s.window.String())
	s.cron.Start()

	_, err = s.Sweep(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Initial retention sweep failed", "error", err)
	}

	return nil
}

// Sweep purges sessions soft-deleted before the retention cutoff and
// returns how many were removed.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-s.window)

	purged, err := s.purger.PurgeDeletedSessions(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge deleted sessions: %w", err)
	}

	if purged > 0 {
		s.logger.InfoContext(ctx, "Purged deleted sessions", "count", purged, "cutoff", cutoff)
	}

	return purged, nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	if s.cron == nil {
		return
	}

	<-s.cron.Stop().Done()
	s.cron = nil
	s.logger.Info("Retention sweeper stopped")
}
