package trash

import (
	"context"
	"log/slog"
	"time"
)

// Scheduler drives periodic purges of the ledger: one pass after an initial
// delay, then one per interval. A failed pass is logged and the schedule
// keeps going.
type Scheduler struct {
	ledger       *Ledger
	retention    time.Duration
	initialDelay time.Duration
	interval     time.Duration
	deleteFn     func(ctx context.Context, path string, recursive bool) error
	log          *slog.Logger
}

func NewScheduler(
	ledger *Ledger,
	retention time.Duration,
	initialDelay time.Duration,
	interval time.Duration,
	deleteFn func(ctx context.Context, path string, recursive bool) error,
	log *slog.Logger,
) *Scheduler {
	return &Scheduler{
		ledger:       ledger,
		retention:    retention,
		initialDelay: initialDelay,
		interval:     interval,
		deleteFn:     deleteFn,
		log:          log,
	}
}

// Run blocks until ctx is cancelled. Callers start it in its own goroutine.
func (s *Scheduler) Run(ctx context.Context) {
	timer := time.NewTimer(s.initialDelay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}
	s.pass(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.pass(ctx)
		}
	}
}

func (s *Scheduler) pass(ctx context.Context) {
	purged, err := s.ledger.PurgeExpired(ctx, s.retention, s.deleteFn)
	if err != nil {
		s.log.Error("trash purge pass", "purged", len(purged), "error", err)
		return
	}
	if len(purged) > 0 {
		s.log.Info("trash purge pass", "purged", len(purged))
	}
}
