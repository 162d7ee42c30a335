// Package scheduler runs the periodic search analytics cleanup.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultSpec runs the cleanup hourly.
const DefaultSpec = "@every 1h"

// Cleaner resets stale keyword windows and reports how many changed.
type Cleaner interface {
	Cleanup(ctx context.Context) (int, error)
}

// Scheduler wraps robfig/cron and triggers Cleaner on a schedule. Runs never
// overlap: a tick that fires while the previous run is still busy is skipped.
type Scheduler struct {
	cron    *cron.Cron
	cleaner Cleaner
	spec    string
	timeout time.Duration
	logger  *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
}

// New creates a Scheduler firing on spec (robfig/cron syntax, including
// descriptors such as "@every 30m"). Each run is bounded by timeout.
func New(cleaner Cleaner, spec string, timeout time.Duration, logger *slog.Logger) *Scheduler {
	if spec == "" {
		spec = DefaultSpec
	}
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &Scheduler{
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		cleaner: cleaner,
		spec:    spec,
		timeout: timeout,
		logger:  logger,
	}
}

// Start registers the cleanup job and starts the scheduler. Runs use a
// context derived from ctx that Stop cancels.
func (s *Scheduler) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)

	if _, err := s.cron.AddFunc(s.spec, func() { s.RunOnce(ctx) }); err != nil {
		cancel()
		return fmt.Errorf("schedule analytics cleanup %q: %w", s.spec, err)
	}

	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	s.cron.Start()
	s.logger.InfoContext(ctx, "analytics cleanup scheduled", slog.String("spec", s.spec))
	return nil
}

// RunOnce performs one cleanup. Failures are logged.
func (s *Scheduler) RunOnce(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	n, err := s.cleaner.Cleanup(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "scheduled analytics cleanup failed",
			slog.String("error", err.Error()),
		)
		return
	}
	s.logger.DebugContext(ctx, "scheduled analytics cleanup finished",
		slog.Int("reset", n),
		slog.Duration("duration", time.Since(start)),
	)
}

// Stop stops scheduling, cancels a running cleanup and waits for it to
// return.
func (s *Scheduler) Stop() {
	done := s.cron.Stop()

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	<-done.Done()
}
