// Package rescan triggers periodic library runs on a cron schedule.
package rescan

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/seriarr/seriarr/internal/config"
)

// Runner performs one scheduled library run.
type Runner func(ctx context.Context) error

// ValidateCron checks a standard five-field cron expression.
func ValidateCron(spec string) error {
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", spec, err)
	}
	return nil
}

// Scheduler fires a runner on a cron schedule. Triggers that arrive while a
// run is still in progress are skipped, never queued.
type Scheduler struct {
	spec     string
	schedule cron.Schedule
	runner   Runner
	logger   *slog.Logger

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu      sync.Mutex
	started bool
}

// New creates a scheduler from configuration.
func New(cfg config.ScheduleConfig, runner Runner, logger *slog.Logger) (*Scheduler, error) {
	if runner == nil {
		return nil, fmt.Errorf("creating scheduler: nil runner")
	}
	if logger == nil {
		logger = slog.Default()
	}

	schedule, err := cron.ParseStandard(cfg.Cron)
	if err != nil {
		return nil, fmt.Errorf("parsing cron expression %q: %w", cfg.Cron, err)
	}

	return &Scheduler{
		spec:     cfg.Cron,
		schedule: schedule,
		runner:   runner,
		logger:   logger.With(slog.String("component", "rescan")),
	}, nil
}

// NextRun returns the next trigger time after now.
func (s *Scheduler) NextRun(now time.Time) time.Time {
	return s.schedule.Next(now)
}

// Start launches the scheduling loop. It returns immediately; use Stop to
// shut the loop down.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("scheduler already started")
	}
	s.started = true

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.loop(loopCtx)

	s.logger.Info("rescan scheduler started",
		slog.String("cron", s.spec),
		slog.Time("next_run", s.NextRun(time.Now())))
	return nil
}

// Stop cancels the loop and waits for any in-flight run to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
	s.logger.Info("rescan scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	for {
		next := s.schedule.Next(time.Now())
		timer := time.NewTimer(time.Until(next))

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.fire(ctx)
		}
	}
}

// fire starts one run unless the previous one is still in progress.
func (s *Scheduler) fire(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Warn("previous rescan still running, skipping trigger")
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.running.Store(false)
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("rescan panicked", slog.Any("panic", r))
			}
		}()

		start := time.Now()
		s.logger.Info("rescan starting")
		if err := s.runner(ctx); err != nil {
			s.logger.Error("rescan failed",
				slog.String("error", err.Error()),
				slog.Duration("duration", time.Since(start)))
			return
		}
		s.logger.Info("rescan finished", slog.Duration("duration", time.Since(start)))
	}()
}
