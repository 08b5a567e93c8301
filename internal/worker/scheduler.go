package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs periodic worker tasks on cron expressions with a seconds field.
type Scheduler struct {
	cron    *cron.Cron
	ctx     context.Context
	timeout time.Duration
}

// NewScheduler returns a scheduler whose tasks run with ctx, each bounded by timeout.
func NewScheduler(ctx context.Context, timeout time.Duration) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		ctx:     ctx,
		timeout: timeout,
	}
}

// Register adds a named task. Errors are logged; the schedule keeps running.
func (s *Scheduler) Register(spec, name string, task func(context.Context) error) error {
	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
		defer cancel()

		start := time.Now()
		slog.InfoContext(ctx, "Running scheduled task", "task", name)
		if err := task(ctx); err != nil {
			slog.ErrorContext(ctx, "Scheduled task failed", "task", name, "error", err, "duration", time.Since(start))
			return
		}
		slog.InfoContext(ctx, "Scheduled task completed", "task", name, "duration", time.Since(start))
	})
	if err != nil {
		return fmt.Errorf("register %s task: %w", name, err)
	}
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	slog.Info("Scheduler started", "entries", len(s.cron.Entries()))
}

// Stop stops scheduling and waits for running tasks, at most until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
		slog.Info("Scheduler stopped")
	case <-ctx.Done():
		slog.Warn("Scheduler stop timed out")
	}
}
