package worker

import (
	"context"
	"sync"
	"time"

	"github.com/secmon-lab/warden/pkg/usecase"
	"github.com/secmon-lab/warden/pkg/utils/logging"
)

// Scheduler drives job execution by polling the store on a fixed tick. It is
// the only time-based loop in the process; everything else is event-driven.
//
// Architecture assumptions:
// - Single server instance (no distributed locking)
// - For future horizontal scaling, implement distributed locking or leader election
type Scheduler struct {
	jobs     *usecase.JobUseCase
	interval time.Duration
	startUp  sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

func NewScheduler(jobs *usecase.JobUseCase, interval time.Duration) *Scheduler {
	return &Scheduler{
		jobs:     jobs,
		interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the tick loop in a background goroutine. Does not block.
// Repeated calls are no-ops: at most one loop ever runs.
func (w *Scheduler) Start(ctx context.Context) error {
	w.startUp.Do(func() {
		logging.Default().Info("scheduler starting", "interval", w.interval.String())
		go w.run(ctx)
	})

	return nil
}

// Stop signals the loop to stop and waits for the current tick to finish
func (w *Scheduler) Stop() {
	logging.Default().Info("scheduler stopping")
	close(w.stopCh)
	<-w.doneCh
	logging.Default().Info("scheduler stopped")
}

func (w *Scheduler) run(ctx context.Context) {
	defer close(w.doneCh)

	// jobs overdue from before the last shutdown run immediately
	if err := w.jobs.RunDue(ctx); err != nil {
		logging.Default().Error("scheduler tick failed (will retry next interval)",
			"error", err.Error())
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := w.jobs.RunDue(ctx); err != nil {
				// tick failures are transient, the loop keeps going
				logging.Default().Error("scheduler tick failed (will retry next interval)",
					"error", err.Error())
			}

		case <-w.stopCh:
			logging.Default().Info("scheduler received stop signal")
			return

		case <-ctx.Done():
			logging.Default().Info("scheduler context cancelled")
			return
		}
	}
}
