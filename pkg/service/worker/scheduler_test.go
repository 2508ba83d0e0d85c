package worker_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/warden/pkg/domain/model"
	"github.com/secmon-lab/warden/pkg/domain/types"
	"github.com/secmon-lab/warden/pkg/repository/memory"
	"github.com/secmon-lab/warden/pkg/service/worker"
	"github.com/secmon-lab/warden/pkg/usecase"
)

type countingHandler struct {
	mu    sync.Mutex
	count int
}

func (h *countingHandler) handle(context.Context, model.Action) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	return nil
}

func (h *countingHandler) calls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

func TestSchedulerExecutesDueJobs(t *testing.T) {
	repo := memory.New()
	jobs := usecase.NewJobUseCase(repo)
	handler := &countingHandler{}
	jobs.RegisterHandler(types.ActionEcho, handler.handle)

	now := time.Now().UTC()
	job := &model.Job{
		ID:        types.NewJobID(),
		CreatedAt: now.Add(-time.Hour),
		ExecuteAt: now,
		Repeat:    types.RepeatNone,
		Action:    model.EchoAction{Target: "C-GENERAL", Content: "ping"},
	}
	gt.NoError(t, repo.Jobs().Put(context.Background(), job))

	w := worker.NewScheduler(jobs, 10*time.Millisecond)
	gt.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for handler.calls() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	gt.Value(t, handler.calls()).Equal(1)

	remaining := gt.R1(repo.Jobs().List(context.Background(), nil)).NoError(t)
	gt.Array(t, remaining).Length(0)
}

func TestSchedulerStartIsIdempotent(t *testing.T) {
	jobs := usecase.NewJobUseCase(memory.New())
	w := worker.NewScheduler(jobs, 10*time.Millisecond)

	gt.NoError(t, w.Start(context.Background()))
	gt.NoError(t, w.Start(context.Background()))

	// a second loop would panic on double-close of the done channel
	done := make(chan struct{})
	go func() {
		w.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
}

func TestSchedulerStopWaitsForLoop(t *testing.T) {
	jobs := usecase.NewJobUseCase(memory.New())
	w := worker.NewScheduler(jobs, 10*time.Millisecond)
	gt.NoError(t, w.Start(context.Background()))

	done := make(chan struct{})
	go func() {
		w.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
}

func TestSchedulerContextCancellationStopsLoop(t *testing.T) {
	jobs := usecase.NewJobUseCase(memory.New())
	w := worker.NewScheduler(jobs, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	gt.NoError(t, w.Start(ctx))
	cancel()

	// Stop still returns promptly after the context ended the loop
	done := make(chan struct{})
	go func() {
		w.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return after context cancellation")
	}
}
