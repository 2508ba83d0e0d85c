package usecase

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/warden/pkg/domain/interfaces"
	"github.com/secmon-lab/warden/pkg/domain/model"
	"github.com/secmon-lab/warden/pkg/domain/types"
	"github.com/secmon-lab/warden/pkg/utils/errutil"
	"github.com/secmon-lab/warden/pkg/utils/logging"
)

// ActionHandler executes one action variant
type ActionHandler func(ctx context.Context, action model.Action) error

// JobUseCase owns the job store: it is the only component that mutates jobs.
// Execution dispatches through a handler table keyed by action type; other
// engines register their handlers at wiring time, before the tick loop
// starts.
type JobUseCase struct {
	repo     interfaces.Repository
	handlers map[types.ActionType]ActionHandler
	now      func() time.Time
}

func NewJobUseCase(repo interfaces.Repository) *JobUseCase {
	return &JobUseCase{
		repo:     repo,
		handlers: make(map[types.ActionType]ActionHandler),
		now:      time.Now,
	}
}

// RegisterHandler installs the executor for one action type. Not safe to call
// once the tick loop is running.
func (uc *JobUseCase) RegisterHandler(t types.ActionType, h ActionHandler) {
	uc.handlers[t] = h
}

// Create validates and persists a new job
func (uc *JobUseCase) Create(ctx context.Context, job *model.Job) error {
	if err := job.Validate(); err != nil {
		return err
	}
	if _, ok := uc.handlers[job.Action.Type()]; !ok {
		return goerr.Wrap(types.ErrFormat, "no handler registered for action type",
			goerr.V("actionType", job.Action.Type()))
	}
	return uc.repo.Jobs().Put(ctx, job)
}

// Modify replaces the stored job with the given one, keeping the ID. Fails if
// the job is absent.
func (uc *JobUseCase) Modify(ctx context.Context, id types.JobID, job *model.Job) error {
	if _, err := uc.repo.Jobs().Get(ctx, id); err != nil {
		return err
	}
	job.ID = id
	if err := job.Validate(); err != nil {
		return err
	}
	return uc.repo.Jobs().Put(ctx, job)
}

// Delete removes a job. Deleting an absent job is a hard failure: it means
// the caller's view of the store has diverged.
func (uc *JobUseCase) Delete(ctx context.Context, id types.JobID) error {
	return uc.repo.Jobs().Delete(ctx, id)
}

// Get returns the first job matching the predicate in execution order, or nil
func (uc *JobUseCase) Get(ctx context.Context, pred interfaces.JobPredicate) (*model.Job, error) {
	jobs, err := uc.repo.Jobs().List(ctx, pred)
	if err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return nil, nil
	}
	return jobs[0], nil
}

// GetAll returns every job matching the predicate in execution order
func (uc *JobUseCase) GetAll(ctx context.Context, pred interfaces.JobPredicate) ([]*model.Job, error) {
	return uc.repo.Jobs().List(ctx, pred)
}

// RunDue executes every job due at the current time. One job's failure never
// aborts the remaining due jobs. A job with no registered handler is a
// configuration error: it is reported every tick and left in the store so the
// work is never silently dropped.
func (uc *JobUseCase) RunDue(ctx context.Context) error {
	now := uc.now().UTC()

	due, err := uc.repo.Jobs().ListDue(ctx, now)
	if err != nil {
		return goerr.Wrap(err, "failed to list due jobs")
	}

	for _, job := range due {
		uc.runJob(ctx, job, now)
	}
	return nil
}

func (uc *JobUseCase) runJob(ctx context.Context, job *model.Job, now time.Time) {
	logger := logging.From(ctx)

	handler, ok := uc.handlers[job.Action.Type()]
	if !ok {
		errutil.Handle(ctx, goerr.Wrap(types.ErrFormat, "no handler for stored action type",
			goerr.V("jobID", job.ID), goerr.V("actionType", job.Action.Type())),
			"job cannot be executed")
		return
	}

	if err := handler(ctx, job.Action); err != nil {
		// recoverable per-job failure: logged, never retried
		errutil.Handle(ctx, err, "job execution failed")
	} else {
		logger.Info("executed scheduled job",
			"jobID", job.ID,
			"action", job.Action.String(),
		)
	}

	if job.Reschedule(now) {
		if err := uc.repo.Jobs().Put(ctx, job); err != nil {
			errutil.Handle(ctx, err, "failed to reschedule job")
		}
		return
	}

	if err := uc.repo.Jobs().Delete(ctx, job.ID); err != nil {
		errutil.Handle(ctx, err, "failed to delete completed job")
	}
}
