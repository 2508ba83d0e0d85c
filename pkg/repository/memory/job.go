package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/warden/pkg/domain/interfaces"
	"github.com/secmon-lab/warden/pkg/domain/model"
	"github.com/secmon-lab/warden/pkg/domain/types"
)

type jobRepository struct {
	mu   sync.RWMutex
	jobs map[types.JobID]*model.Job
}

func newJobRepository() *jobRepository {
	return &jobRepository{
		jobs: make(map[types.JobID]*model.Job),
	}
}

func (r *jobRepository) Get(ctx context.Context, id types.JobID) (*model.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, exists := r.jobs[id]
	if !exists {
		return nil, goerr.Wrap(types.ErrJobNotFound, "no such job", goerr.V("jobID", id))
	}
	return job.Clone(), nil
}

func (r *jobRepository) Put(ctx context.Context, job *model.Job) error {
	if err := job.ID.Validate(); err != nil {
		return goerr.Wrap(err, "cannot store job without ID")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.jobs[job.ID] = job.Clone()
	return nil
}

func (r *jobRepository) Delete(ctx context.Context, id types.JobID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobs[id]; !exists {
		return goerr.Wrap(types.ErrJobNotFound, "cannot delete absent job", goerr.V("jobID", id))
	}
	delete(r.jobs, id)
	return nil
}

func (r *jobRepository) List(ctx context.Context, pred interfaces.JobPredicate) ([]*model.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var jobs []*model.Job
	for _, job := range r.jobs {
		if pred == nil || pred(job) {
			jobs = append(jobs, job.Clone())
		}
	}
	sortJobs(jobs)
	return jobs, nil
}

func (r *jobRepository) ListDue(ctx context.Context, now time.Time) ([]*model.Job, error) {
	return r.List(ctx, func(job *model.Job) bool {
		return job.Due(now)
	})
}

func sortJobs(jobs []*model.Job) {
	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].ExecuteAt.Equal(jobs[j].ExecuteAt) {
			return jobs[i].ID < jobs[j].ID
		}
		return jobs[i].ExecuteAt.Before(jobs[j].ExecuteAt)
	})
}
