package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/secmon-lab/warden/pkg/domain/interfaces"
	"github.com/secmon-lab/warden/pkg/domain/model"
	"github.com/secmon-lab/warden/pkg/domain/types"
	"github.com/secmon-lab/warden/pkg/repository/memory"
)

func newJob(t *testing.T, repo interfaces.Repository, action model.Action, executeAt time.Time) *model.Job {
	t.Helper()
	job := model.NewJob(action, executeAt, types.RepeatNone)
	if err := repo.Jobs().Put(context.Background(), job); err != nil {
		t.Fatalf("failed to store job: %v", err)
	}
	return job
}

func TestJobRepository_GetPut(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	now := time.Now().UTC()

	job := newJob(t, repo, model.UnbanAction{User: "U1"}, now.Add(time.Hour))

	got, err := repo.Jobs().Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("failed to get job: %v", err)
	}
	if got.ID != job.ID {
		t.Errorf("got ID %s, want %s", got.ID, job.ID)
	}
	if got.Action != job.Action {
		t.Errorf("got action %#v, want %#v", got.Action, job.Action)
	}

	// stored copy must be isolated from caller mutation
	job.Repeat = types.RepeatDaily
	got2, err := repo.Jobs().Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("failed to re-get job: %v", err)
	}
	if got2.Repeat != types.RepeatNone {
		t.Error("store must hold a copy, not the caller's pointer")
	}
}

func TestJobRepository_DeleteAbsent(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	now := time.Now().UTC()

	kept := newJob(t, repo, model.UnbanAction{User: "U1"}, now.Add(time.Hour))

	err := repo.Jobs().Delete(ctx, types.NewJobID())
	if err == nil {
		t.Fatal("deleting an absent job must fail")
	}
	if !errors.Is(err, types.ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}

	// the store must be unchanged
	jobs, err := repo.Jobs().List(ctx, nil)
	if err != nil {
		t.Fatalf("failed to list jobs: %v", err)
	}
	if len(jobs) != 1 || jobs[0].ID != kept.ID {
		t.Errorf("store changed after failed delete: %v", jobs)
	}
}

func TestJobRepository_ListOrdering(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	now := time.Now().UTC()

	late := newJob(t, repo, model.EchoAction{Target: "C1", Content: "late"}, now.Add(3*time.Hour))
	early := newJob(t, repo, model.EchoAction{Target: "C1", Content: "early"}, now.Add(time.Hour))
	mid := newJob(t, repo, model.EchoAction{Target: "C1", Content: "mid"}, now.Add(2*time.Hour))

	jobs, err := repo.Jobs().List(ctx, nil)
	if err != nil {
		t.Fatalf("failed to list jobs: %v", err)
	}
	if len(jobs) != 3 {
		t.Fatalf("got %d jobs, want 3", len(jobs))
	}
	if jobs[0].ID != early.ID || jobs[1].ID != mid.ID || jobs[2].ID != late.ID {
		t.Errorf("jobs not ordered by execution time: %v, %v, %v", jobs[0].ID, jobs[1].ID, jobs[2].ID)
	}
}

func TestJobRepository_ListDue(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	now := time.Now().UTC()

	due := newJob(t, repo, model.UnbanAction{User: "U1"}, now.Add(-time.Minute))
	newJob(t, repo, model.UnbanAction{User: "U2"}, now.Add(time.Hour))

	jobs, err := repo.Jobs().ListDue(ctx, now)
	if err != nil {
		t.Fatalf("failed to list due jobs: %v", err)
	}
	if len(jobs) != 1 || jobs[0].ID != due.ID {
		t.Errorf("expected only the overdue job, got %v", jobs)
	}
}

func TestJobRepository_ListPredicate(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	now := time.Now().UTC()

	target := newJob(t, repo, model.AddRoleAction{Role: "R1", User: "U1"}, now.Add(time.Hour))
	newJob(t, repo, model.AddRoleAction{Role: "R1", User: "U2"}, now.Add(time.Hour))

	jobs, err := repo.Jobs().List(ctx, func(job *model.Job) bool {
		return model.ActionTargets(job.Action, "U1")
	})
	if err != nil {
		t.Fatalf("failed to list jobs: %v", err)
	}
	if len(jobs) != 1 || jobs[0].ID != target.ID {
		t.Errorf("predicate should select only U1's job, got %v", jobs)
	}
}
