package model

import (
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/warden/pkg/domain/types"
)

// Job is one unit of deferred or repeating administrative work. Jobs are
// created by any engine but mutated only by the scheduler.
type Job struct {
	ID             types.JobID
	CreatedAt      time.Time
	ExecuteAt      time.Time
	LastExecutedAt *time.Time
	Repeat         types.RepeatPolicy
	Action         Action
}

// NewJob creates a job due at executeAt
func NewJob(action Action, executeAt time.Time, repeat types.RepeatPolicy) *Job {
	return &Job{
		ID:        types.NewJobID(),
		CreatedAt: time.Now().UTC(),
		ExecuteAt: executeAt.UTC(),
		Repeat:    repeat,
		Action:    action,
	}
}

func (x *Job) Validate() error {
	if err := x.ID.Validate(); err != nil {
		return goerr.Wrap(err, "invalid job ID")
	}
	if x.Action == nil {
		return goerr.Wrap(types.ErrFormat, "job has no action", goerr.V("jobID", x.ID))
	}
	if err := x.Action.Type().Validate(); err != nil {
		return goerr.Wrap(types.ErrFormat, "job has unsupported action type", goerr.V("jobID", x.ID))
	}
	if err := x.Repeat.Validate(); err != nil {
		return goerr.Wrap(types.ErrFormat, "job has invalid repeat policy", goerr.V("jobID", x.ID))
	}
	if x.ExecuteAt.Before(x.CreatedAt) {
		return goerr.Wrap(types.ErrFormat, "job execution time precedes creation time",
			goerr.V("jobID", x.ID), goerr.V("createdAt", x.CreatedAt), goerr.V("executeAt", x.ExecuteAt))
	}
	return nil
}

// Due reports whether the job should execute at the given time
func (x *Job) Due(now time.Time) bool {
	return !x.ExecuteAt.After(now)
}

// Reschedule advances ExecuteAt according to the repeat policy and records
// the prior scheduled time as LastExecutedAt. Intervals are measured from
// scheduled time rather than wall-clock execution time, so engine latency
// never accumulates into drift. Returns false for non-repeating jobs.
func (x *Job) Reschedule(now time.Time) bool {
	if x.Repeat == types.RepeatNone {
		return false
	}

	prior := x.ExecuteAt

	switch x.Repeat {
	case types.RepeatRelative:
		anchor := x.CreatedAt
		if x.LastExecutedAt != nil {
			anchor = *x.LastExecutedAt
		}
		x.ExecuteAt = now.Add(prior.Sub(anchor))
	case types.RepeatDaily:
		x.ExecuteAt = prior.AddDate(0, 0, 1)
	case types.RepeatWeekly:
		x.ExecuteAt = prior.AddDate(0, 0, 7)
	case types.RepeatYearly:
		x.ExecuteAt = prior.AddDate(1, 0, 0)
	}

	x.LastExecutedAt = &prior
	return true
}

// Clone returns a deep copy of the job. Action variants are value types, so a
// shallow copy of the field is sufficient.
func (x *Job) Clone() *Job {
	copied := *x
	if x.LastExecutedAt != nil {
		t := *x.LastExecutedAt
		copied.LastExecutedAt = &t
	}
	return &copied
}
