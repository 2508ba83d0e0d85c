package firestore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/warden/pkg/domain/model"
	"github.com/secmon-lab/warden/pkg/domain/types"
)

func TestJobDocumentRoundTrip(t *testing.T) {
	job := model.NewJob(model.AddRoleAction{Role: "R-HELPER", User: "U-ALICE", Reason: "probation over"},
		time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), types.RepeatNone)

	got := gt.R1(jobToModel(jobToDocument(job))).NoError(t)
	gt.Value(t, got.ID).Equal(job.ID)
	gt.Value(t, got.ExecuteAt).Equal(job.ExecuteAt)
	gt.Value(t, got.Action).Equal(job.Action)
}

func TestJobToModelRejectsUnknownAction(t *testing.T) {
	doc := &jobDocument{
		ID:         "job-legacy",
		ExecuteAt:  time.Now(),
		Repeat:     string(types.RepeatNone),
		ActionType: "legacy-action",
	}

	_, err := jobToModel(doc)
	gt.Error(t, err)
	gt.Value(t, errors.Is(err, types.ErrFormat)).Equal(true)
}

func TestCollectJobsSkipsCorruptRows(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	good := jobToDocument(model.NewJob(model.UnbanAction{User: "U-BOB"}, at, types.RepeatNone))
	corrupt := &jobDocument{ID: "job-corrupt", ExecuteAt: at, ActionType: "legacy-action"}
	alsoGood := jobToDocument(model.NewJob(model.BannerRotationAction{}, at.Add(time.Hour), types.RepeatDaily))

	jobs := collectJobs(ctx, []*jobDocument{good, corrupt, alsoGood}, nil)

	gt.Array(t, jobs).Length(2)
	gt.Value(t, string(jobs[0].ID)).Equal(good.ID)
	gt.Value(t, string(jobs[1].ID)).Equal(alsoGood.ID)
}

func TestCollectJobsAppliesPredicate(t *testing.T) {
	ctx := context.Background()
	at := time.Now()

	unban := jobToDocument(model.NewJob(model.UnbanAction{User: "U-BOB"}, at, types.RepeatNone))
	echo := jobToDocument(model.NewJob(model.EchoAction{Target: "C-GENERAL", Content: "hello"}, at, types.RepeatNone))

	jobs := collectJobs(ctx, []*jobDocument{unban, echo}, func(job *model.Job) bool {
		return job.Action.Type() == types.ActionEcho
	})

	gt.Array(t, jobs).Length(1)
	gt.Value(t, jobs[0].Action.Type()).Equal(types.ActionEcho)
}
