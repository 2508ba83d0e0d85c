package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/warden/pkg/domain/model"
	"github.com/secmon-lab/warden/pkg/domain/types"
	"github.com/secmon-lab/warden/pkg/usecase"
)

func bannerJobs(ctx context.Context, t *testing.T, jobs *usecase.JobUseCase) []*model.Job {
	t.Helper()
	return gt.R1(jobs.GetAll(ctx, func(j *model.Job) bool {
		return j.Action.Type() == types.ActionBannerRotation
	})).NoError(t)
}

func TestBannerReconcileCreatesJob(t *testing.T) {
	cfg := testConfig()
	uc, _, _, clock := newTestUseCases(cfg)
	ctx := context.Background()

	gt.NoError(t, uc.Banner.Reconcile(ctx))

	jobs := bannerJobs(ctx, t, uc.Jobs)
	gt.Array(t, jobs).Length(1)
	gt.Value(t, jobs[0].Repeat).Equal(types.RepeatRelative)
	gt.Value(t, jobs[0].ExecuteAt).Equal(clock.Now().UTC().Add(cfg.Banner.Interval()))

	// a second reconcile with unchanged config is a no-op
	gt.NoError(t, uc.Banner.Reconcile(ctx))
	gt.Array(t, bannerJobs(ctx, t, uc.Jobs)).Length(1)
	gt.Value(t, bannerJobs(ctx, t, uc.Jobs)[0].ID).Equal(jobs[0].ID)
}

func TestBannerReconcileRemovesJobWhenDisabled(t *testing.T) {
	cfg := testConfig()
	uc, _, _, _ := newTestUseCases(cfg)
	ctx := context.Background()

	gt.NoError(t, uc.Banner.Reconcile(ctx))
	gt.Array(t, bannerJobs(ctx, t, uc.Jobs)).Length(1)

	cfg.Banner.Enabled = false
	gt.NoError(t, uc.Banner.Reconcile(ctx))
	gt.Array(t, bannerJobs(ctx, t, uc.Jobs)).Length(0)
}

func TestBannerReconcileRetimesOnIntervalChange(t *testing.T) {
	cfg := testConfig()
	uc, _, _, clock := newTestUseCases(cfg)
	ctx := context.Background()

	gt.NoError(t, uc.Banner.Reconcile(ctx))
	old := bannerJobs(ctx, t, uc.Jobs)[0]

	cfg.Banner.IntervalMin = 30
	gt.NoError(t, uc.Banner.Reconcile(ctx))

	jobs := bannerJobs(ctx, t, uc.Jobs)
	gt.Array(t, jobs).Length(1)
	gt.Value(t, jobs[0].ID == old.ID).Equal(false)
	gt.Value(t, jobs[0].ExecuteAt).Equal(clock.Now().UTC().Add(30 * time.Minute))
}

func TestBannerRotationCyclesURLs(t *testing.T) {
	cfg := testConfig()
	uc, sink, repo, clock := newTestUseCases(cfg)
	ctx := context.Background()

	gt.NoError(t, uc.Banner.Reconcile(ctx))

	for i := 0; i < 3; i++ {
		clock.Advance(cfg.Banner.Interval())
		gt.NoError(t, uc.Jobs.RunDue(ctx))
	}

	sends := sink.ops("send-message")
	gt.Array(t, sends).Length(3)
	gt.Value(t, sends[0].Content).Equal(cfg.Banner.URLs[0])
	gt.Value(t, sends[1].Content).Equal(cfg.Banner.URLs[1])
	// two URLs, so the third rotation wraps back to the head
	gt.Value(t, sends[2].Content).Equal(cfg.Banner.URLs[0])
	for _, s := range sends {
		gt.Value(t, s.Channel).Equal(types.ChannelID(cfg.Banner.Channel))
	}

	// the rotation job repeats rather than being consumed
	gt.Array(t, bannerJobs(ctx, t, uc.Jobs)).Length(1)

	st := gt.R1(repo.State().GetBanner(ctx)).NoError(t)
	gt.Value(t, st.Cursor).Equal(1)
}

func TestBannerCursorResetOnShrunkenList(t *testing.T) {
	cfg := testConfig()
	uc, sink, repo, _ := newTestUseCases(cfg)
	ctx := context.Background()

	st := gt.R1(repo.State().GetBanner(ctx)).NoError(t)
	st.Cursor = 5
	gt.NoError(t, repo.State().PutBanner(ctx, st))

	gt.NoError(t, uc.Banner.Rotate(ctx))
	sends := sink.ops("send-message")
	gt.Array(t, sends).Length(1)
	gt.Value(t, sends[0].Content).Equal(cfg.Banner.URLs[0])
}

func TestBannerRotateWithoutURLsFails(t *testing.T) {
	cfg := testConfig()
	cfg.Banner.URLs = nil
	uc, _, _, _ := newTestUseCases(cfg)

	gt.Error(t, uc.Banner.Rotate(context.Background()))
}
