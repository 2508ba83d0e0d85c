package usecase_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/warden/pkg/domain/model"
	"github.com/secmon-lab/warden/pkg/domain/types"
)

func joinN(ctx context.Context, t *testing.T, uc interface {
	HandleJoin(context.Context, types.UserID) error
}, start, n int) {
	t.Helper()
	for i := start; i < start+n; i++ {
		gt.NoError(t, uc.HandleJoin(ctx, types.UserID(fmt.Sprintf("U-RAID%02d", i))))
	}
}

func TestRaidEscalatesToSmall(t *testing.T) {
	uc, _, repo, _ := newTestUseCases(testConfig())
	ctx := context.Background()

	joinN(ctx, t, uc.Raid, 0, 2)
	st := gt.R1(repo.State().GetRaid(ctx)).NoError(t)
	gt.Value(t, st.Mode).Equal(types.RaidModeNone)

	joinN(ctx, t, uc.Raid, 2, 1)
	st = gt.R1(repo.State().GetRaid(ctx)).NoError(t)
	gt.Value(t, st.Mode).Equal(types.RaidModeSmall)
	gt.Value(t, st.AutoSilence).Equal(false)

	// exactly one decay check is pending
	jobs := gt.R1(uc.Jobs.GetAll(ctx, func(job *model.Job) bool {
		return job.Action.Type() == types.ActionRaidDecay
	})).NoError(t)
	gt.Array(t, jobs).Length(1)
	decay := gt.Cast[model.RaidDecayAction](t, jobs[0].Action)
	gt.Value(t, decay.Stage).Equal(types.RaidModeSmall)
}

func TestRaidEscalatesToLargeAndSilencesWindow(t *testing.T) {
	uc, sink, repo, _ := newTestUseCases(testConfig())
	ctx := context.Background()

	joinN(ctx, t, uc.Raid, 0, 6)

	st := gt.R1(repo.State().GetRaid(ctx)).NoError(t)
	gt.Value(t, st.Mode).Equal(types.RaidModeLarge)
	gt.Value(t, st.AutoSilence).Equal(true)

	// the whole window is silenced as one batch
	gt.Array(t, sink.ops("silence")).Length(6)

	// every silenced member is flagged for re-silence on rejoin
	for i := 0; i < 6; i++ {
		rec := gt.R1(repo.Users().Get(ctx, types.UserID(fmt.Sprintf("U-RAID%02d", i)))).NoError(t)
		gt.Value(t, rec.Silenced).Equal(true)
	}
}

func TestRaidRejoinDoesNotInflateWindow(t *testing.T) {
	uc, _, repo, _ := newTestUseCases(testConfig())
	ctx := context.Background()

	gt.NoError(t, uc.Raid.HandleJoin(ctx, "U-SAME"))
	gt.NoError(t, uc.Raid.HandleJoin(ctx, "U-SAME"))
	gt.NoError(t, uc.Raid.HandleJoin(ctx, "U-SAME"))

	st := gt.R1(repo.State().GetRaid(ctx)).NoError(t)
	gt.Value(t, st.Mode).Equal(types.RaidModeNone)
	gt.Array(t, st.RecentJoins).Length(1)
}

func TestRaidDecayEndsQuietRaid(t *testing.T) {
	cfg := testConfig()
	uc, _, repo, clock := newTestUseCases(cfg)
	ctx := context.Background()

	joinN(ctx, t, uc.Raid, 0, 3)

	// over the decay period the join window empties out
	clock.Advance(cfg.Raid.SmallDecay())
	gt.NoError(t, uc.Jobs.RunDue(ctx))

	st := gt.R1(repo.State().GetRaid(ctx)).NoError(t)
	gt.Value(t, st.Mode).Equal(types.RaidModeNone)
	gt.Array(t, st.RecentJoins).Length(0)

	// the decay job is consumed
	jobs := gt.R1(uc.Jobs.GetAll(ctx, nil)).NoError(t)
	gt.Array(t, jobs).Length(0)

	// a later lone join starts from a clean slate
	gt.NoError(t, uc.Raid.HandleJoin(ctx, "U-LATECOMER"))
	st = gt.R1(repo.State().GetRaid(ctx)).NoError(t)
	gt.Value(t, st.Mode).Equal(types.RaidModeNone)
	gt.Array(t, st.RecentJoins).Length(1)
}

func TestRaidDecayOngoingNeedsManualEnd(t *testing.T) {
	cfg := testConfig()
	// joins keep landing inside the window when the decay check fires
	cfg.Raid.RecentJoinDecaySec = int((cfg.Raid.SmallDecay() + time.Hour).Seconds())
	uc, _, repo, clock := newTestUseCases(cfg)
	ctx := context.Background()

	joinN(ctx, t, uc.Raid, 0, 3)

	clock.Advance(cfg.Raid.SmallDecay())
	gt.NoError(t, uc.Jobs.RunDue(ctx))

	// still in small mode, and no replacement decay check: operators must
	// end it by hand
	st := gt.R1(repo.State().GetRaid(ctx)).NoError(t)
	gt.Value(t, st.Mode).Equal(types.RaidModeSmall)
	jobs := gt.R1(uc.Jobs.GetAll(ctx, nil)).NoError(t)
	gt.Array(t, jobs).Length(0)

	gt.NoError(t, uc.Raid.EndRaid(ctx))
	st = gt.R1(repo.State().GetRaid(ctx)).NoError(t)
	gt.Value(t, st.Mode).Equal(types.RaidModeNone)
	gt.Array(t, st.RecentJoins).Length(0)
}

func TestRaidStaleDecayCheckIsNoOp(t *testing.T) {
	uc, _, repo, _ := newTestUseCases(testConfig())
	ctx := context.Background()

	joinN(ctx, t, uc.Raid, 0, 6)

	// the small-stage check scheduled before escalation must not touch a
	// raid that has moved past it
	gt.NoError(t, uc.Raid.DecayCheck(ctx, types.RaidModeSmall))
	st := gt.R1(repo.State().GetRaid(ctx)).NoError(t)
	gt.Value(t, st.Mode).Equal(types.RaidModeLarge)
}

func TestRaidManualSilenceSurvivesDecay(t *testing.T) {
	cfg := testConfig()
	uc, _, repo, clock := newTestUseCases(cfg)
	ctx := context.Background()

	gt.NoError(t, uc.Raid.StartManualSilence(ctx))
	joinN(ctx, t, uc.Raid, 0, 3)

	clock.Advance(cfg.Raid.SmallDecay())
	gt.NoError(t, uc.Jobs.RunDue(ctx))

	st := gt.R1(repo.State().GetRaid(ctx)).NoError(t)
	gt.Value(t, st.Mode).Equal(types.RaidModeNone)
	// the moderator engaged silence mode; decay must not disengage it
	gt.Value(t, st.AutoSilence).Equal(true)
	gt.Value(t, st.ManualOverride).Equal(true)
}

func TestRaidSmallScenario(t *testing.T) {
	cfg := testConfig()
	uc, sink, repo, clock := newTestUseCases(cfg)
	ctx := context.Background()

	// three joins in quick succession cross the small threshold
	gt.NoError(t, uc.Raid.HandleJoin(ctx, "U-A"))
	clock.Advance(10 * time.Second)
	gt.NoError(t, uc.Raid.HandleJoin(ctx, "U-B"))
	clock.Advance(10 * time.Second)
	gt.NoError(t, uc.Raid.HandleJoin(ctx, "U-C"))

	st := gt.R1(repo.State().GetRaid(ctx)).NoError(t)
	gt.Value(t, st.Mode).Equal(types.RaidModeSmall)
	// small raids alert but never silence on their own
	gt.Array(t, sink.ops("silence")).Length(0)

	// ten minutes of quiet: the decay check finds an empty window and ends
	// the raid, so a fourth join is just a normal join
	clock.Advance(cfg.Raid.SmallDecay())
	gt.NoError(t, uc.Jobs.RunDue(ctx))

	gt.NoError(t, uc.Raid.HandleJoin(ctx, "U-D"))
	st = gt.R1(repo.State().GetRaid(ctx)).NoError(t)
	gt.Value(t, st.Mode).Equal(types.RaidModeNone)
	gt.Array(t, st.RecentJoins).Length(1)
}
