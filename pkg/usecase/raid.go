package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/warden/pkg/domain/interfaces"
	"github.com/secmon-lab/warden/pkg/domain/model"
	"github.com/secmon-lab/warden/pkg/domain/model/config"
	"github.com/secmon-lab/warden/pkg/domain/types"
	slacksvc "github.com/secmon-lab/warden/pkg/service/slack"
	"github.com/secmon-lab/warden/pkg/utils/errutil"
	"github.com/secmon-lab/warden/pkg/utils/logging"
)

// RaidUseCase tracks the rolling recent-joins window and escalates through
// None → Small → Large. De-escalation happens only through decay checks,
// which are scheduled as jobs rather than free-running timers, or through a
// manual end by an operator.
type RaidUseCase struct {
	repo   interfaces.Repository
	users  *userStore
	sink   interfaces.ActionSink
	modlog *slacksvc.ModLog
	jobs   *JobUseCase
	cfg    *config.Moderation
	now    func() time.Time
}

func NewRaidUseCase(repo interfaces.Repository, users *userStore, sink interfaces.ActionSink, modlog *slacksvc.ModLog, jobs *JobUseCase, cfg *config.Moderation) *RaidUseCase {
	uc := &RaidUseCase{
		repo:   repo,
		users:  users,
		sink:   sink,
		modlog: modlog,
		jobs:   jobs,
		cfg:    cfg,
		now:    time.Now,
	}

	jobs.RegisterHandler(types.ActionRaidDecay, func(ctx context.Context, action model.Action) error {
		decay, ok := action.(model.RaidDecayAction)
		if !ok {
			return goerr.Wrap(types.ErrFormat, "raid-decay handler received wrong variant")
		}
		return uc.DecayCheck(ctx, decay.Stage)
	})

	return uc
}

// HandleJoin feeds one member-joined event into the detector
func (uc *RaidUseCase) HandleJoin(ctx context.Context, user types.UserID) error {
	now := uc.now().UTC()

	st, err := uc.repo.State().GetRaid(ctx)
	if err != nil {
		return err
	}

	// a user already in the window rejoined; not a new signal
	if st.Contains(user) {
		return nil
	}

	st.Add(user, now)
	st.Prune(now, uc.cfg.Raid.RecentJoinDecay())
	size := len(st.RecentJoins)

	switch {
	case size >= uc.cfg.Raid.LargeSize && st.Mode != types.RaidModeLarge:
		return uc.escalateLarge(ctx, st, now)

	case size >= uc.cfg.Raid.SmallSize && st.Mode == types.RaidModeNone:
		return uc.escalateSmall(ctx, st, now)

	default:
		return uc.repo.State().PutRaid(ctx, st)
	}
}

func (uc *RaidUseCase) escalateSmall(ctx context.Context, st *model.RaidState, now time.Time) error {
	st.Mode = types.RaidModeSmall
	if err := uc.repo.State().PutRaid(ctx, st); err != nil {
		return err
	}

	logging.From(ctx).Warn("small raid detected", "windowSize", len(st.RecentJoins))
	uc.modlog.Post(ctx,
		fmt.Sprintf("possible raid: %d joins within %s", len(st.RecentJoins), uc.cfg.Raid.RecentJoinDecay()),
		"watch the join log; silence mode can be forced with the raid-silence command",
		fmt.Sprintf("auto-silence engages at %d joins", uc.cfg.Raid.LargeSize),
	)

	return uc.scheduleDecay(ctx, types.RaidModeSmall, uc.cfg.Raid.SmallDecay(), now)
}

func (uc *RaidUseCase) escalateLarge(ctx context.Context, st *model.RaidState, now time.Time) error {
	st.Mode = types.RaidModeLarge

	silenceAll := !st.AutoSilence
	if silenceAll {
		st.AutoSilence = true
	}

	if err := uc.repo.State().PutRaid(ctx, st); err != nil {
		return err
	}

	if silenceAll {
		for _, user := range st.Users() {
			if err := silenceUser(ctx, uc.users, uc.sink, user, "large raid auto-silence"); err != nil {
				errutil.Handle(ctx, err, "failed to silence raid member")
			}
		}
	}

	logging.From(ctx).Warn("large raid detected", "windowSize", len(st.RecentJoins), "autoSilence", silenceAll)
	uc.modlog.Post(ctx,
		fmt.Sprintf("large raid: %d joins, auto-silence engaged", len(st.RecentJoins)),
		"new joiners in the window have been silenced",
		"end the raid manually with the raid-end command once the spike subsides",
	)

	return uc.scheduleDecay(ctx, types.RaidModeLarge, uc.cfg.Raid.LargeDecay(), now)
}

// scheduleDecay creates the single decay job for a mode transition
func (uc *RaidUseCase) scheduleDecay(ctx context.Context, stage types.RaidMode, after time.Duration, now time.Time) error {
	job := model.NewJob(model.RaidDecayAction{Stage: stage}, now.Add(after), types.RepeatNone)
	if err := uc.jobs.Create(ctx, job); err != nil {
		return goerr.Wrap(err, "failed to schedule raid decay", goerr.V("stage", stage))
	}
	return nil
}

// DecayCheck re-evaluates the window after a decay period. The check is
// stale-safe: it re-reads current state and is a no-op when the raid already
// ended or escalated past the stage it was scheduled for.
func (uc *RaidUseCase) DecayCheck(ctx context.Context, stage types.RaidMode) error {
	now := uc.now().UTC()

	st, err := uc.repo.State().GetRaid(ctx)
	if err != nil {
		return err
	}

	if st.Mode == types.RaidModeNone || st.Mode.Rank() > stage.Rank() {
		return nil
	}

	st.Prune(now, uc.cfg.Raid.RecentJoinDecay())

	// the ladder de-escalates against the small threshold regardless of mode
	if len(st.RecentJoins) >= uc.cfg.Raid.SmallSize {
		if err := uc.repo.State().PutRaid(ctx, st); err != nil {
			return err
		}
		uc.modlog.Post(ctx,
			fmt.Sprintf("raid still ongoing: %d recent joins after decay period", len(st.RecentJoins)),
			"no further automatic checks; end it manually with the raid-end command",
		)
		return nil
	}

	st.Mode = types.RaidModeNone
	if st.AutoSilence && !st.ManualOverride {
		st.AutoSilence = false
	}
	if err := uc.repo.State().PutRaid(ctx, st); err != nil {
		return err
	}

	uc.modlog.Post(ctx, "raid over: join rate back below threshold")
	return nil
}

// StartManualSilence lets a moderator force silence mode independent of
// automatic detection. The override survives raid decay.
func (uc *RaidUseCase) StartManualSilence(ctx context.Context) error {
	st, err := uc.repo.State().GetRaid(ctx)
	if err != nil {
		return err
	}

	st.AutoSilence = true
	st.ManualOverride = true
	if err := uc.repo.State().PutRaid(ctx, st); err != nil {
		return err
	}

	uc.modlog.Post(ctx, "silence mode engaged manually")
	return nil
}

// EndRaid resets the detector entirely. Used by operators after an
// "ongoing, needs manual end" notice.
func (uc *RaidUseCase) EndRaid(ctx context.Context) error {
	st, err := uc.repo.State().GetRaid(ctx)
	if err != nil {
		return err
	}

	st.Mode = types.RaidModeNone
	st.AutoSilence = false
	st.ManualOverride = false
	st.RecentJoins = nil
	if err := uc.repo.State().PutRaid(ctx, st); err != nil {
		return err
	}

	uc.modlog.Post(ctx, "raid ended manually")
	return nil
}
