package usecase

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/warden/pkg/domain/interfaces"
	"github.com/secmon-lab/warden/pkg/domain/model"
	"github.com/secmon-lab/warden/pkg/domain/model/config"
	"github.com/secmon-lab/warden/pkg/domain/types"
	slacksvc "github.com/secmon-lab/warden/pkg/service/slack"
	"github.com/secmon-lab/warden/pkg/utils/errutil"
	"github.com/secmon-lab/warden/pkg/utils/logging"
	"golang.org/x/sync/errgroup"
)

// EventUseCase routes workspace events into the moderation engines. Message
// events fan out to the pressure and keyword engines concurrently; a failure
// in one never suppresses the other.
type EventUseCase struct {
	repo     interfaces.Repository
	users    *userStore
	sink     interfaces.ActionSink
	roles    interfaces.RoleDirectory
	modlog   *slacksvc.ModLog
	pressure *PressureUseCase
	filter   *FilterUseCase
	raid     *RaidUseCase
	jobs     *JobUseCase
	cfg      *config.Moderation
	now      func() time.Time
}

func NewEventUseCase(repo interfaces.Repository, users *userStore, sink interfaces.ActionSink, roles interfaces.RoleDirectory, modlog *slacksvc.ModLog, pressure *PressureUseCase, filter *FilterUseCase, raid *RaidUseCase, jobs *JobUseCase, cfg *config.Moderation) *EventUseCase {
	return &EventUseCase{
		repo:     repo,
		users:    users,
		sink:     sink,
		roles:    roles,
		modlog:   modlog,
		pressure: pressure,
		filter:   filter,
		raid:     raid,
		jobs:     jobs,
		cfg:      cfg,
		now:      time.Now,
	}
}

// HandleMessage feeds a new message to both content engines
func (uc *EventUseCase) HandleMessage(ctx context.Context, msg *model.Message) error {
	var eg errgroup.Group
	eg.Go(func() error {
		if err := uc.pressure.HandleMessage(ctx, msg); err != nil {
			return goerr.Wrap(err, "pressure engine failed", goerr.V("messageID", msg.ID))
		}
		return nil
	})
	eg.Go(func() error {
		if err := uc.filter.HandleMessage(ctx, msg); err != nil {
			return goerr.Wrap(err, "filter engine failed", goerr.V("messageID", msg.ID))
		}
		return nil
	})
	return eg.Wait()
}

// HandleMessageEdit feeds an edited message to both content engines. Each
// engine applies its own threshold for whether the edit warrants
// reprocessing.
func (uc *EventUseCase) HandleMessageEdit(ctx context.Context, oldContent string, msg *model.Message) error {
	var eg errgroup.Group
	eg.Go(func() error {
		if err := uc.pressure.HandleEdit(ctx, oldContent, msg); err != nil {
			return goerr.Wrap(err, "pressure engine failed on edit", goerr.V("messageID", msg.ID))
		}
		return nil
	})
	eg.Go(func() error {
		if err := uc.filter.HandleEdit(ctx, oldContent, msg); err != nil {
			return goerr.Wrap(err, "filter engine failed on edit", goerr.V("messageID", msg.ID))
		}
		return nil
	})
	return eg.Wait()
}

// HandleMemberJoined records the join, restores state for returning members
// and feeds the raid detector. Restoration happens before the raid check so
// that a silenced user rejoining during a raid is muted immediately.
func (uc *EventUseCase) HandleMemberJoined(ctx context.Context, user types.UserID, name string) error {
	logger := logging.From(ctx)
	now := uc.now()

	if _, err := uc.users.Update(ctx, user, func(rec *model.UserRecord) error {
		rec.AddAlias(name)
		rec.AddJoin(now)

		if rec.Silenced {
			logger.Info("re-silencing returning member", "userID", user)
			if err := uc.sink.Silence(ctx, user, "silenced before leaving"); err != nil {
				errutil.Handle(ctx, err, "failed to re-silence returning member")
			}
			uc.modlog.Postf(ctx, "re-silenced returning member <@%s>", user)
		}

		for _, role := range rec.ReapplyRoles {
			if err := uc.sink.AddRole(ctx, user, role, "restored on rejoin"); err != nil {
				errutil.Handle(ctx, err, "failed to reapply role")
			}
		}
		rec.ReapplyRoles = nil
		return nil
	}); err != nil {
		return goerr.Wrap(err, "failed to record member join", goerr.V("userID", user))
	}

	return uc.raid.HandleJoin(ctx, user)
}

// HandleMemberLeft snapshots the member's roles for restoration on rejoin
// and drops any scheduled jobs that target them.
func (uc *EventUseCase) HandleMemberLeft(ctx context.Context, user types.UserID) error {
	known := true
	if _, err := uc.repo.Users().Get(ctx, user); err != nil {
		if !isNotFound(err) {
			return goerr.Wrap(err, "failed to get user record", goerr.V("userID", user))
		}
		// never saw this member post or join; nothing to snapshot
		known = false
	}

	if known {
		roles, err := uc.roles.MemberRoles(ctx, user)
		if err != nil {
			errutil.Handle(ctx, err, "failed to snapshot member roles")
			roles = nil
		}
		if _, err := uc.users.Update(ctx, user, func(rec *model.UserRecord) error {
			for _, role := range roles {
				rec.AddReapplyRole(role)
			}
			return nil
		}); err != nil {
			return goerr.Wrap(err, "failed to snapshot departed member", goerr.V("userID", user))
		}
	}

	stale, err := uc.jobs.GetAll(ctx, func(job *model.Job) bool {
		return model.ActionTargets(job.Action, user)
	})
	if err != nil {
		return goerr.Wrap(err, "failed to list jobs for departed member")
	}
	for _, job := range stale {
		if err := uc.jobs.Delete(ctx, job.ID); err != nil {
			errutil.Handle(ctx, err, "failed to delete job for departed member")
		}
	}

	return nil
}

// HandleMemberUpdated records a display name change as a new alias
func (uc *EventUseCase) HandleMemberUpdated(ctx context.Context, user types.UserID, name string) error {
	if _, err := uc.users.Update(ctx, user, func(rec *model.UserRecord) error {
		if !rec.AddAlias(name) {
			return errNoChange
		}
		return nil
	}); err != nil {
		return goerr.Wrap(err, "failed to record alias", goerr.V("userID", user))
	}
	return nil
}

// HandleMemberUnbanned reports an external unban to the moderation log
func (uc *EventUseCase) HandleMemberUnbanned(ctx context.Context, user types.UserID) error {
	uc.modlog.Postf(ctx, "member <@%s> was unbanned", user)
	return nil
}
