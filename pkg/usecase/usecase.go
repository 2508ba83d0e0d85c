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
)

// UseCases bundles the moderation engines behind one constructor so callers
// wire dependencies once.
type UseCases struct {
	Jobs     *JobUseCase
	Pressure *PressureUseCase
	Filter   *FilterUseCase
	Raid     *RaidUseCase
	Banner   *BannerUseCase
	Event    *EventUseCase
}

func New(repo interfaces.Repository, sink interfaces.ActionSink, roles interfaces.RoleDirectory, modlog *slacksvc.ModLog, cfg *config.Moderation) *UseCases {
	jobs := NewJobUseCase(repo)
	registerModerationHandlers(jobs, sink, modlog)

	// one lock registry for all engines; message fan-out runs the pressure
	// and filter engines concurrently against the same user record
	users := newUserStore(repo)

	pressure := NewPressureUseCase(repo, users, sink, roles, modlog, cfg)
	filter := NewFilterUseCase(users, sink, roles, modlog, cfg)
	raid := NewRaidUseCase(repo, users, sink, modlog, jobs, cfg)
	banner := NewBannerUseCase(repo, sink, modlog, jobs, &cfg.Banner)
	event := NewEventUseCase(repo, users, sink, roles, modlog, pressure, filter, raid, jobs, cfg)

	return &UseCases{
		Jobs:     jobs,
		Pressure: pressure,
		Filter:   filter,
		Raid:     raid,
		Banner:   banner,
		Event:    event,
	}
}

// registerModerationHandlers binds the plain moderation actions to the
// scheduler. Raid decay and banner rotation register themselves in their own
// constructors.
func registerModerationHandlers(jobs *JobUseCase, sink interfaces.ActionSink, modlog *slacksvc.ModLog) {
	jobs.RegisterHandler(types.ActionAddRole, func(ctx context.Context, action model.Action) error {
		act, ok := action.(model.AddRoleAction)
		if !ok {
			return goerr.Wrap(types.ErrFormat, "add-role handler received wrong variant")
		}
		if err := sink.AddRole(ctx, act.User, act.Role, act.Reason); err != nil {
			return goerr.Wrap(err, "failed to add role", goerr.V("userID", act.User), goerr.V("roleID", act.Role))
		}
		modlog.Postf(ctx, "scheduled action: %s", act.String())
		return nil
	})

	jobs.RegisterHandler(types.ActionRemoveRole, func(ctx context.Context, action model.Action) error {
		act, ok := action.(model.RemoveRoleAction)
		if !ok {
			return goerr.Wrap(types.ErrFormat, "remove-role handler received wrong variant")
		}
		if err := sink.RemoveRole(ctx, act.User, act.Role, act.Reason); err != nil {
			return goerr.Wrap(err, "failed to remove role", goerr.V("userID", act.User), goerr.V("roleID", act.Role))
		}
		modlog.Postf(ctx, "scheduled action: %s", act.String())
		return nil
	})

	jobs.RegisterHandler(types.ActionUnban, func(ctx context.Context, action model.Action) error {
		act, ok := action.(model.UnbanAction)
		if !ok {
			return goerr.Wrap(types.ErrFormat, "unban handler received wrong variant")
		}
		if err := sink.Unban(ctx, act.User); err != nil {
			return goerr.Wrap(err, "failed to unban", goerr.V("userID", act.User))
		}
		modlog.Postf(ctx, "scheduled action: %s", act.String())
		return nil
	})

	jobs.RegisterHandler(types.ActionEcho, func(ctx context.Context, action model.Action) error {
		act, ok := action.(model.EchoAction)
		if !ok {
			return goerr.Wrap(types.ErrFormat, "echo handler received wrong variant")
		}
		if err := sink.SendMessage(ctx, act.Target, act.Content); err != nil {
			return goerr.Wrap(err, "failed to echo", goerr.V("channelID", act.Target))
		}
		return nil
	})
}

// SetClock overrides the time source of every engine. Test use only.
func (uc *UseCases) SetClock(now func() time.Time) {
	uc.Jobs.now = now
	uc.Pressure.now = now
	uc.Raid.now = now
	uc.Banner.now = now
	uc.Event.now = now
}
