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
	"github.com/secmon-lab/warden/pkg/utils/logging"
)

// BannerUseCase rotates a configured set of banner URLs through a channel on
// a fixed interval. The rotation itself is driven by a scheduled job; this
// use case owns reconciling that job against configuration and executing
// each rotation step.
type BannerUseCase struct {
	repo   interfaces.Repository
	sink   interfaces.ActionSink
	modlog *slacksvc.ModLog
	jobs   *JobUseCase
	cfg    *config.Banner
	now    func() time.Time
}

func NewBannerUseCase(repo interfaces.Repository, sink interfaces.ActionSink, modlog *slacksvc.ModLog, jobs *JobUseCase, cfg *config.Banner) *BannerUseCase {
	uc := &BannerUseCase{
		repo:   repo,
		sink:   sink,
		modlog: modlog,
		jobs:   jobs,
		cfg:    cfg,
		now:    time.Now,
	}

	jobs.RegisterHandler(types.ActionBannerRotation, func(ctx context.Context, _ model.Action) error {
		return uc.Rotate(ctx)
	})

	return uc
}

// Reconcile aligns the stored rotation job with the current configuration:
// creates it when rotation is enabled and no job exists, removes it when
// rotation is disabled, and recreates it when the configured interval
// changed. Called once at startup.
func (uc *BannerUseCase) Reconcile(ctx context.Context) error {
	logger := logging.From(ctx)

	existing, err := uc.jobs.GetAll(ctx, func(job *model.Job) bool {
		return job.Action.Type() == types.ActionBannerRotation
	})
	if err != nil {
		return goerr.Wrap(err, "failed to list banner rotation jobs")
	}

	if !uc.cfg.Enabled {
		for _, job := range existing {
			if err := uc.jobs.Delete(ctx, job.ID); err != nil {
				return goerr.Wrap(err, "failed to remove banner rotation job", goerr.V("jobID", job.ID))
			}
			logger.Info("removed banner rotation job", "jobID", job.ID)
		}
		return nil
	}

	interval := uc.cfg.Interval()
	keep := false
	for _, job := range existing {
		// rounding absorbs tick-loop lateness baked into a rescheduled job;
		// configured intervals are whole minutes apart
		if !keep && jobInterval(job).Round(time.Minute) == interval {
			keep = true
			continue
		}
		// stale interval, or a duplicate
		if err := uc.jobs.Delete(ctx, job.ID); err != nil {
			return goerr.Wrap(err, "failed to remove stale banner rotation job", goerr.V("jobID", job.ID))
		}
		logger.Info("removed stale banner rotation job", "jobID", job.ID)
	}
	if keep {
		return nil
	}

	// built by hand so CreatedAt and ExecuteAt share one timestamp and the
	// interval survives a round trip through jobInterval
	now := uc.now().UTC()
	job := &model.Job{
		ID:        types.NewJobID(),
		CreatedAt: now,
		ExecuteAt: now.Add(interval),
		Repeat:    types.RepeatRelative,
		Action:    model.BannerRotationAction{},
	}
	if err := uc.jobs.Create(ctx, job); err != nil {
		return goerr.Wrap(err, "failed to create banner rotation job")
	}
	logger.Info("created banner rotation job", "jobID", job.ID, "interval", interval)
	return nil
}

// jobInterval recovers the repeat interval a relative job was created with.
func jobInterval(job *model.Job) time.Duration {
	anchor := job.CreatedAt
	if job.LastExecutedAt != nil {
		anchor = *job.LastExecutedAt
	}
	return job.ExecuteAt.Sub(anchor)
}

// Rotate posts the next banner URL and advances the cursor. The cursor wraps
// around the configured list; a shrunken list resets it to the head.
func (uc *BannerUseCase) Rotate(ctx context.Context) error {
	if len(uc.cfg.URLs) == 0 {
		return goerr.New("banner rotation has no URLs configured")
	}

	state, err := uc.repo.State().GetBanner(ctx)
	if err != nil {
		return goerr.Wrap(err, "failed to get banner state")
	}

	cursor := state.Cursor
	if cursor >= len(uc.cfg.URLs) {
		cursor = 0
	}
	url := uc.cfg.URLs[cursor]

	if err := uc.sink.SendMessage(ctx, types.ChannelID(uc.cfg.Channel), url); err != nil {
		return goerr.Wrap(err, "failed to post banner", goerr.V("url", url))
	}

	state.Cursor = (cursor + 1) % len(uc.cfg.URLs)
	state.UpdatedAt = uc.now()
	if err := uc.repo.State().PutBanner(ctx, state); err != nil {
		return goerr.Wrap(err, "failed to put banner state")
	}

	logging.From(ctx).Info("rotated banner", "url", url, "cursor", state.Cursor)
	return nil
}
