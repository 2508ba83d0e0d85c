package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/warden/pkg/domain/interfaces"
	"github.com/secmon-lab/warden/pkg/domain/model"
	"github.com/secmon-lab/warden/pkg/domain/model/config"
	"github.com/secmon-lab/warden/pkg/domain/types"
	slacksvc "github.com/secmon-lab/warden/pkg/service/slack"
	"github.com/secmon-lab/warden/pkg/utils/errutil"
	"github.com/secmon-lab/warden/pkg/utils/logging"
)

// PressureTestPhrase is a reserved sentinel that always trips the silence
// path, regardless of prior score. It lets operators verify enforcement
// without producing real spam; normal input never matches it.
const PressureTestPhrase = "⚠ pressure overload drill: kholaa-vermillion-9931 ⚠"

// PressureBreakdown itemizes the score delta of one message
type PressureBreakdown struct {
	Base   float64
	Image  float64
	URL    float64
	Ping   float64
	Repeat float64
	Length float64
	Line   float64
}

// Total sums all terms
func (b PressureBreakdown) Total() float64 {
	return b.Base + b.Image + b.URL + b.Ping + b.Repeat + b.Length + b.Line
}

func (b PressureBreakdown) String() string {
	return fmt.Sprintf("base %.2f, image %.2f, url %.2f, ping %.2f, repeat %.2f, length %.2f, line %.2f",
		b.Base, b.Image, b.URL, b.Ping, b.Repeat, b.Length, b.Line)
}

// PressureUseCase maintains the per-user decaying spam score and trips a
// silence action when it crosses the configured maximum.
type PressureUseCase struct {
	repo   interfaces.Repository
	users  *userStore
	sink   interfaces.ActionSink
	roles  interfaces.RoleDirectory
	modlog *slacksvc.ModLog
	cfg    *config.Moderation
	now    func() time.Time
}

func NewPressureUseCase(repo interfaces.Repository, users *userStore, sink interfaces.ActionSink, roles interfaces.RoleDirectory, modlog *slacksvc.ModLog, cfg *config.Moderation) *PressureUseCase {
	return &PressureUseCase{
		repo:   repo,
		users:  users,
		sink:   sink,
		roles:  roles,
		modlog: modlog,
		cfg:    cfg,
		now:    time.Now,
	}
}

// decay applies the elapsed-time discount to the record in place. The score
// never goes negative and the timestamp never moves backwards.
func (uc *PressureUseCase) decay(rec *model.UserRecord, now time.Time) {
	elapsed := now.Sub(rec.PressureUpdatedAt).Seconds()
	if elapsed > 0 {
		rec.Pressure -= elapsed * uc.cfg.Pressure.BasePressure / uc.cfg.Pressure.PressureDecay
		rec.PressureUpdatedAt = now
	}
	if rec.Pressure < 0 {
		rec.Pressure = 0
	}
}

// GetPressure returns the user's current score. Reading applies decay and
// persists the updated score and timestamp.
func (uc *PressureUseCase) GetPressure(ctx context.Context, user types.UserID) (float64, error) {
	rec, err := uc.users.Update(ctx, user, func(rec *model.UserRecord) error {
		uc.decay(rec, uc.now().UTC())
		return nil
	})
	if err != nil {
		return 0, goerr.Wrap(err, "failed to persist decayed pressure", goerr.V("userID", user))
	}
	return rec.Pressure, nil
}

// IncreasePressure applies decay, adds delta, persists and returns the new
// score.
func (uc *PressureUseCase) IncreasePressure(ctx context.Context, user types.UserID, delta float64) (float64, error) {
	rec, err := uc.users.Update(ctx, user, func(rec *model.UserRecord) error {
		uc.decay(rec, uc.now().UTC())
		rec.Pressure += delta
		return nil
	})
	if err != nil {
		return 0, goerr.Wrap(err, "failed to persist increased pressure", goerr.V("userID", user))
	}
	return rec.Pressure, nil
}

// GetPressureWithoutModifying is a pure read for inspection commands. No
// decay is applied and nothing is persisted.
func (uc *PressureUseCase) GetPressureWithoutModifying(ctx context.Context, user types.UserID) (float64, error) {
	rec, err := uc.repo.Users().Get(ctx, user)
	if err != nil {
		if isNotFound(err) {
			return 0, nil
		}
		return 0, err
	}
	return max(0, rec.Pressure), nil
}

// breakdown computes the per-term delta of a message against the user's
// previous message.
func (uc *PressureUseCase) breakdown(msg *model.Message, lastMessage string) PressureBreakdown {
	p := uc.cfg.Pressure

	bd := PressureBreakdown{
		Base:   p.BasePressure,
		Image:  p.ImageWeight * float64(msg.Attachments),
		Ping:   p.PingWeight * float64(msg.Mentions()),
		Length: p.LengthWeight * float64(len(msg.Content)),
		Line:   p.LineWeight * float64(msg.Newlines()),
	}

	// bare links cost like images, unless a preview rendered or the author
	// suppressed embeds
	if !msg.HasPreview && !msg.SuppressEmbeds {
		bd.URL = p.ImageWeight * float64(msg.URLs())
	}

	if lastMessage != "" && strings.ToLower(msg.Content) == lastMessage {
		bd.Repeat = p.RepeatWeight
	}

	return bd
}

// HandleMessage scores an incoming message and runs the trip path when the
// new score reaches the configured maximum.
func (uc *PressureUseCase) HandleMessage(ctx context.Context, msg *model.Message) error {
	var bd PressureBreakdown
	var score float64

	_, err := uc.users.Update(ctx, msg.Author, func(rec *model.UserRecord) error {
		bd = uc.breakdown(msg, rec.LastMessage)
		delta := bd.Total()
		if msg.Content == PressureTestPhrase {
			delta = uc.cfg.Pressure.MaxPressure + uc.cfg.Pressure.BasePressure
		}

		uc.decay(rec, uc.now().UTC())
		rec.Pressure += delta
		rec.LastMessage = strings.ToLower(msg.Content)
		score = rec.Pressure
		return nil
	})
	if err != nil {
		return goerr.Wrap(err, "failed to persist pressure", goerr.V("userID", msg.Author))
	}

	if score < uc.cfg.Pressure.MaxPressure {
		return nil
	}
	return uc.trip(ctx, msg, bd, score)
}

// HandleEdit re-scores an edited message when the character-level difference
// meets the reprocess threshold. The edit runs through the same trip path as
// a fresh message.
func (uc *PressureUseCase) HandleEdit(ctx context.Context, oldContent string, msg *model.Message) error {
	if levenshtein.ComputeDistance(oldContent, msg.Content) < uc.cfg.Pressure.EditReprocessThreshold {
		return nil
	}
	return uc.HandleMessage(ctx, msg)
}

func (uc *PressureUseCase) trip(ctx context.Context, msg *model.Message, bd PressureBreakdown, score float64) error {
	logger := logging.From(ctx)

	if uc.cfg.BypassRole != "" {
		bypass, err := uc.roles.HasRole(ctx, msg.Author, types.RoleID(uc.cfg.BypassRole))
		if err != nil {
			errutil.Handle(ctx, err, "failed to check pressure bypass role")
		}
		if bypass {
			uc.modlog.Postf(ctx, "pressure limit reached by <@%s> (score %.2f), bypass role held, no action taken", msg.Author, score)
			return nil
		}
	}

	if err := silenceUser(ctx, uc.users, uc.sink, msg.Author, "pressure limit exceeded"); err != nil {
		errutil.Handle(ctx, err, "failed to silence user over pressure limit")
	}

	logger.Info("pressure trip",
		"userID", msg.Author,
		"score", score,
		"max", uc.cfg.Pressure.MaxPressure,
	)
	uc.modlog.Post(ctx,
		fmt.Sprintf("silenced <@%s>: pressure %.2f exceeded limit %.2f", msg.Author, score, uc.cfg.Pressure.MaxPressure),
		"breakdown: "+bd.String(),
	)
	return nil
}
