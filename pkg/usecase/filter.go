package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/secmon-lab/warden/pkg/domain/interfaces"
	"github.com/secmon-lab/warden/pkg/domain/model"
	"github.com/secmon-lab/warden/pkg/domain/model/config"
	"github.com/secmon-lab/warden/pkg/domain/types"
	slacksvc "github.com/secmon-lab/warden/pkg/service/slack"
	"github.com/secmon-lab/warden/pkg/utils/errutil"
	"github.com/secmon-lab/warden/pkg/utils/logging"
)

// FilterUseCase evaluates message content against per-category keyword sets.
// Each category gets an unguessable per-process sentinel token appended to
// its word list, mirroring the pressure engine's test phrase, so operators
// can verify the trip path of any category without posting a real banned
// word.
type FilterUseCase struct {
	users  *userStore
	sink   interfaces.ActionSink
	roles  interfaces.RoleDirectory
	modlog *slacksvc.ModLog
	cfg    *config.Moderation
	nonce  string
}

func NewFilterUseCase(users *userStore, sink interfaces.ActionSink, roles interfaces.RoleDirectory, modlog *slacksvc.ModLog, cfg *config.Moderation) *FilterUseCase {
	return &FilterUseCase{
		users:  users,
		sink:   sink,
		roles:  roles,
		modlog: modlog,
		cfg:    cfg,
		nonce:  uuid.NewString(),
	}
}

// SentinelToken returns the test trigger word for a category
func (uc *FilterUseCase) SentinelToken(category string) string {
	return fmt.Sprintf("[filter-test:%s:%s]", category, uc.nonce)
}

// match finds the first matching word in the first matching category. A
// message trips at most one category; there is no stacking.
func (uc *FilterUseCase) match(content string) (category *config.FilterCategory, word string) {
	lowered := strings.ToLower(content)

	for i := range uc.cfg.Filter {
		cat := &uc.cfg.Filter[i]
		words := append(append([]string{}, cat.Words...), uc.SentinelToken(cat.Name))
		for _, w := range words {
			if strings.Contains(lowered, strings.ToLower(w)) {
				return cat, w
			}
		}
	}
	return nil, ""
}

// HandleMessage evaluates one message and applies the category's
// consequences on a trip.
func (uc *FilterUseCase) HandleMessage(ctx context.Context, msg *model.Message) error {
	cat, word := uc.match(msg.Content)
	if cat == nil {
		return nil
	}
	return uc.trip(ctx, msg, cat, word)
}

// HandleEdit re-evaluates an edited message only when the content actually
// changed.
func (uc *FilterUseCase) HandleEdit(ctx context.Context, oldContent string, msg *model.Message) error {
	if oldContent == msg.Content {
		return nil
	}
	return uc.HandleMessage(ctx, msg)
}

func (uc *FilterUseCase) trip(ctx context.Context, msg *model.Message, cat *config.FilterCategory, word string) error {
	logger := logging.From(ctx)

	if bypassed, who := uc.bypass(ctx, msg.Author); bypassed {
		logger.Info("filter trip bypassed",
			"userID", msg.Author,
			"category", cat.Name,
			"bypass", who,
		)
		uc.modlog.Postf(ctx, "filter trip by <@%s> in category %q bypassed (%s)", msg.Author, cat.Name, who)
		return nil
	}

	if err := uc.sink.DeleteMessage(ctx, msg.Channel, msg.ID); err != nil {
		errutil.Handle(ctx, err, "failed to delete filtered message")
	}

	if cat.Response != "" {
		if err := uc.sink.SendMessage(ctx, msg.Channel, cat.Response); err != nil {
			errutil.Handle(ctx, err, "failed to send filter response")
		}
	}

	if cat.Silence {
		if err := silenceUser(ctx, uc.users, uc.sink, msg.Author, "filter category "+cat.Name); err != nil {
			errutil.Handle(ctx, err, "failed to silence filtered user")
		}
	}

	logger.Info("filter trip",
		"userID", msg.Author,
		"category", cat.Name,
		"word", word,
	)
	uc.modlog.Postf(ctx, "deleted message from <@%s>: filter category %q", msg.Author, cat.Name)
	return nil
}

// bypass reports whether the author is exempt, and why
func (uc *FilterUseCase) bypass(ctx context.Context, user types.UserID) (bool, string) {
	if uc.cfg.DevBypass && uc.cfg.IsDevUser(user) {
		return true, "developer"
	}

	if uc.cfg.BypassRole != "" {
		held, err := uc.roles.HasRole(ctx, user, types.RoleID(uc.cfg.BypassRole))
		if err != nil {
			errutil.Handle(ctx, err, "failed to check filter bypass role")
		}
		if held {
			return true, "bypass role"
		}
	}

	return false, ""
}
