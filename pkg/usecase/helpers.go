package usecase

import (
	"context"
	"errors"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/warden/pkg/domain/interfaces"
	"github.com/secmon-lab/warden/pkg/domain/model"
	"github.com/secmon-lab/warden/pkg/domain/types"
)

func isNotFound(err error) bool {
	return errors.Is(err, types.ErrUserNotFound) || errors.Is(err, types.ErrJobNotFound)
}

// silenceUser issues the platform silence and marks the record so the user
// is re-silenced on rejoin. The record write happens even when the platform
// call fails.
func silenceUser(ctx context.Context, users *userStore, sink interfaces.ActionSink, user types.UserID, reason string) error {
	sinkErr := sink.Silence(ctx, user, reason)

	if _, err := users.Update(ctx, user, func(rec *model.UserRecord) error {
		rec.Silenced = true
		return nil
	}); err != nil {
		return goerr.Wrap(err, "failed to persist silenced flag", goerr.V("userID", user))
	}

	return sinkErr
}
