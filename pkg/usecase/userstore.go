package usecase

import (
	"context"
	"errors"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/warden/pkg/domain/interfaces"
	"github.com/secmon-lab/warden/pkg/domain/model"
	"github.com/secmon-lab/warden/pkg/domain/types"
)

// errNoChange tells userStore.Update that fn left the record as loaded and
// nothing needs to be written.
var errNoChange = errors.New("record unchanged")

// userStore owns every read-modify-write cycle on user records. The pressure
// and filter engines handle the same message concurrently and both persist
// the whole record, so each mutation runs under a per-user lock to keep one
// engine's write from clobbering the other's.
type userStore struct {
	repo interfaces.Repository

	mu    sync.Mutex
	locks map[types.UserID]*sync.Mutex
}

func newUserStore(repo interfaces.Repository) *userStore {
	return &userStore{
		repo:  repo,
		locks: map[types.UserID]*sync.Mutex{},
	}
}

func (s *userStore) lock(user types.UserID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[user]
	if !ok {
		l = &sync.Mutex{}
		s.locks[user] = l
	}
	return l
}

// Update loads the user's record, creating it on first sight, applies fn and
// persists the result. The whole cycle holds the user's lock. Returning
// errNoChange from fn skips the write and reports success.
func (s *userStore) Update(ctx context.Context, user types.UserID, fn func(rec *model.UserRecord) error) (*model.UserRecord, error) {
	l := s.lock(user)
	l.Lock()
	defer l.Unlock()

	rec, err := s.repo.Users().Get(ctx, user)
	if err != nil {
		if !isNotFound(err) {
			return nil, goerr.Wrap(err, "failed to get user record", goerr.V("userID", user))
		}
		rec = model.NewUserRecord(user)
	}

	if err := fn(rec); err != nil {
		if errors.Is(err, errNoChange) {
			return rec, nil
		}
		return nil, err
	}

	if err := s.repo.Users().Put(ctx, rec); err != nil {
		return nil, goerr.Wrap(err, "failed to put user record", goerr.V("userID", user))
	}
	return rec, nil
}
