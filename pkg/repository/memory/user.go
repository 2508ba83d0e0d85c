package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/warden/pkg/domain/model"
	"github.com/secmon-lab/warden/pkg/domain/types"
)

type userRepository struct {
	mu      sync.RWMutex
	records map[types.UserID]*model.UserRecord
}

func newUserRepository() *userRepository {
	return &userRepository{
		records: make(map[types.UserID]*model.UserRecord),
	}
}

func (r *userRepository) Get(ctx context.Context, id types.UserID) (*model.UserRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, exists := r.records[id]
	if !exists {
		return nil, goerr.Wrap(types.ErrUserNotFound, "no record for user", goerr.V("userID", id))
	}
	return rec.Clone(), nil
}

func (r *userRepository) Put(ctx context.Context, rec *model.UserRecord) error {
	if err := rec.ID.Validate(); err != nil {
		return goerr.Wrap(err, "cannot store user record without ID")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.records[rec.ID] = rec.Clone()
	return nil
}

func (r *userRepository) List(ctx context.Context) ([]*model.UserRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	records := make([]*model.UserRecord, 0, len(r.records))
	for _, rec := range r.records {
		records = append(records, rec.Clone())
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].ID < records[j].ID
	})
	return records, nil
}
