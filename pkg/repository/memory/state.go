package memory

import (
	"context"
	"sync"

	"github.com/secmon-lab/warden/pkg/domain/model"
)

type stateRepository struct {
	mu     sync.RWMutex
	raid   *model.RaidState
	banner *model.BannerState
}

func newStateRepository() *stateRepository {
	return &stateRepository{}
}

func (r *stateRepository) GetRaid(ctx context.Context) (*model.RaidState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.raid == nil {
		return model.NewRaidState(), nil
	}
	return r.raid.Clone(), nil
}

func (r *stateRepository) PutRaid(ctx context.Context, st *model.RaidState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.raid = st.Clone()
	return nil
}

func (r *stateRepository) GetBanner(ctx context.Context) (*model.BannerState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.banner == nil {
		return &model.BannerState{}, nil
	}
	copied := *r.banner
	return &copied, nil
}

func (r *stateRepository) PutBanner(ctx context.Context, st *model.BannerState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *st
	r.banner = &copied
	return nil
}
