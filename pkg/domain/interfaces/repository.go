package interfaces

import (
	"context"
	"time"

	"github.com/secmon-lab/warden/pkg/domain/model"
	"github.com/secmon-lab/warden/pkg/domain/types"
)

// Repository defines the persistence boundary. Every mutation of a user
// record, job or guild state is written through immediately; there is no
// deferred batching.
type Repository interface {
	Users() UserRepository
	Jobs() JobRepository
	State() StateRepository
}

// UserRepository stores one record per member ever seen
type UserRepository interface {
	// Get returns types.ErrUserNotFound if the record does not exist
	Get(ctx context.Context, id types.UserID) (*model.UserRecord, error)
	Put(ctx context.Context, rec *model.UserRecord) error
	List(ctx context.Context) ([]*model.UserRecord, error)
}

// JobPredicate selects jobs from the store
type JobPredicate func(*model.Job) bool

// JobRepository stores pending jobs ordered by execution time. The scheduler
// is the sole writer.
type JobRepository interface {
	// Get returns types.ErrJobNotFound if the job does not exist
	Get(ctx context.Context, id types.JobID) (*model.Job, error)
	Put(ctx context.Context, job *model.Job) error
	// Delete returns types.ErrJobNotFound if the job does not exist; the
	// store is left unchanged
	Delete(ctx context.Context, id types.JobID) error
	// List returns jobs matching the predicate, ordered by ExecuteAt. A nil
	// predicate matches everything.
	List(ctx context.Context, pred JobPredicate) ([]*model.Job, error)
	// ListDue returns jobs whose execution time is at or before now, ordered
	// by ExecuteAt
	ListDue(ctx context.Context, now time.Time) ([]*model.Job, error)
}

// StateRepository stores the process-wide raid and banner state
type StateRepository interface {
	// GetRaid returns the quiescent state if none has been persisted
	GetRaid(ctx context.Context) (*model.RaidState, error)
	PutRaid(ctx context.Context, st *model.RaidState) error

	GetBanner(ctx context.Context) (*model.BannerState, error)
	PutBanner(ctx context.Context, st *model.BannerState) error
}
