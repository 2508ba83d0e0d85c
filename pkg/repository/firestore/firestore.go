package firestore

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/warden/pkg/domain/interfaces"
)

// Firestore is the production Repository. Collections: users, jobs, state.
type Firestore struct {
	client *firestore.Client
	users  *userRepository
	jobs   *jobRepository
	state  *stateRepository
}

var _ interfaces.Repository = &Firestore{}

type Option func(*Firestore)

// WithCollectionPrefix namespaces all collections, mainly for tests sharing a
// project
func WithCollectionPrefix(prefix string) Option {
	return func(f *Firestore) {
		f.users.collectionPrefix = prefix
		f.jobs.collectionPrefix = prefix
		f.state.collectionPrefix = prefix
	}
}

func New(ctx context.Context, projectID string, opts ...Option) (*Firestore, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client", goerr.V("projectID", projectID))
	}

	f := &Firestore{
		client: client,
		users:  newUserRepository(client),
		jobs:   newJobRepository(client),
		state:  newStateRepository(client),
	}

	for _, opt := range opts {
		opt(f)
	}

	return f, nil
}

func (f *Firestore) Users() interfaces.UserRepository {
	return f.users
}

func (f *Firestore) Jobs() interfaces.JobRepository {
	return f.jobs
}

func (f *Firestore) State() interfaces.StateRepository {
	return f.state
}

// Close releases the underlying client
func (f *Firestore) Close() error {
	return f.client.Close()
}
