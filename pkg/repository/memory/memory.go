package memory

import (
	"github.com/secmon-lab/warden/pkg/domain/interfaces"
)

// Memory is an in-memory Repository for tests and local runs
type Memory struct {
	users *userRepository
	jobs  *jobRepository
	state *stateRepository
}

var _ interfaces.Repository = &Memory{}

func New() *Memory {
	return &Memory{
		users: newUserRepository(),
		jobs:  newJobRepository(),
		state: newStateRepository(),
	}
}

func (m *Memory) Users() interfaces.UserRepository {
	return m.users
}

func (m *Memory) Jobs() interfaces.JobRepository {
	return m.jobs
}

func (m *Memory) State() interfaces.StateRepository {
	return m.state
}
