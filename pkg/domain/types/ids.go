package types

import (
	"errors"

	"github.com/google/uuid"
)

// UserID is the stable platform identifier of a guild member
type UserID string

func (x UserID) Validate() error {
	if x == "" {
		return errors.New("user ID is empty")
	}
	return nil
}

func (x UserID) String() string {
	return string(x)
}

// RoleID identifies a role (platform usergroup) that can be granted or revoked
type RoleID string

func (x RoleID) Validate() error {
	if x == "" {
		return errors.New("role ID is empty")
	}
	return nil
}

func (x RoleID) String() string {
	return string(x)
}

// ChannelID identifies a channel for message delivery and deletion
type ChannelID string

func (x ChannelID) Validate() error {
	if x == "" {
		return errors.New("channel ID is empty")
	}
	return nil
}

func (x ChannelID) String() string {
	return string(x)
}

// MessageID identifies a message within its channel
type MessageID string

func (x MessageID) String() string {
	return string(x)
}

// JobID identifies a scheduled job
type JobID string

// NewJobID issues a random job ID
func NewJobID() JobID {
	return JobID(uuid.NewString())
}

func (x JobID) Validate() error {
	if x == "" {
		return errors.New("job ID is empty")
	}
	return nil
}

func (x JobID) String() string {
	return string(x)
}
