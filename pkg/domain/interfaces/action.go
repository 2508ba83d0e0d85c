package interfaces

import (
	"context"

	"github.com/secmon-lab/warden/pkg/domain/types"
)

// ActionSink issues moderation side effects against the chat platform. All
// operations accept an optional free-text reason and report (never panic on)
// missing targets or insufficient permission; callers decide whether to
// swallow the failure.
type ActionSink interface {
	AddRole(ctx context.Context, user types.UserID, role types.RoleID, reason string) error
	RemoveRole(ctx context.Context, user types.UserID, role types.RoleID, reason string) error
	// Silence removes the target's speaking privilege; reversible via
	// RemoveRole of the silenced role
	Silence(ctx context.Context, user types.UserID, reason string) error
	DeleteMessage(ctx context.Context, channel types.ChannelID, id types.MessageID) error
	SendMessage(ctx context.Context, channel types.ChannelID, content string) error
	// Unban returns types.ErrInvalidState if the user has no active ban
	Unban(ctx context.Context, user types.UserID) error
}

// RoleDirectory answers role-membership queries about guild members
type RoleDirectory interface {
	HasRole(ctx context.Context, user types.UserID, role types.RoleID) (bool, error)
	MemberRoles(ctx context.Context, user types.UserID) ([]types.RoleID, error)
}
