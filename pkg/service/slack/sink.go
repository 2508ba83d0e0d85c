package slack

import (
	"context"
	"slices"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/warden/pkg/domain/interfaces"
	"github.com/secmon-lab/warden/pkg/domain/types"
	"github.com/slack-go/slack"
)

// Sink implements the moderation action sink and role directory over the
// Slack Web API. Roles are usergroups; silencing and banning add the user to
// the configured usergroup, so both stay reversible through RemoveRole.
type Sink struct {
	api           *slack.Client
	silencedGroup types.RoleID
	bannedGroup   types.RoleID
}

var (
	_ interfaces.ActionSink    = &Sink{}
	_ interfaces.RoleDirectory = &Sink{}
)

type Option func(*Sink)

// WithSilencedGroup sets the usergroup that strips speaking privileges
func WithSilencedGroup(group types.RoleID) Option {
	return func(s *Sink) {
		s.silencedGroup = group
	}
}

// WithBannedGroup sets the usergroup that marks banned members
func WithBannedGroup(group types.RoleID) Option {
	return func(s *Sink) {
		s.bannedGroup = group
	}
}

// New creates a Sink with the provided bot token
func New(token string, opts ...Option) (*Sink, error) {
	if token == "" {
		return nil, goerr.New("Slack bot token is required")
	}

	s := &Sink{
		api: slack.New(token),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// mapError converts Slack API error strings into the sink's failure classes
func mapError(err error) error {
	if err == nil {
		return nil
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "not_found") || strings.Contains(msg, "no_such_subteam"):
		return goerr.Wrap(types.ErrUserNotFound, "target does not exist", goerr.V("cause", msg))
	case strings.Contains(msg, "missing_scope") || strings.Contains(msg, "not_allowed") ||
		strings.Contains(msg, "restricted_action") || strings.Contains(msg, "cant_delete_message"):
		return goerr.Wrap(types.ErrPermissionDenied, "platform rejected the action", goerr.V("cause", msg))
	}
	return err
}

func (s *Sink) groupMembers(ctx context.Context, group types.RoleID) ([]string, error) {
	members, err := s.api.GetUserGroupMembersContext(ctx, string(group))
	if err != nil {
		return nil, mapError(err)
	}
	return members, nil
}

func (s *Sink) setGroupMembers(ctx context.Context, group types.RoleID, members []string) error {
	// Slack rejects an empty member list; a placeholder entry is not worth
	// the confusion, so leave the last member in place
	if len(members) == 0 {
		return goerr.Wrap(types.ErrInvalidState, "usergroup cannot be emptied", goerr.V("group", group))
	}
	if _, err := s.api.UpdateUserGroupMembersContext(ctx, string(group), strings.Join(members, ",")); err != nil {
		return mapError(err)
	}
	return nil
}

func (s *Sink) AddRole(ctx context.Context, user types.UserID, role types.RoleID, reason string) error {
	members, err := s.groupMembers(ctx, role)
	if err != nil {
		return err
	}
	if slices.Contains(members, string(user)) {
		return nil
	}
	return s.setGroupMembers(ctx, role, append(members, string(user)))
}

func (s *Sink) RemoveRole(ctx context.Context, user types.UserID, role types.RoleID, reason string) error {
	members, err := s.groupMembers(ctx, role)
	if err != nil {
		return err
	}

	idx := slices.Index(members, string(user))
	if idx < 0 {
		return nil
	}
	return s.setGroupMembers(ctx, role, slices.Delete(members, idx, idx+1))
}

func (s *Sink) Silence(ctx context.Context, user types.UserID, reason string) error {
	if s.silencedGroup == "" {
		return goerr.Wrap(types.ErrConfigMissing, "silenced usergroup is not configured")
	}
	return s.AddRole(ctx, user, s.silencedGroup, reason)
}

func (s *Sink) DeleteMessage(ctx context.Context, channel types.ChannelID, id types.MessageID) error {
	if _, _, err := s.api.DeleteMessageContext(ctx, string(channel), string(id)); err != nil {
		return mapError(err)
	}
	return nil
}

func (s *Sink) SendMessage(ctx context.Context, channel types.ChannelID, content string) error {
	if _, _, err := s.api.PostMessageContext(ctx, string(channel), slack.MsgOptionText(content, false)); err != nil {
		return mapError(err)
	}
	return nil
}

func (s *Sink) Unban(ctx context.Context, user types.UserID) error {
	if s.bannedGroup == "" {
		return goerr.Wrap(types.ErrConfigMissing, "banned usergroup is not configured")
	}

	members, err := s.groupMembers(ctx, s.bannedGroup)
	if err != nil {
		return err
	}

	idx := slices.Index(members, string(user))
	if idx < 0 {
		return goerr.Wrap(types.ErrInvalidState, "user has no active ban", goerr.V("userID", user))
	}
	return s.setGroupMembers(ctx, s.bannedGroup, slices.Delete(members, idx, idx+1))
}

func (s *Sink) HasRole(ctx context.Context, user types.UserID, role types.RoleID) (bool, error) {
	members, err := s.groupMembers(ctx, role)
	if err != nil {
		return false, err
	}
	return slices.Contains(members, string(user)), nil
}

func (s *Sink) MemberRoles(ctx context.Context, user types.UserID) ([]types.RoleID, error) {
	groups, err := s.api.GetUserGroupsContext(ctx, slack.GetUserGroupsOptionIncludeUsers(true))
	if err != nil {
		return nil, mapError(err)
	}

	var roles []types.RoleID
	for _, g := range groups {
		if slices.Contains(g.Users, string(user)) {
			roles = append(roles, types.RoleID(g.ID))
		}
	}
	return roles, nil
}

// UserName resolves the current display name of a member
func (s *Sink) UserName(ctx context.Context, user types.UserID) (string, error) {
	info, err := s.api.GetUserInfoContext(ctx, string(user))
	if err != nil {
		return "", mapError(err)
	}
	if info.Profile.DisplayName != "" {
		return info.Profile.DisplayName, nil
	}
	return info.Name, nil
}
