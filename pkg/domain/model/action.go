package model

import (
	"fmt"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/warden/pkg/domain/types"
)

// Action is the tagged union of work a scheduled job can perform. Each
// variant carries strongly typed fields; dispatch is by Type(), never by
// string-keyed lookup.
type Action interface {
	Type() types.ActionType
	// String renders the operator-facing encoding of the action
	String() string
}

// AddRoleAction grants a role to a user
type AddRoleAction struct {
	Role   types.RoleID
	User   types.UserID
	Reason string
}

func (x AddRoleAction) Type() types.ActionType { return types.ActionAddRole }

func (x AddRoleAction) String() string {
	return encodeRoleAction("add-role", x.Role, x.User, x.Reason)
}

// RemoveRoleAction revokes a role from a user
type RemoveRoleAction struct {
	Role   types.RoleID
	User   types.UserID
	Reason string
}

func (x RemoveRoleAction) Type() types.ActionType { return types.ActionRemoveRole }

func (x RemoveRoleAction) String() string {
	return encodeRoleAction("remove-role", x.Role, x.User, x.Reason)
}

// UnbanAction lifts an active ban
type UnbanAction struct {
	User types.UserID
}

func (x UnbanAction) Type() types.ActionType { return types.ActionUnban }

func (x UnbanAction) String() string {
	return fmt.Sprintf("unban %s", x.User)
}

// EchoAction posts content to a channel or user
type EchoAction struct {
	Target  types.ChannelID
	Content string
}

func (x EchoAction) Type() types.ActionType { return types.ActionEcho }

func (x EchoAction) String() string {
	return fmt.Sprintf("echo in %s content %s", x.Target, x.Content)
}

// BannerRotationAction advances the guild banner to the next configured image
type BannerRotationAction struct{}

func (x BannerRotationAction) Type() types.ActionType { return types.ActionBannerRotation }

func (x BannerRotationAction) String() string { return "banner-rotation" }

// RaidDecayAction re-evaluates the raid window after a decay period. Stage is
// the mode the decay was scheduled for; the check is a no-op if the raid
// already ended or escalated past it.
type RaidDecayAction struct {
	Stage types.RaidMode
}

func (x RaidDecayAction) Type() types.ActionType { return types.ActionRaidDecay }

func (x RaidDecayAction) String() string {
	return fmt.Sprintf("raid-decay %s", x.Stage)
}

func encodeRoleAction(verb string, role types.RoleID, user types.UserID, reason string) string {
	s := fmt.Sprintf("%s %s from %s", verb, role, user)
	if reason != "" {
		s += " reason " + reason
	}
	return s
}

// ParseAction decodes the operator-authored action encoding:
//
//	add-role <roleID> from <userID> [reason <text>]
//	remove-role <roleID> from <userID> [reason <text>]
//	unban <userID>
//	echo in <channelID> content <text>
//
// Missing or misplaced positional keywords fail with a format error.
func ParseAction(s string) (Action, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return nil, goerr.Wrap(types.ErrFormat, "empty action")
	}

	switch fields[0] {
	case "add-role", "remove-role":
		role, user, reason, err := parseRoleAction(fields)
		if err != nil {
			return nil, err
		}
		if fields[0] == "add-role" {
			return AddRoleAction{Role: role, User: user, Reason: reason}, nil
		}
		return RemoveRoleAction{Role: role, User: user, Reason: reason}, nil

	case "unban":
		if len(fields) != 2 {
			return nil, goerr.Wrap(types.ErrFormat, "unban requires exactly one user ID", goerr.V("action", s))
		}
		return UnbanAction{User: types.UserID(fields[1])}, nil

	case "echo":
		if len(fields) < 5 || fields[1] != "in" || fields[3] != "content" {
			return nil, goerr.Wrap(types.ErrFormat, "echo requires 'in <target> content <text>'", goerr.V("action", s))
		}
		return EchoAction{
			Target:  types.ChannelID(fields[2]),
			Content: strings.Join(fields[4:], " "),
		}, nil

	default:
		return nil, goerr.Wrap(types.ErrFormat, "unsupported action type", goerr.V("action", s))
	}
}

func parseRoleAction(fields []string) (types.RoleID, types.UserID, string, error) {
	if len(fields) < 4 || fields[2] != "from" {
		return "", "", "", goerr.Wrap(types.ErrFormat, "role action requires '<roleID> from <userID>'", goerr.V("action", strings.Join(fields, " ")))
	}

	role := types.RoleID(fields[1])
	user := types.UserID(fields[3])

	var reason string
	if len(fields) > 4 {
		if fields[4] != "reason" || len(fields) < 6 {
			return "", "", "", goerr.Wrap(types.ErrFormat, "trailing arguments must be 'reason <text>'", goerr.V("action", strings.Join(fields, " ")))
		}
		reason = strings.Join(fields[5:], " ")
	}

	return role, user, reason, nil
}

// ActionTargets reports whether the action is aimed at the given user. Used
// to drop jobs that lost their relevance (e.g. target left the guild).
func ActionTargets(action Action, user types.UserID) bool {
	switch a := action.(type) {
	case AddRoleAction:
		return a.User == user
	case RemoveRoleAction:
		return a.User == user
	case UnbanAction:
		return a.User == user
	default:
		return false
	}
}
