package model

import (
	"slices"
	"strings"
	"time"

	"github.com/secmon-lab/warden/pkg/domain/types"
)

// UserRecord tracks the moderation-relevant history of one guild member. A
// record is created on the first observed join or message and is never
// deleted afterwards.
type UserRecord struct {
	ID types.UserID

	// Aliases is the display-name history, ordered and deduplicated
	Aliases []string

	// Joins is the ordered sequence of observed join timestamps
	Joins []time.Time

	// Pressure is the current decaying spam score, always >= 0 after a read
	Pressure          float64
	PressureUpdatedAt time.Time

	// LastMessage is the lowercased content of the previous message, kept for
	// repeat detection
	LastMessage string

	Silenced bool

	// ReapplyRoles are roles restored when the user rejoins
	ReapplyRoles []types.RoleID
}

// NewUserRecord creates an empty record for a newly observed member
func NewUserRecord(id types.UserID) *UserRecord {
	return &UserRecord{
		ID: id,
	}
}

// AddAlias appends a display name unless it is already recorded. Returns true
// if the name was new.
func (x *UserRecord) AddAlias(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" || slices.Contains(x.Aliases, name) {
		return false
	}
	x.Aliases = append(x.Aliases, name)
	return true
}

// AddJoin records a join timestamp. Timestamps are appended in arrival order.
func (x *UserRecord) AddJoin(at time.Time) {
	x.Joins = append(x.Joins, at)
}

// AddReapplyRole records a role to restore on rejoin, with set semantics
func (x *UserRecord) AddReapplyRole(role types.RoleID) {
	if slices.Contains(x.ReapplyRoles, role) {
		return
	}
	x.ReapplyRoles = append(x.ReapplyRoles, role)
}

// Clone returns a deep copy of the record
func (x *UserRecord) Clone() *UserRecord {
	copied := &UserRecord{
		ID:                x.ID,
		Pressure:          x.Pressure,
		PressureUpdatedAt: x.PressureUpdatedAt,
		LastMessage:       x.LastMessage,
		Silenced:          x.Silenced,
	}
	copied.Aliases = slices.Clone(x.Aliases)
	copied.Joins = slices.Clone(x.Joins)
	copied.ReapplyRoles = slices.Clone(x.ReapplyRoles)
	return copied
}
