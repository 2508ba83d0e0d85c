package model

import (
	"time"

	"github.com/secmon-lab/warden/pkg/domain/types"
)

// JoinEntry is one member in the rolling recent-joins window
type JoinEntry struct {
	User     types.UserID
	JoinedAt time.Time
}

// RaidState is the process-wide raid escalation state. Mode only escalates on
// detector decisions; de-escalation happens only through decay checks or a
// manual override.
type RaidState struct {
	Mode        types.RaidMode
	RecentJoins []JoinEntry

	// AutoSilence is set when the detector engaged silence mode on a large
	// raid; cleared when the raid ends unless a moderator forced it
	AutoSilence bool

	// ManualOverride marks that a moderator forced silence mode independent
	// of automatic detection
	ManualOverride bool
}

// NewRaidState returns the quiescent state
func NewRaidState() *RaidState {
	return &RaidState{
		Mode: types.RaidModeNone,
	}
}

// Contains reports whether the user is already in the recent-joins window
func (x *RaidState) Contains(user types.UserID) bool {
	for _, e := range x.RecentJoins {
		if e.User == user {
			return true
		}
	}
	return false
}

// Add appends a join to the window
func (x *RaidState) Add(user types.UserID, at time.Time) {
	x.RecentJoins = append(x.RecentJoins, JoinEntry{User: user, JoinedAt: at})
}

// Prune recomputes the window, dropping entries whose join age exceeds the
// decay period. This is the only way entries leave the window.
func (x *RaidState) Prune(now time.Time, decay time.Duration) {
	kept := x.RecentJoins[:0]
	for _, e := range x.RecentJoins {
		if now.Sub(e.JoinedAt) <= decay {
			kept = append(kept, e)
		}
	}
	x.RecentJoins = kept
}

// Users returns the IDs currently in the window
func (x *RaidState) Users() []types.UserID {
	users := make([]types.UserID, 0, len(x.RecentJoins))
	for _, e := range x.RecentJoins {
		users = append(users, e.User)
	}
	return users
}

// Clone returns a deep copy of the state
func (x *RaidState) Clone() *RaidState {
	copied := &RaidState{
		Mode:           x.Mode,
		AutoSilence:    x.AutoSilence,
		ManualOverride: x.ManualOverride,
	}
	copied.RecentJoins = make([]JoinEntry, len(x.RecentJoins))
	copy(copied.RecentJoins, x.RecentJoins)
	return copied
}

// BannerState tracks the banner-rotation cursor across job firings
type BannerState struct {
	Cursor    int
	UpdatedAt time.Time
}
