package config

import (
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/warden/pkg/domain/types"
)

// Moderation holds every engine threshold and toggle, loaded from a TOML
// file. All durations are stored in the units operators author them in
// (seconds or minutes) and exposed as time.Duration through accessors.
type Moderation struct {
	LogChannel string   `toml:"log_channel"`
	DevUsers   []string `toml:"dev_users"`
	DevBypass  bool     `toml:"dev_bypass"`

	// BypassRole exempts its holders from filter and pressure enforcement
	BypassRole string `toml:"bypass_role"`

	Pressure  Pressure         `toml:"pressure"`
	Raid      Raid             `toml:"raid"`
	Filter    []FilterCategory `toml:"filter"`
	Scheduler Scheduler        `toml:"scheduler"`
	Banner    Banner           `toml:"banner"`
}

// Pressure configures the decaying spam score engine
type Pressure struct {
	BasePressure float64 `toml:"base_pressure"`
	MaxPressure  float64 `toml:"max_pressure"`
	// PressureDecay is the number of seconds it takes one base unit to decay
	PressureDecay float64 `toml:"pressure_decay"`

	ImageWeight  float64 `toml:"image_weight"`
	PingWeight   float64 `toml:"ping_weight"`
	LengthWeight float64 `toml:"length_weight"`
	LineWeight   float64 `toml:"line_weight"`
	RepeatWeight float64 `toml:"repeat_weight"`

	// EditReprocessThreshold is the minimum character-level difference
	// between old and new content before an edit is re-scored
	EditReprocessThreshold int `toml:"edit_reprocess_threshold"`

	SilencedRole string `toml:"silenced_role"`
}

// Raid configures the join-spike detector
type Raid struct {
	SmallSize int `toml:"small_size"`
	LargeSize int `toml:"large_size"`

	RecentJoinDecaySec int `toml:"recent_join_decay_sec"`
	SmallDecayMin      int `toml:"small_decay_min"`
	LargeDecayMin      int `toml:"large_decay_min"`
}

// RecentJoinDecay is how long a join stays in the rolling window
func (x Raid) RecentJoinDecay() time.Duration {
	return time.Duration(x.RecentJoinDecaySec) * time.Second
}

// SmallDecay is the delay before a small raid is re-evaluated
func (x Raid) SmallDecay() time.Duration {
	return time.Duration(x.SmallDecayMin) * time.Minute
}

// LargeDecay is the delay before a large raid is re-evaluated
func (x Raid) LargeDecay() time.Duration {
	return time.Duration(x.LargeDecayMin) * time.Minute
}

// FilterCategory is one named set of banned words and its consequences
type FilterCategory struct {
	Name     string   `toml:"name"`
	Words    []string `toml:"words"`
	Response string   `toml:"response"`
	Silence  bool     `toml:"silence"`
}

// Scheduler configures the job tick loop
type Scheduler struct {
	TickIntervalSec int `toml:"tick_interval_sec"`
}

// TickInterval is the scheduler polling interval
func (x Scheduler) TickInterval() time.Duration {
	return time.Duration(x.TickIntervalSec) * time.Second
}

// Banner configures banner rotation
type Banner struct {
	Enabled     bool     `toml:"enabled"`
	IntervalMin int      `toml:"interval_min"`
	Channel     string   `toml:"channel"`
	URLs        []string `toml:"urls"`
}

// Interval is the rotation period
func (x Banner) Interval() time.Duration {
	return time.Duration(x.IntervalMin) * time.Minute
}

func (x *Pressure) Validate() error {
	if x.BasePressure <= 0 {
		return goerr.New("base_pressure must be positive", goerr.V("base_pressure", x.BasePressure))
	}
	if x.MaxPressure <= 0 {
		return goerr.New("max_pressure must be positive", goerr.V("max_pressure", x.MaxPressure))
	}
	if x.PressureDecay <= 0 {
		return goerr.New("pressure_decay must be positive", goerr.V("pressure_decay", x.PressureDecay))
	}
	if x.EditReprocessThreshold < 0 {
		return goerr.New("edit_reprocess_threshold must not be negative")
	}
	return nil
}

func (x *Raid) Validate() error {
	if x.SmallSize <= 0 {
		return goerr.New("raid small_size must be positive", goerr.V("small_size", x.SmallSize))
	}
	if x.LargeSize < x.SmallSize {
		return goerr.New("raid large_size must be >= small_size",
			goerr.V("small_size", x.SmallSize), goerr.V("large_size", x.LargeSize))
	}
	if x.RecentJoinDecaySec <= 0 {
		return goerr.New("raid recent_join_decay_sec must be positive")
	}
	if x.SmallDecayMin <= 0 || x.LargeDecayMin <= 0 {
		return goerr.New("raid decay minutes must be positive",
			goerr.V("small_decay_min", x.SmallDecayMin), goerr.V("large_decay_min", x.LargeDecayMin))
	}
	return nil
}

func (x *FilterCategory) Validate() error {
	if x.Name == "" {
		return goerr.New("filter category name is required")
	}
	if len(x.Words) == 0 {
		return goerr.New("filter category has no words", goerr.V("name", x.Name))
	}
	for _, w := range x.Words {
		if w == "" {
			return goerr.New("filter category contains an empty word", goerr.V("name", x.Name))
		}
	}
	return nil
}

func (x *Banner) Validate() error {
	if !x.Enabled {
		return nil
	}
	if x.IntervalMin <= 0 {
		return goerr.New("banner interval_min must be positive when rotation is enabled")
	}
	if x.Channel == "" {
		return goerr.New("banner channel is required when rotation is enabled")
	}
	if len(x.URLs) == 0 {
		return goerr.New("banner rotation requires at least one URL")
	}
	return nil
}

func (x *Moderation) Validate() error {
	if err := x.Pressure.Validate(); err != nil {
		return goerr.Wrap(err, "invalid pressure configuration")
	}
	if err := x.Raid.Validate(); err != nil {
		return goerr.Wrap(err, "invalid raid configuration")
	}
	seen := map[string]bool{}
	for i := range x.Filter {
		if err := x.Filter[i].Validate(); err != nil {
			return goerr.Wrap(err, "invalid filter category")
		}
		if seen[x.Filter[i].Name] {
			return goerr.New("duplicate filter category", goerr.V("name", x.Filter[i].Name))
		}
		seen[x.Filter[i].Name] = true
	}
	if x.Scheduler.TickIntervalSec <= 0 {
		return goerr.New("scheduler tick_interval_sec must be positive")
	}
	if err := x.Banner.Validate(); err != nil {
		return goerr.Wrap(err, "invalid banner configuration")
	}
	return nil
}

// SilencedRole returns the configured silenced role, or ErrConfigMissing if
// unset. Silencing behavior is skipped when the role is not configured.
func (x *Moderation) SilencedRole() (types.RoleID, error) {
	if x.Pressure.SilencedRole == "" {
		return "", goerr.Wrap(types.ErrConfigMissing, "silenced_role is not configured")
	}
	return types.RoleID(x.Pressure.SilencedRole), nil
}

// IsDevUser reports whether the user is a recognized developer
func (x *Moderation) IsDevUser(user types.UserID) bool {
	for _, u := range x.DevUsers {
		if u == string(user) {
			return true
		}
	}
	return false
}
