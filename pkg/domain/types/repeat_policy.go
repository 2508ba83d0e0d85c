package types

import "github.com/m-mizutani/goerr/v2"

// RepeatPolicy controls how a job is rescheduled after execution
type RepeatPolicy string

const (
	RepeatNone     RepeatPolicy = "none"
	RepeatRelative RepeatPolicy = "relative"
	RepeatDaily    RepeatPolicy = "daily"
	RepeatWeekly   RepeatPolicy = "weekly"
	RepeatYearly   RepeatPolicy = "yearly"
)

// AllRepeatPolicies returns all valid repeat policies
func AllRepeatPolicies() []RepeatPolicy {
	return []RepeatPolicy{
		RepeatNone,
		RepeatRelative,
		RepeatDaily,
		RepeatWeekly,
		RepeatYearly,
	}
}

func (x RepeatPolicy) Validate() error {
	switch x {
	case RepeatNone, RepeatRelative, RepeatDaily, RepeatWeekly, RepeatYearly:
		return nil
	}
	return goerr.New("invalid repeat policy", goerr.V("policy", x))
}

func (x RepeatPolicy) String() string {
	return string(x)
}
