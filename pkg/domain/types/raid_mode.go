package types

import "github.com/m-mizutani/goerr/v2"

// RaidMode represents the current raid escalation state of the guild
type RaidMode string

const (
	RaidModeNone  RaidMode = "NONE"
	RaidModeSmall RaidMode = "SMALL"
	RaidModeLarge RaidMode = "LARGE"
)

// AllRaidModes returns all valid raid modes
func AllRaidModes() []RaidMode {
	return []RaidMode{
		RaidModeNone,
		RaidModeSmall,
		RaidModeLarge,
	}
}

func (x RaidMode) Validate() error {
	switch x {
	case RaidModeNone, RaidModeSmall, RaidModeLarge:
		return nil
	}
	return goerr.New("invalid raid mode", goerr.V("mode", x))
}

// Rank orders modes for escalation comparison: None < Small < Large
func (x RaidMode) Rank() int {
	switch x {
	case RaidModeSmall:
		return 1
	case RaidModeLarge:
		return 2
	default:
		return 0
	}
}

func (x RaidMode) String() string {
	return string(x)
}
