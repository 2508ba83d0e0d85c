package types

import "github.com/m-mizutani/goerr/v2"

// ActionType tags the variant of a scheduled job action
type ActionType string

const (
	ActionAddRole        ActionType = "add-role"
	ActionRemoveRole     ActionType = "remove-role"
	ActionUnban          ActionType = "unban"
	ActionEcho           ActionType = "echo"
	ActionBannerRotation ActionType = "banner-rotation"
	ActionRaidDecay      ActionType = "raid-decay"
)

// AllActionTypes returns all valid action types
func AllActionTypes() []ActionType {
	return []ActionType{
		ActionAddRole,
		ActionRemoveRole,
		ActionUnban,
		ActionEcho,
		ActionBannerRotation,
		ActionRaidDecay,
	}
}

func (x ActionType) Validate() error {
	switch x {
	case ActionAddRole, ActionRemoveRole, ActionUnban, ActionEcho, ActionBannerRotation, ActionRaidDecay:
		return nil
	}
	return goerr.New("invalid action type", goerr.V("type", x))
}

func (x ActionType) String() string {
	return string(x)
}
