package config

import (
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	domainConfig "github.com/secmon-lab/warden/pkg/domain/model/config"
	"github.com/secmon-lab/warden/pkg/domain/types"
	slacksvc "github.com/secmon-lab/warden/pkg/service/slack"
	"github.com/urfave/cli/v3"
)

// Slack holds CLI flags for the Slack connection
type Slack struct {
	botToken      string
	signingSecret string
	silencedGroup string
	bannedGroup   string
}

func (x *Slack) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "slack-bot-token",
			Usage:       "Slack Bot User OAuth Token",
			Category:    "Slack",
			Sources:     cli.EnvVars("WARDEN_SLACK_BOT_TOKEN"),
			Destination: &x.botToken,
		},
		&cli.StringFlag{
			Name:        "slack-signing-secret",
			Usage:       "Slack Signing Secret (for webhook verification)",
			Category:    "Slack",
			Sources:     cli.EnvVars("WARDEN_SLACK_SIGNING_SECRET"),
			Destination: &x.signingSecret,
		},
		&cli.StringFlag{
			Name:        "slack-silenced-group",
			Usage:       "Usergroup ID that strips speaking privileges",
			Category:    "Slack",
			Sources:     cli.EnvVars("WARDEN_SLACK_SILENCED_GROUP"),
			Destination: &x.silencedGroup,
		},
		&cli.StringFlag{
			Name:        "slack-banned-group",
			Usage:       "Usergroup ID that marks banned members",
			Category:    "Slack",
			Sources:     cli.EnvVars("WARDEN_SLACK_BANNED_GROUP"),
			Destination: &x.bannedGroup,
		},
	}
}

func (x Slack) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("bot-token.len", len(x.botToken)),
		slog.Int("signing-secret.len", len(x.signingSecret)),
		slog.String("silenced-group", x.silencedGroup),
		slog.String("banned-group", x.bannedGroup),
	)
}

// SigningSecret returns the webhook signing secret
func (x *Slack) SigningSecret() string {
	return x.signingSecret
}

// Configure builds the Slack action sink. The silenced usergroup falls back
// to the moderation policy's silenced_role when the flag is unset.
func (x *Slack) Configure(policy *domainConfig.Moderation) (*slacksvc.Sink, error) {
	if x.signingSecret == "" {
		return nil, goerr.New("slack-signing-secret is required")
	}

	silenced := types.RoleID(x.silencedGroup)
	if silenced == "" && policy != nil {
		if role, err := policy.SilencedRole(); err == nil {
			silenced = role
		}
	}

	return slacksvc.New(x.botToken,
		slacksvc.WithSilencedGroup(silenced),
		slacksvc.WithBannedGroup(types.RoleID(x.bannedGroup)),
	)
}
