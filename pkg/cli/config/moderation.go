package config

import (
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	domainConfig "github.com/secmon-lab/warden/pkg/domain/model/config"
	"github.com/urfave/cli/v3"
)

// Moderation holds the CLI flag pointing at the moderation policy file
type Moderation struct {
	path string
}

func (x *Moderation) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "moderation-config",
			Usage:       "Path to the moderation policy TOML file",
			Category:    "Moderation",
			Required:    true,
			Sources:     cli.EnvVars("WARDEN_MODERATION_CONFIG"),
			Destination: &x.path,
		},
	}
}

// Path returns the configured file path
func (x *Moderation) Path() string {
	return x.path
}

// Load reads, parses and validates the policy file
func (x *Moderation) Load() (*domainConfig.Moderation, error) {
	return LoadModeration(x.path)
}

// LoadModeration reads a moderation policy from an explicit path
func LoadModeration(path string) (*domainConfig.Moderation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read moderation config", goerr.V("path", path))
	}

	var cfg domainConfig.Moderation
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, goerr.Wrap(err, "failed to parse moderation config", goerr.V("path", path))
	}

	if err := cfg.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid moderation config", goerr.V("path", path))
	}

	return &cfg, nil
}
