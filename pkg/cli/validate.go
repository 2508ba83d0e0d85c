package cli

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/warden/pkg/cli/config"
	"github.com/secmon-lab/warden/pkg/repository/firestore"
	"github.com/secmon-lab/warden/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdValidate() *cli.Command {
	var moderationCfg config.Moderation
	var firestoreProjectID string
	var firestoreDatabaseID string

	var flags []cli.Flag
	flags = append(flags, moderationCfg.Flags()...)
	flags = append(flags, &cli.StringFlag{
		Name:        "firestore-project-id",
		Usage:       "Firestore Project ID (if specified, repository connectivity is checked)",
		Sources:     cli.EnvVars("WARDEN_FIRESTORE_PROJECT_ID"),
		Destination: &firestoreProjectID,
	})
	flags = append(flags, &cli.StringFlag{
		Name:        "firestore-database-id",
		Usage:       "Firestore Database ID",
		Sources:     cli.EnvVars("WARDEN_FIRESTORE_DATABASE_ID"),
		Destination: &firestoreDatabaseID,
	})

	return &cli.Command{
		Name:    "validate",
		Aliases: []string{"v"},
		Usage:   "Validate the moderation policy file and optionally check repository connectivity",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := logging.Default()
			pass := color.New(color.FgGreen).SprintFunc()
			fail := color.New(color.FgRed).SprintFunc()

			// Step 1: Load and validate the moderation policy
			cfg, err := moderationCfg.Load()
			if err != nil {
				fmt.Printf("%s moderation policy: %s\n", fail("✗"), moderationCfg.Path())
				return goerr.Wrap(err, "policy validation failed")
			}

			fmt.Printf("%s moderation policy: %s\n", pass("✓"), moderationCfg.Path())
			fmt.Printf("  log channel:       %s\n", cfg.LogChannel)
			fmt.Printf("  filter categories: %d\n", len(cfg.Filter))
			fmt.Printf("  dev bypass:        %v (%d users)\n", cfg.DevBypass, len(cfg.DevUsers))
			fmt.Printf("  scheduler tick:    %s\n", cfg.Scheduler.TickInterval())
			if cfg.Banner.Enabled {
				fmt.Printf("  banner rotation:   every %s in %s (%d URLs)\n",
					cfg.Banner.Interval(), cfg.Banner.Channel, len(cfg.Banner.URLs))
			} else {
				fmt.Printf("  banner rotation:   disabled\n")
			}

			for _, cat := range cfg.Filter {
				fmt.Printf("  filter %q: %d words, silence=%v\n", cat.Name, len(cat.Words), cat.Silence)
			}

			// Step 2: If Firestore project ID is specified, check connectivity
			if firestoreProjectID == "" {
				logger.Info("No Firestore project ID specified, skipping repository check")
				return nil
			}

			repo, err := firestore.New(ctx, firestoreProjectID)
			if err != nil {
				fmt.Printf("%s firestore: %s\n", fail("✗"), firestoreProjectID)
				return goerr.Wrap(err, "failed to initialize Firestore repository")
			}
			defer func() {
				if err := repo.Close(); err != nil {
					logger.Error("failed to close repository", "error", err.Error())
				}
			}()

			if _, err := repo.Jobs().List(ctx, nil); err != nil {
				fmt.Printf("%s firestore: %s\n", fail("✗"), firestoreProjectID)
				return goerr.Wrap(err, "repository check failed",
					goerr.V("project_id", firestoreProjectID))
			}

			fmt.Printf("%s firestore: %s\n", pass("✓"), firestoreProjectID)
			logger.Info("Repository check passed",
				"project_id", firestoreProjectID,
				"database_id", firestoreDatabaseID,
			)
			return nil
		},
	}
}
