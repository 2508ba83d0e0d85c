package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/warden/pkg/cli/config"
	"github.com/secmon-lab/warden/pkg/domain/model"
	"github.com/secmon-lab/warden/pkg/domain/types"
	slacksvc "github.com/secmon-lab/warden/pkg/service/slack"
	"github.com/secmon-lab/warden/pkg/usecase"
	"github.com/urfave/cli/v3"
)

// cmdJob is the operator tool for inspecting and editing the job store while
// the server owns the tick loop. Mutations here are safe because every write
// goes through the same store the scheduler polls.
func cmdJob() *cli.Command {
	var moderationCfg config.Moderation
	var repoCfg config.Repository
	var slackCfg config.Slack

	var flags []cli.Flag
	flags = append(flags, moderationCfg.Flags()...)
	flags = append(flags, repoCfg.Flags()...)
	flags = append(flags, slackCfg.Flags()...)

	setup := func(ctx context.Context) (*usecase.UseCases, func(), error) {
		cfg, err := moderationCfg.Load()
		if err != nil {
			return nil, nil, goerr.Wrap(err, "failed to load moderation policy")
		}

		repo, closeRepo, err := repoCfg.Configure(ctx)
		if err != nil {
			return nil, nil, goerr.Wrap(err, "failed to initialize repository")
		}

		sink, err := slackCfg.Configure(cfg)
		if err != nil {
			closeRepo()
			return nil, nil, goerr.Wrap(err, "failed to configure slack")
		}

		modlog := slacksvc.NewModLog(sink, types.ChannelID(cfg.LogChannel))
		return usecase.New(repo, sink, sink, modlog, cfg), closeRepo, nil
	}

	var executeAt string
	var repeat string

	return &cli.Command{
		Name:  "job",
		Usage: "Inspect and edit scheduled jobs",
		Flags: flags,
		Commands: []*cli.Command{
			{
				Name:      "add",
				Usage:     "Schedule an action, e.g. 'add-role <roleID> from <userID> reason <text>'",
				ArgsUsage: "<action>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:        "execute-at",
						Usage:       "Execution time (RFC3339)",
						Required:    true,
						Destination: &executeAt,
					},
					&cli.StringFlag{
						Name:        "repeat",
						Usage:       "Repeat policy (none, relative, daily, weekly, yearly)",
						Value:       "none",
						Destination: &repeat,
					},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					encoded := strings.Join(c.Args().Slice(), " ")
					action, err := model.ParseAction(encoded)
					if err != nil {
						return goerr.Wrap(err, "invalid action encoding")
					}

					at, err := time.Parse(time.RFC3339, executeAt)
					if err != nil {
						return goerr.Wrap(err, "invalid execution time", goerr.V("execute-at", executeAt))
					}

					policy := types.RepeatPolicy(repeat)
					if err := policy.Validate(); err != nil {
						return err
					}

					uc, closer, err := setup(ctx)
					if err != nil {
						return err
					}
					defer closer()

					job := model.NewJob(action, at, policy)
					if err := uc.Jobs.Create(ctx, job); err != nil {
						return goerr.Wrap(err, "failed to create job")
					}

					fmt.Printf("created job %s: %s at %s (%s)\n", job.ID, action.String(), job.ExecuteAt.Format(time.RFC3339), policy)
					return nil
				},
			},
			{
				Name:  "list",
				Usage: "List scheduled jobs in execution order",
				Action: func(ctx context.Context, c *cli.Command) error {
					uc, closer, err := setup(ctx)
					if err != nil {
						return err
					}
					defer closer()

					jobs, err := uc.Jobs.GetAll(ctx, nil)
					if err != nil {
						return goerr.Wrap(err, "failed to list jobs")
					}

					if len(jobs) == 0 {
						fmt.Println("no scheduled jobs")
						return nil
					}
					for _, job := range jobs {
						fmt.Printf("%s  %s  %-8s  %s\n", job.ID, job.ExecuteAt.Format(time.RFC3339), job.Repeat, job.Action.String())
					}
					return nil
				},
			},
			{
				Name:      "delete",
				Usage:     "Delete a scheduled job by ID",
				ArgsUsage: "<jobID>",
				Action: func(ctx context.Context, c *cli.Command) error {
					if c.Args().Len() != 1 {
						return goerr.New("exactly one job ID is required")
					}

					uc, closer, err := setup(ctx)
					if err != nil {
						return err
					}
					defer closer()

					id := types.JobID(c.Args().First())
					if err := uc.Jobs.Delete(ctx, id); err != nil {
						return goerr.Wrap(err, "failed to delete job", goerr.V("jobID", id))
					}

					fmt.Printf("deleted job %s\n", id)
					return nil
				},
			},
		},
	}
}
