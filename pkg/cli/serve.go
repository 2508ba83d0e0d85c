package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/warden/pkg/cli/config"
	httpctrl "github.com/secmon-lab/warden/pkg/controller/http"
	slacksvc "github.com/secmon-lab/warden/pkg/service/slack"
	"github.com/secmon-lab/warden/pkg/service/worker"
	"github.com/secmon-lab/warden/pkg/usecase"
	"github.com/secmon-lab/warden/pkg/utils/logging"
	"github.com/urfave/cli/v3"

	"github.com/secmon-lab/warden/pkg/domain/types"
)

func cmdServe() *cli.Command {
	var addr string
	var moderationCfg config.Moderation
	var repoCfg config.Repository
	var slackCfg config.Slack

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "HTTP server address",
			Value:       ":8080",
			Sources:     cli.EnvVars("WARDEN_ADDR"),
			Destination: &addr,
		},
	}
	flags = append(flags, moderationCfg.Flags()...)
	flags = append(flags, repoCfg.Flags()...)
	flags = append(flags, slackCfg.Flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start the moderation event server",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := moderationCfg.Load()
			if err != nil {
				return goerr.Wrap(err, "failed to load moderation policy")
			}

			repo, closeRepo, err := repoCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize repository")
			}
			defer closeRepo()

			sink, err := slackCfg.Configure(cfg)
			if err != nil {
				return goerr.Wrap(err, "failed to configure slack")
			}

			modlog := slacksvc.NewModLog(sink, types.ChannelID(cfg.LogChannel))
			uc := usecase.New(repo, sink, sink, modlog, cfg)

			// startup reconciliation aligns persisted jobs with the policy
			// file before the tick loop starts
			if err := uc.Banner.Reconcile(ctx); err != nil {
				return goerr.Wrap(err, "failed to reconcile banner rotation")
			}

			scheduler := worker.NewScheduler(uc.Jobs, cfg.Scheduler.TickInterval())
			if err := scheduler.Start(ctx); err != nil {
				return goerr.Wrap(err, "failed to start scheduler")
			}

			webhook := httpctrl.NewSlackWebhookHandler(uc.Event, sink)
			server := &http.Server{
				Addr:              addr,
				Handler:           httpctrl.New(webhook, slackCfg.SigningSecret()),
				ReadHeaderTimeout: 30 * time.Second,
			}

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

			errCh := make(chan error, 1)
			go func() {
				logging.Default().Info("Starting HTTP server", "addr", addr)
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- goerr.Wrap(err, "failed to start server")
				}
			}()

			select {
			case err := <-errCh:
				scheduler.Stop()
				return err

			case sig := <-sigCh:
				logging.Default().Info("Received shutdown signal", "signal", sig)

				// stop accepting work before draining in-flight requests
				scheduler.Stop()

				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()

				if err := server.Shutdown(shutdownCtx); err != nil {
					return goerr.Wrap(err, "failed to shutdown server gracefully")
				}

				logging.Default().Info("Server shutdown completed")
				return nil
			}
		},
	}
}
