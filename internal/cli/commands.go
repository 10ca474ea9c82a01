package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"newsdesk/internal/bot"
	"newsdesk/internal/server"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the fetch schedule and the Telegram bot",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			start := time.Now()

			cfg, log, err := setup(ctx)
			if err != nil {
				return err
			}

			a, err := newApp(ctx, cfg, log)
			if err != nil {
				log.ErrorContext(ctx, "Failed to initialize app",
					"error", err)

				return err
			}
			defer a.close(ctx)

			if err = a.applySeed(ctx); err != nil {
				log.ErrorContext(ctx, "Failed to apply seed",
					"error", err,
					"seedPath", cfg.SeedPath)

				return err
			}

			if err = a.scheduler.Start(); err != nil {
				log.ErrorContext(ctx, "Failed to start scheduler",
					"error", err,
					"spec", cfg.FetchSchedule)

				return err
			}
			defer a.scheduler.Stop()
			log.InfoContext(ctx, "Scheduler is started",
				"spec", cfg.FetchSchedule)

			g, gctx := errgroup.WithContext(ctx)

			srv := server.New(a.svc, a.db, log)
			g.Go(func() error {
				return srv.Run(gctx, cfg.HTTPAddr)
			})

			if cfg.Token != "" {
				if len(cfg.AllowedUsers) == 0 {
					log.WarnContext(ctx, "ALLOWED_USERS is empty so the bot answers everyone",
						"envVar", "ALLOWED_USERS")
				}

				b, botErr := bot.New(cfg.Token, a.svc, cfg.AllowedUsers, log)
				if botErr != nil {
					log.ErrorContext(ctx, "Failed to initialize bot",
						"error", botErr,
						"allowedUsersCount", len(cfg.AllowedUsers))

					return botErr
				}
				defer b.Stop()

				g.Go(func() error {
					b.Start(gctx)

					return nil
				})
			} else {
				log.InfoContext(ctx, "TELEGRAM_TOKEN is missing so the bot is disabled",
					"envVar", "TELEGRAM_TOKEN")
			}

			err = g.Wait()

			log.InfoContext(ctx, "Exiting...",
				"uptimeSeconds", time.Since(start).Seconds())

			if err != nil {
				log.ErrorContext(ctx, "Failed to serve",
					"error", err)
			}

			return err
		},
	}
}

func newFetchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch",
		Short: "Fetch every source once and analyze the new articles",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			return withApp(ctx, func(a *app) error {
				cycle, err := a.scheduler.RunOnce(ctx)
				if err != nil {
					return fmt.Errorf("run cycle: %w", err)
				}

				fmt.Fprintf(cmd.OutOrStdout(),
					"new: %d, skipped: %d, failed sources: %d, analyzed: %d (high %d, medium %d, low %d)\n",
					cycle.Ingest.NewCount,
					cycle.Ingest.SkippedCount,
					len(cycle.Ingest.FailedSources),
					cycle.Analysis.Analyzed,
					cycle.Analysis.High,
					cycle.Analysis.Medium,
					cycle.Analysis.Low)

				return nil
			})
		},
	}
}

func newCleanupCommand() *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete articles fetched more than --days ago, keeping rated ones",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if days <= 0 {
				return errors.New("--days must be positive")
			}

			ctx := cmd.Context()

			return withApp(ctx, func(a *app) error {
				deleted, err := a.catalog.Cleanup(ctx, time.Duration(days)*24*time.Hour)
				if err != nil {
					return fmt.Errorf("cleanup: %w", err)
				}

				fmt.Fprintf(cmd.OutOrStdout(), "deleted: %d\n", deleted)

				return nil
			})
		},
	}

	cmd.Flags().IntVar(&days, "days", 30, "retention in days")

	return cmd
}

func newSeedCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Apply the seed file to an empty database",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			return withApp(ctx, func(a *app) error {
				return a.applySeed(ctx)
			})
		},
	}
}

// withApp runs fn against a freshly wired app and logs its failure.
func withApp(ctx context.Context, fn func(a *app) error) error {
	cfg, log, err := setup(ctx)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		log.ErrorContext(ctx, "Failed to initialize app",
			"error", err)

		return err
	}
	defer a.close(ctx)

	if err = fn(a); err != nil {
		log.ErrorContext(ctx, "Command failed",
			"error", err)

		return err
	}

	return nil
}
