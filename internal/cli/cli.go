package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"newsdesk/internal/config"

	"github.com/spf13/cobra"
)

// Execute runs the root command and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		return 1
	}

	return 0
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "newsdesk",
		Short:         "Personal RSS reader that ranks articles by learned interests",
		SilenceUsage: true,
	}

	root.AddCommand(
		newServeCommand(),
		newFetchCommand(),
		newCleanupCommand(),
		newSeedCommand(),
	)

	return root
}

// setup loads the configuration and the JSON logger every command shares.
func setup(ctx context.Context) (config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
		log.ErrorContext(ctx, "Failed to load config",
			"error", err)

		return config.Config{}, nil, err
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(log)

	return cfg, log, nil
}
