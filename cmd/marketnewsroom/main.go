package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/spf13/cobra"

	"MarketNewsroom/internal/app"
	"MarketNewsroom/internal/config"
	"MarketNewsroom/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "marketnewsroom",
		Short:         "Financial news pipeline for B3-listed companies",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(serveCommand(), workerCommand(), runCommand(), migrateCommand())
	return root
}

// withApp loads configuration, builds the application and closes it after fn.
func withApp(cmd *cobra.Command, fn func(context.Context, *app.Application) error) error {
	cfg := config.Load()
	logger := logging.NewWithWriter(os.Stdout, cfg.Logging.Level, cfg.Logging.Format)

	application, err := app.New(cmd.Context(), cfg, logger)
	if err != nil {
		logger.Error("application init failed", "error", err)
		return err
	}
	defer application.Close()

	if err := fn(cmd.Context(), application); err != nil {
		logger.Error("application stopped", "error", err)
		return err
	}
	return nil
}

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, queue workers and the watchlist scheduler",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.Application) error {
				return a.Serve(ctx)
			})
		},
	}
}

func workerCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Process queued pipeline stages",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.Application) error {
				return a.RunWorkers(ctx)
			})
		},
	}
}

func runCommand() *cobra.Command {
	var ticker string
	cmd := &cobra.Command{
		Use:   "run <company>",
		Short: "Run the pipeline once in direct mode and print the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.Application) error {
				result, err := a.RunOnce(ctx, args[0], ticker)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			})
		},
	}
	cmd.Flags().StringVar(&ticker, "ticker", "", "explicit B3 ticker, e.g. PETR4")
	return cmd
}

func migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the storage schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.Application) error {
				return a.Migrate(ctx)
			})
		},
	}
}
