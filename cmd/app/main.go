// Package main provides the entry point for the application with CLI commands.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/allisson/chainsync/cmd/app/commands"
	"github.com/allisson/chainsync/internal/app"
	"github.com/allisson/chainsync/internal/config"
)

const version = "1.0.0"

// withContainer builds the DI container for one-shot commands and makes
// sure it is shut down when the command finishes.
func withContainer(fn func(ctx context.Context, container *app.Container) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		container := app.NewContainer(config.Load())
		logger := container.Logger()
		defer func() {
			if err := container.Shutdown(context.Background()); err != nil {
				logger.Error("failed to shutdown container", slog.Any("error", err))
			}
		}()
		return fn(ctx, container)
	}
}

func main() {
	cmd := &cli.Command{
		Name:    "chainsync",
		Usage:   "Blockchain synchronization worker",
		Version: version,
		Commands: []*cli.Command{
			{
				Name:  "worker",
				Usage: "Start the outbox worker with status and metrics servers",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunWorker(ctx, version)
				},
			},
			{
				Name:  "migrate",
				Usage: "Run database migrations",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					cfg := config.Load()
					container := app.NewContainer(cfg)
					return commands.RunMigrations(container.Logger(), cfg.DBDriver, cfg.DBConnectionString)
				},
			},
			{
				Name:  "retry-entry",
				Usage: "Requeue a failed or manual_review outbox entry",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "id",
						Aliases:  []string{"i"},
						Required: true,
						Usage:    "Outbox entry ID (UUID)",
					},
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Value:   "text",
						Usage:   "Output format: 'text' or 'json'",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return withContainer(func(ctx context.Context, container *app.Container) error {
						store, err := container.OutboxStore()
						if err != nil {
							return fmt.Errorf("failed to initialize outbox store: %w", err)
						}
						return commands.RunRetryEntry(
							ctx,
							store,
							container.Logger(),
							commands.DefaultIO().Writer,
							cmd.String("id"),
							cmd.String("format"),
						)
					})(ctx, cmd)
				},
			},
			{
				Name:  "stats",
				Usage: "Show per-status outbox entry counts",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Value:   "text",
						Usage:   "Output format: 'text' or 'json'",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return withContainer(func(ctx context.Context, container *app.Container) error {
						store, err := container.OutboxStore()
						if err != nil {
							return fmt.Errorf("failed to initialize outbox store: %w", err)
						}
						return commands.RunStats(
							ctx,
							store,
							container.Logger(),
							commands.DefaultIO().Writer,
							cmd.String("format"),
						)
					})(ctx, cmd)
				},
			},
			{
				Name:  "provider-health",
				Usage: "Probe every configured chain provider once and report",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Value:   "text",
						Usage:   "Output format: 'text' or 'json'",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return withContainer(func(ctx context.Context, container *app.Container) error {
						providerManager, err := container.ProviderManager()
						if err != nil {
							return fmt.Errorf("failed to initialize provider manager: %w", err)
						}
						return commands.RunProviderHealth(
							ctx,
							providerManager,
							container.Logger(),
							commands.DefaultIO().Writer,
							cmd.String("format"),
						)
					})(ctx, cmd)
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.Any("error", err))
		os.Exit(1)
	}
}
