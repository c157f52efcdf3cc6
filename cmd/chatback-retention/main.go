// Package main provides the retention sweeper that purges soft-deleted
// sessions past the retention window.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	cli "github.com/urfave/cli/v3"

	"github.com/chatback/chatback/pkg/cmd"
	"github.com/chatback/chatback/pkg/config"
	"github.com/chatback/chatback/pkg/log"
	"github.com/chatback/chatback/pkg/persistence"
	"github.com/chatback/chatback/pkg/retention"
)

func main() {
	logger := log.WithModule("retention")

	command := &cli.Command{
		Name:                  "chatback-retention",
		Usage:                 "Purge soft-deleted sessions past the retention window",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "config",
				Usage:   "Path to the optional YAML configuration file",
				Sources: cli.EnvVars("CONFIG_FILE"),
			},
			&cli.BoolFlag{
				Name:  "once",
				Usage: "Run a single sweep and exit instead of scheduling",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			appConfig, err := config.Load(command.String("config"))
			if err != nil {
				return err
			}

			p, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				err := p.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			purger, ok := p.(persistence.PurgeOlderThan)
			if !ok {
				return errors.New("persistence backend does not support retention purges")
			}

			sweeper := retention.NewSweeper(purger, appConfig.Retention.Window.Std(), logger)

			if command.Bool("once") {
				purged, err := sweeper.Sweep(ctx)
				if err != nil {
					return err
				}

				logger.InfoContext(ctx, "Retention sweep finished", "purged", purged)

				return nil
			}

			err = sweeper.Start(ctx, appConfig.Retention.Schedule)
			if err != nil {
				return err
			}

			defer sweeper.Stop()

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
			<-stop

			logger.InfoContext(ctx, "Shutting down retention sweeper")

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
