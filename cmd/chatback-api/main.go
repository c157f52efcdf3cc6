package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel/trace"

	"github.com/chatback/chatback/pkg/cmd"
	"github.com/chatback/chatback/pkg/config"
	"github.com/chatback/chatback/pkg/llm"
	"github.com/chatback/chatback/pkg/log"
	"github.com/chatback/chatback/pkg/otelhelper"
)

const defaultPort = 9090

func main() {
	logger := log.WithModule("api")

	command := &cli.Command{
		Name:                  "chatback-api",
		Usage:                 "Run the stakeholder interview and document generation API",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "kv-url",
				Usage:   "Redis URL for the key-value store (empty for in-process)",
				Sources: cli.EnvVars("KV_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider (gochannel, kafka)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS"),
			},
			&cli.StringFlag{
				Name:     "openai-api-key",
				Usage:    "API key for the completion model",
				Required: true,
				Sources:  cli.EnvVars("OPENAI_API_KEY"),
			},
			&cli.StringFlag{
				Name:    "model",
				Usage:   "Completion model name",
				Value:   llm.DefaultModel,
				Sources: cli.EnvVars("MODEL"),
			},
			&cli.StringFlag{
				Name:    "artifacts-dir",
				Usage:   "Directory for generated diagram and document artifacts",
				Value:   "./artifacts",
				Sources: cli.EnvVars("ARTIFACTS_DIR"),
			},
			&cli.StringFlag{
				Name:    "config",
				Usage:   "Path to the optional YAML configuration file",
				Sources: cli.EnvVars("CONFIG_FILE"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Export OpenTelemetry traces over OTLP",
				Sources: cli.EnvVars("TRACING_ENABLED"),
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

			logger.InfoContext(ctx, "Initializing Chatback API")

			appConfig, err := config.Load(command.String("config"))
			if err != nil {
				return err
			}

			persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				err := persistence.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			store, err := cmd.NewKV(ctx, command.String("kv-url"))
			if err != nil {
				return err
			}

			defer func() {
				err := store.Close()
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close key-value store", "error", err)
				}
			}()

			eventBus, err := cmd.NewEventBus(command.String("event-bus"), logger)
			if err != nil {
				return err
			}

			defer func() {
				err := eventBus.Close()
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			client, err := cmd.NewLLM(command.String("openai-api-key"), command.String("model"))
			if err != nil {
				return err
			}

			var tracer trace.Tracer

			if command.Bool("tracing") {
				tracer, err = otelhelper.NewTracer(ctx, "chatback-api")
				if err != nil {
					return err
				}
			}

			api := NewAPI(
				logger,
				persistence,
				store,
				eventBus,
				client,
				appConfig,
				command.String("artifacts-dir"),
				tracer,
			)

			err = api.Start(command.Int("port"))
			if err != nil {
				logger.ErrorContext(ctx, "Failed to start API server", "error", err)
			}

			return err
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
