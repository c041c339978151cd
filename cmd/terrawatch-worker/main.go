// Package main provides the Terrawatch worker, the process that executes
// runs.
package main

import (
	"context"
	"os"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/terrawatch/terrawatch/pkg/cmd"
	"github.com/terrawatch/terrawatch/pkg/engine"
	"github.com/terrawatch/terrawatch/pkg/log"
	"github.com/terrawatch/terrawatch/pkg/otelhelper"
	"github.com/terrawatch/terrawatch/pkg/workers"
)

func main() {
	command := &cli.Command{
		Name:                  "terrawatch-worker",
		Usage:                 "Start workers to execute workflow runs",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "worker-id",
				Aliases: []string{"id"},
				Usage:   "Custom worker ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("WORKER_ID"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (kafka, gochannel)",
				Value:   "kafka",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "platform-url",
				Usage:   "Base URL of the platform service (agents, data sources, monitors)",
				Sources: cli.EnvVars("PLATFORM_URL"),
			},
			&cli.StringFlag{
				Name:    "notifier-url",
				Usage:   "Base URL of the notification service",
				Sources: cli.EnvVars("NOTIFIER_URL"),
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

			workerID := command.String("worker-id")
			if workerID == "" {
				workerID = "worker-" + uuid.New().String()[:8]
			}

			logger := log.WithModule("terrawatch-worker").With("worker_id", workerID)

			logger.InfoContext(ctx, "Initializing Terrawatch Worker")

			registry := cmd.NewRegistry(logger, cmd.Collaborators{
				PlatformURL: command.String("platform-url"),
				NotifierURL: command.String("notifier-url"),
			})

			persistence := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus := cmd.NewEventBus(command.String("event-bus"), logger)
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			dispatcher := engine.NewDispatcher(registry, logger)
			cancels := engine.NewCancelRegistry()
			orchestrator := engine.NewOrchestrator(persistence, dispatcher, eventBus, cancels, logger, workerID)

			tracer, err := otelhelper.NewTracer(ctx, "terrawatch-worker")
			if err != nil {
				logger.WarnContext(ctx, "Tracing disabled", "error", err)
			}

			manager := workers.NewManager(workerID, orchestrator, cancels, eventBus, tracer, logger)

			if err := manager.Start(ctx); err != nil {
				logger.ErrorContext(ctx, "Failed to start worker", "error", err)
			}

			return nil
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
