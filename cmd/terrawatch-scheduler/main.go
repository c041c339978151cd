// Package main provides the Terrawatch scheduler, the process that fires due
// schedules and cleans up old runs.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	redis "github.com/redis/go-redis/v9"
	cli "github.com/urfave/cli/v3"

	"github.com/terrawatch/terrawatch/pkg/cmd"
	"github.com/terrawatch/terrawatch/pkg/log"
	"github.com/terrawatch/terrawatch/pkg/rules"
	"github.com/terrawatch/terrawatch/pkg/scheduler"
	"github.com/terrawatch/terrawatch/pkg/services"
)

func main() {
	logger := log.WithModule("terrawatch-scheduler")

	command := &cli.Command{
		Name:                  "terrawatch-scheduler",
		Usage:                 "Fire due schedules and clean up old runs",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
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
				Name:    "redis-url",
				Usage:   "Redis URL for distributed schedule locks (single-process locks if unset)",
				Sources: cli.EnvVars("REDIS_URL"),
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

			logger.InfoContext(ctx, "Initializing Terrawatch Scheduler")

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

			var locker scheduler.Locker = scheduler.NewLocalLocker()

			if redisURL := command.String("redis-url"); redisURL != "" {
				opts, err := redis.ParseURL(redisURL)
				if err != nil {
					return fmt.Errorf("invalid redis URL: %w", err)
				}

				locker = scheduler.NewRedisLocker(redis.NewClient(opts))
			}

			runs := services.NewRunService(persistence, eventBus, logger)
			sweeper := scheduler.NewSweeper(persistence, runs, locker, logger)

			// The scheduler also hosts the rule engine: platform events
			// arrive on the same bus the run requests leave on.
			ruleEngine := rules.NewEngine(persistence, runs, logger)
			if err := ruleEngine.Bind(eventBus); err != nil {
				return err
			}

			if err := eventBus.Subscribe(ctx); err != nil {
				return err
			}

			if err := sweeper.Start(ctx); err != nil {
				return err
			}

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

			select {
			case <-sigChan:
			case <-ctx.Done():
			}

			logger.InfoContext(ctx, "Shutting down scheduler...")

			return sweeper.Stop(ctx)
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
