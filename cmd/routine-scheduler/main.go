package main

import (
	"context"
	"os"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	cli "github.com/urfave/cli/v3"

	"github.com/routinehq/routine/pkg/cmd"
	"github.com/routinehq/routine/pkg/engine"
	"github.com/routinehq/routine/pkg/log"
	"github.com/routinehq/routine/pkg/sources/redisqueue"
	"github.com/routinehq/routine/pkg/trigger"
)

func main() {
	command := &cli.Command{
		Name:                  "routine-scheduler",
		Usage:                 "Fire schedule triggers and dispatch external events",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "scheduler-id",
				Aliases: []string{"id"},
				Usage:   "Custom scheduler ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("SCHEDULER_ID"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Persistence URL (postgres://, file:// or memory://)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:     "event-bus",
				Usage:    "Event bus provider for run requests (kafka or channel)",
				Required: true,
				Sources:  cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.DurationFlag{
				Name:    "tick-interval",
				Usage:   "How often due schedules are checked",
				Value:   trigger.DefaultTickInterval,
				Sources: cli.EnvVars("TICK_INTERVAL"),
			},
			&cli.DurationFlag{
				Name:    "resync-interval",
				Usage:   "How often trigger registrations are reloaded from the store",
				Value:   trigger.DefaultResyncInterval,
				Sources: cli.EnvVars("RESYNC_INTERVAL"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for the external trigger event queue (disabled if empty)",
				Value:   "",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "redis-queue",
				Usage:   "Redis list key to consume trigger events from",
				Value:   "",
				Sources: cli.EnvVars("REDIS_QUEUE"),
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

			schedulerID := command.String("scheduler-id")
			if schedulerID == "" {
				schedulerID = "scheduler-" + uuid.New().String()[:8]
			}

			logger := log.WithModule("routine-scheduler").With("scheduler_id", schedulerID)

			logger.InfoContext(ctx, "Initializing Routine Scheduler")

			eventBus, err := cmd.NewEventBus(command.String("event-bus"), "routine-scheduler", logger)
			if err != nil {
				return err
			}

			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			externalBus, err := cmd.NewExternalEventBus(command.String("event-bus"), "routine-scheduler", logger)
			if err != nil {
				return err
			}

			defer func() {
				if err := externalBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close external event bus", "error", err)
				}
			}()

			store, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				if err := store.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			registry, err := cmd.NewConnectorRegistry(logger)
			if err != nil {
				return err
			}

			eng := engine.New(store, registry, registry, nil, eventBus, logger)
			manager := trigger.NewManager(logger)
			activator := trigger.NewActivator(store, eng, manager, logger)

			var source *redisqueue.Source

			if redisURL := command.String("redis-url"); redisURL != "" {
				opts, err := redis.ParseURL(redisURL)
				if err != nil {
					return err
				}

				client := redis.NewClient(opts)

				defer func() {
					if err := client.Close(); err != nil {
						logger.ErrorContext(ctx, "Failed to close redis client", "error", err)
					}
				}()

				source, err = redisqueue.New(client, command.String("redis-queue"), manager, logger)
				if err != nil {
					return err
				}
			}

			scheduler := NewScheduler(
				schedulerID,
				activator,
				source,
				externalBus,
				command.Duration("tick-interval"),
				command.Duration("resync-interval"),
				logger,
			)

			return scheduler.Start(ctx)
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
