// Package main provides the combined Routine daemon: API, scheduler and
// worker in a single process sharing one store, one engine and an in-process
// event bus. It is the simplest way to run the whole system; the standalone
// daemons cover split deployments.
package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	cli "github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/routinehq/routine/pkg/cmd"
	"github.com/routinehq/routine/pkg/compiler"
	"github.com/routinehq/routine/pkg/engine"
	"github.com/routinehq/routine/pkg/log"
	"github.com/routinehq/routine/pkg/runner"
	"github.com/routinehq/routine/pkg/sources/redisqueue"
	"github.com/routinehq/routine/pkg/trigger"
	"github.com/routinehq/routine/pkg/web"
)

const defaultPort = 8080

func main() {
	command := &cli.Command{
		Name:                  "routine",
		Usage:                 "Run the Routine API, scheduler and worker in one process",
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
				Name:    "database-url",
				Usage:   "Persistence URL (postgres://, file:// or memory://)",
				Value:   "memory://",
				Sources: cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "worker-id",
				Usage:   "Custom worker ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("WORKER_ID"),
			},
			&cli.IntFlag{
				Name:    "max-attempts",
				Usage:   "Attempts per run request before it goes to the dead letter queue",
				Value:   runner.DefaultMaxAttempts,
				Sources: cli.EnvVars("MAX_ATTEMPTS"),
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
		Action: run,
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}

func run(ctx context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"))

	rootLogger := log.WithModule("routine")

	rootLogger.InfoContext(ctx, "Initializing Routine")

	store, err := cmd.NewPersistence(ctx, rootLogger, command.String("database-url"))
	if err != nil {
		return err
	}

	defer func() {
		if err := store.Close(ctx); err != nil {
			rootLogger.ErrorContext(ctx, "Failed to close persistence", "error", err)
		}
	}()

	// One process means the in-process channel bus: every run request the
	// API or scheduler publishes lands on the worker goroutines below.
	eventBus, err := cmd.NewEventBus("channel", "routine", rootLogger)
	if err != nil {
		return err
	}

	defer func() {
		if err := eventBus.Close(); err != nil {
			rootLogger.ErrorContext(ctx, "Failed to close event bus", "error", err)
		}
	}()

	registry, err := cmd.NewConnectorRegistry(rootLogger)
	if err != nil {
		return err
	}

	// All three roles share this engine, so per-workflow serialization
	// holds across API saves and worker runs.
	eng := engine.New(
		store,
		registry,
		registry,
		compiler.NewStatic(rootLogger),
		eventBus,
		rootLogger,
	)

	handlers := web.NewAPIHandlers(eng, validator.New(validator.WithRequiredStructEnabled()))

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	web.RegisterRoutes(app, handlers)

	manager := trigger.NewManager(rootLogger)
	activator := trigger.NewActivator(store, eng, manager, rootLogger)

	workerID := command.String("worker-id")
	if workerID == "" {
		workerID = "worker-" + uuid.New().String()[:8]
	}

	worker := runner.New(eng, eventBus, workerID, command.Int("max-attempts"), 0, rootLogger)

	var source *redisqueue.Source

	if redisURL := command.String("redis-url"); redisURL != "" {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			return err
		}

		client := redis.NewClient(opts)

		defer func() {
			if err := client.Close(); err != nil {
				rootLogger.ErrorContext(ctx, "Failed to close redis client", "error", err)
			}
		}()

		source, err = redisqueue.New(client, command.String("redis-queue"), manager, rootLogger)
		if err != nil {
			return err
		}
	}

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(runCtx)

	group.Go(func() error {
		return app.Listen(":" + strconv.Itoa(command.Int("port")))
	})

	group.Go(func() error {
		<-groupCtx.Done()

		rootLogger.Info("Shutting down API server...")

		return app.Shutdown()
	})

	group.Go(func() error {
		return activator.Run(groupCtx, command.Duration("tick-interval"), command.Duration("resync-interval"))
	})

	group.Go(func() error {
		if err := worker.Start(groupCtx); err != nil {
			return err
		}

		<-groupCtx.Done()

		return nil
	})

	if source != nil {
		group.Go(func() error {
			if err := source.Start(groupCtx); err != nil {
				return err
			}

			<-groupCtx.Done()

			return source.Stop(context.WithoutCancel(groupCtx))
		})
	}

	rootLogger.InfoContext(ctx, "Routine started", "port", command.Int("port"), "worker_id", workerID)

	return group.Wait()
}
