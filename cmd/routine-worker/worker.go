package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/routinehq/routine/pkg/connector"
	"github.com/routinehq/routine/pkg/engine"
	"github.com/routinehq/routine/pkg/eventbus"
	"github.com/routinehq/routine/pkg/persistence"
	"github.com/routinehq/routine/pkg/runner"
)

// Worker consumes run requests from the event bus and executes them with
// retries, dead-lettering runs that exhaust their attempts.
type Worker struct {
	id     string
	runner *runner.Runner
	logger *slog.Logger
}

func NewWorker(
	id string,
	store persistence.Persistence,
	eventBus eventbus.EventBus,
	registry *connector.Registry,
	maxAttempts int,
	logger *slog.Logger,
) *Worker {
	eng := engine.New(store, registry, registry, nil, eventBus, logger)

	return &Worker{
		id:     id,
		runner: runner.New(eng, eventBus, id, maxAttempts, 0, logger),
		logger: logger.With("module", "routine-worker", "worker_id", id),
	}
}

// Start subscribes the runner and blocks until an interrupt or termination
// signal arrives. Run handling happens on the bus's goroutines.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Starting worker", "worker_id", w.id)

	if err := w.runner.Start(ctx); err != nil {
		return err
	}

	w.logger.InfoContext(ctx, "Worker started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	w.logger.InfoContext(ctx, "Shutting down worker...")

	return nil
}
