// Package engine drives the workflow lifecycle: saving and validating
// definitions, executing runs step by step, pausing at checkpoints and
// resuming them after review. Saves and runs of the same workflow are
// serialized through a per-workflow lock so concurrent mutations cannot
// interleave.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/routinehq/routine/pkg/checkpoint"
	"github.com/routinehq/routine/pkg/compiler"
	"github.com/routinehq/routine/pkg/connector"
	"github.com/routinehq/routine/pkg/dlq"
	"github.com/routinehq/routine/pkg/eventbus"
	"github.com/routinehq/routine/pkg/events"
	"github.com/routinehq/routine/pkg/history"
	"github.com/routinehq/routine/pkg/models"
	"github.com/routinehq/routine/pkg/persistence"
)

type Engine struct {
	store       persistence.Persistence
	invoker     connector.Invoker
	catalog     connector.Catalog
	compiler    compiler.Compiler
	checkpoints *checkpoint.Manager
	history     *history.Service
	deadLetters *dlq.Service
	eventBus    eventbus.EventPublisher
	validate    *validator.Validate
	logger      *slog.Logger
	locks       sync.Map // workflow id -> *sync.Mutex
}

// New wires an engine over the given persistence and connector boundary.
// The catalog, compiler and event bus may be nil: without a catalog action
// ids are not checked at save time, without a compiler CreateFromPrompt
// fails, and without a bus lifecycle events are not published.
func New(
	store persistence.Persistence,
	invoker connector.Invoker,
	catalog connector.Catalog,
	workflowCompiler compiler.Compiler,
	eventBus eventbus.EventPublisher,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		store:       store,
		invoker:     invoker,
		catalog:     catalog,
		compiler:    workflowCompiler,
		checkpoints: checkpoint.NewManager(store.CheckpointRepository(), logger),
		history:     history.NewService(store.ChangeLogRepository(), logger),
		deadLetters: dlq.NewService(store.DeadLetterRepository(), store.NotificationRepository(), eventBus, logger),
		eventBus:    eventBus,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		logger:      logger.With("module", "engine"),
	}
}

// Checkpoints exposes the checkpoint manager for callers that list or
// inspect pending reviews directly.
func (e *Engine) Checkpoints() *checkpoint.Manager {
	return e.checkpoints
}

// DeadLetters exposes the dead letter service so background runners can
// push exhausted runs through the same notification path.
func (e *Engine) DeadLetters() *dlq.Service {
	return e.deadLetters
}

// HealthCheck reports whether the backing store is reachable.
func (e *Engine) HealthCheck(ctx context.Context) error {
	return e.store.HealthCheck(ctx)
}

// workflowLock returns the mutex serializing saves and runs of one workflow.
func (e *Engine) workflowLock(workflowID string) *sync.Mutex {
	lock, _ := e.locks.LoadOrStore(workflowID, &sync.Mutex{})

	return lock.(*sync.Mutex)
}

func newID(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, uuid.New().String()[:8])
}

// publish sends a lifecycle event, logging instead of failing the call path
// when the bus is down.
func (e *Engine) publish(ctx context.Context, workflowID string, event eventbus.Event) {
	if e.eventBus == nil {
		return
	}

	if err := e.eventBus.Publish(ctx, workflowID, event); err != nil {
		e.logger.ErrorContext(ctx, "Failed to publish event",
			"event_type", event.GetType(), "workflow_id", workflowID, "error", err)
	}
}

// notify stores a user notification, logging on failure.
func (e *Engine) notify(ctx context.Context, notification *models.Notification) {
	notification.ID = newID("ntf")
	notification.CreatedAt = time.Now().UTC()

	if err := e.store.NotificationRepository().Save(ctx, notification); err != nil {
		e.logger.ErrorContext(ctx, "Failed to save notification",
			"kind", notification.Kind, "workflow_id", notification.WorkflowID, "error", err)
	}
}

// RequestRun publishes a run.requested event for background execution
// instead of running the workflow inline. The workflow must exist and be
// runnable; the actual run happens on whichever worker consumes the event.
func (e *Engine) RequestRun(ctx context.Context, params RunParams) error {
	const op = "RequestRun"

	if params.UserID == "" {
		return opError(op, ErrEmptyUserID)
	}

	workflow, err := e.store.WorkflowRepository().GetByID(ctx, params.WorkflowID)
	if err != nil {
		return opError(op, err)
	}

	if workflow == nil {
		return opError(op, fmt.Errorf("%w: %s", ErrWorkflowNotFound, params.WorkflowID))
	}

	if !workflow.Runnable() {
		return opError(op, fmt.Errorf("%w: %s", ErrWorkflowArchived, workflow.ID))
	}

	if params.TriggerType == "" {
		params.TriggerType = models.TriggerTypeManual
	}

	event := events.RunRequested{
		BaseEvent:   events.NewBaseEvent(events.RunRequestedEvent, workflow.ID),
		UserID:      params.UserID,
		TriggerType: params.TriggerType,
		TriggerData: params.TriggerData,
	}

	if e.eventBus == nil {
		return opError(op, fmt.Errorf("no event bus configured for background runs"))
	}

	if err := e.eventBus.Publish(ctx, workflow.ID, event); err != nil {
		return opError(op, fmt.Errorf("failed to publish run request: %w", err))
	}

	e.logger.InfoContext(ctx, "Requested background run", "workflow_id", workflow.ID)

	return nil
}
