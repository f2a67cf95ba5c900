// Package runner executes workflow runs off the caller path. It retries a
// failing run as a whole, bounded by a maximum-attempts policy, and pushes
// what still fails onto the dead letter queue. A run that pauses for review
// is a success from the runner's point of view.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/routinehq/routine/pkg/dlq"
	"github.com/routinehq/routine/pkg/engine"
	"github.com/routinehq/routine/pkg/eventbus"
	"github.com/routinehq/routine/pkg/events"
	"github.com/routinehq/routine/pkg/models"
	"github.com/routinehq/routine/pkg/otelhelper"
)

const (
	// DefaultMaxAttempts bounds whole-workflow retries.
	DefaultMaxAttempts = 3
	// DefaultRetryDelay is the base backoff between attempts; attempt n
	// waits n times this long.
	DefaultRetryDelay = 2 * time.Second

	heartbeatInterval = 5 * time.Second
)

// Heartbeat is invoked periodically while a background run is in flight so a
// caller can render liveness without polling the execution record.
type Heartbeat func(now time.Time)

// Runner drives background executions. In worker mode it consumes
// run.requested events from the bus; Run can also be called directly.
type Runner struct {
	engine      *engine.Engine
	eventBus    eventbus.EventBus
	workerID    string
	maxAttempts int
	retryDelay  time.Duration
	tracer      trace.Tracer
	logger      *slog.Logger
}

// New creates a background runner. The event bus may be nil when the runner
// is only used directly. Non-positive maxAttempts and retryDelay fall back
// to the defaults.
func New(
	eng *engine.Engine,
	eventBus eventbus.EventBus,
	workerID string,
	maxAttempts int,
	retryDelay time.Duration,
	logger *slog.Logger,
) *Runner {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	if retryDelay <= 0 {
		retryDelay = DefaultRetryDelay
	}

	return &Runner{
		engine:      eng,
		eventBus:    eventBus,
		workerID:    workerID,
		maxAttempts: maxAttempts,
		retryDelay:  retryDelay,
		tracer:      otel.Tracer("routine/runner"),
		logger:      logger.With("module", "runner", "worker_id", workerID),
	}
}

// Start subscribes the runner to run.requested events. It returns once the
// subscription is established; handling runs on the bus's goroutines until
// the context ends.
func (r *Runner) Start(ctx context.Context) error {
	if r.eventBus == nil {
		return fmt.Errorf("runner %s has no event bus to consume from", r.workerID)
	}

	if err := r.eventBus.Handle(events.RunRequestedEvent, r.handleRunRequested); err != nil {
		return err
	}

	if err := r.eventBus.Subscribe(ctx); err != nil {
		return err
	}

	r.logger.InfoContext(ctx, "Runner consuming run requests")

	return nil
}

func (r *Runner) handleRunRequested(ctx context.Context, event any) error {
	requested, ok := event.(*events.RunRequested)
	if !ok {
		r.logger.ErrorContext(ctx, "Unexpected event payload for run.requested")

		return nil
	}

	ctx, span := otelhelper.StartSpan(ctx, r.tracer, "runner.handle_run_request",
		attribute.String(otelhelper.WorkflowIDKey, requested.WorkflowID),
		attribute.String(otelhelper.TriggerTypeKey, string(requested.TriggerType)),
		attribute.String(otelhelper.EventIDKey, requested.ID),
		attribute.String(otelhelper.WorkerIDKey, r.workerID),
	)
	defer span.End()

	r.logger.InfoContext(ctx, "Processing run request",
		"workflow_id", requested.WorkflowID,
		"trigger_type", requested.TriggerType,
		"event_id", requested.ID)

	params := engine.RunParams{
		UserID:      requested.UserID,
		WorkflowID:  requested.WorkflowID,
		TriggerType: requested.TriggerType,
		TriggerData: requested.TriggerData,
	}

	maxAttempts := r.maxAttempts
	if requested.MaxAttempts > 0 {
		maxAttempts = requested.MaxAttempts
	}

	_, err := r.run(ctx, params, maxAttempts, nil)
	if err != nil {
		otelhelper.SetError(span, err)

		if engine.IsValidationError(err) || engine.IsNotFoundError(err) || engine.IsConflictError(err) {
			// The request itself is bad; redelivery cannot fix it.
			r.logger.ErrorContext(ctx, "Dropping unrunnable run request",
				"workflow_id", requested.WorkflowID,
				"error", err)

			return nil
		}

		return err
	}

	return nil
}

// Run executes the workflow with retries, heartbeating while in flight. It
// behaves exactly like the synchronous run path: the returned execution is
// the last attempt's record, including pauses at checkpoints or approvals.
// When every attempt ends failed, the run is pushed to the dead letter queue
// before returning.
func (r *Runner) Run(ctx context.Context, params engine.RunParams, onHeartbeat Heartbeat) (*models.Execution, error) {
	return r.run(ctx, params, r.maxAttempts, onHeartbeat)
}

func (r *Runner) run(ctx context.Context, params engine.RunParams, maxAttempts int, onHeartbeat Heartbeat) (*models.Execution, error) {
	stopHeartbeat := r.startHeartbeat(ctx, onHeartbeat)
	defer stopHeartbeat()

	var last *models.Execution

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		params.Attempt = attempt

		attemptCtx, span := otelhelper.StartSpan(ctx, r.tracer, "runner.run_attempt",
			attribute.String(otelhelper.WorkflowIDKey, params.WorkflowID),
			attribute.Int(otelhelper.AttemptKey, attempt),
		)

		execution, err := r.engine.RunWorkflowByID(attemptCtx, params)
		if err != nil {
			otelhelper.SetError(span, err)
			span.End()

			return last, err
		}

		span.SetAttributes(attribute.String(otelhelper.ExecutionIDKey, execution.ID))
		span.End()

		last = execution

		if execution.Status != models.ExecutionStatusFailed {
			return execution, nil
		}

		r.logger.WarnContext(ctx, "Run attempt failed",
			"workflow_id", params.WorkflowID,
			"execution_id", execution.ID,
			"attempt", attempt,
			"will_retry", attempt < maxAttempts)

		if attempt < maxAttempts {
			if err := r.backoff(ctx, attempt); err != nil {
				return last, err
			}
		}
	}

	r.pushDeadLetter(ctx, params, last, maxAttempts)

	return last, nil
}

func (r *Runner) backoff(ctx context.Context, attempt int) error {
	timer := time.NewTimer(r.retryDelay * time.Duration(attempt))
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (r *Runner) pushDeadLetter(ctx context.Context, params engine.RunParams, last *models.Execution, attempts int) {
	push := dlq.PushParams{
		UserID:     params.UserID,
		WorkflowID: params.WorkflowID,
		Attempts:   attempts,
		Reason:     fmt.Sprintf("run failed after %d attempts", attempts),
	}

	if last != nil {
		push.ExecutionID = last.ID

		if last.ErrorMessage != "" {
			push.Reason = last.ErrorMessage
		}
	}

	if workflow, err := r.engine.GetWorkflow(ctx, params.WorkflowID); err == nil {
		push.WorkflowName = workflow.Name
	}

	if _, err := r.engine.DeadLetters().Push(ctx, push); err != nil {
		r.logger.ErrorContext(ctx, "Failed to push run to dead letter queue",
			"workflow_id", params.WorkflowID,
			"error", err)
	}
}

// startHeartbeat beats once immediately, then on an interval until the run
// finishes.
func (r *Runner) startHeartbeat(ctx context.Context, onHeartbeat Heartbeat) func() {
	if onHeartbeat == nil {
		return func() {}
	}

	onHeartbeat(time.Now().UTC())

	done := make(chan struct{})

	go func() {
		ticker := time.NewTicker(heartbeatInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case now := <-ticker.C:
				onHeartbeat(now.UTC())
			}
		}
	}()

	return func() { close(done) }
}
