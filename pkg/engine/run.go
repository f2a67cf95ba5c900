package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/routinehq/routine/pkg/checkpoint"
	"github.com/routinehq/routine/pkg/events"
	"github.com/routinehq/routine/pkg/models"
	"github.com/routinehq/routine/pkg/persistence"
	"github.com/routinehq/routine/pkg/planner"
	"github.com/routinehq/routine/pkg/template"
)

const summaryLimit = 120

// RunParams describes one requested run.
type RunParams struct {
	UserID      string
	WorkflowID  string
	TriggerType models.TriggerType
	TriggerData map[string]any
	Attempt     int
}

// RunWorkflowByID executes a workflow synchronously: a branch-following walk
// from the plan entry step, appending a step result per executed step. The
// run ends completed, failed, cancelled, or paused awaiting review. The
// returned execution reflects the final state; run failures are recorded on
// it, not returned as errors.
func (e *Engine) RunWorkflowByID(ctx context.Context, params RunParams) (*models.Execution, error) {
	const op = "RunWorkflowByID"

	if params.UserID == "" {
		return nil, opError(op, ErrEmptyUserID)
	}

	lock := e.workflowLock(params.WorkflowID)
	lock.Lock()
	defer lock.Unlock()

	workflow, err := e.store.WorkflowRepository().GetByID(ctx, params.WorkflowID)
	if err != nil {
		return nil, opError(op, err)
	}

	if workflow == nil {
		return nil, opError(op, fmt.Errorf("%w: %s", ErrWorkflowNotFound, params.WorkflowID))
	}

	if !workflow.Runnable() {
		return nil, opError(op, fmt.Errorf("%w: %s", ErrWorkflowArchived, workflow.ID))
	}

	graph := planner.EnsurePlanGraph(workflow)

	if err := planner.Validate(workflow); err != nil {
		return nil, opError(op, err)
	}

	if params.TriggerType == "" {
		params.TriggerType = models.TriggerTypeManual
	}

	execution := e.newExecution(workflow, params)

	if err := e.store.ExecutionRepository().Save(ctx, execution); err != nil {
		return nil, opError(op, err)
	}

	e.publish(ctx, workflow.ID, events.RunStarted{
		BaseEvent:   events.NewBaseEvent(events.RunStartedEvent, workflow.ID),
		ExecutionID: execution.ID,
		UserID:      execution.UserID,
		TriggerType: execution.TriggerType,
		Attempt:     execution.Attempt,
	})

	e.logger.InfoContext(ctx, "Run started",
		"workflow_id", workflow.ID, "execution_id", execution.ID, "trigger_type", execution.TriggerType)

	if err := e.walk(ctx, workflow, execution, workflow.FindStep(graph.EntryStepID)); err != nil {
		return nil, opError(op, err)
	}

	return execution, nil
}

// RunStepByID executes a single step in isolation, producing an execution
// with exactly one step result. Checkpoint steps are refused: a pause point
// has nothing to gate outside a full run.
func (e *Engine) RunStepByID(ctx context.Context, userID, workflowID, stepID string) (*models.Execution, error) {
	const op = "RunStepByID"

	if userID == "" {
		return nil, opError(op, ErrEmptyUserID)
	}

	lock := e.workflowLock(workflowID)
	lock.Lock()
	defer lock.Unlock()

	workflow, err := e.store.WorkflowRepository().GetByID(ctx, workflowID)
	if err != nil {
		return nil, opError(op, err)
	}

	if workflow == nil {
		return nil, opError(op, fmt.Errorf("%w: %s", ErrWorkflowNotFound, workflowID))
	}

	if !workflow.Runnable() {
		return nil, opError(op, fmt.Errorf("%w: %s", ErrWorkflowArchived, workflow.ID))
	}

	step := workflow.FindStep(stepID)
	if step == nil {
		return nil, opError(op, fmt.Errorf("%w: %s in workflow %s", ErrStepNotFound, stepID, workflowID))
	}

	if step.Kind == models.StepKindCheckpoint {
		return nil, opError(op, fmt.Errorf("%w: %s", ErrCheckpointStepInIsolation, stepID))
	}

	execution := e.newExecution(workflow, RunParams{
		UserID:      userID,
		WorkflowID:  workflowID,
		TriggerType: models.TriggerTypeManual,
	})

	if err := e.store.ExecutionRepository().Save(ctx, execution); err != nil {
		return nil, opError(op, err)
	}

	e.logger.InfoContext(ctx, "Single step run started",
		"workflow_id", workflow.ID, "execution_id", execution.ID, "step_id", stepID)

	result, requiresApproval := e.executeStep(ctx, execution, step)
	execution.AppendResult(result)

	if result.Status == models.StepResultStatusSucceeded {
		execution.Context.RecordOutput(step.ID, contextEntry(result))
	}

	if err := e.store.ExecutionRepository().Save(ctx, execution); err != nil {
		return nil, opError(op, err)
	}

	if requiresApproval {
		if err := e.pauseForApproval(ctx, workflow, execution, step); err != nil {
			return nil, opError(op, err)
		}

		return execution, nil
	}

	status := models.ExecutionStatusCompleted
	message := ""

	if result.Status == models.StepResultStatusFailed {
		status = models.ExecutionStatusFailed
		message = fmt.Sprintf("step %s failed: %s", step.ID, result.ErrorMessage)
	}

	if err := e.finalizeRun(ctx, workflow, execution, status, message); err != nil {
		return nil, opError(op, err)
	}

	return execution, nil
}

// ResolveCheckpoint applies a reviewer decision to a pending checkpoint
// request. Approve resumes the run after the checkpoint with the captured
// context, edit substitutes the gated action before resuming, reject
// finalizes the execution failed. A request resolves exactly once; a second
// resolution is a conflict.
func (e *Engine) ResolveCheckpoint(ctx context.Context, userID, requestID string, resolution checkpoint.Resolution) (*models.Execution, error) {
	const op = "ResolveCheckpoint"

	if userID == "" {
		return nil, opError(op, ErrEmptyUserID)
	}

	request, err := e.checkpoints.Get(ctx, requestID)
	if err != nil {
		return nil, opError(op, err)
	}

	if request == nil {
		return nil, opError(op, fmt.Errorf("%w: %s", persistence.ErrCheckpointNotFound, requestID))
	}

	lock := e.workflowLock(request.WorkflowID)
	lock.Lock()
	defer lock.Unlock()

	workflow, err := e.store.WorkflowRepository().GetByID(ctx, request.WorkflowID)
	if err != nil {
		return nil, opError(op, err)
	}

	if workflow == nil {
		return nil, opError(op, fmt.Errorf("%w: %s", ErrWorkflowNotFound, request.WorkflowID))
	}

	execution, err := e.store.ExecutionRepository().GetByID(ctx, request.ExecutionID)
	if err != nil {
		return nil, opError(op, err)
	}

	if execution == nil {
		return nil, opError(op, fmt.Errorf("%w: %s", ErrExecutionNotFound, request.ExecutionID))
	}

	// Pre-checks run before the atomic resolve so the request stays pending
	// when the run can no longer act on the decision.
	if execution.Status.Terminal() {
		return nil, opError(op, fmt.Errorf("%w: execution %s is %s", ErrExecutionNotResumable, execution.ID, execution.Status))
	}

	if resolution.Decision != models.DecisionReject && !workflow.Runnable() {
		return nil, opError(op, fmt.Errorf("%w: %s", ErrWorkflowArchived, workflow.ID))
	}

	resolution.ResolvedBy = userID

	resolved, err := e.checkpoints.Resolve(ctx, requestID, resolution)
	if err != nil {
		return nil, opError(op, err)
	}

	e.publish(ctx, workflow.ID, events.CheckpointResolved{
		BaseEvent:    events.NewBaseEvent(events.CheckpointResolvedEvent, workflow.ID),
		CheckpointID: resolved.ID,
		ExecutionID:  execution.ID,
		Decision:     resolved.Decision,
		ResolvedBy:   userID,
	})

	if resolved.Decision == models.DecisionReject {
		message := "checkpoint rejected"
		if resolved.RejectionReason != "" {
			message = fmt.Sprintf("checkpoint rejected: %s", resolved.RejectionReason)
		}

		if err := e.finalizeRun(ctx, workflow, execution, models.ExecutionStatusFailed, message); err != nil {
			return nil, opError(op, err)
		}

		return execution, nil
	}

	if resolved.Context != nil {
		execution.Context = resolved.Context
	}

	execution.Status = models.ExecutionStatusRunning

	if err := e.store.ExecutionRepository().Save(ctx, execution); err != nil {
		return nil, opError(op, err)
	}

	e.publish(ctx, workflow.ID, events.RunResumed{
		BaseEvent:   events.NewBaseEvent(events.RunResumedEvent, workflow.ID),
		ExecutionID: execution.ID,
		ResolvedBy:  userID,
		Decision:    resolved.Decision,
	})

	e.logger.InfoContext(ctx, "Run resumed",
		"workflow_id", workflow.ID, "execution_id", execution.ID, "decision", resolved.Decision)

	next, err := planner.NextStep(workflow, resolved.StepID, execution.Context)
	if err != nil {
		if err := e.finalizeRun(ctx, workflow, execution, models.ExecutionStatusFailed,
			fmt.Sprintf("branch selection after step %s failed: %v", resolved.StepID, err)); err != nil {
			return nil, opError(op, err)
		}

		return execution, nil
	}

	if resolved.Decision == models.DecisionEdit {
		next = editedStep(next, resolved.EditedAction)
	}

	if err := e.walk(ctx, workflow, execution, next); err != nil {
		return nil, opError(op, err)
	}

	if execution.Status == models.ExecutionStatusCompleted {
		e.notify(ctx, &models.Notification{
			UserID:      execution.UserID,
			Kind:        models.NotificationRunCompleted,
			Title:       fmt.Sprintf("Workflow %q completed", workflow.Name),
			Body:        fmt.Sprintf("The run resumed after review and finished %d steps.", len(execution.StepResults)),
			WorkflowID:  workflow.ID,
			ExecutionID: execution.ID,
		})
	}

	return execution, nil
}

func (e *Engine) newExecution(workflow *models.Workflow, params RunParams) *models.Execution {
	id := newID("exec")

	attempt := params.Attempt
	if attempt <= 0 {
		attempt = 1
	}

	return &models.Execution{
		ID:          id,
		WorkflowID:  workflow.ID,
		UserID:      params.UserID,
		TriggerType: params.TriggerType,
		Status:      models.ExecutionStatusRunning,
		Attempt:     attempt,
		StartedAt:   time.Now().UTC(),
		Context: &models.RunContext{
			WorkflowID:  workflow.ID,
			ExecutionID: id,
			UserID:      params.UserID,
			TriggerType: params.TriggerType,
			TriggerData: params.TriggerData,
			StepOutputs: make(map[string]any),
		},
	}
}

// walk executes steps from step onward until the plan completes, a step
// fails, the run pauses, or the context is cancelled. Step boundaries are
// the only preemption points; an in-flight connector call is never aborted.
func (e *Engine) walk(ctx context.Context, workflow *models.Workflow, execution *models.Execution, step *models.Step) error {
	for step != nil {
		if err := ctx.Err(); err != nil {
			return e.finalizeRun(context.WithoutCancel(ctx), workflow, execution,
				models.ExecutionStatusCancelled, fmt.Sprintf("run cancelled: %v", err))
		}

		if step.Kind == models.StepKindCheckpoint {
			return e.pauseAtCheckpoint(ctx, workflow, execution, step)
		}

		result, requiresApproval := e.executeStep(ctx, execution, step)
		execution.AppendResult(result)

		if result.Status == models.StepResultStatusSucceeded {
			execution.Context.RecordOutput(step.ID, contextEntry(result))
		}

		if err := e.store.ExecutionRepository().Save(ctx, execution); err != nil {
			return fmt.Errorf("failed to save execution: %w", err)
		}

		if requiresApproval {
			return e.pauseForApproval(ctx, workflow, execution, step)
		}

		if result.Status == models.StepResultStatusFailed {
			return e.finalizeRun(ctx, workflow, execution, models.ExecutionStatusFailed,
				fmt.Sprintf("step %s failed: %s", step.ID, result.ErrorMessage))
		}

		next, err := planner.NextStep(workflow, step.ID, execution.Context)
		if err != nil {
			return e.finalizeRun(ctx, workflow, execution, models.ExecutionStatusFailed,
				fmt.Sprintf("branch selection after step %s failed: %v", step.ID, err))
		}

		step = next
	}

	return e.finalizeRun(ctx, workflow, execution, models.ExecutionStatusCompleted, "")
}

// executeStep runs one non-checkpoint step and returns its result plus
// whether the connector demanded approval. Failures are recorded on the
// result, never returned as errors.
func (e *Engine) executeStep(ctx context.Context, execution *models.Execution, step *models.Step) (models.StepResult, bool) {
	result := models.StepResult{
		StepID:    step.ID,
		Title:     step.Title,
		StartedAt: time.Now().UTC(),
	}

	var resolved any

	if step.InputTemplate != "" {
		rendered, err := template.RenderWithContext(step.InputTemplate, execution.Context)
		if err != nil {
			result.Status = models.StepResultStatusFailed
			result.ErrorMessage = fmt.Sprintf("failed to resolve input template: %v", err)
			result.FinishedAt = time.Now().UTC()

			return result, false
		}

		resolved = rendered
		result.ResolvedInput = stringify(rendered)
	}

	switch step.Kind {
	case models.StepKindConnectorAction:
		return e.invokeAction(ctx, execution, step, resolved, result)
	case models.StepKindTransform:
		if step.ActionID != "" {
			return e.invokeAction(ctx, execution, step, resolved, result)
		}

		return transformResult(resolved, result), false
	case models.StepKindArtifact:
		return e.storeArtifact(ctx, execution, step, resolved, result), false
	default:
		result.Status = models.StepResultStatusFailed
		result.ErrorMessage = fmt.Sprintf("%v: %q", ErrUnknownStepKind, step.Kind)
		result.FinishedAt = time.Now().UTC()

		return result, false
	}
}

// invokeAction calls the connector boundary. An invocation error (unknown
// action, payload rejected by schema) and a connector-reported failure both
// fail the step; RequiresApproval pauses instead.
func (e *Engine) invokeAction(ctx context.Context, execution *models.Execution, step *models.Step, resolved any, result models.StepResult) (models.StepResult, bool) {
	res, err := e.invoker.Invoke(ctx, step.ActionID, payloadMap(resolved), execution.UserID)
	result.FinishedAt = time.Now().UTC()

	if err != nil {
		result.Status = models.StepResultStatusFailed
		result.ErrorMessage = err.Error()

		return result, false
	}

	result.Summary = res.Summary
	result.Output = res.Data

	if res.RequiresApproval {
		result.Status = models.StepResultStatusPaused
		if result.Summary == "" {
			result.Summary = "Awaiting approval"
		}

		return result, true
	}

	if !res.OK {
		result.Status = models.StepResultStatusFailed
		result.ErrorMessage = res.ErrorMessage

		return result, false
	}

	result.Status = models.StepResultStatusSucceeded

	return result, false
}

// transformResult records a pure template render. A rendered map becomes the
// step output directly so branch conditions can address its fields.
func transformResult(resolved any, result models.StepResult) models.StepResult {
	result.Status = models.StepResultStatusSucceeded
	result.FinishedAt = time.Now().UTC()

	switch output := resolved.(type) {
	case map[string]any:
		result.Output = output
		result.Summary = stringify(output)
	case nil:
		result.Output = map[string]any{}
		result.Summary = "Nothing to transform"
	default:
		result.Output = map[string]any{"result": resolved}
		result.Summary = stringify(resolved)
	}

	return result
}

// storeArtifact persists the rendered input as a durable artifact. An empty
// template stores the latest step output.
func (e *Engine) storeArtifact(ctx context.Context, execution *models.Execution, step *models.Step, resolved any, result models.StepResult) models.StepResult {
	if resolved == nil && execution.Context != nil {
		resolved = execution.Context.Current
	}

	content, contentType, err := encodeArtifact(resolved)
	if err != nil {
		result.Status = models.StepResultStatusFailed
		result.ErrorMessage = fmt.Sprintf("failed to encode artifact: %v", err)
		result.FinishedAt = time.Now().UTC()

		return result
	}

	name := step.Title
	if name == "" {
		name = step.ID
	}

	artifact := &models.Artifact{
		ID:          newID("art"),
		UserID:      execution.UserID,
		WorkflowID:  execution.WorkflowID,
		ExecutionID: execution.ID,
		StepID:      step.ID,
		Name:        name,
		ContentType: contentType,
		Content:     content,
		CreatedAt:   time.Now().UTC(),
	}

	if err := e.store.ArtifactRepository().Save(ctx, artifact); err != nil {
		result.Status = models.StepResultStatusFailed
		result.ErrorMessage = fmt.Sprintf("failed to store artifact: %v", err)
		result.FinishedAt = time.Now().UTC()

		return result
	}

	result.Status = models.StepResultStatusSucceeded
	result.Summary = fmt.Sprintf("Stored artifact %q (%d bytes)", name, len(content))
	result.Output = map[string]any{
		"artifact_id":  artifact.ID,
		"name":         name,
		"content_type": contentType,
		"size_bytes":   len(content),
	}
	result.FinishedAt = time.Now().UTC()

	return result
}

// pauseAtCheckpoint snapshots the run into a checkpoint request and suspends
// the execution. The snapshot is taken before the paused marker result so
// reviewers see exactly the completed work.
func (e *Engine) pauseAtCheckpoint(ctx context.Context, workflow *models.Workflow, execution *models.Execution, step *models.Step) error {
	next, err := planner.NextStep(workflow, step.ID, execution.Context)
	if err != nil {
		return e.finalizeRun(ctx, workflow, execution, models.ExecutionStatusFailed,
			fmt.Sprintf("branch selection after step %s failed: %v", step.ID, err))
	}

	request, err := e.checkpoints.Create(ctx, checkpoint.CreateParams{
		UserID:    execution.UserID,
		Workflow:  workflow,
		Execution: execution,
		Step:      step,
		NextStep:  next,
	})
	if err != nil {
		return fmt.Errorf("failed to create checkpoint request: %w", err)
	}

	now := time.Now().UTC()
	execution.AppendResult(models.StepResult{
		StepID:     step.ID,
		Title:      step.Title,
		Status:     models.StepResultStatusPaused,
		Summary:    "Paused for review",
		StartedAt:  now,
		FinishedAt: now,
	})
	execution.Pause(models.ExecutionStatusCheckpointRequired)

	if err := e.store.ExecutionRepository().Save(ctx, execution); err != nil {
		return fmt.Errorf("failed to save execution: %w", err)
	}

	e.notify(ctx, &models.Notification{
		UserID:      execution.UserID,
		Kind:        models.NotificationCheckpointPending,
		Title:       fmt.Sprintf("Workflow %q is waiting for review", workflow.Name),
		Body:        request.RiskSummary,
		WorkflowID:  workflow.ID,
		ExecutionID: execution.ID,
	})

	e.publish(ctx, workflow.ID, events.CheckpointCreated{
		BaseEvent:    events.NewBaseEvent(events.CheckpointCreatedEvent, workflow.ID),
		CheckpointID: request.ID,
		ExecutionID:  execution.ID,
		UserID:       execution.UserID,
		StepID:       step.ID,
		RiskLevel:    request.RiskLevel,
	})
	e.publish(ctx, workflow.ID, events.RunPaused{
		BaseEvent:    events.NewBaseEvent(events.RunPausedEvent, workflow.ID),
		ExecutionID:  execution.ID,
		UserID:       execution.UserID,
		Status:       execution.Status,
		StepID:       step.ID,
		CheckpointID: request.ID,
	})

	e.logger.InfoContext(ctx, "Run paused at checkpoint",
		"workflow_id", workflow.ID, "execution_id", execution.ID,
		"checkpoint_id", request.ID, "risk_level", request.RiskLevel)

	return nil
}

// pauseForApproval suspends the execution after a connector demanded
// approval for the step it just refused to complete.
func (e *Engine) pauseForApproval(ctx context.Context, workflow *models.Workflow, execution *models.Execution, step *models.Step) error {
	execution.Pause(models.ExecutionStatusApprovalRequired)

	if err := e.store.ExecutionRepository().Save(ctx, execution); err != nil {
		return fmt.Errorf("failed to save execution: %w", err)
	}

	e.notify(ctx, &models.Notification{
		UserID:      execution.UserID,
		Kind:        models.NotificationApprovalRequired,
		Title:       fmt.Sprintf("Workflow %q needs approval", workflow.Name),
		Body:        fmt.Sprintf("Step %q requires approval before the run can continue.", step.Title),
		WorkflowID:  workflow.ID,
		ExecutionID: execution.ID,
	})

	e.publish(ctx, workflow.ID, events.RunPaused{
		BaseEvent:   events.NewBaseEvent(events.RunPausedEvent, workflow.ID),
		ExecutionID: execution.ID,
		UserID:      execution.UserID,
		Status:      execution.Status,
		StepID:      step.ID,
	})

	e.logger.InfoContext(ctx, "Run paused for approval",
		"workflow_id", workflow.ID, "execution_id", execution.ID, "step_id", step.ID)

	return nil
}

// finalizeRun stamps a terminal status, persists the execution, and emits
// the matching lifecycle event. Failures also notify the owner.
func (e *Engine) finalizeRun(ctx context.Context, workflow *models.Workflow, execution *models.Execution, status models.ExecutionStatus, errorMessage string) error {
	execution.ErrorMessage = errorMessage
	execution.Finalize(status, time.Now().UTC())

	if err := e.store.ExecutionRepository().Save(ctx, execution); err != nil {
		return fmt.Errorf("failed to save execution: %w", err)
	}

	switch status {
	case models.ExecutionStatusCompleted:
		e.publish(ctx, workflow.ID, events.RunCompleted{
			BaseEvent:     events.NewBaseEvent(events.RunCompletedEvent, workflow.ID),
			ExecutionID:   execution.ID,
			UserID:        execution.UserID,
			StepsExecuted: len(execution.StepResults),
			DurationMs:    execution.DurationMs,
		})
	case models.ExecutionStatusFailed:
		e.publish(ctx, workflow.ID, events.RunFailed{
			BaseEvent:   events.NewBaseEvent(events.RunFailedEvent, workflow.ID),
			ExecutionID: execution.ID,
			UserID:      execution.UserID,
			Error:       errorMessage,
			Attempt:     execution.Attempt,
		})
		e.notify(ctx, &models.Notification{
			UserID:      execution.UserID,
			Kind:        models.NotificationRunFailed,
			Title:       fmt.Sprintf("Workflow %q failed", workflow.Name),
			Body:        errorMessage,
			WorkflowID:  workflow.ID,
			ExecutionID: execution.ID,
		})
	case models.ExecutionStatusCancelled:
		e.publish(ctx, workflow.ID, events.RunCancelled{
			BaseEvent:   events.NewBaseEvent(events.RunCancelledEvent, workflow.ID),
			ExecutionID: execution.ID,
			Reason:      errorMessage,
		})
	}

	e.logger.InfoContext(ctx, "Run finished",
		"workflow_id", workflow.ID, "execution_id", execution.ID,
		"status", execution.Status, "steps", len(execution.StepResults))

	return nil
}

// editedStep builds the substitute step an edit decision runs in place of
// the gated one. It keeps the original id and kind so branch selection after
// it still works; without a gated step the edit runs as a one-off action.
func editedStep(next *models.Step, edited *models.ProposedAction) *models.Step {
	step := &models.Step{
		ID:            newID("step"),
		Kind:          models.StepKindConnectorAction,
		Title:         edited.Title,
		Description:   edited.Description,
		ActionID:      edited.ActionID,
		InputTemplate: edited.InputTemplate,
	}

	if next != nil {
		step.ID = next.ID
		step.Kind = next.Kind

		if step.Title == "" {
			step.Title = next.Title
		}
	}

	return step
}

func contextEntry(result models.StepResult) map[string]any {
	return map[string]any{
		"summary": result.Summary,
		"output":  result.Output,
	}
}

func payloadMap(resolved any) map[string]any {
	switch value := resolved.(type) {
	case nil:
		return map[string]any{}
	case map[string]any:
		return value
	default:
		return map[string]any{"value": value}
	}
}

func stringify(value any) string {
	var text string

	switch v := value.(type) {
	case string:
		text = v
	default:
		if data, err := json.Marshal(v); err == nil {
			text = string(data)
		} else {
			text = fmt.Sprintf("%v", v)
		}
	}

	runes := []rune(text)
	if len(runes) > summaryLimit {
		text = string(runes[:summaryLimit-3]) + "..."
	}

	return text
}

func encodeArtifact(value any) ([]byte, string, error) {
	switch v := value.(type) {
	case nil:
		return []byte{}, "text/plain", nil
	case string:
		return []byte(v), "text/plain", nil
	case []byte:
		return v, "application/octet-stream", nil
	default:
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return nil, "", err
		}

		return data, "application/json", nil
	}
}
