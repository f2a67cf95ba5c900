package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/routinehq/routine/pkg/events"
	"github.com/routinehq/routine/pkg/models"
	"github.com/routinehq/routine/pkg/planner"
)

// SaveWorkflow validates and persists a workflow definition, deriving the
// plan graph and appending a change history entry. New workflows get a
// generated id; existing ones are replaced wholesale. Archived workflows
// reject further saves.
func (e *Engine) SaveWorkflow(ctx context.Context, userID string, workflow *models.Workflow) (*models.Workflow, error) {
	const op = "SaveWorkflow"

	if workflow == nil {
		return nil, opError(op, ErrWorkflowNil)
	}

	if userID == "" {
		return nil, opError(op, ErrEmptyUserID)
	}

	workflow.UserID = userID

	isNew := workflow.ID == ""
	if isNew {
		workflow.ID = newID("wf")
	}

	lock := e.workflowLock(workflow.ID)
	lock.Lock()
	defer lock.Unlock()

	now := time.Now().UTC()
	changeType := models.ChangeTypeCreated

	if !isNew {
		existing, err := e.store.WorkflowRepository().GetByID(ctx, workflow.ID)
		if err != nil {
			return nil, opError(op, err)
		}

		if existing != nil {
			if existing.Status == models.WorkflowStatusArchived {
				return nil, opError(op, fmt.Errorf("%w: %s", ErrWorkflowArchived, workflow.ID))
			}

			changeType = models.ChangeTypeUpdated
			workflow.CreatedAt = existing.CreatedAt
		}
	}

	if changeType == models.ChangeTypeCreated {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	if err := e.prepare(workflow, now); err != nil {
		return nil, opError(op, err)
	}

	if err := e.store.WorkflowRepository().Save(ctx, workflow); err != nil {
		return nil, opError(op, err)
	}

	entry, err := e.history.Record(ctx, workflow, changeType)
	if err != nil {
		return nil, opError(op, err)
	}

	e.publish(ctx, workflow.ID, events.WorkflowSaved{
		BaseEvent:     events.NewBaseEvent(events.WorkflowSavedEvent, workflow.ID),
		UserID:        userID,
		ChangeType:    changeType,
		ChangeEntryID: entry.ID,
	})

	e.logger.InfoContext(ctx, "Workflow saved",
		"workflow_id", workflow.ID, "change_type", changeType, "steps", len(workflow.Steps))

	return workflow, nil
}

// prepare fills defaults and validates the definition: struct tags, trigger
// spec, plan graph acyclicity, and action ids against the catalog.
func (e *Engine) prepare(workflow *models.Workflow, now time.Time) error {
	if workflow.Status == "" {
		workflow.Status = models.WorkflowStatusDraft
	}

	if workflow.Trigger == nil {
		workflow.Trigger = &models.TriggerSpec{Type: models.TriggerTypeManual, Enabled: true}
	}

	for _, step := range workflow.Steps {
		if step != nil && step.ID == "" {
			step.ID = newID("step")
		}
	}

	if workflow.PlanGraph != nil {
		for _, branch := range workflow.PlanGraph.Branches {
			if branch != nil && branch.ID == "" {
				branch.ID = newID("br")
			}
		}
	}

	if err := e.validate.Struct(workflow); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	if err := workflow.Trigger.Validate(); err != nil {
		return err
	}

	if workflow.Trigger.Type == models.TriggerTypeSchedule && workflow.Trigger.Enabled && workflow.Trigger.NextRunAt == nil {
		if err := workflow.Trigger.ComputeNextRun(now); err != nil {
			return fmt.Errorf("%w: %w", models.ErrInvalidTrigger, err)
		}
	}

	workflow.PlanGraph = planner.EnsurePlanGraph(workflow)

	if err := planner.Validate(workflow); err != nil {
		return err
	}

	return e.checkActionIDs(workflow)
}

// checkActionIDs verifies every step action exists in the catalog. Skipped
// when no catalog is wired, e.g. in storage-only tests.
func (e *Engine) checkActionIDs(workflow *models.Workflow) error {
	if e.catalog == nil {
		return nil
	}

	for _, step := range workflow.Steps {
		if step.ActionID == "" {
			continue
		}

		if _, ok := e.catalog.Lookup(step.ActionID); !ok {
			return fmt.Errorf("%w: %q (step %s)", ErrUnknownActionID, step.ActionID, step.ID)
		}
	}

	return nil
}

// CreateFromPrompt compiles a natural-language prompt into a draft workflow
// and saves it.
func (e *Engine) CreateFromPrompt(ctx context.Context, userID, prompt string) (*models.Workflow, error) {
	const op = "CreateFromPrompt"

	if e.compiler == nil {
		return nil, opError(op, fmt.Errorf("no compiler configured"))
	}

	if userID == "" {
		return nil, opError(op, ErrEmptyUserID)
	}

	workflow, err := e.compiler.Compile(ctx, userID, prompt)
	if err != nil {
		return nil, opError(op, err)
	}

	return e.SaveWorkflow(ctx, userID, workflow)
}

// PauseWorkflow makes a ready workflow's triggers inert. Manual runs stay
// allowed while paused.
func (e *Engine) PauseWorkflow(ctx context.Context, userID, workflowID string) (*models.Workflow, error) {
	const op = "PauseWorkflow"

	workflow, err := e.transitionStatus(ctx, op, userID, workflowID,
		models.WorkflowStatusReady, models.WorkflowStatusPaused, nil)
	if err != nil {
		return nil, err
	}

	e.logger.InfoContext(ctx, "Workflow paused", "workflow_id", workflowID)

	return workflow, nil
}

// ResumeWorkflow returns a paused workflow to ready. Schedule triggers get a
// fresh NextRunAt so missed firings during the pause are skipped, not
// replayed.
func (e *Engine) ResumeWorkflow(ctx context.Context, userID, workflowID string) (*models.Workflow, error) {
	const op = "ResumeWorkflow"

	rearm := func(workflow *models.Workflow) {
		if workflow.Trigger == nil || workflow.Trigger.Type != models.TriggerTypeSchedule || !workflow.Trigger.Enabled {
			return
		}

		_ = workflow.Trigger.ComputeNextRun(time.Now().UTC())
	}

	workflow, err := e.transitionStatus(ctx, op, userID, workflowID,
		models.WorkflowStatusPaused, models.WorkflowStatusReady, rearm)
	if err != nil {
		return nil, err
	}

	e.logger.InfoContext(ctx, "Workflow resumed", "workflow_id", workflowID)

	return workflow, nil
}

// transitionStatus moves a workflow between two lifecycle statuses under the
// workflow lock, applying mutate before the save when given.
func (e *Engine) transitionStatus(ctx context.Context, op, userID, workflowID string, from, to models.WorkflowStatus, mutate func(*models.Workflow)) (*models.Workflow, error) {
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

	if workflow.Status == models.WorkflowStatusArchived {
		return nil, opError(op, fmt.Errorf("%w: %s", ErrWorkflowArchived, workflowID))
	}

	if workflow.Status != from {
		return nil, opError(op, fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, workflow.Status, to))
	}

	workflow.Status = to
	workflow.UpdatedAt = time.Now().UTC()

	if mutate != nil {
		mutate(workflow)
	}

	if err := e.store.WorkflowRepository().Save(ctx, workflow); err != nil {
		return nil, opError(op, err)
	}

	return workflow, nil
}

// CancelWorkflow archives the workflow and disables its trigger. Terminal
// for future triggering only: in-flight executions are not aborted.
func (e *Engine) CancelWorkflow(ctx context.Context, userID, workflowID string) (*models.Workflow, error) {
	return e.archive(ctx, "CancelWorkflow", userID, workflowID, true)
}

// ArchiveWorkflow soft-deletes the workflow, keeping executions and history.
func (e *Engine) ArchiveWorkflow(ctx context.Context, userID, workflowID string) (*models.Workflow, error) {
	return e.archive(ctx, "ArchiveWorkflow", userID, workflowID, false)
}

func (e *Engine) archive(ctx context.Context, op, userID, workflowID string, disableTrigger bool) (*models.Workflow, error) {
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

	if workflow.Status == models.WorkflowStatusArchived {
		return nil, opError(op, fmt.Errorf("%w: %s", ErrWorkflowArchived, workflowID))
	}

	now := time.Now().UTC()
	workflow.Status = models.WorkflowStatusArchived
	workflow.ArchivedAt = &now
	workflow.UpdatedAt = now

	if disableTrigger && workflow.Trigger != nil {
		workflow.Trigger.Enabled = false
	}

	if err := e.store.WorkflowRepository().Save(ctx, workflow); err != nil {
		return nil, opError(op, err)
	}

	if _, err := e.history.Record(ctx, workflow, models.ChangeTypeArchived); err != nil {
		return nil, opError(op, err)
	}

	e.publish(ctx, workflow.ID, events.WorkflowArchived{
		BaseEvent:  events.NewBaseEvent(events.WorkflowArchivedEvent, workflow.ID),
		UserID:     workflow.UserID,
		ArchivedBy: userID,
	})

	e.logger.InfoContext(ctx, "Workflow archived", "workflow_id", workflowID)

	return workflow, nil
}
