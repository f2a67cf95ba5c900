package engine

import (
	"context"
	"fmt"

	"github.com/routinehq/routine/pkg/models"
	"github.com/routinehq/routine/pkg/persistence"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultListLimit
	case limit > maxListLimit:
		return maxListLimit
	default:
		return limit
	}
}

// ListWorkflows returns one page of workflows matching the options.
func (e *Engine) ListWorkflows(ctx context.Context, opts persistence.ListWorkflowsOptions) (*persistence.WorkflowListResult, error) {
	const op = "ListWorkflows"

	opts.Limit = clampLimit(opts.Limit)

	result, err := e.store.WorkflowRepository().List(ctx, opts)
	if err != nil {
		return nil, opError(op, err)
	}

	return result, nil
}

// GetWorkflow returns a workflow by id.
func (e *Engine) GetWorkflow(ctx context.Context, workflowID string) (*models.Workflow, error) {
	const op = "GetWorkflow"

	workflow, err := e.store.WorkflowRepository().GetByID(ctx, workflowID)
	if err != nil {
		return nil, opError(op, err)
	}

	if workflow == nil {
		return nil, opError(op, fmt.Errorf("%w: %s", ErrWorkflowNotFound, workflowID))
	}

	return workflow, nil
}

// ListExecutions returns run records, newest first.
func (e *Engine) ListExecutions(ctx context.Context, opts persistence.ListExecutionsOptions) ([]*models.Execution, error) {
	const op = "ListExecutions"

	opts.Limit = clampLimit(opts.Limit)

	executions, err := e.store.ExecutionRepository().List(ctx, opts)
	if err != nil {
		return nil, opError(op, err)
	}

	return executions, nil
}

// GetExecution returns an execution by id.
func (e *Engine) GetExecution(ctx context.Context, executionID string) (*models.Execution, error) {
	const op = "GetExecution"

	execution, err := e.store.ExecutionRepository().GetByID(ctx, executionID)
	if err != nil {
		return nil, opError(op, err)
	}

	if execution == nil {
		return nil, opError(op, fmt.Errorf("%w: %s", ErrExecutionNotFound, executionID))
	}

	return execution, nil
}

// ListPendingCheckpoints returns unresolved checkpoint requests, newest
// first. Empty userID lists all users.
func (e *Engine) ListPendingCheckpoints(ctx context.Context, userID string) ([]*models.CheckpointRequest, error) {
	const op = "ListPendingCheckpoints"

	requests, err := e.checkpoints.ListPending(ctx, userID)
	if err != nil {
		return nil, opError(op, err)
	}

	return requests, nil
}

// ListPendingApprovals returns executions paused awaiting connector
// approval.
func (e *Engine) ListPendingApprovals(ctx context.Context, userID string) ([]*models.Execution, error) {
	const op = "ListPendingApprovals"

	status := models.ExecutionStatusApprovalRequired

	executions, err := e.store.ExecutionRepository().List(ctx, persistence.ListExecutionsOptions{
		UserID: userID,
		Status: &status,
		Limit:  maxListLimit,
	})
	if err != nil {
		return nil, opError(op, err)
	}

	return executions, nil
}

// ListArtifacts returns stored artifacts, optionally scoped to one
// execution.
func (e *Engine) ListArtifacts(ctx context.Context, userID, executionID string) ([]*models.Artifact, error) {
	const op = "ListArtifacts"

	artifacts, err := e.store.ArtifactRepository().List(ctx, userID, executionID)
	if err != nil {
		return nil, opError(op, err)
	}

	return artifacts, nil
}

// ListNotifications returns a user's notifications, newest first.
func (e *Engine) ListNotifications(ctx context.Context, userID string, unreadOnly bool) ([]*models.Notification, error) {
	const op = "ListNotifications"

	notifications, err := e.store.NotificationRepository().List(ctx, userID, unreadOnly)
	if err != nil {
		return nil, opError(op, err)
	}

	return notifications, nil
}

// MarkNotificationRead marks one notification as read.
func (e *Engine) MarkNotificationRead(ctx context.Context, notificationID string) (*models.Notification, error) {
	const op = "MarkNotificationRead"

	notification, err := e.store.NotificationRepository().MarkRead(ctx, notificationID)
	if err != nil {
		return nil, opError(op, err)
	}

	return notification, nil
}

// ListChangeHistory returns a workflow's change entries, newest first.
func (e *Engine) ListChangeHistory(ctx context.Context, workflowID string, limit int) ([]*models.ChangeEntry, error) {
	const op = "ListChangeHistory"

	entries, err := e.history.List(ctx, workflowID, limit)
	if err != nil {
		return nil, opError(op, err)
	}

	return entries, nil
}

// DiffChangeEntries computes the structural diff between two change entries'
// snapshots: step and branch ids added, removed and changed. Reordering with
// identical content is not a change.
func (e *Engine) DiffChangeEntries(ctx context.Context, leftID, rightID string) (*models.PlanDiff, error) {
	const op = "DiffChangeEntries"

	diff, err := e.history.Diff(ctx, leftID, rightID)
	if err != nil {
		return nil, opError(op, err)
	}

	return diff, nil
}

// ListDeadLetters returns dead letter entries, optionally filtered by
// status.
func (e *Engine) ListDeadLetters(ctx context.Context, userID string, status *models.DeadLetterStatus) ([]*models.DeadLetterEntry, error) {
	const op = "ListDeadLetters"

	entries, err := e.deadLetters.List(ctx, userID, status)
	if err != nil {
		return nil, opError(op, err)
	}

	return entries, nil
}

// ResolveDeadLetter marks a dead letter entry handled. Resolution never
// re-runs the workflow; a resubmission is an explicit fresh run.
func (e *Engine) ResolveDeadLetter(ctx context.Context, userID, entryID string) (*models.DeadLetterEntry, error) {
	const op = "ResolveDeadLetter"

	if userID == "" {
		return nil, opError(op, ErrEmptyUserID)
	}

	entry, err := e.deadLetters.MarkResolved(ctx, entryID, userID)
	if err != nil {
		return nil, opError(op, err)
	}

	return entry, nil
}
