// Package checkpoint manages human review points inside workflow executions.
package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/routinehq/routine/pkg/models"
	"github.com/routinehq/routine/pkg/persistence"
)

var (
	// ErrInvalidDecision is returned for decisions outside approve, reject
	// and edit.
	ErrInvalidDecision = errors.New("invalid checkpoint decision")
	// ErrMissingEditedAction is returned when an edit decision carries no
	// replacement action.
	ErrMissingEditedAction = errors.New("edit decision requires an edited action")
)

// Manager creates and resolves checkpoint requests. Requests are created
// only when the engine reaches a checkpoint step; resolution goes through
// the repository's atomic transition so a request resolves exactly once.
type Manager struct {
	repo   persistence.CheckpointRepository
	logger *slog.Logger
}

// NewManager creates a checkpoint manager on top of the given repository.
func NewManager(repo persistence.CheckpointRepository, logger *slog.Logger) *Manager {
	return &Manager{
		repo:   repo,
		logger: logger.With("module", "checkpoint"),
	}
}

// CreateParams describes the paused run state captured into a request.
// NextStep is the gated step that executes on approval; nil means the
// checkpoint is the last step and approval completes the run.
type CreateParams struct {
	UserID    string
	Workflow  *models.Workflow
	Execution *models.Execution
	Step      *models.Step
	NextStep  *models.Step
}

// Create snapshots the execution state into a pending request. The snapshot
// is frozen at creation: later appends to the execution never change what
// the reviewer sees or what a resume replays.
func (m *Manager) Create(ctx context.Context, params CreateParams) (*models.CheckpointRequest, error) {
	request := &models.CheckpointRequest{
		ID:          fmt.Sprintf("chk-%s", uuid.New().String()[:8]),
		UserID:      params.UserID,
		WorkflowID:  params.Workflow.ID,
		ExecutionID: params.Execution.ID,
		StepID:      params.Step.ID,
		RiskLevel:   models.RiskLevelLow,
		RiskSummary: riskSummary(params.NextStep),
		Status:      models.CheckpointStatusPending,
		CreatedAt:   time.Now().UTC(),
	}

	if params.NextStep != nil {
		request.RiskLevel = params.NextStep.Risk()
		request.ProposedAction = &models.ProposedAction{
			Title:         params.NextStep.Title,
			Description:   params.NextStep.Description,
			ActionID:      params.NextStep.ActionID,
			InputTemplate: params.NextStep.InputTemplate,
		}
	}

	request.PreviousStepResults = append([]models.StepResult(nil), params.Execution.StepResults...)

	if params.Execution.Context != nil {
		request.Context = cloneContext(params.Execution.Context)
	}

	if err := m.repo.Save(ctx, request); err != nil {
		return nil, fmt.Errorf("failed to save checkpoint request: %w", err)
	}

	m.logger.InfoContext(ctx, "Checkpoint request created",
		"checkpoint_id", request.ID,
		"execution_id", request.ExecutionID,
		"risk_level", request.RiskLevel)

	return request, nil
}

// Resolution carries a reviewer's verdict on a pending request.
type Resolution struct {
	Decision        models.CheckpointDecision
	EditedAction    *models.ProposedAction
	RejectionReason string
	ResolvedBy      string
}

// Resolve applies a single-use decision to a pending request. Resolving an
// already-resolved request fails with the repository's conflict error.
func (m *Manager) Resolve(ctx context.Context, requestID string, resolution Resolution) (*models.CheckpointRequest, error) {
	status, err := statusForDecision(resolution.Decision)
	if err != nil {
		return nil, err
	}

	if resolution.Decision == models.DecisionEdit && resolution.EditedAction == nil {
		return nil, ErrMissingEditedAction
	}

	resolved, err := m.repo.Resolve(ctx, requestID, persistence.CheckpointResolution{
		Status:          status,
		Decision:        resolution.Decision,
		EditedAction:    resolution.EditedAction,
		RejectionReason: resolution.RejectionReason,
		ResolvedBy:      resolution.ResolvedBy,
		ResolvedAt:      time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	m.logger.InfoContext(ctx, "Checkpoint resolved",
		"checkpoint_id", requestID,
		"decision", resolution.Decision)

	return resolved, nil
}

// ListPending returns unresolved requests, newest first. Empty userID lists
// all users.
func (m *Manager) ListPending(ctx context.Context, userID string) ([]*models.CheckpointRequest, error) {
	return m.repo.ListPending(ctx, userID)
}

// Get returns a request by id, nil when unknown.
func (m *Manager) Get(ctx context.Context, id string) (*models.CheckpointRequest, error) {
	return m.repo.GetByID(ctx, id)
}

func statusForDecision(decision models.CheckpointDecision) (models.CheckpointStatus, error) {
	switch decision {
	case models.DecisionApprove:
		return models.CheckpointStatusApproved, nil
	case models.DecisionReject:
		return models.CheckpointStatusRejected, nil
	case models.DecisionEdit:
		return models.CheckpointStatusEdited, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidDecision, decision)
	}
}

func riskSummary(next *models.Step) string {
	if next == nil {
		return "Approving completes the run, no further steps execute."
	}

	return fmt.Sprintf("Approving runs %q next (%s, %s risk).", next.Title, next.Kind, next.Risk())
}

func cloneContext(rctx *models.RunContext) *models.RunContext {
	clone := *rctx

	clone.StepOutputs = make(map[string]any, len(rctx.StepOutputs))
	for key, value := range rctx.StepOutputs {
		clone.StepOutputs[key] = value
	}

	if rctx.TriggerData != nil {
		clone.TriggerData = make(map[string]any, len(rctx.TriggerData))
		for key, value := range rctx.TriggerData {
			clone.TriggerData[key] = value
		}
	}

	return &clone
}
