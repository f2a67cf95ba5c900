package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/routinehq/routine/pkg/models"
	"github.com/routinehq/routine/pkg/persistence"
)

// WorkflowRepository handles workflow-related database operations. Steps and
// branches are stored in their own tables and rewritten as a unit on every
// save, so a stored workflow is always internally consistent.
type WorkflowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(db *sql.DB, logger *slog.Logger) *WorkflowRepository {
	return &WorkflowRepository{db: db, logger: logger}
}

var workflowSortColumns = map[string]string{
	"created_at": "created_at",
	"updated_at": "updated_at",
	"name":       "name",
}

// List returns one page of workflows matching the options.
func (r *WorkflowRepository) List(ctx context.Context, opts persistence.ListWorkflowsOptions) (*persistence.WorkflowListResult, error) {
	if opts.Limit <= 0 || opts.Limit > 100 {
		opts.Limit = 20
	}

	if opts.SortBy == "" {
		opts.SortBy = "created_at"
	}

	if opts.SortOrder == "" {
		opts.SortOrder = "desc"
	}

	column, ok := workflowSortColumns[opts.SortBy]
	if !ok {
		return nil, fmt.Errorf("invalid sort field: %s", opts.SortBy)
	}

	direction := "DESC"
	if strings.EqualFold(opts.SortOrder, "asc") {
		direction = "ASC"
	}

	var (
		conditions []string
		args       []any
	)

	if opts.UserID != "" {
		args = append(args, opts.UserID)
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)))
	}

	if opts.Status != nil {
		args = append(args, *opts.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var totalCount int64

	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM workflows "+where, args...).Scan(&totalCount)
	if err != nil {
		return nil, fmt.Errorf("failed to count workflows: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT id, user_id, name, description, source_prompt, status, trigger_spec, entry_step_id, created_at, updated_at, archived_at
		FROM workflows
		%s
		ORDER BY %s %s
		LIMIT $%d OFFSET $%d
	`, where, column, direction, len(args)+1, len(args)+2)

	args = append(args, opts.Limit, opts.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}

	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", closeErr)
		}
	}()

	workflows := make([]*models.Workflow, 0)

	for rows.Next() {
		workflow, err := r.scanWorkflowBase(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}

		err = r.loadStepsAndBranches(ctx, workflow)
		if err != nil {
			return nil, fmt.Errorf("failed to load workflow steps and branches: %w", err)
		}

		workflows = append(workflows, workflow)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating workflows: %w", err)
	}

	return &persistence.WorkflowListResult{
		Workflows:   workflows,
		TotalCount:  totalCount,
		HasNextPage: int64(opts.Offset+len(workflows)) < totalCount,
	}, nil
}

// GetByID returns a workflow by its ID, or (nil, nil) when absent.
func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	query := `
		SELECT id, user_id, name, description, source_prompt, status, trigger_spec, entry_step_id, created_at, updated_at, archived_at
		FROM workflows
		WHERE id = $1
	`

	row := r.db.QueryRowContext(ctx, query, id)

	workflow, err := r.scanWorkflowBase(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan workflow: %w", err)
	}

	if err := r.loadStepsAndBranches(ctx, workflow); err != nil {
		return nil, fmt.Errorf("failed to load workflow steps and branches: %w", err)
	}

	return workflow, nil
}

// Save upserts the workflow base row and rewrites its steps and branches in
// one transaction.
func (r *WorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	now := time.Now().UTC()

	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var triggerJSON []byte

	if workflow.Trigger != nil {
		triggerJSON, err = json.Marshal(workflow.Trigger)
		if err != nil {
			return fmt.Errorf("failed to marshal trigger: %w", err)
		}
	}

	entryStepID := ""
	if workflow.PlanGraph != nil {
		entryStepID = workflow.PlanGraph.EntryStepID
	}

	workflowQuery := `
		INSERT INTO workflows (id, user_id, name, description, source_prompt, status, trigger_spec, entry_step_id, created_at, updated_at, archived_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			source_prompt = EXCLUDED.source_prompt,
			status = EXCLUDED.status,
			trigger_spec = EXCLUDED.trigger_spec,
			entry_step_id = EXCLUDED.entry_step_id,
			updated_at = EXCLUDED.updated_at,
			archived_at = EXCLUDED.archived_at
	`

	_, err = tx.ExecContext(ctx, workflowQuery,
		workflow.ID,
		workflow.UserID,
		workflow.Name,
		workflow.Description,
		workflow.SourcePrompt,
		workflow.Status,
		triggerJSON,
		entryStepID,
		workflow.CreatedAt,
		workflow.UpdatedAt,
		workflow.ArchivedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save workflow base: %w", err)
	}

	_, err = tx.ExecContext(ctx, "DELETE FROM workflow_branches WHERE workflow_id = $1", workflow.ID)
	if err != nil {
		return fmt.Errorf("failed to delete existing branches: %w", err)
	}

	_, err = tx.ExecContext(ctx, "DELETE FROM workflow_steps WHERE workflow_id = $1", workflow.ID)
	if err != nil {
		return fmt.Errorf("failed to delete existing steps: %w", err)
	}

	if err = r.saveSteps(ctx, tx, workflow); err != nil {
		return fmt.Errorf("failed to save workflow steps: %w", err)
	}

	if err = r.saveBranches(ctx, tx, workflow); err != nil {
		return fmt.Errorf("failed to save workflow branches: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Delete removes a workflow and, through cascades, its steps and branches.
func (r *WorkflowRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM workflows WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete workflow: %w", err)
	}

	return nil
}

func (r *WorkflowRepository) saveSteps(ctx context.Context, tx *sql.Tx, workflow *models.Workflow) error {
	query := `
		INSERT INTO workflow_steps (workflow_id, id, position, title, description, kind, action_id, input_template)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	for position, step := range workflow.Steps {
		_, err := tx.ExecContext(ctx, query,
			workflow.ID,
			step.ID,
			position,
			step.Title,
			step.Description,
			step.Kind,
			step.ActionID,
			step.InputTemplate,
		)
		if err != nil {
			return fmt.Errorf("failed to save step %s: %w", step.ID, err)
		}
	}

	return nil
}

func (r *WorkflowRepository) saveBranches(ctx context.Context, tx *sql.Tx, workflow *models.Workflow) error {
	if workflow.PlanGraph == nil {
		return nil
	}

	query := `
		INSERT INTO workflow_branches (workflow_id, id, position, from_step_id, to_step_id, label, priority, condition)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	for position, branch := range workflow.PlanGraph.Branches {
		var conditionJSON []byte

		if branch.Condition != nil {
			data, err := json.Marshal(branch.Condition)
			if err != nil {
				return fmt.Errorf("failed to marshal branch condition: %w", err)
			}

			conditionJSON = data
		}

		_, err := tx.ExecContext(ctx, query,
			workflow.ID,
			branch.ID,
			position,
			branch.FromStepID,
			branch.ToStepID,
			branch.Label,
			branch.Priority,
			conditionJSON,
		)
		if err != nil {
			return fmt.Errorf("failed to save branch %s: %w", branch.ID, err)
		}
	}

	return nil
}

func (r *WorkflowRepository) loadStepsAndBranches(ctx context.Context, workflow *models.Workflow) error {
	stepsQuery := `
		SELECT id, title, description, kind, action_id, input_template
		FROM workflow_steps
		WHERE workflow_id = $1
		ORDER BY position
	`

	rows, err := r.db.QueryContext(ctx, stepsQuery, workflow.ID)
	if err != nil {
		return fmt.Errorf("failed to query workflow steps: %w", err)
	}

	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", closeErr)
		}
	}()

	var steps []*models.Step

	for rows.Next() {
		var step models.Step

		err := rows.Scan(
			&step.ID,
			&step.Title,
			&step.Description,
			&step.Kind,
			&step.ActionID,
			&step.InputTemplate,
		)
		if err != nil {
			return fmt.Errorf("failed to scan step: %w", err)
		}

		steps = append(steps, &step)
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating steps: %w", err)
	}

	workflow.Steps = steps

	branchesQuery := `
		SELECT id, from_step_id, to_step_id, label, priority, condition
		FROM workflow_branches
		WHERE workflow_id = $1
		ORDER BY position
	`

	rows, err = r.db.QueryContext(ctx, branchesQuery, workflow.ID)
	if err != nil {
		return fmt.Errorf("failed to query workflow branches: %w", err)
	}

	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", closeErr)
		}
	}()

	var branches []*models.Branch

	for rows.Next() {
		var (
			branch        models.Branch
			conditionJSON []byte
		)

		err := rows.Scan(
			&branch.ID,
			&branch.FromStepID,
			&branch.ToStepID,
			&branch.Label,
			&branch.Priority,
			&conditionJSON,
		)
		if err != nil {
			return fmt.Errorf("failed to scan branch: %w", err)
		}

		if conditionJSON != nil {
			err := json.Unmarshal(conditionJSON, &branch.Condition)
			if err != nil {
				return fmt.Errorf("failed to unmarshal branch condition: %w", err)
			}
		}

		branches = append(branches, &branch)
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating branches: %w", err)
	}

	if workflow.PlanGraph != nil {
		workflow.PlanGraph.Branches = branches
	} else if len(branches) > 0 {
		workflow.PlanGraph = &models.PlanGraph{Branches: branches}
	}

	return nil
}

func (r *WorkflowRepository) scanWorkflowBase(scanner interface {
	Scan(dest ...any) error
}) (*models.Workflow, error) {
	var (
		workflow    models.Workflow
		triggerJSON []byte
		entryStepID string
	)

	err := scanner.Scan(
		&workflow.ID,
		&workflow.UserID,
		&workflow.Name,
		&workflow.Description,
		&workflow.SourcePrompt,
		&workflow.Status,
		&triggerJSON,
		&entryStepID,
		&workflow.CreatedAt,
		&workflow.UpdatedAt,
		&workflow.ArchivedAt,
	)
	if err != nil {
		return nil, err
	}

	if triggerJSON != nil {
		err := json.Unmarshal(triggerJSON, &workflow.Trigger)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal trigger: %w", err)
		}
	}

	if entryStepID != "" {
		workflow.PlanGraph = &models.PlanGraph{EntryStepID: entryStepID}
	}

	return &workflow, nil
}
