package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/routinehq/routine/pkg/models"
	"github.com/routinehq/routine/pkg/persistence"
)

// CheckpointRepository handles checkpoint-related database operations.
type CheckpointRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewCheckpointRepository creates a new checkpoint repository.
func NewCheckpointRepository(db *sql.DB, logger *slog.Logger) *CheckpointRepository {
	return &CheckpointRepository{db: db, logger: logger}
}

const checkpointColumns = `
	id, user_id, workflow_id, execution_id, step_id, risk_level, risk_summary,
	proposed_action, previous_step_results, context, status, decision,
	edited_action, rejection_reason, resolved_by, created_at, resolved_at
`

// ListPending returns unresolved checkpoint requests, newest first.
func (r *CheckpointRepository) ListPending(ctx context.Context, userID string) ([]*models.CheckpointRequest, error) {
	query := `
		SELECT ` + checkpointColumns + `
		FROM checkpoints
		WHERE status = $1
	`
	args := []any{models.CheckpointStatusPending}

	if userID != "" {
		query += " AND user_id = $2"

		args = append(args, userID)
	}

	query += " ORDER BY created_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query checkpoints: %w", err)
	}

	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", closeErr)
		}
	}()

	requests := make([]*models.CheckpointRequest, 0)

	for rows.Next() {
		request, err := r.scanCheckpoint(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan checkpoint: %w", err)
		}

		requests = append(requests, request)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating checkpoints: %w", err)
	}

	return requests, nil
}

// GetByID returns a checkpoint request by its ID, or (nil, nil) when absent.
func (r *CheckpointRepository) GetByID(ctx context.Context, id string) (*models.CheckpointRequest, error) {
	query := `
		SELECT ` + checkpointColumns + `
		FROM checkpoints
		WHERE id = $1
	`

	row := r.db.QueryRowContext(ctx, query, id)

	request, err := r.scanCheckpoint(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan checkpoint: %w", err)
	}

	return request, nil
}

// Save upserts a checkpoint request.
func (r *CheckpointRepository) Save(ctx context.Context, request *models.CheckpointRequest) error {
	proposedJSON, err := marshalNullable(request.ProposedAction)
	if err != nil {
		return fmt.Errorf("failed to marshal proposed action: %w", err)
	}

	resultsJSON, err := json.Marshal(request.PreviousStepResults)
	if err != nil {
		return fmt.Errorf("failed to marshal previous step results: %w", err)
	}

	contextJSON, err := marshalNullable(request.Context)
	if err != nil {
		return fmt.Errorf("failed to marshal run context: %w", err)
	}

	editedJSON, err := marshalNullable(request.EditedAction)
	if err != nil {
		return fmt.Errorf("failed to marshal edited action: %w", err)
	}

	query := `
		INSERT INTO checkpoints (` + checkpointColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			decision = EXCLUDED.decision,
			edited_action = EXCLUDED.edited_action,
			rejection_reason = EXCLUDED.rejection_reason,
			resolved_by = EXCLUDED.resolved_by,
			resolved_at = EXCLUDED.resolved_at
	`

	_, err = r.db.ExecContext(ctx, query,
		request.ID,
		request.UserID,
		request.WorkflowID,
		request.ExecutionID,
		request.StepID,
		request.RiskLevel,
		request.RiskSummary,
		proposedJSON,
		resultsJSON,
		contextJSON,
		request.Status,
		request.Decision,
		editedJSON,
		request.RejectionReason,
		request.ResolvedBy,
		request.CreatedAt,
		request.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}

	return nil
}

// Resolve applies the resolution if and only if the request is still
// pending. The status guard in the UPDATE makes the transition atomic, so
// concurrent reviewers serialize and exactly one wins.
func (r *CheckpointRepository) Resolve(ctx context.Context, id string, resolution persistence.CheckpointResolution) (*models.CheckpointRequest, error) {
	editedJSON, err := marshalNullable(resolution.EditedAction)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal edited action: %w", err)
	}

	query := `
		UPDATE checkpoints
		SET status = $2, decision = $3, edited_action = $4, rejection_reason = $5, resolved_by = $6, resolved_at = $7
		WHERE id = $1 AND status = $8
	`

	result, err := r.db.ExecContext(ctx, query,
		id,
		resolution.Status,
		resolution.Decision,
		editedJSON,
		resolution.RejectionReason,
		resolution.ResolvedBy,
		resolution.ResolvedAt.UTC(),
		models.CheckpointStatusPending,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve checkpoint: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		existing, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		if existing == nil {
			return nil, persistence.NewStoreError("Resolve", "checkpoint", id, persistence.ErrCheckpointNotFound)
		}

		return nil, persistence.NewStoreError("Resolve", "checkpoint", id, persistence.ErrCheckpointAlreadyResolved)
	}

	return r.GetByID(ctx, id)
}

func (r *CheckpointRepository) scanCheckpoint(scanner interface {
	Scan(dest ...any) error
}) (*models.CheckpointRequest, error) {
	var (
		request                   models.CheckpointRequest
		proposedJSON, resultsJSON []byte
		contextJSON, editedJSON   []byte
	)

	err := scanner.Scan(
		&request.ID,
		&request.UserID,
		&request.WorkflowID,
		&request.ExecutionID,
		&request.StepID,
		&request.RiskLevel,
		&request.RiskSummary,
		&proposedJSON,
		&resultsJSON,
		&contextJSON,
		&request.Status,
		&request.Decision,
		&editedJSON,
		&request.RejectionReason,
		&request.ResolvedBy,
		&request.CreatedAt,
		&request.ResolvedAt,
	)
	if err != nil {
		return nil, err
	}

	if proposedJSON != nil {
		if err := json.Unmarshal(proposedJSON, &request.ProposedAction); err != nil {
			return nil, fmt.Errorf("failed to unmarshal proposed action: %w", err)
		}
	}

	if resultsJSON != nil {
		if err := json.Unmarshal(resultsJSON, &request.PreviousStepResults); err != nil {
			return nil, fmt.Errorf("failed to unmarshal previous step results: %w", err)
		}
	}

	if contextJSON != nil {
		if err := json.Unmarshal(contextJSON, &request.Context); err != nil {
			return nil, fmt.Errorf("failed to unmarshal run context: %w", err)
		}
	}

	if editedJSON != nil {
		if err := json.Unmarshal(editedJSON, &request.EditedAction); err != nil {
			return nil, fmt.Errorf("failed to unmarshal edited action: %w", err)
		}
	}

	return &request, nil
}

// marshalNullable marshals a pointer to JSON, mapping nil to SQL NULL rather
// than the JSON literal null.
func marshalNullable[T any](value *T) ([]byte, error) {
	if value == nil {
		return nil, nil
	}

	return json.Marshal(value)
}
