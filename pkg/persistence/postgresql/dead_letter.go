package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/routinehq/routine/pkg/models"
	"github.com/routinehq/routine/pkg/persistence"
)

// DeadLetterRepository handles dead letter database operations.
type DeadLetterRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewDeadLetterRepository creates a new dead letter repository.
func NewDeadLetterRepository(db *sql.DB, logger *slog.Logger) *DeadLetterRepository {
	return &DeadLetterRepository{db: db, logger: logger}
}

const deadLetterColumns = `
	id, user_id, workflow_id, execution_id, status, reason, attempts,
	created_at, resolved_at, resolved_by
`

// List returns dead letters for a user, newest first, optionally filtered by
// status.
func (r *DeadLetterRepository) List(ctx context.Context, userID string, status *models.DeadLetterStatus) ([]*models.DeadLetterEntry, error) {
	query := `
		SELECT ` + deadLetterColumns + `
		FROM dead_letters
	`

	var (
		conditions []string
		args       []any
	)

	if userID != "" {
		args = append(args, userID)
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)))
	}

	if status != nil {
		args = append(args, *status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY created_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query dead letters: %w", err)
	}

	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", closeErr)
		}
	}()

	entries := make([]*models.DeadLetterEntry, 0)

	for rows.Next() {
		entry, err := r.scanDeadLetter(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan dead letter: %w", err)
		}

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating dead letters: %w", err)
	}

	return entries, nil
}

// GetByID returns a dead letter by its ID, or (nil, nil) when absent.
func (r *DeadLetterRepository) GetByID(ctx context.Context, id string) (*models.DeadLetterEntry, error) {
	query := `
		SELECT ` + deadLetterColumns + `
		FROM dead_letters
		WHERE id = $1
	`

	row := r.db.QueryRowContext(ctx, query, id)

	entry, err := r.scanDeadLetter(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan dead letter: %w", err)
	}

	return entry, nil
}

// Save upserts a dead letter entry.
func (r *DeadLetterRepository) Save(ctx context.Context, entry *models.DeadLetterEntry) error {
	query := `
		INSERT INTO dead_letters (` + deadLetterColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			reason = EXCLUDED.reason,
			attempts = EXCLUDED.attempts,
			resolved_at = EXCLUDED.resolved_at,
			resolved_by = EXCLUDED.resolved_by
	`

	_, err := r.db.ExecContext(ctx, query,
		entry.ID,
		entry.UserID,
		entry.WorkflowID,
		entry.ExecutionID,
		entry.Status,
		entry.Reason,
		entry.Attempts,
		entry.CreatedAt,
		entry.ResolvedAt,
		entry.ResolvedBy,
	)
	if err != nil {
		return fmt.Errorf("failed to save dead letter: %w", err)
	}

	return nil
}

// MarkResolved acknowledges a pending dead letter. The status guard in the
// UPDATE makes the transition atomic; acknowledging never re-runs anything.
func (r *DeadLetterRepository) MarkResolved(ctx context.Context, id, resolvedBy string, at time.Time) (*models.DeadLetterEntry, error) {
	query := `
		UPDATE dead_letters
		SET status = $2, resolved_by = $3, resolved_at = $4
		WHERE id = $1 AND status = $5
	`

	result, err := r.db.ExecContext(ctx, query,
		id,
		models.DeadLetterStatusResolved,
		resolvedBy,
		at.UTC(),
		models.DeadLetterStatusPending,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve dead letter: %w", err)
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
			return nil, persistence.NewStoreError("MarkResolved", "dead letter", id, persistence.ErrDeadLetterNotFound)
		}

		return nil, persistence.NewStoreError("MarkResolved", "dead letter", id, persistence.ErrDeadLetterAlreadyResolved)
	}

	return r.GetByID(ctx, id)
}

func (r *DeadLetterRepository) scanDeadLetter(scanner interface {
	Scan(dest ...any) error
}) (*models.DeadLetterEntry, error) {
	var entry models.DeadLetterEntry

	err := scanner.Scan(
		&entry.ID,
		&entry.UserID,
		&entry.WorkflowID,
		&entry.ExecutionID,
		&entry.Status,
		&entry.Reason,
		&entry.Attempts,
		&entry.CreatedAt,
		&entry.ResolvedAt,
		&entry.ResolvedBy,
	)
	if err != nil {
		return nil, err
	}

	return &entry, nil
}
