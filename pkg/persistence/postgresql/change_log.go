package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/routinehq/routine/pkg/models"
)

// ChangeLogRepository handles workflow change history database operations.
// Entries are append-only.
type ChangeLogRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewChangeLogRepository creates a new change log repository.
func NewChangeLogRepository(db *sql.DB, logger *slog.Logger) *ChangeLogRepository {
	return &ChangeLogRepository{db: db, logger: logger}
}

// ListByWorkflow returns the change history of a workflow, newest first.
func (r *ChangeLogRepository) ListByWorkflow(ctx context.Context, workflowID string, limit int) ([]*models.ChangeEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := `
		SELECT id, workflow_id, user_id, change_type, summary, snapshot, created_at
		FROM change_entries
		WHERE workflow_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, workflowID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query change entries: %w", err)
	}

	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", closeErr)
		}
	}()

	entries := make([]*models.ChangeEntry, 0)

	for rows.Next() {
		entry, err := r.scanChangeEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan change entry: %w", err)
		}

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating change entries: %w", err)
	}

	return entries, nil
}

// GetByID returns a change entry by its ID, or (nil, nil) when absent.
func (r *ChangeLogRepository) GetByID(ctx context.Context, id string) (*models.ChangeEntry, error) {
	query := `
		SELECT id, workflow_id, user_id, change_type, summary, snapshot, created_at
		FROM change_entries
		WHERE id = $1
	`

	row := r.db.QueryRowContext(ctx, query, id)

	entry, err := r.scanChangeEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan change entry: %w", err)
	}

	return entry, nil
}

// Append inserts a new change entry.
func (r *ChangeLogRepository) Append(ctx context.Context, entry *models.ChangeEntry) error {
	snapshotJSON, err := marshalNullable(entry.Snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	query := `
		INSERT INTO change_entries (id, workflow_id, user_id, change_type, summary, snapshot, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = r.db.ExecContext(ctx, query,
		entry.ID,
		entry.WorkflowID,
		entry.UserID,
		entry.ChangeType,
		entry.Summary,
		snapshotJSON,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append change entry: %w", err)
	}

	return nil
}

func (r *ChangeLogRepository) scanChangeEntry(scanner interface {
	Scan(dest ...any) error
}) (*models.ChangeEntry, error) {
	var (
		entry        models.ChangeEntry
		snapshotJSON []byte
	)

	err := scanner.Scan(
		&entry.ID,
		&entry.WorkflowID,
		&entry.UserID,
		&entry.ChangeType,
		&entry.Summary,
		&snapshotJSON,
		&entry.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if snapshotJSON != nil {
		if err := json.Unmarshal(snapshotJSON, &entry.Snapshot); err != nil {
			return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
		}
	}

	return &entry, nil
}
