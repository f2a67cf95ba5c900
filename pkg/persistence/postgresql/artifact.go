package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/routinehq/routine/pkg/models"
)

// ArtifactRepository handles artifact database operations.
type ArtifactRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewArtifactRepository creates a new artifact repository.
func NewArtifactRepository(db *sql.DB, logger *slog.Logger) *ArtifactRepository {
	return &ArtifactRepository{db: db, logger: logger}
}

// List returns artifacts, newest first, optionally filtered by user and
// execution.
func (r *ArtifactRepository) List(ctx context.Context, userID, executionID string) ([]*models.Artifact, error) {
	query := `
		SELECT id, user_id, workflow_id, execution_id, step_id, name, content_type, content, created_at
		FROM artifacts
	`

	var (
		conditions []string
		args       []any
	)

	if userID != "" {
		args = append(args, userID)
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)))
	}

	if executionID != "" {
		args = append(args, executionID)
		conditions = append(conditions, fmt.Sprintf("execution_id = $%d", len(args)))
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY created_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query artifacts: %w", err)
	}

	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", closeErr)
		}
	}()

	artifacts := make([]*models.Artifact, 0)

	for rows.Next() {
		artifact, err := r.scanArtifact(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan artifact: %w", err)
		}

		artifacts = append(artifacts, artifact)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating artifacts: %w", err)
	}

	return artifacts, nil
}

// GetByID returns an artifact by its ID, or (nil, nil) when absent.
func (r *ArtifactRepository) GetByID(ctx context.Context, id string) (*models.Artifact, error) {
	query := `
		SELECT id, user_id, workflow_id, execution_id, step_id, name, content_type, content, created_at
		FROM artifacts
		WHERE id = $1
	`

	row := r.db.QueryRowContext(ctx, query, id)

	artifact, err := r.scanArtifact(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan artifact: %w", err)
	}

	return artifact, nil
}

// Save upserts an artifact.
func (r *ArtifactRepository) Save(ctx context.Context, artifact *models.Artifact) error {
	query := `
		INSERT INTO artifacts (id, user_id, workflow_id, execution_id, step_id, name, content_type, content, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			content_type = EXCLUDED.content_type,
			content = EXCLUDED.content
	`

	_, err := r.db.ExecContext(ctx, query,
		artifact.ID,
		artifact.UserID,
		artifact.WorkflowID,
		artifact.ExecutionID,
		artifact.StepID,
		artifact.Name,
		artifact.ContentType,
		artifact.Content,
		artifact.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save artifact: %w", err)
	}

	return nil
}

func (r *ArtifactRepository) scanArtifact(scanner interface {
	Scan(dest ...any) error
}) (*models.Artifact, error) {
	var artifact models.Artifact

	err := scanner.Scan(
		&artifact.ID,
		&artifact.UserID,
		&artifact.WorkflowID,
		&artifact.ExecutionID,
		&artifact.StepID,
		&artifact.Name,
		&artifact.ContentType,
		&artifact.Content,
		&artifact.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &artifact, nil
}
