package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/routinehq/routine/pkg/models"
	"github.com/routinehq/routine/pkg/persistence"
)

// NotificationRepository handles notification database operations.
type NotificationRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewNotificationRepository creates a new notification repository.
func NewNotificationRepository(db *sql.DB, logger *slog.Logger) *NotificationRepository {
	return &NotificationRepository{db: db, logger: logger}
}

// List returns a user's notifications, newest first.
func (r *NotificationRepository) List(ctx context.Context, userID string, unreadOnly bool) ([]*models.Notification, error) {
	query := `
		SELECT id, user_id, kind, title, body, workflow_id, execution_id, read, created_at
		FROM notifications
	`

	var (
		conditions []string
		args       []any
	)

	if userID != "" {
		args = append(args, userID)
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)))
	}

	if unreadOnly {
		conditions = append(conditions, "read = FALSE")
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY created_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}

	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", closeErr)
		}
	}()

	notifications := make([]*models.Notification, 0)

	for rows.Next() {
		notification, err := r.scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}

		notifications = append(notifications, notification)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notifications: %w", err)
	}

	return notifications, nil
}

// GetByID returns a notification by its ID, or (nil, nil) when absent.
func (r *NotificationRepository) GetByID(ctx context.Context, id string) (*models.Notification, error) {
	query := `
		SELECT id, user_id, kind, title, body, workflow_id, execution_id, read, created_at
		FROM notifications
		WHERE id = $1
	`

	row := r.db.QueryRowContext(ctx, query, id)

	notification, err := r.scanNotification(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan notification: %w", err)
	}

	return notification, nil
}

// Save upserts a notification.
func (r *NotificationRepository) Save(ctx context.Context, notification *models.Notification) error {
	query := `
		INSERT INTO notifications (id, user_id, kind, title, body, workflow_id, execution_id, read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			body = EXCLUDED.body,
			read = EXCLUDED.read
	`

	_, err := r.db.ExecContext(ctx, query,
		notification.ID,
		notification.UserID,
		notification.Kind,
		notification.Title,
		notification.Body,
		notification.WorkflowID,
		notification.ExecutionID,
		notification.Read,
		notification.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save notification: %w", err)
	}

	return nil
}

// MarkRead marks a notification as read. Marking an already read
// notification again is a no-op.
func (r *NotificationRepository) MarkRead(ctx context.Context, id string) (*models.Notification, error) {
	result, err := r.db.ExecContext(ctx, "UPDATE notifications SET read = TRUE WHERE id = $1", id)
	if err != nil {
		return nil, fmt.Errorf("failed to mark notification read: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return nil, persistence.NewStoreError("MarkRead", "notification", id, persistence.ErrNotificationNotFound)
	}

	return r.GetByID(ctx, id)
}

func (r *NotificationRepository) scanNotification(scanner interface {
	Scan(dest ...any) error
}) (*models.Notification, error) {
	var notification models.Notification

	err := scanner.Scan(
		&notification.ID,
		&notification.UserID,
		&notification.Kind,
		&notification.Title,
		&notification.Body,
		&notification.WorkflowID,
		&notification.ExecutionID,
		&notification.Read,
		&notification.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &notification, nil
}
