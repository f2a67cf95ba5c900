// Package dlq holds terminally failed runs until an operator resolves them.
package dlq

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/routinehq/routine/pkg/eventbus"
	"github.com/routinehq/routine/pkg/events"
	"github.com/routinehq/routine/pkg/models"
	"github.com/routinehq/routine/pkg/persistence"
)

// Service pushes terminally failed runs onto the dead letter queue and
// serves operator resolution. Resolving an entry acknowledges it and never
// re-runs the workflow; resubmission is an explicit fresh run.
type Service struct {
	deadLetters   persistence.DeadLetterRepository
	notifications persistence.NotificationRepository
	eventBus      eventbus.EventPublisher
	logger        *slog.Logger
}

// NewService creates a dead letter queue service. The event bus may be nil
// when no bus is wired, e.g. in isolated tests.
func NewService(
	deadLetters persistence.DeadLetterRepository,
	notifications persistence.NotificationRepository,
	eventBus eventbus.EventPublisher,
	logger *slog.Logger,
) *Service {
	return &Service{
		deadLetters:   deadLetters,
		notifications: notifications,
		eventBus:      eventBus,
		logger:        logger.With("module", "dlq"),
	}
}

// PushParams describes a run that failed through every retry.
type PushParams struct {
	UserID       string
	WorkflowID   string
	WorkflowName string
	ExecutionID  string
	Reason       string
	Attempts     int
}

// Push records the failed run, notifies the owner and publishes a
// deadletter.created event.
func (s *Service) Push(ctx context.Context, params PushParams) (*models.DeadLetterEntry, error) {
	entry := &models.DeadLetterEntry{
		ID:          fmt.Sprintf("dlq-%s", uuid.New().String()[:8]),
		UserID:      params.UserID,
		WorkflowID:  params.WorkflowID,
		ExecutionID: params.ExecutionID,
		Status:      models.DeadLetterStatusPending,
		Reason:      params.Reason,
		Attempts:    params.Attempts,
		CreatedAt:   time.Now().UTC(),
	}

	if err := s.deadLetters.Save(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to save dead letter entry: %w", err)
	}

	s.notify(ctx, params.WorkflowName, entry)
	s.publish(ctx, entry)

	s.logger.InfoContext(ctx, "Run pushed to dead letter queue",
		"dead_letter_id", entry.ID,
		"workflow_id", entry.WorkflowID,
		"attempts", entry.Attempts)

	return entry, nil
}

// List returns dead letters for the user, optionally filtered by status.
// Empty userID lists all users.
func (s *Service) List(ctx context.Context, userID string, status *models.DeadLetterStatus) ([]*models.DeadLetterEntry, error) {
	return s.deadLetters.List(ctx, userID, status)
}

// Get returns an entry by id, nil when unknown.
func (s *Service) Get(ctx context.Context, id string) (*models.DeadLetterEntry, error) {
	return s.deadLetters.GetByID(ctx, id)
}

// MarkResolved acknowledges a pending entry. Single-use: resolving an
// already-resolved entry fails with the repository's conflict error.
func (s *Service) MarkResolved(ctx context.Context, id, resolvedBy string) (*models.DeadLetterEntry, error) {
	entry, err := s.deadLetters.MarkResolved(ctx, id, resolvedBy, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Dead letter resolved",
		"dead_letter_id", id,
		"resolved_by", resolvedBy)

	return entry, nil
}

func (s *Service) notify(ctx context.Context, workflowName string, entry *models.DeadLetterEntry) {
	name := workflowName
	if name == "" {
		name = entry.WorkflowID
	}

	notification := &models.Notification{
		ID:          fmt.Sprintf("ntf-%s", uuid.New().String()[:8]),
		UserID:      entry.UserID,
		Kind:        models.NotificationDeadLetter,
		Title:       fmt.Sprintf("Workflow %q failed after %d attempts", name, entry.Attempts),
		Body:        entry.Reason,
		WorkflowID:  entry.WorkflowID,
		ExecutionID: entry.ExecutionID,
		CreatedAt:   entry.CreatedAt,
	}

	if err := s.notifications.Save(ctx, notification); err != nil {
		s.logger.ErrorContext(ctx, "Failed to save dead letter notification",
			"error", err,
			"dead_letter_id", entry.ID)
	}
}

func (s *Service) publish(ctx context.Context, entry *models.DeadLetterEntry) {
	if s.eventBus == nil {
		return
	}

	event := &events.DeadLetterCreated{
		BaseEvent:    events.NewBaseEvent(events.DeadLetterCreatedEvent, entry.WorkflowID),
		DeadLetterID: entry.ID,
		ExecutionID:  entry.ExecutionID,
		UserID:       entry.UserID,
		Reason:       entry.Reason,
		Attempts:     entry.Attempts,
	}

	if err := s.eventBus.Publish(ctx, entry.WorkflowID, event); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish dead letter event",
			"error", err,
			"dead_letter_id", entry.ID)
	}
}
