// Package persistence provides the data storage abstraction for workflows,
// executions, checkpoints and the records around them.
package persistence

import (
	"context"
	"time"

	"github.com/routinehq/routine/pkg/models"
)

// Persistence bundles per-entity repositories behind one storage backend.
type Persistence interface {
	WorkflowRepository() WorkflowRepository
	ExecutionRepository() ExecutionRepository
	CheckpointRepository() CheckpointRepository
	DeadLetterRepository() DeadLetterRepository
	ChangeLogRepository() ChangeLogRepository
	NotificationRepository() NotificationRepository
	ArtifactRepository() ArtifactRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// ListWorkflowsOptions filters and paginates workflow listings.
type ListWorkflowsOptions struct {
	UserID    string
	Status    *models.WorkflowStatus
	Limit     int
	Offset    int
	SortBy    string
	SortOrder string
}

// WorkflowListResult carries one page of workflows.
type WorkflowListResult struct {
	Workflows   []*models.Workflow
	TotalCount  int64
	HasNextPage bool
}

// WorkflowRepository stores workflow definitions. GetByID returns (nil, nil)
// when the id is unknown; callers decide whether that is an error.
type WorkflowRepository interface {
	List(ctx context.Context, opts ListWorkflowsOptions) (*WorkflowListResult, error)
	GetByID(ctx context.Context, id string) (*models.Workflow, error)
	Save(ctx context.Context, workflow *models.Workflow) error
	Delete(ctx context.Context, id string) error
}

// ListExecutionsOptions filters execution listings.
type ListExecutionsOptions struct {
	UserID     string
	WorkflowID string
	Status     *models.ExecutionStatus
	Limit      int
	Offset     int
}

// ExecutionRepository stores run records, newest first on listing.
type ExecutionRepository interface {
	List(ctx context.Context, opts ListExecutionsOptions) ([]*models.Execution, error)
	GetByID(ctx context.Context, id string) (*models.Execution, error)
	Save(ctx context.Context, execution *models.Execution) error
}

// CheckpointResolution is the state applied when a pending checkpoint is
// resolved.
type CheckpointResolution struct {
	Status          models.CheckpointStatus
	Decision        models.CheckpointDecision
	EditedAction    *models.ProposedAction
	RejectionReason string
	ResolvedBy      string
	ResolvedAt      time.Time
}

// CheckpointRepository stores checkpoint requests. Resolve performs the
// pending-to-resolved transition atomically: it fails with
// ErrCheckpointAlreadyResolved when the request is no longer pending, so two
// racing reviewers cannot both win.
type CheckpointRepository interface {
	ListPending(ctx context.Context, userID string) ([]*models.CheckpointRequest, error)
	GetByID(ctx context.Context, id string) (*models.CheckpointRequest, error)
	Save(ctx context.Context, request *models.CheckpointRequest) error
	Resolve(ctx context.Context, id string, resolution CheckpointResolution) (*models.CheckpointRequest, error)
}

// DeadLetterRepository stores terminally failed runs awaiting an operator.
// MarkResolved is atomic in the same way checkpoint resolution is.
type DeadLetterRepository interface {
	List(ctx context.Context, userID string, status *models.DeadLetterStatus) ([]*models.DeadLetterEntry, error)
	GetByID(ctx context.Context, id string) (*models.DeadLetterEntry, error)
	Save(ctx context.Context, entry *models.DeadLetterEntry) error
	MarkResolved(ctx context.Context, id, resolvedBy string, at time.Time) (*models.DeadLetterEntry, error)
}

// ChangeLogRepository stores the append-only workflow change history.
// ListByWorkflow returns newest first.
type ChangeLogRepository interface {
	ListByWorkflow(ctx context.Context, workflowID string, limit int) ([]*models.ChangeEntry, error)
	GetByID(ctx context.Context, id string) (*models.ChangeEntry, error)
	Append(ctx context.Context, entry *models.ChangeEntry) error
}

// NotificationRepository stores user notifications.
type NotificationRepository interface {
	List(ctx context.Context, userID string, unreadOnly bool) ([]*models.Notification, error)
	GetByID(ctx context.Context, id string) (*models.Notification, error)
	Save(ctx context.Context, notification *models.Notification) error
	MarkRead(ctx context.Context, id string) (*models.Notification, error)
}

// ArtifactRepository stores step-produced artifacts.
type ArtifactRepository interface {
	List(ctx context.Context, userID, executionID string) ([]*models.Artifact, error)
	GetByID(ctx context.Context, id string) (*models.Artifact, error)
	Save(ctx context.Context, artifact *models.Artifact) error
}
