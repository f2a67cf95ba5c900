// Package memory provides an in-memory persistence implementation, used as
// the default backend in tests and single-process development.
package memory

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/routinehq/routine/pkg/persistence"
)

// Persistence implements persistence.Persistence with mutex-guarded maps.
type Persistence struct {
	workflowRepo     *WorkflowRepository
	executionRepo    *ExecutionRepository
	checkpointRepo   *CheckpointRepository
	deadLetterRepo   *DeadLetterRepository
	changeLogRepo    *ChangeLogRepository
	notificationRepo *NotificationRepository
	artifactRepo     *ArtifactRepository
}

// NewPersistence creates an empty in-memory store.
func NewPersistence() *Persistence {
	return &Persistence{
		workflowRepo:     NewWorkflowRepository(),
		executionRepo:    NewExecutionRepository(),
		checkpointRepo:   NewCheckpointRepository(),
		deadLetterRepo:   NewDeadLetterRepository(),
		changeLogRepo:    NewChangeLogRepository(),
		notificationRepo: NewNotificationRepository(),
		artifactRepo:     NewArtifactRepository(),
	}
}

func (p *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return p.workflowRepo
}

func (p *Persistence) ExecutionRepository() persistence.ExecutionRepository {
	return p.executionRepo
}

func (p *Persistence) CheckpointRepository() persistence.CheckpointRepository {
	return p.checkpointRepo
}

func (p *Persistence) DeadLetterRepository() persistence.DeadLetterRepository {
	return p.deadLetterRepo
}

func (p *Persistence) ChangeLogRepository() persistence.ChangeLogRepository {
	return p.changeLogRepo
}

func (p *Persistence) NotificationRepository() persistence.NotificationRepository {
	return p.notificationRepo
}

func (p *Persistence) ArtifactRepository() persistence.ArtifactRepository {
	return p.artifactRepo
}

func (p *Persistence) HealthCheck(_ context.Context) error {
	return nil
}

func (p *Persistence) Close(_ context.Context) error {
	return nil
}

// clone deep-copies an entity through JSON so stored state never aliases
// caller-held pointers.
func clone[T any](value *T) *T {
	if value == nil {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		panic(fmt.Sprintf("memory store clone marshal: %v", err))
	}

	copied := new(T)
	if err := json.Unmarshal(data, copied); err != nil {
		panic(fmt.Sprintf("memory store clone unmarshal: %v", err))
	}

	return copied
}
