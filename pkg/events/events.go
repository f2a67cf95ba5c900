// Package events defines event types and structures for workflow lifecycle notifications.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/routinehq/routine/pkg/models"
)

type EventType string

// Kafka topics.
const Topic = "routine.events"                       // Topic for run lifecycle events
const ExternalEventTopic = "routine.external.events" // Topic for inbound external events

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Run lifecycle events.
	RunRequestedEvent EventType = "run.requested"
	RunStartedEvent   EventType = "run.started"
	RunCompletedEvent EventType = "run.completed"
	RunFailedEvent    EventType = "run.failed"
	RunPausedEvent    EventType = "run.paused"
	RunResumedEvent   EventType = "run.resumed"
	RunCancelledEvent EventType = "run.cancelled"

	// Review events.
	CheckpointCreatedEvent  EventType = "checkpoint.created"
	CheckpointResolvedEvent EventType = "checkpoint.resolved"

	// Failure handling events.
	DeadLetterCreatedEvent EventType = "deadletter.created"

	// Definition lifecycle events.
	WorkflowSavedEvent    EventType = "workflow.saved"
	WorkflowArchivedEvent EventType = "workflow.archived"
)

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	WorkflowID string         `json:"workflow_id"`
	WorkerID   string         `json:"worker_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

func NewBaseEvent(eventType EventType, workflowID string) BaseEvent {
	return BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
		Metadata:   make(map[string]any),
	}
}

// RunRequested asks a worker to execute a workflow in the background.
type RunRequested struct {
	BaseEvent

	UserID      string             `json:"user_id"`
	TriggerType models.TriggerType `json:"trigger_type"`
	TriggerData map[string]any     `json:"trigger_data,omitempty"`
	MaxAttempts int                `json:"max_attempts,omitempty"`
}

func (r RunRequested) GetType() EventType {
	return RunRequestedEvent
}

type RunStarted struct {
	BaseEvent

	ExecutionID string             `json:"execution_id"`
	UserID      string             `json:"user_id"`
	TriggerType models.TriggerType `json:"trigger_type"`
	Attempt     int                `json:"attempt"`
}

func (r RunStarted) GetType() EventType {
	return RunStartedEvent
}

type RunCompleted struct {
	BaseEvent

	ExecutionID   string `json:"execution_id"`
	UserID        string `json:"user_id"`
	StepsExecuted int    `json:"steps_executed"`
	DurationMs    int64  `json:"duration_ms"`
}

func (r RunCompleted) GetType() EventType {
	return RunCompletedEvent
}

type RunFailed struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	UserID      string `json:"user_id"`
	Error       string `json:"error"`
	Attempt     int    `json:"attempt"`
	WillRetry   bool   `json:"will_retry"`
}

func (r RunFailed) GetType() EventType {
	return RunFailedEvent
}

// RunPaused is emitted when a run suspends awaiting human review.
type RunPaused struct {
	BaseEvent

	ExecutionID  string                 `json:"execution_id"`
	UserID       string                 `json:"user_id"`
	Status       models.ExecutionStatus `json:"status"`
	StepID       string                 `json:"step_id"`
	CheckpointID string                 `json:"checkpoint_id,omitempty"`
}

func (r RunPaused) GetType() EventType {
	return RunPausedEvent
}

type RunResumed struct {
	BaseEvent

	ExecutionID string                    `json:"execution_id"`
	ResolvedBy  string                    `json:"resolved_by"`
	Decision    models.CheckpointDecision `json:"decision"`
}

func (r RunResumed) GetType() EventType {
	return RunResumedEvent
}

type RunCancelled struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	CancelledBy string `json:"cancelled_by"`
	Reason      string `json:"reason,omitempty"`
}

func (r RunCancelled) GetType() EventType {
	return RunCancelledEvent
}

type CheckpointCreated struct {
	BaseEvent

	CheckpointID string           `json:"checkpoint_id"`
	ExecutionID  string           `json:"execution_id"`
	UserID       string           `json:"user_id"`
	StepID       string           `json:"step_id"`
	RiskLevel    models.RiskLevel `json:"risk_level"`
}

func (c CheckpointCreated) GetType() EventType {
	return CheckpointCreatedEvent
}

type CheckpointResolved struct {
	BaseEvent

	CheckpointID string                    `json:"checkpoint_id"`
	ExecutionID  string                    `json:"execution_id"`
	Decision     models.CheckpointDecision `json:"decision"`
	ResolvedBy   string                    `json:"resolved_by"`
}

func (c CheckpointResolved) GetType() EventType {
	return CheckpointResolvedEvent
}

type DeadLetterCreated struct {
	BaseEvent

	DeadLetterID string `json:"dead_letter_id"`
	ExecutionID  string `json:"execution_id"`
	UserID       string `json:"user_id"`
	Reason       string `json:"reason"`
	Attempts     int    `json:"attempts"`
}

func (d DeadLetterCreated) GetType() EventType {
	return DeadLetterCreatedEvent
}

type WorkflowSaved struct {
	BaseEvent

	UserID        string            `json:"user_id"`
	ChangeType    models.ChangeType `json:"change_type"`
	ChangeEntryID string            `json:"change_entry_id,omitempty"`
}

func (w WorkflowSaved) GetType() EventType {
	return WorkflowSavedEvent
}

type WorkflowArchived struct {
	BaseEvent

	UserID     string `json:"user_id"`
	ArchivedBy string `json:"archived_by"`
}

func (w WorkflowArchived) GetType() EventType {
	return WorkflowArchivedEvent
}
