package models

import "time"

// Artifact is a durable output produced by an artifact step, e.g. a rendered
// report or digest.
type Artifact struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	WorkflowID  string    `json:"workflow_id"`
	ExecutionID string    `json:"execution_id"`
	StepID      string    `json:"step_id"`
	Name        string    `json:"name"`
	ContentType string    `json:"content_type,omitempty"`
	Content     []byte    `json:"content,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
