package models

import "time"

// DeadLetterStatus is the operator-facing state of a dead letter.
type DeadLetterStatus string

const (
	DeadLetterStatusPending  DeadLetterStatus = "pending"
	DeadLetterStatusResolved DeadLetterStatus = "resolved"
)

// DeadLetterEntry records a workflow run that failed through every retry.
// Resolving an entry acknowledges it; it never re-runs the workflow.
type DeadLetterEntry struct {
	ID          string           `json:"id"`
	UserID      string           `json:"user_id"`
	WorkflowID  string           `json:"workflow_id"`
	ExecutionID string           `json:"execution_id"`
	Status      DeadLetterStatus `json:"status"`
	Reason      string           `json:"reason,omitempty"`
	Attempts    int              `json:"attempts"`
	CreatedAt   time.Time        `json:"created_at"`
	ResolvedAt  *time.Time       `json:"resolved_at,omitempty"`
	ResolvedBy  string           `json:"resolved_by,omitempty"`
}
