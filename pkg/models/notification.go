package models

import "time"

// NotificationKind classifies what a notification is about.
type NotificationKind string

const (
	NotificationCheckpointPending NotificationKind = "checkpoint_pending"
	NotificationApprovalRequired  NotificationKind = "approval_required"
	NotificationRunFailed         NotificationKind = "run_failed"
	NotificationRunCompleted      NotificationKind = "run_completed"
	NotificationDeadLetter        NotificationKind = "dead_letter"
)

// Notification is a user-facing message emitted by the engine. Marking it
// read is the only mutation.
type Notification struct {
	ID          string           `json:"id"`
	UserID      string           `json:"user_id"`
	Kind        NotificationKind `json:"kind"`
	Title       string           `json:"title"`
	Body        string           `json:"body,omitempty"`
	WorkflowID  string           `json:"workflow_id,omitempty"`
	ExecutionID string           `json:"execution_id,omitempty"`
	Read        bool             `json:"read"`
	CreatedAt   time.Time        `json:"created_at"`
}
