package models

import "time"

// ExecutionStatus represents the state of one workflow run.
type ExecutionStatus string

const (
	ExecutionStatusRunning            ExecutionStatus = "running"
	ExecutionStatusCompleted          ExecutionStatus = "completed"
	ExecutionStatusFailed             ExecutionStatus = "failed"
	ExecutionStatusApprovalRequired   ExecutionStatus = "approval_required"
	ExecutionStatusCheckpointRequired ExecutionStatus = "checkpoint_required"
	ExecutionStatusCancelled          ExecutionStatus = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
// Paused states (approval_required, checkpoint_required) are resumable.
func (s ExecutionStatus) Terminal() bool {
	switch s {
	case ExecutionStatusCompleted, ExecutionStatusFailed, ExecutionStatusCancelled:
		return true
	default:
		return false
	}
}

// Paused reports whether the run is suspended awaiting a human.
func (s ExecutionStatus) Paused() bool {
	return s == ExecutionStatusApprovalRequired || s == ExecutionStatusCheckpointRequired
}

// StepResultStatus is the outcome of a single step inside an execution.
type StepResultStatus string

const (
	StepResultStatusSucceeded StepResultStatus = "succeeded"
	StepResultStatusFailed    StepResultStatus = "failed"
	StepResultStatusPaused    StepResultStatus = "paused"
)

// StepResult is the immutable record of one executed step. It copies the
// step title and resolved input at execution time, so workflow edits never
// rewrite past runs.
type StepResult struct {
	StepID        string           `json:"step_id"`
	Title         string           `json:"title"`
	Status        StepResultStatus `json:"status"`
	ResolvedInput string           `json:"resolved_input,omitempty"`
	Summary       string           `json:"summary,omitempty"`
	Output        map[string]any   `json:"output,omitempty"`
	ErrorMessage  string           `json:"error_message,omitempty"`
	StartedAt     time.Time        `json:"started_at"`
	FinishedAt    time.Time        `json:"finished_at"`
}

// Execution is the record of one run of a workflow. StepResults append in
// execution order; the run is finalized exactly once.
type Execution struct {
	ID           string          `json:"id"`
	WorkflowID   string          `json:"workflow_id"`
	UserID       string          `json:"user_id"`
	TriggerType  TriggerType     `json:"trigger_type"`
	Status       ExecutionStatus `json:"status"`
	StepResults  []StepResult    `json:"step_results,omitempty"`
	Context      *RunContext     `json:"context,omitempty"`
	Attempt      int             `json:"attempt,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
	StartedAt    time.Time       `json:"started_at"`
	FinishedAt   *time.Time      `json:"finished_at,omitempty"`
	DurationMs   int64           `json:"duration_ms,omitempty"`
}

// AppendResult records a completed step.
func (e *Execution) AppendResult(result StepResult) {
	e.StepResults = append(e.StepResults, result)
}

// Pause suspends the run awaiting review. The execution stays open so a
// later resolution can resume it.
func (e *Execution) Pause(status ExecutionStatus) {
	if e.FinishedAt == nil && status.Paused() {
		e.Status = status
	}
}

// Finalize sets a terminal status once and stamps duration. Calling it on an
// already finished execution is a no-op so retries cannot double-finalize.
func (e *Execution) Finalize(status ExecutionStatus, now time.Time) {
	if e.FinishedAt != nil || !status.Terminal() {
		return
	}

	e.Status = status
	finished := now.UTC()
	e.FinishedAt = &finished
	e.DurationMs = finished.Sub(e.StartedAt).Milliseconds()
}
