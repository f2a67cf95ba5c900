// Package models defines the core domain models for workflow automation
package models

import "time"

// WorkflowStatus represents the lifecycle state of a workflow.
type WorkflowStatus string

const (
	WorkflowStatusDraft    WorkflowStatus = "draft"    // Editable, not triggerable
	WorkflowStatusReady    WorkflowStatus = "ready"    // Valid and triggerable
	WorkflowStatusPaused   WorkflowStatus = "paused"   // Triggers inert, manual runs allowed
	WorkflowStatusArchived WorkflowStatus = "archived" // Soft-deleted, kept for history
)

// TriggerType identifies how a run was started.
type TriggerType string

const (
	TriggerTypeManual   TriggerType = "manual"
	TriggerTypeSchedule TriggerType = "schedule"
	TriggerTypeEvent    TriggerType = "event"
)

// Workflow is a user-defined automation: an ordered list of steps plus a
// derived plan graph describing branching between them. Workflows are only
// mutated through the engine, which re-derives the plan graph and appends a
// change entry on every save.
type Workflow struct {
	ID           string         `json:"id"`
	UserID       string         `json:"user_id"                 validate:"required"`
	Name         string         `json:"name"                    validate:"required,min=3"`
	Description  string         `json:"description"`
	SourcePrompt string         `json:"source_prompt,omitempty"`
	Status       WorkflowStatus `json:"status"                  validate:"required"`
	Trigger      *TriggerSpec   `json:"trigger,omitempty"`
	Steps        []*Step        `json:"steps"`
	PlanGraph    *PlanGraph     `json:"plan_graph,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	ArchivedAt   *time.Time     `json:"archived_at,omitempty"`
}

// FindStep returns the step with the given id, or nil.
func (w *Workflow) FindStep(stepID string) *Step {
	for _, step := range w.Steps {
		if step.ID == stepID {
			return step
		}
	}

	return nil
}

// StepAfter returns the step declared immediately after stepID, or nil when
// stepID is last or unknown. Declaration order is the implicit linear edge
// used when no branch matches.
func (w *Workflow) StepAfter(stepID string) *Step {
	for i, step := range w.Steps {
		if step.ID == stepID && i+1 < len(w.Steps) {
			return w.Steps[i+1]
		}
	}

	return nil
}

// Runnable reports whether the workflow may execute at all. Archived
// workflows never run; drafts and paused workflows still accept manual runs.
func (w *Workflow) Runnable() bool {
	return w.Status != WorkflowStatusArchived
}

// Triggerable reports whether schedule and event triggers may fire. Only
// ready workflows with an enabled trigger participate.
func (w *Workflow) Triggerable() bool {
	return w.Status == WorkflowStatusReady && w.Trigger != nil && w.Trigger.Enabled
}
