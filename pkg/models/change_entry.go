package models

import "time"

// ChangeType classifies a workflow mutation.
type ChangeType string

const (
	ChangeTypeCreated  ChangeType = "created"
	ChangeTypeUpdated  ChangeType = "updated"
	ChangeTypeArchived ChangeType = "archived"
)

// WorkflowSnapshot freezes the editable parts of a workflow at save time.
type WorkflowSnapshot struct {
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Trigger     *TriggerSpec `json:"trigger,omitempty"`
	Steps       []*Step      `json:"steps,omitempty"`
	Branches    []*Branch    `json:"branches,omitempty"`
}

// ChangeEntry is one append-only record in a workflow's change history.
type ChangeEntry struct {
	ID         string            `json:"id"`
	WorkflowID string            `json:"workflow_id"`
	UserID     string            `json:"user_id"`
	ChangeType ChangeType        `json:"change_type"`
	Summary    string            `json:"summary,omitempty"`
	Snapshot   *WorkflowSnapshot `json:"snapshot,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

// PlanDiff is the structural difference between two change entries, computed
// by id with content equality, so pure reordering reports no change.
type PlanDiff struct {
	AddedStepIDs     []string `json:"added_step_ids,omitempty"`
	RemovedStepIDs   []string `json:"removed_step_ids,omitempty"`
	ChangedStepIDs   []string `json:"changed_step_ids,omitempty"`
	AddedBranchIDs   []string `json:"added_branch_ids,omitempty"`
	RemovedBranchIDs []string `json:"removed_branch_ids,omitempty"`
	ChangedBranchIDs []string `json:"changed_branch_ids,omitempty"`
}

// Empty reports whether the diff records no differences.
func (d *PlanDiff) Empty() bool {
	return len(d.AddedStepIDs) == 0 && len(d.RemovedStepIDs) == 0 &&
		len(d.ChangedStepIDs) == 0 && len(d.AddedBranchIDs) == 0 &&
		len(d.RemovedBranchIDs) == 0 && len(d.ChangedBranchIDs) == 0
}
