package models

import "time"

// CheckpointStatus is the review state of a checkpoint request.
type CheckpointStatus string

const (
	CheckpointStatusPending  CheckpointStatus = "pending"
	CheckpointStatusApproved CheckpointStatus = "approved"
	CheckpointStatusRejected CheckpointStatus = "rejected"
	CheckpointStatusEdited   CheckpointStatus = "edited"
)

// CheckpointDecision is the reviewer's verdict on a pending checkpoint.
type CheckpointDecision string

const (
	DecisionApprove CheckpointDecision = "approve"
	DecisionReject  CheckpointDecision = "reject"
	DecisionEdit    CheckpointDecision = "edit"
)

// ProposedAction describes what the workflow intends to do next, in terms a
// reviewer can judge without reading the workflow definition.
type ProposedAction struct {
	Title         string `json:"title"`
	Description   string `json:"description,omitempty"`
	ActionID      string `json:"action_id,omitempty"`
	InputTemplate string `json:"input_template,omitempty"`
}

// CheckpointRequest pauses an execution at a checkpoint step until a human
// resolves it. PreviousStepResults and Context are snapshots frozen at
// creation; resume replays exactly that state. A request resolves exactly
// once.
type CheckpointRequest struct {
	ID                  string             `json:"id"`
	UserID              string             `json:"user_id"`
	WorkflowID          string             `json:"workflow_id"`
	ExecutionID         string             `json:"execution_id"`
	StepID              string             `json:"step_id"`
	RiskLevel           RiskLevel          `json:"risk_level"`
	RiskSummary         string             `json:"risk_summary,omitempty"`
	ProposedAction      *ProposedAction    `json:"proposed_action,omitempty"`
	PreviousStepResults []StepResult       `json:"previous_step_results,omitempty"`
	Context             *RunContext        `json:"context,omitempty"`
	Status              CheckpointStatus   `json:"status"`
	Decision            CheckpointDecision `json:"decision,omitempty"`
	EditedAction        *ProposedAction    `json:"edited_action,omitempty"`
	RejectionReason     string             `json:"rejection_reason,omitempty"`
	ResolvedBy          string             `json:"resolved_by,omitempty"`
	CreatedAt           time.Time          `json:"created_at"`
	ResolvedAt          *time.Time         `json:"resolved_at,omitempty"`
}

// Resolved reports whether a decision has been recorded.
func (c *CheckpointRequest) Resolved() bool {
	return c.Status != CheckpointStatusPending
}
