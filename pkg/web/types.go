// Package web provides HTTP request and response types for the workflow API.
package web

import "github.com/routinehq/routine/pkg/models"

// SaveWorkflowRequest represents the request body for creating or updating a
// workflow definition. The engine derives the plan graph and stamps identity
// fields, so the body carries only the authored definition.
type SaveWorkflowRequest struct {
	Name        string                `json:"name"                  validate:"required,min=3"`
	Description string                `json:"description,omitempty"`
	Status      models.WorkflowStatus `json:"status,omitempty"      validate:"omitempty,oneof=draft ready paused"`
	Trigger     *models.TriggerSpec   `json:"trigger,omitempty"`
	Steps       []*models.Step        `json:"steps"`
	PlanGraph   *models.PlanGraph     `json:"plan_graph,omitempty"`
}

// CompileWorkflowRequest represents the request body for compiling a natural
// language prompt into a draft workflow.
type CompileWorkflowRequest struct {
	Prompt string `json:"prompt" validate:"required"`
}

// RunWorkflowRequest represents the optional request body for starting a run.
type RunWorkflowRequest struct {
	TriggerData map[string]any `json:"trigger_data,omitempty"`
}

// ResolveCheckpointRequest represents the reviewer's verdict on a pending
// checkpoint. EditedAction is only consulted for edit decisions and
// RejectionReason only for rejections.
type ResolveCheckpointRequest struct {
	Decision        models.CheckpointDecision `json:"decision"                   validate:"required,oneof=approve reject edit"`
	EditedAction    *models.ProposedAction    `json:"edited_action,omitempty"`
	RejectionReason string                    `json:"rejection_reason,omitempty"`
}
