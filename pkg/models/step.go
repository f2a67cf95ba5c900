package models

// StepKind distinguishes how a step executes.
type StepKind string

const (
	// StepKindTransform runs a data-shaping action with no side effects.
	StepKindTransform StepKind = "transform"
	// StepKindCheckpoint pauses the run for human review before continuing.
	StepKindCheckpoint StepKind = "checkpoint"
	// StepKindArtifact renders output into a stored artifact.
	StepKindArtifact StepKind = "artifact"
	// StepKindConnectorAction invokes an external connector action.
	StepKindConnectorAction StepKind = "connector_action"
)

// Step is a single unit of work inside a workflow. InputTemplate is resolved
// against the accumulated run context just before execution; the resolved
// input is copied into the step result so later edits to the definition
// never rewrite history.
type Step struct {
	ID            string   `json:"id"             validate:"required"`
	Title         string   `json:"title"          validate:"required"`
	Description   string   `json:"description,omitempty"`
	Kind          StepKind `json:"kind"           validate:"required"`
	ActionID      string   `json:"action_id,omitempty"`
	InputTemplate string   `json:"input_template,omitempty"`
}

// RiskLevel classifies how much damage a proposed action could do, shown to
// reviewers on checkpoint requests.
type RiskLevel string

const (
	RiskLevelLow    RiskLevel = "low"
	RiskLevelMedium RiskLevel = "medium"
	RiskLevelHigh   RiskLevel = "high"
)

// Risk derives the review risk of executing this step. Connector actions
// touch external systems and rank high, artifacts persist output, transforms
// and checkpoints are inert.
func (s *Step) Risk() RiskLevel {
	switch s.Kind {
	case StepKindConnectorAction:
		return RiskLevelHigh
	case StepKindArtifact:
		return RiskLevelMedium
	default:
		return RiskLevelLow
	}
}
