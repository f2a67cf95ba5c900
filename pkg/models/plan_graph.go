package models

// PlanGraph is the derived execution graph of a workflow: an entry step plus
// conditional branches between steps. Steps without a matching branch fall
// through to the next step in declaration order, so a workflow with no
// branches at all is a plain linear plan.
type PlanGraph struct {
	EntryStepID string    `json:"entry_step_id"`
	Branches    []*Branch `json:"branches,omitempty"`
}

// BranchesFrom returns the branches leaving fromStepID in stored order.
func (g *PlanGraph) BranchesFrom(fromStepID string) []*Branch {
	var out []*Branch

	for _, branch := range g.Branches {
		if branch.FromStepID == fromStepID {
			out = append(out, branch)
		}
	}

	return out
}

// Branch is a conditional edge in the plan graph. Branches leaving the same
// step are evaluated in ascending priority, first match wins; equal
// priorities keep insertion order.
type Branch struct {
	ID         string     `json:"id"           validate:"required"`
	FromStepID string     `json:"from_step_id" validate:"required"`
	ToStepID   string     `json:"to_step_id"   validate:"required"`
	Label      string     `json:"label,omitempty"`
	Priority   int        `json:"priority"`
	Condition  *Condition `json:"condition,omitempty"`
}
