package planner

import (
	"fmt"
	"sort"

	"github.com/routinehq/routine/pkg/models"
)

// NextStep picks the step to run after fromStepID. Branches leaving the step
// are tried in ascending priority (insertion order between equals), first
// match wins; an unconditional branch always matches. When nothing matches,
// execution falls through to the next step in declaration order. A nil step
// with nil error means the run is complete.
func NextStep(wf *models.Workflow, fromStepID string, rctx *models.RunContext) (*models.Step, error) {
	branches := candidateBranches(wf, fromStepID)

	for _, branch := range branches {
		if branch.Condition == nil {
			return targetStep(wf, branch)
		}

		matched, err := branch.Condition.Matches(rctx)
		if err != nil {
			return nil, fmt.Errorf("evaluating branch %q: %w", branch.ID, err)
		}

		if matched {
			return targetStep(wf, branch)
		}
	}

	return wf.StepAfter(fromStepID), nil
}

func candidateBranches(wf *models.Workflow, fromStepID string) []*models.Branch {
	if wf.PlanGraph == nil {
		return nil
	}

	branches := wf.PlanGraph.BranchesFrom(fromStepID)
	sort.SliceStable(branches, func(i, j int) bool {
		return branches[i].Priority < branches[j].Priority
	})

	return branches
}

func targetStep(wf *models.Workflow, branch *models.Branch) (*models.Step, error) {
	step := wf.FindStep(branch.ToStepID)
	if step == nil {
		return nil, fmt.Errorf("%w: branch %q targets unknown step %q", ErrInvalidPlan, branch.ID, branch.ToStepID)
	}

	return step, nil
}
