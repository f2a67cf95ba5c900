// Package planner derives and validates the execution plan of a workflow:
// the branch graph over its steps, cycle detection, static ordering and
// runtime branch selection.
package planner

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/routinehq/routine/pkg/models"
)

var (
	// ErrCyclicPlan marks a plan graph whose edges form a cycle.
	ErrCyclicPlan = errors.New("plan graph contains a cycle")
	// ErrInvalidPlan marks structural problems other than cycles.
	ErrInvalidPlan = errors.New("invalid plan graph")
)

// EnsurePlanGraph returns the workflow's plan graph, deriving one when it is
// absent and normalizing it when present: the entry step defaults to the
// first declared step and branches are ordered by (source step, priority),
// keeping insertion order between equal priorities.
func EnsurePlanGraph(wf *models.Workflow) *models.PlanGraph {
	graph := wf.PlanGraph
	if graph == nil {
		graph = &models.PlanGraph{}
	}

	if graph.EntryStepID == "" && len(wf.Steps) > 0 {
		graph.EntryStepID = wf.Steps[0].ID
	}

	sort.SliceStable(graph.Branches, func(i, j int) bool {
		left, right := graph.Branches[i], graph.Branches[j]
		if left.FromStepID != right.FromStepID {
			return left.FromStepID < right.FromStepID
		}

		return left.Priority < right.Priority
	})

	return graph
}

// Validate checks the workflow's plan for structural soundness: unique step
// ids, branch endpoints that exist, well-formed branch conditions and an
// acyclic graph. It is called on every save so a malformed plan is rejected
// before it can reach execution.
func Validate(wf *models.Workflow) error {
	graph := EnsurePlanGraph(wf)

	seen := make(map[string]bool, len(wf.Steps))
	for _, step := range wf.Steps {
		if step.ID == "" {
			return fmt.Errorf("%w: step %q has no id", ErrInvalidPlan, step.Title)
		}

		if seen[step.ID] {
			return fmt.Errorf("%w: duplicate step id %q", ErrInvalidPlan, step.ID)
		}

		seen[step.ID] = true
	}

	if graph.EntryStepID != "" && !seen[graph.EntryStepID] {
		return fmt.Errorf("%w: entry step %q does not exist", ErrInvalidPlan, graph.EntryStepID)
	}

	for _, branch := range graph.Branches {
		if !seen[branch.FromStepID] {
			return fmt.Errorf("%w: branch %q starts at unknown step %q", ErrInvalidPlan, branch.ID, branch.FromStepID)
		}

		if !seen[branch.ToStepID] {
			return fmt.Errorf("%w: branch %q targets unknown step %q", ErrInvalidPlan, branch.ID, branch.ToStepID)
		}

		if branch.Condition != nil {
			if err := branch.Condition.Validate(); err != nil {
				return fmt.Errorf("%w: branch %q: %v", ErrInvalidPlan, branch.ID, err)
			}
		}
	}

	if hasCycle, path := DetectCycle(wf); hasCycle {
		return fmt.Errorf("%w: %s", ErrCyclicPlan, strings.Join(path, " -> "))
	}

	return nil
}

// edges builds the effective adjacency of the plan: explicit branches plus
// the implicit fall-through edge from each step to its declaration
// successor. Duplicate edges collapse.
func edges(wf *models.Workflow) map[string][]string {
	out := make(map[string][]string, len(wf.Steps))
	seen := make(map[string]map[string]bool, len(wf.Steps))

	add := func(from, to string) {
		if seen[from] == nil {
			seen[from] = make(map[string]bool)
		}

		if seen[from][to] {
			return
		}

		seen[from][to] = true
		out[from] = append(out[from], to)
	}

	for i, step := range wf.Steps {
		if i+1 < len(wf.Steps) {
			add(step.ID, wf.Steps[i+1].ID)
		}
	}

	if wf.PlanGraph != nil {
		for _, branch := range wf.PlanGraph.Branches {
			add(branch.FromStepID, branch.ToStepID)
		}
	}

	return out
}
