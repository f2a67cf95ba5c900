package planner

import (
	"fmt"

	"github.com/routinehq/routine/pkg/models"
)

// TopologicalSort returns the steps in a static dependency order over the
// plan's effective edges, breaking ties by declaration order. This is the
// preview ordering shown to users; the runtime path is branch-driven and may
// visit fewer steps. Returns ErrCyclicPlan when no ordering exists.
func TopologicalSort(wf *models.Workflow) ([]*models.Step, error) {
	adjacency := edges(wf)

	indegree := make(map[string]int, len(wf.Steps))
	for _, step := range wf.Steps {
		indegree[step.ID] = 0
	}

	for _, targets := range adjacency {
		for _, to := range targets {
			indegree[to]++
		}
	}

	order := make([]*models.Step, 0, len(wf.Steps))
	placed := make(map[string]bool, len(wf.Steps))

	for len(order) < len(wf.Steps) {
		// Scanning declaration order picks the earliest ready step, which
		// keeps ties deterministic.
		var next *models.Step

		for _, step := range wf.Steps {
			if !placed[step.ID] && indegree[step.ID] == 0 {
				next = step

				break
			}
		}

		if next == nil {
			_, path := DetectCycle(wf)

			return nil, fmt.Errorf("%w: %v", ErrCyclicPlan, path)
		}

		placed[next.ID] = true
		order = append(order, next)

		for _, to := range adjacency[next.ID] {
			indegree[to]--
		}
	}

	return order, nil
}
