package planner

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/routinehq/routine/pkg/models"
)

// Any workflow whose branches only point forward in declaration order is
// acyclic, and its topological order is the declaration order.
func TestPlanForwardBranchesNeverCycle(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		numSteps := rapid.IntRange(2, 12).Draw(rt, "numSteps")

		ids := make([]string, numSteps)
		for i := range ids {
			ids[i] = fmt.Sprintf("step-%d", i)
		}

		wf := linearWorkflow(ids...)
		graph := &models.PlanGraph{EntryStepID: ids[0]}

		numBranches := rapid.IntRange(0, numSteps*2).Draw(rt, "numBranches")
		for b := range numBranches {
			from := rapid.IntRange(0, numSteps-2).Draw(rt, fmt.Sprintf("from-%d", b))
			to := rapid.IntRange(from+1, numSteps-1).Draw(rt, fmt.Sprintf("to-%d", b))
			graph.Branches = append(graph.Branches, &models.Branch{
				ID:         fmt.Sprintf("br-%d", b),
				FromStepID: ids[from],
				ToStepID:   ids[to],
				Priority:   rapid.IntRange(0, 5).Draw(rt, fmt.Sprintf("prio-%d", b)),
			})
		}

		wf.PlanGraph = graph

		hasCycle, path := DetectCycle(wf)
		assert.False(rt, hasCycle, "forward branches produced cycle path %v", path)

		order, err := TopologicalSort(wf)
		require.NoError(rt, err)
		assert.Equal(rt, ids, stepIDs(order))
	})
}

// Adding any backward or self branch to a linear workflow creates a cycle,
// because the fall-through chain already connects every step forward.
func TestPlanBackwardBranchAlwaysCycles(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		numSteps := rapid.IntRange(2, 12).Draw(rt, "numSteps")

		ids := make([]string, numSteps)
		for i := range ids {
			ids[i] = fmt.Sprintf("step-%d", i)
		}

		wf := linearWorkflow(ids...)
		from := rapid.IntRange(1, numSteps-1).Draw(rt, "from")
		to := rapid.IntRange(0, from).Draw(rt, "to")
		wf.PlanGraph = &models.PlanGraph{
			EntryStepID: ids[0],
			Branches: []*models.Branch{
				{ID: "br-back", FromStepID: ids[from], ToStepID: ids[to]},
			},
		}

		hasCycle, path := DetectCycle(wf)
		require.True(rt, hasCycle)
		assert.NotEmpty(rt, path)
		assert.ErrorIs(rt, Validate(wf), ErrCyclicPlan)
	})
}
