package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/routinehq/routine/pkg/models"
)

func stepIDs(steps []*models.Step) []string {
	ids := make([]string, 0, len(steps))
	for _, step := range steps {
		ids = append(ids, step.ID)
	}

	return ids
}

func TestTopologicalSortLinear(t *testing.T) {
	wf := linearWorkflow("collect", "summarize", "publish")

	order, err := TopologicalSort(wf)
	require.NoError(t, err)
	assert.Equal(t, []string{"collect", "summarize", "publish"}, stepIDs(order))
}

func TestTopologicalSortForwardBranchesKeepDeclarationOrder(t *testing.T) {
	// Forward branches are compatible with the fall-through chain, so the
	// static preview order stays the declaration order.
	wf := linearWorkflow("a", "b", "c", "d")
	wf.PlanGraph = &models.PlanGraph{
		EntryStepID: "a",
		Branches: []*models.Branch{
			{ID: "br-skip", FromStepID: "a", ToStepID: "d"},
			{ID: "br-jump", FromStepID: "b", ToStepID: "d"},
		},
	}

	order, err := TopologicalSort(wf)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, stepIDs(order))
}

func TestTopologicalSortCycleErrors(t *testing.T) {
	wf := linearWorkflow("a", "b")
	wf.PlanGraph = &models.PlanGraph{
		EntryStepID: "a",
		Branches:    []*models.Branch{{ID: "br-1", FromStepID: "b", ToStepID: "a"}},
	}

	_, err := TopologicalSort(wf)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCyclicPlan)
}
