package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/routinehq/routine/pkg/models"
)

func TestDetectCycleLinearWorkflow(t *testing.T) {
	// Workflows without branches only have fall-through edges, which cannot
	// form a cycle.
	wf := linearWorkflow("collect", "summarize", "publish")

	hasCycle, path := DetectCycle(wf)
	assert.False(t, hasCycle)
	assert.Nil(t, path)
}

func TestDetectCycleBackEdge(t *testing.T) {
	wf := linearWorkflow("a", "b", "c")
	wf.PlanGraph = &models.PlanGraph{
		EntryStepID: "a",
		Branches: []*models.Branch{
			{ID: "br-loop", FromStepID: "c", ToStepID: "b"},
		},
	}

	hasCycle, path := DetectCycle(wf)
	require.True(t, hasCycle)
	assert.Equal(t, []string{"b", "c", "b"}, path)
}

func TestDetectCycleSelfLoop(t *testing.T) {
	wf := linearWorkflow("a", "b")
	wf.PlanGraph = &models.PlanGraph{
		EntryStepID: "a",
		Branches: []*models.Branch{
			{ID: "br-self", FromStepID: "b", ToStepID: "b"},
		},
	}

	hasCycle, path := DetectCycle(wf)
	require.True(t, hasCycle)
	assert.Equal(t, []string{"b", "b"}, path)
}

func TestDetectCycleForwardBranchesStayAcyclic(t *testing.T) {
	wf := linearWorkflow("a", "b", "c", "d")
	wf.PlanGraph = &models.PlanGraph{
		EntryStepID: "a",
		Branches: []*models.Branch{
			{ID: "br-skip", FromStepID: "a", ToStepID: "c"},
			{ID: "br-jump", FromStepID: "b", ToStepID: "d"},
		},
	}

	hasCycle, _ := DetectCycle(wf)
	assert.False(t, hasCycle)
}
