package history_test

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/routinehq/routine/pkg/history"
	"github.com/routinehq/routine/pkg/models"
	"github.com/routinehq/routine/pkg/persistence/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService() *history.Service {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	return history.NewService(memory.NewPersistence().ChangeLogRepository(), logger)
}

func sampleWorkflow() *models.Workflow {
	return &models.Workflow{
		ID:     "wf-1",
		UserID: "user-1",
		Name:   "Ticket triage",
		Steps: []*models.Step{
			{ID: "collect", Title: "Collect tickets", Kind: models.StepKindConnectorAction, ActionID: "http.request"},
			{ID: "notify", Title: "Notify the channel", Kind: models.StepKindConnectorAction, ActionID: "log.message"},
		},
		PlanGraph: &models.PlanGraph{
			EntryStepID: "collect",
			Branches: []*models.Branch{
				{ID: "br-empty", FromStepID: "collect", ToStepID: "notify", Priority: 0},
			},
		},
	}
}

func TestService_RecordCreated(t *testing.T) {
	t.Parallel()

	service := newService()
	workflow := sampleWorkflow()

	entry, err := service.Record(context.Background(), workflow, models.ChangeTypeCreated)
	require.NoError(t, err)

	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, "wf-1", entry.WorkflowID)
	assert.Equal(t, models.ChangeTypeCreated, entry.ChangeType)
	assert.Equal(t, "Created with 2 steps", entry.Summary)

	require.NotNil(t, entry.Snapshot)
	require.Len(t, entry.Snapshot.Steps, 2)
	require.Len(t, entry.Snapshot.Branches, 1)

	workflow.Steps[0].Title = "Renamed after the fact"
	assert.Equal(t, "Collect tickets", entry.Snapshot.Steps[0].Title)
}

func TestService_RecordUpdateSummarizesDiff(t *testing.T) {
	t.Parallel()

	service := newService()
	workflow := sampleWorkflow()

	_, err := service.Record(context.Background(), workflow, models.ChangeTypeCreated)
	require.NoError(t, err)

	workflow.Steps = append(workflow.Steps, &models.Step{
		ID: "archive", Title: "Archive resolved tickets", Kind: models.StepKindTransform,
	})

	entry, err := service.Record(context.Background(), workflow, models.ChangeTypeUpdated)
	require.NoError(t, err)
	assert.Equal(t, "Saved: 1 step added", entry.Summary)
}

func TestService_RecordUpdateWithoutChanges(t *testing.T) {
	t.Parallel()

	service := newService()
	workflow := sampleWorkflow()

	_, err := service.Record(context.Background(), workflow, models.ChangeTypeCreated)
	require.NoError(t, err)

	entry, err := service.Record(context.Background(), workflow, models.ChangeTypeUpdated)
	require.NoError(t, err)
	assert.Equal(t, "Saved without structural changes", entry.Summary)
}

func TestService_ListNewestFirst(t *testing.T) {
	t.Parallel()

	service := newService()
	workflow := sampleWorkflow()

	created, err := service.Record(context.Background(), workflow, models.ChangeTypeCreated)
	require.NoError(t, err)

	updated, err := service.Record(context.Background(), workflow, models.ChangeTypeUpdated)
	require.NoError(t, err)

	entries, err := service.List(context.Background(), "wf-1", 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, updated.ID, entries[0].ID)
	assert.Equal(t, created.ID, entries[1].ID)
}

func TestService_DiffBetweenEntries(t *testing.T) {
	t.Parallel()

	service := newService()
	workflow := sampleWorkflow()

	left, err := service.Record(context.Background(), workflow, models.ChangeTypeCreated)
	require.NoError(t, err)

	workflow.Steps = workflow.Steps[:1]
	workflow.PlanGraph.Branches = nil

	right, err := service.Record(context.Background(), workflow, models.ChangeTypeUpdated)
	require.NoError(t, err)

	diff, err := service.Diff(context.Background(), left.ID, right.ID)
	require.NoError(t, err)

	assert.Equal(t, []string{"notify"}, diff.RemovedStepIDs)
	assert.Equal(t, []string{"br-empty"}, diff.RemovedBranchIDs)
	assert.Empty(t, diff.AddedStepIDs)
	assert.Empty(t, diff.ChangedStepIDs)
}

func TestService_DiffUnknownEntry(t *testing.T) {
	t.Parallel()

	service := newService()
	workflow := sampleWorkflow()

	entry, err := service.Record(context.Background(), workflow, models.ChangeTypeCreated)
	require.NoError(t, err)

	_, err = service.Diff(context.Background(), entry.ID, "chg-missing")
	require.ErrorIs(t, err, history.ErrEntryNotFound)
}

func TestDiffSnapshots_ReorderingIsNotAChange(t *testing.T) {
	t.Parallel()

	stepA := &models.Step{ID: "a", Title: "First", Kind: models.StepKindTransform}
	stepB := &models.Step{ID: "b", Title: "Second", Kind: models.StepKindTransform}

	left := &models.WorkflowSnapshot{Steps: []*models.Step{stepA, stepB}}
	right := &models.WorkflowSnapshot{Steps: []*models.Step{stepB, stepA}}

	diff := history.DiffSnapshots(left, right)
	assert.True(t, diff.Empty())
}

func TestDiffSnapshots_ContentChangeDetected(t *testing.T) {
	t.Parallel()

	left := &models.WorkflowSnapshot{Steps: []*models.Step{
		{ID: "a", Title: "First", Kind: models.StepKindTransform},
	}}
	right := &models.WorkflowSnapshot{Steps: []*models.Step{
		{ID: "a", Title: "First, retitled", Kind: models.StepKindTransform},
	}}

	diff := history.DiffSnapshots(left, right)
	assert.Equal(t, []string{"a"}, diff.ChangedStepIDs)
	assert.False(t, diff.Empty())
}
