package trigger_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/routinehq/routine/pkg/engine"
	"github.com/routinehq/routine/pkg/models"
	"github.com/routinehq/routine/pkg/persistence"
	"github.com/routinehq/routine/pkg/persistence/memory"
	"github.com/routinehq/routine/pkg/trigger"
)

type runRecorder struct {
	ch chan engine.RunParams
}

func newRunRecorder() *runRecorder {
	return &runRecorder{ch: make(chan engine.RunParams, 8)}
}

func (r *runRecorder) RequestRun(_ context.Context, params engine.RunParams) error {
	r.ch <- params

	return nil
}

func (r *runRecorder) wait(t *testing.T) engine.RunParams {
	t.Helper()

	select {
	case params := <-r.ch:
		return params
	case <-time.After(2 * time.Second):
		t.Fatal("run was not requested in time")

		return engine.RunParams{}
	}
}

func (r *runRecorder) assertSilent(t *testing.T) {
	t.Helper()

	select {
	case <-r.ch:
		t.Fatal("run was requested unexpectedly")
	case <-time.After(50 * time.Millisecond):
	}
}

func seedWorkflows(t *testing.T, store persistence.Persistence, workflows ...*models.Workflow) {
	t.Helper()

	for _, workflow := range workflows {
		require.NoError(t, store.WorkflowRepository().Save(context.Background(), workflow))
	}
}

func TestActivatorSyncRegistersTriggerable(t *testing.T) {
	t.Parallel()

	store := memory.NewPersistence()
	manager := trigger.NewManager(testLogger())
	rec := newRunRecorder()
	ctx := context.Background()

	due := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	draft := scheduleWorkflow("wf-draft", due)
	draft.Status = models.WorkflowStatusDraft

	disabled := scheduleWorkflow("wf-disabled", due)
	disabled.Trigger.Enabled = false

	manual := scheduleWorkflow("wf-manual", due)
	manual.Trigger = &models.TriggerSpec{Type: models.TriggerTypeManual, Enabled: true}

	seedWorkflows(t, store,
		scheduleWorkflow("wf-nightly", due),
		eventWorkflow("wf-invoice", "invoice"),
		draft,
		disabled,
		manual,
	)

	activator := trigger.NewActivator(store, rec, manager, testLogger())

	require.NoError(t, activator.Sync(ctx))
	assert.Equal(t, 2, manager.Registered())

	manager.Tick(ctx, due)

	params := rec.wait(t)
	assert.Equal(t, "wf-nightly", params.WorkflowID)
	assert.Equal(t, "user-1", params.UserID)
	assert.Equal(t, models.TriggerTypeSchedule, params.TriggerType)
	assert.Equal(t, "2025-03-10T09:00:00Z", params.TriggerData["scheduled_for"])

	rec.assertSilent(t)
}

func TestActivatorSyncUnregistersStale(t *testing.T) {
	t.Parallel()

	store := memory.NewPersistence()
	manager := trigger.NewManager(testLogger())
	rec := newRunRecorder()
	ctx := context.Background()

	due := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	workflow := scheduleWorkflow("wf-retired", due)
	seedWorkflows(t, store, workflow)

	activator := trigger.NewActivator(store, rec, manager, testLogger())

	require.NoError(t, activator.Sync(ctx))
	assert.Equal(t, 1, manager.Registered())

	workflow.Status = models.WorkflowStatusArchived
	seedWorkflows(t, store, workflow)

	require.NoError(t, activator.Sync(ctx))
	assert.Equal(t, 0, manager.Registered())

	manager.Tick(ctx, due)
	rec.assertSilent(t)
}

func TestActivatorDispatch(t *testing.T) {
	t.Parallel()

	store := memory.NewPersistence()
	manager := trigger.NewManager(testLogger())
	rec := newRunRecorder()
	ctx := context.Background()

	seedWorkflows(t, store, eventWorkflow("wf-billing", "invoice"))

	activator := trigger.NewActivator(store, rec, manager, testLogger())
	require.NoError(t, activator.Sync(ctx))

	fired := activator.Dispatch(ctx, models.TriggerEvent{
		ID:   "evt-9",
		Type: "email.received",
		Text: "Invoice attached",
	})
	assert.Equal(t, 1, fired)

	params := rec.wait(t)
	assert.Equal(t, "wf-billing", params.WorkflowID)
	assert.Equal(t, models.TriggerTypeEvent, params.TriggerType)
	assert.Equal(t, "evt-9", params.TriggerData["event_id"])
}

func TestActivatorRunPicksUpNewWorkflows(t *testing.T) {
	t.Parallel()

	store := memory.NewPersistence()
	manager := trigger.NewManager(testLogger())
	rec := newRunRecorder()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	activator := trigger.NewActivator(store, rec, manager, testLogger())

	errCh := make(chan error, 1)

	go func() {
		errCh <- activator.Run(ctx, 10*time.Millisecond, 20*time.Millisecond)
	}()

	overdue := time.Now().UTC().Add(-time.Hour)
	seedWorkflows(t, store, scheduleWorkflow("wf-late", overdue))

	params := rec.wait(t)
	assert.Equal(t, "wf-late", params.WorkflowID)

	cancel()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("activator did not stop in time")
	}
}
