package trigger_test

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/routinehq/routine/pkg/models"
	"github.com/routinehq/routine/pkg/trigger"
)

type recorder struct {
	ch chan map[string]any
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan map[string]any, 8)}
}

func (r *recorder) callback(_ context.Context, data map[string]any) error {
	r.ch <- data

	return nil
}

func (r *recorder) wait(t *testing.T) map[string]any {
	t.Helper()

	select {
	case data := <-r.ch:
		return data
	case <-time.After(2 * time.Second):
		t.Fatal("trigger did not fire in time")

		return nil
	}
}

func (r *recorder) assertSilent(t *testing.T) {
	t.Helper()

	select {
	case <-r.ch:
		t.Fatal("trigger fired unexpectedly")
	case <-time.After(50 * time.Millisecond):
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

func scheduleWorkflow(id string, nextRun time.Time) *models.Workflow {
	return &models.Workflow{
		ID:     id,
		UserID: "user-1",
		Name:   "Scheduled workflow",
		Status: models.WorkflowStatusReady,
		Trigger: &models.TriggerSpec{
			Type:      models.TriggerTypeSchedule,
			Enabled:   true,
			Cron:      "0 9 * * *",
			NextRunAt: &nextRun,
		},
	}
}

func eventWorkflow(id string, keywords ...string) *models.Workflow {
	return &models.Workflow{
		ID:     id,
		UserID: "user-1",
		Name:   "Event workflow",
		Status: models.WorkflowStatusReady,
		Trigger: &models.TriggerSpec{
			Type:     models.TriggerTypeEvent,
			Enabled:  true,
			Keywords: keywords,
		},
	}
}

func TestManagerTickFiresExactlyOnce(t *testing.T) {
	t.Parallel()

	manager := trigger.NewManager(testLogger())
	rec := newRecorder()
	ctx := context.Background()

	due := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	workflow := scheduleWorkflow("wf-sched", due)

	unregister, err := manager.Register(workflow, rec.callback)
	require.NoError(t, err)
	defer unregister()

	manager.Tick(ctx, due.Add(-time.Second))
	rec.assertSilent(t)

	manager.Tick(ctx, due)

	data := rec.wait(t)
	assert.Equal(t, "2025-03-10T09:00:00Z", data["scheduled_for"])

	require.NotNil(t, workflow.Trigger.NextRunAt)
	assert.Equal(t, time.Date(2025, 3, 11, 9, 0, 0, 0, time.UTC), *workflow.Trigger.NextRunAt)

	// The advance happened with the firing, so the same instant cannot
	// fire twice.
	manager.Tick(ctx, due)
	rec.assertSilent(t)
}

func TestManagerTickSkipsInertWorkflows(t *testing.T) {
	t.Parallel()

	manager := trigger.NewManager(testLogger())
	ctx := context.Background()
	due := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	paused := scheduleWorkflow("wf-paused", due)
	paused.Status = models.WorkflowStatusPaused
	pausedRec := newRecorder()

	disabled := scheduleWorkflow("wf-disabled", due)
	disabled.Trigger.Enabled = false
	disabledRec := newRecorder()

	_, err := manager.Register(paused, pausedRec.callback)
	require.NoError(t, err)
	_, err = manager.Register(disabled, disabledRec.callback)
	require.NoError(t, err)

	manager.Tick(ctx, due)

	pausedRec.assertSilent(t)
	disabledRec.assertSilent(t)

	// Resuming the workflow makes the existing registration live again.
	paused.Status = models.WorkflowStatusReady
	manager.Tick(ctx, due)
	pausedRec.wait(t)
}

func TestManagerDispatchEventFanOut(t *testing.T) {
	t.Parallel()

	manager := trigger.NewManager(testLogger())
	ctx := context.Background()

	invoiceRec := newRecorder()
	billingRec := newRecorder()
	newsletterRec := newRecorder()

	_, err := manager.Register(eventWorkflow("wf-invoice", "invoice"), invoiceRec.callback)
	require.NoError(t, err)
	_, err = manager.Register(eventWorkflow("wf-billing", "invoice", "receipt"), billingRec.callback)
	require.NoError(t, err)
	_, err = manager.Register(eventWorkflow("wf-newsletter", "newsletter"), newsletterRec.callback)
	require.NoError(t, err)

	fired := manager.DispatchEvent(ctx, models.TriggerEvent{
		ID:   "evt-1",
		Type: "email.received",
		Text: "Your invoice for March is attached",
	})

	assert.Equal(t, 2, fired)

	data := invoiceRec.wait(t)
	assert.Equal(t, "evt-1", data["event_id"])
	assert.Equal(t, "email.received", data["event_type"])
	assert.Contains(t, data["event_text"], "invoice")

	billingRec.wait(t)
	newsletterRec.assertSilent(t)
}

func TestManagerUnregister(t *testing.T) {
	t.Parallel()

	manager := trigger.NewManager(testLogger())
	rec := newRecorder()
	ctx := context.Background()

	due := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	unregister, err := manager.Register(scheduleWorkflow("wf-gone", due), rec.callback)
	require.NoError(t, err)
	assert.Equal(t, 1, manager.Registered())

	unregister()
	assert.Equal(t, 0, manager.Registered())

	manager.Tick(ctx, due)
	rec.assertSilent(t)

	// Unregistering twice is harmless.
	unregister()
}

func TestManagerReplaceRegistration(t *testing.T) {
	t.Parallel()

	manager := trigger.NewManager(testLogger())
	ctx := context.Background()
	due := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	oldRec := newRecorder()
	newRec := newRecorder()

	oldUnregister, err := manager.Register(scheduleWorkflow("wf-replaced", due), oldRec.callback)
	require.NoError(t, err)

	_, err = manager.Register(scheduleWorkflow("wf-replaced", due), newRec.callback)
	require.NoError(t, err)
	assert.Equal(t, 1, manager.Registered())

	// The stale unregister from the replaced registration must not remove
	// its successor.
	oldUnregister()
	assert.Equal(t, 1, manager.Registered())

	manager.Tick(ctx, due)

	newRec.wait(t)
	oldRec.assertSilent(t)
}

func TestManagerRegisterValidation(t *testing.T) {
	t.Parallel()

	manager := trigger.NewManager(testLogger())
	rec := newRecorder()

	tests := []struct {
		name     string
		workflow *models.Workflow
		callback trigger.Callback
	}{
		{
			name:     "nil workflow",
			workflow: nil,
			callback: rec.callback,
		},
		{
			name:     "missing workflow id",
			workflow: &models.Workflow{Trigger: &models.TriggerSpec{Type: models.TriggerTypeManual}},
			callback: rec.callback,
		},
		{
			name:     "nil callback",
			workflow: eventWorkflow("wf-nocb", "invoice"),
			callback: nil,
		},
		{
			name:     "no trigger",
			workflow: &models.Workflow{ID: "wf-bare", Status: models.WorkflowStatusReady},
			callback: rec.callback,
		},
		{
			name: "schedule without cron",
			workflow: &models.Workflow{
				ID:      "wf-badcron",
				Status:  models.WorkflowStatusReady,
				Trigger: &models.TriggerSpec{Type: models.TriggerTypeSchedule, Enabled: true},
			},
			callback: rec.callback,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := manager.Register(tt.workflow, tt.callback)
			require.Error(t, err)
		})
	}
}

func TestManagerRegisterComputesNextRun(t *testing.T) {
	t.Parallel()

	manager := trigger.NewManager(testLogger())
	rec := newRecorder()

	workflow := &models.Workflow{
		ID:      "wf-fresh",
		Status:  models.WorkflowStatusReady,
		Trigger: &models.TriggerSpec{Type: models.TriggerTypeSchedule, Enabled: true, Cron: "*/5 * * * *"},
	}

	_, err := manager.Register(workflow, rec.callback)
	require.NoError(t, err)

	require.NotNil(t, workflow.Trigger.NextRunAt)
	assert.True(t, workflow.Trigger.NextRunAt.After(time.Now().Add(-time.Minute)))
}

func TestManagerResyncKeepsSchedule(t *testing.T) {
	t.Parallel()

	manager := trigger.NewManager(testLogger())
	rec := newRecorder()
	ctx := context.Background()

	due := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	_, err := manager.Register(scheduleWorkflow("wf-resync", due), rec.callback)
	require.NoError(t, err)

	manager.Tick(ctx, due)
	rec.wait(t)

	// A store re-sync re-registers the persisted copy, which still carries
	// the boundary that just fired.
	stale := scheduleWorkflow("wf-resync", due)

	_, err = manager.Register(stale, rec.callback)
	require.NoError(t, err)

	require.NotNil(t, stale.Trigger.NextRunAt)
	assert.Equal(t, time.Date(2025, 3, 11, 9, 0, 0, 0, time.UTC), *stale.Trigger.NextRunAt)

	manager.Tick(ctx, due)
	rec.assertSilent(t)

	manager.Tick(ctx, time.Date(2025, 3, 11, 9, 0, 0, 0, time.UTC))

	data := rec.wait(t)
	assert.Equal(t, "2025-03-11T09:00:00Z", data["scheduled_for"])
}

func TestManagerReplaceChangedScheduleRecomputes(t *testing.T) {
	t.Parallel()

	manager := trigger.NewManager(testLogger())
	rec := newRecorder()
	ctx := context.Background()

	due := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	_, err := manager.Register(scheduleWorkflow("wf-edit", due), rec.callback)
	require.NoError(t, err)

	edited := scheduleWorkflow("wf-edit", due)
	edited.Trigger.Cron = "30 18 * * *"

	_, err = manager.Register(edited, rec.callback)
	require.NoError(t, err)

	require.NotNil(t, edited.Trigger.NextRunAt)
	assert.True(t, edited.Trigger.NextRunAt.After(time.Now().Add(-time.Minute)))

	manager.Tick(ctx, due)
	rec.assertSilent(t)
}

func TestManagerStartStop(t *testing.T) {
	t.Parallel()

	manager := trigger.NewManager(testLogger())
	rec := newRecorder()
	ctx := context.Background()

	overdue := time.Now().UTC().Add(-time.Hour)

	_, err := manager.Register(scheduleWorkflow("wf-loop", overdue), rec.callback)
	require.NoError(t, err)

	require.NoError(t, manager.Start(ctx, 10*time.Millisecond))
	require.NoError(t, manager.Start(ctx, 10*time.Millisecond))

	rec.wait(t)

	require.NoError(t, manager.Stop(ctx))
	require.NoError(t, manager.Stop(ctx))
}
