package runner_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/routinehq/routine/pkg/channels/gochannel"
	"github.com/routinehq/routine/pkg/connector"
	"github.com/routinehq/routine/pkg/engine"
	"github.com/routinehq/routine/pkg/eventbus"
	"github.com/routinehq/routine/pkg/events"
	"github.com/routinehq/routine/pkg/mocks"
	"github.com/routinehq/routine/pkg/models"
	"github.com/routinehq/routine/pkg/persistence"
	"github.com/routinehq/routine/pkg/persistence/memory"
	"github.com/routinehq/routine/pkg/runner"
)

type fixture struct {
	engine   *engine.Engine
	runner   *runner.Runner
	store    persistence.Persistence
	registry *connector.Registry
}

func newFixture(t *testing.T, bus eventbus.EventBus) *fixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	store := memory.NewPersistence()
	registry := connector.NewRegistry()

	var publisher eventbus.EventPublisher
	if bus != nil {
		publisher = bus
	}

	eng := engine.New(store, registry, registry, nil, publisher, logger)

	return &fixture{
		engine:   eng,
		runner:   runner.New(eng, bus, "worker-test", 3, time.Millisecond, logger),
		store:    store,
		registry: registry,
	}
}

func (f *fixture) register(t *testing.T, id string, handler connector.HandlerFunc) {
	t.Helper()

	require.NoError(t, f.registry.Register(&connector.Action{ID: id, Name: id}, handler))
}

func (f *fixture) saveWorkflow(t *testing.T, workflow *models.Workflow) *models.Workflow {
	t.Helper()

	saved, err := f.engine.SaveWorkflow(context.Background(), "user-1", workflow)
	require.NoError(t, err)

	return saved
}

func singleStepWorkflow(actionID string) *models.Workflow {
	return &models.Workflow{
		Name: "Background workflow",
		Steps: []*models.Step{
			{ID: "only", Title: "Only step", Kind: models.StepKindConnectorAction, ActionID: actionID},
		},
	}
}

func TestRunnerRunCompletes(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.register(t, "test.echo", func(_ context.Context, payload map[string]any, _ string) (*connector.Result, error) {
		return &connector.Result{OK: true, Summary: "done", Data: payload}, nil
	})
	ctx := context.Background()

	saved := f.saveWorkflow(t, singleStepWorkflow("test.echo"))

	var beats atomic.Int32

	execution, err := f.runner.Run(ctx,
		engine.RunParams{UserID: "user-1", WorkflowID: saved.ID},
		func(time.Time) { beats.Add(1) })
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
	assert.Equal(t, 1, execution.Attempt)
	assert.GreaterOrEqual(t, beats.Load(), int32(1))

	deadLetters, err := f.engine.ListDeadLetters(ctx, "user-1", nil)
	require.NoError(t, err)
	assert.Empty(t, deadLetters)
}

func TestRunnerRetriesThenDeadLetters(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)

	var calls atomic.Int32

	f.register(t, "always.fails", func(_ context.Context, _ map[string]any, _ string) (*connector.Result, error) {
		calls.Add(1)

		return &connector.Result{OK: false, ErrorMessage: "downstream unavailable"}, nil
	})
	ctx := context.Background()

	saved := f.saveWorkflow(t, singleStepWorkflow("always.fails"))

	execution, err := f.runner.Run(ctx, engine.RunParams{UserID: "user-1", WorkflowID: saved.ID}, nil)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusFailed, execution.Status)
	assert.Equal(t, 3, execution.Attempt)
	assert.Equal(t, int32(3), calls.Load())

	executions, err := f.engine.ListExecutions(ctx, persistence.ListExecutionsOptions{WorkflowID: saved.ID})
	require.NoError(t, err)
	assert.Len(t, executions, 3)

	pending := models.DeadLetterStatusPending

	entries, err := f.engine.ListDeadLetters(ctx, "user-1", &pending)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	entry := entries[0]
	assert.Equal(t, execution.ID, entry.ExecutionID)
	assert.Equal(t, 3, entry.Attempts)
	assert.Contains(t, entry.Reason, "downstream unavailable")

	// Resolution acknowledges the entry; it never re-runs the workflow.
	resolved, err := f.engine.ResolveDeadLetter(ctx, "ops-1", entry.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DeadLetterStatusResolved, resolved.Status)

	entries, err = f.engine.ListDeadLetters(ctx, "user-1", &pending)
	require.NoError(t, err)
	assert.Empty(t, entries)

	executions, err = f.engine.ListExecutions(ctx, persistence.ListExecutionsOptions{WorkflowID: saved.ID})
	require.NoError(t, err)
	assert.Len(t, executions, 3)

	_, err = f.engine.ResolveDeadLetter(ctx, "ops-1", entry.ID)
	require.Error(t, err)
	assert.True(t, engine.IsConflictError(err))
}

func TestRunnerPauseIsNotFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	ctx := context.Background()

	saved := f.saveWorkflow(t, &models.Workflow{
		Name: "Reviewed workflow",
		Steps: []*models.Step{
			{ID: "gate", Title: "Gate", Kind: models.StepKindCheckpoint},
			{ID: "after", Title: "After", Kind: models.StepKindArtifact},
		},
	})

	execution, err := f.runner.Run(ctx, engine.RunParams{UserID: "user-1", WorkflowID: saved.ID}, nil)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCheckpointRequired, execution.Status)

	executions, err := f.engine.ListExecutions(ctx, persistence.ListExecutionsOptions{WorkflowID: saved.ID})
	require.NoError(t, err)
	assert.Len(t, executions, 1)

	deadLetters, err := f.engine.ListDeadLetters(ctx, "user-1", nil)
	require.NoError(t, err)
	assert.Empty(t, deadLetters)
}

func TestRunnerPropagatesEngineErrors(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)

	execution, err := f.runner.Run(context.Background(),
		engine.RunParams{UserID: "user-1", WorkflowID: "wf-missing"}, nil)
	require.Error(t, err)
	assert.True(t, engine.IsNotFoundError(err))
	assert.Nil(t, execution)
}

func TestRunnerConsumesRunRequests(t *testing.T) {
	t.Parallel()

	publisher, subscriber, err := gochannel.CreateChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(publisher, subscriber)
	f := newFixture(t, bus)
	f.register(t, "test.echo", func(_ context.Context, payload map[string]any, _ string) (*connector.Result, error) {
		return &connector.Result{OK: true, Summary: "done", Data: payload}, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, f.runner.Start(ctx))

	saved := f.saveWorkflow(t, singleStepWorkflow("test.echo"))

	require.NoError(t, f.engine.RequestRun(ctx, engine.RunParams{UserID: "user-1", WorkflowID: saved.ID}))

	require.Eventually(t, func() bool {
		executions, listErr := f.engine.ListExecutions(ctx, persistence.ListExecutionsOptions{WorkflowID: saved.ID})
		if listErr != nil || len(executions) != 1 {
			return false
		}

		return executions[0].Status == models.ExecutionStatusCompleted
	}, 2*time.Second, 10*time.Millisecond, "run request was not executed")
}

func TestRunnerStartRequiresBus(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)

	require.Error(t, f.runner.Start(context.Background()))
}

func TestRunnerStartPropagatesBusErrors(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)

	bus := &mocks.MockEventBus{}
	bus.On("Handle", events.RunRequestedEvent, mock.Anything).Return(errors.New("broker unavailable"))

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	broken := runner.New(f.engine, bus, "worker-broken", 1, time.Millisecond, logger)

	err := broken.Start(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "broker unavailable")
	bus.AssertExpectations(t)
}
