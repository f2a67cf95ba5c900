package eventbus_test

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/routinehq/routine/pkg/channels/gochannel"
	"github.com/routinehq/routine/pkg/eventbus"
	"github.com/routinehq/routine/pkg/events"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestWatermillEventBus_PublishAndHandle(t *testing.T) {
	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)

	received := make(chan *events.RunRequested, 1)

	err = bus.Handle(events.RunRequestedEvent, func(_ context.Context, event any) error {
		requested, ok := event.(*events.RunRequested)
		require.True(t, ok)

		received <- requested

		return nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))

	requested := events.RunRequested{
		BaseEvent:   events.NewBaseEvent(events.RunRequestedEvent, "wf-1"),
		UserID:      "user-1",
		TriggerType: "manual",
		TriggerData: map[string]any{"source": "api"},
	}
	require.NoError(t, bus.Publish(ctx, "wf-1", requested))

	select {
	case got := <-received:
		assert.Equal(t, "wf-1", got.WorkflowID)
		assert.Equal(t, "user-1", got.UserID)
		assert.Equal(t, "api", got.TriggerData["source"])
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for run.requested event")
	}
}

func TestWatermillEventBus_UnhandledTypesAreAcked(t *testing.T) {
	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)

	received := make(chan *events.RunCompleted, 1)

	err = bus.Handle(events.RunCompletedEvent, func(_ context.Context, event any) error {
		received <- event.(*events.RunCompleted)

		return nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))

	// An event type without a handler must not wedge the stream.
	started := events.RunStarted{
		BaseEvent:   events.NewBaseEvent(events.RunStartedEvent, "wf-1"),
		ExecutionID: "exec-1",
	}
	require.NoError(t, bus.Publish(ctx, "wf-1", started))

	completed := events.RunCompleted{
		BaseEvent:   events.NewBaseEvent(events.RunCompletedEvent, "wf-1"),
		ExecutionID: "exec-1",
		DurationMs:  1200,
	}
	require.NoError(t, bus.Publish(ctx, "wf-1", completed))

	select {
	case got := <-received:
		assert.Equal(t, "exec-1", got.ExecutionID)
		assert.Equal(t, int64(1200), got.DurationMs)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for run.completed event")
	}
}

func TestWatermillEventBus_GenerateID(t *testing.T) {
	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)

	first := bus.GenerateID()
	second := bus.GenerateID()

	assert.NotEmpty(t, first)
	assert.NotEqual(t, first, second)
}

func TestExternalEventBus_PublishAndHandle(t *testing.T) {
	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillExternalEventBus(testLogger(), pub, sub)

	received := make(chan *events.ExternalEvent, 1)

	err = bus.HandleExternalEvents(func(_ context.Context, event *events.ExternalEvent) error {
		received <- event

		return nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, bus.SubscribeToExternalEvents(ctx))

	event := events.NewExternalEvent("evt-1", "email.received", "Invoice overdue", map[string]any{"from": "billing@example.com"})
	require.NoError(t, bus.PublishExternalEvent(ctx, event))

	select {
	case got := <-received:
		assert.Equal(t, "evt-1", got.ID)
		assert.Equal(t, "email.received", got.Kind)
		assert.Equal(t, "Invoice overdue", got.Text)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for external event")
	}
}

func TestExternalEventBus_RejectsInvalidEvents(t *testing.T) {
	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillExternalEventBus(testLogger(), pub, sub)

	ctx := context.Background()

	err = bus.PublishExternalEvent(ctx, &events.ExternalEvent{Kind: "email.received"})
	require.ErrorIs(t, err, events.ErrInvalidEventData)
}
