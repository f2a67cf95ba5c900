package kafka_test

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	kafkatc "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/routinehq/routine/pkg/channels/kafka"
	"github.com/routinehq/routine/pkg/eventbus"
	"github.com/routinehq/routine/pkg/events"
)

func TestCreateChannel_RequiresBrokers(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "")

	_, _, err := kafka.CreateChannel(watermill.NopLogger{}, "test")
	require.Error(t, err)
}

func TestKafkaChannel_PublishSubscribe(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping kafka integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	container, err := kafkatc.Run(ctx, "confluentinc/confluent-local:7.7.0")
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, container.Terminate(context.Background()))
	})

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)

	t.Setenv("KAFKA_BROKERS", brokers[0])

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	pub, sub, err := kafka.CreateChannel(watermill.NewSlogLogger(logger), "channel-test")
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)

	received := make(chan *events.RunStarted, 1)

	err = bus.Handle(events.RunStartedEvent, func(_ context.Context, event any) error {
		started, ok := event.(*events.RunStarted)
		require.True(t, ok)

		received <- started

		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bus.Subscribe(ctx))

	started := events.RunStarted{
		BaseEvent:   events.NewBaseEvent(events.RunStartedEvent, "wf-kafka-1"),
		ExecutionID: "exec-kafka-1",
		UserID:      "user-1",
		Attempt:     1,
	}
	require.NoError(t, bus.Publish(ctx, "wf-kafka-1", started))

	select {
	case got := <-received:
		assert.Equal(t, "wf-kafka-1", got.WorkflowID)
		assert.Equal(t, "exec-kafka-1", got.ExecutionID)
	case <-time.After(90 * time.Second):
		t.Fatal("timed out waiting for event from kafka")
	}

	require.NoError(t, bus.Close())
}
