package eventbus

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/routinehq/routine/pkg/events"
)

// watermillExternalEventBus implements ExternalEventBus over any Watermill
// publisher/subscriber pair, so the same code runs against Kafka in
// production and GoChannel in tests.
type watermillExternalEventBus struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	handlers   []ExternalEventHandler
	logger     *slog.Logger
}

// NewWatermillExternalEventBus creates an external event bus over the given
// channel.
func NewWatermillExternalEventBus(logger *slog.Logger, pub message.Publisher, sub message.Subscriber) ExternalEventBus {
	return &watermillExternalEventBus{
		publisher:  pub,
		subscriber: sub,
		handlers:   make([]ExternalEventHandler, 0),
		logger:     logger.With("module", "external-event-bus"),
	}
}

// PublishExternalEvent publishes an external event to the external topic.
func (b *watermillExternalEventBus) PublishExternalEvent(ctx context.Context, event *events.ExternalEvent) error {
	if err := event.Validate(); err != nil {
		return err
	}

	payload, err := json.Marshal(event)
	if err != nil {
		b.logger.ErrorContext(ctx, "Failed to marshal external event", "error", err, "event_id", event.ID)

		return err
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set(events.EventMetadataKey, event.Kind)
	msg.Metadata.Set(events.EventTypeMetadataKey, string(events.ExternalEventType))

	err = b.publisher.Publish(events.ExternalEventTopic, msg)
	if err != nil {
		b.logger.ErrorContext(ctx, "Failed to publish external event", "error", err, "event_id", event.ID)

		return err
	}

	b.logger.DebugContext(ctx, "Published external event", "event_id", event.ID, "kind", event.Kind)

	return nil
}

// HandleExternalEvents registers a handler for external events.
func (b *watermillExternalEventBus) HandleExternalEvents(handler ExternalEventHandler) error {
	b.handlers = append(b.handlers, handler)

	return nil
}

// SubscribeToExternalEvents starts consuming external events.
func (b *watermillExternalEventBus) SubscribeToExternalEvents(ctx context.Context) error {
	if len(b.handlers) == 0 {
		b.logger.WarnContext(ctx, "No handlers registered for external events")

		return nil
	}

	messages, err := b.subscriber.Subscribe(ctx, events.ExternalEventTopic)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			var event events.ExternalEvent

			if err := json.Unmarshal(msg.Payload, &event); err != nil {
				b.logger.ErrorContext(ctx, "Failed to unmarshal external event", "error", err, "message_id", msg.UUID)
				msg.Nack()

				continue
			}

			success := true

			for _, handler := range b.handlers {
				if err := handler(ctx, &event); err != nil {
					b.logger.ErrorContext(ctx, "External event handler failed", "error", err, "event_id", event.ID)

					success = false
				}
			}

			if success {
				msg.Ack()
			} else {
				msg.Nack()
			}
		}
	}()

	return nil
}

// Close shuts down the publisher and subscriber.
func (b *watermillExternalEventBus) Close() error {
	err := b.publisher.Close()
	if err != nil {
		return err
	}

	return b.subscriber.Close()
}
