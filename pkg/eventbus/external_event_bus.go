package eventbus

import (
	"context"

	"github.com/routinehq/routine/pkg/events"
)

// ExternalEventHandler is called when an external event is received.
type ExternalEventHandler func(ctx context.Context, event *events.ExternalEvent) error

// ExternalEventPublisher publishes external events.
type ExternalEventPublisher interface {
	PublishExternalEvent(ctx context.Context, event *events.ExternalEvent) error
}

// ExternalEventSubscriber subscribes to external events.
type ExternalEventSubscriber interface {
	HandleExternalEvents(handler ExternalEventHandler) error
	SubscribeToExternalEvents(ctx context.Context) error
}

// ExternalEventBus combines publishing and subscribing for external events.
type ExternalEventBus interface {
	ExternalEventPublisher
	ExternalEventSubscriber
	Close() error
}
