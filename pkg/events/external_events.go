package events

import "errors"

// ErrInvalidEventData is returned when an external event cannot be parsed or
// fails validation.
var ErrInvalidEventData = errors.New("invalid event data")

// ExternalEventType marks a message on the external topic so the scheduler
// can route it to event-triggered workflows.
const ExternalEventType EventType = "external.event"

// ExternalEvent is an inbound occurrence from outside the system, e.g. a
// message arriving or a webhook firing. The scheduler consumes these and
// dispatches runs for every event-triggered workflow whose trigger matches.
type ExternalEvent struct {
	// ID uniquely identifies the occurrence for tracing and dedup.
	ID string `json:"id" validate:"required"`

	// Kind names the occurrence, matched exactly against trigger event
	// types. Examples: "email.received", "ticket.opened", "webhook".
	Kind string `json:"kind" validate:"required"`

	// Text is the human-readable portion of the occurrence, scanned for
	// trigger keywords.
	Text string `json:"text,omitempty"`

	// Data carries source-specific payload handed to triggered runs as
	// trigger data.
	Data map[string]any `json:"data,omitempty"`

	// OccurredAtUnix is the occurrence time in Unix seconds.
	OccurredAtUnix int64 `json:"occurred_at_unix,omitempty"`
}

// NewExternalEvent creates an ExternalEvent with the provided parameters.
func NewExternalEvent(id, kind, text string, data map[string]any) *ExternalEvent {
	if data == nil {
		data = make(map[string]any)
	}

	return &ExternalEvent{
		ID:   id,
		Kind: kind,
		Text: text,
		Data: data,
	}
}

// Validate checks the event carries the fields routing depends on.
func (e *ExternalEvent) Validate() error {
	if e.ID == "" || e.Kind == "" {
		return ErrInvalidEventData
	}

	return nil
}

// DataString safely extracts a string value from the event data.
func (e *ExternalEvent) DataString(key string) (string, bool) {
	value, exists := e.Data[key]
	if !exists {
		return "", false
	}

	strValue, ok := value.(string)

	return strValue, ok
}
