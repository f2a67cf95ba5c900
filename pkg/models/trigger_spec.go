package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrInvalidTrigger is returned when a trigger spec fails validation.
var ErrInvalidTrigger = errors.New("invalid trigger configuration")

// TriggerSpec declares how a workflow starts. Schedule triggers carry a
// 5-field cron expression and a precomputed NextRunAt so the trigger manager
// can fire due workflows without per-workflow timers. Event triggers carry
// keywords matched against incoming events.
type TriggerSpec struct {
	Type    TriggerType `json:"type"              validate:"required"`
	Enabled bool        `json:"enabled"`

	// Schedule trigger fields.
	Cron      string     `json:"cron,omitempty"`
	NextRunAt *time.Time `json:"next_run_at,omitempty"`

	// Event trigger fields.
	EventType string   `json:"event_type,omitempty"`
	Keywords  []string `json:"keywords,omitempty"`
}

func cronParser() cron.Parser {
	return cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
}

// Validate checks the spec for its declared type. Schedule triggers must
// carry a parseable cron expression so malformed schedules are rejected at
// save time, never at fire time.
func (t *TriggerSpec) Validate() error {
	switch t.Type {
	case TriggerTypeManual:
		return nil
	case TriggerTypeSchedule:
		if t.Cron == "" {
			return ErrInvalidTrigger
		}

		if _, err := cronParser().Parse(t.Cron); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidTrigger, err)
		}

		return nil
	case TriggerTypeEvent:
		if t.EventType == "" && len(t.Keywords) == 0 {
			return ErrInvalidTrigger
		}

		return nil
	default:
		return ErrInvalidTrigger
	}
}

// ComputeNextRun sets NextRunAt to the first firing strictly after the
// reference time.
func (t *TriggerSpec) ComputeNextRun(reference time.Time) error {
	schedule, err := cronParser().Parse(t.Cron)
	if err != nil {
		return err
	}

	next := schedule.Next(reference.UTC())
	t.NextRunAt = &next

	return nil
}

// IsDue reports whether a schedule trigger should fire at now.
func (t *TriggerSpec) IsDue(now time.Time) bool {
	return t.Type == TriggerTypeSchedule && t.Enabled && t.NextRunAt != nil && !t.NextRunAt.After(now)
}

// MatchesEvent reports whether an event trigger should fire for the given
// event. An EventType filter must match exactly when set; keywords match
// case-insensitively against the event text, any one hit is enough.
func (t *TriggerSpec) MatchesEvent(event TriggerEvent) bool {
	if t.Type != TriggerTypeEvent || !t.Enabled {
		return false
	}

	if t.EventType != "" && t.EventType != event.Type {
		return false
	}

	if len(t.Keywords) == 0 {
		return true
	}

	text := strings.ToLower(event.Text)
	for _, keyword := range t.Keywords {
		if keyword != "" && strings.Contains(text, strings.ToLower(keyword)) {
			return true
		}
	}

	return false
}

// TriggerEvent is an external signal fanned out to event triggers.
type TriggerEvent struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Text       string         `json:"text,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}
