// Package trigger activates workflows. The manager keeps an in-memory
// registry of workflow triggers; a periodic tick fires due schedules and
// DispatchEvent fans external events out to every matching event trigger.
// Firing is fire-and-continue: callbacks run on their own goroutines so one
// slow workflow never delays another.
package trigger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/routinehq/routine/pkg/models"
)

// Callback is invoked when a registered trigger fires. The data map becomes
// the run's trigger data.
type Callback func(ctx context.Context, data map[string]any) error

type registration struct {
	seq      int64
	workflow *models.Workflow
	callback Callback
}

// Manager tracks registered workflow triggers and decides when they fire.
// Registrations live in memory; the host re-registers on startup from the
// store. Paused and archived workflows stay registered but inert, so a
// resume needs no re-registration.
type Manager struct {
	mu            sync.Mutex
	registrations map[string]*registration
	seq           int64

	ticker  *time.Ticker
	done    chan struct{}
	started bool

	logger *slog.Logger
}

// NewManager creates an empty trigger manager.
func NewManager(logger *slog.Logger) *Manager {
	return &Manager{
		registrations: make(map[string]*registration),
		logger:        logger.With("module", "trigger"),
	}
}

// Register subscribes a workflow's trigger for future activation and returns
// an unregister function. Registering a workflow id again replaces the
// previous registration; its old unregister function becomes a no-op.
// Schedule triggers without a precomputed next run get one relative to now.
// When a replacement carries the same schedule, the previous registration's
// in-memory next run survives: the manager advances schedules without writing
// them back, so the persisted copy a re-sync loads may sit behind an already
// fired boundary.
func (m *Manager) Register(workflow *models.Workflow, callback Callback) (func(), error) {
	if workflow == nil || workflow.ID == "" {
		return nil, errors.New("trigger registration requires a workflow with an id")
	}

	if callback == nil {
		return nil, errors.New("trigger registration requires a callback")
	}

	if workflow.Trigger == nil {
		return nil, fmt.Errorf("workflow %s has no trigger", workflow.ID)
	}

	if err := workflow.Trigger.Validate(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if workflow.Trigger.Type == models.TriggerTypeSchedule {
		prior, exists := m.registrations[workflow.ID]

		switch {
		case exists && sameSchedule(prior.workflow.Trigger, workflow.Trigger):
			workflow.Trigger.NextRunAt = prior.workflow.Trigger.NextRunAt
		case exists:
			// The schedule changed, so any next run the caller carried
			// belongs to the old one.
			if err := workflow.Trigger.ComputeNextRun(time.Now().UTC()); err != nil {
				return nil, err
			}
		case workflow.Trigger.NextRunAt == nil:
			if err := workflow.Trigger.ComputeNextRun(time.Now().UTC()); err != nil {
				return nil, err
			}
		}
	}

	m.seq++
	reg := &registration{seq: m.seq, workflow: workflow, callback: callback}
	m.registrations[workflow.ID] = reg

	m.logger.Info("Trigger registered",
		"workflow_id", workflow.ID,
		"trigger_type", workflow.Trigger.Type)

	return func() { m.unregister(workflow.ID, reg) }, nil
}

func sameSchedule(previous, next *models.TriggerSpec) bool {
	return previous.Type == models.TriggerTypeSchedule &&
		previous.Cron == next.Cron &&
		previous.Enabled == next.Enabled
}

// unregister removes a registration, but only if it is still the current one
// for the workflow id. A stale unregister from a replaced registration must
// not remove its successor.
func (m *Manager) unregister(workflowID string, reg *registration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if current, exists := m.registrations[workflowID]; exists && current == reg {
		delete(m.registrations, workflowID)
		m.logger.Info("Trigger unregistered", "workflow_id", workflowID)
	}
}

// Registered returns the number of live registrations.
func (m *Manager) Registered() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.registrations)
}

// Tick fires every schedule registration that is due at now, in ascending
// next-run order, and advances each to its next occurrence. The advance
// happens before the callback launches, so a second tick at the same instant
// cannot double-fire. Callbacks run on their own goroutines; in-flight runs
// never block the tick.
func (m *Manager) Tick(ctx context.Context, now time.Time) {
	m.mu.Lock()

	var due []*registration

	for _, reg := range m.registrations {
		if reg.workflow.Triggerable() && reg.workflow.Trigger.IsDue(now) {
			due = append(due, reg)
		}
	}

	sort.SliceStable(due, func(i, j int) bool {
		left, right := due[i].workflow.Trigger.NextRunAt, due[j].workflow.Trigger.NextRunAt
		if left.Equal(*right) {
			return due[i].seq < due[j].seq
		}

		return left.Before(*right)
	})

	type firing struct {
		reg  *registration
		data map[string]any
	}

	firings := make([]firing, 0, len(due))

	for _, reg := range due {
		scheduledFor := reg.workflow.Trigger.NextRunAt.Format(time.RFC3339)

		if err := reg.workflow.Trigger.ComputeNextRun(now); err != nil {
			// The cron parsed at save time; a failing advance means the
			// registration is unusable, so drop it from rotation.
			m.logger.Error("Failed to advance schedule, dropping registration",
				"workflow_id", reg.workflow.ID, "error", err)
			delete(m.registrations, reg.workflow.ID)

			continue
		}

		firings = append(firings, firing{
			reg: reg,
			data: map[string]any{
				"scheduled_for": scheduledFor,
				"fired_at":      now.UTC().Format(time.RFC3339),
			},
		})
	}

	m.mu.Unlock()

	for _, f := range firings {
		m.logger.Info("Schedule due, firing",
			"workflow_id", f.reg.workflow.ID,
			"scheduled_for", f.data["scheduled_for"])

		go m.fire(ctx, f.reg, f.data)
	}
}

// DispatchEvent matches an external event against all registered event
// triggers and fires every match concurrently. Unlike branch selection this
// is fan-out, not first-match-wins; no ordering is guaranteed across the
// matched workflows. It returns the number of triggers fired.
func (m *Manager) DispatchEvent(ctx context.Context, event models.TriggerEvent) int {
	m.mu.Lock()

	var matched []*registration

	for _, reg := range m.registrations {
		if reg.workflow.Triggerable() && reg.workflow.Trigger.MatchesEvent(event) {
			matched = append(matched, reg)
		}
	}

	m.mu.Unlock()

	data := map[string]any{
		"event_id":   event.ID,
		"event_type": event.Type,
		"event_text": event.Text,
	}
	if event.Data != nil {
		data["event_data"] = event.Data
	}

	for _, reg := range matched {
		m.logger.Info("Event matched trigger",
			"workflow_id", reg.workflow.ID,
			"event_type", event.Type)

		go m.fire(ctx, reg, data)
	}

	return len(matched)
}

func (m *Manager) fire(ctx context.Context, reg *registration, data map[string]any) {
	if err := reg.callback(ctx, data); err != nil {
		m.logger.ErrorContext(ctx, "Trigger callback failed",
			"workflow_id", reg.workflow.ID,
			"error", err)
	}
}

// Start runs the tick loop on the given interval until Stop is called or the
// context ends. Tests drive Tick directly instead.
func (m *Manager) Start(ctx context.Context, interval time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return nil
	}

	if interval <= 0 {
		return errors.New("tick interval must be positive")
	}

	m.ticker = time.NewTicker(interval)
	m.done = make(chan struct{})
	m.started = true

	go m.loop(ctx, m.ticker, m.done)

	m.logger.Info("Trigger manager started", "tick_interval", interval)

	return nil
}

func (m *Manager) loop(ctx context.Context, ticker *time.Ticker, done chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-ticker.C:
			m.Tick(ctx, time.Now().UTC())
		}
	}
}

// Stop halts the tick loop. Registrations survive a stop; callbacks already
// launched keep running.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.started {
		return nil
	}

	m.ticker.Stop()
	close(m.done)
	m.started = false

	m.logger.InfoContext(ctx, "Trigger manager stopped")

	return nil
}
