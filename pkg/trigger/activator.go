package trigger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/routinehq/routine/pkg/engine"
	"github.com/routinehq/routine/pkg/models"
	"github.com/routinehq/routine/pkg/persistence"
)

const (
	DefaultTickInterval   = time.Second
	DefaultResyncInterval = time.Minute

	// syncPageSize matches the repository list cap.
	syncPageSize = 100
)

// RunRequester asks for a background run of a workflow.
type RunRequester interface {
	RequestRun(ctx context.Context, params engine.RunParams) error
}

// Activator keeps the trigger manager's registrations in line with the store
// and turns firings into background run requests. Registrations live in
// memory, so the activator re-syncs periodically to pick up workflows saved,
// archived or re-scheduled since the last pass.
type Activator struct {
	store   persistence.Persistence
	runs    RunRequester
	manager *Manager
	logger  *slog.Logger

	mu          sync.Mutex
	unregisters map[string]func()
}

// NewActivator creates an activator over the given manager.
func NewActivator(
	store persistence.Persistence,
	runs RunRequester,
	manager *Manager,
	logger *slog.Logger,
) *Activator {
	return &Activator{
		store:       store,
		runs:        runs,
		manager:     manager,
		logger:      logger.With("module", "activator"),
		unregisters: make(map[string]func()),
	}
}

// Sync reconciles registrations with the store: every ready workflow with an
// enabled schedule or event trigger gets registered and workflows that left
// that set get unregistered. Manual triggers have nothing to activate and are
// skipped. Re-registering an unchanged schedule keeps its in-memory next run,
// so calling Sync repeatedly neither re-fires nor skips boundaries.
func (a *Activator) Sync(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	status := models.WorkflowStatusReady
	seen := make(map[string]bool)

	for offset := 0; ; offset += syncPageSize {
		result, err := a.store.WorkflowRepository().List(ctx, persistence.ListWorkflowsOptions{
			Status: &status,
			Limit:  syncPageSize,
			Offset: offset,
		})
		if err != nil {
			return fmt.Errorf("failed to list ready workflows: %w", err)
		}

		for _, workflow := range result.Workflows {
			if !workflow.Triggerable() || workflow.Trigger.Type == models.TriggerTypeManual {
				continue
			}

			unregister, err := a.manager.Register(workflow, a.activation(workflow))
			if err != nil {
				a.logger.ErrorContext(ctx, "Skipping workflow with unusable trigger",
					"workflow_id", workflow.ID, "error", err)

				continue
			}

			seen[workflow.ID] = true
			a.unregisters[workflow.ID] = unregister
		}

		if !result.HasNextPage {
			break
		}
	}

	for id, unregister := range a.unregisters {
		if !seen[id] {
			unregister()
			delete(a.unregisters, id)
		}
	}

	a.logger.InfoContext(ctx, "Trigger registrations synced", "registered", len(a.unregisters))

	return nil
}

// activation builds the fire callback for one workflow. RequestRun
// revalidates against the store, so a workflow archived between syncs
// cannot start a run from a stale registration.
func (a *Activator) activation(workflow *models.Workflow) Callback {
	params := engine.RunParams{
		UserID:      workflow.UserID,
		WorkflowID:  workflow.ID,
		TriggerType: workflow.Trigger.Type,
	}

	return func(ctx context.Context, data map[string]any) error {
		fireParams := params
		fireParams.TriggerData = data

		return a.runs.RequestRun(ctx, fireParams)
	}
}

// Dispatch fans an external event out to the registered event triggers and
// returns how many fired.
func (a *Activator) Dispatch(ctx context.Context, event models.TriggerEvent) int {
	return a.manager.DispatchEvent(ctx, event)
}

// Run syncs, starts the tick loop and keeps registrations reconciled until
// the context ends. Non-positive intervals fall back to the defaults.
func (a *Activator) Run(ctx context.Context, tickInterval, resyncInterval time.Duration) error {
	if tickInterval <= 0 {
		tickInterval = DefaultTickInterval
	}

	if resyncInterval <= 0 {
		resyncInterval = DefaultResyncInterval
	}

	if err := a.Sync(ctx); err != nil {
		return err
	}

	if err := a.manager.Start(ctx, tickInterval); err != nil {
		return err
	}

	ticker := time.NewTicker(resyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return a.manager.Stop(context.WithoutCancel(ctx))
		case <-ticker.C:
			if err := a.Sync(ctx); err != nil {
				a.logger.ErrorContext(ctx, "Trigger re-sync failed", "error", err)
			}
		}
	}
}
