package connector

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

var (
	// ErrUnknownAction is returned when an action id has no registration.
	ErrUnknownAction = errors.New("unknown connector action")
	// ErrDuplicateAction is returned when an action id is registered twice.
	ErrDuplicateAction = errors.New("connector action already registered")
)

type registration struct {
	action  *Action
	handler HandlerFunc
}

// Registry maps action ids to handlers and validates payloads against each
// action's JSON schema before invoking. It implements Invoker.
type Registry struct {
	mu      sync.RWMutex
	actions map[string]registration
}

// NewRegistry creates an empty action registry.
func NewRegistry() *Registry {
	return &Registry{actions: make(map[string]registration)}
}

// Register adds an action and its handler.
func (r *Registry) Register(action *Action, handler HandlerFunc) error {
	if action == nil || action.ID == "" {
		return errors.New("connector action requires an id")
	}

	if handler == nil {
		return fmt.Errorf("connector action %s requires a handler", action.ID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.actions[action.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateAction, action.ID)
	}

	r.actions[action.ID] = registration{action: action, handler: handler}

	return nil
}

// Lookup returns the action registered under id, if any.
func (r *Registry) Lookup(actionID string) (*Action, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reg, exists := r.actions[actionID]
	if !exists {
		return nil, false
	}

	return reg.action, true
}

// Actions returns the registered actions sorted by id.
func (r *Registry) Actions() []*Action {
	r.mu.RLock()

	actions := make([]*Action, 0, len(r.actions))
	for _, reg := range r.actions {
		actions = append(actions, reg.action)
	}

	r.mu.RUnlock()

	sort.Slice(actions, func(i, j int) bool {
		return actions[i].ID < actions[j].ID
	})

	return actions
}

// Invoke validates the payload against the action's schema and runs its
// handler.
func (r *Registry) Invoke(ctx context.Context, actionID string, payload map[string]any, userID string) (*Result, error) {
	r.mu.RLock()
	reg, exists := r.actions[actionID]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAction, actionID)
	}

	if reg.action.PayloadSchema != nil {
		if err := validatePayload(payload, reg.action.PayloadSchema); err != nil {
			return nil, fmt.Errorf("invalid payload for action %s: %w", actionID, err)
		}
	}

	return reg.handler(ctx, payload, userID)
}

// validatePayload validates payload data against a JSON schema.
func validatePayload(payload map[string]any, schema map[string]any) error {
	schemaLoader := gojsonschema.NewGoLoader(schema)
	dataLoader := gojsonschema.NewGoLoader(payload)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return err
	}

	if !result.Valid() {
		messages := make([]string, 0, len(result.Errors()))
		for _, validationErr := range result.Errors() {
			messages = append(messages, validationErr.String())
		}

		return fmt.Errorf("JSON schema validation failed: %s", strings.Join(messages, "; "))
	}

	return nil
}
