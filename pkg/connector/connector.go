// Package connector defines the boundary to external systems. Workflows
// never talk to providers directly; every side effect goes through an action
// invocation that reports a uniform result.
package connector

import "context"

// Result is the uniform outcome of an action invocation. OK distinguishes
// the action failing (captured in ErrorMessage) from the invocation itself
// erroring, which surfaces as a Go error instead.
type Result struct {
	OK               bool           `json:"ok"`
	Summary          string         `json:"summary,omitempty"`
	Data             map[string]any `json:"data,omitempty"`
	ErrorMessage     string         `json:"error_message,omitempty"`
	RequiresApproval bool           `json:"requires_approval,omitempty"`
}

// Invoker executes connector actions on behalf of a user.
type Invoker interface {
	Invoke(ctx context.Context, actionID string, payload map[string]any, userID string) (*Result, error)
}

// Catalog exposes the set of registered actions for validation and discovery.
type Catalog interface {
	Lookup(actionID string) (*Action, bool)
	Actions() []*Action
}

// Action describes one invocable connector action. PayloadSchema, when set,
// is a JSON schema the payload is validated against before the handler runs.
type Action struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Description   string         `json:"description,omitempty"`
	PayloadSchema map[string]any `json:"payload_schema,omitempty"`
}

// HandlerFunc executes one action.
type HandlerFunc func(ctx context.Context, payload map[string]any, userID string) (*Result, error)
