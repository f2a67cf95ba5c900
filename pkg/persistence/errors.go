package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations return.
var (
	// ErrWorkflowNotFound indicates a workflow was not found by the given identifier.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrExecutionNotFound indicates an execution was not found by the given identifier.
	ErrExecutionNotFound = errors.New("execution not found")

	// ErrCheckpointNotFound indicates a checkpoint request was not found.
	ErrCheckpointNotFound = errors.New("checkpoint request not found")

	// ErrCheckpointAlreadyResolved indicates a checkpoint request was resolved before.
	ErrCheckpointAlreadyResolved = errors.New("checkpoint request already resolved")

	// ErrDeadLetterNotFound indicates a dead letter entry was not found.
	ErrDeadLetterNotFound = errors.New("dead letter entry not found")

	// ErrDeadLetterAlreadyResolved indicates a dead letter entry was resolved before.
	ErrDeadLetterAlreadyResolved = errors.New("dead letter entry already resolved")

	// ErrNotificationNotFound indicates a notification was not found.
	ErrNotificationNotFound = errors.New("notification not found")
)

// StoreError wraps a storage failure with the operation and entity involved.
type StoreError struct {
	Op     string // Operation being performed (e.g. "Save", "Resolve")
	Entity string // Entity kind (e.g. "workflow", "checkpoint")
	ID     string // Entity id if applicable
	Err    error  // Underlying error
}

func (e *StoreError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s %s %s: %v", e.Op, e.Entity, e.ID, e.Err)
	}

	return fmt.Sprintf("%s %s: %v", e.Op, e.Entity, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func (e *StoreError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewStoreError creates a store error with context.
func NewStoreError(op, entity, id string, err error) *StoreError {
	return &StoreError{Op: op, Entity: entity, ID: id, Err: err}
}

// IsNotFound reports whether err is any of the not-found sentinels.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound) ||
		errors.Is(err, ErrExecutionNotFound) ||
		errors.Is(err, ErrCheckpointNotFound) ||
		errors.Is(err, ErrDeadLetterNotFound) ||
		errors.Is(err, ErrNotificationNotFound)
}

// IsAlreadyResolved reports whether err marks a second resolution attempt.
func IsAlreadyResolved(err error) bool {
	return errors.Is(err, ErrCheckpointAlreadyResolved) ||
		errors.Is(err, ErrDeadLetterAlreadyResolved)
}
