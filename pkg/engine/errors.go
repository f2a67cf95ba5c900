package engine

import (
	"errors"
	"fmt"

	"github.com/routinehq/routine/pkg/checkpoint"
	"github.com/routinehq/routine/pkg/compiler"
	"github.com/routinehq/routine/pkg/connector"
	"github.com/routinehq/routine/pkg/history"
	"github.com/routinehq/routine/pkg/models"
	"github.com/routinehq/routine/pkg/persistence"
	"github.com/routinehq/routine/pkg/planner"
)

// Validation errors (400 Bad Request).
var (
	ErrInvalidRequest  = errors.New("invalid request")
	ErrWorkflowNil     = errors.New("workflow cannot be nil")
	ErrEmptyUserID     = errors.New("user id cannot be empty")
	ErrUnknownStepKind = errors.New("unknown step kind")
	// ErrUnknownActionID is returned when a step references an action id the
	// registry does not know.
	ErrUnknownActionID = errors.New("step references an unregistered action")
	// ErrCheckpointStepInIsolation is returned when RunStepByID targets a
	// checkpoint step; a pause point has no meaning outside a full run.
	ErrCheckpointStepInIsolation = errors.New("checkpoint steps cannot run in isolation")
)

// Not found errors (404).
var (
	ErrWorkflowNotFound  = errors.New("workflow not found")
	ErrExecutionNotFound = errors.New("execution not found")
	ErrStepNotFound      = errors.New("step not found")
)

// Conflict errors (409).
var (
	ErrWorkflowArchived = errors.New("workflow is archived")
	// ErrInvalidStatusTransition is returned for lifecycle moves the status
	// machine does not allow, e.g. pausing a draft.
	ErrInvalidStatusTransition = errors.New("invalid workflow status transition")
	// ErrExecutionNotResumable is returned when a checkpoint resolution
	// targets an execution that already reached a terminal status.
	ErrExecutionNotResumable = errors.New("execution is not resumable")
)

// Error codes carried to the API layer.
const (
	CodeValidation = "validation"
	CodeNotFound   = "not_found"
	CodeConflict   = "conflict"
	CodeInternal   = "internal"
)

// EngineError wraps engine-level errors with operation context.
type EngineError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *EngineError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

func (e *EngineError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError checks if an error should map to HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrWorkflowNil) ||
		errors.Is(err, ErrEmptyUserID) ||
		errors.Is(err, ErrUnknownStepKind) ||
		errors.Is(err, ErrUnknownActionID) ||
		errors.Is(err, ErrCheckpointStepInIsolation) ||
		errors.Is(err, planner.ErrCyclicPlan) ||
		errors.Is(err, planner.ErrInvalidPlan) ||
		errors.Is(err, models.ErrInvalidTrigger) ||
		errors.Is(err, checkpoint.ErrInvalidDecision) ||
		errors.Is(err, checkpoint.ErrMissingEditedAction) ||
		errors.Is(err, compiler.ErrEmptyPrompt) ||
		errors.Is(err, connector.ErrUnknownAction)
}

// IsNotFoundError checks if an error should map to HTTP 404.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound) ||
		errors.Is(err, ErrExecutionNotFound) ||
		errors.Is(err, ErrStepNotFound) ||
		errors.Is(err, history.ErrEntryNotFound) ||
		persistence.IsNotFound(err)
}

// IsConflictError checks if an error should map to HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrWorkflowArchived) ||
		errors.Is(err, ErrInvalidStatusTransition) ||
		errors.Is(err, ErrExecutionNotResumable) ||
		persistence.IsAlreadyResolved(err)
}

// opError wraps err with the op and a classified code, keeping an existing
// EngineError untouched.
func opError(op string, err error) error {
	if err == nil {
		return nil
	}

	var engineErr *EngineError
	if errors.As(err, &engineErr) {
		return err
	}

	return &EngineError{Op: op, Code: codeFor(err), Err: err}
}

func codeFor(err error) string {
	switch {
	case IsValidationError(err):
		return CodeValidation
	case IsNotFoundError(err):
		return CodeNotFound
	case IsConflictError(err):
		return CodeConflict
	default:
		return CodeInternal
	}
}
