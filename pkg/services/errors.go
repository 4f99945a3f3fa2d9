// Package services provides the business logic between the HTTP surface and
// the persistence layer, plus standardized error types for it.
package services

import (
	"errors"
	"fmt"

	"github.com/netpilot/netpilot/pkg/persistence"
)

// Business logic errors. Validation errors map to 400 responses, conflicts
// to 409.
var (
	ErrInvalidRequest      = errors.New("invalid request")
	ErrWorkflowDisabled    = errors.New("workflow is disabled")
	ErrScheduleNotAllowed  = errors.New("workflow does not allow scheduled executions")
	ErrNoTargets           = errors.New("execution requires at least one target")
	ErrInputSchemaViolated = errors.New("inputs do not satisfy the workflow input schema")
	ErrUnknownDriverKey    = errors.New("provider definition references an unregistered driver key")
	ErrUnknownOperation    = errors.New("unknown operation")

	ErrExecutionTerminal = errors.New("execution is in a terminal state")
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string
	Message string
	Err     error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError checks if an error should surface as HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrScheduleNotAllowed) ||
		errors.Is(err, ErrNoTargets) ||
		errors.Is(err, ErrInputSchemaViolated) ||
		errors.Is(err, ErrUnknownDriverKey) ||
		errors.Is(err, ErrUnknownOperation) ||
		errors.Is(err, persistence.ErrDuplicateStepOrder) ||
		errors.Is(err, persistence.ErrDuplicateInstanceName)
}

// IsConflictError checks if an error should surface as HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrWorkflowDisabled) ||
		errors.Is(err, ErrExecutionTerminal)
}
