// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrWorkflowNotFound indicates a workflow was not found by the given identifier.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrTaskNotFound indicates a task definition was not found.
	ErrTaskNotFound = errors.New("task definition not found")

	// ErrImplementationNotFound indicates a task implementation was not found.
	ErrImplementationNotFound = errors.New("task implementation not found")

	// ErrProviderDefinitionNotFound indicates a provider definition was not found.
	ErrProviderDefinitionNotFound = errors.New("provider definition not found")

	// ErrProviderInstanceNotFound indicates a provider instance was not found.
	ErrProviderInstanceNotFound = errors.New("provider instance not found")

	// ErrExecutionNotFound indicates an execution was not found.
	ErrExecutionNotFound = errors.New("execution not found")

	// ErrStepNotFound indicates an execution step was not found.
	ErrStepNotFound = errors.New("execution step not found")

	// ErrDuplicateStepOrder indicates a workflow carries two steps with the same order.
	ErrDuplicateStepOrder = errors.New("duplicate step order")

	// ErrTaskReferenced indicates a task definition still has implementations.
	ErrTaskReferenced = errors.New("task definition is referenced by implementations")

	// ErrDuplicateInstanceName indicates a provider definition already carries
	// an instance with the same name.
	ErrDuplicateInstanceName = errors.New("duplicate provider instance name")

	// ErrWorkflowAlreadyExists indicates a workflow with the same slug already exists.
	ErrWorkflowAlreadyExists = errors.New("workflow already exists")
)

// WorkflowError wraps workflow-related errors with additional context.
type WorkflowError struct {
	Op         string // Operation being performed (e.g., "ByID", "Save", "Delete")
	WorkflowID string
	Err        error
	Message    string
}

func (e *WorkflowError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s operation failed for workflow %s: %s (%v)", e.Op, e.WorkflowID, e.Message, e.Err)
	}

	return fmt.Sprintf("%s operation failed for workflow %s: %v", e.Op, e.WorkflowID, e.Err)
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for workflow errors.
func (e *WorkflowError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewWorkflowError creates a new workflow error with context.
func NewWorkflowError(op, workflowID string, err error) *WorkflowError {
	return &WorkflowError{
		Op:         op,
		WorkflowID: workflowID,
		Err:        err,
	}
}

// ExecutionError wraps execution-related errors with additional context.
type ExecutionError struct {
	Op          string
	ExecutionID string
	Err         error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s operation failed for execution %s: %v", e.Op, e.ExecutionID, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

func (e *ExecutionError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewExecutionError creates a new execution error with context.
func NewExecutionError(op, executionID string, err error) *ExecutionError {
	return &ExecutionError{
		Op:          op,
		ExecutionID: executionID,
		Err:         err,
	}
}

// StepError wraps step-related errors with additional context.
type StepError struct {
	Op          string
	ExecutionID string
	Order       int
	Err         error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s operation failed for step %d of execution %s: %v", e.Op, e.Order, e.ExecutionID, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

func (e *StepError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsWorkflowNotFound checks if an error indicates a workflow was not found.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// IsExecutionNotFound checks if an error indicates an execution was not found.
func IsExecutionNotFound(err error) bool {
	return errors.Is(err, ErrExecutionNotFound)
}

// IsNotFound checks if an error indicates any record was not found.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound) ||
		errors.Is(err, ErrTaskNotFound) ||
		errors.Is(err, ErrImplementationNotFound) ||
		errors.Is(err, ErrProviderDefinitionNotFound) ||
		errors.Is(err, ErrProviderInstanceNotFound) ||
		errors.Is(err, ErrExecutionNotFound) ||
		errors.Is(err, ErrStepNotFound)
}
