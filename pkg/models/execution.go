package models

import "time"

// ExecutionStatus is the lifecycle state of an execution.
type ExecutionStatus string

const (
	ExecutionPending          ExecutionStatus = "pending"
	ExecutionScheduled        ExecutionStatus = "scheduled"
	ExecutionRunning          ExecutionStatus = "running"
	ExecutionAwaitingApproval ExecutionStatus = "awaiting_approval"
	ExecutionCompleted        ExecutionStatus = "completed"
	ExecutionFailed           ExecutionStatus = "failed"
	ExecutionCancelled        ExecutionStatus = "cancelled"
)

// Terminal reports whether the status permits no further transitions.
func (s ExecutionStatus) Terminal() bool {
	return s == ExecutionCompleted || s == ExecutionFailed || s == ExecutionCancelled
}

// Operation is the provider operation requested for an execution. Render is
// always performed; diff and apply additionally invoke the provider driver.
type Operation string

const (
	OperationRender Operation = "render"
	OperationDiff   Operation = "diff"
	OperationApply  Operation = "apply"
)

// ValidOperation reports whether op names a known operation.
func ValidOperation(op Operation) bool {
	return op == OperationRender || op == OperationDiff || op == OperationApply
}

// TargetRef identifies a catalog object an execution runs against.
type TargetRef struct {
	Kind string `json:"kind" validate:"required"`
	ID   string `json:"id"   validate:"required"`
}

// Execution is one run of a workflow against a set of targets. Inputs are
// immutable after creation; status, context and timestamps are owned by the
// execution engine and mutated by at most one advance at a time.
type Execution struct {
	ID         string          `json:"id"`
	WorkflowID string          `json:"workflow_id" validate:"required"`
	Status     ExecutionStatus `json:"status"`
	Operation  Operation       `json:"operation"`

	Inputs  map[string]any `json:"inputs,omitempty"`
	Context map[string]any `json:"context,omitempty"`
	Targets []TargetRef    `json:"targets,omitempty"`

	RequestedBy string `json:"requested_by,omitempty"`
	ApprovedBy  string `json:"approved_by,omitempty"`
	Error       string `json:"error,omitempty"`

	ScheduledFor *time.Time `json:"scheduled_for,omitempty"`
	// Recurrence is an optional cron expression. The scheduler re-arms a
	// recurring execution by creating the next occurrence when this one
	// becomes due.
	Recurrence string `json:"recurrence,omitempty"`
	// ResumeAt is set while a wait step defers advancement; the scheduler
	// re-advances the execution once it passes.
	ResumeAt    *time.Time `json:"resume_at,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Runnable reports whether an advance may start or resume this execution at
// the given instant.
func (e *Execution) Runnable(now time.Time) bool {
	switch e.Status {
	case ExecutionPending, ExecutionRunning:
		return true
	case ExecutionScheduled:
		return e.ScheduledFor == nil || !e.ScheduledFor.After(now)
	case ExecutionAwaitingApproval:
		return e.ApprovedBy != ""
	default:
		return false
	}
}
