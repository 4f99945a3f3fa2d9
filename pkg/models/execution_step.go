package models

import "time"

// StepStatus is the lifecycle state of an execution step. Steps never
// transition backward.
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepRunning   StepStatus = "running"
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
	StepSkipped   StepStatus = "skipped"
)

// Finalized reports whether the step reached a terminal per-step state.
func (s StepStatus) Finalized() bool {
	return s == StepCompleted || s == StepFailed || s == StepSkipped
}

// ExecutionStep records one workflow step having run within one execution.
// Steps are unique by (execution, order), created lazily as the engine
// advances, and finalized only by the step executor.
type ExecutionStep struct {
	ID             string     `json:"id"`
	ExecutionID    string     `json:"execution_id"`
	WorkflowStepID string     `json:"workflow_step_id,omitempty"`
	Order          int        `json:"order"`
	Name           string     `json:"name"`
	Status         StepStatus `json:"status"`

	ImplementationID string `json:"implementation_id,omitempty"`
	Provider         string `json:"provider,omitempty"`

	RenderedContent string         `json:"rendered_content,omitempty"`
	Inputs          map[string]any `json:"inputs,omitempty"`
	Outputs         map[string]any `json:"outputs,omitempty"`
	Logs            string         `json:"logs,omitempty"`
	ErrorMessage    string         `json:"error_message,omitempty"`

	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// AppendLog adds a line to the step's preserved logs.
func (s *ExecutionStep) AppendLog(line string) {
	if line == "" {
		return
	}

	if s.Logs == "" {
		s.Logs = line

		return
	}

	s.Logs += "\n" + line
}
