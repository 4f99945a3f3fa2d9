package models

// StepType discriminates what a workflow step does when the engine reaches it.
type StepType string

const (
	StepTypeTask         StepType = "task"
	StepTypeValidation   StepType = "validation"
	StepTypeApproval     StepType = "approval"
	StepTypeNotification StepType = "notification"
	StepTypeCondition    StepType = "condition"
	StepTypeWait         StepType = "wait"
)

// OnFailure governs whether the execution continues after a step failure.
// It is not an error-recovery mechanism: the step itself is always recorded
// as failed.
type OnFailure string

const (
	OnFailureStop          OnFailure = "stop"
	OnFailureContinue      OnFailure = "continue"
	OnFailureSkipRemaining OnFailure = "skip_remaining"
)

// WorkflowStep is one ordered unit of a workflow. Order values are dense and
// unique within a workflow; the persistence layer enforces uniqueness.
type WorkflowStep struct {
	ID     string   `json:"id"`
	Order  int      `json:"order"     validate:"min=1"`
	Name   string   `json:"name"      validate:"required"`
	Type   StepType `json:"step_type" validate:"required"`
	TaskID string   `json:"task_id,omitempty"`

	// InputMapping maps step input names to dotted paths into the execution
	// context. OutputMapping maps dotted context destinations to dotted paths
	// into the step's outputs.
	InputMapping  map[string]string `json:"input_mapping,omitempty"`
	OutputMapping map[string]string `json:"output_mapping,omitempty"`

	// Condition is a template expression evaluated against the execution
	// context before a task or validation step runs; false skips the step.
	Condition string `json:"condition,omitempty"`

	OnFailure OnFailure      `json:"on_failure"`
	Config    map[string]any `json:"config,omitempty"`
}

// FailurePolicy returns the effective failure policy for the step. Failed
// validations always stop the execution regardless of the declared policy.
func (s *WorkflowStep) FailurePolicy() OnFailure {
	if s.Type == StepTypeValidation {
		return OnFailureStop
	}

	if s.OnFailure == "" {
		return OnFailureStop
	}

	return s.OnFailure
}
