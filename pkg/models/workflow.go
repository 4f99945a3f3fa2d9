// Package models defines the core domain models for network provisioning workflows.
package models

import "time"

// Workflow is an ordered list of steps that automates a multi-step change
// against network infrastructure. Workflows are operator-managed configuration
// and are read-only to the execution engine.
type Workflow struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"        validate:"required,min=3"`
	Slug             string          `json:"slug"        validate:"required,lowercase"`
	Description      string          `json:"description"`
	Category         string          `json:"category,omitempty"`
	Version          string          `json:"version,omitempty"`
	Enabled          bool            `json:"enabled"`
	ApprovalRequired bool            `json:"approval_required"`
	ScheduleAllowed  bool            `json:"schedule_allowed"`
	InputSchema      map[string]any  `json:"input_schema,omitempty"`
	DefaultInputs    map[string]any  `json:"default_inputs,omitempty"`
	Steps            []*WorkflowStep `json:"steps"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// StepByOrder returns the workflow step with the given order, or nil.
func (w *Workflow) StepByOrder(order int) *WorkflowStep {
	for _, step := range w.Steps {
		if step.Order == order {
			return step
		}
	}

	return nil
}

// OrderedSteps returns the steps sorted by ascending order. The slice is a
// copy; the workflow itself is never mutated by callers.
func (w *Workflow) OrderedSteps() []*WorkflowStep {
	steps := make([]*WorkflowStep, len(w.Steps))
	copy(steps, w.Steps)

	for i := 1; i < len(steps); i++ {
		for j := i; j > 0 && steps[j-1].Order > steps[j].Order; j-- {
			steps[j-1], steps[j] = steps[j], steps[j-1]
		}
	}

	return steps
}
