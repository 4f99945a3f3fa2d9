// Package web provides the HTTP surface for workflow, task, provider and
// execution management.
package web

import (
	"time"

	"github.com/netpilot/netpilot/pkg/models"
)

// CreateWorkflowRequest is the request body for creating a workflow.
type CreateWorkflowRequest struct {
	Name             string                 `json:"name"              validate:"required,min=3"`
	Slug             string                 `json:"slug"              validate:"required,lowercase"`
	Description      string                 `json:"description"`
	Category         string                 `json:"category"`
	Version          string                 `json:"version"`
	Enabled          bool                   `json:"enabled"`
	ApprovalRequired bool                   `json:"approval_required"`
	ScheduleAllowed  bool                   `json:"schedule_allowed"`
	InputSchema      map[string]any         `json:"input_schema,omitempty"`
	DefaultInputs    map[string]any         `json:"default_inputs,omitempty"`
	Steps            []*models.WorkflowStep `json:"steps"`
}

// UpdateWorkflowRequest supports partial updates. Steps, when present,
// replace the existing list wholesale.
type UpdateWorkflowRequest struct {
	Name             *string                `json:"name,omitempty" validate:"omitempty,min=3"`
	Description      *string                `json:"description,omitempty"`
	Category         *string                `json:"category,omitempty"`
	Version          *string                `json:"version,omitempty"`
	Enabled          *bool                  `json:"enabled,omitempty"`
	ApprovalRequired *bool                  `json:"approval_required,omitempty"`
	ScheduleAllowed  *bool                  `json:"schedule_allowed,omitempty"`
	InputSchema      map[string]any         `json:"input_schema,omitempty"`
	DefaultInputs    map[string]any         `json:"default_inputs,omitempty"`
	Steps            []*models.WorkflowStep `json:"steps,omitempty"`
}

// CreateExecutionRequest is the request body for launching a workflow run.
// The workflow comes from the URL path.
type CreateExecutionRequest struct {
	Operation    string             `json:"operation"`
	Inputs       map[string]any     `json:"inputs,omitempty"`
	Targets      []models.TargetRef `json:"targets"            validate:"required,min=1,dive"`
	RequestedBy  string             `json:"requested_by"`
	ScheduledFor *time.Time         `json:"scheduled_for,omitempty"`
	Recurrence   string             `json:"recurrence,omitempty"`
}

// ApproveExecutionRequest records who approved a gated execution.
type ApproveExecutionRequest struct {
	ApprovedBy string `json:"approved_by" validate:"required"`
}

// RequestOperationRequest changes the operation of a suspended execution.
type RequestOperationRequest struct {
	Operation string `json:"operation" validate:"required"`
}
