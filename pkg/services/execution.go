package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/xeipuuv/gojsonschema"

	"github.com/netpilot/netpilot/pkg/engine"
	"github.com/netpilot/netpilot/pkg/eventbus"
	"github.com/netpilot/netpilot/pkg/events"
	"github.com/netpilot/netpilot/pkg/models"
	"github.com/netpilot/netpilot/pkg/persistence"
)

// Execution is the operator-facing execution service. Creation and listing
// live here; advancing state belongs to the engine, to which the lifecycle
// operations delegate.
type Execution struct {
	persistence persistence.Persistence
	engine      *engine.Engine
	bus         eventbus.EventBus
}

// NewExecution creates a new execution service.
func NewExecution(p persistence.Persistence, eng *engine.Engine, bus eventbus.EventBus) *Execution {
	return &Execution{
		persistence: p,
		engine:      eng,
		bus:         bus,
	}
}

func (s *Execution) List(ctx context.Context, workflowID string) ([]*models.Execution, error) {
	return s.persistence.Executions().List(ctx, workflowID)
}

func (s *Execution) Get(ctx context.Context, id string) (*models.Execution, error) {
	return s.persistence.Executions().ByID(ctx, id)
}

func (s *Execution) Steps(ctx context.Context, id string) ([]*models.ExecutionStep, error) {
	_, err := s.persistence.Executions().ByID(ctx, id)
	if err != nil {
		return nil, err
	}

	return s.persistence.Executions().Steps(ctx, id)
}

// Create validates the request against the workflow, fills defaults and
// persists the execution. Inputs are frozen here: the workflow's default
// inputs underlay the caller's, and the merged map must satisfy the
// workflow's input schema before anything is stored.
func (s *Execution) Create(ctx context.Context, execution *models.Execution) (*models.Execution, error) {
	workflow, err := s.persistence.Workflows().ByID(ctx, execution.WorkflowID)
	if err != nil {
		return nil, err
	}

	if !workflow.Enabled {
		return nil, &ServiceError{Op: "CreateExecution", Message: workflow.Slug, Err: ErrWorkflowDisabled}
	}

	if len(execution.Targets) == 0 {
		return nil, &ServiceError{Op: "CreateExecution", Err: ErrNoTargets}
	}

	if execution.Operation == "" {
		execution.Operation = models.OperationApply
	}

	if !models.ValidOperation(execution.Operation) {
		return nil, &ServiceError{Op: "CreateExecution", Message: string(execution.Operation), Err: ErrUnknownOperation}
	}

	if (execution.ScheduledFor != nil || execution.Recurrence != "") && !workflow.ScheduleAllowed {
		return nil, &ServiceError{Op: "CreateExecution", Message: workflow.Slug, Err: ErrScheduleNotAllowed}
	}

	if execution.Recurrence != "" {
		schedule, err := cron.ParseStandard(execution.Recurrence)
		if err != nil {
			return nil, &ServiceError{Op: "CreateExecution", Message: err.Error(), Err: ErrInvalidRequest}
		}

		if execution.ScheduledFor == nil {
			next := schedule.Next(time.Now().UTC())
			execution.ScheduledFor = &next
		}
	}

	execution.Inputs = mergeInputs(workflow.DefaultInputs, execution.Inputs)

	err = validateInputs(workflow.InputSchema, execution.Inputs)
	if err != nil {
		return nil, err
	}

	execution.ID = uuid.NewString()
	execution.Status = models.ExecutionPending
	execution.Context = nil
	execution.ApprovedBy = ""
	execution.Error = ""

	if execution.ScheduledFor != nil {
		execution.Status = models.ExecutionScheduled
	}

	err = s.persistence.Executions().Save(ctx, execution)
	if err != nil {
		return nil, err
	}

	// Scheduled executions are picked up by the scheduler once due.
	if execution.Status == models.ExecutionPending && s.bus != nil {
		err = s.bus.Publish(ctx, execution.ID, &events.ExecutionQueued{
			BaseEvent: events.BaseEvent{
				ID:          uuid.NewString(),
				Type:        events.ExecutionQueuedEvent,
				Timestamp:   execution.CreatedAt,
				ExecutionID: execution.ID,
				WorkflowID:  execution.WorkflowID,
			},
			Operation: execution.Operation,
		})
		if err != nil {
			return nil, err
		}
	}

	return execution, nil
}

// Approve records the approver and requeues the execution if it was waiting
// on approval. Approving twice is a no-op.
func (s *Execution) Approve(ctx context.Context, id, approvedBy string) error {
	return s.mapEngineErr(s.engine.Approve(ctx, id, approvedBy))
}

func (s *Execution) Cancel(ctx context.Context, id string) error {
	return s.mapEngineErr(s.engine.Cancel(ctx, id))
}

func (s *Execution) RequestOperation(ctx context.Context, id string, operation models.Operation) error {
	if !models.ValidOperation(operation) {
		return &ServiceError{Op: "RequestOperation", Message: string(operation), Err: ErrUnknownOperation}
	}

	return s.mapEngineErr(s.engine.RequestOperation(ctx, id, operation))
}

func (s *Execution) mapEngineErr(err error) error {
	if errors.Is(err, engine.ErrExecutionNotRunnable) {
		return &ServiceError{Op: "Execution", Message: err.Error(), Err: ErrExecutionTerminal}
	}

	return err
}

func mergeInputs(defaults, inputs map[string]any) map[string]any {
	if len(defaults) == 0 {
		return inputs
	}

	merged := make(map[string]any, len(defaults)+len(inputs))

	for key, value := range defaults {
		merged[key] = value
	}

	for key, value := range inputs {
		merged[key] = value
	}

	return merged
}

func validateInputs(schema, inputs map[string]any) error {
	if len(schema) == 0 {
		return nil
	}

	if inputs == nil {
		inputs = map[string]any{}
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(schema),
		gojsonschema.NewGoLoader(inputs),
	)
	if err != nil {
		return &ServiceError{Op: "CreateExecution", Message: err.Error(), Err: ErrInputSchemaViolated}
	}

	if result.Valid() {
		return nil
	}

	messages := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		messages = append(messages, desc.String())
	}

	return &ServiceError{Op: "CreateExecution", Message: strings.Join(messages, "; "), Err: ErrInputSchemaViolated}
}
