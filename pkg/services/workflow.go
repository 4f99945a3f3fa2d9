package services

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/netpilot/netpilot/pkg/models"
	"github.com/netpilot/netpilot/pkg/persistence"
)

// Workflow is the operator-facing workflow configuration service.
type Workflow struct {
	persistence persistence.Persistence
	validate    *validator.Validate
}

// NewWorkflow creates a new workflow service.
func NewWorkflow(p persistence.Persistence) *Workflow {
	return &Workflow{
		persistence: p,
		validate:    validator.New(),
	}
}

// HealthCheck checks the health of the persistence layer.
func (w *Workflow) HealthCheck(ctx context.Context) (string, bool) {
	if w.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := w.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

func (w *Workflow) List(ctx context.Context) ([]*models.Workflow, error) {
	return w.persistence.Workflows().List(ctx)
}

func (w *Workflow) Get(ctx context.Context, id string) (*models.Workflow, error) {
	return w.persistence.Workflows().ByID(ctx, id)
}

func (w *Workflow) GetBySlug(ctx context.Context, slug string) (*models.Workflow, error) {
	return w.persistence.Workflows().BySlug(ctx, slug)
}

// Save validates and persists a workflow. Step orders must be unique and
// dense starting at 1; task steps must reference a task.
func (w *Workflow) Save(ctx context.Context, workflow *models.Workflow) (*models.Workflow, error) {
	if workflow.ID == "" {
		workflow.ID = uuid.NewString()
	}

	for _, step := range workflow.Steps {
		if step.ID == "" {
			step.ID = uuid.NewString()
		}
	}

	err := w.validate.Struct(workflow)
	if err != nil {
		return nil, &ServiceError{Op: "SaveWorkflow", Message: err.Error(), Err: ErrInvalidRequest}
	}

	err = validateSteps(workflow.Steps)
	if err != nil {
		return nil, err
	}

	err = w.persistence.Workflows().Save(ctx, workflow)
	if err != nil {
		return nil, err
	}

	return workflow, nil
}

func (w *Workflow) Delete(ctx context.Context, id string) error {
	return w.persistence.Workflows().Delete(ctx, id)
}

func validateSteps(steps []*models.WorkflowStep) error {
	orders := make(map[int]string, len(steps))

	for _, step := range steps {
		if step.Order < 1 {
			return &ServiceError{
				Op:      "SaveWorkflow",
				Message: fmt.Sprintf("step %q: order must be >= 1", step.Name),
				Err:     ErrInvalidRequest,
			}
		}

		if other, dup := orders[step.Order]; dup {
			return &ServiceError{
				Op:      "SaveWorkflow",
				Message: fmt.Sprintf("steps %q and %q share order %d", other, step.Name, step.Order),
				Err:     persistence.ErrDuplicateStepOrder,
			}
		}

		orders[step.Order] = step.Name

		if step.Type == models.StepTypeTask && step.TaskID == "" {
			return &ServiceError{
				Op:      "SaveWorkflow",
				Message: fmt.Sprintf("task step %q has no task reference", step.Name),
				Err:     ErrInvalidRequest,
			}
		}
	}

	// Orders must be dense: 1..n with no gaps.
	for i := 1; i <= len(steps); i++ {
		if _, ok := orders[i]; !ok {
			return &ServiceError{
				Op:      "SaveWorkflow",
				Message: fmt.Sprintf("step orders must be dense: missing order %d", i),
				Err:     ErrInvalidRequest,
			}
		}
	}

	return nil
}
