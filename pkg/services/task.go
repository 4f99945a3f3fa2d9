package services

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/netpilot/netpilot/pkg/models"
	"github.com/netpilot/netpilot/pkg/persistence"
)

// Task manages the task catalog: definitions and their scoped
// implementations.
type Task struct {
	persistence persistence.Persistence
	validate    *validator.Validate
}

// NewTask creates a new task service.
func NewTask(p persistence.Persistence) *Task {
	return &Task{
		persistence: p,
		validate:    validator.New(),
	}
}

func (t *Task) ListDefinitions(ctx context.Context) ([]*models.TaskDefinition, error) {
	return t.persistence.Tasks().ListDefinitions(ctx)
}

func (t *Task) GetDefinition(ctx context.Context, id string) (*models.TaskDefinition, error) {
	return t.persistence.Tasks().DefinitionByID(ctx, id)
}

func (t *Task) SaveDefinition(ctx context.Context, task *models.TaskDefinition) (*models.TaskDefinition, error) {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}

	err := t.validate.Struct(task)
	if err != nil {
		return nil, &ServiceError{Op: "SaveTask", Message: err.Error(), Err: ErrInvalidRequest}
	}

	err = t.persistence.Tasks().SaveDefinition(ctx, task)
	if err != nil {
		return nil, err
	}

	return task, nil
}

// DeleteDefinition removes a task definition. Deletion is blocked while
// implementations reference the task.
func (t *Task) DeleteDefinition(ctx context.Context, id string) error {
	return t.persistence.Tasks().DeleteDefinition(ctx, id)
}

func (t *Task) ListImplementations(ctx context.Context, taskID string) ([]*models.TaskImplementation, error) {
	return t.persistence.Tasks().ListImplementations(ctx, taskID)
}

func (t *Task) GetImplementation(ctx context.Context, id string) (*models.TaskImplementation, error) {
	return t.persistence.Tasks().ImplementationByID(ctx, id)
}

func (t *Task) SaveImplementation(ctx context.Context, impl *models.TaskImplementation) (*models.TaskImplementation, error) {
	if impl.ID == "" {
		impl.ID = uuid.NewString()
	}

	err := t.validate.Struct(impl)
	if err != nil {
		return nil, &ServiceError{Op: "SaveImplementation", Message: err.Error(), Err: ErrInvalidRequest}
	}

	// The referenced task must exist; implementations never point into the
	// void.
	_, err = t.persistence.Tasks().DefinitionByID(ctx, impl.TaskID)
	if err != nil {
		return nil, err
	}

	err = t.persistence.Tasks().SaveImplementation(ctx, impl)
	if err != nil {
		return nil, err
	}

	return impl, nil
}

func (t *Task) DeleteImplementation(ctx context.Context, id string) error {
	return t.persistence.Tasks().DeleteImplementation(ctx, id)
}
