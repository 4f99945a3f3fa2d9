package file

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/netpilot/netpilot/pkg/models"
	"github.com/netpilot/netpilot/pkg/persistence"
)

// TaskRepository handles task definitions and implementations on disk.
type TaskRepository struct {
	definitionsDir     string
	implementationsDir string
	mu                 sync.RWMutex
}

// NewTaskRepository creates a new task repository.
func NewTaskRepository(root string) *TaskRepository {
	return &TaskRepository{
		definitionsDir:     filepath.Join(root, "tasks"),
		implementationsDir: filepath.Join(root, "implementations"),
	}
}

func (tr *TaskRepository) ListDefinitions(_ context.Context) ([]*models.TaskDefinition, error) {
	tr.mu.RLock()
	defer tr.mu.RUnlock()

	ids, err := listIDs(tr.definitionsDir)
	if err != nil {
		return nil, err
	}

	tasks := make([]*models.TaskDefinition, 0, len(ids))

	for _, id := range ids {
		task := &models.TaskDefinition{}

		err := readJSON(tr.definitionsDir, id, task, persistence.ErrTaskNotFound)
		if err != nil {
			return nil, fmt.Errorf("failed to load task %s: %w", id, err)
		}

		tasks = append(tasks, task)
	}

	return tasks, nil
}

func (tr *TaskRepository) SaveDefinition(_ context.Context, task *models.TaskDefinition) error {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now().UTC()
	}

	task.UpdatedAt = time.Now().UTC()

	return writeJSON(tr.definitionsDir, task.ID, task)
}

func (tr *TaskRepository) DefinitionByID(_ context.Context, id string) (*models.TaskDefinition, error) {
	tr.mu.RLock()
	defer tr.mu.RUnlock()

	task := &models.TaskDefinition{}

	err := readJSON(tr.definitionsDir, id, task, persistence.ErrTaskNotFound)
	if err != nil {
		return nil, err
	}

	return task, nil
}

// DeleteDefinition removes a task definition unless implementations still
// reference it.
func (tr *TaskRepository) DeleteDefinition(ctx context.Context, id string) error {
	impls, err := tr.listImplementations(ctx, id)
	if err != nil {
		return err
	}

	if len(impls) > 0 {
		return persistence.ErrTaskReferenced
	}

	tr.mu.Lock()
	defer tr.mu.Unlock()

	return removeJSON(tr.definitionsDir, id, persistence.ErrTaskNotFound)
}

// ListImplementations returns implementations for one task, or all of them
// when taskID is empty.
func (tr *TaskRepository) ListImplementations(ctx context.Context, taskID string) ([]*models.TaskImplementation, error) {
	return tr.listImplementations(ctx, taskID)
}

func (tr *TaskRepository) listImplementations(_ context.Context, taskID string) ([]*models.TaskImplementation, error) {
	tr.mu.RLock()
	defer tr.mu.RUnlock()

	ids, err := listIDs(tr.implementationsDir)
	if err != nil {
		return nil, err
	}

	impls := make([]*models.TaskImplementation, 0, len(ids))

	for _, id := range ids {
		impl := &models.TaskImplementation{}

		err := readJSON(tr.implementationsDir, id, impl, persistence.ErrImplementationNotFound)
		if err != nil {
			return nil, fmt.Errorf("failed to load implementation %s: %w", id, err)
		}

		if taskID == "" || impl.TaskID == taskID {
			impls = append(impls, impl)
		}
	}

	return impls, nil
}

func (tr *TaskRepository) SaveImplementation(_ context.Context, impl *models.TaskImplementation) error {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	return writeJSON(tr.implementationsDir, impl.ID, impl)
}

func (tr *TaskRepository) ImplementationByID(_ context.Context, id string) (*models.TaskImplementation, error) {
	tr.mu.RLock()
	defer tr.mu.RUnlock()

	impl := &models.TaskImplementation{}

	err := readJSON(tr.implementationsDir, id, impl, persistence.ErrImplementationNotFound)
	if err != nil {
		return nil, err
	}

	return impl, nil
}

func (tr *TaskRepository) DeleteImplementation(_ context.Context, id string) error {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	return removeJSON(tr.implementationsDir, id, persistence.ErrImplementationNotFound)
}
