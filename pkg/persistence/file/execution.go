package file

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/netpilot/netpilot/pkg/models"
	"github.com/netpilot/netpilot/pkg/persistence"
)

// ExecutionRepository stores executions and their step records on disk.
// Steps live in a per-execution subdirectory keyed by order, which makes the
// (execution, order) uniqueness invariant a property of the file system.
type ExecutionRepository struct {
	executionsDir string
	stepsDir      string
	mu            sync.RWMutex
}

// NewExecutionRepository creates a new execution repository.
func NewExecutionRepository(root string) *ExecutionRepository {
	return &ExecutionRepository{
		executionsDir: filepath.Join(root, "executions"),
		stepsDir:      filepath.Join(root, "execution_steps"),
	}
}

func (er *ExecutionRepository) List(_ context.Context, workflowID string) ([]*models.Execution, error) {
	er.mu.RLock()
	defer er.mu.RUnlock()

	executions, err := er.loadAll()
	if err != nil {
		return nil, err
	}

	if workflowID == "" {
		return executions, nil
	}

	filtered := make([]*models.Execution, 0, len(executions))

	for _, execution := range executions {
		if execution.WorkflowID == workflowID {
			filtered = append(filtered, execution)
		}
	}

	return filtered, nil
}

func (er *ExecutionRepository) Save(_ context.Context, execution *models.Execution) error {
	er.mu.Lock()
	defer er.mu.Unlock()

	if execution.CreatedAt.IsZero() {
		execution.CreatedAt = time.Now().UTC()
	}

	execution.UpdatedAt = time.Now().UTC()

	return writeJSON(er.executionsDir, execution.ID, execution)
}

func (er *ExecutionRepository) ByID(_ context.Context, id string) (*models.Execution, error) {
	er.mu.RLock()
	defer er.mu.RUnlock()

	execution := &models.Execution{}

	err := readJSON(er.executionsDir, id, execution, persistence.ErrExecutionNotFound)
	if err != nil {
		return nil, err
	}

	return execution, nil
}

// Due returns executions whose scheduled start or wait resumption has
// passed. Terminal executions are never due.
func (er *ExecutionRepository) Due(_ context.Context, now time.Time) ([]*models.Execution, error) {
	er.mu.RLock()
	defer er.mu.RUnlock()

	executions, err := er.loadAll()
	if err != nil {
		return nil, err
	}

	due := make([]*models.Execution, 0)

	for _, execution := range executions {
		if execution.Status.Terminal() {
			continue
		}

		if execution.Status == models.ExecutionScheduled &&
			execution.ScheduledFor != nil && !execution.ScheduledFor.After(now) {
			due = append(due, execution)

			continue
		}

		if execution.ResumeAt != nil && !execution.ResumeAt.After(now) {
			due = append(due, execution)
		}
	}

	return due, nil
}

func (er *ExecutionRepository) Steps(_ context.Context, executionID string) ([]*models.ExecutionStep, error) {
	er.mu.RLock()
	defer er.mu.RUnlock()

	dir := filepath.Join(er.stepsDir, executionID)

	ids, err := listIDs(dir)
	if err != nil {
		return nil, err
	}

	steps := make([]*models.ExecutionStep, 0, len(ids))

	for _, id := range ids {
		step := &models.ExecutionStep{}

		err := readJSON(dir, id, step, persistence.ErrStepNotFound)
		if err != nil {
			return nil, fmt.Errorf("failed to load step %s of execution %s: %w", id, executionID, err)
		}

		steps = append(steps, step)
	}

	sort.Slice(steps, func(i, j int) bool { return steps[i].Order < steps[j].Order })

	return steps, nil
}

func (er *ExecutionRepository) SaveStep(_ context.Context, step *models.ExecutionStep) error {
	er.mu.Lock()
	defer er.mu.Unlock()

	dir := filepath.Join(er.stepsDir, step.ExecutionID)

	return writeJSON(dir, strconv.Itoa(step.Order), step)
}

func (er *ExecutionRepository) StepByOrder(_ context.Context, executionID string, order int) (*models.ExecutionStep, error) {
	er.mu.RLock()
	defer er.mu.RUnlock()

	dir := filepath.Join(er.stepsDir, executionID)
	step := &models.ExecutionStep{}

	err := readJSON(dir, strconv.Itoa(order), step, persistence.ErrStepNotFound)
	if err != nil {
		return nil, err
	}

	return step, nil
}

func (er *ExecutionRepository) loadAll() ([]*models.Execution, error) {
	ids, err := listIDs(er.executionsDir)
	if err != nil {
		return nil, err
	}

	executions := make([]*models.Execution, 0, len(ids))

	for _, id := range ids {
		execution := &models.Execution{}

		err := readJSON(er.executionsDir, id, execution, persistence.ErrExecutionNotFound)
		if err != nil {
			return nil, fmt.Errorf("failed to load execution %s: %w", id, err)
		}

		executions = append(executions, execution)
	}

	return executions, nil
}
