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

// WorkflowRepository handles workflow-related file operations.
type WorkflowRepository struct {
	dir string
	mu  sync.RWMutex
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(root string) *WorkflowRepository {
	return &WorkflowRepository{dir: filepath.Join(root, "workflows")}
}

func (wr *WorkflowRepository) List(ctx context.Context) ([]*models.Workflow, error) {
	wr.mu.RLock()
	defer wr.mu.RUnlock()

	ids, err := listIDs(wr.dir)
	if err != nil {
		return nil, err
	}

	workflows := make([]*models.Workflow, 0, len(ids))

	for _, id := range ids {
		workflow := &models.Workflow{}

		err := readJSON(wr.dir, id, workflow, persistence.ErrWorkflowNotFound)
		if err != nil {
			return nil, fmt.Errorf("failed to load workflow %s: %w", id, err)
		}

		workflows = append(workflows, workflow)
	}

	return workflows, nil
}

// Save upserts a workflow. Steps with duplicate orders are rejected before
// anything touches disk.
func (wr *WorkflowRepository) Save(_ context.Context, workflow *models.Workflow) error {
	seen := make(map[int]bool, len(workflow.Steps))
	for _, step := range workflow.Steps {
		if seen[step.Order] {
			return persistence.NewWorkflowError("Save", workflow.ID, persistence.ErrDuplicateStepOrder)
		}

		seen[step.Order] = true
	}

	wr.mu.Lock()
	defer wr.mu.Unlock()

	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = time.Now().UTC()
	}

	workflow.UpdatedAt = time.Now().UTC()

	return writeJSON(wr.dir, workflow.ID, workflow)
}

func (wr *WorkflowRepository) ByID(_ context.Context, id string) (*models.Workflow, error) {
	wr.mu.RLock()
	defer wr.mu.RUnlock()

	workflow := &models.Workflow{}

	err := readJSON(wr.dir, id, workflow, persistence.ErrWorkflowNotFound)
	if err != nil {
		return nil, err
	}

	return workflow, nil
}

func (wr *WorkflowRepository) BySlug(ctx context.Context, slug string) (*models.Workflow, error) {
	workflows, err := wr.List(ctx)
	if err != nil {
		return nil, err
	}

	for _, workflow := range workflows {
		if workflow.Slug == slug {
			return workflow, nil
		}
	}

	return nil, persistence.ErrWorkflowNotFound
}

func (wr *WorkflowRepository) Delete(_ context.Context, id string) error {
	wr.mu.Lock()
	defer wr.mu.Unlock()

	return removeJSON(wr.dir, id, persistence.ErrWorkflowNotFound)
}
