// Package persistence provides data storage abstraction for workflows,
// tasks, providers and executions.
package persistence

import (
	"context"
	"time"

	"github.com/netpilot/netpilot/pkg/models"
)

// Persistence groups the repositories behind one backend connection.
type Persistence interface {
	Workflows() WorkflowRepository
	Tasks() TaskRepository
	Providers() ProviderRepository
	Executions() ExecutionRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// WorkflowRepository stores workflows and their steps. Saving a workflow
// whose steps carry a duplicate order fails with ErrDuplicateStepOrder.
type WorkflowRepository interface {
	List(ctx context.Context) ([]*models.Workflow, error)
	Save(ctx context.Context, workflow *models.Workflow) error
	ByID(ctx context.Context, id string) (*models.Workflow, error)
	BySlug(ctx context.Context, slug string) (*models.Workflow, error)
	Delete(ctx context.Context, id string) error
}

// TaskRepository stores task definitions and their implementations.
// Deleting a definition still referenced by implementations fails with
// ErrTaskReferenced.
type TaskRepository interface {
	ListDefinitions(ctx context.Context) ([]*models.TaskDefinition, error)
	SaveDefinition(ctx context.Context, task *models.TaskDefinition) error
	DefinitionByID(ctx context.Context, id string) (*models.TaskDefinition, error)
	DeleteDefinition(ctx context.Context, id string) error

	ListImplementations(ctx context.Context, taskID string) ([]*models.TaskImplementation, error)
	SaveImplementation(ctx context.Context, impl *models.TaskImplementation) error
	ImplementationByID(ctx context.Context, id string) (*models.TaskImplementation, error)
	DeleteImplementation(ctx context.Context, id string) error
}

// ProviderRepository stores provider definitions and configured instances.
type ProviderRepository interface {
	ListDefinitions(ctx context.Context) ([]*models.ProviderDefinition, error)
	SaveDefinition(ctx context.Context, def *models.ProviderDefinition) error
	DefinitionByID(ctx context.Context, id string) (*models.ProviderDefinition, error)
	DeleteDefinition(ctx context.Context, id string) error

	ListInstances(ctx context.Context) ([]*models.ProviderInstance, error)
	SaveInstance(ctx context.Context, instance *models.ProviderInstance) error
	InstanceByID(ctx context.Context, id string) (*models.ProviderInstance, error)
	DeleteInstance(ctx context.Context, id string) error
}

// ExecutionRepository stores executions and their step records. Executions
// are append-heavy: Save upserts by ID so the engine can checkpoint after
// every step.
type ExecutionRepository interface {
	List(ctx context.Context, workflowID string) ([]*models.Execution, error)
	Save(ctx context.Context, execution *models.Execution) error
	ByID(ctx context.Context, id string) (*models.Execution, error)

	// Due returns non-terminal executions whose scheduled_for or resume_at
	// has passed, for the scheduler to requeue.
	Due(ctx context.Context, now time.Time) ([]*models.Execution, error)

	Steps(ctx context.Context, executionID string) ([]*models.ExecutionStep, error)
	SaveStep(ctx context.Context, step *models.ExecutionStep) error
	StepByOrder(ctx context.Context, executionID string, order int) (*models.ExecutionStep, error)
}
