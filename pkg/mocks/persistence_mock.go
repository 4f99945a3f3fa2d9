// Package mocks provides testify mocks for the persistence and event bus
// interfaces.
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/netpilot/netpilot/pkg/models"
	"github.com/netpilot/netpilot/pkg/persistence"
)

// MockPersistence is a mock implementation of persistence.Persistence that
// hands out the repository mocks it was built with.
type MockPersistence struct {
	mock.Mock

	WorkflowRepo  *MockWorkflowRepository
	TaskRepo      *MockTaskRepository
	ProviderRepo  *MockProviderRepository
	ExecutionRepo *MockExecutionRepository
}

// NewMockPersistence creates a persistence mock with fresh repository mocks.
func NewMockPersistence() *MockPersistence {
	return &MockPersistence{
		WorkflowRepo:  &MockWorkflowRepository{},
		TaskRepo:      &MockTaskRepository{},
		ProviderRepo:  &MockProviderRepository{},
		ExecutionRepo: &MockExecutionRepository{},
	}
}

func (m *MockPersistence) Workflows() persistence.WorkflowRepository {
	return m.WorkflowRepo
}

func (m *MockPersistence) Tasks() persistence.TaskRepository {
	return m.TaskRepo
}

func (m *MockPersistence) Providers() persistence.ProviderRepository {
	return m.ProviderRepo
}

func (m *MockPersistence) Executions() persistence.ExecutionRepository {
	return m.ExecutionRepo
}

func (m *MockPersistence) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockPersistence) Close(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

// MockWorkflowRepository is a mock implementation of persistence.WorkflowRepository.
type MockWorkflowRepository struct {
	mock.Mock
}

func (m *MockWorkflowRepository) List(ctx context.Context) ([]*models.Workflow, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Workflow), args.Error(1)
}

func (m *MockWorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	args := m.Called(ctx, workflow)

	return args.Error(0)
}

func (m *MockWorkflowRepository) ByID(ctx context.Context, id string) (*models.Workflow, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Workflow), args.Error(1)
}

func (m *MockWorkflowRepository) BySlug(ctx context.Context, slug string) (*models.Workflow, error) {
	args := m.Called(ctx, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Workflow), args.Error(1)
}

func (m *MockWorkflowRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)

	return args.Error(0)
}

// MockTaskRepository is a mock implementation of persistence.TaskRepository.
type MockTaskRepository struct {
	mock.Mock
}

func (m *MockTaskRepository) ListDefinitions(ctx context.Context) ([]*models.TaskDefinition, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.TaskDefinition), args.Error(1)
}

func (m *MockTaskRepository) SaveDefinition(ctx context.Context, task *models.TaskDefinition) error {
	args := m.Called(ctx, task)

	return args.Error(0)
}

func (m *MockTaskRepository) DefinitionByID(ctx context.Context, id string) (*models.TaskDefinition, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.TaskDefinition), args.Error(1)
}

func (m *MockTaskRepository) DeleteDefinition(ctx context.Context, id string) error {
	args := m.Called(ctx, id)

	return args.Error(0)
}

func (m *MockTaskRepository) ListImplementations(ctx context.Context, taskID string) ([]*models.TaskImplementation, error) {
	args := m.Called(ctx, taskID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.TaskImplementation), args.Error(1)
}

func (m *MockTaskRepository) SaveImplementation(ctx context.Context, impl *models.TaskImplementation) error {
	args := m.Called(ctx, impl)

	return args.Error(0)
}

func (m *MockTaskRepository) ImplementationByID(ctx context.Context, id string) (*models.TaskImplementation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.TaskImplementation), args.Error(1)
}

func (m *MockTaskRepository) DeleteImplementation(ctx context.Context, id string) error {
	args := m.Called(ctx, id)

	return args.Error(0)
}

// MockProviderRepository is a mock implementation of persistence.ProviderRepository.
type MockProviderRepository struct {
	mock.Mock
}

func (m *MockProviderRepository) ListDefinitions(ctx context.Context) ([]*models.ProviderDefinition, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.ProviderDefinition), args.Error(1)
}

func (m *MockProviderRepository) SaveDefinition(ctx context.Context, def *models.ProviderDefinition) error {
	args := m.Called(ctx, def)

	return args.Error(0)
}

func (m *MockProviderRepository) DefinitionByID(ctx context.Context, id string) (*models.ProviderDefinition, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.ProviderDefinition), args.Error(1)
}

func (m *MockProviderRepository) DeleteDefinition(ctx context.Context, id string) error {
	args := m.Called(ctx, id)

	return args.Error(0)
}

func (m *MockProviderRepository) ListInstances(ctx context.Context) ([]*models.ProviderInstance, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.ProviderInstance), args.Error(1)
}

func (m *MockProviderRepository) SaveInstance(ctx context.Context, instance *models.ProviderInstance) error {
	args := m.Called(ctx, instance)

	return args.Error(0)
}

func (m *MockProviderRepository) InstanceByID(ctx context.Context, id string) (*models.ProviderInstance, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.ProviderInstance), args.Error(1)
}

func (m *MockProviderRepository) DeleteInstance(ctx context.Context, id string) error {
	args := m.Called(ctx, id)

	return args.Error(0)
}

// MockExecutionRepository is a mock implementation of persistence.ExecutionRepository.
type MockExecutionRepository struct {
	mock.Mock
}

func (m *MockExecutionRepository) List(ctx context.Context, workflowID string) ([]*models.Execution, error) {
	args := m.Called(ctx, workflowID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Execution), args.Error(1)
}

func (m *MockExecutionRepository) Save(ctx context.Context, execution *models.Execution) error {
	args := m.Called(ctx, execution)

	return args.Error(0)
}

func (m *MockExecutionRepository) ByID(ctx context.Context, id string) (*models.Execution, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Execution), args.Error(1)
}

func (m *MockExecutionRepository) Due(ctx context.Context, now time.Time) ([]*models.Execution, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Execution), args.Error(1)
}

func (m *MockExecutionRepository) Steps(ctx context.Context, executionID string) ([]*models.ExecutionStep, error) {
	args := m.Called(ctx, executionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.ExecutionStep), args.Error(1)
}

func (m *MockExecutionRepository) SaveStep(ctx context.Context, step *models.ExecutionStep) error {
	args := m.Called(ctx, step)

	return args.Error(0)
}

func (m *MockExecutionRepository) StepByOrder(ctx context.Context, executionID string, order int) (*models.ExecutionStep, error) {
	args := m.Called(ctx, executionID, order)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.ExecutionStep), args.Error(1)
}
