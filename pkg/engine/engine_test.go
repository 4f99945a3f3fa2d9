package engine_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netpilot/netpilot/pkg/catalog"
	"github.com/netpilot/netpilot/pkg/engine"
	"github.com/netpilot/netpilot/pkg/engine/lock"
	"github.com/netpilot/netpilot/pkg/models"
	"github.com/netpilot/netpilot/pkg/persistence"
	"github.com/netpilot/netpilot/pkg/persistence/file"
	"github.com/netpilot/netpilot/pkg/provider"
	"github.com/netpilot/netpilot/pkg/provider/static"
)

type fixture struct {
	engine *engine.Engine
	store  persistence.Persistence
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := file.NewPersistence(t.TempDir())

	cat := catalog.NewMemory()
	cat.AddDevice(&catalog.Device{
		ID:           "dev-1",
		Name:         "sw-01",
		Manufacturer: "arista",
		Platform:     "eos",
		LocationID:   "dc-1",
	})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	registry := provider.NewRegistry(logger)
	registry.Register(static.NewFactory())

	eng := engine.New(store, cat, registry, nil, lock.NewMemoryLocker(), logger, nil)

	return &fixture{engine: eng, store: store}
}

func (f *fixture) seedTask(t *testing.T, mutateImpl func(*models.TaskImplementation)) string {
	t.Helper()

	ctx := context.Background()

	task := &models.TaskDefinition{
		ID:   uuid.NewString(),
		Name: "Configure NTP",
		Slug: "configure-ntp",
	}
	require.NoError(t, f.store.Tasks().SaveDefinition(ctx, task))

	impl := &models.TaskImplementation{
		ID:           uuid.NewString(),
		TaskID:       task.ID,
		Name:         "eos-ntp",
		Manufacturer: "arista",
		Type:         models.ImplementationTemplateConfig,
		Template:     "ntp server {{.ntp_server}}",
		Enabled:      true,
	}
	if mutateImpl != nil {
		mutateImpl(impl)
	}

	require.NoError(t, f.store.Tasks().SaveImplementation(ctx, impl))

	return task.ID
}

func (f *fixture) seedProvider(t *testing.T, mutate func(*models.ProviderDefinition, *models.ProviderInstance)) {
	t.Helper()

	ctx := context.Background()

	definition := &models.ProviderDefinition{
		ID:        uuid.NewString(),
		Name:      "Static",
		DriverKey: static.DriverKey,
		Capabilities: []models.Capability{
			models.CapabilityRender, models.CapabilityDiff, models.CapabilityApply,
		},
		Enabled: true,
	}
	instance := &models.ProviderInstance{
		ID:           uuid.NewString(),
		DefinitionID: definition.ID,
		Name:         "static-main",
		Enabled:      true,
	}
	if mutate != nil {
		mutate(definition, instance)
	}

	require.NoError(t, f.store.Providers().SaveDefinition(ctx, definition))
	require.NoError(t, f.store.Providers().SaveInstance(ctx, instance))
}

func (f *fixture) seedWorkflow(t *testing.T, approvalRequired bool, steps ...*models.WorkflowStep) *models.Workflow {
	t.Helper()

	workflow := &models.Workflow{
		ID:               uuid.NewString(),
		Name:             "Provision NTP",
		Slug:             "provision-ntp",
		Enabled:          true,
		ApprovalRequired: approvalRequired,
		Steps:            steps,
	}
	require.NoError(t, f.store.Workflows().Save(context.Background(), workflow))

	return workflow
}

func (f *fixture) seedExecution(t *testing.T, workflowID string, operation models.Operation) *models.Execution {
	t.Helper()

	execution := &models.Execution{
		ID:         uuid.NewString(),
		WorkflowID: workflowID,
		Status:     models.ExecutionPending,
		Operation:  operation,
		Inputs:     map[string]any{"ntp_server": "10.0.0.1"},
		Targets:    []models.TargetRef{{Kind: catalog.KindDevice, ID: "dev-1"}},
	}
	require.NoError(t, f.store.Executions().Save(context.Background(), execution))

	return execution
}

func taskStep(order int, name, taskID string) *models.WorkflowStep {
	return &models.WorkflowStep{
		ID:     uuid.NewString(),
		Order:  order,
		Name:   name,
		Type:   models.StepTypeTask,
		TaskID: taskID,
	}
}

func (f *fixture) execution(t *testing.T, id string) *models.Execution {
	t.Helper()

	execution, err := f.store.Executions().ByID(context.Background(), id)
	require.NoError(t, err)

	return execution
}

func (f *fixture) steps(t *testing.T, id string) []*models.ExecutionStep {
	t.Helper()

	steps, err := f.store.Executions().Steps(context.Background(), id)
	require.NoError(t, err)

	return steps
}

func TestAdvance_ApplyCompletes(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	taskID := f.seedTask(t, nil)
	f.seedProvider(t, nil)

	step := taskStep(1, "configure", taskID)
	step.OutputMapping = map[string]string{"ntp.rendered": "rendered"}
	workflow := f.seedWorkflow(t, false, step)
	execution := f.seedExecution(t, workflow.ID, models.OperationApply)

	require.NoError(t, f.engine.Advance(context.Background(), execution.ID))

	got := f.execution(t, execution.ID)
	assert.Equal(t, models.ExecutionCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)

	steps := f.steps(t, execution.ID)
	require.Len(t, steps, 1)
	assert.Equal(t, models.StepCompleted, steps[0].Status)
	assert.Equal(t, "ntp server 10.0.0.1", steps[0].RenderedContent)
	assert.Equal(t, "static-main", steps[0].Provider)

	// Output mapping landed in the execution context.
	assert.Equal(t, "ntp server 10.0.0.1",
		got.Context["ntp"].(map[string]any)["rendered"])
}

func TestAdvance_RenderNeedsNoProvider(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	taskID := f.seedTask(t, nil)
	// No provider configured at all.

	workflow := f.seedWorkflow(t, false, taskStep(1, "render", taskID))
	execution := f.seedExecution(t, workflow.ID, models.OperationRender)

	require.NoError(t, f.engine.Advance(context.Background(), execution.ID))

	got := f.execution(t, execution.ID)
	assert.Equal(t, models.ExecutionCompleted, got.Status)

	steps := f.steps(t, execution.ID)
	require.Len(t, steps, 1)
	assert.Equal(t, models.StepCompleted, steps[0].Status)
	assert.Equal(t, "ntp server 10.0.0.1", steps[0].RenderedContent)
	assert.Empty(t, steps[0].Provider)
}

func TestAdvance_StopFailureSkipsRemaining(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	// Implementation for a different manufacturer: selection fails.
	taskID := f.seedTask(t, func(i *models.TaskImplementation) { i.Manufacturer = "juniper" })
	f.seedProvider(t, nil)

	workflow := f.seedWorkflow(t, false,
		taskStep(1, "first", taskID),
		taskStep(2, "second", taskID),
	)
	execution := f.seedExecution(t, workflow.ID, models.OperationApply)

	require.NoError(t, f.engine.Advance(context.Background(), execution.ID))

	got := f.execution(t, execution.ID)
	assert.Equal(t, models.ExecutionFailed, got.Status)
	assert.NotEmpty(t, got.Error)

	steps := f.steps(t, execution.ID)
	require.Len(t, steps, 2)
	assert.Equal(t, models.StepFailed, steps[0].Status)
	assert.Equal(t, models.StepSkipped, steps[1].Status)
	assert.Contains(t, steps[1].Logs, "previous step failed")
}

func TestAdvance_ContinuePolicyCompletes(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	brokenTask := f.seedTask(t, func(i *models.TaskImplementation) { i.Enabled = false })
	f.seedProvider(t, nil)

	failing := taskStep(1, "failing", brokenTask)
	failing.OnFailure = models.OnFailureContinue

	notify := &models.WorkflowStep{
		ID: uuid.NewString(), Order: 2, Name: "notify",
		Type:   models.StepTypeNotification,
		Config: map[string]any{"message": "done"},
	}

	workflow := f.seedWorkflow(t, false, failing, notify)
	execution := f.seedExecution(t, workflow.ID, models.OperationApply)

	require.NoError(t, f.engine.Advance(context.Background(), execution.ID))

	got := f.execution(t, execution.ID)
	assert.Equal(t, models.ExecutionCompleted, got.Status)

	steps := f.steps(t, execution.ID)
	require.Len(t, steps, 2)
	assert.Equal(t, models.StepFailed, steps[0].Status)
	assert.Equal(t, models.StepCompleted, steps[1].Status)
}

func TestAdvance_SkipRemainingOnlyNotificationsCompletes(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	brokenTask := f.seedTask(t, func(i *models.TaskImplementation) { i.Enabled = false })
	f.seedProvider(t, nil)

	failing := taskStep(1, "failing", brokenTask)
	failing.OnFailure = models.OnFailureSkipRemaining

	notify := &models.WorkflowStep{
		ID: uuid.NewString(), Order: 2, Name: "notify",
		Type:   models.StepTypeNotification,
		Config: map[string]any{"message": "done"},
	}

	workflow := f.seedWorkflow(t, false, failing, notify)
	execution := f.seedExecution(t, workflow.ID, models.OperationApply)

	require.NoError(t, f.engine.Advance(context.Background(), execution.ID))

	got := f.execution(t, execution.ID)
	assert.Equal(t, models.ExecutionCompleted, got.Status)

	steps := f.steps(t, execution.ID)
	require.Len(t, steps, 2)
	assert.Equal(t, models.StepFailed, steps[0].Status)
	assert.Equal(t, models.StepSkipped, steps[1].Status)
}

func TestAdvance_SkipRemainingWithSubstanceFails(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	brokenTask := f.seedTask(t, func(i *models.TaskImplementation) { i.Enabled = false })
	f.seedProvider(t, nil)

	failing := taskStep(1, "failing", brokenTask)
	failing.OnFailure = models.OnFailureSkipRemaining

	workflow := f.seedWorkflow(t, false, failing, taskStep(2, "second", brokenTask))
	execution := f.seedExecution(t, workflow.ID, models.OperationApply)

	require.NoError(t, f.engine.Advance(context.Background(), execution.ID))

	got := f.execution(t, execution.ID)
	assert.Equal(t, models.ExecutionFailed, got.Status)

	steps := f.steps(t, execution.ID)
	require.Len(t, steps, 2)
	assert.Equal(t, models.StepSkipped, steps[1].Status)
}

func TestAdvance_ApprovalGateBeforeAnyStep(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	taskID := f.seedTask(t, nil)
	f.seedProvider(t, nil)

	workflow := f.seedWorkflow(t, true, taskStep(1, "configure", taskID))
	execution := f.seedExecution(t, workflow.ID, models.OperationApply)

	require.NoError(t, f.engine.Advance(context.Background(), execution.ID))

	got := f.execution(t, execution.ID)
	assert.Equal(t, models.ExecutionAwaitingApproval, got.Status)

	// The gate fires before any step record exists.
	assert.Empty(t, f.steps(t, execution.ID))

	require.NoError(t, f.engine.Approve(context.Background(), execution.ID, "alice"))

	got = f.execution(t, execution.ID)
	assert.Equal(t, models.ExecutionPending, got.Status)
	assert.Equal(t, "alice", got.ApprovedBy)

	require.NoError(t, f.engine.Advance(context.Background(), execution.ID))

	got = f.execution(t, execution.ID)
	assert.Equal(t, models.ExecutionCompleted, got.Status)

	steps := f.steps(t, execution.ID)
	require.Len(t, steps, 1)
	assert.Equal(t, models.StepCompleted, steps[0].Status)
}

func TestApprove_Idempotent(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	workflow := f.seedWorkflow(t, true)
	execution := f.seedExecution(t, workflow.ID, models.OperationApply)

	require.NoError(t, f.engine.Approve(context.Background(), execution.ID, "alice"))
	require.NoError(t, f.engine.Approve(context.Background(), execution.ID, "bob"))

	got := f.execution(t, execution.ID)
	assert.Equal(t, "alice", got.ApprovedBy)
}

func TestAdvance_ApprovalStepGate(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	taskID := f.seedTask(t, nil)
	f.seedProvider(t, nil)

	approval := &models.WorkflowStep{
		ID: uuid.NewString(), Order: 2, Name: "gate",
		Type: models.StepTypeApproval,
	}

	workflow := f.seedWorkflow(t, false, taskStep(1, "configure", taskID), approval)
	execution := f.seedExecution(t, workflow.ID, models.OperationApply)

	require.NoError(t, f.engine.Advance(context.Background(), execution.ID))

	got := f.execution(t, execution.ID)
	assert.Equal(t, models.ExecutionAwaitingApproval, got.Status)

	// Step one ran; the gate halted before step two's record.
	steps := f.steps(t, execution.ID)
	require.Len(t, steps, 1)
	assert.Equal(t, models.StepCompleted, steps[0].Status)

	require.NoError(t, f.engine.Approve(context.Background(), execution.ID, "alice"))
	require.NoError(t, f.engine.Advance(context.Background(), execution.ID))

	got = f.execution(t, execution.ID)
	assert.Equal(t, models.ExecutionCompleted, got.Status)

	steps = f.steps(t, execution.ID)
	require.Len(t, steps, 2)

	// Resume idempotency: the finalized first step was not re-run.
	assert.Equal(t, models.StepCompleted, steps[0].Status)
	assert.Equal(t, map[string]any{"approved_by": "alice"}, steps[1].Outputs)
}

func TestAdvance_ConditionFalseSkips(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	taskID := f.seedTask(t, nil)
	f.seedProvider(t, nil)

	conditional := taskStep(1, "conditional", taskID)
	conditional.Condition = "{{.inputs.rollout_enabled}}"

	workflow := f.seedWorkflow(t, false, conditional)
	execution := f.seedExecution(t, workflow.ID, models.OperationApply)
	execution.Inputs["rollout_enabled"] = false
	require.NoError(t, f.store.Executions().Save(context.Background(), execution))

	require.NoError(t, f.engine.Advance(context.Background(), execution.ID))

	got := f.execution(t, execution.ID)
	assert.Equal(t, models.ExecutionCompleted, got.Status)

	steps := f.steps(t, execution.ID)
	require.Len(t, steps, 1)
	assert.Equal(t, models.StepSkipped, steps[0].Status)
	assert.Contains(t, steps[0].Logs, "condition evaluated to false")
}

func TestAdvance_ValidationClampsApplyToDiff(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	taskID := f.seedTask(t, nil)

	// The static driver fails applies but diffs fine, so a completing
	// validation under an apply operation proves the clamp.
	f.seedProvider(t, func(_ *models.ProviderDefinition, i *models.ProviderInstance) {
		i.Settings = map[string]any{"fail_apply": true}
	})

	validation := &models.WorkflowStep{
		ID: uuid.NewString(), Order: 1, Name: "precheck",
		Type:   models.StepTypeValidation,
		TaskID: taskID,
	}

	workflow := f.seedWorkflow(t, false, validation, taskStep(2, "configure", taskID))
	execution := f.seedExecution(t, workflow.ID, models.OperationApply)

	require.NoError(t, f.engine.Advance(context.Background(), execution.ID))

	got := f.execution(t, execution.ID)
	assert.Equal(t, models.ExecutionFailed, got.Status)

	steps := f.steps(t, execution.ID)
	require.Len(t, steps, 2)
	assert.Equal(t, models.StepCompleted, steps[0].Status)
	assert.Equal(t, models.StepFailed, steps[1].Status)
	assert.Contains(t, steps[1].ErrorMessage, "reported failure")
}

func TestAdvance_CapabilityNotSupported(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	taskID := f.seedTask(t, nil)
	f.seedProvider(t, func(d *models.ProviderDefinition, _ *models.ProviderInstance) {
		d.Capabilities = []models.Capability{models.CapabilityRender, models.CapabilityDiff}
	})

	failing := taskStep(1, "configure", taskID)
	failing.OnFailure = models.OnFailureContinue

	workflow := f.seedWorkflow(t, false, failing)
	execution := f.seedExecution(t, workflow.ID, models.OperationApply)

	require.NoError(t, f.engine.Advance(context.Background(), execution.ID))

	got := f.execution(t, execution.ID)
	assert.Equal(t, models.ExecutionCompleted, got.Status)

	steps := f.steps(t, execution.ID)
	require.Len(t, steps, 1)
	assert.Equal(t, models.StepFailed, steps[0].Status)
	assert.Contains(t, steps[0].ErrorMessage, "capability not supported")
}

func TestAdvance_ProviderScopeScoring(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	taskID := f.seedTask(t, nil)

	f.seedProvider(t, func(_ *models.ProviderDefinition, i *models.ProviderInstance) {
		i.Name = "global"
	})
	f.seedProvider(t, func(_ *models.ProviderDefinition, i *models.ProviderInstance) {
		i.Name = "dc-scoped"
		i.ScopeLocations = []string{"dc-1"}
	})

	workflow := f.seedWorkflow(t, false, taskStep(1, "configure", taskID))
	execution := f.seedExecution(t, workflow.ID, models.OperationApply)

	require.NoError(t, f.engine.Advance(context.Background(), execution.ID))

	steps := f.steps(t, execution.ID)
	require.Len(t, steps, 1)
	assert.Equal(t, "dc-scoped", steps[0].Provider)
}

func TestAdvance_WaitSuspendsAndResumes(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	taskID := f.seedTask(t, nil)
	f.seedProvider(t, nil)

	wait := &models.WorkflowStep{
		ID: uuid.NewString(), Order: 1, Name: "settle",
		Type:   models.StepTypeWait,
		Config: map[string]any{"delay_seconds": float64(3600)},
	}

	workflow := f.seedWorkflow(t, false, wait, taskStep(2, "configure", taskID))
	execution := f.seedExecution(t, workflow.ID, models.OperationApply)

	require.NoError(t, f.engine.Advance(context.Background(), execution.ID))

	got := f.execution(t, execution.ID)
	assert.Equal(t, models.ExecutionRunning, got.Status)
	require.NotNil(t, got.ResumeAt)

	steps := f.steps(t, execution.ID)
	require.Len(t, steps, 1)
	assert.Equal(t, models.StepRunning, steps[0].Status)

	// Advancing again while the delay is pending changes nothing.
	require.NoError(t, f.engine.Advance(context.Background(), execution.ID))

	got = f.execution(t, execution.ID)
	assert.Equal(t, models.ExecutionRunning, got.Status)

	// Simulate the delay elapsing.
	past := time.Now().UTC().Add(-time.Minute)
	got.ResumeAt = &past
	require.NoError(t, f.store.Executions().Save(context.Background(), got))

	require.NoError(t, f.engine.Advance(context.Background(), execution.ID))

	got = f.execution(t, execution.ID)
	assert.Equal(t, models.ExecutionCompleted, got.Status)
	assert.Nil(t, got.ResumeAt)

	steps = f.steps(t, execution.ID)
	require.Len(t, steps, 2)
	assert.Equal(t, models.StepCompleted, steps[0].Status)
	assert.Equal(t, map[string]any{"waited": true}, steps[0].Outputs)
	assert.Equal(t, models.StepCompleted, steps[1].Status)
}

func TestAdvance_WaitWithoutDelayCompletesImmediately(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	wait := &models.WorkflowStep{
		ID: uuid.NewString(), Order: 1, Name: "noop-wait",
		Type: models.StepTypeWait,
	}

	workflow := f.seedWorkflow(t, false, wait)
	execution := f.seedExecution(t, workflow.ID, models.OperationApply)

	require.NoError(t, f.engine.Advance(context.Background(), execution.ID))

	got := f.execution(t, execution.ID)
	assert.Equal(t, models.ExecutionCompleted, got.Status)

	steps := f.steps(t, execution.ID)
	require.Len(t, steps, 1)
	assert.Equal(t, map[string]any{"waited": false}, steps[0].Outputs)
}

func TestCancel(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	workflow := f.seedWorkflow(t, false)
	execution := f.seedExecution(t, workflow.ID, models.OperationApply)

	require.NoError(t, f.engine.Cancel(context.Background(), execution.ID))

	got := f.execution(t, execution.ID)
	assert.Equal(t, models.ExecutionCancelled, got.Status)
	require.NotNil(t, got.CompletedAt)

	// Cancelling a terminal execution is a conflict, as is advancing it.
	require.ErrorIs(t, f.engine.Cancel(context.Background(), execution.ID), engine.ErrExecutionNotRunnable)
	require.ErrorIs(t, f.engine.Advance(context.Background(), execution.ID), engine.ErrExecutionNotRunnable)
}

func TestAdvance_TerminalConflict(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	taskID := f.seedTask(t, nil)
	f.seedProvider(t, nil)

	workflow := f.seedWorkflow(t, false, taskStep(1, "configure", taskID))
	execution := f.seedExecution(t, workflow.ID, models.OperationApply)

	require.NoError(t, f.engine.Advance(context.Background(), execution.ID))
	require.ErrorIs(t, f.engine.Advance(context.Background(), execution.ID), engine.ErrExecutionNotRunnable)
}

func TestRequestOperation(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	workflow := f.seedWorkflow(t, true)
	execution := f.seedExecution(t, workflow.ID, models.OperationDiff)

	require.NoError(t, f.engine.RequestOperation(context.Background(), execution.ID, models.OperationApply))

	got := f.execution(t, execution.ID)
	assert.Equal(t, models.OperationApply, got.Operation)

	require.Error(t, f.engine.RequestOperation(context.Background(), execution.ID, models.Operation("destroy")))
}

// hookFactory builds drivers whose Apply invokes a callback before
// succeeding, so tests can interleave external calls with a running step.
type hookFactory struct {
	onApply func(ctx context.Context)
}

func (hf *hookFactory) ID() string { return "hook" }

func (hf *hookFactory) Create(_ *models.ProviderInstance, _ *slog.Logger) (provider.Driver, error) {
	return &hookDriver{onApply: hf.onApply}, nil
}

type hookDriver struct {
	onApply func(ctx context.Context)
}

func (d *hookDriver) ValidateTarget(context.Context, catalog.Target) error { return nil }

func (d *hookDriver) Diff(context.Context, provider.Request) (provider.Result, error) {
	return provider.Result{OK: true}, nil
}

func (d *hookDriver) Apply(ctx context.Context, _ provider.Request) (provider.Result, error) {
	if d.onApply != nil {
		d.onApply(ctx)
	}

	return provider.Result{OK: true}, nil
}

func (d *hookDriver) Close() error { return nil }

func newHookFixture(t *testing.T) (*fixture, *hookFactory) {
	t.Helper()

	store := file.NewPersistence(t.TempDir())

	cat := catalog.NewMemory()
	cat.AddDevice(&catalog.Device{
		ID:           "dev-1",
		Name:         "sw-01",
		Manufacturer: "arista",
		Platform:     "eos",
		LocationID:   "dc-1",
	})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	factory := &hookFactory{}
	registry := provider.NewRegistry(logger)
	registry.Register(factory)

	eng := engine.New(store, cat, registry, nil, lock.NewMemoryLocker(), logger, nil)

	return &fixture{engine: eng, store: store}, factory
}

func TestAdvance_CancelDuringStepWins(t *testing.T) {
	t.Parallel()

	f, factory := newHookFixture(t)
	taskID := f.seedTask(t, nil)
	f.seedProvider(t, func(d *models.ProviderDefinition, _ *models.ProviderInstance) {
		d.DriverKey = "hook"
	})

	workflow := f.seedWorkflow(t, false,
		taskStep(1, "configure", taskID),
		taskStep(2, "second", taskID),
	)
	execution := f.seedExecution(t, workflow.ID, models.OperationApply)

	factory.onApply = func(ctx context.Context) {
		require.NoError(t, f.engine.Cancel(ctx, execution.ID))
	}

	require.NoError(t, f.engine.Advance(context.Background(), execution.ID))

	// The cancelled state set while step one was dispatched survives the
	// engine's checkpoint; step two never starts.
	got := f.execution(t, execution.ID)
	assert.Equal(t, models.ExecutionCancelled, got.Status)
	require.NotNil(t, got.CompletedAt)

	steps := f.steps(t, execution.ID)
	require.Len(t, steps, 1)
	assert.Equal(t, models.StepCompleted, steps[0].Status)
}

func TestAdvance_ApproveDuringStepSurvives(t *testing.T) {
	t.Parallel()

	f, factory := newHookFixture(t)
	taskID := f.seedTask(t, nil)
	f.seedProvider(t, func(d *models.ProviderDefinition, _ *models.ProviderInstance) {
		d.DriverKey = "hook"
	})

	approval := &models.WorkflowStep{
		ID: uuid.NewString(), Order: 2, Name: "gate",
		Type: models.StepTypeApproval,
	}

	workflow := f.seedWorkflow(t, false, taskStep(1, "configure", taskID), approval)
	execution := f.seedExecution(t, workflow.ID, models.OperationApply)

	factory.onApply = func(ctx context.Context) {
		require.NoError(t, f.engine.Approve(ctx, execution.ID, "alice"))
	}

	require.NoError(t, f.engine.Advance(context.Background(), execution.ID))

	// The approver recorded while step one ran survives the checkpoint, so
	// the gate at step two passes in the same advance.
	got := f.execution(t, execution.ID)
	assert.Equal(t, models.ExecutionCompleted, got.Status)
	assert.Equal(t, "alice", got.ApprovedBy)

	steps := f.steps(t, execution.ID)
	require.Len(t, steps, 2)
	assert.Equal(t, map[string]any{"approved_by": "alice"}, steps[1].Outputs)
}

func TestAdvance_ConditionErrorSkipsRemaining(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	taskID := f.seedTask(t, nil)
	f.seedProvider(t, nil)

	conditional := taskStep(1, "conditional", taskID)
	conditional.Condition = "{{.inputs.rollout_enabled"

	notify := &models.WorkflowStep{
		ID: uuid.NewString(), Order: 2, Name: "notify",
		Type:   models.StepTypeNotification,
		Config: map[string]any{"message": "done"},
	}

	workflow := f.seedWorkflow(t, false, conditional, notify)
	execution := f.seedExecution(t, workflow.ID, models.OperationApply)

	require.NoError(t, f.engine.Advance(context.Background(), execution.ID))

	got := f.execution(t, execution.ID)
	assert.Equal(t, models.ExecutionFailed, got.Status)
	assert.Contains(t, got.Error, "condition")

	steps := f.steps(t, execution.ID)
	require.Len(t, steps, 1)
	assert.Equal(t, 2, steps[0].Order)
	assert.Equal(t, models.StepSkipped, steps[0].Status)
	assert.Contains(t, steps[0].Logs, "previous step failed")
}

func TestAdvance_MissingInputFails(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	taskID := f.seedTask(t, nil)
	f.seedProvider(t, nil)

	step := taskStep(1, "configure", taskID)
	step.InputMapping = map[string]string{"vlan": "discovery.vlan"}

	workflow := f.seedWorkflow(t, false, step)
	execution := f.seedExecution(t, workflow.ID, models.OperationApply)

	require.NoError(t, f.engine.Advance(context.Background(), execution.ID))

	got := f.execution(t, execution.ID)
	assert.Equal(t, models.ExecutionFailed, got.Status)

	steps := f.steps(t, execution.ID)
	require.Len(t, steps, 1)
	assert.Equal(t, models.StepFailed, steps[0].Status)
	assert.Contains(t, steps[0].ErrorMessage, "required input missing")
}
