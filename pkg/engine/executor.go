package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/netpilot/netpilot/pkg/catalog"
	"github.com/netpilot/netpilot/pkg/intent"
	"github.com/netpilot/netpilot/pkg/models"
	"github.com/netpilot/netpilot/pkg/persistence"
	"github.com/netpilot/netpilot/pkg/provider"
	"github.com/netpilot/netpilot/pkg/selector"
	"github.com/netpilot/netpilot/pkg/template"
)

// StepExecutor runs one workflow step against one execution and finalizes
// exactly one ExecutionStep. It never touches the execution's status; the
// engine owns that.
type StepExecutor struct {
	catalog  catalog.Catalog
	resolver *intent.Resolver
	registry *provider.Registry
	tasks    persistence.TaskRepository
	provs    persistence.ProviderRepository
	logger   *slog.Logger
	now      func() time.Time
}

// NewStepExecutor creates a step executor.
func NewStepExecutor(
	cat catalog.Catalog,
	registry *provider.Registry,
	tasks persistence.TaskRepository,
	provs persistence.ProviderRepository,
	logger *slog.Logger,
) *StepExecutor {
	return &StepExecutor{
		catalog:  cat,
		resolver: intent.NewResolver(cat),
		registry: registry,
		tasks:    tasks,
		provs:    provs,
		logger:   logger,
		now:      time.Now,
	}
}

// Run executes the step and finalizes record in place. The returned error is
// the step's failure, already recorded on the record; the engine applies the
// failure policy.
func (se *StepExecutor) Run(
	ctx context.Context,
	execution *models.Execution,
	execCtx *models.ExecutionContext,
	step *models.WorkflowStep,
	record *models.ExecutionStep,
) error {
	started := se.now().UTC()
	record.Status = models.StepRunning
	record.StartedAt = &started

	var err error

	switch step.Type {
	case models.StepTypeTask:
		err = se.runTask(ctx, execution, execCtx, step, record, execution.Operation)
	case models.StepTypeValidation:
		// Validations never apply; the requested operation is clamped to
		// diff so the check remains side-effect free.
		operation := execution.Operation
		if operation == models.OperationApply {
			operation = models.OperationDiff
		}

		err = se.runTask(ctx, execution, execCtx, step, record, operation)
	case models.StepTypeCondition:
		se.runCondition(execCtx, step, record)
	case models.StepTypeNotification:
		se.runNotification(execCtx, step, record)
	case models.StepTypeWait:
		// Waits with no configured delay resolve immediately; delays are a
		// scheduling concern handled by the engine before Run is called.
		record.Outputs = map[string]any{"waited": false}
	case models.StepTypeApproval:
		// The engine gates on approval before Run; reaching here means the
		// approval has been recorded.
		record.Outputs = map[string]any{"approved_by": execution.ApprovedBy}
	default:
		err = fmt.Errorf("unknown step type %q", step.Type)
	}

	completed := se.now().UTC()
	record.CompletedAt = &completed

	if err != nil {
		record.Status = models.StepFailed
		record.ErrorMessage = err.Error()

		return err
	}

	record.Status = models.StepCompleted

	err = se.mapOutputs(execCtx, step, record)
	if err != nil {
		record.Status = models.StepFailed
		record.ErrorMessage = err.Error()

		return err
	}

	return nil
}

// runTask is the full task pipeline: resolve intent, select implementation,
// select provider, render, then diff or apply when the operation asks for it.
func (se *StepExecutor) runTask(
	ctx context.Context,
	execution *models.Execution,
	execCtx *models.ExecutionContext,
	step *models.WorkflowStep,
	record *models.ExecutionStep,
	operation models.Operation,
) error {
	target, err := se.resolveTarget(ctx, execution)
	if err != nil {
		return err
	}

	inputs, err := se.stepInputs(execCtx, step)
	if err != nil {
		return err
	}

	record.Inputs = inputs

	intentMap, err := se.resolver.Resolve(ctx, target, inputs)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTargetUnresolved, err)
	}

	device, err := catalog.DeviceFor(ctx, se.catalog, target)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTargetUnresolved, err)
	}

	impl, err := se.selectImplementation(ctx, step.TaskID, device)
	if err != nil {
		return err
	}

	record.ImplementationID = impl.ID

	rendered := ""
	if impl.Template != "" {
		rendered, err = template.RenderString(impl.Template, intentMap)
		if err != nil {
			return fmt.Errorf("failed to render implementation %s: %w", impl.Name, err)
		}
	}

	record.RenderedContent = rendered

	outputs := map[string]any{
		"intent":   intentMap,
		"rendered": rendered,
	}
	record.Outputs = outputs

	if operation == models.OperationRender {
		return nil
	}

	candidate, err := se.selectProvider(ctx, impl, device)
	if err != nil {
		return err
	}

	record.Provider = candidate.Instance.Name
	outputs["provider"] = candidate.Instance.Name

	capability := models.CapabilityDiff
	if operation == models.OperationApply {
		capability = models.CapabilityApply
	}

	if !candidate.Definition.HasCapability(capability) {
		return fmt.Errorf("provider %s, operation %s: %w",
			candidate.Definition.Name, operation, provider.ErrCapabilityNotSupported)
	}

	driver, err := se.registry.Create(candidate.Definition.DriverKey, candidate.Instance)
	if err != nil {
		return err
	}

	// Driver sessions are scoped to this invocation; release on every path.
	defer func() {
		closeErr := driver.Close()
		if closeErr != nil {
			se.logger.WarnContext(ctx, "failed to close driver session",
				"driver", candidate.Definition.DriverKey, "error", closeErr)
		}
	}()

	err = driver.ValidateTarget(ctx, target)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTargetUnresolved, err)
	}

	req := provider.Request{
		Target:          target,
		RenderedContent: rendered,
		Context:         execCtx.Snapshot(),
		Settings:        candidate.Instance.Settings,
		CredentialRef:   candidate.Instance.CredentialRef,
	}

	var result provider.Result

	if operation == models.OperationApply {
		result, err = driver.Apply(ctx, req)
	} else {
		result, err = driver.Diff(ctx, req)
	}

	record.AppendLog(result.Logs)

	if err != nil {
		return err
	}

	outputs["details"] = result.Details
	outputs["diff"] = result.Diff

	if !result.OK {
		return &DriverError{
			Provider: candidate.Instance.Name,
			Logs:     result.Logs,
			Err:      fmt.Errorf("%s reported failure", operation),
		}
	}

	return nil
}

func (se *StepExecutor) runCondition(execCtx *models.ExecutionContext, step *models.WorkflowStep, record *models.ExecutionStep) {
	expr := step.Condition
	if expr == "" {
		if configured, ok := step.Config["expression"].(string); ok {
			expr = configured
		}
	}

	outcome, err := evaluateCondition(expr, execCtx)
	if err != nil {
		// Condition steps never fail the execution; a broken expression is
		// recorded and treated as false.
		record.AppendLog(fmt.Sprintf("condition evaluation error: %v", err))

		outcome = false
	}

	record.Outputs = map[string]any{"result": outcome}
}

func (se *StepExecutor) runNotification(execCtx *models.ExecutionContext, step *models.WorkflowStep, record *models.ExecutionStep) {
	message := ""
	if configured, ok := step.Config["message"].(string); ok {
		message = configured
	}

	rendered, err := template.RenderString(message, execCtx.Snapshot())
	if err != nil {
		// Notifications never fail the execution either.
		record.AppendLog(fmt.Sprintf("notification render error: %v", err))

		rendered = message
	}

	record.AppendLog(rendered)
	record.Outputs = map[string]any{"message": rendered}

	se.logger.Info("workflow notification",
		"execution_id", execCtx.ExecutionID, "step", step.Name, "message", rendered)
}

// stepInputs builds the step's effective inputs: the execution's request
// inputs as a base, overlaid by input_mapping lookups into the context. A
// mapped path that resolves to nothing is a hard error.
func (se *StepExecutor) stepInputs(execCtx *models.ExecutionContext, step *models.WorkflowStep) (map[string]any, error) {
	inputs := make(map[string]any, len(execCtx.Inputs)+len(step.InputMapping))
	for k, v := range execCtx.Inputs {
		inputs[k] = v
	}

	for name, path := range step.InputMapping {
		value, ok := execCtx.GetPath(path)
		if !ok {
			return nil, fmt.Errorf("input %q (path %q): %w", name, path, ErrInputMissing)
		}

		inputs[name] = value
	}

	return inputs, nil
}

func (se *StepExecutor) resolveTarget(ctx context.Context, execution *models.Execution) (catalog.Target, error) {
	if len(execution.Targets) == 0 {
		return nil, fmt.Errorf("execution has no targets: %w", ErrTargetUnresolved)
	}

	ref := execution.Targets[0]

	target, err := se.catalog.Resolve(ctx, ref.Kind, ref.ID)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w: %w", ref.Kind, ref.ID, ErrTargetUnresolved, err)
	}

	return target, nil
}

func (se *StepExecutor) selectImplementation(ctx context.Context, taskID string, device *catalog.Device) (*models.TaskImplementation, error) {
	if taskID == "" {
		return nil, fmt.Errorf("step has no task reference: %w", selector.ErrNoImplementationMatched)
	}

	candidates, err := se.tasks.ListImplementations(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to load implementations: %w", err)
	}

	profile := selector.TargetProfile{
		Manufacturer:    device.Manufacturer,
		Platform:        device.Platform,
		SoftwareVersion: device.SoftwareVersion,
	}

	return selector.SelectImplementation(candidates, taskID, profile)
}

// selectProvider honors an implementation's pinned instance, otherwise
// scores every enabled instance against the device.
func (se *StepExecutor) selectProvider(ctx context.Context, impl *models.TaskImplementation, device *catalog.Device) (*provider.Candidate, error) {
	if impl.ProviderInstanceID != "" {
		instance, err := se.provs.InstanceByID(ctx, impl.ProviderInstanceID)
		if err != nil {
			return nil, fmt.Errorf("pinned provider instance: %w", err)
		}

		definition, err := se.provs.DefinitionByID(ctx, instance.DefinitionID)
		if err != nil {
			return nil, fmt.Errorf("pinned provider definition: %w", err)
		}

		return &provider.Candidate{Definition: definition, Instance: instance}, nil
	}

	definitions, err := se.provs.ListDefinitions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load provider definitions: %w", err)
	}

	byID := make(map[string]*models.ProviderDefinition, len(definitions))
	for _, definition := range definitions {
		byID[definition.ID] = definition
	}

	instances, err := se.provs.ListInstances(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load provider instances: %w", err)
	}

	candidates := make([]provider.Candidate, 0, len(instances))

	for _, instance := range instances {
		definition, ok := byID[instance.DefinitionID]
		if !ok {
			continue
		}

		candidates = append(candidates, provider.Candidate{Definition: definition, Instance: instance})
	}

	return provider.Select(candidates, device)
}

func (se *StepExecutor) mapOutputs(execCtx *models.ExecutionContext, step *models.WorkflowStep, record *models.ExecutionStep) error {
	if len(step.OutputMapping) == 0 {
		return nil
	}

	outputs := &models.ExecutionContext{Data: record.Outputs}

	for dest, src := range step.OutputMapping {
		value, ok := outputs.GetPath(src)
		if !ok {
			return fmt.Errorf("output path %q of step %s: %w", src, step.Name, ErrInputMissing)
		}

		err := execCtx.SetPath(dest, value)
		if err != nil {
			return fmt.Errorf("output mapping for step %s: %w", step.Name, err)
		}
	}

	return nil
}

// evaluateCondition renders a template expression against the context and
// coerces the result to a boolean. Empty expressions are true. Evaluation
// never mutates the context.
func evaluateCondition(expr string, execCtx *models.ExecutionContext) (bool, error) {
	if expr == "" {
		return true, nil
	}

	rendered, err := template.RenderWithContext(expr, execCtx)
	if err != nil {
		return false, err
	}

	return models.CoerceBool(rendered)
}
