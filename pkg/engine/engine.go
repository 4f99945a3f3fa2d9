// Package engine owns the execution state machine: it sequences steps,
// evaluates conditions against the accumulating context, halts for human
// approval, applies per-step failure policy, and checkpoints every
// transition so an execution survives process restarts.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/netpilot/netpilot/pkg/catalog"
	"github.com/netpilot/netpilot/pkg/engine/lock"
	"github.com/netpilot/netpilot/pkg/eventbus"
	"github.com/netpilot/netpilot/pkg/events"
	"github.com/netpilot/netpilot/pkg/models"
	"github.com/netpilot/netpilot/pkg/otelhelper"
	"github.com/netpilot/netpilot/pkg/persistence"
	"github.com/netpilot/netpilot/pkg/provider"
)

// Engine drives executions through their state machine. All mutation of an
// execution goes through Advance, Approve, Cancel or RequestOperation; each
// acquires the per-execution lock so at most one advance is active per
// execution id.
type Engine struct {
	persistence persistence.Persistence
	executor    *StepExecutor
	bus         eventbus.EventBus
	locker      lock.Locker
	logger      *slog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// New creates an engine. The tracer may be nil; spans are skipped then.
func New(
	store persistence.Persistence,
	cat catalog.Catalog,
	registry *provider.Registry,
	bus eventbus.EventBus,
	locker lock.Locker,
	logger *slog.Logger,
	tracer trace.Tracer,
) *Engine {
	return &Engine{
		persistence: store,
		executor:    NewStepExecutor(cat, registry, store.Tasks(), store.Providers(), logger),
		bus:         bus,
		locker:      locker,
		logger:      logger,
		tracer:      tracer,
		now:         time.Now,
	}
}

// Advance runs the execution forward until it suspends (approval gate, wait
// delay) or reaches a terminal state. It is idempotent: finalized steps are
// never re-entered, and advancing a terminal execution is a conflict.
func (e *Engine) Advance(ctx context.Context, executionID string) error {
	release, acquired, err := e.locker.TryAcquire(ctx, executionID)
	if err != nil {
		return fmt.Errorf("failed to acquire advance lock: %w", err)
	}

	if !acquired {
		return fmt.Errorf("execution %s: %w", executionID, ErrAdvanceInProgress)
	}

	defer release()

	if e.tracer != nil {
		var span trace.Span

		ctx, span = otelhelper.StartSpan(ctx, e.tracer, "engine.advance",
			attribute.String(otelhelper.ExecutionIDKey, executionID))
		defer span.End()
	}

	execution, err := e.persistence.Executions().ByID(ctx, executionID)
	if err != nil {
		return err
	}

	now := e.now().UTC()

	if execution.Status.Terminal() {
		return fmt.Errorf("execution %s is %s: %w", executionID, execution.Status, ErrExecutionNotRunnable)
	}

	if !execution.Runnable(now) {
		return fmt.Errorf("execution %s is %s: %w", executionID, execution.Status, ErrExecutionNotRunnable)
	}

	workflow, err := e.persistence.Workflows().ByID(ctx, execution.WorkflowID)
	if err != nil {
		return err
	}

	err = e.start(ctx, execution, now)
	if err != nil {
		return err
	}

	return e.advanceSteps(ctx, workflow, execution)
}

// start moves a runnable execution into running and announces it.
func (e *Engine) start(ctx context.Context, execution *models.Execution, now time.Time) error {
	if execution.Status == models.ExecutionRunning {
		return nil
	}

	execution.Status = models.ExecutionRunning
	if execution.StartedAt == nil {
		execution.StartedAt = &now
	}

	err := e.saveExecution(ctx, execution, nil)
	if err != nil {
		return err
	}

	if execution.Status != models.ExecutionRunning {
		return nil
	}

	e.publish(ctx, execution, &events.ExecutionStarted{
		BaseEvent: e.baseEvent(execution, events.ExecutionStartedEvent),
	})

	return nil
}

//nolint:gocognit // the step loop mirrors the state machine transitions one to one
func (e *Engine) advanceSteps(ctx context.Context, workflow *models.Workflow, execution *models.Execution) error {
	execCtx := models.NewExecutionContext(execution)
	steps := workflow.OrderedSteps()

	for i, step := range steps {
		existing, err := e.stepRecord(ctx, execution, step)
		if err != nil {
			return err
		}

		if existing != nil && existing.Status.Finalized() {
			// Resume idempotency: a finalized step is never re-entered.
			continue
		}

		// Cancellation between steps: never start a new step.
		current, err := e.persistence.Executions().ByID(ctx, execution.ID)
		if err != nil {
			return err
		}

		if current.Status == models.ExecutionCancelled {
			return nil
		}

		// Approval gates halt before any step record is created.
		if e.needsApproval(workflow, step, execution) {
			return e.suspendForApproval(ctx, execution, execCtx, step)
		}

		if step.Type == models.StepTypeWait {
			done, err := e.handleWait(ctx, execution, execCtx, step, existing)
			if err != nil || !done {
				return err
			}

			continue
		}

		// Visibility condition: false skips the step without side effects.
		if step.Condition != "" && (step.Type == models.StepTypeTask || step.Type == models.StepTypeValidation) {
			visible, err := evaluateCondition(step.Condition, execCtx)
			if err != nil {
				skipErr := e.markRemainingSkipped(ctx, execution, steps[i+1:], "previous step failed")
				if skipErr != nil {
					return skipErr
				}

				return e.failExecution(ctx, execution, execCtx,
					fmt.Sprintf("condition of step %s: %v", step.Name, err))
			}

			if !visible {
				err = e.finalizeSkipped(ctx, execution, step, "condition evaluated to false")
				if err != nil {
					return err
				}

				continue
			}
		}

		record := e.newStepRecord(execution, step, existing)

		stepErr := e.executor.Run(ctx, execution, execCtx, step, record)

		err = e.saveStep(ctx, execution, execCtx, record)
		if err != nil {
			return err
		}

		e.publish(ctx, execution, &events.ExecutionStepFinished{
			BaseEvent:  e.baseEvent(execution, events.ExecutionStepFinishedEvent),
			Order:      step.Order,
			StepName:   step.Name,
			StepStatus: record.Status,
		})

		// A cancel that landed while the step ran was merged back by the
		// checkpoint; it overrides the failure policy and the next step.
		if execution.Status == models.ExecutionCancelled {
			return nil
		}

		if stepErr == nil {
			continue
		}

		e.logger.WarnContext(ctx, "step failed",
			"execution_id", execution.ID, "step", step.Name,
			"kind", ErrorKind(stepErr), "error", stepErr)

		switch step.FailurePolicy() {
		case models.OnFailureContinue:
			continue
		case models.OnFailureSkipRemaining:
			return e.skipRemaining(ctx, execution, execCtx, steps[i+1:], stepErr)
		default: // stop
			err = e.markRemainingSkipped(ctx, execution, steps[i+1:], "previous step failed")
			if err != nil {
				return err
			}

			return e.failExecution(ctx, execution, execCtx, stepErr.Error())
		}
	}

	return e.completeExecution(ctx, execution, execCtx)
}

// handleWait resolves a wait step. Without a configured delay it completes
// immediately. With one, the first pass records the step as running, stamps
// resume_at on the execution and returns; the scheduler re-advances once the
// delay elapses and the second pass finalizes the step.
func (e *Engine) handleWait(
	ctx context.Context,
	execution *models.Execution,
	execCtx *models.ExecutionContext,
	step *models.WorkflowStep,
	existing *models.ExecutionStep,
) (bool, error) {
	now := e.now().UTC()

	delay := waitDelay(step)

	if existing == nil && delay > 0 {
		record := e.newStepRecord(execution, step, nil)
		record.Status = models.StepRunning
		record.StartedAt = &now

		err := e.persistence.Executions().SaveStep(ctx, record)
		if err != nil {
			return false, err
		}

		resumeAt := now.Add(delay)
		execution.ResumeAt = &resumeAt

		return false, e.saveExecution(ctx, execution, execCtx)
	}

	if existing != nil && execution.ResumeAt != nil && execution.ResumeAt.After(now) {
		// Still waiting; nothing to do until the scheduler fires.
		return false, nil
	}

	record := existing
	if record == nil {
		record = e.newStepRecord(execution, step, nil)
		record.StartedAt = &now
	}

	record.Status = models.StepCompleted
	record.CompletedAt = &now
	record.Outputs = map[string]any{"waited": delay > 0}

	execution.ResumeAt = nil

	err := e.persistence.Executions().SaveStep(ctx, record)
	if err != nil {
		return false, err
	}

	return true, e.saveExecution(ctx, execution, execCtx)
}

func (e *Engine) needsApproval(workflow *models.Workflow, step *models.WorkflowStep, execution *models.Execution) bool {
	if execution.ApprovedBy != "" {
		return false
	}

	return workflow.ApprovalRequired || step.Type == models.StepTypeApproval
}

func (e *Engine) suspendForApproval(
	ctx context.Context,
	execution *models.Execution,
	execCtx *models.ExecutionContext,
	step *models.WorkflowStep,
) error {
	execution.Status = models.ExecutionAwaitingApproval

	err := e.saveExecution(ctx, execution, execCtx)
	if err != nil {
		return err
	}

	if execution.Status != models.ExecutionAwaitingApproval {
		return nil
	}

	e.logger.InfoContext(ctx, "execution awaiting approval",
		"execution_id", execution.ID, "step", step.Name)

	e.publish(ctx, execution, &events.ExecutionAwaitingApproval{
		BaseEvent: e.baseEvent(execution, events.ExecutionAwaitingApprovalEvent),
	})

	return nil
}

// Approve records the approver and requeues the execution. Approving an
// already-approved execution is a no-op.
func (e *Engine) Approve(ctx context.Context, executionID, approvedBy string) error {
	execution, err := e.persistence.Executions().ByID(ctx, executionID)
	if err != nil {
		return err
	}

	if execution.ApprovedBy != "" {
		return nil
	}

	execution.ApprovedBy = approvedBy

	if execution.Status == models.ExecutionAwaitingApproval {
		execution.Status = models.ExecutionPending
	}

	err = e.persistence.Executions().Save(ctx, execution)
	if err != nil {
		return err
	}

	e.publish(ctx, execution, &events.ExecutionQueued{
		BaseEvent: e.baseEvent(execution, events.ExecutionQueuedEvent),
		Operation: execution.Operation,
	})

	return nil
}

// Cancel transitions the execution to cancelled. A step already dispatched
// to a driver is allowed to finish; no new step ever starts afterwards.
func (e *Engine) Cancel(ctx context.Context, executionID string) error {
	execution, err := e.persistence.Executions().ByID(ctx, executionID)
	if err != nil {
		return err
	}

	if execution.Status.Terminal() {
		return fmt.Errorf("execution %s is %s: %w", executionID, execution.Status, ErrExecutionNotRunnable)
	}

	now := e.now().UTC()
	execution.Status = models.ExecutionCancelled
	execution.CompletedAt = &now
	execution.ResumeAt = nil

	err = e.persistence.Executions().Save(ctx, execution)
	if err != nil {
		return err
	}

	e.publish(ctx, execution, &events.ExecutionCancelled{
		BaseEvent: e.baseEvent(execution, events.ExecutionCancelledEvent),
	})

	return nil
}

// RequestOperation records the requested operation. On a terminal execution
// the request is recorded but the execution is not requeued.
func (e *Engine) RequestOperation(ctx context.Context, executionID string, operation models.Operation) error {
	if !models.ValidOperation(operation) {
		return fmt.Errorf("unknown operation %q", operation)
	}

	execution, err := e.persistence.Executions().ByID(ctx, executionID)
	if err != nil {
		return err
	}

	execution.Operation = operation

	return e.persistence.Executions().Save(ctx, execution)
}

func (e *Engine) skipRemaining(
	ctx context.Context,
	execution *models.Execution,
	execCtx *models.ExecutionContext,
	remaining []*models.WorkflowStep,
	stepErr error,
) error {
	err := e.markRemainingSkipped(ctx, execution, remaining, "skipped by failure policy")
	if err != nil {
		return err
	}

	// An execution whose remaining steps were only notifications still
	// completes; anything of substance skipped means failure.
	onlyNotifications := true

	for _, step := range remaining {
		if step.Type != models.StepTypeNotification {
			onlyNotifications = false

			break
		}
	}

	if onlyNotifications {
		return e.completeExecution(ctx, execution, execCtx)
	}

	return e.failExecution(ctx, execution, execCtx, stepErr.Error())
}

func (e *Engine) markRemainingSkipped(ctx context.Context, execution *models.Execution, remaining []*models.WorkflowStep, reason string) error {
	for _, step := range remaining {
		existing, err := e.stepRecord(ctx, execution, step)
		if err != nil {
			return err
		}

		if existing != nil && existing.Status.Finalized() {
			continue
		}

		err = e.finalizeSkipped(ctx, execution, step, reason)
		if err != nil {
			return err
		}
	}

	return nil
}

func (e *Engine) finalizeSkipped(ctx context.Context, execution *models.Execution, step *models.WorkflowStep, reason string) error {
	now := e.now().UTC()

	record := e.newStepRecord(execution, step, nil)
	record.Status = models.StepSkipped
	record.CompletedAt = &now
	record.AppendLog(reason)

	return e.persistence.Executions().SaveStep(ctx, record)
}

func (e *Engine) completeExecution(ctx context.Context, execution *models.Execution, execCtx *models.ExecutionContext) error {
	now := e.now().UTC()
	execution.Status = models.ExecutionCompleted
	execution.CompletedAt = &now
	execution.ResumeAt = nil

	err := e.saveExecution(ctx, execution, execCtx)
	if err != nil {
		return err
	}

	// A concurrent cancel won the checkpoint merge; its event already fired.
	if execution.Status != models.ExecutionCompleted {
		return nil
	}

	e.logger.InfoContext(ctx, "execution completed", "execution_id", execution.ID)

	e.publish(ctx, execution, &events.ExecutionCompleted{
		BaseEvent: e.baseEvent(execution, events.ExecutionCompletedEvent),
		Duration:  executionDuration(execution),
	})

	return nil
}

func (e *Engine) failExecution(ctx context.Context, execution *models.Execution, execCtx *models.ExecutionContext, message string) error {
	now := e.now().UTC()
	execution.Status = models.ExecutionFailed
	execution.Error = message
	execution.CompletedAt = &now
	execution.ResumeAt = nil

	err := e.saveExecution(ctx, execution, execCtx)
	if err != nil {
		return err
	}

	if execution.Status != models.ExecutionFailed {
		return nil
	}

	e.logger.WarnContext(ctx, "execution failed", "execution_id", execution.ID, "error", message)

	e.publish(ctx, execution, &events.ExecutionFailed{
		BaseEvent: e.baseEvent(execution, events.ExecutionFailedEvent),
		Error:     message,
	})

	return nil
}

// saveStep checkpoints the step and the context it may have grown.
func (e *Engine) saveStep(ctx context.Context, execution *models.Execution, execCtx *models.ExecutionContext, record *models.ExecutionStep) error {
	err := e.persistence.Executions().SaveStep(ctx, record)
	if err != nil {
		return err
	}

	return e.saveExecution(ctx, execution, execCtx)
}

// saveExecution checkpoints the execution, merging in anything an external
// actor wrote while the engine held a stale copy: a terminal status set by
// Cancel always survives the checkpoint, as does a recorded approver. The
// engine only ever owns context, resume_at and its own transitions.
func (e *Engine) saveExecution(ctx context.Context, execution *models.Execution, execCtx *models.ExecutionContext) error {
	if execCtx != nil {
		execution.Context = execCtx.Data
	}

	stored, err := e.persistence.Executions().ByID(ctx, execution.ID)
	if err != nil && !persistence.IsNotFound(err) {
		return err
	}

	if stored != nil {
		if execution.ApprovedBy == "" {
			execution.ApprovedBy = stored.ApprovedBy
		}

		if stored.Status.Terminal() && stored.Status != execution.Status {
			execution.Status = stored.Status
			execution.CompletedAt = stored.CompletedAt
			execution.Error = stored.Error
			execution.ResumeAt = nil
		}
	}

	return e.persistence.Executions().Save(ctx, execution)
}

func (e *Engine) stepRecord(ctx context.Context, execution *models.Execution, step *models.WorkflowStep) (*models.ExecutionStep, error) {
	record, err := e.persistence.Executions().StepByOrder(ctx, execution.ID, step.Order)
	if persistence.IsNotFound(err) {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	return record, nil
}

func (e *Engine) newStepRecord(execution *models.Execution, step *models.WorkflowStep, existing *models.ExecutionStep) *models.ExecutionStep {
	if existing != nil {
		return existing
	}

	return &models.ExecutionStep{
		ID:             uuid.NewString(),
		ExecutionID:    execution.ID,
		WorkflowStepID: step.ID,
		Order:          step.Order,
		Name:           step.Name,
		Status:         models.StepPending,
	}
}

func (e *Engine) baseEvent(execution *models.Execution, eventType events.EventType) events.BaseEvent {
	return events.BaseEvent{
		ID:          uuid.NewString(),
		Type:        eventType,
		Timestamp:   e.now().UTC(),
		ExecutionID: execution.ID,
		WorkflowID:  execution.WorkflowID,
	}
}

func executionDuration(execution *models.Execution) time.Duration {
	if execution.StartedAt == nil || execution.CompletedAt == nil {
		return 0
	}

	return execution.CompletedAt.Sub(*execution.StartedAt)
}

func (e *Engine) publish(ctx context.Context, execution *models.Execution, event eventbus.Event) {
	if e.bus == nil {
		return
	}

	err := e.bus.Publish(ctx, execution.ID, event)
	if err != nil {
		e.logger.ErrorContext(ctx, "failed to publish event",
			"event", event.GetType(), "execution_id", execution.ID, "error", err)
	}
}

func waitDelay(step *models.WorkflowStep) time.Duration {
	raw, ok := step.Config["delay_seconds"]
	if !ok {
		return 0
	}

	switch v := raw.(type) {
	case float64:
		return time.Duration(v) * time.Second
	case int:
		return time.Duration(v) * time.Second
	default:
		return 0
	}
}
