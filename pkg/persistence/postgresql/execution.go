package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/netpilot/netpilot/pkg/models"
	"github.com/netpilot/netpilot/pkg/persistence"
)

// ExecutionRepository handles executions and their step records in the
// database.
type ExecutionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewExecutionRepository creates a new execution repository.
func NewExecutionRepository(db *sql.DB, logger *slog.Logger) *ExecutionRepository {
	return &ExecutionRepository{db: db, logger: logger}
}

const executionColumns = `
			id
		  , workflow_id
		  , status
		  , operation
		  , inputs
		  , context
		  , targets
		  , requested_by
		  , approved_by
		  , error
		  , scheduled_for
		  , recurrence
		  , resume_at
		  , started_at
		  , completed_at
		  , created_at
		  , updated_at
`

func (r *ExecutionRepository) List(ctx context.Context, workflowID string) ([]*models.Execution, error) {
	query := "SELECT " + executionColumns + " FROM executions"

	args := []any{}
	if workflowID != "" {
		query += " WHERE workflow_id = $1"

		args = append(args, workflowID)
	}

	query += " ORDER BY created_at DESC"

	return r.queryExecutions(ctx, query, args...)
}

// Due returns non-terminal executions whose scheduled start or wait
// resumption has passed.
func (r *ExecutionRepository) Due(ctx context.Context, now time.Time) ([]*models.Execution, error) {
	query := "SELECT " + executionColumns + ` FROM executions
		WHERE status NOT IN ('completed', 'failed', 'cancelled')
		  AND (
			(status = 'scheduled' AND scheduled_for IS NOT NULL AND scheduled_for <= $1)
			OR (resume_at IS NOT NULL AND resume_at <= $1)
		  )
		ORDER BY created_at ASC
	`

	return r.queryExecutions(ctx, query, now)
}

func (r *ExecutionRepository) queryExecutions(ctx context.Context, query string, args ...any) ([]*models.Execution, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	executions := make([]*models.Execution, 0)

	for rows.Next() {
		execution, err := r.scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}

		executions = append(executions, execution)
	}

	return executions, rows.Err()
}

func (r *ExecutionRepository) Save(ctx context.Context, execution *models.Execution) error {
	if execution.CreatedAt.IsZero() {
		execution.CreatedAt = time.Now().UTC()
	}

	execution.UpdatedAt = time.Now().UTC()

	inputs, err := marshalJSONB(execution.Inputs)
	if err != nil {
		return err
	}

	contextData, err := marshalJSONB(execution.Context)
	if err != nil {
		return err
	}

	targets, err := marshalJSONB(execution.Targets)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO executions (
			id, workflow_id, status, operation, inputs, context, targets,
			requested_by, approved_by, error, scheduled_for, recurrence, resume_at,
			started_at, completed_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			operation = EXCLUDED.operation,
			context = EXCLUDED.context,
			approved_by = EXCLUDED.approved_by,
			error = EXCLUDED.error,
			scheduled_for = EXCLUDED.scheduled_for,
			resume_at = EXCLUDED.resume_at,
			started_at = EXCLUDED.started_at,
			completed_at = EXCLUDED.completed_at,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		execution.ID, execution.WorkflowID, execution.Status, execution.Operation,
		inputs, contextData, targets, nullString(execution.RequestedBy),
		nullString(execution.ApprovedBy), execution.Error,
		execution.ScheduledFor, execution.Recurrence, execution.ResumeAt, execution.StartedAt,
		execution.CompletedAt, execution.CreatedAt, execution.UpdatedAt,
	)
	if err != nil {
		return persistence.NewExecutionError("Save", execution.ID, err)
	}

	return nil
}

func (r *ExecutionRepository) ByID(ctx context.Context, id string) (*models.Execution, error) {
	query := "SELECT " + executionColumns + " FROM executions WHERE id = $1"

	execution, err := r.scanExecution(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewExecutionError("ByID", id, persistence.ErrExecutionNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to scan execution %s: %w", id, err)
	}

	return execution, nil
}

const stepColumns = `
			id
		  , execution_id
		  , workflow_step_id
		  , step_order
		  , name
		  , status
		  , implementation_id
		  , provider
		  , rendered_content
		  , inputs
		  , outputs
		  , logs
		  , error_message
		  , started_at
		  , completed_at
`

func (r *ExecutionRepository) Steps(ctx context.Context, executionID string) ([]*models.ExecutionStep, error) {
	query := "SELECT " + stepColumns + ` FROM execution_steps
		WHERE execution_id = $1
		ORDER BY step_order ASC
	`

	rows, err := r.db.QueryContext(ctx, query, executionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query execution steps: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	steps := make([]*models.ExecutionStep, 0)

	for rows.Next() {
		step, err := r.scanStep(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution step: %w", err)
		}

		steps = append(steps, step)
	}

	return steps, rows.Err()
}

func (r *ExecutionRepository) SaveStep(ctx context.Context, step *models.ExecutionStep) error {
	inputs, err := marshalJSONB(step.Inputs)
	if err != nil {
		return err
	}

	outputs, err := marshalJSONB(step.Outputs)
	if err != nil {
		return err
	}

	// Upsert by (execution_id, step_order) keeps step records unique per
	// order even when two advances race.
	query := `
		INSERT INTO execution_steps (
			id, execution_id, workflow_step_id, step_order, name, status,
			implementation_id, provider, rendered_content, inputs, outputs,
			logs, error_message, started_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (execution_id, step_order) DO UPDATE SET
			status = EXCLUDED.status,
			implementation_id = EXCLUDED.implementation_id,
			provider = EXCLUDED.provider,
			rendered_content = EXCLUDED.rendered_content,
			inputs = EXCLUDED.inputs,
			outputs = EXCLUDED.outputs,
			logs = EXCLUDED.logs,
			error_message = EXCLUDED.error_message,
			started_at = EXCLUDED.started_at,
			completed_at = EXCLUDED.completed_at
	`

	_, err = r.db.ExecContext(ctx, query,
		step.ID, step.ExecutionID, nullString(step.WorkflowStepID), step.Order,
		step.Name, step.Status, nullString(step.ImplementationID),
		nullString(step.Provider), step.RenderedContent, inputs, outputs,
		step.Logs, step.ErrorMessage, step.StartedAt, step.CompletedAt,
	)
	if err != nil {
		return &persistence.StepError{Op: "SaveStep", ExecutionID: step.ExecutionID, Order: step.Order, Err: err}
	}

	return nil
}

func (r *ExecutionRepository) StepByOrder(ctx context.Context, executionID string, order int) (*models.ExecutionStep, error) {
	query := "SELECT " + stepColumns + ` FROM execution_steps
		WHERE execution_id = $1 AND step_order = $2
	`

	step, err := r.scanStep(r.db.QueryRowContext(ctx, query, executionID, order))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.ErrStepNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to scan step %d of execution %s: %w", order, executionID, err)
	}

	return step, nil
}

func (r *ExecutionRepository) scanExecution(row interface{ Scan(...any) error }) (*models.Execution, error) {
	execution := &models.Execution{}

	var (
		inputs      []byte
		contextData []byte
		targets     []byte
		requestedBy sql.NullString
		approvedBy  sql.NullString
	)

	err := row.Scan(
		&execution.ID, &execution.WorkflowID, &execution.Status,
		&execution.Operation, &inputs, &contextData, &targets,
		&requestedBy, &approvedBy, &execution.Error,
		&execution.ScheduledFor, &execution.Recurrence, &execution.ResumeAt, &execution.StartedAt,
		&execution.CompletedAt, &execution.CreatedAt, &execution.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	execution.RequestedBy = requestedBy.String
	execution.ApprovedBy = approvedBy.String

	err = unmarshalJSONB(inputs, &execution.Inputs)
	if err != nil {
		return nil, err
	}

	err = unmarshalJSONB(contextData, &execution.Context)
	if err != nil {
		return nil, err
	}

	err = unmarshalJSONB(targets, &execution.Targets)
	if err != nil {
		return nil, err
	}

	return execution, nil
}

func (r *ExecutionRepository) scanStep(row interface{ Scan(...any) error }) (*models.ExecutionStep, error) {
	step := &models.ExecutionStep{}

	var (
		workflowStepID   sql.NullString
		implementationID sql.NullString
		provider         sql.NullString
		inputs           []byte
		outputs          []byte
	)

	err := row.Scan(
		&step.ID, &step.ExecutionID, &workflowStepID, &step.Order,
		&step.Name, &step.Status, &implementationID, &provider,
		&step.RenderedContent, &inputs, &outputs, &step.Logs,
		&step.ErrorMessage, &step.StartedAt, &step.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	step.WorkflowStepID = workflowStepID.String
	step.ImplementationID = implementationID.String
	step.Provider = provider.String

	err = unmarshalJSONB(inputs, &step.Inputs)
	if err != nil {
		return nil, err
	}

	err = unmarshalJSONB(outputs, &step.Outputs)
	if err != nil {
		return nil, err
	}

	return step, nil
}
