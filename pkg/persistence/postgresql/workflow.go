package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/netpilot/netpilot/pkg/models"
	"github.com/netpilot/netpilot/pkg/persistence"
)

const uniqueViolation = "23505"

// WorkflowRepository handles workflow-related database operations.
type WorkflowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(db *sql.DB, logger *slog.Logger) *WorkflowRepository {
	return &WorkflowRepository{db: db, logger: logger}
}

func (r *WorkflowRepository) List(ctx context.Context) ([]*models.Workflow, error) {
	query := `
		SELECT
			id
		  , name
		  , slug
		  , description
		  , category
		  , version
		  , enabled
		  , approval_required
		  , schedule_allowed
		  , input_schema
		  , default_inputs
		  , created_at
		  , updated_at
		FROM workflows
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	workflows := make([]*models.Workflow, 0)

	for rows.Next() {
		workflow, err := r.scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}

		err = r.loadSteps(ctx, workflow)
		if err != nil {
			return nil, fmt.Errorf("failed to load workflow steps: %w", err)
		}

		workflows = append(workflows, workflow)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating workflows: %w", err)
	}

	return workflows, nil
}

func (r *WorkflowRepository) ByID(ctx context.Context, id string) (*models.Workflow, error) {
	return r.getBy(ctx, "id", id)
}

func (r *WorkflowRepository) BySlug(ctx context.Context, slug string) (*models.Workflow, error) {
	return r.getBy(ctx, "slug", slug)
}

func (r *WorkflowRepository) getBy(ctx context.Context, column, value string) (*models.Workflow, error) {
	query := fmt.Sprintf(`
		SELECT
			id
		  , name
		  , slug
		  , description
		  , category
		  , version
		  , enabled
		  , approval_required
		  , schedule_allowed
		  , input_schema
		  , default_inputs
		  , created_at
		  , updated_at
		FROM workflows
		WHERE %s = $1
	`, column)

	workflow, err := r.scanWorkflow(r.db.QueryRowContext(ctx, query, value))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewWorkflowError("ByID", value, persistence.ErrWorkflowNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to scan workflow %s: %w", value, err)
	}

	err = r.loadSteps(ctx, workflow)
	if err != nil {
		return nil, fmt.Errorf("failed to load workflow steps: %w", err)
	}

	return workflow, nil
}

// Save upserts the workflow and replaces its step rows in one transaction.
// The (workflow_id, step_order) unique constraint turns duplicate orders
// into ErrDuplicateStepOrder.
func (r *WorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = time.Now().UTC()
	}

	workflow.UpdatedAt = time.Now().UTC()

	inputSchema, err := marshalJSONB(workflow.InputSchema)
	if err != nil {
		return err
	}

	defaultInputs, err := marshalJSONB(workflow.DefaultInputs)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() { _ = tx.Rollback() }()

	query := `
		INSERT INTO workflows (
			id, name, slug, description, category, version, enabled,
			approval_required, schedule_allowed, input_schema, default_inputs,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			slug = EXCLUDED.slug,
			description = EXCLUDED.description,
			category = EXCLUDED.category,
			version = EXCLUDED.version,
			enabled = EXCLUDED.enabled,
			approval_required = EXCLUDED.approval_required,
			schedule_allowed = EXCLUDED.schedule_allowed,
			input_schema = EXCLUDED.input_schema,
			default_inputs = EXCLUDED.default_inputs,
			updated_at = EXCLUDED.updated_at
	`

	_, err = tx.ExecContext(ctx, query,
		workflow.ID, workflow.Name, workflow.Slug, workflow.Description,
		workflow.Category, workflow.Version, workflow.Enabled,
		workflow.ApprovalRequired, workflow.ScheduleAllowed,
		inputSchema, defaultInputs, workflow.CreatedAt, workflow.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return persistence.NewWorkflowError("Save", workflow.ID, persistence.ErrWorkflowAlreadyExists)
		}

		return fmt.Errorf("failed to save workflow %s: %w", workflow.ID, err)
	}

	_, err = tx.ExecContext(ctx, "DELETE FROM workflow_steps WHERE workflow_id = $1", workflow.ID)
	if err != nil {
		return fmt.Errorf("failed to clear workflow steps: %w", err)
	}

	for _, step := range workflow.Steps {
		err = r.insertStep(ctx, tx, workflow.ID, step)
		if err != nil {
			return err
		}
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit workflow %s: %w", workflow.ID, err)
	}

	return nil
}

func (r *WorkflowRepository) insertStep(ctx context.Context, tx *sql.Tx, workflowID string, step *models.WorkflowStep) error {
	inputMapping, err := marshalJSONB(step.InputMapping)
	if err != nil {
		return err
	}

	outputMapping, err := marshalJSONB(step.OutputMapping)
	if err != nil {
		return err
	}

	config, err := marshalJSONB(step.Config)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO workflow_steps (
			id, workflow_id, step_order, name, step_type, task_id,
			input_mapping, output_mapping, condition, on_failure, config
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err = tx.ExecContext(ctx, query,
		step.ID, workflowID, step.Order, step.Name, step.Type,
		nullString(step.TaskID), inputMapping, outputMapping,
		step.Condition, step.OnFailure, config,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return persistence.NewWorkflowError("Save", workflowID, persistence.ErrDuplicateStepOrder)
		}

		return fmt.Errorf("failed to insert step %d: %w", step.Order, err)
	}

	return nil
}

func (r *WorkflowRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM workflows WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete workflow %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}

	if affected == 0 {
		return persistence.NewWorkflowError("Delete", id, persistence.ErrWorkflowNotFound)
	}

	return nil
}

func (r *WorkflowRepository) loadSteps(ctx context.Context, workflow *models.Workflow) error {
	query := `
		SELECT
			id
		  , step_order
		  , name
		  , step_type
		  , task_id
		  , input_mapping
		  , output_mapping
		  , condition
		  , on_failure
		  , config
		FROM workflow_steps
		WHERE workflow_id = $1
		ORDER BY step_order ASC
	`

	rows, err := r.db.QueryContext(ctx, query, workflow.ID)
	if err != nil {
		return fmt.Errorf("failed to query workflow steps: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	workflow.Steps = make([]*models.WorkflowStep, 0)

	for rows.Next() {
		step := &models.WorkflowStep{}

		var (
			taskID        sql.NullString
			inputMapping  []byte
			outputMapping []byte
			config        []byte
		)

		err := rows.Scan(
			&step.ID, &step.Order, &step.Name, &step.Type, &taskID,
			&inputMapping, &outputMapping, &step.Condition, &step.OnFailure, &config,
		)
		if err != nil {
			return fmt.Errorf("failed to scan workflow step: %w", err)
		}

		step.TaskID = taskID.String

		err = unmarshalJSONB(inputMapping, &step.InputMapping)
		if err != nil {
			return err
		}

		err = unmarshalJSONB(outputMapping, &step.OutputMapping)
		if err != nil {
			return err
		}

		err = unmarshalJSONB(config, &step.Config)
		if err != nil {
			return err
		}

		workflow.Steps = append(workflow.Steps, step)
	}

	return rows.Err()
}

func (r *WorkflowRepository) scanWorkflow(row interface{ Scan(...any) error }) (*models.Workflow, error) {
	workflow := &models.Workflow{}

	var (
		category      sql.NullString
		version       sql.NullString
		inputSchema   []byte
		defaultInputs []byte
	)

	err := row.Scan(
		&workflow.ID, &workflow.Name, &workflow.Slug, &workflow.Description,
		&category, &version, &workflow.Enabled, &workflow.ApprovalRequired,
		&workflow.ScheduleAllowed, &inputSchema, &defaultInputs,
		&workflow.CreatedAt, &workflow.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	workflow.Category = category.String
	workflow.Version = version.String

	err = unmarshalJSONB(inputSchema, &workflow.InputSchema)
	if err != nil {
		return nil, err
	}

	err = unmarshalJSONB(defaultInputs, &workflow.DefaultInputs)
	if err != nil {
		return nil, err
	}

	return workflow, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error

	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
