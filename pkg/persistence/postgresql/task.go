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

const foreignKeyViolation = "23503"

// TaskRepository handles task definitions and implementations in the database.
type TaskRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewTaskRepository creates a new task repository.
func NewTaskRepository(db *sql.DB, logger *slog.Logger) *TaskRepository {
	return &TaskRepository{db: db, logger: logger}
}

func (r *TaskRepository) ListDefinitions(ctx context.Context) ([]*models.TaskDefinition, error) {
	query := `
		SELECT
			id
		  , name
		  , slug
		  , description
		  , category
		  , input_schema
		  , output_schema
		  , created_at
		  , updated_at
		FROM tasks
		ORDER BY name ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	tasks := make([]*models.TaskDefinition, 0)

	for rows.Next() {
		task, err := r.scanDefinition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}

		tasks = append(tasks, task)
	}

	return tasks, rows.Err()
}

func (r *TaskRepository) SaveDefinition(ctx context.Context, task *models.TaskDefinition) error {
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now().UTC()
	}

	task.UpdatedAt = time.Now().UTC()

	inputSchema, err := marshalJSONB(task.InputSchema)
	if err != nil {
		return err
	}

	outputSchema, err := marshalJSONB(task.OutputSchema)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO tasks (
			id, name, slug, description, category, input_schema, output_schema,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			slug = EXCLUDED.slug,
			description = EXCLUDED.description,
			category = EXCLUDED.category,
			input_schema = EXCLUDED.input_schema,
			output_schema = EXCLUDED.output_schema,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		task.ID, task.Name, task.Slug, task.Description,
		nullString(task.Category), inputSchema, outputSchema,
		task.CreatedAt, task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save task %s: %w", task.ID, err)
	}

	return nil
}

func (r *TaskRepository) DefinitionByID(ctx context.Context, id string) (*models.TaskDefinition, error) {
	query := `
		SELECT
			id
		  , name
		  , slug
		  , description
		  , category
		  , input_schema
		  , output_schema
		  , created_at
		  , updated_at
		FROM tasks
		WHERE id = $1
	`

	task, err := r.scanDefinition(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.ErrTaskNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to scan task %s: %w", id, err)
	}

	return task, nil
}

// DeleteDefinition relies on the RESTRICT foreign key from implementations:
// a referenced task cannot be removed.
func (r *TaskRepository) DeleteDefinition(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM tasks WHERE id = $1", id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return persistence.ErrTaskReferenced
		}

		return fmt.Errorf("failed to delete task %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}

	if affected == 0 {
		return persistence.ErrTaskNotFound
	}

	return nil
}

func (r *TaskRepository) ListImplementations(ctx context.Context, taskID string) ([]*models.TaskImplementation, error) {
	query := `
		SELECT
			id
		  , task_id
		  , name
		  , manufacturer
		  , platform
		  , software_versions
		  , implementation_type
		  , template
		  , action
		  , provider_instance_id
		  , priority
		  , enabled
		FROM task_implementations
	`

	args := []any{}
	if taskID != "" {
		query += " WHERE task_id = $1"

		args = append(args, taskID)
	}

	query += " ORDER BY priority DESC, name ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query implementations: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	impls := make([]*models.TaskImplementation, 0)

	for rows.Next() {
		impl, err := r.scanImplementation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan implementation: %w", err)
		}

		impls = append(impls, impl)
	}

	return impls, rows.Err()
}

func (r *TaskRepository) SaveImplementation(ctx context.Context, impl *models.TaskImplementation) error {
	versions, err := marshalJSONB(impl.SoftwareVersions)
	if err != nil {
		return err
	}

	action, err := marshalJSONB(impl.Action)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO task_implementations (
			id, task_id, name, manufacturer, platform, software_versions,
			implementation_type, template, action, provider_instance_id,
			priority, enabled
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			task_id = EXCLUDED.task_id,
			name = EXCLUDED.name,
			manufacturer = EXCLUDED.manufacturer,
			platform = EXCLUDED.platform,
			software_versions = EXCLUDED.software_versions,
			implementation_type = EXCLUDED.implementation_type,
			template = EXCLUDED.template,
			action = EXCLUDED.action,
			provider_instance_id = EXCLUDED.provider_instance_id,
			priority = EXCLUDED.priority,
			enabled = EXCLUDED.enabled
	`

	_, err = r.db.ExecContext(ctx, query,
		impl.ID, impl.TaskID, impl.Name, impl.Manufacturer,
		nullString(impl.Platform), versions, impl.Type, impl.Template,
		action, nullString(impl.ProviderInstanceID), impl.Priority, impl.Enabled,
	)
	if err != nil {
		return fmt.Errorf("failed to save implementation %s: %w", impl.ID, err)
	}

	return nil
}

func (r *TaskRepository) ImplementationByID(ctx context.Context, id string) (*models.TaskImplementation, error) {
	query := `
		SELECT
			id
		  , task_id
		  , name
		  , manufacturer
		  , platform
		  , software_versions
		  , implementation_type
		  , template
		  , action
		  , provider_instance_id
		  , priority
		  , enabled
		FROM task_implementations
		WHERE id = $1
	`

	impl, err := r.scanImplementation(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.ErrImplementationNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to scan implementation %s: %w", id, err)
	}

	return impl, nil
}

func (r *TaskRepository) DeleteImplementation(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM task_implementations WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete implementation %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}

	if affected == 0 {
		return persistence.ErrImplementationNotFound
	}

	return nil
}

func (r *TaskRepository) scanDefinition(row interface{ Scan(...any) error }) (*models.TaskDefinition, error) {
	task := &models.TaskDefinition{}

	var (
		category     sql.NullString
		inputSchema  []byte
		outputSchema []byte
	)

	err := row.Scan(
		&task.ID, &task.Name, &task.Slug, &task.Description, &category,
		&inputSchema, &outputSchema, &task.CreatedAt, &task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	task.Category = category.String

	err = unmarshalJSONB(inputSchema, &task.InputSchema)
	if err != nil {
		return nil, err
	}

	err = unmarshalJSONB(outputSchema, &task.OutputSchema)
	if err != nil {
		return nil, err
	}

	return task, nil
}

func (r *TaskRepository) scanImplementation(row interface{ Scan(...any) error }) (*models.TaskImplementation, error) {
	impl := &models.TaskImplementation{}

	var (
		platform   sql.NullString
		versions   []byte
		action     []byte
		providerID sql.NullString
	)

	err := row.Scan(
		&impl.ID, &impl.TaskID, &impl.Name, &impl.Manufacturer, &platform,
		&versions, &impl.Type, &impl.Template, &action, &providerID,
		&impl.Priority, &impl.Enabled,
	)
	if err != nil {
		return nil, err
	}

	impl.Platform = platform.String
	impl.ProviderInstanceID = providerID.String

	err = unmarshalJSONB(versions, &impl.SoftwareVersions)
	if err != nil {
		return nil, err
	}

	err = unmarshalJSONB(action, &impl.Action)
	if err != nil {
		return nil, err
	}

	return impl, nil
}

func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error

	return errors.As(err, &pqErr) && pqErr.Code == foreignKeyViolation
}
