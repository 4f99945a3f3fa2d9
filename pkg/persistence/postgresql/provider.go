package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/netpilot/netpilot/pkg/models"
	"github.com/netpilot/netpilot/pkg/persistence"
)

// ProviderRepository handles provider definitions and instances in the database.
type ProviderRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewProviderRepository creates a new provider repository.
func NewProviderRepository(db *sql.DB, logger *slog.Logger) *ProviderRepository {
	return &ProviderRepository{db: db, logger: logger}
}

func (r *ProviderRepository) ListDefinitions(ctx context.Context) ([]*models.ProviderDefinition, error) {
	query := `
		SELECT
			id
		  , name
		  , driver_key
		  , description
		  , capabilities
		  , supported_platforms
		  , enabled
		FROM provider_definitions
		ORDER BY name ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query provider definitions: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	defs := make([]*models.ProviderDefinition, 0)

	for rows.Next() {
		def, err := r.scanDefinition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan provider definition: %w", err)
		}

		defs = append(defs, def)
	}

	return defs, rows.Err()
}

func (r *ProviderRepository) SaveDefinition(ctx context.Context, def *models.ProviderDefinition) error {
	capabilities, err := marshalJSONB(def.Capabilities)
	if err != nil {
		return err
	}

	platforms, err := marshalJSONB(def.SupportedPlatforms)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO provider_definitions (
			id, name, driver_key, description, capabilities,
			supported_platforms, enabled
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			driver_key = EXCLUDED.driver_key,
			description = EXCLUDED.description,
			capabilities = EXCLUDED.capabilities,
			supported_platforms = EXCLUDED.supported_platforms,
			enabled = EXCLUDED.enabled
	`

	_, err = r.db.ExecContext(ctx, query,
		def.ID, def.Name, def.DriverKey, def.Description,
		capabilities, platforms, def.Enabled,
	)
	if err != nil {
		return fmt.Errorf("failed to save provider definition %s: %w", def.ID, err)
	}

	return nil
}

func (r *ProviderRepository) DefinitionByID(ctx context.Context, id string) (*models.ProviderDefinition, error) {
	query := `
		SELECT
			id
		  , name
		  , driver_key
		  , description
		  , capabilities
		  , supported_platforms
		  , enabled
		FROM provider_definitions
		WHERE id = $1
	`

	def, err := r.scanDefinition(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.ErrProviderDefinitionNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to scan provider definition %s: %w", id, err)
	}

	return def, nil
}

func (r *ProviderRepository) DeleteDefinition(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM provider_definitions WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete provider definition %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}

	if affected == 0 {
		return persistence.ErrProviderDefinitionNotFound
	}

	return nil
}

func (r *ProviderRepository) ListInstances(ctx context.Context) ([]*models.ProviderInstance, error) {
	query := `
		SELECT
			id
		  , definition_id
		  , name
		  , settings
		  , credential_ref
		  , scope_locations
		  , scope_tenants
		  , scope_tags
		  , enabled
		FROM provider_instances
		ORDER BY name ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query provider instances: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	instances := make([]*models.ProviderInstance, 0)

	for rows.Next() {
		instance, err := r.scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan provider instance: %w", err)
		}

		instances = append(instances, instance)
	}

	return instances, rows.Err()
}

func (r *ProviderRepository) SaveInstance(ctx context.Context, instance *models.ProviderInstance) error {
	settings, err := marshalJSONB(instance.Settings)
	if err != nil {
		return err
	}

	locations, err := marshalJSONB(instance.ScopeLocations)
	if err != nil {
		return err
	}

	tenants, err := marshalJSONB(instance.ScopeTenants)
	if err != nil {
		return err
	}

	tags, err := marshalJSONB(instance.ScopeTags)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO provider_instances (
			id, definition_id, name, settings, credential_ref,
			scope_locations, scope_tenants, scope_tags, enabled
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			definition_id = EXCLUDED.definition_id,
			name = EXCLUDED.name,
			settings = EXCLUDED.settings,
			credential_ref = EXCLUDED.credential_ref,
			scope_locations = EXCLUDED.scope_locations,
			scope_tenants = EXCLUDED.scope_tenants,
			scope_tags = EXCLUDED.scope_tags,
			enabled = EXCLUDED.enabled
	`

	_, err = r.db.ExecContext(ctx, query,
		instance.ID, instance.DefinitionID, instance.Name, settings,
		nullString(instance.CredentialRef), locations, tenants, tags,
		instance.Enabled,
	)
	if isUniqueViolation(err) {
		// The id conflict is upserted above; what remains is the
		// (definition_id, name) constraint.
		return fmt.Errorf("instance %q under definition %s: %w",
			instance.Name, instance.DefinitionID, persistence.ErrDuplicateInstanceName)
	}

	if err != nil {
		return fmt.Errorf("failed to save provider instance %s: %w", instance.ID, err)
	}

	return nil
}

func (r *ProviderRepository) InstanceByID(ctx context.Context, id string) (*models.ProviderInstance, error) {
	query := `
		SELECT
			id
		  , definition_id
		  , name
		  , settings
		  , credential_ref
		  , scope_locations
		  , scope_tenants
		  , scope_tags
		  , enabled
		FROM provider_instances
		WHERE id = $1
	`

	instance, err := r.scanInstance(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.ErrProviderInstanceNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to scan provider instance %s: %w", id, err)
	}

	return instance, nil
}

func (r *ProviderRepository) DeleteInstance(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM provider_instances WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete provider instance %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}

	if affected == 0 {
		return persistence.ErrProviderInstanceNotFound
	}

	return nil
}

func (r *ProviderRepository) scanDefinition(row interface{ Scan(...any) error }) (*models.ProviderDefinition, error) {
	def := &models.ProviderDefinition{}

	var capabilities, platforms []byte

	err := row.Scan(
		&def.ID, &def.Name, &def.DriverKey, &def.Description,
		&capabilities, &platforms, &def.Enabled,
	)
	if err != nil {
		return nil, err
	}

	err = unmarshalJSONB(capabilities, &def.Capabilities)
	if err != nil {
		return nil, err
	}

	err = unmarshalJSONB(platforms, &def.SupportedPlatforms)
	if err != nil {
		return nil, err
	}

	return def, nil
}

func (r *ProviderRepository) scanInstance(row interface{ Scan(...any) error }) (*models.ProviderInstance, error) {
	instance := &models.ProviderInstance{}

	var (
		credentialRef sql.NullString
		settings      []byte
		locations     []byte
		tenants       []byte
		tags          []byte
	)

	err := row.Scan(
		&instance.ID, &instance.DefinitionID, &instance.Name, &settings,
		&credentialRef, &locations, &tenants, &tags, &instance.Enabled,
	)
	if err != nil {
		return nil, err
	}

	instance.CredentialRef = credentialRef.String

	err = unmarshalJSONB(settings, &instance.Settings)
	if err != nil {
		return nil, err
	}

	err = unmarshalJSONB(locations, &instance.ScopeLocations)
	if err != nil {
		return nil, err
	}

	err = unmarshalJSONB(tenants, &instance.ScopeTenants)
	if err != nil {
		return nil, err
	}

	err = unmarshalJSONB(tags, &instance.ScopeTags)
	if err != nil {
		return nil, err
	}

	return instance, nil
}
