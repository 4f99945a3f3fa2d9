package file

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/netpilot/netpilot/pkg/models"
	"github.com/netpilot/netpilot/pkg/persistence"
)

// ProviderRepository handles provider definitions and instances on disk.
type ProviderRepository struct {
	definitionsDir string
	instancesDir   string
	mu             sync.RWMutex
}

// NewProviderRepository creates a new provider repository.
func NewProviderRepository(root string) *ProviderRepository {
	return &ProviderRepository{
		definitionsDir: filepath.Join(root, "provider_definitions"),
		instancesDir:   filepath.Join(root, "provider_instances"),
	}
}

func (pr *ProviderRepository) ListDefinitions(_ context.Context) ([]*models.ProviderDefinition, error) {
	pr.mu.RLock()
	defer pr.mu.RUnlock()

	ids, err := listIDs(pr.definitionsDir)
	if err != nil {
		return nil, err
	}

	defs := make([]*models.ProviderDefinition, 0, len(ids))

	for _, id := range ids {
		def := &models.ProviderDefinition{}

		err := readJSON(pr.definitionsDir, id, def, persistence.ErrProviderDefinitionNotFound)
		if err != nil {
			return nil, fmt.Errorf("failed to load provider definition %s: %w", id, err)
		}

		defs = append(defs, def)
	}

	return defs, nil
}

func (pr *ProviderRepository) SaveDefinition(_ context.Context, def *models.ProviderDefinition) error {
	pr.mu.Lock()
	defer pr.mu.Unlock()

	return writeJSON(pr.definitionsDir, def.ID, def)
}

func (pr *ProviderRepository) DefinitionByID(_ context.Context, id string) (*models.ProviderDefinition, error) {
	pr.mu.RLock()
	defer pr.mu.RUnlock()

	def := &models.ProviderDefinition{}

	err := readJSON(pr.definitionsDir, id, def, persistence.ErrProviderDefinitionNotFound)
	if err != nil {
		return nil, err
	}

	return def, nil
}

func (pr *ProviderRepository) DeleteDefinition(_ context.Context, id string) error {
	pr.mu.Lock()
	defer pr.mu.Unlock()

	return removeJSON(pr.definitionsDir, id, persistence.ErrProviderDefinitionNotFound)
}

func (pr *ProviderRepository) ListInstances(_ context.Context) ([]*models.ProviderInstance, error) {
	pr.mu.RLock()
	defer pr.mu.RUnlock()

	ids, err := listIDs(pr.instancesDir)
	if err != nil {
		return nil, err
	}

	instances := make([]*models.ProviderInstance, 0, len(ids))

	for _, id := range ids {
		instance := &models.ProviderInstance{}

		err := readJSON(pr.instancesDir, id, instance, persistence.ErrProviderInstanceNotFound)
		if err != nil {
			return nil, fmt.Errorf("failed to load provider instance %s: %w", id, err)
		}

		instances = append(instances, instance)
	}

	return instances, nil
}

func (pr *ProviderRepository) SaveInstance(_ context.Context, instance *models.ProviderInstance) error {
	pr.mu.Lock()
	defer pr.mu.Unlock()

	// Instance names are unique within their definition; selection relies on
	// the name as a deterministic tie-break.
	ids, err := listIDs(pr.instancesDir)
	if err != nil {
		return err
	}

	for _, id := range ids {
		if id == instance.ID {
			continue
		}

		existing := &models.ProviderInstance{}

		err := readJSON(pr.instancesDir, id, existing, persistence.ErrProviderInstanceNotFound)
		if err != nil {
			return fmt.Errorf("failed to load provider instance %s: %w", id, err)
		}

		if existing.DefinitionID == instance.DefinitionID && existing.Name == instance.Name {
			return fmt.Errorf("instance %q under definition %s: %w",
				instance.Name, instance.DefinitionID, persistence.ErrDuplicateInstanceName)
		}
	}

	return writeJSON(pr.instancesDir, instance.ID, instance)
}

func (pr *ProviderRepository) InstanceByID(_ context.Context, id string) (*models.ProviderInstance, error) {
	pr.mu.RLock()
	defer pr.mu.RUnlock()

	instance := &models.ProviderInstance{}

	err := readJSON(pr.instancesDir, id, instance, persistence.ErrProviderInstanceNotFound)
	if err != nil {
		return nil, err
	}

	return instance, nil
}

func (pr *ProviderRepository) DeleteInstance(_ context.Context, id string) error {
	pr.mu.Lock()
	defer pr.mu.Unlock()

	return removeJSON(pr.instancesDir, id, persistence.ErrProviderInstanceNotFound)
}
