package services

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/netpilot/netpilot/pkg/models"
	"github.com/netpilot/netpilot/pkg/persistence"
	"github.com/netpilot/netpilot/pkg/provider"
)

// Provider manages provider definitions and configured instances.
type Provider struct {
	persistence persistence.Persistence
	registry    *provider.Registry
	validate    *validator.Validate
}

// NewProvider creates a new provider service. The registry is consulted so
// definitions can only name driver keys this process can actually load.
func NewProvider(p persistence.Persistence, registry *provider.Registry) *Provider {
	return &Provider{
		persistence: p,
		registry:    registry,
		validate:    validator.New(),
	}
}

func (p *Provider) ListDefinitions(ctx context.Context) ([]*models.ProviderDefinition, error) {
	return p.persistence.Providers().ListDefinitions(ctx)
}

func (p *Provider) GetDefinition(ctx context.Context, id string) (*models.ProviderDefinition, error) {
	return p.persistence.Providers().DefinitionByID(ctx, id)
}

func (p *Provider) SaveDefinition(ctx context.Context, def *models.ProviderDefinition) (*models.ProviderDefinition, error) {
	if def.ID == "" {
		def.ID = uuid.NewString()
	}

	err := p.validate.Struct(def)
	if err != nil {
		return nil, &ServiceError{Op: "SaveProviderDefinition", Message: err.Error(), Err: ErrInvalidRequest}
	}

	if p.registry != nil && !p.registry.Registered(def.DriverKey) {
		return nil, &ServiceError{Op: "SaveProviderDefinition", Message: def.DriverKey, Err: ErrUnknownDriverKey}
	}

	err = p.persistence.Providers().SaveDefinition(ctx, def)
	if err != nil {
		return nil, err
	}

	return def, nil
}

func (p *Provider) DeleteDefinition(ctx context.Context, id string) error {
	return p.persistence.Providers().DeleteDefinition(ctx, id)
}

func (p *Provider) ListInstances(ctx context.Context) ([]*models.ProviderInstance, error) {
	return p.persistence.Providers().ListInstances(ctx)
}

func (p *Provider) GetInstance(ctx context.Context, id string) (*models.ProviderInstance, error) {
	return p.persistence.Providers().InstanceByID(ctx, id)
}

func (p *Provider) SaveInstance(ctx context.Context, instance *models.ProviderInstance) (*models.ProviderInstance, error) {
	if instance.ID == "" {
		instance.ID = uuid.NewString()
	}

	err := p.validate.Struct(instance)
	if err != nil {
		return nil, &ServiceError{Op: "SaveProviderInstance", Message: err.Error(), Err: ErrInvalidRequest}
	}

	// The definition must exist before instances can be scoped under it.
	_, err = p.persistence.Providers().DefinitionByID(ctx, instance.DefinitionID)
	if err != nil {
		return nil, err
	}

	err = p.persistence.Providers().SaveInstance(ctx, instance)
	if err != nil {
		return nil, err
	}

	return instance, nil
}

func (p *Provider) DeleteInstance(ctx context.Context, id string) error {
	return p.persistence.Providers().DeleteInstance(ctx, id)
}
