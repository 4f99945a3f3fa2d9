package provider

import (
	"fmt"
	"log/slog"

	"github.com/netpilot/netpilot/pkg/models"
)

// Factory constructs a driver for one provider instance. Factories register
// under a stable string key at process start; the key is what provider
// definitions reference for configuration compatibility.
type Factory interface {
	ID() string
	Create(instance *models.ProviderInstance, logger *slog.Logger) (Driver, error)
}

// Registry holds the driver factories available in this process.
type Registry struct {
	logger    *slog.Logger
	factories map[string]Factory
}

// NewRegistry creates an empty driver registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:    logger,
		factories: make(map[string]Factory),
	}
}

// Register adds a driver factory under its ID.
func (r *Registry) Register(factory Factory) {
	r.factories[factory.ID()] = factory
}

// Create instantiates the driver for a definition's key and a configured
// instance. An unknown key is a configuration error, never a retry condition.
func (r *Registry) Create(driverKey string, instance *models.ProviderInstance) (Driver, error) {
	factory, ok := r.factories[driverKey]
	if !ok {
		return nil, fmt.Errorf("driver key %q: %w", driverKey, ErrDriverNotRegistered)
	}

	return factory.Create(instance, r.logger.With("driver", driverKey, "instance", instance.Name))
}

// Registered reports whether a driver key has a factory.
func (r *Registry) Registered(driverKey string) bool {
	_, ok := r.factories[driverKey]

	return ok
}
