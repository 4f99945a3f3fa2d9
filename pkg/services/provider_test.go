package services_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netpilot/netpilot/pkg/models"
	"github.com/netpilot/netpilot/pkg/persistence"
	"github.com/netpilot/netpilot/pkg/persistence/file"
	"github.com/netpilot/netpilot/pkg/provider"
	"github.com/netpilot/netpilot/pkg/provider/static"
	"github.com/netpilot/netpilot/pkg/services"
)

func newProviderService(t *testing.T) *services.Provider {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	registry := provider.NewRegistry(logger)
	registry.Register(static.NewFactory())

	return services.NewProvider(file.NewPersistence(t.TempDir()), registry)
}

func TestProviderService(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	service := newProviderService(t)

	definition, err := service.SaveDefinition(ctx, &models.ProviderDefinition{
		Name:      "Static",
		DriverKey: static.DriverKey,
		Capabilities: []models.Capability{
			models.CapabilityRender, models.CapabilityDiff, models.CapabilityApply,
		},
		Enabled: true,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, definition.ID)

	// Definitions can only reference drivers this process can load.
	_, err = service.SaveDefinition(ctx, &models.ProviderDefinition{
		Name:      "Ghost",
		DriverKey: "unregistered",
	})
	require.ErrorIs(t, err, services.ErrUnknownDriverKey)
	assert.True(t, services.IsValidationError(err))

	instance, err := service.SaveInstance(ctx, &models.ProviderInstance{
		DefinitionID: definition.ID,
		Name:         "static-main",
		Enabled:      true,
	})
	require.NoError(t, err)

	// Instances must be scoped under an existing definition.
	_, err = service.SaveInstance(ctx, &models.ProviderInstance{
		DefinitionID: "missing",
		Name:         "orphan",
	})
	require.ErrorIs(t, err, persistence.ErrProviderDefinitionNotFound)

	// A second instance with the same name under the same definition is
	// rejected; selection tie-breaks on the name.
	_, err = service.SaveInstance(ctx, &models.ProviderInstance{
		DefinitionID: definition.ID,
		Name:         "static-main",
		Enabled:      true,
	})
	require.ErrorIs(t, err, persistence.ErrDuplicateInstanceName)
	assert.True(t, services.IsValidationError(err))

	instances, err := service.ListInstances(ctx)
	require.NoError(t, err)
	assert.Len(t, instances, 1)

	require.NoError(t, service.DeleteInstance(ctx, instance.ID))
	require.NoError(t, service.DeleteDefinition(ctx, definition.ID))
}
