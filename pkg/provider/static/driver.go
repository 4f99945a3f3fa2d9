// Package static provides a side-effect-free provider driver: diff echoes
// the rendered content as the candidate diff and apply always succeeds. It
// backs render-audit deployments and tests.
package static

import (
	"context"
	"errors"
	"log/slog"

	"github.com/netpilot/netpilot/pkg/catalog"
	"github.com/netpilot/netpilot/pkg/models"
	"github.com/netpilot/netpilot/pkg/provider"
)

// DriverKey is the registry key provider definitions reference.
const DriverKey = "static"

// Driver implements every capability without touching a device.
type Driver struct {
	logger *slog.Logger

	// FailApply forces apply to report a provider-side failure; settings key
	// "fail_apply" controls it, which tests and drills use.
	FailApply bool
}

// Factory creates static drivers.
type Factory struct{}

// NewFactory returns the static driver factory.
func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) ID() string {
	return DriverKey
}

func (f *Factory) Create(instance *models.ProviderInstance, logger *slog.Logger) (provider.Driver, error) {
	failApply, _ := instance.Settings["fail_apply"].(bool)

	return &Driver{logger: logger, FailApply: failApply}, nil
}

func (d *Driver) ValidateTarget(_ context.Context, target catalog.Target) error {
	if target == nil {
		return errors.New("target is required")
	}

	return nil
}

func (d *Driver) Diff(_ context.Context, req provider.Request) (provider.Result, error) {
	return provider.Result{
		OK:      true,
		Details: map[string]any{"diff": req.RenderedContent},
		Logs:    "Static diff complete.",
		Diff:    req.RenderedContent,
	}, nil
}

func (d *Driver) Apply(_ context.Context, req provider.Request) (provider.Result, error) {
	if d.FailApply {
		return provider.Result{
			OK:      false,
			Details: map[string]any{"error": "static driver configured to fail apply"},
			Logs:    "Static apply failed.",
		}, nil
	}

	return provider.Result{
		OK:      true,
		Details: map[string]any{"applied": true},
		Logs:    "Static apply complete.",
	}, nil
}

func (d *Driver) Close() error {
	return nil
}
