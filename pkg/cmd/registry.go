// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"log/slog"

	"github.com/netpilot/netpilot/pkg/provider"
	"github.com/netpilot/netpilot/pkg/provider/clissh"
	"github.com/netpilot/netpilot/pkg/provider/httpctl"
	"github.com/netpilot/netpilot/pkg/provider/static"
)

// NewProviderRegistry builds the driver registry with the native drivers
// registered.
func NewProviderRegistry(logger *slog.Logger) *provider.Registry {
	registry := provider.NewRegistry(logger)

	registry.Register(clissh.NewFactory())
	registry.Register(httpctl.NewFactory())
	registry.Register(static.NewFactory())

	return registry
}
