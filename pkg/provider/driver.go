// Package provider defines the capability interface behind which every
// provider driver sits, the string-keyed driver registry, and the scope
// scoring that selects a configured provider instance for a target.
package provider

import (
	"context"
	"errors"

	"github.com/netpilot/netpilot/pkg/catalog"
)

var (
	// ErrCapabilityNotSupported is returned when a driver is asked for an
	// operation it does not implement. It is ordinary control flow for
	// callers, not an exceptional path requiring cleanup.
	ErrCapabilityNotSupported = errors.New("capability not supported")

	// ErrDriverNotRegistered indicates a provider definition names a driver
	// key no factory registered for. This is a configuration error and is
	// never retried.
	ErrDriverNotRegistered = errors.New("provider driver not registered")

	// ErrNoProviderMatched indicates no enabled provider instance scored
	// positively for the target.
	ErrNoProviderMatched = errors.New("no provider instance matched")
)

// Request carries one operation invocation to a driver. Settings and
// CredentialRef come from the selected provider instance.
type Request struct {
	Target          catalog.Target
	RenderedContent string
	Context         map[string]any
	Settings        map[string]any
	CredentialRef   string
}

// Result is the normalized outcome of a driver operation. Drivers must not
// fail uncontrolled for expected conditions; they report them here or as
// typed errors.
type Result struct {
	OK      bool           `json:"ok"`
	Details map[string]any `json:"details,omitempty"`
	Logs    string         `json:"logs,omitempty"`
	Diff    string         `json:"diff,omitempty"`
}

// Driver is the uniform capability interface over concrete provider
// backends. A driver instance is scoped to a single step invocation; Close
// must release any session on every exit path.
type Driver interface {
	ValidateTarget(ctx context.Context, target catalog.Target) error
	Diff(ctx context.Context, req Request) (Result, error)
	Apply(ctx context.Context, req Request) (Result, error)
	Close() error
}
