package engine

import (
	"errors"
	"fmt"

	"github.com/netpilot/netpilot/pkg/provider"
	"github.com/netpilot/netpilot/pkg/selector"
)

var (
	// ErrInputMissing indicates a required mapped input is absent from the
	// execution context.
	ErrInputMissing = errors.New("required input missing from context")

	// ErrTargetUnresolved indicates no eligible target object could be read
	// from the catalog.
	ErrTargetUnresolved = errors.New("target unresolved")

	// ErrExecutionNotRunnable indicates an advance was attempted on an
	// execution whose status does not permit it. Advancing a terminal
	// execution is reported as this conflict, never silently re-executed.
	ErrExecutionNotRunnable = errors.New("execution is not runnable")

	// ErrAdvanceInProgress indicates another advance currently holds the
	// execution's lock.
	ErrAdvanceInProgress = errors.New("another advance is in progress for this execution")
)

// DriverError wraps a provider-side failure with the provider's diagnostic
// text preserved.
type DriverError struct {
	Provider string
	Logs     string
	Err      error
}

func (e *DriverError) Error() string {
	return fmt.Sprintf("provider %s failed: %v", e.Provider, e.Err)
}

func (e *DriverError) Unwrap() error {
	return e.Err
}

// ErrorKind classifies a step error into the taxonomy recorded on the
// ExecutionStep. Unknown errors fall into configuration_error: they are
// surfaced immediately and never retried.
func ErrorKind(err error) string {
	var driverErr *DriverError

	switch {
	case errors.Is(err, ErrInputMissing):
		return "input_missing"
	case errors.Is(err, ErrTargetUnresolved):
		return "target_unresolved"
	case errors.Is(err, selector.ErrNoImplementationMatched):
		return "no_implementation_matched"
	case errors.Is(err, provider.ErrNoProviderMatched):
		return "no_provider_matched"
	case errors.Is(err, provider.ErrCapabilityNotSupported):
		return "capability_not_supported"
	case errors.As(err, &driverErr):
		return "driver_error"
	default:
		return "configuration_error"
	}
}
