// Package selector picks the concrete task implementation for a task and a
// target's manufacturer/platform/software version.
package selector

import (
	"errors"
	"fmt"

	"github.com/netpilot/netpilot/pkg/models"
)

// ErrNoImplementationMatched indicates no enabled implementation passed every
// required filter. Selection never falls back silently.
var ErrNoImplementationMatched = errors.New("no task implementation matched")

// TargetProfile is the slice of a target the selector matches against.
type TargetProfile struct {
	Manufacturer    string
	Platform        string
	SoftwareVersion string
}

// SelectImplementation filters the candidate implementations and returns the
// best match. Manufacturer must match exactly; platform matches when the
// implementation leaves it unset or it equals the target's; an empty software
// version set matches every version. Among candidates the highest priority
// wins, ties broken by name ascending so selection is deterministic.
func SelectImplementation(candidates []*models.TaskImplementation, taskID string, profile TargetProfile) (*models.TaskImplementation, error) {
	if profile.Manufacturer == "" {
		return nil, fmt.Errorf("task %s: target manufacturer is unknown: %w", taskID, ErrNoImplementationMatched)
	}

	var best *models.TaskImplementation

	for _, impl := range candidates {
		if !impl.Enabled || impl.TaskID != taskID {
			continue
		}

		if impl.Manufacturer != profile.Manufacturer {
			continue
		}

		if impl.Platform != "" && impl.Platform != profile.Platform {
			continue
		}

		if !impl.MatchesVersion(profile.SoftwareVersion) {
			continue
		}

		if best == nil || better(impl, best) {
			best = impl
		}
	}

	if best == nil {
		return nil, fmt.Errorf("task %s on %s/%s/%s: %w",
			taskID, profile.Manufacturer, profile.Platform, profile.SoftwareVersion, ErrNoImplementationMatched)
	}

	return best, nil
}

func better(candidate, incumbent *models.TaskImplementation) bool {
	if candidate.Priority != incumbent.Priority {
		return candidate.Priority > incumbent.Priority
	}

	return candidate.Name < incumbent.Name
}
