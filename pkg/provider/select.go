package provider

import (
	"fmt"

	"github.com/netpilot/netpilot/pkg/catalog"
	"github.com/netpilot/netpilot/pkg/models"
)

// Disqualified is the score of an instance whose declared scope excludes the
// target. A disqualified candidate never wins, whatever else matches.
const Disqualified = -1

// Candidate pairs a provider instance with its definition for selection.
type Candidate struct {
	Definition *models.ProviderDefinition
	Instance   *models.ProviderInstance
}

// Score rates how well a candidate's scope fits a device. Empty scopes match
// everything and contribute nothing. A declared location scope the device is
// not in disqualifies (+30 on match); a declared tenant scope likewise
// (+20); a declared tag scope likewise (+10). A platform listed by the
// definition adds 5 and never disqualifies: it only breaks ties between
// otherwise-equal candidates.
func Score(candidate Candidate, device *catalog.Device) int {
	score := 0

	if device == nil {
		return score
	}

	if len(candidate.Instance.ScopeLocations) > 0 {
		if !contains(candidate.Instance.ScopeLocations, device.LocationID) {
			return Disqualified
		}

		score += 30
	}

	if len(candidate.Instance.ScopeTenants) > 0 {
		if !contains(candidate.Instance.ScopeTenants, device.TenantID) {
			return Disqualified
		}

		score += 20
	}

	if len(candidate.Instance.ScopeTags) > 0 {
		if !anyTag(candidate.Instance.ScopeTags, device) {
			return Disqualified
		}

		score += 10
	}

	if device.Platform != "" && len(candidate.Definition.SupportedPlatforms) > 0 {
		if candidate.Definition.SupportsPlatform(device.Platform) {
			score += 5
		}
	}

	return score
}

// Select returns the enabled candidate with the strictly highest score for
// the device. Ties are broken by instance name ascending, then definition
// name, so selection is deterministic for a fixed candidate set.
func Select(candidates []Candidate, device *catalog.Device) (*Candidate, error) {
	var (
		best      *Candidate
		bestScore = Disqualified
	)

	for i := range candidates {
		candidate := candidates[i]
		if !candidate.Instance.Enabled || !candidate.Definition.Enabled {
			continue
		}

		score := Score(candidate, device)
		if score < 0 {
			continue
		}

		if best == nil || score > bestScore || (score == bestScore && beats(candidate, *best)) {
			best = &candidate
			bestScore = score
		}
	}

	if best == nil {
		return nil, fmt.Errorf("device %s: %w", deviceName(device), ErrNoProviderMatched)
	}

	return best, nil
}

func beats(candidate, incumbent Candidate) bool {
	if candidate.Instance.Name != incumbent.Instance.Name {
		return candidate.Instance.Name < incumbent.Instance.Name
	}

	return candidate.Definition.Name < incumbent.Definition.Name
}

func contains(values []string, value string) bool {
	if value == "" {
		return false
	}

	for _, v := range values {
		if v == value {
			return true
		}
	}

	return false
}

func anyTag(tags []string, device *catalog.Device) bool {
	for _, tag := range tags {
		if device.HasTag(tag) {
			return true
		}
	}

	return false
}

func deviceName(device *catalog.Device) string {
	if device == nil {
		return "<none>"
	}

	return device.Name
}
