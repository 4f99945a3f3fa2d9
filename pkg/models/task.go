package models

import "time"

// ImplementationType is the variant of a task implementation payload.
type ImplementationType string

const (
	ImplementationTemplateConfig  ImplementationType = "template_config"
	ImplementationTemplatePayload ImplementationType = "template_payload"
	ImplementationAPICall         ImplementationType = "api_call"
	ImplementationQuery           ImplementationType = "query"
	ImplementationHook            ImplementationType = "hook"
)

// TaskDefinition is a catalog entry describing an automation capability
// ("configure NTP servers") without saying how to do it on any platform.
// Deletion is blocked while implementations reference it.
type TaskDefinition struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"     validate:"required"`
	Slug         string         `json:"slug"     validate:"required,lowercase"`
	Description  string         `json:"description,omitempty"`
	Category     string         `json:"category,omitempty"`
	InputSchema  map[string]any `json:"input_schema,omitempty"`
	OutputSchema map[string]any `json:"output_schema,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// TaskImplementation is a concrete, scoped strategy for fulfilling a
// TaskDefinition on a given manufacturer/platform/software version. Many
// implementations may exist per task; at most one is selected per
// (task, target) pair at run time.
type TaskImplementation struct {
	ID     string `json:"id"`
	TaskID string `json:"task_id" validate:"required"`
	Name   string `json:"name"    validate:"required"`

	// Manufacturer is required and matched exactly. Platform is optional;
	// unset matches every platform. An empty software version set matches
	// every version.
	Manufacturer     string   `json:"manufacturer" validate:"required"`
	Platform         string   `json:"platform,omitempty"`
	SoftwareVersions []string `json:"software_versions,omitempty"`

	Type     ImplementationType `json:"implementation_type" validate:"required"`
	Template string             `json:"template,omitempty"`
	Action   map[string]any     `json:"action,omitempty"`

	// ProviderInstanceID optionally pins a provider instance; when empty the
	// engine selects one by scope scoring.
	ProviderInstanceID string `json:"provider_instance_id,omitempty"`

	Priority int  `json:"priority"`
	Enabled  bool `json:"enabled"`
}

// MatchesVersion reports whether the implementation applies to the given
// software version. An empty version set matches all versions.
func (i *TaskImplementation) MatchesVersion(version string) bool {
	if len(i.SoftwareVersions) == 0 {
		return true
	}

	if version == "" {
		return false
	}

	for _, v := range i.SoftwareVersions {
		if v == version {
			return true
		}
	}

	return false
}
