package models

// Capability names an operation a provider driver can perform.
type Capability string

const (
	CapabilityRender Capability = "render"
	CapabilityDiff   Capability = "diff"
	CapabilityApply  Capability = "apply"
)

// ProviderDefinition describes a driver family (CLI session, vendor
// controller API). DriverKey selects the driver factory registered at
// process start; an unknown key is a configuration error.
type ProviderDefinition struct {
	ID                 string       `json:"id"`
	Name               string       `json:"name"       validate:"required"`
	DriverKey          string       `json:"driver_key" validate:"required"`
	Description        string       `json:"description,omitempty"`
	Capabilities       []Capability `json:"capabilities"`
	SupportedPlatforms []string     `json:"supported_platforms,omitempty"`
	Enabled            bool         `json:"enabled"`
}

// HasCapability reports whether the definition declares the capability.
func (d *ProviderDefinition) HasCapability(c Capability) bool {
	for _, have := range d.Capabilities {
		if have == c {
			return true
		}
	}

	return false
}

// SupportsPlatform reports whether the definition lists the platform. An
// empty platform list is treated as "no preference", never as a mismatch.
func (d *ProviderDefinition) SupportsPlatform(platform string) bool {
	for _, p := range d.SupportedPlatforms {
		if p == platform {
			return true
		}
	}

	return false
}

// ProviderInstance is a configured instance of a ProviderDefinition, scoped
// by locations, tenants and tags. Instance names are unique within their
// definition.
type ProviderInstance struct {
	ID            string         `json:"id"`
	DefinitionID  string         `json:"definition_id" validate:"required"`
	Name          string         `json:"name"          validate:"required"`
	Settings      map[string]any `json:"settings,omitempty"`
	CredentialRef string         `json:"credential_ref,omitempty"`

	ScopeLocations []string `json:"scope_locations,omitempty"`
	ScopeTenants   []string `json:"scope_tenants,omitempty"`
	ScopeTags      []string `json:"scope_tags,omitempty"`

	Enabled bool `json:"enabled"`
}
