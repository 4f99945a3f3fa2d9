// Package catalog defines the read-only view of the infrastructure catalog
// (devices, interfaces, platforms, locations, tenants) that selection and
// intent resolution consume. The catalog is an external collaborator: the
// engine only reads identity, platform/manufacturer/software attributes,
// location/tenant membership and interface switching attributes.
package catalog

import (
	"context"
	"errors"
	"fmt"
)

// ErrTargetNotFound indicates a target reference resolves to nothing.
var ErrTargetNotFound = errors.New("target not found in catalog")

// Target kinds understood by the resolver. Unrecognized kinds fall back to
// generic attribute reflection.
const (
	KindDevice    = "device"
	KindInterface = "interface"
)

// Target is any catalog object an execution can run against.
type Target interface {
	TargetID() string
	TargetKind() string
}

// Platform is a network operating system family.
type Platform struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Slug         string `json:"slug"`
	Manufacturer string `json:"manufacturer"`
}

// Device is a managed network device snapshot.
type Device struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Manufacturer    string   `json:"manufacturer"`
	Platform        string   `json:"platform,omitempty"`
	SoftwareVersion string   `json:"software_version,omitempty"`
	LocationID      string   `json:"location_id,omitempty"`
	TenantID        string   `json:"tenant_id,omitempty"`
	Tags            []string `json:"tags,omitempty"`
	PrimaryIP       string   `json:"primary_ip,omitempty"`

	// ConfigContext is the global/scoped configuration mapping resolved by
	// the host catalog. LocalContext is the device-local override mapping.
	ConfigContext map[string]any `json:"config_context,omitempty"`
	LocalContext  map[string]any `json:"local_context,omitempty"`
}

func (d *Device) TargetID() string   { return d.ID }
func (d *Device) TargetKind() string { return KindDevice }

// HasTag reports whether the device carries the tag.
func (d *Device) HasTag(tag string) bool {
	for _, t := range d.Tags {
		if t == tag {
			return true
		}
	}

	return false
}

// Interface is a switching interface snapshot on a device.
type Interface struct {
	ID           string `json:"id"`
	DeviceID     string `json:"device_id"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	Enabled      bool   `json:"enabled"`
	Mode         string `json:"mode,omitempty"`
	UntaggedVLAN int    `json:"untagged_vlan,omitempty"`
	TaggedVLANs  []int  `json:"tagged_vlans,omitempty"`
}

func (i *Interface) TargetID() string   { return i.ID }
func (i *Interface) TargetKind() string { return KindInterface }

// Record is a generic catalog object of an unrecognized kind. Intent
// resolution reflects its scalar attributes.
type Record struct {
	ID         string         `json:"id"`
	Kind       string         `json:"kind"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

func (r *Record) TargetID() string   { return r.ID }
func (r *Record) TargetKind() string { return r.Kind }

// Catalog reads catalog objects by reference. Implementations must return
// consistent snapshots: two reads without an intervening catalog change
// return equal objects.
type Catalog interface {
	Device(ctx context.Context, id string) (*Device, error)
	Interface(ctx context.Context, id string) (*Interface, error)
	Resolve(ctx context.Context, kind, id string) (Target, error)
}

// DeviceFor returns the device owning a target: the device itself, or the
// parent device of an interface. Generic records have no owning device.
func DeviceFor(ctx context.Context, c Catalog, target Target) (*Device, error) {
	switch t := target.(type) {
	case *Device:
		return t, nil
	case *Interface:
		device, err := c.Device(ctx, t.DeviceID)
		if err != nil {
			return nil, fmt.Errorf("owning device %s for interface %s: %w", t.DeviceID, t.ID, err)
		}

		return device, nil
	default:
		return nil, fmt.Errorf("target kind %q has no owning device: %w", target.TargetKind(), ErrTargetNotFound)
	}
}
