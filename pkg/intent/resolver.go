// Package intent resolves the effective configuration intent for a target
// object by merging four layers of configuration data: core catalog
// attributes, scoped config context, target-local context, and the caller's
// request inputs. Later layers overwrite keys of earlier layers; the merge is
// a shallow key overwrite, not a deep merge.
package intent

import (
	"context"
	"fmt"

	"github.com/netpilot/netpilot/pkg/catalog"
)

// Resolver produces the effective intent mapping for a target. Resolution is
// a pure function of (target snapshot, context snapshot, inputs): the same
// arguments against the same catalog state always yield the same mapping.
type Resolver struct {
	catalog catalog.Catalog
}

// NewResolver creates a resolver backed by the given catalog.
func NewResolver(cat catalog.Catalog) *Resolver {
	return &Resolver{catalog: cat}
}

// Resolve returns the merged intent mapping for the target.
func (r *Resolver) Resolve(ctx context.Context, target catalog.Target, inputs map[string]any) (map[string]any, error) {
	switch t := target.(type) {
	case *catalog.Device:
		return r.deviceIntent(t, inputs), nil
	case *catalog.Interface:
		return r.interfaceIntent(ctx, t, inputs)
	case *catalog.Record:
		return recordIntent(t, inputs), nil
	default:
		return nil, fmt.Errorf("cannot resolve intent for target kind %q", target.TargetKind())
	}
}

func (r *Resolver) deviceIntent(device *catalog.Device, inputs map[string]any) map[string]any {
	intent := map[string]any{
		"hostname": device.Name,
		"platform": device.Platform,
		"location": device.LocationID,
	}

	merge(intent, device.ConfigContext)
	merge(intent, device.LocalContext)
	merge(intent, inputs)

	return intent
}

// interfaceIntent starts from the interface's own switching attributes, then
// looks up the owning device's resolved intent and applies the sub-mapping
// keyed by the interface name (if present) before the request inputs win.
func (r *Resolver) interfaceIntent(ctx context.Context, iface *catalog.Interface, inputs map[string]any) (map[string]any, error) {
	intent := map[string]any{
		"name":          iface.Name,
		"description":   iface.Description,
		"enabled":       iface.Enabled,
		"mode":          iface.Mode,
		"untagged_vlan": iface.UntaggedVLAN,
	}

	taggedVLANs := []int{}
	if iface.Mode == "tagged" {
		taggedVLANs = append(taggedVLANs, iface.TaggedVLANs...)
	}

	intent["tagged_vlans"] = taggedVLANs

	device, err := r.catalog.Device(ctx, iface.DeviceID)
	if err != nil {
		return nil, fmt.Errorf("resolve interface %s intent: %w", iface.ID, err)
	}

	deviceIntent := r.deviceIntent(device, nil)
	if interfaces, ok := deviceIntent["interfaces"].(map[string]any); ok {
		if overlay, ok := interfaces[iface.Name].(map[string]any); ok {
			merge(intent, overlay)
		}
	}

	merge(intent, inputs)

	return intent, nil
}

// recordIntent reflects every scalar attribute of an unrecognized target,
// then applies the request inputs.
func recordIntent(record *catalog.Record, inputs map[string]any) map[string]any {
	intent := map[string]any{"id": record.ID}

	for key, value := range record.Attributes {
		switch value.(type) {
		case string, bool, int, int64, float64, nil:
			intent[key] = value
		}
	}

	merge(intent, inputs)

	return intent
}

func merge(dst map[string]any, src map[string]any) {
	for k, v := range src {
		dst[k] = v
	}
}
