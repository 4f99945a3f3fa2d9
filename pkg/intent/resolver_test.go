package intent_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netpilot/netpilot/pkg/catalog"
	"github.com/netpilot/netpilot/pkg/intent"
)

func testCatalog() *catalog.Memory {
	cat := catalog.NewMemory()
	cat.AddDevice(&catalog.Device{
		ID:         "dev-1",
		Name:       "sw-01",
		Platform:   "eos",
		LocationID: "dc-1",
		ConfigContext: map[string]any{
			"ntp": map[string]any{"primary": "10.0.0.1"},
			"dns": "10.0.0.53",
			"interfaces": map[string]any{
				"Ethernet1": map[string]any{"mode": "tagged", "description": "uplink"},
			},
		},
		LocalContext: map[string]any{
			"dns": "10.9.9.53",
		},
	})
	cat.AddInterface(&catalog.Interface{
		ID:           "iface-1",
		DeviceID:     "dev-1",
		Name:         "Ethernet1",
		Enabled:      true,
		Mode:         "access",
		UntaggedVLAN: 10,
		TaggedVLANs:  []int{20, 30},
	})

	return cat
}

func TestResolver_DeviceLayers(t *testing.T) {
	t.Parallel()

	resolver := intent.NewResolver(testCatalog())
	device, err := testCatalog().Device(context.Background(), "dev-1")
	require.NoError(t, err)

	got, err := resolver.Resolve(context.Background(), device, map[string]any{"dns": "8.8.8.8"})
	require.NoError(t, err)

	// Layer 1: core attributes.
	assert.Equal(t, "sw-01", got["hostname"])
	assert.Equal(t, "eos", got["platform"])

	// Layer 2 survives where nothing overwrites it.
	assert.Equal(t, map[string]any{"primary": "10.0.0.1"}, got["ntp"])

	// Layer 4 wins over layers 2 and 3.
	assert.Equal(t, "8.8.8.8", got["dns"])
}

func TestResolver_LocalContextOverridesConfigContext(t *testing.T) {
	t.Parallel()

	cat := testCatalog()
	resolver := intent.NewResolver(cat)
	device, err := cat.Device(context.Background(), "dev-1")
	require.NoError(t, err)

	got, err := resolver.Resolve(context.Background(), device, nil)
	require.NoError(t, err)

	assert.Equal(t, "10.9.9.53", got["dns"])
}

func TestResolver_Purity(t *testing.T) {
	t.Parallel()

	cat := testCatalog()
	resolver := intent.NewResolver(cat)
	device, err := cat.Device(context.Background(), "dev-1")
	require.NoError(t, err)

	inputs := map[string]any{"dns": "8.8.8.8"}

	first, err := resolver.Resolve(context.Background(), device, inputs)
	require.NoError(t, err)

	second, err := resolver.Resolve(context.Background(), device, inputs)
	require.NoError(t, err)

	assert.Equal(t, first, second)

	// Resolution never mutates the target snapshot or the inputs.
	assert.Equal(t, map[string]any{"dns": "8.8.8.8"}, inputs)
	assert.Equal(t, "10.9.9.53", device.LocalContext["dns"])
}

func TestResolver_InterfaceSubMapping(t *testing.T) {
	t.Parallel()

	cat := testCatalog()
	resolver := intent.NewResolver(cat)
	iface, err := cat.Interface(context.Background(), "iface-1")
	require.NoError(t, err)

	got, err := resolver.Resolve(context.Background(), iface, map[string]any{"untagged_vlan": 99})
	require.NoError(t, err)

	// Own attributes.
	assert.Equal(t, "Ethernet1", got["name"])
	assert.Equal(t, true, got["enabled"])

	// The device's interfaces sub-mapping keyed by this interface's name
	// overlays the interface attributes.
	assert.Equal(t, "tagged", got["mode"])
	assert.Equal(t, "uplink", got["description"])

	// Request inputs still win last.
	assert.Equal(t, 99, got["untagged_vlan"])
}

func TestResolver_TaggedVLANsOnlyInTaggedMode(t *testing.T) {
	t.Parallel()

	cat := catalog.NewMemory()
	cat.AddDevice(&catalog.Device{ID: "dev-1", Name: "sw-01"})
	cat.AddInterface(&catalog.Interface{
		ID: "access", DeviceID: "dev-1", Name: "Ethernet2",
		Mode: "access", TaggedVLANs: []int{20},
	})
	cat.AddInterface(&catalog.Interface{
		ID: "trunk", DeviceID: "dev-1", Name: "Ethernet3",
		Mode: "tagged", TaggedVLANs: []int{20, 30},
	})

	resolver := intent.NewResolver(cat)

	access, err := cat.Interface(context.Background(), "access")
	require.NoError(t, err)

	got, err := resolver.Resolve(context.Background(), access, nil)
	require.NoError(t, err)
	assert.Equal(t, []int{}, got["tagged_vlans"])

	trunk, err := cat.Interface(context.Background(), "trunk")
	require.NoError(t, err)

	got, err = resolver.Resolve(context.Background(), trunk, nil)
	require.NoError(t, err)
	assert.Equal(t, []int{20, 30}, got["tagged_vlans"])
}

func TestResolver_RecordReflection(t *testing.T) {
	t.Parallel()

	cat := catalog.NewMemory()
	cat.AddRecord(&catalog.Record{
		ID:   "vlan-100",
		Kind: "vlan",
		Attributes: map[string]any{
			"vid":    100,
			"name":   "users",
			"nested": map[string]any{"skipped": true},
		},
	})

	resolver := intent.NewResolver(cat)

	record, err := cat.Resolve(context.Background(), "vlan", "vlan-100")
	require.NoError(t, err)

	got, err := resolver.Resolve(context.Background(), record, map[string]any{"name": "servers"})
	require.NoError(t, err)

	assert.Equal(t, "vlan-100", got["id"])
	assert.Equal(t, 100, got["vid"])
	assert.Equal(t, "servers", got["name"])
	assert.NotContains(t, got, "nested")
}
