package provider_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netpilot/netpilot/pkg/catalog"
	"github.com/netpilot/netpilot/pkg/models"
	"github.com/netpilot/netpilot/pkg/provider"
)

func device() *catalog.Device {
	return &catalog.Device{
		ID:         "dev-1",
		Name:       "sw-01",
		Platform:   "eos",
		LocationID: "dc-1",
		TenantID:   "acme",
		Tags:       []string{"edge"},
	}
}

func candidate(name string, mutate func(*models.ProviderInstance, *models.ProviderDefinition)) provider.Candidate {
	definition := &models.ProviderDefinition{
		ID:        "def-" + name,
		Name:      "def-" + name,
		DriverKey: "static",
		Enabled:   true,
	}
	instance := &models.ProviderInstance{
		ID:           "inst-" + name,
		DefinitionID: definition.ID,
		Name:         name,
		Enabled:      true,
	}
	if mutate != nil {
		mutate(instance, definition)
	}

	return provider.Candidate{Definition: definition, Instance: instance}
}

func TestScore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		candidate provider.Candidate
		want      int
	}{
		{name: "empty scopes score zero", candidate: candidate("a", nil), want: 0},
		{
			name: "location match",
			candidate: candidate("a", func(i *models.ProviderInstance, _ *models.ProviderDefinition) {
				i.ScopeLocations = []string{"dc-1"}
			}),
			want: 30,
		},
		{
			name: "location mismatch disqualifies",
			candidate: candidate("a", func(i *models.ProviderInstance, _ *models.ProviderDefinition) {
				i.ScopeLocations = []string{"dc-2"}
			}),
			want: provider.Disqualified,
		},
		{
			name: "tenant match",
			candidate: candidate("a", func(i *models.ProviderInstance, _ *models.ProviderDefinition) {
				i.ScopeTenants = []string{"acme"}
			}),
			want: 20,
		},
		{
			name: "tag match",
			candidate: candidate("a", func(i *models.ProviderInstance, _ *models.ProviderDefinition) {
				i.ScopeTags = []string{"edge"}
			}),
			want: 10,
		},
		{
			name: "tag mismatch disqualifies",
			candidate: candidate("a", func(i *models.ProviderInstance, _ *models.ProviderDefinition) {
				i.ScopeTags = []string{"core"}
			}),
			want: provider.Disqualified,
		},
		{
			name: "platform listed adds five",
			candidate: candidate("a", func(_ *models.ProviderInstance, d *models.ProviderDefinition) {
				d.SupportedPlatforms = []string{"eos"}
			}),
			want: 5,
		},
		{
			name: "platform not listed never disqualifies",
			candidate: candidate("a", func(_ *models.ProviderInstance, d *models.ProviderDefinition) {
				d.SupportedPlatforms = []string{"nxos"}
			}),
			want: 0,
		},
		{
			name: "all scopes match",
			candidate: candidate("a", func(i *models.ProviderInstance, d *models.ProviderDefinition) {
				i.ScopeLocations = []string{"dc-1"}
				i.ScopeTenants = []string{"acme"}
				i.ScopeTags = []string{"edge"}
				d.SupportedPlatforms = []string{"eos"}
			}),
			want: 65,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, provider.Score(tt.candidate, device()))
		})
	}
}

func TestSelect_HighestScoreWins(t *testing.T) {
	t.Parallel()

	// Location plus platform (35) beats tenant plus tag (30).
	narrow := candidate("narrow", func(i *models.ProviderInstance, d *models.ProviderDefinition) {
		i.ScopeLocations = []string{"dc-1"}
		d.SupportedPlatforms = []string{"eos"}
	})
	broad := candidate("broad", func(i *models.ProviderInstance, _ *models.ProviderDefinition) {
		i.ScopeTenants = []string{"acme"}
		i.ScopeTags = []string{"edge"}
	})

	got, err := provider.Select([]provider.Candidate{broad, narrow}, device())
	require.NoError(t, err)
	assert.Equal(t, "narrow", got.Instance.Name)
}

func TestSelect_DisqualifiedNeverWins(t *testing.T) {
	t.Parallel()

	// A candidate with a rich but mismatching scope loses to a plain one.
	mismatched := candidate("mismatched", func(i *models.ProviderInstance, _ *models.ProviderDefinition) {
		i.ScopeTenants = []string{"acme"}
		i.ScopeLocations = []string{"dc-2"}
	})
	plain := candidate("plain", nil)

	got, err := provider.Select([]provider.Candidate{mismatched, plain}, device())
	require.NoError(t, err)
	assert.Equal(t, "plain", got.Instance.Name)
}

func TestSelect_TieBreakByInstanceName(t *testing.T) {
	t.Parallel()

	forward := []provider.Candidate{candidate("alpha", nil), candidate("beta", nil)}
	reverse := []provider.Candidate{candidate("beta", nil), candidate("alpha", nil)}

	first, err := provider.Select(forward, device())
	require.NoError(t, err)

	second, err := provider.Select(reverse, device())
	require.NoError(t, err)

	assert.Equal(t, "alpha", first.Instance.Name)
	assert.Equal(t, first.Instance.Name, second.Instance.Name)
}

func TestSelect_SkipsDisabled(t *testing.T) {
	t.Parallel()

	disabledInstance := candidate("a", func(i *models.ProviderInstance, _ *models.ProviderDefinition) {
		i.Enabled = false
	})
	disabledDefinition := candidate("b", func(_ *models.ProviderInstance, d *models.ProviderDefinition) {
		d.Enabled = false
	})

	_, err := provider.Select([]provider.Candidate{disabledInstance, disabledDefinition}, device())
	require.ErrorIs(t, err, provider.ErrNoProviderMatched)
}

func TestSelect_NoCandidates(t *testing.T) {
	t.Parallel()

	_, err := provider.Select(nil, device())
	require.ErrorIs(t, err, provider.ErrNoProviderMatched)
}
