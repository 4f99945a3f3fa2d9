package selector_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netpilot/netpilot/pkg/models"
	"github.com/netpilot/netpilot/pkg/selector"
)

func impl(name string, mutate func(*models.TaskImplementation)) *models.TaskImplementation {
	i := &models.TaskImplementation{
		ID:           name,
		TaskID:       "task-1",
		Name:         name,
		Manufacturer: "arista",
		Type:         models.ImplementationTemplateConfig,
		Enabled:      true,
	}
	if mutate != nil {
		mutate(i)
	}

	return i
}

func eosProfile() selector.TargetProfile {
	return selector.TargetProfile{
		Manufacturer:    "arista",
		Platform:        "eos",
		SoftwareVersion: "4.28.1F",
	}
}

func TestSelectImplementation_ManufacturerRequired(t *testing.T) {
	t.Parallel()

	_, err := selector.SelectImplementation(
		[]*models.TaskImplementation{impl("a", nil)},
		"task-1",
		selector.TargetProfile{},
	)
	require.ErrorIs(t, err, selector.ErrNoImplementationMatched)
}

func TestSelectImplementation_Filters(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		candidates []*models.TaskImplementation
		wantErr    bool
		want       string
	}{
		{
			name: "manufacturer mismatch",
			candidates: []*models.TaskImplementation{
				impl("a", func(i *models.TaskImplementation) { i.Manufacturer = "juniper" }),
			},
			wantErr: true,
		},
		{
			name: "disabled excluded",
			candidates: []*models.TaskImplementation{
				impl("a", func(i *models.TaskImplementation) { i.Enabled = false }),
			},
			wantErr: true,
		},
		{
			name: "other task excluded",
			candidates: []*models.TaskImplementation{
				impl("a", func(i *models.TaskImplementation) { i.TaskID = "task-2" }),
			},
			wantErr: true,
		},
		{
			name: "unset platform matches",
			candidates: []*models.TaskImplementation{
				impl("a", func(i *models.TaskImplementation) { i.Platform = "" }),
			},
			want: "a",
		},
		{
			name: "platform mismatch excluded",
			candidates: []*models.TaskImplementation{
				impl("a", func(i *models.TaskImplementation) { i.Platform = "nxos" }),
			},
			wantErr: true,
		},
		{
			name: "version set must contain target version",
			candidates: []*models.TaskImplementation{
				impl("a", func(i *models.TaskImplementation) { i.SoftwareVersions = []string{"4.20.0F"} }),
				impl("b", func(i *models.TaskImplementation) { i.SoftwareVersions = []string{"4.28.1F"} }),
			},
			want: "b",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := selector.SelectImplementation(tt.candidates, "task-1", eosProfile())
			if tt.wantErr {
				require.ErrorIs(t, err, selector.ErrNoImplementationMatched)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Name)
		})
	}
}

func TestSelectImplementation_PriorityWins(t *testing.T) {
	t.Parallel()

	candidates := []*models.TaskImplementation{
		impl("low", func(i *models.TaskImplementation) { i.Priority = 1 }),
		impl("high", func(i *models.TaskImplementation) { i.Priority = 10 }),
	}

	got, err := selector.SelectImplementation(candidates, "task-1", eosProfile())
	require.NoError(t, err)
	assert.Equal(t, "high", got.Name)
}

func TestSelectImplementation_Deterministic(t *testing.T) {
	t.Parallel()

	// Equal priority: name ascending breaks the tie, regardless of input
	// order.
	forward := []*models.TaskImplementation{impl("alpha", nil), impl("beta", nil)}
	reverse := []*models.TaskImplementation{impl("beta", nil), impl("alpha", nil)}

	first, err := selector.SelectImplementation(forward, "task-1", eosProfile())
	require.NoError(t, err)

	second, err := selector.SelectImplementation(reverse, "task-1", eosProfile())
	require.NoError(t, err)

	assert.Equal(t, "alpha", first.Name)
	assert.Equal(t, first.Name, second.Name)
}
