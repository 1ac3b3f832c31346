package controller

import (
	"testing"

	"github.com/aretw0/coupler/pkg/controllable"
	"github.com/aretw0/coupler/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildInput_Render(t *testing.T) {
	snap := domain.Snapshot{
		Materials: []domain.Material{{ID: 7, Nuclides: []string{"U235", "O16"}, Densities: []float64{0.01, 2e-5}}},
		Tallies:   []domain.Tally{{ID: 1, Scores: []string{"kappa-fission"}}},
	}
	want := `[UserObjects]
  [openmc_mat7]
    type = OpenMCNuclideDensities
    material_id = 7
    names = 'U235 O16'
    densities = '0.01 2e-05'
  []
  [openmc_tally1]
    type = OpenMCTallyEditor
    tally_id = 1
    scores = 'kappa-fission'
    nuclides = ''
    filter_ids = ''
  []
[]
[Controls]
  [webserver]
    type = WebServerControl
    execute_on = 'TIMESTEP_BEGIN TIMESTEP_END'
    port = 5811
  []
[]
`
	assert.Equal(t, want, BuildInput(snap, 5811).Render())
}

func TestDeclare(t *testing.T) {
	root := BuildInput(domain.Snapshot{
		Filters: []domain.Filter{{ID: 4, Type: domain.FilterCell, Bins: []int32{10}}},
	}, 5800)
	reg := controllable.NewRegistry()
	require.NoError(t, declare(root, reg))

	assert.Equal(t, []string{"UserObjects/openmc_filter4/bins"}, reg.Paths())
	kind, ok := reg.Kind("UserObjects/openmc_filter4/bins")
	require.True(t, ok)
	assert.Equal(t, domain.KindVectorString, kind)
}
