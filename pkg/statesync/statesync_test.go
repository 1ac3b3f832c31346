package statesync_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aretw0/coupler/pkg/domain"
	"github.com/aretw0/coupler/pkg/statesync"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingSolver keeps the pushed values and a transcript of calls.
// It suspends at flags[0] and moves to the next flag on each Continue.
type recordingSolver struct {
	flags  []domain.ExecFlag
	calls  []string
	values map[string]any
	failOn string
}

func newSolver(flags ...domain.ExecFlag) *recordingSolver {
	return &recordingSolver{flags: flags, values: make(map[string]any)}
}

func (r *recordingSolver) Wait(ctx context.Context, expected domain.ExecFlag) (domain.ExecFlag, error) {
	r.calls = append(r.calls, "wait "+expected.String())
	flag := r.flags[0]
	if !expected.Matches(flag) {
		return flag, &domain.DesyncError{Expected: expected, Observed: flag}
	}
	return flag, nil
}

func (r *recordingSolver) Continue(ctx context.Context) error {
	r.calls = append(r.calls, "continue")
	if len(r.flags) > 1 {
		r.flags = r.flags[1:]
	}
	return nil
}

func (r *recordingSolver) set(path string, v any) error {
	if path == r.failOn {
		return errors.New("rejected")
	}
	r.values[path] = v
	return nil
}

func (r *recordingSolver) SetVectorString(ctx context.Context, path string, v []string) error {
	r.calls = append(r.calls, "vs "+path)
	return r.set(path, v)
}

func (r *recordingSolver) SetVectorReal(ctx context.Context, path string, v []float64) error {
	r.calls = append(r.calls, "vr "+path)
	return r.set(path, v)
}

type staticSource domain.Snapshot

func (s staticSource) Snapshot() domain.Snapshot { return domain.Snapshot(s).Clone() }

func twoMaterials() staticSource {
	return staticSource{
		Materials: []domain.Material{
			{ID: 1, Nuclides: []string{"U235", "O16"}, Densities: []float64{0.01, 0.02}},
			{ID: 2, Nuclides: []string{"H1"}, Densities: []float64{0.05}},
		},
	}
}

func TestPushMaterials_AtBegin(t *testing.T) {
	solver := newSolver(domain.FlagTimestepBegin)
	s := statesync.New(solver, twoMaterials())

	require.NoError(t, s.PushMaterials(context.Background()))
	assert.Equal(t, []string{
		"wait ANY",
		"vs UserObjects/openmc_mat1/names",
		"vr UserObjects/openmc_mat1/densities",
		"vs UserObjects/openmc_mat2/names",
		"vr UserObjects/openmc_mat2/densities",
	}, solver.calls)
	assert.Equal(t, []float64{0.01, 0.02}, solver.values["UserObjects/openmc_mat1/densities"])
	assert.Equal(t, []string{"H1"}, solver.values["UserObjects/openmc_mat2/names"])
}

func TestPushMaterials_RealignsFromEnd(t *testing.T) {
	solver := newSolver(domain.FlagTimestepEnd, domain.FlagTimestepBegin)
	s := statesync.New(solver, twoMaterials())

	require.NoError(t, s.PushMaterials(context.Background()))
	require.GreaterOrEqual(t, len(solver.calls), 4)
	assert.Equal(t, []string{"wait ANY", "continue", "wait TIMESTEP_BEGIN"}, solver.calls[:3],
		"exactly one continue and one wait before any push")
	assert.Equal(t, "vs UserObjects/openmc_mat1/names", solver.calls[3])
}

func TestPushMaterials_Desync(t *testing.T) {
	solver := newSolver(domain.FlagFinal)
	s := statesync.New(solver, twoMaterials())

	err := s.PushMaterials(context.Background())
	var desync *domain.DesyncError
	require.ErrorAs(t, err, &desync)
	assert.Equal(t, domain.FlagFinal, desync.Observed)
	assert.Equal(t, []string{"wait ANY"}, solver.calls, "nothing is pushed after a desync")
}

func TestPushMaterials_Idempotent(t *testing.T) {
	solver := newSolver(domain.FlagTimestepBegin)
	s := statesync.New(solver, twoMaterials())
	ctx := context.Background()

	require.NoError(t, s.PushMaterials(ctx))
	first := fmt.Sprint(solver.values)
	require.NoError(t, s.PushMaterials(ctx))
	assert.Equal(t, first, fmt.Sprint(solver.values))
}

func TestPushMaterials_FirstOnly(t *testing.T) {
	solver := newSolver(domain.FlagTimestepBegin)
	s := statesync.New(solver, twoMaterials(), statesync.WithFirstOnly(true))

	require.NoError(t, s.PushMaterials(context.Background()))
	assert.Len(t, solver.values, 2)
	assert.NotContains(t, solver.values, "UserObjects/openmc_mat2/names")
}

func TestPushMaterials_PropagatesSetError(t *testing.T) {
	solver := newSolver(domain.FlagTimestepBegin)
	solver.failOn = "UserObjects/openmc_mat2/names"
	s := statesync.New(solver, twoMaterials())

	err := s.PushMaterials(context.Background())
	assert.ErrorContains(t, err, "material 2")
}

func TestPushTallyMetadata(t *testing.T) {
	src := twoMaterials()
	src.Filters = []domain.Filter{{ID: 5, Type: domain.FilterMaterial, Bins: []int32{1, 2}}}
	src.Tallies = []domain.Tally{
		{ID: 3, Scores: []string{"fission"}, Nuclides: []string{"U235"}, FilterIDs: []int32{5}},
		{ID: 4, Scores: []string{"flux"}},
	}
	solver := newSolver(domain.FlagTimestepBegin)
	s := statesync.New(solver, src)

	require.NoError(t, s.PushTallyMetadata(context.Background()))
	assert.Equal(t, []string{
		"wait ANY",
		"vs UserObjects/openmc_filter5/bins",
		"vs UserObjects/openmc_tally3/scores",
		"vs UserObjects/openmc_tally3/nuclides",
		"vs UserObjects/openmc_tally3/filter_ids",
		"vs UserObjects/openmc_tally4/scores",
		"vs UserObjects/openmc_tally4/nuclides",
		"vs UserObjects/openmc_tally4/filter_ids",
	}, solver.calls)
	assert.Equal(t, []string{"1", "2"}, solver.values["UserObjects/openmc_filter5/bins"])
	assert.Equal(t, []string{"5"}, solver.values["UserObjects/openmc_tally3/filter_ids"])
}

func TestPushTallyMetadata_NothingToPush(t *testing.T) {
	solver := newSolver(domain.FlagTimestepEnd)
	s := statesync.New(solver, twoMaterials())

	require.NoError(t, s.PushTallyMetadata(context.Background()))
	assert.Empty(t, solver.calls)
}
