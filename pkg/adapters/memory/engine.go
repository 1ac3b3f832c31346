package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/aretw0/coupler/pkg/domain"
	"github.com/aretw0/coupler/pkg/ports"
	"github.com/aretw0/coupler/pkg/statepoint"
)

// DefaultReactions are the depletion reactions tallied when none are configured.
var DefaultReactions = []string{"(n,gamma)", "(n,2n)", "(n,p)", "(n,a)", "fission"}

// Engine implements ports.TransportEngine over plain in-memory objects.
// Results are read from statepoint summaries.
// Safe for concurrent use.
type Engine struct {
	mu        sync.RWMutex
	materials map[int32]domain.Material
	tallies   map[int32]domain.Tally
	filters   map[int32]domain.Filter
	batches   int
	reactions []string

	loaded *statepoint.Summary
	resets int
}

var _ ports.TransportEngine = (*Engine)(nil)

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithReactions overrides the reaction axis of computed rates.
func WithReactions(reactions ...string) EngineOption {
	return func(e *Engine) {
		e.reactions = slices.Clone(reactions)
	}
}

// NewEngine creates an engine holding a copy of the snapshot.
func NewEngine(snap domain.Snapshot, batches int, opts ...EngineOption) (*Engine, error) {
	if batches <= 0 {
		return nil, fmt.Errorf("batches must be positive, got %d", batches)
	}
	snap = snap.Clone()
	e := &Engine{
		materials: make(map[int32]domain.Material),
		tallies:   make(map[int32]domain.Tally),
		filters:   make(map[int32]domain.Filter),
		batches:   batches,
		reactions: slices.Clone(DefaultReactions),
	}
	for _, opt := range opts {
		opt(e)
	}
	for _, m := range snap.Materials {
		if _, dup := e.materials[m.ID]; dup {
			return nil, fmt.Errorf("duplicate material id %d", m.ID)
		}
		if len(m.Nuclides) != len(m.Densities) {
			return nil, fmt.Errorf("material %d: %d nuclides but %d densities", m.ID, len(m.Nuclides), len(m.Densities))
		}
		e.materials[m.ID] = m
	}
	for _, f := range snap.Filters {
		if _, dup := e.filters[f.ID]; dup {
			return nil, fmt.Errorf("duplicate filter id %d", f.ID)
		}
		if !f.Type.Valid() {
			return nil, fmt.Errorf("filter %d: invalid type %q", f.ID, f.Type)
		}
		e.filters[f.ID] = f
	}
	for _, t := range snap.Tallies {
		if _, dup := e.tallies[t.ID]; dup {
			return nil, fmt.Errorf("duplicate tally id %d", t.ID)
		}
		for _, fid := range t.FilterIDs {
			if _, ok := e.filters[fid]; !ok {
				return nil, fmt.Errorf("tally %d: unknown filter id %d", t.ID, fid)
			}
		}
		e.tallies[t.ID] = t
	}
	return e, nil
}

func sortedKeys[V any](m map[int32]V) []int32 {
	keys := make([]int32, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Snapshot copies the live objects ordered by ID.
func (e *Engine) Snapshot() domain.Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var snap domain.Snapshot
	for _, id := range sortedKeys(e.materials) {
		snap.Materials = append(snap.Materials, e.materials[id])
	}
	for _, id := range sortedKeys(e.tallies) {
		snap.Tallies = append(snap.Tallies, e.tallies[id])
	}
	for _, id := range sortedKeys(e.filters) {
		snap.Filters = append(snap.Filters, e.filters[id])
	}
	return snap.Clone()
}

// SetMaterialDensities replaces a material's composition.
func (e *Engine) SetMaterialDensities(id int32, nuclides []string, densities []float64) error {
	if len(nuclides) != len(densities) {
		return fmt.Errorf("'names' and 'densities' must be the same length")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	m, ok := e.materials[id]
	if !ok {
		return fmt.Errorf("material %d does not exist", id)
	}
	m.Nuclides = slices.Clone(nuclides)
	m.Densities = slices.Clone(densities)
	e.materials[id] = m
	return nil
}

// SetTallyNuclides replaces a tally's nuclide list.
func (e *Engine) SetTallyNuclides(id int32, nuclides []string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.tallies[id]
	if !ok {
		return fmt.Errorf("tally %d does not exist", id)
	}
	t.Nuclides = slices.Clone(nuclides)
	e.tallies[id] = t
	return nil
}

// SetTallyWritable flags a tally for output.
func (e *Engine) SetTallyWritable(id int32, writable bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.tallies[id]
	if !ok {
		return fmt.Errorf("tally %d does not exist", id)
	}
	t.Writable = writable
	e.tallies[id] = t
	return nil
}

// Reset clears loaded results.
func (e *Engine) Reset() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.loaded = nil
	e.resets++
	return nil
}

// Resets returns how many times Reset was called.
func (e *Engine) Resets() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.resets
}

// Reactions returns the reaction axis of computed rates.
func (e *Engine) Reactions() []string { return slices.Clone(e.reactions) }

// Batches returns the configured batch count.
func (e *Engine) Batches() int { return e.batches }

// LoadResults reads a statepoint summary.
func (e *Engine) LoadResults(ctx context.Context, path string) error {
	s, err := statepoint.Read(path)
	if err != nil {
		return fmt.Errorf("failed to load results: %w", err)
	}
	if s.Batches != 0 && s.Batches != e.batches {
		return fmt.Errorf("statepoint %s holds %d batches, expected %d", path, s.Batches, e.batches)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.loaded = s
	return nil
}

// Keff returns the loaded eigenvalue.
func (e *Engine) Keff() (domain.UFloat, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.loaded == nil {
		return domain.UFloat{}, fmt.Errorf("no results loaded")
	}
	return domain.UFloat{Nominal: e.loaded.Keff[0], StdDev: e.loaded.Keff[1]}, nil
}

// ReactionRates assembles per-source-particle rates from the loaded results.
// Entries absent from the results are zero.
func (e *Engine) ReactionRates(materials []int32, nuclides []string) (*domain.ReactionRates, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.loaded == nil {
		return nil, fmt.Errorf("no results loaded")
	}

	rates := domain.NewReactionRates(domain.IDStrings(materials), nuclides, e.reactions)
	matIdx := indexOf(materials)
	nucIdx := indexOf(nuclides)
	rxnIdx := indexOf(e.reactions)
	for _, r := range e.loaded.Rates {
		i, ok1 := matIdx[r.Material]
		j, ok2 := nucIdx[r.Nuclide]
		k, ok3 := rxnIdx[r.Reaction]
		if ok1 && ok2 && ok3 {
			rates.Set(i, j, k, rates.At(i, j, k)+r.Value)
		}
	}
	return rates, nil
}

func indexOf[T comparable](items []T) map[T]int {
	idx := make(map[T]int, len(items))
	for i, it := range items {
		idx[it] = i
	}
	return idx
}
