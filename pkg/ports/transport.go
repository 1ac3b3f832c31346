package ports

import (
	"context"

	"github.com/aretw0/coupler/pkg/domain"
)

// TransportEngine is the in-process transport code. It owns materials,
// tallies and filters and produces eigenvalue and reaction-rate results.
type TransportEngine interface {
	// Snapshot copies the live materials, tallies and filters, each ordered by ID.
	Snapshot() domain.Snapshot

	// SetMaterialDensities replaces the composition of a material.
	SetMaterialDensities(id int32, nuclides []string, densities []float64) error

	// SetTallyNuclides replaces the nuclide list of a tally.
	SetTallyNuclides(id int32, nuclides []string) error

	// SetTallyWritable controls whether a tally is written to result files.
	SetTallyWritable(id int32, writable bool) error

	// Reset clears tally accumulators.
	Reset() error

	// Batches is the configured batch count, which names the result file.
	Batches() int

	// LoadResults reads a result file produced by a coupled step into the
	// engine's in-memory result state.
	LoadResults(ctx context.Context, path string) error

	// Keff returns the combined eigenvalue estimate of the loaded results.
	Keff() (domain.UFloat, error)

	// Reactions is the reaction axis of ReactionRates.
	Reactions() []string

	// ReactionRates returns per-source-particle rates for the given
	// materials and nuclides over the engine's depletion reactions.
	ReactionRates(materials []int32, nuclides []string) (*domain.ReactionRates, error)
}
