// Package statesync keeps the external solver's controllable mirror of
// materials, tallies and filters equal to the transport engine's objects.
package statesync

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aretw0/coupler/internal/logging"
	"github.com/aretw0/coupler/pkg/domain"
)

// Solver is the part of the controller the synchronizer drives.
type Solver interface {
	Wait(ctx context.Context, expected domain.ExecFlag) (domain.ExecFlag, error)
	Continue(ctx context.Context) error
	SetVectorString(ctx context.Context, path string, v []string) error
	SetVectorReal(ctx context.Context, path string, v []float64) error
}

// SnapshotSource provides the live transport objects.
type SnapshotSource interface {
	Snapshot() domain.Snapshot
}

// Synchronizer pushes transport state to the solver at TIMESTEP_BEGIN.
type Synchronizer struct {
	solver    Solver
	source    SnapshotSource
	firstOnly bool
	logger    *slog.Logger
}

// Option configures the Synchronizer.
type Option func(*Synchronizer)

// WithFirstOnly pushes only the first material and the first tally.
func WithFirstOnly(enabled bool) Option {
	return func(s *Synchronizer) {
		s.firstOnly = enabled
	}
}

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Synchronizer) {
		s.logger = logger
	}
}

// New creates a synchronizer.
func New(solver Solver, source SnapshotSource, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		solver: solver,
		source: source,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "statesync")
	if s.firstOnly {
		s.logger.Warn("only the first material and tally are synchronized")
	}
	return s
}

// Realign brings the solver to TIMESTEP_BEGIN. The solver sits at
// TIMESTEP_BEGIN before the first step and at TIMESTEP_END after every
// other one; in the latter case it is continued once.
func (s *Synchronizer) Realign(ctx context.Context) error {
	flag, err := s.solver.Wait(ctx, domain.FlagAny)
	if err != nil {
		return err
	}
	switch flag {
	case domain.FlagTimestepBegin:
		return nil
	case domain.FlagTimestepEnd:
		s.logger.Debug("realigning solver", "from", flag)
		if err := s.solver.Continue(ctx); err != nil {
			return err
		}
		_, err := s.solver.Wait(ctx, domain.FlagTimestepBegin)
		return err
	default:
		return &domain.DesyncError{Expected: domain.FlagTimestepBegin, Observed: flag}
	}
}

// PushMaterials sends every material's nuclide names and densities.
func (s *Synchronizer) PushMaterials(ctx context.Context) error {
	if err := s.Realign(ctx); err != nil {
		return err
	}

	snap := s.source.Snapshot()
	for _, m := range snap.Materials {
		object := domain.MaterialObject(m.ID)
		s.logger.Debug("updating material", "id", m.ID, "object", object, "nuclides", len(m.Nuclides))

		if err := s.solver.SetVectorString(ctx, domain.UserObjectPath(object, domain.ParamNames), m.Nuclides); err != nil {
			return fmt.Errorf("material %d: %w", m.ID, err)
		}
		if err := s.solver.SetVectorReal(ctx, domain.UserObjectPath(object, domain.ParamDensities), m.Densities); err != nil {
			return fmt.Errorf("material %d: %w", m.ID, err)
		}
		if s.firstOnly {
			break
		}
	}
	return nil
}

// PushTallyMetadata sends filter bins, then tally scores, nuclides and
// filter ids. Without tallies or filters nothing is exchanged.
func (s *Synchronizer) PushTallyMetadata(ctx context.Context) error {
	snap := s.source.Snapshot()
	if len(snap.Tallies) == 0 && len(snap.Filters) == 0 {
		return nil
	}
	if err := s.Realign(ctx); err != nil {
		return err
	}

	for _, f := range snap.Filters {
		path := domain.UserObjectPath(domain.FilterObject(f.ID), domain.ParamBins)
		if err := s.solver.SetVectorString(ctx, path, domain.IDStrings(f.Bins)); err != nil {
			return fmt.Errorf("filter %d: %w", f.ID, err)
		}
	}
	for _, t := range snap.Tallies {
		object := domain.TallyObject(t.ID)
		s.logger.Debug("updating tally", "id", t.ID, "object", object)

		values := []struct {
			param string
			v     []string
		}{
			{domain.ParamScores, t.Scores},
			{domain.ParamNuclides, t.Nuclides},
			{domain.ParamFilterIDs, domain.IDStrings(t.FilterIDs)},
		}
		for _, pv := range values {
			if err := s.solver.SetVectorString(ctx, domain.UserObjectPath(object, pv.param), pv.v); err != nil {
				return fmt.Errorf("tally %d: %w", t.ID, err)
			}
		}
		if s.firstOnly {
			break
		}
	}
	return nil
}
