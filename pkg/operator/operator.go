// Package operator adapts a coupled transport + external solver step to the
// operator contract of a depletion integrator: atoms and a source rate in,
// an eigenvalue and reaction rates out.
package operator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/aretw0/coupler/internal/logging"
	"github.com/aretw0/coupler/pkg/domain"
	"github.com/aretw0/coupler/pkg/ports"
	"github.com/aretw0/coupler/pkg/statepoint"
	"github.com/aretw0/coupler/pkg/statesync"
)

// Controller is the external solver lifecycle the operator drives.
type Controller interface {
	statesync.Solver
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Operator runs one coupled step per call. It is not reentrant.
type Operator struct {
	engine     ports.TransportEngine
	ctl        Controller
	sync       *statesync.Synchronizer
	number     *domain.AtomNumber
	normalizer Normalizer
	outputDir  string
	firstOnly  bool
	hooks      domain.Hooks
	logger     *slog.Logger

	last domain.OperatorResult
}

// Option configures the Operator.
type Option func(*Operator)

// WithOutputDir sets where the solver leaves its statepoint files.
func WithOutputDir(dir string) Option {
	return func(o *Operator) {
		o.outputDir = dir
	}
}

// WithNormalizer replaces the source-rate normalization.
func WithNormalizer(n Normalizer) Option {
	return func(o *Operator) {
		o.normalizer = n
	}
}

// WithFirstOnly synchronizes only the first material and tally.
func WithFirstOnly(enabled bool) Option {
	return func(o *Operator) {
		o.firstOnly = enabled
	}
}

// WithHooks registers step callbacks.
func WithHooks(h domain.Hooks) Option {
	return func(o *Operator) {
		o.hooks = o.hooks.Merge(h)
	}
}

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Operator) {
		o.logger = logger
	}
}

// New creates an operator over the depletable materials of engine.
func New(engine ports.TransportEngine, ctl Controller, opts ...Option) (*Operator, error) {
	o := &Operator{
		engine:     engine,
		ctl:        ctl,
		normalizer: SourceRateNormalizer{},
		outputDir:  ".",
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.With("component", "operator")

	number, err := domain.NewAtomNumber(engine.Snapshot().Materials)
	if err != nil {
		return nil, fmt.Errorf("failed to build atom bookkeeping: %w", err)
	}
	o.number = number
	o.sync = statesync.New(ctl, engine, statesync.WithFirstOnly(o.firstOnly), statesync.WithLogger(o.logger))
	return o, nil
}

// Number exposes the atom bookkeeping.
func (o *Operator) Number() *domain.AtomNumber { return o.number }

// InitialCondition marks every tally for output, starts the solver and
// returns the initial atom vector.
func (o *Operator) InitialCondition(ctx context.Context) (domain.AtomVector, error) {
	for _, t := range o.engine.Snapshot().Tallies {
		if err := o.engine.SetTallyWritable(t.ID, true); err != nil {
			return nil, err
		}
	}
	if err := o.updateMaterials(o.number.Atoms()); err != nil {
		return nil, err
	}
	if err := o.ctl.Start(ctx); err != nil {
		return nil, err
	}
	return o.number.Atoms(), nil
}

// Step runs one coupled solve for vec at sourceRate (particles/s). A zero
// source rate skips the solve and returns zero rates and k = 0 +/- 0.
// The result is owned by the caller.
func (o *Operator) Step(ctx context.Context, vec domain.AtomVector, sourceRate float64) (res domain.OperatorResult, err error) {
	start := time.Now()
	ev := &domain.StepEvent{
		EventBase:  domain.EventBase{Type: domain.EventStep},
		SourceRate: sourceRate,
	}
	defer func() {
		ev.Timestamp = time.Now()
		ev.Duration = time.Since(start)
		ev.K = res.K
		ev.Err = err
		if o.hooks.OnStep != nil {
			o.hooks.OnStep(ctx, ev)
		}
	}()

	if err := o.engine.Reset(); err != nil {
		return domain.OperatorResult{}, fmt.Errorf("failed to reset tallies: %w", err)
	}
	if err := o.ctl.Start(ctx); err != nil {
		return domain.OperatorResult{}, err
	}
	if err := o.updateMaterials(vec); err != nil {
		return domain.OperatorResult{}, err
	}
	if err := o.sync.PushMaterials(ctx); err != nil {
		return domain.OperatorResult{}, err
	}

	if sourceRate == 0 {
		o.logger.Info("zero source rate, skipping coupled solve")
		ev.ShortCircuit = true
		o.last = domain.OperatorResult{
			Rates: domain.NewReactionRates(o.number.MaterialLabels(), o.number.Nuclides, o.engine.Reactions()),
		}
		return o.last.Clone(), nil
	}

	if err := o.sync.PushTallyMetadata(ctx); err != nil {
		return domain.OperatorResult{}, err
	}

	path, err := o.solve(ctx)
	ev.StatepointRef = path
	if err != nil {
		return domain.OperatorResult{}, err
	}
	if err := o.engine.LoadResults(ctx, path); err != nil {
		return domain.OperatorResult{}, err
	}

	rates, err := o.engine.ReactionRates(o.number.MaterialIDs, o.number.Nuclides)
	if err != nil {
		return domain.OperatorResult{}, fmt.Errorf("failed to compute reaction rates: %w", err)
	}
	if err := o.normalizer.Normalize(rates, sourceRate); err != nil {
		return domain.OperatorResult{}, err
	}
	k, err := o.engine.Keff()
	if err != nil {
		return domain.OperatorResult{}, fmt.Errorf("failed to read k-effective: %w", err)
	}

	o.last = domain.OperatorResult{K: k, Rates: rates}
	o.logger.Info("coupled step finished", "k", k.String(), "source_rate", sourceRate, "duration", time.Since(start))
	return o.last.Clone(), nil
}

// solve runs one full timestep of the external solver and returns the
// statepoint it left behind.
func (o *Operator) solve(ctx context.Context) (string, error) {
	if _, err := o.ctl.Wait(ctx, domain.FlagTimestepBegin); err != nil {
		return "", err
	}

	// Every timestep writes the same file name, so a leftover from the
	// previous step would pass for fresh output.
	path := statepoint.Path(o.outputDir, o.engine.Batches())
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return path, fmt.Errorf("failed to remove stale statepoint %s: %w", path, err)
	}

	if err := o.ctl.Continue(ctx); err != nil {
		return "", err
	}
	if _, err := o.ctl.Wait(ctx, domain.FlagTimestepEnd); err != nil {
		return "", err
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return path, &domain.MissingOutputError{Path: path, Err: err}
		}
		return path, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	return path, nil
}

// updateMaterials applies vec to the engine's depletable materials and
// restricts every tally to the nuclides present.
func (o *Operator) updateMaterials(vec domain.AtomVector) error {
	if err := o.number.SetAtoms(vec); err != nil {
		return err
	}
	for i, id := range o.number.MaterialIDs {
		names, dens := o.number.Densities(i)
		if err := o.engine.SetMaterialDensities(id, names, dens); err != nil {
			return fmt.Errorf("failed to update material %d: %w", id, err)
		}
	}
	if len(o.number.MaterialIDs) == 0 {
		return nil
	}
	present := o.number.PresentNuclides()
	for _, t := range o.engine.Snapshot().Tallies {
		if err := o.engine.SetTallyNuclides(t.ID, present); err != nil {
			return fmt.Errorf("failed to update tally %d: %w", t.ID, err)
		}
	}
	return nil
}

// Close stops the external solver.
func (o *Operator) Close(ctx context.Context) error {
	return o.ctl.Stop(ctx)
}
