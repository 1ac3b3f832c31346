// Package deplete walks a depletion schedule, calling a coupled operator
// once per interval and persisting every step.
package deplete

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/coupler/internal/logging"
	"github.com/aretw0/coupler/pkg/domain"
	"github.com/aretw0/coupler/pkg/ports"
	"github.com/google/uuid"
)

// Operator is the coupled transport operator.
type Operator interface {
	InitialCondition(ctx context.Context) (domain.AtomVector, error)
	Step(ctx context.Context, vec domain.AtomVector, sourceRate float64) (domain.OperatorResult, error)
}

// Driver runs one depletion schedule.
type Driver struct {
	op         Operator
	schedule   Schedule
	integrator Integrator
	store      ports.ResultStore
	runID      string
	finalStep  bool
	locker     ports.DistributedLocker
	lockKey    string
	lockTTL    time.Duration
	observe    func(domain.StepRecord)
	logger     *slog.Logger
	now        func() time.Time
}

// Option configures the Driver.
type Option func(*Driver)

// WithIntegrator replaces the Hold integrator.
func WithIntegrator(i Integrator) Option {
	return func(d *Driver) {
		d.integrator = i
	}
}

// WithStore persists every step record.
func WithStore(s ports.ResultStore) Option {
	return func(d *Driver) {
		d.store = s
	}
}

// WithRunID fixes the run identifier instead of generating one.
func WithRunID(id string) Option {
	return func(d *Driver) {
		d.runID = id
	}
}

// WithFinalStep controls the extra solve at the end of the schedule.
func WithFinalStep(enabled bool) Option {
	return func(d *Driver) {
		d.finalStep = enabled
	}
}

// WithLock holds key on locker for the whole run.
func WithLock(locker ports.DistributedLocker, key string, ttl time.Duration) Option {
	return func(d *Driver) {
		d.locker = locker
		d.lockKey = key
		d.lockTTL = ttl
	}
}

// WithObserver is called with every record once it is saved.
func WithObserver(fn func(domain.StepRecord)) Option {
	return func(d *Driver) {
		d.observe = fn
	}
}

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Driver) {
		d.logger = logger
	}
}

// NewDriver creates a driver.
func NewDriver(op Operator, schedule Schedule, opts ...Option) *Driver {
	d := &Driver{
		op:         op,
		schedule:   schedule,
		integrator: Hold{},
		finalStep:  true,
		logger:     logging.NewNop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.runID == "" {
		d.runID = uuid.NewString()
	}
	d.logger = d.logger.With("run_id", d.runID)
	return d
}

// RunID identifies the records of this driver.
func (d *Driver) RunID() string { return d.runID }

// Run executes the schedule and returns the step records. The first
// failing step aborts the run.
func (d *Driver) Run(ctx context.Context) (_ []domain.StepRecord, err error) {
	if d.locker != nil {
		unlock, err := d.locker.Lock(ctx, d.lockKey, d.lockTTL)
		if err != nil {
			return nil, err
		}
		defer func() {
			if uerr := unlock(context.WithoutCancel(ctx)); uerr != nil {
				d.logger.Warn("failed to release run lock", "key", d.lockKey, "err", uerr)
			}
		}()
	}

	vec, err := d.op.InitialCondition(ctx)
	if err != nil {
		return nil, fmt.Errorf("initial condition: %w", err)
	}

	steps := d.schedule.Steps()
	if d.finalStep {
		steps = append(steps, d.schedule.Final())
	}

	records := make([]domain.StepRecord, 0, len(steps))
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return records, err
		}
		d.logger.Info("depletion step", "index", step.Index, "time", step.Time, "dt", step.Dt, "source_rate", step.SourceRate)

		started := d.now()
		res, err := d.op.Step(ctx, vec, step.SourceRate)
		if err != nil {
			return records, fmt.Errorf("step %d: %w", step.Index, err)
		}
		rec := domain.StepRecord{
			RunID:      d.runID,
			Index:      step.Index,
			Time:       step.Time,
			Dt:         step.Dt,
			SourceRate: step.SourceRate,
			Result:     res,
			StartedAt:  started,
			Duration:   d.now().Sub(started),
		}
		if d.store != nil {
			if err := d.store.Save(ctx, rec); err != nil {
				return records, fmt.Errorf("step %d: failed to save record: %w", step.Index, err)
			}
		}
		records = append(records, rec)
		if d.observe != nil {
			d.observe(rec)
		}

		if step.Dt > 0 {
			vec, err = d.integrator.Integrate(ctx, vec, res, step.Dt)
			if err != nil {
				return records, fmt.Errorf("step %d: integration failed: %w", step.Index, err)
			}
		}
	}
	return records, nil
}
