package deplete

import (
	"context"
	"fmt"

	"github.com/aretw0/coupler/pkg/domain"
)

// Integrator advances an atom vector over dt seconds from the reaction
// rates of a coupled step.
type Integrator interface {
	Integrate(ctx context.Context, vec domain.AtomVector, res domain.OperatorResult, dt float64) (domain.AtomVector, error)
}

// Hold keeps the composition unchanged, turning a schedule into a sequence
// of coupled transport sweeps.
type Hold struct{}

// Integrate returns a copy of vec.
func (Hold) Integrate(ctx context.Context, vec domain.AtomVector, res domain.OperatorResult, dt float64) (domain.AtomVector, error) {
	return vec.Clone(), nil
}

// NewIntegrator returns the integrator registered under name.
func NewIntegrator(name string) (Integrator, error) {
	switch name {
	case "", "hold":
		return Hold{}, nil
	}
	return nil, fmt.Errorf("unknown integrator %q", name)
}
