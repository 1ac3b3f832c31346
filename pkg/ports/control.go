package ports

import (
	"context"

	"github.com/aretw0/coupler/pkg/domain"
)

// WaitStatus is the answer of the control server to a waiting query.
type WaitStatus struct {
	Waiting bool            `json:"waiting"`
	Flag    domain.ExecFlag `json:"execute_on_flag,omitempty"`
}

// ControlChannel is the request-response channel to the external solver's
// control server. Transport failures must wrap domain.ErrUnreachable so the
// caller can tell them apart from protocol errors.
type ControlChannel interface {
	// URL identifies the server, for diagnostics.
	URL() string

	// Check returns nil once the server answers at all.
	Check(ctx context.Context) error

	// Waiting reports whether the solver is suspended and at which flag.
	Waiting(ctx context.Context) (WaitStatus, error)

	// Continue resumes a suspended solver. It does not wait for the next suspension.
	Continue(ctx context.Context) error

	// SetControllable pushes a value for a declared controllable.
	SetControllable(ctx context.Context, c domain.Controllable) error

	// Terminate asks the solver to exit.
	Terminate(ctx context.Context) error
}
