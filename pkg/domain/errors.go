package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotStarted is returned when an operation needs a running solver process.
var ErrNotStarted = errors.New("solver not started")

// ErrStopped is returned when the controller has already released the process.
var ErrStopped = errors.New("solver stopped")

// ErrNotWaiting is returned when a controllable is set while the solver is not suspended.
var ErrNotWaiting = errors.New("solver is not waiting at an execution flag")

// ErrUndeclaredPath is returned when a controllable path was not declared at start.
var ErrUndeclaredPath = errors.New("controllable path was not declared")

// ErrKindMismatch is returned when a value does not match the declared kind.
var ErrKindMismatch = errors.New("controllable kind mismatch")

// ErrProcessExited is returned when the solver process terminates unexpectedly.
var ErrProcessExited = errors.New("solver process exited")

// ConfigError reports an invalid or missing configuration value. It is
// raised before any process is started.
type ConfigError struct {
	Key    string
	Reason string
	Value  any
}

func (e *ConfigError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("config %q: %s", e.Key, e.Reason)
	}
	return fmt.Sprintf("config %q: %s (got %v)", e.Key, e.Reason, e.Value)
}

// DesyncError reports that the solver is suspended somewhere other than
// where the coordinator expected it.
type DesyncError struct {
	Expected ExecFlag
	Observed ExecFlag
}

func (e *DesyncError) Error() string {
	return fmt.Sprintf("unexpected execute on flag: expected %s, solver is waiting at %s", e.Expected, e.Observed)
}

// ConnectionExhaustedError is returned once the retry budget for reaching
// the control channel is spent.
type ConnectionExhaustedError struct {
	URL      string
	Attempts int
	Elapsed  time.Duration
	Last     error
}

func (e *ConnectionExhaustedError) Error() string {
	return fmt.Sprintf("control channel %s unreachable after %d attempts (%s): %v", e.URL, e.Attempts, e.Elapsed.Round(time.Millisecond), e.Last)
}

func (e *ConnectionExhaustedError) Unwrap() error { return e.Last }

// MissingOutputError reports that a coupled step did not leave a result file.
type MissingOutputError struct {
	Path string
	Err  error
}

func (e *MissingOutputError) Error() string {
	return fmt.Sprintf("coupled step produced no output at %s: %v", e.Path, e.Err)
}

func (e *MissingOutputError) Unwrap() error { return e.Err }

// ErrRunNotFound is returned when a run has no stored records.
var ErrRunNotFound = errors.New("run not found")

// ErrUnreachable marks transport-level failures to reach the control channel.
// Only errors wrapping it are retried by the poll loop.
var ErrUnreachable = errors.New("control channel unreachable")
