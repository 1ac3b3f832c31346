package ports

import "context"

// LaunchSpec describes one solver process.
type LaunchSpec struct {
	Argv    []string
	Dir     string
	Env     []string // appended to the current environment
	LogPath string   // stdout and stderr; empty discards
}

// Process is a running solver process owned by exactly one controller.
type Process interface {
	PID() int

	// Done is closed when the process has exited.
	Done() <-chan struct{}

	// Err returns the exit error once Done is closed.
	Err() error

	// Stop terminates the process and waits for it. Safe to call repeatedly.
	Stop(ctx context.Context) error
}

// Launcher starts solver processes.
type Launcher interface {
	Launch(ctx context.Context, spec LaunchSpec) (Process, error)
}
