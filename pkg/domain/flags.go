package domain

// ExecFlag names the point of its own timestep loop at which the external
// solver is suspended, waiting for input.
type ExecFlag string

const (
	FlagInitial       ExecFlag = "INITIAL"
	FlagTimestepBegin ExecFlag = "TIMESTEP_BEGIN"
	FlagTimestepEnd   ExecFlag = "TIMESTEP_END"
	FlagFinal         ExecFlag = "FINAL"
	FlagNone          ExecFlag = "NONE"

	// FlagAny is used as a Wait expectation meaning "any suspension point".
	FlagAny ExecFlag = ""
)

// Matches reports whether an observed flag satisfies the expectation f.
func (f ExecFlag) Matches(observed ExecFlag) bool {
	return f == FlagAny || f == observed
}

func (f ExecFlag) String() string {
	if f == FlagAny {
		return "ANY"
	}
	return string(f)
}

// ControllerStatus is the client-observed state of the external process.
type ControllerStatus string

const (
	StatusNotStarted ControllerStatus = "not_started"
	StatusWaiting    ControllerStatus = "waiting"
	StatusRunning    ControllerStatus = "running"
	StatusStopped    ControllerStatus = "stopped"
)

// IsLive returns true while the process is owned and not yet stopped.
func (s ControllerStatus) IsLive() bool {
	return s == StatusWaiting || s == StatusRunning
}
