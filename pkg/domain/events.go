package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventWait     EventType = "wait"
	EventContinue EventType = "continue"
	EventSet      EventType = "set"
	EventStep     EventType = "step"
	EventStart    EventType = "start"
	EventStop     EventType = "stop"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
}

// ControlEvent describes one exchange with the control channel.
type ControlEvent struct {
	EventBase
	Flag     ExecFlag      `json:"flag,omitempty"`
	Path     string        `json:"path,omitempty"`
	Kind     ValueKind     `json:"kind,omitempty"`
	Attempts int           `json:"attempts,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
	Err      error         `json:"-"`
}

// StepEvent describes one operator invocation.
type StepEvent struct {
	EventBase
	SourceRate    float64       `json:"source_rate"`
	ShortCircuit  bool          `json:"short_circuit,omitempty"`
	K             UFloat        `json:"k"`
	Duration      time.Duration `json:"duration"`
	StatepointRef string        `json:"statepoint,omitempty"`
	Err           error         `json:"-"`
}

// Hooks defines callbacks for coupling observability. Nil fields are skipped.
type Hooks struct {
	OnStart    func(context.Context, *ControlEvent)
	OnWait     func(context.Context, *ControlEvent)
	OnContinue func(context.Context, *ControlEvent)
	OnSet      func(context.Context, *ControlEvent)
	OnStop     func(context.Context, *ControlEvent)
	OnStep     func(context.Context, *StepEvent)
}

// Merge returns hooks that call h first and then other.
func (h Hooks) Merge(other Hooks) Hooks {
	return Hooks{
		OnStart:    chain(h.OnStart, other.OnStart),
		OnWait:     chain(h.OnWait, other.OnWait),
		OnContinue: chain(h.OnContinue, other.OnContinue),
		OnSet:      chain(h.OnSet, other.OnSet),
		OnStop:     chain(h.OnStop, other.OnStop),
		OnStep:     chain(h.OnStep, other.OnStep),
	}
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}
