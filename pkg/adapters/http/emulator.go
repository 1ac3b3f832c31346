package http

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/coupler/internal/logging"
	"github.com/aretw0/coupler/pkg/controllable"
	"github.com/aretw0/coupler/pkg/domain"
	"github.com/aretw0/coupler/pkg/hit"
	"github.com/aretw0/coupler/pkg/statepoint"
)

// SolveFunc produces the results of one emulated timestep from the current
// controllable values.
type SolveFunc func(ctx context.Context, step int, values *controllable.Registry) (*statepoint.Summary, error)

// Call is one request seen by the emulator.
type Call struct {
	Method string
	Path   string
	Name   string // controllable path for set requests
	Flag   domain.ExecFlag
}

// Emulator imitates the control server of a solver that suspends at the
// beginning and the end of every timestep. Safe for concurrent use.
type Emulator struct {
	mu      sync.Mutex
	values  *controllable.Registry
	objects map[string]string // object path -> type
	waiting bool
	flag    domain.ExecFlag
	step    int
	calls   []Call
	done    chan struct{}
	closed  bool

	port       int
	batches    int
	outDir     string
	solveDelay time.Duration
	solve      SolveFunc
	logger     *slog.Logger
}

// EmulatorOption configures the Emulator.
type EmulatorOption func(*Emulator)

// WithSolveDelay makes each timestep take d. Zero advances synchronously.
func WithSolveDelay(d time.Duration) EmulatorOption {
	return func(e *Emulator) {
		e.solveDelay = d
	}
}

// WithSolver replaces the default result generator.
func WithSolver(fn SolveFunc) EmulatorOption {
	return func(e *Emulator) {
		e.solve = fn
	}
}

// WithOutputDir sets where statepoint summaries are written.
func WithOutputDir(dir string) EmulatorOption {
	return func(e *Emulator) {
		e.outDir = dir
	}
}

// WithBatches sets the batch count naming the statepoint file.
func WithBatches(n int) EmulatorOption {
	return func(e *Emulator) {
		e.batches = n
	}
}

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) EmulatorOption {
	return func(e *Emulator) {
		e.logger = logger
	}
}

// NewEmulator builds an emulator from "Block/Object/param=value" overrides,
// the same arguments the controller appends to the solver command line.
// Arguments that are not overrides are ignored.
func NewEmulator(args []string, opts ...EmulatorOption) (*Emulator, error) {
	e := &Emulator{
		values:  controllable.NewRegistry(),
		objects: make(map[string]string),
		waiting: true,
		flag:    domain.FlagTimestepBegin,
		done:    make(chan struct{}),
		batches: 1,
		outDir:  ".",
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.solve == nil {
		e.solve = e.defaultSolve
	}
	if err := e.declare(args); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Emulator) declare(args []string) error {
	type override struct{ object, param, value string }
	var overrides []override
	for _, arg := range args {
		path, value, ok := hit.ParseOverride(arg)
		if !ok {
			continue
		}
		i := strings.LastIndex(path, "/")
		object, param := path[:i], path[i+1:]
		if param == "type" {
			e.objects[object] = value
			continue
		}
		overrides = append(overrides, override{object, param, value})
	}

	for _, o := range overrides {
		if o.object == domain.ControlsBlock+"/"+domain.WebServerName && o.param == "port" {
			port, err := strconv.Atoi(o.value)
			if err != nil {
				return fmt.Errorf("invalid webserver port %q: %w", o.value, err)
			}
			e.port = port
			continue
		}
		kind, ok := domain.ControllableKind(e.objects[o.object], o.param)
		if !ok {
			continue
		}
		items := hit.Unquote(o.value)
		var initial any = items
		if kind == domain.KindVectorReal {
			reals := make([]float64, len(items))
			for i, it := range items {
				f, err := strconv.ParseFloat(it, 64)
				if err != nil {
					return fmt.Errorf("%s/%s: invalid real %q", o.object, o.param, it)
				}
				reals[i] = f
			}
			initial = reals
		}
		if err := e.values.Declare(o.object+"/"+o.param, kind, initial); err != nil {
			return err
		}
	}
	return nil
}

// Port returns the webserver port declared in the arguments, or zero.
func (e *Emulator) Port() int { return e.port }

// Values exposes the controllable values.
func (e *Emulator) Values() *controllable.Registry { return e.values }

// Done is closed after a terminate request.
func (e *Emulator) Done() <-chan struct{} { return e.done }

// Step returns the number of completed timesteps.
func (e *Emulator) Step() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.step
}

// Calls returns the requests seen so far.
func (e *Emulator) Calls() []Call {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Call(nil), e.calls...)
}

// SetWaiting forces the suspension state, e.g. to start a test at TIMESTEP_END.
func (e *Emulator) SetWaiting(flag domain.ExecFlag) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.waiting = flag != domain.FlagAny
	e.flag = flag
}

func (e *Emulator) record(c Call) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, c)
}

// status returns the waiting state.
func (e *Emulator) status() (bool, domain.ExecFlag) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.waiting, e.flag
}

// errNotWaiting mirrors the control server's refusal to act while running.
var errNotWaiting = fmt.Errorf("the control is not currently waiting")

// resume leaves the current suspension point and schedules the next one.
func (e *Emulator) resume(ctx context.Context) error {
	e.mu.Lock()
	if !e.waiting || e.closed {
		e.mu.Unlock()
		return errNotWaiting
	}
	from := e.flag
	e.waiting = false
	e.mu.Unlock()

	if e.solveDelay <= 0 {
		e.advance(ctx, from)
		return nil
	}
	time.AfterFunc(e.solveDelay, func() { e.advance(context.Background(), from) })
	return nil
}

func (e *Emulator) advance(ctx context.Context, from domain.ExecFlag) {
	next := domain.FlagTimestepBegin
	if from == domain.FlagTimestepBegin {
		next = domain.FlagTimestepEnd
		e.mu.Lock()
		step := e.step + 1
		e.mu.Unlock()

		summary, err := e.solve(ctx, step, e.values)
		if err == nil {
			summary.Batches = e.batches
			err = statepoint.Write(statepoint.Path(e.outDir, e.batches), summary)
		}
		if err != nil {
			e.logger.Error("emulated solve failed", "step", step, "err", err)
		}
		e.mu.Lock()
		e.step = step
		e.mu.Unlock()
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.waiting = true
	e.flag = next
	e.logger.Debug("emulator waiting", "flag", next, "step", e.step)
}

// terminate stops the emulated solver.
func (e *Emulator) terminate() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	e.waiting = false
	close(e.done)
}

// defaultSolve reports k = 1 and, for every mirrored material, a rate per
// nuclide and reaction equal to its density. The numbers are placeholders.
func (e *Emulator) defaultSolve(ctx context.Context, step int, values *controllable.Registry) (*statepoint.Summary, error) {
	s := &statepoint.Summary{Keff: [2]float64{1, 0}}
	for object, typ := range e.objects {
		if typ != domain.TypeNuclideDensities {
			continue
		}
		id, err := strconv.ParseInt(strings.TrimPrefix(object[strings.LastIndex(object, "/")+1:], "openmc_mat"), 10, 32)
		if err != nil {
			continue
		}
		names, err := values.VectorString(object + "/" + domain.ParamNames)
		if err != nil {
			return nil, err
		}
		dens, err := values.VectorReal(object + "/" + domain.ParamDensities)
		if err != nil {
			return nil, err
		}
		for i, n := 0, min(len(names), len(dens)); i < n; i++ {
			s.Rates = append(s.Rates, statepoint.Rate{Material: int32(id), Nuclide: names[i], Reaction: "fission", Value: dens[i]})
		}
	}
	return s, nil
}
