// Package controller owns the lifecycle of one external solver process and
// its control channel: start, wait for a suspension point, continue, set
// controllable values and stop.
package controller

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aretw0/coupler/internal/logging"
	"github.com/aretw0/coupler/pkg/adapters/process"
	"github.com/aretw0/coupler/pkg/adapters/webcontrol"
	"github.com/aretw0/coupler/pkg/controllable"
	"github.com/aretw0/coupler/pkg/domain"
	"github.com/aretw0/coupler/pkg/ports"
)

// terminateTimeout bounds the best-effort terminate request on Stop.
const terminateTimeout = 2 * time.Second

// SnapshotSource provides the objects to mirror when the solver starts.
type SnapshotSource interface {
	Snapshot() domain.Snapshot
}

// ChannelFactory creates the control channel for a server URL.
type ChannelFactory func(url string) ports.ControlChannel

// Controller drives one external solver process.
// It is meant for a single caller; only Stop may be called concurrently.
type Controller struct {
	cfg        Config
	source     SnapshotSource
	launcher   ports.Launcher
	newChannel ChannelFactory
	logger     *slog.Logger
	hooks      domain.Hooks

	mu       sync.Mutex
	status   domain.ControllerStatus
	flag     domain.ExecFlag
	proc     ports.Process
	channel  ports.ControlChannel
	declared *controllable.Registry
	argv     []string
}

// Option configures the Controller.
type Option func(*Controller)

// WithLauncher replaces the process launcher.
func WithLauncher(l ports.Launcher) Option {
	return func(c *Controller) {
		c.launcher = l
	}
}

// WithChannelFactory replaces how the control channel is created.
func WithChannelFactory(f ChannelFactory) Option {
	return func(c *Controller) {
		c.newChannel = f
	}
}

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithHooks registers lifecycle callbacks.
func WithHooks(h domain.Hooks) Option {
	return func(c *Controller) {
		c.hooks = c.hooks.Merge(h)
	}
}

// New validates cfg and creates a controller in the not-started state.
func New(cfg Config, source SnapshotSource, opts ...Option) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if source == nil {
		return nil, fmt.Errorf("controller requires a snapshot source")
	}
	c := &Controller{
		cfg:      cfg,
		source:   source,
		logger:   logging.NewNop(),
		status:   domain.StatusNotStarted,
		declared: controllable.NewRegistry(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "controller")
	if c.launcher == nil {
		c.launcher = process.NewLauncher(
			process.WithTerminationGrace(cfg.TerminationGrace),
			process.WithLogger(c.logger),
		)
	}
	if c.newChannel == nil {
		c.newChannel = func(url string) ports.ControlChannel {
			return webcontrol.New(url, webcontrol.WithLogger(c.logger))
		}
	}
	return c, nil
}

// Status returns the client-observed state of the solver.
func (c *Controller) Status() domain.ControllerStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Flag returns the suspension point last observed, or FlagAny while running.
func (c *Controller) Flag() domain.ExecFlag {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flag
}

// Argv returns the command line of the started process.
func (c *Controller) Argv() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.argv...)
}

// Declared returns a copy of the controllables declared at start with their
// last pushed values.
func (c *Controller) Declared() *controllable.Registry {
	return c.registry().Clone()
}

func (c *Controller) registry() *controllable.Registry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.declared
}

// URL returns the control server address.
func (c *Controller) URL() string { return c.cfg.URL() }

// Prepare builds the command line and input tree for the current snapshot
// and writes the command and input files, without starting anything.
func (c *Controller) Prepare() ([]string, error) {
	input := BuildInput(c.source.Snapshot(), c.cfg.Port)
	argv, err := c.cfg.Command.Argv(input.Args()...)
	if err != nil {
		return nil, &domain.ConfigError{Key: "solver.command", Reason: err.Error()}
	}

	if err := os.MkdirAll(c.cfg.WorkDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create work directory: %w", err)
	}
	commandPath := filepath.Join(c.cfg.WorkDir, c.cfg.CommandFile)
	if err := os.WriteFile(commandPath, []byte(process.Quote(argv)+"\n"), 0644); err != nil {
		return nil, fmt.Errorf("failed to write command file: %w", err)
	}
	inputPath := filepath.Join(c.cfg.WorkDir, c.cfg.InputFile)
	if err := os.WriteFile(inputPath, []byte(input.Render()), 0644); err != nil {
		return nil, fmt.Errorf("failed to write input file: %w", err)
	}

	declared := controllable.NewRegistry()
	if err := declare(input, declared); err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.declared = declared
	c.mu.Unlock()
	return argv, nil
}

// Start launches the solver and blocks until its control channel answers.
// Calling Start on a started controller is a no-op.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	status := c.status
	c.mu.Unlock()
	switch status {
	case domain.StatusStopped:
		return domain.ErrStopped
	case domain.StatusWaiting, domain.StatusRunning:
		return nil
	}

	start := time.Now()
	argv, err := c.Prepare()
	if err != nil {
		return err
	}

	c.logger.Info("starting solver", "url", c.cfg.URL(), "workdir", c.cfg.WorkDir, "controllables", c.registry().Len())
	proc, err := c.launcher.Launch(ctx, ports.LaunchSpec{
		Argv:    argv,
		Dir:     c.cfg.WorkDir,
		LogPath: filepath.Join(c.cfg.WorkDir, c.cfg.LogFile),
	})
	if err != nil {
		return fmt.Errorf("failed to launch solver: %w", err)
	}
	channel := c.newChannel(c.cfg.URL())

	c.mu.Lock()
	c.proc = proc
	c.channel = channel
	c.argv = argv
	c.status = domain.StatusRunning
	c.flag = domain.FlagAny
	c.mu.Unlock()

	attempts, err := c.cfg.Retry.poll(ctx, channel.URL(), proc.Done(), proc.Err, func(ctx context.Context) (bool, error) {
		return true, channel.Check(ctx)
	})
	c.emit(ctx, c.hooks.OnStart, &domain.ControlEvent{
		EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventStart},
		Attempts:  attempts,
		Duration:  time.Since(start),
		Err:       err,
	})
	if err != nil {
		c.logger.Error("solver did not become ready", "attempts", attempts, "error", err)
		if stopErr := c.Stop(context.WithoutCancel(ctx)); stopErr != nil {
			c.logger.Warn("cleanup after failed start", "error", stopErr)
		}
		return err
	}
	c.logger.Info("solver ready", "pid", proc.PID(), "attempts", attempts, "duration", time.Since(start))
	return nil
}

func (c *Controller) live() (ports.ControlChannel, ports.Process, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.status {
	case domain.StatusNotStarted:
		return nil, nil, domain.ErrNotStarted
	case domain.StatusStopped:
		return nil, nil, domain.ErrStopped
	}
	return c.channel, c.proc, nil
}

// Wait polls the control channel until the solver is suspended and returns
// the flag it is suspended at. A non-empty expected flag that differs from
// the observed one is a *domain.DesyncError.
func (c *Controller) Wait(ctx context.Context, expected domain.ExecFlag) (domain.ExecFlag, error) {
	channel, proc, err := c.live()
	if err != nil {
		return domain.FlagAny, err
	}

	c.logger.Debug("waiting for solver", "expected", expected)
	start := time.Now()
	var observed domain.ExecFlag
	attempts, err := c.cfg.Retry.poll(ctx, channel.URL(), proc.Done(), proc.Err, func(ctx context.Context) (bool, error) {
		st, err := channel.Waiting(ctx)
		if err != nil || !st.Waiting {
			return false, err
		}
		observed = st.Flag
		return true, nil
	})
	if err == nil && !expected.Matches(observed) {
		err = &domain.DesyncError{Expected: expected, Observed: observed}
	}
	if err == nil {
		c.mu.Lock()
		c.status = domain.StatusWaiting
		c.flag = observed
		c.mu.Unlock()
		c.logger.Debug("solver waiting", "flag", observed, "attempts", attempts)
	}

	c.emit(ctx, c.hooks.OnWait, &domain.ControlEvent{
		EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventWait},
		Flag:      observed,
		Attempts:  attempts,
		Duration:  time.Since(start),
		Err:       err,
	})
	return observed, err
}

// Continue resumes the suspended solver. It does not wait for the next
// suspension point.
func (c *Controller) Continue(ctx context.Context) error {
	channel, _, err := c.live()
	if err != nil {
		return err
	}
	c.mu.Lock()
	from := c.flag
	waiting := c.status == domain.StatusWaiting
	c.mu.Unlock()
	if !waiting {
		return domain.ErrNotWaiting
	}

	c.logger.Debug("continuing solver", "from", from)
	start := time.Now()
	err = channel.Continue(ctx)
	if err == nil {
		c.mu.Lock()
		c.status = domain.StatusRunning
		c.flag = domain.FlagAny
		c.mu.Unlock()
	}
	c.emit(ctx, c.hooks.OnContinue, &domain.ControlEvent{
		EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventContinue},
		Flag:      from,
		Duration:  time.Since(start),
		Err:       err,
	})
	if err != nil {
		return fmt.Errorf("continue: %w", err)
	}
	return nil
}

// Set pushes one controllable value. The solver must be suspended and the
// path must have been declared at start with the same kind.
func (c *Controller) Set(ctx context.Context, ctl domain.Controllable) error {
	channel, _, err := c.live()
	if err != nil {
		return err
	}
	if c.Status() != domain.StatusWaiting {
		return fmt.Errorf("set %s: %w", ctl.Path, domain.ErrNotWaiting)
	}
	declared := c.registry()
	if err := declared.Check(ctl); err != nil {
		return err
	}

	start := time.Now()
	err = channel.SetControllable(ctx, ctl)
	if err == nil {
		err = declared.Put(ctl)
	}
	c.emit(ctx, c.hooks.OnSet, &domain.ControlEvent{
		EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventSet},
		Flag:      c.Flag(),
		Path:      ctl.Path,
		Kind:      ctl.Kind,
		Duration:  time.Since(start),
		Err:       err,
	})
	if err != nil {
		return fmt.Errorf("set %s: %w", ctl.Path, err)
	}
	return nil
}

// SetReal pushes a scalar.
func (c *Controller) SetReal(ctx context.Context, path string, v float64) error {
	return c.Set(ctx, domain.Controllable{Path: path, Kind: domain.KindReal, Value: v})
}

// SetString pushes a string.
func (c *Controller) SetString(ctx context.Context, path, v string) error {
	return c.Set(ctx, domain.Controllable{Path: path, Kind: domain.KindString, Value: v})
}

// SetVectorString pushes a list of strings.
func (c *Controller) SetVectorString(ctx context.Context, path string, v []string) error {
	if v == nil {
		v = []string{}
	}
	return c.Set(ctx, domain.Controllable{Path: path, Kind: domain.KindVectorString, Value: v})
}

// SetVectorReal pushes a list of reals.
func (c *Controller) SetVectorReal(ctx context.Context, path string, v []float64) error {
	if v == nil {
		v = []float64{}
	}
	return c.Set(ctx, domain.Controllable{Path: path, Kind: domain.KindVectorReal, Value: v})
}

// Stop asks the solver to terminate, then signals its process group.
// It is safe to call on a stopped or never-started controller.
func (c *Controller) Stop(ctx context.Context) error {
	c.mu.Lock()
	prev := c.status
	proc, channel := c.proc, c.channel
	c.status = domain.StatusStopped
	c.flag = domain.FlagAny
	c.mu.Unlock()

	if prev == domain.StatusStopped || proc == nil {
		return nil
	}

	start := time.Now()
	select {
	case <-proc.Done():
	default:
		tctx, cancel := context.WithTimeout(ctx, terminateTimeout)
		if err := channel.Terminate(tctx); err != nil {
			c.logger.Debug("terminate request failed", "error", err)
		}
		cancel()
	}
	err := proc.Stop(ctx)
	c.emit(ctx, c.hooks.OnStop, &domain.ControlEvent{
		EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventStop},
		Duration:  time.Since(start),
		Err:       err,
	})
	if err != nil {
		return fmt.Errorf("failed to stop solver: %w", err)
	}
	c.logger.Info("solver stopped", "pid", proc.PID())
	return nil
}

func (c *Controller) emit(ctx context.Context, hook func(context.Context, *domain.ControlEvent), ev *domain.ControlEvent) {
	if hook != nil {
		hook(ctx, ev)
	}
}
