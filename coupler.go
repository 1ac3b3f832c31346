package coupler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/coupler/internal/logging"
	"github.com/aretw0/coupler/pkg/controller"
	"github.com/aretw0/coupler/pkg/domain"
	"github.com/aretw0/coupler/pkg/operator"
	"github.com/aretw0/coupler/pkg/ports"
)

// Session couples one transport engine to one external solver.
type Session struct {
	Engine     ports.TransportEngine
	Controller *controller.Controller
	Operator   *operator.Operator

	logger *slog.Logger
}

type options struct {
	logger     *slog.Logger
	hooks      domain.Hooks
	launcher   ports.Launcher
	channels   controller.ChannelFactory
	firstOnly  bool
	normalizer operator.Normalizer
	outputDir  string
}

// Option configures a Session.
type Option func(*options)

// WithLogger sets the structured logger of every component.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithHooks registers observability callbacks on the controller and the operator.
func WithHooks(h domain.Hooks) Option {
	return func(o *options) {
		o.hooks = o.hooks.Merge(h)
	}
}

// WithLauncher replaces the subprocess launcher.
func WithLauncher(l ports.Launcher) Option {
	return func(o *options) {
		o.launcher = l
	}
}

// WithChannelFactory replaces the HTTP control client.
func WithChannelFactory(f controller.ChannelFactory) Option {
	return func(o *options) {
		o.channels = f
	}
}

// WithFirstOnly mirrors only the first material and tally to the solver.
func WithFirstOnly(enabled bool) Option {
	return func(o *options) {
		o.firstOnly = enabled
	}
}

// WithNormalizer replaces the source-rate normalization.
func WithNormalizer(n operator.Normalizer) Option {
	return func(o *options) {
		o.normalizer = n
	}
}

// WithOutputDir sets where statepoints are read from. Defaults to the
// solver working directory.
func WithOutputDir(dir string) Option {
	return func(o *options) {
		o.outputDir = dir
	}
}

// New wires a session. Nothing is started until the operator's
// InitialCondition or Step runs.
func New(cfg controller.Config, engine ports.TransportEngine, opts ...Option) (*Session, error) {
	o := options{logger: logging.NewNop(), outputDir: cfg.WorkDir}
	for _, opt := range opts {
		opt(&o)
	}

	ctlOpts := []controller.Option{controller.WithLogger(o.logger), controller.WithHooks(o.hooks)}
	if o.launcher != nil {
		ctlOpts = append(ctlOpts, controller.WithLauncher(o.launcher))
	}
	if o.channels != nil {
		ctlOpts = append(ctlOpts, controller.WithChannelFactory(o.channels))
	}
	ctl, err := controller.New(cfg, engine, ctlOpts...)
	if err != nil {
		return nil, err
	}

	opOpts := []operator.Option{
		operator.WithLogger(o.logger),
		operator.WithHooks(o.hooks),
		operator.WithFirstOnly(o.firstOnly),
		operator.WithOutputDir(o.outputDir),
	}
	if o.normalizer != nil {
		opOpts = append(opOpts, operator.WithNormalizer(o.normalizer))
	}
	op, err := operator.New(engine, ctl, opOpts...)
	if err != nil {
		return nil, err
	}
	return &Session{Engine: engine, Controller: ctl, Operator: op, logger: o.logger}, nil
}

// Close stops the solver. Safe to call more than once.
func (s *Session) Close(ctx context.Context) error {
	return s.Operator.Close(ctx)
}

// Use runs fn with a fresh session and stops the solver afterwards, even
// when fn fails or panics.
func Use(ctx context.Context, cfg controller.Config, engine ports.TransportEngine, fn func(context.Context, *Session) error, opts ...Option) (err error) {
	s, err := New(cfg, engine, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(context.WithoutCancel(ctx)); cerr != nil {
			s.logger.Warn("failed to stop solver", "err", cerr)
			if err == nil {
				err = fmt.Errorf("close: %w", cerr)
			}
		}
	}()
	return fn(ctx, s)
}

// IsDesync reports whether err comes from a solver suspended at an
// unexpected flag.
func IsDesync(err error) bool {
	var de *domain.DesyncError
	return errors.As(err, &de)
}
