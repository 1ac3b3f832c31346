package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/aretw0/coupler"
	"github.com/aretw0/coupler/internal/config"
	"github.com/aretw0/coupler/internal/presentation/tui"
	emulator "github.com/aretw0/coupler/pkg/adapters/http"
	"github.com/aretw0/coupler/pkg/adapters/modelfile"
	"github.com/aretw0/coupler/pkg/deplete"
	"github.com/aretw0/coupler/pkg/domain"
	"github.com/aretw0/coupler/pkg/observability"
	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"
)

// RunOptions contains the configuration for the run command.
type RunOptions struct {
	ConfigPath string
	LogLevel   string
	RunID      string

	// Emulate serves the control API in-process instead of spawning the solver.
	Emulate bool
	// EmulateDelay is the emulated duration of one solver timestep.
	EmulateDelay time.Duration

	Quiet bool
	Out   io.Writer
}

// Run executes the configured depletion schedule against the solver.
func Run(ctx context.Context, opts RunOptions) error {
	cfg, err := loadConfig(opts.ConfigPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger, err := newLogger(cfg.Log, opts.LogLevel)
	if err != nil {
		return err
	}
	out := opts.Out
	if out == nil {
		out = io.Discard
	}

	model, err := modelfile.Load(cfg.Model.Path)
	if err != nil {
		return err
	}
	engine, err := model.Engine()
	if err != nil {
		return err
	}
	schedule, err := cfg.BuildSchedule()
	if err != nil {
		return err
	}
	integrator, err := deplete.NewIntegrator(cfg.Schedule.Integrator)
	if err != nil {
		return err
	}
	be, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer func() {
		if err := be.close(); err != nil {
			logger.Warn("failed to close store", "err", err)
		}
	}()

	hooks := observability.LogHooks(logger)
	var metrics *observability.Metrics
	if cfg.Metrics.Addr != "" {
		metrics = observability.NewMetrics()
		hooks = hooks.Merge(metrics.Hooks())
	}

	sessionOpts := []coupler.Option{
		coupler.WithLogger(logger),
		coupler.WithHooks(hooks),
		coupler.WithFirstOnly(cfg.Sync.FirstMaterialOnly),
	}
	if opts.Emulate {
		sessionOpts = append(sessionOpts, coupler.WithLauncher(emulator.NewLauncher(
			emulator.WithBatches(model.Batches),
			emulator.WithSolveDelay(opts.EmulateDelay),
			emulator.WithLogger(logger),
		)))
	}

	printer := tui.NewPrinter(out)
	if !opts.Quiet {
		printer.Banner(coupler.Version)
	}

	driverOpts := []deplete.Option{
		deplete.WithIntegrator(integrator),
		deplete.WithStore(be.store),
		deplete.WithFinalStep(cfg.Schedule.FinalStep),
		deplete.WithRunID(opts.RunID),
		deplete.WithLogger(logger),
	}
	if be.locker != nil {
		driverOpts = append(driverOpts, deplete.WithLock(be.locker, fmt.Sprintf("solver:%d", cfg.Solver.Port), cfg.Store.TTL))
	}
	if !opts.Quiet {
		driverOpts = append(driverOpts, deplete.WithObserver(printer.Step))
	}

	g, gctx := errgroup.WithContext(ctx)
	runCtx, stopMetrics := context.WithCancel(gctx)

	if metrics != nil {
		ln, err := net.Listen("tcp", cfg.Metrics.Addr)
		if err != nil {
			stopMetrics()
			return fmt.Errorf("metrics: %w", err)
		}
		g.Go(func() error {
			return serveMetrics(runCtx, ln, metrics.Handler(), logger)
		})
	}

	var records []domain.StepRecord
	var runID string
	g.Go(func() error {
		defer stopMetrics()
		return coupler.Use(runCtx, cfg.Controller(), engine, func(ctx context.Context, s *coupler.Session) error {
			driver := deplete.NewDriver(s.Operator, schedule, driverOpts...)
			runID = driver.RunID()
			var err error
			records, err = driver.Run(ctx)
			return err
		}, sessionOpts...)
	})

	err = g.Wait()
	if !opts.Quiet && len(records) > 0 {
		printer.Summary(runID, records)
	}
	if err != nil {
		if coupler.IsDesync(err) {
			return fmt.Errorf("solver out of step: %w", err)
		}
		return err
	}
	if !opts.Quiet {
		printSystemMessage(out, "Run %s finished: %d steps stored in %s store.", runID, len(records), cfg.Store.Kind)
	}
	return nil
}

func serveMetrics(ctx context.Context, ln net.Listener, h http.Handler, logger *slog.Logger) error {
	r := chi.NewRouter()
	r.Handle("/metrics", h)
	srv := &http.Server{Handler: r, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	logger.Info("metrics listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ExitInterrupted is the exit status of a run cut short by a signal.
const ExitInterrupted = 130

// ExitCode maps a command error to a process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case isInterrupted(err):
		return ExitInterrupted
	case config.IsConfigError(err):
		return 2
	}
	return 1
}
