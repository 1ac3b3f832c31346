package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	emulator "github.com/aretw0/coupler/pkg/adapters/http"
	"github.com/aretw0/coupler/pkg/adapters/modelfile"
	"github.com/aretw0/coupler/pkg/controller"
)

// EmulateOptions contains the configuration for the emulate command.
type EmulateOptions struct {
	// Args are solver overrides. When empty they are built from the config.
	Args       []string
	ConfigPath string
	Host       string
	Port       int // overrides the declared webserver port when positive
	Batches    int
	OutputDir  string
	Delay      time.Duration
	LogLevel   string
	Out        io.Writer
}

// Emulate serves a control API emulator until it is terminated or ctx ends.
func Emulate(ctx context.Context, opts EmulateOptions) error {
	cfg, err := loadConfig(opts.ConfigPath)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.Log, opts.LogLevel)
	if err != nil {
		return err
	}

	args := opts.Args
	batches := opts.Batches
	if len(args) == 0 {
		if cfg.Model.Path == "" {
			return fmt.Errorf("emulate needs solver arguments or a config with a model")
		}
		model, err := modelfile.Load(cfg.Model.Path)
		if err != nil {
			return err
		}
		input := controller.BuildInput(model.Snapshot(), cfg.Solver.Port)
		args = input.Args()
		if batches <= 0 {
			batches = model.Batches
		}
	}
	if batches <= 0 {
		batches = 1
	}
	outDir := opts.OutputDir
	if outDir == "" {
		outDir = cfg.Solver.WorkDir
	}

	em, err := emulator.NewEmulator(args,
		emulator.WithBatches(batches),
		emulator.WithOutputDir(outDir),
		emulator.WithSolveDelay(opts.Delay),
		emulator.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	port := em.Port()
	if opts.Port > 0 {
		port = opts.Port
	}
	if port <= 0 {
		port = cfg.Solver.Port
	}

	addr := fmt.Sprintf("%s:%d", opts.Host, port)
	if opts.Out != nil {
		printSystemMessage(opts.Out, "Emulating %d controllables on %s (statepoints in %s).", em.Values().Len(), addr, outDir)
	}
	return emulator.Serve(ctx, addr, em)
}
