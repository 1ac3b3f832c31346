package cli

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/aretw0/coupler/pkg/adapters/modelfile"
	"github.com/aretw0/coupler/pkg/adapters/process"
	"github.com/aretw0/coupler/pkg/controller"
)

// InputOptions contains the configuration for the input command.
type InputOptions struct {
	ConfigPath string
	Out        io.Writer
}

// WriteInput writes the solver command and input files for the configured
// model without launching anything, and prints the command line.
func WriteInput(opts InputOptions) error {
	cfg, err := loadConfig(opts.ConfigPath)
	if err != nil {
		return err
	}
	if cfg.Model.Path == "" {
		return fmt.Errorf("no model file configured")
	}
	engine, err := modelfile.Open(cfg.Model.Path)
	if err != nil {
		return err
	}
	ctl, err := controller.New(cfg.Controller(), engine)
	if err != nil {
		return err
	}
	argv, err := ctl.Prepare()
	if err != nil {
		return err
	}

	if opts.Out != nil {
		fmt.Fprintln(opts.Out, process.Quote(argv))
		printSystemMessage(opts.Out, "Wrote %s and %s (%d controllables).",
			filepath.Join(cfg.Solver.WorkDir, cfg.Solver.CommandFile),
			filepath.Join(cfg.Solver.WorkDir, cfg.Solver.InputFile),
			ctl.Declared().Len())
	}
	return nil
}
