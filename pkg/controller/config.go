package controller

import (
	"time"

	"github.com/aretw0/coupler/pkg/adapters/process"
	"github.com/aretw0/coupler/pkg/adapters/webcontrol"
	"github.com/aretw0/coupler/pkg/domain"
)

// Config is everything the controller needs to start one solver process.
type Config struct {
	Command process.CommandConfig

	// Port is the control server port; BaseURL is joined with it.
	Port    int
	BaseURL string

	// WorkDir receives the log, command and input files.
	WorkDir     string
	LogFile     string
	CommandFile string
	InputFile   string

	// TerminationGrace is the delay between SIGTERM and SIGKILL on Stop.
	TerminationGrace time.Duration

	Retry RetryPolicy
}

// DefaultConfig returns a configuration with every field but the command set.
func DefaultConfig() Config {
	return Config{
		Port:             webcontrol.DefaultPort,
		BaseURL:          webcontrol.DefaultBaseURL,
		WorkDir:          ".",
		LogFile:          "solver.out",
		CommandFile:      "command.txt",
		InputFile:        "server.i",
		TerminationGrace: process.DefaultTerminationGrace,
		Retry:            DefaultRetryPolicy(),
	}
}

// URL returns the control server address.
func (c Config) URL() string {
	return webcontrol.URLFor(c.BaseURL, c.Port)
}

// Validate fails fast with a *domain.ConfigError.
func (c Config) Validate() error {
	if len(splitCommand(c.Command.Base)) == 0 {
		return &domain.ConfigError{Key: "solver.command", Reason: "no base command configured (set it or RUNAPP_COMMAND)"}
	}
	if c.Port <= 0 || c.Port > 65535 {
		return &domain.ConfigError{Key: "solver.port", Reason: "must be within 1-65535", Value: c.Port}
	}
	if c.BaseURL == "" {
		return &domain.ConfigError{Key: "solver.base_url", Reason: "must not be empty"}
	}
	if c.Command.Threads < 0 {
		return &domain.ConfigError{Key: "solver.threads", Reason: "must not be negative", Value: c.Command.Threads}
	}
	if c.Command.MPIRanks < 0 {
		return &domain.ConfigError{Key: "solver.mpi_ranks", Reason: "must not be negative", Value: c.Command.MPIRanks}
	}
	for key, name := range map[string]string{
		"solver.log_file":     c.LogFile,
		"solver.command_file": c.CommandFile,
		"solver.input_file":   c.InputFile,
	} {
		if name == "" {
			return &domain.ConfigError{Key: key, Reason: "must not be empty"}
		}
	}
	if c.TerminationGrace < 0 {
		return &domain.ConfigError{Key: "solver.termination_grace", Reason: "must not be negative", Value: c.TerminationGrace}
	}
	return c.Retry.Validate()
}
