// Package config loads the coordinator's YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aretw0/coupler/pkg/adapters/process"
	"github.com/aretw0/coupler/pkg/controller"
	"github.com/aretw0/coupler/pkg/deplete"
	"github.com/aretw0/coupler/pkg/domain"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// CommandEnv supplies the solver base command when the file sets none.
const CommandEnv = "RUNAPP_COMMAND"

// Store kinds.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
)

// SolverConfig describes the external solver and its control server.
type SolverConfig struct {
	process.CommandConfig `yaml:",inline" mapstructure:",squash"`

	Port             int           `yaml:"port" mapstructure:"port"`
	BaseURL          string        `yaml:"base_url" mapstructure:"base_url"`
	WorkDir          string        `yaml:"workdir" mapstructure:"workdir"`
	LogFile          string        `yaml:"log_file" mapstructure:"log_file"`
	CommandFile      string        `yaml:"command_file" mapstructure:"command_file"`
	InputFile        string        `yaml:"input_file" mapstructure:"input_file"`
	TerminationGrace time.Duration `yaml:"termination_grace" mapstructure:"termination_grace"`
}

// SyncConfig tunes which objects are mirrored to the solver.
type SyncConfig struct {
	FirstMaterialOnly bool `yaml:"first_material_only" mapstructure:"first_material_only"`
}

// ModelConfig points at the transport model.
type ModelConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// ScheduleConfig is the depletion schedule.
type ScheduleConfig struct {
	Timesteps   []float64 `yaml:"timesteps" mapstructure:"timesteps"`
	Units       string    `yaml:"units" mapstructure:"units"`
	SourceRates []float64 `yaml:"source_rates" mapstructure:"source_rates"`
	Integrator  string    `yaml:"integrator" mapstructure:"integrator"`
	FinalStep   bool      `yaml:"final_step" mapstructure:"final_step"`
}

// StoreConfig selects where step records go.
type StoreConfig struct {
	Kind     string        `yaml:"kind" mapstructure:"kind"`
	Path     string        `yaml:"path" mapstructure:"path"`
	Addr     string        `yaml:"addr" mapstructure:"addr"`
	Password string        `yaml:"password" mapstructure:"password"`
	DB       int           `yaml:"db" mapstructure:"db"`
	Prefix   string        `yaml:"prefix" mapstructure:"prefix"`
	TTL      time.Duration `yaml:"ttl" mapstructure:"ttl"`
	Lock     bool          `yaml:"lock" mapstructure:"lock"`
}

// MetricsConfig exposes prometheus metrics when Addr is set.
type MetricsConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr"`
}

// LogConfig configures the structured logger.
type LogConfig struct {
	Level string `yaml:"level" mapstructure:"level"`
	JSON  bool   `yaml:"json" mapstructure:"json"`
}

// Config is the whole coordinator configuration.
type Config struct {
	Solver   SolverConfig           `yaml:"solver" mapstructure:"solver"`
	Retry    controller.RetryPolicy `yaml:"retry" mapstructure:"retry"`
	Sync     SyncConfig             `yaml:"sync" mapstructure:"sync"`
	Model    ModelConfig            `yaml:"model" mapstructure:"model"`
	Schedule ScheduleConfig         `yaml:"schedule" mapstructure:"schedule"`
	Store    StoreConfig            `yaml:"store" mapstructure:"store"`
	Metrics  MetricsConfig          `yaml:"metrics" mapstructure:"metrics"`
	Log      LogConfig              `yaml:"log" mapstructure:"log"`
}

// DefaultConfig returns the configuration used for unset keys.
func DefaultConfig() Config {
	ctl := controller.DefaultConfig()
	return Config{
		Solver: SolverConfig{
			CommandConfig:    ctl.Command,
			Port:             ctl.Port,
			BaseURL:          ctl.BaseURL,
			WorkDir:          ctl.WorkDir,
			LogFile:          ctl.LogFile,
			CommandFile:      ctl.CommandFile,
			InputFile:        ctl.InputFile,
			TerminationGrace: ctl.TerminationGrace,
		},
		Retry: ctl.Retry,
		Schedule: ScheduleConfig{
			Units:      string(deplete.Seconds),
			Integrator: "hold",
			FinalStep:  true,
		},
		Store: StoreConfig{Kind: StoreMemory},
		Log:   LogConfig{Level: "info"},
	}
}

// Load reads path over the defaults and applies the environment overlay.
// An empty path yields the defaults. The result is not validated.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config: %w", err)
		}
		if err := Decode(data, &cfg); err != nil {
			return cfg, fmt.Errorf("%s: %w", path, err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

// Decode merges YAML data into cfg. Unknown keys are errors.
func Decode(data []byte, cfg *Config) error {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("invalid yaml: %w", err)
	}
	if raw == nil {
		return nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:  mapstructure.StringToTimeDurationHookFunc(),
		ErrorUnused: true,
		Result:      cfg,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(raw); err != nil {
		return &domain.ConfigError{Key: "config", Reason: err.Error()}
	}
	return nil
}

func (c *Config) applyEnv() {
	if strings.TrimSpace(c.Solver.Base) != "" {
		return
	}
	if cmd, ok := os.LookupEnv(CommandEnv); ok {
		c.Solver.Base = cmd
	}
}

// Controller returns the solver lifecycle configuration.
func (c Config) Controller() controller.Config {
	return controller.Config{
		Command:          c.Solver.CommandConfig,
		Port:             c.Solver.Port,
		BaseURL:          c.Solver.BaseURL,
		WorkDir:          c.Solver.WorkDir,
		LogFile:          c.Solver.LogFile,
		CommandFile:      c.Solver.CommandFile,
		InputFile:        c.Solver.InputFile,
		TerminationGrace: c.Solver.TerminationGrace,
		Retry:            c.Retry,
	}
}

// BuildSchedule converts the schedule section.
func (c Config) BuildSchedule() (deplete.Schedule, error) {
	s, err := deplete.NewSchedule(c.Schedule.Timesteps, deplete.Unit(c.Schedule.Units), c.Schedule.SourceRates)
	if err != nil {
		return s, &domain.ConfigError{Key: "schedule", Reason: err.Error()}
	}
	return s, nil
}

// Validate checks every section that Run depends on.
func (c Config) Validate() error {
	if err := c.Controller().Validate(); err != nil {
		return err
	}
	if c.Model.Path == "" {
		return &domain.ConfigError{Key: "model.path", Reason: "no model file configured"}
	}
	if _, err := c.BuildSchedule(); err != nil {
		return err
	}
	if _, err := deplete.NewIntegrator(c.Schedule.Integrator); err != nil {
		return &domain.ConfigError{Key: "schedule.integrator", Reason: err.Error(), Value: c.Schedule.Integrator}
	}
	switch c.Store.Kind {
	case StoreMemory, StoreFile:
	case StoreRedis:
		if c.Store.Addr == "" {
			return &domain.ConfigError{Key: "store.addr", Reason: "redis store needs an address"}
		}
	default:
		return &domain.ConfigError{Key: "store.kind", Reason: "must be memory, file or redis", Value: c.Store.Kind}
	}
	if c.Store.Lock && c.Store.Kind != StoreRedis {
		return &domain.ConfigError{Key: "store.lock", Reason: "run locks need the redis store"}
	}
	if c.Store.TTL < 0 {
		return &domain.ConfigError{Key: "store.ttl", Reason: "must not be negative", Value: c.Store.TTL}
	}
	return nil
}

// IsConfigError reports whether err is a configuration problem.
func IsConfigError(err error) bool {
	var ce *domain.ConfigError
	return errors.As(err, &ce)
}
