package process

import (
	"fmt"
	"strconv"
	"strings"
)

// CommandConfig describes how the solver binary is invoked.
type CommandConfig struct {
	// Base is the solver command, e.g. "cardinal-opt -i openmc.i".
	Base string `yaml:"command" json:"command" mapstructure:"command"`

	// MPIRanks > 0 prefixes the command with "<MPIExec> -n <ranks>".
	MPIRanks int    `yaml:"mpi_ranks" json:"mpi_ranks" mapstructure:"mpi_ranks"`
	MPIExec  string `yaml:"mpiexec" json:"mpiexec" mapstructure:"mpiexec"`

	// Threads > 0 appends --n-threads=<threads>.
	Threads int `yaml:"threads" json:"threads" mapstructure:"threads"`
}

// DefaultMPIExec is the MPI launcher used when none is configured.
const DefaultMPIExec = "mpiexec"

// Argv assembles the full command line: launcher prefix, base command,
// extra input files and overrides, then the thread flag.
func (c CommandConfig) Argv(extra ...string) ([]string, error) {
	base := strings.Fields(c.Base)
	if len(base) == 0 {
		return nil, fmt.Errorf("no solver command configured")
	}
	if c.MPIRanks < 0 {
		return nil, fmt.Errorf("mpi_ranks must not be negative, got %d", c.MPIRanks)
	}
	if c.Threads < 0 {
		return nil, fmt.Errorf("threads must not be negative, got %d", c.Threads)
	}

	var argv []string
	if c.MPIRanks > 0 {
		launcher := c.MPIExec
		if launcher == "" {
			launcher = DefaultMPIExec
		}
		argv = append(argv, launcher, "-n", strconv.Itoa(c.MPIRanks))
	}
	argv = append(argv, base...)
	argv = append(argv, extra...)
	if c.Threads > 0 {
		argv = append(argv, "--n-threads="+strconv.Itoa(c.Threads))
	}
	return argv, nil
}

// Quote renders argv as one shell-safe line, for command files and logs.
func Quote(argv []string) string {
	parts := make([]string, len(argv))
	for i, a := range argv {
		if a != "" && !strings.ContainsAny(a, " \t\n'\"\\$`*?[]{}()<>|&;#~") {
			parts[i] = a
			continue
		}
		parts[i] = "'" + strings.ReplaceAll(a, "'", `'\''`) + "'"
	}
	return strings.Join(parts, " ")
}
