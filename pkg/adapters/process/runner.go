// Package process launches and supervises the external solver as a
// long-running child process.
package process

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/aretw0/coupler/internal/logging"
	"github.com/aretw0/coupler/pkg/ports"
)

// DefaultTerminationGrace is how long a process gets between SIGTERM and SIGKILL.
const DefaultTerminationGrace = 5 * time.Second

// Launcher implements ports.Launcher with os/exec.
// Each process runs in its own process group so that MPI launchers and
// their ranks are signalled together.
type Launcher struct {
	grace  time.Duration
	logger *slog.Logger
}

var _ ports.Launcher = (*Launcher)(nil)

// LauncherOption configures the launcher.
type LauncherOption func(*Launcher)

// WithTerminationGrace sets the delay between SIGTERM and SIGKILL on Stop.
func WithTerminationGrace(d time.Duration) LauncherOption {
	return func(l *Launcher) {
		l.grace = d
	}
}

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) LauncherOption {
	return func(l *Launcher) {
		l.logger = logger
	}
}

// NewLauncher creates a new process Launcher.
func NewLauncher(opts ...LauncherOption) *Launcher {
	l := &Launcher{
		grace:  DefaultTerminationGrace,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Launch starts spec.Argv. The context only bounds the start itself; the
// process lives until it exits or Stop is called.
func (l *Launcher) Launch(ctx context.Context, spec ports.LaunchSpec) (ports.Process, error) {
	if len(spec.Argv) == 0 {
		return nil, errors.New("empty command")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cmd := exec.Command(spec.Argv[0], spec.Argv[1:]...)
	cmd.Dir = spec.Dir
	cmd.Env = append(os.Environ(), spec.Env...)
	setProcessGroup(cmd)

	var logFile *os.File
	if spec.LogPath != "" {
		if err := os.MkdirAll(filepath.Dir(spec.LogPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.Create(spec.LogPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create log file: %w", err)
		}
		logFile = f
		cmd.Stdout = f
		cmd.Stderr = f
	}

	if err := cmd.Start(); err != nil {
		if logFile != nil {
			_ = logFile.Close()
		}
		return nil, fmt.Errorf("spawn error: %w", err)
	}

	p := &Process{
		cmd:     cmd,
		done:    make(chan struct{}),
		grace:   l.grace,
		logger:  l.logger.With("pid", cmd.Process.Pid),
		logFile: logFile,
	}
	go p.wait()

	p.logger.Info("solver process started", "argv0", spec.Argv[0], "args_len", len(spec.Argv)-1, "log", spec.LogPath)
	return p, nil
}

// Process is a child started by Launcher.
type Process struct {
	cmd     *exec.Cmd
	done    chan struct{}
	err     error
	grace   time.Duration
	logger  *slog.Logger
	logFile *os.File

	stopOnce sync.Once
}

var _ ports.Process = (*Process)(nil)

func (p *Process) wait() {
	err := p.cmd.Wait()
	if p.logFile != nil {
		_ = p.logFile.Close()
	}
	p.err = err
	close(p.done)
}

// PID returns the operating system process id.
func (p *Process) PID() int { return p.cmd.Process.Pid }

// Done is closed once the process has exited.
func (p *Process) Done() <-chan struct{} { return p.done }

// Err returns the exit error after Done is closed, nil before.
func (p *Process) Err() error {
	select {
	case <-p.done:
		return p.err
	default:
		return nil
	}
}

// Stop sends SIGTERM to the process group, then SIGKILL once the grace
// period or ctx runs out, and waits for the exit.
func (p *Process) Stop(ctx context.Context) error {
	p.stopOnce.Do(func() {
		select {
		case <-p.done:
			return
		default:
		}

		p.logger.Info("terminating solver process")
		if err := terminate(p.cmd); err != nil {
			p.logger.Warn("SIGTERM failed", "error", err)
		}

		timer := time.NewTimer(p.grace)
		defer timer.Stop()
		select {
		case <-p.done:
			return
		case <-timer.C:
		case <-ctx.Done():
		}

		p.logger.Warn("solver process ignored SIGTERM, killing", "grace", p.grace)
		if err := kill(p.cmd); err != nil {
			p.logger.Warn("SIGKILL failed", "error", err)
		}
	})
	<-p.done
	return nil
}
