package http

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/aretw0/coupler/pkg/ports"
)

// Launcher implements ports.Launcher by serving an Emulator in-process on
// the webserver port declared in the launch arguments. Statepoints go to
// the launch directory unless WithOutputDir is given.
type Launcher struct {
	host string
	opts []EmulatorOption
}

var _ ports.Launcher = (*Launcher)(nil)

// NewLauncher creates a launcher listening on 127.0.0.1.
func NewLauncher(opts ...EmulatorOption) *Launcher {
	return &Launcher{host: "127.0.0.1", opts: opts}
}

// Launch starts one emulator.
func (l *Launcher) Launch(ctx context.Context, spec ports.LaunchSpec) (ports.Process, error) {
	opts := []EmulatorOption{}
	if spec.Dir != "" {
		opts = append(opts, WithOutputDir(spec.Dir))
	}
	em, err := NewEmulator(spec.Argv, append(opts, l.opts...)...)
	if err != nil {
		return nil, fmt.Errorf("spawn error: %w", err)
	}
	ln, err := net.Listen("tcp", net.JoinHostPort(l.host, fmt.Sprint(em.Port())))
	if err != nil {
		return nil, fmt.Errorf("spawn error: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	p := &process{em: em, cancel: cancel, done: make(chan struct{})}
	go func() {
		p.err = serveListener(runCtx, ln, em)
		close(p.done)
	}()
	return p, nil
}

// process is an emulator served in a goroutine.
type process struct {
	em     *Emulator
	cancel context.CancelFunc
	done   chan struct{}
	err    error
	once   sync.Once
}

func (p *process) PID() int              { return 0 }
func (p *process) Done() <-chan struct{} { return p.done }

func (p *process) Err() error {
	select {
	case <-p.done:
		return p.err
	default:
		return nil
	}
}

// Emulator exposes the served emulator.
func (p *process) Emulator() *Emulator { return p.em }

func (p *process) Stop(ctx context.Context) error {
	p.once.Do(p.cancel)
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
