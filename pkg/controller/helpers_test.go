package controller_test

import (
	"context"
	"fmt"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	emulator "github.com/aretw0/coupler/pkg/adapters/http"
	"github.com/aretw0/coupler/pkg/adapters/memory"
	"github.com/aretw0/coupler/pkg/adapters/webcontrol"
	"github.com/aretw0/coupler/pkg/controller"
	"github.com/aretw0/coupler/pkg/domain"
	"github.com/aretw0/coupler/pkg/ports"
	"github.com/stretchr/testify/require"
)

func testSnapshot() domain.Snapshot {
	return domain.Snapshot{
		Materials: []domain.Material{
			{ID: 1, Nuclides: []string{"U235", "O16"}, Densities: []float64{0.01, 0.02}},
			{ID: 2, Nuclides: []string{"H1"}, Densities: []float64{0.05}},
		},
		Filters: []domain.Filter{{ID: 5, Type: domain.FilterMaterial, Bins: []int32{1, 2}}},
		Tallies: []domain.Tally{{ID: 3, Scores: []string{"fission"}, FilterIDs: []int32{5}}},
	}
}

func testEngine(t *testing.T) *memory.Engine {
	t.Helper()
	e, err := memory.NewEngine(testSnapshot(), 10)
	require.NoError(t, err)
	return e
}

func testConfig(t *testing.T) controller.Config {
	cfg := controller.DefaultConfig()
	cfg.Command.Base = "cardinal-opt -i openmc.i"
	cfg.WorkDir = t.TempDir()
	cfg.Retry = controller.RetryPolicy{Interval: time.Millisecond, MaxAttempts: 5}
	return cfg
}

// fakeProcess exits when stopped or when its emulator is terminated.
type fakeProcess struct {
	done    chan struct{}
	once    sync.Once
	onExit  func()
	stopped int
	mu      sync.Mutex
}

func newFakeProcess(onExit func()) *fakeProcess {
	return &fakeProcess{done: make(chan struct{}), onExit: onExit}
}

func (p *fakeProcess) exit() {
	p.once.Do(func() {
		if p.onExit != nil {
			p.onExit()
		}
		close(p.done)
	})
}

func (p *fakeProcess) PID() int              { return 4242 }
func (p *fakeProcess) Done() <-chan struct{} { return p.done }
func (p *fakeProcess) Err() error            { return nil }

func (p *fakeProcess) Stop(ctx context.Context) error {
	p.mu.Lock()
	p.stopped++
	p.mu.Unlock()
	p.exit()
	return nil
}

func (p *fakeProcess) Stops() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopped
}

// emulatedLauncher serves every launched command line with an in-process emulator.
type emulatedLauncher struct {
	t    *testing.T
	opts []emulator.EmulatorOption

	mu    sync.Mutex
	em    *emulator.Emulator
	srv   *httptest.Server
	proc  *fakeProcess
	specs []ports.LaunchSpec
}

func (l *emulatedLauncher) Launch(ctx context.Context, spec ports.LaunchSpec) (ports.Process, error) {
	em, err := emulator.NewEmulator(spec.Argv, l.opts...)
	if err != nil {
		return nil, err
	}
	srv := httptest.NewServer(emulator.NewHandler(em))
	proc := newFakeProcess(srv.Close)
	go func() {
		select {
		case <-em.Done():
			proc.exit()
		case <-proc.done:
		}
	}()

	l.mu.Lock()
	defer l.mu.Unlock()
	l.em, l.srv, l.proc = em, srv, proc
	l.specs = append(l.specs, spec)
	return proc, nil
}

func (l *emulatedLauncher) channel(url string) ports.ControlChannel {
	l.mu.Lock()
	defer l.mu.Unlock()
	return webcontrol.New(l.srv.URL)
}

func newEmulated(t *testing.T, opts ...controller.Option) (*controller.Controller, *emulatedLauncher) {
	t.Helper()
	l := &emulatedLauncher{t: t, opts: []emulator.EmulatorOption{emulator.WithOutputDir(t.TempDir())}}
	opts = append([]controller.Option{
		controller.WithLauncher(l),
		controller.WithChannelFactory(l.channel),
	}, opts...)
	c, err := controller.New(testConfig(t), testEngine(t), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Stop(context.Background()) })
	return c, l
}

// scriptedChannel answers from a script, for failure paths the emulator cannot produce.
type scriptedChannel struct {
	mu        sync.Mutex
	checkErrs []error
	waits     []ports.WaitStatus
	calls     []string
}

var errRefused = fmt.Errorf("%w: connection refused", domain.ErrUnreachable)

func (s *scriptedChannel) URL() string { return "http://localhost:5800" }

func (s *scriptedChannel) record(call string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call)
}

func (s *scriptedChannel) Check(ctx context.Context) error {
	s.record("check")
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.checkErrs) == 0 {
		return nil
	}
	err := s.checkErrs[0]
	if len(s.checkErrs) > 1 {
		s.checkErrs = s.checkErrs[1:]
	}
	return err
}

func (s *scriptedChannel) Waiting(ctx context.Context) (ports.WaitStatus, error) {
	s.record("waiting")
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.waits) == 0 {
		return ports.WaitStatus{}, errRefused
	}
	st := s.waits[0]
	if len(s.waits) > 1 {
		s.waits = s.waits[1:]
	}
	return st, nil
}

func (s *scriptedChannel) Continue(ctx context.Context) error {
	s.record("continue")
	return nil
}

func (s *scriptedChannel) SetControllable(ctx context.Context, c domain.Controllable) error {
	s.record("set " + c.Path)
	return nil
}

func (s *scriptedChannel) Terminate(ctx context.Context) error {
	s.record("terminate")
	return nil
}

func (s *scriptedChannel) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// fixedLauncher hands out one prepared process.
type fixedLauncher struct{ proc *fakeProcess }

func (l fixedLauncher) Launch(ctx context.Context, spec ports.LaunchSpec) (ports.Process, error) {
	return l.proc, nil
}

func newScripted(t *testing.T, ch *scriptedChannel, proc *fakeProcess) *controller.Controller {
	t.Helper()
	c, err := controller.New(testConfig(t), testEngine(t),
		controller.WithLauncher(fixedLauncher{proc: proc}),
		controller.WithChannelFactory(func(string) ports.ControlChannel { return ch }),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Stop(context.Background()) })
	return c
}
