package controller_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/coupler/pkg/controller"
	"github.com/aretw0/coupler/pkg/domain"
	"github.com/aretw0/coupler/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestController_Lifecycle(t *testing.T) {
	ctx := context.Background()

	var mu sync.Mutex
	var events []domain.EventType
	record := func(_ context.Context, ev *domain.ControlEvent) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, ev.Type)
	}
	c, l := newEmulated(t, controller.WithHooks(domain.Hooks{
		OnStart: record, OnWait: record, OnContinue: record, OnSet: record, OnStop: record,
	}))

	assert.Equal(t, domain.StatusNotStarted, c.Status())
	require.NoError(t, c.Start(ctx))
	assert.Equal(t, domain.StatusRunning, c.Status())
	require.NoError(t, c.Start(ctx), "start is idempotent")
	require.Len(t, l.specs, 1)

	flag, err := c.Wait(ctx, domain.FlagTimestepBegin)
	require.NoError(t, err)
	assert.Equal(t, domain.FlagTimestepBegin, flag)
	assert.Equal(t, domain.StatusWaiting, c.Status())

	require.NoError(t, c.SetVectorString(ctx, "UserObjects/openmc_mat1/names", []string{"U235"}))
	require.NoError(t, c.SetVectorReal(ctx, "UserObjects/openmc_mat1/densities", []float64{0.5}))
	got, err := l.em.Values().VectorReal("UserObjects/openmc_mat1/densities")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5}, got)

	mirrored, err := c.Declared().VectorReal("UserObjects/openmc_mat1/densities")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5}, mirrored)

	// Writes to the returned registry stay local
	require.NoError(t, c.Declared().SetVectorReal("UserObjects/openmc_mat1/densities", []float64{9}))
	require.NoError(t, c.Declared().Declare("Postprocessors/extra/value", domain.KindReal, nil))
	mirrored, err = c.Declared().VectorReal("UserObjects/openmc_mat1/densities")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5}, mirrored)
	_, ok := c.Declared().Get("Postprocessors/extra/value")
	assert.False(t, ok)

	require.NoError(t, c.Continue(ctx))
	assert.Equal(t, domain.StatusRunning, c.Status())

	flag, err = c.Wait(ctx, domain.FlagAny)
	require.NoError(t, err)
	assert.Equal(t, domain.FlagTimestepEnd, flag)

	require.NoError(t, c.Stop(ctx))
	assert.Equal(t, domain.StatusStopped, c.Status())
	require.NoError(t, c.Stop(ctx), "stop is idempotent")
	assert.Equal(t, 1, l.proc.Stops())

	calls := l.em.Calls()
	assert.Equal(t, "/terminate", calls[len(calls)-1].Path)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []domain.EventType{
		domain.EventStart, domain.EventWait, domain.EventSet, domain.EventSet,
		domain.EventContinue, domain.EventWait, domain.EventStop,
	}, events)
}

func TestController_StartWritesFiles(t *testing.T) {
	c, l := newEmulated(t)
	require.NoError(t, c.Start(context.Background()))

	spec := l.specs[0]
	assert.Equal(t, []string{"cardinal-opt", "-i", "openmc.i"}, spec.Argv[:3])
	assert.Contains(t, spec.Argv, "UserObjects/openmc_mat1/names='U235 O16'")
	assert.Contains(t, spec.Argv, "UserObjects/openmc_mat2/densities='0.05'")
	assert.Contains(t, spec.Argv, "UserObjects/openmc_tally3/filter_ids='5'")
	assert.Contains(t, spec.Argv, "UserObjects/openmc_filter5/bins='1 2'")
	assert.Contains(t, spec.Argv, "Controls/webserver/execute_on='TIMESTEP_BEGIN TIMESTEP_END'")
	assert.Contains(t, spec.Argv, "Controls/webserver/port=5800")
	assert.Equal(t, filepath.Join(spec.Dir, "solver.out"), spec.LogPath)

	command, err := os.ReadFile(filepath.Join(spec.Dir, "command.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(command), "cardinal-opt -i openmc.i ")

	input, err := os.ReadFile(filepath.Join(spec.Dir, "server.i"))
	require.NoError(t, err)
	assert.Contains(t, string(input), "[openmc_mat1]")
	assert.Contains(t, string(input), "type = WebServerControl")

	assert.Equal(t, []string{
		"UserObjects/openmc_mat1/names",
		"UserObjects/openmc_mat1/densities",
		"UserObjects/openmc_mat2/names",
		"UserObjects/openmc_mat2/densities",
		"UserObjects/openmc_tally3/scores",
		"UserObjects/openmc_tally3/nuclides",
		"UserObjects/openmc_tally3/filter_ids",
		"UserObjects/openmc_filter5/bins",
	}, c.Declared().Paths())
}

func TestController_SetRejections(t *testing.T) {
	ctx := context.Background()
	c, _ := newEmulated(t)
	require.NoError(t, c.Start(ctx))

	err := c.SetVectorString(ctx, "UserObjects/openmc_mat1/names", []string{"U235"})
	assert.ErrorIs(t, err, domain.ErrNotWaiting, "not suspended before the first wait")

	_, err = c.Wait(ctx, domain.FlagTimestepBegin)
	require.NoError(t, err)

	err = c.SetVectorString(ctx, "UserObjects/openmc_mat9/names", []string{"U235"})
	assert.ErrorIs(t, err, domain.ErrUndeclaredPath)

	err = c.SetVectorString(ctx, "UserObjects/openmc_mat1/densities", []string{"U235"})
	assert.ErrorIs(t, err, domain.ErrKindMismatch)

	err = c.SetReal(ctx, "UserObjects/openmc_mat1/names", 1)
	assert.ErrorIs(t, err, domain.ErrKindMismatch)
}

func TestController_WaitDesync(t *testing.T) {
	ctx := context.Background()
	c, l := newEmulated(t)
	require.NoError(t, c.Start(ctx))
	l.em.SetWaiting(domain.FlagTimestepEnd)

	flag, err := c.Wait(ctx, domain.FlagTimestepBegin)
	var desync *domain.DesyncError
	require.ErrorAs(t, err, &desync)
	assert.Equal(t, domain.FlagTimestepBegin, desync.Expected)
	assert.Equal(t, domain.FlagTimestepEnd, desync.Observed)
	assert.Equal(t, domain.FlagTimestepEnd, flag)
	assert.Equal(t, domain.StatusRunning, c.Status(), "a desynced wait does not record the flag")
}

func TestController_NotStarted(t *testing.T) {
	ctx := context.Background()
	c, err := controller.New(testConfig(t), testEngine(t))
	require.NoError(t, err)

	_, err = c.Wait(ctx, domain.FlagAny)
	assert.ErrorIs(t, err, domain.ErrNotStarted)
	assert.ErrorIs(t, c.Continue(ctx), domain.ErrNotStarted)
	assert.ErrorIs(t, c.SetReal(ctx, "x/y", 1), domain.ErrNotStarted)

	require.NoError(t, c.Stop(ctx), "stopping a never-started controller is fine")
	assert.ErrorIs(t, c.Start(ctx), domain.ErrStopped)
	_, err = c.Wait(ctx, domain.FlagAny)
	assert.ErrorIs(t, err, domain.ErrStopped)
}

func TestController_ConfigErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*controller.Config)
		key    string
	}{
		{"Missing Command", func(c *controller.Config) { c.Command.Base = " " }, "solver.command"},
		{"Bad Port", func(c *controller.Config) { c.Port = 0 }, "solver.port"},
		{"Negative Threads", func(c *controller.Config) { c.Command.Threads = -2 }, "solver.threads"},
		{"Zero Interval", func(c *controller.Config) { c.Retry.Interval = 0 }, "retry.interval"},
		{"Zero Attempts", func(c *controller.Config) { c.Retry.MaxAttempts = 0 }, "retry.max_attempts"},
		{"Empty Input File", func(c *controller.Config) { c.InputFile = "" }, "solver.input_file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.mutate(&cfg)
			_, err := controller.New(cfg, testEngine(t))
			var cerr *domain.ConfigError
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, tt.key, cerr.Key)
		})
	}
}

func TestController_ConnectionExhausted(t *testing.T) {
	ch := &scriptedChannel{checkErrs: []error{errRefused}}
	proc := newFakeProcess(nil)
	c := newScripted(t, ch, proc)

	err := c.Start(context.Background())
	var exhausted *domain.ConnectionExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 5, exhausted.Attempts)
	assert.ErrorIs(t, err, domain.ErrUnreachable)

	assert.Equal(t, domain.StatusStopped, c.Status(), "a failed start releases the process")
	assert.Equal(t, 1, proc.Stops())
}

func TestController_TransientFailures(t *testing.T) {
	ctx := context.Background()
	ch := &scriptedChannel{
		checkErrs: []error{errRefused, errRefused, nil},
		waits: []ports.WaitStatus{
			{Waiting: false},
			{Waiting: false},
			{Waiting: true, Flag: domain.FlagTimestepBegin},
		},
	}
	c := newScripted(t, ch, newFakeProcess(nil))

	require.NoError(t, c.Start(ctx))
	flag, err := c.Wait(ctx, domain.FlagTimestepBegin)
	require.NoError(t, err)
	assert.Equal(t, domain.FlagTimestepBegin, flag)
	assert.Equal(t, []string{"check", "check", "check", "waiting", "waiting", "waiting"}, ch.Calls())
}

func TestController_ProcessExitedWhileWaiting(t *testing.T) {
	ctx := context.Background()
	proc := newFakeProcess(nil)
	ch := &scriptedChannel{waits: []ports.WaitStatus{{Waiting: false}}}
	c := newScripted(t, ch, proc)
	require.NoError(t, c.Start(ctx))

	go func() {
		time.Sleep(20 * time.Millisecond)
		proc.exit()
	}()
	_, err := c.Wait(ctx, domain.FlagAny)
	assert.ErrorIs(t, err, domain.ErrProcessExited)
}

func TestController_WaitHonoursContext(t *testing.T) {
	ch := &scriptedChannel{waits: []ports.WaitStatus{{Waiting: false}}}
	c := newScripted(t, ch, newFakeProcess(nil))
	require.NoError(t, c.Start(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.Wait(ctx, domain.FlagAny)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
}
