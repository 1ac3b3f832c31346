package process

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/aretw0/coupler/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("process group tests need a POSIX shell")
	}
}

func waitDone(t *testing.T, p ports.Process) {
	t.Helper()
	select {
	case <-p.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("process did not exit")
	}
}

func TestLauncher_LogAndEnv(t *testing.T) {
	requireShell(t)
	logPath := filepath.Join(t.TempDir(), "logs", "solver.out")

	p, err := NewLauncher().Launch(context.Background(), ports.LaunchSpec{
		Argv:    []string{"sh", "-c", "echo started $COUPLER_TEST_VAR; echo oops >&2"},
		Env:     []string{"COUPLER_TEST_VAR=42"},
		LogPath: logPath,
	})
	require.NoError(t, err)
	waitDone(t, p)
	assert.NoError(t, p.Err())

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "started 42")
	assert.Contains(t, string(data), "oops")
}

func TestLauncher_ExitError(t *testing.T) {
	requireShell(t)
	p, err := NewLauncher().Launch(context.Background(), ports.LaunchSpec{Argv: []string{"sh", "-c", "exit 3"}})
	require.NoError(t, err)
	waitDone(t, p)
	assert.ErrorContains(t, p.Err(), "exit status 3")
	assert.NoError(t, p.Stop(context.Background()), "stopping an exited process is a no-op")
}

func TestLauncher_SpawnErrors(t *testing.T) {
	_, err := NewLauncher().Launch(context.Background(), ports.LaunchSpec{})
	assert.Error(t, err)

	_, err = NewLauncher().Launch(context.Background(), ports.LaunchSpec{
		Argv: []string{filepath.Join(t.TempDir(), "no-such-solver")},
	})
	assert.ErrorContains(t, err, "spawn error")
}

func TestProcess_Stop(t *testing.T) {
	requireShell(t)

	t.Run("Graceful", func(t *testing.T) {
		p, err := NewLauncher().Launch(context.Background(), ports.LaunchSpec{Argv: []string{"sleep", "30"}})
		require.NoError(t, err)
		assert.Nil(t, p.Err(), "no error while running")

		start := time.Now()
		require.NoError(t, p.Stop(context.Background()))
		assert.Less(t, time.Since(start), DefaultTerminationGrace)
		waitDone(t, p)

		// Idempotent
		require.NoError(t, p.Stop(context.Background()))
	})

	t.Run("Kills The Whole Group After Grace", func(t *testing.T) {
		marker := filepath.Join(t.TempDir(), "survived")
		l := NewLauncher(WithTerminationGrace(100 * time.Millisecond))
		p, err := l.Launch(context.Background(), ports.LaunchSpec{
			Argv: []string{"sh", "-c", `trap "" TERM; (sleep 1; touch ` + marker + `) & wait`},
		})
		require.NoError(t, err)
		time.Sleep(50 * time.Millisecond)

		require.NoError(t, p.Stop(context.Background()))
		waitDone(t, p)

		time.Sleep(1500 * time.Millisecond)
		assert.NoFileExists(t, marker, "children are killed with the group")
	})
}
