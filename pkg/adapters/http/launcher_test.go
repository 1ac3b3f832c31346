package http

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"testing"

	"github.com/aretw0/coupler/pkg/ports"
	"github.com/aretw0/coupler/pkg/statepoint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func launchArgs(port int) []string {
	args := append([]string(nil), testArgs...)
	for i, a := range args {
		if a == "Controls/webserver/port=5811" {
			args[i] = fmt.Sprintf("Controls/webserver/port=%d", port)
		}
	}
	return args
}

func TestLauncher_Lifecycle(t *testing.T) {
	port := freePort(t)
	dir := t.TempDir()

	proc, err := NewLauncher(WithBatches(10)).Launch(context.Background(), ports.LaunchSpec{Argv: launchArgs(port), Dir: dir})
	require.NoError(t, err)
	base := fmt.Sprintf("http://127.0.0.1:%d", port)

	status, body := getJSON(t, base+"/waiting")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "TIMESTEP_BEGIN", body["execute_on_flag"])

	status, _ = getJSON(t, base+"/continue")
	require.Equal(t, http.StatusOK, status)
	assert.FileExists(t, statepoint.Path(dir, 10), "statepoints land in the launch directory")

	status, _ = getJSON(t, base+"/terminate")
	require.Equal(t, http.StatusOK, status)
	<-proc.Done()
	assert.NoError(t, proc.Err())
	assert.NoError(t, proc.Stop(context.Background()))
}

func TestLauncher_Stop(t *testing.T) {
	proc, err := NewLauncher().Launch(context.Background(), ports.LaunchSpec{Argv: launchArgs(freePort(t)), Dir: t.TempDir()})
	require.NoError(t, err)

	em := proc.(interface{ Emulator() *Emulator }).Emulator()
	assert.Equal(t, 5, em.Values().Len())

	require.NoError(t, proc.Stop(context.Background()))
	select {
	case <-proc.Done():
	default:
		t.Fatal("stopped process must be done")
	}
}

func TestLauncher_PortInUse(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	_, err = NewLauncher().Launch(context.Background(), ports.LaunchSpec{Argv: launchArgs(ln.Addr().(*net.TCPAddr).Port)})
	assert.ErrorContains(t, err, "spawn error")
}
