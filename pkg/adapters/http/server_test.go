package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aretw0/coupler/pkg/controllable"
	"github.com/aretw0/coupler/pkg/domain"
	"github.com/aretw0/coupler/pkg/statepoint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testArgs = []string{
	"-i", "openmc.i",
	"UserObjects/openmc_mat1/type=OpenMCNuclideDensities",
	"UserObjects/openmc_mat1/material_id=1",
	"UserObjects/openmc_mat1/names='U235 O16'",
	"UserObjects/openmc_mat1/densities='0.01 0.02'",
	"UserObjects/openmc_tally3/type=OpenMCTallyEditor",
	"UserObjects/openmc_tally3/scores='fission'",
	"UserObjects/openmc_tally3/nuclides=''",
	"UserObjects/openmc_tally3/filter_ids='5'",
	"Controls/webserver/type=WebServerControl",
	"Controls/webserver/port=5811",
	"--n-threads=2",
}

func newTestServer(t *testing.T, opts ...EmulatorOption) (*Emulator, *httptest.Server) {
	t.Helper()
	opts = append([]EmulatorOption{WithOutputDir(t.TempDir()), WithBatches(10)}, opts...)
	em, err := NewEmulator(testArgs, opts...)
	require.NoError(t, err)
	ts := httptest.NewServer(NewHandler(em))
	t.Cleanup(ts.Close)
	return em, ts
}

func getJSON(t *testing.T, url string) (int, map[string]any) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func postSet(t *testing.T, url string, payload any) (int, map[string]any) {
	t.Helper()
	data, _ := json.Marshal(payload)
	resp, err := http.Post(url+"/set/controllable", "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	defer resp.Body.Close()
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestNewEmulator_Declarations(t *testing.T) {
	em, err := NewEmulator(testArgs)
	require.NoError(t, err)

	assert.Equal(t, 5811, em.Port())
	assert.Equal(t, []string{
		"UserObjects/openmc_mat1/names",
		"UserObjects/openmc_mat1/densities",
		"UserObjects/openmc_tally3/scores",
		"UserObjects/openmc_tally3/nuclides",
		"UserObjects/openmc_tally3/filter_ids",
	}, em.Values().Paths())

	dens, err := em.Values().VectorReal("UserObjects/openmc_mat1/densities")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.01, 0.02}, dens)

	_, err = NewEmulator([]string{
		"UserObjects/openmc_mat1/type=OpenMCNuclideDensities",
		"UserObjects/openmc_mat1/densities='abc'",
	})
	assert.Error(t, err)
}

func TestServer_FlagCycle(t *testing.T) {
	em, ts := newTestServer(t)

	status, body := getJSON(t, ts.URL+"/waiting")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["waiting"])
	assert.Equal(t, "TIMESTEP_BEGIN", body["execute_on_flag"])

	status, _ = getJSON(t, ts.URL+"/continue")
	assert.Equal(t, http.StatusOK, status)

	_, body = getJSON(t, ts.URL+"/waiting")
	assert.Equal(t, "TIMESTEP_END", body["execute_on_flag"])
	assert.Equal(t, 1, em.Step())

	summary, err := statepoint.Read(statepoint.Path(em.outDir, 10))
	require.NoError(t, err)
	assert.Equal(t, 10, summary.Batches)
	assert.Len(t, summary.Rates, 2)

	getJSON(t, ts.URL+"/continue")
	_, body = getJSON(t, ts.URL+"/waiting")
	assert.Equal(t, "TIMESTEP_BEGIN", body["execute_on_flag"])
	assert.Equal(t, 1, em.Step(), "END -> BEGIN does not solve")
}

func TestServer_DelayedSolve(t *testing.T) {
	_, ts := newTestServer(t, WithSolveDelay(50*time.Millisecond))

	getJSON(t, ts.URL+"/continue")
	_, body := getJSON(t, ts.URL+"/waiting")
	assert.Equal(t, false, body["waiting"])
	assert.NotContains(t, body, "execute_on_flag")

	status, _ := getJSON(t, ts.URL+"/continue")
	assert.Equal(t, http.StatusBadRequest, status, "continue while running is rejected")

	assert.Eventually(t, func() bool {
		_, body := getJSON(t, ts.URL+"/waiting")
		return body["execute_on_flag"] == "TIMESTEP_END"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestServer_SetControllable(t *testing.T) {
	em, ts := newTestServer(t)

	t.Run("Typed Set", func(t *testing.T) {
		status, _ := postSet(t, ts.URL, map[string]any{
			"name":  "UserObjects/openmc_mat1/densities",
			"type":  domain.KindVectorReal,
			"value": []float64{0.5, 0.6},
		})
		assert.Equal(t, http.StatusOK, status)
		got, _ := em.Values().VectorReal("UserObjects/openmc_mat1/densities")
		assert.Equal(t, []float64{0.5, 0.6}, got)
	})

	t.Run("Untyped Set Uses Declared Kind", func(t *testing.T) {
		status, _ := postSet(t, ts.URL, map[string]any{
			"name":  "UserObjects/openmc_tally3/nuclides",
			"value": []string{"U235"},
		})
		assert.Equal(t, http.StatusOK, status)
	})

	t.Run("Undeclared Path", func(t *testing.T) {
		status, body := postSet(t, ts.URL, map[string]any{
			"name":  "UserObjects/openmc_mat9/names",
			"value": []string{"H1"},
		})
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Contains(t, body["error"], "not declared")
	})

	t.Run("Wrong Kind", func(t *testing.T) {
		status, _ := postSet(t, ts.URL, map[string]any{
			"name":  "UserObjects/openmc_mat1/names",
			"type":  domain.KindVectorReal,
			"value": []float64{1},
		})
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("Not Waiting", func(t *testing.T) {
		em.SetWaiting(domain.FlagAny)
		defer em.SetWaiting(domain.FlagTimestepBegin)
		status, body := postSet(t, ts.URL, map[string]any{
			"name":  "UserObjects/openmc_mat1/names",
			"value": []string{"H1"},
		})
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Contains(t, body["error"], "not currently waiting")
	})

	t.Run("Get", func(t *testing.T) {
		status, body := getJSON(t, ts.URL+"/get/controllable?name=UserObjects/openmc_tally3/nuclides")
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, []any{"U235"}, body["value"])

		status, _ = getJSON(t, ts.URL+"/get/controllable?name=nope")
		assert.Equal(t, http.StatusNotFound, status)
	})
}

func TestServer_CustomSolver(t *testing.T) {
	em, ts := newTestServer(t, WithSolver(func(ctx context.Context, step int, values *controllable.Registry) (*statepoint.Summary, error) {
		return &statepoint.Summary{Keff: [2]float64{1.2, 0.01}}, nil
	}))
	getJSON(t, ts.URL+"/continue")

	summary, err := statepoint.Read(statepoint.Path(em.outDir, 10))
	require.NoError(t, err)
	assert.Equal(t, [2]float64{1.2, 0.01}, summary.Keff)

	em2, ts2 := newTestServer(t, WithSolver(func(ctx context.Context, step int, values *controllable.Registry) (*statepoint.Summary, error) {
		return nil, errors.New("diverged")
	}))
	getJSON(t, ts2.URL+"/continue")
	_, err = statepoint.Read(statepoint.Path(em2.outDir, 10))
	assert.Error(t, err, "a failed solve leaves no statepoint")
}

func TestServe_Terminate(t *testing.T) {
	em, err := NewEmulator(testArgs, WithOutputDir(t.TempDir()))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- Serve(ctx, "127.0.0.1:0", em) }()

	// Terminate through the handler directly; Serve must observe Done and exit.
	rec := httptest.NewRecorder()
	NewHandler(em).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/terminate", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-ctx.Done():
		t.Fatal("Serve did not return after terminate")
	}

	calls := em.Calls()
	require.NotEmpty(t, calls)
	assert.Equal(t, "/terminate", calls[len(calls)-1].Path)
}
