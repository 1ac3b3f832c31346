package statepoint_test

import (
	"io/fs"
	"path/filepath"
	"testing"

	"github.com/aretw0/coupler/pkg/statepoint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestName(t *testing.T) {
	assert.Equal(t, "statepoint.40.h5", statepoint.Name(40))
	assert.Equal(t, filepath.Join("run", "statepoint.7.h5"), statepoint.Path("run", 7))
}

func TestWriteRead(t *testing.T) {
	path := statepoint.Path(t.TempDir(), 10)
	in := &statepoint.Summary{
		Batches: 10,
		Keff:    [2]float64{1.02, 0.003},
		Rates:   []statepoint.Rate{{Material: 1, Nuclide: "U235", Reaction: "fission", Value: 0.4}},
	}
	require.NoError(t, statepoint.Write(path, in))

	out, err := statepoint.Read(path)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestRead_Missing(t *testing.T) {
	_, err := statepoint.Read(filepath.Join(t.TempDir(), "statepoint.1.h5"))
	assert.ErrorIs(t, err, fs.ErrNotExist)
}
