package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/coupler/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func contractRecord(runID string, index int, k float64) domain.StepRecord {
	rates := domain.NewReactionRates([]string{"1"}, []string{"U235", "O16"}, []string{"fission"})
	rates.Set(0, 0, 0, k*10)
	return domain.StepRecord{
		RunID:      runID,
		Index:      index,
		Time:       float64(index) * 8640,
		Dt:         8640,
		SourceRate: 174,
		Result: domain.OperatorResult{
			K:     domain.UFloat{Nominal: k, StdDev: 0.001},
			Rates: rates,
		},
		StartedAt: time.Date(2024, 5, 1, 12, 0, index, 0, time.UTC),
		Duration:  1500 * time.Millisecond,
	}
}

// RunResultStoreContract runs a suite of tests to verify that a ResultStore
// implementation adheres to the defined interface contract.
func RunResultStoreContract(t *testing.T, store ResultStore) {
	ctx := context.Background()
	runID := "contract-run-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		rec := contractRecord(runID, 0, 1.01)
		require.NoError(t, store.Save(ctx, rec), "Save should not return error")

		loaded, err := store.Load(ctx, runID, 0)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, rec.RunID, loaded.RunID)
		assert.Equal(t, rec.Result.K, loaded.Result.K)
		assert.Equal(t, rec.Result.Rates.Data, loaded.Result.Rates.Data)
		assert.Equal(t, rec.Duration, loaded.Duration)
		assert.True(t, rec.StartedAt.Equal(loaded.StartedAt))
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+runID, 0)
		assert.ErrorIs(t, err, domain.ErrRunNotFound)

		_, err = store.Load(ctx, runID, 99)
		assert.ErrorIs(t, err, domain.ErrRunNotFound)
	})

	t.Run("Save Overwrites", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, contractRecord(runID, 0, 0.99)))
		loaded, err := store.Load(ctx, runID, 0)
		require.NoError(t, err)
		assert.InDelta(t, 0.99, loaded.Result.K.Nominal, 1e-12)
	})

	t.Run("List Ordered", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, contractRecord(runID, 2, 1.03)))
		require.NoError(t, store.Save(ctx, contractRecord(runID, 1, 1.02)))

		records, err := store.List(ctx, runID)
		require.NoError(t, err)
		require.Len(t, records, 3)
		for i, rec := range records {
			assert.Equal(t, i, rec.Index)
		}

		runs, err := store.Runs(ctx)
		require.NoError(t, err)
		assert.Contains(t, runs, runID)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, runID), "Delete should not return error")

		_, err := store.List(ctx, runID)
		assert.ErrorIs(t, err, domain.ErrRunNotFound, "List after Delete should return ErrRunNotFound")

		runs, err := store.Runs(ctx)
		require.NoError(t, err)
		assert.NotContains(t, runs, runID)
	})
}
