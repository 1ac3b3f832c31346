package ports

import (
	"context"

	"github.com/aretw0/coupler/pkg/domain"
)

// ResultStore persists the step records of depletion runs.
type ResultStore interface {
	// Save persists a record under its RunID and Index, replacing any previous one.
	Save(ctx context.Context, rec domain.StepRecord) error

	// Load retrieves one record.
	// Returns domain.ErrRunNotFound if the record does not exist.
	Load(ctx context.Context, runID string, index int) (domain.StepRecord, error)

	// List returns every record of a run ordered by Index.
	// Returns domain.ErrRunNotFound if the run has no records.
	List(ctx context.Context, runID string) ([]domain.StepRecord, error)

	// Runs returns the IDs of stored runs.
	Runs(ctx context.Context) ([]string, error)

	// Delete removes every record of a run.
	Delete(ctx context.Context, runID string) error
}
