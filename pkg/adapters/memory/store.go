package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/aretw0/coupler/pkg/domain"
)

// Store implements ports.ResultStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]map[int]domain.StepRecord
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]map[int]domain.StepRecord),
	}
}

func copyRecord(rec domain.StepRecord) domain.StepRecord {
	rec.Result = rec.Result.Clone()
	return rec
}

// Save persists the record in memory.
func (s *Store) Save(ctx context.Context, rec domain.StepRecord) error {
	// Deep copy to ensure isolation, similar to serialization
	copied := copyRecord(rec)

	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.data[rec.RunID]
	if !ok {
		run = make(map[int]domain.StepRecord)
		s.data[rec.RunID] = run
	}
	run[rec.Index] = copied
	return nil
}

// Load retrieves a record from memory.
func (s *Store) Load(ctx context.Context, runID string, index int) (domain.StepRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.data[runID][index]
	if !ok {
		return domain.StepRecord{}, domain.ErrRunNotFound
	}
	// Copy on read so callers can't mutate the stored arrays
	return copyRecord(rec), nil
}

// List returns the records of a run ordered by index.
func (s *Store) List(ctx context.Context, runID string) ([]domain.StepRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.data[runID]
	if !ok || len(run) == 0 {
		return nil, domain.ErrRunNotFound
	}
	out := make([]domain.StepRecord, 0, len(run))
	for _, rec := range run {
		out = append(out, copyRecord(rec))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out, nil
}

// Runs returns the stored run IDs.
func (s *Store) Runs(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]string, 0, len(s.data))
	for id := range s.data {
		runs = append(runs, id)
	}
	sort.Strings(runs)
	return runs, nil
}

// Delete removes a run.
func (s *Store) Delete(ctx context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, runID)
	return nil
}
