package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/aretw0/coupler/pkg/domain"
	"github.com/aretw0/coupler/pkg/ports"
)

// Store implements ports.ResultStore using the local filesystem.
// Each run is a directory holding one JSON file per step.
type Store struct {
	BasePath string
}

var _ ports.ResultStore = (*Store)(nil)

// New creates a new Store with the given base path.
// If basePath is empty, it defaults to ".coupler/runs".
func New(basePath string) *Store {
	if basePath == "" {
		basePath = filepath.Join(".coupler", "runs")
	}
	return &Store{BasePath: basePath}
}

func validID(runID string) error {
	if runID == "" {
		return fmt.Errorf("runID cannot be empty")
	}
	if strings.ContainsAny(runID, `/\`) || runID == "." || runID == ".." {
		return fmt.Errorf("invalid runID %q", runID)
	}
	return nil
}

func (s *Store) runDir(runID string) string { return filepath.Join(s.BasePath, runID) }

func (s *Store) recordPath(runID string, index int) string {
	return filepath.Join(s.runDir(runID), fmt.Sprintf("step-%06d.json", index))
}

// Save persists the record to a JSON file atomically.
// It writes to a temporary file first, syncs via fsync, and then renames it to the destination.
func (s *Store) Save(ctx context.Context, rec domain.StepRecord) error {
	if err := validID(rec.RunID); err != nil {
		return err
	}
	if rec.Index < 0 {
		return fmt.Errorf("step index must not be negative, got %d", rec.Index)
	}

	dir := s.runDir(rec.RunID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to ensure run directory: %w", err)
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	// Same directory so the rename stays on one filesystem.
	tmpFile, err := os.CreateTemp(dir, "tmp-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	// Cannot rename an open file on Windows.
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	destPath := s.recordPath(rec.RunID, rec.Index)
	// On Windows, os.Rename fails if dest exists.
	if _, err := os.Stat(destPath); err == nil {
		if err := os.Remove(destPath); err != nil {
			return fmt.Errorf("failed to remove existing record for overwrite: %w", err)
		}
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file to record: %w", err)
	}
	return nil
}

// Load retrieves one record.
func (s *Store) Load(ctx context.Context, runID string, index int) (domain.StepRecord, error) {
	if err := validID(runID); err != nil {
		return domain.StepRecord{}, err
	}
	return s.read(s.recordPath(runID, index))
}

func (s *Store) read(path string) (domain.StepRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.StepRecord{}, domain.ErrRunNotFound
		}
		return domain.StepRecord{}, fmt.Errorf("failed to read record: %w", err)
	}
	var rec domain.StepRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return domain.StepRecord{}, fmt.Errorf("failed to unmarshal record %s: %w", path, err)
	}
	return rec, nil
}

// List returns the records of a run ordered by index.
func (s *Store) List(ctx context.Context, runID string) ([]domain.StepRecord, error) {
	if err := validID(runID); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.runDir(runID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrRunNotFound
		}
		return nil, fmt.Errorf("failed to list run: %w", err)
	}

	var records []domain.StepRecord
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "step-") || filepath.Ext(name) != ".json" {
			continue
		}
		if _, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, "step-"), ".json")); err != nil {
			continue
		}
		rec, err := s.read(filepath.Join(s.runDir(runID), name))
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if len(records) == 0 {
		return nil, domain.ErrRunNotFound
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Index < records[j].Index })
	return records, nil
}

// Runs returns the IDs of stored runs.
func (s *Store) Runs(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.BasePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	runs := []string{}
	for _, entry := range entries {
		if entry.IsDir() {
			runs = append(runs, entry.Name())
		}
	}
	return runs, nil
}

// Delete removes the run directory.
func (s *Store) Delete(ctx context.Context, runID string) error {
	if err := validID(runID); err != nil {
		return err
	}
	if err := os.RemoveAll(s.runDir(runID)); err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	return nil
}
