// Package statepoint names and reads the result files a coupled step leaves
// behind.
//
// The binary statepoint format belongs to the transport engine. Engines in
// this module that do not link the transport library read a JSON summary
// stored under the same name instead; the emulator writes one per step.
package statepoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Name returns the conventional result file name for a batch count.
func Name(batches int) string {
	return fmt.Sprintf("statepoint.%d.h5", batches)
}

// Path joins dir and Name(batches).
func Path(dir string, batches int) string {
	return filepath.Join(dir, Name(batches))
}

// Rate is one per-source-particle reaction rate.
type Rate struct {
	Material int32   `json:"material"`
	Nuclide  string  `json:"nuclide"`
	Reaction string  `json:"reaction"`
	Value    float64 `json:"value"`
}

// Summary is the JSON rendition of a statepoint.
type Summary struct {
	Batches int        `json:"batches"`
	Keff    [2]float64 `json:"keff"` // mean, standard deviation
	Rates   []Rate     `json:"rates"`
}

// Read loads a summary. A missing file is reported with an error wrapping
// fs.ErrNotExist.
func Read(path string) (*Summary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s Summary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse statepoint summary %s: %w", path, err)
	}
	return &s, nil
}

// Write stores a summary, replacing the file atomically.
func Write(path string, s *Summary) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal statepoint summary: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".statepoint-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()
	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("failed to write statepoint summary: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename statepoint summary: %w", err)
	}
	return nil
}
