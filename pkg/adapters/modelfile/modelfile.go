// Package modelfile reads a transport model (materials, tallies, filters
// and the batch count) from YAML into an in-memory engine.
package modelfile

import (
	"fmt"
	"os"

	"github.com/aretw0/coupler/pkg/adapters/memory"
	"github.com/aretw0/coupler/pkg/domain"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Model is the decoded content of a model file.
type Model struct {
	Batches   int               `mapstructure:"batches"`
	Reactions []string          `mapstructure:"reactions"`
	Materials []domain.Material `mapstructure:"materials"`
	Tallies   []domain.Tally    `mapstructure:"tallies"`
	Filters   []domain.Filter   `mapstructure:"filters"`
}

// Snapshot returns the model objects.
func (m *Model) Snapshot() domain.Snapshot {
	return domain.Snapshot{Materials: m.Materials, Tallies: m.Tallies, Filters: m.Filters}.Clone()
}

// Engine builds an in-memory transport engine holding the model.
func (m *Model) Engine() (*memory.Engine, error) {
	var opts []memory.EngineOption
	if len(m.Reactions) > 0 {
		opts = append(opts, memory.WithReactions(m.Reactions...))
	}
	return memory.NewEngine(m.Snapshot(), m.Batches, opts...)
}

// Load reads and decodes a model file.
func Load(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model: %w", err)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse model %s: %w", path, err)
	}
	m, err := Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", path, err)
	}
	return m, nil
}

// Decode converts a generic map into a Model. Unknown keys and values of
// the wrong type are errors.
func Decode(raw map[string]any) (*Model, error) {
	var m Model
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      &m,
		ErrorUnused: true,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("failed to decode model: %w", err)
	}
	if m.Batches <= 0 {
		return nil, fmt.Errorf("batches must be positive, got %d", m.Batches)
	}
	return &m, nil
}

// Open loads a model file straight into an engine.
func Open(path string) (*memory.Engine, error) {
	m, err := Load(path)
	if err != nil {
		return nil, err
	}
	return m.Engine()
}
