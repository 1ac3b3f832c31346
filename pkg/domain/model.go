package domain

import (
	"fmt"
	"slices"
	"strconv"
)

// FilterType is the kind of domain a tally filter bins over.
type FilterType string

const (
	FilterCell     FilterType = "cell"
	FilterMaterial FilterType = "material"
	FilterUniverse FilterType = "universe"
	FilterMesh     FilterType = "mesh"
)

// Valid reports whether t is a domain filter type the solver can edit.
func (t FilterType) Valid() bool {
	switch t {
	case FilterCell, FilterMaterial, FilterUniverse, FilterMesh:
		return true
	}
	return false
}

// Material mirrors one transport-engine material.
type Material struct {
	ID         int32     `json:"id" yaml:"id" mapstructure:"id"`
	Name       string    `json:"name,omitempty" yaml:"name" mapstructure:"name"`
	Nuclides   []string  `json:"nuclides" yaml:"nuclides" mapstructure:"nuclides"`
	Densities  []float64 `json:"densities" yaml:"densities" mapstructure:"densities"` // atom/b-cm
	Volume     float64   `json:"volume,omitempty" yaml:"volume" mapstructure:"volume"` // cm^3
	Depletable bool      `json:"depletable,omitempty" yaml:"depletable" mapstructure:"depletable"`
}

// Tally mirrors one transport-engine tally.
type Tally struct {
	ID        int32    `json:"id" yaml:"id" mapstructure:"id"`
	Scores    []string `json:"scores" yaml:"scores" mapstructure:"scores"`
	Nuclides  []string `json:"nuclides" yaml:"nuclides" mapstructure:"nuclides"`
	FilterIDs []int32  `json:"filter_ids" yaml:"filter_ids" mapstructure:"filter_ids"`
	Writable  bool     `json:"writable,omitempty" yaml:"writable" mapstructure:"writable"`
}

// Filter mirrors one transport-engine domain filter.
type Filter struct {
	ID   int32      `json:"id" yaml:"id" mapstructure:"id"`
	Type FilterType `json:"type" yaml:"type" mapstructure:"type"`
	Bins []int32    `json:"bins" yaml:"bins" mapstructure:"bins"`
}

// Snapshot is a transient copy of the transport engine's objects, taken
// for the duration of one synchronization call.
type Snapshot struct {
	Materials []Material
	Tallies   []Tally
	Filters   []Filter
}

// Clone deep-copies the snapshot.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{
		Materials: make([]Material, len(s.Materials)),
		Tallies:   make([]Tally, len(s.Tallies)),
		Filters:   make([]Filter, len(s.Filters)),
	}
	for i, m := range s.Materials {
		m.Nuclides = slices.Clone(m.Nuclides)
		m.Densities = slices.Clone(m.Densities)
		out.Materials[i] = m
	}
	for i, t := range s.Tallies {
		t.Scores = slices.Clone(t.Scores)
		t.Nuclides = slices.Clone(t.Nuclides)
		t.FilterIDs = slices.Clone(t.FilterIDs)
		out.Tallies[i] = t
	}
	for i, f := range s.Filters {
		f.Bins = slices.Clone(f.Bins)
		out.Filters[i] = f
	}
	return out
}

// Object path prefixes of the controllable user objects declared in the solver.
const (
	userObjectsBlock = "UserObjects"
	ControlsBlock    = "Controls"
	WebServerName    = "webserver"
)

// MaterialObject is the solver object name mirroring material id.
func MaterialObject(id int32) string { return fmt.Sprintf("openmc_mat%d", id) }

// TallyObject is the solver object name mirroring tally id.
func TallyObject(id int32) string { return fmt.Sprintf("openmc_tally%d", id) }

// FilterObject is the solver object name mirroring filter id.
func FilterObject(id int32) string { return fmt.Sprintf("openmc_filter%d", id) }

// UserObjectPath returns "UserObjects/<object>/<param>".
func UserObjectPath(object, param string) string {
	return userObjectsBlock + "/" + object + "/" + param
}

// UserObjectsBlock is the top-level block holding the mirrored objects.
func UserObjectsBlock() string { return userObjectsBlock }

// IDStrings renders ids the way the solver's string-vector parameters expect them.
func IDStrings(ids []int32) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = strconv.FormatInt(int64(id), 10)
	}
	return out
}
