package domain

import (
	"fmt"
	"math"
	"slices"
)

// UFloat is a value with a one-sigma uncertainty.
type UFloat struct {
	Nominal float64 `json:"nominal"`
	StdDev  float64 `json:"std_dev"`
}

func (u UFloat) String() string {
	return fmt.Sprintf("%.5f+/-%.5f", u.Nominal, u.StdDev)
}

// ReactionRates is a dense material x nuclide x reaction array.
type ReactionRates struct {
	Materials []string  `json:"materials"`
	Nuclides  []string  `json:"nuclides"`
	Reactions []string  `json:"reactions"`
	Data      []float64 `json:"data"`
}

// NewReactionRates allocates a zeroed array with the given axes.
func NewReactionRates(materials, nuclides, reactions []string) *ReactionRates {
	return &ReactionRates{
		Materials: slices.Clone(materials),
		Nuclides:  slices.Clone(nuclides),
		Reactions: slices.Clone(reactions),
		Data:      make([]float64, len(materials)*len(nuclides)*len(reactions)),
	}
}

// Shape returns the lengths of the three axes.
func (r *ReactionRates) Shape() (int, int, int) {
	return len(r.Materials), len(r.Nuclides), len(r.Reactions)
}

func (r *ReactionRates) index(mat, nuc, rxn int) int {
	return (mat*len(r.Nuclides)+nuc)*len(r.Reactions) + rxn
}

// At returns the rate for the given indices.
func (r *ReactionRates) At(mat, nuc, rxn int) float64 {
	return r.Data[r.index(mat, nuc, rxn)]
}

// Set stores the rate for the given indices.
func (r *ReactionRates) Set(mat, nuc, rxn int, v float64) {
	r.Data[r.index(mat, nuc, rxn)] = v
}

// Fill sets every entry to v.
func (r *ReactionRates) Fill(v float64) {
	for i := range r.Data {
		r.Data[i] = v
	}
}

// Scale multiplies every entry by f.
func (r *ReactionRates) Scale(f float64) {
	for i := range r.Data {
		r.Data[i] *= f
	}
}

// IsZero reports whether every entry is exactly zero.
func (r *ReactionRates) IsZero() bool {
	for _, v := range r.Data {
		if v != 0 {
			return false
		}
	}
	return true
}

// Sum returns the total over all entries, ignoring NaN.
func (r *ReactionRates) Sum() float64 {
	var s float64
	for _, v := range r.Data {
		if !math.IsNaN(v) {
			s += v
		}
	}
	return s
}

// Clone deep-copies the array.
func (r *ReactionRates) Clone() *ReactionRates {
	if r == nil {
		return nil
	}
	return &ReactionRates{
		Materials: slices.Clone(r.Materials),
		Nuclides:  slices.Clone(r.Nuclides),
		Reactions: slices.Clone(r.Reactions),
		Data:      slices.Clone(r.Data),
	}
}

// OperatorResult is what one coupled step hands back to the depletion
// integrator. Each value is owned by the caller.
type OperatorResult struct {
	K     UFloat         `json:"k"`
	Rates *ReactionRates `json:"rates"`
}

// Clone deep-copies the result.
func (r OperatorResult) Clone() OperatorResult {
	return OperatorResult{K: r.K, Rates: r.Rates.Clone()}
}
