package domain

import (
	"fmt"
	"slices"
)

// barnCm converts atoms/cm^3 to atom/b-cm.
const barnCm = 1e-24

// AtomVector holds total atoms per nuclide, one row per material.
type AtomVector [][]float64

// Clone deep-copies v.
func (v AtomVector) Clone() AtomVector {
	out := make(AtomVector, len(v))
	for i, row := range v {
		out[i] = slices.Clone(row)
	}
	return out
}

// AtomNumber tracks atom inventories of the depletable materials on a common
// nuclide axis.
type AtomNumber struct {
	MaterialIDs []int32
	Volumes     []float64
	Nuclides    []string
	atoms       AtomVector
	index       map[string]int
}

// NewAtomNumber builds the bookkeeping from the depletable materials of a
// snapshot. The nuclide axis is the union of their nuclides in first-seen order.
func NewAtomNumber(materials []Material) (*AtomNumber, error) {
	n := &AtomNumber{index: make(map[string]int)}
	for _, m := range materials {
		if !m.Depletable {
			continue
		}
		if m.Volume <= 0 {
			return nil, fmt.Errorf("material %d: depletable material needs a positive volume", m.ID)
		}
		if len(m.Nuclides) != len(m.Densities) {
			return nil, fmt.Errorf("material %d: %d nuclides but %d densities", m.ID, len(m.Nuclides), len(m.Densities))
		}
		n.MaterialIDs = append(n.MaterialIDs, m.ID)
		n.Volumes = append(n.Volumes, m.Volume)
		for _, nuc := range m.Nuclides {
			if _, ok := n.index[nuc]; !ok {
				n.index[nuc] = len(n.Nuclides)
				n.Nuclides = append(n.Nuclides, nuc)
			}
		}
	}

	n.atoms = make(AtomVector, len(n.MaterialIDs))
	row := 0
	for _, m := range materials {
		if !m.Depletable {
			continue
		}
		n.atoms[row] = make([]float64, len(n.Nuclides))
		for i, nuc := range m.Nuclides {
			n.atoms[row][n.index[nuc]] = m.Densities[i] * m.Volume / barnCm
		}
		row++
	}
	return n, nil
}

// Atoms returns a copy of the current inventory.
func (n *AtomNumber) Atoms() AtomVector { return n.atoms.Clone() }

// SetAtoms replaces the inventory. The shape must match.
func (n *AtomNumber) SetAtoms(vec AtomVector) error {
	if len(vec) != len(n.MaterialIDs) {
		return fmt.Errorf("atom vector has %d materials, expected %d", len(vec), len(n.MaterialIDs))
	}
	for i, row := range vec {
		if len(row) != len(n.Nuclides) {
			return fmt.Errorf("atom vector row %d has %d nuclides, expected %d", i, len(row), len(n.Nuclides))
		}
	}
	n.atoms = vec.Clone()
	return nil
}

// Densities returns the nuclides present in material row i and their
// densities in atom/b-cm. Nuclides with no atoms are omitted.
func (n *AtomNumber) Densities(i int) ([]string, []float64) {
	var names []string
	var dens []float64
	for j, nuc := range n.Nuclides {
		a := n.atoms[i][j]
		if a <= 0 {
			continue
		}
		names = append(names, nuc)
		dens = append(dens, a/n.Volumes[i]*barnCm)
	}
	return names, dens
}

// PresentNuclides returns the nuclides with a positive inventory in any
// material, in axis order.
func (n *AtomNumber) PresentNuclides() []string {
	var out []string
	for j, nuc := range n.Nuclides {
		for i := range n.atoms {
			if n.atoms[i][j] > 0 {
				out = append(out, nuc)
				break
			}
		}
	}
	return out
}

// MaterialLabels returns the material IDs as strings.
func (n *AtomNumber) MaterialLabels() []string { return IDStrings(n.MaterialIDs) }
