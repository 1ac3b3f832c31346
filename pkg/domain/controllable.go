package domain

import (
	"fmt"
	"slices"
)

// ValueKind enumerates the value types a controllable parameter can hold.
type ValueKind string

const (
	KindReal         ValueKind = "Real"
	KindString       ValueKind = "std::string"
	KindVectorString ValueKind = "std::vector<std::string>"
	KindVectorReal   ValueKind = "std::vector<Real>"
)

// Valid reports whether k is one of the known kinds.
func (k ValueKind) Valid() bool {
	switch k {
	case KindReal, KindString, KindVectorString, KindVectorReal:
		return true
	}
	return false
}

// Controllable is a named, typed value inside the external solver's object
// tree, e.g. "UserObjects/openmc_mat7/densities".
type Controllable struct {
	Path  string    `json:"name"`
	Kind  ValueKind `json:"type"`
	Value any       `json:"value"`
}

// Validate checks that Value has the Go type required by Kind.
func (c Controllable) Validate() error {
	ok := false
	switch c.Kind {
	case KindReal:
		_, ok = c.Value.(float64)
	case KindString:
		_, ok = c.Value.(string)
	case KindVectorString:
		_, ok = c.Value.([]string)
	case KindVectorReal:
		_, ok = c.Value.([]float64)
	default:
		return fmt.Errorf("controllable %q: unknown kind %q", c.Path, c.Kind)
	}
	if !ok {
		return fmt.Errorf("controllable %q: value %T does not match kind %s: %w", c.Path, c.Value, c.Kind, ErrKindMismatch)
	}
	return nil
}

// Clone returns a copy that shares no slices with c.
func (c Controllable) Clone() Controllable {
	switch v := c.Value.(type) {
	case []string:
		c.Value = slices.Clone(v)
	case []float64:
		c.Value = slices.Clone(v)
	}
	return c
}
