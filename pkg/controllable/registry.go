// Package controllable is a typed key-value store of solver parameters,
// keyed by hierarchical path and restricted to a fixed set of value kinds.
package controllable

import (
	"fmt"
	"slices"
	"sync"

	"github.com/aretw0/coupler/pkg/domain"
)

// Registry holds declared controllables and their current values.
// Safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]domain.Controllable
	order   []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]domain.Controllable)}
}

// Declare registers a path with its kind and initial value. A nil initial
// value is replaced by the zero value of the kind. Redeclaring a path with
// the same kind resets its value.
func (r *Registry) Declare(path string, kind domain.ValueKind, initial any) error {
	if path == "" {
		return fmt.Errorf("controllable path cannot be empty")
	}
	if initial == nil {
		initial = zero(kind)
	}
	c := domain.Controllable{Path: path, Kind: kind, Value: initial}
	if err := c.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.entries[path]; ok {
		if prev.Kind != kind {
			return fmt.Errorf("controllable %q already declared as %s: %w", path, prev.Kind, domain.ErrKindMismatch)
		}
	} else {
		r.order = append(r.order, path)
	}
	r.entries[path] = c.Clone()
	return nil
}

func zero(kind domain.ValueKind) any {
	switch kind {
	case domain.KindReal:
		return 0.0
	case domain.KindString:
		return ""
	case domain.KindVectorString:
		return []string{}
	case domain.KindVectorReal:
		return []float64{}
	}
	return nil
}

// Kind returns the declared kind of path.
func (r *Registry) Kind(path string) (domain.ValueKind, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.entries[path]
	return c.Kind, ok
}

// Check verifies that c targets a declared path with a matching kind and value.
func (r *Registry) Check(c domain.Controllable) error {
	r.mu.RLock()
	prev, ok := r.entries[c.Path]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%q: %w", c.Path, domain.ErrUndeclaredPath)
	}
	if prev.Kind != c.Kind {
		return fmt.Errorf("%q is declared as %s, not %s: %w", c.Path, prev.Kind, c.Kind, domain.ErrKindMismatch)
	}
	return c.Validate()
}

// Put stores a value after Check.
func (r *Registry) Put(c domain.Controllable) error {
	if err := r.Check(c); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[c.Path] = c.Clone()
	return nil
}

// Get returns a copy of the current value.
func (r *Registry) Get(path string) (domain.Controllable, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.entries[path]
	if !ok {
		return domain.Controllable{}, false
	}
	return c.Clone(), true
}

// Paths returns the declared paths in declaration order.
func (r *Registry) Paths() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.order)
}

// Clone returns an independent copy of the registry.
func (r *Registry) Clone() *Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := &Registry{entries: make(map[string]domain.Controllable, len(r.entries)), order: slices.Clone(r.order)}
	for path, c := range r.entries {
		out.entries[path] = c.Clone()
	}
	return out
}

// Len returns the number of declared paths.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// SetReal stores a scalar.
func (r *Registry) SetReal(path string, v float64) error {
	return r.Put(domain.Controllable{Path: path, Kind: domain.KindReal, Value: v})
}

// SetString stores a string.
func (r *Registry) SetString(path string, v string) error {
	return r.Put(domain.Controllable{Path: path, Kind: domain.KindString, Value: v})
}

// SetVectorString stores a string vector.
func (r *Registry) SetVectorString(path string, v []string) error {
	return r.Put(domain.Controllable{Path: path, Kind: domain.KindVectorString, Value: slices.Clone(v)})
}

// SetVectorReal stores a real vector.
func (r *Registry) SetVectorReal(path string, v []float64) error {
	return r.Put(domain.Controllable{Path: path, Kind: domain.KindVectorReal, Value: slices.Clone(v)})
}

func get[T any](r *Registry, path string, kind domain.ValueKind) (T, error) {
	var zero T
	c, ok := r.Get(path)
	if !ok {
		return zero, fmt.Errorf("%q: %w", path, domain.ErrUndeclaredPath)
	}
	if c.Kind != kind {
		return zero, fmt.Errorf("%q is declared as %s, not %s: %w", path, c.Kind, kind, domain.ErrKindMismatch)
	}
	return c.Value.(T), nil
}

// Real reads a scalar.
func (r *Registry) Real(path string) (float64, error) {
	return get[float64](r, path, domain.KindReal)
}

// String reads a string.
func (r *Registry) String(path string) (string, error) {
	return get[string](r, path, domain.KindString)
}

// VectorString reads a string vector.
func (r *Registry) VectorString(path string) ([]string, error) {
	return get[[]string](r, path, domain.KindVectorString)
}

// VectorReal reads a real vector.
func (r *Registry) VectorReal(path string) ([]float64, error) {
	return get[[]float64](r, path, domain.KindVectorReal)
}
