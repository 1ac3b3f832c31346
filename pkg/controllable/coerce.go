package controllable

import (
	"fmt"
	"strconv"

	"github.com/aretw0/coupler/pkg/domain"
)

// Coerce converts a JSON-decoded value into the Go type of kind.
func Coerce(kind domain.ValueKind, raw any) (any, error) {
	switch kind {
	case domain.KindReal:
		return toReal(raw)
	case domain.KindString:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T: %w", raw, domain.ErrKindMismatch)
		}
		return s, nil
	case domain.KindVectorString:
		switch v := raw.(type) {
		case []string:
			return v, nil
		case []any:
			out := make([]string, len(v))
			for i, item := range v {
				s, ok := item.(string)
				if !ok {
					return nil, fmt.Errorf("item %d: expected string, got %T: %w", i, item, domain.ErrKindMismatch)
				}
				out[i] = s
			}
			return out, nil
		}
	case domain.KindVectorReal:
		switch v := raw.(type) {
		case []float64:
			return v, nil
		case []any:
			out := make([]float64, len(v))
			for i, item := range v {
				f, err := toReal(item)
				if err != nil {
					return nil, fmt.Errorf("item %d: %w", i, err)
				}
				out[i] = f.(float64)
			}
			return out, nil
		}
	default:
		return nil, fmt.Errorf("unknown kind %q", kind)
	}
	return nil, fmt.Errorf("expected %s, got %T: %w", kind, raw, domain.ErrKindMismatch)
}

func toReal(raw any) (any, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("expected real, got %q: %w", v, domain.ErrKindMismatch)
		}
		return f, nil
	}
	return nil, fmt.Errorf("expected real, got %T: %w", raw, domain.ErrKindMismatch)
}
