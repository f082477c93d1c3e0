package model

import (
	"strconv"

	"github.com/rotisserie/eris"
)

// CoerceValue normalizes a dynamically-typed field value (e.g. a float64
// produced by a JSON round-trip) to the field's storage kind. Returns an
// error for unknown fields or values that cannot be represented.
func CoerceValue(f Field, v any) (any, error) {
	m, ok := fieldMetas[f]
	if !ok {
		return nil, eris.Errorf("model: unknown field %q", f)
	}

	switch m.Kind {
	case KindString:
		switch s := v.(type) {
		case string:
			return s, nil
		default:
			return nil, eris.Errorf("model: field %q expects string, got %T", f, v)
		}
	case KindInt:
		switch n := v.(type) {
		case int64:
			return n, nil
		case int:
			return int64(n), nil
		case float64:
			return int64(n), nil
		case string:
			parsed, err := strconv.ParseInt(n, 10, 64)
			if err != nil {
				return nil, eris.Wrapf(err, "model: field %q", f)
			}
			return parsed, nil
		default:
			return nil, eris.Errorf("model: field %q expects integer, got %T", f, v)
		}
	case KindFloat:
		switch n := v.(type) {
		case float64:
			return n, nil
		case int64:
			return float64(n), nil
		case int:
			return float64(n), nil
		case string:
			parsed, err := strconv.ParseFloat(n, 64)
			if err != nil {
				return nil, eris.Wrapf(err, "model: field %q", f)
			}
			return parsed, nil
		default:
			return nil, eris.Errorf("model: field %q expects float, got %T", f, v)
		}
	default:
		return nil, eris.Errorf("model: field %q has unknown kind", f)
	}
}

// NumericValue extracts a float64 from a field value of any supported type.
// The second return is false for non-numeric values.
func NumericValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}
