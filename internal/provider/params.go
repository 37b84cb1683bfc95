package provider

import (
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"strconv"
)

// Params is a bag of generation parameters keyed by name. Keys are unique
// and their order carries no meaning.
type Params map[string]any

// Clone returns a shallow copy. A nil bag clones to an empty one.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	maps.Copy(out, p)
	return out
}

// ---------------------------------------------------------------------------
// Value coercion
// ---------------------------------------------------------------------------

// Parameter values arrive from three places: Go callers (int, float64),
// decoded JSON (float64, json.Number) and CLI flags (string). Adapters whose
// SDKs need typed fields use these helpers; adapters that forward raw JSON
// pass the values through untouched.

func asFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	case string:
		return strconv.ParseFloat(n, 64)
	default:
		return 0, fmt.Errorf("expected a number, got %T", v)
	}
}

func asInt(v any) (int64, error) {
	f, err := asFloat(v)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("expected an integer, got %v", f)
	}
	return int64(f), nil
}

// asInt32 is asInt limited to [lo, math.MaxInt32].
func asInt32(v any, lo int64) (int32, error) {
	n, err := asInt(v)
	if err != nil {
		return 0, err
	}
	if n < lo || n > math.MaxInt32 {
		return 0, fmt.Errorf("%d out of range [%d, %d]", n, lo, math.MaxInt32)
	}
	return int32(n), nil
}

func asStrings(v any) ([]string, error) {
	switch s := v.(type) {
	case string:
		return []string{s}, nil
	case []string:
		return s, nil
	case []any:
		out := make([]string, 0, len(s))
		for _, item := range s {
			str, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("expected a list of strings, got element %T", item)
			}
			out = append(out, str)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected a string or list of strings, got %T", v)
	}
}
