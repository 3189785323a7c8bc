package normalize

import (
	"encoding/json"
	"strconv"
	"strings"
)

// The extraction service returns loosely-typed JSON, so every field
// read goes through these explicit presence-checked accessors. Nothing
// in this package touches a document key without one.

func getString(m map[string]any, key string) (string, bool) {
	v, ok := m[key]
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	return s, true
}

// getFloat coerces a numeric document value to float64. JSON decoding
// yields float64 for numbers, but models occasionally emit numbers as
// strings ("3.99") and test fixtures use ints, so both are accepted.
func getFloat(m map[string]any, key string) (float64, bool) {
	v, ok := m[key]
	if !ok || v == nil {
		return 0, false
	}
	return coerceFloat(v)
}

func coerceFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// getInt coerces to int, for item quantities.
func getInt(m map[string]any, key string) (int, bool) {
	f, ok := getFloat(m, key)
	if !ok {
		return 0, false
	}
	return int(f), true
}

// getList returns the value as a generic slice, for the items array.
func getList(m map[string]any, key string) ([]any, bool) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, false
	}
	l, ok := v.([]any)
	return l, ok
}
