package framingham

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Payload is an untyped request body as decoded from JSON
type Payload map[string]any

// Has reports whether key is present with a non-null value
func (p Payload) Has(key string) bool {
	v, ok := p[key]
	return ok && v != nil
}

// Contains reports whether key is present at all, null included
func (p Payload) Contains(key string) bool {
	_, ok := p[key]
	return ok
}

// lookup returns the first non-null value among keys
func (p Payload) lookup(keys ...string) (any, bool) {
	for _, k := range keys {
		if p.Has(k) {
			return p[k], true
		}
	}
	return nil, false
}

// truthy mirrors how legacy clients treated a field as "supplied": zero, empty and false mean absent.
func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	default:
		n, ok := asNumber(v)
		return ok && n != 0 && !math.IsNaN(n)
	}
}

// asNumber converts JSON numbers and numeric strings. NaN is returned with ok=true for
// strings that do not parse, so validation can reject them as non-numeric.
func asNumber(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case json.Number:
		n, err := x.Float64()
		if err != nil {
			return math.NaN(), true
		}
		return n, true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return math.NaN(), true
		}
		return n, true
	}
	return math.NaN(), v != nil
}

// asBool converts booleans, 0/1 style numbers and yes/no style strings
func asBool(v any) (bool, bool) {
	switch x := v.(type) {
	case bool:
		return x, true
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "true", "yes", "y", "1":
			return true, true
		case "false", "no", "n", "0", "":
			return false, true
		}
		return false, false
	}
	n, ok := asNumber(v)
	if !ok || math.IsNaN(n) {
		return false, false
	}
	return n != 0, true
}

// fieldSink collects coerced values and the fields that failed coercion
type fieldSink struct {
	unparsed []Violation
}

func (s *fieldSink) number(field string, v any) *float64 {
	n, ok := asNumber(v)
	if !ok {
		return nil
	}
	return &n
}

func (s *fieldSink) flag(field string, v any) *bool {
	b, ok := asBool(v)
	if !ok {
		s.unparsed = append(s.unparsed, Violation{Field: field, Reason: "must be a boolean"})
		return nil
	}
	return &b
}

func (s *fieldSink) text(field string, v any) *string {
	str, ok := v.(string)
	if !ok {
		s.unparsed = append(s.unparsed, Violation{Field: field, Reason: "must be a string"})
		return nil
	}
	return &str
}

func ptr[T any](v T) *T {
	return &v
}
