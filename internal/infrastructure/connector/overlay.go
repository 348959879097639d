package connector

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// overlay deep-merges mapped fields onto an encoded payload. Nested objects
// merge key by key, arrays of objects merge element by element, and any other
// value in src replaces the one in dst.
func overlay(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	for k, sv := range src {
		dst[k] = mergeValue(dst[k], sv)
	}
	return dst
}

func mergeValue(dv, sv any) any {
	switch s := sv.(type) {
	case map[string]any:
		if d, ok := dv.(map[string]any); ok {
			return overlay(d, s)
		}
		return s
	case []any:
		d, ok := dv.([]any)
		if !ok {
			return s
		}
		out := make([]any, len(d))
		copy(out, d)
		for i, item := range s {
			if i < len(out) {
				out[i] = mergeValue(out[i], item)
			} else {
				out = append(out, item)
			}
		}
		return out
	default:
		return sv
	}
}

// toMap renders a wire struct as a generic JSON object
func toMap(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any)
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// fromMap decodes a generic JSON object into a wire struct
func fromMap(m map[string]any, v any) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

// parseDecimal parses a platform money string; empty or invalid values are zero
func parseDecimal(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// parseTime accepts RFC 3339 timestamps with or without fractional seconds
func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
	}
	return t.UTC(), nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// stringValue renders an id or scalar from a decoded JSON document
func stringValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return decimal.NewFromFloat(x).String()
	case json.Number:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}
