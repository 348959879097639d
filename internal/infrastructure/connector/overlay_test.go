package connector

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOverlay(t *testing.T) {
	tests := []struct {
		name string
		dst  map[string]any
		src  map[string]any
		want map[string]any
	}{
		{
			name: "scalars replace",
			dst:  map[string]any{"title": "Mug", "price": "9.00"},
			src:  map[string]any{"title": "Big Mug"},
			want: map[string]any{"title": "Big Mug", "price": "9.00"},
		},
		{
			name: "nested objects merge",
			dst:  map[string]any{"address": map[string]any{"city": "Lisbon", "zip": "1000"}},
			src:  map[string]any{"address": map[string]any{"zip": "1100"}},
			want: map[string]any{"address": map[string]any{"city": "Lisbon", "zip": "1100"}},
		},
		{
			name: "arrays merge element-wise",
			dst:  map[string]any{"lines": []any{map[string]any{"sku": "A", "qty": 1}, map[string]any{"sku": "B"}}},
			src:  map[string]any{"lines": []any{map[string]any{"qty": 2}, nil, "extra"}},
			want: map[string]any{"lines": []any{map[string]any{"sku": "A", "qty": 2}, nil, "extra"}},
		},
		{
			name: "nil destination",
			src:  map[string]any{"a": 1},
			want: map[string]any{"a": 1},
		},
		{
			name: "object replaces scalar",
			dst:  map[string]any{"meta": "x"},
			src:  map[string]any{"meta": map[string]any{"k": "v"}},
			want: map[string]any{"meta": map[string]any{"k": "v"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, overlay(tt.dst, tt.src))
		})
	}
}

func TestParseHelpers(t *testing.T) {
	assert.True(t, parseDecimal("").IsZero())
	assert.True(t, parseDecimal("abc").IsZero())
	assert.Equal(t, "12.5", parseDecimal("12.50").String())

	ts, err := parseTime("2026-03-01T10:00:00.123+02:00")
	require.NoError(t, err)
	assert.Equal(t, time.UTC, ts.Location())
	assert.Equal(t, 8, ts.Hour())

	zero, err := parseTime("")
	require.NoError(t, err)
	assert.True(t, zero.IsZero())

	_, err = parseTime("01/03/2026")
	assert.Error(t, err)

	assert.Equal(t, "", formatTime(time.Time{}))
	assert.Equal(t, "2026-03-01T08:00:00Z", formatTime(ts.Truncate(time.Second)))

	assert.Equal(t, "7012345678901", stringValue(json.Number("7012345678901")))
	assert.Equal(t, "42", stringValue(float64(42)))
	assert.Equal(t, "", stringValue(nil))
	assert.Equal(t, "true", stringValue(true))
}
