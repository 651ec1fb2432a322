package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeepMerge(t *testing.T) {
	tests := []struct {
		name   string
		target any
		source any
		want   any
	}{
		{
			name:   "objects merge key by key",
			target: map[string]any{"a": 1.0, "b": map[string]any{"c": 1.0}},
			source: map[string]any{"b": map[string]any{"d": 2.0}},
			want:   map[string]any{"a": 1.0, "b": map[string]any{"c": 1.0, "d": 2.0}},
		},
		{
			name:   "arrays merge by index",
			target: []any{1.0, 2.0},
			source: []any{9.0},
			want:   []any{9.0, 2.0},
		},
		{
			name:   "longer source array extends target",
			target: []any{1.0},
			source: []any{7.0, 8.0},
			want:   []any{7.0, 8.0},
		},
		{
			name:   "array elements merge recursively",
			target: []any{map[string]any{"a": 1.0, "b": 1.0}},
			source: []any{map[string]any{"b": 2.0}},
			want:   []any{map[string]any{"a": 1.0, "b": 2.0}},
		},
		{"scalar target", "x", map[string]any{"a": 1.0}, map[string]any{"a": 1.0}},
		{"scalar source", map[string]any{"a": 1.0}, false, false},
		{"null source", map[string]any{"a": 1.0}, nil, nil},
		{"array over object", map[string]any{"a": 1.0}, []any{1.0}, []any{1.0}},
		{"object over array", []any{1.0}, map[string]any{"a": 1.0}, map[string]any{"a": 1.0}},
		{"scalars", 1.0, 2.0, 2.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeepMerge(tt.target, tt.source))
		})
	}
}

func TestDeepMergeDoesNotMutateInputs(t *testing.T) {
	target := map[string]any{
		"jsc":  map[string]any{"parser": map[string]any{"syntax": "typescript"}},
		"list": []any{1.0, 2.0},
	}
	source := map[string]any{
		"jsc":  map[string]any{"parser": map[string]any{"tsx": true}},
		"list": []any{3.0},
	}

	merged := DeepMerge(target, source).(map[string]any)

	assert.Equal(t, map[string]any{"syntax": "typescript"}, target["jsc"].(map[string]any)["parser"])
	assert.Equal(t, []any{1.0, 2.0}, target["list"])
	assert.Equal(t, map[string]any{"syntax": "typescript", "tsx": true}, merged["jsc"].(map[string]any)["parser"])
	assert.Equal(t, []any{3.0, 2.0}, merged["list"])
}
