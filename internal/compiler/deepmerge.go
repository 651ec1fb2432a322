package compiler

import "maps"

// DeepMerge merges source over target without modifying either. Objects
// merge key by key, arrays merge index by index, and in every other case,
// including mismatched kinds, source wins.
func DeepMerge(target, source any) any {
	switch src := source.(type) {
	case map[string]any:
		dst, ok := target.(map[string]any)
		if !ok {
			return source
		}
		merged := maps.Clone(dst)
		for key, value := range src {
			if existing, ok := dst[key]; ok {
				merged[key] = DeepMerge(existing, value)
			} else {
				merged[key] = value
			}
		}
		return merged
	case []any:
		dst, ok := target.([]any)
		if !ok {
			return source
		}
		merged := make([]any, max(len(dst), len(src)))
		copy(merged, dst)
		for i, value := range src {
			if i < len(dst) {
				merged[i] = DeepMerge(dst[i], value)
			} else {
				merged[i] = value
			}
		}
		return merged
	default:
		return source
	}
}
