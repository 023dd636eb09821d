// Package validate implements field validation for declaration updates:
// the per-field checks and the middleware that orchestrates them over all
// currently visible fields of an incoming action.
package validate

// Merge deep-merges incoming onto base and returns a new map; neither
// input is mutated. The conflict rule is: incoming wins per leaf key.
// Nested maps merge recursively; arrays and every other value type are
// replaced wholesale.
//
// An action may submit only the fields it touches, so visibility for
// untouched fields must be evaluated against the merged picture, never
// the partial payload. This function builds that picture.
func Merge(base, incoming map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(incoming))
	for k, v := range base {
		out[k] = copyValue(v)
	}
	for k, v := range incoming {
		bv, ok := out[k]
		bm, baseIsMap := bv.(map[string]any)
		im, incomingIsMap := v.(map[string]any)
		if ok && baseIsMap && incomingIsMap {
			out[k] = Merge(bm, im)
			continue
		}
		out[k] = copyValue(v)
	}
	return out
}

// copyValue deep-copies maps and slices so merged results never alias
// their inputs.
func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = copyValue(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = copyValue(e)
		}
		return out
	default:
		return v
	}
}
