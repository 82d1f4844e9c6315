// internal/workflow/state.go
package workflow

import "reflect"

// DeepCopyState copies the nested map/slice shape that JSON decoding
// produces. Scalar leaves are copied by value; unknown types are kept as-is.
func DeepCopyState(state map[string]any) map[string]any {
	if state == nil {
		return nil
	}
	out := make(map[string]any, len(state))
	for k, v := range state {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return DeepCopyState(t)
	case []any:
		out := make([]any, len(t))
		for i, el := range t {
			out[i] = deepCopyValue(el)
		}
		return out
	default:
		return v
	}
}

// StateEqual is the structural equality used by the fixpoint detector.
func StateEqual(a, b map[string]any) bool {
	return reflect.DeepEqual(a, b)
}

func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	default:
		return 0, false
	}
}
