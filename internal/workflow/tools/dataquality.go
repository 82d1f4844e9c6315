// internal/workflow/tools/dataquality.go
package tools

import "fmt"

// The built-in tools implement a small data-quality pipeline over
// state["data"]: profile it, flag out-of-bounds values, derive repair rules
// and apply them. Each tool returns a new top-level state map and writes
// numbers as float64 so a record survives a JSON store round-trip
// unchanged.

const (
	defaultLowBound  = 0
	defaultHighBound = 100
	maxAnomalySample = 10
)

// Profile computes row and null counts over state.data (missing data is
// treated as empty).
func Profile(state map[string]any) (map[string]any, error) {
	data := dataSlice(state)
	nulls := 0
	for _, v := range data {
		if v == nil {
			nulls++
		}
	}

	out := cloneTop(state)
	out["profile"] = map[string]any{
		"rows":  float64(len(data)),
		"nulls": float64(nulls),
	}
	return out, nil
}

// DetectAnomalies collects the non-null elements outside
// state.anomaly_bounds (default (0, 100)), keeping at most the first 10.
func DetectAnomalies(state map[string]any) (map[string]any, error) {
	data := dataSlice(state)
	low, high := bounds(state)

	values := []any{}
	count := 0
	for _, v := range data {
		if v == nil {
			continue
		}
		f, ok := asFloat(v)
		if !ok {
			return nil, fmt.Errorf("data element %#v is not numeric", v)
		}
		if f < low || f > high {
			count++
			if len(values) < maxAnomalySample {
				values = append(values, v)
			}
		}
	}

	out := cloneTop(state)
	out["anomalies"] = map[string]any{
		"count":  float64(count),
		"values": values,
	}
	return out, nil
}

// GenerateRules derives repair rules from the profile and anomaly reports:
// fill_null when nulls were found, clip when anomalies were found, in that
// order.
func GenerateRules(state map[string]any) (map[string]any, error) {
	rules := []any{}

	if nulls, ok := metricFloat(state, "profile", "nulls"); ok && nulls > 0 {
		rules = append(rules, map[string]any{
			"name":   "fill_null",
			"action": "fill",
			"value":  float64(0),
		})
	}

	if count, ok := metricFloat(state, "anomalies", "count"); ok && count > 0 {
		low, high := bounds(state)
		rules = append(rules, map[string]any{
			"name":   "clip",
			"action": "clip",
			"low":    low,
			"high":   high,
		})
	}

	out := cloneTop(state)
	out["rules"] = rules
	return out, nil
}

// ApplyRules rewrites state.data element-wise. Each element is classified
// once: nulls are filled (if a fill_null rule exists), everything else is
// clipped (if a clip rule exists). Clip never applies to a freshly filled
// value.
func ApplyRules(state map[string]any) (map[string]any, error) {
	data := dataSlice(state)
	fillRule := findRule(state, "fill_null")
	clipRule := findRule(state, "clip")

	newData := make([]any, 0, len(data))
	for _, v := range data {
		if v == nil {
			if fillRule != nil {
				newData = append(newData, fillRule["value"])
			} else {
				newData = append(newData, v)
			}
			continue
		}

		if clipRule == nil {
			newData = append(newData, v)
			continue
		}

		f, ok := asFloat(v)
		if !ok {
			return nil, fmt.Errorf("data element %#v is not numeric", v)
		}
		low, lok := asFloat(clipRule["low"])
		high, hok := asFloat(clipRule["high"])
		if !lok || !hok {
			return nil, fmt.Errorf("clip rule has non-numeric bounds: %#v", clipRule)
		}
		newData = append(newData, max(low, min(high, f)))
	}

	out := cloneTop(state)
	out["data"] = newData
	return out, nil
}

func dataSlice(state map[string]any) []any {
	data, _ := state["data"].([]any)
	return data
}

func bounds(state map[string]any) (float64, float64) {
	raw, _ := state["anomaly_bounds"].([]any)
	if len(raw) != 2 {
		return defaultLowBound, defaultHighBound
	}
	low, lok := asFloat(raw[0])
	high, hok := asFloat(raw[1])
	if !lok || !hok {
		return defaultLowBound, defaultHighBound
	}
	return low, high
}

func metricFloat(state map[string]any, section, key string) (float64, bool) {
	m, ok := state[section].(map[string]any)
	if !ok {
		return 0, false
	}
	return asFloat(m[key])
}

func findRule(state map[string]any, name string) map[string]any {
	rules, _ := state["rules"].([]any)
	for _, r := range rules {
		rule, ok := r.(map[string]any)
		if !ok {
			continue
		}
		if rule["name"] == name {
			return rule
		}
	}
	return nil
}

func cloneTop(state map[string]any) map[string]any {
	out := make(map[string]any, len(state)+1)
	for k, v := range state {
		out[k] = v
	}
	return out
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
