// internal/workflow/condition.go
package workflow

import (
	"strings"

	"github.com/awmpietro/golang-workflow-engine-case/internal/workflow/eval"
)

// LoopCondition ends a run successfully when satisfied. The metric form
// compares a dotted path in the state against a numeric threshold; the expr
// form evaluates a boolean expression over the state. Metric wins when both
// are set.
type LoopCondition struct {
	Metric string  `json:"metric,omitempty"`
	Op     string  `json:"op,omitempty"`
	Value  float64 `json:"value,omitempty"`
	Expr   string  `json:"expr,omitempty"`
}

// ResolveMetric descends the state by dotted path. ok=false the moment any
// intermediate value is missing or not a mapping. A resolved nil counts as
// absent.
func ResolveMetric(state map[string]any, path string) (any, bool) {
	var cur any = state
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	if cur == nil {
		return nil, false
	}
	return cur, true
}

// Satisfied never errors: an absent metric, a non-numeric metric, an unknown
// operator or a failing expression all read as "not satisfied".
func (c *LoopCondition) Satisfied(state map[string]any) bool {
	if c == nil {
		return false
	}

	if c.Metric != "" {
		raw, ok := ResolveMetric(state, c.Metric)
		if !ok {
			return false
		}
		v, ok := asFloat(raw)
		if !ok {
			return false
		}
		switch c.Op {
		case "<=":
			return v <= c.Value
		case "<":
			return v < c.Value
		case ">=":
			return v >= c.Value
		case ">":
			return v > c.Value
		case "==":
			return v == c.Value
		case "!=":
			return v != c.Value
		default:
			return false
		}
	}

	if c.Expr != "" {
		ok, err := eval.Eval(c.Expr, state)
		return err == nil && ok
	}

	return false
}
