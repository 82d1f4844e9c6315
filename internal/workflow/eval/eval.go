// internal/workflow/eval/eval.go
package eval

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
)

// Eval evaluates a boolean stop expression against the run state. The state
// map is the expression environment, so nested values are reached with dot
// access ("anomalies.count == 0").
func Eval(cond string, state map[string]any) (bool, error) {
	cond = strings.TrimSpace(cond)
	if cond == "" {
		return true, nil
	}

	if err := Validate(cond); err != nil {
		return false, err
	}

	out, err := expr.Eval(cond, state)
	if err != nil {
		return false, err
	}

	b, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("cond must evaluate to bool (got %T)", out)
	}

	return b, nil
}
