// internal/workflow/literal.go
package workflow

import (
	"strconv"
	"strings"
)

// parseLiteral interprets a DOT attribute value as a Go literal: bools and
// numbers first, then quoted strings, falling back to the raw text.
func parseLiteral(s string) any {
	s = strings.TrimSpace(s)

	if s == "true" {
		return true
	}
	if s == "false" {
		return false
	}

	if i, err := strconv.Atoi(s); err == nil {
		return i
	}

	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}

	if len(s) >= 2 && ((s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'')) {
		if s[0] == '\'' {
			s = `"` + s[1:len(s)-1] + `"`
		}
		if unq, err := strconv.Unquote(s); err == nil {
			return unq
		}
	}

	return s
}
