package workflow

import (
	"regexp"
	"strings"
)

var interpolationPattern = regexp.MustCompile(`\$\{([a-zA-Z0-9_.]+)\}`)

// Interpolate replaces every `${name}` or `${name.path}` token in s with
// its resolved value from ctx, leaving unresolvable tokens as "unknown"
// (spec.md §3.2, §4.4).
func Interpolate(ctx *Context, s string) string {
	return interpolationPattern.ReplaceAllStringFunc(s, func(match string) string {
		ref := interpolationPattern.FindStringSubmatch(match)[1]
		return ctx.Resolve(ref)
	})
}

// EvalCondition evaluates a StepSpec's condition expression: `${var}`
// interpolation, then a flat boolean grammar of `==`/`!=` leaves joined
// by `&&`/`||` (left-to-right, no parentheses, no operator precedence
// beyond that) — "a tiny expression resolver, not a full template
// language" (spec.md §4.4 design notes). An empty condition is true.
func EvalCondition(ctx *Context, expr string) bool {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return true
	}
	interpolated := Interpolate(ctx, expr)

	if strings.Contains(interpolated, "||") {
		for _, clause := range strings.Split(interpolated, "||") {
			if evalAndClause(clause) {
				return true
			}
		}
		return false
	}
	return evalAndClause(interpolated)
}

func evalAndClause(clause string) bool {
	for _, leaf := range strings.Split(clause, "&&") {
		if !evalLeaf(leaf) {
			return false
		}
	}
	return true
}

func evalLeaf(leaf string) bool {
	leaf = strings.TrimSpace(leaf)
	if neg := strings.SplitN(leaf, "!=", 2); len(neg) == 2 {
		return unquote(neg[0]) != unquote(neg[1])
	}
	if eq := strings.SplitN(leaf, "==", 2); len(eq) == 2 {
		return unquote(eq[0]) == unquote(eq[1])
	}
	// Bare truthy leaf: true unless empty, "false", or "unknown".
	trimmed := strings.Trim(unquote(leaf), `"'`)
	return trimmed != "" && trimmed != "false" && trimmed != "unknown"
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
