// Package template substitutes context bindings into node parameters.
// Parameters may reference "$variable" bindings and "$node_<id>_output"
// values from already-completed nodes. An unresolved token is an error, never
// passed through literally.
package template

import (
	"fmt"
	"regexp"
	"strings"
)

// Dot separators bind only between path segments, so a token at sentence end
// ("$total.") does not swallow the trailing dot.
var tokenPattern = regexp.MustCompile(`\$[A-Za-z_][A-Za-z0-9_]*(?:\.[A-Za-z0-9_]+)*`)

// UnresolvedVariableError indicates a parameter referenced a binding that is
// not present in the execution context.
type UnresolvedVariableError struct {
	Token string
}

func (e *UnresolvedVariableError) Error() string {
	return fmt.Sprintf("unresolved variable %q in node params", e.Token)
}

// Render returns a copy of params with every $token replaced from the
// context snapshot. A string that is exactly one token keeps the bound
// value's type; tokens embedded in a larger string are interpolated.
func Render(params map[string]any, context map[string]any) (map[string]any, error) {
	if params == nil {
		return nil, nil
	}

	rendered := make(map[string]any, len(params))

	for key, value := range params {
		resolved, err := renderValue(value, context)
		if err != nil {
			return nil, err
		}

		rendered[key] = resolved
	}

	return rendered, nil
}

// Resolve substitutes a single string the same way Render treats parameter
// values: a whole-token "$binding" keeps the bound value's type, embedded
// tokens interpolate, and a plain string passes through unchanged.
func Resolve(s string, context map[string]any) (any, error) {
	return renderString(s, context)
}

func renderValue(value any, context map[string]any) (any, error) {
	switch v := value.(type) {
	case string:
		return renderString(v, context)
	case map[string]any:
		return Render(v, context)
	case []any:
		rendered := make([]any, len(v))

		for i, item := range v {
			resolved, err := renderValue(item, context)
			if err != nil {
				return nil, err
			}

			rendered[i] = resolved
		}

		return rendered, nil
	default:
		return value, nil
	}
}

func renderString(s string, context map[string]any) (any, error) {
	// Whole-token reference: keep the bound value as-is, types included.
	if tokenPattern.MatchString(s) && tokenPattern.FindString(s) == s {
		value, ok := resolve(s, context)
		if !ok {
			return nil, &UnresolvedVariableError{Token: s}
		}

		return value, nil
	}

	var unresolved *UnresolvedVariableError

	interpolated := tokenPattern.ReplaceAllStringFunc(s, func(token string) string {
		value, ok := resolve(token, context)
		if !ok {
			if unresolved == nil {
				unresolved = &UnresolvedVariableError{Token: token}
			}

			return token
		}

		return fmt.Sprintf("%v", value)
	})

	if unresolved != nil {
		return nil, unresolved
	}

	return interpolated, nil
}

// resolve looks up a $token, supporting dotted paths into nested maps.
func resolve(token string, context map[string]any) (any, bool) {
	name := strings.TrimPrefix(token, "$")
	parts := strings.Split(name, ".")

	var current any = context

	for _, part := range parts {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}

		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}

	return current, true
}
