package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluate_Comparisons(t *testing.T) {
	vars := map[string]any{
		"count":  5,
		"name":   "alice",
		"active": true,
	}

	cases := []struct {
		expression string
		want       bool
	}{
		{"count == 5", true},
		{"count != 5", false},
		{"count > 3", true},
		{"count >= 5", true},
		{"count < 5", false},
		{"count <= 4", false},
		{"name == 'alice'", true},
		{"name != \"bob\"", true},
		{"name < 'bob'", true},
		{"active == true", true},
		{"active != false", true},
	}

	for _, tc := range cases {
		got, err := Evaluate(tc.expression, vars)
		require.NoError(t, err, tc.expression)
		assert.Equal(t, tc.want, got, tc.expression)
	}
}

func TestEvaluate_BooleanCombinators(t *testing.T) {
	vars := map[string]any{"a": 1, "b": 2}

	cases := []struct {
		expression string
		want       bool
	}{
		{"a == 1 and b == 2", true},
		{"a == 1 && b == 3", false},
		{"a == 9 or b == 2", true},
		{"a == 9 || b == 9", false},
		{"not (a == 9)", true},
		{"!(a == 1)", false},
		{"a == 1 and (b == 9 or b == 2)", true},
	}

	for _, tc := range cases {
		got, err := Evaluate(tc.expression, vars)
		require.NoError(t, err, tc.expression)
		assert.Equal(t, tc.want, got, tc.expression)
	}
}

func TestEvaluate_ShortCircuit(t *testing.T) {
	// The right operand references a missing variable; short-circuiting means
	// it is never evaluated.
	got, err := Evaluate("a == 1 or missing == 2", map[string]any{"a": 1})
	require.NoError(t, err)
	assert.True(t, got)

	got, err = Evaluate("a == 2 and missing == 2", map[string]any{"a": 1})
	require.NoError(t, err)
	assert.False(t, got)
}

func TestEvaluate_DottedLookup(t *testing.T) {
	vars := map[string]any{
		"node_fetch_output": map[string]any{
			"status_code": 200,
		},
	}

	got, err := Evaluate("node_fetch_output.status_code == 200", vars)
	require.NoError(t, err)
	assert.True(t, got)
}

func TestEvaluate_NumericCrossTypes(t *testing.T) {
	vars := map[string]any{"count": float64(5)}

	got, err := Evaluate("count == 5", vars)
	require.NoError(t, err)
	assert.True(t, got)
}

func TestEvaluate_MissingVariable(t *testing.T) {
	_, err := Evaluate("missing == 1", map[string]any{})
	require.Error(t, err)
	require.ErrorIs(t, err, ErrMissingVariable)
}

func TestEvaluate_NonBooleanResult(t *testing.T) {
	_, err := Evaluate("count", map[string]any{"count": 5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not boolean")
}

func TestEvaluate_OrderingNonComparableTypes(t *testing.T) {
	_, err := Evaluate("a < b", map[string]any{"a": true, "b": false})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot order")
}

func TestParse_Errors(t *testing.T) {
	cases := []string{
		"count ==",
		"(count == 1",
		"count === 1",
		"count == 'unterminated",
		"count == 1 extra",
		"@bad",
	}

	for _, expression := range cases {
		_, err := Parse(expression)
		require.Error(t, err, expression)

		var parseErr *ParseError

		require.ErrorAs(t, err, &parseErr, expression)
		assert.Equal(t, expression, parseErr.Expression)
	}
}

func TestParse_ValidExpressionsCompile(t *testing.T) {
	cases := []string{
		"retries < 3",
		"status == 'ok' and not failed",
		"a.b.c >= 10 || override == true",
		"value != null",
	}

	for _, expression := range cases {
		_, err := Parse(expression)
		require.NoError(t, err, expression)
	}
}

func TestEvaluate_NullLiteral(t *testing.T) {
	got, err := Evaluate("value == null", map[string]any{"value": nil})
	require.NoError(t, err)
	assert.True(t, got)
}

func TestEvaluate_BareBooleanVariable(t *testing.T) {
	got, err := Evaluate("active and count > 1", map[string]any{"active": true, "count": 2})
	require.NoError(t, err)
	assert.True(t, got)
}
