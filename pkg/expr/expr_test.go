package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/confluxdata/conflux/pkg/dataset"
)

func scopeOf(vals map[string]dataset.Value) Scope {
	return func(name string) (dataset.Value, bool) {
		v, ok := vals[name]
		return v, ok
	}
}

func TestEvalTable(t *testing.T) {
	scope := scopeOf(map[string]dataset.Value{
		"quantity": dataset.Int(10),
		"price":    dataset.Float(2.5),
		"region":   dataset.String("north"),
		"active":   dataset.Bool(true),
		"missing":  dataset.Null(),
	})

	tests := []struct {
		src  string
		want dataset.Value
	}{
		{"quantity > 5", dataset.Bool(true)},
		{"quantity > 10", dataset.Bool(false)},
		{"quantity >= 10", dataset.Bool(true)},
		{"quantity == 10", dataset.Bool(true)},
		{"quantity != 10", dataset.Bool(false)},
		{"region == 'north'", dataset.Bool(true)},
		{"region == \"south\"", dataset.Bool(false)},
		{"quantity > 5 and region == 'north'", dataset.Bool(true)},
		{"quantity > 50 or active", dataset.Bool(true)},
		{"not active", dataset.Bool(false)},
		{"NOT (quantity < 5)", dataset.Bool(true)},
		{"quantity + 5", dataset.Int(15)},
		{"quantity * price", dataset.Float(25)},
		{"quantity / 4", dataset.Float(2.5)},
		{"quantity % 3", dataset.Int(1)},
		{"-quantity", dataset.Int(-10)},
		{"region + '-1'", dataset.String("north-1")},
		{"1 + 2 * 3", dataset.Int(7)},
		{"(1 + 2) * 3", dataset.Int(9)},
		// Null semantics
		{"missing == null", dataset.Bool(true)},
		{"missing != null", dataset.Bool(false)},
		{"missing > 5", dataset.Bool(false)},
		{"missing + 1", dataset.Null()},
		{"true and quantity > 5", dataset.Bool(true)},
	}

	for _, tc := range tests {
		t.Run(tc.src, func(t *testing.T) {
			e, err := Parse(tc.src)
			require.NoError(t, err)
			got, err := e.Eval(scope)
			require.NoError(t, err)
			assert.True(t, got.Equal(tc.want), "got %v (%s), want %v (%s)",
				got, got.Kind(), tc.want, tc.want.Kind())
		})
	}
}

func TestParseErrors(t *testing.T) {
	for _, src := range []string{
		"",
		"quantity >",
		"(quantity > 5",
		"1 +",
		"== 3",
		"'unterminated",
	} {
		_, err := Parse(src)
		assert.Error(t, err, "expected parse failure for %q", src)
	}
}

func TestEvalErrors(t *testing.T) {
	scope := scopeOf(map[string]dataset.Value{
		"n": dataset.Int(1),
		"s": dataset.String("x"),
	})

	for _, src := range []string{
		"unknown_column > 1",
		"n and true",
		"not n",
		"s * 2",
		"n / 0",
		"n % 0",
		"s > 1",
	} {
		e, err := Parse(src)
		require.NoError(t, err, src)
		_, err = e.Eval(scope)
		assert.Error(t, err, "expected eval failure for %q", src)
	}
}

func TestEvalBool(t *testing.T) {
	e, err := Parse("1 + 1")
	require.NoError(t, err)
	_, err = e.EvalBool(scopeOf(nil))
	assert.Error(t, err, "non-boolean result must be rejected")
}

func TestIdentifiers(t *testing.T) {
	e, err := Parse("b > 1 and a + b < c")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, e.Identifiers())
	assert.Equal(t, "b > 1 and a + b < c", e.Source())
}

func TestKeywordsCaseInsensitive(t *testing.T) {
	e, err := Parse("TRUE AND NOT FALSE")
	require.NoError(t, err)
	v, err := e.Eval(scopeOf(nil))
	require.NoError(t, err)
	assert.True(t, v.Equal(dataset.Bool(true)))
}

func TestRowScope(t *testing.T) {
	d, err := dataset.New([]string{"a"}, [][]dataset.Value{
		{dataset.Int(1)},
		{dataset.Int(2)},
	})
	require.NoError(t, err)

	e, err := Parse("a == 2")
	require.NoError(t, err)

	ok, err := e.EvalBool(RowScope(d, 0))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = e.EvalBool(RowScope(d, 1))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestShortCircuit(t *testing.T) {
	// The right side references an unknown column but must never be reached
	scope := scopeOf(map[string]dataset.Value{"n": dataset.Int(1)})

	e, err := Parse("n > 100 and boom > 1")
	require.NoError(t, err)
	v, err := e.Eval(scope)
	require.NoError(t, err)
	assert.True(t, v.Equal(dataset.Bool(false)))

	e, err = Parse("n == 1 or boom > 1")
	require.NoError(t, err)
	v, err = e.Eval(scope)
	require.NoError(t, err)
	assert.True(t, v.Equal(dataset.Bool(true)))
}
