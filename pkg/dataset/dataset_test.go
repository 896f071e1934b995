package dataset

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValidation(t *testing.T) {
	_, err := New([]string{"a", "a"}, nil)
	assert.Error(t, err, "duplicate columns must be rejected")

	_, err = New([]string{"a", "b"}, [][]Value{{Int(1)}})
	assert.Error(t, err, "row width must match column count")

	d, err := New([]string{"a", "b"}, [][]Value{{Int(1), String("x")}})
	require.NoError(t, err)
	assert.Equal(t, 1, d.NumRows())
	assert.Equal(t, 2, d.NumColumns())
}

func TestEmpty(t *testing.T) {
	d := Empty()
	assert.True(t, d.IsEmpty())
	assert.Equal(t, 0, d.NumRows())
	assert.Equal(t, 0, d.NumColumns())
}

func TestNewCopiesInput(t *testing.T) {
	cols := []string{"a"}
	rows := [][]Value{{Int(1)}}
	d, err := New(cols, rows)
	require.NoError(t, err)

	rows[0][0] = Int(99)
	cols[0] = "mutated"

	v, ok := d.Value(0, "a")
	require.True(t, ok)
	assert.True(t, v.Equal(Int(1)))
	assert.Equal(t, []string{"a"}, d.Columns())
}

func TestSelect(t *testing.T) {
	d, err := New([]string{"n"}, [][]Value{{Int(1)}, {Int(2)}, {Int(3)}})
	require.NoError(t, err)

	out := d.Select([]int{2, 0})
	require.Equal(t, 2, out.NumRows())
	v, _ := out.Value(0, "n")
	assert.True(t, v.Equal(Int(3)))
	v, _ = out.Value(1, "n")
	assert.True(t, v.Equal(Int(1)))

	// Source unchanged
	assert.Equal(t, 3, d.NumRows())
}

func TestWithColumn(t *testing.T) {
	d, err := New([]string{"a"}, [][]Value{{Int(1)}, {Int(2)}})
	require.NoError(t, err)

	out, err := d.WithColumn("b", []Value{String("x"), String("y")})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, out.Columns())
	assert.Equal(t, []string{"a"}, d.Columns())

	_, err = d.WithColumn("a", []Value{Int(0), Int(0)})
	assert.Error(t, err, "existing column name must be rejected")

	_, err = d.WithColumn("c", []Value{Int(0)})
	assert.Error(t, err, "value count must match row count")
}

func TestDatasetEqual(t *testing.T) {
	a, _ := New([]string{"x"}, [][]Value{{Int(1)}})
	b, _ := New([]string{"x"}, [][]Value{{Float(1)}})
	c, _ := New([]string{"x"}, [][]Value{{Int(2)}})

	assert.True(t, a.Equal(b), "int 1 and float 1 are value-equal")
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(nil))
}

func TestColumnKind(t *testing.T) {
	d, _ := New([]string{"a", "b"}, [][]Value{
		{Null(), Null()},
		{Float(1.5), Null()},
	})
	assert.Equal(t, KindFloat, d.ColumnKind("a"))
	assert.Equal(t, KindNull, d.ColumnKind("b"))
	assert.Equal(t, KindNull, d.ColumnKind("missing"))
}

func TestBuilder(t *testing.T) {
	b := NewBuilder([]string{"a", "b"})
	b.AppendRow([]Value{Int(1), String("x")})
	b.AppendRow([]Value{Int(2), String("y")})
	assert.Equal(t, 2, b.Len())

	d, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, 2, d.NumRows())
}

func TestBuilderWidthMismatch(t *testing.T) {
	b := NewBuilder([]string{"a", "b"})
	b.AppendRow([]Value{Int(1)})
	_, err := b.Build()
	assert.Error(t, err)
}

func TestValueEqual(t *testing.T) {
	assert.True(t, Null().Equal(Null()))
	assert.False(t, Null().Equal(Int(0)))
	assert.True(t, Int(3).Equal(Float(3)))
	assert.False(t, Int(1).Equal(String("1")))

	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	assert.True(t, Time(ts).Equal(Time(ts.In(time.FixedZone("x", 3600)))))
}

func TestValueCompare(t *testing.T) {
	cmp, err := Int(2).Compare(Float(2.5))
	require.NoError(t, err)
	assert.Equal(t, -1, cmp)

	cmp, err = String("b").Compare(String("a"))
	require.NoError(t, err)
	assert.Equal(t, 1, cmp)

	_, err = Null().Compare(Int(1))
	assert.Error(t, err)

	_, err = Bool(true).Compare(Bool(false))
	assert.Error(t, err, "booleans are unordered")

	_, err = String("a").Compare(Int(1))
	assert.Error(t, err)
}

func TestValueCoerce(t *testing.T) {
	v, err := String("42").Coerce(KindInt)
	require.NoError(t, err)
	assert.True(t, v.Equal(Int(42)))

	v, err = Int(1).Coerce(KindBool)
	require.NoError(t, err)
	assert.True(t, v.Equal(Bool(true)))

	v, err = String("2024-05-01").Coerce(KindTime)
	require.NoError(t, err)
	ts, ok := v.Timestamp()
	require.True(t, ok)
	assert.Equal(t, 2024, ts.Year())

	_, err = String("not a number").Coerce(KindFloat)
	assert.Error(t, err)

	// Null coerces to null for any target
	v, err = Null().Coerce(KindInt)
	require.NoError(t, err)
	assert.True(t, v.IsNull())
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("Integer")
	require.NoError(t, err)
	assert.Equal(t, KindInt, k)

	_, err = ParseKind("decimal128")
	assert.Error(t, err)
}

func TestFromAny(t *testing.T) {
	assert.Equal(t, KindInt, FromAny(7).Kind())
	assert.Equal(t, KindFloat, FromAny(1.5).Kind())
	assert.Equal(t, KindString, FromAny([]byte("x")).Kind())
	assert.Equal(t, KindTime, FromAny(time.Now()).Kind())
	assert.True(t, FromAny(nil).IsNull())
}
