// Package dataset defines the immutable tabular value passed between
// pipeline stages: an ordered set of named columns plus rows of aligned
// scalar values. Every operation that changes a dataset returns a new one.
package dataset

import (
	"github.com/confluxdata/conflux/pkg/errors"
)

// Dataset is an immutable table. Columns are unique and ordered; every row
// has exactly one value per column.
type Dataset struct {
	columns []string
	index   map[string]int
	rows    [][]Value
}

// New builds a dataset from column names and rows. Column names must be
// unique and every row must match the column count.
func New(columns []string, rows [][]Value) (*Dataset, error) {
	index := make(map[string]int, len(columns))
	for i, c := range columns {
		if _, dup := index[c]; dup {
			return nil, errors.Newf(errors.ErrorTypeData, "duplicate column %q", c)
		}
		index[c] = i
	}
	for i, row := range rows {
		if len(row) != len(columns) {
			return nil, errors.Newf(errors.ErrorTypeData,
				"row %d has %d values, want %d", i, len(row), len(columns))
		}
	}
	d := &Dataset{
		columns: append([]string(nil), columns...),
		index:   index,
		rows:    make([][]Value, len(rows)),
	}
	for i, row := range rows {
		d.rows[i] = append([]Value(nil), row...)
	}
	return d, nil
}

// Empty returns a dataset with zero rows and zero columns. Connectors return
// it to report extraction failures.
func Empty() *Dataset {
	return &Dataset{index: map[string]int{}}
}

// Columns returns the ordered column names
func (d *Dataset) Columns() []string {
	return append([]string(nil), d.columns...)
}

// NumRows returns the row count
func (d *Dataset) NumRows() int { return len(d.rows) }

// NumColumns returns the column count
func (d *Dataset) NumColumns() int { return len(d.columns) }

// IsEmpty reports whether the dataset has no rows
func (d *Dataset) IsEmpty() bool { return len(d.rows) == 0 }

// ColumnIndex returns the position of the named column, or -1
func (d *Dataset) ColumnIndex(name string) int {
	if i, ok := d.index[name]; ok {
		return i
	}
	return -1
}

// HasColumn reports whether the named column exists
func (d *Dataset) HasColumn(name string) bool {
	_, ok := d.index[name]
	return ok
}

// Row returns row i. The returned slice is shared with the dataset and must
// not be modified.
func (d *Dataset) Row(i int) []Value { return d.rows[i] }

// Value returns the value at row i in the named column
func (d *Dataset) Value(i int, column string) (Value, bool) {
	idx, ok := d.index[column]
	if !ok || i < 0 || i >= len(d.rows) {
		return Null(), false
	}
	return d.rows[i][idx], true
}

// Select returns a new dataset containing the given rows, in order, with the
// same columns.
func (d *Dataset) Select(rowIndices []int) *Dataset {
	rows := make([][]Value, 0, len(rowIndices))
	for _, i := range rowIndices {
		rows = append(rows, d.rows[i])
	}
	out, _ := New(d.columns, rows)
	return out
}

// WithColumn returns a new dataset with an extra column appended. The value
// slice must have one entry per row.
func (d *Dataset) WithColumn(name string, values []Value) (*Dataset, error) {
	if d.HasColumn(name) {
		return nil, errors.Newf(errors.ErrorTypeData, "column %q already exists", name)
	}
	if len(values) != len(d.rows) {
		return nil, errors.Newf(errors.ErrorTypeData,
			"column %q has %d values, want %d", name, len(values), len(d.rows))
	}
	columns := append(d.Columns(), name)
	rows := make([][]Value, len(d.rows))
	for i, row := range d.rows {
		nr := make([]Value, 0, len(row)+1)
		nr = append(nr, row...)
		nr = append(nr, values[i])
		rows[i] = nr
	}
	return New(columns, rows)
}

// Equal reports whether two datasets have the same columns, in order, and
// value-equal rows, in order.
func (d *Dataset) Equal(other *Dataset) bool {
	if other == nil || len(d.columns) != len(other.columns) || len(d.rows) != len(other.rows) {
		return false
	}
	for i, c := range d.columns {
		if other.columns[i] != c {
			return false
		}
	}
	for i, row := range d.rows {
		for j, v := range row {
			if !v.Equal(other.rows[i][j]) {
				return false
			}
		}
	}
	return true
}

// ColumnKind infers the scalar kind of a column from its first non-null
// value. Columns with only nulls report KindNull.
func (d *Dataset) ColumnKind(name string) Kind {
	idx, ok := d.index[name]
	if !ok {
		return KindNull
	}
	for _, row := range d.rows {
		if !row[idx].IsNull() {
			return row[idx].Kind()
		}
	}
	return KindNull
}

// Builder assembles a dataset row by row. Connectors use it while decoding
// backend data.
type Builder struct {
	columns []string
	rows    [][]Value
	err     error
}

// NewBuilder starts a builder for the given columns
func NewBuilder(columns []string) *Builder {
	return &Builder{columns: append([]string(nil), columns...)}
}

// AppendRow adds one row. Width mismatches are recorded and surfaced by
// Build.
func (b *Builder) AppendRow(row []Value) {
	if b.err != nil {
		return
	}
	if len(row) != len(b.columns) {
		b.err = errors.Newf(errors.ErrorTypeData,
			"row has %d values, want %d", len(row), len(b.columns))
		return
	}
	b.rows = append(b.rows, append([]Value(nil), row...))
}

// Len returns the number of rows appended so far
func (b *Builder) Len() int { return len(b.rows) }

// Build finalizes the dataset
func (b *Builder) Build() (*Dataset, error) {
	if b.err != nil {
		return nil, b.err
	}
	return New(b.columns, b.rows)
}
