// Package transform implements the stateless dataset operations applied by
// pipeline steps: filtering, aggregation, cleaning and computed columns.
//
// Every operation fails soft: on a malformed condition, unknown column or
// invalid specification it logs the cause and returns the input dataset
// unchanged rather than aborting the pipeline.
package transform

import (
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/confluxdata/conflux/pkg/dataset"
	"github.com/confluxdata/conflux/pkg/errors"
	"github.com/confluxdata/conflux/pkg/expr"
	"github.com/confluxdata/conflux/pkg/logger"
)

// AggregateFunc names a per-column reduction applied within a group
type AggregateFunc string

const (
	// Sum adds the non-null values of a group
	Sum AggregateFunc = "sum"
	// Mean averages the non-null values of a group
	Mean AggregateFunc = "mean"
	// Count counts the non-null values of a group
	Count AggregateFunc = "count"
	// Min takes the smallest non-null value of a group
	Min AggregateFunc = "min"
	// Max takes the largest non-null value of a group
	Max AggregateFunc = "max"
)

// ParseAggregateFunc validates a function name from configuration
func ParseAggregateFunc(name string) (AggregateFunc, error) {
	switch AggregateFunc(strings.ToLower(name)) {
	case Sum, Mean, Count, Min, Max:
		return AggregateFunc(strings.ToLower(name)), nil
	default:
		return "", errors.Newf(errors.ErrorTypeConfig, "unknown aggregate function %q", name)
	}
}

// AggregationSpec maps column names to the reduction applied to them
type AggregationSpec map[string]AggregateFunc

// CleanOptions lists the independent, composable cleaning operations.
// They apply in a fixed order: duplicate removal, null filling, null-row
// dropping, type coercion.
type CleanOptions struct {
	// RemoveDuplicates drops exact-duplicate rows, keeping the first
	RemoveDuplicates bool
	// FillValue replaces every null with a constant when set
	FillValue *dataset.Value
	// DropNulls removes rows that still contain a null
	DropNulls bool
	// Coercions converts named columns to a target scalar kind
	Coercions map[string]dataset.Kind
}

// ComputedColumn pairs a new column name with the expression producing it
type ComputedColumn struct {
	Name       string
	Expression string
}

// Transformer applies dataset operations with an injected logger
type Transformer struct {
	log *zap.Logger
}

// New creates a Transformer. A nil logger falls back to the global one.
func New(log *zap.Logger) *Transformer {
	if log == nil {
		log = logger.Get()
	}
	return &Transformer{log: log.With(zap.String("component", "transformer"))}
}

// Filter keeps the rows for which the condition evaluates to true. The
// column set is unchanged. A condition that fails to parse or evaluate
// leaves the dataset unchanged.
func (t *Transformer) Filter(d *dataset.Dataset, condition string) *dataset.Dataset {
	e, err := expr.Parse(condition)
	if err != nil {
		t.log.Error("filter condition rejected", zap.String("condition", condition), zap.Error(err))
		return d
	}

	keep := make([]int, 0, d.NumRows())
	for i := 0; i < d.NumRows(); i++ {
		ok, err := e.EvalBool(expr.RowScope(d, i))
		if err != nil {
			t.log.Error("filter evaluation failed",
				zap.String("condition", condition), zap.Int("row", i), zap.Error(err))
			return d
		}
		if ok {
			keep = append(keep, i)
		}
	}

	out := d.Select(keep)
	t.log.Info("filter applied",
		zap.String("condition", condition),
		zap.Int("rows_in", d.NumRows()),
		zap.Int("rows_out", out.NumRows()))
	return out
}

// Aggregate partitions rows by equality of the groupBy columns and reduces
// each partition's columns per the spec. Output columns are the groupBy
// columns followed by the aggregated columns in sorted name order; output
// has one row per distinct group, in first-seen order.
func (t *Transformer) Aggregate(d *dataset.Dataset, groupBy []string, spec AggregationSpec) *dataset.Dataset {
	if len(groupBy) == 0 || len(spec) == 0 {
		t.log.Error("aggregation rejected: empty group-by or spec")
		return d
	}
	for _, c := range groupBy {
		if !d.HasColumn(c) {
			t.log.Error("aggregation rejected: unknown group-by column", zap.String("column", c))
			return d
		}
	}

	aggCols := make([]string, 0, len(spec))
	for c, fn := range spec {
		if !d.HasColumn(c) {
			t.log.Error("aggregation rejected: unknown column", zap.String("column", c))
			return d
		}
		switch fn {
		case Sum, Mean, Count, Min, Max:
		default:
			t.log.Error("aggregation rejected: unknown function",
				zap.String("column", c), zap.String("function", string(fn)))
			return d
		}
		aggCols = append(aggCols, c)
	}
	sort.Strings(aggCols)

	type group struct {
		key  []dataset.Value
		accs []*accumulator
	}
	groups := map[string]*group{}
	order := []*group{}

	for i := 0; i < d.NumRows(); i++ {
		var sb strings.Builder
		key := make([]dataset.Value, len(groupBy))
		for j, c := range groupBy {
			v, _ := d.Value(i, c)
			key[j] = v
			sb.WriteString(valueSignature(v))
			sb.WriteByte(0)
		}
		g, ok := groups[sb.String()]
		if !ok {
			g = &group{key: key, accs: make([]*accumulator, len(aggCols))}
			for j, c := range aggCols {
				g.accs[j] = newAccumulator(spec[c])
			}
			groups[sb.String()] = g
			order = append(order, g)
		}
		for j, c := range aggCols {
			v, _ := d.Value(i, c)
			g.accs[j].add(v)
		}
	}

	columns := append(append([]string(nil), groupBy...), aggCols...)
	rows := make([][]dataset.Value, 0, len(order))
	for _, g := range order {
		row := append([]dataset.Value(nil), g.key...)
		for _, acc := range g.accs {
			row = append(row, acc.result())
		}
		rows = append(rows, row)
	}

	out, err := dataset.New(columns, rows)
	if err != nil {
		// Happens when a group-by column is repeated in the spec output
		t.log.Error("aggregation failed", zap.Error(err))
		return d
	}
	t.log.Info("aggregation applied",
		zap.Strings("group_by", groupBy),
		zap.Int("rows_in", d.NumRows()),
		zap.Int("groups", out.NumRows()))
	return out
}

// Clean applies the requested cleaning options. Each option is independent;
// an option that cannot apply to a given value or column is skipped for that
// value or column only.
func (t *Transformer) Clean(d *dataset.Dataset, opts CleanOptions) *dataset.Dataset {
	columns := d.Columns()
	rows := make([][]dataset.Value, 0, d.NumRows())
	seen := map[string]struct{}{}

	for i := 0; i < d.NumRows(); i++ {
		row := append([]dataset.Value(nil), d.Row(i)...)

		if opts.RemoveDuplicates {
			sig := rowSignature(row)
			if _, dup := seen[sig]; dup {
				continue
			}
			seen[sig] = struct{}{}
		}

		if opts.FillValue != nil {
			for j, v := range row {
				if v.IsNull() {
					row[j] = *opts.FillValue
				}
			}
		}

		if opts.DropNulls {
			hasNull := false
			for _, v := range row {
				if v.IsNull() {
					hasNull = true
					break
				}
			}
			if hasNull {
				continue
			}
		}

		rows = append(rows, row)
	}

	if len(opts.Coercions) > 0 {
		for col, kind := range opts.Coercions {
			idx := -1
			for j, c := range columns {
				if c == col {
					idx = j
					break
				}
			}
			if idx < 0 {
				t.log.Warn("clean: coercion skipped, unknown column", zap.String("column", col))
				continue
			}
			for _, row := range rows {
				coerced, err := row[idx].Coerce(kind)
				if err != nil {
					// Leave the value as-is, matching the soft-failure policy
					continue
				}
				row[idx] = coerced
			}
		}
	}

	out, err := dataset.New(columns, rows)
	if err != nil {
		t.log.Error("clean failed", zap.Error(err))
		return d
	}
	t.log.Info("clean applied",
		zap.Int("rows_in", d.NumRows()),
		zap.Int("rows_out", out.NumRows()))
	return out
}

// AddComputedColumns appends one column per expression, evaluated row by
// row over the existing columns (including columns computed earlier in the
// same call). An expression that fails to parse or references unknown
// columns leaves that column absent; a per-row evaluation error yields null
// for that row.
func (t *Transformer) AddComputedColumns(d *dataset.Dataset, cols []ComputedColumn) *dataset.Dataset {
	out := d
	for _, cc := range cols {
		e, err := expr.Parse(cc.Expression)
		if err != nil {
			t.log.Error("computed column rejected",
				zap.String("column", cc.Name), zap.String("expression", cc.Expression), zap.Error(err))
			continue
		}
		unknown := ""
		for _, id := range e.Identifiers() {
			if !out.HasColumn(id) {
				unknown = id
				break
			}
		}
		if unknown != "" {
			t.log.Error("computed column rejected: unknown column reference",
				zap.String("column", cc.Name), zap.String("reference", unknown))
			continue
		}

		values := make([]dataset.Value, out.NumRows())
		for i := 0; i < out.NumRows(); i++ {
			v, err := e.Eval(expr.RowScope(out, i))
			if err != nil {
				v = dataset.Null()
			}
			values[i] = v
		}

		next, err := out.WithColumn(cc.Name, values)
		if err != nil {
			t.log.Error("computed column rejected", zap.String("column", cc.Name), zap.Error(err))
			continue
		}
		out = next
		t.log.Info("computed column added", zap.String("column", cc.Name))
	}
	return out
}

// valueSignature renders a value with its kind so that e.g. int 1 and
// string "1" do not collide in group keys.
func valueSignature(v dataset.Value) string {
	return v.Kind().String() + ":" + v.String()
}

func rowSignature(row []dataset.Value) string {
	var sb strings.Builder
	for _, v := range row {
		sb.WriteString(valueSignature(v))
		sb.WriteByte(0)
	}
	return sb.String()
}
