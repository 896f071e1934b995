package transform

import (
	"github.com/confluxdata/conflux/pkg/dataset"
)

// accumulator reduces the values of one column within one group. Null
// values are skipped; count therefore counts non-null values.
type accumulator struct {
	fn     AggregateFunc
	count  int64
	sumI   int64
	sumF   float64
	allInt bool
	minV   dataset.Value
	maxV   dataset.Value
}

func newAccumulator(fn AggregateFunc) *accumulator {
	return &accumulator{fn: fn, allInt: true, minV: dataset.Null(), maxV: dataset.Null()}
}

func (a *accumulator) add(v dataset.Value) {
	if v.IsNull() {
		return
	}
	a.count++

	switch a.fn {
	case Sum, Mean:
		if i, ok := v.Int64(); ok {
			a.sumI += i
			a.sumF += float64(i)
		} else if f, ok := v.Float64(); ok {
			a.allInt = false
			a.sumF += f
		} else {
			// Non-numeric values contribute nothing to sum/mean
			a.count--
		}
	case Min:
		if a.minV.IsNull() {
			a.minV = v
			return
		}
		if cmp, err := v.Compare(a.minV); err == nil && cmp < 0 {
			a.minV = v
		}
	case Max:
		if a.maxV.IsNull() {
			a.maxV = v
			return
		}
		if cmp, err := v.Compare(a.maxV); err == nil && cmp > 0 {
			a.maxV = v
		}
	}
}

func (a *accumulator) result() dataset.Value {
	switch a.fn {
	case Count:
		return dataset.Int(a.count)
	case Sum:
		if a.allInt {
			return dataset.Int(a.sumI)
		}
		return dataset.Float(a.sumF)
	case Mean:
		if a.count == 0 {
			return dataset.Null()
		}
		return dataset.Float(a.sumF / float64(a.count))
	case Min:
		return a.minV
	case Max:
		return a.maxV
	default:
		return dataset.Null()
	}
}
