// Package expr implements the expression language used by filter conditions
// and computed columns: comparisons, boolean logic and arithmetic over the
// named columns of a dataset row.
//
// Grammar, lowest precedence first:
//
//	or:         and ( OR and )*
//	and:        not ( AND not )*
//	not:        [ NOT ] comparison
//	comparison: additive [ (==|!=|>|>=|<|<=) additive ]
//	additive:   multiplicative ( (+|-) multiplicative )*
//	mult:       unary ( (*|/|%) unary )*
//	unary:      [ - ] primary
//	primary:    literal | identifier | '(' or ')'
//
// Null semantics: ordering comparisons involving null are false, equality
// treats null as equal only to null, and arithmetic with a null operand
// yields null.
package expr

import (
	"sort"

	"github.com/confluxdata/conflux/pkg/dataset"
	"github.com/confluxdata/conflux/pkg/errors"
)

// Scope resolves identifiers to values during evaluation
type Scope func(name string) (dataset.Value, bool)

// Expression is a parsed, reusable expression
type Expression struct {
	src    string
	root   node
	idents []string
}

// Parse compiles an expression source string
func Parse(src string) (*Expression, error) {
	p := newParser(src)
	root, err := p.parse()
	if err != nil {
		return nil, err
	}
	idents := make([]string, 0, len(p.idents))
	for name := range p.idents {
		idents = append(idents, name)
	}
	sort.Strings(idents)
	return &Expression{src: src, root: root, idents: idents}, nil
}

// Source returns the original expression text
func (e *Expression) Source() string { return e.src }

// Identifiers returns the column names the expression references, sorted
func (e *Expression) Identifiers() []string {
	return append([]string(nil), e.idents...)
}

// Eval evaluates the expression against a scope
func (e *Expression) Eval(scope Scope) (dataset.Value, error) {
	return e.root.eval(scope)
}

// EvalBool evaluates the expression and requires a boolean result
func (e *Expression) EvalBool(scope Scope) (bool, error) {
	v, err := e.Eval(scope)
	if err != nil {
		return false, err
	}
	b, ok := v.Boolean()
	if !ok {
		return false, errors.Newf(errors.ErrorTypeData,
			"expression %q evaluated to %s, want bool", e.src, v.Kind())
	}
	return b, nil
}

func (n *literalNode) eval(Scope) (dataset.Value, error) {
	return n.value, nil
}

func (n *identNode) eval(scope Scope) (dataset.Value, error) {
	v, ok := scope(n.name)
	if !ok {
		return dataset.Null(), errors.Newf(errors.ErrorTypeData, "unknown column %q", n.name)
	}
	return v, nil
}

func (n *unaryNode) eval(scope Scope) (dataset.Value, error) {
	v, err := n.operand.eval(scope)
	if err != nil {
		return dataset.Null(), err
	}
	switch n.op {
	case tokenNot:
		b, ok := v.Boolean()
		if !ok {
			return dataset.Null(), errors.Newf(errors.ErrorTypeData, "NOT requires a boolean, got %s", v.Kind())
		}
		return dataset.Bool(!b), nil
	case tokenMinus:
		if v.IsNull() {
			return dataset.Null(), nil
		}
		if i, ok := v.Int64(); ok {
			return dataset.Int(-i), nil
		}
		if f, ok := v.Float64(); ok {
			return dataset.Float(-f), nil
		}
		return dataset.Null(), errors.Newf(errors.ErrorTypeData, "unary minus requires a number, got %s", v.Kind())
	}
	return dataset.Null(), errors.Newf(errors.ErrorTypeData, "unknown unary operator %s", n.op)
}

func (n *binaryNode) eval(scope Scope) (dataset.Value, error) {
	// Logical operators short-circuit
	if n.op == tokenAnd || n.op == tokenOr {
		lhs, err := n.lhs.eval(scope)
		if err != nil {
			return dataset.Null(), err
		}
		lb, ok := lhs.Boolean()
		if !ok {
			return dataset.Null(), errors.Newf(errors.ErrorTypeData, "%s requires booleans, got %s", n.op, lhs.Kind())
		}
		if n.op == tokenAnd && !lb {
			return dataset.Bool(false), nil
		}
		if n.op == tokenOr && lb {
			return dataset.Bool(true), nil
		}
		rhs, err := n.rhs.eval(scope)
		if err != nil {
			return dataset.Null(), err
		}
		rb, ok := rhs.Boolean()
		if !ok {
			return dataset.Null(), errors.Newf(errors.ErrorTypeData, "%s requires booleans, got %s", n.op, rhs.Kind())
		}
		return dataset.Bool(rb), nil
	}

	lhs, err := n.lhs.eval(scope)
	if err != nil {
		return dataset.Null(), err
	}
	rhs, err := n.rhs.eval(scope)
	if err != nil {
		return dataset.Null(), err
	}

	switch n.op {
	case tokenEqual:
		return dataset.Bool(lhs.Equal(rhs)), nil
	case tokenNotEqual:
		return dataset.Bool(!lhs.Equal(rhs)), nil
	case tokenGreater, tokenGreaterEqual, tokenLess, tokenLessEqual:
		if lhs.IsNull() || rhs.IsNull() {
			return dataset.Bool(false), nil
		}
		cmp, err := lhs.Compare(rhs)
		if err != nil {
			return dataset.Null(), err
		}
		switch n.op {
		case tokenGreater:
			return dataset.Bool(cmp > 0), nil
		case tokenGreaterEqual:
			return dataset.Bool(cmp >= 0), nil
		case tokenLess:
			return dataset.Bool(cmp < 0), nil
		default:
			return dataset.Bool(cmp <= 0), nil
		}
	case tokenPlus, tokenMinus, tokenMult, tokenDiv, tokenMod:
		return evalArithmetic(n.op, lhs, rhs)
	}
	return dataset.Null(), errors.Newf(errors.ErrorTypeData, "unknown operator %s", n.op)
}

func evalArithmetic(op tokenType, lhs, rhs dataset.Value) (dataset.Value, error) {
	if lhs.IsNull() || rhs.IsNull() {
		return dataset.Null(), nil
	}

	// String concatenation
	if op == tokenPlus {
		if ls, ok := lhs.Str(); ok {
			if rs, ok := rhs.Str(); ok {
				return dataset.String(ls + rs), nil
			}
		}
	}

	li, lInt := lhs.Int64()
	ri, rInt := rhs.Int64()

	// Integer arithmetic stays integral except for division
	if lInt && rInt && op != tokenDiv {
		switch op {
		case tokenPlus:
			return dataset.Int(li + ri), nil
		case tokenMinus:
			return dataset.Int(li - ri), nil
		case tokenMult:
			return dataset.Int(li * ri), nil
		case tokenMod:
			if ri == 0 {
				return dataset.Null(), errors.New(errors.ErrorTypeData, "modulo by zero")
			}
			return dataset.Int(li % ri), nil
		}
	}

	lf, lOK := lhs.Float64()
	rf, rOK := rhs.Float64()
	if !lOK || !rOK {
		return dataset.Null(), errors.Newf(errors.ErrorTypeData,
			"arithmetic requires numbers, got %s and %s", lhs.Kind(), rhs.Kind())
	}
	switch op {
	case tokenPlus:
		return dataset.Float(lf + rf), nil
	case tokenMinus:
		return dataset.Float(lf - rf), nil
	case tokenMult:
		return dataset.Float(lf * rf), nil
	case tokenDiv:
		if rf == 0 {
			return dataset.Null(), errors.New(errors.ErrorTypeData, "division by zero")
		}
		return dataset.Float(lf / rf), nil
	case tokenMod:
		return dataset.Null(), errors.New(errors.ErrorTypeData, "modulo requires integers")
	}
	return dataset.Null(), errors.Newf(errors.ErrorTypeData, "unknown operator %s", op)
}

// RowScope builds a Scope over one dataset row
func RowScope(d *dataset.Dataset, rowIdx int) Scope {
	return func(name string) (dataset.Value, bool) {
		return d.Value(rowIdx, name)
	}
}
