package expr

import (
	"strconv"

	"github.com/confluxdata/conflux/pkg/dataset"
	"github.com/confluxdata/conflux/pkg/errors"
)

// node is an AST node
type node interface {
	eval(scope Scope) (dataset.Value, error)
}

type literalNode struct {
	value dataset.Value
}

type identNode struct {
	name string
}

type unaryNode struct {
	op      tokenType
	operand node
}

type binaryNode struct {
	op  tokenType
	lhs node
	rhs node
}

// parser is a recursive descent parser over the lexer's token stream.
// Precedence, lowest first: OR, AND, NOT, comparison, additive,
// multiplicative, unary minus, primary.
type parser struct {
	lex    *lexer
	tok    token
	err    error
	idents map[string]struct{}
}

func newParser(src string) *parser {
	p := &parser{lex: newLexer(src), idents: map[string]struct{}{}}
	p.advance()
	return p
}

func (p *parser) advance() {
	if p.err != nil {
		return
	}
	p.tok = p.lex.lex()
	if p.tok.typ == tokenError {
		p.err = errors.Newf(errors.ErrorTypeData, "parse error at position %d: %s", p.tok.pos, p.tok.val)
	}
}

func (p *parser) expect(typ tokenType) {
	if p.err != nil {
		return
	}
	if p.tok.typ != typ {
		p.err = errors.Newf(errors.ErrorTypeData,
			"parse error at position %d: expected %s, got %q", p.tok.pos, typ, p.tok.val)
		return
	}
	p.advance()
}

func (p *parser) parse() (node, error) {
	n := p.parseOr()
	if p.err != nil {
		return nil, p.err
	}
	if p.tok.typ != tokenEOF {
		return nil, errors.Newf(errors.ErrorTypeData,
			"parse error at position %d: unexpected %q", p.tok.pos, p.tok.val)
	}
	return n, nil
}

func (p *parser) parseOr() node {
	n := p.parseAnd()
	for p.err == nil && p.tok.typ == tokenOr {
		p.advance()
		n = &binaryNode{op: tokenOr, lhs: n, rhs: p.parseAnd()}
	}
	return n
}

func (p *parser) parseAnd() node {
	n := p.parseNot()
	for p.err == nil && p.tok.typ == tokenAnd {
		p.advance()
		n = &binaryNode{op: tokenAnd, lhs: n, rhs: p.parseNot()}
	}
	return n
}

func (p *parser) parseNot() node {
	if p.tok.typ == tokenNot {
		p.advance()
		return &unaryNode{op: tokenNot, operand: p.parseNot()}
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() node {
	n := p.parseAdditive()
	switch p.tok.typ {
	case tokenEqual, tokenNotEqual, tokenGreater, tokenGreaterEqual, tokenLess, tokenLessEqual:
		op := p.tok.typ
		p.advance()
		n = &binaryNode{op: op, lhs: n, rhs: p.parseAdditive()}
	}
	return n
}

func (p *parser) parseAdditive() node {
	n := p.parseMultiplicative()
	for p.err == nil && (p.tok.typ == tokenPlus || p.tok.typ == tokenMinus) {
		op := p.tok.typ
		p.advance()
		n = &binaryNode{op: op, lhs: n, rhs: p.parseMultiplicative()}
	}
	return n
}

func (p *parser) parseMultiplicative() node {
	n := p.parseUnary()
	for p.err == nil && (p.tok.typ == tokenMult || p.tok.typ == tokenDiv || p.tok.typ == tokenMod) {
		op := p.tok.typ
		p.advance()
		n = &binaryNode{op: op, lhs: n, rhs: p.parseUnary()}
	}
	return n
}

func (p *parser) parseUnary() node {
	if p.tok.typ == tokenMinus {
		p.advance()
		return &unaryNode{op: tokenMinus, operand: p.parseUnary()}
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() node {
	if p.err != nil {
		return &literalNode{value: dataset.Null()}
	}
	switch p.tok.typ {
	case tokenLParen:
		p.advance()
		n := p.parseOr()
		p.expect(tokenRParen)
		return n
	case tokenInt:
		i, err := strconv.ParseInt(p.tok.val, 10, 64)
		if err != nil {
			p.err = errors.Newf(errors.ErrorTypeData, "invalid integer %q", p.tok.val)
		}
		p.advance()
		return &literalNode{value: dataset.Int(i)}
	case tokenFloat:
		f, err := strconv.ParseFloat(p.tok.val, 64)
		if err != nil {
			p.err = errors.Newf(errors.ErrorTypeData, "invalid number %q", p.tok.val)
		}
		p.advance()
		return &literalNode{value: dataset.Float(f)}
	case tokenString:
		v := dataset.String(p.tok.val)
		p.advance()
		return &literalNode{value: v}
	case tokenTrue:
		p.advance()
		return &literalNode{value: dataset.Bool(true)}
	case tokenFalse:
		p.advance()
		return &literalNode{value: dataset.Bool(false)}
	case tokenNull:
		p.advance()
		return &literalNode{value: dataset.Null()}
	case tokenIdent:
		name := p.tok.val
		p.idents[name] = struct{}{}
		p.advance()
		return &identNode{name: name}
	default:
		p.err = errors.Newf(errors.ErrorTypeData,
			"parse error at position %d: unexpected %q", p.tok.pos, p.tok.val)
		return &literalNode{value: dataset.Null()}
	}
}
