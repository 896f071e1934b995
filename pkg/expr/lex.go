package expr

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokenType int

const (
	tokenError tokenType = iota
	tokenEOF
	tokenIdent
	tokenInt
	tokenFloat
	tokenString
	tokenTrue
	tokenFalse
	tokenNull
	tokenLParen
	tokenRParen

	tokenPlus
	tokenMinus
	tokenMult
	tokenDiv
	tokenMod

	tokenEqual
	tokenNotEqual
	tokenGreater
	tokenGreaterEqual
	tokenLess
	tokenLessEqual

	tokenAnd
	tokenOr
	tokenNot
)

func (t tokenType) String() string {
	switch t {
	case tokenEOF:
		return "EOF"
	case tokenIdent:
		return "identifier"
	case tokenInt, tokenFloat:
		return "number"
	case tokenString:
		return "string"
	case tokenEqual:
		return "=="
	case tokenNotEqual:
		return "!="
	case tokenGreater:
		return ">"
	case tokenGreaterEqual:
		return ">="
	case tokenLess:
		return "<"
	case tokenLessEqual:
		return "<="
	case tokenAnd:
		return "AND"
	case tokenOr:
		return "OR"
	case tokenNot:
		return "NOT"
	default:
		return "token"
	}
}

type token struct {
	typ tokenType
	pos int
	val string
}

const eof = -1

// keywords are case-insensitive so that "quantity > 5 AND region == 'Nord'"
// and its lowercase form both parse.
var keywords = map[string]tokenType{
	"and":   tokenAnd,
	"or":    tokenOr,
	"not":   tokenNot,
	"true":  tokenTrue,
	"false": tokenFalse,
	"null":  tokenNull,
}

type lexer struct {
	input string
	pos   int
	start int
}

func newLexer(input string) *lexer {
	return &lexer{input: input}
}

func (l *lexer) next() rune {
	if l.pos >= len(l.input) {
		return eof
	}
	r, w := utf8.DecodeRuneInString(l.input[l.pos:])
	l.pos += w
	return r
}

func (l *lexer) backup(r rune) {
	if r != eof {
		l.pos -= utf8.RuneLen(r)
	}
}

func (l *lexer) peek() rune {
	r := l.next()
	l.backup(r)
	return r
}

func (l *lexer) emit(typ tokenType) token {
	t := token{typ: typ, pos: l.start, val: l.input[l.start:l.pos]}
	l.start = l.pos
	return t
}

func (l *lexer) errorf(format string, args ...interface{}) token {
	return token{typ: tokenError, pos: l.start, val: fmt.Sprintf(format, args...)}
}

// lex returns the next token
func (l *lexer) lex() token {
	for {
		r := l.next()
		switch {
		case r == eof:
			return l.emit(tokenEOF)
		case unicode.IsSpace(r):
			l.start = l.pos
		case r == '(':
			return l.emit(tokenLParen)
		case r == ')':
			return l.emit(tokenRParen)
		case r == '+':
			return l.emit(tokenPlus)
		case r == '-':
			return l.emit(tokenMinus)
		case r == '*':
			return l.emit(tokenMult)
		case r == '/':
			return l.emit(tokenDiv)
		case r == '%':
			return l.emit(tokenMod)
		case r == '=':
			if l.peek() == '=' {
				l.next()
				return l.emit(tokenEqual)
			}
			return l.errorf("unexpected '=', did you mean '=='?")
		case r == '!':
			if l.peek() == '=' {
				l.next()
				return l.emit(tokenNotEqual)
			}
			return l.emit(tokenNot)
		case r == '>':
			if l.peek() == '=' {
				l.next()
				return l.emit(tokenGreaterEqual)
			}
			return l.emit(tokenGreater)
		case r == '<':
			if l.peek() == '=' {
				l.next()
				return l.emit(tokenLessEqual)
			}
			return l.emit(tokenLess)
		case r == '&':
			if l.peek() == '&' {
				l.next()
				return l.emit(tokenAnd)
			}
			return l.errorf("unexpected '&', did you mean '&&'?")
		case r == '|':
			if l.peek() == '|' {
				l.next()
				return l.emit(tokenOr)
			}
			return l.errorf("unexpected '|', did you mean '||'?")
		case r == '\'' || r == '"':
			return l.lexString(r)
		case unicode.IsDigit(r):
			l.backup(r)
			return l.lexNumber()
		case r == '_' || unicode.IsLetter(r):
			l.backup(r)
			return l.lexIdent()
		default:
			return l.errorf("unexpected character %q", r)
		}
	}
}

func (l *lexer) lexString(quote rune) token {
	// opening quote already consumed
	var sb strings.Builder
	for {
		r := l.next()
		switch r {
		case eof:
			return l.errorf("unterminated string")
		case '\\':
			esc := l.next()
			switch esc {
			case quote, '\\':
				sb.WriteRune(esc)
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			default:
				return l.errorf("invalid escape \\%c", esc)
			}
		case quote:
			t := token{typ: tokenString, pos: l.start, val: sb.String()}
			l.start = l.pos
			return t
		default:
			sb.WriteRune(r)
		}
	}
}

func (l *lexer) lexNumber() token {
	isFloat := false
	for {
		r := l.next()
		if unicode.IsDigit(r) {
			continue
		}
		if r == '.' && !isFloat {
			isFloat = true
			continue
		}
		l.backup(r)
		break
	}
	if isFloat {
		return l.emit(tokenFloat)
	}
	return l.emit(tokenInt)
}

func (l *lexer) lexIdent() token {
	for {
		r := l.next()
		if r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) {
			continue
		}
		l.backup(r)
		break
	}
	t := l.emit(tokenIdent)
	if kw, ok := keywords[strings.ToLower(t.val)]; ok {
		t.typ = kw
	}
	return t
}
