// Package query implements the set-algebra query language UDFs use to
// combine string key-sets: union (|), intersection (&), difference
// (-), and parentheses, with & binding tighter than | and -.
package query

import (
	"fmt"
	"strings"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokUnion
	tokIntersect
	tokDifference
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

// lexer splits a query string into tokens, skipping spaces and tabs and
// rejecting any other byte that isn't part of an identifier, one of the
// three operators (| & -), or a parenthesis.
type lexer struct {
	input string
	pos   int
}

func newLexer(input string) *lexer { return &lexer{input: input} }

func isIdentStart(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func isIdentContinue(b byte) bool {
	return isIdentStart(b) || (b >= '0' && b <= '9')
}

func (l *lexer) next() (token, error) {
	for l.pos < len(l.input) && (l.input[l.pos] == ' ' || l.input[l.pos] == '\t') {
		l.pos++
	}
	if l.pos >= len(l.input) {
		return token{kind: tokEOF, pos: l.pos}, nil
	}

	start := l.pos
	c := l.input[l.pos]
	switch {
	case c == '|':
		l.pos++
		return token{kind: tokUnion, text: "|", pos: start}, nil
	case c == '&':
		l.pos++
		return token{kind: tokIntersect, text: "&", pos: start}, nil
	case c == '-':
		l.pos++
		return token{kind: tokDifference, text: "-", pos: start}, nil
	case c == '(':
		l.pos++
		return token{kind: tokLParen, text: "(", pos: start}, nil
	case c == ')':
		l.pos++
		return token{kind: tokRParen, text: ")", pos: start}, nil
	case isIdentStart(c):
		for l.pos < len(l.input) && isIdentContinue(l.input[l.pos]) {
			l.pos++
		}
		return token{kind: tokIdent, text: l.input[start:l.pos], pos: start}, nil
	default:
		return token{}, fmt.Errorf("unexpected character %q at position %d", c, start)
	}
}

// lexAll is used only by tests, to sanity-check tokenization without
// going through the parser.
func lexAll(input string) ([]token, error) {
	l := newLexer(input)
	var toks []token
	for {
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
		if tok.kind == tokEOF {
			return toks, nil
		}
	}
}

func isBlank(s string) bool { return strings.TrimSpace(s) == "" }
