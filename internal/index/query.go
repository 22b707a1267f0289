// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package index

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/pdiddy/zotnote/internal/apperr"
)

// Query syntax:
//
//	expr    := or
//	or      := and ("OR" and)*
//	and     := unary (["AND"] unary)*
//	unary   := ("NOT" | "-") unary | primary
//	primary := "(" expr ")" | '"' phrase '"' | word["*"]
//
// Bare adjacency means AND. Operators are recognized only in upper case, so
// "and", "or" and "not" are ordinary search terms. A trailing "*" turns the
// last token of a word into a prefix match. A phrase matches items that
// contain all of its tokens.

// node is a parsed query expression.
type node interface {
	String() string
}

type termNode struct {
	term   string
	prefix bool
}

type andNode struct{ children []node }
type orNode struct{ children []node }
type notNode struct{ child node }

func (n termNode) String() string {
	if n.prefix {
		return n.term + "*"
	}
	return n.term
}

func (n andNode) String() string { return "(" + joinNodes(n.children, " AND ") + ")" }
func (n orNode) String() string  { return "(" + joinNodes(n.children, " OR ") + ")" }
func (n notNode) String() string { return "NOT " + n.child.String() }

func joinNodes(nodes []node, sep string) string {
	parts := make([]string, len(nodes))
	for i, n := range nodes {
		parts[i] = n.String()
	}
	return strings.Join(parts, sep)
}

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokWord
	tokPhrase
	tokAnd
	tokOr
	tokNot
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string
}

func lex(input string) ([]token, error) {
	var toks []token
	rs := []rune(input)
	for i := 0; i < len(rs); {
		r := rs[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '(':
			toks = append(toks, token{kind: tokLParen})
			i++
		case r == ')':
			toks = append(toks, token{kind: tokRParen})
			i++
		case r == '"':
			end := i + 1
			for end < len(rs) && rs[end] != '"' {
				end++
			}
			if end == len(rs) {
				return nil, fmt.Errorf("%w: unterminated quote", apperr.ErrInvalidQuery)
			}
			toks = append(toks, token{kind: tokPhrase, text: string(rs[i+1 : end])})
			i = end + 1
		case r == '-' && i+1 < len(rs) && !unicode.IsSpace(rs[i+1]):
			toks = append(toks, token{kind: tokNot})
			i++
		default:
			end := i
			for end < len(rs) && !unicode.IsSpace(rs[end]) && rs[end] != '(' && rs[end] != ')' && rs[end] != '"' {
				end++
			}
			word := string(rs[i:end])
			switch word {
			case "AND":
				toks = append(toks, token{kind: tokAnd})
			case "OR":
				toks = append(toks, token{kind: tokOr})
			case "NOT":
				toks = append(toks, token{kind: tokNot})
			default:
				toks = append(toks, token{kind: tokWord, text: word})
			}
			i = end
		}
	}
	return append(toks, token{kind: tokEOF}), nil
}

type parser struct {
	toks []token
	pos  int
}

// parseQuery parses input into an expression tree.
func parseQuery(input string) (node, error) {
	toks, err := lex(input)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	n, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return nil, fmt.Errorf("%w: unexpected %s", apperr.ErrInvalidQuery, describe(tok))
	}
	if n == nil {
		return nil, fmt.Errorf("%w: no search terms", apperr.ErrInvalidQuery)
	}
	return n, nil
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	tok := p.toks[p.pos]
	if tok.kind != tokEOF {
		p.pos++
	}
	return tok
}

func (p *parser) parseOr() (node, error) {
	var children []node
	for {
		n, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		if n == nil {
			if len(children) == 0 && p.peek().kind != tokOr {
				return nil, nil
			}
			return nil, fmt.Errorf("%w: OR needs a term on both sides", apperr.ErrInvalidQuery)
		}
		children = append(children, n)
		if p.peek().kind != tokOr {
			break
		}
		p.next()
	}
	if len(children) == 1 {
		return children[0], nil
	}
	return orNode{children: children}, nil
}

// parseAnd returns nil when the sequence holds no searchable terms.
func (p *parser) parseAnd() (node, error) {
	var children []node
	for {
		switch p.peek().kind {
		case tokEOF, tokOr, tokRParen:
			return collapseAnd(children), nil
		case tokAnd:
			p.next()
			if len(children) == 0 {
				return nil, fmt.Errorf("%w: AND needs a term on its left", apperr.ErrInvalidQuery)
			}
			if k := p.peek().kind; k == tokEOF || k == tokOr || k == tokRParen || k == tokAnd {
				return nil, fmt.Errorf("%w: AND needs a term on its right", apperr.ErrInvalidQuery)
			}
			continue
		}
		n, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		if n != nil {
			children = append(children, n)
		}
	}
}

func collapseAnd(children []node) node {
	switch len(children) {
	case 0:
		return nil
	case 1:
		return children[0]
	default:
		return andNode{children: children}
	}
}

func (p *parser) parseUnary() (node, error) {
	if p.peek().kind == tokNot {
		p.next()
		child, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		if child == nil {
			return nil, fmt.Errorf("%w: NOT needs a term", apperr.ErrInvalidQuery)
		}
		return notNode{child: child}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (node, error) {
	tok := p.next()
	switch tok.kind {
	case tokLParen:
		n, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.next().kind != tokRParen {
			return nil, fmt.Errorf("%w: missing closing parenthesis", apperr.ErrInvalidQuery)
		}
		return n, nil
	case tokPhrase:
		return termsNode(Tokenize(tok.text), false), nil
	case tokWord:
		word := tok.text
		prefix := strings.HasSuffix(word, "*")
		return termsNode(Tokenize(strings.TrimRight(word, "*")), prefix), nil
	default:
		return nil, fmt.Errorf("%w: unexpected %s", apperr.ErrInvalidQuery, describe(tok))
	}
}

// termsNode joins the tokens of one word or phrase with AND. With prefix
// set, the last token matches as a prefix. Returns nil for no tokens.
func termsNode(terms []string, prefix bool) node {
	nodes := make([]node, len(terms))
	for i, t := range terms {
		nodes[i] = termNode{term: t, prefix: prefix && i == len(terms)-1}
	}
	return collapseAnd(nodes)
}

func describe(tok token) string {
	switch tok.kind {
	case tokEOF:
		return "end of query"
	case tokAnd:
		return "AND"
	case tokOr:
		return "OR"
	case tokNot:
		return "NOT"
	case tokLParen:
		return `"("`
	case tokRParen:
		return `")"`
	default:
		return fmt.Sprintf("%q", tok.text)
	}
}
