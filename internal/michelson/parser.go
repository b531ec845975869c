package michelson

import (
	"fmt"
	"strings"
)

// SyntaxError reports where the parser gave up.
type SyntaxError struct {
	Pos int
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("micheline: %s at offset %d", e.Msg, e.Pos)
}

type tokKind uint8

const (
	tEOF tokKind = iota
	tInt
	tString
	tBytes
	tIdent
	tLParen
	tRParen
	tLBrace
	tRBrace
	tSemi
)

type token struct {
	kind tokKind
	text string
	pos  int
}

type lexer struct {
	src string
	pos int
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isHex(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func isIdentStart(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_'
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c) || c == '.' || c == '%' || c == '@'
}

func (l *lexer) next() (token, error) {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if c != ' ' && c != '\n' && c != '\t' && c != '\r' {
			break
		}
		l.pos++
	}
	if l.pos >= len(l.src) {
		return token{kind: tEOF, pos: l.pos}, nil
	}
	start := l.pos
	c := l.src[l.pos]
	switch {
	case c == '(':
		l.pos++
		return token{kind: tLParen, pos: start}, nil
	case c == ')':
		l.pos++
		return token{kind: tRParen, pos: start}, nil
	case c == '{':
		l.pos++
		return token{kind: tLBrace, pos: start}, nil
	case c == '}':
		l.pos++
		return token{kind: tRBrace, pos: start}, nil
	case c == ';':
		l.pos++
		return token{kind: tSemi, pos: start}, nil
	case c == '"':
		return l.lexString()
	case c == '0' && l.pos+1 < len(l.src) && l.src[l.pos+1] == 'x':
		l.pos += 2
		for l.pos < len(l.src) && isHex(l.src[l.pos]) {
			l.pos++
		}
		hex := l.src[start+2 : l.pos]
		if len(hex)%2 != 0 {
			return token{}, &SyntaxError{Pos: start, Msg: "odd-length bytes literal"}
		}
		return token{kind: tBytes, text: strings.ToLower(hex), pos: start}, nil
	case isDigit(c) || c == '-':
		l.pos++
		for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
			l.pos++
		}
		text := l.src[start:l.pos]
		if text == "-" {
			return token{}, &SyntaxError{Pos: start, Msg: "dangling minus"}
		}
		return token{kind: tInt, text: text, pos: start}, nil
	case isIdentStart(c):
		l.pos++
		for l.pos < len(l.src) && isIdentPart(l.src[l.pos]) {
			l.pos++
		}
		return token{kind: tIdent, text: l.src[start:l.pos], pos: start}, nil
	}
	return token{}, &SyntaxError{Pos: start, Msg: fmt.Sprintf("unexpected character %q", c)}
}

func (l *lexer) lexString() (token, error) {
	start := l.pos
	l.pos++
	var b strings.Builder
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch c {
		case '"':
			l.pos++
			return token{kind: tString, text: b.String(), pos: start}, nil
		case '\\':
			if l.pos+1 >= len(l.src) {
				return token{}, &SyntaxError{Pos: l.pos, Msg: "unterminated escape"}
			}
			switch e := l.src[l.pos+1]; e {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			case '"', '\\':
				b.WriteByte(e)
			default:
				return token{}, &SyntaxError{Pos: l.pos, Msg: fmt.Sprintf("unknown escape \\%c", e)}
			}
			l.pos += 2
		default:
			b.WriteByte(c)
			l.pos++
		}
	}
	return token{}, &SyntaxError{Pos: start, Msg: "unterminated string"}
}

type parser struct {
	lex lexer
	tok token
}

func (p *parser) advance() error {
	t, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = t
	return nil
}

// Parse parses one Micheline expression. A top-level semicolon separated
// list is read as the right comb it stands for and returned as a Pair.
func Parse(src string) (Node, error) {
	p := &parser{lex: lexer{src: src}}
	if err := p.advance(); err != nil {
		return Node{}, err
	}
	if p.tok.kind == tEOF {
		return Node{}, &SyntaxError{Pos: 0, Msg: "empty input"}
	}
	var parts []Node
	for {
		n, err := p.expr()
		if err != nil {
			return Node{}, err
		}
		parts = append(parts, n)
		if p.tok.kind == tSemi {
			if err := p.advance(); err != nil {
				return Node{}, err
			}
			continue
		}
		break
	}
	if p.tok.kind != tEOF {
		return Node{}, &SyntaxError{Pos: p.tok.pos, Msg: "trailing input"}
	}
	if len(parts) == 1 {
		return parts[0], nil
	}
	return Node{Kind: KindPrim, Prim: "Pair", Args: parts}, nil
}

// MustParse is Parse for literals known to be well formed, such as fixtures.
func MustParse(src string) Node {
	n, err := Parse(src)
	if err != nil {
		panic(err)
	}
	return n
}

// expr parses a primitive application (with arguments) or a single term.
func (p *parser) expr() (Node, error) {
	if p.tok.kind != tIdent {
		return p.term()
	}
	n := Node{Kind: KindPrim, Prim: p.tok.text}
	if err := p.advance(); err != nil {
		return Node{}, err
	}
	for {
		switch p.tok.kind {
		case tInt, tString, tBytes, tLParen, tLBrace:
			a, err := p.term()
			if err != nil {
				return Node{}, err
			}
			n.Args = append(n.Args, a)
		case tIdent:
			n.Args = append(n.Args, Node{Kind: KindPrim, Prim: p.tok.text})
			if err := p.advance(); err != nil {
				return Node{}, err
			}
		default:
			return n, nil
		}
	}
}

// term parses an atom, a parenthesised expression or a sequence.
func (p *parser) term() (Node, error) {
	t := p.tok
	switch t.kind {
	case tInt:
		return Node{Kind: KindInt, Value: t.text}, p.advance()
	case tString:
		return Node{Kind: KindString, Value: t.text}, p.advance()
	case tBytes:
		return Node{Kind: KindBytes, Value: t.text}, p.advance()
	case tIdent:
		return Node{Kind: KindPrim, Prim: t.text}, p.advance()
	case tLParen:
		if err := p.advance(); err != nil {
			return Node{}, err
		}
		n, err := p.expr()
		if err != nil {
			return Node{}, err
		}
		if p.tok.kind != tRParen {
			return Node{}, &SyntaxError{Pos: p.tok.pos, Msg: "expected )"}
		}
		return n, p.advance()
	case tLBrace:
		return p.seq()
	}
	return Node{}, &SyntaxError{Pos: t.pos, Msg: "unexpected token"}
}

func (p *parser) seq() (Node, error) {
	if err := p.advance(); err != nil {
		return Node{}, err
	}
	n := Node{Kind: KindSeq}
	for p.tok.kind != tRBrace {
		if p.tok.kind == tEOF {
			return Node{}, &SyntaxError{Pos: p.tok.pos, Msg: "unterminated sequence"}
		}
		it, err := p.expr()
		if err != nil {
			return Node{}, err
		}
		n.Items = append(n.Items, it)
		switch p.tok.kind {
		case tSemi:
			if err := p.advance(); err != nil {
				return Node{}, err
			}
		case tRBrace:
		default:
			return Node{}, &SyntaxError{Pos: p.tok.pos, Msg: "expected ; or }"}
		}
	}
	return n, p.advance()
}
