// Package michelson decodes the Micheline text rendering of contract storage
// and call parameters returned by the indexer into a generic tree, and
// projects that tree onto the typed records used by the marketplace.
package michelson

import (
	"strconv"
	"strings"
)

// Kind tags the variant held by a Node.
type Kind uint8

const (
	KindInt Kind = iota
	KindString
	KindBytes
	KindPrim
	KindSeq
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindPrim:
		return "prim"
	case KindSeq:
		return "seq"
	}
	return "unknown"
}

// Node is one element of a parsed Micheline expression.
//
// Value holds the literal for atoms: decimal digits for ints, the unescaped
// text for strings and lowercase hex without the 0x prefix for bytes. Prim
// and Args describe applications such as Pair or Elt; Items holds the
// elements of a { ... } sequence.
type Node struct {
	Kind  Kind
	Value string
	Prim  string
	Args  []Node
	Items []Node
}

// Int returns the node as int64 when it is an int literal that fits.
func (n Node) Int() (int64, bool) {
	if n.Kind != KindInt {
		return 0, false
	}
	v, err := strconv.ParseInt(n.Value, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Str returns the unescaped content of a string literal.
func (n Node) Str() (string, bool) {
	if n.Kind != KindString {
		return "", false
	}
	return n.Value, true
}

// IsPrim reports whether n is an application of the named primitive with
// the given arity. A negative arity accepts any number of args.
func (n Node) IsPrim(name string, arity int) bool {
	if n.Kind != KindPrim || n.Prim != name {
		return false
	}
	return arity < 0 || len(n.Args) == arity
}

// String renders the node back to the single-line Micheline form used by
// the indexer. Round-tripping is not byte-exact for combs the indexer
// flattened with semicolons.
func (n Node) String() string {
	var b strings.Builder
	n.write(&b, false)
	return b.String()
}

func (n Node) write(b *strings.Builder, nested bool) {
	switch n.Kind {
	case KindInt:
		b.WriteString(n.Value)
	case KindString:
		b.WriteString(strconv.Quote(n.Value))
	case KindBytes:
		b.WriteString("0x")
		b.WriteString(n.Value)
	case KindSeq:
		if len(n.Items) == 0 {
			b.WriteString("{}")
			return
		}
		b.WriteString("{ ")
		for i, it := range n.Items {
			if i > 0 {
				b.WriteString(" ; ")
			}
			it.write(b, false)
		}
		b.WriteString(" }")
	case KindPrim:
		if nested && len(n.Args) > 0 {
			b.WriteByte('(')
		}
		b.WriteString(n.Prim)
		for _, a := range n.Args {
			b.WriteByte(' ')
			a.write(b, true)
		}
		if nested && len(n.Args) > 0 {
			b.WriteByte(')')
		}
	}
}

// Comb flattens a right comb: Pair a (Pair b c), Pair a b c and the
// indexer's top-level "a ; b ; c" all yield [a b c]. Anything that is not a
// Pair is returned as a single element.
func Comb(n Node) []Node {
	var out []Node
	for n.IsPrim("Pair", -1) && len(n.Args) >= 2 {
		out = append(out, n.Args[:len(n.Args)-1]...)
		n = n.Args[len(n.Args)-1]
	}
	return append(out, n)
}
