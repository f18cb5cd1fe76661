// Package ast defines the AST cell produced by the parser, rewritten in
// place by the macro expander, and read-only after name resolution.
package ast

import (
	"strconv"
	"strings"

	"github.com/arkscript-lang/ark/token"
)

// Kind discriminates the AST node shapes from the data model.
type Kind uint8

const (
	Symbol Kind = iota
	Capture
	Keyword
	String
	Number
	List
	Macro
	Field
	Spread
	Unused
)

func (k Kind) String() string {
	names := [...]string{"Symbol", "Capture", "Keyword", "String", "Number", "List", "Macro", "Field", "Spread", "Unused"}
	if int(k) < len(names) {
		return names[k]
	}
	return "?"
}

// Node is the single tagged-union AST cell: every node carries a kind, a
// position, optional attached comments and exactly one payload selected by
// kind (string for Symbol/Capture/String/Spread, a keyword code for
// Keyword, a float64 for Number, or a child sequence for List/Macro/Field).
type Node struct {
	Kind Kind
	Pos  token.Position

	str      string
	num      float64
	kw       token.KeywordID
	children []Node

	CommentBefore string
	CommentAfter  string
}

func NewSymbol(name string, pos token.Position) Node {
	return Node{Kind: Symbol, str: name, Pos: pos}
}

func NewCapture(name string, pos token.Position) Node {
	return Node{Kind: Capture, str: name, Pos: pos}
}

func NewString(s string, pos token.Position) Node {
	return Node{Kind: String, str: s, Pos: pos}
}

func NewSpread(name string, pos token.Position) Node {
	return Node{Kind: Spread, str: name, Pos: pos}
}

func NewNumber(n float64, pos token.Position) Node {
	return Node{Kind: Number, num: n, Pos: pos}
}

func NewKeyword(kw token.KeywordID, pos token.Position) Node {
	return Node{Kind: Keyword, kw: kw, Pos: pos}
}

func NewList(kind Kind, pos token.Position, children ...Node) Node {
	return Node{Kind: kind, children: children, Pos: pos}
}

// NewUnused produces the placeholder node the parser leaves behind for an
// optional element that was not provided (e.g. a macro-site `if` with no
// else branch).
func NewUnused(pos token.Position) Node {
	return Node{Kind: Unused, Pos: pos}
}

func (n *Node) Text() string { return n.str }

func (n *Node) SetText(s string) { n.str = s }

func (n *Node) Number() float64 { return n.num }

func (n *Node) SetNumber(v float64) { n.num = v }

func (n *Node) KeywordID() token.KeywordID { return n.kw }

func (n *Node) Children() []Node { return n.children }

func (n *Node) SetChildren(c []Node) { n.children = c }

func (n *Node) Push(child Node) { n.children = append(n.children, child) }

func (n *Node) IsListLike() bool { return n.Kind == List || n.Kind == Macro }

// Repr renders a node back to ArkScript source syntax, used by diagnostics
// and by the macro expander's `$repr` built-in.
func (n *Node) Repr() string {
	switch n.Kind {
	case Symbol:
		return n.str
	case Capture:
		return "&" + n.str
	case Keyword:
		return n.kw.String()
	case String:
		return strconv.Quote(n.str)
	case Number:
		return strconv.FormatFloat(n.num, 'g', -1, 64)
	case Spread:
		return "..." + n.str
	case Unused:
		return ""
	case Field:
		parts := make([]string, len(n.children))
		for i, c := range n.children {
			parts[i] = c.Repr()
		}
		return strings.Join(parts, ".")
	case Macro:
		parts := make([]string, len(n.children))
		for i, c := range n.children {
			parts[i] = c.Repr()
		}
		return "($ " + strings.Join(parts, " ") + ")"
	case List:
		parts := make([]string, len(n.children))
		for i, c := range n.children {
			parts[i] = c.Repr()
		}
		return "(" + strings.Join(parts, " ") + ")"
	default:
		return ""
	}
}

// Clone deep-copies a node and its children, used by the macro expander when
// substituting a macro body at multiple call sites.
func (n Node) Clone() Node {
	c := n
	if n.children != nil {
		c.children = make([]Node, len(n.children))
		for i, child := range n.children {
			c.children[i] = child.Clone()
		}
	}
	return c
}

// Equal performs the structural comparison the macro expander's fixed-point
// invariant relies on (re-expanding an already-expanded AST yields an AST
// equal to its input).
func Equal(a, b Node) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case Symbol, Capture, String, Spread:
		return a.str == b.str
	case Keyword:
		return a.kw == b.kw
	case Number:
		return a.num == b.num
	case Unused:
		return true
	default:
		if len(a.children) != len(b.children) {
			return false
		}
		for i := range a.children {
			if !Equal(a.children[i], b.children[i]) {
				return false
			}
		}
		return true
	}
}
