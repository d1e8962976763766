/*
Package parser implements the packrat parsing engine: composable parsing
primitives assembled into a grammar graph and executed over a source document.

A Parser matches a span of the document at a given position and produces a
syntax tree node. Parsers never advance the position on failure. All mutable
state of a parse run (memoization tables, recursion counters, variable stacks,
the rollback log, collected diagnostics) belongs to the Grammar driving the
run and is passed down the call chain explicitly; parser instances themselves
are immutable during parsing and may be shared between Grammar instances.
*/
package parser

import (
	"github.com/ava12/prx/tree"
)

// Parser is the polymorphic unit of parsing work. A Parser matches at an
// absolute byte position of the Grammar's document and returns either a tree
// node and the next position, or nil and the original position on no match.
// A non-nil error is a structured mandatory-violation signal (§ recovery),
// never an ordinary failed alternative.
type Parser interface {
	// Name returns the public name of the parser or "" for anonymous ones.
	Name () string

	// Tag returns the tag for result nodes: the name, or a synthetic
	// ":Kind" tag for anonymous parsers.
	Tag () string

	parse (g *Grammar, pos int) (node *tree.Node, next int, err error)
	setName (name string)
	kind () string
	args () string
	children () []Parser
	eqID () int
	setEqID (id int)
}

// Named assigns a public name to a parser and returns it. Result nodes of a
// named parser are tagged with the name and are never flattened away.
func Named (name string, p Parser) Parser {
	p.setName(name)
	return p
}

type base struct {
	name     string
	kindName string
	id       int
}

func newBase (kind string) base {
	return base{kindName: kind, id: -1}
}

func (b *base) Name () string {
	return b.name
}

func (b *base) Tag () string {
	if b.name != "" {
		return b.name
	}
	return tree.AnonPrefix + b.kindName
}

func (b *base) setName (name string) {
	b.name = name
}

func (b *base) kind () string {
	return b.kindName
}

func (b *base) args () string {
	return ""
}

func (b *base) children () []Parser {
	return nil
}

func (b *base) eqID () int {
	return b.id
}

func (b *base) setEqID (id int) {
	b.id = id
}

type unary struct {
	base
	item Parser
	red  Reduction
}

func newUnary (kind string, item Parser) unary {
	return unary{base: newBase(kind), item: item}
}

func (u *unary) children () []Parser {
	return []Parser{u.item}
}

// SetReduction selects the tree-reduction policy applied to the results of
// this parser, Flatten by default.
func (u *unary) SetReduction (r Reduction) {
	u.red = r
}

type nary struct {
	base
	items []Parser
	red   Reduction
}

func newNary (kind string, items []Parser) nary {
	return nary{base: newBase(kind), items: items}
}

func (n *nary) children () []Parser {
	return n.items
}

// SetReduction selects the tree-reduction policy applied to the results of
// this parser, Flatten by default.
func (n *nary) SetReduction (r Reduction) {
	n.red = r
}
