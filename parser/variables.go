package parser

import (
	"bytes"
	"fmt"

	"github.com/ava12/prx"
	"github.com/ava12/prx/tree"
)

// VarMatch selects how a Retrieve or Pop parser compares the remaining text
// against the top of a variable stack.
type VarMatch int

const (
	// MatchExact requires the remaining text to start with the captured value.
	MatchExact VarMatch = iota

	// MatchOptional matches like MatchExact but succeeds with a zero-length
	// result instead of failing, even on an empty stack.
	MatchOptional

	// MatchBracket requires the remaining text to start with the mirrored
	// captured value: reversed, with opening delimiters replaced by their
	// closing counterparts.
	MatchBracket
)

var bracketPairs = map[rune]rune{
	'(': ')', ')': '(',
	'[': ']', ']': '[',
	'{': '}', '}': '{',
	'<': '>', '>': '<',
	'«': '»', '»': '«',
}

// mirror reverses the value rune-wise and swaps paired delimiters, mapping
// an opening delimiter sequence to its closing counterpart.
func mirror (value string) string {
	runes := []rune(value)
	l := len(runes)
	mirrored := make([]rune, l)
	for i, r := range runes {
		if m, found := bracketPairs[r]; found {
			r = m
		}
		mirrored[l - 1 - i] = r
	}
	return string(mirrored)
}

// Capture invokes its named child and, on match, pushes the matched text
// onto the stack of the capture symbol (the parser name), registering a
// rollback closure tagged with the current position. The child must not
// discard its own matched content; NewGrammar rejects captures over
// non-consuming children.
type Capture struct {
	unary
}

func NewCapture (symbol string, child Parser) *Capture {
	c := &Capture{unary: newUnary("Capture", child)}
	c.setName(symbol)
	return c
}

func (c *Capture) parse (g *Grammar, pos int) (*tree.Node, int, error) {
	g.anchor(pos)
	node, next, err := g.apply(c.item, pos)
	if err != nil || node == nil {
		return nil, pos, err
	}
	g.pushVar(c.name, node.Content(), pos)
	return reduce(c, c.red, []*tree.Node{node}), next, nil
}

// Retrieve compares the remaining text against the top of a variable stack
// without removing it. An empty stack is auto-seeded by invoking the
// associated Capture's child once; retrieval from a stack that cannot be
// seeded fails with an "undefined or exhausted variable" diagnostic unless
// the match function is MatchOptional.
type Retrieve struct {
	base
	symbol string
	match  VarMatch
	pop    bool
}

func NewRetrieve (symbol string, match VarMatch) *Retrieve {
	return &Retrieve{base: newBase("Retrieve"), symbol: symbol, match: match}
}

// NewPop creates a Retrieve that also removes the matched value from the
// stack on success, registering a rollback closure that restores it.
func NewPop (symbol string, match VarMatch) *Retrieve {
	r := NewRetrieve(symbol, match)
	r.kindName = "Pop"
	r.pop = true
	return r
}

func (r *Retrieve) args () string {
	return fmt.Sprintf("%s/%d/%v", r.symbol, r.match, r.pop)
}

func (r *Retrieve) parse (g *Grammar, pos int) (*tree.Node, int, error) {
	g.anchor(pos)

	if len(g.vars[r.symbol]) == 0 {
		return r.seed(g, pos)
	}

	stack := g.vars[r.symbol]
	value := stack[len(stack) - 1]
	matched, ok := r.matchValue(g, pos, value)
	if !ok {
		return nil, pos, nil
	}
	if r.pop && matched != "" {
		g.popVar(r.symbol, pos)
	}
	return tree.NewLeaf(r.Tag(), matched), pos + len(matched), nil
}

// seed handles retrieval from an empty stack: the associated Capture's child
// is invoked once and its match doubles as the retrieved value.
func (r *Retrieve) seed (g *Grammar, pos int) (*tree.Node, int, error) {
	if seeder := g.captures[r.symbol]; seeder != nil {
		node, next, err := g.apply(seeder, pos)
		if err != nil {
			return nil, pos, err
		}
		if node != nil {
			if !r.pop {
				g.pushVar(r.symbol, node.Content(), pos)
			}
			return tree.NewLeaf(r.Tag(), node.Content()), next, nil
		}
	}

	if r.match == MatchOptional {
		return tree.NewLeaf(r.Tag(), ""), pos, nil
	}

	e := prx.FormatError(ErrUndefinedVariable, prx.Fault, pos,
		"variable %q is undefined or exhausted", r.symbol)
	g.report(e)
	node := tree.NewLeaf(tree.ErrorTag, "")
	node.AddError(e)
	return node, pos, nil
}

func (r *Retrieve) matchValue (g *Grammar, pos int, value string) (matched string, ok bool) {
	target := value
	if r.match == MatchBracket {
		target = mirror(value)
	}
	if bytes.HasPrefix(g.suffix(pos), []byte(target)) {
		return target, true
	}
	if r.match == MatchOptional {
		return "", true
	}
	return "", false
}

// contentDropping reports whether a parser tree can only ever produce
// zero-length matches, which makes it useless as a capture child: captured
// but discarded content is a grammar configuration error.
func contentDropping (p Parser) bool {
	return dropsContent(p, make(map[Parser]bool))
}

func dropsContent (p Parser, seen map[Parser]bool) bool {
	if seen[p] {
		return true
	}
	seen[p] = true

	switch t := p.(type) {
	case *Lookahead, *Lookbehind, *Toggle:
		return true
	case *Text:
		return t.text == ""
	}
	kids := p.children()
	if len(kids) == 0 {
		return false
	}
	for _, c := range kids {
		if !dropsContent(c, seen) {
			return false
		}
	}
	return true
}
