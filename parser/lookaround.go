package parser

import (
	"bytes"
	"fmt"
	"regexp"

	"github.com/ava12/prx/tree"
)

// Lookahead invokes its child, discards any consumed text, and succeeds with
// a zero-length match iff the child matched (positive) or did not match
// (negative). On negative lookahead success the farthest-failure bookkeeping
// is restored: the expected child failure must not pollute diagnostics.
type Lookahead struct {
	unary
	positive bool
}

func NewLookahead (child Parser) *Lookahead {
	return &Lookahead{unary: newUnary("Lookahead", child), positive: true}
}

func NewNegLookahead (child Parser) *Lookahead {
	return &Lookahead{unary: newUnary("NegLookahead", child), positive: false}
}

func (l *Lookahead) args () string {
	return fmt.Sprintf("%v", l.positive)
}

func (l *Lookahead) parse (g *Grammar, pos int) (*tree.Node, int, error) {
	savedPos, savedParser := g.farthestPos, g.farthestParser
	node, _, err := g.apply(l.item, pos)
	if err != nil {
		return nil, pos, err
	}
	if (node != nil) != l.positive {
		return nil, pos, nil
	}
	if !l.positive {
		g.farthestPos, g.farthestParser = savedPos, savedParser
	}
	return tree.NewLeaf(l.Tag(), ""), pos, nil
}

// Lookbehind matches its child against the reversed text preceding the
// current position and consumes nothing. Only Text and Pattern children are
// allowed, since only their matching semantics are well-defined on reversed
// text; NewGrammar rejects anything else.
type Lookbehind struct {
	unary
	positive bool
	rtext    []byte
	re       *regexp.Regexp
}

func NewLookbehind (child Parser) *Lookbehind {
	return newLookbehind("Lookbehind", child, true)
}

func NewNegLookbehind (child Parser) *Lookbehind {
	return newLookbehind("NegLookbehind", child, false)
}

func newLookbehind (kind string, child Parser, positive bool) *Lookbehind {
	l := &Lookbehind{unary: newUnary(kind, child), positive: positive}
	switch c := child.(type) {
	case *Text:
		l.rtext = reverseRunes([]byte(c.text))
	case *Pattern:
		l.re, _ = regexp.Compile(`\A(?:` + c.src + `)`)
	}
	return l
}

func (l *Lookbehind) args () string {
	return fmt.Sprintf("%v", l.positive)
}

func (l *Lookbehind) parse (g *Grammar, pos int) (*tree.Node, int, error) {
	rev := g.src.Reversed()
	rest := rev[len(rev) - pos :]

	var matched bool
	if l.re != nil {
		matched = l.re.Match(rest)
	} else {
		matched = bytes.HasPrefix(rest, l.rtext)
	}

	if matched != l.positive {
		return nil, pos, nil
	}
	return tree.NewLeaf(l.Tag(), ""), pos, nil
}

func reverseRunes (src []byte) []byte {
	rev := make([]byte, len(src))
	pos := len(rev)
	for i := 0; i < len(src); {
		size := 1
		for i + size < len(src) && src[i + size] & 0xc0 == 0x80 {
			size++
		}
		pos -= size
		copy(rev[pos : pos + size], src[i : i + size])
		i += size
	}
	return rev
}

// isLookahead reports whether a parser only inspects input without ever
// consuming it, used to weaken end-of-input mandatory diagnostics.
func isLookahead (p Parser) bool {
	switch p.(type) {
	case *Lookahead, *Lookbehind:
		return true
	}
	return false
}
