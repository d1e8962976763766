package parser

import (
	"bytes"
	"regexp"
	"strconv"

	"github.com/ava12/prx/tree"
)

// Text matches a fixed string at the current position.
type Text struct {
	base
	text string
}

func NewText (text string) *Text {
	t := &Text{base: newBase("Text"), text: text}
	return t
}

func (t *Text) args () string {
	return strconv.Quote(t.text)
}

func (t *Text) parse (g *Grammar, pos int) (*tree.Node, int, error) {
	if !bytes.HasPrefix(g.suffix(pos), []byte(t.text)) {
		return nil, pos, nil
	}
	return tree.NewLeaf(t.Tag(), t.text), pos + len(t.text), nil
}

// Pattern matches a compiled regular expression anchored at the current
// position and consumes the matched span.
type Pattern struct {
	base
	src string
	re  *regexp.Regexp
	err error
}

// NewPattern compiles the pattern immediately; a compilation error is kept
// on the parser and reported by NewGrammar.
func NewPattern (pattern string) *Pattern {
	p := &Pattern{base: newBase("Pattern"), src: pattern}
	p.re, p.err = regexp.Compile(`\A(?:` + pattern + `)`)
	return p
}

func (p *Pattern) args () string {
	return p.src
}

func (p *Pattern) parse (g *Grammar, pos int) (*tree.Node, int, error) {
	loc := p.re.FindIndex(g.suffix(pos))
	if loc == nil {
		return nil, pos, nil
	}
	return tree.NewLeaf(p.Tag(), string(g.doc[pos : pos + loc[1]])), pos + loc[1], nil
}

// Mode is the matching strategy of a Toggle parser.
type Mode int

const (
	AlwaysMatch Mode = iota
	NeverMatch
)

// Toggle matches unconditionally or fails unconditionally depending on its
// current mode. The mode may be switched at runtime to retarget a grammar
// between dialects without rebuilding the graph; for that reason Toggle
// instances never share memoization tables.
type Toggle struct {
	base
	mode Mode
}

func NewToggle (mode Mode) *Toggle {
	return &Toggle{base: newBase("Toggle"), mode: mode}
}

// Always creates a Toggle that matches the empty string unconditionally.
func Always () *Toggle {
	return NewToggle(AlwaysMatch)
}

// Never creates a Toggle that fails unconditionally.
func Never () *Toggle {
	return NewToggle(NeverMatch)
}

func (t *Toggle) Mode () Mode {
	return t.mode
}

func (t *Toggle) SetMode (mode Mode) {
	t.mode = mode
}

func (t *Toggle) parse (g *Grammar, pos int) (*tree.Node, int, error) {
	if t.mode == NeverMatch {
		return nil, pos, nil
	}
	return tree.NewLeaf(t.Tag(), ""), pos, nil
}
