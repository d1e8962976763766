package parser

import (
	"strconv"

	"github.com/ava12/prx"
	"github.com/ava12/prx/tree"
)

const (
	ErrUnresolvedForward = iota + prx.GrammarErrors
	ErrRedefinedForward
	ErrUnreachableAlternative
	ErrDuplicateAlternative
	ErrBadRepeatBounds
	ErrBadLookbehind
	ErrUnnamedCapture
	ErrEmptyCapture
	ErrDuplicateRule
	ErrUnknownRule
	ErrBadPattern
)

const (
	ErrMandatoryViolation = iota + prx.SyntaxErrors
	ErrMandatoryAtEoi
	ErrDidNotMatch
	ErrSkippedText
)

const (
	ErrUndefinedVariable = iota + prx.VariableErrors
)

const (
	ErrRecursionDepth = iota + prx.RecursionErrors
)

const (
	ErrDropoutsExhausted = iota + prx.ParserErrors
	ErrRoundTrip
)

// violation is the internal control-flow signal raised when a mandatory
// element failed after non-mandatory parts of the same construct already
// matched, or when the recursion depth guard tripped. It propagates up
// through enclosing combinators, each of which either recovers at a reentry
// point or wraps its partial result into the signal, until the driving loop
// turns it into an error node. It never leaks past the driving loop.
type violation struct {
	node *tree.Node // partial result accumulated so far, may be nil
	pos  int        // position the parse had reached when the signal was raised
	err  *prx.Error
}

func (v *violation) Error () string {
	return v.err.Error()
}

// describe renders a parser for diagnostic messages: its name if it has one,
// the matched text or pattern for anonymous leaves, the tag otherwise.
func describe (p Parser) string {
	if p.Name() != "" {
		return p.Name()
	}
	switch t := p.(type) {
	case *Text:
		return strconv.Quote(t.text)
	case *Pattern:
		return "/" + t.src + "/"
	}
	return p.Tag()
}

const snippetLen = 10

// snippet renders the document text at the given position for diagnostic
// messages.
func (g *Grammar) snippet (pos int) string {
	if pos >= len(g.doc) {
		return "end of input"
	}
	end := pos + snippetLen
	if end > len(g.doc) {
		end = len(g.doc)
	}
	return strconv.Quote(string(g.doc[pos : end]))
}
