package parser

import (
	"bytes"
	"regexp"

	"github.com/ava12/prx"
	"github.com/ava12/prx/tree"
)

// Recoverer recognizes a reentry point in the remaining text after a
// mandatory violation: a literal string, a compiled pattern, or a parser
// used purely as a recognizer.
type Recoverer struct {
	text   string
	re     *regexp.Regexp
	parser Parser
}

// SkipTo creates a Recoverer searching for a literal string.
func SkipTo (text string) Recoverer {
	return Recoverer{text: text}
}

// SkipToPattern creates a Recoverer searching for a pattern match. An
// invalid pattern yields a Recoverer that never matches.
func SkipToPattern (pattern string) Recoverer {
	re, e := regexp.Compile(pattern)
	if e != nil {
		re = nil
	}
	return Recoverer{re: re}
}

// SkipToMatch creates a Recoverer probing positions with a parser; only its
// success and match length matter, it is invoked with memoization and
// history tracking suspended.
func SkipToMatch (p Parser) Recoverer {
	return Recoverer{parser: p}
}

// Resume associates recovery rules with a named rule of the grammar. When a
// mandatory element of that rule fails, the closest occurrence of any of the
// rules marks the position where parsing resumes.
func (g *Grammar) Resume (rule string, rs ...Recoverer) {
	g.resume[rule] = append(g.resume[rule], rs...)
}

// reentry searches the text after pos for the closest reentry point of the
// given rule: the start of the nearest recovery-pattern occurrence, so that
// the continued children can still consume the found token. Occurrences
// inside comment spans are never chosen. On success it returns an
// error-tagged leaf covering exactly the skipped text.
func (g *Grammar) reentry (rule string, pos int) (zombie *tree.Node, resume int, found bool) {
	rules := g.resume[rule]
	if len(rules) == 0 || pos > len(g.doc) {
		return nil, 0, false
	}

	limit := len(g.doc)
	if g.conf.ReentrySearchWindow > 0 && pos + g.conf.ReentrySearchWindow < limit {
		limit = pos + g.conf.ReentrySearchWindow
	}
	comments := g.commentSpans(pos, limit)

	closest := -1
	for _, r := range rules {
		at, _ := r.find(g, pos, limit, comments)
		if at >= 0 && (closest < 0 || at < closest) {
			closest = at
		}
	}
	if closest < 0 {
		return nil, 0, false
	}

	return tree.NewLeaf(tree.ErrorTag, string(g.doc[pos : closest])), closest, true
}

func (r Recoverer) find (g *Grammar, pos, limit int, comments [][2]int) (at, end int) {
	for p := pos; p <= limit; {
		at, end = r.match(g, p, limit)
		if at < 0 {
			return -1, -1
		}
		if c := commentAround(comments, at); c >= 0 {
			p = comments[c][1]
			continue
		}
		return at, end
	}
	return -1, -1
}

func (r Recoverer) match (g *Grammar, pos, limit int) (at, end int) {
	window := g.doc[pos : limit]
	switch {
	case r.re != nil:
		loc := r.re.FindIndex(window)
		if loc == nil || loc[1] == loc[0] {
			return -1, -1
		}
		return pos + loc[0], pos + loc[1]

	case r.parser != nil:
		for p := pos; p <= limit; p++ {
			if l, ok := g.recognize(r.parser, p); ok && l > 0 {
				return p, p + l
			}
		}
		return -1, -1

	default:
		if r.text == "" {
			return -1, -1
		}
		idx := bytes.Index(window, []byte(r.text))
		if idx < 0 {
			return -1, -1
		}
		return pos + idx, pos + idx + len(r.text)
	}
}

// commentSpans collects the spans the comment pattern recognizes between the
// two positions, so that reentry points inside comments can be rejected.
func (g *Grammar) commentSpans (pos, limit int) [][2]int {
	if g.comment == nil {
		return nil
	}

	spans := make([][2]int, 0)
	for p := pos; p < limit; {
		loc := g.comment.FindIndex(g.doc[p : limit])
		if loc == nil {
			break
		}
		from, to := p + loc[0], p + loc[1]
		if to == from {
			break
		}
		spans = append(spans, [2]int{from, to})
		p = to
	}
	return spans
}

func commentAround (spans [][2]int, pos int) int {
	for i, s := range spans {
		if s[0] <= pos && pos < s[1] {
			return i
		}
	}
	return -1
}

// recognize probes a recovery parser at a position. Memoization, history
// tracking, and farthest-failure bookkeeping are suspended: only success and
// match length matter.
func (g *Grammar) recognize (p Parser, pos int) (length int, ok bool) {
	savedLr, savedHist := g.lrSuspend, g.histSuspend
	savedPos, savedParser := g.farthestPos, g.farthestParser
	g.lrSuspend = true
	g.histSuspend = true

	node, next, err := g.apply(p, pos)

	g.lrSuspend, g.histSuspend = savedLr, savedHist
	g.farthestPos, g.farthestParser = savedPos, savedParser
	g.rollbackTo(pos)

	if err != nil || node == nil {
		return 0, false
	}
	return next - pos, true
}

// mandatoryViolation implements the recovery protocol for a failed mandatory
// element: report what was expected and what was found, then search for a
// reentry point of the enclosing rule. Without one, a violation signal is
// returned to propagate up.
func (g *Grammar) mandatoryViolation (owner Parser, failed Parser, pos int) (zombie *tree.Node, resume int, err error) {
	var e *prx.Error
	if pos >= len(g.doc) && isLookahead(failed) {
		e = prx.FormatError(ErrMandatoryAtEoi, prx.Warning, pos,
			"%s expected by %s, end of input found", describe(failed), describe(owner))
	} else {
		e = prx.FormatError(ErrMandatoryViolation, prx.Fault, pos,
			"%s expected by %s, %s found", describe(failed), describe(owner), g.snippet(pos))
	}
	g.report(e)

	zombie, resume, found := g.reentry(owner.Name(), pos)
	if found {
		zombie.AddError(e)
		return zombie, resume, nil
	}
	return nil, 0, &violation{pos: pos, err: e}
}

// recover resumes after a violation signal propagated out of a child if this
// combinator's rule has a reentry point past the failure. The partial tree
// carried by the signal is preserved ahead of the error span so the result
// still covers the input exactly.
func (g *Grammar) recover (owner Parser, err error) (nodes []*tree.Node, resume int, ok bool) {
	v, isViolation := err.(*violation)
	if !isViolation || owner.Name() == "" {
		return nil, 0, false
	}
	zombie, resume, found := g.reentry(owner.Name(), v.pos)
	if !found {
		return nil, 0, false
	}

	zombie.AddError(v.err)
	if v.node != nil {
		nodes = append(nodes, v.node)
	}
	return append(nodes, zombie), resume, true
}
