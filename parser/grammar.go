package parser

import (
	"bytes"
	"regexp"
	"sort"
	"strconv"

	"github.com/hashicorp/go-multierror"

	"github.com/ava12/prx"
	"github.com/ava12/prx/source"
	"github.com/ava12/prx/tree"
)

const (
	defaultMaxDropouts   = 1
	defaultSearchWindow  = 10000
	defaultMaxDepth      = 8192
)

// Config controls optional behavior of a Grammar. The zero value gives a
// working configuration with left recursion and history tracking disabled.
type Config struct {
	// LeftRecursion enables the fixpoint algorithm for left-recursive rules;
	// with it disabled such rules fail with a recursion-depth diagnostic
	// instead of looping.
	LeftRecursion bool

	// MaxParserDropouts bounds the number of line-skip recovery attempts of
	// the driving loop, 1 by default.
	MaxParserDropouts int

	// ReentrySearchWindow bounds how far ahead the reentry-point search
	// scans before giving up, 10000 bytes by default.
	ReentrySearchWindow int

	// HistoryTracking records every completed parser invocation for external
	// debugging tools. Disabled by default: the record is costly.
	HistoryTracking bool

	// MaxRecursionDepth bounds parser nesting; exceeding it yields a bounded
	// diagnostic instead of a crashed run. 8192 by default.
	MaxRecursionDepth int

	// CommentPattern recognizes comment spans, used by the reentry-point
	// search to reject recovery patterns inside comments.
	CommentPattern string

	// NoEqClasses gives every parser instance its own memoization table
	// instead of sharing tables between structurally interchangeable
	// instances. A conservative fallback, observably equivalent.
	NoEqClasses bool
}

type memoEntry struct {
	node *tree.Node
	next int
}

type rollbackItem struct {
	pos  int
	undo func ()
}

type recKey struct {
	forward *Forward
	pos     int
}

// HistoryRecord describes one completed parser invocation, recorded when
// history tracking is enabled.
type HistoryRecord struct {
	Stack    []string // tags of the parser call stack, outermost first
	Tag      string
	Pos, End int
	Matched  bool
}

// Diagnostics is the ordered list of errors collected during one parse run.
type Diagnostics []*prx.Error

// Err folds all diagnostics of error severity or worse into a single error
// value, nil when there are none.
func (ds Diagnostics) Err () error {
	var m *multierror.Error
	for _, e := range ds {
		if e.Severity >= prx.Fault {
			m = multierror.Append(m, e)
		}
	}
	return m.ErrorOrNil()
}

// HasFaults reports whether any diagnostic has error severity or worse.
func (ds Diagnostics) HasFaults () bool {
	for _, e := range ds {
		if e.Severity >= prx.Fault {
			return true
		}
	}
	return false
}

// Grammar owns a parser graph and all mutable state of a parse run:
// memoization tables, recursion counters, variable stacks, the rollback log,
// farthest-failure tracking, collected diagnostics, and the invocation
// history. A Grammar must not be used from several goroutines at once; for
// concurrent parsing use Clone, the parser graph itself is shared safely.
type Grammar struct {
	conf       Config
	root       Parser
	rules      map[string]Parser
	captures   map[string]Parser
	resume     map[string][]Recoverer
	comment    *regexp.Regexp
	memoTables int

	// run state, reset at the start of every parse
	src            *source.Source
	doc            []byte
	memo           []map[int]memoEntry
	recursion      map[recKey]int
	vars           map[string][]string
	rollback       []rollbackItem
	rollbackSerial int
	lrSuspend      bool
	histSuspend    bool
	depth          int
	farthestPos    int
	farthestParser Parser
	errs           []*prx.Error
	history        []HistoryRecord
	callStack      []string
}

// NewGrammar links and checks a parser graph and creates a Grammar for it.
// All static checks run here, once per graph: forward references must be
// resolved, repeat bounds sane, alternatives reachable, lookbehind children
// reversible, captures named and content-preserving. Every violation found
// is reported; the returned error aggregates all of them.
func NewGrammar (root Parser, conf *Config) (*Grammar, error) {
	g := &Grammar{
		root:     root,
		rules:    make(map[string]Parser),
		captures: make(map[string]Parser),
		resume:   make(map[string][]Recoverer),
	}
	if conf != nil {
		g.conf = *conf
	}
	if g.conf.MaxParserDropouts <= 0 {
		g.conf.MaxParserDropouts = defaultMaxDropouts
	}
	if g.conf.ReentrySearchWindow <= 0 {
		g.conf.ReentrySearchWindow = defaultSearchWindow
	}
	if g.conf.MaxRecursionDepth <= 0 {
		g.conf.MaxRecursionDepth = defaultMaxDepth
	}

	var errs *multierror.Error
	if g.conf.CommentPattern != "" {
		var e error
		g.comment, e = regexp.Compile("(?s:" + g.conf.CommentPattern + ")")
		if e != nil {
			errs = multierror.Append(errs, prx.FormatError(ErrBadPattern, prx.Fatal, 0,
				"invalid comment pattern: %s", e.Error()))
		}
	}

	parsers := collectParsers(root)
	ids := make(map[Parser]int, len(parsers))
	for i, p := range parsers {
		ids[p] = i
	}

	sigs := make(map[Parser]string, len(parsers))
	for _, p := range parsers {
		signatureOf(p, ids, sigs)
	}

	for _, p := range parsers {
		errs = g.check(p, sigs, errs)
	}

	g.assignClasses(parsers, ids, sigs)
	g.reset(source.New("", nil))
	return g, errs.ErrorOrNil()
}

// collectParsers walks the graph depth-first and returns every reachable
// parser once, in deterministic discovery order. Cycles are possible only
// through forward references and are cut by the visited set.
func collectParsers (root Parser) []Parser {
	parsers := make([]Parser, 0)
	visited := make(map[Parser]bool)
	var walk func (p Parser)
	walk = func (p Parser) {
		if p == nil || visited[p] {
			return
		}
		visited[p] = true
		parsers = append(parsers, p)
		for _, c := range p.children() {
			walk(c)
		}
	}
	walk(root)
	return parsers
}

// signatureOf computes the structural signature used both for equivalence
// classes and for duplicate-alternative checks. Two parsers constructed with
// the same arguments get the same signature; forward references and toggles
// are identified by instance, the former to cut cycles, the latter because
// their behavior is runtime-mutable.
func signatureOf (p Parser, ids map[Parser]int, sigs map[Parser]string) string {
	if sig, done := sigs[p]; done {
		return sig
	}

	var sig string
	switch t := p.(type) {
	case *Forward:
		sig = "Forward#" + strconv.Itoa(ids[t.target]) + "|" + t.Tag()
	case *Toggle:
		sig = "Toggle#" + strconv.Itoa(ids[t])
	default:
		sig = p.kind() + "|" + p.Tag() + "|" + p.args() + "("
		for _, c := range p.children() {
			sig += signatureOf(c, ids, sigs) + ","
		}
		sig += ")"
	}
	sigs[p] = sig
	return sig
}

func (g *Grammar) assignClasses (parsers []Parser, ids map[Parser]int, sigs map[Parser]string) {
	if g.conf.NoEqClasses {
		for i, p := range parsers {
			p.setEqID(i)
		}
		g.memoTables = len(parsers)
		return
	}

	classes := make(map[string]int)
	for _, p := range parsers {
		id, found := classes[sigs[p]]
		if !found {
			id = len(classes)
			classes[sigs[p]] = id
		}
		p.setEqID(id)
	}
	g.memoTables = len(classes)
}

func (g *Grammar) check (p Parser, sigs map[Parser]string, errs *multierror.Error) *multierror.Error {
	fail := func (code int, msg string, params ...interface{}) {
		errs = multierror.Append(errs, prx.FormatError(code, prx.Fatal, 0, msg, params...))
	}

	if name := p.Name(); name != "" {
		if prev, found := g.rules[name]; found && prev != p {
			fail(ErrDuplicateRule, "rule %q defined by two different parsers", name)
		} else {
			g.rules[name] = p
		}
	}

	switch t := p.(type) {
	case *Pattern:
		if t.err != nil {
			fail(ErrBadPattern, "invalid pattern %q: %s", t.src, t.err.Error())
		}

	case *Forward:
		if t.target == nil {
			fail(ErrUnresolvedForward, "unresolved forward reference %q", t.Tag())
		}
		if t.dup {
			fail(ErrRedefinedForward, "forward reference %q resolved more than once", t.Tag())
		}

	case *Choice:
		seen := make(map[string]bool)
		for i, c := range t.items {
			if i < len(t.items) - 1 && alwaysMatches(c, make(map[Parser]bool)) {
				fail(ErrUnreachableAlternative,
					"alternative #%d of %s always matches, later alternatives are unreachable", i + 1, describe(t))
			}
			if seen[sigs[c]] {
				fail(ErrDuplicateAlternative, "duplicate alternative #%d of %s", i + 1, describe(t))
			}
			seen[sigs[c]] = true
		}

	case *Counted:
		if t.min < 0 || t.min > t.max || t.max > MaxRepeat {
			fail(ErrBadRepeatBounds, "invalid repeat bounds %d:%d of %s", t.min, t.max, describe(t))
		}

	case *Interleave:
		for i, b := range t.bounds {
			if b.min < 0 || b.min > b.max || b.max > MaxRepeat {
				fail(ErrBadRepeatBounds, "invalid repeat bounds %d:%d for child #%d of %s", b.min, b.max, i + 1, describe(t))
			}
		}

	case *Lookbehind:
		if t.rtext == nil && t.re == nil {
			fail(ErrBadLookbehind, "%s requires a literal or pattern child", describe(t))
		}

	case *Capture:
		if t.name == "" {
			fail(ErrUnnamedCapture, "capture without a symbol name")
		} else if g.captures[t.name] == nil {
			g.captures[t.name] = t.item
		}
		if contentDropping(t.item) {
			fail(ErrEmptyCapture, "capture %q can never retain matched content", t.name)
		}
	}
	return errs
}

// alwaysMatches conservatively reports whether a parser is unconditionally
// matchable; used to detect unreachable alternatives.
func alwaysMatches (p Parser, seen map[Parser]bool) bool {
	if seen[p] {
		return false
	}
	seen[p] = true

	switch t := p.(type) {
	case *Toggle:
		return t.mode == AlwaysMatch
	case *Text:
		return t.text == ""
	case *Option, *ZeroOrMore:
		return true
	case *Counted:
		return t.min == 0 || alwaysMatches(t.item, seen)
	case *Retrieve:
		return t.match == MatchOptional
	case *Forward:
		return t.target != nil && alwaysMatches(t.target, seen)
	case *Series:
		for _, c := range t.items {
			if !alwaysMatches(c, seen) {
				return false
			}
		}
		return len(t.items) > 0
	case *Choice:
		for _, c := range t.items {
			if alwaysMatches(c, seen) {
				return true
			}
		}
	case *Interleave:
		for _, b := range t.bounds {
			if b.min > 0 {
				return false
			}
		}
		return true
	}
	return false
}

// Rule returns the named parser of the graph or nil.
func (g *Grammar) Rule (name string) Parser {
	return g.rules[name]
}

// History returns the invocation records of the last parse run; empty unless
// history tracking is enabled.
func (g *Grammar) History () []HistoryRecord {
	return g.history
}

// Clone creates a Grammar with fresh run state sharing the immutable parser
// graph, for concurrent parsing from several goroutines.
func (g *Grammar) Clone () *Grammar {
	ng := &Grammar{
		conf:       g.conf,
		root:       g.root,
		rules:      g.rules,
		captures:   g.captures,
		comment:    g.comment,
		memoTables: g.memoTables,
		resume:     make(map[string][]Recoverer, len(g.resume)),
	}
	for k, v := range g.resume {
		ng.resume[k] = v
	}
	ng.reset(source.New("", nil))
	return ng
}

func (g *Grammar) reset (src *source.Source) {
	g.src = src
	g.doc = src.Content()
	g.memo = make([]map[int]memoEntry, g.memoTables)
	g.recursion = make(map[recKey]int)
	g.vars = make(map[string][]string)
	g.rollback = g.rollback[:0]
	g.lrSuspend = false
	g.histSuspend = false
	g.depth = 0
	g.farthestPos = -1
	g.farthestParser = nil
	g.errs = make([]*prx.Error, 0)
	g.history = nil
	g.callStack = g.callStack[:0]
}

func (g *Grammar) suffix (pos int) []byte {
	if pos >= len(g.doc) {
		return nil
	}
	return g.doc[pos :]
}

func (g *Grammar) report (e *prx.Error) {
	g.errs = append(g.errs, e)
}

func (g *Grammar) memoSuspended () bool {
	return g.lrSuspend || len(g.rollback) > 0
}

// anchor registers a no-op rollback entry. Every variable parser anchors
// itself even when it does not touch any stack, so that the position-based
// rollback always has a reference entry and memoization stays suspended
// across context-sensitive spans.
func (g *Grammar) anchor (pos int) {
	g.rollback = append(g.rollback, rollbackItem{pos: pos})
	g.rollbackSerial++
}

func (g *Grammar) pushVar (symbol, value string, pos int) {
	g.vars[symbol] = append(g.vars[symbol], value)
	g.logRollback(pos, func () {
		stack := g.vars[symbol]
		g.vars[symbol] = stack[: len(stack) - 1]
	})
}

func (g *Grammar) popVar (symbol string, pos int) string {
	stack := g.vars[symbol]
	value := stack[len(stack) - 1]
	g.vars[symbol] = stack[: len(stack) - 1]
	g.logRollback(pos, func () {
		g.vars[symbol] = append(g.vars[symbol], value)
	})
	return value
}

func (g *Grammar) logRollback (pos int, undo func ()) {
	g.rollback = append(g.rollback, rollbackItem{pos, undo})
	g.rollbackSerial++
}

// rollbackTo replays the undo closures of all variable mutations logged at
// or after the given position, newest first.
func (g *Grammar) rollbackTo (pos int) {
	for len(g.rollback) > 0 {
		item := g.rollback[len(g.rollback) - 1]
		if item.pos < pos {
			break
		}
		if item.undo != nil {
			item.undo()
		}
		g.rollback = g.rollback[: len(g.rollback) - 1]
		g.rollbackSerial++
	}
}

func (g *Grammar) memoize (p Parser, pos int, node *tree.Node, next int) {
	id := p.eqID()
	tbl := g.memo[id]
	if tbl == nil {
		tbl = make(map[int]memoEntry)
		g.memo[id] = tbl
	}
	tbl[pos] = memoEntry{node, next}
}

// apply is the guard wrapping every parser invocation: it rolls back stale
// variable captures, consults and populates the memoization cache, keeps the
// recursion depth bounded, tracks the farthest failure, and records history.
func (g *Grammar) apply (p Parser, pos int) (*tree.Node, int, error) {
	if len(g.rollback) > 0 && g.rollback[len(g.rollback) - 1].pos >= pos {
		g.rollbackTo(pos)
	}

	if !g.memoSuspended() {
		if entry, found := g.memo[p.eqID()][pos]; found {
			return entry.node, entry.next, nil
		}
	}

	if g.depth >= g.conf.MaxRecursionDepth {
		e := prx.FormatError(ErrRecursionDepth, prx.Fault, pos,
			"maximum recursion depth %d exceeded by %s", g.conf.MaxRecursionDepth, describe(p))
		g.report(e)
		return nil, pos, &violation{pos: pos, err: e}
	}

	g.depth++
	record := g.conf.HistoryTracking && !g.histSuspend
	if record {
		g.callStack = append(g.callStack, p.Tag())
	}

	node, next, err := p.parse(g, pos)

	if record {
		g.history = append(g.history, HistoryRecord{
			Stack:   append([]string(nil), g.callStack...),
			Tag:     p.Tag(),
			Pos:     pos,
			End:     next,
			Matched: err == nil && node != nil,
		})
		g.callStack = g.callStack[: len(g.callStack) - 1]
	}
	g.depth--

	if err != nil {
		return nil, pos, err
	}
	if node == nil {
		next = pos
		if pos > g.farthestPos {
			g.farthestPos = pos
			g.farthestParser = p
		}
	}
	if !g.memoSuspended() {
		g.memoize(p, pos, node, next)
	}
	return node, next, err
}

// ParseString parses a document given as a string; see Parse.
func (g *Grammar) ParseString (name, text string) (*tree.Node, Diagnostics) {
	return g.Parse(source.New(name, []byte(text)), "", true)
}

// Parse runs the driving loop: the start parser is invoked repeatedly over
// the remaining text, stitching partial results and skipped spans into one
// tree. The returned tree is never nil and its leaf text always reproduces
// the consumed input exactly; all problems are reported in the returned
// diagnostics, ordered by position.
//
// startRule selects a named rule as the start parser, "" for the graph root.
// With completeMatch unset parsing stops after the first match of the start
// parser even if input remains.
func (g *Grammar) Parse (src *source.Source, startRule string, completeMatch bool) (*tree.Node, Diagnostics) {
	start := g.root
	if startRule != "" {
		start = g.rules[startRule]
		if start == nil {
			e := prx.FormatError(ErrUnknownRule, prx.Fatal, 0, "unknown start rule %q", startRule)
			n := tree.NewLeaf(tree.ErrorTag, "")
			n.AddError(e)
			return n, Diagnostics{e}
		}
	}

	g.reset(src)
	l := len(g.doc)
	results := make([]*tree.Node, 0, 1)
	pos := 0
	dropouts := 0

	for {
		var derr *prx.Error
		node, next, err := g.apply(start, pos)

		switch {
		case err != nil:
			v := err.(*violation)
			if v.node != nil {
				results = append(results, v.node)
				pos += len(v.node.Content())
			}
			derr = v.err

		case node != nil:
			results = append(results, node)
			pos = next
			if pos >= l || !completeMatch {
				goto done
			}
			derr = prx.FormatError(ErrSkippedText, prx.Fault, pos,
				"%s stopped before the end of the document, %s found", describe(start), g.snippet(pos))
			g.report(derr)

		default:
			fpos := g.farthestPos
			if fpos < pos {
				fpos = pos
			}
			if g.farthestParser != nil && g.farthestPos >= pos {
				derr = prx.FormatError(ErrDidNotMatch, prx.Fault, fpos,
					"%s did not match, expected %s, %s found", describe(start), describe(g.farthestParser), g.snippet(fpos))
			} else {
				derr = prx.FormatError(ErrDidNotMatch, prx.Fault, pos, "%s did not match", describe(start))
			}
			g.report(derr)
		}

		if pos >= l {
			break
		}

		dropouts++
		if dropouts > g.conf.MaxParserDropouts {
			te := prx.FormatError(ErrDropoutsExhausted, prx.Fatal, pos,
				"too many parser dropouts, terminating parser skips the rest of the document")
			g.report(te)
			zombie := tree.NewLeaf(tree.ErrorTag, string(g.doc[pos :]))
			zombie.AddError(te)
			results = append(results, zombie)
			pos = l
			break
		}

		skipTo := l
		if nl := bytes.IndexByte(g.doc[pos :], '\n'); nl >= 0 {
			skipTo = pos + nl + 1
		}
		zombie := tree.NewLeaf(tree.ErrorTag, string(g.doc[pos : skipTo]))
		if derr != nil {
			zombie.AddError(derr)
		}
		results = append(results, zombie)
		pos = skipTo
		if pos >= l {
			break
		}
	}

done:
	var root *tree.Node
	switch len(results) {
	case 0:
		root = tree.NewLeaf(tree.ErrorTag, "")
		if len(g.errs) > 0 {
			root.AddError(g.errs[0])
		}
	case 1:
		root = results[0]
	default:
		root = tree.NewNode(":Document", results...)
	}
	root.WithPos(0)

	content := root.Content()
	if content != src.Text(0, len(content)) {
		g.report(prx.FormatError(ErrRoundTrip, prx.Fatal, 0,
			"internal error: parse result does not reproduce the document"))
	}

	return root, g.diagnostics()
}

func (g *Grammar) diagnostics () Diagnostics {
	for _, e := range g.errs {
		e.Line, e.Col = g.src.LineCol(e.Pos)
	}
	sort.SliceStable(g.errs, func (i, j int) bool {
		return g.errs[i].Pos < g.errs[j].Pos
	})
	return Diagnostics(g.errs)
}
