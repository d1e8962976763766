package parser

import (
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ava12/prx"
	"github.com/ava12/prx/internal/test"
	"github.com/ava12/prx/source"
)

type parseSample struct {
	src, expr string
}

func mustGrammar (t *testing.T, root Parser, conf *Config) *Grammar {
	g, e := NewGrammar(root, conf)
	require.NoError(t, e)
	return g
}

func testParseSamples (t *testing.T, g *Grammar, samples []parseSample) {
	for i, sample := range samples {
		n, diags := g.ParseString("sample", sample.src)
		if diags.HasFaults() {
			t.Errorf("sample #%d %q: got diagnostics: %s", i, sample.src, diags.Err().Error())
			continue
		}
		if n.Sexpr() != sample.expr {
			t.Errorf("sample #%d %q: expecting %s, got %s", i, sample.src, sample.expr, n.Sexpr())
		}
	}
}

func grammarErrorCodes (e error) []*prx.Error {
	if e == nil {
		return nil
	}
	m, valid := e.(*multierror.Error)
	if !valid {
		return nil
	}
	res := make([]*prx.Error, 0, len(m.Errors))
	for _, me := range m.Errors {
		if pe, isPrx := me.(*prx.Error); isPrx {
			res = append(res, pe)
		}
	}
	return res
}

func TestTextAndPattern (t *testing.T) {
	word := Named("word", NewPattern(`[a-z]+`))
	root := NewSeries(NewText("<"), word, NewText(">"))
	root.SetReduction(NoReduction)
	g := mustGrammar(t, Named("tag", root), nil)

	testParseSamples(t, g, []parseSample{
		{"<ab>", `(tag (:Text "<") (word "ab") (:Text ">"))`},
	})

	_, diags := g.ParseString("", "<1>")
	test.ExpectErrorCode(t, ErrDidNotMatch, diags)
}

func TestNoMatchKeepsPosition (t *testing.T) {
	samples := []Parser{
		NewText("abc"),
		NewPattern(`[0-9]+`),
		Never(),
		NewSeries(NewText("z")),
		NewChoice(NewText("z"), NewText("y")),
		NewOneOrMore(NewText("z")),
	}
	for i, p := range samples {
		g := mustGrammar(t, p, nil)
		g.reset(source.New("", []byte("xxxx")))
		node, next, e := g.apply(p, 1)
		assert.Nil(t, node, "sample #%d", i)
		assert.NoError(t, e, "sample #%d", i)
		test.ExpectInt(t, 1, next)
	}
}

func TestReductionPolicies (t *testing.T) {
	makeRoot := func (r Reduction) Parser {
		word := Named("word", NewPattern(`[a-z]+`))
		inner := NewSeries(NewText("-"), NewText(""))
		inner.SetReduction(r)
		root := NewSeries(NewPattern(`[0-9]+`), inner, word)
		root.SetReduction(r)
		return Named("root", root)
	}

	samples := []struct {
		red  Reduction
		expr string
	}{
		{NoReduction, `(root (:Pattern "1") (:Series (:Text "-") (:Text "")) (word "ab"))`},
		{Flatten, `(root (:Pattern "1") (:Text "-") (word "ab"))`},
		{MergeAdjacentLeaves, `(root (:Pattern "1-") (word "ab"))`},
	}
	for i, sample := range samples {
		g := mustGrammar(t, makeRoot(sample.red), nil)
		n, diags := g.ParseString("", "1-ab")
		require.False(t, diags.HasFaults(), "sample #%d: %v", i, diags)
		assert.Equal(t, sample.expr, n.Sexpr(), "sample #%d", i)
	}

	treetops := NewSeries(NewPattern(`[0-9]+`), NewText("-"), NewPattern(`[a-z]+`))
	treetops.SetReduction(MergeTreetops)
	g := mustGrammar(t, Named("root", treetops), nil)
	n, _ := g.ParseString("", "1-ab")
	assert.Equal(t, `(root "1-ab")`, n.Sexpr())

	// NoReduction keeps even a lone anonymous child result wrapped
	single := NewChoice(Named("word", NewPattern(`[a-z]+`)))
	single.SetReduction(NoReduction)
	wrap := NewSeries(single)
	wrap.SetReduction(NoReduction)
	g = mustGrammar(t, Named("r", wrap), nil)
	n, _ = g.ParseString("", "ab")
	assert.Equal(t, `(r (:Choice (word "ab")))`, n.Sexpr())
}

func TestRepetitions (t *testing.T) {
	item := Named("i", NewText("a"))

	g := mustGrammar(t, Named("list", NewZeroOrMore(item)), nil)
	testParseSamples(t, g, []parseSample{
		{"", `(list "")`},
		{"aa", `(list (i "a") (i "a"))`},
	})

	g = mustGrammar(t, Named("list", NewOneOrMore(item)), nil)
	_, diags := g.ParseString("", "")
	test.ExpectErrorCode(t, ErrDidNotMatch, diags)

	g = mustGrammar(t, Named("list", NewCounted(item, 2, 3)), nil)
	testParseSamples(t, g, []parseSample{
		{"aa", `(list (i "a") (i "a"))`},
		{"aaa", `(list (i "a") (i "a") (i "a"))`},
	})
	_, diags = g.ParseString("", "a")
	test.ExpectErrorCode(t, ErrDidNotMatch, diags)
}

func TestRepetitionLoopGuard (t *testing.T) {
	// a child matching the empty string must not repeat forever
	g := mustGrammar(t, Named("list", NewZeroOrMore(NewOption(NewText("a")))), nil)
	n, diags := g.ParseString("", "")
	assert.False(t, diags.HasFaults())
	assert.Equal(t, "", n.Content())
}

func TestInterleave (t *testing.T) {
	in := NewInterleave(Named("a", NewText("a")), Named("b", NewText("b")), Named("c", NewText("c")))
	g := mustGrammar(t, Named("mix", in), nil)

	testParseSamples(t, g, []parseSample{
		{"abc", `(mix (a "a") (b "b") (c "c"))`},
		{"cab", `(mix (c "c") (a "a") (b "b"))`},
	})
}

func TestInterleaveBounds (t *testing.T) {
	in := NewInterleave(Named("a", NewText("a")), Named("b", NewText("b")))
	in.SetBounds(0, 1, 3)
	in.SetBounds(1, 0, 1)
	g := mustGrammar(t, Named("mix", in), nil)

	testParseSamples(t, g, []parseSample{
		{"aba", `(mix (a "a") (b "b") (a "a"))`},
		{"aaa", `(mix (a "a") (a "a") (a "a"))`},
	})
	_, diags := g.ParseString("", "b")
	test.ExpectErrorCode(t, ErrDidNotMatch, diags)
}

func TestInterleaveMandatory (t *testing.T) {
	makeRoot := func () Parser {
		in := NewInterleave(Named("a", NewText("a")), Named("b", NewText("b")))
		in.SetMandatory(1)
		return Named("mix", in)
	}

	// an unsatisfied child at or past the mandatory index raises a violation,
	// keeping the matched text in the result
	g := mustGrammar(t, makeRoot(), nil)
	n, diags := g.ParseString("", "a")
	test.ExpectErrorCode(t, ErrMandatoryViolation, diags)
	assert.Equal(t, "a", n.Content())

	// an unsatisfied child before it is an ordinary no-match
	g = mustGrammar(t, makeRoot(), nil)
	_, diags = g.ParseString("", "b")
	test.ExpectErrorCode(t, ErrDidNotMatch, diags)
}

func TestToggleRetargeting (t *testing.T) {
	dialect := Never()
	root := Named("r", NewChoice(NewSeries(dialect, NewText("a")), NewText("b")))
	g := mustGrammar(t, root, nil)

	_, diags := g.ParseString("", "a")
	test.ExpectErrorCode(t, ErrDidNotMatch, diags)

	dialect.SetMode(AlwaysMatch)
	_, diags = g.ParseString("", "a")
	assert.False(t, diags.HasFaults())
}

func TestLookahead (t *testing.T) {
	word := Named("word", NewPattern(`\w+`))
	root := Named("r", NewSeries(NewNegLookahead(NewText("#")), word))
	g := mustGrammar(t, root, nil)

	n, diags := g.ParseString("", "ab")
	assert.False(t, diags.HasFaults())
	assert.Equal(t, `(r (word "ab"))`, n.Sexpr())

	_, diags = g.ParseString("", "#ab")
	test.ExpectErrorCode(t, ErrDidNotMatch, diags)
}

func TestLookbehind (t *testing.T) {
	root := Named("r", NewSeries(NewPattern(`[a-z]+`), NewLookbehind(NewText("ab")), NewText("!")))
	g := mustGrammar(t, root, nil)

	_, diags := g.ParseString("", "ab!")
	assert.False(t, diags.HasFaults())
	_, diags = g.ParseString("", "ba!")
	test.ExpectErrorCode(t, ErrDidNotMatch, diags)

	neg := Named("r", NewSeries(NewPattern(`[a-z]+`), NewNegLookbehind(NewText("ab")), NewText("!")))
	g = mustGrammar(t, neg, nil)
	_, diags = g.ParseString("", "ba!")
	assert.False(t, diags.HasFaults())
	_, diags = g.ParseString("", "ab!")
	test.ExpectErrorCode(t, ErrDidNotMatch, diags)

	pat := Named("r", NewSeries(NewPattern(`\w+`), NewLookbehind(NewPattern(`[0-9]`)), NewText("!")))
	g = mustGrammar(t, pat, nil)
	_, diags = g.ParseString("", "a1!")
	assert.False(t, diags.HasFaults())
	_, diags = g.ParseString("", "1a!")
	test.ExpectErrorCode(t, ErrDidNotMatch, diags)
}

func TestStaticChecks (t *testing.T) {
	samples := []struct {
		root Parser
		code int
	}{
		{NewChoice(NewOption(NewText("a")), NewText("b")), ErrUnreachableAlternative},
		{NewChoice(NewText("a"), NewText("a"), NewText("b")), ErrDuplicateAlternative},
		{NewCounted(NewText("a"), 3, 2), ErrBadRepeatBounds},
		{NewCounted(NewText("a"), 0, MaxRepeat + 1), ErrBadRepeatBounds},
		{NewForward(), ErrUnresolvedForward},
		{NewLookbehind(NewSeries(NewText("a"))), ErrBadLookbehind},
		{NewCapture("x", NewLookahead(NewText("a"))), ErrEmptyCapture},
		{NewPattern(`[`), ErrBadPattern},
	}

	for i, sample := range samples {
		_, e := NewGrammar(sample.root, nil)
		if e == nil {
			t.Errorf("sample #%d: expecting error code %d, got success", i, sample.code)
			continue
		}
		test.ExpectErrorCode(t, sample.code, grammarErrorCodes(e))
	}
}

func TestRedefinedForward (t *testing.T) {
	f := NewForward()
	f.Set(NewText("a"))
	f.Set(NewText("b"))
	_, e := NewGrammar(f, nil)
	test.ExpectErrorCode(t, ErrRedefinedForward, grammarErrorCodes(e))
}

func TestEquivalenceClasses (t *testing.T) {
	p1 := NewText("a")
	p2 := NewText("a")
	p3 := NewText("b")
	mustGrammar(t, NewSeries(p1, p2, p3), nil)
	assert.Equal(t, p1.eqID(), p2.eqID())
	assert.NotEqual(t, p1.eqID(), p3.eqID())

	mustGrammar(t, NewSeries(p1, p2, p3), &Config{NoEqClasses: true})
	assert.NotEqual(t, p1.eqID(), p2.eqID())
}

func TestMandatoryBoundary (t *testing.T) {
	makeRoot := func () Parser {
		return Named("r", NewMandatorySeries(1, NewText("a"), NewText("b"), NewText("c")))
	}

	// a failure at or past the mandatory index raises a violation
	g := mustGrammar(t, makeRoot(), nil)
	_, diags := g.ParseString("", "ax")
	test.ExpectErrorCode(t, ErrMandatoryViolation, diags)

	// a failure before it is an ordinary no-match
	g = mustGrammar(t, makeRoot(), nil)
	_, diags = g.ParseString("", "x")
	test.ExpectErrorCode(t, ErrDidNotMatch, diags)
}

// Sharing memoization tables between structurally interchangeable parsers is
// an optimization: it must not change the returned tree or the diagnostics.
func TestMemoizationTransparency (t *testing.T) {
	makeRoot := func () Parser {
		num := Named("num", NewPattern(`[0-9]+`))
		sum := NewSeries(num, NewText("+"), num)
		return Named("expr", NewChoice(sum, num))
	}

	for _, src := range []string{"1+2", "1", "1+"} {
		shared, sharedDiags := mustGrammar(t, makeRoot(), nil).ParseString("", src)
		plain, plainDiags := mustGrammar(t, makeRoot(), &Config{NoEqClasses: true}).ParseString("", src)
		assert.Equal(t, shared.Sexpr(), plain.Sexpr(), "source %q", src)
		require.Equal(t, len(sharedDiags), len(plainDiags), "source %q", src)
		for i := range sharedDiags {
			assert.Equal(t, sharedDiags[i].Error(), plainDiags[i].Error(), "source %q", src)
		}
	}
}

func TestDeterminism (t *testing.T) {
	makeGrammar := func () *Grammar {
		word := Named("word", NewPattern(`[a-z]+`))
		item := NewChoice(NewSeries(word, NewText("=")), word)
		return mustGrammar(t, Named("doc", NewOneOrMore(item)), nil)
	}
	src := "ab=cd"

	n1, d1 := makeGrammar().ParseString("", src)
	n2, d2 := makeGrammar().ParseString("", src)
	assert.Equal(t, n1.Sexpr(), n2.Sexpr())
	require.Equal(t, len(d1), len(d2))
	for i := range d1 {
		assert.Equal(t, d1[i].Error(), d2[i].Error())
	}
}

func TestRoundTrip (t *testing.T) {
	samples := []string{
		"let a;",
		"let a;let b;",
		"let ;",
		"???",
		"let a;???\nlet b;",
		"",
	}

	for _, src := range samples {
		stmt := NewMandatorySeries(1, NewText("let "), NewPattern(`[a-z]+`), NewText(";"))
		root := Named("doc", NewZeroOrMore(Named("stmt", stmt)))
		g := mustGrammar(t, root, &Config{MaxParserDropouts: 5})
		g.Resume("stmt", SkipTo(";"))
		n, _ := g.ParseString("", src)
		test.ExpectString(t, src, n.Content())
	}
}

func TestUnknownStartRule (t *testing.T) {
	g := mustGrammar(t, Named("r", NewText("a")), nil)
	n, diags := g.Parse(source.New("", []byte("a")), "missing", true)
	require.NotNil(t, n)
	test.ExpectErrorCode(t, ErrUnknownRule, diags)
}

func TestStartRuleSelection (t *testing.T) {
	word := Named("word", NewPattern(`[a-z]+`))
	root := Named("doc", NewSeries(word, NewText("!")))
	g := mustGrammar(t, root, nil)

	n, diags := g.Parse(source.New("", []byte("ab")), "word", true)
	assert.False(t, diags.HasFaults())
	assert.Equal(t, `(word "ab")`, n.Sexpr())
}

func TestPartialMatch (t *testing.T) {
	g := mustGrammar(t, Named("word", NewPattern(`[a-z]+`)), nil)
	n, diags := g.Parse(source.New("", []byte("ab123")), "", false)
	assert.False(t, diags.HasFaults())
	assert.Equal(t, "ab", n.Content())
}

func TestHistoryTracking (t *testing.T) {
	word := Named("word", NewPattern(`[a-z]+`))
	g := mustGrammar(t, Named("doc", NewSeries(word, NewText("!"))), &Config{HistoryTracking: true})

	g.ParseString("", "ab!")
	records := g.History()
	require.NotEmpty(t, records)

	last := records[len(records) - 1]
	assert.Equal(t, "doc", last.Tag)
	assert.True(t, last.Matched)
	assert.Equal(t, 0, last.Pos)
	assert.Equal(t, 3, last.End)
	assert.Equal(t, []string{"doc"}, last.Stack)

	g2 := mustGrammar(t, Named("doc", NewSeries(word, NewText("!"))), nil)
	g2.ParseString("", "ab!")
	assert.Empty(t, g2.History())
}

func TestClone (t *testing.T) {
	word := Named("word", NewPattern(`[a-z]+`))
	g := mustGrammar(t, Named("doc", NewSeries(word, NewText("!"))), nil)

	n1, _ := g.ParseString("", "ab!")
	n2, _ := g.Clone().ParseString("", "ab!")
	assert.Equal(t, n1.Sexpr(), n2.Sexpr())
}

// A number grammar with a mandatory fraction part: "42" parses cleanly,
// "42." keeps the matched prefix in the tree and reports a single mandatory
// violation at the position of the missing digits.
func TestNumberScenario (t *testing.T) {
	makeRoot := func () Parser {
		digits := NewPattern(`[0-9]+`)
		fraction := NewMandatorySeries(1, NewText("."), NewPattern(`[0-9]+`))
		root := NewSeries(digits, NewOption(fraction))
		root.SetReduction(MergeTreetops)
		return Named("number", root)
	}

	g := mustGrammar(t, makeRoot(), nil)
	n, diags := g.ParseString("", "42")
	assert.False(t, diags.HasFaults())
	assert.Equal(t, `(number "42")`, n.Sexpr())

	g = mustGrammar(t, makeRoot(), nil)
	n, diags = g.ParseString("", "42.")
	test.ExpectString(t, "42.", n.Content())
	require.Equal(t, 1, len(diags))
	assert.Equal(t, ErrMandatoryViolation, diags[0].Code)
	assert.Equal(t, 3, diags[0].Pos)
	assert.True(t, n.HasErrors())
}
