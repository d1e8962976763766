package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ava12/prx/internal/test"
)

func leftRecursiveSum () Parser {
	num := Named("num", NewPattern(`[0-9]+`))
	expr := NewForward()
	expr.Set(Named("sum", NewChoice(NewSeries(expr, NewText("+"), num), num)))
	return expr
}

func TestLeftRecursion (t *testing.T) {
	g := mustGrammar(t, leftRecursiveSum(), &Config{LeftRecursion: true})

	n, diags := g.ParseString("", "1+2+3")
	require.False(t, diags.HasFaults(), "%v", diags)
	// the fixpoint grows left-associatively
	assert.Equal(t, `(sum (sum (sum (num "1")) (:Text "+") (num "2")) (:Text "+") (num "3"))`, n.Sexpr())

	n, diags = g.ParseString("", "7")
	assert.False(t, diags.HasFaults())
	assert.Equal(t, `(sum (num "7"))`, n.Sexpr())
}

func TestLeftRecursionRepeatable (t *testing.T) {
	g := mustGrammar(t, leftRecursiveSum(), &Config{LeftRecursion: true})
	n1, _ := g.ParseString("", "1+2")
	n2, _ := g.ParseString("", "1+2")
	assert.Equal(t, n1.Sexpr(), n2.Sexpr())
}

func TestLeftRecursionDisabled (t *testing.T) {
	g := mustGrammar(t, leftRecursiveSum(), &Config{MaxRecursionDepth: 64})
	_, diags := g.ParseString("", "1+2")
	test.ExpectErrorCode(t, ErrRecursionDepth, diags)
}

func TestRightRecursion (t *testing.T) {
	num := Named("num", NewPattern(`[0-9]+`))
	expr := NewForward()
	expr.Set(Named("sum", NewChoice(NewSeries(num, NewText("+"), expr), num)))

	for _, conf := range []*Config{nil, {LeftRecursion: true}} {
		g := mustGrammar(t, expr, conf)
		n, diags := g.ParseString("", "1+2+3")
		require.False(t, diags.HasFaults(), "%v", diags)
		assert.Equal(t, `(sum (num "1") (:Text "+") (sum (num "2") (:Text "+") (sum (num "3"))))`, n.Sexpr())
	}
}

func TestForwardTagDelegation (t *testing.T) {
	f := NewForward()
	f.Set(Named("item", NewText("a")))
	test.ExpectString(t, "item", f.Tag())
}
