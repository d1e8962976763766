package parser

import (
	"fmt"
	"strings"

	"github.com/ava12/prx/tree"
)

// Reduction is the tree-flattening policy a combining parser applies to its
// child results. It only affects the shape of the output tree, never which
// text is matched.
type Reduction int

const (
	// Flatten splices children of anonymous child results into the result
	// list instead of nesting them and drops empty anonymous leaves.
	Flatten Reduction = iota

	// NoReduction wraps all child results verbatim.
	NoReduction

	// MergeTreetops works like Flatten and additionally collapses the result
	// into a single leaf when all remaining children are anonymous leaves.
	MergeTreetops

	// MergeAdjacentLeaves works like Flatten and additionally merges runs of
	// consecutive anonymous leaf children into single leaves.
	MergeAdjacentLeaves
)

// reduce builds the result node of a combining parser from its child results
// according to the reduction policy. The policy is applied identically for
// every combinator kind.
func reduce (p Parser, red Reduction, results []*tree.Node) *tree.Node {
	if red != NoReduction {
		results = flatten(results)
		switch red {
		case MergeTreetops:
			if allAnonLeaves(results) {
				return mergeLeaves(p.Tag(), results)
			}
		case MergeAdjacentLeaves:
			results = mergeAdjacent(results)
		}
	}

	if red != NoReduction && len(results) == 1 && p.Name() == "" {
		return results[0]
	}
	return tree.NewNode(p.Tag(), results...)
}

func flatten (results []*tree.Node) []*tree.Node {
	flat := make([]*tree.Node, 0, len(results))
	for _, n := range results {
		if !n.IsAnon() {
			flat = append(flat, n)
			continue
		}
		if n.IsLeaf() {
			if n.Text() != "" || n.HasErrors() {
				flat = append(flat, n)
			}
			continue
		}
		flat = append(flat, n.Children()...)
	}
	return flat
}

func allAnonLeaves (results []*tree.Node) bool {
	for _, n := range results {
		if !n.IsAnon() || !n.IsLeaf() || n.HasErrors() {
			return false
		}
	}
	return len(results) > 0
}

func mergeLeaves (tag string, results []*tree.Node) *tree.Node {
	var sb strings.Builder
	for _, n := range results {
		sb.WriteString(n.Text())
	}
	return tree.NewLeaf(tag, sb.String())
}

func mergeAdjacent (results []*tree.Node) []*tree.Node {
	merged := make([]*tree.Node, 0, len(results))
	run := 0
	for i := 0; i <= len(results); i++ {
		if i < len(results) && results[i].IsAnon() && results[i].IsLeaf() && !results[i].HasErrors() {
			run++
			continue
		}
		if run > 1 {
			from := i - run
			merged = append(merged, mergeLeaves(results[from].Tag(), results[from : i]))
		} else if run == 1 {
			merged = append(merged, results[i - 1])
		}
		run = 0
		if i < len(results) {
			merged = append(merged, results[i])
		}
	}
	return merged
}

// errorMarker creates the zero-length error span anchoring a mandatory
// violation in the partial tree when no reentry point exists.
func errorMarker (err error) *tree.Node {
	marker := tree.NewLeaf(tree.ErrorTag, "")
	if v, ok := err.(*violation); ok {
		marker.AddError(v.err)
	}
	return marker
}

// wrapPartial folds the results a combinator had accumulated before a
// violation signal into the partial tree carried by the signal, so the
// driving loop receives the deepest partial result available.
func wrapPartial (p Parser, red Reduction, results []*tree.Node, err error) error {
	v, ok := err.(*violation)
	if !ok {
		return err
	}
	if v.node != nil {
		results = append(results, v.node)
	}
	if len(results) > 0 {
		v.node = reduce(p, red, results)
	}
	return v
}

// NoMandatory disables the mandatory-element protocol of a Series or
// Interleave parser.
const NoMandatory = 1 << 30

// Series invokes its children strictly in order. A child failure before the
// mandatory index aborts the series with an ordinary no-match; at or past
// the mandatory index it triggers the mandatory-violation protocol instead.
type Series struct {
	nary
	mandatory int
}

func NewSeries (children ...Parser) *Series {
	return &Series{nary: newNary("Series", children), mandatory: NoMandatory}
}

// NewMandatorySeries creates a Series whose children starting at the given
// index are mandatory.
func NewMandatorySeries (mandatory int, children ...Parser) *Series {
	s := NewSeries(children...)
	s.mandatory = mandatory
	return s
}

func (s *Series) SetMandatory (index int) {
	s.mandatory = index
}

func (s *Series) args () string {
	return fmt.Sprintf("%d/%d", s.mandatory, s.red)
}

func (s *Series) parse (g *Grammar, pos int) (*tree.Node, int, error) {
	results := make([]*tree.Node, 0, len(s.items))
	next := pos
	for i := 0; i < len(s.items); i++ {
		node, n2, err := g.apply(s.items[i], next)
		if err != nil {
			if nodes, resume, ok := g.recover(s, err); ok {
				results = append(results, nodes...)
				next = resume
				continue
			}
			return nil, pos, wrapPartial(s, s.red, results, err)
		}
		if node == nil {
			if i < s.mandatory {
				return nil, pos, nil
			}
			zombie, resume, verr := g.mandatoryViolation(s, s.items[i], next)
			if verr != nil {
				results = append(results, errorMarker(verr))
				return nil, pos, wrapPartial(s, s.red, results, verr)
			}
			results = append(results, zombie)
			next = resume
			continue
		}
		results = append(results, node)
		next = n2
	}
	return reduce(s, s.red, results), next, nil
}

// Choice invokes its children in order and returns the first match.
type Choice struct {
	nary
}

func NewChoice (children ...Parser) *Choice {
	return &Choice{nary: newNary("Choice", children)}
}

func (c *Choice) args () string {
	return fmt.Sprintf("%d", c.red)
}

func (c *Choice) parse (g *Grammar, pos int) (*tree.Node, int, error) {
	for _, item := range c.items {
		node, next, err := g.apply(item, pos)
		if err != nil {
			if nodes, resume, ok := g.recover(c, err); ok {
				return reduce(c, c.red, nodes), resume, nil
			}
			return nil, pos, err
		}
		if node != nil {
			return reduce(c, c.red, []*tree.Node{node}), next, nil
		}
	}
	return nil, pos, nil
}

// Option invokes its child and succeeds regardless of the outcome, producing
// a zero-length result when the child does not match.
type Option struct {
	unary
}

func NewOption (child Parser) *Option {
	return &Option{unary: newUnary("Option", child)}
}

func (o *Option) args () string {
	return fmt.Sprintf("%d", o.red)
}

func (o *Option) parse (g *Grammar, pos int) (*tree.Node, int, error) {
	node, next, err := g.apply(o.item, pos)
	if err != nil {
		return nil, pos, err
	}
	if node == nil {
		return tree.NewLeaf(o.Tag(), ""), pos, nil
	}
	return reduce(o, o.red, []*tree.Node{node}), next, nil
}

// MaxRepeat is the upper limit for explicit repetition bounds.
const MaxRepeat = 1 << 20

// repetition is the shared core of ZeroOrMore, OneOrMore, and Counted: the
// child is invoked until it fails to match or fails to advance the position.
// The advancement requirement guards against infinite repetition of a child
// that can match the empty string.
type repetition struct {
	unary
	min, max int
}

func (r *repetition) args () string {
	return fmt.Sprintf("%d:%d/%d", r.min, r.max, r.red)
}

func (r *repetition) parse (g *Grammar, pos int) (*tree.Node, int, error) {
	results := make([]*tree.Node, 0)
	next := pos
	cnt := 0
	for cnt < r.max {
		node, n2, err := g.apply(r.item, next)
		if err != nil {
			if nodes, resume, ok := g.recover(r, err); ok {
				results = append(results, nodes...)
				next = resume
				cnt++
				continue
			}
			return nil, pos, wrapPartial(r, r.red, results, err)
		}
		if node == nil {
			break
		}
		results = append(results, node)
		cnt++
		if n2 == next {
			break
		}
		next = n2
	}

	if cnt < r.min {
		return nil, pos, nil
	}
	if len(results) == 0 {
		return tree.NewLeaf(r.Tag(), ""), pos, nil
	}
	return reduce(r, r.red, results), next, nil
}

// ZeroOrMore repeats its child any number of times and always succeeds.
type ZeroOrMore struct {
	repetition
}

func NewZeroOrMore (child Parser) *ZeroOrMore {
	return &ZeroOrMore{repetition{unary: newUnary("ZeroOrMore", child), min: 0, max: MaxRepeat}}
}

// OneOrMore repeats its child and requires at least one match.
type OneOrMore struct {
	repetition
}

func NewOneOrMore (child Parser) *OneOrMore {
	return &OneOrMore{repetition{unary: newUnary("OneOrMore", child), min: 1, max: MaxRepeat}}
}

// Counted repeats its child between an explicit minimum and maximum number
// of times. Bounds with min > max or exceeding MaxRepeat are rejected by
// NewGrammar.
type Counted struct {
	repetition
}

func NewCounted (child Parser, min, max int) *Counted {
	return &Counted{repetition{unary: newUnary("Counted", child), min: min, max: max}}
}

type interleaveBounds struct {
	min, max int
}

// Interleave invokes a set of children in any order, each bounded by its own
// repeat counts, until no child can match any more. Children at or past the
// mandatory index whose minimum is not satisfied by then trigger the
// mandatory-violation protocol, like in a Series.
type Interleave struct {
	nary
	bounds    []interleaveBounds
	mandatory int
}

func NewInterleave (children ...Parser) *Interleave {
	i := &Interleave{nary: newNary("Interleave", children), mandatory: NoMandatory}
	i.bounds = make([]interleaveBounds, len(children))
	for j := range i.bounds {
		i.bounds[j] = interleaveBounds{1, 1}
	}
	return i
}

// SetBounds assigns the per-child repetition bounds, 1:1 by default.
func (in *Interleave) SetBounds (child, min, max int) {
	in.bounds[child] = interleaveBounds{min, max}
}

func (in *Interleave) SetMandatory (index int) {
	in.mandatory = index
}

func (in *Interleave) args () string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d/%d", in.mandatory, in.red)
	for _, b := range in.bounds {
		fmt.Fprintf(&sb, ",%d:%d", b.min, b.max)
	}
	return sb.String()
}

func (in *Interleave) parse (g *Grammar, pos int) (*tree.Node, int, error) {
	counts := make([]int, len(in.items))
	results := make([]*tree.Node, 0, len(in.items))
	next := pos

	for {
		matched := false
		for i, item := range in.items {
			if counts[i] >= in.bounds[i].max {
				continue
			}
			node, n2, err := g.apply(item, next)
			if err != nil {
				if nodes, resume, ok := g.recover(in, err); ok {
					results = append(results, nodes...)
					next = resume
					counts[i]++
					matched = true
					break
				}
				return nil, pos, wrapPartial(in, in.red, results, err)
			}
			if node == nil {
				continue
			}
			results = append(results, node)
			if n2 == next {
				// a zero-length match satisfies the child once and for all
				counts[i] = in.bounds[i].max
			} else {
				counts[i]++
				next = n2
			}
			matched = true
			break
		}
		if !matched {
			break
		}
	}

	for i := range in.items {
		if counts[i] >= in.bounds[i].min {
			continue
		}
		if i < in.mandatory {
			return nil, pos, nil
		}
		zombie, resume, verr := g.mandatoryViolation(in, in.items[i], next)
		if verr != nil {
			results = append(results, errorMarker(verr))
			return nil, pos, wrapPartial(in, in.red, results, verr)
		}
		results = append(results, zombie)
		next = resume
	}

	if len(results) == 0 {
		return tree.NewLeaf(in.Tag(), ""), pos, nil
	}
	return reduce(in, in.red, results), next, nil
}
