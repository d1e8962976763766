package parser

import (
	"github.com/ava12/prx/tree"
)

// maxGrowIterations bounds the left-recursion fixpoint: the longest-match
// termination rule is not proof-verified for every pathological grammar, so
// growing stops unconditionally after this many iterations.
const maxGrowIterations = 256

// Forward is a placeholder parser used to express recursive grammar rules.
// It holds a non-owning reference to its target, assigned exactly once after
// the whole graph is constructed. With left recursion enabled a Forward that
// reenters itself at the same position computes a bounded fixpoint, keeping
// the longest result; otherwise it simply delegates to its target.
type Forward struct {
	base
	target Parser
	set    bool
	dup    bool
}

func NewForward () *Forward {
	return &Forward{base: newBase("Forward")}
}

// Set resolves the forward reference. The target slot is filled once and
// never reassigned; repeated calls are reported by NewGrammar.
func (f *Forward) Set (target Parser) {
	if f.set {
		f.dup = true
		return
	}
	f.target = target
	f.set = true
}

func (f *Forward) Tag () string {
	if f.name != "" {
		return f.name
	}
	if f.target != nil {
		return f.target.Tag()
	}
	return tree.AnonPrefix + f.kindName
}

func (f *Forward) children () []Parser {
	if f.target == nil {
		return nil
	}
	return []Parser{f.target}
}

func (f *Forward) parse (g *Grammar, pos int) (*tree.Node, int, error) {
	if !g.conf.LeftRecursion {
		return g.apply(f.target, pos)
	}

	rk := recKey{f, pos}
	depth, entered := g.recursion[rk]
	if entered {
		if depth == 0 {
			// left-recursive reentry: fail as the seed of the fixpoint and
			// keep the in-flight results out of the memoization cache
			g.lrSuspend = true
			return nil, pos, nil
		}
		g.recursion[rk] = depth - 1
		node, next, err := g.apply(f.target, pos)
		g.recursion[rk] = depth
		return node, next, err
	}

	saved := g.lrSuspend
	g.recursion[rk] = 0
	serial := g.rollbackSerial
	best, bestNext, err := g.apply(f.target, pos)

	if err == nil && best != nil {
		for depth = 1; depth <= maxGrowIterations; depth++ {
			g.recursion[rk] = depth
			cand, candNext, cerr := g.apply(f.target, pos)
			if cerr != nil || cand == nil || candNext <= bestNext {
				if g.rollbackSerial != serial {
					// the discarded iteration toppled variable stacks built
					// by the best one; replay the winner to restore them
					g.rollbackTo(pos)
					g.recursion[rk] = depth - 1
					best, bestNext, err = g.apply(f.target, pos)
				}
				break
			}
			best, bestNext = cand, candNext
		}
	}

	delete(g.recursion, rk)
	g.lrSuspend = saved
	if err == nil && !g.memoSuspended() {
		g.memoize(f, pos, best, bestNext)
	}
	return best, bestNext, err
}
