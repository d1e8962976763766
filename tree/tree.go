/*
Package tree defines the concrete syntax tree produced by parsing.

A Node is either a leaf covering a literal span of the parsed document or an
interior node owning an ordered tuple of child nodes. Concatenating the leaf
text of a tree in depth-first order always reproduces exactly the input span
the tree covers; the parser maintains this invariant even for documents with
syntax errors, which appear as error-tagged leaves.

Nodes whose tag starts with ':' are anonymous: they carry no grammar-level
name and are candidates for flattening into their parent.
*/
package tree

import (
	"strings"

	"github.com/ava12/prx"
)

// AnonPrefix marks tags of anonymous (disposable) nodes.
const AnonPrefix = ":"

// ErrorTag is the tag of anonymous leaves spliced in to cover text skipped
// during error recovery.
const ErrorTag = ":Error"

// Node is a concrete syntax tree node. The zero value is not usable, nodes
// are created with NewLeaf and NewNode.
type Node struct {
	tag      string
	children []*Node
	text     string
	length   int
	pos      int
	errors   []*prx.Error
}

// NewLeaf creates a leaf node covering the given text, which may be empty.
func NewLeaf (tag, text string) *Node {
	return &Node{tag: tag, text: text, length: len(text), pos: -1}
}

// NewNode creates an interior node owning the given children.
// When called with no children it creates an empty leaf instead, so that the
// leaf-or-interior invariant holds for any constructed node.
func NewNode (tag string, children ...*Node) *Node {
	if len(children) == 0 {
		return NewLeaf(tag, "")
	}
	return &Node{tag: tag, children: children, length: -1, pos: -1}
}

func (n *Node) Tag () string {
	return n.tag
}

// Rename changes the node tag, keeping the result shape intact.
func (n *Node) Rename (tag string) {
	n.tag = tag
}

// IsAnon reports whether the node is anonymous.
func (n *Node) IsAnon () bool {
	return strings.HasPrefix(n.tag, AnonPrefix)
}

// IsLeaf reports whether the node is a leaf. A node is either a leaf or an
// interior node with at least one child.
func (n *Node) IsLeaf () bool {
	return n.children == nil
}

// Text returns the leaf text, or "" for an interior node.
func (n *Node) Text () string {
	return n.text
}

// Children returns the child list of an interior node, nil for a leaf.
// The returned slice is owned by the node and must not be modified.
func (n *Node) Children () []*Node {
	return n.children
}

// SetChildren replaces the node result with the given children, turning the
// node into an interior node (or into an empty leaf when none are given).
// The cached length is invalidated.
func (n *Node) SetChildren (children ...*Node) {
	if len(children) == 0 {
		n.children = nil
		n.text = ""
		n.length = 0
		return
	}
	n.children = children
	n.text = ""
	n.length = -1
}

// Content returns the concatenated leaf text of the whole subtree in
// depth-first order, i.e. exactly the input span the node covers.
func (n *Node) Content () string {
	if n.IsLeaf() {
		return n.text
	}

	var sb strings.Builder
	sb.Grow(n.Len())
	n.writeContent(&sb)
	return sb.String()
}

func (n *Node) writeContent (sb *strings.Builder) {
	if n.IsLeaf() {
		sb.WriteString(n.text)
		return
	}
	for _, c := range n.children {
		c.writeContent(sb)
	}
}

// Len returns the byte length of the covered span. The value is computed on
// first use and cached; nodes are frozen once returned past backtracking, so
// the cache never goes stale.
func (n *Node) Len () int {
	if n.length < 0 {
		l := 0
		for _, c := range n.children {
			l += c.Len()
		}
		n.length = l
	}
	return n.length
}

// Pos returns the absolute byte position of the covered span, or -1 while
// the node's final place in the tree is not known yet.
func (n *Node) Pos () int {
	return n.pos
}

// WithPos assigns the absolute position to the node and all its descendants
// whose position is not assigned yet. Positions are assigned exactly once,
// when the final place of a subtree is known; later sweeps leave them intact.
func (n *Node) WithPos (pos int) *Node {
	if n.pos < 0 {
		n.pos = pos
	}
	for _, c := range n.children {
		c.WithPos(pos)
		pos += c.Len()
	}
	return n
}

// AddError attaches a diagnostic to the node.
func (n *Node) AddError (e *prx.Error) {
	n.errors = append(n.errors, e)
}

// Errors returns the diagnostics attached to the node itself, not including
// those of its descendants.
func (n *Node) Errors () []*prx.Error {
	return n.errors
}

// HasErrors reports whether the subtree carries any attached diagnostics.
func (n *Node) HasErrors () bool {
	if len(n.errors) > 0 {
		return true
	}
	for _, c := range n.children {
		if c.HasErrors() {
			return true
		}
	}
	return false
}

func (n *Node) String () string {
	return n.Sexpr()
}


// Ancestor, sibling, and selection helpers operate on trees read-only.

func NthChild (n *Node, i int) *Node {
	if n == nil || n.IsLeaf() {
		return nil
	}

	if i < 0 {
		i += len(n.children)
	}
	if i < 0 || i >= len(n.children) {
		return nil
	}
	return n.children[i]
}

func FirstLeaf (n *Node) *Node {
	for n != nil && !n.IsLeaf() {
		n = n.children[0]
	}
	return n
}

func LastLeaf (n *Node) *Node {
	for n != nil && !n.IsLeaf() {
		n = n.children[len(n.children) - 1]
	}
	return n
}

type NodeVisitor func (n *Node) (walkChildren bool)

// Walk visits the subtree depth-first, left to right. The visitor decides
// whether the children of the visited node are walked.
func Walk (n *Node, visitor NodeVisitor) {
	if n == nil {
		return
	}

	if visitor(n) {
		for _, c := range n.children {
			Walk(c, visitor)
		}
	}
}

// Select returns all nodes of the subtree with the given tag, depth-first.
func Select (n *Node, tag string) []*Node {
	res := make([]*Node, 0)
	Walk(n, func (c *Node) bool {
		if c.tag == tag {
			res = append(res, c)
		}
		return true
	})
	return res
}

// CollectErrors returns the diagnostics attached to the subtree in
// depth-first order.
func CollectErrors (n *Node) []*prx.Error {
	res := make([]*prx.Error, 0)
	Walk(n, func (c *Node) bool {
		res = append(res, c.errors...)
		return true
	})
	return res
}
