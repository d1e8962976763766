package tree

import (
	"strconv"
	"strings"
)

// Sexpr serializes the subtree as a single-line S-expression, leaf text
// quoted. Used by tests and debugging tools.
func (n *Node) Sexpr () string {
	var sb strings.Builder
	n.writeSexpr(&sb)
	return sb.String()
}

func (n *Node) writeSexpr (sb *strings.Builder) {
	sb.WriteByte('(')
	sb.WriteString(n.tag)
	if n.IsLeaf() {
		sb.WriteByte(' ')
		sb.WriteString(strconv.Quote(n.text))
	} else {
		for _, c := range n.children {
			sb.WriteByte(' ')
			c.writeSexpr(sb)
		}
	}
	sb.WriteByte(')')
}

// Indented serializes the subtree with one node per line, children indented
// below their parent.
func (n *Node) Indented () string {
	var sb strings.Builder
	n.writeIndented(&sb, 0)
	return sb.String()
}

func (n *Node) writeIndented (sb *strings.Builder, level int) {
	for i := 0; i < level; i++ {
		sb.WriteString("  ")
	}
	sb.WriteString(n.tag)
	if n.IsLeaf() {
		sb.WriteByte(' ')
		sb.WriteString(strconv.Quote(n.text))
		sb.WriteByte('\n')
		return
	}

	sb.WriteByte('\n')
	for _, c := range n.children {
		c.writeIndented(sb, level + 1)
	}
}
