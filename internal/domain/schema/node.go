package schema

// Node is a labeled value-tree node. Nodes reachable from a loaded Field are never mutated.
type Node struct {
	label    string
	children []*Node
	index    map[string]*Node
}

// NewNode creates an unvalidated node for building a Field.
// NewField canonicalizes labels and copies the tree, so the caller keeps no handle on it.
func NewNode(label string, children ...*Node) *Node {
	return &Node{label: label, children: children}
}

// Label returns the node label.
func (n *Node) Label() string { return n.label }

// Children returns a copy of the child list in declaration order.
func (n *Node) Children() []*Node {
	out := make([]*Node, len(n.children))
	copy(out, n.children)
	return out
}

// Child returns the child with the given canonical label.
func (n *Node) Child(label string) (*Node, bool) {
	c, ok := n.index[label]
	return c, ok
}

// IsLeaf reports whether the node has no children.
func (n *Node) IsLeaf() bool { return len(n.children) == 0 }

// labels returns node labels in declaration order.
func labels(nodes []*Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.label
	}
	return out
}
