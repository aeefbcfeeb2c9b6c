package search

import "fmt"

// Node is a point in the search tree.
//
// A node's state, operator, parent, depth and cost never change after
// construction. Parents are shared by every descendant and stay reachable as
// long as any descendant, frontier entry or solution refers to them. Only the
// priority is written after construction, by the frontier that orders it.
type Node struct {
	state    State
	operator Operator
	parent   *Node
	depth    int
	cost     float64
	priority float64

	// refs counts the per-run containers (frontier, explored table) that
	// currently hold the node.
	refs int
}

// newRootNode creates the root node for the initial state.
func newRootNode(s State) *Node {
	return &Node{state: s}
}

// newChildNode creates the successor of parent reached through op.
func newChildNode(s State, op Operator, parent *Node, cost float64) *Node {
	return &Node{
		state:    s,
		operator: op,
		parent:   parent,
		depth:    parent.depth + 1,
		cost:     cost,
	}
}

// State returns the node's state.
func (n *Node) State() State {
	return n.state
}

// Operator returns the operator that generated the node, nil for the root.
func (n *Node) Operator() Operator {
	return n.operator
}

// Parent returns the parent node, nil for the root.
func (n *Node) Parent() *Node {
	return n.parent
}

// Depth returns the number of operators applied from the root.
func (n *Node) Depth() int {
	return n.depth
}

// Cost returns g(n), the accumulated cost from the root.
func (n *Node) Cost() float64 {
	return n.cost
}

// Priority returns the priority assigned by the last priority frontier
// that held the node.
func (n *Node) Priority() float64 {
	return n.priority
}

// IsRoot reports whether the node has no parent.
func (n *Node) IsRoot() bool {
	return n.parent == nil
}

// Path returns the nodes from the root to n, inclusive.
func (n *Node) Path() []*Node {
	path := make([]*Node, n.depth+1)
	for cur := n; cur != nil; cur = cur.parent {
		path[cur.depth] = cur
	}
	return path
}

// String implements fmt.Stringer.
func (n *Node) String() string {
	op := "<root>"
	if n.operator != nil {
		op = n.operator.Name()
	}
	return fmt.Sprintf("node(state=%s, op=%s, depth=%d, g=%g)", n.state.ID(), op, n.depth, n.cost)
}
