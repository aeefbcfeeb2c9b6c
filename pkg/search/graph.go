package search

// Explored is the read-only view of a run's explored table: the node most
// recently recorded for each state ID.
type Explored interface {
	Lookup(id string) (*Node, bool)
	Len() int
}

// KeepPolicy decides whether a freshly generated node enters the frontier
// and the explored table. Engines without a KeepPolicy perform tree search
// and keep every node.
type KeepPolicy interface {
	Keep(n *Node, explored Explored) bool
}

// KeepPolicyFunc adapts a function to the KeepPolicy interface.
type KeepPolicyFunc func(n *Node, explored Explored) bool

// Keep calls f(n, explored).
func (f KeepPolicyFunc) Keep(n *Node, explored Explored) bool {
	return f(n, explored)
}

// KeepUnvisited keeps a node only if its state has never been recorded.
// It is the policy of plain graph search.
var KeepUnvisited KeepPolicy = KeepPolicyFunc(func(n *Node, explored Explored) bool {
	_, seen := explored.Lookup(n.State().ID())
	return !seen
})

// KeepCheaper keeps a node if its state has never been recorded or if it
// reaches the state with a strictly lower accumulated cost than the
// recorded node. It is the policy of the best-first family.
var KeepCheaper KeepPolicy = KeepPolicyFunc(func(n *Node, explored Explored) bool {
	prev, seen := explored.Lookup(n.State().ID())
	return !seen || n.Cost() < prev.Cost()
})

// exploredTable is the per-run state table.
type exploredTable struct {
	nodes map[string]*Node
}

func newExploredTable() *exploredTable {
	return &exploredTable{nodes: make(map[string]*Node)}
}

// Lookup returns the node recorded for id.
func (t *exploredTable) Lookup(id string) (*Node, bool) {
	n, ok := t.nodes[id]
	return n, ok
}

// Len returns the number of distinct states recorded.
func (t *exploredTable) Len() int {
	return len(t.nodes)
}

// record stores n for its state and returns the node it replaced, if any.
func (t *exploredTable) record(n *Node) *Node {
	id := n.State().ID()
	prev := t.nodes[id]
	t.nodes[id] = n
	return prev
}
