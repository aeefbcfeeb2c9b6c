package search

import (
	"container/heap"
	"math"
)

// Frontier holds the open nodes of a search run. The order in which Remove
// returns nodes defines the search strategy.
type Frontier interface {
	// Insert adds a node.
	Insert(n *Node)

	// Remove takes the next node. It fails with ErrEmptyFrontier when the
	// frontier is empty; callers check Empty first.
	Remove() (*Node, error)

	// Empty reports whether no nodes are held.
	Empty() bool

	// Len returns the number of nodes held.
	Len() int

	// Reset discards every node.
	Reset()
}

// FIFOFrontier removes the oldest inserted node first. With tree search it
// explores level by level (breadth-first).
type FIFOFrontier struct {
	nodes []*Node
	head  int
}

// NewFIFOFrontier creates an empty FIFO frontier.
func NewFIFOFrontier() *FIFOFrontier {
	return &FIFOFrontier{}
}

// Insert appends n to the tail.
func (f *FIFOFrontier) Insert(n *Node) {
	f.nodes = append(f.nodes, n)
}

// Remove takes the node at the head.
func (f *FIFOFrontier) Remove() (*Node, error) {
	if f.Empty() {
		return nil, NewError(ErrCodeEmptyFrontier, "remove from empty FIFO frontier", nil)
	}
	n := f.nodes[f.head]
	f.nodes[f.head] = nil
	f.head++

	// Compact once the consumed prefix dominates the backing array.
	if f.head > 64 && f.head*2 >= len(f.nodes) {
		remaining := copy(f.nodes, f.nodes[f.head:])
		clear(f.nodes[remaining:])
		f.nodes = f.nodes[:remaining]
		f.head = 0
	}
	return n, nil
}

// Empty reports whether the frontier holds no nodes.
func (f *FIFOFrontier) Empty() bool {
	return f.Len() == 0
}

// Len returns the number of nodes held.
func (f *FIFOFrontier) Len() int {
	return len(f.nodes) - f.head
}

// Reset discards every node.
func (f *FIFOFrontier) Reset() {
	f.nodes = nil
	f.head = 0
}

// LIFOFrontier removes the most recently inserted node first. With tree
// search it explores depth-first.
type LIFOFrontier struct {
	nodes []*Node
}

// NewLIFOFrontier creates an empty LIFO frontier.
func NewLIFOFrontier() *LIFOFrontier {
	return &LIFOFrontier{}
}

// Insert pushes n on top.
func (f *LIFOFrontier) Insert(n *Node) {
	f.nodes = append(f.nodes, n)
}

// Remove pops the top node.
func (f *LIFOFrontier) Remove() (*Node, error) {
	if f.Empty() {
		return nil, NewError(ErrCodeEmptyFrontier, "remove from empty LIFO frontier", nil)
	}
	last := len(f.nodes) - 1
	n := f.nodes[last]
	f.nodes[last] = nil
	f.nodes = f.nodes[:last]
	return n, nil
}

// Empty reports whether the frontier holds no nodes.
func (f *LIFOFrontier) Empty() bool {
	return len(f.nodes) == 0
}

// Len returns the number of nodes held.
func (f *LIFOFrontier) Len() int {
	return len(f.nodes)
}

// Reset discards every node.
func (f *LIFOFrontier) Reset() {
	f.nodes = nil
}

// PriorityFrontier removes the node with the minimum priority first.
//
// Insert computes the node's priority with the evaluator. Among nodes of
// equal priority the earliest inserted is removed first. Insert and Remove
// are O(log n).
type PriorityFrontier struct {
	evaluator Evaluator
	heap      nodeHeap
	seq       uint64
}

// NewPriorityFrontier creates an empty priority frontier ordered by e.
func NewPriorityFrontier(e Evaluator) *PriorityFrontier {
	return &PriorityFrontier{
		evaluator: e,
		heap:      nodeHeap{less: priorityThenSeq},
	}
}

// Insert evaluates n and pushes it on the heap. A NaN priority is queued as
// +Inf, behind every comparable node.
func (f *PriorityFrontier) Insert(n *Node) {
	n.priority = f.evaluator.Priority(n)
	if math.IsNaN(n.priority) {
		n.priority = math.Inf(1)
	}
	f.seq++
	heap.Push(&f.heap, heapEntry{node: n, priority: n.priority, seq: f.seq})
}

// Remove pops the minimum-priority node.
func (f *PriorityFrontier) Remove() (*Node, error) {
	if f.Empty() {
		return nil, NewError(ErrCodeEmptyFrontier, "remove from empty priority frontier", nil)
	}
	entry := heap.Pop(&f.heap).(heapEntry)
	return entry.node, nil
}

// Empty reports whether the frontier holds no nodes.
func (f *PriorityFrontier) Empty() bool {
	return len(f.heap.entries) == 0
}

// Len returns the number of nodes held.
func (f *PriorityFrontier) Len() int {
	return len(f.heap.entries)
}

// Reset discards every node and restarts the tie-break sequence.
func (f *PriorityFrontier) Reset() {
	f.heap.entries = nil
	f.seq = 0
}

// heapEntry snapshots the ordering key at insertion time so that ordering
// never depends on a field that may change while the node is queued.
type heapEntry struct {
	node     *Node
	priority float64
	seq      uint64
}

// priorityThenSeq orders by priority, then by insertion order.
func priorityThenSeq(a, b heapEntry) bool {
	if a.priority != b.priority {
		return a.priority < b.priority
	}
	return a.seq < b.seq
}

// nodeHeap implements heap.Interface over an explicit comparator.
type nodeHeap struct {
	entries []heapEntry
	less    func(a, b heapEntry) bool
}

func (h nodeHeap) Len() int           { return len(h.entries) }
func (h nodeHeap) Less(i, j int) bool { return h.less(h.entries[i], h.entries[j]) }
func (h nodeHeap) Swap(i, j int)      { h.entries[i], h.entries[j] = h.entries[j], h.entries[i] }

func (h *nodeHeap) Push(x any) {
	h.entries = append(h.entries, x.(heapEntry))
}

func (h *nodeHeap) Pop() any {
	old := h.entries
	n := len(old)
	entry := old[n-1]
	old[n-1] = heapEntry{}
	h.entries = old[:n-1]
	return entry
}
