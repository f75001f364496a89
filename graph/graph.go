// ABOUTME: Index is the in-memory store behind a graph snapshot
// ABOUTME: Holds nodes and a declared root set, guarded by one RWMutex

// Package graph is a small, domain-agnostic directed-graph toolkit: an
// Index of identified nodes with outgoing edges and a declared root set,
// plus dominator, retained-size, and paths-to-roots analyses over it. It
// has no notion of where an Index's nodes came from — package ccms builds
// one as a point-in-time snapshot of a live object.Object closure (see
// ccms's Snapshot) to run these analyses against the reference-counted
// heap without pausing or otherwise disturbing it.
package graph

import "sync"

// Index is a snapshot of a reachable object closure: a set of Nodes keyed
// by NodeID, plus the subset of them declared as roots. The zero value is
// not ready to use; construct one with NewIndex.
type Index struct {
	mu    sync.RWMutex
	nodes map[NodeID]*Node
	roots []NodeID
}

// NewIndex returns an empty Index.
func NewIndex() *Index {
	return &Index{nodes: make(map[NodeID]*Node)}
}

// Add records n into the index, keyed by n.ID.
func (idx *Index) Add(n *Node) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.nodes[n.ID] = n
}

// Get returns the node recorded under id, or nil if none was.
func (idx *Index) Get(id NodeID) *Node {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.nodes[id]
}

// Len returns the number of nodes recorded.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.nodes)
}

// Each calls fn once per recorded node, in no particular order.
func (idx *Index) Each(fn func(*Node)) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	for _, n := range idx.nodes {
		fn(n)
	}
}

// SetRoots replaces the declared root set.
func (idx *Index) SetRoots(roots []NodeID) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.roots = roots
}

// Roots returns the declared root set.
func (idx *Index) Roots() []NodeID {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.roots
}
