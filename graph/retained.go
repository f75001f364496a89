// ABOUTME: Retained-size computation via post-order traversal of the dominator tree
// ABOUTME: A node's retained size is its own weight plus everything it dominates

package graph

// RetainedSize computes, for every node reachable from idx's declared
// root set, the sum of weights of everything that would become
// unreachable if that node were removed — the same technique heap
// profilers use for real byte sizes, here applied to Node.Size's
// caller-defined weight. A node dominates exactly what it would take down
// with it, so the dominator tree is all that is needed: sum a node's own
// weight with the already-computed retained size of everything it
// immediately dominates.
func RetainedSize(idx *Index) map[NodeID]uint64 {
	tree := DominatorTree(Dominators(idx))

	weight := make(map[NodeID]uint64)
	idx.Each(func(n *Node) { weight[n.ID] = n.Size })
	weight[0] = 0

	retained := make(map[NodeID]uint64)
	var sum func(NodeID) uint64
	sum = func(node NodeID) uint64 {
		if v, done := retained[node]; done {
			return v
		}
		total := weight[node]
		for _, child := range tree[node] {
			total += sum(child)
		}
		retained[node] = total
		return total
	}

	for node := range tree {
		sum(node)
	}
	delete(retained, 0)
	return retained
}
