// ABOUTME: Inverts an Index's edges so paths-to-roots can walk backward from a node
// ABOUTME: Package-private: PathsToRoots is the only caller

package graph

// referrersOf maps each node to the nodes that point to it, the inverse
// of every Node.Edges list in idx.
func referrersOf(idx *Index) map[NodeID][]NodeID {
	referrers := make(map[NodeID][]NodeID)
	idx.Each(func(n *Node) {
		for _, target := range n.Edges {
			referrers[target] = append(referrers[target], n.ID)
		}
	})
	return referrers
}
