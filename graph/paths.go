// ABOUTME: BFS search for routes from a node back to one of an Index's declared roots
// ABOUTME: Stops each branch as soon as it revisits a node already on its own path

package graph

// PathsToRoots returns up to maxPaths distinct routes from the node
// identified by from back to one of idx's declared roots, searching
// backward along reversed edges. Each candidate path tracks its own
// visited set, so a branch that would revisit one of its own earlier
// nodes (a reference cycle on the way back) is simply dropped rather than
// looping forever.
func PathsToRoots(idx *Index, from NodeID, maxPaths int) []Path {
	if maxPaths <= 0 {
		return nil
	}

	roots := make(map[NodeID]bool)
	for _, id := range idx.Roots() {
		roots[id] = true
	}
	if roots[from] {
		return []Path{{Nodes: []NodeID{from}}}
	}

	referrers := referrersOf(idx)

	type frontier struct {
		node NodeID
		path []NodeID
	}

	var found []Path
	queue := []frontier{{node: from, path: []NodeID{from}}}

	for len(queue) > 0 && len(found) < maxPaths {
		cur := queue[0]
		queue = queue[1:]

		for _, referrer := range referrers[cur.node] {
			if contains(cur.path, referrer) {
				continue
			}

			next := make([]NodeID, len(cur.path)+1)
			copy(next, cur.path)
			next[len(cur.path)] = referrer

			if roots[referrer] {
				found = append(found, Path{Nodes: next})
				if len(found) >= maxPaths {
					break
				}
				continue
			}
			queue = append(queue, frontier{node: referrer, path: next})
		}
	}

	return found
}

func contains(path []NodeID, id NodeID) bool {
	for _, n := range path {
		if n == id {
			return true
		}
	}
	return false
}
