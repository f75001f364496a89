// ABOUTME: Tests for the paths-to-roots BFS: direct hits, cycles, multiple roots, self-reference

package graph

import (
	"reflect"
	"testing"
)

func buildChainIndex() *Index {
	// 1 (root) -> 2 -> 3
	//          -> 4
	idx := NewIndex()
	idx.Add(&Node{ID: 1, Edges: []NodeID{2}})
	idx.Add(&Node{ID: 2, Edges: []NodeID{3, 4}})
	idx.Add(&Node{ID: 3})
	idx.Add(&Node{ID: 4})
	idx.SetRoots([]NodeID{1})
	return idx
}

func TestPathsToRoots(t *testing.T) {
	idx := buildChainIndex()

	tests := []struct {
		name     string
		from     NodeID
		maxPaths int
		want     []Path
	}{
		{name: "starting node is itself a root", from: 1, maxPaths: 5, want: []Path{{Nodes: []NodeID{1}}}},
		{name: "one hop from root", from: 2, maxPaths: 5, want: []Path{{Nodes: []NodeID{2, 1}}}},
		{name: "two hops from root", from: 3, maxPaths: 5, want: []Path{{Nodes: []NodeID{3, 2, 1}}}},
		{name: "two hops via the other branch", from: 4, maxPaths: 5, want: []Path{{Nodes: []NodeID{4, 2, 1}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PathsToRoots(idx, tt.from, tt.maxPaths)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("PathsToRoots() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPathsToRootsStopsAtCycle(t *testing.T) {
	// 1 (root) -> 2 -> 3 -> 2 (back edge)
	idx := NewIndex()
	idx.Add(&Node{ID: 1, Edges: []NodeID{2}})
	idx.Add(&Node{ID: 2, Edges: []NodeID{3}})
	idx.Add(&Node{ID: 3, Edges: []NodeID{2}})
	idx.SetRoots([]NodeID{1})

	got := PathsToRoots(idx, 3, 5)
	want := []Path{{Nodes: []NodeID{3, 2, 1}}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("PathsToRoots() with cycle = %v, want %v", got, want)
	}
}

func TestPathsToRootsOfUnreachableNodeIsEmpty(t *testing.T) {
	idx := NewIndex()
	idx.Add(&Node{ID: 1, Edges: []NodeID{2}})
	idx.Add(&Node{ID: 2})
	idx.Add(&Node{ID: 3}) // disconnected: nothing points to it, it is not a root
	idx.SetRoots([]NodeID{1})

	got := PathsToRoots(idx, 3, 5)
	if len(got) != 0 {
		t.Errorf("expected no paths for an unreachable node, got %v", got)
	}
}

func TestPathsToRootsThroughMultipleRoots(t *testing.T) {
	// root 1 -> 3, root 2 -> 3
	idx := NewIndex()
	idx.Add(&Node{ID: 1, Edges: []NodeID{3}})
	idx.Add(&Node{ID: 2, Edges: []NodeID{3}})
	idx.Add(&Node{ID: 3})
	idx.SetRoots([]NodeID{1, 2})

	got := PathsToRoots(idx, 3, 5)
	if len(got) != 2 {
		t.Fatalf("expected 2 paths with two roots, got %d", len(got))
	}

	var sawRoot1, sawRoot2 bool
	for _, p := range got {
		if len(p.Nodes) == 2 {
			switch p.Nodes[1] {
			case 1:
				sawRoot1 = true
			case 2:
				sawRoot2 = true
			}
		}
	}
	if !sawRoot1 || !sawRoot2 {
		t.Errorf("expected a path through each root, got %v", got)
	}
}

func TestPathsToRootsRespectsMaxPaths(t *testing.T) {
	// three roots all pointing at node 4
	idx := NewIndex()
	idx.Add(&Node{ID: 1, Edges: []NodeID{4}})
	idx.Add(&Node{ID: 2, Edges: []NodeID{4}})
	idx.Add(&Node{ID: 3, Edges: []NodeID{4}})
	idx.Add(&Node{ID: 4})
	idx.SetRoots([]NodeID{1, 2, 3})

	got := PathsToRoots(idx, 4, 2)
	if len(got) != 2 {
		t.Errorf("expected exactly 2 paths (maxPaths cap), got %d", len(got))
	}
}

func TestPathsToRootsSelfReference(t *testing.T) {
	idx := NewIndex()
	idx.Add(&Node{ID: 1, Edges: []NodeID{2}})
	idx.Add(&Node{ID: 2, Edges: []NodeID{2}}) // points to itself
	idx.SetRoots([]NodeID{1})

	got := PathsToRoots(idx, 2, 5)
	want := []Path{{Nodes: []NodeID{2, 1}}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("PathsToRoots() with self-reference = %v, want %v", got, want)
	}
}
