// ABOUTME: Builds a point-in-time graph.Index snapshot of a live object closure for analysis
// ABOUTME: Wires package graph's dominator/retained-size/paths-to-roots algorithms onto it

package ccms

import (
	"github.com/bea4dev/concurrent-partial-mark-and-sweep/graph"
	"github.com/bea4dev/concurrent-partial-mark-and-sweep/object"
)

// Snapshot is a frozen, analyzable copy of the subgraph reachable from one
// or more roots at the moment Snapshot was taken. It satisfies no
// invariant about the live heap going forward — a mutator may free,
// rewire, or promote any of the objects it describes the instant Snapshot
// returns — so it exists purely for offline analysis (dominator trees,
// retained-size estimates, paths-to-roots) of a heap shape that was never
// serialized anywhere, built directly from the live object graph instead
// of a parsed dump.
type Snapshot struct {
	idx     *graph.Index
	idOf    map[*object.Object]graph.NodeID
	objByID map[graph.NodeID]*object.Object
}

// TakeSnapshot walks every object reachable from roots through field
// edges and records it into a Snapshot. Each object is locked only for the
// instant its own field slots are copied (mirroring Heap.Dump's one-
// node-at-a-time locking discipline), not for the whole walk, so
// TakeSnapshot never contends with the collector's mark-red the way
// holding every lock at once would.
func TakeSnapshot(roots ...*object.Object) *Snapshot {
	s := &Snapshot{
		idx:     graph.NewIndex(),
		idOf:    make(map[*object.Object]graph.NodeID),
		objByID: make(map[graph.NodeID]*object.Object),
	}

	rootIDs := make([]graph.NodeID, 0, len(roots))
	for _, root := range roots {
		if root == nil {
			continue
		}
		s.walk(root)
		rootIDs = append(rootIDs, s.idOf[root])
	}
	s.idx.SetRoots(rootIDs)

	return s
}

func (s *Snapshot) walk(obj *object.Object) graph.NodeID {
	if id, ok := s.idOf[obj]; ok {
		return id
	}

	id := graph.NodeID(len(s.idOf) + 1) // 0 is reserved for the dominator super-root
	s.idOf[obj] = id
	s.objByID[id] = obj

	obj.Lock()
	numFields := obj.NumFields()
	fields := make([]*object.Object, numFields)
	for i := range fields {
		fields[i] = obj.Field(i)
	}
	obj.Unlock()

	children := make([]*object.Object, 0, numFields)
	for _, field := range fields {
		if field != nil {
			children = append(children, field)
		}
	}

	s.idx.Add(&graph.Node{
		ID:   id,
		Type: objectType(obj),
		// Size stands in for a byte footprint we have no concept of:
		// header "weight" (1) plus one unit per field slot, so an object
		// with more slots retains proportionally more in RetainedSize.
		Size: uint64(1 + numFields),
		// Edges is filled in below, after children are walked.
	})

	edges := make([]graph.NodeID, 0, len(children))
	for _, child := range children {
		edges = append(edges, s.walk(child))
	}
	s.idx.Get(id).Edges = edges

	return id
}

func objectType(obj *object.Object) string {
	if obj.IsCyclicType.Load() {
		return "cyclic"
	}
	return "acyclic"
}

// Dominators returns the immediate dominator of every object in the
// snapshot, computed over the declared root set.
func (s *Snapshot) Dominators() map[graph.NodeID]graph.NodeID {
	return graph.Dominators(s.idx)
}

// RetainedSize returns, for every object in the snapshot, the total
// weight (see TakeSnapshot's Size comment) of everything that would
// become unreachable if that object were removed — computed via the
// dominator tree, the same technique heap profilers use for real byte
// sizes.
func (s *Snapshot) RetainedSize() map[graph.NodeID]uint64 {
	return graph.RetainedSize(s.idx)
}

// PathsToRoots returns up to maxPaths distinct paths from obj back to one
// of the snapshot's declared roots, or nil if obj is not in the snapshot.
func (s *Snapshot) PathsToRoots(obj *object.Object, maxPaths int) []graph.Path {
	id, ok := s.idOf[obj]
	if !ok {
		return nil
	}
	return graph.PathsToRoots(s.idx, id, maxPaths)
}

// DominatorDepth returns the depth of every object in dom's dominator
// tree, with each declared root at depth 1 (the super-root is depth 0).
func (s *Snapshot) DominatorDepth(dom map[graph.NodeID]graph.NodeID) map[graph.NodeID]int {
	return graph.DominatorDepth(graph.DominatorTree(dom))
}

// DominatorPath returns the chain of immediate dominators from obj up to
// the super-root (NodeID 0), both included, computed against dom.
func (s *Snapshot) DominatorPath(dom map[graph.NodeID]graph.NodeID, obj *object.Object) []graph.NodeID {
	id, ok := s.idOf[obj]
	if !ok {
		return nil
	}
	return graph.DominatorPath(dom, id)
}

// IsDominated reports whether dominator dominates obj in dom — i.e.
// whether freeing dominator would necessarily make obj unreachable too.
func (s *Snapshot) IsDominated(dom map[graph.NodeID]graph.NodeID, obj, dominator *object.Object) bool {
	objID, ok := s.idOf[obj]
	if !ok {
		return false
	}
	domID, ok := s.idOf[dominator]
	if !ok {
		return false
	}
	return graph.IsDominated(dom, objID, domID)
}

// NumObjects returns how many distinct objects the snapshot recorded.
func (s *Snapshot) NumObjects() int {
	return s.idx.Len()
}

// Object resolves a snapshot-local ID back to the live *object.Object it
// was taken from — valid only as a key for further Heap calls, never as a
// guarantee the object is still in the state the snapshot observed.
func (s *Snapshot) Object(id graph.NodeID) *object.Object {
	return s.objByID[id]
}
