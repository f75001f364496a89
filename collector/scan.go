// ABOUTME: The four-color partial mark-and-sweep scan run against one suspected root
// ABOUTME: mark-red locks the closure, mark-gray/white/black partition it into garbage vs. live

package collector

import "github.com/bea4dev/concurrent-partial-mark-and-sweep/object"

// color is one of the four colors the scan assigns to every object it
// visits while examining a single suspected root: red while the closure
// is still being locked, gray while counts are being accounted for, white
// for provisional cycle garbage, black for anything reached from outside
// the scrutinized set.
type color uint8

const (
	colorRed color = iota
	colorGray
	colorWhite
	colorBlack
)

// scanState holds the three per-invocation maps the C++ source this
// mirrors calls color_map, count_map, and visited, all keyed on object
// identity (a Go pointer serves the role the source's raw HeapObject*
// address does).
type scanState struct {
	colors  map[*object.Object]color
	counts  map[*object.Object]int64
	visited []*object.Object
}

func newScanState() *scanState {
	return &scanState{
		colors: make(map[*object.Object]color),
		counts: make(map[*object.Object]int64),
	}
}

// unlockAll releases every lock mark-red acquired, in acquisition order.
// Release order does not matter for correctness (these are plain spin
// locks, not an ordered resource each of which some other thread might be
// waiting to re-acquire in a conflicting order), only that every lock
// taken gets released exactly once.
func (st *scanState) unlockAll() {
	for _, obj := range st.visited {
		obj.Unlock()
	}
}

// markRed performs the lock-acquiring DFS of Phase 1: every object
// reachable from root through fields is locked, colored red, and recorded
// in visited, freezing the entire closure against further mutator field
// writes. isCyclicRoot is set to true the first time any field anywhere in
// the closure points directly back at root — a known limitation inherited
// from the Bacon-Rajan algorithm this mirrors: a cycle not touching root
// directly is invisible to this particular scan, and only becomes visible
// once one of its own members gets independently enrolled as a root.
func markRed(root, current *object.Object, st *scanState, isCyclicRoot *bool) {
	if _, seen := st.colors[current]; seen {
		return
	}

	st.colors[current] = colorRed
	current.Lock()
	st.visited = append(st.visited, current)

	for i := 0; i < current.NumFields(); i++ {
		field := current.Field(i)
		if field == nil {
			continue
		}
		if field == root {
			*isCyclicRoot = true
		}
		markRed(root, field, st, isCyclicRoot)
	}
}

// markGray implements Phase 2b's first step: every object in the closure
// is colored gray and assigned a phase-local count in st.counts seeded
// from its real ref-count (read atomically; a concurrent decrement not
// routed through this traversal can only ever lower what's observed here,
// which risks failing to reclaim this pass but never an erroneous
// reclamation) minus one for every internal edge this
// traversal itself follows into it; isFirst marks the call for root, which
// is reached without following any edge, so its first visit subtracts
// nothing and only the internal edges that lead back to it are subtracted.
func markGray(current *object.Object, st *scanState, isFirst bool) {
	if st.colors[current] == colorGray {
		st.counts[current]--
		return
	}

	st.colors[current] = colorGray
	refCount := current.LoadRefCount()
	if isFirst {
		st.counts[current] = refCount
	} else {
		st.counts[current] = refCount - 1
	}

	for i := 0; i < current.NumFields(); i++ {
		field := current.Field(i)
		if field != nil {
			markGray(field, st, false)
		}
	}
}

// markWhiteOrBlack implements Phase 2b's second step: a gray object whose
// phase-local count is still positive has an external reference the scan
// never accounted for, so its entire closure is live and promoted to
// black via markBlack; otherwise the object is provisionally white —
// every reference to it is accounted for by edges internal to this
// closure — and its children are examined the same way.
func markWhiteOrBlack(current *object.Object, st *scanState) {
	if st.colors[current] != colorGray {
		return
	}

	if st.counts[current] > 0 {
		markBlack(current, st)
		return
	}

	st.colors[current] = colorWhite
	for i := 0; i < current.NumFields(); i++ {
		field := current.Field(i)
		if field != nil {
			markWhiteOrBlack(field, st)
		}
	}
}

// markBlack promotes current and everything reachable from it to black,
// overriding any white it may have picked up from a different path
// through the closure; no count bookkeeping happens here, only color.
func markBlack(current *object.Object, st *scanState) {
	if st.colors[current] == colorBlack {
		return
	}

	st.colors[current] = colorBlack
	for i := 0; i < current.NumFields(); i++ {
		field := current.Field(i)
		if field != nil {
			markBlack(field, st)
		}
	}
}

// checkReadyToCollect implements Phase 2a for a root mark-red determined
// is not itself part of a cycle: it walks the closure again (this time
// taking each node's lock while that node's fields and the subtrees below
// them are examined, so only the locks along the current DFS path are held
// rather than the whole closure), requiring every node to already have
// ReadyToReleaseWithGC set by the mutator's deferred-release path. A
// single node that hasn't reached that state aborts the whole check —
// nothing in acyclicObjects is treated as collectible, and root is left
// for the caller to re-enroll.
func checkReadyToCollect(current *object.Object, acyclicObjects map[*object.Object]bool) bool {
	if acyclicObjects[current] {
		return true
	}

	if !current.ReadyToReleaseWithGC.Load() {
		return false
	}

	acyclicObjects[current] = true

	current.Lock()
	for i := 0; i < current.NumFields(); i++ {
		field := current.Field(i)
		if field == nil {
			continue
		}
		if !checkReadyToCollect(field, acyclicObjects) {
			current.Unlock()
			return false
		}
	}
	current.Unlock()

	return true
}
