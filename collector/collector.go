// ABOUTME: The single-writer cycle collector: drains suspected roots and reclaims cycle garbage
// ABOUTME: One Collect() call is one full pass (Steps A-D); safe to call repeatedly from one goroutine at a time

// Package collector implements the core of the system: collect(), the
// single-writer procedure that repeatedly drains the suspected-root
// registry and, for each root, runs the four-color scan (package-local
// scan.go) to decide whether it roots a reference cycle and, if so, which
// part of its closure is genuinely unreachable from outside the
// scrutinized set.
package collector

import (
	"github.com/bea4dev/concurrent-partial-mark-and-sweep/object"
	"github.com/bea4dev/concurrent-partial-mark-and-sweep/rc"
	"github.com/bea4dev/concurrent-partial-mark-and-sweep/registry"
)

// FreeFunc is called exactly once for every object the collector
// determines is garbage and reclaims, after its fields have been
// rebalanced (Step C.3) but before control returns to the caller of
// Collect. A Heap (package ccms) wires this to decrement its validation
// live-object counter; nothing in this package requires one, and a nil
// FreeFunc is fine.
type FreeFunc func(*object.Object)

// Collector is a "collector context": a value the ref-count runtime is
// parameterized over, rather than relying on process-wide singletons the
// way the source this is modeled on does. Multiple independent Collectors (each with its own
// Registry and Runtime) may coexist in one process; only one goroutine may
// call Collect on a given Collector at a time, enforced by gcLock.
type Collector struct {
	gcLock object.SpinLock

	reg *registry.Registry
	rt  *rc.Runtime

	onFree FreeFunc
}

// New returns a Collector draining reg and applying rt's decrement policy
// when rebalancing counts during reclamation (Step C.3). onFree may be
// nil.
func New(reg *registry.Registry, rt *rc.Runtime, onFree FreeFunc) *Collector {
	return &Collector{reg: reg, rt: rt, onFree: onFree}
}

// Collect runs one pass of the cycle collector to completion: it is safe
// to call repeatedly, from one goroutine at a time (a second concurrent
// call blocks on gcLock until the first returns — the collector is never
// scheduled cooperatively; it runs one pass and then yields by returning).
//
// A single pass almost never reclaims every cycle present at the moment
// it starts: an object becomes a suspected root only on a decrement that
// leaves its count positive, so a cycle whose last external edge hasn't
// been dropped yet simply isn't in the drained set this time around, and
// a root whose closure doesn't fully resolve this pass (Step D) is put
// back for the next one. Liveness only requires a finite number of passes
// to suffice eventually, not any one pass being exhaustive.
func (c *Collector) Collect() {
	c.gcLock.Lock()
	defer c.gcLock.Unlock()

	roots := c.reg.Drain()
	releaseSet := make(map[*object.Object]bool)

	for _, root := range roots {
		c.scanRoot(root, releaseSet)
	}

	releaseList := make([]*object.Object, 0, len(releaseSet))
	for obj := range releaseSet {
		releaseList = append(releaseList, obj)
	}

	// Step C: rebalance counts inflated by the cycle before anything is
	// actually freed, so a field's decrement (which may itself cascade
	// back through rc.Dec) never has to reason about storage that is
	// already gone.
	for _, obj := range releaseList {
		if obj.IsCyclicType.Load() && obj.Buffered.Load() {
			c.reg.Erase(obj)
		}
		for i := 0; i < obj.NumFields(); i++ {
			field := obj.Field(i)
			if field == nil {
				continue
			}
			if !field.ReadyToReleaseWithGC.Load() {
				c.rt.Dec(field)
			}
		}
	}

	for _, obj := range releaseList {
		if c.onFree != nil {
			c.onFree(obj)
		}
	}

	// Step D: anything drained but not reclaimed this pass may still be
	// a cycle root once references mutate further.
	for _, root := range roots {
		if !releaseSet[root] {
			c.reg.ReEnroll(root)
		}
	}
}

// scanRoot runs the four-color scan (Phase 1 through Phase 2a/2b) for one
// suspected root and adds everything it determines is garbage into
// releaseSet. It never frees anything itself — that is Collect's Step C,
// run once across every root's contribution to releaseSet together.
func (c *Collector) scanRoot(root *object.Object, releaseSet map[*object.Object]bool) {
	st := newScanState()
	isCyclicRoot := false

	markRed(root, root, st, &isCyclicRoot)

	if isCyclicRoot {
		c.scanCyclicRoot(root, st, releaseSet)
		return
	}

	// Phase 2a needs the closure unlocked again before it re-walks it,
	// since checkReadyToCollect takes each node's lock itself.
	st.unlockAll()

	acyclicObjects := make(map[*object.Object]bool)
	if checkReadyToCollect(root, acyclicObjects) {
		for obj := range acyclicObjects {
			releaseSet[obj] = true
		}
	}
}

// scanCyclicRoot runs Phase 2b (mark-gray, mark-white/black) for a root
// mark-red already determined is part of a cycle, and folds every white
// object it finds into releaseSet before releasing the locks mark-red
// took.
func (c *Collector) scanCyclicRoot(root *object.Object, st *scanState, releaseSet map[*object.Object]bool) {
	markGray(root, st, true)
	markWhiteOrBlack(root, st)

	for _, obj := range st.visited {
		if st.colors[obj] == colorWhite {
			obj.ReadyToReleaseWithGC.Store(true)
			releaseSet[obj] = true
		}
	}

	st.unlockAll()
}
