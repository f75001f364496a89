// ABOUTME: Mode-promotion walk that marks an object and its closure as shared once it escapes
// ABOUTME: A no-op past the first call per object, matching IsShared's monotonic false->true rule

// Package promote implements the mode-promotion walk: the walk that marks
// an object, and everything reachable from it, as shared
// once a reference to it becomes visible to more than one thread. Once
// promoted, an object's ref-count and field accesses switch from the plain,
// single-owner path to the atomic/lock-guarded path (package object,
// package rc) for the rest of its life — IsShared never clears.
package promote

import "github.com/bea4dev/concurrent-partial-mark-and-sweep/object"

// ToShared marks root and every object reachable from it through fields as
// shared, stopping at any object already marked shared: since IsShared is
// monotonic, an already-shared object's own closure was necessarily walked
// in full by whichever earlier promotion reached it first, so there is
// nothing further to do below it. Promotion has to be a walk over the
// whole reachable closure rather than a single-object flag flip, since a
// partially-promoted closure (some
// reachable objects atomic, some not) would let a concurrent reader
// observe a plain, non-atomic field store on an object another thread
// already treats as shared.
//
// ToShared takes no lock of its own while walking: it runs before root is
// handed to whatever cross-thread-visible storage is making it shared in
// the first place (a global, a channel send, a shared slot — see the
// caller in cmd/gcbench, via ccms.Heap.PromoteToShared), so by
// construction no other thread can be concurrently mutating this closure's
// fields yet. Once ToShared returns, it is safe to publish root.
func ToShared(root *object.Object) {
	if root == nil || root.IsShared.Load() {
		return
	}

	root.MarkShared()
	for i := 0; i < root.NumFields(); i++ {
		ToShared(root.Field(i))
	}
}
