// ABOUTME: Tests for the mode-promotion walk (S6): monotonicity and closure coverage

package promote

import (
	"testing"

	"github.com/bea4dev/concurrent-partial-mark-and-sweep/object"
)

func TestToSharedMarksWholeClosure(t *testing.T) {
	leaf := object.New(0)
	mid := object.New(1)
	mid.SetField(0, leaf)
	root := object.New(1)
	root.SetField(0, mid)

	ToShared(root)

	if !root.IsShared.Load() {
		t.Fatal("root should be shared")
	}
	if !mid.IsShared.Load() {
		t.Fatal("mid should be shared")
	}
	if !leaf.IsShared.Load() {
		t.Fatal("leaf should be shared")
	}
}

func TestToSharedStopsAtAlreadySharedObject(t *testing.T) {
	untouched := object.New(0)
	alreadyShared := object.New(1)
	alreadyShared.SetField(0, untouched)
	alreadyShared.MarkShared()

	root := object.New(1)
	root.SetField(0, alreadyShared)

	ToShared(root)

	if !root.IsShared.Load() {
		t.Fatal("root should be shared")
	}
	// untouched is reachable only through alreadyShared, which ToShared
	// must treat as already fully promoted and not descend into.
	if untouched.IsShared.Load() {
		t.Fatal("untouched should not have been visited through an already-shared node")
	}
}

// TestToSharedHandlesCycles checks that a cyclic closure terminates: ToShared
// would infinite-loop if it recursed on an already-shared node instead of
// short-circuiting on IsShared.
func TestToSharedHandlesCycles(t *testing.T) {
	a := object.New(1)
	b := object.New(1)
	a.SetField(0, b)
	b.SetField(0, a)

	ToShared(a)

	if !a.IsShared.Load() || !b.IsShared.Load() {
		t.Fatal("both cycle members should be shared")
	}
}

func TestToSharedNilIsNoOp(t *testing.T) {
	ToShared(nil) // must not panic
}
