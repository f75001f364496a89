// ABOUTME: Tests for the reference-count runtime's inc/dec/field-store operations
// ABOUTME: Exercises the acyclic free path, the cyclic deferred-release path, and enrollment

package rc

import (
	"testing"

	"github.com/bea4dev/concurrent-partial-mark-and-sweep/object"
	"github.com/bea4dev/concurrent-partial-mark-and-sweep/registry"
)

func newRuntime() *Runtime {
	return New(&registry.Registry{}, nil)
}

func TestDecAcyclicTreeFreesRecursively(t *testing.T) {
	rt := newRuntime()

	leaf1 := object.New(0)
	leaf2 := object.New(0)
	root := object.New(2)
	root.SetField(0, leaf1)
	root.SetField(1, leaf2)
	rt.Inc(leaf1)
	rt.Inc(leaf2)
	// leaf1, leaf2 now have count 2 (their own alloc ref + root's field);
	// drop the allocation-time handles to model "only root holds them".
	rt.Dec(leaf1)
	rt.Dec(leaf2)

	rt.Dec(root) // drop the external handle to root

	if got := leaf1.LoadRefCount(); got != 0 {
		t.Fatalf("leaf1 ref count = %d, want 0", got)
	}
	if got := leaf2.LoadRefCount(); got != 0 {
		t.Fatalf("leaf2 ref count = %d, want 0", got)
	}
	if root.Field(0) != nil || root.Field(1) != nil {
		t.Fatal("root's fields should be nulled after freeAcyclic")
	}
}

func TestDecCyclicPrevGreaterThanOneEnrollsSuspect(t *testing.T) {
	rt := newRuntime()

	a := object.New(1)
	a.MarkCyclicType()
	b := object.New(0)
	rt.Inc(a) // simulate b -> a edge: count now 2

	rt.Dec(a) // drop external handle; count 2 -> 1, a survives

	if got := a.LoadRefCount(); got != 1 {
		t.Fatalf("a ref count = %d, want 1", got)
	}
	if !a.Buffered.Load() {
		t.Fatal("a should have been enrolled as a suspected root")
	}
	if got := rt.Registry.Len(); got != 1 {
		t.Fatalf("registry length = %d, want 1", got)
	}
	_ = b
}

func TestDecCyclicPrevOneDefersRelease(t *testing.T) {
	rt := newRuntime()

	child := object.New(0)
	root := object.New(1)
	root.MarkCyclicType()
	root.SetField(0, child)
	rt.Inc(child)  // root -> child edge
	rt.Dec(child) // drop child's allocation-time handle; root is now its sole owner

	rt.Dec(root) // last (and only) reference to root drops to zero

	if !root.ReadyToReleaseWithGC.Load() {
		t.Fatal("root should be marked ready-to-release after deferred release")
	}
	if got := child.LoadRefCount(); got != 0 {
		t.Fatalf("child ref count = %d, want 0", got)
	}
	// child is acyclic-typed but was reached through a deferred-release
	// cascade, so it is deferred too, not freed immediately.
	if !child.ReadyToReleaseWithGC.Load() {
		t.Fatal("child should also be marked ready-to-release via the cascade")
	}
}

func TestDeferredReleaseNullsBufferedCyclicChildOnly(t *testing.T) {
	rt := newRuntime()

	// bufferedChild dies during the cascade (root is its sole owner) and
	// is itself a buffered suspected root, so the collector might be
	// concurrently holding a pointer to it through the registry: the
	// slot must be nulled to prevent root's field from surviving as a
	// second, now-stale path to it.
	bufferedChild := object.New(0)
	bufferedChild.MarkCyclicType()
	bufferedChild.Buffered.Store(true)

	// plainChild also dies during the cascade, but is neither cyclic nor
	// buffered, so nothing else could be concurrently tracking it — the
	// deferred-release rule leaves the slot as-is in this case.
	plainChild := object.New(0)

	root := object.New(2)
	root.MarkCyclicType()
	root.SetField(0, bufferedChild)
	root.SetField(1, plainChild)
	rt.Inc(bufferedChild)
	rt.Inc(plainChild)
	rt.Dec(bufferedChild) // root becomes sole owner
	rt.Dec(plainChild)    // root becomes sole owner

	rt.Dec(root)

	if got := root.Field(0); got != nil {
		t.Fatal("field pointing at a buffered cyclic child that died must be nulled")
	}
	if got := root.Field(1); got != plainChild {
		t.Fatalf("field(1) = %v, want unchanged %v", got, plainChild)
	}
	if !bufferedChild.ReadyToReleaseWithGC.Load() {
		t.Fatal("bufferedChild should be deferred-released via the cascade")
	}
	if !plainChild.ReadyToReleaseWithGC.Load() {
		t.Fatal("plainChild should be deferred-released via the cascade")
	}
}

func TestDecAcyclicNotifiesFreeFuncPerObject(t *testing.T) {
	var freed []*object.Object
	rt := New(&registry.Registry{}, func(obj *object.Object) {
		freed = append(freed, obj)
	})

	leaf1 := object.New(0)
	leaf2 := object.New(0)
	root := object.New(2)
	root.SetField(0, leaf1)
	root.SetField(1, leaf2)
	rt.Inc(leaf1)
	rt.Inc(leaf2)
	rt.Dec(leaf1) // drop the allocation-time handle
	rt.Dec(leaf2)

	rt.Dec(root) // frees root, then cascades into leaf1 and leaf2

	if len(freed) != 3 {
		t.Fatalf("onFree called %d times, want 3 (root, leaf1, leaf2)", len(freed))
	}
	seen := map[*object.Object]bool{}
	for _, obj := range freed {
		seen[obj] = true
	}
	if !seen[root] || !seen[leaf1] || !seen[leaf2] {
		t.Fatalf("onFree should have fired for root, leaf1, and leaf2, got %v", freed)
	}
}

func TestDecCyclicDeferredReleaseDoesNotCallFreeFunc(t *testing.T) {
	var freed []*object.Object
	rt := New(&registry.Registry{}, func(obj *object.Object) {
		freed = append(freed, obj)
	})

	root := object.New(0)
	root.MarkCyclicType()
	rt.Dec(root) // drops to zero, but cyclic-typed -> deferredRelease, not freeAcyclic

	if len(freed) != 0 {
		t.Fatalf("onFree called %d times, want 0: a deferred-released object is only reclaimed later by the collector", len(freed))
	}
	if !root.ReadyToReleaseWithGC.Load() {
		t.Fatal("root should be marked ready-to-release")
	}
}

func TestDecPanicsOnDoubleDrop(t *testing.T) {
	rt := newRuntime()
	o := object.New(0)
	rt.Dec(o) // count 1 -> 0, freed (acyclic, no fields)

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on decrementing an already-zero ref count")
		}
	}()
	rt.Dec(o)
}

func TestStoreFieldNonSharedAdjustsCounts(t *testing.T) {
	rt := newRuntime()
	owner := object.New(1)
	a := object.New(0)
	b := object.New(0)

	rt.StoreField(owner, 0, a)
	if got := a.LoadRefCount(); got != 2 {
		t.Fatalf("a ref count = %d, want 2 (alloc + store)", got)
	}

	rt.StoreField(owner, 0, b)
	if got := a.LoadRefCount(); got != 1 {
		t.Fatalf("a ref count after being replaced = %d, want 1", got)
	}
	if got := b.LoadRefCount(); got != 2 {
		t.Fatalf("b ref count = %d, want 2", got)
	}
	if got := rt.LoadField(owner, 0); got != b {
		t.Fatalf("LoadField = %v, want %v", got, b)
	}

	rt.StoreField(owner, 0, nil)
	if got := b.LoadRefCount(); got != 1 {
		t.Fatalf("b ref count after clearing = %d, want 1", got)
	}
	if got := rt.LoadField(owner, 0); got != nil {
		t.Fatalf("LoadField after clear = %v, want nil", got)
	}
}

func TestStoreFieldSharedUsesLock(t *testing.T) {
	rt := newRuntime()
	owner := object.New(1)
	owner.MarkShared()
	a := object.New(0)
	a.MarkShared()

	rt.StoreField(owner, 0, a)
	if got := a.LoadRefCount(); got != 2 {
		t.Fatalf("a ref count = %d, want 2", got)
	}
	if got := rt.LoadField(owner, 0); got != a {
		t.Fatalf("LoadField = %v, want %v", got, a)
	}
}
