// ABOUTME: Reference-count increment/decrement, field-store, and deferred-release runtime
// ABOUTME: Decides, on every decrement, whether an object becomes a suspected cycle root

// Package rc implements the mutator-side half of the collector: the
// increment/decrement/field-store operations objects go through on every
// ordinary access, and the policy that decides when a decrement should
// enroll its target into the suspected-root registry instead of, or in
// addition to, freeing it.
package rc

import (
	"github.com/bea4dev/concurrent-partial-mark-and-sweep/object"
	"github.com/bea4dev/concurrent-partial-mark-and-sweep/registry"
)

// FreeFunc is called exactly once for every object freeAcyclic reclaims
// synchronously, mirroring collector.FreeFunc's per-object notification
// for cycle garbage — a Heap (package ccms) wires both to the same
// validation counter so no object is ever accounted for on both paths. A
// cyclic-typed object that reaches zero goes through deferred release
// instead and is reported only once a collector pass reclaims it. A nil
// FreeFunc is fine.
type FreeFunc func(*object.Object)

// Runtime ties the ref-count operations to one suspected-root registry. A
// Heap (package ccms) owns exactly one Runtime backed by its own Registry,
// but Runtime has no other hidden global state, so tests in this package
// construct one directly.
type Runtime struct {
	Registry *registry.Registry

	onFree FreeFunc
}

// New returns a Runtime whose decrement policy enrolls suspected roots
// into reg and calls onFree once per object freeAcyclic reclaims. onFree
// may be nil.
func New(reg *registry.Registry, onFree FreeFunc) *Runtime {
	return &Runtime{Registry: reg, onFree: onFree}
}

// Inc increments obj's reference count. Dispatch between the atomic and
// plain path happens inside Object.AddRefCount based on obj.IsShared, so
// Inc itself needs no branch.
func (rt *Runtime) Inc(obj *object.Object) {
	obj.AddRefCount(1)
}

// Dec decrements obj's reference count and applies the decrement policy
// to the previous count:
//
//   - prev > 1: obj survives. If it is also cyclic-typed, it is a suspect:
//     a count that decreased but stayed positive is the only hint the
//     collector ever gets that obj might have just lost its last external
//     reference while still being held by something inside its own
//     subgraph.
//   - prev == 1: obj is now locally unreferenced. Acyclic objects are
//     destroyed synchronously (recursively decrementing their fields);
//     cyclic-typed objects instead go through deferred release, since the
//     collector may currently be mid-scan of this exact subgraph.
//
// Dec panics if obj's reference count was already non-positive before the
// decrement — that is a caller-contract violation (a double-drop) with no
// recoverable behavior defined for it.
func (rt *Runtime) Dec(obj *object.Object) {
	prev := obj.AddRefCount(-1)
	switch {
	case prev > 1:
		if obj.IsCyclicType.Load() {
			rt.Registry.TryEnroll(obj)
		}
	case prev == 1:
		if obj.IsCyclicType.Load() {
			rt.deferredRelease(obj)
		} else {
			rt.freeAcyclic(obj)
		}
	default:
		panic("rc: Dec called on an object whose reference count was already <= 0")
	}
}

// freeAcyclic performs classic, synchronous reference-count destruction:
// it is reached only for non-cyclic-typed objects whose count just hit
// zero, so there is no collector scan it could possibly race with — it
// recursively decrements every field and lets obj become unreachable.
// There is no explicit storage-reclamation step: unlike the C/C++ source
// this collector is modeled on, nothing in this Go module ever calls an
// equivalent of free(); once the last *object.Object pointer to obj is
// gone (which nulling every field that held one, throughout this call
// tree, guarantees), the Go runtime's own garbage collector reclaims the
// memory on its own schedule.
func (rt *Runtime) freeAcyclic(obj *object.Object) {
	for i := 0; i < obj.NumFields(); i++ {
		field := obj.Field(i)
		if field == nil {
			continue
		}
		obj.SetField(i, nil)
		rt.Dec(field)
	}
	if rt.onFree != nil {
		rt.onFree(obj)
	}
}

// deferredRelease implements drop_object_for_cyclic_type from the source
// this collector is modeled on: reached only for a cyclic-typed object
// whose count just hit zero. It takes obj's lock, decrements every field's
// count, and — crucially — recurses into itself (not into Dec) for any
// field whose count also just hit zero, regardless of that field's own
// IsCyclicType. That uniform recursion is deliberate: once a cascade has
// started because some cyclic-typed ancestor may still be under collector
// scrutiny, every object it uncovers along the way is deferred the same
// way, rather than risking an immediate free of an object the collector
// might be mid-scan of. obj itself is never freed here — only marked
// ReadyToReleaseWithGC — because the collector, not the mutator, is the
// one that knows whether anything is still looking at it.
//
// obj's lock is released before the cascade recurses into dying fields,
// so this path never holds two object locks at once.
func (rt *Runtime) deferredRelease(obj *object.Object) {
	var dying []*object.Object
	obj.Lock()
	for i := 0; i < obj.NumFields(); i++ {
		field := obj.Field(i)
		if field == nil {
			continue
		}

		prev := field.AddRefCount(-1)
		if prev == 1 {
			// field is dying too. Null our pointer to it only when
			// leaving it in place could let the collector double-process
			// it: that's exactly when field is itself a suspected root
			// the collector might concurrently be scanning.
			if field.IsCyclicType.Load() && field.Buffered.Load() {
				obj.SetField(i, nil)
			}
			dying = append(dying, field)
		} else {
			// field survives this drop; our pointer to it is no longer
			// backed by a counted reference, so it must be cleared.
			obj.SetField(i, nil)
		}
	}
	obj.Unlock()
	for _, field := range dying {
		rt.deferredRelease(field)
	}
	obj.ReadyToReleaseWithGC.Store(true)
}

// StoreField implements the field-store protocol: when obj is shared, the
// old value is swapped out and the new value's count bumped while obj's
// lock is held, and the old value's count is only decremented (which may
// itself cascade into frees) after the lock is released — this ordering
// matters so that a decrement cascading back through this same object's
// fields can never deadlock on a lock this call already holds. When obj
// is not shared, the same steps
// happen without any locking, since only one thread can be touching obj
// at all at that point.
func (rt *Runtime) StoreField(obj *object.Object, i int, newValue *object.Object) {
	if obj.IsShared.Load() {
		obj.Lock()
		old := obj.Field(i)
		if newValue != nil {
			rt.Inc(newValue)
		}
		obj.SetField(i, newValue)
		obj.Unlock()

		if old != nil {
			rt.Dec(old)
		}
		return
	}

	old := obj.Field(i)
	if newValue != nil {
		rt.Inc(newValue)
	}
	obj.SetField(i, newValue)
	if old != nil {
		rt.Dec(old)
	}
}

// LoadField reads obj's field slot i, taking obj's spin lock first when
// obj is shared, and reading directly otherwise.
func (rt *Runtime) LoadField(obj *object.Object, i int) *object.Object {
	if obj.IsShared.Load() {
		obj.Lock()
		v := obj.Field(i)
		obj.Unlock()
		return v
	}
	return obj.Field(i)
}
