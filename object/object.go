// ABOUTME: Fixed-layout heap object header and allocator
// ABOUTME: Holds the ref-count, collector-state flags, and inline field slots

// Package object defines the heap object header the rest of the collector
// operates on: a reference count, a fixed number of field slots holding
// pointers to other Objects, and the small set of flags the collector and
// the reference-counting runtime coordinate through (IsShared,
// IsCyclicType, ReadyToReleaseWithGC, Buffered).
//
// Inter-object edges are represented as plain *Object pointers rather than
// an owning, reference-counted Go type: a *Object assignment in this
// package never itself adjusts a count. All counting is done explicitly by
// package rc, which is what lets the collector walk the graph (package
// collector) without each visit perturbing the very counts it is trying to
// reason about.
package object

import "sync/atomic"

// Object is the header of one heap-allocated record, followed logically by
// FieldLength slots. Unlike the C++ original this is modeled on, Go has
// no placement-new equivalent that puts a header and a trailing array in
// one malloc'd region; the field slots are instead an ordinary slice
// allocated alongside the header. Neither rc nor collector checks indices
// before use: Field/SetField panic on an out-of-range index through Go's
// own bounds check, since that is a caller-contract violation with no
// recoverable behavior defined for it.
type Object struct {
	spin SpinLock

	refCount int64 // plain access while !IsShared, atomic.*Int64 ops once shared

	// IsShared is monotonic false->true (Invariant 3). Once true, every
	// count update and field store on this Object must go through the
	// atomic/lock-guarded path.
	IsShared atomic.Bool

	// IsCyclicType is monotonic false->true (Invariant 2). Only objects
	// with IsCyclicType set are ever enrolled as suspected roots.
	IsCyclicType atomic.Bool

	// ReadyToReleaseWithGC is set by the mutator's deferred-release path
	// (package rc) when a cyclic-typed object's count reaches zero while
	// it may still be under collector scrutiny, and read by the collector
	// to decide whether it may free an acyclic closure reached from a
	// non-cyclic suspected root.
	ReadyToReleaseWithGC atomic.Bool

	// Buffered is true iff this Object currently has an entry in the
	// suspected-root registry (Invariant 4). CAS'd false->true by
	// registry.TryEnroll before the registry insert. Nothing in this
	// module clears it: Drain and ReEnroll leave it set, and the collector
	// leaves it set on an object it reclaims.
	Buffered atomic.Bool

	fields []*Object
}

// New allocates an Object with the given number of field slots, all
// initialized to nil, and a ref-count of one reflecting the owning
// reference returned to the caller — mirroring alloc_heap_object in the
// source this collector is modeled on. Field length is immutable after
// this call.
func New(fieldLength int) *Object {
	if fieldLength < 0 {
		panic("object: negative field length")
	}
	return &Object{
		refCount: 1,
		fields:   make([]*Object, fieldLength),
	}
}

// NumFields returns the number of field slots, fixed at construction.
func (o *Object) NumFields() int {
	return len(o.fields)
}

// Lock acquires the object's spin lock. Held by field stores when the
// object is shared, by the collector during mark-red, and by the
// deferred-release path (one object at a time — see package rc).
func (o *Object) Lock() {
	o.spin.Lock()
}

// Unlock releases the object's spin lock.
func (o *Object) Unlock() {
	o.spin.Unlock()
}

// Field loads field slot i without synchronization. Callers are
// responsible for holding o.Lock() first whenever o.IsShared.Load() is (or
// may become) true; before an object is promoted to shared (package
// promote) it has a single owning thread and no lock is required, since
// inter-object edges are plain, non-owning pointers with no synchronized
// access discipline of their own below that point.
func (o *Object) Field(i int) *Object {
	return o.fields[i]
}

// SetField stores into field slot i without synchronization or count
// adjustment — see Field's locking discipline. Higher layers (rc) are
// responsible for the increment/decrement dance around this call; Object
// itself never touches a ref-count other than its own.
func (o *Object) SetField(i int, v *Object) {
	o.fields[i] = v
}

// LoadRefCount reads the current reference count, dispatching to an
// atomic load once the object is shared and a plain read otherwise, per
// the header's documented access discipline.
func (o *Object) LoadRefCount() int64 {
	if o.IsShared.Load() {
		return atomic.LoadInt64(&o.refCount)
	}
	return o.refCount
}

// AddRefCount adds delta to the reference count and returns the value the
// count held immediately before the addition — the same "previous count"
// value the decrement policy in package rc branches on, returned in one
// step to avoid a second load of a count another thread may be changing
// concurrently.
func (o *Object) AddRefCount(delta int64) (previous int64) {
	if o.IsShared.Load() {
		return atomic.AddInt64(&o.refCount, delta) - delta
	}
	previous = o.refCount
	o.refCount += delta
	return previous
}

// markShared is the single place IsShared ever transitions; it is
// unexported because the monotonic walk over an object's closure belongs
// to package promote, not to arbitrary callers.
func (o *Object) markShared() {
	o.IsShared.Store(true)
}

// MarkShared is promote's entry point into the otherwise-unexported
// transition above.
func (o *Object) MarkShared() {
	o.markShared()
}

// MarkCyclicType flags this Object as potentially participating in
// reference cycles, making it eligible for suspected-root enrollment. The
// flag never clears once set (Invariant 2).
func (o *Object) MarkCyclicType() {
	o.IsCyclicType.Store(true)
}
