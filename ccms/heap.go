// ABOUTME: Heap is the collector context value: one registry, one collector, one ref-count runtime
// ABOUTME: Exposes the external interface — Alloc/Inc/Dec/StoreField/LoadField/Collect/promote

// Package ccms ("concurrent cycle mark-and-sweep") is the facade a mutator
// actually programs against: a Heap value bundles together the pieces
// built up in package object, registry, rc, collector, and promote into
// one external interface, so a caller never has to construct those pieces
// and wire them together by hand.
package ccms

import (
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/bea4dev/concurrent-partial-mark-and-sweep/collector"
	"github.com/bea4dev/concurrent-partial-mark-and-sweep/object"
	"github.com/bea4dev/concurrent-partial-mark-and-sweep/promote"
	"github.com/bea4dev/concurrent-partial-mark-and-sweep/rc"
	"github.com/bea4dev/concurrent-partial-mark-and-sweep/registry"
)

// ErrOutOfMemory is returned by Heap.Alloc when a soft object-count budget
// set via WithMaxObjects would be exceeded. It is the only fallible path
// anywhere in this module's core (see SPEC_FULL.md's ambient-stack notes
// on why object.New and collector.Collect stay infallible).
var ErrOutOfMemory = errors.New("ccms: heap object budget exceeded")

// Heap is the "collector context" the design's Design Notes describe: it
// owns its own suspected-root registry, its own single-writer collector
// lock, and (optionally) its own live-object counter, so that independent
// Heap values never share state with one another. A zero Heap is not
// usable; construct one with NewHeap.
type Heap struct {
	rt   *rc.Runtime
	coll *collector.Collector

	validation bool
	liveCount  int64

	maxObjects  int64 // 0 means unbounded
	objectCount int64
}

// Option configures a Heap at construction time.
type Option func(*Heap)

// WithValidation enables a live-object counter (modeled on
// dynamic_rc_benchmark.cpp's RC_VALIDATION global): every successful Alloc
// increments it, and every object the collector or the ref-count runtime
// frees decrements it, so Heap.LiveObjects reflects the number of objects
// actually still reachable through this heap.
func WithValidation() Option {
	return func(h *Heap) { h.validation = true }
}

// WithMaxObjects sets a soft cap on the number of objects Alloc will hand
// out before returning ErrOutOfMemory. A cap of zero or less (the default,
// via no WithMaxObjects call) means unbounded.
func WithMaxObjects(n int64) Option {
	return func(h *Heap) { h.maxObjects = n }
}

// WithSpinWaitLimit overrides how many times every SpinLock in this
// process busy-waits on its CAS before parking (object.SetActiveSpinCount).
// The limit is process-wide, not scoped to one Heap — object.SpinLock has
// no per-instance configuration, the same way the Go runtime's own mutex
// spin count is one constant shared by every runtime lock — so the last
// Heap constructed with this option wins for the whole process. n <= 0
// restores the default.
func WithSpinWaitLimit(n int) Option {
	return func(h *Heap) { object.SetActiveSpinCount(n) }
}

// NewHeap constructs an empty Heap with its own registry, ref-count
// runtime, and collector, configured by opts.
func NewHeap(opts ...Option) *Heap {
	h := &Heap{}
	for _, opt := range opts {
		opt(h)
	}

	reg := &registry.Registry{}
	h.rt = rc.New(reg, h.onFree)
	h.coll = collector.New(reg, h.rt, h.onFree)
	return h
}

// onFree is shared by both reclamation paths: rc.Runtime's synchronous
// freeAcyclic (the common case — an object whose count hits zero outside
// any cycle) and collector.Collector's cycle-garbage free (Collect's Step
// C). Each fires it exactly once per object, so every object this Heap
// ever allocates is accounted for on exactly one of the two paths.
func (h *Heap) onFree(obj *object.Object) {
	if h.validation {
		atomic.AddInt64(&h.liveCount, -1)
	}
}

// Alloc allocates a new object with the given field count and an
// outstanding reference count of one, owned by the caller. It is the only
// fallible operation in the core: if a budget was set via WithMaxObjects
// and would be exceeded, Alloc returns ErrOutOfMemory and no object.
func (h *Heap) Alloc(fieldLength int) (*object.Object, error) {
	if h.maxObjects > 0 {
		if atomic.AddInt64(&h.objectCount, 1) > h.maxObjects {
			atomic.AddInt64(&h.objectCount, -1)
			return nil, ErrOutOfMemory
		}
	}

	obj := object.New(fieldLength)
	if h.validation {
		atomic.AddInt64(&h.liveCount, 1)
	}
	return obj, nil
}

// MarkAsCyclicType flags obj as a potentially cycle-participating type,
// making it eligible for suspected-root
// enrollment on a surviving decrement. The flag is monotonic and should be
// set once, right after Alloc, for every type the caller knows can form
// reference cycles.
func (h *Heap) MarkAsCyclicType(obj *object.Object) {
	obj.MarkCyclicType()
}

// PromoteToShared runs the mode-promotion walk (package promote) over
// obj's reachable closure, marking it and everything below it shared
// before obj is handed to any cross-thread-visible storage.
func (h *Heap) PromoteToShared(obj *object.Object) {
	promote.ToShared(obj)
}

// Inc increments obj's reference count.
func (h *Heap) Inc(obj *object.Object) {
	h.rt.Inc(obj)
}

// Dec decrements obj's reference count, applying the full decrement
// policy (synchronous acyclic free, deferred release for cyclic types, or
// suspected-root enrollment).
func (h *Heap) Dec(obj *object.Object) {
	h.rt.Dec(obj)
}

// StoreField stores newValue into obj's field slot i, adjusting reference
// counts per the field-store protocol: increment the incoming value before
// decrementing the outgoing one, so a shared in-between count of zero is
// never observable.
func (h *Heap) StoreField(obj *object.Object, i int, newValue *object.Object) {
	h.rt.StoreField(obj, i, newValue)
}

// LoadField reads obj's field slot i, taking obj's lock first if obj is
// shared.
func (h *Heap) LoadField(obj *object.Object, i int) *object.Object {
	return h.rt.LoadField(obj, i)
}

// Collect runs one pass of the cycle collector. Only one goroutine should
// call Collect on a given Heap at a time in the sense that a second,
// concurrent caller simply blocks until the first pass finishes (package
// collector's gcLock enforces this); it is not an error to call Collect
// from multiple goroutines, just redundant.
func (h *Heap) Collect() {
	h.coll.Collect()
}

// LiveObjects returns the number of objects currently live through this
// heap, if WithValidation was set at construction; otherwise it always
// returns zero.
func (h *Heap) LiveObjects() int64 {
	return atomic.LoadInt64(&h.liveCount)
}

// Snapshot takes a point-in-time graph.Index-backed snapshot of every
// object reachable from roots, suitable for dominator, retained-size, and
// paths-to-roots analysis (package ccms's Snapshot type). It never blocks
// on the collector lock and takes no lock for longer than copying one
// object's own field slots.
func (h *Heap) Snapshot(roots ...*object.Object) *Snapshot {
	return TakeSnapshot(roots...)
}

// Dump writes a debugging walk of root's reachable closure to w, one line
// per object in the form "address refcount=N fields=[...]", modeled on
// heap_object.hpp's print()/print_inner(). Each object visited is locked
// only while its count and field slots are read (not the whole closure,
// the way mark-red does), and the line is written after that lock is
// released, since a debug dump has no consistency requirement stronger
// than "each individual line was accurate when read".
func (h *Heap) Dump(w io.Writer, root *object.Object) error {
	return dumpClosure(w, root, make(map[*object.Object]bool))
}

func dumpClosure(w io.Writer, obj *object.Object, seen map[*object.Object]bool) error {
	if obj == nil || seen[obj] {
		return nil
	}
	seen[obj] = true

	obj.Lock()
	refCount := obj.LoadRefCount()
	fieldAddrs := make([]*object.Object, obj.NumFields())
	for i := range fieldAddrs {
		fieldAddrs[i] = obj.Field(i)
	}
	obj.Unlock()

	if _, err := fmt.Fprintf(w, "%p refcount=%d fields=%v\n", obj, refCount, fieldAddrs); err != nil {
		return err
	}
	for _, field := range fieldAddrs {
		if err := dumpClosure(w, field, seen); err != nil {
			return err
		}
	}
	return nil
}
