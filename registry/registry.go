// ABOUTME: Process-wide (or per-Heap) set of objects suspected of being cycle roots
// ABOUTME: Guarded by a single spin lock; enrollment dedups via the object's Buffered flag

// Package registry holds the suspected-root registry: the set of objects
// the reference-counting runtime has flagged as possibly rooting a
// reference cycle, waiting to be drained and examined by the collector.
// It is a lock-guarded slice behind a handful of small methods; dedup is
// by flag, not by identity — the Buffered bit on the object itself is the
// source of truth for membership (Invariant 4), not anything this type
// tracks independently.
package registry

import (
	"github.com/bea4dev/concurrent-partial-mark-and-sweep/object"
)

// Registry is a set of suspected cycle roots guarded by one spin lock. The
// zero value is ready to use.
type Registry struct {
	lock    object.SpinLock
	objects []*object.Object
}

// Enroll inserts obj into the registry. Callers must have already CAS'd
// obj.Buffered from false to true (see TryEnroll, or rc.Dec's decrement
// policy) — Enroll itself does not dedup beyond what that flag enforces;
// the registry need not dedup any further than that.
func (r *Registry) Enroll(obj *object.Object) {
	r.lock.Lock()
	r.objects = append(r.objects, obj)
	r.lock.Unlock()
}

// TryEnroll attempts the buffered-flag CAS dance itself: if obj.Buffered
// is successfully flipped false->true, obj is enrolled and TryEnroll
// returns true; otherwise obj was already buffered and TryEnroll is a
// no-op returning false. Folding the CAS in here means callers (package
// rc) never have to duplicate it at every call site.
func (r *Registry) TryEnroll(obj *object.Object) bool {
	if !obj.Buffered.CompareAndSwap(false, true) {
		return false
	}
	r.Enroll(obj)
	return true
}

// Drain atomically swaps the registry's contents out and returns them,
// leaving the registry empty for mutators to enroll into while the
// collector processes the returned set. This is Collect's Step A.
func (r *Registry) Drain() []*object.Object {
	r.lock.Lock()
	drained := r.objects
	r.objects = nil
	r.lock.Unlock()
	return drained
}

// ReEnroll re-inserts an object the collector could not fully reclaim this
// pass, so a future pass can reconsider it once references have mutated
// further. Unlike Enroll, ReEnroll does not touch obj.Buffered — the
// object was already buffered when it was drained and remains so.
func (r *Registry) ReEnroll(obj *object.Object) {
	r.Enroll(obj)
}

// Erase removes obj from the live registry under the registry lock, if an
// entry for it is present. Used by the collector (Step C.2) for an object
// it is about to free, so that no entry for it is left to be processed
// once obj's storage is gone.
func (r *Registry) Erase(obj *object.Object) {
	r.lock.Lock()
	for i, candidate := range r.objects {
		if candidate == obj {
			r.objects = append(r.objects[:i], r.objects[i+1:]...)
			break
		}
	}
	r.lock.Unlock()
}

// Len reports the number of objects currently enrolled. Intended for tests
// and diagnostics (e.g. property S3, "registry duplication freedom"), not
// for collector logic — the collector only ever sees what Drain hands it.
func (r *Registry) Len() int {
	r.lock.Lock()
	n := len(r.objects)
	r.lock.Unlock()
	return n
}
