// ABOUTME: Per-object and per-registry spin lock used throughout the collector
// ABOUTME: Test-and-set mutual exclusion with a bounded active-spin phase

package object

import (
	"runtime"
	"sync/atomic"
)

// Lock states, named after the three states the Go runtime's own futex-based
// mutex distinguishes (mutex_unlocked / mutex_locked / mutex_sleeping):
// unlocked, locked-with-no-waiters, and locked-with-at-least-one-waiter
// parked in the OS. Only the locked/sleeping distinction matters for the
// portable fallback; platforms with a passive-wait path (see
// spinlock_linux.go) use it to decide whether Unlock must also wake someone.
const (
	lockUnlocked = 0
	lockLocked   = 1
	lockSleeping = 2
)

// defaultActiveSpinCount bounds how many times Lock busy-waits on the CAS
// before escalating to a passive wait. Chosen to match the Go runtime's own
// active_spin constant (lock_futex.go), which spins a fixed small number of
// times before parking — past that point spinning wastes a core without
// making progress against a lock held by a thread that isn't currently
// scheduled.
const defaultActiveSpinCount = 30

// activeSpinCount is process-wide, not per-lock: every SpinLock (embedded
// in every Object header, the suspected-root registry, and the
// collector's single-writer lock) reads the same value, the same way the
// Go runtime's active_spin is one constant shared by every runtime mutex
// rather than a per-mutex field. SetActiveSpinCount overrides it.
var activeSpinCount atomic.Int32

func init() {
	activeSpinCount.Store(defaultActiveSpinCount)
}

// SetActiveSpinCount overrides the number of busy-wait iterations Lock
// attempts before parking. A non-positive n falls back to
// defaultActiveSpinCount. It affects every SpinLock process-wide from the
// moment it is called; ccms.WithSpinWaitLimit is the facade this backs.
func SetActiveSpinCount(n int) {
	if n <= 0 {
		n = defaultActiveSpinCount
	}
	activeSpinCount.Store(int32(n))
}

// SpinLock is a test-and-set mutex with acquire/release ordering, embedded
// in every Object header and also used standalone to guard the suspected-
// root registry and the collector's single-writer lock. It has no fairness
// guarantee: a thread that has spun the longest has no priority over one
// that just arrived.
type SpinLock struct {
	state atomic.Uint32
}

// Lock busy-waits until the lock is acquired, parking via lockSlow once
// the active-spin budget is spent. Short critical sections are assumed
// throughout the collector.
func (s *SpinLock) Lock() {
	for i := int32(0); i < activeSpinCount.Load(); i++ {
		if s.state.CompareAndSwap(lockUnlocked, lockLocked) {
			return
		}
		runtime.Gosched()
	}
	s.lockSlow()
}

// Unlock releases the lock with release ordering. Clearing the word directly
// to lockUnlocked (rather than only from lockLocked) is what lets a waiter
// parked via lockSlow observe it left the sleeping state.
func (s *SpinLock) Unlock() {
	old := s.state.Swap(lockUnlocked)
	if old == lockSleeping {
		s.wake()
	}
}
