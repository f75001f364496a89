//go:build linux

package object

import (
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Linux futex(2) operation codes. golang.org/x/sys/unix does not export
// these under the FUTEX_WAIT/FUTEX_WAKE names, so they are defined here
// to match the kernel uapi (linux/futex.h).
const (
	futexOpWait = 0
	futexOpWake = 1
)

// lockSlow is reached once the active-spin phase in Lock has failed
// activeSpinCount times in a row. It mirrors the Go runtime's futex-backed
// mutex (lock_futex.go): mark the lock contended, then park in the kernel
// instead of burning a core, waking either when Unlock calls wake or when
// the bounded wait times out — the timeout exists so a missed or
// misdelivered wakeup (this path is not exercised by the collector's own
// correctness, only by its backoff policy) can never wedge a waiter
// forever; it just falls back to retrying the CAS.
func (s *SpinLock) lockSlow() {
	for {
		switch s.state.Swap(lockSleeping) {
		case lockUnlocked:
			return
		case lockLocked, lockSleeping:
			// Fall through to parking below.
		}

		addr := (*uint32)(unsafe.Pointer(&s.state))
		futexWait(addr, lockSleeping, 2*time.Millisecond)

		if s.state.CompareAndSwap(lockUnlocked, lockLocked) {
			return
		}
	}
}

// wake is called from Unlock when the lock word was observed in the
// sleeping state, meaning at least one waiter may be parked in futexWait.
func (s *SpinLock) wake() {
	addr := (*uint32)(unsafe.Pointer(&s.state))
	futexWake(addr)
}

// futexWait asks the kernel to block the calling thread while *addr still
// equals expected, for at most timeout. A spurious return (wrong value,
// signal, or timeout) is always safe here: the caller re-validates the lock
// word itself before deciding whether to keep waiting.
func futexWait(addr *uint32, expected uint32, timeout time.Duration) {
	ts := unix.Timespec{
		Sec:  int64(timeout / time.Second),
		Nsec: int64(timeout % time.Second),
	}
	_, _, _ = unix.Syscall6(
		unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(addr)),
		uintptr(futexOpWait),
		uintptr(expected),
		uintptr(unsafe.Pointer(&ts)),
		0, 0,
	)
}

// futexWake wakes at most one thread parked on addr.
func futexWake(addr *uint32) {
	_, _, _ = unix.Syscall6(
		unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(addr)),
		uintptr(futexOpWake),
		1,
		0, 0, 0,
	)
}
