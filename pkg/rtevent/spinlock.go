package rtevent

import (
	"runtime"
	"sync/atomic"
)

// SpinLock is a CAS-based mutual exclusion primitive for the rare case
// where more than one producer must push onto the same ring (the
// performance timer's multi-producer variant). It never parks a goroutine
// on the OS scheduler; callers must keep the critical section tiny and
// allocation-free to stay RT-safe.
type SpinLock struct {
	state atomic.Bool
}

// Lock spins until the lock is acquired.
func (s *SpinLock) Lock() {
	for !s.state.CompareAndSwap(false, true) {
		runtime.Gosched()
	}
}

// Unlock releases the lock.
func (s *SpinLock) Unlock() {
	s.state.Store(false)
}

// TryLock attempts to acquire the lock without spinning, reporting success.
func (s *SpinLock) TryLock() bool {
	return s.state.CompareAndSwap(false, true)
}
