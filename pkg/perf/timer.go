// Package perf implements the engine's performance timer: a wait-free RT
// producer recording per-node processing duration, and a background
// aggregator computing per-node min/avg/max cost.
package perf

import (
	"sync/atomic"
	"time"

	"github.com/kestrelaudio/corehost/pkg/rtevent"
)

// MaxLogEntries is the default ring capacity for recorded samples.
const MaxLogEntries = 20000

// Sample is one recorded (node, duration) measurement.
type Sample struct {
	NodeID   uint32
	Duration time.Duration
}

// Ring is a bounded wait-free ring of Samples. Like rtevent.Fifo, it drops
// silently when full: this is a measurement tool, not a delivery
// guarantee.
type Ring struct {
	mask uint64
	buf  []Sample
	head atomic.Uint64
	tail atomic.Uint64
}

// NewRing creates a Ring with the given capacity rounded up to the next
// power of two.
func NewRing(capacity int) *Ring {
	cap := nextPow2(capacity)
	return &Ring{mask: uint64(cap - 1), buf: make([]Sample, cap)}
}

func nextPow2(n int) int {
	if n < 2 {
		return 2
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// Push enqueues a sample, returning false (and dropping it) if full.
func (r *Ring) Push(s Sample) bool {
	tail := r.tail.Load()
	head := r.head.Load()
	if tail-head >= uint64(len(r.buf)) {
		return false
	}
	r.buf[tail&r.mask] = s
	r.tail.Store(tail + 1)
	return true
}

// Cap reports the ring's fixed capacity.
func (r *Ring) Cap() int { return len(r.buf) }

// Pop dequeues the oldest sample.
func (r *Ring) Pop() (Sample, bool) {
	head := r.head.Load()
	tail := r.tail.Load()
	if head >= tail {
		return Sample{}, false
	}
	s := r.buf[head&r.mask]
	r.head.Store(head + 1)
	return s, true
}

// Timer measures sections of audio-thread code and records them to a
// Ring. The default Timer is single-producer (no synchronization beyond
// the Ring's own atomics); NewRTSafeTimer additionally guards Push with a
// SpinLock for the rare case where more than one thread produces
// measurements into the same Ring.
type Timer struct {
	ring   *Ring
	lock   *rtevent.SpinLock // nil for the single-producer variant
	active bool
	start  time.Time
	nodeID uint32
}

// NewTimer creates a single-producer Timer writing to ring.
func NewTimer(ring *Ring) *Timer {
	return &Timer{ring: ring}
}

// NewRTSafeTimer creates a Timer that takes lock around each Push, safe
// for multiple concurrent producers sharing ring.
func NewRTSafeTimer(ring *Ring, lock *rtevent.SpinLock) *Timer {
	return &Timer{ring: ring, lock: lock}
}

// Start begins timing a section for nodeID. It must be paired with Stop.
func (t *Timer) Start(nodeID uint32) {
	t.nodeID = nodeID
	t.active = true
	t.start = time.Now()
}

// Stop ends timing and pushes the recorded duration onto the ring.
func (t *Timer) Stop() {
	if !t.active {
		return
	}
	t.active = false
	d := time.Since(t.start)
	sample := Sample{NodeID: t.nodeID, Duration: d}
	if t.lock != nil {
		t.lock.Lock()
		t.ring.Push(sample)
		t.lock.Unlock()
	} else {
		t.ring.Push(sample)
	}
}
