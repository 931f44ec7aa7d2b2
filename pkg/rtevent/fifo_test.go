package rtevent

import (
	"sync"
	"testing"
)

func TestFifoCapacityRoundsToPowerOfTwo(t *testing.T) {
	cases := []struct {
		requested int
		want      int
	}{
		{1, 2},
		{2, 2},
		{3, 4},
		{1000, 1024},
		{1024, 1024},
	}
	for _, c := range cases {
		f := NewFifo(c.requested)
		if f.Cap() != c.want {
			t.Errorf("NewFifo(%d).Cap() = %d, want %d", c.requested, f.Cap(), c.want)
		}
	}
}

func TestFifoPushPopOrder(t *testing.T) {
	f := NewFifo(8)
	for i := uint32(0); i < 5; i++ {
		if !f.Push(RtEvent{Kind: KindParameterChange, Target: i}) {
			t.Fatalf("push %d failed unexpectedly", i)
		}
	}
	for i := uint32(0); i < 5; i++ {
		e, ok := f.Pop()
		if !ok {
			t.Fatalf("pop %d: empty unexpectedly", i)
		}
		if e.Target != i {
			t.Errorf("pop %d: Target = %d, want %d", i, e.Target, i)
		}
	}
	if _, ok := f.Pop(); ok {
		t.Error("pop on empty fifo should report false")
	}
}

func TestFifoDropsNewestWhenFull(t *testing.T) {
	f := NewFifo(4) // rounds to 4
	for i := 0; i < f.Cap(); i++ {
		if !f.Push(RtEvent{Target: uint32(i)}) {
			t.Fatalf("push %d should have succeeded", i)
		}
	}
	if f.Push(RtEvent{Target: 999}) {
		t.Fatal("push into a full fifo should fail")
	}
	if f.Dropped() != 1 {
		t.Errorf("Dropped() = %d, want 1", f.Dropped())
	}
	// The events already committed must survive untouched, in order.
	e, ok := f.Pop()
	if !ok || e.Target != 0 {
		t.Errorf("first pop = %+v, ok=%v, want Target=0", e, ok)
	}
}

func TestFifoSaturationUnderFlood(t *testing.T) {
	// Mirrors spec end-to-end scenario 6: flood far past capacity, no
	// crash, and the drop counter reports the exact overflow count.
	f := NewFifo(1024)
	const total = 10000
	accepted := 0
	for i := 0; i < total; i++ {
		if f.Push(RtEvent{Kind: KindParameterChange, Value: float64(i)}) {
			accepted++
		}
	}
	if accepted != f.Cap() {
		t.Errorf("accepted = %d, want %d", accepted, f.Cap())
	}
	if int(f.Dropped()) != total-f.Cap() {
		t.Errorf("Dropped() = %d, want %d", f.Dropped(), total-f.Cap())
	}
}

func TestFifoConcurrentSingleProducerSingleConsumer(t *testing.T) {
	f := NewFifo(256)
	const n = 50000
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			for !f.Push(RtEvent{Value: float64(i)}) {
				// ring momentarily full: spin until the consumer drains it
			}
		}
	}()

	received := 0
	go func() {
		defer wg.Done()
		for received < n {
			if e, ok := f.Pop(); ok {
				if int(e.Value) != received {
					t.Errorf("out-of-order delivery: got %v, want %d", e.Value, received)
				}
				received++
			}
		}
	}()

	wg.Wait()
	if received != n {
		t.Fatalf("received = %d, want %d", received, n)
	}
}
