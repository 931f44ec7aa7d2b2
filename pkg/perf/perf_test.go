package perf

import (
	"testing"
	"time"
)

func TestTimerRecordsDuration(t *testing.T) {
	ring := NewRing(16)
	timer := NewTimer(ring)
	timer.Start(7)
	time.Sleep(time.Millisecond)
	timer.Stop()

	s, ok := ring.Pop()
	if !ok {
		t.Fatal("expected a recorded sample")
	}
	if s.NodeID != 7 {
		t.Errorf("NodeID = %d, want 7", s.NodeID)
	}
	if s.Duration <= 0 {
		t.Errorf("Duration = %v, want > 0", s.Duration)
	}
}

func TestRingDropsSilentlyWhenFull(t *testing.T) {
	ring := NewRing(4) // rounds to 4
	for i := 0; i < ring.Cap(); i++ {
		if !ring.Push(Sample{NodeID: uint32(i)}) {
			t.Fatalf("push %d should have succeeded", i)
		}
	}
	if ring.Push(Sample{NodeID: 99}) {
		t.Fatal("push into full ring should report false")
	}
}

func TestAggregatorMergesMinAvgMax(t *testing.T) {
	ring := NewRing(16)
	agg := NewAggregator(ring, time.Millisecond)
	go agg.Run()
	defer agg.Stop()

	ring.Push(Sample{NodeID: 1, Duration: 10 * time.Microsecond})
	ring.Push(Sample{NodeID: 1, Duration: 20 * time.Microsecond})
	time.Sleep(20 * time.Millisecond)

	timings, ok := agg.Get(1)
	if !ok {
		t.Fatal("expected timings for node 1")
	}
	if timings.Min != 10*time.Microsecond {
		t.Errorf("Min = %v, want 10us", timings.Min)
	}
	if timings.Max != 20*time.Microsecond {
		t.Errorf("Max = %v, want 20us", timings.Max)
	}
	if timings.Avg != 15*time.Microsecond {
		t.Errorf("Avg = %v, want 15us", timings.Avg)
	}
}
