package audio

import "testing"

func TestChunkSampleBufferBusSlicing(t *testing.T) {
	b := NewChunkSampleBuffer(4, 8)
	if b.NumBuses() != 2 {
		t.Fatalf("NumBuses() = %d, want 2", b.NumBuses())
	}
	bus0 := b.Bus(0)
	bus1 := b.Bus(1)
	bus0[0][0] = 1
	bus1[1][0] = 2
	if b.Channel(0)[0] != 1 {
		t.Errorf("bus 0 left should alias channel 0")
	}
	if b.Channel(3)[0] != 2 {
		t.Errorf("bus 1 right should alias channel 3")
	}
}

func TestChunkSampleBufferCopyFromMismatchedChannelsIsSilent(t *testing.T) {
	dst := NewChunkSampleBuffer(4, 4)
	for ch := 0; ch < 4; ch++ {
		for i := range dst.Channel(ch) {
			dst.Channel(ch)[i] = 9
		}
	}
	src := NewChunkSampleBuffer(2, 4)
	src.Channel(0)[0] = 1
	src.Channel(1)[0] = 2

	dst.CopyFrom(src)

	if dst.Channel(0)[0] != 1 || dst.Channel(1)[0] != 2 {
		t.Fatal("first two channels should be copied from src")
	}
	for ch := 2; ch < 4; ch++ {
		for i, v := range dst.Channel(ch) {
			if v != 0 {
				t.Errorf("channel %d sample %d = %v, want silence for the unmatched channel", ch, i, v)
			}
		}
	}
}

func TestChunkSampleBufferClear(t *testing.T) {
	b := NewChunkSampleBuffer(2, 4)
	for ch := 0; ch < 2; ch++ {
		for i := range b.Channel(ch) {
			b.Channel(ch)[i] = 1
		}
	}
	b.Clear()
	for ch := 0; ch < 2; ch++ {
		for i, v := range b.Channel(ch) {
			if v != 0 {
				t.Errorf("channel %d sample %d not cleared: %v", ch, i, v)
			}
		}
	}
}
