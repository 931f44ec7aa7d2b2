// Package track implements Track, a Processor that owns an ordered chain
// of child Processors plus per-bus gain and pan.
package track

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/kestrelaudio/corehost/pkg/audio"
	"github.com/kestrelaudio/corehost/pkg/param"
	"github.com/kestrelaudio/corehost/pkg/perf"
	"github.com/kestrelaudio/corehost/pkg/processor"
	"github.com/kestrelaudio/corehost/pkg/rtevent"
)

// MaxChannels bounds a track's channel count (twice its bus count).
const MaxChannels = 64

// paramBase offsets bus gain/pan parameter IDs so a track with N buses
// never collides with its own processor ID space; tracks don't share a
// registry with their child processors, so this just keeps per-bus
// parameter IDs distinct from each other.
const (
	paramGainBase uint32 = 1000
	paramPanBase  uint32 = 2000
)

// Track is a Processor that owns an ordered chain of child processors.
// Chain mutation (Add/Remove) happens only on the dispatcher thread;
// Render (called from the audio thread) reads a committed snapshot
// published with RCU-style pointer swaps, so the two never contend on a
// lock.
type Track struct {
	*processor.BaseProcessor

	chunkSize int
	numBuses  int

	chain atomic.Pointer[[]processor.Processor]

	scratchA *audio.ChunkSampleBuffer
	scratchB *audio.ChunkSampleBuffer

	gain []*param.SmoothedParameter // one per bus
	pan  []*param.SmoothedParameter // one per bus

	mu                  sync.Mutex // guards outputEvents and eventOutputInternal; dispatcher/render-thread only
	eventOutputInternal bool
	outputEvents        []rtevent.RtEvent
	sink                func(rtevent.RtEvent)

	timer *perf.Timer // nil disables per-processor cost recording
}

// New creates a Track with numBuses stereo buses (numBuses*2 channels)
// and the given fixed chunk size. sink receives events passed to the
// track's emit method when SetEventOutputInternal(false) (the default).
// Render never calls emit, and the Processor interface gives chain
// processors no way to emit events, so nothing reaches sink while
// rendering.
func New(id uint32, name string, numBuses, chunkSize int, sink func(rtevent.RtEvent)) (*Track, error) {
	channels := numBuses * 2
	if channels > MaxChannels {
		return nil, fmt.Errorf("track %q: %d buses exceeds max channel count %d", name, numBuses, MaxChannels)
	}
	bp, err := processor.NewBaseProcessor(id, name, name, channels, channels)
	if err != nil {
		return nil, err
	}
	t := &Track{
		BaseProcessor: bp,
		chunkSize:     chunkSize,
		numBuses:      numBuses,
		scratchA:      audio.NewChunkSampleBuffer(channels, chunkSize),
		scratchB:      audio.NewChunkSampleBuffer(channels, chunkSize),
		gain:          make([]*param.SmoothedParameter, numBuses),
		pan:           make([]*param.SmoothedParameter, numBuses),
		sink:          sink,
	}
	empty := []processor.Processor{}
	t.chain.Store(&empty)

	for b := 0; b < numBuses; b++ {
		gp := param.NewFloatParameter(paramGainBase+uint32(b), fmt.Sprintf("gain[%d]", b), "Gain", "dB", -60, 12, 0, nil)
		pp := param.NewFloatParameter(paramPanBase+uint32(b), fmt.Sprintf("pan[%d]", b), "Pan", "", -1, 1, 0, nil)
		bp.Parameters().Add(gp)
		bp.Parameters().Add(pp)
		t.gain[b] = param.NewSmoothedParameter(gp, param.ExponentialSmoothing, 0.995)
		t.pan[b] = param.NewSmoothedParameter(pp, param.LinearSmoothing, float64(chunkSize))
	}
	return t, nil
}

// SetTimer installs the timer Render uses to record each chain member's
// ProcessAudio duration. Passing nil disables recording. Call only on the
// dispatcher thread, before the track is rendered concurrently.
func (t *Track) SetTimer(timer *perf.Timer) {
	t.timer = timer
}

// SetEventOutputInternal toggles whether events passed to emit are
// buffered internally (drained with DrainOutputEvents) rather than pushed
// to the shared sink. The buffer is guarded by this track's own mutex, so
// tracks do not share one sink.
func (t *Track) SetEventOutputInternal(internal bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.eventOutputInternal = internal
}

// DrainOutputEvents returns and clears events accumulated while in
// internal-buffer mode.
func (t *Track) DrainOutputEvents() []rtevent.RtEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := t.outputEvents
	t.outputEvents = nil
	return out
}

func (t *Track) emit(e rtevent.RtEvent) {
	t.mu.Lock()
	internal := t.eventOutputInternal
	if internal {
		t.outputEvents = append(t.outputEvents, e)
	}
	t.mu.Unlock()
	if !internal && t.sink != nil {
		t.sink(e)
	}
}

// Add appends a processor to the end of the chain, returning false if p is
// nil or its ID already appears in the chain. Called only on the
// dispatcher thread.
func (t *Track) Add(p processor.Processor) bool {
	if p == nil {
		return false
	}
	old := *t.chain.Load()
	for _, existing := range old {
		if existing.ID() == p.ID() {
			return false
		}
	}
	next := make([]processor.Processor, len(old)+1)
	copy(next, old)
	next[len(old)] = p
	t.chain.Store(&next)
	return true
}

// Remove removes the processor with the given ID from the chain,
// returning false if not found. Called only on the dispatcher thread.
func (t *Track) Remove(id uint32) bool {
	old := *t.chain.Load()
	idx := -1
	for i, p := range old {
		if p.ID() == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}
	next := make([]processor.Processor, 0, len(old)-1)
	next = append(next, old[:idx]...)
	next = append(next, old[idx+1:]...)
	t.chain.Store(&next)
	return true
}

// Chain returns a snapshot of the current processor chain in render order.
func (t *Track) Chain() []processor.Processor {
	return *t.chain.Load()
}

// ProcessEvent distributes events addressed to this track's own bus
// parameters via the embedded BaseProcessor default; events addressed to
// chain members are delivered separately by Render.
func (t *Track) ProcessEvent(e rtevent.RtEvent) {
	t.BaseProcessor.ProcessEvent(e)
}

// Render processes one block: events addressed to chain members are
// delivered before that processor's ProcessAudio; the chain runs in order
// over flip-flopped scratch buffers; per-bus gain and equal-power pan are
// applied last. Render is safe to call from the audio thread only.
func (t *Track) Render(in *audio.ChunkSampleBuffer, events []rtevent.RtEvent) *audio.ChunkSampleBuffer {
	src, dst := t.scratchA, t.scratchB
	src.CopyFrom(in)

	chain := *t.chain.Load()
	for _, p := range chain {
		if !p.Enabled() {
			continue
		}
		for _, e := range events {
			if e.Target == p.ID() {
				p.ProcessEvent(e)
			}
		}
		if p.Bypassed() {
			dst.CopyFrom(src)
		} else if t.timer != nil {
			t.timer.Start(p.ID())
			p.ProcessAudio(src, dst)
			t.timer.Stop()
		} else {
			p.ProcessAudio(src, dst)
		}
		src, dst = dst, src
	}

	t.applyGainAndPan(src)
	return src
}

// applyGainAndPan applies each bus's smoothed linear gain and equal-power
// pan law in place: L = cos(theta)*gain*inL, R = sin(theta)*gain*inR,
// theta = (pan+1)*pi/4.
func (t *Track) applyGainAndPan(buf *audio.ChunkSampleBuffer) {
	n := buf.ChunkSize()
	for b := 0; b < t.numBuses && b < buf.NumBuses(); b++ {
		bus := buf.Bus(b)
		left, right := bus[0], bus[1]
		g := t.gain[b]
		p := t.pan[b]
		for i := 0; i < n; i++ {
			gainDB := g.NextSmoothed()
			linear := math.Pow(10, gainDB/20.0)
			panVal := p.NextSmoothed()
			theta := (panVal + 1.0) * math.Pi / 4.0
			lGain := linear * math.Cos(theta)
			rGain := linear * math.Sin(theta)
			left[i] = float32(float64(left[i]) * lGain)
			right[i] = float32(float64(right[i]) * rGain)
		}
	}
}

// SetGain sets the target gain in dB for bus b.
func (t *Track) SetGain(bus int, db float64) {
	if bus < 0 || bus >= len(t.gain) {
		return
	}
	t.gain[bus].SetDomainValue(db)
}

// SetPan sets the target pan for bus b, in [-1, 1].
func (t *Track) SetPan(bus int, pan float64) {
	if bus < 0 || bus >= len(t.pan) {
		return
	}
	t.pan[bus].SetDomainValue(pan)
}
