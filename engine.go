package corehost

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kestrelaudio/corehost/pkg/audio"
	"github.com/kestrelaudio/corehost/pkg/graph"
	"github.com/kestrelaudio/corehost/pkg/perf"
	"github.com/kestrelaudio/corehost/pkg/rtevent"
)

// EngineState is the engine's coarse run state. Transitions happen only
// between audio blocks, never mid-block.
type EngineState int

const (
	Stopped EngineState = iota
	Running
)

func (s EngineState) String() string {
	if s == Running {
		return "Running"
	}
	return "Stopped"
}

// EngineConfig holds configuration for engine construction. Invalid
// values are rejected rather than silently clamped; everything else
// defaults.
type EngineConfig struct {
	SampleRate float64
	ChunkSize  int
	NumBuses   int // number of stereo buses the engine's I/O buffers carry

	InputFifoCapacity  int
	OutputFifoCapacity int

	ErrorHandler ErrorHandler
}

func (c *EngineConfig) applyDefaults() error {
	if c.SampleRate <= 0 {
		c.SampleRate = 48000
	} else if c.SampleRate < 8000 || c.SampleRate > 384000 {
		return fmt.Errorf("SampleRate must be within [8000, 384000] Hz, got %.0f", c.SampleRate)
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = audio.DefaultChunkSize
	} else if c.ChunkSize < 8 || c.ChunkSize > 8192 {
		return fmt.Errorf("ChunkSize must be within [8, 8192] samples, got %d", c.ChunkSize)
	}
	if c.NumBuses <= 0 {
		c.NumBuses = 1
	}
	if c.InputFifoCapacity <= 0 {
		c.InputFifoCapacity = rtevent.DefaultCapacity
	}
	if c.OutputFifoCapacity <= 0 {
		c.OutputFifoCapacity = rtevent.DefaultCapacity
	}
	if c.ErrorHandler == nil {
		c.ErrorHandler = &DefaultErrorHandler{}
	}
	return nil
}

// transport holds the global playback state mutated only from within
// ProcessChunk (the audio thread) in response to Tempo/TimeSignature/
// PlayingMode RtEvents, and read by any thread via the Engine's snapshot
// methods.
type transport struct {
	tempoBits   atomic.Uint64 // math.Float64bits(bpm)
	numerator   atomic.Int32
	denominator atomic.Int32
	playing     atomic.Bool
}

func newTransport() *transport {
	t := &transport{}
	t.tempoBits.Store(math.Float64bits(120))
	t.numerator.Store(4)
	t.denominator.Store(4)
	return t
}

// trackRoute is one track's committed I/O wiring: inputBus/outputBus are
// engine bus indices (-1 meaning silence / discard respectively).
// inputScratch is a pre-allocated, track-owned buffer filled in place each
// block by CopyBusFrom, allocated once, at Connect time, never on the
// audio thread.
type trackRoute struct {
	inputBus     int
	outputBus    int
	inputScratch *audio.ChunkSampleBuffer
}

// RoutingTable is the committed, immutable I/O wiring for every track
// currently in the graph. Published as a whole via atomic.Pointer so the
// audio thread never observes a partially updated table.
type RoutingTable struct {
	routes map[uint32]trackRoute
}

func emptyRoutingTable() *RoutingTable {
	return &RoutingTable{routes: map[uint32]trackRoute{}}
}

func (rt *RoutingTable) clone() *RoutingTable {
	out := &RoutingTable{routes: make(map[uint32]trackRoute, len(rt.routes))}
	for k, v := range rt.routes {
		out.routes[k] = v
	}
	return out
}

// Engine owns the committed AudioGraph and drives one audio callback per
// block. It is the sole reader of the input RT FIFO and the sole writer
// of the output RT FIFO; everything else reaches it through those two
// rings or through a Dispatcher posting Events.
type Engine struct {
	mu    sync.RWMutex
	state EngineState

	sampleRate float64
	chunkSize  int
	numBuses   int

	graph *graph.AudioGraph

	inputFifo  *rtevent.Fifo
	outputFifo *rtevent.Fifo

	transport *transport

	routing atomic.Pointer[RoutingTable]

	// eventScratch is reused across ProcessChunk calls so steady-state
	// operation needs no new backing array; it only grows (and therefore
	// allocates) when a block's event count exceeds any previously seen
	// count.
	eventScratch []rtevent.RtEvent

	errorHandler ErrorHandler

	perfRing        *perf.Ring
	perfAgg         *perf.Aggregator
	perfTmr         *perf.Timer
	perfDrainPeriod time.Duration
}

// NewEngine creates a stopped Engine with an empty graph.
func NewEngine(config EngineConfig) (*Engine, error) {
	if err := config.applyDefaults(); err != nil {
		return nil, err
	}
	ring := perf.NewRing(perf.MaxLogEntries)
	blockPeriod := time.Duration(float64(config.ChunkSize) / config.SampleRate * float64(time.Second))
	e := &Engine{
		state:           Stopped,
		sampleRate:      config.SampleRate,
		chunkSize:       config.ChunkSize,
		numBuses:        config.NumBuses,
		graph:           graph.New(),
		inputFifo:       rtevent.NewFifo(config.InputFifoCapacity),
		outputFifo:      rtevent.NewFifo(config.OutputFifoCapacity),
		transport:       newTransport(),
		eventScratch:    make([]rtevent.RtEvent, 0, 256),
		errorHandler:    config.ErrorHandler,
		perfRing:        ring,
		perfTmr:         perf.NewTimer(ring),
		perfDrainPeriod: blockPeriod,
	}
	e.routing.Store(emptyRoutingTable())
	return e, nil
}

// Start transitions Stopped -> Running, launching a fresh performance
// aggregator drain goroutine. It is a no-op if already running.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == Running {
		return
	}
	e.state = Running
	e.perfAgg = perf.NewAggregator(e.perfRing, e.perfDrainPeriod)
	go e.perfAgg.Run()
}

// Stop transitions Running -> Stopped, stopping the performance
// aggregator's background drain goroutine. It is a no-op if already
// stopped.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == Stopped {
		return
	}
	e.state = Stopped
	e.perfAgg.Stop()
}

// State reports the current run state.
func (e *Engine) State() EngineState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// ChunkSize returns the engine's fixed per-block sample count.
func (e *Engine) ChunkSize() int { return e.chunkSize }

// SampleRate returns the engine's configured sample rate.
func (e *Engine) SampleRate() float64 { return e.sampleRate }

// Graph returns the engine's committed AudioGraph, for dispatcher-thread
// mutation (AddTrack, AddProcessor, ...).
func (e *Engine) Graph() *graph.AudioGraph { return e.graph }

// PerfTimer returns the engine's single-producer performance timer, so
// every track's rendered chain can record its per-processor cost into the
// same ring the engine's aggregator drains.
func (e *Engine) PerfTimer() *perf.Timer { return e.perfTmr }

// ProcessorTimings returns the rolling per-block cost statistics recorded
// for nodeID, or false if none have been recorded yet (including before
// the engine's first Start).
func (e *Engine) ProcessorTimings(nodeID uint32) (perf.ProcessTimings, bool) {
	e.mu.RLock()
	agg := e.perfAgg
	e.mu.RUnlock()
	if agg == nil {
		return perf.ProcessTimings{}, false
	}
	return agg.Get(nodeID)
}

// InputFifo is the SPSC ring the dispatcher pushes RtEvents into for
// delivery on the next block boundary.
func (e *Engine) InputFifo() *rtevent.Fifo { return e.inputFifo }

// OutputFifo is the SPSC ring the audio thread pushes notification
// RtEvents into for the dispatcher to drain and fan out.
func (e *Engine) OutputFifo() *rtevent.Fifo { return e.outputFifo }

// ConnectTrackInput wires trackID to read from engine input bus
// inputBus, allocating (once, here, on the dispatcher thread) the
// per-track scratch buffer ProcessChunk will fill in place every block.
// Passing inputBus < 0 routes silence to the track instead.
func (e *Engine) ConnectTrackInput(trackID uint32, inputBus int) error {
	tr, ok := e.graph.Processor(trackID)
	if !ok {
		return fmt.Errorf("engine: track %d not found", trackID)
	}
	cur := e.routing.Load().clone()
	route := cur.routes[trackID]
	route.inputBus = inputBus
	if route.inputScratch == nil {
		route.inputScratch = audio.NewChunkSampleBuffer(tr.InputChannels(), e.chunkSize)
	}
	cur.routes[trackID] = route
	e.routing.Store(cur)
	return nil
}

// ConnectTrackOutput wires trackID's rendered output to sum into engine
// output bus outputBus. Passing outputBus < 0 discards the track's output.
func (e *Engine) ConnectTrackOutput(trackID uint32, outputBus int) error {
	if _, ok := e.graph.Processor(trackID); !ok {
		return fmt.Errorf("engine: track %d not found", trackID)
	}
	cur := e.routing.Load().clone()
	route := cur.routes[trackID]
	route.outputBus = outputBus
	cur.routes[trackID] = route
	e.routing.Store(cur)
	return nil
}

// DisconnectTrack removes trackID's routing entirely (it renders to
// silence with no output).
func (e *Engine) DisconnectTrack(trackID uint32) {
	cur := e.routing.Load().clone()
	delete(cur.routes, trackID)
	e.routing.Store(cur)
}

// Tempo returns the current transport tempo in BPM.
func (e *Engine) Tempo() float64 {
	return math.Float64frombits(e.transport.tempoBits.Load())
}

// TimeSignature returns the current transport time signature.
func (e *Engine) TimeSignature() (numerator, denominator int) {
	return int(e.transport.numerator.Load()), int(e.transport.denominator.Load())
}

// Playing reports whether the transport is in playing mode.
func (e *Engine) Playing() bool {
	return e.transport.playing.Load()
}

// ProcessChunk is the single audio callback per block, called by an
// AudioFrontend on the audio thread. timestamp is the sample time of the
// first sample in this block. In the Stopped state it still drains the
// input FIFO (to keep the dispatcher moving), applies its transport events,
// discards the other events, and emits silence.
func (e *Engine) ProcessChunk(in, out *audio.ChunkSampleBuffer, timestamp int64) {
	state := e.State()

	events := e.drainInput()
	for _, ev := range events {
		e.applyTransportEvent(ev)
	}

	out.Clear()
	if state != Running {
		return
	}

	rt := e.routing.Load()
	tracks := e.graph.Tracks()

	for _, tr := range tracks {
		route, hasRoute := rt.routes[tr.ID()]

		for _, ev := range events {
			if ev.Target == tr.ID() {
				tr.ProcessEvent(ev)
			}
		}

		var trackIn *audio.ChunkSampleBuffer
		if hasRoute && route.inputScratch != nil {
			if route.inputBus >= 0 {
				route.inputScratch.CopyBusFrom(in, route.inputBus*2)
			}
			trackIn = route.inputScratch
		} else {
			trackIn = silentView(tr.InputChannels(), e.chunkSize)
		}

		rendered := tr.Render(trackIn, events)

		if hasRoute && route.outputBus >= 0 {
			sumInto(out, rendered, route.outputBus)
		}

		for _, ev := range tr.DrainOutputEvents() {
			e.pushOutput(ev)
		}
	}
}

// silenceBuffers holds one lazily-grown zero buffer per channel count seen
// so an unrouted track never forces a per-block allocation after its
// first block. Reads only; never written to after creation.
var silenceBuffers sync.Map // map[int]*audio.ChunkSampleBuffer, keyed by channels*100000+chunkSize

func silentView(channels, chunkSize int) *audio.ChunkSampleBuffer {
	key := channels*100000 + chunkSize
	if v, ok := silenceBuffers.Load(key); ok {
		return v.(*audio.ChunkSampleBuffer)
	}
	buf := audio.NewChunkSampleBuffer(channels, chunkSize)
	actual, _ := silenceBuffers.LoadOrStore(key, buf)
	return actual.(*audio.ChunkSampleBuffer)
}

// drainInput pops every currently queued input RtEvent into the reused
// eventScratch slice.
func (e *Engine) drainInput() []rtevent.RtEvent {
	e.eventScratch = e.eventScratch[:0]
	for {
		ev, ok := e.inputFifo.Pop()
		if !ok {
			break
		}
		e.eventScratch = append(e.eventScratch, ev)
	}
	return e.eventScratch
}

func (e *Engine) applyTransportEvent(ev rtevent.RtEvent) {
	switch ev.Kind {
	case rtevent.KindTempo:
		e.transport.tempoBits.Store(math.Float64bits(ev.Value))
	case rtevent.KindTimeSignature:
		e.transport.numerator.Store(int32(ev.Value))
		e.transport.denominator.Store(ev.IntValue)
	case rtevent.KindPlayingMode:
		e.transport.playing.Store(ev.IntValue != 0)
	}
}

// pushOutput attempts to enqueue a notification RtEvent onto the output
// FIFO, dropping it (drop-newest) if full.
func (e *Engine) pushOutput(ev rtevent.RtEvent) {
	e.outputFifo.Push(ev)
}

// sumInto adds src's channels into out starting at out's bus'th channel
// pair, summing src's samples into whatever out already holds.
func sumInto(out, src *audio.ChunkSampleBuffer, bus int) {
	start := bus * 2
	n := src.NumChannels()
	if start+n > out.NumChannels() {
		n = out.NumChannels() - start
	}
	for ch := 0; ch < n; ch++ {
		dst := out.Channel(start + ch)
		s := src.Channel(ch)
		for i := range dst {
			dst[i] += s[i]
		}
	}
}
