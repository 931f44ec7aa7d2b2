package corehost

import (
	"fmt"
	"sync"
	"time"

	"github.com/kestrelaudio/corehost/pkg/rtevent"
)

// ThreadPeriodicity is the dispatcher's wake interval.
const ThreadPeriodicity = time.Millisecond

// MaxPosters bounds the fixed-size poster table indexed by EventPosterId.
const MaxPosters = 256

// EventPosterId identifies a slot in the dispatcher's poster table.
type EventPosterId int

// PosterStatus is returned by RegisterPoster.
type PosterStatus int

const (
	PosterOK PosterStatus = iota
	PosterAlreadySubscribed
	PosterOutOfRange
)

// Poster receives fanned-out notification Events. The dispatcher calls it
// synchronously on whichever goroutine fans out the notification; nothing
// is queued per poster, so a poster that blocks stalls that goroutine, and
// no notification is dropped for a slow poster. A poster that panics is
// recovered and counted in that poster's drop counter.
type Poster func(*Event)

type posterSlot struct {
	fn      Poster
	dropped uint64
}

type keyboardListener struct {
	id      ObjectId
	fn      func(e rtevent.RtEvent)
	dropped uint64
}

type parameterListener struct {
	processorID ObjectId
	parameterID ObjectId
	fn          func(value float64)
	dropped     uint64
}

// Dispatcher is the engine's single background worker: it drains the
// client-submitted Event queue into the engine's input RT FIFO, drains the
// engine's output RT FIFO and fans out synthesized Events to subscribers,
// and serializes every mutation of the audio graph and MIDI tables so the
// audio thread never touches them directly.
type Dispatcher struct {
	engine *Engine

	mu      sync.Mutex
	pending []*Event
	running bool
	stop    chan struct{}
	done    chan struct{}

	postersMu sync.Mutex
	posters   [MaxPosters]*posterSlot

	listenersMu sync.Mutex
	keyboard    []*keyboardListener
	parameters  []*parameterListener

	lastTick time.Duration
	maxTick  time.Duration

	errorHandler ErrorHandler
}

// NewDispatcher creates a Dispatcher for engine. It does not start running
// until Start is called.
func NewDispatcher(engine *Engine, errorHandler ErrorHandler) *Dispatcher {
	if errorHandler == nil {
		errorHandler = &DefaultErrorHandler{}
	}
	return &Dispatcher{engine: engine, errorHandler: errorHandler}
}

// Start launches the dispatcher's background goroutine. It is a no-op if
// already running.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return
	}
	d.running = true
	d.stop = make(chan struct{})
	d.done = make(chan struct{})
	go d.loop(d.stop, d.done)
}

// Stop halts the background goroutine if it is running, runs one final
// tick to drain what it can of the pending queue, and completes every
// Event still pending with CompletionAborted (also when the dispatcher was
// never started). It blocks until the goroutine has exited.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	wasRunning := d.running
	d.running = false
	stop := d.stop
	done := d.done
	d.mu.Unlock()

	if wasRunning {
		close(stop)
		<-done
		d.tick()
	}

	d.mu.Lock()
	remaining := d.pending
	d.pending = nil
	d.mu.Unlock()
	for _, ev := range remaining {
		ev.complete(CompletionAborted)
	}
}

// Post enqueues an event for handling on the dispatcher's next tick. Safe
// to call from any goroutine.
func (d *Dispatcher) Post(e *Event) {
	d.mu.Lock()
	d.pending = append(d.pending, e)
	d.mu.Unlock()
}

func (d *Dispatcher) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(ThreadPeriodicity)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			d.tick()
		}
	}
}

func (d *Dispatcher) tick() {
	start := time.Now()

	d.mu.Lock()
	batch := d.pending
	d.pending = nil
	d.mu.Unlock()

	var retry []*Event
	for _, ev := range batch {
		if !ev.Deadline.IsZero() && time.Now().After(ev.Deadline) {
			ev.complete(CompletionTimedOut)
			continue
		}
		if ev.Kind == rtevent.KindAsyncWork && !ev.rtConvertible() {
			d.runAsync(ev)
			continue
		}
		if !ev.rtConvertible() {
			status := ev.handler()
			ev.complete(status)
			continue
		}
		if d.engine.InputFifo().Push(ev.toRtEvent()) {
			ev.complete(CompletionOK)
		} else {
			retry = append(retry, ev)
		}
	}
	if len(retry) > 0 {
		d.mu.Lock()
		d.pending = append(retry, d.pending...)
		d.mu.Unlock()
	}

	for {
		rev, ok := d.engine.OutputFifo().Pop()
		if !ok {
			break
		}
		d.fanOut(rev)
	}

	d.lastTick = time.Since(start)
	if d.lastTick > d.maxTick {
		d.maxTick = d.lastTick
	}
}

// Timings reports the most recent and largest observed tick durations, for
// diagnostics.
func (d *Dispatcher) Timings() (last, max time.Duration) {
	return d.lastTick, d.maxTick
}

// runAsync executes ev's handler on its own goroutine rather than inline in
// tick, so a blocking operation (plugin preset load, file I/O) never stalls
// the dispatcher's input/output draining. Completion is reported through
// ev's own callback plus a KindAsyncWorkComplete notification fanned out to
// every registered poster, targeted at ev.Target (the caller's work id).
func (d *Dispatcher) runAsync(ev *Event) {
	go func() {
		status := ev.handler()
		ev.complete(status)
		d.fanOut(rtevent.RtEvent{
			Kind:     rtevent.KindAsyncWorkComplete,
			Target:   uint32(ev.Target),
			IntValue: int32(status),
		})
	}()
}

// fanOut synthesizes a high-level Event from an outbound RtEvent and
// delivers it to every relevant subscriber: registered posters always,
// keyboard listeners for note kinds, parameter listeners for parameter
// changes.
func (d *Dispatcher) fanOut(rev rtevent.RtEvent) {
	ev := &Event{
		Kind:      rev.Kind,
		Target:    ObjectId(rev.Target),
		Param:     ObjectId(rev.Param),
		Value:     rev.Value,
		IntValue:  rev.IntValue,
		ByteValue: rev.ByteValue,
	}

	d.postersMu.Lock()
	for i, slot := range d.posters {
		if slot == nil {
			continue
		}
		d.deliverToPoster(i, slot, ev)
	}
	d.postersMu.Unlock()

	switch rev.Kind {
	case rtevent.KindNoteOn, rtevent.KindNoteOff, rtevent.KindWrappedMidi:
		d.listenersMu.Lock()
		for _, l := range d.keyboard {
			func() {
				defer func() {
					if r := recover(); r != nil {
						l.dropped++
					}
				}()
				l.fn(rev)
			}()
		}
		d.listenersMu.Unlock()
	case rtevent.KindParameterChange:
		d.listenersMu.Lock()
		for _, l := range d.parameters {
			if l.processorID == ev.Target && l.parameterID == ev.Param {
				func() {
					defer func() {
						if r := recover(); r != nil {
							l.dropped++
						}
					}()
					l.fn(rev.Value)
				}()
			}
		}
		d.listenersMu.Unlock()
	}
}

// deliverToPoster invokes the poster function, recovering and counting a
// drop if the poster panics rather than letting one bad subscriber take
// down the dispatcher loop.
func (d *Dispatcher) deliverToPoster(i int, slot *posterSlot, ev *Event) {
	defer func() {
		if r := recover(); r != nil {
			slot.dropped++
			func() {
				defer func() { _ = recover() }()
				d.errorHandler.HandleError(fmt.Errorf("dispatcher: poster %d panicked: %v", i, r))
			}()
		}
	}()
	slot.fn(ev)
}

// RegisterPoster installs fn at slot id, failing with PosterAlreadySubscribed
// if that slot is already taken.
func (d *Dispatcher) RegisterPoster(id EventPosterId, fn Poster) PosterStatus {
	if id < 0 || int(id) >= MaxPosters {
		return PosterOutOfRange
	}
	d.postersMu.Lock()
	defer d.postersMu.Unlock()
	if d.posters[id] != nil {
		return PosterAlreadySubscribed
	}
	d.posters[id] = &posterSlot{fn: fn}
	return PosterOK
}

// UnregisterPoster frees slot id for reuse.
func (d *Dispatcher) UnregisterPoster(id EventPosterId) {
	if id < 0 || int(id) >= MaxPosters {
		return
	}
	d.postersMu.Lock()
	d.posters[id] = nil
	d.postersMu.Unlock()
}

// PosterDropped reports the cumulative drop count for slot id.
func (d *Dispatcher) PosterDropped(id EventPosterId) uint64 {
	if id < 0 || int(id) >= MaxPosters {
		return 0
	}
	d.postersMu.Lock()
	defer d.postersMu.Unlock()
	if d.posters[id] == nil {
		return 0
	}
	return d.posters[id].dropped
}

// AddKeyboardListener subscribes fn to every NoteOn/NoteOff/WrappedMidi
// notification, returning an id usable with RemoveKeyboardListener.
func (d *Dispatcher) AddKeyboardListener(fn func(e rtevent.RtEvent)) ObjectId {
	id := DefaultIdGenerator.Next()
	d.listenersMu.Lock()
	d.keyboard = append(d.keyboard, &keyboardListener{id: id, fn: fn})
	d.listenersMu.Unlock()
	return id
}

// RemoveKeyboardListener unsubscribes the listener with the given id.
func (d *Dispatcher) RemoveKeyboardListener(id ObjectId) {
	d.listenersMu.Lock()
	defer d.listenersMu.Unlock()
	for i, l := range d.keyboard {
		if l.id == id {
			d.keyboard = append(d.keyboard[:i], d.keyboard[i+1:]...)
			return
		}
	}
}

// AddParameterListener subscribes fn to normalized-value changes of a
// specific processor/parameter pair.
func (d *Dispatcher) AddParameterListener(processorID, parameterID ObjectId, fn func(value float64)) {
	d.listenersMu.Lock()
	d.parameters = append(d.parameters, &parameterListener{processorID: processorID, parameterID: parameterID, fn: fn})
	d.listenersMu.Unlock()
}

// RemoveParameterListeners unsubscribes every listener registered against
// the given processor/parameter pair.
func (d *Dispatcher) RemoveParameterListeners(processorID, parameterID ObjectId) {
	d.listenersMu.Lock()
	defer d.listenersMu.Unlock()
	kept := d.parameters[:0]
	for _, l := range d.parameters {
		if l.processorID != processorID || l.parameterID != parameterID {
			kept = append(kept, l)
		}
	}
	d.parameters = kept
}
