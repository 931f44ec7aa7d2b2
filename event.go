package corehost

import (
	"time"

	"github.com/kestrelaudio/corehost/pkg/param"
	"github.com/kestrelaudio/corehost/pkg/rtevent"
)

// Immediate is the SampleTime sentinel meaning "apply at the start of the
// next block" rather than at a specific sample offset.
const Immediate int64 = -1

// CompletionStatus reports how an Event's handling concluded to whoever
// supplied a completion callback.
type CompletionStatus int

const (
	CompletionOK CompletionStatus = iota
	CompletionAborted
	CompletionTimedOut
	CompletionError
)

// Event is the heap-allocated, high-level counterpart to RtEvent: it
// carries whatever an RtEvent can (via toRtEvent) plus payloads an RtEvent
// cannot hold (strings, blobs), a scheduled time, a poster id, and an
// optional completion callback. Client threads build these and post them
// to the Dispatcher; they never touch RtEvents or the graph directly.
type Event struct {
	Kind rtevent.Kind

	Target ObjectId
	Param  ObjectId

	Value       float64
	IntValue    int32
	ByteValue   [3]byte
	StringValue string
	DataValue   []byte

	// SampleTime is an engine-relative sample offset, or Immediate. The
	// dispatcher forwards the event on its next tick whatever SampleTime
	// says, and a positive value is only copied into the RtEvent's
	// SampleOffset; the engine applies the event at the start of the block
	// it drains it in.
	SampleTime int64

	PosterID ObjectId

	// Deadline is the wall-clock time after which the dispatcher discards
	// this event with CompletionTimedOut instead of applying it. Zero
	// means no deadline.
	Deadline time.Time

	// Completion, if set, is invoked exactly once with the outcome of
	// handling this event. It must not block.
	Completion func(CompletionStatus)

	// handler, when set, is executed instead of translating the event to
	// an RtEvent: synchronously on the dispatcher thread (graph mutations),
	// or on its own goroutine for a KindAsyncWork event.
	handler func() CompletionStatus
}

// complete invokes the completion callback, if any, exactly once.
func (e *Event) complete(status CompletionStatus) {
	if e.Completion != nil {
		e.Completion(status)
	}
}

// rtConvertible reports whether this Event has a direct RtEvent
// translation (as opposed to requiring synchronous dispatcher-thread
// handling via handler).
func (e *Event) rtConvertible() bool {
	return e.handler == nil
}

// toRtEvent projects the Event onto the fixed-size RtEvent carried across
// the audio boundary. Only called for events where rtConvertible is true.
// StringValue/DataValue, which an RtEvent cannot hold inline, cross over as
// a Property pointer for KindStringProperty/KindDataProperty.
func (e *Event) toRtEvent() rtevent.RtEvent {
	offset := uint32(0)
	if e.SampleTime > 0 {
		offset = uint32(e.SampleTime)
	}
	rev := rtevent.RtEvent{
		Kind:         e.Kind,
		Target:       uint32(e.Target),
		Param:        uint32(e.Param),
		Value:        e.Value,
		IntValue:     e.IntValue,
		ByteValue:    e.ByteValue,
		SampleOffset: offset,
	}
	if e.Kind == rtevent.KindStringProperty || e.Kind == rtevent.KindDataProperty {
		rev.Property = &param.PropertyValue{Str: e.StringValue, Data: e.DataValue}
	}
	return rev
}

// newHandlerEvent builds an Event whose handling is a closure rather than
// an RtEvent translation. The dispatcher runs it synchronously on its own
// thread (graph mutations), or on a separate goroutine when the caller
// sets Kind to KindAsyncWork.
func newHandlerEvent(posterID ObjectId, completion func(CompletionStatus), handler func() CompletionStatus) *Event {
	return &Event{PosterID: posterID, Completion: completion, handler: handler}
}
