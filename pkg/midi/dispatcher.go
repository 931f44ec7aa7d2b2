package midi

import (
	"math"

	gomidi "gitlab.com/gomidi/midi/v2"

	"github.com/kestrelaudio/corehost/pkg/rtevent"
)

// Sender transmits a 3-byte MIDI message on port. It is supplied by the
// MidiFrontend collaborator; this package never opens a port itself.
type Sender func(port int, bytes [3]byte) error

// Dispatcher translates between raw MIDI bytes and RtEvents using a
// ConnectionTable. Incoming translation runs on whatever thread receives
// MIDI input (typically the dispatcher thread, per the engine's three
// thread classes). Outgoing messages are sent only by explicit
// SendNoteOn/SendNoteOff calls; notification RtEvents draining out of the
// audio thread are not translated to outgoing MIDI.
type Dispatcher struct {
	table *ConnectionTable
	send  Sender
}

// NewDispatcher creates a Dispatcher routing through table. send may be nil
// if outgoing MIDI is not needed.
func NewDispatcher(table *ConnectionTable, send Sender) *Dispatcher {
	return &Dispatcher{table: table, send: send}
}

// HandleIncoming decodes a raw MIDI message arriving on port and returns
// the RtEvents it produces, per the incoming connection tables. It never
// blocks and allocates only the returned slice.
func (d *Dispatcher) HandleIncoming(port int, raw [3]byte) []rtevent.RtEvent {
	msg := gomidi.Message(raw[:])
	if s := raw[0] & 0xF0; s == 0xC0 || s == 0xD0 {
		msg = gomidi.Message(raw[:2])
	}

	var ch, key, vel uint8
	if msg.GetNoteOn(&ch, &key, &vel) {
		return d.keyboardEvents(port, int(ch), raw, func(target uint32) rtevent.RtEvent {
			return rtevent.NoteOn(target, key, vel, 0)
		})
	}
	if msg.GetNoteOff(&ch, &key, &vel) {
		return d.keyboardEvents(port, int(ch), raw, func(target uint32) rtevent.RtEvent {
			return rtevent.NoteOff(target, key, vel, 0)
		})
	}
	var cc, ccVal uint8
	if msg.GetControlChange(&ch, &cc, &ccVal) {
		return d.ccEvents(port, int(ch), int(cc), ccVal)
	}
	var program uint8
	if msg.GetProgramChange(&ch, &program) {
		return d.pcEvents(port, int(ch), program)
	}
	return nil
}

func (d *Dispatcher) keyboardEvents(port, channel int, raw [3]byte, build func(target uint32) rtevent.RtEvent) []rtevent.RtEvent {
	entries := d.table.lookupKeyboardInput(port, channel)
	if len(entries) == 0 {
		return nil
	}
	out := make([]rtevent.RtEvent, 0, len(entries)*2)
	for _, e := range entries {
		out = append(out, build(e.TrackID))
		if e.Raw {
			out = append(out, rtevent.RtEvent{Kind: rtevent.KindWrappedMidi, Target: e.TrackID, ByteValue: raw})
		}
	}
	return out
}

// ccEvents translates a control-change message per each matching
// connection's mode: absolute mode maps the 0..127 value linearly onto
// [min, max] and emits it tagged ParamModeDomainAbsolute; relative mode
// treats the value as a two's-complement 7-bit delta (values 1..63
// increment, 65..127 decrement by 128-value) scaled by a quantum of
// (max-min)/127 and emits it tagged ParamModeDomainRelative, leaving the
// add-onto-current-value step to whoever applies the event.
func (d *Dispatcher) ccEvents(port, channel, cc int, value uint8) []rtevent.RtEvent {
	entries := d.table.lookupCC(port, channel, cc)
	if len(entries) == 0 {
		return nil
	}
	out := make([]rtevent.RtEvent, 0, len(entries))
	for _, e := range entries {
		if e.Relative {
			delta := relativeDelta(value)
			quantum := (e.Max - e.Min) / 127.0
			out = append(out, rtevent.ParameterChangeDomainDelta(e.ProcessorID, e.ParameterID, float64(delta)*quantum, 0))
		} else {
			frac := float64(value) / 127.0
			v := clip(e.Min+frac*(e.Max-e.Min), e.Min, e.Max)
			out = append(out, rtevent.ParameterChangeDomain(e.ProcessorID, e.ParameterID, v, 0))
		}
	}
	return out
}

// relativeDelta decodes a 7-bit two's-complement relative CC value: 1..63
// is a positive increment, 65..127 a negative one (value-128), 0 and 64
// are no-ops.
func relativeDelta(value uint8) int {
	v := int(value)
	if v == 0 || v == 64 {
		return 0
	}
	if v < 64 {
		return v
	}
	return v - 128
}

func (d *Dispatcher) pcEvents(port, channel int, program uint8) []rtevent.RtEvent {
	ids := d.table.lookupProgramChange(port, channel)
	if len(ids) == 0 {
		return nil
	}
	out := make([]rtevent.RtEvent, 0, len(ids))
	for _, id := range ids {
		out = append(out, rtevent.RtEvent{
			Kind:     rtevent.KindParameterChange,
			Target:   id,
			IntValue: int32(program),
		})
	}
	return out
}

// SendNoteOn emits a note-on for trackID to every output port it is
// connected to.
func (d *Dispatcher) SendNoteOn(trackID uint32, note, velocity uint8) {
	d.sendToOutputs(trackID, func(ch uint8) gomidi.Message {
		return gomidi.NoteOn(ch, note, velocity)
	})
}

// SendNoteOff emits a note-off for trackID to every output port it is
// connected to.
func (d *Dispatcher) SendNoteOff(trackID uint32, note uint8) {
	d.sendToOutputs(trackID, func(ch uint8) gomidi.Message {
		return gomidi.NoteOff(ch, note)
	})
}

func (d *Dispatcher) sendToOutputs(trackID uint32, build func(channel uint8) gomidi.Message) {
	if d.send == nil {
		return
	}
	for _, target := range d.table.lookupKeyboardOutput(trackID) {
		msg := build(uint8(target.Channel))
		var raw [3]byte
		copy(raw[:], msg)
		d.send(target.Port, raw)
	}
}

func clip(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
