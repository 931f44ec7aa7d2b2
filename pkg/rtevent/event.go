// Package rtevent defines the value-typed events that cross the real-time
// audio boundary, and the lock-free transport that carries them.
package rtevent

import "github.com/kestrelaudio/corehost/pkg/param"

// Kind tags the payload carried by an RtEvent.
type Kind uint8

const (
	KindNone Kind = iota
	KindNoteOn
	KindNoteOff
	KindNoteAftertouch
	KindPitchBend
	KindModulation
	KindAftertouch
	KindParameterChange
	KindStringProperty
	KindDataProperty
	KindAddProcessor
	KindRemoveProcessor
	KindAddTrack
	KindRemoveTrack
	KindTempo
	KindTimeSignature
	KindPlayingMode
	KindSetBypass
	KindAsyncWork
	KindAsyncWorkComplete
	KindWrappedMidi
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "None"
	case KindNoteOn:
		return "NoteOn"
	case KindNoteOff:
		return "NoteOff"
	case KindNoteAftertouch:
		return "NoteAftertouch"
	case KindPitchBend:
		return "PitchBend"
	case KindModulation:
		return "Modulation"
	case KindAftertouch:
		return "Aftertouch"
	case KindParameterChange:
		return "ParameterChange"
	case KindStringProperty:
		return "StringProperty"
	case KindDataProperty:
		return "DataProperty"
	case KindAddProcessor:
		return "AddProcessor"
	case KindRemoveProcessor:
		return "RemoveProcessor"
	case KindAddTrack:
		return "AddTrack"
	case KindRemoveTrack:
		return "RemoveTrack"
	case KindTempo:
		return "Tempo"
	case KindTimeSignature:
		return "TimeSignature"
	case KindPlayingMode:
		return "PlayingMode"
	case KindSetBypass:
		return "SetBypass"
	case KindAsyncWork:
		return "AsyncWork"
	case KindAsyncWorkComplete:
		return "AsyncWorkComplete"
	case KindWrappedMidi:
		return "WrappedMidi"
	default:
		return "Unknown"
	}
}

// ParamMode tags how a KindParameterChange event's Value field should be
// interpreted. Carried in ByteValue[0], since IntValue is already spoken
// for by program-change events and Value itself must stay a plain float64.
type ParamMode uint8

const (
	// ParamModeNormalized interprets Value as an already-normalized [0,1]
	// write, applied with Parameter.SetNormalizedValue. This is the zero
	// value, so any event built without setting ByteValue[0] (every
	// Controller-originated parameter write predates ParamMode and relies
	// on this default) keeps its original behavior.
	ParamModeNormalized ParamMode = iota
	// ParamModeDomainAbsolute interprets Value as an absolute value in the
	// parameter's own domain units (e.g. dB, Hz), applied with
	// Parameter.SetDomainValue.
	ParamModeDomainAbsolute
	// ParamModeDomainRelative interprets Value as a delta in domain units
	// to be added to the parameter's current domain value before clipping,
	// applied as SetDomainValue(DomainValue() + Value).
	ParamModeDomainRelative
)

// RtEvent is a fixed-size, value-copyable event, kept within the engine's
// 64-byte budget. Every numeric field is a plain value so the struct stays
// POD and safe to pass by value across the audio boundary. Target/Param
// address a processor and one of its parameters by ObjectId; Value/IntValue/
// ByteValue carry the payload appropriate to Kind. For KindParameterChange,
// ByteValue[0] holds a ParamMode that says how to interpret Value;
// ByteValue[1:] are unused for that kind. Property carries the payload for
// KindStringProperty/KindDataProperty: a pointer to an externally owned,
// immutable PropertyValue, the same pointer-swap discipline
// Parameter.SetProperty uses, so RtEvent still never copies string or blob
// data. SampleOffset carries a sample position within the block; the
// engine and Track apply every event at the start of the block it is
// delivered in and do not read SampleOffset.
type RtEvent struct {
	Kind         Kind
	Target       uint32
	Param        uint32
	Value        float64
	IntValue     int32
	ByteValue    [3]byte
	Property     *param.PropertyValue
	SampleOffset uint32
}

// NoteOn builds an RtEvent carrying a note-on addressed to target.
func NoteOn(target uint32, note, velocity byte, offset uint32) RtEvent {
	return RtEvent{Kind: KindNoteOn, Target: target, ByteValue: [3]byte{note, velocity, 0}, SampleOffset: offset}
}

// NoteOff builds an RtEvent carrying a note-off addressed to target.
func NoteOff(target uint32, note, velocity byte, offset uint32) RtEvent {
	return RtEvent{Kind: KindNoteOff, Target: target, ByteValue: [3]byte{note, velocity, 0}, SampleOffset: offset}
}

// ParameterChange builds an RtEvent carrying a normalized parameter write.
func ParameterChange(target, param uint32, value float64, offset uint32) RtEvent {
	return RtEvent{Kind: KindParameterChange, Target: target, Param: param, Value: value, SampleOffset: offset}
}

// ParameterChangeDomain builds an RtEvent carrying an absolute domain-unit
// parameter write, per ParamModeDomainAbsolute.
func ParameterChangeDomain(target, param uint32, value float64, offset uint32) RtEvent {
	return RtEvent{
		Kind: KindParameterChange, Target: target, Param: param, Value: value,
		ByteValue: [3]byte{byte(ParamModeDomainAbsolute), 0, 0}, SampleOffset: offset,
	}
}

// ParameterChangeDomainDelta builds an RtEvent carrying a domain-unit
// parameter delta, per ParamModeDomainRelative.
func ParameterChangeDomainDelta(target, param uint32, delta float64, offset uint32) RtEvent {
	return RtEvent{
		Kind: KindParameterChange, Target: target, Param: param, Value: delta,
		ByteValue: [3]byte{byte(ParamModeDomainRelative), 0, 0}, SampleOffset: offset,
	}
}

// StringProperty builds an RtEvent carrying a string property write
// addressed to a processor's parameter.
func StringProperty(target, paramID uint32, value string, offset uint32) RtEvent {
	return RtEvent{
		Kind: KindStringProperty, Target: target, Param: paramID,
		Property: &param.PropertyValue{Str: value}, SampleOffset: offset,
	}
}

// DataProperty builds an RtEvent carrying a blob property write addressed
// to a processor's parameter.
func DataProperty(target, paramID uint32, value []byte, offset uint32) RtEvent {
	return RtEvent{
		Kind: KindDataProperty, Target: target, Param: paramID,
		Property: &param.PropertyValue{Data: value}, SampleOffset: offset,
	}
}
