// Package param implements the engine's typed parameter registry:
// normalized value storage with wait-free audio-thread reads, preprocessors
// mapping normalized to domain values, and smoothing for zipper-free
// automation.
package param

import (
	"fmt"
	"math"
	"sync/atomic"
)

// Kind distinguishes the storage and semantics of a Parameter's value.
type Kind int

const (
	KindFloat Kind = iota
	KindInt
	KindBool
	KindStringProperty
	KindDataProperty
)

// Parameter is a named, typed value exposed by a Processor. Its ID is
// stable for the processor's lifetime; its Name is unique within the
// owning processor's registry. Float/Int/Bool parameters store their
// current normalized value as an atomic uint64 bit-pattern so the audio
// thread can read it without locking; String/Data parameters instead hold
// an externally owned handle (see PropertyValue) and are not touched from
// the audio thread's hot path.
type Parameter struct {
	ID           uint32
	Name         string
	Label        string
	Unit         string
	Kind         Kind
	Min, Max     float64
	DefaultValue float64
	Preprocessor Preprocessor

	normalized atomic.Uint64 // bit-pattern of a float64 in [0,1]
	property   atomic.Pointer[PropertyValue]
}

// NewFloatParameter constructs a Float parameter with an Identity (linear)
// preprocessor by default; pass a different Preprocessor to override it.
func NewFloatParameter(id uint32, name, label, unit string, min, max, defaultValue float64, pre Preprocessor) *Parameter {
	if pre == nil {
		pre = IdentityPreprocessor{Min: min, Max: max}
	}
	p := &Parameter{
		ID: id, Name: name, Label: label, Unit: unit,
		Kind: KindFloat, Min: min, Max: max, DefaultValue: defaultValue,
		Preprocessor: pre,
	}
	p.SetDomainValue(defaultValue)
	return p
}

// NewIntParameter constructs an Int-kind parameter; the domain value is
// rounded to the nearest integer on read.
func NewIntParameter(id uint32, name, label, unit string, min, max int, defaultValue int) *Parameter {
	p := &Parameter{
		ID: id, Name: name, Label: label, Unit: unit,
		Kind: KindInt, Min: float64(min), Max: float64(max), DefaultValue: float64(defaultValue),
		Preprocessor: IdentityPreprocessor{Min: float64(min), Max: float64(max)},
	}
	p.SetDomainValue(float64(defaultValue))
	return p
}

// NewBoolParameter constructs a Bool-kind parameter.
func NewBoolParameter(id uint32, name, label string, defaultValue bool) *Parameter {
	def := 0.0
	if defaultValue {
		def = 1.0
	}
	p := &Parameter{
		ID: id, Name: name, Label: label,
		Kind: KindBool, Min: 0, Max: 1, DefaultValue: def,
		Preprocessor: IdentityPreprocessor{Min: 0, Max: 1},
	}
	p.SetDomainValue(def)
	return p
}

// NewPropertyParameter constructs a String or Data property parameter. Its
// value is set and read via PropertyValue, not the normalized float path.
func NewPropertyParameter(id uint32, name, label string, kind Kind) *Parameter {
	if kind != KindStringProperty && kind != KindDataProperty {
		panic("param: NewPropertyParameter requires KindStringProperty or KindDataProperty")
	}
	p := &Parameter{ID: id, Name: name, Label: label, Kind: kind}
	p.property.Store(&PropertyValue{})
	return p
}

// NormalizedValue returns the current value in [0,1], wait-free.
func (p *Parameter) NormalizedValue() float64 {
	return float64frombits(p.normalized.Load())
}

// SetNormalizedValue stores a new value, clamped to [0,1]. Safe to call
// from the audio thread.
func (p *Parameter) SetNormalizedValue(v float64) {
	p.normalized.Store(float64bits(clip01(v)))
}

// DomainValue returns the current value mapped through the Preprocessor
// into [Min, Max].
func (p *Parameter) DomainValue() float64 {
	v := p.Preprocessor.ToDomain(p.NormalizedValue())
	if p.Kind == KindInt {
		return math.Round(v)
	}
	return v
}

// SetDomainValue converts a domain value to normalized form and stores it.
func (p *Parameter) SetDomainValue(v float64) {
	p.SetNormalizedValue(p.Preprocessor.ToNormalized(v))
}

// FormattedValue renders the current domain value with its unit suffix,
// e.g. "50.00 dB".
func (p *Parameter) FormattedValue() string {
	v := p.DomainValue()
	if p.Unit == "" {
		return fmt.Sprintf("%.2f", v)
	}
	return fmt.Sprintf("%.2f %s", v, p.Unit)
}

// Property returns the current PropertyValue for a String/Data parameter.
// It panics if called on a Float/Int/Bool parameter.
func (p *Parameter) Property() *PropertyValue {
	if p.Kind != KindStringProperty && p.Kind != KindDataProperty {
		panic("param: Property() called on a non-property parameter")
	}
	return p.property.Load()
}

// SetProperty atomically publishes a new PropertyValue.
func (p *Parameter) SetProperty(v *PropertyValue) {
	p.property.Store(v)
}

// PropertyValue holds a handle to an externally owned string or byte blob.
// Parameters of Kind String/DataProperty never copy the payload into the
// atomic normalized-value path; they swap a pointer to an immutable value
// instead, which keeps reads wait-free without bounding payload size.
type PropertyValue struct {
	Str  string
	Data []byte
}

func float64bits(f float64) uint64     { return math.Float64bits(f) }
func float64frombits(b uint64) float64 { return math.Float64frombits(b) }
