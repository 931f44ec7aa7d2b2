// Package filter provides a built-in biquad filter Processor (lowpass,
// highpass, or bandpass), adapted from a standard Direct-Form-I biquad DSP
// kernel onto the engine's Processor/parameter contract.
package filter

import (
	"math"

	"github.com/kestrelaudio/corehost/pkg/audio"
	"github.com/kestrelaudio/corehost/pkg/param"
	"github.com/kestrelaudio/corehost/pkg/processor"
)

// Type selects the biquad's transfer function.
type Type int

const (
	Lowpass Type = iota
	Highpass
	Bandpass
)

const (
	paramFrequency uint32 = 1
	paramQ         uint32 = 2
)

// biquad is a per-channel Direct Form I second-order IIR section.
type biquad struct {
	b0, b1, b2 float32
	a1, a2     float32
	x1, x2     float32
	y1, y2     float32
}

func (b *biquad) setCoefficients(b0, b1, b2, a0, a1, a2 float64) {
	inv := 1.0 / a0
	b.b0, b.b1, b.b2 = float32(b0*inv), float32(b1*inv), float32(b2*inv)
	b.a1, b.a2 = float32(a1*inv), float32(a2*inv)
}

func (b *biquad) process(x float32) float32 {
	y := b.b0*x + b.b1*b.x1 + b.b2*b.x2 - b.a1*b.y1 - b.a2*b.y2
	b.x2, b.x1 = b.x1, x
	b.y2, b.y1 = b.y1, y
	return y
}

// Processor filters every channel independently through its own biquad
// state, recomputing coefficients once per block from the Frequency/Q
// parameters.
type Processor struct {
	*processor.BaseProcessor

	kind       Type
	sampleRate float64
	sections   []biquad

	frequency *param.Parameter
	q         *param.Parameter
}

// New creates a filter Processor of the given Type, channel count, and
// sample rate.
func New(id uint32, kind Type, channels int, sampleRate float64) *Processor {
	bp, err := processor.NewBaseProcessor(id, "filter", "Filter", channels, channels)
	if err != nil {
		panic(err)
	}
	freq := param.NewFloatParameter(paramFrequency, "frequency", "Frequency", "Hz", 20, 20000, 1000,
		param.LogPreprocessor{Min: 20, Max: 20000, Floor: 20})
	q := param.NewFloatParameter(paramQ, "q", "Q", "", 0.1, 10, 0.707, nil)
	bp.Parameters().Add(freq)
	bp.Parameters().Add(q)
	return &Processor{
		BaseProcessor: bp,
		kind:          kind,
		sampleRate:    sampleRate,
		sections:      make([]biquad, channels),
		frequency:     freq,
		q:             q,
	}
}

func (p *Processor) recompute() {
	freq := p.frequency.DomainValue()
	q := p.q.DomainValue()
	if q <= 0 {
		q = 0.707
	}
	omega := 2.0 * math.Pi * freq / p.sampleRate
	sinOmega, cosOmega := math.Sin(omega), math.Cos(omega)
	alpha := sinOmega / (2.0 * q)

	var b0, b1, b2, a0, a1, a2 float64
	switch p.kind {
	case Highpass:
		b0 = (1.0 + cosOmega) / 2.0
		b1 = -(1.0 + cosOmega)
		b2 = (1.0 + cosOmega) / 2.0
		a0 = 1.0 + alpha
		a1 = -2.0 * cosOmega
		a2 = 1.0 - alpha
	case Bandpass:
		b0 = alpha
		b1 = 0
		b2 = -alpha
		a0 = 1.0 + alpha
		a1 = -2.0 * cosOmega
		a2 = 1.0 - alpha
	default: // Lowpass
		b0 = (1.0 - cosOmega) / 2.0
		b1 = 1.0 - cosOmega
		b2 = (1.0 - cosOmega) / 2.0
		a0 = 1.0 + alpha
		a1 = -2.0 * cosOmega
		a2 = 1.0 - alpha
	}
	for i := range p.sections {
		p.sections[i].setCoefficients(b0, b1, b2, a0, a1, a2)
	}
}

// ProcessAudio recomputes coefficients once, then filters every channel.
func (p *Processor) ProcessAudio(in, out *audio.ChunkSampleBuffer) {
	if p.Bypassed() {
		out.CopyFrom(in)
		return
	}
	p.recompute()
	n := in.ChunkSize()
	for ch := 0; ch < in.NumChannels() && ch < out.NumChannels() && ch < len(p.sections); ch++ {
		src := in.Channel(ch)
		dst := out.Channel(ch)
		sec := &p.sections[ch]
		for i := 0; i < n; i++ {
			dst[i] = sec.process(src[i])
		}
	}
}

// Reset clears filter state on every channel, for use after a bypass
// toggle or a discontinuous parameter jump.
func (p *Processor) Reset() {
	for i := range p.sections {
		p.sections[i] = biquad{}
	}
}
