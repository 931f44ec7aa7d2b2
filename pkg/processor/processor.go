// Package processor defines the Processor contract every audio node,
// built-in or hosted plugin, obeys, and BaseProcessor, the embeddable
// struct most concrete processors build on.
package processor

import (
	"fmt"

	"github.com/kestrelaudio/corehost/pkg/audio"
	"github.com/kestrelaudio/corehost/pkg/param"
	"github.com/kestrelaudio/corehost/pkg/rtevent"
)

// MaxChannels bounds a Processor's input/output channel count.
const MaxChannels = 64

// Processor is the uniform contract every audio node obeys. ProcessAudio
// is called exactly once per block on the audio thread, only when the
// processor is enabled; it must not allocate, lock, or block. ProcessEvent
// is called once per addressed RtEvent, before ProcessAudio, on the same
// thread.
type Processor interface {
	ID() uint32
	Name() string
	Label() string

	InputChannels() int
	OutputChannels() int
	SetInputChannels(n int) error
	SetOutputChannels(n int) error

	Bypassed() bool
	SetBypassed(bool)
	Enabled() bool
	SetEnabled(bool)

	Parameters() *param.Registry

	ProcessEvent(e rtevent.RtEvent)
	ProcessAudio(in, out *audio.ChunkSampleBuffer)
}

// BaseProcessor implements the bookkeeping and default bypass/parameter
// handling common to every Processor. Concrete processors embed
// *BaseProcessor and override ProcessAudio (and ProcessEvent, if they need
// more than parameter-change handling).
type BaseProcessor struct {
	id    uint32
	name  string
	label string

	inputChannels  int
	outputChannels int

	bypassed bool
	enabled  bool

	params *param.Registry
}

// NewBaseProcessor constructs a BaseProcessor ready to embed. Channel
// counts are validated against MaxChannels.
func NewBaseProcessor(id uint32, name, label string, inputChannels, outputChannels int) (*BaseProcessor, error) {
	if inputChannels < 0 || inputChannels > MaxChannels {
		return nil, fmt.Errorf("processor %q: input channels %d exceeds max %d", name, inputChannels, MaxChannels)
	}
	if outputChannels < 0 || outputChannels > MaxChannels {
		return nil, fmt.Errorf("processor %q: output channels %d exceeds max %d", name, outputChannels, MaxChannels)
	}
	return &BaseProcessor{
		id: id, name: name, label: label,
		inputChannels: inputChannels, outputChannels: outputChannels,
		enabled: true,
		params:  param.NewRegistry(),
	}, nil
}

func (b *BaseProcessor) ID() uint32    { return b.id }
func (b *BaseProcessor) Name() string  { return b.name }
func (b *BaseProcessor) Label() string { return b.label }

func (b *BaseProcessor) InputChannels() int  { return b.inputChannels }
func (b *BaseProcessor) OutputChannels() int { return b.outputChannels }

// SetInputChannels reconfigures the input channel count. Invoked only
// during dispatcher-serialized reconfiguration, never concurrently with
// ProcessAudio.
func (b *BaseProcessor) SetInputChannels(n int) error {
	if n < 0 || n > MaxChannels {
		return fmt.Errorf("processor %q: input channels %d exceeds max %d", b.name, n, MaxChannels)
	}
	b.inputChannels = n
	return nil
}

func (b *BaseProcessor) SetOutputChannels(n int) error {
	if n < 0 || n > MaxChannels {
		return fmt.Errorf("processor %q: output channels %d exceeds max %d", b.name, n, MaxChannels)
	}
	b.outputChannels = n
	return nil
}

func (b *BaseProcessor) Bypassed() bool     { return b.bypassed }
func (b *BaseProcessor) SetBypassed(v bool) { b.bypassed = v }
func (b *BaseProcessor) Enabled() bool      { return b.enabled }
func (b *BaseProcessor) SetEnabled(v bool)  { b.enabled = v }

func (b *BaseProcessor) Parameters() *param.Registry { return b.params }

// ProcessEvent implements the default parameter-change and property
// handling. A ParameterChange event addressed to a known parameter ID
// updates that parameter per its ParamMode (ByteValue[0]):
// ParamModeNormalized writes Value as a normalized [0,1] value,
// ParamModeDomainAbsolute writes Value as a domain-unit value, and
// ParamModeDomainRelative adds Value to the parameter's current domain
// value before writing. A StringProperty/DataProperty event addressed to a
// known parameter ID publishes its Property. Every other event kind is
// ignored. Concrete processors that need NoteOn/NoteOff or other handling
// should call this as a fallback after handling their own kinds.
func (b *BaseProcessor) ProcessEvent(e rtevent.RtEvent) {
	p := b.params.Get(e.Param)
	if p == nil {
		return
	}
	switch e.Kind {
	case rtevent.KindParameterChange:
		switch rtevent.ParamMode(e.ByteValue[0]) {
		case rtevent.ParamModeDomainAbsolute:
			p.SetDomainValue(e.Value)
		case rtevent.ParamModeDomainRelative:
			p.SetDomainValue(p.DomainValue() + e.Value)
		default:
			p.SetNormalizedValue(e.Value)
		}
	case rtevent.KindStringProperty, rtevent.KindDataProperty:
		if e.Property != nil {
			p.SetProperty(e.Property)
		}
	}
}

// ProcessAudio implements the default bypass behavior: copy in to out
// channel-for-channel, or silence any channel that has no matching input
// channel. Concrete processors override this for their actual DSP and
// call it only from their own bypass branch.
func (b *BaseProcessor) ProcessAudio(in, out *audio.ChunkSampleBuffer) {
	out.CopyFrom(in)
}
