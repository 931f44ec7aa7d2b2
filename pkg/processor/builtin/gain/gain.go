// Package gain provides a built-in linear gain Processor.
package gain

import (
	"math"

	"github.com/kestrelaudio/corehost/pkg/audio"
	"github.com/kestrelaudio/corehost/pkg/param"
	"github.com/kestrelaudio/corehost/pkg/processor"
	"github.com/kestrelaudio/corehost/pkg/rtevent"
)

const (
	paramGainDB uint32 = 1

	minDB = -60.0
	maxDB = 12.0
)

// Processor applies a single smoothed gain stage across every channel.
// The "gain" parameter is expressed in dB and converted to linear once per
// sample to avoid any zipper noise from stepped automation.
type Processor struct {
	*processor.BaseProcessor
	gainDB *param.SmoothedParameter
}

// New creates a gain Processor with the given channel count.
func New(id uint32, channels int) *Processor {
	bp, err := processor.NewBaseProcessor(id, "gain", "Gain", channels, channels)
	if err != nil {
		panic(err) // NewBaseProcessor rejects a channel count above processor.MaxChannels
	}
	p := param.NewFloatParameter(paramGainDB, "gain", "Gain", "dB", minDB, maxDB, 0, nil)
	bp.Parameters().Add(p)
	return &Processor{
		BaseProcessor: bp,
		gainDB:        param.NewSmoothedParameter(p, param.ExponentialSmoothing, 0.995),
	}
}

// ProcessEvent routes ParameterChange events for "gain" through the
// smoother's target instead of snapping the raw value, so RT-delivered
// automation ramps instead of zippering.
func (p *Processor) ProcessEvent(e rtevent.RtEvent) {
	if e.Kind == rtevent.KindParameterChange && e.Param == paramGainDB {
		switch rtevent.ParamMode(e.ByteValue[0]) {
		case rtevent.ParamModeDomainAbsolute:
			p.gainDB.SetDomainValue(e.Value)
		case rtevent.ParamModeDomainRelative:
			p.gainDB.SetDomainValue(p.gainDB.DomainValue() + e.Value)
		default:
			p.gainDB.SetDomainValue(p.gainDB.Preprocessor.ToDomain(e.Value))
		}
		return
	}
	p.BaseProcessor.ProcessEvent(e)
}

// ProcessAudio applies the current smoothed gain to every channel.
func (p *Processor) ProcessAudio(in, out *audio.ChunkSampleBuffer) {
	if p.Bypassed() {
		out.CopyFrom(in)
		return
	}
	n := in.ChunkSize()
	for i := 0; i < n; i++ {
		db := p.gainDB.NextSmoothed()
		linear := float32(math.Pow(10, db/20.0))
		for ch := 0; ch < in.NumChannels() && ch < out.NumChannels(); ch++ {
			out.Channel(ch)[i] = in.Channel(ch)[i] * linear
		}
	}
}
