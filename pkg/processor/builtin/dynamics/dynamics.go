// Package dynamics provides a built-in feed-forward compressor Processor,
// adapted from a general DSP compressor algorithm onto the engine's
// Processor/parameter contract.
package dynamics

import (
	"math"

	"github.com/kestrelaudio/corehost/pkg/audio"
	"github.com/kestrelaudio/corehost/pkg/param"
	"github.com/kestrelaudio/corehost/pkg/processor"
)

const (
	paramThresholdDB uint32 = 1
	paramRatio       uint32 = 2
	paramAttackMS    uint32 = 3
	paramReleaseMS   uint32 = 4
	paramMakeupDB    uint32 = 5
)

// Processor is a per-channel feed-forward compressor: a peak envelope
// follower drives gain reduction above Threshold at Ratio:1, with one-pole
// exponential attack/release smoothing and a makeup gain stage.
type Processor struct {
	*processor.BaseProcessor

	sampleRate float64
	envelope   []float64 // per-channel envelope state
	lastGainDB []float64 // per-channel gain reduction, for metering

	threshold *param.Parameter
	ratio     *param.Parameter
	attackMS  *param.Parameter
	releaseMS *param.Parameter
	makeupDB  *param.Parameter
}

// New creates a compressor Processor for the given channel count and
// sample rate.
func New(id uint32, channels int, sampleRate float64) *Processor {
	bp, err := processor.NewBaseProcessor(id, "dynamics", "Compressor", channels, channels)
	if err != nil {
		panic(err)
	}
	p := &Processor{
		BaseProcessor: bp,
		sampleRate:    sampleRate,
		envelope:      make([]float64, channels),
		lastGainDB:    make([]float64, channels),
		threshold:     param.NewFloatParameter(paramThresholdDB, "threshold", "Threshold", "dB", -60, 0, -20, nil),
		ratio:         param.NewFloatParameter(paramRatio, "ratio", "Ratio", ":1", 1, 20, 4, nil),
		attackMS:      param.NewFloatParameter(paramAttackMS, "attack", "Attack", "ms", 0.1, 100, 5, nil),
		releaseMS:     param.NewFloatParameter(paramReleaseMS, "release", "Release", "ms", 1, 1000, 50, nil),
		makeupDB:      param.NewFloatParameter(paramMakeupDB, "makeup", "Makeup", "dB", 0, 24, 0, nil),
	}
	for _, prm := range []*param.Parameter{p.threshold, p.ratio, p.attackMS, p.releaseMS, p.makeupDB} {
		bp.Parameters().Add(prm)
	}
	return p
}

// GainReductionDB reports the most recent gain reduction applied to
// channel ch, for metering.
func (p *Processor) GainReductionDB(ch int) float64 {
	return p.lastGainDB[ch]
}

// computeGain returns the gain reduction in dB for a given input level in
// dB, using a hard knee at Threshold.
func (p *Processor) computeGain(inputDB, threshold, ratio float64) float64 {
	if inputDB <= threshold {
		return 0
	}
	return (inputDB - threshold) * (1.0 - 1.0/ratio)
}

// ProcessAudio runs an independent envelope follower per channel.
func (p *Processor) ProcessAudio(in, out *audio.ChunkSampleBuffer) {
	if p.Bypassed() {
		out.CopyFrom(in)
		return
	}
	threshold := p.threshold.DomainValue()
	ratio := math.Max(1.0, p.ratio.DomainValue())
	attackCoeff := timeConstantCoeff(p.attackMS.DomainValue()/1000.0, p.sampleRate)
	releaseCoeff := timeConstantCoeff(p.releaseMS.DomainValue()/1000.0, p.sampleRate)
	makeup := math.Pow(10, p.makeupDB.DomainValue()/20.0)

	n := in.ChunkSize()
	for ch := 0; ch < in.NumChannels() && ch < out.NumChannels() && ch < len(p.envelope); ch++ {
		src := in.Channel(ch)
		dst := out.Channel(ch)
		env := p.envelope[ch]
		for i := 0; i < n; i++ {
			rectified := math.Abs(float64(src[i]))
			if rectified > env {
				env += (rectified - env) * (1 - attackCoeff)
			} else {
				env += (rectified - env) * (1 - releaseCoeff)
			}
			inputDB := -96.0
			if env > 0 {
				inputDB = 20.0 * math.Log10(env)
			}
			reductionDB := p.computeGain(inputDB, threshold, ratio)
			p.lastGainDB[ch] = reductionDB
			gain := math.Pow(10, (-reductionDB)/20.0) * makeup
			dst[i] = src[i] * float32(gain)
		}
		p.envelope[ch] = env
	}
}

// timeConstantCoeff converts a time constant in seconds to a one-pole
// smoothing coefficient for the given sample rate.
func timeConstantCoeff(seconds, sampleRate float64) float64 {
	if seconds <= 0 {
		return 0
	}
	return math.Exp(-1.0 / (seconds * sampleRate))
}
