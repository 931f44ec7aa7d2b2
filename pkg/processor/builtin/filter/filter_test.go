package filter

import (
	"math"
	"testing"

	"github.com/kestrelaudio/corehost/pkg/audio"
)

func rms(buf []float32) float64 {
	var sum float64
	for _, v := range buf {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum / float64(len(buf)))
}

func TestLowpassAttenuatesHighFrequency(t *testing.T) {
	const sr = 48000.0
	p := New(1, Lowpass, 1, sr)
	p.frequency.SetDomainValue(200)
	p.q.SetDomainValue(0.707)

	in := audio.NewChunkSampleBuffer(1, 1024)
	freq := 10000.0 // well above cutoff
	for i := range in.Channel(0) {
		in.Channel(0)[i] = float32(math.Sin(2 * math.Pi * freq * float64(i) / sr))
	}
	out := audio.NewChunkSampleBuffer(1, 1024)
	p.ProcessAudio(in, out)

	if rms(out.Channel(0)) >= 0.5*rms(in.Channel(0)) {
		t.Errorf("lowpass should substantially attenuate a 10kHz tone with 200Hz cutoff: in rms=%v out rms=%v",
			rms(in.Channel(0)), rms(out.Channel(0)))
	}
}

func TestHighpassPassesHighFrequency(t *testing.T) {
	const sr = 48000.0
	p := New(1, Highpass, 1, sr)
	p.frequency.SetDomainValue(200)

	in := audio.NewChunkSampleBuffer(1, 1024)
	freq := 10000.0
	for i := range in.Channel(0) {
		in.Channel(0)[i] = float32(math.Sin(2 * math.Pi * freq * float64(i) / sr))
	}
	out := audio.NewChunkSampleBuffer(1, 1024)
	p.ProcessAudio(in, out)

	if rms(out.Channel(0)) <= 0.7*rms(in.Channel(0)) {
		t.Errorf("highpass should pass a 10kHz tone with 200Hz cutoff largely unattenuated: in rms=%v out rms=%v",
			rms(in.Channel(0)), rms(out.Channel(0)))
	}
}

func TestFilterBypassCopiesThrough(t *testing.T) {
	p := New(1, Lowpass, 1, 48000)
	p.SetBypassed(true)
	in := audio.NewChunkSampleBuffer(1, 4)
	in.Channel(0)[0] = 0.5
	out := audio.NewChunkSampleBuffer(1, 4)
	p.ProcessAudio(in, out)
	if out.Channel(0)[0] != 0.5 {
		t.Errorf("bypassed filter should copy through, got %v", out.Channel(0)[0])
	}
}
