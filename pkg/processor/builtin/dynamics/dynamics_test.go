package dynamics

import (
	"testing"

	"github.com/kestrelaudio/corehost/pkg/audio"
)

func TestCompressorReducesGainAboveThreshold(t *testing.T) {
	p := New(1, 1, 48000)
	p.threshold.SetDomainValue(-20)
	p.ratio.SetDomainValue(4)
	p.attackMS.SetDomainValue(0.1)
	p.releaseMS.SetDomainValue(50)

	in := audio.NewChunkSampleBuffer(1, 64)
	for i := range in.Channel(0) {
		in.Channel(0)[i] = 1.0 // 0 dBFS, well above -20dB threshold
	}
	out := audio.NewChunkSampleBuffer(1, 64)
	for block := 0; block < 20; block++ {
		p.ProcessAudio(in, out)
	}
	if out.Channel(0)[63] >= in.Channel(0)[63] {
		t.Errorf("compressor should attenuate signal above threshold: out=%v in=%v", out.Channel(0)[63], in.Channel(0)[63])
	}
	if p.GainReductionDB(0) <= 0 {
		t.Errorf("GainReductionDB should report positive reduction, got %v", p.GainReductionDB(0))
	}
}

func TestCompressorLeavesQuietSignalUnchanged(t *testing.T) {
	p := New(1, 1, 48000)
	p.threshold.SetDomainValue(-6)

	in := audio.NewChunkSampleBuffer(1, 64)
	for i := range in.Channel(0) {
		in.Channel(0)[i] = 0.001 // far below threshold
	}
	out := audio.NewChunkSampleBuffer(1, 64)
	for block := 0; block < 10; block++ {
		p.ProcessAudio(in, out)
	}
	if p.GainReductionDB(0) != 0 {
		t.Errorf("signal below threshold should see no gain reduction, got %v", p.GainReductionDB(0))
	}
}
