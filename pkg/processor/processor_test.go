package processor

import (
	"math"
	"testing"

	"github.com/kestrelaudio/corehost/pkg/audio"
	"github.com/kestrelaudio/corehost/pkg/param"
	"github.com/kestrelaudio/corehost/pkg/rtevent"
)

func TestBaseProcessorRejectsExcessiveChannelCount(t *testing.T) {
	if _, err := NewBaseProcessor(1, "p", "P", MaxChannels+1, 2); err == nil {
		t.Error("expected error for input channel count over MaxChannels")
	}
}

func TestBaseProcessorDefaultBypassCopiesByteExact(t *testing.T) {
	bp, err := NewBaseProcessor(1, "p", "P", 2, 2)
	if err != nil {
		t.Fatalf("NewBaseProcessor: %v", err)
	}
	in := audio.NewChunkSampleBuffer(2, 8)
	for i := range in.Channel(0) {
		in.Channel(0)[i] = float32(i)
		in.Channel(1)[i] = float32(-i)
	}
	out := audio.NewChunkSampleBuffer(2, 8)
	bp.ProcessAudio(in, out)
	for i := range in.Channel(0) {
		if out.Channel(0)[i] != in.Channel(0)[i] || out.Channel(1)[i] != in.Channel(1)[i] {
			t.Fatalf("bypass copy not byte-exact at sample %d", i)
		}
	}
}

func TestBaseProcessorParameterChangeEventUpdatesValue(t *testing.T) {
	bp, _ := NewBaseProcessor(1, "p", "P", 2, 2)
	p := param.NewFloatParameter(7, "mix", "Mix", "", 0, 1, 0.5, nil)
	if err := bp.Parameters().Add(p); err != nil {
		t.Fatalf("Add: %v", err)
	}
	bp.ProcessEvent(rtevent.ParameterChange(bp.ID(), 7, 1.0, 0))
	if got := p.NormalizedValue(); got != 1.0 {
		t.Errorf("NormalizedValue() = %v, want 1.0", got)
	}
}

func TestBaseProcessorDomainAbsoluteEventSetsDomainValue(t *testing.T) {
	bp, _ := NewBaseProcessor(1, "p", "P", 2, 2)
	p := param.NewFloatParameter(7, "gain", "Gain", "dB", -60, 12, 0, nil)
	bp.Parameters().Add(p)
	bp.ProcessEvent(rtevent.ParameterChangeDomain(bp.ID(), 7, -6, 0))
	if got := p.DomainValue(); got != -6 {
		t.Errorf("DomainValue() = %v, want -6", got)
	}
}

func TestBaseProcessorDomainRelativeEventAccumulates(t *testing.T) {
	bp, _ := NewBaseProcessor(1, "p", "P", 2, 2)
	p := param.NewFloatParameter(7, "gain", "Gain", "dB", -60, 12, -6, nil)
	bp.Parameters().Add(p)
	bp.ProcessEvent(rtevent.ParameterChangeDomainDelta(bp.ID(), 7, 2, 0))
	if got := p.DomainValue(); math.Abs(got-(-4)) > 1e-9 {
		t.Errorf("DomainValue() = %v, want -4", got)
	}
}

func TestBaseProcessorDomainRelativeEventClipsAtMax(t *testing.T) {
	bp, _ := NewBaseProcessor(1, "p", "P", 2, 2)
	p := param.NewFloatParameter(7, "gain", "Gain", "dB", -60, 12, 10, nil)
	bp.Parameters().Add(p)
	bp.ProcessEvent(rtevent.ParameterChangeDomainDelta(bp.ID(), 7, 100, 0))
	if got := p.DomainValue(); got != 12 {
		t.Errorf("DomainValue() = %v, want clipped to 12", got)
	}
}

func TestBaseProcessorStringPropertyEventPublishesValue(t *testing.T) {
	bp, _ := NewBaseProcessor(1, "p", "P", 2, 2)
	p := param.NewPropertyParameter(9, "preset-name", "Preset", param.KindStringProperty)
	bp.Parameters().Add(p)
	bp.ProcessEvent(rtevent.StringProperty(bp.ID(), 9, "Warm Pad", 0))
	if got := p.Property().Str; got != "Warm Pad" {
		t.Errorf("Property().Str = %q, want %q", got, "Warm Pad")
	}
}

func TestBaseProcessorDataPropertyEventPublishesValue(t *testing.T) {
	bp, _ := NewBaseProcessor(1, "p", "P", 2, 2)
	p := param.NewPropertyParameter(9, "state", "State", param.KindDataProperty)
	bp.Parameters().Add(p)
	bp.ProcessEvent(rtevent.DataProperty(bp.ID(), 9, []byte{1, 2, 3}, 0))
	got := p.Property().Data
	if len(got) != 3 || got[0] != 1 || got[1] != 2 || got[2] != 3 {
		t.Errorf("Property().Data = %v, want [1 2 3]", got)
	}
}

func TestBaseProcessorIgnoresUnknownEventKind(t *testing.T) {
	bp, _ := NewBaseProcessor(1, "p", "P", 2, 2)
	p := param.NewFloatParameter(7, "mix", "Mix", "", 0, 1, 0.5, nil)
	bp.Parameters().Add(p)
	bp.ProcessEvent(rtevent.RtEvent{Kind: rtevent.KindNoteOn, Target: bp.ID()})
	if got := p.NormalizedValue(); got != 0.5 {
		t.Errorf("unrelated event kind should not alter parameter value, got %v", got)
	}
}
