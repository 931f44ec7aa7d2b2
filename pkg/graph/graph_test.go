package graph

import (
	"testing"

	"github.com/kestrelaudio/corehost/pkg/processor/builtin/gain"
	"github.com/kestrelaudio/corehost/pkg/track"
)

func TestAddTrackThenAddProcessorIndexesBoth(t *testing.T) {
	g := New()
	tr, err := track.New(1, "drums", 1, 64, nil)
	if err != nil {
		t.Fatalf("track.New: %v", err)
	}
	if err := g.AddTrack(tr); err != nil {
		t.Fatalf("AddTrack: %v", err)
	}
	gp := gain.New(2, 2)
	if err := g.AddProcessor(1, gp); err != nil {
		t.Fatalf("AddProcessor: %v", err)
	}
	if _, ok := g.Processor(2); !ok {
		t.Error("processor should be indexed after AddProcessor")
	}
	if _, ok := g.ProcessorByName("drums"); !ok {
		t.Error("track should be indexed by name")
	}
}

func TestRemoveTrackClearsChainProcessorsFromIndex(t *testing.T) {
	g := New()
	tr, _ := track.New(1, "bus", 1, 64, nil)
	g.AddTrack(tr)
	gp := gain.New(2, 2)
	g.AddProcessor(1, gp)

	if !g.RemoveTrack(1) {
		t.Fatal("RemoveTrack should succeed")
	}
	if _, ok := g.Processor(1); ok {
		t.Error("track should be gone from processor index")
	}
	if _, ok := g.Processor(2); ok {
		t.Error("chain member should be gone from processor index")
	}
	if len(g.Tracks()) != 0 {
		t.Errorf("Tracks() length = %d, want 0", len(g.Tracks()))
	}
}

func TestAddTrackRejectsDuplicateID(t *testing.T) {
	g := New()
	tr1, _ := track.New(1, "a", 1, 64, nil)
	tr2, _ := track.New(1, "b", 1, 64, nil)
	if err := g.AddTrack(tr1); err != nil {
		t.Fatalf("AddTrack(tr1): %v", err)
	}
	if err := g.AddTrack(tr2); err == nil {
		t.Error("AddTrack with duplicate ID should fail")
	}
}

func TestAddProcessorToMissingTrackFails(t *testing.T) {
	g := New()
	gp := gain.New(2, 2)
	if err := g.AddProcessor(99, gp); err == nil {
		t.Error("AddProcessor to a missing track should fail")
	}
}
