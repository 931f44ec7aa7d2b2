package corehost

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/kestrelaudio/corehost/pkg/audio"
	"github.com/kestrelaudio/corehost/pkg/midi"
	"github.com/kestrelaudio/corehost/pkg/rtevent"
	"github.com/kestrelaudio/corehost/pkg/track"
)

func newTestController(t *testing.T) (*Engine, Controller) {
	t.Helper()
	e, err := NewEngine(EngineConfig{ChunkSize: 64})
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	e.Start()
	d := NewDispatcher(e, &PanicErrorHandler{})
	d.Start()
	t.Cleanup(d.Stop)
	table := midi.NewConnectionTable()
	return e, NewController(e, d, table, midi.NewDispatcher(table, nil), nil)
}

func TestAddTrackThenDeleteTrackRoundTrips(t *testing.T) {
	e, c := newTestController(t)

	id, status := c.AddTrack("lead", 1)
	if status != ControlOK {
		t.Fatalf("AddTrack status = %v, want ControlOK", status)
	}
	if _, ok := e.Graph().Processor(uint32(id)); !ok {
		t.Fatal("track missing from graph after AddTrack")
	}

	if status := c.DeleteTrack(id); status != ControlOK {
		t.Fatalf("DeleteTrack status = %v, want ControlOK", status)
	}
	if _, ok := e.Graph().Processor(uint32(id)); ok {
		t.Fatal("track still present after DeleteTrack")
	}
}

func TestDeleteTrackNotFoundReturnsNotFound(t *testing.T) {
	_, c := newTestController(t)
	if status := c.DeleteTrack(ObjectId(999)); status != ControlNotFound {
		t.Errorf("status = %v, want ControlNotFound", status)
	}
}

func TestCreateProcessorOnTrackUnknownKindIsUnsupported(t *testing.T) {
	_, c := newTestController(t)
	trackID, status := c.AddTrack("t1", 1)
	if status != ControlOK {
		t.Fatalf("AddTrack failed: %v", status)
	}
	if _, status := c.CreateProcessorOnTrack(trackID, "no-such-plugin"); status != ControlUnsupportedOperation {
		t.Errorf("status = %v, want ControlUnsupportedOperation", status)
	}
}

func TestCreateProcessorOnTrackBuiltinSucceeds(t *testing.T) {
	e, c := newTestController(t)
	trackID, status := c.AddTrack("t1", 1)
	if status != ControlOK {
		t.Fatalf("AddTrack failed: %v", status)
	}
	procID, status := c.CreateProcessorOnTrack(trackID, "passthrough")
	if status != ControlOK {
		t.Fatalf("CreateProcessorOnTrack status = %v, want ControlOK", status)
	}
	if _, ok := e.Graph().Processor(uint32(procID)); !ok {
		t.Fatal("processor missing from graph")
	}
}

func TestMoveProcessorMovesBetweenTracks(t *testing.T) {
	e, c := newTestController(t)
	trackA, _ := c.AddTrack("a", 1)
	trackB, _ := c.AddTrack("b", 1)
	procID, status := c.CreateProcessorOnTrack(trackA, "passthrough")
	if status != ControlOK {
		t.Fatalf("CreateProcessorOnTrack failed: %v", status)
	}

	if status := c.MoveProcessor(procID, trackB); status != ControlOK {
		t.Fatalf("MoveProcessor status = %v, want ControlOK", status)
	}

	pa, _ := e.Graph().Processor(uint32(trackA))
	pb, _ := e.Graph().Processor(uint32(trackB))
	trA, trB := pa.(*track.Track), pb.(*track.Track)
	for _, p := range trA.Chain() {
		if p.ID() == uint32(procID) {
			t.Fatal("processor still present on source track after move")
		}
	}
	found := false
	for _, p := range trB.Chain() {
		if p.ID() == uint32(procID) {
			found = true
		}
	}
	if !found {
		t.Fatal("processor not present on destination track after move")
	}
}

func TestSetParameterValueOutOfRangeRejected(t *testing.T) {
	_, c := newTestController(t)
	trackID, _ := c.AddTrack("t1", 1)
	procID, status := c.CreateProcessorOnTrack(trackID, "passthrough")
	if status != ControlOK {
		t.Fatalf("CreateProcessorOnTrack failed: %v", status)
	}
	if status := c.SetParameterValue(procID, ObjectId(1), 1.5); status != ControlOutOfRange {
		t.Errorf("status = %v, want ControlOutOfRange", status)
	}
}

func TestSetParameterValueUnknownProcessorNotFound(t *testing.T) {
	_, c := newTestController(t)
	if status := c.SetParameterValue(ObjectId(999), ObjectId(1), 0.5); status != ControlNotFound {
		t.Errorf("status = %v, want ControlNotFound", status)
	}
}

func TestConnectKeyboardInputToTrackRejectsInvalidChannel(t *testing.T) {
	_, c := newTestController(t)
	trackID, _ := c.AddTrack("t1", 1)
	if status := c.ConnectKeyboardInputToTrack(0, 99, trackID, false); status != ControlOutOfRange {
		t.Errorf("status = %v, want ControlOutOfRange", status)
	}
}

func TestTracksReturnsSnapshotInRenderOrder(t *testing.T) {
	_, c := newTestController(t)
	a, _ := c.AddTrack("a", 1)
	b, _ := c.AddTrack("b", 1)

	snap := c.Tracks()
	if len(snap) != 2 {
		t.Fatalf("len(Tracks()) = %d, want 2", len(snap))
	}
	if snap[0].ID != a || snap[0].Name != "a" || snap[1].ID != b || snap[1].Name != "b" {
		t.Errorf("Tracks() = %+v, want a then b", snap)
	}
}

func TestProcessorsReturnsChainSnapshot(t *testing.T) {
	_, c := newTestController(t)
	trackID, _ := c.AddTrack("t1", 1)
	procID, status := c.CreateProcessorOnTrack(trackID, "gain")
	if status != ControlOK {
		t.Fatalf("CreateProcessorOnTrack failed: %v", status)
	}

	snap, status := c.Processors(trackID)
	if status != ControlOK {
		t.Fatalf("Processors status = %v, want ControlOK", status)
	}
	if len(snap) != 1 || snap[0].ID != procID || snap[0].Name != "gain" {
		t.Errorf("Processors() = %+v, want one gain processor with id %v", snap, procID)
	}
}

func TestProcessorsUnknownTrackNotFound(t *testing.T) {
	_, c := newTestController(t)
	if _, status := c.Processors(ObjectId(999)); status != ControlNotFound {
		t.Errorf("status = %v, want ControlNotFound", status)
	}
}

func TestParameterValueReflectsSetParameterValue(t *testing.T) {
	e, c := newTestController(t)
	trackID, _ := c.AddTrack("t1", 1)
	procID, status := c.CreateProcessorOnTrack(trackID, "gain")
	if status != ControlOK {
		t.Fatalf("CreateProcessorOnTrack failed: %v", status)
	}
	if status := c.SetParameterValue(procID, ObjectId(1), 0.75); status != ControlOK {
		t.Fatalf("SetParameterValue status = %v, want ControlOK", status)
	}
	// The write reaches the parameter in the block that drains its event.
	deadline := time.Now().Add(time.Second)
	for e.InputFifo().Len() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	e.ProcessChunk(audio.NewChunkSampleBuffer(2, e.ChunkSize()), audio.NewChunkSampleBuffer(2, e.ChunkSize()), 0)
	if v, status := c.ParameterValue(procID, ObjectId(1)); status != ControlOK || v != 0.75 {
		t.Errorf("ParameterValue() = (%v, %v), want (0.75, ControlOK)", v, status)
	}
}

func TestMidiConnectionsReflectsConnectCCToParameter(t *testing.T) {
	_, c := newTestController(t)
	trackID, _ := c.AddTrack("t1", 1)
	procID, status := c.CreateProcessorOnTrack(trackID, "gain")
	if status != ControlOK {
		t.Fatalf("CreateProcessorOnTrack failed: %v", status)
	}
	if status := c.ConnectCCToParameter(0, 0, 1, procID, ObjectId(1), -60, 12, false); status != ControlOK {
		t.Fatalf("ConnectCCToParameter status = %v, want ControlOK", status)
	}

	conns := c.MidiConnections()
	found := false
	for _, conn := range conns {
		if conn.Kind == midi.ConnectionCC && conn.ProcessorID == uint32(procID) && conn.ParameterID == 1 {
			found = true
		}
	}
	if !found {
		t.Errorf("MidiConnections() = %+v, want a CC entry for processor %v", conns, procID)
	}
}

func TestRunAsyncWorkReportsCompletionToPosters(t *testing.T) {
	e, err := NewEngine(EngineConfig{ChunkSize: 64})
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	e.Start()
	d := NewDispatcher(e, &PanicErrorHandler{})
	d.Start()
	t.Cleanup(d.Stop)
	table := midi.NewConnectionTable()
	c := NewController(e, d, table, midi.NewDispatcher(table, nil), nil)

	done := make(chan *Event, 1)
	if status := d.RegisterPoster(0, func(ev *Event) {
		if ev.Kind == rtevent.KindAsyncWorkComplete {
			done <- ev
		}
	}); status != PosterOK {
		t.Fatalf("RegisterPoster status = %v, want PosterOK", status)
	}

	id, status := c.RunAsyncWork(func() error { return nil })
	if status != ControlOK {
		t.Fatalf("RunAsyncWork status = %v, want ControlOK", status)
	}

	select {
	case ev := <-done:
		if ev.Target != id {
			t.Errorf("completion Target = %v, want %v", ev.Target, id)
		}
		if CompletionStatus(ev.IntValue) != CompletionOK {
			t.Errorf("completion status = %v, want CompletionOK", ev.IntValue)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for async work completion")
	}
}

func TestSetParameterPropertyUnknownProcessorNotFound(t *testing.T) {
	_, c := newTestController(t)
	if status := c.SetParameterProperty(ObjectId(999), ObjectId(1), "x", nil); status != ControlNotFound {
		t.Errorf("status = %v, want ControlNotFound", status)
	}
}

func TestConcurrentControllerMutationsDoNotRace(t *testing.T) {
	_, c := newTestController(t)

	const numTracks = 8
	trackIDs := make([]ObjectId, numTracks)
	for i := range trackIDs {
		id, status := c.AddTrack(fmt.Sprintf("track-%d", i), 1)
		if status != ControlOK {
			t.Fatalf("AddTrack failed: %v", status)
		}
		trackIDs[i] = id
	}

	const numGoroutines = 20
	const opsPerGoroutine = 25
	var wg sync.WaitGroup
	start := time.Now()
	for g := 0; g < numGoroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for op := 0; op < opsPerGoroutine; op++ {
				trackID := trackIDs[op%numTracks]
				procID, status := c.CreateProcessorOnTrack(trackID, "passthrough")
				if status != ControlOK {
					continue
				}
				c.SetParameterValue(procID, ObjectId(1), float64(op%2))
				c.DeleteProcessor(procID)
			}
		}(g)
	}
	wg.Wait()
	elapsed := time.Since(start)
	t.Logf("%d concurrent controller operations in %v", numGoroutines*opsPerGoroutine*3, elapsed)
}
