// Package graph implements AudioGraph, the committed set of tracks and
// processors the audio engine renders each block.
package graph

import (
	"fmt"
	"sync/atomic"

	"github.com/kestrelaudio/corehost/pkg/processor"
	"github.com/kestrelaudio/corehost/pkg/track"
)

// AudioGraph owns the ordered list of tracks and the index of every
// processor belonging to one of their chains. Mutation (AddTrack,
// RemoveTrack, and indirectly AddProcessor/RemoveProcessor on a track)
// happens only on the dispatcher thread; the audio thread reads committed
// snapshots. The track list, the processor index and the name index are
// each published with their own atomic pointer swap, so one mutation may
// swap more than one of them.
type AudioGraph struct {
	tracks    atomic.Pointer[[]*track.Track]
	processor atomic.Pointer[map[uint32]processor.Processor]
	nameIndex atomic.Pointer[map[string]uint32]
}

// New creates an empty AudioGraph.
func New() *AudioGraph {
	g := &AudioGraph{}
	empty := []*track.Track{}
	g.tracks.Store(&empty)
	procs := map[uint32]processor.Processor{}
	g.processor.Store(&procs)
	names := map[string]uint32{}
	g.nameIndex.Store(&names)
	return g
}

// Tracks returns a snapshot of the current track list in render order.
func (g *AudioGraph) Tracks() []*track.Track {
	return *g.tracks.Load()
}

// Processor looks up a processor (track or chain member) by ID.
func (g *AudioGraph) Processor(id uint32) (processor.Processor, bool) {
	procs := *g.processor.Load()
	p, ok := procs[id]
	return p, ok
}

// ProcessorByName looks up a track by its unique name. Only tracks are
// indexed by name; chain processors are not found by this lookup.
func (g *AudioGraph) ProcessorByName(name string) (processor.Processor, bool) {
	names := *g.nameIndex.Load()
	id, ok := names[name]
	if !ok {
		return nil, false
	}
	return g.Processor(id)
}

// AddTrack appends a track to the graph and indexes it as a processor,
// returning an error if its ID or name is already present. Called only on
// the dispatcher thread.
func (g *AudioGraph) AddTrack(t *track.Track) error {
	procs := *g.processor.Load()
	if _, exists := procs[t.ID()]; exists {
		return fmt.Errorf("graph: processor id %d already present", t.ID())
	}
	names := *g.nameIndex.Load()
	if _, exists := names[t.Name()]; exists {
		return fmt.Errorf("graph: name %q already present", t.Name())
	}

	oldTracks := *g.tracks.Load()
	newTracks := make([]*track.Track, len(oldTracks)+1)
	copy(newTracks, oldTracks)
	newTracks[len(oldTracks)] = t

	newProcs := cloneProcMap(procs)
	newProcs[t.ID()] = t
	newNames := cloneNameMap(names)
	newNames[t.Name()] = t.ID()

	g.tracks.Store(&newTracks)
	g.processor.Store(&newProcs)
	g.nameIndex.Store(&newNames)
	return nil
}

// RemoveTrack removes the track with the given ID, returning false if not
// found. Child processors already in the track's chain are removed from
// the processor index along with it.
func (g *AudioGraph) RemoveTrack(id uint32) bool {
	oldTracks := *g.tracks.Load()
	idx := -1
	for i, t := range oldTracks {
		if t.ID() == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}
	removed := oldTracks[idx]

	newTracks := make([]*track.Track, 0, len(oldTracks)-1)
	newTracks = append(newTracks, oldTracks[:idx]...)
	newTracks = append(newTracks, oldTracks[idx+1:]...)

	newProcs := cloneProcMap(*g.processor.Load())
	delete(newProcs, removed.ID())
	for _, p := range removed.Chain() {
		delete(newProcs, p.ID())
	}
	newNames := cloneNameMap(*g.nameIndex.Load())
	delete(newNames, removed.Name())

	g.tracks.Store(&newTracks)
	g.processor.Store(&newProcs)
	g.nameIndex.Store(&newNames)
	return true
}

// AddProcessor adds p to track trackID's chain and indexes it, returning
// an error if the track is missing, the ID collides, or the track
// rejects the add (duplicate ID within its own chain).
func (g *AudioGraph) AddProcessor(trackID uint32, p processor.Processor) error {
	procs := *g.processor.Load()
	if _, exists := procs[p.ID()]; exists {
		return fmt.Errorf("graph: processor id %d already present", p.ID())
	}
	var target *track.Track
	for _, t := range *g.tracks.Load() {
		if t.ID() == trackID {
			target = t
			break
		}
	}
	if target == nil {
		return fmt.Errorf("graph: track %d not found", trackID)
	}
	if !target.Add(p) {
		return fmt.Errorf("graph: track %d rejected processor %d", trackID, p.ID())
	}
	newProcs := cloneProcMap(procs)
	newProcs[p.ID()] = p
	g.processor.Store(&newProcs)
	return nil
}

// RemoveProcessor removes the processor with the given ID from whichever
// track owns it, returning false if not found on any track.
func (g *AudioGraph) RemoveProcessor(id uint32) bool {
	for _, t := range *g.tracks.Load() {
		if t.Remove(id) {
			newProcs := cloneProcMap(*g.processor.Load())
			delete(newProcs, id)
			g.processor.Store(&newProcs)
			return true
		}
	}
	return false
}

func cloneProcMap(m map[uint32]processor.Processor) map[uint32]processor.Processor {
	out := make(map[uint32]processor.Processor, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneNameMap(m map[string]uint32) map[string]uint32 {
	out := make(map[string]uint32, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}
