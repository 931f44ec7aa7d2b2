package corehost

import (
	"github.com/kestrelaudio/corehost/pkg/midi"
	"github.com/kestrelaudio/corehost/pkg/perf"
	"github.com/kestrelaudio/corehost/pkg/processor"
	"github.com/kestrelaudio/corehost/pkg/processor/builtin/dynamics"
	"github.com/kestrelaudio/corehost/pkg/processor/builtin/filter"
	"github.com/kestrelaudio/corehost/pkg/processor/builtin/gain"
	"github.com/kestrelaudio/corehost/pkg/rtevent"
	"github.com/kestrelaudio/corehost/pkg/track"
)

// ProcessorFactory builds a new Processor with the given id. Registered
// under a kind name so CreateProcessorOnTrack can instantiate built-in
// processor types without a PluginLoader.
type ProcessorFactory func(id uint32) (processor.Processor, error)

// coreController is the stateless façade every control-plane transport
// (RPC, OSC, CLI) drives. It never touches the graph, MIDI tables, or
// engine state directly: every mutation is an Event posted to a
// Dispatcher, which serializes it on its own goroutine.
type coreController struct {
	engine     *Engine
	dispatcher *Dispatcher
	midiTable  *midi.ConnectionTable
	midiSend   *midi.Dispatcher

	factories map[string]ProcessorFactory
	loader    PluginLoader
}

// NewController wires a façade for engine, dispatcher, and the MIDI
// connection table midiSend routes through. loader, if non-nil, is
// consulted for kinds CreateProcessorOnTrack doesn't recognize as a
// built-in.
func NewController(engine *Engine, dispatcher *Dispatcher, midiTable *midi.ConnectionTable, midiSend *midi.Dispatcher, loader PluginLoader) Controller {
	return &coreController{
		engine:     engine,
		dispatcher: dispatcher,
		midiTable:  midiTable,
		midiSend:   midiSend,
		factories:  defaultProcessorFactories(engine.SampleRate()),
		loader:     loader,
	}
}

// RegisterProcessorFactory installs a built-in processor kind. Not part of
// the Controller interface: called during host setup, not by a control
// plane client.
func (c *coreController) RegisterProcessorFactory(kind string, f ProcessorFactory) {
	c.factories[kind] = f
}

// defaultProcessorFactories registers the host's built-in processor kinds:
// a no-op passthrough plus the concrete built-ins under
// pkg/processor/builtin. A PluginLoader handles everything else.
func defaultProcessorFactories(sampleRate float64) map[string]ProcessorFactory {
	return map[string]ProcessorFactory{
		"passthrough": func(id uint32) (processor.Processor, error) {
			return processor.NewBaseProcessor(id, "passthrough", "Passthrough", 2, 2)
		},
		"gain": func(id uint32) (processor.Processor, error) {
			return gain.New(id, 2), nil
		},
		"lowpass": func(id uint32) (processor.Processor, error) {
			return filter.New(id, filter.Lowpass, 2, sampleRate), nil
		},
		"highpass": func(id uint32) (processor.Processor, error) {
			return filter.New(id, filter.Highpass, 2, sampleRate), nil
		},
		"compressor": func(id uint32) (processor.Processor, error) {
			return dynamics.New(id, 2, sampleRate), nil
		},
	}
}

// postImmediate posts an rtConvertible Event and returns OK right away;
// the outcome is never reported to this call. While the input FIFO is
// full the dispatcher keeps the event pending and retries it on later
// ticks.
func (c *coreController) postImmediate(ev *Event) ControlStatus {
	c.dispatcher.Post(ev)
	return ControlOK
}

// postHandler posts a synchronous handler Event and blocks until the
// dispatcher thread has executed it, since graph/table mutations must
// report NOT_FOUND/INVALID_ARGUMENTS synchronously rather than via
// subscription.
func (c *coreController) postHandler(handler func() (ControlStatus, CompletionStatus)) ControlStatus {
	result := make(chan ControlStatus, 1)
	ev := newHandlerEvent(NoObjectId, nil, func() CompletionStatus {
		status, completion := handler()
		result <- status
		return completion
	})
	c.dispatcher.Post(ev)
	return <-result
}

func (c *coreController) SetTempo(bpm float64) ControlStatus {
	if bpm <= 0 {
		return ControlOutOfRange
	}
	return c.postImmediate(&Event{Kind: rtevent.KindTempo, Value: bpm, SampleTime: Immediate})
}

func (c *coreController) SetTimeSignature(numerator, denominator int) ControlStatus {
	if numerator <= 0 || denominator <= 0 {
		return ControlOutOfRange
	}
	return c.postImmediate(&Event{
		Kind: rtevent.KindTimeSignature, Value: float64(numerator), IntValue: int32(denominator), SampleTime: Immediate,
	})
}

func (c *coreController) SetPlayingMode(playing bool) ControlStatus {
	iv := int32(0)
	if playing {
		iv = 1
	}
	return c.postImmediate(&Event{Kind: rtevent.KindPlayingMode, IntValue: iv, SampleTime: Immediate})
}

func (c *coreController) AddTrack(name string, numBuses int) (ObjectId, ControlStatus) {
	if numBuses <= 0 {
		return NoObjectId, ControlOutOfRange
	}
	id := DefaultIdGenerator.Next()
	status := c.postHandler(func() (ControlStatus, CompletionStatus) {
		tr, err := track.New(uint32(id), name, numBuses, c.engine.ChunkSize(), c.midiOutputSink)
		if err != nil {
			return ControlInvalidArguments, CompletionError
		}
		tr.SetTimer(c.engine.PerfTimer())
		if err := c.engine.Graph().AddTrack(tr); err != nil {
			return ControlInvalidArguments, CompletionError
		}
		return ControlOK, CompletionOK
	})
	if status != ControlOK {
		return NoObjectId, status
	}
	return id, ControlOK
}

func (c *coreController) midiOutputSink(e rtevent.RtEvent) {
	c.engine.pushOutput(e)
}

func (c *coreController) DeleteTrack(id ObjectId) ControlStatus {
	return c.postHandler(func() (ControlStatus, CompletionStatus) {
		c.engine.DisconnectTrack(uint32(id))
		if !c.engine.Graph().RemoveTrack(uint32(id)) {
			return ControlNotFound, CompletionError
		}
		return ControlOK, CompletionOK
	})
}

func (c *coreController) CreateProcessorOnTrack(trackID ObjectId, kind string) (ObjectId, ControlStatus) {
	id := DefaultIdGenerator.Next()
	status := c.postHandler(func() (ControlStatus, CompletionStatus) {
		factory, ok := c.factories[kind]
		var p processor.Processor
		if ok {
			built, err := factory(uint32(id))
			if err != nil {
				return ControlInvalidArguments, CompletionError
			}
			p = built
		} else if c.loader != nil {
			loaded, lerr := c.loader.Load(kind, c.engine.SampleRate())
			if lerr != nil {
				return ControlNotFound, CompletionError
			}
			p = loaded
		} else {
			return ControlUnsupportedOperation, CompletionError
		}
		if err := c.engine.Graph().AddProcessor(uint32(trackID), p); err != nil {
			return ControlNotFound, CompletionError
		}
		return ControlOK, CompletionOK
	})
	if status != ControlOK {
		return NoObjectId, status
	}
	return id, ControlOK
}

func (c *coreController) MoveProcessor(processorID ObjectId, toTrackID ObjectId) ControlStatus {
	return c.postHandler(func() (ControlStatus, CompletionStatus) {
		p, ok := c.engine.Graph().Processor(uint32(processorID))
		if !ok {
			return ControlNotFound, CompletionError
		}
		if _, ok := c.engine.Graph().Processor(uint32(toTrackID)); !ok {
			return ControlNotFound, CompletionError
		}
		if !c.engine.Graph().RemoveProcessor(uint32(processorID)) {
			return ControlNotFound, CompletionError
		}
		if err := c.engine.Graph().AddProcessor(uint32(toTrackID), p); err != nil {
			return ControlError, CompletionError
		}
		return ControlOK, CompletionOK
	})
}

func (c *coreController) DeleteProcessor(id ObjectId) ControlStatus {
	return c.postHandler(func() (ControlStatus, CompletionStatus) {
		if !c.engine.Graph().RemoveProcessor(uint32(id)) {
			return ControlNotFound, CompletionError
		}
		return ControlOK, CompletionOK
	})
}

func (c *coreController) SetParameterValue(processorID, parameterID ObjectId, normalizedValue float64) ControlStatus {
	if normalizedValue < 0 || normalizedValue > 1 {
		return ControlOutOfRange
	}
	if _, ok := c.engine.Graph().Processor(uint32(processorID)); !ok {
		return ControlNotFound
	}
	return c.postImmediate(&Event{
		Kind: rtevent.KindParameterChange, Target: processorID, Param: parameterID,
		Value: normalizedValue, SampleTime: Immediate,
	})
}

func (c *coreController) SendNoteOn(trackID ObjectId, note, velocity byte) ControlStatus {
	return c.postImmediate(&Event{
		Kind: rtevent.KindNoteOn, Target: trackID, ByteValue: [3]byte{note, velocity, 0}, SampleTime: Immediate,
	})
}

func (c *coreController) SendNoteOff(trackID ObjectId, note, velocity byte) ControlStatus {
	return c.postImmediate(&Event{
		Kind: rtevent.KindNoteOff, Target: trackID, ByteValue: [3]byte{note, velocity, 0}, SampleTime: Immediate,
	})
}

func (c *coreController) SendCC(port, channel, cc int, value byte) ControlStatus {
	if c.midiSend == nil {
		return ControlUnsupportedOperation
	}
	if channel < 0 || (channel > midi.MaxChannel && channel != midi.Omni) {
		return ControlOutOfRange
	}
	events := c.midiSend.HandleIncoming(port, ccRaw(channel, cc, value))
	for _, rev := range events {
		c.postImmediate(&Event{
			Kind: rev.Kind, Target: ObjectId(rev.Target), Param: ObjectId(rev.Param),
			Value: rev.Value, IntValue: rev.IntValue, ByteValue: rev.ByteValue, SampleTime: Immediate,
		})
	}
	return ControlOK
}

func ccRaw(channel, cc int, value byte) [3]byte {
	return [3]byte{byte(0xB0 | (channel & 0x0F)), byte(cc), value}
}

func (c *coreController) ConnectKeyboardInputToTrack(port, channel int, trackID ObjectId, raw bool) ControlStatus {
	st := c.midiTable.ConnectKeyboardInput(port, channel, uint32(trackID), raw)
	return midiToControlStatus(st)
}

func (c *coreController) ConnectKeyboardOutputFromTrack(trackID ObjectId, port, channel int) ControlStatus {
	st := c.midiTable.ConnectKeyboardOutput(uint32(trackID), port, channel)
	return midiToControlStatus(st)
}

func (c *coreController) ConnectCCToParameter(port, channel, cc int, processorID, parameterID ObjectId, min, max float64, relative bool) ControlStatus {
	if _, ok := c.engine.Graph().Processor(uint32(processorID)); !ok {
		return ControlNotFound
	}
	st := c.midiTable.ConnectCC(port, channel, cc, uint32(processorID), uint32(parameterID), min, max, relative)
	return midiToControlStatus(st)
}

func (c *coreController) ConnectPCToProcessor(port, channel int, processorID ObjectId) ControlStatus {
	if _, ok := c.engine.Graph().Processor(uint32(processorID)); !ok {
		return ControlNotFound
	}
	st := c.midiTable.ConnectProgramChange(port, channel, uint32(processorID))
	return midiToControlStatus(st)
}

func (c *coreController) DisconnectKeyboardInput(port, channel int) ControlStatus {
	st := c.midiTable.DisconnectKeyboardInput(port, channel)
	return midiToControlStatus(st)
}

func (c *coreController) DisconnectCC(port, channel, cc int, processorID, parameterID ObjectId) ControlStatus {
	st := c.midiTable.DisconnectCC(port, channel, cc, uint32(processorID), uint32(parameterID))
	return midiToControlStatus(st)
}

func (c *coreController) DisconnectPC(port, channel int, processorID ObjectId) ControlStatus {
	st := c.midiTable.DisconnectProgramChange(port, channel, uint32(processorID))
	return midiToControlStatus(st)
}

func midiToControlStatus(st *midi.Status) ControlStatus {
	if midi.IsOK(st) {
		return ControlOK
	}
	switch st.Code {
	case midi.InvalidChannel, midi.InvalidPort:
		return ControlOutOfRange
	case midi.InvalidTarget:
		return ControlNotFound
	case midi.AlreadyConnected:
		return ControlError
	default:
		return ControlError
	}
}

func (c *coreController) SetParameterProperty(processorID, parameterID ObjectId, str string, data []byte) ControlStatus {
	p, ok := c.engine.Graph().Processor(uint32(processorID))
	if !ok {
		return ControlNotFound
	}
	if p.Parameters().Get(uint32(parameterID)) == nil {
		return ControlNotFound
	}
	kind := rtevent.KindStringProperty
	if data != nil {
		kind = rtevent.KindDataProperty
	}
	return c.postImmediate(&Event{
		Kind: kind, Target: processorID, Param: parameterID,
		StringValue: str, DataValue: data, SampleTime: Immediate,
	})
}

func (c *coreController) RunAsyncWork(fn func() error) (ObjectId, ControlStatus) {
	id := DefaultIdGenerator.Next()
	ev := newHandlerEvent(NoObjectId, nil, func() CompletionStatus {
		if err := fn(); err != nil {
			return CompletionError
		}
		return CompletionOK
	})
	ev.Kind = rtevent.KindAsyncWork
	ev.Target = id
	c.dispatcher.Post(ev)
	return id, ControlOK
}

// Tracks reads one AudioGraph snapshot under its own atomic load, per the
// controller's read-consistency contract.
func (c *coreController) Tracks() []TrackInfo {
	tracks := c.engine.Graph().Tracks()
	out := make([]TrackInfo, len(tracks))
	for i, t := range tracks {
		out[i] = TrackInfo{ID: ObjectId(t.ID()), Name: t.Name(), NumProcessors: len(t.Chain())}
	}
	return out
}

func (c *coreController) Processors(trackID ObjectId) ([]ProcessorInfo, ControlStatus) {
	p, ok := c.engine.Graph().Processor(uint32(trackID))
	if !ok {
		return nil, ControlNotFound
	}
	tr, ok := p.(*track.Track)
	if !ok {
		return nil, ControlInvalidArguments
	}
	chain := tr.Chain()
	out := make([]ProcessorInfo, len(chain))
	for i, cp := range chain {
		out[i] = ProcessorInfo{
			ID: ObjectId(cp.ID()), Name: cp.Name(), Label: cp.Label(),
			Bypassed: cp.Bypassed(), Enabled: cp.Enabled(),
		}
	}
	return out, ControlOK
}

func (c *coreController) ParameterValue(processorID, parameterID ObjectId) (float64, ControlStatus) {
	p, ok := c.engine.Graph().Processor(uint32(processorID))
	if !ok {
		return 0, ControlNotFound
	}
	param := p.Parameters().Get(uint32(parameterID))
	if param == nil {
		return 0, ControlNotFound
	}
	return param.NormalizedValue(), ControlOK
}

func (c *coreController) ProcessorTimings(processorID ObjectId) (perf.ProcessTimings, bool) {
	return c.engine.ProcessorTimings(uint32(processorID))
}

// MidiConnections reads one ConnectionTable snapshot, per the controller's
// read-consistency contract.
func (c *coreController) MidiConnections() []midi.Connection {
	return c.midiTable.Connections()
}

var _ Controller = (*coreController)(nil)
