package corehost

import (
	"github.com/kestrelaudio/corehost/pkg/midi"
	"github.com/kestrelaudio/corehost/pkg/perf"
	"github.com/kestrelaudio/corehost/pkg/processor"
)

// FrontendStatus is the result of an AudioFrontend init call.
type FrontendStatus int

const (
	FrontendOK FrontendStatus = iota
	FrontendInvalidChannelCount
	FrontendInvalidInputFile
	FrontendInvalidOutputFile
	FrontendInvalidSequencerData
	FrontendInvalidChunkSize
	FrontendHardwareError
)

func (s FrontendStatus) String() string {
	switch s {
	case FrontendOK:
		return "OK"
	case FrontendInvalidChannelCount:
		return "INVALID_N_CHANNELS"
	case FrontendInvalidInputFile:
		return "INVALID_INPUT_FILE"
	case FrontendInvalidOutputFile:
		return "INVALID_OUTPUT_FILE"
	case FrontendInvalidSequencerData:
		return "INVALID_SEQUENCER_DATA"
	case FrontendInvalidChunkSize:
		return "INVALID_CHUNK_SIZE"
	case FrontendHardwareError:
		return "AUDIO_HW_ERROR"
	default:
		return "UNKNOWN"
	}
}

// FrontendConfig carries whatever startup parameters a concrete
// AudioFrontend needs; the core never interprets it.
type FrontendConfig map[string]interface{}

// AudioFrontend is implemented by an external collaborator (file, JACK,
// portaudio, a dummy test harness) that owns the real audio callback and
// calls Engine.ProcessChunk from it. The core never implements this
// interface itself.
type AudioFrontend interface {
	Init(config FrontendConfig) FrontendStatus
	Cleanup()
	Run() error
}

// MidiFrontend is implemented by an external collaborator that owns real
// MIDI ports. Send pushes an outgoing message to the frontend; the
// frontend calls back into the dispatcher (via whatever wiring the
// frontend chooses) to deliver incoming messages.
type MidiFrontend interface {
	Send(port int, bytes [3]byte, timestamp int64) error
}

// LoadErrorKind classifies why a PluginLoader failed.
type LoadErrorKind int

const (
	LoadErrorNotFound LoadErrorKind = iota
	LoadErrorIncompatibleFormat
	LoadErrorInitFailed
)

func (k LoadErrorKind) String() string {
	switch k {
	case LoadErrorNotFound:
		return "NotFound"
	case LoadErrorIncompatibleFormat:
		return "IncompatibleFormat"
	case LoadErrorInitFailed:
		return "InitFailed"
	default:
		return "Unknown"
	}
}

// LoadError is returned by a PluginLoader when it cannot produce a
// Processor for the requested URI or path.
type LoadError struct {
	Kind LoadErrorKind
	URI  string
	Err  error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return e.Kind.String() + " loading " + e.URI + ": " + e.Err.Error()
	}
	return e.Kind.String() + " loading " + e.URI
}

func (e *LoadError) Unwrap() error { return e.Err }

// PluginLoader adapts a foreign plugin format (VST, LV2, ...) to the
// Processor contract. The engine never knows the format; it only calls
// this interface on the dispatcher thread during graph mutation.
type PluginLoader interface {
	Load(uriOrPath string, sampleRate float64) (processor.Processor, *LoadError)
}

// ControlStatus is returned by every Controller mutation.
type ControlStatus int

const (
	ControlOK ControlStatus = iota
	ControlError
	ControlUnsupportedOperation
	ControlNotFound
	ControlOutOfRange
	ControlInvalidArguments
)

func (s ControlStatus) String() string {
	switch s {
	case ControlOK:
		return "OK"
	case ControlError:
		return "ERROR"
	case ControlUnsupportedOperation:
		return "UNSUPPORTED_OPERATION"
	case ControlNotFound:
		return "NOT_FOUND"
	case ControlOutOfRange:
		return "OUT_OF_RANGE"
	case ControlInvalidArguments:
		return "INVALID_ARGUMENTS"
	default:
		return "UNKNOWN"
	}
}

// TrackInfo is a read-only snapshot of one track's identity and chain
// length, returned by Controller.Tracks.
type TrackInfo struct {
	ID            ObjectId
	Name          string
	NumProcessors int
}

// ProcessorInfo is a read-only snapshot of one processor's identity and
// run state, returned by Controller.Processors.
type ProcessorInfo struct {
	ID       ObjectId
	Name     string
	Label    string
	Bypassed bool
	Enabled  bool
}

// Controller is the façade surface external control planes (RPC, OSC,
// CLI) drive. The core implements it (see controller.go); it is an
// interface here so a test harness or alternate transport can wrap or
// stub it. Transport, parameter, property and note mutations post an
// Event and return immediately. AddTrack, DeleteTrack,
// CreateProcessorOnTrack, MoveProcessor and DeleteProcessor block until
// the dispatcher has applied them and return that outcome. Read
// operations return a consistent snapshot.
type Controller interface {
	SetTempo(bpm float64) ControlStatus
	SetTimeSignature(numerator, denominator int) ControlStatus
	SetPlayingMode(playing bool) ControlStatus

	AddTrack(name string, numBuses int) (ObjectId, ControlStatus)
	DeleteTrack(id ObjectId) ControlStatus
	CreateProcessorOnTrack(trackID ObjectId, kind string) (ObjectId, ControlStatus)
	MoveProcessor(processorID ObjectId, toTrackID ObjectId) ControlStatus
	DeleteProcessor(id ObjectId) ControlStatus

	SetParameterValue(processorID, parameterID ObjectId, normalizedValue float64) ControlStatus
	SetParameterProperty(processorID, parameterID ObjectId, str string, data []byte) ControlStatus

	SendNoteOn(trackID ObjectId, note, velocity byte) ControlStatus
	SendNoteOff(trackID ObjectId, note, velocity byte) ControlStatus
	SendCC(port, channel, cc int, value byte) ControlStatus

	ConnectKeyboardInputToTrack(port, channel int, trackID ObjectId, raw bool) ControlStatus
	ConnectKeyboardOutputFromTrack(trackID ObjectId, port, channel int) ControlStatus
	ConnectCCToParameter(port, channel, cc int, processorID, parameterID ObjectId, min, max float64, relative bool) ControlStatus
	ConnectPCToProcessor(port, channel int, processorID ObjectId) ControlStatus

	DisconnectKeyboardInput(port, channel int) ControlStatus
	DisconnectCC(port, channel, cc int, processorID, parameterID ObjectId) ControlStatus
	DisconnectPC(port, channel int, processorID ObjectId) ControlStatus

	// RunAsyncWork submits fn for execution off the dispatcher thread,
	// returning immediately with a work id. Completion is reported as a
	// KindAsyncWorkComplete notification targeted at that id.
	RunAsyncWork(fn func() error) (ObjectId, ControlStatus)

	// Tracks returns a snapshot of every track currently in the graph, in
	// render order.
	Tracks() []TrackInfo
	// Processors returns a snapshot of trackID's chain, in render order.
	Processors(trackID ObjectId) ([]ProcessorInfo, ControlStatus)
	// ParameterValue returns a parameter's current normalized value.
	ParameterValue(processorID, parameterID ObjectId) (float64, ControlStatus)
	// ProcessorTimings returns the processor's rolling per-block cost
	// statistics, or false if none have been recorded yet.
	ProcessorTimings(processorID ObjectId) (perf.ProcessTimings, bool)
	// MidiConnections returns a snapshot of every MIDI routing table entry.
	MidiConnections() []midi.Connection
}
