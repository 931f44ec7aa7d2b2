package midi

import "sync/atomic"

// kbKey addresses a (port, channel) pair in the keyboard input table.
type kbKey struct {
	Port    int
	Channel int
}

// KbInputEntry is what a (port, channel) keyboard input maps to.
type KbInputEntry struct {
	TrackID uint32
	// Raw additionally forwards the untouched 3-byte message as a
	// WrappedMidiRtEvent alongside the translated Note event.
	Raw bool
}

// CCEntry is one mapping target for an incoming CC message.
type CCEntry struct {
	ProcessorID uint32
	ParameterID uint32
	Min, Max    float64
	Relative    bool
}

type kbOutputTarget struct {
	Port    int
	Channel int
}

// connectionTables is the full set of MIDI routing tables, always
// replaced as one immutable unit so readers see a consistent snapshot.
type connectionTables struct {
	kbInput  map[kbKey]KbInputEntry
	kbOutput map[uint32][]kbOutputTarget
	ccInput  map[kbKey]map[int][]CCEntry // keyed by (port,channel) -> cc number -> entries
	pcInput  map[kbKey][]uint32
}

func newConnectionTables() *connectionTables {
	return &connectionTables{
		kbInput:  make(map[kbKey]KbInputEntry),
		kbOutput: make(map[uint32][]kbOutputTarget),
		ccInput:  make(map[kbKey]map[int][]CCEntry),
		pcInput:  make(map[kbKey][]uint32),
	}
}

func (t *connectionTables) clone() *connectionTables {
	out := newConnectionTables()
	for k, v := range t.kbInput {
		out.kbInput[k] = v
	}
	for k, v := range t.kbOutput {
		cp := make([]kbOutputTarget, len(v))
		copy(cp, v)
		out.kbOutput[k] = cp
	}
	for k, byCC := range t.ccInput {
		cp := make(map[int][]CCEntry, len(byCC))
		for cc, entries := range byCC {
			ecp := make([]CCEntry, len(entries))
			copy(ecp, entries)
			cp[cc] = ecp
		}
		out.ccInput[k] = cp
	}
	for k, v := range t.pcInput {
		cp := make([]uint32, len(v))
		copy(cp, v)
		out.pcInput[k] = cp
	}
	return out
}

// ConnectionTable holds all MIDI routing state behind a single RCU-style
// atomic pointer: every mutation builds a full clone, edits it, and swaps
// the pointer, so concurrent readers (the incoming/outgoing translation
// path) always see one consistent snapshot without taking a lock. Every
// mutating method must be called only from the dispatcher thread.
type ConnectionTable struct {
	snapshot atomic.Pointer[connectionTables]
}

// NewConnectionTable creates an empty routing table.
func NewConnectionTable() *ConnectionTable {
	ct := &ConnectionTable{}
	ct.snapshot.Store(newConnectionTables())
	return ct
}

func (ct *ConnectionTable) load() *connectionTables {
	return ct.snapshot.Load()
}

func (ct *ConnectionTable) publish(next *connectionTables) {
	ct.snapshot.Store(next)
}

// ConnectKeyboardInput maps (port, channel) to trackID. channel may be
// Omni. raw additionally requests WrappedMidiRtEvent passthrough.
func (ct *ConnectionTable) ConnectKeyboardInput(port, channel int, trackID uint32, raw bool) *Status {
	if !validPort(port) {
		return statusf(InvalidPort, "port %d", port)
	}
	if !validChannel(channel) {
		return statusf(InvalidChannel, "channel %d", channel)
	}
	key := kbKey{Port: port, Channel: channel}
	cur := ct.load()
	if _, exists := cur.kbInput[key]; exists {
		return statusf(AlreadyConnected, "port %d channel %d", port, channel)
	}
	next := cur.clone()
	next.kbInput[key] = KbInputEntry{TrackID: trackID, Raw: raw}
	ct.publish(next)
	return ok()
}

// DisconnectKeyboardInput removes a (port, channel) mapping.
func (ct *ConnectionTable) DisconnectKeyboardInput(port, channel int) *Status {
	key := kbKey{Port: port, Channel: channel}
	cur := ct.load()
	if _, exists := cur.kbInput[key]; !exists {
		return statusf(InvalidTarget, "no mapping for port %d channel %d", port, channel)
	}
	next := cur.clone()
	delete(next.kbInput, key)
	ct.publish(next)
	return ok()
}

// lookupKeyboardInput returns every entry matching (port, channel),
// including any Omni entry registered for the same port.
func (ct *ConnectionTable) lookupKeyboardInput(port, channel int) []KbInputEntry {
	cur := ct.load()
	var out []KbInputEntry
	if e, ok := cur.kbInput[kbKey{Port: port, Channel: channel}]; ok {
		out = append(out, e)
	}
	if channel != Omni {
		if e, ok := cur.kbInput[kbKey{Port: port, Channel: Omni}]; ok {
			out = append(out, e)
		}
	}
	return out
}

// ConnectKeyboardOutput adds (port, channel) as an outbound target for
// trackID's note/keyboard events.
func (ct *ConnectionTable) ConnectKeyboardOutput(trackID uint32, port, channel int) *Status {
	if !validPort(port) {
		return statusf(InvalidPort, "port %d", port)
	}
	if channel < 0 || channel > MaxChannel {
		return statusf(InvalidChannel, "channel %d", channel)
	}
	cur := ct.load()
	for _, t := range cur.kbOutput[trackID] {
		if t.Port == port && t.Channel == channel {
			return statusf(AlreadyConnected, "track %d already routed to port %d channel %d", trackID, port, channel)
		}
	}
	next := cur.clone()
	next.kbOutput[trackID] = append(next.kbOutput[trackID], kbOutputTarget{Port: port, Channel: channel})
	ct.publish(next)
	return ok()
}

func (ct *ConnectionTable) lookupKeyboardOutput(trackID uint32) []kbOutputTarget {
	return ct.load().kbOutput[trackID]
}

// ConnectCC maps (port, channel, cc) to a parameter on processorID.
func (ct *ConnectionTable) ConnectCC(port, channel, cc int, processorID, parameterID uint32, min, max float64, relative bool) *Status {
	if !validPort(port) {
		return statusf(InvalidPort, "port %d", port)
	}
	if !validChannel(channel) {
		return statusf(InvalidChannel, "channel %d", channel)
	}
	key := kbKey{Port: port, Channel: channel}
	cur := ct.load()
	for _, e := range cur.ccInput[key][cc] {
		if e.ProcessorID == processorID && e.ParameterID == parameterID {
			return statusf(AlreadyConnected, "cc %d already routed to processor %d parameter %d", cc, processorID, parameterID)
		}
	}
	next := cur.clone()
	if next.ccInput[key] == nil {
		next.ccInput[key] = make(map[int][]CCEntry)
	}
	next.ccInput[key][cc] = append(next.ccInput[key][cc], CCEntry{
		ProcessorID: processorID, ParameterID: parameterID, Min: min, Max: max, Relative: relative,
	})
	ct.publish(next)
	return ok()
}

// DisconnectCC removes a single (processorID, parameterID) mapping from
// the (port, channel, cc) entry, returning InvalidTarget if it was never
// present.
func (ct *ConnectionTable) DisconnectCC(port, channel, cc int, processorID, parameterID uint32) *Status {
	key := kbKey{Port: port, Channel: channel}
	cur := ct.load()
	entries := cur.ccInput[key][cc]
	idx := -1
	for i, e := range entries {
		if e.ProcessorID == processorID && e.ParameterID == parameterID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return statusf(InvalidTarget, "no cc mapping for processor %d parameter %d", processorID, parameterID)
	}
	next := cur.clone()
	remaining := next.ccInput[key][cc]
	next.ccInput[key][cc] = append(remaining[:idx], remaining[idx+1:]...)
	ct.publish(next)
	return ok()
}

func (ct *ConnectionTable) lookupCC(port, channel, cc int) []CCEntry {
	cur := ct.load()
	if byCC, ok := cur.ccInput[kbKey{Port: port, Channel: channel}]; ok {
		return byCC[cc]
	}
	return nil
}

// ConnectProgramChange maps (port, channel) to receive program-change
// events on processorID.
func (ct *ConnectionTable) ConnectProgramChange(port, channel int, processorID uint32) *Status {
	if !validPort(port) {
		return statusf(InvalidPort, "port %d", port)
	}
	if !validChannel(channel) {
		return statusf(InvalidChannel, "channel %d", channel)
	}
	key := kbKey{Port: port, Channel: channel}
	cur := ct.load()
	for _, id := range cur.pcInput[key] {
		if id == processorID {
			return statusf(AlreadyConnected, "pc already routed to processor %d", processorID)
		}
	}
	next := cur.clone()
	next.pcInput[key] = append(next.pcInput[key], processorID)
	ct.publish(next)
	return ok()
}

// DisconnectProgramChange removes processorID from the (port, channel)
// program-change mapping, returning InvalidTarget if it was never present.
func (ct *ConnectionTable) DisconnectProgramChange(port, channel int, processorID uint32) *Status {
	key := kbKey{Port: port, Channel: channel}
	cur := ct.load()
	ids := cur.pcInput[key]
	idx := -1
	for i, id := range ids {
		if id == processorID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return statusf(InvalidTarget, "no pc mapping for processor %d", processorID)
	}
	next := cur.clone()
	remaining := next.pcInput[key]
	next.pcInput[key] = append(remaining[:idx], remaining[idx+1:]...)
	ct.publish(next)
	return ok()
}

func (ct *ConnectionTable) lookupProgramChange(port, channel int) []uint32 {
	return ct.load().pcInput[kbKey{Port: port, Channel: channel}]
}

// ConnectionKind identifies which routing table a Connection snapshot row
// came from.
type ConnectionKind int

const (
	ConnectionKeyboardInput ConnectionKind = iota
	ConnectionKeyboardOutput
	ConnectionCC
	ConnectionProgramChange
)

func (k ConnectionKind) String() string {
	switch k {
	case ConnectionKeyboardInput:
		return "KeyboardInput"
	case ConnectionKeyboardOutput:
		return "KeyboardOutput"
	case ConnectionCC:
		return "CC"
	case ConnectionProgramChange:
		return "ProgramChange"
	default:
		return "Unknown"
	}
}

// Connection is one row of a flattened MIDI routing snapshot. Fields not
// meaningful for Kind are left zero: TrackID/Raw apply to the keyboard
// kinds, ProcessorID/ParameterID/Min/Max/Relative to CC, ProcessorID alone
// to ProgramChange.
type Connection struct {
	Kind ConnectionKind

	Port    int
	Channel int
	CC      int

	TrackID uint32
	Raw     bool

	ProcessorID uint32
	ParameterID uint32
	Min, Max    float64
	Relative    bool
}

// Connections returns a snapshot of every entry across every routing
// table, read from one immutable table version so the result is
// consistent even if a mutation commits concurrently.
func (ct *ConnectionTable) Connections() []Connection {
	cur := ct.load()
	out := make([]Connection, 0, len(cur.kbInput)+len(cur.kbOutput)+len(cur.ccInput)+len(cur.pcInput))

	for k, e := range cur.kbInput {
		out = append(out, Connection{
			Kind: ConnectionKeyboardInput, Port: k.Port, Channel: k.Channel,
			TrackID: e.TrackID, Raw: e.Raw,
		})
	}
	for trackID, targets := range cur.kbOutput {
		for _, t := range targets {
			out = append(out, Connection{
				Kind: ConnectionKeyboardOutput, Port: t.Port, Channel: t.Channel, TrackID: trackID,
			})
		}
	}
	for k, byCC := range cur.ccInput {
		for cc, entries := range byCC {
			for _, e := range entries {
				out = append(out, Connection{
					Kind: ConnectionCC, Port: k.Port, Channel: k.Channel, CC: cc,
					ProcessorID: e.ProcessorID, ParameterID: e.ParameterID,
					Min: e.Min, Max: e.Max, Relative: e.Relative,
				})
			}
		}
	}
	for k, ids := range cur.pcInput {
		for _, id := range ids {
			out = append(out, Connection{
				Kind: ConnectionProgramChange, Port: k.Port, Channel: k.Channel, ProcessorID: id,
			})
		}
	}
	return out
}
