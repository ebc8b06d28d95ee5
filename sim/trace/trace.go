package trace

// TraceLevel controls the verbosity of run tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelCommands captures every dispatched command.
	TraceLevelCommands TraceLevel = "commands"
	// TraceLevelBus captures commands and every bus transaction.
	TraceLevelBus TraceLevel = "bus"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:     true,
	TraceLevelCommands: true,
	TraceLevelBus:      true,
	"":                 true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// TraceConfig controls trace collection behavior.
type TraceConfig struct {
	Level TraceLevel
}

// SimulationTrace collects records during a simulation run. The execution
// order is recorded whenever a trace exists, whatever its level.
type SimulationTrace struct {
	Config   TraceConfig
	Commands []CommandRecord
	Bus      []BusRecord
	Topology []TopologyRecord
}

// NewSimulationTrace creates a SimulationTrace ready for recording.
func NewSimulationTrace(config TraceConfig) *SimulationTrace {
	return &SimulationTrace{
		Config:   config,
		Commands: make([]CommandRecord, 0),
		Bus:      make([]BusRecord, 0),
		Topology: make([]TopologyRecord, 0),
	}
}

// CapturesCommands reports whether command records are kept.
func (st *SimulationTrace) CapturesCommands() bool {
	if st == nil {
		return false
	}
	return st.Config.Level == TraceLevelCommands || st.Config.Level == TraceLevelBus
}

// CapturesBus reports whether bus records are kept.
func (st *SimulationTrace) CapturesBus() bool {
	return st != nil && st.Config.Level == TraceLevelBus
}

// RecordCommand appends a command record.
func (st *SimulationTrace) RecordCommand(record CommandRecord) {
	st.Commands = append(st.Commands, record)
}

// RecordBus appends a bus transaction record.
func (st *SimulationTrace) RecordBus(record BusRecord) {
	st.Bus = append(st.Bus, record)
}

// RecordTopology appends one execution-order slot.
func (st *SimulationTrace) RecordTopology(record TopologyRecord) {
	st.Topology = append(st.Topology, record)
}
