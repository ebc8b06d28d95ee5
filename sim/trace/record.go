// Package trace provides decision-trace recording for simulation runs.
// This package has no dependencies on sim/; it stores pure data types.
package trace

// CommandRecord captures one dispatched command and its outcome.
type CommandRecord struct {
	Clock   float64
	Target  string // model name, "" for static commands
	Command string
	Params  []string
	OK      bool
	Reason  string // error text when !OK
}

// BusRecord captures one bus controller transaction.
type BusRecord struct {
	Clock      float64
	Kind       string // "receive", "transmit" or "mode"
	Address    int
	SubAddress int    // mode code for Kind == "mode"
	Target     string // first (or only) terminal served; "" when none answered
	Words      []uint16
}

// TopologyRecord captures one slot of the execution order fixed by the
// topology analysis.
type TopologyRecord struct {
	Position int // 1-based
	Instance string
	ID       int
	Nesting  int
	Mode     string
}
