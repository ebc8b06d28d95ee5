package sim

import "github.com/MDEGroup/satellite-interoperability/sim/config"

// Model is the behavior plugged into an Instance. Update is the only hook
// every model must provide; the others are discovered through the optional
// interfaces below.
type Model interface {
	// Update computes the outputs Y from the state X, the inputs U and t.
	// isFinal is false for intermediate integrator stages.
	Update(t float64, isFinal bool) error
}

// Initializer reads the model settings once, before the first tick.
type Initializer interface {
	Initialize(cfg *config.Store) error
}

// InputAcquirer acquires model-specific inputs after the linked inputs have
// been copied into U.
type InputAcquirer interface {
	GetInput(t float64, isFirst bool) error
}

// Deriver computes the state derivative Xdot. Only called for nx > 0.
type Deriver interface {
	Status(t float64) error
}

// CommandParser handles the command keywords the generic table does not know.
type CommandParser interface {
	ParseCommand(command string, params []string) error
}

// PowerListener is notified after SWITCH_ON and SWITCH_OFF.
type PowerListener interface {
	PowerSwitched(on bool) error
}

// RemoteTerminal answers bus controller transactions addressed to the
// instance. words always has room for 32 data words.
type RemoteTerminal interface {
	ReceiveData(subAddress, count uint8, words *[32]uint16) error
	TransmitData(subAddress, count uint8, words *[32]uint16) error
	ReceiveModeCommand(dir TxRx, code ModeCode, words *[32]uint16) error
}

// RTStatusSetter reacts to the remote terminal being enabled or disabled.
type RTStatusSetter interface {
	SetRTStatus(enabled bool) error
}

// SerialWordEndpoint is the slave side of a 16-bit serial link.
type SerialWordEndpoint interface {
	// ProcessWords consumes unsolicited words sent by the master.
	ProcessWords(channel int, words []uint16) error
	// ProduceWords fills words requested by the master.
	ProduceWords(channel int, words []uint16) error
}

// SerialByteEndpoint is the slave side of an 8-bit serial link.
type SerialByteEndpoint interface {
	ProcessBytes(channel int, data []byte) error
	ProduceBytes(channel int, data []byte) error
}

// Arrays are the caller-owned state, derivative, input and output vectors of
// a model. The kernel never reallocates them; links and forcing read and
// write the very same backing storage the model computes on.
type Arrays struct {
	X    []float64
	Xdot []float64
	U    []float64
	Y    []float64
}
