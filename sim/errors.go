package sim

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kernel errors. Every one of them is also reported in the run log when it
// occurs; callers match them with errors.Is.
var (
	// ErrDuplicateName is returned by Register when the name is already taken.
	ErrDuplicateName = errors.New("sim: model name already registered")

	// ErrInvalidName indicates an empty model name or one holding blanks or dots.
	ErrInvalidName = errors.New("sim: invalid model name")

	// ErrShapeMismatch indicates X and Xdot of different lengths.
	ErrShapeMismatch = errors.New("sim: state and state derivative sizes differ")

	// ErrNotRegistered indicates an instance that is not (or no longer) part of the world.
	ErrNotRegistered = errors.New("sim: model is not registered")

	// ErrTopologySolved is returned when links are added, or the analysis is
	// run, after the execution order has been fixed.
	ErrTopologySolved = errors.New("sim: topology analysis already executed")

	// ErrTopologyLoop indicates an algebraic loop among non-delayed links.
	ErrTopologyLoop = errors.New("sim: connections loop detected")

	// ErrUnresolvedEndpoint indicates a link endpoint outside the model arrays.
	ErrUnresolvedEndpoint = errors.New("sim: link endpoint cannot be resolved")

	// ErrSelfLink indicates a link from a model to itself.
	ErrSelfLink = errors.New("sim: a model cannot be linked to itself")

	// ErrInputBusy indicates an input that already has a source.
	ErrInputBusy = errors.New("sim: input already connected")

	// ErrInvalidPhase is returned when the static chain update is asked for
	// the dynamic processing class.
	ErrInvalidPhase = errors.New("sim: invalid static processing class")

	// ErrInvalidStep indicates a non-positive integration step.
	ErrInvalidStep = errors.New("sim: integration step must be positive")

	ErrEmptyCommand    = errors.New("sim: empty command string")
	ErrUnknownCommand  = errors.New("sim: unknown command")
	ErrUnknownModel    = errors.New("sim: no model matches the command target")
	ErrCommandRejected = errors.New("sim: command rejected")

	ErrUnknownData      = errors.New("sim: data name not published")
	ErrOffsetOutOfRange = errors.New("sim: offset exceeds the published array")
	ErrInvalidDataName  = errors.New("sim: invalid published data name")
	ErrInvalidUnit      = errors.New("sim: published unit too long")

	ErrInvalidAddress = errors.New("sim: invalid bus 1553 remote terminal address")
	ErrAddressInUse   = errors.New("sim: bus 1553 remote terminal address already reserved")

	ErrSerialLinksExist   = errors.New("sim: serial links already created")
	ErrSerialLinkCount    = errors.New("sim: serial link count must be at least 1")
	ErrChannelRange       = errors.New("sim: serial channel out of range")
	ErrChannelBusy        = errors.New("sim: serial channel already connected")
	ErrChannelUnconnected = errors.New("sim: serial channel not connected")
)

// Phase names a per-instance scheduler step.
type Phase string

const (
	PhaseInitialize Phase = "Initialize"
	PhaseGetInput   Phase = "GetInput"
	PhaseStatus     Phase = "Status"
	PhaseUpdate     Phase = "Update"
)

// PhaseError wraps a model hook failure with the scheduler context.
type PhaseError struct {
	Instance string
	Phase    Phase
	Time     float64
	Err      error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s.%s at t=%.3f: %v", e.Instance, e.Phase, e.Time, e.Err)
}

func (e *PhaseError) Unwrap() error {
	return e.Err
}

func phaseError(inst *Instance, phase Phase, t float64, err error) error {
	if err == nil {
		return nil
	}
	return &PhaseError{Instance: inst.name, Phase: phase, Time: t, Err: err}
}
