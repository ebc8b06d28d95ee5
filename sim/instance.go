package sim

import (
	"fmt"

	"github.com/MDEGroup/satellite-interoperability/sim/runlog"
)

// ProcessingMode tells when an instance runs within one propagation step.
type ProcessingMode int

const (
	// AlwaysUpdated instances run with every dynamic update.
	AlwaysUpdated ProcessingMode = iota
	// StaticBeforePropagation instances (nx == 0) run once before the
	// dynamic propagation.
	StaticBeforePropagation
	// DynamicOrPropagatedStatic instances are dynamic (nx > 0) or static
	// blocks sandwiched between dynamic ones.
	DynamicOrPropagatedStatic
	// StaticAfterPropagation instances (nx == 0) run once after the dynamic
	// propagation.
	StaticAfterPropagation
)

func (m ProcessingMode) String() string {
	switch m {
	case AlwaysUpdated:
		return "AlwaysUpdated"
	case StaticBeforePropagation:
		return "StaticBeforePropagation"
	case DynamicOrPropagatedStatic:
		return "DynamicOrPropagatedStatic"
	case StaticAfterPropagation:
		return "StaticAfterPropagation"
	}
	return fmt.Sprintf("ProcessingMode(%d)", int(m))
}

// inputLink feeds one input element from a source output element.
type inputLink struct {
	src     *Instance
	index   int
	delayed bool
	set     bool
}

// forcing is the user override of one input or output element.
type forcing struct {
	actual float64
	forced float64
	flag   bool
}

// Instance is one simulated unit registered in a World.
//
// The exported time fields are maintained by the model itself and are
// published as GO.time_at_last_update and GO.delta_time_at_last_update.
type Instance struct {
	TimeAtLastUpdate      float64
	DeltaTimeAtLastUpdate float64

	world      *World
	model      Model
	name       string
	id         int
	registered bool

	x, xdot, u, y []float64

	mode          ProcessingMode
	nesting       int
	alwaysUpdated bool
	links         []inputLink

	forcedU []forcing
	forcedY []forcing

	lastUpdateExec float64
	updateStepTime float64

	switchOn            bool
	powerSupplied       bool
	powerLoad           float64
	powerLoadAtSwitchOn float64

	rt     rtState
	serial []serialChannel

	published        []*Descriptor
	genericPublished bool
	debug            *runlog.Log
}

func newInstance(w *World, name string, model Model, a Arrays) *Instance {
	inst := &Instance{
		world:          w,
		model:          model,
		name:           name,
		x:              a.X,
		xdot:           a.Xdot,
		u:              a.U,
		y:              a.Y,
		links:          make([]inputLink, len(a.U)),
		forcedU:        make([]forcing, len(a.U)),
		forcedY:        make([]forcing, len(a.Y)),
		powerSupplied:  true,
		updateStepTime: -1,
	}
	inst.mode = inst.initialMode()
	return inst
}

func (inst *Instance) initialMode() ProcessingMode {
	if inst.NX() > 0 {
		return DynamicOrPropagatedStatic
	}
	return StaticBeforePropagation
}

// Name returns the unique instance name.
func (inst *Instance) Name() string { return inst.name }

// ID returns the creation-order identifier, 0 for an unregistered instance.
func (inst *Instance) ID() int { return inst.id }

// Registered reports whether the instance is part of its world.
func (inst *Instance) Registered() bool { return inst.registered }

// World returns the owning world.
func (inst *Instance) World() *World { return inst.world }

// Model returns the plugged behavior.
func (inst *Instance) Model() Model { return inst.model }

func (inst *Instance) NX() int { return len(inst.x) }
func (inst *Instance) NU() int { return len(inst.u) }
func (inst *Instance) NY() int { return len(inst.y) }

// X returns the state vector. The slice aliases the model storage.
func (inst *Instance) X() []float64    { return inst.x }
func (inst *Instance) Xdot() []float64 { return inst.xdot }
func (inst *Instance) U() []float64    { return inst.u }
func (inst *Instance) Y() []float64    { return inst.y }

// Mode returns the processing class computed by the topology checks.
func (inst *Instance) Mode() ProcessingMode { return inst.mode }

// NestingLevel returns the topological depth. Only meaningful once the
// topology has been checked.
func (inst *Instance) NestingLevel() int { return inst.nesting }

// SetAlwaysUpdated asks the topology analysis to classify the instance as
// AlwaysUpdated regardless of its links.
func (inst *Instance) SetAlwaysUpdated(on bool) { inst.alwaysUpdated = on }

// CurrentEpoch returns the simulation time shared by every instance.
func (inst *Instance) CurrentEpoch() float64 { return inst.world.Epoch() }

// UpdateStepTime returns the Update scheduling period; <= 0 runs every call.
func (inst *Instance) UpdateStepTime() float64 { return inst.updateStepTime }

// SetUpdateStepTime overrides the UPDATE_STEP_TIME setting.
func (inst *Instance) SetUpdateStepTime(step float64) { inst.updateStepTime = step }

// LastUpdateExecTime returns the time of the last final Update execution.
func (inst *Instance) LastUpdateExecTime() float64 { return inst.lastUpdateExec }

// Output references output element i, for Connect.
func (inst *Instance) Output(i int) OutputRef { return OutputRef{Inst: inst, Index: i} }

// Input references input element i, for Connect.
func (inst *Instance) Input(i int) InputRef { return InputRef{Inst: inst, Index: i} }

// PointerX returns the address of X[i], or nil with an error logged.
func (inst *Instance) PointerX(i int) *float64 {
	if i >= 0 && i < len(inst.x) {
		return &inst.x[i]
	}
	inst.Error("%s.PointerX : \"ix\" (%d) shall be in the dynamic status size range [ 0 .. %d-1 ]", inst.name, i, len(inst.x))
	return nil
}

// PointerXdot returns the address of Xdot[i], or nil with an error logged.
func (inst *Instance) PointerXdot(i int) *float64 {
	if i >= 0 && i < len(inst.xdot) {
		return &inst.xdot[i]
	}
	inst.Error("%s.PointerXdot : \"ix\" (%d) shall be in the dynamic status size range [ 0 .. %d-1 ]", inst.name, i, len(inst.xdot))
	return nil
}

// PointerU returns the address of U[i], or nil with an error logged.
func (inst *Instance) PointerU(i int) *float64 {
	if i >= 0 && i < len(inst.u) {
		return &inst.u[i]
	}
	inst.Error("%s.PointerU : \"iu\" (%d) shall be in the input array U size range [ 0 .. %d-1 ]", inst.name, i, len(inst.u))
	return nil
}

// PointerY returns the address of Y[i], or nil with an error logged.
func (inst *Instance) PointerY(i int) *float64 {
	if i >= 0 && i < len(inst.y) {
		return &inst.y[i]
	}
	inst.Error("%s.PointerY : \"iy\" (%d) shall be in the output array Y size range [ 0 .. %d-1 ]", inst.name, i, len(inst.y))
	return nil
}

// ValueU returns U[i], or 0 with an error logged.
func (inst *Instance) ValueU(i int) float64 {
	if p := inst.PointerU(i); p != nil {
		return *p
	}
	return 0
}

// ValueY returns Y[i], or 0 with an error logged.
func (inst *Instance) ValueY(i int) float64 {
	if p := inst.PointerY(i); p != nil {
		return *p
	}
	return 0
}

// ForcedInput returns the acquired value of U[i] before forcing, the forced
// value and whether forcing is active.
func (inst *Instance) ForcedInput(i int) (actual, forced float64, active bool) {
	if i < 0 || i >= len(inst.forcedU) {
		return 0, 0, false
	}
	f := inst.forcedU[i]
	return f.actual, f.forced, f.flag
}

// ForcedOutput is ForcedInput for Y.
func (inst *Instance) ForcedOutput(i int) (actual, forced float64, active bool) {
	if i < 0 || i >= len(inst.forcedY) {
		return 0, 0, false
	}
	f := inst.forcedY[i]
	return f.actual, f.forced, f.flag
}

func (inst *Instance) hasLinks() bool {
	for _, l := range inst.links {
		if l.set {
			return true
		}
	}
	return false
}

// ExecuteCommand dispatches "<Name>.<command>".
func (inst *Instance) ExecuteCommand(command string) error {
	return inst.world.Execute(inst.name + "." + command)
}

// Write appends raw text to the run log.
func (inst *Instance) Write(format string, args ...any) { inst.world.log.Write(format, args...) }

// Message logs an epoch-stamped message in the run log.
func (inst *Instance) Message(format string, args ...any) { inst.world.log.Message(format, args...) }

// Warning logs a warning in the run log.
func (inst *Instance) Warning(format string, args ...any) { inst.world.log.Warning(format, args...) }

// Error logs an error in the run log.
func (inst *Instance) Error(format string, args ...any) { inst.world.log.Error(format, args...) }

// Debug writes to the instance debug log when ENABLE_DEBUG is active.
func (inst *Instance) Debug(format string, args ...any) { inst.debug.Message(format, args...) }

// DebugEnabled reports whether the debug log is open.
func (inst *Instance) DebugEnabled() bool { return inst.debug != nil }

func (inst *Instance) closeDebug() {
	if inst.debug != nil {
		_ = inst.debug.Close()
		inst.debug = nil
	}
}
