package sim

import (
	"fmt"
	"sort"

	"github.com/pkg/errors"

	"github.com/MDEGroup/satellite-interoperability/sim/trace"
)

// OutputRef designates output element Index of Inst.
type OutputRef struct {
	Inst  *Instance
	Index int
}

// InputRef designates input element Index of Inst.
type InputRef struct {
	Inst  *Instance
	Index int
}

func (w *World) owns(inst *Instance) bool {
	return inst != nil && inst.world == w && inst.registered
}

// endpointName renders "A.Y[0]" and appends "=<published name>" when the
// element is also published.
func (w *World) endpointName(inst *Instance, array string, p *float64, i int) string {
	s := fmt.Sprintf("%s.%s[%d]", inst.name, array, i)
	if d, k, ok := w.FindPublished(p); ok {
		s += "=" + d.elementName(k)
	}
	return s
}

// Connect feeds count consecutive inputs of dst from count consecutive
// outputs of src. allowDelay lets the inputs read the previous tick value,
// which is how a loop is deliberately opened.
//
// The new links are checked immediately; if they make the topology
// inconsistent they are removed again and an error is returned.
func (w *World) Connect(src OutputRef, dst InputRef, count int, allowDelay bool) error {
	if count < 1 {
		count = 1
	}
	if w.topology == TopologySolved {
		w.log.Error("Connect : no more inter-model connections can be established after the TOPOLOGY ANALYSIS has been executed!")
		return ErrTopologySolved
	}
	if !w.owns(src.Inst) || src.Index < 0 || src.Index+count > src.Inst.NY() {
		w.log.Error("Connect : unable to identify the output array component %s", describeRef(src.Inst, "Y", src.Index))
		return errors.Wrapf(ErrUnresolvedEndpoint, "source %s", describeRef(src.Inst, "Y", src.Index))
	}
	srcName := w.endpointName(src.Inst, "Y", &src.Inst.y[src.Index], src.Index)
	if !w.owns(dst.Inst) || dst.Index < 0 || dst.Index+count > dst.Inst.NU() {
		w.log.Error("Connect : Link \"%s ---> ????\" unable to identify the input array component %s", srcName, describeRef(dst.Inst, "U", dst.Index))
		return errors.Wrapf(ErrUnresolvedEndpoint, "target %s", describeRef(dst.Inst, "U", dst.Index))
	}
	dstName := w.endpointName(dst.Inst, "U", &dst.Inst.u[dst.Index], dst.Index)
	if src.Inst == dst.Inst {
		w.log.Error("Connect : Invalid link \"%s ---> %s\" : a Model cannot be linked to itself!", srcName, dstName)
		return ErrSelfLink
	}
	target := dst.Inst
	for i := 0; i < count; i++ {
		if target.links[dst.Index+i].set {
			w.log.Error("Connect : Busy link \"%s ---> %s\" : the INPUT \"%s.U[%d]\" has been already connected (each input U[i] shall be linked to a single connection)",
				srcName, dstName, target.name, dst.Index+i)
			return ErrInputBusy
		}
	}

	for i := 0; i < count; i++ {
		target.links[dst.Index+i] = inputLink{src: src.Inst, index: src.Index + i, delayed: allowDelay, set: true}
	}
	if err := w.CheckTopology(); err != nil {
		w.log.Error("Connect : Link \"%s ---> %s\" cannot be established since causes TOPOLOGICAL errors!", srcName, dstName)
		for i := 0; i < count; i++ {
			target.links[dst.Index+i] = inputLink{}
		}
		// restore the classification of the accepted graph
		_ = w.CheckTopology()
		return err
	}
	w.log.Message("Connect : Link \"%s ---> %s\" successfully established {%d Links}", srcName, dstName, count)
	return nil
}

func describeRef(inst *Instance, array string, i int) string {
	if inst == nil {
		return fmt.Sprintf("<nil>.%s[%d]", array, i)
	}
	return fmt.Sprintf("%s.%s[%d]", inst.name, array, i)
}

// CheckTopology classifies every instance and computes its nesting level.
//
// Phase A raises the level of each instance above the level of its
// non-delayed sources and marks static instances fed by dynamic ones as
// StaticAfterPropagation. It iterates to a fixed point; a level above the
// number of instances means a loop. Phase B pulls the StaticAfterPropagation
// sources of dynamic instances into the dynamic propagation.
func (w *World) CheckTopology() error {
	n := len(w.order)
	if n == 0 {
		return nil
	}
	for _, inst := range w.order {
		inst.mode = inst.initialMode()
		inst.nesting = 0
	}

	updated := true
	maxOrder := 0
	for updated && maxOrder <= n {
		updated = false
		maxOrder = 0
		for _, inst := range w.order {
			if !inst.hasLinks() {
				if inst.nesting < 1 {
					inst.nesting = 1
					updated = true
				}
			} else {
				for _, l := range inst.links {
					if !l.set || l.delayed {
						continue
					}
					if inst.nesting <= l.src.nesting {
						inst.nesting = l.src.nesting + 1
						updated = true
					}
					if inst.NX() == 0 && inst.mode != StaticAfterPropagation &&
						(l.src.mode == DynamicOrPropagatedStatic || l.src.mode == StaticAfterPropagation) {
						inst.mode = StaticAfterPropagation
						updated = true
					}
				}
			}
			if inst.nesting > maxOrder {
				maxOrder = inst.nesting
			}
		}
	}
	if maxOrder > n {
		w.log.Error("CheckTopology : CONNECTIONS LOOP detected. The Models connection topology cannot be managed!")
		return ErrTopologyLoop
	}

	for updated = true; updated; {
		updated = false
		for _, inst := range w.order {
			if inst.mode != DynamicOrPropagatedStatic {
				continue
			}
			for _, l := range inst.links {
				if l.set && l.src.mode == StaticAfterPropagation {
					l.src.mode = DynamicOrPropagatedStatic
					updated = true
				}
			}
		}
	}

	for _, inst := range w.order {
		if inst.alwaysUpdated {
			inst.mode = AlwaysUpdated
		}
	}
	return nil
}

// AnalyzeTopology checks the topology once more and fixes the execution
// order by (nesting level, creation id). It can run only once per world
// lifetime, successful or not.
func (w *World) AnalyzeTopology() error {
	if w.topology == TopologySolved {
		w.log.Error("AnalyzeTopology : the TOPOLOGY ANALYSIS has been already executed, it cannot be run twice!")
		return ErrTopologySolved
	}
	w.topology = TopologySolved
	if len(w.instances) == 0 {
		return nil
	}
	if err := w.CheckTopology(); err != nil {
		return err
	}

	order := append([]*Instance(nil), w.instances...)
	sort.SliceStable(order, func(i, j int) bool {
		if order[i].nesting != order[j].nesting {
			return order[i].nesting < order[j].nesting
		}
		return order[i].id < order[j].id
	})
	w.order = order

	w.log.Message("AnalyzeTopology : the TOPOLOGY ANALYSIS has been completed:")
	for i, inst := range order {
		w.log.Message("\"% 24s\" >> (Id=%d,N=%d), nesting=%d, mode=%s", inst.name, inst.id, i+1, inst.nesting, inst.mode)
		if w.opts.Trace != nil {
			w.opts.Trace.RecordTopology(trace.TopologyRecord{
				Position: i + 1,
				Instance: inst.name,
				ID:       inst.id,
				Nesting:  inst.nesting,
				Mode:     inst.mode.String(),
			})
		}
	}
	return nil
}

// InputConnectionsCheck warns about every input without a source and
// returns how many there are.
func (w *World) InputConnectionsCheck() int {
	if len(w.order) == 0 {
		return 0
	}
	w.log.Message("InputConnectionsCheck : Starting the model input connection check.")
	missing := 0
	for _, inst := range w.order {
		for i, l := range inst.links {
			if !l.set {
				w.log.Warning("InputConnectionsCheck : model %s input U[%d] is not connected to any output", inst.name, i)
				missing++
			}
		}
	}
	return missing
}

// OutputConnection returns the first input fed by output element iy.
func (inst *Instance) OutputConnection(iy int) (InputRef, bool) {
	if iy < 0 || iy >= inst.NY() {
		inst.Error("%s.OutputConnection : requested output index (%d) is out of range (ny=%d)", inst.name, iy, inst.NY())
		return InputRef{}, false
	}
	for _, other := range inst.world.order {
		for i, l := range other.links {
			if l.set && l.src == inst && l.index == iy {
				return InputRef{Inst: other, Index: i}, true
			}
		}
	}
	return InputRef{}, false
}

// Source returns the output feeding input element iu, if any.
func (inst *Instance) Source(iu int) (OutputRef, bool) {
	if iu < 0 || iu >= len(inst.links) || !inst.links[iu].set {
		return OutputRef{}, false
	}
	l := inst.links[iu]
	return OutputRef{Inst: l.src, Index: l.index}, true
}
