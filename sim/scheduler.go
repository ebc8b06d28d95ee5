package sim

import (
	"github.com/pkg/errors"

	"github.com/MDEGroup/satellite-interoperability/sim/config"
)

// InitializeAll opens the settings file at path and initializes every
// instance from it. See InitializeWith.
func (w *World) InitializeAll(path string) error {
	w.openLog()
	cfg, err := config.Open(path, w.settingsLogger())
	if err != nil {
		w.log.Error("InitializeAll : Unable to open for reading the input file \"%s\"", path)
		return err
	}
	defer func() { _ = cfg.Close() }()
	return w.InitializeWith(cfg)
}

// InitializeWith initializes every instance, in creation order, from cfg:
// the shared command queue is loaded once, UPDATE_STEP_TIME is read, the
// model Initialize hook runs and the GO.* fields are published. A second
// pass then acquires the inputs and runs a final Update on every instance
// at the current epoch. The first failing instance stops the sequence.
func (w *World) InitializeWith(cfg *config.Store) error {
	w.openLog()
	for _, inst := range w.instances {
		w.log.Write("\n>>>> Reading Input File to initialize Model \"%s\" <<<<\n\n", inst.name)
		if err := w.initializeInstance(inst, cfg); err != nil {
			return err
		}
	}
	for _, inst := range w.order {
		w.log.Write("\n>>>> \"%s\": InitializeAll() --> GetInput()  <<<<\n\n", inst.name)
		if err := w.getInput(inst, w.epoch, true); err != nil {
			w.log.Error("\n ERROR: \"%s\" InitializeAll() --> GetInput <<<<<\n\n", inst.name)
			return err
		}
		if err := w.updateModel(inst, w.epoch, true); err != nil {
			w.log.Error("\n ERROR: \"%s\" InitializeAll() --> Update <<<<<\n\n", inst.name)
			return err
		}
	}
	return nil
}

func (w *World) initializeInstance(inst *Instance, cfg *config.Store) error {
	if !w.queueLoaded {
		q, err := loadCommandQueue(cfg, w.log)
		if err != nil {
			w.log.Error("InitializeModel : Unable to load the MODEL_COMMAND_STACK. Cannot continue")
			return err
		}
		w.queueLoaded = true
		for _, c := range q.entries {
			w.Enqueue(c.at, c.text)
		}
	}

	inst.lastUpdateExec = 0
	step := []float64{-1}
	if _, err := cfg.LoadFloats(config.Scoped(inst.name, "UPDATE_STEP_TIME"), step, false); err != nil {
		return phaseError(inst, PhaseInitialize, w.epoch, err)
	}
	inst.updateStepTime = step[0]

	var result error
	if m, ok := inst.model.(Initializer); ok {
		result = phaseError(inst, PhaseInitialize, w.epoch, m.Initialize(cfg))
	}
	if !w.opts.DisablePublish && !inst.genericPublished {
		inst.genericPublished = true
		if err := inst.publishGeneric(); err != nil && result == nil {
			result = phaseError(inst, PhaseInitialize, w.epoch, err)
		}
	}
	return result
}

// getInput copies the linked outputs into U, lets the model acquire its own
// inputs and applies the input forcing. The acquired value is kept as the
// forcing actual value.
func (w *World) getInput(inst *Instance, t float64, isFirst bool) error {
	w.epoch = t
	for i, l := range inst.links {
		if l.set {
			inst.u[i] = l.src.y[l.index]
		}
	}
	var err error
	if m, ok := inst.model.(InputAcquirer); ok {
		err = m.GetInput(t, isFirst)
	}
	for i := range inst.forcedU {
		f := &inst.forcedU[i]
		f.actual = inst.u[i]
		if f.flag {
			inst.u[i] = f.forced
		}
	}
	return phaseError(inst, PhaseGetInput, t, err)
}

func (w *World) status(inst *Instance, t float64) error {
	w.epoch = t
	if m, ok := inst.model.(Deriver); ok {
		return phaseError(inst, PhaseStatus, t, m.Status(t))
	}
	return nil
}

// updateModel runs the model Update when its step time has elapsed, applies
// the output forcing and, on final updates, dispatches the queued commands
// that are due.
func (w *World) updateModel(inst *Instance, t float64, isFinal bool) error {
	w.epoch = t
	var err error
	if inst.updateStepTime <= 0 || t-inst.lastUpdateExec >= inst.updateStepTime || t == 0 {
		err = inst.model.Update(t, isFinal)
		if isFinal {
			inst.lastUpdateExec = t
		}
	}
	for i := range inst.forcedY {
		f := &inst.forcedY[i]
		f.actual = inst.y[i]
		if f.flag {
			inst.y[i] = f.forced
		}
	}
	if isFinal {
		w.dispatchDue(t)
	}
	return phaseError(inst, PhaseUpdate, t, err)
}

// StatusAllDynamic acquires the inputs of, and computes the derivative for,
// every dynamic instance. Static instances inside the propagation only
// acquire their inputs, and only on the first integrator stage.
func (w *World) StatusAllDynamic(t float64, isFirst bool) error {
	for _, inst := range w.order {
		switch {
		case inst.NX() > 0:
			if err := w.getInput(inst, t, isFirst); err != nil {
				return err
			}
			if err := w.status(inst, t); err != nil {
				return err
			}
		case isFirst && inst.mode == DynamicOrPropagatedStatic:
			if err := w.getInput(inst, t, true); err != nil {
				return err
			}
		}
	}
	return nil
}

// UpdateAllDynamic updates the outputs of the dynamic instances, of the
// static instances inside the propagation and of the AlwaysUpdated ones.
func (w *World) UpdateAllDynamic(t float64, isFinal bool) error {
	for _, inst := range w.order {
		if inst.NX() == 0 && inst.mode != DynamicOrPropagatedStatic && inst.mode != AlwaysUpdated {
			continue
		}
		if err := w.getInput(inst, t, false); err != nil {
			return err
		}
		if err := w.updateModel(inst, t, isFinal); err != nil {
			return err
		}
	}
	return nil
}

// UpdateAllStaticInChain runs input acquisition and a final Update on the
// static instances of class mode, which must be StaticBeforePropagation or
// StaticAfterPropagation.
func (w *World) UpdateAllStaticInChain(t float64, mode ProcessingMode) error {
	if mode == DynamicOrPropagatedStatic {
		w.log.Error("UpdateAllStaticInChain : the static processing class shall be different than \"DynamicOrPropagatedStatic\"")
		return errors.Wrap(ErrInvalidPhase, mode.String())
	}
	for _, inst := range w.order {
		if inst.NX() != 0 || inst.mode != mode {
			continue
		}
		if err := w.getInput(inst, t, true); err != nil {
			return err
		}
		if err := w.updateModel(inst, t, true); err != nil {
			return err
		}
	}
	return nil
}
