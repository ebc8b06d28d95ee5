package sim

// SwitchOn turns the unit on, restores its nominal load and enables its
// remote terminal when it has a bus address.
func (inst *Instance) SwitchOn() error {
	inst.switchOn = true
	inst.powerLoad = inst.powerLoadAtSwitchOn
	if inst.rt.address != 0 {
		if err := inst.setRTStatus(true); err != nil {
			return err
		}
	}
	if l, ok := inst.model.(PowerListener); ok {
		return l.PowerSwitched(true)
	}
	return nil
}

// SwitchOff turns the unit off, drops its load and disables its remote
// terminal when it has a bus address.
func (inst *Instance) SwitchOff() error {
	inst.switchOn = false
	inst.powerLoad = 0
	if inst.rt.address != 0 {
		if err := inst.setRTStatus(false); err != nil {
			return err
		}
	}
	if l, ok := inst.model.(PowerListener); ok {
		return l.PowerSwitched(false)
	}
	return nil
}

// SwitchedOn returns the switch position, regardless of the power supply.
func (inst *Instance) SwitchedOn() bool { return inst.switchOn }

// IsOn reports whether the unit is switched on and powered.
func (inst *Instance) IsOn() bool { return inst.powerSupplied && inst.switchOn }

// SetPowerSupplied models a loss (or recovery) of the unit power supply.
func (inst *Instance) SetPowerSupplied(on bool) { inst.powerSupplied = on }

// PowerLoad returns the current load [W].
func (inst *Instance) PowerLoad() float64 { return inst.powerLoad }

// SetPowerLoadAtSwitchOn sets the nominal load [W] applied by SwitchOn.
func (inst *Instance) SetPowerLoadAtSwitchOn(w float64) { inst.powerLoadAtSwitchOn = w }

// PowerConsumption returns the load when the unit is on, 0 otherwise.
func (inst *Instance) PowerConsumption() float64 {
	if inst.IsOn() {
		return inst.powerLoad
	}
	return 0
}

// TotalPowerConsumption sums the consumption of every instance [W].
func (w *World) TotalPowerConsumption() float64 {
	total := 0.0
	for _, inst := range w.order {
		total += inst.PowerConsumption()
	}
	return total
}
