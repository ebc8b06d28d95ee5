// register.go wires the sample models into the factory table. This init()
// runs whenever a binary imports sim/models, so scenario files can name the
// types without further setup.
package models

import "github.com/MDEGroup/satellite-interoperability/sim"

func init() {
	Register(SumType, func(w *sim.World, name string, p Params) (*sim.Instance, error) {
		_, inst, err := NewSum(w, name, p.Inputs)
		return inst, err
	})
	Register(GyroType, func(w *sim.World, name string, p Params) (*sim.Instance, error) {
		_, inst, err := NewGyro(w, name, p.RTAddress)
		return inst, err
	})
	Register(OrbitType, func(w *sim.World, name string, _ Params) (*sim.Instance, error) {
		_, inst, err := NewOrbit(w, name)
		return inst, err
	})
}
