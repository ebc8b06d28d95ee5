// Package models holds sample equipment models for the simulation kernel and
// the factory table the command line uses to build scenarios from type names.
//
// Every model owns its X, Xdot, U and Y arrays and registers them with
// sim.World.Register; settings are read in Initialize from the shared
// settings file, scoped by the instance name.
package models

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/MDEGroup/satellite-interoperability/sim"
)

// ErrUnknownType is returned by New for a type name without a factory.
var ErrUnknownType = errors.New("models: unknown model type")

// Params are the construction parameters a scenario may pass to a factory.
// Each model reads the fields it needs and ignores the others.
type Params struct {
	// Inputs is the number of addends of a SUM.
	Inputs int
	// RTAddress puts the instance on the 1553 bus when non-zero.
	RTAddress int
}

// Factory builds and registers one instance named name in w.
type Factory func(w *sim.World, name string, p Params) (*sim.Instance, error)

var factories = map[string]Factory{}

// Register makes a factory available under typeName. Registering the same
// name twice replaces the previous factory.
func Register(typeName string, f Factory) {
	factories[typeName] = f
}

// New builds an instance of typeName.
func New(w *sim.World, typeName, name string, p Params) (*sim.Instance, error) {
	f, ok := factories[typeName]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownType, "%q", typeName)
	}
	return f(w, name, p)
}

// Types returns the registered type names, sorted.
func Types() []string {
	out := make([]string, 0, len(factories))
	for name := range factories {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
