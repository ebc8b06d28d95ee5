package models

import (
	"github.com/pkg/errors"

	"github.com/MDEGroup/satellite-interoperability/sim"
	"github.com/MDEGroup/satellite-interoperability/sim/config"
)

// SumType is the scenario type name of Sum.
const SumType = "SUM"

// MaxAddends bounds the inputs of a Sum.
const MaxAddends = 20

// ErrNoInputs is returned when a Sum is built without addends.
var ErrNoInputs = errors.New("models: SUM needs at least one input")

// Sum outputs the weighted sum of its inputs: Y[0] = sum(gains[i] * U[i]).
// It has no state, so the topology analysis schedules it as static.
type Sum struct {
	inst    *sim.Instance
	nInputs int
	gains   []float64
	u       []float64
	y       []float64
}

// NewSum registers a Sum of nIn addends. More than MaxAddends inputs are
// clipped with an error in the run log. Every gain defaults to 1.
func NewSum(w *sim.World, name string, nIn int) (*Sum, *sim.Instance, error) {
	if nIn < 1 {
		return nil, nil, errors.Wrapf(ErrNoInputs, "%s: %d inputs", name, nIn)
	}
	clipped := nIn > MaxAddends
	if clipped {
		nIn = MaxAddends
	}
	m := &Sum{
		nInputs: nIn,
		gains:   make([]float64, nIn),
		u:       make([]float64, nIn),
		y:       make([]float64, 1),
	}
	for i := range m.gains {
		m.gains[i] = 1
	}
	inst, err := w.Register(name, m, sim.Arrays{U: m.u, Y: m.y})
	if err != nil {
		return nil, inst, err
	}
	m.inst = inst
	if clipped {
		inst.Error("%s : Maximum number of allowed inputs exceeded (%d)", name, MaxAddends)
	}

	for _, err := range []error{
		sim.PublishScalar(inst, &m.nInputs, "P.nInputs", ""),
		sim.Publish(inst, m.gains, "P.Gains", ""),
		sim.Publish(inst, m.u, "U.addends", ""),
		sim.Publish(inst, m.y, "Y.sum", ""),
	} {
		if err != nil {
			return m, inst, err
		}
	}
	return m, inst, nil
}

// Gains returns the live gain vector.
func (m *Sum) Gains() []float64 { return m.gains }

// Initialize reads the optional <Name>.GAINS entry.
func (m *Sum) Initialize(cfg *config.Store) error {
	_, err := cfg.LoadFloats(config.Scoped(m.inst.Name(), "GAINS"), m.gains, false)
	return err
}

func (m *Sum) Update(float64, bool) error {
	m.y[0] = 0
	for i, g := range m.gains {
		m.y[0] += g * m.u[i]
	}
	return nil
}
