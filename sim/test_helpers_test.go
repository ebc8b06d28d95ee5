package sim

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MDEGroup/satellite-interoperability/sim/config"
)

var fixedNow = func() time.Time { return time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC) }

// newTestWorld returns a world logging into a buffer and writing its optional
// files (debug, bus dump) into a per-test directory.
func newTestWorld(t *testing.T, opts ...func(*Options)) (*World, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	o := Options{LogWriter: &buf, LogDir: t.TempDir(), Now: fixedNow, Seed: 42}
	for _, fn := range opts {
		fn(&o)
	}
	w := NewWorld(o)
	t.Cleanup(w.DestroyAll)
	return w, &buf
}

func mustRegister(t *testing.T, w *World, name string, m Model, a Arrays) *Instance {
	t.Helper()
	inst, err := w.Register(name, m, a)
	require.NoError(t, err)
	return inst
}

// emptySettings returns an open settings store without any entry.
func emptySettings(t *testing.T) *config.Store {
	t.Helper()
	s, err := config.Parse("empty.set", strings.NewReader(""), nil)
	require.NoError(t, err)
	return s
}

// counterModel counts its hook calls and records the Update times.
type counterModel struct {
	updates     int
	finals      int
	statuses    int
	inputs      int
	updateTimes []float64
	updateErr   error
}

func (m *counterModel) Update(t float64, isFinal bool) error {
	m.updates++
	if isFinal {
		m.finals++
	}
	m.updateTimes = append(m.updateTimes, t)
	return m.updateErr
}

func (m *counterModel) Status(float64) error { m.statuses++; return nil }

func (m *counterModel) GetInput(float64, bool) error { m.inputs++; return nil }

// passModel copies U into Y scaled by gain, or writes constant into every
// output when it has no inputs.
type passModel struct {
	u, y     []float64
	gain     float64
	constant float64
}

func newPass(nu, ny int) (*passModel, Arrays) {
	m := &passModel{u: make([]float64, nu), y: make([]float64, ny), gain: 1}
	return m, Arrays{U: m.u, Y: m.y}
}

func (m *passModel) Update(float64, bool) error {
	for i := range m.y {
		if len(m.u) == 0 {
			m.y[i] = m.constant
			continue
		}
		m.y[i] = m.gain * m.u[i%len(m.u)]
	}
	return nil
}

// integratorModel integrates its first input (or a unit rate without
// inputs) into X[0] and outputs X[0].
type integratorModel struct {
	x, xdot, u, y []float64
}

func newIntegrator(nu int) (*integratorModel, Arrays) {
	m := &integratorModel{x: make([]float64, 1), xdot: make([]float64, 1), u: make([]float64, nu), y: make([]float64, 1)}
	return m, Arrays{X: m.x, Xdot: m.xdot, U: m.u, Y: m.y}
}

func (m *integratorModel) Status(float64) error {
	m.xdot[0] = 1
	if len(m.u) > 0 {
		m.xdot[0] = m.u[0]
	}
	return nil
}

func (m *integratorModel) Update(float64, bool) error {
	m.y[0] = m.x[0]
	return nil
}

func names(list []*Instance) []string {
	out := make([]string, len(list))
	for i, inst := range list {
		out[i] = inst.Name()
	}
	return out
}
