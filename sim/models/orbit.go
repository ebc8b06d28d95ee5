package models

import (
	"fmt"
	"math"
	"strings"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"
	"github.com/pkg/errors"

	"github.com/MDEGroup/satellite-interoperability/sim"
	"github.com/MDEGroup/satellite-interoperability/sim/config"
	"github.com/MDEGroup/satellite-interoperability/sim/internal/numparse"
)

// OrbitType is the scenario type name of Orbit.
const OrbitType = "ORBIT"

// Output indices of an Orbit: ECI position [m] then ECI velocity [m/s].
const (
	YPosition    = 0
	YVelocity    = 3
	orbitOutputs = 6
)

const (
	tleLineLen = 69
	kmToM      = 1000.0
)

var (
	// ErrInvalidTLE is returned for two-line elements that fail the format or
	// checksum checks.
	ErrInvalidTLE = errors.New("models: invalid two-line element set")
	// ErrPropagation is returned when SGP4 yields no valid state.
	ErrPropagation = errors.New("models: orbit propagation failed")
)

// Orbit propagates a two-line element set with SGP4 and outputs the ECI
// position and velocity. The simulated time is counted in seconds from the
// UTC epoch read from the settings file; SGP4 is evaluated on whole seconds.
type Orbit struct {
	inst  *sim.Instance
	sat   satellite.Satellite
	epoch time.Time
	tle   []string
	ready bool
	y     []float64
}

// NewOrbit registers an orbit propagator.
func NewOrbit(w *sim.World, name string) (*Orbit, *sim.Instance, error) {
	m := &Orbit{y: make([]float64, orbitOutputs), tle: make([]string, 2)}
	inst, err := w.Register(name, m, sim.Arrays{Y: m.y})
	if err != nil {
		return nil, inst, err
	}
	m.inst = inst
	for _, err := range []error{
		sim.Publish(inst, m.y[YPosition:YPosition+3], "Y.position_ECI", "m"),
		sim.Publish(inst, m.y[YVelocity:YVelocity+3], "Y.velocity_ECI", "m/s"),
	} {
		if err != nil {
			return m, inst, err
		}
	}
	return m, inst, nil
}

// Epoch returns the UTC time at simulated time 0.
func (m *Orbit) Epoch() time.Time { return m.epoch }

// Initialize reads <Name>.TLE, one element line per entry, and <Name>.EPOCH
// as year, month, day, hour, minute and second.
func (m *Orbit) Initialize(cfg *config.Store) error {
	name := m.inst.Name()

	cfg.DisableTokenizer()
	_, err := cfg.LoadStrings(config.Scoped(name, "TLE"), m.tle, true)
	cfg.EnableTokenizer()
	if err != nil {
		return err
	}
	if err := checkTLE(m.tle[0], m.tle[1]); err != nil {
		m.inst.Error("%s.TLE : %v", name, err)
		return errors.Wrapf(err, "%s.TLE", name)
	}

	e := make([]float64, 6)
	if _, err := cfg.LoadFloats(config.Scoped(name, "EPOCH"), e, true); err != nil {
		return err
	}
	sec, frac := math.Modf(e[5])
	m.epoch = time.Date(int(e[0]), time.Month(int(e[1])), int(e[2]), int(e[3]), int(e[4]), int(sec),
		int(frac*float64(time.Second)), time.UTC)

	sat, err := toSatellite(m.tle[0], m.tle[1])
	if err != nil {
		m.inst.Error("%s.TLE : %v", name, err)
		return errors.Wrapf(err, "%s.TLE", name)
	}
	m.sat = sat
	m.ready = true
	m.inst.Message("%s : SGP4 epoch %s", name, m.epoch.Format(time.RFC3339Nano))
	return nil
}

// toSatellite converts the lines, turning a parser panic into ErrInvalidTLE.
func toSatellite(line1, line2 string) (sat satellite.Satellite, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Wrapf(ErrInvalidTLE, "%v", r)
		}
	}()
	return satellite.TLEToSat(line1, line2, satellite.GravityWGS72), nil
}

func (m *Orbit) Update(t float64, _ bool) error {
	if !m.ready {
		return nil
	}
	at := m.epoch.Add(time.Duration(t * float64(time.Second))).UTC()
	year, month, day := at.Date()
	hour, minute, sec := at.Clock()

	pos, vel := satellite.Propagate(m.sat, year, int(month), day, hour, minute, sec)
	state := [orbitOutputs]float64{pos.X, pos.Y, pos.Z, vel.X, vel.Y, vel.Z}
	for _, v := range state {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			m.inst.Error("%s : SGP4 propagation failed at %s", m.inst.Name(), at.Format(time.RFC3339))
			return errors.Wrapf(ErrPropagation, "%s at %s", m.inst.Name(), at.Format(time.RFC3339))
		}
	}
	for i, v := range state {
		m.y[i] = v * kmToM
	}
	return nil
}

// checkTLE verifies the line numbers, the line length, the satellite number
// match and the modulo-10 checksum of both lines.
func checkTLE(line1, line2 string) error {
	for i, l := range []string{line1, line2} {
		if len(l) < tleLineLen {
			return errors.Wrapf(ErrInvalidTLE, "line %d has %d characters, %d expected", i+1, len(l), tleLineLen)
		}
		if l[0] != byte('1'+i) || l[1] != ' ' {
			return errors.Wrapf(ErrInvalidTLE, "line %d does not start with \"%d \"", i+1, i+1)
		}
		if sum, digit := tleChecksum(l), int(l[68]-'0'); sum != digit {
			return errors.Wrapf(ErrInvalidTLE, "line %d checksum digit %d, computed %d", i+1, digit, sum)
		}
	}
	if line1[2:7] != line2[2:7] {
		return errors.Wrapf(ErrInvalidTLE, "satellite numbers %s and %s differ", line1[2:7], line2[2:7])
	}
	return nil
}

// tleChecksum adds the digits of the first 68 columns, counting a minus
// sign as 1.
func tleChecksum(l string) int {
	sum := 0
	for _, c := range l[:68] {
		switch {
		case c >= '0' && c <= '9':
			sum += int(c - '0')
		case c == '-':
			sum++
		}
	}
	return sum % 10
}

// String reports the catalogue number and the epoch.
func (m *Orbit) String() string {
	if !m.ready {
		return fmt.Sprintf("%s (not initialized)", m.inst.Name())
	}
	return fmt.Sprintf("%s NORAD %d epoch %s", m.inst.Name(), numparse.Atoi(strings.TrimSpace(m.tle[0][2:7])), m.epoch.Format(time.RFC3339))
}
