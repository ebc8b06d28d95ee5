package models

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/MDEGroup/satellite-interoperability/sim"
	"github.com/MDEGroup/satellite-interoperability/sim/config"
	"github.com/MDEGroup/satellite-interoperability/sim/internal/numparse"
	"github.com/MDEGroup/satellite-interoperability/sim/numeric"
)

// GyroType is the scenario type name of Gyro.
const GyroType = "GYRO_HONEYWELL"

const (
	// SecFieldLSB is the resolution of the 1553 time tag [s].
	SecFieldLSB = 40.96e-6
	// MaxRate is the highest rate the unit measures without overflow [rad/s].
	MaxRate = 0.26179939

	frameTicks    = 200
	secondsPerDay = 86400.0
)

var (
	// ErrInvalidSetting is returned for settings the model cannot work with.
	ErrInvalidSetting = errors.New("models: invalid setting")
	// ErrWordCount is returned when the bus controller asks for a block size
	// the subaddress does not serve.
	ErrWordCount = errors.New("models: unsupported data word count")
)

// Output indices of a Gyro.
const (
	YAngle      = 0 // accumulated angles [LSB], three elements
	YFrameTimer = 3 // 200 Hz frame counter
	YRate       = 4 // measured rate in the unit frame [rad/s], three elements
	YHealth     = 7 // health status word
	gyroOutputs = 8
)

// Health status word bits. The ICD numbers bits from the MSB; these are the
// resulting masks on the 16-bit value.
const (
	HealthGoNogo    uint16 = 0x0001
	HealthDataValid uint16 = 0x0080
)

// Bus 1553 subaddresses served by a Gyro.
const (
	SAMeasurement = 3
	SAWrapAround  = 30

	measurementWords = 13
	unusedWord       = 0xCACA
)

// cdsTime is the internal UTC clock: day count and the seconds of the day in
// SecFieldLSB units, split in two words.
type cdsTime struct {
	day     uint16
	secHigh uint16
	secLow  uint16
}

// gyroParams are read from the settings file.
type gyroParams struct {
	bias       float64 // [deg/h]
	arw        float64 // [deg/sqrt(h)]
	readOut    float64 // [rad]
	timeLSB    float64 // [s/LSB]
	angleLSB   float64 // [rad/LSB]
	sampleTime float64 // [s]
	arwOn      bool
	readOutOn  bool
	biasOn     bool
	position   []float64
	brf2unit   *mat.Dense
	unit2brf   *mat.Dense
}

// Gyro is a three axis ring laser gyro. It integrates the body rate,
// projected on its axes and divided by the scale factor, into 16-bit
// wrapping angle counters and answers the bus controller on subaddress 3.
type Gyro struct {
	inst *sim.Instance
	p    gyroParams

	x, xdot, u, y []float64

	health     uint16
	clock200Hz uint16
	clock1Hz   uint16
	utc        cdsTime
	residual   float64
	lastAngle  [3]float64
	arwNoise   [3]float64
	wrapAround [32]uint16
}

// NewGyro registers a gyro. A non-zero rtAddress puts it on the bus.
func NewGyro(w *sim.World, name string, rtAddress int) (*Gyro, *sim.Instance, error) {
	m := &Gyro{
		x:    make([]float64, 3),
		xdot: make([]float64, 3),
		u:    make([]float64, 3),
		y:    make([]float64, gyroOutputs),
		p:    gyroParams{position: make([]float64, 3)},
	}
	inst, err := w.Register(name, m, sim.Arrays{X: m.x, Xdot: m.xdot, U: m.u, Y: m.y})
	if err != nil {
		return nil, inst, err
	}
	m.inst = inst
	if rtAddress != 0 {
		if err := inst.SetRTAddress(rtAddress, false); err != nil {
			return m, inst, err
		}
	}

	for _, err := range []error{
		sim.Publish(inst, m.u, "U.omega_BRF", "rad/s"),
		sim.Publish(inst, m.y[YAngle:YAngle+3], "Y.angle_LSB", ""),
		sim.Publish(inst, m.y[YFrameTimer:YFrameTimer+1], "Y.frame_timer_200Hz", ""),
		sim.Publish(inst, m.y[YRate:YRate+3], "Y.w_meas", "rad/s"),
		sim.Publish(inst, m.y[YHealth:YHealth+1], "Y.health_status_bits", ""),
		sim.PublishScalar(inst, &m.health, "health_bits", ""),
		sim.Publish(inst, m.p.position, "P.position_wrt_sc", "m"),
	} {
		if err != nil {
			return m, inst, err
		}
	}
	return m, inst, nil
}

// Health returns the health status word.
func (m *Gyro) Health() uint16 { return m.health }

// BodyRate returns the measured rate rotated back to the body frame.
func (m *Gyro) BodyRate() []float64 {
	if m.p.unit2brf == nil {
		return make([]float64, 3)
	}
	return numeric.MulVec(m.p.unit2brf, m.y[YRate:YRate+3])
}

// Initialize switches the unit off, resets its counters and reads the
// mounting matrix, the error model and the optional initial rate
// SC_ANGULAR_RATE [deg/s].
func (m *Gyro) Initialize(cfg *config.Store) error {
	name := m.inst.Name()
	if err := m.inst.SwitchOff(); err != nil {
		return err
	}
	m.health = HealthDataValid
	m.clock200Hz, m.clock1Hz = 0, 0
	m.utc = cdsTime{}
	m.arwNoise = [3]float64{}
	m.wrapAround = [32]uint16{}

	brf2unit := make([]float64, 9)
	if _, err := cfg.LoadFloats(config.Scoped(name, "BRF2UNIT"), brf2unit, true); err != nil {
		return err
	}
	m.p.brf2unit = numeric.Matrix(3, 3, brf2unit)
	inv, err := numeric.Inverse(m.p.brf2unit)
	if err != nil {
		m.inst.Error("%s : BRF2UNIT mounting matrix is singular", name)
		return errors.Wrapf(err, "%s.BRF2UNIT", name)
	}
	m.p.unit2brf = inv

	floats := []struct {
		symbol string
		dst    *float64
	}{
		{"BIAS", &m.p.bias},
		{"ARW", &m.p.arw},
		{"RON", &m.p.readOut},
		{"TIME_LSB", &m.p.timeLSB},
		{"ANGLE_LSB", &m.p.angleLSB},
		{"SAMPLE_TIME", &m.p.sampleTime},
	}
	for _, f := range floats {
		v := []float64{*f.dst}
		if _, err := cfg.LoadFloats(config.Scoped(name, f.symbol), v, true); err != nil {
			return err
		}
		*f.dst = v[0]
	}
	if m.p.angleLSB == 0 || m.p.timeLSB <= 0 {
		m.inst.Error("%s : ANGLE_LSB and TIME_LSB shall be non null", name)
		return errors.Wrapf(ErrInvalidSetting, "%s: null scale factor or time tag LSB", name)
	}

	flags := []bool{m.p.arwOn, m.p.readOutOn, m.p.biasOn}
	for i, symbol := range []string{"ARW_ENABLED", "OWN_ENABLED", "BIAS_ENABLED"} {
		v := flags[i : i+1]
		if _, err := cfg.LoadBools(config.Scoped(name, symbol), v, true); err != nil {
			return err
		}
	}
	m.p.arwOn, m.p.readOutOn, m.p.biasOn = flags[0], flags[1], flags[2]

	if _, err := cfg.LoadFloats(config.Scoped(name, "POSITION_WRT_SC"), m.p.position, true); err != nil {
		return err
	}

	rate := make([]float64, 3)
	found, err := cfg.LoadFloats("SC_ANGULAR_RATE", rate, false)
	if err != nil {
		return err
	}
	if found {
		for i := range rate {
			m.y[YRate+i] = rate[i] * numeric.Deg2Rad
		}
	}
	return nil
}

// PowerSwitched resets the counters and the angles at switch on and clears
// the outputs at switch off.
func (m *Gyro) PowerSwitched(on bool) error {
	if !on {
		clear(m.y)
		return nil
	}
	m.inst.TimeAtLastUpdate = m.inst.CurrentEpoch()
	m.clock200Hz, m.clock1Hz = 0, 0
	m.utc = cdsTime{}
	m.residual = 0
	clear(m.x)
	return nil
}

// Status projects the body rate on the unit axes and integrates it, together
// with the bias and the angular random walk, into LSB.
func (m *Gyro) Status(float64) error {
	if !m.inst.IsOn() {
		clear(m.xdot)
		return nil
	}
	w := numeric.MulVec(m.p.brf2unit, m.u)
	if w[0] > MaxRate || w[1] > MaxRate || w[2] > MaxRate {
		m.inst.Warning("%s high rate condition is occurred", m.inst.Name())
	}
	k0 := 0.0
	if m.p.biasOn {
		k0 = m.p.bias * numeric.Deg2Rad / 3600
	}
	for i := range m.xdot {
		m.xdot[i] = (w[i] + k0 + m.arwNoise[i]) / m.p.angleLSB
	}
	if m.inst.DebugEnabled() {
		m.inst.Debug("%s.Status --- ARW_noise = %v", m.inst.Name(), m.arwNoise)
	}
	for i := range m.x {
		m.x[i] = wrap16(m.x[i])
	}
	return nil
}

// Update draws the next random walk sample, advances the frame and time tag
// counters and derives the measured rate from the counter increments.
func (m *Gyro) Update(t float64, isFinal bool) error {
	if !m.inst.IsOn() {
		clear(m.y)
		return nil
	}
	dt := t - m.inst.TimeAtLastUpdate
	if !isFinal || dt <= 0 {
		return nil
	}
	m.inst.DeltaTimeAtLastUpdate = dt
	m.inst.TimeAtLastUpdate = t

	rng := m.inst.Rand()
	for i := range m.arwNoise {
		m.arwNoise[i] = 0
		if m.p.arwOn {
			sigma := m.p.arw * math.Sqrt(1/dt) * numeric.Deg2Rad / 60
			m.arwNoise[i] = numeric.RandomNormal(rng, 0, sigma)
		}
	}

	m.advanceClocks(dt)

	for i := range m.x {
		m.x[i] = wrap16(m.x[i])
	}
	qwn := 0.0
	if m.p.readOutOn {
		qwn = numeric.RandomNormal(rng, 0, m.p.readOut) / m.p.angleLSB
	}
	for i := 0; i < 3; i++ {
		angle := wrap16(m.x[i] + qwn)
		m.y[YAngle+i] = angle

		delta := angle - m.lastAngle[i]
		switch {
		case delta > math.MaxInt16:
			delta -= math.MaxUint16
		case delta < math.MinInt16:
			delta += math.MaxUint16
		}
		m.y[YRate+i] = delta * m.p.angleLSB / dt
		m.lastAngle[i] = angle
	}
	m.y[YFrameTimer] = float64(m.clock200Hz)
	m.y[YHealth] = float64(m.health)
	return nil
}

func (m *Gyro) advanceClocks(dt float64) {
	frames := uint16((dt + m.residual) / m.p.timeLSB)
	m.residual = dt + m.residual - float64(frames)*m.p.timeLSB
	m.clock200Hz += frames
	if m.clock200Hz >= frameTicks {
		m.clock200Hz -= frameTicks
		m.clock1Hz++
	}

	sec := uint32(m.utc.secHigh)<<16 | uint32(m.utc.secLow)
	sec += uint32(dt / SecFieldLSB)
	if float64(sec) >= secondsPerDay/SecFieldLSB {
		m.utc.day++
		sec = 0
	}
	m.utc.secHigh = uint16(sec >> 16)
	m.utc.secLow = uint16(sec)
}

// wrap16 folds x into the range of a 16-bit two's complement counter.
func wrap16(x float64) float64 {
	switch {
	case x > math.MaxInt16:
		return math.MinInt16 + math.Mod(x, math.MaxInt16)
	case x < math.MinInt16:
		return math.MaxInt16 + math.Mod(x, math.MinInt16)
	}
	return x
}

// ParseCommand handles SET_DATA_VALIDITY_BIT,<0|1> and SET_GO_NOG_BIT,<0|1>.
func (m *Gyro) ParseCommand(command string, params []string) error {
	var mask uint16
	switch {
	case command == "SET_DATA_VALIDITY_BIT" && len(params) == 1:
		mask = HealthDataValid
	case command == "SET_GO_NOG_BIT" && len(params) == 1:
		mask = HealthGoNogo
	default:
		m.inst.Warning("Command string \"%s\" is not allowed for the Model \"%s\", or some of the \"%d\" parameters is wrong", command, m.inst.Name(), len(params))
		return errors.Wrapf(sim.ErrCommandRejected, "%s.%s", m.inst.Name(), command)
	}
	if numparse.Atoi(params[0])&1 != 0 {
		m.health |= mask
	} else {
		m.health &^= mask
	}
	return nil
}

// ReceiveData stores the wrap-around words sent on subaddress 30.
func (m *Gyro) ReceiveData(sa, count uint8, words *[32]uint16) error {
	if !m.inst.IsOn() {
		return nil
	}
	switch sa {
	case SAWrapAround:
		if count > 32 {
			m.inst.Warning("%s.RT Receiving Subaddress %d, wrong dataword numbers (DataWordCount = %d)", m.inst.Name(), sa, count)
			return nil
		}
		copy(m.wrapAround[:count], words[:count])
	default:
		m.inst.Warning("%s.RT Receiving Subaddress %d is not implemented for the model.", m.inst.Name(), sa)
	}
	return nil
}

// TransmitData answers the measurement block on subaddress 3, the
// wrap-around words on subaddress 30 and filler words on the 1 Hz blocks
// 9 to 20.
func (m *Gyro) TransmitData(sa, count uint8, words *[32]uint16) error {
	if !m.inst.IsOn() {
		return nil
	}
	n := min(int(count), len(words))
	clear(words[:n])
	switch {
	case sa == SAMeasurement:
		if count != measurementWords {
			return errors.Wrapf(ErrWordCount, "%s: subaddress %d serves %d words, %d requested", m.inst.Name(), sa, measurementWords, count)
		}
		words[0] = m.utc.secHigh
		words[1] = m.utc.secLow
		words[2] = m.clock200Hz & 0x00FF
		words[3] = m.clock1Hz
		words[4] = m.health
		for i := 0; i < 3; i++ {
			words[5+i] = uint16(int16(m.y[YAngle+i]))
		}
	case sa == SAWrapAround:
		if count > 32 {
			m.inst.Warning("%s.RT Transmit Subaddress %d, wrong dataword numbers (DataWordCount = %d)", m.inst.Name(), sa, count)
			return nil
		}
		copy(words[:n], m.wrapAround[:n])
	case sa >= 9 && sa <= 20:
		for i := range words[:n] {
			words[i] = unusedWord
		}
	default:
		m.inst.Warning("%s.RT Trasmitting Subaddress %d is not implemented for the model.", m.inst.Name(), sa)
	}
	return nil
}

func (m *Gyro) ReceiveModeCommand(sim.TxRx, sim.ModeCode, *[32]uint16) error {
	return nil
}
