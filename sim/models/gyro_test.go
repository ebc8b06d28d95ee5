package models

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MDEGroup/satellite-interoperability/sim"
	"github.com/MDEGroup/satellite-interoperability/sim/internal/testutil"
	"github.com/MDEGroup/satellite-interoperability/sim/numeric"
)

// gyroSettings has every error source disabled, a 2^-17 rad/LSB scale factor
// and a 128 Hz frame counter so that the counters stay exact.
const gyroSettings = `
	GYRO.BRF2UNIT = [ 1 0 0
	                  0 1 0
	                  0 0 1 ]
	GYRO.BIAS = 0.5
	GYRO.ARW = 0.01
	GYRO.RON = 1e-6
	GYRO.TIME_LSB = 0.0078125
	GYRO.ANGLE_LSB = 7.62939453125e-06
	GYRO.SAMPLE_TIME = 0.125
	GYRO.ARW_ENABLED = 0
	GYRO.OWN_ENABLED = 0
	GYRO.BIAS_ENABLED = 0
	GYRO.POSITION_WRT_SC = [ 0.1 0.2 0.3 ]
`

func newGyro(t *testing.T, w *sim.World, text string) (*Gyro, *sim.Instance) {
	t.Helper()
	m, inst, err := NewGyro(w, "GYRO", 5)
	require.NoError(t, err)
	require.NoError(t, w.InitializeWith(settings(t, text)))
	return m, inst
}

// unitRate is 2^-7 rad/s, 128 LSB per tick.
const unitRate = 0.0078125

// runGyro switches the gyro on, applies the body rate and runs n ticks of
// 0.125 s.
func runGyro(t *testing.T, w *sim.World, inst *sim.Instance, omega [3]float64, n int) {
	t.Helper()
	require.NoError(t, inst.SwitchOn())
	for i, v := range omega {
		*inst.PointerU(i) = v
	}
	d, err := sim.NewDriver(w, 0.125)
	require.NoError(t, err)
	require.NoError(t, d.Run(context.Background(), float64(n)*0.125))
}

func TestGyro_InitializeLeavesUnitOff(t *testing.T) {
	// GIVEN a gyro on the bus
	w, _ := newWorld(t)
	m, inst := newGyro(t, w, gyroSettings)

	// THEN it starts switched off with valid data
	assert.False(t, inst.IsOn())
	assert.False(t, inst.RTEnabled())
	assert.Equal(t, 5, inst.RTAddress())
	assert.Equal(t, HealthDataValid, m.Health())
	assert.Equal(t, sim.DynamicOrPropagatedStatic, inst.Mode())
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, m.p.position)
}

func TestGyro_IntegratesRateIntoCounters(t *testing.T) {
	// GIVEN a gyro switched on with a constant rate about X
	w, _ := newWorld(t)
	m, inst := newGyro(t, w, gyroSettings)

	// WHEN 13 ticks of 0.125 s are run
	runGyro(t, w, inst, [3]float64{unitRate, 0, 0}, 13)

	// THEN the counter holds rate * time / LSB and the rate is measured back
	testutil.AssertFloat64Equal(t, "angle X", 1664, inst.ValueY(YAngle), 1e-12)
	assert.Equal(t, 0.0, inst.ValueY(YAngle+1))
	assert.InDelta(t, unitRate, inst.ValueY(YRate), 1e-12)
	assert.InDelta(t, 0, inst.ValueY(YRate+2), 1e-12)

	// THEN the 200 Hz frame counter wrapped once into the 1 Hz counter
	assert.Equal(t, 8.0, inst.ValueY(YFrameTimer))
	assert.Equal(t, uint16(1), m.clock1Hz)
	assert.Equal(t, float64(HealthDataValid), inst.ValueY(YHealth))
	assert.InDelta(t, 1.625, inst.TimeAtLastUpdate, 1e-12)
	assert.InDelta(t, 0.125, inst.DeltaTimeAtLastUpdate, 1e-12)
}

func TestGyro_BiasAddsToTheRate(t *testing.T) {
	// GIVEN a gyro with a 36 deg/h bias enabled
	w, _ := newWorld(t)
	_, inst := newGyro(t, w, `
		GYRO.BIAS_ENABLED = 1
		GYRO.BIAS = 36
	`+gyroSettings)

	// WHEN it runs at rest
	runGyro(t, w, inst, [3]float64{}, 8)

	// THEN every axis measures the bias
	want := 36 * numeric.Deg2Rad / 3600
	for i := 0; i < 3; i++ {
		assert.InDelta(t, want, inst.ValueY(YRate+i), 1e-9)
	}
}

func TestGyro_MountingMatrix(t *testing.T) {
	// GIVEN a unit with X and Y swapped
	w, _ := newWorld(t)
	m, inst := newGyro(t, w, `
		GYRO.BRF2UNIT = [ 0 1 0 1 0 0 0 0 1 ]
	`+gyroSettings)

	// WHEN the body turns about X
	runGyro(t, w, inst, [3]float64{unitRate, 0, 0}, 4)

	// THEN the unit measures about its Y axis and the body rate comes back on X
	assert.InDelta(t, 0.0, inst.ValueY(YRate), 1e-12)
	assert.InDelta(t, unitRate, inst.ValueY(YRate+1), 1e-12)
	testutil.AssertSliceEqual(t, "body rate", []float64{unitRate, 0, 0}, m.BodyRate(), 1e-12)
}

func TestGyro_SingularMountingMatrix(t *testing.T) {
	w, _ := newWorld(t)
	_, _, err := NewGyro(w, "GYRO", 0)
	require.NoError(t, err)

	err = w.InitializeWith(settings(t, "GYRO.BRF2UNIT = [ 1 0 0 1 0 0 0 0 1 ]\n"+gyroSettings))

	assert.True(t, errors.Is(err, numeric.ErrSingular), "got %v", err)
	var pe *sim.PhaseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, sim.PhaseInitialize, pe.Phase)
}

func TestGyro_HighRateWarning(t *testing.T) {
	w, buf := newWorld(t)
	_, inst := newGyro(t, w, gyroSettings)

	runGyro(t, w, inst, [3]float64{0.3, 0, 0}, 1)

	assert.Contains(t, buf.String(), "GYRO high rate condition is occurred")
	assert.Equal(t, 1, w.Log().Warnings())
}

func TestGyro_NoiseIsReproducible(t *testing.T) {
	// GIVEN two worlds with the same seed and every error source enabled
	noisy := `
		GYRO.ARW_ENABLED = 1
		GYRO.OWN_ENABLED = 1
	` + gyroSettings
	run := func() []float64 {
		w, _ := newWorld(t)
		_, inst := newGyro(t, w, noisy)
		runGyro(t, w, inst, [3]float64{unitRate, 2 * unitRate, 0}, 6)
		return append([]float64(nil), inst.Y()...)
	}

	// THEN both draw the same samples
	first, second := run(), run()
	assert.Equal(t, first, second)
	assert.NotEqual(t, unitRate, first[YRate])
}

func TestGyro_SwitchOffClearsOutputs(t *testing.T) {
	w, _ := newWorld(t)
	_, inst := newGyro(t, w, gyroSettings)
	runGyro(t, w, inst, [3]float64{unitRate, 0, 0}, 2)
	require.NotZero(t, inst.ValueY(YAngle))

	require.NoError(t, inst.SwitchOff())

	assert.Equal(t, make([]float64, gyroOutputs), inst.Y())
	assert.False(t, inst.RTEnabled())
}

func TestGyro_HealthCommands(t *testing.T) {
	tests := []struct {
		command string
		want    uint16
	}{
		{"GYRO.SET_GO_NOG_BIT,1", HealthDataValid | HealthGoNogo},
		{"GYRO.SET_DATA_VALIDITY_BIT,0", 0},
		{"GYRO.SET_GO_NOG_BIT, 0", HealthDataValid},
	}
	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			w, _ := newWorld(t)
			m, _ := newGyro(t, w, gyroSettings)

			require.NoError(t, w.Execute(tt.command))

			assert.Equal(t, tt.want, m.Health())
		})
	}
}

func TestGyro_RejectsUnknownCommands(t *testing.T) {
	w, buf := newWorld(t)
	newGyro(t, w, gyroSettings)

	for _, cmd := range []string{"GYRO.SET_GO_NOG_BIT", "GYRO.SET_GO_NOG_BIT,1,2", "GYRO.CALIBRATE,1"} {
		err := w.Execute(cmd)
		assert.True(t, errors.Is(err, sim.ErrCommandRejected), "%s: got %v", cmd, err)
	}
	assert.Contains(t, buf.String(), "is not allowed for the Model \"GYRO\"")
}

func TestGyro_MeasurementBlock(t *testing.T) {
	// GIVEN a gyro that ran 13 ticks with the GO/NOGO bit set
	w, _ := newWorld(t)
	_, inst := newGyro(t, w, gyroSettings)
	require.NoError(t, w.Execute("GYRO.SET_GO_NOG_BIT,1"))
	runGyro(t, w, inst, [3]float64{unitRate, -unitRate / 8, 0}, 13)

	// WHEN the bus controller reads subaddress 3
	var words [32]uint16
	for i := range words {
		words[i] = 0xFFFF
	}
	require.NoError(t, w.BCTransmitData(5, SAMeasurement, 13, &words))

	// THEN the block carries the time tag, the frame counters, the health
	// word and the three angle counters
	dt := 0.125
	ticks := 13 * uint32(dt/SecFieldLSB)
	assert.Equal(t, uint16(ticks>>16), words[0])
	assert.Equal(t, uint16(ticks), words[1])
	assert.Equal(t, uint16(8), words[2])
	assert.Equal(t, uint16(1), words[3])
	assert.Equal(t, HealthDataValid|HealthGoNogo, words[4])
	assert.Equal(t, uint16(1664), words[5])
	assert.Equal(t, uint16(0xFFFF-207), words[6]) // -208 LSB
	assert.Equal(t, uint16(0), words[7])
	assert.Equal(t, make([]uint16, 5), words[8:13])
	assert.Equal(t, uint16(0xFFFF), words[13])
}

func TestGyro_BusSubaddresses(t *testing.T) {
	w, buf := newWorld(t)
	_, inst := newGyro(t, w, gyroSettings)
	require.NoError(t, inst.SwitchOn())

	// wrap-around
	in := [32]uint16{0x1111, 0x2222, 0x3333, 0x4444}
	require.NoError(t, w.BCReceiveData(5, SAWrapAround, 4, &in))
	var out [32]uint16
	require.NoError(t, w.BCTransmitData(5, SAWrapAround, 4, &out))
	assert.Equal(t, in[:4], out[:4])

	// 1 Hz blocks are filled
	var slow [32]uint16
	require.NoError(t, w.BCTransmitData(5, 12, 3, &slow))
	assert.Equal(t, []uint16{0xCACA, 0xCACA, 0xCACA, 0}, slow[:4])

	// wrong block size
	var short [32]uint16
	err := w.BCTransmitData(5, SAMeasurement, 12, &short)
	assert.True(t, errors.Is(err, ErrWordCount), "got %v", err)

	// unsupported subaddresses only warn
	require.NoError(t, w.BCTransmitData(5, 7, 1, &short))
	require.NoError(t, w.BCReceiveData(5, 7, 1, &short))
	assert.Contains(t, buf.String(), "GYRO.RT Trasmitting Subaddress 7 is not implemented for the model.")
	assert.Contains(t, buf.String(), "GYRO.RT Receiving Subaddress 7 is not implemented for the model.")
}

func TestGyro_SilentWhenOff(t *testing.T) {
	w, _ := newWorld(t)
	newGyro(t, w, gyroSettings)

	words := [32]uint16{0xBEEF}
	require.NoError(t, w.BCTransmitData(5, SAMeasurement, 13, &words))

	assert.Equal(t, uint16(0xBEEF), words[0])
}

func TestWrap16(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{100, 100},
		{-32768, -32768},
		{32767, 32767},
		{32768, -32767},
		{-32769, 32766},
	}
	for _, tt := range tests {
		if got := wrap16(tt.in); got != tt.want {
			t.Errorf("wrap16(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
