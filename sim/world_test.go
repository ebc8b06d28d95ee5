package sim

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MDEGroup/satellite-interoperability/sim/runlog"
)

func TestRegister_AssignsIDsInCreationOrder(t *testing.T) {
	// GIVEN an empty world
	w, buf := newTestWorld(t)

	// WHEN three instances are registered
	a := mustRegister(t, w, "A", &counterModel{}, Arrays{})
	b := mustRegister(t, w, "B", &counterModel{}, Arrays{})
	c := mustRegister(t, w, "C", &counterModel{}, Arrays{})

	// THEN ids follow the creation order and both chains hold them
	assert.Equal(t, []int{1, 2, 3}, []int{a.ID(), b.ID(), c.ID()})
	assert.Equal(t, []string{"A", "B", "C"}, names(w.Instances()))
	assert.Equal(t, []string{"A", "B", "C"}, names(w.Order()))
	assert.Equal(t, 3, w.Len())
	assert.Contains(t, buf.String(), "Simulation run "+w.RunID())
	assert.Contains(t, buf.String(), "Register : ")
}

func TestRegister_DuplicateName_KeepsFirst(t *testing.T) {
	// GIVEN an instance named GYRO
	w, buf := newTestWorld(t)
	first := mustRegister(t, w, "GYRO", &counterModel{}, Arrays{})

	// WHEN a second instance uses the same name
	second, err := w.Register("GYRO", &counterModel{}, Arrays{})

	// THEN the attempt fails and only the first is registered
	assert.True(t, errors.Is(err, ErrDuplicateName))
	assert.False(t, second.Registered())
	assert.Same(t, first, w.FindByName("GYRO"))
	assert.Equal(t, 1, w.Len())
	assert.Contains(t, buf.String(), "NOT ALLOWED attempt to registry a Model")
	assert.Equal(t, 1, w.Log().Errors())

	// THEN the rejected attempt does not consume an id
	next := mustRegister(t, w, "SUM", &counterModel{}, Arrays{})
	assert.Equal(t, 2, next.ID())
}

func TestRegister_RejectsInvalidNamesAndShapes(t *testing.T) {
	tests := []struct {
		name   string
		arrays Arrays
		want   error
	}{
		{"", Arrays{}, ErrInvalidName},
		{"A.B", Arrays{}, ErrInvalidName},
		{"A B", Arrays{}, ErrInvalidName},
		{"DYN", Arrays{X: make([]float64, 2), Xdot: make([]float64, 1)}, ErrShapeMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, _ := newTestWorld(t)
			_, err := w.Register(tt.name, &counterModel{}, tt.arrays)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
			assert.Equal(t, 0, w.Len())
		})
	}
}

func TestDestroy_LastInstanceClosesRunLog(t *testing.T) {
	// GIVEN two instances and one warning logged
	w, buf := newTestWorld(t)
	a := mustRegister(t, w, "A", &counterModel{}, Arrays{})
	b := mustRegister(t, w, "B", &counterModel{}, Arrays{})
	a.Warning("something odd")

	// WHEN the first is destroyed
	require.NoError(t, w.Destroy(a))

	// THEN the world keeps running with the second
	assert.Equal(t, []string{"B"}, names(w.Order()))
	assert.NotNil(t, w.Log())
	assert.True(t, errors.Is(w.Destroy(a), ErrNotRegistered))

	// WHEN the last one is destroyed
	require.NoError(t, w.Destroy(b))

	// THEN the log totals are written and the world is reset
	assert.Nil(t, w.Log())
	assert.Contains(t, buf.String(), "Number of Warnings : 1")
	assert.Contains(t, buf.String(), "E N D     O F     P R O G R A M")
	assert.Equal(t, TopologyUnsolved, w.Topology())
	assert.Equal(t, 1, w.Metrics().Warnings)

	// THEN a new population starts again from id 1
	c := mustRegister(t, w, "C", &counterModel{}, Arrays{})
	assert.Equal(t, 1, c.ID())
}

func TestWorld_RunLogFileInLogDir(t *testing.T) {
	// GIVEN a world without a log writer
	dir := t.TempDir()
	w := NewWorld(Options{LogDir: dir, Now: fixedNow})

	// WHEN an instance is registered and destroyed
	inst := mustRegister(t, w, "A", &counterModel{}, Arrays{})
	path := w.Log().Path()
	require.NoError(t, w.Destroy(inst))

	// THEN the run log carries the time-stamped name
	assert.Equal(t, filepath.Join(dir, "dss_log_20260314_150926.txt"), path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Register : ")
}

func TestWorld_ListenerSeesEveryLine(t *testing.T) {
	// GIVEN a listener
	var kinds []runlog.Kind
	w, _ := newTestWorld(t, func(o *Options) {
		o.Listener = func(kind runlog.Kind, msg string) { kinds = append(kinds, kind) }
	})

	// WHEN lines of each kind are logged
	inst := mustRegister(t, w, "A", &counterModel{}, Arrays{})
	inst.Warning("w")
	inst.Error("e")

	// THEN the listener receives them
	assert.Contains(t, kinds, runlog.KindWrite)
	assert.Contains(t, kinds, runlog.KindMessage)
	assert.Contains(t, kinds, runlog.KindWarning)
	assert.Contains(t, kinds, runlog.KindError)
}

func TestInstance_PointerAccessorsBoundsChecked(t *testing.T) {
	// GIVEN an instance with one state, two inputs and one output
	w, buf := newTestWorld(t)
	a := Arrays{X: []float64{1}, Xdot: []float64{2}, U: []float64{3, 4}, Y: []float64{5}}
	inst := mustRegister(t, w, "A", &counterModel{}, a)

	// THEN in-range accessors alias the model storage
	*inst.PointerU(1) = 40
	assert.Equal(t, 40.0, a.U[1])
	assert.Equal(t, 5.0, inst.ValueY(0))
	assert.Same(t, &a.X[0], inst.PointerX(0))
	assert.Same(t, &a.Xdot[0], inst.PointerXdot(0))

	// THEN out-of-range accessors log an error and return nil or 0
	assert.Nil(t, inst.PointerY(1))
	assert.Nil(t, inst.PointerX(-1))
	assert.Equal(t, 0.0, inst.ValueU(2))
	assert.Equal(t, 3, w.Log().Errors())
	assert.True(t, strings.Contains(buf.String(), "shall be in the input array U size range"))
}

func TestPower_SwitchAndConsumption(t *testing.T) {
	// GIVEN two units with nominal loads
	w, _ := newTestWorld(t)
	a := mustRegister(t, w, "A", &counterModel{}, Arrays{})
	b := mustRegister(t, w, "B", &counterModel{}, Arrays{})
	a.SetPowerLoadAtSwitchOn(10)
	b.SetPowerLoadAtSwitchOn(5)

	// WHEN both are switched on
	require.NoError(t, a.SwitchOn())
	require.NoError(t, b.SwitchOn())

	// THEN the loads add up
	assert.Equal(t, 15.0, w.TotalPowerConsumption())

	// WHEN A loses its supply and B is switched off
	a.SetPowerSupplied(false)
	require.NoError(t, b.SwitchOff())

	// THEN nothing is consumed
	assert.True(t, a.SwitchedOn())
	assert.False(t, a.IsOn())
	assert.Equal(t, 0.0, b.PowerLoad())
	assert.Equal(t, 0.0, w.TotalPowerConsumption())
}

type powerProbe struct {
	counterModel
	switched []bool
}

func (p *powerProbe) PowerSwitched(on bool) error {
	p.switched = append(p.switched, on)
	return nil
}

func TestPower_ListenerNotified(t *testing.T) {
	w, _ := newTestWorld(t)
	m := &powerProbe{}
	inst := mustRegister(t, w, "A", m, Arrays{})

	require.NoError(t, inst.SwitchOn())
	require.NoError(t, inst.SwitchOff())

	assert.Equal(t, []bool{true, false}, m.switched)
}

func TestWorld_InstanceRandIsDeterministic(t *testing.T) {
	// GIVEN two worlds with the same seed
	w1, _ := newTestWorld(t)
	w2, _ := newTestWorld(t)
	a1 := mustRegister(t, w1, "GYRO", &counterModel{}, Arrays{})
	a2 := mustRegister(t, w2, "GYRO", &counterModel{}, Arrays{})

	// THEN instances of the same name draw the same sequence
	for i := 0; i < 5; i++ {
		assert.Equal(t, a1.Rand().Float64(), a2.Rand().Float64())
	}
}

func TestWorld_EpochStampsLogLines(t *testing.T) {
	var buf bytes.Buffer
	w := NewWorld(Options{LogWriter: &buf, Now: fixedNow})
	defer w.DestroyAll()
	inst := mustRegister(t, w, "A", &counterModel{}, Arrays{})

	w.SetEpoch(12.5)
	inst.Message("hello")

	assert.Contains(t, buf.String(), "      12.500            : hello\n")
	assert.Equal(t, 12.5, inst.CurrentEpoch())
}
