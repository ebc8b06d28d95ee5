package sim

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MDEGroup/satellite-interoperability/sim/trace"
)

func TestTopology_TwoUnlinkedInstances(t *testing.T) {
	// GIVEN A (ny=1) and B (nu=1) without links
	w, _ := newTestWorld(t)
	ma, aa := newPass(0, 1)
	mb, ab := newPass(1, 0)
	a := mustRegister(t, w, "A", ma, aa)
	b := mustRegister(t, w, "B", mb, ab)

	// WHEN the topology is analyzed
	require.NoError(t, w.AnalyzeTopology())

	// THEN both sit at nesting level 1 in creation order
	assert.Equal(t, 1, a.NestingLevel())
	assert.Equal(t, 1, b.NestingLevel())
	assert.Equal(t, []string{"A", "B"}, names(w.Order()))
	assert.Equal(t, TopologySolved, w.Topology())
}

func TestTopology_LinkedPair_AndBusyInput(t *testing.T) {
	// GIVEN A (ny=1) and B (nu=1)
	w, buf := newTestWorld(t)
	ma, aa := newPass(0, 1)
	mb, ab := newPass(1, 0)
	a := mustRegister(t, w, "A", ma, aa)
	b := mustRegister(t, w, "B", mb, ab)

	// WHEN A.Y[0] feeds B.U[0]
	require.NoError(t, w.Connect(a.Output(0), b.Input(0), 1, false))

	// THEN connecting the same input again fails
	err := w.Connect(a.Output(0), b.Input(0), 1, false)
	assert.True(t, errors.Is(err, ErrInputBusy))
	assert.Contains(t, buf.String(), "has been already connected")

	// WHEN analyzed
	require.NoError(t, w.AnalyzeTopology())

	// THEN B is one level below A
	assert.Equal(t, 1, a.NestingLevel())
	assert.Equal(t, 2, b.NestingLevel())
	assert.Equal(t, []string{"A", "B"}, names(w.Order()))
	src, ok := b.Source(0)
	require.True(t, ok)
	assert.Same(t, a, src.Inst)
	dst, ok := a.OutputConnection(0)
	require.True(t, ok)
	assert.Equal(t, InputRef{Inst: b, Index: 0}, dst)
}

func TestTopology_OrderFollowsNestingNotCreation(t *testing.T) {
	// GIVEN B created before A but fed by it
	w, _ := newTestWorld(t)
	mb, ab := newPass(1, 1)
	ma, aa := newPass(0, 1)
	b := mustRegister(t, w, "B", mb, ab)
	a := mustRegister(t, w, "A", ma, aa)
	require.NoError(t, w.Connect(a.Output(0), b.Input(0), 1, false))

	// WHEN analyzed
	require.NoError(t, w.AnalyzeTopology())

	// THEN A runs first and the order is stable
	assert.Equal(t, []string{"A", "B"}, names(w.Order()))
	assert.Equal(t, []string{"B", "A"}, names(w.Instances()))
}

func TestTopology_CycleRejected(t *testing.T) {
	tests := []struct {
		name string
		size int
	}{
		{"two instances", 2},
		{"three instances", 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// GIVEN a chain of pass-through instances
			w, buf := newTestWorld(t)
			insts := make([]*Instance, tt.size)
			for i := range insts {
				m, a := newPass(1, 1)
				insts[i] = mustRegister(t, w, string(rune('A'+i)), m, a)
			}
			for i := 0; i+1 < tt.size; i++ {
				require.NoError(t, w.Connect(insts[i].Output(0), insts[i+1].Input(0), 1, false))
			}

			// WHEN the last one feeds the first without delay
			err := w.Connect(insts[tt.size-1].Output(0), insts[0].Input(0), 1, false)

			// THEN the link is refused and rolled back
			assert.True(t, errors.Is(err, ErrTopologyLoop))
			assert.Contains(t, buf.String(), "CONNECTIONS LOOP detected")
			_, linked := insts[0].Source(0)
			assert.False(t, linked)

			// THEN the accepted chain still analyzes
			require.NoError(t, w.AnalyzeTopology())
			for i, inst := range insts {
				assert.Equal(t, i+1, inst.NestingLevel())
			}
		})
	}
}

func TestTopology_DelayedLinkBreaksCycle(t *testing.T) {
	// GIVEN A -> B
	w, _ := newTestWorld(t)
	ma, aa := newPass(1, 1)
	mb, ab := newPass(1, 1)
	a := mustRegister(t, w, "A", ma, aa)
	b := mustRegister(t, w, "B", mb, ab)
	require.NoError(t, w.Connect(a.Output(0), b.Input(0), 1, false))

	// WHEN B feeds A through a delayed link
	require.NoError(t, w.Connect(b.Output(0), a.Input(0), 1, true))

	// THEN the topology is solved and the delayed edge does not raise A
	require.NoError(t, w.AnalyzeTopology())
	assert.Equal(t, []string{"A", "B"}, names(w.Order()))
	assert.Less(t, a.NestingLevel(), b.NestingLevel())
}

func TestTopology_ClassifiesStaticInstances(t *testing.T) {
	// GIVEN D1 (dynamic) -> S (static) -> D2 (dynamic) -> P (static), and a
	// lone static source Q
	w, _ := newTestWorld(t)
	md1, ad1 := newIntegrator(0)
	ms, as := newPass(1, 1)
	md2, ad2 := newIntegrator(1)
	mp, ap := newPass(1, 1)
	mq, aq := newPass(0, 1)
	d1 := mustRegister(t, w, "D1", md1, ad1)
	s := mustRegister(t, w, "S", ms, as)
	d2 := mustRegister(t, w, "D2", md2, ad2)
	p := mustRegister(t, w, "P", mp, ap)
	q := mustRegister(t, w, "Q", mq, aq)
	require.NoError(t, w.Connect(d1.Output(0), s.Input(0), 1, false))
	require.NoError(t, w.Connect(s.Output(0), d2.Input(0), 1, false))
	require.NoError(t, w.Connect(d2.Output(0), p.Input(0), 1, false))

	// WHEN analyzed
	require.NoError(t, w.AnalyzeTopology())

	// THEN the static block between dynamics is propagated, the tail runs
	// after propagation and the lone source before it
	assert.Equal(t, DynamicOrPropagatedStatic, d1.Mode())
	assert.Equal(t, DynamicOrPropagatedStatic, s.Mode())
	assert.Equal(t, DynamicOrPropagatedStatic, d2.Mode())
	assert.Equal(t, StaticAfterPropagation, p.Mode())
	assert.Equal(t, StaticBeforePropagation, q.Mode())
	assert.Equal(t, []int{1, 2, 3, 4, 1}, []int{d1.NestingLevel(), s.NestingLevel(), d2.NestingLevel(), p.NestingLevel(), q.NestingLevel()})
	assert.Equal(t, []string{"D1", "Q", "S", "D2", "P"}, names(w.Order()))
}

func TestTopology_AlwaysUpdatedOverride(t *testing.T) {
	w, _ := newTestWorld(t)
	m, a := newPass(0, 1)
	inst := mustRegister(t, w, "A", m, a)
	inst.SetAlwaysUpdated(true)

	require.NoError(t, w.AnalyzeTopology())

	assert.Equal(t, AlwaysUpdated, inst.Mode())
}

func TestConnect_RejectsInvalidEndpoints(t *testing.T) {
	w, _ := newTestWorld(t)
	ma, aa := newPass(1, 2)
	mb, ab := newPass(2, 1)
	a := mustRegister(t, w, "A", ma, aa)
	b := mustRegister(t, w, "B", mb, ab)
	other, _ := newTestWorld(t)
	stranger := mustRegister(t, other, "X", &counterModel{}, Arrays{Y: make([]float64, 1)})

	tests := []struct {
		name  string
		src   OutputRef
		dst   InputRef
		count int
		want  error
	}{
		{"source index out of range", a.Output(2), b.Input(0), 1, ErrUnresolvedEndpoint},
		{"count overruns source", a.Output(1), b.Input(0), 2, ErrUnresolvedEndpoint},
		{"count overruns target", a.Output(0), b.Input(1), 2, ErrUnresolvedEndpoint},
		{"foreign source", stranger.Output(0), b.Input(0), 1, ErrUnresolvedEndpoint},
		{"self link", a.Output(0), a.Input(0), 1, ErrSelfLink},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := w.Connect(tt.src, tt.dst, tt.count, false)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
	assert.Equal(t, 3, w.InputConnectionsCheck())
}

func TestConnect_MultipleConsecutiveLinks(t *testing.T) {
	// GIVEN A with 3 outputs and B with 3 inputs
	w, buf := newTestWorld(t)
	ma, aa := newPass(0, 3)
	mb, ab := newPass(3, 0)
	a := mustRegister(t, w, "A", ma, aa)
	b := mustRegister(t, w, "B", mb, ab)

	// WHEN two consecutive elements are linked at once
	require.NoError(t, w.Connect(a.Output(1), b.Input(0), 2, false))

	// THEN each input has its own source element
	src0, _ := b.Source(0)
	src1, _ := b.Source(1)
	assert.Equal(t, 1, src0.Index)
	assert.Equal(t, 2, src1.Index)
	assert.Contains(t, buf.String(), "successfully established {2 Links}")

	// THEN the remaining input is reported as unconnected
	assert.Equal(t, 1, w.InputConnectionsCheck())

	// THEN overlapping a busy slot is refused as a whole
	err := w.Connect(a.Output(0), b.Input(1), 2, false)
	assert.True(t, errors.Is(err, ErrInputBusy))
	_, linked := b.Source(2)
	assert.False(t, linked)
}

func TestAnalyzeTopology_OnlyOnce(t *testing.T) {
	// GIVEN an analyzed topology
	w, _ := newTestWorld(t)
	ma, aa := newPass(0, 1)
	mb, ab := newPass(1, 0)
	a := mustRegister(t, w, "A", ma, aa)
	b := mustRegister(t, w, "B", mb, ab)
	require.NoError(t, w.AnalyzeTopology())

	// THEN neither a second analysis nor a new link is accepted
	assert.True(t, errors.Is(w.AnalyzeTopology(), ErrTopologySolved))
	assert.True(t, errors.Is(w.Connect(a.Output(0), b.Input(0), 1, false), ErrTopologySolved))
}

func TestAnalyzeTopology_RecordsExecutionOrder(t *testing.T) {
	st := trace.NewSimulationTrace(trace.TraceConfig{Level: trace.TraceLevelNone})
	w, _ := newTestWorld(t, func(o *Options) { o.Trace = st })
	ma, aa := newPass(0, 1)
	mb, ab := newPass(1, 0)
	a := mustRegister(t, w, "A", ma, aa)
	b := mustRegister(t, w, "B", mb, ab)
	require.NoError(t, w.Connect(a.Output(0), b.Input(0), 1, false))

	require.NoError(t, w.AnalyzeTopology())

	require.Len(t, st.Topology, 2)
	assert.Equal(t, trace.TopologyRecord{Position: 2, Instance: "B", ID: 2, Nesting: 2, Mode: "StaticBeforePropagation"}, st.Topology[1])
}

func TestAnalyzeTopology_Deterministic(t *testing.T) {
	build := func() []string {
		w, _ := newTestWorld(t)
		var insts []*Instance
		for _, n := range []string{"E", "D", "C", "B", "A"} {
			m, a := newPass(1, 1)
			insts = append(insts, mustRegister(t, w, n, m, a))
		}
		require.NoError(t, w.Connect(insts[4].Output(0), insts[0].Input(0), 1, false))
		require.NoError(t, w.Connect(insts[0].Output(0), insts[2].Input(0), 1, false))
		require.NoError(t, w.Connect(insts[3].Output(0), insts[1].Input(0), 1, false))
		require.NoError(t, w.AnalyzeTopology())
		return names(w.Order())
	}

	first := build()
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, build())
	}
	assert.Equal(t, []string{"B", "A", "E", "D", "C"}, first)
}
