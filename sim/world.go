package sim

import (
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/MDEGroup/satellite-interoperability/sim/config"
	"github.com/MDEGroup/satellite-interoperability/sim/runlog"
	"github.com/MDEGroup/satellite-interoperability/sim/trace"
)

const tracerName = "github.com/MDEGroup/satellite-interoperability/sim"

// TopologyState is the one-shot state of the topology analysis.
type TopologyState int

const (
	// TopologyUnsolved accepts new links; execution order is creation order.
	TopologyUnsolved TopologyState = iota
	// TopologySolved freezes links and execution order.
	TopologySolved
)

func (s TopologyState) String() string {
	if s == TopologySolved {
		return "Solved"
	}
	return "Unsolved"
}

// Options configures a World.
type Options struct {
	// LogDir holds the run log, the debug logs and the bus dump. Defaults to ".".
	LogDir string
	// LogWriter, when set, receives the run log instead of a file in LogDir.
	LogWriter io.Writer
	// Seed keys the per-instance random sources.
	Seed int64
	// DisablePublish skips the GO.* introspection fields at initialization.
	DisablePublish bool
	// Trace records commands, bus transactions and the execution order.
	Trace *trace.SimulationTrace
	// Collector receives kernel activity. Defaults to a no-op.
	Collector Collector
	// Tracer opens one span per scheduler phase. Defaults to the global
	// OpenTelemetry provider.
	Tracer oteltrace.Tracer
	// Listener receives a copy of every run-log line.
	Listener runlog.Listener
	// Now stamps log file names. Defaults to time.Now.
	Now func() time.Time
}

// World owns every instance of one simulation, the shared run log, the
// command queue and the topology state.
//
// Thread-safety: NOT thread-safe. One goroutine drives the whole world.
type World struct {
	opts        Options
	id          uuid.UUID
	log         *runlog.Log
	busLog      *runlog.Log
	epoch       float64
	instances   []*Instance // creation order
	order       []*Instance // execution order
	nextID      int
	topology    TopologyState
	queue       *commandQueue
	queueLoaded bool // settings command stack merged into queue
	rng         *PartitionedRNG
	metrics     RunMetrics
	collector   Collector
	tracer      oteltrace.Tracer
}

// NewWorld creates an empty world. The run log is opened by the first
// registration and closed when the last instance is destroyed.
func NewWorld(opts Options) *World {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	w := &World{
		opts:      opts,
		id:        uuid.New(),
		rng:       NewPartitionedRNG(NewSimulationKey(opts.Seed)),
		collector: opts.Collector,
		tracer:    opts.Tracer,
	}
	if w.collector == nil {
		w.collector = nopCollector{}
	}
	if w.tracer == nil {
		w.tracer = otel.Tracer(tracerName)
	}
	w.metrics.RunID = w.id.String()
	return w
}

// RunID identifies this world in logs, traces and metrics.
func (w *World) RunID() string { return w.id.String() }

// Epoch returns the current simulation time.
func (w *World) Epoch() float64 { return w.epoch }

// SetEpoch moves the shared clock, typically before InitializeAll.
func (w *World) SetEpoch(t float64) { w.epoch = t }

// Log returns the shared run log; nil before the first registration.
func (w *World) Log() *runlog.Log { return w.log }

// RNG returns the world random source partition.
func (w *World) RNG() *PartitionedRNG { return w.rng }

// Topology returns the topology analysis state.
func (w *World) Topology() TopologyState { return w.topology }

// Len returns the number of registered instances.
func (w *World) Len() int { return len(w.instances) }

// Instances returns the registered instances in creation order.
func (w *World) Instances() []*Instance {
	return append([]*Instance(nil), w.instances...)
}

// Order returns the registered instances in execution order. Before the
// topology analysis this is the creation order.
func (w *World) Order() []*Instance {
	return append([]*Instance(nil), w.order...)
}

// FindByName returns the instance with the given name, or nil.
func (w *World) FindByName(name string) *Instance {
	for _, inst := range w.instances {
		if inst.name == name {
			return inst
		}
	}
	return nil
}

func (w *World) openLog() {
	if w.log != nil {
		return
	}
	if w.opts.LogWriter != nil {
		w.log = runlog.New(w.opts.LogWriter, w.Epoch)
	} else {
		l, err := runlog.Open(w.opts.LogDir, runlog.PrefixRun, w.opts.Now(), w.Epoch)
		if err != nil {
			logrus.Warnf("run log unavailable, discarding it: %v", err)
			l = runlog.New(io.Discard, w.Epoch)
		}
		w.log = l
	}
	w.log.SetListener(w.onLogLine)
	w.log.Write("Simulation run %s\n\n", w.id)
}

func (w *World) onLogLine(kind runlog.Kind, msg string) {
	w.collector.ObserveLogLine(string(kind))
	if w.opts.Listener != nil {
		w.opts.Listener(kind, msg)
	}
}

// Register creates an instance named name around model and its arrays.
//
// A duplicate name is refused: the returned instance exists but is not
// registered and ErrDuplicateName is returned with it.
func (w *World) Register(name string, model Model, a Arrays) (*Instance, error) {
	w.openLog()
	inst := newInstance(w, name, model, a)
	if name == "" || strings.ContainsAny(name, ". \t") {
		w.log.Error("Register : invalid model name \"%s\", it shall be non empty and contain neither blanks nor dots", name)
		return inst, ErrInvalidName
	}
	if len(a.X) != len(a.Xdot) {
		w.log.Error("Register : model \"%s\" has %d states but %d state derivatives", name, len(a.X), len(a.Xdot))
		return inst, ErrShapeMismatch
	}
	if prev := w.FindByName(name); prev != nil {
		w.log.Error("Register : NOT ALLOWED attempt to registry a Model (Id=%d,N=%d) identified by the already used name \"%s\". The Model name shall be unique!",
			prev.id, len(w.instances), name)
		return inst, ErrDuplicateName
	}
	w.nextID++
	inst.id = w.nextID
	inst.registered = true
	w.instances = append(w.instances, inst)
	w.order = append(w.order, inst)
	w.collector.SetInstances(len(w.instances))
	w.log.Message("Register : \"% 24s\" >> (Id=%d,N=%d), nx=%d, nu=%d, ny=%d",
		name, inst.id, len(w.instances), inst.NX(), inst.NU(), inst.NY())
	return inst, nil
}

// Destroy removes one instance. Destroying the last instance closes the run
// log and resets the world so that it can be populated again.
func (w *World) Destroy(inst *Instance) error {
	if inst == nil || inst.world != w || !inst.registered {
		return ErrNotRegistered
	}
	w.log.Message("Destroy : \"% 24s\" >> (Id=%d,N=%d)", inst.name, inst.id, len(w.instances))
	inst.closeDebug()
	inst.registered = false
	inst.links = nil
	inst.published = nil
	inst.serial = nil
	w.instances = remove(w.instances, inst)
	w.order = remove(w.order, inst)
	w.collector.SetInstances(len(w.instances))
	if len(w.instances) == 0 {
		w.teardown()
	}
	return nil
}

// DestroyAll destroys every instance in creation order.
func (w *World) DestroyAll() {
	for _, inst := range w.Instances() {
		_ = w.Destroy(inst)
	}
}

func (w *World) teardown() {
	w.metrics.Warnings = w.log.Warnings()
	w.metrics.Errors = w.log.Errors()
	if w.busLog != nil {
		_ = w.busLog.Close()
		w.busLog = nil
	}
	if err := w.log.Close(); err != nil {
		logrus.Warnf("closing run log: %v", err)
	}
	w.log = nil
	w.epoch = 0
	w.nextID = 0
	w.topology = TopologyUnsolved
	w.queue = nil
	w.queueLoaded = false
}

func remove(list []*Instance, inst *Instance) []*Instance {
	for i, x := range list {
		if x == inst {
			return append(list[:i:i], list[i+1:]...)
		}
	}
	return list
}

// settingsLogger adapts the run log to the settings store.
func (w *World) settingsLogger() config.Logger {
	return w.log
}
