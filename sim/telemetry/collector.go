// Package telemetry exports the activity of a simulation kernel to
// Prometheus and OpenTelemetry.
package telemetry

import (
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// KernelCollector exposes kernel metrics. It satisfies sim.Collector.
type KernelCollector struct {
	gatherer prometheus.Gatherer

	Ticks          prometheus.Counter
	SimulatedTime  prometheus.Gauge
	Instances      prometheus.Gauge
	PhaseDurations *prometheus.HistogramVec
	Commands       *prometheus.CounterVec
	BusMessages    *prometheus.CounterVec
	LogLines       *prometheus.CounterVec
}

// NewKernelCollector registers the kernel metrics against reg, the default
// registerer when nil.
func NewKernelCollector(reg prometheus.Registerer) (*KernelCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	c := &KernelCollector{gatherer: gatherer}
	var err error
	if c.Ticks, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sim_ticks_total",
		Help: "Number of completed integration steps.",
	}), "sim_ticks_total"); err != nil {
		return nil, err
	}
	if c.SimulatedTime, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sim_simulated_time_seconds",
		Help: "Simulation time reached by the last completed step.",
	}), "sim_simulated_time_seconds"); err != nil {
		return nil, err
	}
	if c.Instances, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sim_instances",
		Help: "Number of registered model instances.",
	}), "sim_instances"); err != nil {
		return nil, err
	}
	if c.PhaseDurations, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sim_phase_duration_seconds",
		Help:    "Wall-clock duration of the scheduler phases.",
		Buckets: []float64{0.00001, 0.0001, 0.001, 0.01, 0.1, 1},
	}, []string{"phase"}), "sim_phase_duration_seconds"); err != nil {
		return nil, err
	}
	if c.Commands, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sim_commands_total",
		Help: "Executed commands by target model and outcome.",
	}, []string{"target", "outcome"}), "sim_commands_total"); err != nil {
		return nil, err
	}
	if c.BusMessages, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sim_bus1553_messages_total",
		Help: "Bus controller transactions by kind.",
	}, []string{"kind"}), "sim_bus1553_messages_total"); err != nil {
		return nil, err
	}
	if c.LogLines, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sim_log_lines_total",
		Help: "Run log lines by kind.",
	}, []string{"kind"}), "sim_log_lines_total"); err != nil {
		return nil, err
	}
	return c, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *KernelCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// Handler serves the gathered metrics in the Prometheus text format.
func (c *KernelCollector) Handler() http.Handler {
	return promhttp.HandlerFor(c.Gatherer(), promhttp.HandlerOpts{})
}

// WriteTextfile dumps the gathered metrics to path, for the node exporter
// textfile collector.
func (c *KernelCollector) WriteTextfile(path string) error {
	return errors.Wrapf(prometheus.WriteToTextfile(path, c.Gatherer()), "write metrics %s", path)
}

func (c *KernelCollector) ObserveTick(simTime float64) {
	if c == nil {
		return
	}
	c.Ticks.Inc()
	c.SimulatedTime.Set(simTime)
}

func (c *KernelCollector) ObservePhase(phase string, d time.Duration) {
	if c == nil {
		return
	}
	c.PhaseDurations.WithLabelValues(phase).Observe(d.Seconds())
}

// ObserveCommand counts a command; static commands are labelled "static".
func (c *KernelCollector) ObserveCommand(target string, ok bool) {
	if c == nil {
		return
	}
	if target == "" {
		target = "static"
	}
	outcome := "ok"
	if !ok {
		outcome = "failed"
	}
	c.Commands.WithLabelValues(target, outcome).Inc()
}

func (c *KernelCollector) ObserveBus(kind string) {
	if c == nil {
		return
	}
	c.BusMessages.WithLabelValues(kind).Inc()
}

func (c *KernelCollector) ObserveLogLine(kind string) {
	if c == nil {
		return
	}
	c.LogLines.WithLabelValues(kind).Inc()
}

func (c *KernelCollector) SetInstances(n int) {
	if c == nil {
		return
	}
	c.Instances.Set(float64(n))
}

// register returns the collector already registered under name when it has
// the same type.
func register[C prometheus.Collector](reg prometheus.Registerer, col C, name string) (C, error) {
	if err := reg.Register(col); err != nil {
		var zero C
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return zero, errors.Wrapf(err, "register %s", name)
		}
		existing, ok := are.ExistingCollector.(C)
		if !ok {
			return zero, errors.Errorf("collector %s already registered with incompatible type", name)
		}
		return existing, nil
	}
	return col, nil
}
