package sim

import "time"

// Collector receives kernel activity for external monitoring. The
// telemetry package provides a Prometheus implementation.
type Collector interface {
	ObserveTick(simTime float64)
	ObservePhase(phase string, d time.Duration)
	ObserveCommand(target string, ok bool)
	ObserveBus(kind string)
	ObserveLogLine(kind string)
	SetInstances(n int)
}

type nopCollector struct{}

func (nopCollector) ObserveTick(float64) {}
func (nopCollector) ObservePhase(string, time.Duration) {}
func (nopCollector) ObserveCommand(string, bool) {}
func (nopCollector) ObserveBus(string) {}
func (nopCollector) ObserveLogLine(string) {}
func (nopCollector) SetInstances(int) {}
