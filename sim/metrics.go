// Tracks run-wide kernel activity: ticks, dispatched commands, bus traffic
// and the run-log health counters.

package sim

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
)

// RunMetrics aggregates statistics about one simulation run for final
// reporting.
type RunMetrics struct {
	RunID            string  `json:"run_id"`
	Instances        int     `json:"instances"`
	Ticks            int64   `json:"ticks"`
	SimulatedTime    float64 `json:"simulated_time_s"`
	CommandsOK       int     `json:"commands_ok"`
	CommandsFailed   int     `json:"commands_failed"`
	BusTransactions  int     `json:"bus_transactions"`
	Warnings         int     `json:"warnings"`
	Errors           int     `json:"errors"`
	WallClockSeconds float64 `json:"wall_clock_s"`
}

// Metrics returns a snapshot of the run metrics. While the run log is open
// the warning and error totals are read live from it.
func (w *World) Metrics() RunMetrics {
	m := w.metrics
	m.Instances = len(w.instances)
	if w.log != nil {
		m.Warnings = w.log.Warnings()
		m.Errors = w.log.Errors()
	}
	return m
}

// Print displays the aggregated metrics at the end of the simulation.
func (m RunMetrics) Print(out io.Writer) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal metrics")
	}
	_, err = fmt.Fprintf(out, "=== Simulation Metrics ===\n%s\n", data)
	return err
}

// SaveResults writes the metrics as JSON to path.
func (m RunMetrics) SaveResults(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal metrics")
	}
	return errors.Wrapf(os.WriteFile(path, data, 0o644), "write metrics %s", path)
}
