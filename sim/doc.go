// Package sim provides the discrete-time simulation kernel for interoperable
// satellite equipment models.
//
// # Reading Guide
//
// Start with these files to understand the simulation kernel:
//   - world.go: the World that owns every instance, the run log and the clock
//   - topology.go: output-to-input links, loop detection and execution order
//   - scheduler.go: the per-tick phases (GetInput, Status, Update) and forcing
//   - command.go: the command dispatcher and the generic per-model keywords
//
// # Architecture
//
// A World holds Instances; each Instance wraps a Model together with the
// caller-owned X, Xdot, U and Y arrays. Once every link is declared,
// AnalyzeTopology fixes the execution order and the host (or Driver) runs the
// phases once per tick. Supporting packages:
//   - sim/config/: token key/value settings file
//   - sim/runlog/: run log, per-instance debug logs and the bus dump
//   - sim/numeric/: scalar guards, vectors, matrices, quaternions and noise
//   - sim/trace/: command, bus and execution-order trace recording
//   - sim/telemetry/: Prometheus collector and OpenTelemetry tracing
//   - sim/models/: sample equipment models
//
// Model packages register their factories via init() functions, the same way
// sim/models does for SUM, GYRO_HONEYWELL and ORBIT.
//
// # Key Interfaces
//
// Model only requires Update. The other hooks are optional interfaces the
// kernel discovers with a type assertion:
//   - Initializer: read settings before the first tick
//   - InputAcquirer, Deriver: model-specific inputs and the state derivative
//   - CommandParser: keywords beyond the generic command table
//   - PowerListener: react to SWITCH_ON and SWITCH_OFF
//   - RemoteTerminal, RTStatusSetter: MIL-STD-1553 remote terminal behavior
//   - SerialWordEndpoint, SerialByteEndpoint: slave side of serial links
//   - Collector: kernel activity sink for external monitoring
package sim
