package cmd

import (
	"context"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/MDEGroup/satellite-interoperability/sim"
	"github.com/MDEGroup/satellite-interoperability/sim/runlog"
	"github.com/MDEGroup/satellite-interoperability/sim/telemetry"
	"github.com/MDEGroup/satellite-interoperability/sim/trace"
)

var (
	settingsPath    string   // Settings file read by every model at initialization
	scenarioPath    string   // YAML scenario listing instances and links
	horizon         float64  // Simulated time to reach [s]
	step            float64  // Integration step [s]
	logLevel        string   // Console log verbosity
	logDir          string   // Directory of the run log, debug logs and bus dump
	seed            int64    // Seed for the per-instance random sources
	commands        []string // Commands executed right after initialization
	traceLevel      string   // Decision trace level: none, commands, bus
	otelStdout      bool     // Export scheduler phase spans to stderr
	publishAll      bool     // Publish the GO.* introspection fields
	metricsTextfile string   // Prometheus textfile written at the end of the run
	resultsPath     string   // JSON run metrics written at the end of the run
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "satellite-interoperability",
	Short: "Fixed-step simulator for interconnected spacecraft equipment models",
}

// runOptions collects the flags of a run so it can be driven from tests.
type runOptions struct {
	Settings        string
	Scenario        string
	Horizon         float64
	Step            float64
	LogDir          string
	Seed            int64
	SeedFromFlag    bool
	Commands        []string
	TraceLevel      string
	OTelStdout      bool
	PublishAll      bool
	MetricsTextfile string
	Results         string
}

// runCmd executes the simulation using parameters from CLI flags
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a scenario until the horizon",
	Run: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)

		if scenarioPath == "" {
			logrus.Fatalf("Scenario file not provided. Exiting simulation.")
		}
		if !trace.IsValidTraceLevel(traceLevel) {
			logrus.Fatalf("Invalid trace level: %s (none, commands, bus)", traceLevel)
		}
		if step <= 0 {
			logrus.Fatalf("Invalid step: %v, must be positive", step)
		}

		opts := runOptions{
			Settings:        settingsPath,
			Scenario:        scenarioPath,
			Horizon:         horizon,
			Step:            step,
			LogDir:          logDir,
			Seed:            seed,
			SeedFromFlag:    cmd.Flags().Changed("seed"),
			Commands:        commands,
			TraceLevel:      traceLevel,
			OTelStdout:      otelStdout,
			PublishAll:      publishAll,
			MetricsTextfile: metricsTextfile,
			Results:         resultsPath,
		}
		if err := runSimulation(cmd.Context(), opts, os.Stdout); err != nil {
			logrus.Fatalf("Simulation failed: %v", err)
		}
		logrus.Info("Simulation complete.")
	},
}

func runSimulation(ctx context.Context, opts runOptions, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	shutdown, err := telemetry.InitTracing(ctx, opts.OTelStdout, os.Stderr)
	if err != nil {
		return err
	}
	defer telemetry.ShutdownWithTimeout(ctx, shutdown)

	sc, err := LoadScenario(opts.Scenario)
	if err != nil {
		return err
	}
	runSeed := opts.Seed
	if sc.Seed != nil && !opts.SeedFromFlag {
		runSeed = *sc.Seed
	}

	collector, err := telemetry.NewKernelCollector(prometheus.NewRegistry())
	if err != nil {
		return err
	}
	var st *trace.SimulationTrace
	if lvl := trace.TraceLevel(opts.TraceLevel); lvl != "" && lvl != trace.TraceLevelNone {
		st = trace.NewSimulationTrace(trace.TraceConfig{Level: lvl})
	}

	logrus.Infof("Starting simulation: scenario=%s settings=%s horizon=%gs step=%gs seed=%d",
		opts.Scenario, opts.Settings, opts.Horizon, opts.Step, runSeed)

	w := sim.NewWorld(sim.Options{
		LogDir:         opts.LogDir,
		Seed:           runSeed,
		DisablePublish: !opts.PublishAll,
		Trace:          st,
		Collector:      collector,
		Listener:       consoleListener,
	})
	defer w.DestroyAll()

	if err := sc.Build(w); err != nil {
		return err
	}
	if err := w.InitializeAll(opts.Settings); err != nil {
		return err
	}
	if err := sc.Start(w); err != nil {
		return err
	}
	for _, c := range opts.Commands {
		if err := w.Execute(c); err != nil {
			logrus.Warnf("Command %q: %v", c, err)
		}
	}

	driver, err := sim.NewDriver(w, opts.Step)
	if err != nil {
		return err
	}
	if err := driver.Run(ctx, opts.Horizon); err != nil {
		return errors.Wrapf(err, "run until %gs", opts.Horizon)
	}

	m := w.Metrics()
	if err := m.Print(out); err != nil {
		return err
	}
	if opts.Results != "" {
		if err := m.SaveResults(opts.Results); err != nil {
			return err
		}
	}
	if opts.MetricsTextfile != "" {
		if err := collector.WriteTextfile(opts.MetricsTextfile); err != nil {
			return err
		}
	}
	if st != nil {
		s := trace.Summarize(st)
		logrus.Infof("Trace: %d commands (%d failed) over %d targets, %d bus transactions, order %v",
			s.TotalCommands, s.FailedCount, s.UniqueTargets, s.BusTransactions, s.ExecutionOrder)
	}
	return nil
}

// consoleListener mirrors the run log to the console logger.
func consoleListener(kind runlog.Kind, msg string) {
	switch kind {
	case runlog.KindError:
		logrus.Error(msg)
	case runlog.KindWarning:
		logrus.Warn(msg)
	case runlog.KindMessage:
		logrus.Info(msg)
	default:
		logrus.Debug(msg)
	}
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	runCmd.Flags().StringVar(&settingsPath, "settings", "dss.set", "Settings file read by the models at initialization")
	runCmd.Flags().StringVar(&scenarioPath, "scenario", "", "YAML scenario listing the model instances and their links")
	runCmd.Flags().Float64Var(&horizon, "horizon", 10, "Simulated time to reach (in seconds)")
	runCmd.Flags().Float64Var(&step, "step", 0.125, "Integration step (in seconds)")
	runCmd.Flags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")
	runCmd.Flags().StringVar(&logDir, "log-dir", ".", "Directory of the run log, debug logs and 1553 dump")
	runCmd.Flags().Int64Var(&seed, "seed", 42, "Seed for the per-instance random sources (overrides the scenario seed)")
	runCmd.Flags().StringArrayVar(&commands, "command", nil, "Command executed after initialization (repeatable), e.g. GYRO.SWITCH_ON")
	runCmd.Flags().StringVar(&traceLevel, "trace-level", "none", "Decision trace level (none, commands, bus)")
	runCmd.Flags().BoolVar(&otelStdout, "otel-stdout", false, "Export one span per scheduler phase to stderr")
	runCmd.Flags().BoolVar(&publishAll, "publish-all", true, "Publish the GO.* introspection fields of every instance")
	runCmd.Flags().StringVar(&metricsTextfile, "metrics-textfile", "", "Write the Prometheus metrics to this file at the end of the run")
	runCmd.Flags().StringVar(&resultsPath, "results", "", "Write the run metrics as JSON to this file")

	// Attach `run` as a subcommand to `root`
	rootCmd.AddCommand(runCmd)
}
