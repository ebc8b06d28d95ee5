package sim

import (
	"context"
	"math"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// Driver steps a World with a fixed integration step and explicit Euler
// integration of the dynamic instances.
//
// Each Tick runs, in order:
//
//	UpdateAllStaticInChain(t, StaticBeforePropagation)
//	StatusAllDynamic(t, true)
//	X += dt * Xdot for every dynamic instance
//	UpdateAllDynamic(t+dt, true)
//	UpdateAllStaticInChain(t+dt, StaticAfterPropagation)
type Driver struct {
	world *World
	step  float64
	ticks int64
	start float64
}

// NewDriver binds a driver to w. The clock starts at the current epoch.
func NewDriver(w *World, step float64) (*Driver, error) {
	if !(step > 0) || math.IsInf(step, 0) {
		return nil, errors.Wrapf(ErrInvalidStep, "step %v", step)
	}
	return &Driver{world: w, step: step, start: w.epoch}, nil
}

// Step returns the integration step [s].
func (d *Driver) Step() float64 { return d.step }

// Ticks returns the number of completed ticks.
func (d *Driver) Ticks() int64 { return d.ticks }

// Time returns the simulation time reached by the completed ticks. It is
// computed from the tick count so that it does not drift.
func (d *Driver) Time() float64 { return d.start + float64(d.ticks)*d.step }

// Tick advances the world by one step.
func (d *Driver) Tick(ctx context.Context) error {
	w := d.world
	t := d.Time()
	next := d.start + float64(d.ticks+1)*d.step

	phases := []struct {
		name string
		run  func() error
	}{
		{"static_before", func() error { return w.UpdateAllStaticInChain(t, StaticBeforePropagation) }},
		{"status_dynamic", func() error { return w.StatusAllDynamic(t, true) }},
		{"integrate", func() error { d.integrate(); return nil }},
		{"update_dynamic", func() error { return w.UpdateAllDynamic(next, true) }},
		{"static_after", func() error { return w.UpdateAllStaticInChain(next, StaticAfterPropagation) }},
	}
	for _, p := range phases {
		if err := d.phase(ctx, p.name, t, p.run); err != nil {
			return err
		}
	}

	d.ticks++
	w.epoch = next
	w.metrics.Ticks = d.ticks
	w.metrics.SimulatedTime = next - d.start
	w.collector.ObserveTick(next)
	return nil
}

func (d *Driver) phase(ctx context.Context, name string, t float64, run func() error) error {
	_, span := d.world.tracer.Start(ctx, "sim/"+name,
		oteltrace.WithAttributes(
			attribute.Float64("sim.time", t),
			attribute.String("sim.run_id", d.world.RunID()),
		))
	defer span.End()

	begin := time.Now()
	err := run()
	d.world.collector.ObservePhase(name, time.Since(begin))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (d *Driver) integrate() {
	for _, inst := range d.world.order {
		for i := range inst.x {
			inst.x[i] += d.step * inst.xdot[i]
		}
	}
}

// Run ticks until the simulation time reaches horizon, the context is
// cancelled or a phase fails.
func (d *Driver) Run(ctx context.Context, horizon float64) error {
	begin := time.Now()
	defer func() {
		d.world.metrics.WallClockSeconds += time.Since(begin).Seconds()
	}()
	// half a step of slack absorbs the float error of the tick count
	for d.Time()+d.step/2 < horizon {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := d.Tick(ctx); err != nil {
			return err
		}
	}
	return nil
}
