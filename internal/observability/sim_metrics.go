package observability

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/signalsfoundry/spring-simulator/core"
)

// SimCollector exposes per-tick simulation metrics.
type SimCollector struct {
	gatherer prometheus.Gatherer

	Ticks              prometheus.Counter
	TickDuration       prometheus.Histogram
	Masses             prometheus.Gauge
	Springs            prometheus.Gauge
	KineticEnergy      prometheus.Gauge
	SpringStrain       prometheus.Gauge
	BoundaryCollisions prometheus.Counter
	DegenerateSprings  prometheus.Counter
	Impulses           prometheus.Counter
}

// NewSimCollector registers the simulation metrics against reg, or against
// the global registry when reg is nil.
func NewSimCollector(reg prometheus.Registerer) (*SimCollector, error) {
	reg, gatherer := resolveRegistry(reg)
	c := &SimCollector{gatherer: gatherer}

	counter := func(dst *prometheus.Counter, name, help string) error {
		m, err := register(reg, name, prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help}))
		*dst = m
		return err
	}
	gauge := func(dst *prometheus.Gauge, name, help string) error {
		m, err := register(reg, name, prometheus.NewGauge(prometheus.GaugeOpts{Name: name, Help: help}))
		*dst = m
		return err
	}

	var err error
	c.TickDuration, err = register(reg, "sim_tick_duration_seconds", prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sim_tick_duration_seconds",
		Help:    "Wall-clock duration of one integrate and relax tick.",
		Buckets: prometheus.ExponentialBuckets(0.00001, 4, 9),
	}))
	if err != nil {
		return nil, err
	}

	err = errors.Join(
		counter(&c.Ticks, "sim_ticks_total", "Number of simulation ticks executed."),
		gauge(&c.Masses, "sim_masses", "Number of masses in the running world."),
		gauge(&c.Springs, "sim_springs", "Number of springs in the running world."),
		gauge(&c.KineticEnergy, "sim_kinetic_energy", "Total kinetic energy after the last tick, with unit masses."),
		gauge(&c.SpringStrain, "sim_spring_strain", "Mean relative deviation of spring lengths from rest after the last tick."),
		counter(&c.BoundaryCollisions, "sim_boundary_collisions_total", "Per-axis boundary bounces applied during integration."),
		counter(&c.DegenerateSprings, "sim_degenerate_springs_total", "Spring corrections skipped because both endpoints coincided."),
		counter(&c.Impulses, "sim_impulses_total", "Impulses queued on masses by external callers."),
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *SimCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// ObserveTick records one completed tick.
func (c *SimCollector) ObserveTick(d time.Duration, stats core.TickStats, energy, strain float64) {
	if c == nil {
		return
	}
	c.Ticks.Inc()
	c.TickDuration.Observe(d.Seconds())
	c.KineticEnergy.Set(energy)
	c.SpringStrain.Set(strain)
	if stats.BoundaryHits > 0 {
		c.BoundaryCollisions.Add(float64(stats.BoundaryHits))
	}
	if stats.DegenerateSkips > 0 {
		c.DegenerateSprings.Add(float64(stats.DegenerateSkips))
	}
}

// SetWorldCounts updates the mass and spring gauges.
func (c *SimCollector) SetWorldCounts(masses, springs int) {
	if c == nil {
		return
	}
	c.Masses.Set(float64(masses))
	c.Springs.Set(float64(springs))
}

// IncImpulses counts n queued impulses.
func (c *SimCollector) IncImpulses(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.Impulses.Add(float64(n))
}
