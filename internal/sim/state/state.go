// internal/sim/state/state.go
package state

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/signalsfoundry/spring-simulator/core"
	"github.com/signalsfoundry/spring-simulator/internal/logging"
	"github.com/signalsfoundry/spring-simulator/timectrl"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gonum.org/v1/gonum/spatial/r2"
)

// Re-export core sentinel errors so callers can depend on state.*
// instead of core.* directly if they want to.
var (
	// ErrMassIndex indicates a mass index outside the world.
	ErrMassIndex = core.ErrMassIndex
	// ErrNonFinite indicates a NaN or infinite input.
	ErrNonFinite = core.ErrNonFinite
	// ErrNoWorld indicates the state holds no world yet.
	ErrNoWorld = errors.New("no world loaded")
)

const tracerName = "github.com/signalsfoundry/spring-simulator/internal/sim/state"

// SimulationState owns one core.World and serialises every access to it.
// The sim loop steps it while NBI handlers read snapshots and queue
// impulses from other goroutines.
type SimulationState struct {
	// mu guards world, scenario and generation. core.World itself is not
	// safe for concurrent use.
	mu       sync.RWMutex
	world    *core.World
	scenario string

	// generation counts LoadWorld calls.
	generation uint64

	// clock stamps snapshots with simulation time when set.
	clock timectrl.SimClock

	// log is an optional structured logger for state-level events.
	log logging.Logger

	// metrics is an optional recorder for Prometheus-friendly values.
	metrics MetricsRecorder

	// telemetry is an optional ring of recent tick samples.
	telemetry *TelemetryState

	tracer trace.Tracer
}

// Snapshot captures a consistent view of the world after a tick.
type Snapshot struct {
	Scenario string
	Tick     uint64

	// SimTime is the controller time of the snapshot; zero without a clock.
	SimTime       time.Time
	TimeStep      float64
	KineticEnergy float64
	SpringStrain  float64
	CenterOfMass  r2.Vec
	Positions     []r2.Vec
	Springs       [][2]int
}

// MetricsRecorder receives world counts and per-tick observations.
type MetricsRecorder interface {
	SetWorldCounts(masses, springs int)
	ObserveTick(d time.Duration, stats core.TickStats, energy, strain float64)
	IncImpulses(n int)
}

// Option customises SimulationState construction.
type Option func(*SimulationState)

// WithMetricsRecorder attaches an optional metrics recorder.
func WithMetricsRecorder(m MetricsRecorder) Option {
	return func(s *SimulationState) {
		s.metrics = m
	}
}

// WithTelemetry attaches a tick sample store that Step appends to.
func WithTelemetry(t *TelemetryState) Option {
	return func(s *SimulationState) {
		s.telemetry = t
	}
}

// WithTracer overrides the tracer used for sim.Step spans.
func WithTracer(t trace.Tracer) Option {
	return func(s *SimulationState) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithClock stamps snapshots with the time reported by clock.
func WithClock(clock timectrl.SimClock) Option {
	return func(s *SimulationState) {
		s.clock = clock
	}
}

// WithScenarioName labels the initial world in logs and snapshots.
func WithScenarioName(name string) Option {
	return func(s *SimulationState) {
		s.scenario = name
	}
}

// NewSimulationState wraps world, which may be nil until LoadWorld is called.
func NewSimulationState(world *core.World, log logging.Logger, opts ...Option) *SimulationState {
	if log == nil {
		log = logging.Noop()
	}
	s := &SimulationState{
		world:  world,
		log:    log,
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.updateCountsLocked()
	return s
}

// LoadWorld replaces the running world, discarding the old one and any
// telemetry gathered for it.
func (s *SimulationState) LoadWorld(ctx context.Context, name string, world *core.World) error {
	if world == nil {
		return ErrNoWorld
	}
	ctx, reqLog := logging.WithRequestLogger(ctx, s.log)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.world = world
	s.scenario = name
	s.generation++
	if s.telemetry != nil {
		s.telemetry.Reset()
	}
	s.updateCountsLocked()

	reqLog.Info(ctx, "world loaded",
		logging.String("scenario", name),
		logging.Int("masses", world.MassCount()),
		logging.Int("springs", world.SpringCount()),
		logging.Uint64("generation", s.generation),
	)
	return nil
}

// Generation returns how many times LoadWorld has replaced the world.
func (s *SimulationState) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// Step advances the world by one tick of its configured time step.
func (s *SimulationState) Step(ctx context.Context) (core.TickStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.world == nil {
		return core.TickStats{}, ErrNoWorld
	}

	_, span := s.tracer.Start(ctx, "sim.Step")
	defer span.End()

	start := time.Now()
	s.world.Step()
	elapsed := time.Since(start)

	stats := s.world.LastTick()
	energy := s.world.KineticEnergy()
	strain := s.world.SpringStrain()
	tick := s.world.Ticks()

	span.SetAttributes(
		attribute.Int64("sim.tick", int64(tick)),
		attribute.Int("sim.boundary_hits", stats.BoundaryHits),
		attribute.Int("sim.degenerate_skips", stats.DegenerateSkips),
		attribute.Float64("sim.kinetic_energy", energy),
	)

	if s.metrics != nil {
		s.metrics.ObserveTick(elapsed, stats, energy, strain)
	}
	if s.telemetry != nil {
		s.telemetry.Record(TickSample{
			Tick:          tick,
			KineticEnergy: energy,
			SpringStrain:  strain,
			BoundaryHits:  stats.BoundaryHits,
			Duration:      elapsed,
		})
	}

	if stats.DegenerateSkips > 0 {
		s.log.Debug(ctx, "degenerate springs skipped",
			logging.Uint64("tick", tick),
			logging.Int("count", stats.DegenerateSkips),
		)
	}
	if err := s.world.CheckFinite(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.log.Error(ctx, "world diverged", logging.Err(err))
		return stats, err
	}
	return stats, nil
}

// Snapshot returns a copy of the world's observable state.
func (s *SimulationState) Snapshot() (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.world == nil {
		return nil, ErrNoWorld
	}
	snap := &Snapshot{
		Scenario:      s.scenario,
		Tick:          s.world.Ticks(),
		TimeStep:      s.world.Params().TimeStep,
		KineticEnergy: s.world.KineticEnergy(),
		SpringStrain:  s.world.SpringStrain(),
		CenterOfMass:  s.world.CenterOfMass(),
		Positions:     s.world.Positions(),
		Springs:       s.world.Springs(),
	}
	if s.clock != nil {
		snap.SimTime = s.clock.Now()
	}
	return snap, nil
}

// Positions returns a copy of every mass position.
func (s *SimulationState) Positions() ([]r2.Vec, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.world == nil {
		return nil, ErrNoWorld
	}
	return s.world.Positions(), nil
}

// ApplyImpulse queues a velocity change on mass i for the next tick.
func (s *SimulationState) ApplyImpulse(ctx context.Context, i int, dv r2.Vec) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.world == nil {
		return ErrNoWorld
	}
	if err := s.world.ApplyImpulse(i, dv); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.IncImpulses(1)
	}
	s.log.Debug(ctx, "impulse queued",
		logging.Int("mass_index", i),
		logging.Float64("dx", dv.X),
		logging.Float64("dy", dv.Y),
	)
	return nil
}

// ApplyAttraction queues an impulse of the given magnitude on every mass,
// pointing at target. It returns how many masses received one.
func (s *SimulationState) ApplyAttraction(ctx context.Context, target r2.Vec, magnitude float64) (int, error) {
	if !isFinite(target.X) || !isFinite(target.Y) || !isFinite(magnitude) {
		return 0, fmt.Errorf("%w: attraction target (%g, %g) magnitude %g", ErrNonFinite, target.X, target.Y, magnitude)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.world == nil {
		return 0, ErrNoWorld
	}
	n := s.world.ApplyAttraction(target, magnitude)
	if s.metrics != nil {
		s.metrics.IncImpulses(n)
	}
	s.log.Debug(ctx, "attraction queued",
		logging.Float64("x", target.X),
		logging.Float64("y", target.Y),
		logging.Float64("magnitude", magnitude),
		logging.Int("masses", n),
	)
	return n, nil
}

// Telemetry returns the attached tick sample store, or nil.
func (s *SimulationState) Telemetry() *TelemetryState {
	return s.telemetry
}

// updateCountsLocked pushes current mass and spring counts into the metrics
// recorder. Caller must hold s.mu or own s exclusively.
func (s *SimulationState) updateCountsLocked() {
	if s == nil || s.metrics == nil {
		return
	}
	if s.world == nil {
		s.metrics.SetWorldCounts(0, 0)
		return
	}
	s.metrics.SetWorldCounts(s.world.MassCount(), s.world.SpringCount())
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
