package core

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r2"
)

// TickStats describes what happened during the last tick.
type TickStats struct {
	BoundaryHits    int
	DegenerateSkips int
	Passes          int
}

// World pairs a ParticleSystem with the ConstraintSet acting on its masses
// and advances both once per tick. It is not safe for concurrent use.
type World struct {
	params      Params
	particles   *ParticleSystem
	constraints *ConstraintSet
	edges       [][2]int

	ticks uint64
	last  TickStats
}

// NewWorld validates p and builds one mass per position and one spring per
// edge, in the order given.
func NewWorld(p Params, topo Topology) (*World, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	masses := make([]*Mass, len(topo.Positions))
	for i, pos := range topo.Positions {
		if !finite(pos.X) || !finite(pos.Y) {
			return nil, fmt.Errorf("%w: mass %d position (%g, %g)", ErrNonFinite, i, pos.X, pos.Y)
		}
		masses[i] = NewMass(pos)
	}

	springs := make([]*Spring, 0, len(topo.Edges))
	edges := make([][2]int, 0, len(topo.Edges))
	for i, e := range topo.Edges {
		if e.A < 0 || e.A >= len(masses) || e.B < 0 || e.B >= len(masses) || e.A == e.B {
			return nil, fmt.Errorf("%w: edge %d (%d, %d) with %d masses", ErrInvalidEdge, i, e.A, e.B, len(masses))
		}
		var (
			s   *Spring
			err error
		)
		if e.RestLength != 0 {
			s, err = NewSpringWithRestLength(masses[e.A], masses[e.B], e.RestLength, p.Stiffness)
		} else {
			s, err = NewSpring(masses[e.A], masses[e.B], p.Stiffness)
		}
		if err != nil {
			return nil, fmt.Errorf("edge %d (%d, %d): %w", i, e.A, e.B, err)
		}
		springs = append(springs, s)
		edges = append(edges, [2]int{e.A, e.B})
	}

	return &World{
		params:      p,
		particles:   NewParticleSystem(EnvironmentFromParams(p), masses),
		constraints: NewConstraintSet(springs, p.Iterations),
		edges:       edges,
	}, nil
}

// Tick integrates every mass, relaxes every spring and then keeps the
// relaxed positions inside the bounds. A non-positive or non-finite dt
// leaves the world untouched.
func (w *World) Tick(dt float64) {
	if !finite(dt) || dt <= 0 {
		return
	}
	in := w.particles.Integrate(dt)
	rel := w.constraints.Relax()
	w.particles.Contain()

	w.ticks++
	w.last = TickStats{
		BoundaryHits:    in.BoundaryHits,
		DegenerateSkips: rel.DegenerateSkips,
		Passes:          rel.Passes,
	}
	if debugAssertions {
		if err := w.CheckFinite(); err != nil {
			panic(err)
		}
	}
}

// Step advances one tick of the configured TimeStep.
func (w *World) Step() { w.Tick(w.params.TimeStep) }

// LastTick returns the stats of the most recent tick.
func (w *World) LastTick() TickStats { return w.last }

// Ticks returns the number of ticks advanced so far.
func (w *World) Ticks() uint64 { return w.ticks }

// Params returns the parameters the world was built with.
func (w *World) Params() Params { return w.params }

// MassCount returns the number of masses.
func (w *World) MassCount() int { return w.particles.Len() }

// SpringCount returns the number of springs.
func (w *World) SpringCount() int { return w.constraints.Len() }

// Mass exposes the i-th mass for inspection, or nil when out of range.
// Callers must not mutate it outside a tick.
func (w *World) Mass(i int) *Mass { return w.particles.Mass(i) }

// Spring exposes the i-th spring for inspection, or nil when out of range.
func (w *World) Spring(i int) *Spring { return w.constraints.Spring(i) }

// Positions returns a copy of every mass position in index order.
func (w *World) Positions() []r2.Vec {
	return w.AppendPositions(make([]r2.Vec, 0, w.particles.Len()))
}

// AppendPositions appends every mass position to dst.
func (w *World) AppendPositions(dst []r2.Vec) []r2.Vec {
	for _, m := range w.particles.masses {
		dst = append(dst, m.Position)
	}
	return dst
}

// Springs returns the mass index pairs of every spring in declaration order.
func (w *World) Springs() [][2]int {
	return append([][2]int(nil), w.edges...)
}

// ApplyImpulse queues a one-time velocity change on mass i, consumed by the
// next tick.
func (w *World) ApplyImpulse(i int, dv r2.Vec) error {
	m := w.particles.Mass(i)
	if m == nil {
		return fmt.Errorf("%w: %d not in [0,%d)", ErrMassIndex, i, w.particles.Len())
	}
	if !finite(dv.X) || !finite(dv.Y) {
		return fmt.Errorf("%w: impulse (%g, %g)", ErrNonFinite, dv.X, dv.Y)
	}
	m.AddImpulse(dv)
	return nil
}

// ApplyAttraction queues an impulse of the given magnitude on every mass,
// pointing at target. A mass already on the target is skipped.
func (w *World) ApplyAttraction(target r2.Vec, magnitude float64) int {
	applied := 0
	for _, m := range w.particles.masses {
		dir := r2.Sub(target, m.Position)
		d := r2.Norm(dir)
		if d == 0 {
			continue
		}
		m.AddImpulse(r2.Scale(magnitude/d, dir))
		applied++
	}
	return applied
}

// KineticEnergy returns the sum of ½|v|² over all masses (unit mass).
func (w *World) KineticEnergy() float64 {
	var e float64
	for _, m := range w.particles.masses {
		e += 0.5 * r2.Norm2(m.Velocity)
	}
	return e
}

// CenterOfMass returns the average mass position.
func (w *World) CenterOfMass() r2.Vec {
	var c r2.Vec
	n := w.particles.Len()
	if n == 0 {
		return c
	}
	for _, m := range w.particles.masses {
		c = r2.Add(c, m.Position)
	}
	return r2.Scale(1/float64(n), c)
}

// SpringStrain returns the mean relative spring deviation.
func (w *World) SpringStrain() float64 { return w.constraints.Strain() }

// CheckFinite returns ErrNonFinite for the first mass holding NaN or Inf.
func (w *World) CheckFinite() error {
	for i, m := range w.particles.masses {
		if !m.Finite() {
			return fmt.Errorf("%w: mass %d at tick %d", ErrNonFinite, i, w.ticks)
		}
	}
	return nil
}
