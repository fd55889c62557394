package core

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Mass is a unit point particle. Springs hold pointers to masses, so a Mass
// must not be copied once it belongs to a ParticleSystem.
type Mass struct {
	Position r2.Vec
	Velocity r2.Vec

	// impulse is a velocity delta consumed by the next integration.
	impulse r2.Vec
}

// NewMass returns a mass at rest at pos.
func NewMass(pos r2.Vec) *Mass {
	return &Mass{Position: pos}
}

// AddImpulse queues a one-time velocity change for the next tick.
func (m *Mass) AddImpulse(dv r2.Vec) {
	m.impulse = r2.Add(m.impulse, dv)
}

// PendingImpulse returns the velocity change not yet integrated.
func (m *Mass) PendingImpulse() r2.Vec {
	return m.impulse
}

// Finite reports whether position and velocity hold no NaN or Inf.
func (m *Mass) Finite() bool {
	return finite(m.Position.X) && finite(m.Position.Y) &&
		finite(m.Velocity.X) && finite(m.Velocity.Y)
}

// Environment is the subset of Params the integrator reads.
type Environment struct {
	Gravity     float64
	Damping     float64
	Friction    float64
	MaxVelocity float64
	Restitution float64
	Width       float64
	Height      float64
}

// EnvironmentFromParams extracts the integrator settings.
func EnvironmentFromParams(p Params) Environment {
	return Environment{
		Gravity:     p.Gravity,
		Damping:     p.Damping,
		Friction:    p.Friction,
		MaxVelocity: p.MaxVelocity,
		Restitution: p.Restitution,
		Width:       p.Width,
		Height:      p.Height,
	}
}

// IntegrateStats summarises one integration pass.
type IntegrateStats struct {
	// BoundaryHits counts axis clamps, so a corner hit counts twice.
	BoundaryHits int
}

// ParticleSystem owns the masses and advances their kinematics.
type ParticleSystem struct {
	env    Environment
	masses []*Mass
}

// NewParticleSystem takes ownership of masses; their order is the update order.
func NewParticleSystem(env Environment, masses []*Mass) *ParticleSystem {
	return &ParticleSystem{env: env, masses: masses}
}

// Len returns the number of masses.
func (ps *ParticleSystem) Len() int { return len(ps.masses) }

// Mass returns the i-th mass or nil when i is out of range.
func (ps *ParticleSystem) Mass(i int) *Mass {
	if i < 0 || i >= len(ps.masses) {
		return nil
	}
	return ps.masses[i]
}

// Integrate advances every mass by dt in slice order.
func (ps *ParticleSystem) Integrate(dt float64) IntegrateStats {
	var stats IntegrateStats
	for _, m := range ps.masses {
		stats.BoundaryHits += ps.integrate(m, dt)
	}
	return stats
}

func (ps *ParticleSystem) integrate(m *Mass, dt float64) int {
	env := &ps.env
	v := r2.Add(m.Velocity, m.impulse)
	m.impulse = r2.Vec{}

	v.Y += env.Gravity * dt
	v = r2.Scale(env.Damping, v)
	v = applyFriction(v, env.Friction)
	v = clampSpeed(v, env.MaxVelocity)

	m.Position = r2.Add(m.Position, r2.Scale(dt, v))
	m.Velocity = v

	hits := 0
	if bounce(&m.Position.X, &m.Velocity.X, env.Width, env.Restitution) {
		hits++
	}
	if bounce(&m.Position.Y, &m.Velocity.Y, env.Height, env.Restitution) {
		hits++
	}
	return hits
}

// applyFriction lowers the speed by friction without reversing direction.
func applyFriction(v r2.Vec, friction float64) r2.Vec {
	if friction <= 0 {
		return v
	}
	speed := r2.Norm(v)
	if speed <= friction {
		return r2.Vec{}
	}
	return r2.Scale((speed-friction)/speed, v)
}

func clampSpeed(v r2.Vec, limit float64) r2.Vec {
	speed := r2.Norm(v)
	if speed <= limit {
		return v
	}
	return r2.Scale(limit/speed, v)
}

// Contain clamps every position into the world bounds without touching
// velocity. Relaxation runs after the bounce and may push a mass outside.
func (ps *ParticleSystem) Contain() {
	for _, m := range ps.masses {
		m.Position.X = clamp(m.Position.X, 0, ps.env.Width)
		m.Position.Y = clamp(m.Position.Y, 0, ps.env.Height)
	}
}

// bounce keeps *pos inside [0,extent] and turns *vel back inward.
func bounce(pos, vel *float64, extent, restitution float64) bool {
	switch {
	case *pos < 0:
		*pos = 0
		*vel = math.Abs(*vel) * restitution
	case *pos > extent:
		*pos = extent
		*vel = -math.Abs(*vel) * restitution
	default:
		return false
	}
	return true
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}
