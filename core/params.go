package core

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidParams indicates a world parameter is out of range.
	ErrInvalidParams = errors.New("invalid world parameters")
	// ErrInvalidRestLength indicates a spring rest length that is not strictly positive.
	ErrInvalidRestLength = errors.New("invalid spring rest length")
	// ErrInvalidEdge indicates an edge that references a missing mass or loops on itself.
	ErrInvalidEdge = errors.New("invalid spring edge")
	// ErrMassIndex indicates a mass index outside the world.
	ErrMassIndex = errors.New("mass index out of range")
	// ErrInvalidScenario indicates a scenario description that cannot be built.
	ErrInvalidScenario = errors.New("invalid scenario")
	// ErrNonFinite indicates a mass whose position or velocity is NaN or infinite.
	ErrNonFinite = errors.New("non-finite mass state")
)

// Params holds the simulation constants for one run. They are fixed once a
// World is built.
type Params struct {
	// TimeStep is the default deltaT used by World.Step.
	TimeStep float64
	// Gravity is the downward acceleration; +Y points down the viewport.
	Gravity float64
	// Damping multiplies velocity every tick. 1 disables it.
	Damping float64
	// Stiffness is the default spring stiffness in (0,1].
	Stiffness float64
	// Friction is subtracted from the speed every tick, never below zero.
	Friction float64
	// MaxVelocity caps the speed of every mass.
	MaxVelocity float64
	// Restitution is the fraction of the normal velocity kept on a bounce.
	Restitution float64
	// Width and Height bound the world to [0,Width]x[0,Height].
	Width  float64
	Height float64
	// Iterations is the number of relaxation passes per tick.
	Iterations int
}

// DefaultParams returns a stable configuration for an 800x600 viewport:
// light gravity, 1% damping per tick and a single relaxation pass.
func DefaultParams() Params {
	return Params{
		TimeStep:    0.1,
		Gravity:     1,
		Damping:     0.99,
		Stiffness:   0.99,
		Friction:    0.005,
		MaxVelocity: 150,
		Restitution: 0.8,
		Width:       800,
		Height:      600,
		Iterations:  1,
	}
}

// Validate checks every field and reports the first offending one.
func (p Params) Validate() error {
	switch {
	case !finite(p.TimeStep) || p.TimeStep <= 0:
		return invalidParam("time_step", p.TimeStep, "must be finite and > 0")
	case !finite(p.Gravity):
		return invalidParam("gravity", p.Gravity, "must be finite")
	case !finite(p.Damping) || p.Damping <= 0 || p.Damping > 1:
		return invalidParam("damping", p.Damping, "must be in (0,1]")
	case !finite(p.Stiffness) || p.Stiffness <= 0 || p.Stiffness > 1:
		return invalidParam("stiffness", p.Stiffness, "must be in (0,1]")
	case !finite(p.Friction) || p.Friction < 0:
		return invalidParam("friction", p.Friction, "must be finite and >= 0")
	case !finite(p.MaxVelocity) || p.MaxVelocity <= 0:
		return invalidParam("max_velocity", p.MaxVelocity, "must be finite and > 0")
	case !finite(p.Restitution) || p.Restitution < 0 || p.Restitution > 1:
		return invalidParam("restitution", p.Restitution, "must be in [0,1]")
	case !finite(p.Width) || p.Width <= 0:
		return invalidParam("width", p.Width, "must be finite and > 0")
	case !finite(p.Height) || p.Height <= 0:
		return invalidParam("height", p.Height, "must be finite and > 0")
	case p.Iterations < 1:
		return fmt.Errorf("%w: iterations=%d must be >= 1", ErrInvalidParams, p.Iterations)
	}
	return nil
}

func invalidParam(name string, v float64, why string) error {
	return fmt.Errorf("%w: %s=%g %s", ErrInvalidParams, name, v, why)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
