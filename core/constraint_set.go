package core

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r2"
)

// Spring pulls two shared masses toward RestLength. It never changes which
// masses it connects.
type Spring struct {
	A, B       *Mass
	RestLength float64
	Stiffness  float64
}

// NewSpring connects a and b with a rest length equal to their current
// distance.
func NewSpring(a, b *Mass, stiffness float64) (*Spring, error) {
	if a == nil || b == nil || a == b {
		return nil, fmt.Errorf("%w: endpoints must be two distinct masses", ErrInvalidEdge)
	}
	return NewSpringWithRestLength(a, b, r2.Norm(r2.Sub(b.Position, a.Position)), stiffness)
}

// NewSpringWithRestLength connects a and b with an explicit rest length.
func NewSpringWithRestLength(a, b *Mass, restLength, stiffness float64) (*Spring, error) {
	if a == nil || b == nil || a == b {
		return nil, fmt.Errorf("%w: endpoints must be two distinct masses", ErrInvalidEdge)
	}
	if !finite(restLength) || restLength <= 0 {
		return nil, fmt.Errorf("%w: %g", ErrInvalidRestLength, restLength)
	}
	if !finite(stiffness) || stiffness <= 0 || stiffness > 1 {
		return nil, fmt.Errorf("%w: stiffness=%g must be in (0,1]", ErrInvalidParams, stiffness)
	}
	return &Spring{A: a, B: b, RestLength: restLength, Stiffness: stiffness}, nil
}

// Length returns the current distance between the endpoints.
func (s *Spring) Length() float64 {
	return r2.Norm(r2.Sub(s.B.Position, s.A.Position))
}

// Relax moves both endpoints toward the rest length, splitting the
// correction evenly so their midpoint is preserved. It reports false and
// leaves the masses alone when they coincide.
func (s *Spring) Relax() bool {
	delta := r2.Sub(s.B.Position, s.A.Position)
	d := r2.Norm(delta)
	if d == 0 {
		return false
	}
	errRatio := (d - s.RestLength) / d
	corr := r2.Scale(errRatio*s.Stiffness*0.5, delta)
	s.A.Position = r2.Add(s.A.Position, corr)
	s.B.Position = r2.Sub(s.B.Position, corr)
	return true
}

// RelaxStats summarises the relaxation of one tick.
type RelaxStats struct {
	Passes          int
	DegenerateSkips int
}

// ConstraintSet owns the springs and relaxes them in declaration order.
type ConstraintSet struct {
	springs    []*Spring
	iterations int
}

// NewConstraintSet relaxes springs iterations times per tick; values below
// one are treated as one.
func NewConstraintSet(springs []*Spring, iterations int) *ConstraintSet {
	if iterations < 1 {
		iterations = 1
	}
	return &ConstraintSet{springs: springs, iterations: iterations}
}

// Len returns the number of springs.
func (cs *ConstraintSet) Len() int { return len(cs.springs) }

// Spring returns the i-th spring or nil when i is out of range.
func (cs *ConstraintSet) Spring(i int) *Spring {
	if i < 0 || i >= len(cs.springs) {
		return nil
	}
	return cs.springs[i]
}

// Iterations returns the number of passes per tick.
func (cs *ConstraintSet) Iterations() int { return cs.iterations }

// Relax sweeps every spring once per pass. Each correction sees the
// positions left by the springs before it; there is no simultaneous solve.
func (cs *ConstraintSet) Relax() RelaxStats {
	stats := RelaxStats{Passes: cs.iterations}
	for pass := 0; pass < cs.iterations; pass++ {
		for _, s := range cs.springs {
			if !s.Relax() {
				stats.DegenerateSkips++
			}
		}
	}
	return stats
}

// Strain returns the mean relative deviation |d-rest|/rest over all springs.
func (cs *ConstraintSet) Strain() float64 {
	if len(cs.springs) == 0 {
		return 0
	}
	var sum float64
	for _, s := range cs.springs {
		d := s.Length()
		if d > s.RestLength {
			sum += (d - s.RestLength) / s.RestLength
		} else {
			sum += (s.RestLength - d) / s.RestLength
		}
	}
	return sum / float64(len(cs.springs))
}
