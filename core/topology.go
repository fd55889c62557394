package core

import (
	"fmt"
	"math"
	"strings"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/spatial/r2"
)

// Edge connects two masses by index. A zero RestLength means the rest
// length is taken from the initial distance.
type Edge struct {
	A, B       int
	RestLength float64
}

// Topology is the initial layout of a scenario.
type Topology struct {
	Positions []r2.Vec
	Edges     []Edge
}

// Grid lays out cols x rows free masses starting at origin.
func Grid(cols, rows int, origin r2.Vec, spacing float64) Topology {
	var t Topology
	for j := 0; j < rows; j++ {
		for i := 0; i < cols; i++ {
			t.Positions = append(t.Positions, r2.Vec{
				X: origin.X + float64(i)*spacing,
				Y: origin.Y + float64(j)*spacing,
			})
		}
	}
	return t
}

// Scatter places n free masses uniformly in [0,width]x[0,height]. The same
// seed always yields the same layout.
func Scatter(n int, width, height float64, seed uint64) Topology {
	rnd := rand.New(rand.NewSource(seed))
	t := Topology{Positions: make([]r2.Vec, 0, max(n, 0))}
	for i := 0; i < n; i++ {
		t.Positions = append(t.Positions, r2.Vec{
			X: rnd.Float64() * width,
			Y: rnd.Float64() * height,
		})
	}
	return t
}

// Square builds a closed quadrilateral: four edges followed by the two
// diagonals that keep it from shearing.
func Square(center r2.Vec, side float64) Topology {
	h := side / 2
	return Topology{
		Positions: []r2.Vec{
			{X: center.X - h, Y: center.Y - h},
			{X: center.X + h, Y: center.Y - h},
			{X: center.X + h, Y: center.Y + h},
			{X: center.X - h, Y: center.Y + h},
		},
		Edges: []Edge{
			{A: 0, B: 1}, {A: 1, B: 2}, {A: 2, B: 3}, {A: 3, B: 0},
			{A: 0, B: 2}, {A: 1, B: 3},
		},
	}
}

// CompleteCircle places n masses on a circle and connects every pair.
func CompleteCircle(center r2.Vec, radius float64, n int) Topology {
	var t Topology
	for i := 0; i < n; i++ {
		angle := 2 * math.Pi / float64(n) * float64(i)
		t.Positions = append(t.Positions, r2.Vec{
			X: center.X + radius*math.Cos(angle),
			Y: center.Y + radius*math.Sin(angle),
		})
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			t.Edges = append(t.Edges, Edge{A: i, B: j})
		}
	}
	return t
}

// Chain places n masses evenly from start to end, linking neighbours.
func Chain(start, end r2.Vec, n int) Topology {
	var t Topology
	if n <= 0 {
		return t
	}
	if n == 1 {
		t.Positions = []r2.Vec{start}
		return t
	}
	step := r2.Scale(1/float64(n-1), r2.Sub(end, start))
	for i := 0; i < n; i++ {
		t.Positions = append(t.Positions, r2.Add(start, r2.Scale(float64(i), step)))
		if i > 0 {
			t.Edges = append(t.Edges, Edge{A: i - 1, B: i})
		}
	}
	return t
}

// Scenario names understood by ScenarioByName.
const (
	ScenarioGrid    = "grid"
	ScenarioScatter = "scatter"
	ScenarioSquare  = "square"
	ScenarioCircle  = "circle"
	ScenarioChain   = "chain"
)

// ScenarioNames lists the built-in scenarios.
func ScenarioNames() []string {
	return []string{ScenarioGrid, ScenarioScatter, ScenarioSquare, ScenarioCircle, ScenarioChain}
}

// ScenarioByName builds a built-in layout centred in the world bounds of p.
func ScenarioByName(name string, p Params) (Topology, error) {
	center := r2.Vec{X: p.Width / 2, Y: p.Height / 2}
	switch strings.ToLower(strings.TrimSpace(name)) {
	case ScenarioGrid:
		const cols, rows, spacing = 10, 10, 20.0
		origin := r2.Vec{X: center.X - spacing*(cols-1)/2, Y: center.Y - spacing*(rows-1)/2}
		return Grid(cols, rows, origin, spacing), nil
	case ScenarioScatter:
		return Scatter(1000, p.Width, p.Height, 1), nil
	case ScenarioSquare, "":
		return Square(center, 100), nil
	case ScenarioCircle:
		return CompleteCircle(center, 100, 8), nil
	case ScenarioChain:
		return Chain(r2.Vec{X: center.X - 150, Y: center.Y}, r2.Vec{X: center.X + 150, Y: center.Y}, 16), nil
	default:
		return Topology{}, fmt.Errorf("%w: unknown scenario %q", ErrInvalidScenario, name)
	}
}
