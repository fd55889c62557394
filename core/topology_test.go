package core

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r2"
)

func TestCompleteCircleConnectsEveryPair(t *testing.T) {
	center := r2.Vec{X: 400, Y: 300}
	topo := CompleteCircle(center, 100, 8)

	if len(topo.Positions) != 8 {
		t.Fatalf("positions = %d, want 8", len(topo.Positions))
	}
	if len(topo.Edges) != 28 {
		t.Fatalf("edges = %d, want 28 (8 choose 2)", len(topo.Edges))
	}
	for i, p := range topo.Positions {
		if d := r2.Norm(r2.Sub(p, center)); math.Abs(d-100) > 1e-9 {
			t.Fatalf("mass %d at radius %v, want 100", i, d)
		}
	}
	seen := make(map[[2]int]bool)
	for _, e := range topo.Edges {
		if e.A >= e.B {
			t.Fatalf("edge %v not in (i<j) order", e)
		}
		seen[[2]int{e.A, e.B}] = true
	}
	if len(seen) != 28 {
		t.Fatalf("duplicate edges: %d distinct of %d", len(seen), len(topo.Edges))
	}
}

func TestChainSpacesMassesEvenly(t *testing.T) {
	topo := Chain(r2.Vec{X: 0, Y: 10}, r2.Vec{X: 90, Y: 10}, 4)
	want := []r2.Vec{{X: 0, Y: 10}, {X: 30, Y: 10}, {X: 60, Y: 10}, {X: 90, Y: 10}}
	for i := range want {
		if r2.Norm(r2.Sub(topo.Positions[i], want[i])) > 1e-9 {
			t.Fatalf("position %d = %v, want %v", i, topo.Positions[i], want[i])
		}
	}
	if len(topo.Edges) != 3 || topo.Edges[2] != (Edge{A: 2, B: 3}) {
		t.Fatalf("edges = %v, want consecutive links", topo.Edges)
	}

	if got := Chain(r2.Vec{}, r2.Vec{X: 1}, 1); len(got.Positions) != 1 || len(got.Edges) != 0 {
		t.Fatalf("single-mass chain = %+v", got)
	}
	if got := Chain(r2.Vec{}, r2.Vec{X: 1}, 0); len(got.Positions) != 0 {
		t.Fatalf("empty chain = %+v", got)
	}
}

func TestScatterIsSeededAndBounded(t *testing.T) {
	a := Scatter(1000, 800, 600, 7)
	b := Scatter(1000, 800, 600, 7)
	c := Scatter(1000, 800, 600, 8)

	if len(a.Positions) != 1000 || len(a.Edges) != 0 {
		t.Fatalf("scatter = %d masses %d edges, want 1000 and 0", len(a.Positions), len(a.Edges))
	}
	differs := false
	for i := range a.Positions {
		if a.Positions[i] != b.Positions[i] {
			t.Fatalf("same seed gave different mass %d: %v vs %v", i, a.Positions[i], b.Positions[i])
		}
		if a.Positions[i] != c.Positions[i] {
			differs = true
		}
		p := a.Positions[i]
		if p.X < 0 || p.X > 800 || p.Y < 0 || p.Y > 600 {
			t.Fatalf("mass %d out of bounds: %v", i, p)
		}
	}
	if !differs {
		t.Fatalf("different seeds gave identical layouts")
	}
}

func TestGridLaysOutRowsAndColumns(t *testing.T) {
	topo := Grid(3, 2, r2.Vec{X: 10, Y: 20}, 5)
	if len(topo.Positions) != 6 {
		t.Fatalf("positions = %d, want 6", len(topo.Positions))
	}
	if topo.Positions[5] != (r2.Vec{X: 20, Y: 25}) {
		t.Fatalf("last position = %v, want (20, 25)", topo.Positions[5])
	}
}

func TestScenarioByNameBuildsValidWorlds(t *testing.T) {
	p := DefaultParams()
	want := map[string][2]int{
		ScenarioGrid:    {100, 0},
		ScenarioScatter: {1000, 0},
		ScenarioSquare:  {4, 6},
		ScenarioCircle:  {8, 28},
		ScenarioChain:   {16, 15},
	}
	for _, name := range ScenarioNames() {
		t.Run(name, func(t *testing.T) {
			topo, err := ScenarioByName(name, p)
			if err != nil {
				t.Fatalf("ScenarioByName(%q): %v", name, err)
			}
			w, err := NewWorld(p, topo)
			if err != nil {
				t.Fatalf("NewWorld(%q): %v", name, err)
			}
			if got := [2]int{w.MassCount(), w.SpringCount()}; got != want[name] {
				t.Fatalf("counts = %v, want %v", got, want[name])
			}
		})
	}

	if _, err := ScenarioByName("pentagon", p); !errors.Is(err, ErrInvalidScenario) {
		t.Fatalf("unknown scenario err = %v, want ErrInvalidScenario", err)
	}
}
