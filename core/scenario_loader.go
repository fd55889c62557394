// core/scenario_loader.go
package core

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"gonum.org/v1/gonum/spatial/r2"
)

// Scenario is a ready-to-build description loaded from JSON.
type Scenario struct {
	Name     string
	Params   Params
	Topology Topology
}

// Build constructs the World described by the scenario.
func (s *Scenario) Build() (*World, error) {
	return NewWorld(s.Params, s.Topology)
}

// OpenScenario resolves a scenario for the binaries: a JSON file when path is
// set, otherwise the built-in layout called name.
func OpenScenario(path, name string, base Params) (*Scenario, error) {
	if path == "" {
		topo, err := ScenarioByName(name, base)
		if err != nil {
			return nil, err
		}
		if name == "" {
			name = ScenarioSquare
		}
		return &Scenario{Name: name, Params: base, Topology: topo}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open scenario %q: %w", path, err)
	}
	defer f.Close()

	sc, err := LoadScenario(f, base)
	if err != nil {
		return nil, fmt.Errorf("load scenario %q: %w", path, err)
	}
	return sc, nil
}

// internal JSON shapes, unexported so the file format can evolve.
type scenarioJSON struct {
	Name      string         `json:"name"`
	Params    *paramsJSON    `json:"params"`
	Generator *generatorJSON `json:"generator"`
	Masses    []pointJSON    `json:"masses"`
	Springs   []springJSON   `json:"springs"`
}

// paramsJSON uses pointers so absent fields keep the caller's defaults.
type paramsJSON struct {
	TimeStep    *float64 `json:"time_step"`
	Gravity     *float64 `json:"gravity"`
	Damping     *float64 `json:"damping"`
	Stiffness   *float64 `json:"stiffness"`
	Friction    *float64 `json:"friction"`
	MaxVelocity *float64 `json:"max_velocity"`
	Restitution *float64 `json:"restitution"`
	Width       *float64 `json:"width"`
	Height      *float64 `json:"height"`
	Iterations  *int     `json:"iterations"`
}

type generatorJSON struct {
	Kind    string     `json:"kind"` // grid | scatter | square | circle | chain
	N       int        `json:"n"`
	Cols    int        `json:"cols"`
	Rows    int        `json:"rows"`
	Spacing float64    `json:"spacing"`
	Side    float64    `json:"side"`
	Radius  float64    `json:"radius"`
	Seed    uint64     `json:"seed"`
	Center  *pointJSON `json:"center"`
	Start   *pointJSON `json:"start"`
	End     *pointJSON `json:"end"`
}

type pointJSON struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type springJSON struct {
	A          int     `json:"a"`
	B          int     `json:"b"`
	RestLength float64 `json:"rest_length"` // optional; 0 derives it
}

// LoadScenario reads a JSON scenario from r. Params present in the file
// override base. Generated masses come first, explicit masses and springs
// are appended after them. The result is validated only as far as JSON and
// structure go; Build runs the full world validation.
func LoadScenario(r io.Reader, base Params) (*Scenario, error) {
	var payload scenarioJSON
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: decode failed: %v", ErrInvalidScenario, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data after scenario object", ErrInvalidScenario)
	}

	params := payload.Params.apply(base)

	var topo Topology
	if payload.Generator != nil {
		gen, err := payload.Generator.build(params)
		if err != nil {
			return nil, err
		}
		topo = gen
	} else if len(payload.Masses) == 0 {
		return nil, fmt.Errorf("%w: neither generator nor masses given", ErrInvalidScenario)
	}

	explicit := Topology{Positions: make([]r2.Vec, 0, len(payload.Masses))}
	for _, m := range payload.Masses {
		explicit.Positions = append(explicit.Positions, r2.Vec{X: m.X, Y: m.Y})
	}
	for i, s := range payload.Springs {
		if s.RestLength < 0 {
			return nil, fmt.Errorf("%w: spring %d: %w", ErrInvalidScenario, i, ErrInvalidRestLength)
		}
		explicit.Edges = append(explicit.Edges, Edge{A: s.A, B: s.B, RestLength: s.RestLength})
	}

	// Explicit spring indices address the whole mass list, generated masses
	// included, so they are not shifted.
	topo.Positions = append(topo.Positions, explicit.Positions...)
	topo.Edges = append(topo.Edges, explicit.Edges...)

	name := payload.Name
	if name == "" && payload.Generator != nil {
		name = payload.Generator.Kind
	}
	return &Scenario{Name: name, Params: params, Topology: topo}, nil
}

func (p *paramsJSON) apply(base Params) Params {
	if p == nil {
		return base
	}
	out := base
	setF := func(dst *float64, src *float64) {
		if src != nil {
			*dst = *src
		}
	}
	setF(&out.TimeStep, p.TimeStep)
	setF(&out.Gravity, p.Gravity)
	setF(&out.Damping, p.Damping)
	setF(&out.Stiffness, p.Stiffness)
	setF(&out.Friction, p.Friction)
	setF(&out.MaxVelocity, p.MaxVelocity)
	setF(&out.Restitution, p.Restitution)
	setF(&out.Width, p.Width)
	setF(&out.Height, p.Height)
	if p.Iterations != nil {
		out.Iterations = *p.Iterations
	}
	return out
}

func (g *generatorJSON) build(p Params) (Topology, error) {
	center := r2.Vec{X: p.Width / 2, Y: p.Height / 2}
	if g.Center != nil {
		center = r2.Vec{X: g.Center.X, Y: g.Center.Y}
	}
	kind := strings.ToLower(strings.TrimSpace(g.Kind))

	switch kind {
	case ScenarioGrid:
		if g.Cols <= 0 || g.Rows <= 0 || g.Spacing <= 0 {
			return Topology{}, fmt.Errorf("%w: grid needs cols, rows and spacing > 0", ErrInvalidScenario)
		}
		origin := r2.Vec{
			X: center.X - g.Spacing*float64(g.Cols-1)/2,
			Y: center.Y - g.Spacing*float64(g.Rows-1)/2,
		}
		return Grid(g.Cols, g.Rows, origin, g.Spacing), nil
	case ScenarioScatter:
		if g.N <= 0 {
			return Topology{}, fmt.Errorf("%w: scatter needs n > 0", ErrInvalidScenario)
		}
		return Scatter(g.N, p.Width, p.Height, g.Seed), nil
	case ScenarioSquare:
		if g.Side <= 0 {
			return Topology{}, fmt.Errorf("%w: square needs side > 0", ErrInvalidScenario)
		}
		return Square(center, g.Side), nil
	case ScenarioCircle:
		if g.N < 2 || g.Radius <= 0 {
			return Topology{}, fmt.Errorf("%w: circle needs n >= 2 and radius > 0", ErrInvalidScenario)
		}
		return CompleteCircle(center, g.Radius, g.N), nil
	case ScenarioChain:
		if g.N < 2 || g.Start == nil || g.End == nil {
			return Topology{}, fmt.Errorf("%w: chain needs n >= 2, start and end", ErrInvalidScenario)
		}
		return Chain(r2.Vec{X: g.Start.X, Y: g.Start.Y}, r2.Vec{X: g.End.X, Y: g.End.Y}, g.N), nil
	default:
		return Topology{}, fmt.Errorf("%w: unknown generator %q", ErrInvalidScenario, g.Kind)
	}
}
