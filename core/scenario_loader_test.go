// core/scenario_loader_test.go
package core

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gonum.org/v1/gonum/spatial/r2"
)

func TestLoadScenario_GeneratorWithParamOverrides(t *testing.T) {
	jsonData := `
{
  "name": "octagon",
  "params": { "gravity": 2.5, "iterations": 4, "width": 1000 },
  "generator": { "kind": "circle", "n": 8, "radius": 100 }
}`

	sc, err := LoadScenario(strings.NewReader(jsonData), DefaultParams())
	if err != nil {
		t.Fatalf("LoadScenario error: %v", err)
	}
	if sc.Name != "octagon" {
		t.Fatalf("Name = %q, want octagon", sc.Name)
	}
	if sc.Params.Gravity != 2.5 || sc.Params.Iterations != 4 || sc.Params.Width != 1000 {
		t.Fatalf("overrides not applied: %+v", sc.Params)
	}
	if sc.Params.Damping != 0.99 || sc.Params.Height != 600 {
		t.Fatalf("defaults not preserved: %+v", sc.Params)
	}

	// Centre follows the overridden width.
	var cx float64
	for _, p := range sc.Topology.Positions {
		cx += p.X
	}
	if cx /= float64(len(sc.Topology.Positions)); cx < 499.999 || cx > 500.001 {
		t.Fatalf("circle centre x = %v, want 500", cx)
	}

	w, err := sc.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if w.MassCount() != 8 || w.SpringCount() != 28 {
		t.Fatalf("counts = %d/%d, want 8/28", w.MassCount(), w.SpringCount())
	}
}

func TestLoadScenario_ExplicitMassesAndSprings(t *testing.T) {
	jsonData := `
{
  "masses": [ {"x": 100, "y": 100}, {"x": 200, "y": 100}, {"x": 200, "y": 150} ],
  "springs": [ {"a": 0, "b": 1}, {"a": 1, "b": 2, "rest_length": 20} ]
}`

	sc, err := LoadScenario(strings.NewReader(jsonData), DefaultParams())
	if err != nil {
		t.Fatalf("LoadScenario error: %v", err)
	}
	w, err := sc.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got := w.Spring(0).RestLength; got != 100 {
		t.Fatalf("derived rest length = %v, want 100", got)
	}
	if got := w.Spring(1).RestLength; got != 20 {
		t.Fatalf("explicit rest length = %v, want 20", got)
	}
}

func TestLoadScenario_GeneratorPlusExplicitMasses(t *testing.T) {
	jsonData := `
{
  "generator": { "kind": "square", "side": 50, "center": {"x": 100, "y": 100} },
  "masses": [ {"x": 100, "y": 40} ],
  "springs": [ {"a": 0, "b": 4}, {"a": 1, "b": 4} ]
}`

	sc, err := LoadScenario(strings.NewReader(jsonData), DefaultParams())
	if err != nil {
		t.Fatalf("LoadScenario error: %v", err)
	}
	if sc.Name != "square" {
		t.Fatalf("Name = %q, want generator kind", sc.Name)
	}
	if len(sc.Topology.Positions) != 5 || len(sc.Topology.Edges) != 8 {
		t.Fatalf("topology = %d masses %d edges, want 5 and 8", len(sc.Topology.Positions), len(sc.Topology.Edges))
	}
	if sc.Topology.Positions[4] != (r2.Vec{X: 100, Y: 40}) {
		t.Fatalf("explicit mass = %v, want appended after generated ones", sc.Topology.Positions[4])
	}
	if _, err := sc.Build(); err != nil {
		t.Fatalf("Build: %v", err)
	}
}

func TestLoadScenario_Errors(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{"malformed", `{"masses": [`},
		{"unknown field", `{"masses": [{"x": 1, "y": 1}], "colour": "red"}`},
		{"empty", `{}`},
		{"unknown generator", `{"generator": {"kind": "torus"}}`},
		{"circle without radius", `{"generator": {"kind": "circle", "n": 8}}`},
		{"grid without spacing", `{"generator": {"kind": "grid", "cols": 2, "rows": 2}}`},
		{"chain without ends", `{"generator": {"kind": "chain", "n": 4}}`},
		{"scatter without n", `{"generator": {"kind": "scatter"}}`},
		{"trailing object", `{"generator": {"kind": "square", "side": 10}} {"masses": []}`},
		{"trailing garbage", `{"generator": {"kind": "square", "side": 10}}]`},
		{"negative rest length", `{"masses": [{"x": 1, "y": 1}, {"x": 5, "y": 1}], "springs": [{"a": 0, "b": 1, "rest_length": -1}]}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadScenario(strings.NewReader(tc.json), DefaultParams())
			if !errors.Is(err, ErrInvalidScenario) {
				t.Fatalf("err = %v, want ErrInvalidScenario", err)
			}
		})
	}
}

func TestLoadScenario_BuildRejectsInvalidParams(t *testing.T) {
	jsonData := `{"params": {"time_step": -1}, "generator": {"kind": "square", "side": 10}}`

	sc, err := LoadScenario(strings.NewReader(jsonData), DefaultParams())
	if err != nil {
		t.Fatalf("LoadScenario error: %v", err)
	}
	if _, err := sc.Build(); !errors.Is(err, ErrInvalidParams) {
		t.Fatalf("Build err = %v, want ErrInvalidParams", err)
	}
}

func TestOpenScenario(t *testing.T) {
	sc, err := OpenScenario("", "", DefaultParams())
	if err != nil {
		t.Fatalf("OpenScenario builtin: %v", err)
	}
	if sc.Name != ScenarioSquare || len(sc.Topology.Positions) != 4 {
		t.Fatalf("default scenario = %q with %d masses, want square with 4", sc.Name, len(sc.Topology.Positions))
	}

	if _, err := OpenScenario("", "torus", DefaultParams()); !errors.Is(err, ErrInvalidScenario) {
		t.Fatalf("unknown builtin err = %v, want ErrInvalidScenario", err)
	}

	path := filepath.Join(t.TempDir(), "pair.json")
	body := `{"name": "pair", "masses": [{"x": 10, "y": 10}, {"x": 40, "y": 10}], "springs": [{"a": 0, "b": 1}]}`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	sc, err = OpenScenario(path, "ignored", DefaultParams())
	if err != nil {
		t.Fatalf("OpenScenario file: %v", err)
	}
	if sc.Name != "pair" || len(sc.Topology.Edges) != 1 {
		t.Fatalf("file scenario = %+v", sc)
	}

	if _, err := OpenScenario(filepath.Join(t.TempDir(), "missing.json"), "", DefaultParams()); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("missing file err = %v, want os.ErrNotExist", err)
	}
}

func TestBundledScenarioFilesBuildAndStayInBounds(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("..", "examples", "scenarios", "*.json"))
	if err != nil {
		t.Fatalf("Glob: %v", err)
	}
	if len(paths) < 2 {
		t.Fatalf("expected bundled scenario files, found %v", paths)
	}

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			sc, err := OpenScenario(path, "", DefaultParams())
			if err != nil {
				t.Fatalf("OpenScenario: %v", err)
			}
			w, err := sc.Build()
			if err != nil {
				t.Fatalf("Build: %v", err)
			}
			for i := 0; i < 200; i++ {
				w.Step()
			}
			if err := w.CheckFinite(); err != nil {
				t.Fatalf("CheckFinite: %v", err)
			}
			p := w.Params()
			for i, pos := range w.Positions() {
				if pos.X < 0 || pos.X > p.Width || pos.Y < 0 || pos.Y > p.Height {
					t.Fatalf("mass %d at %v left the %gx%g world", i, pos, p.Width, p.Height)
				}
			}
		})
	}
}
