package state

import (
	"testing"

	"github.com/signalsfoundry/spring-simulator/core"
	"github.com/signalsfoundry/spring-simulator/internal/logging"
)

func newSquareWorld(t *testing.T) *core.World {
	t.Helper()
	p := core.DefaultParams()
	topo, err := core.ScenarioByName(core.ScenarioSquare, p)
	if err != nil {
		t.Fatalf("ScenarioByName: %v", err)
	}
	w, err := core.NewWorld(p, topo)
	if err != nil {
		t.Fatalf("NewWorld: %v", err)
	}
	return w
}

func newTestState(t *testing.T, opts ...Option) *SimulationState {
	t.Helper()
	return NewSimulationState(newSquareWorld(t), logging.Noop(), opts...)
}
