package main

import (
	"context"
	"testing"
	"time"

	"github.com/signalsfoundry/spring-simulator/core"
	"github.com/signalsfoundry/spring-simulator/internal/logging"
	sim "github.com/signalsfoundry/spring-simulator/internal/sim/state"
	"github.com/signalsfoundry/spring-simulator/timectrl"
)

func TestRunSimLoop_StepsUntilCancelled(t *testing.T) {
	p := core.DefaultParams()
	topo, err := core.ScenarioByName(core.ScenarioGrid, p)
	if err != nil {
		t.Fatalf("ScenarioByName: %v", err)
	}
	world, err := core.NewWorld(p, topo)
	if err != nil {
		t.Fatalf("NewWorld: %v", err)
	}
	telemetry := sim.NewTelemetryState(16)
	state := sim.NewSimulationState(world, logging.Noop(), sim.WithTelemetry(telemetry))

	tc := timectrl.NewTimeController(time.Now(), 10*time.Millisecond, timectrl.Accelerated)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		runSimLoop(ctx, tc, state, logging.Noop())
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	snap, err := state.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.Tick == 0 {
		t.Fatalf("expected the loop to step the world at least once")
	}
	if snap.Tick != tc.Steps() {
		t.Fatalf("world ticks = %d, controller steps = %d", snap.Tick, tc.Steps())
	}
	latest, ok := telemetry.Latest()
	if !ok || latest.Tick != snap.Tick {
		t.Fatalf("latest telemetry = %+v, want tick %d", latest, snap.Tick)
	}
}

func TestRunSimLoop_NilInputs(t *testing.T) {
	runSimLoop(context.Background(), nil, nil, nil)
}
