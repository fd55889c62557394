//go:build perf || perf_large

package perf

import (
	"context"
	"testing"

	"github.com/signalsfoundry/spring-simulator/core"
	"github.com/signalsfoundry/spring-simulator/internal/logging"
	"github.com/signalsfoundry/spring-simulator/internal/nbi"
	sim "github.com/signalsfoundry/spring-simulator/internal/sim/state"
	"google.golang.org/protobuf/types/known/emptypb"
)

type perfConfig struct {
	Scenario   string
	Iterations int
	// Warmup ticks run before timing so the world is in motion.
	Warmup int
}

func newWorld(b *testing.B, cfg perfConfig) *core.World {
	b.Helper()
	p := core.DefaultParams()
	if cfg.Iterations > 0 {
		p.Iterations = cfg.Iterations
	}
	topo, err := core.ScenarioByName(cfg.Scenario, p)
	if err != nil {
		b.Fatalf("ScenarioByName(%s): %v", cfg.Scenario, err)
	}
	w, err := core.NewWorld(p, topo)
	if err != nil {
		b.Fatalf("NewWorld(%s): %v", cfg.Scenario, err)
	}
	for i := 0; i < cfg.Warmup; i++ {
		w.Step()
	}
	return w
}

func benchmarkTicks(b *testing.B, cfg perfConfig) {
	w := newWorld(b, cfg)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		w.Step()
	}
}

func benchmarkStateSteps(b *testing.B, cfg perfConfig) {
	state := sim.NewSimulationState(newWorld(b, cfg), logging.Noop())
	ctx := context.Background()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := state.Step(ctx); err != nil {
			b.Fatalf("Step: %v", err)
		}
	}
}

func benchmarkSnapshots(b *testing.B, cfg perfConfig) {
	state := sim.NewSimulationState(newWorld(b, cfg), logging.Noop())
	svc := nbi.NewSimulationService(state, logging.Noop())
	ctx := context.Background()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := svc.GetSnapshot(ctx, &emptypb.Empty{}); err != nil {
			b.Fatalf("GetSnapshot: %v", err)
		}
	}
}
