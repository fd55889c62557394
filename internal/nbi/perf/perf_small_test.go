//go:build perf

package perf

import (
	"testing"

	"github.com/signalsfoundry/spring-simulator/core"
)

var smallConfig = perfConfig{
	Scenario:   core.ScenarioGrid,
	Iterations: 4,
	Warmup:     10,
}

func BenchmarkTickSmall(b *testing.B) {
	benchmarkTicks(b, smallConfig)
}

func BenchmarkStateStepSmall(b *testing.B) {
	benchmarkStateSteps(b, smallConfig)
}

func BenchmarkSnapshotSmall(b *testing.B) {
	benchmarkSnapshots(b, smallConfig)
}
