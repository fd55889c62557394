package core

import "context"

// SimulationEngine runs a World for a fixed number of ticks and notifies
// listeners after each one.
type SimulationEngine struct {
	World         *World
	tickListeners []func(int)
}

func NewSimulationEngine(w *World) *SimulationEngine {
	return &SimulationEngine{
		World:         w,
		tickListeners: []func(int){},
	}
}

func (se *SimulationEngine) RegisterTickListener(fn func(int)) {
	se.tickListeners = append(se.tickListeners, fn)
}

// Run advances ticks steps of the configured TimeStep. Listeners see the
// state after integration and relaxation of that tick.
func (se *SimulationEngine) Run(ticks int) {
	_, _ = se.RunContext(context.Background(), ticks)
}

// RunContext is Run with cancellation checked before every tick. It returns
// the number of ticks completed and ctx.Err() if it stopped early.
func (se *SimulationEngine) RunContext(ctx context.Context, ticks int) (int, error) {
	if se.World == nil {
		return 0, nil
	}
	for tick := 0; tick < ticks; tick++ {
		if err := ctx.Err(); err != nil {
			return tick, err
		}
		se.World.Step()

		for _, fn := range se.tickListeners {
			fn(tick)
		}
	}
	return ticks, nil
}
