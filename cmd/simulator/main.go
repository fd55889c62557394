package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/signalsfoundry/spring-simulator/core"
	"github.com/signalsfoundry/spring-simulator/internal/logging"
	"github.com/signalsfoundry/spring-simulator/internal/observability"
	"github.com/signalsfoundry/spring-simulator/internal/sim/state"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Config holds the batch run options.
type Config struct {
	Scenario     string
	ScenarioFile string
	Ticks        int
	// Zero values keep the scenario's own parameters.
	TimeStep   float64
	Iterations int
	Width      float64
	Height     float64
	// LogEvery logs a progress line every N ticks; 0 disables it.
	LogEvery   int
	Plot       bool
	PlotHeight int
	PlotWidth  int
}

// Result summarises a finished run.
type Result struct {
	Scenario      string
	Ticks         int
	KineticEnergy float64
	SpringStrain  float64
	CenterOfMass  [2]float64
	BoundaryHits  int
	Energy        []float64
}

func main() {
	var cfg Config
	flag.StringVar(&cfg.Scenario, "scenario", core.ScenarioSquare, "built-in scenario: "+strings.Join(core.ScenarioNames(), ", "))
	flag.StringVar(&cfg.ScenarioFile, "scenario-file", "", "path to a JSON scenario; overrides -scenario")
	flag.IntVar(&cfg.Ticks, "ticks", 1000, "number of ticks to run")
	flag.Float64Var(&cfg.TimeStep, "dt", 0, "time step override (0 keeps the scenario value)")
	flag.IntVar(&cfg.Iterations, "iterations", 0, "relaxation passes per tick override")
	flag.Float64Var(&cfg.Width, "width", 0, "world width override")
	flag.Float64Var(&cfg.Height, "height", 0, "world height override")
	flag.IntVar(&cfg.LogEvery, "log-every", 100, "log progress every N ticks (0 disables)")
	flag.BoolVar(&cfg.Plot, "plot", true, "print an ASCII plot of kinetic energy when done")
	flag.IntVar(&cfg.PlotHeight, "plot-height", 12, "plot height in rows")
	flag.IntVar(&cfg.PlotWidth, "plot-width", 72, "plot width in columns")
	flag.Parse()

	log := logging.NewFromEnv()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	shutdown, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		log.Error(ctx, "failed to initialise tracing", logging.Err(err))
		os.Exit(1)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdown, log)

	if _, err := run(ctx, cfg, log, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		log.Error(ctx, "simulation failed", logging.Err(err))
		os.Exit(1)
	}
}

// run builds the world, steps it cfg.Ticks times and writes a summary (and
// optionally a plot) to out.
func run(ctx context.Context, cfg Config, log logging.Logger, out io.Writer) (*Result, error) {
	if log == nil {
		log = logging.Noop()
	}
	if cfg.Ticks < 0 {
		return nil, fmt.Errorf("ticks must be >= 0, got %d", cfg.Ticks)
	}

	sc, err := core.OpenScenario(cfg.ScenarioFile, cfg.Scenario, core.DefaultParams())
	if err != nil {
		return nil, err
	}
	applyOverrides(&sc.Params, cfg)

	world, err := sc.Build()
	if err != nil {
		return nil, fmt.Errorf("build scenario %q: %w", sc.Name, err)
	}

	ctx, runLog := logging.WithRunLogger(ctx, log, sc.Name)
	ctx, span := observability.Tracer().Start(ctx, "sim.Run")
	defer span.End()
	span.SetAttributes(
		attribute.String("sim.scenario", sc.Name),
		attribute.Int("sim.masses", world.MassCount()),
		attribute.Int("sim.springs", world.SpringCount()),
		attribute.Int("sim.ticks", cfg.Ticks),
	)

	runLog.Info(ctx, "simulation starting",
		logging.Int("masses", world.MassCount()),
		logging.Int("springs", world.SpringCount()),
		logging.Int("ticks", cfg.Ticks),
		logging.Float64("time_step", sc.Params.TimeStep),
		logging.Int("iterations", sc.Params.Iterations),
	)

	telemetry := state.NewTelemetryState(cfg.Ticks)
	hits := 0
	engine := core.NewSimulationEngine(world)
	engine.RegisterTickListener(func(tick int) {
		stats := world.LastTick()
		hits += stats.BoundaryHits
		telemetry.Record(state.TickSample{
			Tick:          world.Ticks(),
			KineticEnergy: world.KineticEnergy(),
			SpringStrain:  world.SpringStrain(),
			BoundaryHits:  stats.BoundaryHits,
		})
		if cfg.LogEvery > 0 && (tick+1)%cfg.LogEvery == 0 {
			runLog.Debug(ctx, "progress",
				logging.Int("tick", tick+1),
				logging.Float64("kinetic_energy", world.KineticEnergy()),
				logging.Float64("spring_strain", world.SpringStrain()),
			)
		}
	})

	start := time.Now()
	done, runErr := engine.RunContext(ctx, cfg.Ticks)
	elapsed := time.Since(start)

	if err := world.CheckFinite(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	com := world.CenterOfMass()
	res := &Result{
		Scenario:      sc.Name,
		Ticks:         done,
		KineticEnergy: world.KineticEnergy(),
		SpringStrain:  world.SpringStrain(),
		CenterOfMass:  [2]float64{com.X, com.Y},
		BoundaryHits:  hits,
		Energy:        telemetry.EnergySeries(),
	}

	runLog.Info(ctx, "simulation complete",
		logging.Int("ticks", done),
		logging.Duration("elapsed", elapsed),
		logging.Float64("kinetic_energy", res.KineticEnergy),
		logging.Float64("spring_strain", res.SpringStrain),
		logging.Int("boundary_hits", hits),
	)

	fmt.Fprintf(out, "scenario=%s ticks=%d energy=%.4f strain=%.4f com=(%.1f, %.1f) bounces=%d\n",
		res.Scenario, res.Ticks, res.KineticEnergy, res.SpringStrain, com.X, com.Y, hits)
	if cfg.Plot && len(res.Energy) > 1 {
		fmt.Fprintln(out, asciigraph.Plot(res.Energy,
			asciigraph.Height(cfg.PlotHeight),
			asciigraph.Width(cfg.PlotWidth),
			asciigraph.Caption("kinetic energy per tick"),
		))
	}

	if runErr != nil {
		span.SetStatus(codes.Error, runErr.Error())
		return res, runErr
	}
	return res, nil
}

func applyOverrides(p *core.Params, cfg Config) {
	if cfg.TimeStep > 0 {
		p.TimeStep = cfg.TimeStep
	}
	if cfg.Iterations > 0 {
		p.Iterations = cfg.Iterations
	}
	if cfg.Width > 0 {
		p.Width = cfg.Width
	}
	if cfg.Height > 0 {
		p.Height = cfg.Height
	}
}
