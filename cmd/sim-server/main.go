package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/signalsfoundry/spring-simulator/core"
	"github.com/signalsfoundry/spring-simulator/internal/logging"
	"github.com/signalsfoundry/spring-simulator/internal/nbi"
	"github.com/signalsfoundry/spring-simulator/internal/observability"
	sim "github.com/signalsfoundry/spring-simulator/internal/sim/state"
	"github.com/signalsfoundry/spring-simulator/timectrl"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Config holds the server options.
type Config struct {
	ListenAddress string
	// HTTPAddress serves /metrics and /positions; empty disables HTTP.
	HTTPAddress  string
	Scenario     string
	ScenarioFile string
	TickInterval time.Duration
	Accelerated  bool
	// TelemetrySamples bounds the in-memory tick history.
	TelemetrySamples int
}

func main() {
	var cfg Config
	flag.StringVar(&cfg.ListenAddress, "grpc-addr", ":50051", "TCP address the gRPC server listens on")
	flag.StringVar(&cfg.HTTPAddress, "http-addr", ":9090", "HTTP address for /metrics and /positions (empty disables)")
	flag.StringVar(&cfg.Scenario, "scenario", core.ScenarioSquare, "built-in scenario: "+strings.Join(core.ScenarioNames(), ", "))
	flag.StringVar(&cfg.ScenarioFile, "scenario-file", "", "path to a JSON scenario; overrides -scenario")
	flag.DurationVar(&cfg.TickInterval, "tick", 16*time.Millisecond, "wall-clock interval between ticks")
	flag.BoolVar(&cfg.Accelerated, "accelerated", false, "tick as fast as possible instead of in real time")
	flag.IntVar(&cfg.TelemetrySamples, "telemetry-samples", sim.DefaultTelemetryCapacity, "number of recent ticks kept in memory")
	flag.Parse()

	log := logging.NewFromEnv()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		log.Error(ctx, "failed to initialise tracing", logging.Err(err))
		os.Exit(1)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdown, log)

	lis, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		log.Error(ctx, "failed to listen for gRPC", logging.String("addr", cfg.ListenAddress), logging.Err(err))
		os.Exit(1)
	}

	if err := run(ctx, cfg, log, lis); err != nil {
		log.Error(ctx, "server exited", logging.Err(err))
		os.Exit(1)
	}
}

// run serves the simulation on lis until ctx is cancelled.
func run(ctx context.Context, cfg Config, log logging.Logger, lis net.Listener) error {
	if log == nil {
		log = logging.Noop()
	}
	if cfg.TickInterval <= 0 {
		return fmt.Errorf("%w: tick interval must be > 0, got %v", timectrl.ErrInvalidTick, cfg.TickInterval)
	}

	sc, err := core.OpenScenario(cfg.ScenarioFile, cfg.Scenario, core.DefaultParams())
	if err != nil {
		return err
	}
	world, err := sc.Build()
	if err != nil {
		return fmt.Errorf("build scenario %q: %w", sc.Name, err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	simMetrics, err := observability.NewSimCollector(reg)
	if err != nil {
		return fmt.Errorf("sim metrics: %w", err)
	}
	nbiMetrics, err := observability.NewNBICollector(reg)
	if err != nil {
		return fmt.Errorf("nbi metrics: %w", err)
	}

	mode := timectrl.RealTime
	if cfg.Accelerated {
		mode = timectrl.Accelerated
	}
	tc := timectrl.NewTimeController(time.Now().UTC(), cfg.TickInterval, mode)

	state := sim.NewSimulationState(world, log,
		sim.WithScenarioName(sc.Name),
		sim.WithClock(tc),
		sim.WithMetricsRecorder(simMetrics),
		sim.WithTelemetry(sim.NewTelemetryState(cfg.TelemetrySamples)),
	)

	server := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			nbi.RequestIDUnaryServerInterceptor(log),
			nbi.TracingUnaryServerInterceptor(),
			nbiMetrics.UnaryServerInterceptor(),
		),
	)
	nbi.RegisterSimulationServiceServer(server, nbi.NewSimulationService(state, log))

	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(server, healthSrv)

	httpSrv := serveHTTP(cfg.HTTPAddress, nbiMetrics.Handler(), nbi.PositionsHandler(state, log), log)

	loopCtx, stopLoop := context.WithCancel(ctx)
	defer stopLoop()
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		runSimLoop(loopCtx, tc, state, log)
	}()

	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthSrv.SetServingStatus(nbi.SimulationServiceName, healthpb.HealthCheckResponse_SERVING)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Serve(lis)
	}()

	log.Info(ctx, "simulation server started",
		logging.String("grpc_addr", lis.Addr().String()),
		logging.String("http_addr", cfg.HTTPAddress),
		logging.String("scenario", sc.Name),
		logging.Int("masses", world.MassCount()),
		logging.Int("springs", world.SpringCount()),
		logging.String("mode", mode.String()),
	)

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			runErr = fmt.Errorf("grpc serve: %w", err)
		}
	}

	log.Info(context.Background(), "shutting down simulation server")
	healthSrv.Shutdown()
	stopLoop()
	<-loopDone
	server.GracefulStop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if httpSrv != nil {
		_ = httpSrv.Shutdown(shutdownCtx)
	}
	return runErr
}

// runSimLoop steps state on every controller tick until ctx is cancelled.
func runSimLoop(ctx context.Context, tc *timectrl.TimeController, state *sim.SimulationState, log logging.Logger) {
	if tc == nil || state == nil {
		return
	}
	if log == nil {
		log = logging.Noop()
	}

	// A world holding NaN cannot recover. Stepping pauses on the last
	// snapshot until LoadScenario installs a new world.
	var (
		diverged   bool
		divergedAt uint64
	)
	tc.AddListener(func(time.Time) {
		gen := state.Generation()
		if diverged {
			if gen == divergedAt {
				return
			}
			diverged = false
			log.Info(ctx, "simulation resumed", logging.Uint64("generation", gen))
		}
		if _, err := state.Step(ctx); err != nil {
			diverged = true
			divergedAt = gen
			log.Error(ctx, "simulation halted", logging.Err(err))
		}
	})

	if err := tc.Run(ctx, 0); err != nil && !errors.Is(err, context.Canceled) {
		log.Warn(ctx, "sim loop stopped", logging.Err(err))
	}
}

func serveHTTP(addr string, metrics, positions http.Handler, log logging.Logger) *http.Server {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics)
	mux.Handle("/positions", positions)

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "http server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving HTTP", logging.String("addr", addr))
	return srv
}
