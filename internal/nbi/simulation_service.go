// internal/nbi/simulation_service.go
package nbi

import (
	"context"
	"fmt"
	"time"

	"github.com/signalsfoundry/spring-simulator/core"
	"github.com/signalsfoundry/spring-simulator/internal/logging"
	sim "github.com/signalsfoundry/spring-simulator/internal/sim/state"
	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// SimulationServiceName is the fully-qualified gRPC service name.
const SimulationServiceName = "springsim.v1.SimulationService"

const (
	getSnapshotMethod     = "/" + SimulationServiceName + "/GetSnapshot"
	applyImpulseMethod    = "/" + SimulationServiceName + "/ApplyImpulse"
	applyAttractionMethod = "/" + SimulationServiceName + "/ApplyAttraction"
	loadScenarioMethod    = "/" + SimulationServiceName + "/LoadScenario"
)

// SimulationServiceServer is the server API for SimulationService.
type SimulationServiceServer interface {
	GetSnapshot(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	ApplyImpulse(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	ApplyAttraction(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	LoadScenario(context.Context, *structpb.Struct) (*emptypb.Empty, error)
}

// SimulationService implements SimulationServiceServer backed by a
// SimulationState.
//
// Semantics:
//   - GetSnapshot returns the world after the most recent tick.
//   - ApplyImpulse and ApplyAttraction only queue velocity changes; they
//     take effect on the next tick of the sim loop.
//   - LoadScenario swaps in a freshly built world; queued impulses and tick
//     history of the old world are dropped.
type SimulationService struct {
	state *sim.SimulationState
	log   logging.Logger
}

// NewSimulationService constructs a SimulationService bound to state.
func NewSimulationService(state *sim.SimulationState, log logging.Logger) *SimulationService {
	if log == nil {
		log = logging.Noop()
	}
	return &SimulationService{state: state, log: log}
}

// GetSnapshot returns positions, springs and energy as a protobuf Struct.
func (s *SimulationService) GetSnapshot(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	_, span := startStateSpan(ctx, "Snapshot")
	defer span.End()

	snap, err := s.state.Snapshot()
	if err != nil {
		return nil, ToStatusError(err)
	}
	span.SetAttributes(attribute.Int64("sim.tick", int64(snap.Tick)))
	return SnapshotToStruct(snap), nil
}

// ApplyImpulse queues a velocity change on one mass.
func (s *SimulationService) ApplyImpulse(ctx context.Context, in *structpb.Struct) (*emptypb.Empty, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	req, err := ParseImpulseRequest(in)
	if err != nil {
		return nil, ToStatusError(err)
	}

	ctx, span := startStateSpan(ctx, "ApplyImpulse",
		attribute.Int("sim.mass_index", req.MassIndex))
	defer span.End()

	if err := s.state.ApplyImpulse(ctx, req.MassIndex, req.Delta); err != nil {
		s.logger(ctx).Warn(ctx, "ApplyImpulse rejected",
			logging.Int("mass_index", req.MassIndex),
			logging.Err(err),
		)
		span.RecordError(err)
		return nil, ToStatusError(err)
	}
	return &emptypb.Empty{}, nil
}

// ApplyAttraction pushes every mass toward a point.
func (s *SimulationService) ApplyAttraction(ctx context.Context, in *structpb.Struct) (*emptypb.Empty, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	req, err := ParseAttractionRequest(in)
	if err != nil {
		return nil, ToStatusError(err)
	}

	ctx, span := startStateSpan(ctx, "ApplyAttraction",
		attribute.Float64("sim.target_x", req.Target.X),
		attribute.Float64("sim.target_y", req.Target.Y))
	defer span.End()

	n, err := s.state.ApplyAttraction(ctx, req.Target, req.Magnitude)
	if err != nil {
		span.RecordError(err)
		return nil, ToStatusError(err)
	}
	span.SetAttributes(attribute.Int("sim.masses_pushed", n))
	return &emptypb.Empty{}, nil
}

// LoadScenario builds a built-in or inline scenario and replaces the
// running world with it.
func (s *SimulationService) LoadScenario(ctx context.Context, in *structpb.Struct) (*emptypb.Empty, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	req, err := ParseLoadScenarioRequest(in)
	if err != nil {
		return nil, ToStatusError(err)
	}

	ctx, span := startStateSpan(ctx, "LoadWorld",
		attribute.Bool("sim.inline_scenario", req.Document != nil))
	defer span.End()

	world, name, err := buildScenario(req)
	if err != nil {
		s.logger(ctx).Warn(ctx, "LoadScenario rejected", logging.Err(err))
		span.RecordError(err)
		return nil, ToStatusError(err)
	}
	if err := s.state.LoadWorld(ctx, name, world); err != nil {
		span.RecordError(err)
		return nil, ToStatusError(err)
	}
	span.SetAttributes(
		attribute.String("sim.scenario", name),
		attribute.Int("sim.masses", world.MassCount()),
	)
	return &emptypb.Empty{}, nil
}

func buildScenario(req LoadScenarioRequest) (*core.World, string, error) {
	sc, err := req.Open(core.DefaultParams())
	if err != nil {
		return nil, "", err
	}
	world, err := sc.Build()
	if err != nil {
		return nil, "", fmt.Errorf("build scenario %q: %w", sc.Name, err)
	}
	return world, sc.Name, nil
}

func (s *SimulationService) ensureReady() error {
	if s == nil || s.state == nil {
		return status.Error(codes.FailedPrecondition, "simulation state is not configured")
	}
	return nil
}

func (s *SimulationService) logger(ctx context.Context) logging.Logger {
	if l := logging.LoggerFromContext(ctx); l != nil {
		return l
	}
	return s.log
}

// SnapshotToStruct renders a snapshot as
// {scenario, tick, time_step, kinetic_energy, spring_strain,
// center_of_mass: [x,y], positions: [[x,y],...], springs: [[a,b],...]}.
// sim_time (RFC 3339) is added when the snapshot carries a clock time.
func SnapshotToStruct(snap *sim.Snapshot) *structpb.Struct {
	positions := make([]*structpb.Value, len(snap.Positions))
	for i, p := range snap.Positions {
		positions[i] = pair(p.X, p.Y)
	}
	springs := make([]*structpb.Value, len(snap.Springs))
	for i, e := range snap.Springs {
		springs[i] = pair(float64(e[0]), float64(e[1]))
	}

	out := &structpb.Struct{Fields: map[string]*structpb.Value{
		"scenario":       structpb.NewStringValue(snap.Scenario),
		"tick":           structpb.NewNumberValue(float64(snap.Tick)),
		"time_step":      structpb.NewNumberValue(snap.TimeStep),
		"kinetic_energy": structpb.NewNumberValue(snap.KineticEnergy),
		"spring_strain":  structpb.NewNumberValue(snap.SpringStrain),
		"center_of_mass": pair(snap.CenterOfMass.X, snap.CenterOfMass.Y),
		"positions":      structpb.NewListValue(&structpb.ListValue{Values: positions}),
		"springs":        structpb.NewListValue(&structpb.ListValue{Values: springs}),
	}}
	if !snap.SimTime.IsZero() {
		out.Fields["sim_time"] = structpb.NewStringValue(snap.SimTime.UTC().Format(time.RFC3339Nano))
	}
	return out
}

func pair(a, b float64) *structpb.Value {
	return structpb.NewListValue(&structpb.ListValue{Values: []*structpb.Value{
		structpb.NewNumberValue(a),
		structpb.NewNumberValue(b),
	}})
}

// RegisterSimulationServiceServer registers srv on s.
func RegisterSimulationServiceServer(s grpc.ServiceRegistrar, srv SimulationServiceServer) {
	s.RegisterService(&SimulationService_ServiceDesc, srv)
}

func _SimulationService_GetSnapshot_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SimulationServiceServer).GetSnapshot(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: getSnapshotMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SimulationServiceServer).GetSnapshot(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func _SimulationService_ApplyImpulse_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SimulationServiceServer).ApplyImpulse(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: applyImpulseMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SimulationServiceServer).ApplyImpulse(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func _SimulationService_ApplyAttraction_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SimulationServiceServer).ApplyAttraction(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: applyAttractionMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SimulationServiceServer).ApplyAttraction(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func _SimulationService_LoadScenario_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SimulationServiceServer).LoadScenario(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: loadScenarioMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SimulationServiceServer).LoadScenario(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// SimulationService_ServiceDesc is the grpc.ServiceDesc for SimulationService.
var SimulationService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: SimulationServiceName,
	HandlerType: (*SimulationServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetSnapshot", Handler: _SimulationService_GetSnapshot_Handler},
		{MethodName: "ApplyImpulse", Handler: _SimulationService_ApplyImpulse_Handler},
		{MethodName: "ApplyAttraction", Handler: _SimulationService_ApplyAttraction_Handler},
		{MethodName: "LoadScenario", Handler: _SimulationService_LoadScenario_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "springsim/v1/simulation.proto",
}

// SimulationServiceClient is the client API for SimulationService.
type SimulationServiceClient interface {
	GetSnapshot(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
	ApplyImpulse(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*emptypb.Empty, error)
	ApplyAttraction(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*emptypb.Empty, error)
	LoadScenario(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*emptypb.Empty, error)
}

type simulationServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewSimulationServiceClient returns a client bound to cc.
func NewSimulationServiceClient(cc grpc.ClientConnInterface) SimulationServiceClient {
	return &simulationServiceClient{cc: cc}
}

func (c *simulationServiceClient) GetSnapshot(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, getSnapshotMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *simulationServiceClient) ApplyImpulse(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.cc.Invoke(ctx, applyImpulseMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *simulationServiceClient) ApplyAttraction(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.cc.Invoke(ctx, applyAttractionMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *simulationServiceClient) LoadScenario(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.cc.Invoke(ctx, loadScenarioMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
