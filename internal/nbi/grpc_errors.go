package nbi

import (
	"context"
	"errors"

	"github.com/signalsfoundry/spring-simulator/core"
	sim "github.com/signalsfoundry/spring-simulator/internal/sim/state"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ToStatusError maps common simulator errors onto gRPC status codes for NBI services.
func ToStatusError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, core.ErrMassIndex):
		return status.Error(codes.OutOfRange, err.Error())

	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, core.ErrNonFinite),
		errors.Is(err, core.ErrInvalidParams),
		errors.Is(err, core.ErrInvalidEdge),
		errors.Is(err, core.ErrInvalidRestLength),
		errors.Is(err, core.ErrInvalidScenario):
		return status.Error(codes.InvalidArgument, err.Error())

	case errors.Is(err, sim.ErrNoWorld):
		return status.Error(codes.FailedPrecondition, err.Error())

	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())

	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())

	default:
		return status.Error(codes.Internal, err.Error())
	}
}
