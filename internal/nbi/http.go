package nbi

import (
	"net/http"

	"github.com/signalsfoundry/spring-simulator/internal/logging"
	sim "github.com/signalsfoundry/spring-simulator/internal/sim/state"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
)

// PositionsHandler serves the current snapshot as JSON. The body matches the
// GetSnapshot Struct so HTTP and gRPC clients see the same shape.
func PositionsHandler(state *sim.SimulationState, log logging.Logger) http.Handler {
	if log == nil {
		log = logging.Noop()
	}
	marshal := protojson.MarshalOptions{UseProtoNames: true}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if state == nil {
			http.Error(w, "simulation state is not configured", http.StatusServiceUnavailable)
			return
		}

		snap, err := state.Snapshot()
		if err != nil {
			http.Error(w, err.Error(), httpStatus(ToStatusError(err)))
			return
		}
		body, err := marshal.Marshal(SnapshotToStruct(snap))
		if err != nil {
			log.Error(r.Context(), "encode snapshot", logging.Err(err))
			http.Error(w, "encode snapshot", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodGet {
			_, _ = w.Write(body)
		}
	})
}

func httpStatus(err error) int {
	switch status.Code(err) {
	case codes.InvalidArgument, codes.OutOfRange:
		return http.StatusBadRequest
	case codes.FailedPrecondition:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
