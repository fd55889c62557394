package nbi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	sim "github.com/signalsfoundry/spring-simulator/internal/sim/state"
)

func TestPositionsHandler(t *testing.T) {
	h := PositionsHandler(newSquareState(t), nil)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/positions", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("Content-Type = %q", ct)
	}

	var body struct {
		Tick      float64      `json:"tick"`
		TimeStep  float64      `json:"time_step"`
		Positions [][2]float64 `json:"positions"`
		Springs   [][2]int     `json:"springs"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", rr.Body.String(), err)
	}
	if body.Tick != 0 || body.TimeStep != 0.1 || len(body.Positions) != 4 || len(body.Springs) != 6 {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestPositionsHandlerErrors(t *testing.T) {
	rr := httptest.NewRecorder()
	PositionsHandler(newSquareState(t), nil).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/positions", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST status = %d, want 405", rr.Code)
	}

	rr = httptest.NewRecorder()
	PositionsHandler(sim.NewSimulationState(nil, nil), nil).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/positions", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("no world status = %d, want 503", rr.Code)
	}
}
