package nbi

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/signalsfoundry/spring-simulator/core"
	"gonum.org/v1/gonum/spatial/r2"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

var (
	// ErrInvalidRequest is returned for structurally invalid RPC payloads.
	ErrInvalidRequest = errors.New("invalid request")
)

// DefaultAttractionMagnitude is the impulse applied per mass when an
// attraction request omits magnitude.
const DefaultAttractionMagnitude = 0.5

// ImpulseRequest is a decoded ApplyImpulse payload.
type ImpulseRequest struct {
	MassIndex int
	Delta     r2.Vec
}

// AttractionRequest is a decoded ApplyAttraction payload.
type AttractionRequest struct {
	Target    r2.Vec
	Magnitude float64
}

// LoadScenarioRequest is a decoded LoadScenario payload. Exactly one of
// Name and Document is set.
type LoadScenarioRequest struct {
	// Name selects a built-in scenario.
	Name string
	// Document is an inline scenario in the JSON file format.
	Document []byte
}

// Open resolves the request into a scenario whose params default to base.
func (r LoadScenarioRequest) Open(base core.Params) (*core.Scenario, error) {
	if r.Document != nil {
		return core.LoadScenario(bytes.NewReader(r.Document), base)
	}
	return core.OpenScenario("", r.Name, base)
}

// ParseImpulseRequest decodes {mass_index, dx, dy}. mass_index must be an
// integer; range checks are left to the world.
func ParseImpulseRequest(in *structpb.Struct) (ImpulseRequest, error) {
	fields, err := structFields(in, "mass_index", "dx", "dy")
	if err != nil {
		return ImpulseRequest{}, err
	}

	idx, err := requiredNumber(fields, "mass_index")
	if err != nil {
		return ImpulseRequest{}, err
	}
	if idx != math.Trunc(idx) {
		return ImpulseRequest{}, fmt.Errorf("%w: mass_index %g is not an integer", ErrInvalidRequest, idx)
	}
	if idx < math.MinInt32 || idx > math.MaxInt32 {
		return ImpulseRequest{}, fmt.Errorf("%w: %g", core.ErrMassIndex, idx)
	}

	dx, err := requiredNumber(fields, "dx")
	if err != nil {
		return ImpulseRequest{}, err
	}
	dy, err := requiredNumber(fields, "dy")
	if err != nil {
		return ImpulseRequest{}, err
	}
	return ImpulseRequest{MassIndex: int(idx), Delta: r2.Vec{X: dx, Y: dy}}, nil
}

// ParseAttractionRequest decodes {x, y, magnitude}. magnitude defaults to
// DefaultAttractionMagnitude.
func ParseAttractionRequest(in *structpb.Struct) (AttractionRequest, error) {
	fields, err := structFields(in, "x", "y", "magnitude")
	if err != nil {
		return AttractionRequest{}, err
	}

	x, err := requiredNumber(fields, "x")
	if err != nil {
		return AttractionRequest{}, err
	}
	y, err := requiredNumber(fields, "y")
	if err != nil {
		return AttractionRequest{}, err
	}
	mag := DefaultAttractionMagnitude
	if _, ok := fields["magnitude"]; ok {
		if mag, err = requiredNumber(fields, "magnitude"); err != nil {
			return AttractionRequest{}, err
		}
	}
	return AttractionRequest{Target: r2.Vec{X: x, Y: y}, Magnitude: mag}, nil
}

// ParseLoadScenarioRequest decodes {name} or {scenario: {...}}. The inline
// scenario uses the same shape as scenario files.
func ParseLoadScenarioRequest(in *structpb.Struct) (LoadScenarioRequest, error) {
	fields, err := structFields(in, "name", "scenario")
	if err != nil {
		return LoadScenarioRequest{}, err
	}

	nameVal, hasName := fields["name"]
	docVal, hasDoc := fields["scenario"]
	switch {
	case hasName && hasDoc:
		return LoadScenarioRequest{}, fmt.Errorf("%w: name and scenario are mutually exclusive", ErrInvalidRequest)
	case hasName:
		name, ok := nameVal.GetKind().(*structpb.Value_StringValue)
		if !ok || strings.TrimSpace(name.StringValue) == "" {
			return LoadScenarioRequest{}, fmt.Errorf("%w: name must be a non-empty string", ErrInvalidRequest)
		}
		return LoadScenarioRequest{Name: name.StringValue}, nil
	case hasDoc:
		doc := docVal.GetStructValue()
		if doc == nil {
			return LoadScenarioRequest{}, fmt.Errorf("%w: scenario must be an object", ErrInvalidRequest)
		}
		raw, err := protojson.Marshal(doc)
		if err != nil {
			return LoadScenarioRequest{}, fmt.Errorf("%w: encode scenario: %v", ErrInvalidRequest, err)
		}
		return LoadScenarioRequest{Document: raw}, nil
	default:
		return LoadScenarioRequest{}, fmt.Errorf("%w: name or scenario is required", ErrInvalidRequest)
	}
}

// structFields returns the fields of in, rejecting names outside allowed.
func structFields(in *structpb.Struct, allowed ...string) (map[string]*structpb.Value, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: request body is required", ErrInvalidRequest)
	}
	var unknown []string
	for name := range in.GetFields() {
		if !contains(allowed, name) {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("%w: unknown field(s) %s", ErrInvalidRequest, strings.Join(unknown, ", "))
	}
	return in.GetFields(), nil
}

func requiredNumber(fields map[string]*structpb.Value, name string) (float64, error) {
	v, ok := fields[name]
	if !ok || v == nil {
		return 0, fmt.Errorf("%w: %s is required", ErrInvalidRequest, name)
	}
	num, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, fmt.Errorf("%w: %s must be a number", ErrInvalidRequest, name)
	}
	f := num.NumberValue
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %s must be finite", ErrInvalidRequest, name)
	}
	return f, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
