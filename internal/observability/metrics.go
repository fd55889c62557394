package observability

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// rpcBuckets cover in-memory snapshot and impulse calls, which rarely
// leave the sub-millisecond range.
var rpcBuckets = []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1}

// NBICollector holds the RPC metrics of the simulation API.
type NBICollector struct {
	gatherer prometheus.Gatherer

	RPCRequests  *prometheus.CounterVec
	RPCDurations *prometheus.HistogramVec
	RPCInFlight  *prometheus.GaugeVec
}

// NewNBICollector registers the RPC metrics against reg, or against the
// global registry when reg is nil. Calling it twice with the same registry
// returns collectors bound to the metrics registered first.
func NewNBICollector(reg prometheus.Registerer) (*NBICollector, error) {
	reg, gatherer := resolveRegistry(reg)
	c := &NBICollector{gatherer: gatherer}

	var err error
	c.RPCRequests, err = register(reg, "nbi_requests_total", prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "nbi_requests_total",
		Help: "Handled simulation API RPCs by service, method and gRPC status code.",
	}, []string{"service", "method", "code"}))
	if err != nil {
		return nil, err
	}
	c.RPCDurations, err = register(reg, "nbi_request_duration_seconds", prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "nbi_request_duration_seconds",
		Help:    "Simulation API RPC latency in seconds.",
		Buckets: rpcBuckets,
	}, []string{"service", "method"}))
	if err != nil {
		return nil, err
	}
	c.RPCInFlight, err = register(reg, "nbi_requests_in_flight", prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "nbi_requests_in_flight",
		Help: "Simulation API RPCs currently being served.",
	}, []string{"method"}))
	if err != nil {
		return nil, err
	}
	return c, nil
}

// UnaryServerInterceptor counts and times every unary RPC.
func (c *NBICollector) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if c == nil {
			return handler(ctx, req)
		}
		var fullMethod string
		if info != nil {
			fullMethod = info.FullMethod
		}
		service, method := SplitMethod(fullMethod)

		if c.RPCInFlight != nil {
			inFlight := c.RPCInFlight.WithLabelValues(method)
			inFlight.Inc()
			defer inFlight.Dec()
		}

		start := time.Now()
		resp, err := handler(ctx, req)
		elapsed := time.Since(start)

		if c.RPCRequests != nil {
			c.RPCRequests.WithLabelValues(service, method, status.Code(err).String()).Inc()
		}
		if c.RPCDurations != nil {
			c.RPCDurations.WithLabelValues(service, method).Observe(elapsed.Seconds())
		}
		return resp, err
	}
}

// Handler serves every metric in the collector's registry, including the
// simulation metrics when they share it.
func (c *NBICollector) Handler() http.Handler {
	var gatherer prometheus.Gatherer = prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SplitMethod turns "/pkg.Service/Method" into ("Service", "Method").
// Parts that cannot be parsed come back as "unknown".
func SplitMethod(fullMethod string) (service, method string) {
	service, method = "unknown", "unknown"

	path := strings.TrimPrefix(fullMethod, "/")
	slash := strings.LastIndex(path, "/")
	if slash < 0 {
		return service, method
	}
	if m := path[slash+1:]; m != "" {
		method = m
	}
	svc := path[:slash]
	if i := strings.LastIndexAny(svc, "/."); i >= 0 {
		svc = svc[i+1:]
	}
	if svc != "" {
		service = svc
	}
	return service, method
}

func resolveRegistry(reg prometheus.Registerer) (prometheus.Registerer, prometheus.Gatherer) {
	if reg == nil {
		return prometheus.DefaultRegisterer, prometheus.DefaultGatherer
	}
	if g, ok := reg.(prometheus.Gatherer); ok {
		return reg, g
	}
	return reg, prometheus.DefaultGatherer
}

// register adds c to reg. If an identical collector is already registered
// it returns that one instead, so several servers can share a registry.
func register[T prometheus.Collector](reg prometheus.Registerer, name string, c T) (T, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}
	var are prometheus.AlreadyRegisteredError
	if !errors.As(err, &are) {
		var zero T
		return zero, fmt.Errorf("register %s: %w", name, err)
	}
	existing, ok := are.ExistingCollector.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("collector %s already registered with incompatible type", name)
	}
	return existing, nil
}
