package observability

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector bundles the Prometheus metrics of the API and the topology
// reconciler. It satisfies topology.Recorder.
type Collector struct {
	gatherer prometheus.Gatherer

	HTTPRequests  *prometheus.CounterVec
	HTTPDurations *prometheus.HistogramVec

	AppliedTotal  *prometheus.CounterVec
	RejectedTotal *prometheus.CounterVec
	DroppedTotal  *prometheus.CounterVec
}

// NewCollector registers the metrics against reg, defaulting to the global
// Prometheus registry when nil.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	requests, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fleetforge_http_requests_total",
		Help: "Total number of handled API requests, labeled by method, route, and status code.",
	}, []string{"method", "route", "code"}), "fleetforge_http_requests_total")
	if err != nil {
		return nil, err
	}

	durations, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fleetforge_http_request_duration_seconds",
		Help:    "API request latency in seconds.",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"method", "route"}), "fleetforge_http_request_duration_seconds")
	if err != nil {
		return nil, err
	}

	applied, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fleetforge_assignments_applied_total",
		Help: "Nodes whose interface assignments were replaced, labeled by apply mode.",
	}, []string{"mode"}), "fleetforge_assignments_applied_total")
	if err != nil {
		return nil, err
	}

	rejected, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fleetforge_assignments_rejected_total",
		Help: "Assignment updates refused, labeled by violation kind.",
	}, []string{"kind"}), "fleetforge_assignments_rejected_total")
	if err != nil {
		return nil, err
	}

	dropped, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fleetforge_discovery_dropped_total",
		Help: "Probe interface entries dropped during discovery, labeled by reason.",
	}, []string{"reason"}), "fleetforge_discovery_dropped_total")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:      gatherer,
		HTTPRequests:  requests,
		HTTPDurations: durations,
		AppliedTotal:  applied,
		RejectedTotal: rejected,
		DroppedTotal:  dropped,
	}, nil
}

// ObserveRequest records one handled API request
func (c *Collector) ObserveRequest(method, route string, code int, elapsed time.Duration) {
	if c == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	c.HTTPDurations.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// AssignmentsApplied counts nodes whose assignments were replaced
func (c *Collector) AssignmentsApplied(mode string, nodes int) {
	if c == nil {
		return
	}
	c.AppliedTotal.WithLabelValues(mode).Add(float64(nodes))
}

// AssignmentsRejected counts one refused assignment update
func (c *Collector) AssignmentsRejected(kind string) {
	if c == nil {
		return
	}
	c.RejectedTotal.WithLabelValues(kind).Inc()
}

// DiscoveryDropped counts probe entries dropped for reason
func (c *Collector) DiscoveryDropped(reason string, count int) {
	if c == nil {
		return
	}
	c.DroppedTotal.WithLabelValues(reason).Add(float64(count))
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}
