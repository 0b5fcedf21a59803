package observability

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.opentelemetry.io/otel"
)

func TestObserveRequestRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewCollector(reg)
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}

	collector.ObserveRequest(http.MethodPut, "/api/nodes/{id}/interfaces", http.StatusOK, 10*time.Millisecond)
	collector.ObserveRequest(http.MethodPut, "/api/nodes/{id}/interfaces", http.StatusBadRequest, time.Millisecond)
	collector.ObserveRequest(http.MethodGet, "", http.StatusNotFound, time.Millisecond)

	if got := testutil.ToFloat64(collector.HTTPRequests.WithLabelValues("PUT", "/api/nodes/{id}/interfaces", "200")); got != 1 {
		t.Fatalf("fleetforge_http_requests_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.HTTPRequests.WithLabelValues("GET", "unmatched", "404")); got != 1 {
		t.Fatalf("unmatched route = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(collector.HTTPDurations); got != 2 {
		t.Fatalf("duration series = %d, want 2", got)
	}
}

func TestTopologyCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewCollector(reg)
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}

	collector.AssignmentsApplied("collection", 3)
	collector.AssignmentsApplied("one", 1)
	collector.AssignmentsRejected("forbidden_network")
	collector.DiscoveryDropped("duplicate_mac", 2)

	if got := testutil.ToFloat64(collector.AppliedTotal.WithLabelValues("collection")); got != 3 {
		t.Fatalf("applied collection = %v, want 3", got)
	}
	if got := testutil.ToFloat64(collector.RejectedTotal.WithLabelValues("forbidden_network")); got != 1 {
		t.Fatalf("rejected = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.DroppedTotal.WithLabelValues("duplicate_mac")); got != 2 {
		t.Fatalf("dropped = %v, want 2", got)
	}
}

func TestNilCollectorIsSafe(t *testing.T) {
	var collector *Collector
	collector.ObserveRequest(http.MethodGet, "/", http.StatusOK, time.Millisecond)
	collector.AssignmentsApplied("one", 1)
	collector.AssignmentsRejected("unknown_node")
	collector.DiscoveryDropped("incomplete", 1)
}

func TestCollectorReusesRegisteredMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewCollector(reg)
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}
	second, err := NewCollector(reg)
	if err != nil {
		t.Fatalf("second NewCollector: %v", err)
	}

	first.AssignmentsRejected("unknown_interface")
	if got := testutil.ToFloat64(second.RejectedTotal.WithLabelValues("unknown_interface")); got != 1 {
		t.Fatalf("shared counter = %v, want 1", got)
	}
}

func TestMetricsHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewCollector(reg)
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}
	collector.AssignmentsApplied("one", 1)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	body, _ := io.ReadAll(rr.Body)
	if !strings.Contains(string(body), `fleetforge_assignments_applied_total{mode="one"} 1`) {
		t.Fatalf("metrics body missing applied counter:\n%s", body)
	}
}

func TestInitTracing(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		shutdown, err := InitTracing(context.Background(), TracingConfig{})
		if err != nil {
			t.Fatalf("InitTracing: %v", err)
		}
		if err := shutdown(context.Background()); err != nil {
			t.Fatalf("shutdown: %v", err)
		}
	})

	t.Run("stdout exporter writes spans", func(t *testing.T) {
		var buf bytes.Buffer
		shutdown, err := InitTracing(context.Background(), TracingConfig{
			Enabled:     true,
			Exporter:    "stdout",
			SampleRatio: 1,
			Writer:      &buf,
		})
		if err != nil {
			t.Fatalf("InitTracing: %v", err)
		}

		_, span := otel.Tracer("test").Start(context.Background(), "topology.Apply")
		span.End()
		ShutdownWithTimeout(context.Background(), shutdown)

		if !strings.Contains(buf.String(), "topology.Apply") {
			t.Fatalf("exporter output missing span name: %q", buf.String())
		}
	})

	t.Run("unknown exporter", func(t *testing.T) {
		if _, err := InitTracing(context.Background(), TracingConfig{Enabled: true, Exporter: "zipkin"}); err == nil {
			t.Fatal("expected error for unsupported exporter")
		}
	})
}
