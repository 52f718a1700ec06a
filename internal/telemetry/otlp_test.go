package telemetry

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	colmetricspb "go.opentelemetry.io/proto/otlp/collector/metrics/v1"
	metricspb "go.opentelemetry.io/proto/otlp/metrics/v1"
	"google.golang.org/grpc"

	"github.com/nixlim/grouptop/internal/storage"
)

// testCollector records every export request it receives.
type testCollector struct {
	colmetricspb.UnimplementedMetricsServiceServer

	mu       sync.Mutex
	requests []*colmetricspb.ExportMetricsServiceRequest
}

func (c *testCollector) Export(_ context.Context, req *colmetricspb.ExportMetricsServiceRequest) (*colmetricspb.ExportMetricsServiceResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, req)
	return &colmetricspb.ExportMetricsServiceResponse{}, nil
}

func (c *testCollector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}

func (c *testCollector) last() *colmetricspb.ExportMetricsServiceRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.requests[len(c.requests)-1]
}

// startTestCollector serves a collector on an ephemeral port.
func startTestCollector(t *testing.T) (*testCollector, string) {
	t.Helper()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}

	c := &testCollector{}
	srv := grpc.NewServer()
	colmetricspb.RegisterMetricsServiceServer(srv, c)
	go func() {
		_ = srv.Serve(lis)
	}()
	t.Cleanup(srv.Stop)

	return c, lis.Addr().String()
}

func findMetric(req *colmetricspb.ExportMetricsServiceRequest, name string) *metricspb.Metric {
	for _, rm := range req.GetResourceMetrics() {
		for _, sm := range rm.GetScopeMetrics() {
			for _, m := range sm.GetMetrics() {
				if m.GetName() == name {
					return m
				}
			}
		}
	}
	return nil
}

func TestExporter_Export(t *testing.T) {
	collector, addr := startTestCollector(t)

	m := NewMetrics()
	m.ObserveFetch(storage.FetchRecord{Outcome: storage.OutcomeOK, Rows: 5, Attempts: 1, Duration: 30 * time.Millisecond})
	m.ObserveFetch(storage.FetchRecord{Outcome: storage.OutcomeOK, Rows: 5, Attempts: 2, Duration: 3 * time.Second})

	exp, err := NewExporter(addr, m.Registry(), time.Minute, map[string]string{"report.id": "sales"})
	if err != nil {
		t.Fatalf("NewExporter: %v", err)
	}
	defer func() { _ = exp.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := exp.Export(ctx); err != nil {
		t.Fatalf("Export: %v", err)
	}

	if collector.count() != 1 {
		t.Fatalf("collector got %d requests, want 1", collector.count())
	}
	req := collector.last()

	attrs := req.GetResourceMetrics()[0].GetResource().GetAttributes()
	if len(attrs) != 2 || attrs[0].GetKey() != "service.name" || attrs[1].GetValue().GetStringValue() != "sales" {
		t.Errorf("resource attributes = %v", attrs)
	}

	fetches := findMetric(req, "grouptop_fetches_total")
	if fetches == nil {
		t.Fatal("grouptop_fetches_total not exported")
	}
	sum := fetches.GetSum()
	if sum == nil || !sum.GetIsMonotonic() {
		t.Fatalf("fetches should be a monotonic sum, got %v", fetches.GetData())
	}
	if len(sum.GetDataPoints()) != 1 || sum.GetDataPoints()[0].GetAsDouble() != 2 {
		t.Errorf("fetch data points = %v", sum.GetDataPoints())
	}

	hist := findMetric(req, "grouptop_fetch_duration_seconds").GetHistogram()
	if hist == nil || len(hist.GetDataPoints()) != 1 {
		t.Fatalf("duration histogram missing")
	}
	dp := hist.GetDataPoints()[0]
	if dp.GetCount() != 2 {
		t.Errorf("histogram count = %d, want 2", dp.GetCount())
	}
	if len(dp.GetBucketCounts()) != len(dp.GetExplicitBounds())+1 {
		t.Errorf("bucket counts %d vs bounds %d", len(dp.GetBucketCounts()), len(dp.GetExplicitBounds()))
	}
	var total uint64
	for _, c := range dp.GetBucketCounts() {
		total += c
	}
	if total != 2 {
		t.Errorf("bucket counts sum to %d, want 2", total)
	}

	if g := findMetric(req, "grouptop_loading").GetGauge(); g == nil {
		t.Error("gauges should export as OTLP gauges")
	}
}

func TestExporter_RunExportsOnShutdown(t *testing.T) {
	collector, addr := startTestCollector(t)

	m := NewMetrics()
	exp, err := NewExporter(addr, m.Registry(), time.Hour, nil)
	if err != nil {
		t.Fatalf("NewExporter: %v", err)
	}
	defer func() { _ = exp.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- exp.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if collector.count() != 1 {
		t.Errorf("collector got %d requests, want the final export", collector.count())
	}
}

func TestHistogramPoint_InfBucketSkipped(t *testing.T) {
	reg := prometheus.NewRegistry()
	h := prometheus.NewHistogram(prometheus.HistogramOpts{Name: "h", Buckets: []float64{1, 2}})
	reg.MustRegister(h)
	h.Observe(0.5)
	h.Observe(1.5)
	h.Observe(10)

	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	metrics := convertFamilies(families, time.Unix(0, 0), time.Unix(10, 0))
	dp := metrics[0].GetHistogram().GetDataPoints()[0]

	want := []uint64{1, 1, 1}
	got := dp.GetBucketCounts()
	if len(got) != len(want) {
		t.Fatalf("bucket counts = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("bucket %d = %d, want %d", i, got[i], want[i])
		}
	}
	if dp.GetSum() != 12 {
		t.Errorf("sum = %v, want 12", dp.GetSum())
	}
}
