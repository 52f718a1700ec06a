package telemetry

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	colmetricspb "go.opentelemetry.io/proto/otlp/collector/metrics/v1"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	metricspb "go.opentelemetry.io/proto/otlp/metrics/v1"
	resourcepb "go.opentelemetry.io/proto/otlp/resource/v1"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/proto"
)

const (
	scopeName     = "github.com/nixlim/grouptop/internal/telemetry"
	exportTimeout = 5 * time.Second
)

// Exporter periodically converts a Prometheus registry into OTLP metrics and
// pushes them to a collector over gRPC.
type Exporter struct {
	conn     *grpc.ClientConn
	client   colmetricspb.MetricsServiceClient
	gatherer prometheus.Gatherer
	interval time.Duration
	resource *resourcepb.Resource
	start    time.Time
}

// NewExporter connects lazily to endpoint (host:port, plaintext). attrs are
// attached to the exported resource alongside service.name.
func NewExporter(endpoint string, g prometheus.Gatherer, interval time.Duration, attrs map[string]string) (*Exporter, error) {
	conn, err := grpc.NewClient(endpoint, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("creating OTLP client for %s: %w", endpoint, err)
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}

	res := &resourcepb.Resource{Attributes: []*commonpb.KeyValue{stringAttr("service.name", "grouptop")}}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		res.Attributes = append(res.Attributes, stringAttr(k, attrs[k]))
	}

	return &Exporter{
		conn:     conn,
		client:   colmetricspb.NewMetricsServiceClient(conn),
		gatherer: g,
		interval: interval,
		resource: res,
		start:    time.Now(),
	}, nil
}

// Run exports on every interval until ctx is done, then makes one final
// export so the last values reach the collector.
func (e *Exporter) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			final, cancel := context.WithTimeout(context.Background(), exportTimeout)
			defer cancel()
			if err := e.Export(final); err != nil {
				log.Warn("final OTLP export failed", "err", err)
			}
			return nil
		case <-ticker.C:
			exportCtx, cancel := context.WithTimeout(ctx, exportTimeout)
			if err := e.Export(exportCtx); err != nil {
				log.Warn("OTLP export failed", "err", err)
			}
			cancel()
		}
	}
}

// Export gathers the registry once and sends it.
func (e *Exporter) Export(ctx context.Context) error {
	families, err := e.gatherer.Gather()
	if err != nil {
		return fmt.Errorf("gathering metrics: %w", err)
	}

	req := &colmetricspb.ExportMetricsServiceRequest{
		ResourceMetrics: []*metricspb.ResourceMetrics{{
			Resource: e.resource,
			ScopeMetrics: []*metricspb.ScopeMetrics{{
				Scope:   &commonpb.InstrumentationScope{Name: scopeName},
				Metrics: convertFamilies(families, e.start, time.Now()),
			}},
		}},
	}

	resp, err := e.client.Export(ctx, req)
	if err != nil {
		return fmt.Errorf("exporting metrics: %w", err)
	}
	log.Debug("exported metrics", "families", len(families), "bytes", proto.Size(req))
	if ps := resp.GetPartialSuccess(); ps != nil && ps.GetRejectedDataPoints() > 0 {
		log.Warn("OTLP collector rejected data points", "count", ps.GetRejectedDataPoints(), "message", ps.GetErrorMessage())
	}
	return nil
}

// Close releases the gRPC connection.
func (e *Exporter) Close() error {
	return e.conn.Close()
}

func convertFamilies(families []*dto.MetricFamily, start, now time.Time) []*metricspb.Metric {
	startNano := uint64(start.UnixNano())
	nowNano := uint64(now.UnixNano())

	out := make([]*metricspb.Metric, 0, len(families))
	for _, mf := range families {
		m := &metricspb.Metric{Name: mf.GetName(), Description: mf.GetHelp()}

		switch mf.GetType() {
		case dto.MetricType_COUNTER:
			sum := &metricspb.Sum{
				AggregationTemporality: metricspb.AggregationTemporality_AGGREGATION_TEMPORALITY_CUMULATIVE,
				IsMonotonic:            true,
			}
			for _, pm := range mf.GetMetric() {
				sum.DataPoints = append(sum.DataPoints, numberPoint(pm, pm.GetCounter().GetValue(), startNano, nowNano))
			}
			m.Data = &metricspb.Metric_Sum{Sum: sum}

		case dto.MetricType_GAUGE:
			g := &metricspb.Gauge{}
			for _, pm := range mf.GetMetric() {
				g.DataPoints = append(g.DataPoints, numberPoint(pm, pm.GetGauge().GetValue(), 0, nowNano))
			}
			m.Data = &metricspb.Metric_Gauge{Gauge: g}

		case dto.MetricType_HISTOGRAM:
			h := &metricspb.Histogram{
				AggregationTemporality: metricspb.AggregationTemporality_AGGREGATION_TEMPORALITY_CUMULATIVE,
			}
			for _, pm := range mf.GetMetric() {
				h.DataPoints = append(h.DataPoints, histogramPoint(pm, startNano, nowNano))
			}
			m.Data = &metricspb.Metric_Histogram{Histogram: h}

		default:
			continue
		}
		out = append(out, m)
	}
	return out
}

func numberPoint(pm *dto.Metric, v float64, startNano, nowNano uint64) *metricspb.NumberDataPoint {
	return &metricspb.NumberDataPoint{
		Attributes:        labelAttrs(pm.GetLabel()),
		StartTimeUnixNano: startNano,
		TimeUnixNano:      nowNano,
		Value:             &metricspb.NumberDataPoint_AsDouble{AsDouble: v},
	}
}

// histogramPoint turns cumulative Prometheus buckets into per-bucket OTLP
// counts. The implicit +Inf bucket takes whatever the bounded buckets miss.
func histogramPoint(pm *dto.Metric, startNano, nowNano uint64) *metricspb.HistogramDataPoint {
	ph := pm.GetHistogram()
	sum := ph.GetSampleSum()
	dp := &metricspb.HistogramDataPoint{
		Attributes:        labelAttrs(pm.GetLabel()),
		StartTimeUnixNano: startNano,
		TimeUnixNano:      nowNano,
		Count:             ph.GetSampleCount(),
		Sum:               &sum,
	}

	var prev uint64
	for _, b := range ph.GetBucket() {
		if math.IsInf(b.GetUpperBound(), +1) {
			continue
		}
		cum := b.GetCumulativeCount()
		dp.ExplicitBounds = append(dp.ExplicitBounds, b.GetUpperBound())
		dp.BucketCounts = append(dp.BucketCounts, cum-prev)
		prev = cum
	}
	dp.BucketCounts = append(dp.BucketCounts, ph.GetSampleCount()-prev)
	return dp
}

func labelAttrs(labels []*dto.LabelPair) []*commonpb.KeyValue {
	if len(labels) == 0 {
		return nil
	}
	attrs := make([]*commonpb.KeyValue, 0, len(labels))
	for _, lp := range labels {
		attrs = append(attrs, stringAttr(lp.GetName(), lp.GetValue()))
	}
	return attrs
}

func stringAttr(k, v string) *commonpb.KeyValue {
	return &commonpb.KeyValue{
		Key:   k,
		Value: &commonpb.AnyValue{Value: &commonpb.AnyValue_StringValue{StringValue: v}},
	}
}
