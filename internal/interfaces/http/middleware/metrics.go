package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/erp/syncengine/internal/infrastructure/telemetry"
)

type HTTPMetricsConfig struct {
	MeterProvider *telemetry.MeterProvider
	Enabled       bool
}

// Webhook payloads dominate request sizes; bulk list replies the response side.
var bodySizeBuckets = []float64{256, 1024, 4096, 16384, 65536, 262144, 1048576, 4194304}

var attrStatusClass = attribute.Key("http.status_class")

type httpInstruments struct {
	requests  *telemetry.Counter
	latency   *telemetry.Histogram
	reqBytes  *telemetry.Histogram
	respBytes *telemetry.Histogram
	inFlight  metric.Int64UpDownCounter
}

func newHTTPInstruments(meter metric.Meter) (*httpInstruments, error) {
	b := telemetry.NewInstruments(meter)
	in := &httpInstruments{
		requests:  b.Counter("http_server_request_total", "HTTP requests served", "{request}"),
		latency:   b.Histogram("http_server_request_duration_seconds", "HTTP request latency", "s", telemetry.HTTPDurationBuckets...),
		reqBytes:  b.Histogram("http_server_request_size_bytes", "HTTP request body size", "By", bodySizeBuckets...),
		respBytes: b.Histogram("http_server_response_size_bytes", "HTTP response body size", "By", bodySizeBuckets...),
		inFlight:  b.UpDownCounter("http_server_active_requests", "HTTP requests in flight", "{request}"),
	}
	return in, b.Err()
}

// HTTPMetrics records request count, latency and body sizes per route. It
// passes requests through untouched when metric export is off.
func HTTPMetrics(cfg HTTPMetricsConfig) gin.HandlerFunc {
	if !cfg.Enabled || !cfg.MeterProvider.IsEnabled() {
		return passThrough
	}
	return HTTPMetricsWithMeter(cfg.MeterProvider.Meter("http.server"))
}

func HTTPMetricsWithMeter(meter metric.Meter) gin.HandlerFunc {
	in, err := newHTTPInstruments(meter)
	if err != nil {
		return passThrough
	}
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		start := time.Now()
		in.inFlight.Add(ctx, 1)
		defer in.inFlight.Add(ctx, -1)

		c.Next()

		in.record(ctx, c, time.Since(start))
	}
}

func (in *httpInstruments) record(ctx context.Context, c *gin.Context, elapsed time.Duration) {
	// route template keeps cardinality bounded
	route := c.FullPath()
	if route == "" {
		route = "unknown"
	}
	status := c.Writer.Status()
	attrs := []attribute.KeyValue{
		telemetry.AttrHTTPMethod.String(c.Request.Method),
		telemetry.AttrHTTPRoute.String(route),
	}

	counted := []attribute.KeyValue{attrs[0], attrs[1], telemetry.AttrHTTPStatusCode.Int(status)}
	if tenantID := GetTenantID(c); tenantID != "" {
		counted = append(counted, telemetry.AttrTenantID.String(tenantID))
	}
	in.requests.Inc(ctx, counted...)
	in.latency.RecordDuration(ctx, elapsed, attrs[0], attrs[1], attrStatusClass.String(statusClass(status)))

	if n := c.Request.ContentLength; n > 0 {
		in.reqBytes.Record(ctx, float64(n), attrs...)
	}
	if n := c.Writer.Size(); n > 0 {
		in.respBytes.Record(ctx, float64(n), attrs...)
	}
}

func statusClass(code int) string {
	if code < 100 || code > 599 {
		return "other"
	}
	return string(rune('0'+code/100)) + "xx"
}

func passThrough(c *gin.Context) {
	c.Next()
}
