package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Instruments creates the instruments of one component from a meter and
// keeps every creation error, so a constructor checks Err once at the end.
type Instruments struct {
	meter metric.Meter
	errs  []error
}

func NewInstruments(meter metric.Meter) *Instruments {
	return &Instruments{meter: meter}
}

func (b *Instruments) fail(kind, name string, err error) {
	if err != nil {
		b.errs = append(b.errs, fmt.Errorf("failed to create %s %s: %w", kind, name, err))
	}
}

// Err joins the creation errors seen so far.
func (b *Instruments) Err() error {
	return errors.Join(b.errs...)
}

func (b *Instruments) Counter(name, description, unit string) *Counter {
	c, err := b.meter.Int64Counter(name, metric.WithDescription(description), metric.WithUnit(unit))
	b.fail("counter", name, err)
	return &Counter{c}
}

// Histogram records float64 values. Without buckets the SDK defaults apply.
func (b *Instruments) Histogram(name, description, unit string, buckets ...float64) *Histogram {
	opts := []metric.Float64HistogramOption{metric.WithDescription(description), metric.WithUnit(unit)}
	if len(buckets) > 0 {
		opts = append(opts, metric.WithExplicitBucketBoundaries(buckets...))
	}
	h, err := b.meter.Float64Histogram(name, opts...)
	b.fail("histogram", name, err)
	return &Histogram{h}
}

func (b *Instruments) Gauge(name, description, unit string) *Gauge {
	g, err := b.meter.Int64Gauge(name, metric.WithDescription(description), metric.WithUnit(unit))
	b.fail("gauge", name, err)
	return &Gauge{g}
}

// UpDownCounter tracks values that rise and fall, such as requests in flight.
func (b *Instruments) UpDownCounter(name, description, unit string) metric.Int64UpDownCounter {
	u, err := b.meter.Int64UpDownCounter(name, metric.WithDescription(description), metric.WithUnit(unit))
	b.fail("up-down counter", name, err)
	return u
}

type Counter struct{ inst metric.Int64Counter }

func (c *Counter) Add(ctx context.Context, n int64, attrs ...attribute.KeyValue) {
	c.inst.Add(ctx, n, metric.WithAttributes(attrs...))
}

func (c *Counter) Inc(ctx context.Context, attrs ...attribute.KeyValue) {
	c.Add(ctx, 1, attrs...)
}

type Histogram struct{ inst metric.Float64Histogram }

func (h *Histogram) Record(ctx context.Context, v float64, attrs ...attribute.KeyValue) {
	h.inst.Record(ctx, v, metric.WithAttributes(attrs...))
}

// RecordDuration records d in seconds.
func (h *Histogram) RecordDuration(ctx context.Context, d time.Duration, attrs ...attribute.KeyValue) {
	h.Record(ctx, d.Seconds(), attrs...)
}

type Gauge struct{ inst metric.Int64Gauge }

func (g *Gauge) Record(ctx context.Context, v int64, attrs ...attribute.KeyValue) {
	g.inst.Record(ctx, v, metric.WithAttributes(attrs...))
}
