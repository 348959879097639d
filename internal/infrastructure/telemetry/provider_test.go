package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestServiceResource(t *testing.T) {
	res, err := serviceResource("syncengine", "")
	require.NoError(t, err)

	attrs := map[string]string{}
	for _, kv := range res.Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "syncengine", attrs[string(semconv.ServiceNameKey)])
	assert.Equal(t, "dev", attrs[string(semconv.ServiceVersionKey)])

	res, err = serviceResource("syncengine", "1.4.0")
	require.NoError(t, err)
	version, ok := res.Set().Value(semconv.ServiceVersionKey)
	require.True(t, ok)
	assert.Equal(t, "1.4.0", version.AsString())
}

func TestSampler(t *testing.T) {
	assert.Equal(t, "AlwaysOnSampler", sampler(1).Description())
	assert.Equal(t, "AlwaysOnSampler", sampler(2).Description())
	assert.Equal(t, "AlwaysOffSampler", sampler(0).Description())
	assert.Contains(t, sampler(0.25).Description(), "ParentBased")
	assert.Contains(t, sampler(0.25).Description(), "TraceIDRatioBased{0.25}")
}

func TestShutdownProvider(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)

	require.NoError(t, shutdownProvider(context.Background(), logger, "traces", func(ctx context.Context) error {
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		return nil
	}))

	err := shutdownProvider(context.Background(), logger, "metrics", func(context.Context) error {
		return errors.New("exporter unreachable")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "metrics provider")

	assert.Equal(t, 1, logs.FilterMessage("Telemetry provider shut down").Len())
	failed := logs.FilterMessage("Telemetry provider shutdown failed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, "metrics", failed[0].ContextMap()["signal"])
}

type countingProvider struct{ flushes, shutdowns int }

func (p *countingProvider) ForceFlush(context.Context) error { p.flushes++; return nil }
func (p *countingProvider) Shutdown(context.Context) error   { p.shutdowns++; return nil }

func TestSignal(t *testing.T) {
	ctx := context.Background()

	var disabled signal[*countingProvider]
	assert.False(t, disabled.IsEnabled())
	assert.NoError(t, disabled.ForceFlush(ctx))
	assert.NoError(t, disabled.Shutdown(ctx))

	sdk := &countingProvider{}
	s := newSignal[*countingProvider]("test", zap.NewNop())
	s.set(sdk)
	require.True(t, s.IsEnabled())
	require.NoError(t, s.ForceFlush(ctx))
	require.NoError(t, s.Shutdown(ctx))
	require.NoError(t, s.Shutdown(ctx))

	assert.Equal(t, 1, sdk.flushes)
	assert.Equal(t, 1, sdk.shutdowns)
	assert.False(t, s.IsEnabled())
}

func TestExporterOnly(t *testing.T) {
	on := Exporter{Enabled: true, ServiceName: "syncengine"}
	assert.True(t, on.Only(true).Enabled)
	assert.False(t, on.Only(false).Enabled)
	assert.False(t, Exporter{}.Only(true).Enabled)
	assert.Equal(t, "syncengine", on.Only(false).ServiceName)
}
