// Package telemetry wires OpenTelemetry traces, metrics and logs for the
// sync engine. Every provider is inert when disabled, so callers never
// branch on configuration before recording.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

// Exporter is the collector connection shared by all three signals.
type Exporter struct {
	Enabled           bool
	CollectorEndpoint string
	Insecure          bool // plaintext gRPC, development only
	ServiceName       string
	ServiceVersion    string
}

// Only returns a copy enabled when e is and on is.
func (e Exporter) Only(on bool) Exporter {
	e.Enabled = e.Enabled && on
	return e
}

func (e Exporter) resource() (*resource.Resource, error) {
	return serviceResource(e.ServiceName, e.ServiceVersion)
}

// serviceResource describes the running sync engine to the collector.
func serviceResource(name, version string) (*resource.Resource, error) {
	if version == "" {
		version = "dev"
	}
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(name),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	return res, nil
}

type sdkProvider interface {
	ForceFlush(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// signal holds one SDK provider. Its zero value stands for a disabled
// signal and every method is then a no-op.
type signal[P sdkProvider] struct {
	name    string
	sdk     P
	enabled bool
	logger  *zap.Logger
}

func newSignal[P sdkProvider](name string, logger *zap.Logger) signal[P] {
	return signal[P]{name: name, logger: logger}
}

func (s *signal[P]) set(sdk P) {
	s.sdk, s.enabled = sdk, true
}

func (s *signal[P]) IsEnabled() bool {
	return s != nil && s.enabled
}

// ForceFlush exports anything buffered.
func (s *signal[P]) ForceFlush(ctx context.Context) error {
	if !s.IsEnabled() {
		return nil
	}
	return s.sdk.ForceFlush(ctx)
}

// Shutdown flushes and stops the provider. Calling it twice is safe.
func (s *signal[P]) Shutdown(ctx context.Context) error {
	if !s.IsEnabled() {
		return nil
	}
	s.enabled = false
	return shutdownProvider(ctx, s.logger, s.name, s.sdk.Shutdown)
}

// shutdownProvider flushes and stops one provider within shutdownTimeout.
func shutdownProvider(ctx context.Context, logger *zap.Logger, name string, shutdown func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if err := shutdown(ctx); err != nil {
		logger.Error("Telemetry provider shutdown failed", zap.String("signal", name), zap.Error(err))
		return fmt.Errorf("failed to shutdown %s provider: %w", name, err)
	}
	logger.Info("Telemetry provider shut down", zap.String("signal", name))
	return nil
}
