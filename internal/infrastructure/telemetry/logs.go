package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LoggerProvider owns the SDK log provider that zap records are bridged into.
type LoggerProvider struct {
	signal[*sdklog.LoggerProvider]
}

// NewLoggerProvider batches log records to the collector over OTLP gRPC.
func NewLoggerProvider(ctx context.Context, cfg Exporter, logger *zap.Logger) (*LoggerProvider, error) {
	lp := &LoggerProvider{newSignal[*sdklog.LoggerProvider]("logs", logger)}
	if !cfg.Enabled {
		logger.Info("Log export disabled")
		return lp, nil
	}

	opts := []otlploggrpc.Option{otlploggrpc.WithEndpoint(cfg.CollectorEndpoint)}
	if cfg.Insecure {
		opts = append(opts, otlploggrpc.WithInsecure())
	}
	exporter, err := otlploggrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP logs exporter: %w", err)
	}
	res, err := cfg.resource()
	if err != nil {
		return nil, err
	}

	sdk := sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
	)
	lp.set(sdk)
	global.SetLoggerProvider(sdk)

	logger.Info("Log export enabled", zap.String("collector_endpoint", cfg.CollectorEndpoint))
	return lp, nil
}

// IsEnabled is false for a nil provider too.
func (lp *LoggerProvider) IsEnabled() bool {
	return lp != nil && lp.signal.IsEnabled()
}

// ZapBridgeConfig configures the zap core that mirrors records to the collector.
type ZapBridgeConfig struct {
	ServiceName    string
	LoggerProvider *LoggerProvider
}

// NewZapOTELCore returns a core to pass to logger.New, which applies the
// shared level to it. It is a nop core when log export is disabled.
func NewZapOTELCore(cfg ZapBridgeConfig) zapcore.Core {
	if !cfg.LoggerProvider.IsEnabled() {
		return zapcore.NewNopCore()
	}
	return otelzap.NewCore(cfg.ServiceName, otelzap.WithLoggerProvider(cfg.LoggerProvider.sdk))
}
