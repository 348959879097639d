package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/erp/syncengine/internal/domain/integration"
)

// SyncMetrics records sync engine activity: runs, records, webhook intake
// and outbound connector calls. It satisfies the application SyncMetrics
// port and the connector RequestMetrics hook.
type SyncMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	// Counter metrics (monotonically increasing)
	runsTotal     *Counter
	recordsTotal  *Counter
	webhooksTotal *Counter
	requestsTotal *Counter

	runDuration *Histogram

	// Gauge metrics (point-in-time values)
	failedRecordsOpen  *Gauge
	conflictsPending   *Gauge
	schedulesSuspended *Gauge

	stopChan    chan struct{}
	stopOnce    sync.Once
	collectOnce sync.Once

	backlogProvider BacklogProvider
}

// TenantBacklog is the outstanding operator work of one tenant
type TenantBacklog struct {
	TenantID           uuid.UUID
	FailedRecordsOpen  int64
	ConflictsPending   int64
	SchedulesSuspended int64
}

// BacklogProvider reads backlog counts for periodic gauge collection
type BacklogProvider interface {
	Backlog(ctx context.Context) ([]TenantBacklog, error)
}

// SyncMetricsConfig holds configuration for sync metrics.
type SyncMetricsConfig struct {
	Meter           metric.Meter
	Logger          *zap.Logger
	BacklogProvider BacklogProvider
}

// NewSyncMetrics creates a new SyncMetrics instance.
func NewSyncMetrics(cfg SyncMetricsConfig) (*SyncMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	sm := &SyncMetrics{
		meter:           cfg.Meter,
		logger:          logger,
		stopChan:        make(chan struct{}),
		backlogProvider: cfg.BacklogProvider,
	}

	b := NewInstruments(cfg.Meter)
	sm.runsTotal = b.Counter("sync_runs_total", "Sync runs that reached a terminal status", "{runs}")
	sm.recordsTotal = b.Counter("sync_records_total", "Records processed by outcome", "{records}")
	sm.webhooksTotal = b.Counter("webhook_events_total", "Inbound webhook deliveries by result", "{events}")
	sm.requestsTotal = b.Counter("connector_requests_total", "Outbound platform API calls by outcome", "{requests}")
	sm.runDuration = b.Histogram("sync_run_duration_seconds", "Wall time of a sync run", "s", RunDurationBuckets...)

	sm.failedRecordsOpen = b.Gauge("sync_failed_records_open", "Failed records awaiting retry or resolution", "{records}")
	sm.conflictsPending = b.Gauge("sync_conflicts_pending_review", "Conflicts waiting for manual review", "{conflicts}")
	sm.schedulesSuspended = b.Gauge("sync_schedules_suspended", "Schedules suspended after repeated failures", "{schedules}")
	if err := b.Err(); err != nil {
		return nil, err
	}

	return sm, nil
}

// RecordRun records a finished run
func (sm *SyncMetrics) RecordRun(ctx context.Context, status integration.SyncStatus, entityType integration.EntityType, duration time.Duration) {
	attrs := []attribute.KeyValue{
		AttrSyncStatus.String(string(status)),
		AttrEntityType.String(string(entityType)),
	}
	sm.runsTotal.Inc(ctx, attrs...)
	sm.runDuration.RecordDuration(ctx, duration, attrs...)
}

// RecordEntity records the outcome of one record
func (sm *SyncMetrics) RecordEntity(ctx context.Context, outcome integration.EntityOutcome, entityType integration.EntityType) {
	sm.recordsTotal.Inc(ctx,
		AttrOutcome.String(string(outcome)),
		AttrEntityType.String(string(entityType)),
	)
}

// RecordWebhook records one inbound delivery
func (sm *SyncMetrics) RecordWebhook(ctx context.Context, platform integration.SystemCode, result string) {
	sm.webhooksTotal.Inc(ctx,
		AttrPlatform.String(string(platform)),
		AttrResult.String(result),
	)
}

// RecordRequest records one outbound platform call
func (sm *SyncMetrics) RecordRequest(ctx context.Context, platform integration.SystemCode, outcome string) {
	sm.requestsTotal.Inc(ctx,
		AttrPlatform.String(string(platform)),
		AttrOutcome.String(outcome),
	)
}

// RecordBacklog records the backlog gauges of one tenant
func (sm *SyncMetrics) RecordBacklog(ctx context.Context, b TenantBacklog) {
	tenant := AttrTenantID.String(b.TenantID.String())
	sm.failedRecordsOpen.Record(ctx, b.FailedRecordsOpen, tenant)
	sm.conflictsPending.Record(ctx, b.ConflictsPending, tenant)
	sm.schedulesSuspended.Record(ctx, b.SchedulesSuspended, tenant)
}

// StartPeriodicCollection starts periodic collection of the backlog gauges.
// Non-blocking; use Stop to end it.
func (sm *SyncMetrics) StartPeriodicCollection(ctx context.Context, interval time.Duration) {
	sm.collectOnce.Do(func() {
		if interval <= 0 {
			interval = 5 * time.Minute
		}
		go sm.runPeriodicCollection(ctx, interval)
	})
}

func (sm *SyncMetrics) runPeriodicCollection(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sm.collectBacklog(ctx)

	for {
		select {
		case <-sm.stopChan:
			sm.logger.Info("Stopping periodic sync metrics collection")
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			sm.collectBacklog(ctx)
		}
	}
}

func (sm *SyncMetrics) collectBacklog(ctx context.Context) {
	if sm.backlogProvider == nil {
		sm.logger.Debug("No backlog provider configured, skipping backlog collection")
		return
	}

	backlogs, err := sm.backlogProvider.Backlog(ctx)
	if err != nil {
		sm.logger.Error("Failed to collect sync backlog", zap.Error(err))
		return
	}
	for _, b := range backlogs {
		sm.RecordBacklog(ctx, b)
	}
}

// Stop stops the periodic collection.
func (sm *SyncMetrics) Stop() {
	sm.stopOnce.Do(func() {
		close(sm.stopChan)
	})
}

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewSyncMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
