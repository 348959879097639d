package telemetry

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBConfig controls how the sync engine's GORM handle is instrumented.
type DBConfig struct {
	Tracing    bool
	Metrics    bool
	LogFullSQL bool // keeps bind variables in span statements, development only
	DBSystem   string

	SlowQueryThreshold time.Duration
	PoolStatsInterval  time.Duration
}

// DefaultDBConfig returns metrics on, tracing off and a 200ms slow query threshold.
func DefaultDBConfig() DBConfig {
	return DBConfig{
		Metrics:            true,
		DBSystem:           "postgresql",
		SlowQueryThreshold: 200 * time.Millisecond,
		PoolStatsInterval:  15 * time.Second,
	}
}

// engineTables are reported by name. Any other table is labelled "other".
var engineTables = map[string]bool{
	"integration_credentials":    true,
	"integration_connectors":     true,
	"integration_field_mappings": true,
	"integration_id_mappings":    true,
	"integration_sync_states":    true,
	"integration_failed_records": true,
	"integration_conflicts":      true,
	"integration_schedules":      true,
	"integration_webhook_events": true,
	"local_records":              true,
}

func tableLabel(table string) string {
	table = strings.Trim(table, `"`)
	if engineTables[table] {
		return table
	}
	return "other"
}

// operationFor maps a GORM processor to the SQL verb it runs. Row and Raw
// statements are classified from their text.
func operationFor(processor, statement string) string {
	switch processor {
	case "create":
		return "INSERT"
	case "query":
		return "SELECT"
	case "update":
		return "UPDATE"
	case "delete":
		return "DELETE"
	}
	return detectOperationType(statement)
}

func detectOperationType(statement string) string {
	statement = strings.ToUpper(strings.TrimSpace(statement))
	for _, verb := range []string{"SELECT", "INSERT", "UPDATE", "DELETE"} {
		if strings.HasPrefix(statement, verb) {
			return verb
		}
	}
	return "OTHER"
}

type dbStartKey struct{}

// DBInstrumentation records per-statement metrics, marks slow statements on
// otelgorm spans and samples connection pool stats.
type DBInstrumentation struct {
	cfg    DBConfig
	logger *zap.Logger

	queries     *Counter
	slowQueries *Counter
	duration    *Histogram
	pool        *Gauge
	poolMax     *Gauge

	sqlDB    *sql.DB
	stopCh   chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// InstrumentDB wires tracing and metrics into db according to cfg. A nil
// meter disables metrics. The returned value must be stopped on shutdown.
func InstrumentDB(db *gorm.DB, meter metric.Meter, cfg DBConfig, logger *zap.Logger) (*DBInstrumentation, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	defaults := DefaultDBConfig()
	if cfg.SlowQueryThreshold <= 0 {
		cfg.SlowQueryThreshold = defaults.SlowQueryThreshold
	}
	if cfg.PoolStatsInterval <= 0 {
		cfg.PoolStatsInterval = defaults.PoolStatsInterval
	}
	if cfg.DBSystem == "" {
		cfg.DBSystem = defaults.DBSystem
	}
	if meter == nil {
		cfg.Metrics = false
	}

	in := &DBInstrumentation{cfg: cfg, logger: logger, stopCh: make(chan struct{})}

	if cfg.Metrics {
		if err := in.createInstruments(meter); err != nil {
			return nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		in.sqlDB = sqlDB
	}

	if cfg.Tracing {
		opts := []otelgorm.Option{otelgorm.WithDBName(cfg.DBSystem)}
		if !cfg.LogFullSQL {
			opts = append(opts, otelgorm.WithoutQueryVariables())
		}
		if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
			return nil, err
		}
	}

	if cfg.Tracing || cfg.Metrics {
		if err := db.Use(in); err != nil {
			return nil, err
		}
	}

	logger.Info("Database instrumentation configured",
		zap.Bool("tracing", cfg.Tracing),
		zap.Bool("metrics", cfg.Metrics),
		zap.Bool("log_full_sql", cfg.LogFullSQL),
		zap.Duration("slow_query_threshold", cfg.SlowQueryThreshold),
	)
	return in, nil
}

func (in *DBInstrumentation) createInstruments(meter metric.Meter) error {
	b := NewInstruments(meter)
	in.queries = b.Counter("syncengine_db_queries_total", "Database statements by operation and table", "{query}")
	in.slowQueries = b.Counter("syncengine_db_slow_queries_total", "Database statements slower than the configured threshold", "{query}")
	in.duration = b.Histogram("syncengine_db_query_duration_seconds", "Database statement latency", "s", DBDurationBuckets...)
	in.pool = b.Gauge("syncengine_db_pool_connections", "Connections in the pool by state", "{connection}")
	in.poolMax = b.Gauge("syncengine_db_pool_connections_max", "Maximum open connections", "{connection}")
	return b.Err()
}

// Name implements gorm.Plugin.
func (in *DBInstrumentation) Name() string { return "syncengine:db" }

type callbackRegistrar interface {
	Register(name string, fn func(*gorm.DB)) error
}

// Initialize implements gorm.Plugin. It brackets every processor with a
// start-time callback and a recording callback. The recording callback is
// ordered ahead of otelgorm's so the statement span is still open.
func (in *DBInstrumentation) Initialize(db *gorm.DB) error {
	cb := db.Callback()
	hooks := []struct {
		processor string
		before    callbackRegistrar
		after     callbackRegistrar
	}{
		{"create", cb.Create().Before("gorm:create"), cb.Create().After("gorm:create").Before("otel:after:create")},
		{"query", cb.Query().Before("gorm:query"), cb.Query().After("gorm:query").Before("otel:after:select")},
		{"update", cb.Update().Before("gorm:update"), cb.Update().After("gorm:update").Before("otel:after:update")},
		{"delete", cb.Delete().Before("gorm:delete"), cb.Delete().After("gorm:delete").Before("otel:after:delete")},
		{"row", cb.Row().Before("gorm:row"), cb.Row().After("gorm:row").Before("otel:after:row")},
		{"raw", cb.Raw().Before("gorm:raw"), cb.Raw().After("gorm:raw").Before("otel:after:raw")},
	}
	for _, h := range hooks {
		processor := h.processor
		if err := h.before.Register(in.Name()+":before_"+processor, in.markStart); err != nil {
			return err
		}
		if err := h.after.Register(in.Name()+":after_"+processor, func(db *gorm.DB) { in.observe(db, processor) }); err != nil {
			return err
		}
	}
	return nil
}

func (in *DBInstrumentation) markStart(db *gorm.DB) {
	ctx := db.Statement.Context
	if ctx == nil {
		ctx = context.Background()
	}
	db.Statement.Context = context.WithValue(ctx, dbStartKey{}, time.Now())
}

func (in *DBInstrumentation) observe(db *gorm.DB, processor string) {
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}
	var elapsed time.Duration
	if start, ok := ctx.Value(dbStartKey{}).(time.Time); ok {
		elapsed = time.Since(start)
	}
	slow := elapsed > in.cfg.SlowQueryThreshold
	op := operationFor(processor, db.Statement.SQL.String())
	table := tableLabel(db.Statement.Table)

	if in.cfg.Metrics {
		attrs := []attribute.KeyValue{AttrDBOperation.String(op), AttrDBTable.String(table)}
		in.queries.Inc(ctx, attrs...)
		in.duration.RecordDuration(ctx, elapsed, attrs...)
		if slow {
			in.slowQueries.Inc(ctx, AttrDBTable.String(table))
		}
	}

	if !in.cfg.Tracing {
		return
	}
	// otelgorm records the statement, raw table, rows and error status
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.SetAttributes(attribute.String("syncengine.db.table", table))
	if slow {
		span.SetAttributes(
			attribute.Bool("db.slow_query", true),
			attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
		)
		span.AddEvent("slow_query", trace.WithAttributes(
			attribute.Int64("threshold_ms", in.cfg.SlowQueryThreshold.Milliseconds()),
		))
	}
}

// StartPoolStats samples connection pool usage until Stop or ctx ends.
func (in *DBInstrumentation) StartPoolStats(ctx context.Context) {
	if in.sqlDB == nil {
		return
	}
	in.wg.Add(1)
	go func() {
		defer in.wg.Done()
		ticker := time.NewTicker(in.cfg.PoolStatsInterval)
		defer ticker.Stop()
		for {
			in.recordPoolStats(ctx)
			select {
			case <-ticker.C:
			case <-in.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (in *DBInstrumentation) recordPoolStats(ctx context.Context) {
	stats := in.sqlDB.Stats()
	in.poolMax.Record(ctx, int64(stats.MaxOpenConnections))
	in.pool.Record(ctx, int64(stats.Idle), AttrDBState.String("idle"))
	in.pool.Record(ctx, int64(stats.InUse), AttrDBState.String("in_use"))
	in.pool.Record(ctx, int64(stats.OpenConnections), AttrDBState.String("open"))
}

// Stop ends pool sampling. Safe to call more than once.
func (in *DBInstrumentation) Stop() {
	in.stopOnce.Do(func() {
		close(in.stopCh)
		in.wg.Wait()
	})
}
