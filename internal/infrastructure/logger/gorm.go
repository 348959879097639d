package logger

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	gormlogger "gorm.io/gorm/logger"
)

// GormLogger routes GORM output through zap. Failed and slow statements are
// logged without SQL text; the statement itself is only logged at debug, since
// bound values carry customer data from synced records.
type GormLogger struct {
	logger        *zap.Logger
	level         gormlogger.LogLevel
	slowThreshold time.Duration
}

type GormLoggerOption func(*GormLogger)

// WithSlowThreshold sets the duration above which statements are logged at
// warn. Zero disables slow statement logging.
func WithSlowThreshold(threshold time.Duration) GormLoggerOption {
	return func(l *GormLogger) { l.slowThreshold = threshold }
}

func NewGormLogger(zapLogger *zap.Logger, level gormlogger.LogLevel, opts ...GormLoggerOption) *GormLogger {
	gl := &GormLogger{
		logger:        zapLogger.Named("gorm"),
		level:         level,
		slowThreshold: 200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(gl)
	}
	return gl
}

func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *GormLogger) Info(_ context.Context, msg string, data ...any) {
	l.printf(gormlogger.Info, zapcore.InfoLevel, msg, data)
}

func (l *GormLogger) Warn(_ context.Context, msg string, data ...any) {
	l.printf(gormlogger.Warn, zapcore.WarnLevel, msg, data)
}

func (l *GormLogger) Error(_ context.Context, msg string, data ...any) {
	l.printf(gormlogger.Error, zapcore.ErrorLevel, msg, data)
}

func (l *GormLogger) printf(min gormlogger.LogLevel, lvl zapcore.Level, msg string, data []any) {
	if l.level >= min {
		l.logger.Sugar().Logf(lvl, msg, data...)
	}
}

// Trace logs one statement. Request, tenant and sync run IDs are taken from ctx.
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	slow := l.slowThreshold > 0 && elapsed > l.slowThreshold

	switch {
	case err != nil && l.level >= gormlogger.Error:
		if errors.Is(err, gormlogger.ErrRecordNotFound) {
			return
		}
		_, rows := fc()
		l.logger.Error("SQL error", l.fields(ctx, elapsed, rows, zap.Error(err))...)
	case slow && l.level >= gormlogger.Warn:
		_, rows := fc()
		l.logger.Warn("Slow SQL", l.fields(ctx, elapsed, rows, zap.Duration("threshold", l.slowThreshold))...)
	case l.level >= gormlogger.Info && l.logger.Core().Enabled(zapcore.DebugLevel):
		sql, rows := fc()
		l.logger.Debug("SQL", l.fields(ctx, elapsed, rows, zap.String("sql", sql))...)
	}
}

func (l *GormLogger) fields(ctx context.Context, elapsed time.Duration, rows int64, extra zap.Field) []zap.Field {
	fields := []zap.Field{zap.Duration("elapsed", elapsed), zap.Int64("rows", rows), extra}
	for key, value := range map[string]string{
		string(requestIDKey): GetRequestID(ctx),
		string(tenantIDKey):  GetTenantID(ctx),
		string(syncIDKey):    GetSyncID(ctx),
	} {
		if value != "" {
			fields = append(fields, zap.String(key, value))
		}
	}
	return fields
}

// MapGormLogLevel maps database.log_level to GORM. Unknown values are warn.
func MapGormLogLevel(level string) gormlogger.LogLevel {
	switch level {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "info", "debug":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}
