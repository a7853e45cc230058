package persistence

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	gormlogger "gorm.io/gorm/logger"

	"github.com/chiro/erp/internal/platform/sharedkernel/logger"
)

const defaultSlowThreshold = 200 * time.Millisecond

// GormLogger routes gorm's statement log through zap, enriched with the
// request, tenant and trace ids carried by ctx. Missing records are not
// logged as errors.
type GormLogger struct {
	base  *zap.Logger
	level gormlogger.LogLevel
	slow  time.Duration
}

// GormLoggerOption configures a GormLogger.
type GormLoggerOption func(*GormLogger)

// WithSlowThreshold sets the slow query threshold. Zero disables slow logs.
func WithSlowThreshold(threshold time.Duration) GormLoggerOption {
	return func(l *GormLogger) { l.slow = threshold }
}

// NewGormLogger creates a gorm logger backed by zl.
func NewGormLogger(zl *zap.Logger, level gormlogger.LogLevel, opts ...GormLoggerOption) *GormLogger {
	if zl == nil {
		zl = zap.NewNop()
	}
	l := &GormLogger{base: zl.Named("gorm"), level: level, slow: defaultSlowThreshold}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...any) {
	l.printf(ctx, gormlogger.Info, zapcore.InfoLevel, msg, data)
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...any) {
	l.printf(ctx, gormlogger.Warn, zapcore.WarnLevel, msg, data)
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...any) {
	l.printf(ctx, gormlogger.Error, zapcore.ErrorLevel, msg, data)
}

func (l *GormLogger) printf(ctx context.Context, min gormlogger.LogLevel, lvl zapcore.Level, msg string, data []any) {
	if l.level < min {
		return
	}
	logger.Enrich(ctx, l.base).Sugar().Logf(lvl, msg, data...)
}

// Trace logs failed statements, slow ones, and at info level every one.
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}
	failed := err != nil && !errors.Is(err, gormlogger.ErrRecordNotFound)
	elapsed := time.Since(begin)
	slow := l.slow > 0 && elapsed > l.slow

	var (
		lvl zapcore.Level
		msg string
	)
	switch {
	case failed && l.level >= gormlogger.Error:
		lvl, msg = zapcore.ErrorLevel, "SQL Error"
	case slow && l.level >= gormlogger.Warn:
		lvl, msg = zapcore.WarnLevel, "Slow SQL"
	case l.level >= gormlogger.Info:
		lvl, msg = zapcore.DebugLevel, "SQL Query"
	default:
		return
	}

	sql, rows := fc()
	fields := []zap.Field{zap.Duration("elapsed", elapsed), zap.Int64("rows", rows), zap.String("sql", sql)}
	if failed {
		fields = append(fields, zap.Error(err))
	}
	if slow {
		fields = append(fields, zap.Duration("slow_threshold", l.slow))
	}
	if ce := logger.Enrich(ctx, l.base).Check(lvl, msg); ce != nil {
		ce.Write(fields...)
	}
}

// MapGormLogLevel maps database.log_level to a gorm log level. debug and
// info both log every statement.
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
