package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type contextKey string

const (
	loggerKey        contextKey = "logger"
	requestIDKey     contextKey = "request_id"
	tenantIDKey      contextKey = "tenant_id"
	userIDKey        contextKey = "user_id"
	correlationIDKey contextKey = "correlation_id"
)

// WithContext attaches a logger to ctx.
func WithContext(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext returns the attached logger or a no-op logger.
func FromContext(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(loggerKey).(*zap.Logger); ok {
		return l
	}
	return zap.NewNop()
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

func WithTenantID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, tenantIDKey, id)
}

func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

// WithCorrelationID tags ctx with the id that ties a message back to the
// request that caused it.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

func RequestID(ctx context.Context) string     { return stringValue(ctx, requestIDKey) }
func TenantID(ctx context.Context) string      { return stringValue(ctx, tenantIDKey) }
func UserID(ctx context.Context) string        { return stringValue(ctx, userIDKey) }
func CorrelationID(ctx context.Context) string { return stringValue(ctx, correlationIDKey) }

func stringValue(ctx context.Context, key contextKey) string {
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// TraceID returns the active span's trace id, or "".
func TraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return ""
	}
	return sc.TraceID().String()
}

// Fields returns the correlation fields present in ctx.
func Fields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 6)
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}
	for _, k := range []contextKey{requestIDKey, correlationIDKey, tenantIDKey, userIDKey} {
		if v := stringValue(ctx, k); v != "" {
			fields = append(fields, zap.String(string(k), v))
		}
	}
	return fields
}

// L returns the context logger enriched with every correlation field in ctx.
//
//	logger.L(ctx).Info("order placed", zap.String("order_id", id))
func L(ctx context.Context) *zap.Logger {
	return FromContext(ctx).With(Fields(ctx)...)
}

// Enrich returns base enriched with the correlation fields in ctx. Used by
// components that hold their own logger rather than reading one from ctx.
func Enrich(ctx context.Context, base *zap.Logger) *zap.Logger {
	if base == nil {
		base = zap.NewNop()
	}
	return base.With(Fields(ctx)...)
}
