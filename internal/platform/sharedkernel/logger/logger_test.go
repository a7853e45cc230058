package logger

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"INFO":    zapcore.InfoLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"bogus":   zapcore.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestNew(t *testing.T) {
	t.Run("stdout json", func(t *testing.T) {
		l, err := New(Config{Level: "debug", Format: "json", Output: "stdout"}, "inventory-service")
		require.NoError(t, err)
		assert.True(t, l.Core().Enabled(zapcore.DebugLevel))
	})

	t.Run("file output", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "svc.log")
		l, err := New(Config{Level: "info", Format: "json", Output: path}, "svc")
		require.NoError(t, err)
		l.Info("hello")
		require.NoError(t, l.Sync())

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"service":"svc"`)
		assert.Contains(t, string(data), `"msg":"hello"`)
	})

	t.Run("unwritable file", func(t *testing.T) {
		_, err := New(Config{Output: filepath.Join(t.TempDir(), "missing", "x.log")}, "")
		assert.Error(t, err)
	})
}

func TestForEnvironment(t *testing.T) {
	assert.Equal(t, "json", ForEnvironment("production", "").Format)
	dev := ForEnvironment("development", "debug")
	assert.Equal(t, "console", dev.Format)
	assert.Equal(t, "debug", dev.Level)
}

func TestL_InjectsCorrelationFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	ctx := WithContext(context.Background(), zap.New(core))
	ctx = WithRequestID(ctx, "req-1")
	ctx = WithTenantID(ctx, "tenant-1")
	ctx = WithUserID(ctx, "user-1")

	traceID, _ := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	spanID, _ := trace.SpanIDFromHex("0102030405060708")
	ctx = trace.ContextWithSpanContext(ctx, trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled,
	}))

	L(ctx).Info("placed")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "tenant-1", fields["tenant_id"])
	assert.Equal(t, "user-1", fields["user_id"])
	assert.Equal(t, traceID.String(), fields["trace_id"])
	assert.Equal(t, traceID.String(), TraceID(ctx))
}

func TestFromContext_NoLogger(t *testing.T) {
	l := FromContext(context.Background())
	assert.NotNil(t, l)
	assert.Empty(t, Fields(context.Background()))
	assert.Equal(t, "", RequestID(context.Background()))
}

func TestEnrich(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	ctx := WithCorrelationID(context.Background(), "corr-9")
	Enrich(ctx, zap.New(core)).Info("x")
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "corr-9", logs.All()[0].ContextMap()["correlation_id"])
	assert.NotNil(t, Enrich(ctx, nil))
}
