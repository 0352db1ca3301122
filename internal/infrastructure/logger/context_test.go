package logger

import (
	"bytes"
	"context"
	"testing"

	"github.com/erp/billing/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func newBufferLogger() (*zap.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	encoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	core := zapcore.NewCore(encoder, zapcore.AddSync(&buf), zapcore.DebugLevel)
	return zap.New(core), &buf
}

func TestWithContext(t *testing.T) {
	logger := zap.NewExample()
	ctx := WithContext(context.Background(), logger)
	assert.Same(t, logger, FromContext(ctx))
}

func TestFromContext_NotFound(t *testing.T) {
	logger := FromContext(context.Background())
	require.NotNil(t, logger)
	assert.NotPanics(t, func() { logger.Info("dropped") })
}

func TestWithRequestID(t *testing.T) {
	base, buf := newBufferLogger()
	ctx, enriched := WithRequestID(context.Background(), base, "req-123")

	assert.Equal(t, "req-123", GetRequestID(ctx))
	enriched.Info("hello")
	assert.Contains(t, buf.String(), `"request_id":"req-123"`)
	assert.Same(t, enriched, FromContext(ctx))
}

func TestWithPrincipal(t *testing.T) {
	base, buf := newBufferLogger()
	p := shared.NewPrincipal(uuid.New(), uuid.New())

	ctx, enriched := WithPrincipal(context.Background(), base, p)
	got, ok := GetPrincipal(ctx)
	require.True(t, ok)
	assert.Equal(t, p, got)

	enriched.Info("acting")
	assert.Contains(t, buf.String(), `"tenant_id":"`+p.TenantID.String()+`"`)
	assert.Contains(t, buf.String(), `"user_id":"`+p.UserID.String()+`"`)
}

func TestPrincipalFields_SystemActor(t *testing.T) {
	fields := PrincipalFields(shared.NewPrincipal(uuid.New(), uuid.Nil))
	assert.Len(t, fields, 1, "no user_id for system actors")
}

func TestGetters_Empty(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetRequestID(ctx))
	assert.Empty(t, GetTraceID(ctx))
	assert.Empty(t, GetSpanID(ctx))
	_, ok := GetPrincipal(ctx)
	assert.False(t, ok)
}

func TestTraceCorrelation(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx, span := tp.Tracer("test").Start(context.Background(), "apply-payment")
	defer span.End()

	assert.Equal(t, span.SpanContext().TraceID().String(), GetTraceID(ctx))
	assert.Equal(t, span.SpanContext().SpanID().String(), GetSpanID(ctx))

	base, buf := newBufferLogger()
	WithTraceContext(ctx, base).Info("traced")
	assert.Contains(t, buf.String(), `"trace_id":"`+GetTraceID(ctx)+`"`)
}

func TestWithTraceContext_NoSpan(t *testing.T) {
	base := zap.NewNop()
	assert.Same(t, base, WithTraceContext(context.Background(), base))
}

func TestContextLogger_EnrichesWithContextFields(t *testing.T) {
	base, buf := newBufferLogger()
	p := shared.NewPrincipal(uuid.New(), uuid.New())

	ctx := context.Background()
	ctx, _ = WithRequestID(ctx, zap.NewNop(), "req-123")
	ctx, _ = WithPrincipal(ctx, zap.NewNop(), p)
	ctx = WithContext(ctx, base)

	L(ctx).Info("test message", zap.String("extra_field", "extra_value"))

	output := buf.String()
	assert.Contains(t, output, `"request_id":"req-123"`)
	assert.Contains(t, output, `"tenant_id":"`+p.TenantID.String()+`"`)
	assert.Contains(t, output, `"extra_field":"extra_value"`)
	assert.Contains(t, output, `"msg":"test message"`)
}

func TestContextLogger_WithLoggerOverridesContext(t *testing.T) {
	base, buf := newBufferLogger()
	ctx := WithContext(context.Background(), zap.NewNop())

	WithLogger(ctx, base).With(zap.String("component", "ledger")).Warn("slow statement")
	assert.Contains(t, buf.String(), `"component":"ledger"`)
	assert.Contains(t, buf.String(), `"level":"warn"`)
}

func TestContextLogger_NilLogger(t *testing.T) {
	cl := &ContextLogger{ctx: context.Background()}
	assert.NotPanics(t, func() {
		cl.Info("test")
		cl.With(zap.Int("n", 1)).Error("test")
		_ = cl.Zap()
	})
}
