package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func TestFieldsEmpty(t *testing.T) {
	assert.Nil(t, Fields(context.Background()))
	assert.Nil(t, Fields(WithRequestID(context.Background(), "")))
	assert.Nil(t, Fields(WithTenantID(context.Background(), "")))
}

func TestFieldsSorted(t *testing.T) {
	ctx := WithTenantID(context.Background(), "t1")
	ctx = WithRequestID(ctx, "r1")

	assert.Equal(t, []any{FieldRequestID, "r1", FieldTenantID, "t1"}, Fields(ctx))
}

func TestFieldsCopyOnWrite(t *testing.T) {
	parent := WithRequestID(context.Background(), "r1")
	child := WithTenantID(parent, "t1")

	assert.Len(t, Fields(parent), 2)
	assert.Len(t, Fields(child), 4)
}

func TestWithTrace(t *testing.T) {
	assert.Nil(t, Fields(WithTrace(context.Background())))

	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID})
	ctx := WithTrace(trace.ContextWithSpanContext(context.Background(), sc))

	assert.Equal(t, []any{
		FieldSpanID, "00f067aa0ba902b7",
		FieldTraceID, "4bf92f3577b34da6a3ce929d0e0e4736",
	}, Fields(ctx))
}

func TestFromContext(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))
	assert.NotNil(t, FromContext(WithRequestID(context.Background(), "r1")))
}
