package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestTracing(t *testing.T) {
	spanRecorder := tracetest.NewSpanRecorder()
	tp := MustNewTracerProvider(
		WithServiceName("dxa-test"),
		WithAttributes(attribute.String("deployment", "test")),
		WithSamplingRatio(1),
		WithSpanProcessor(spanRecorder),
	)
	t.Cleanup(func() {
		require.NoError(t, tp.Close(context.Background()))
	})

	_, span := tp.Tracer("").Start(context.Background(), "resolve")
	TraceError(span, errors.New("boom"))
	span.End()

	spans := spanRecorder.Ended()
	require.Len(t, spans, 1)
	require.Equal(t, "resolve", spans[0].Name())
	require.Equal(t, codes.Error, spans[0].Status().Code)
	require.Equal(t, "boom", spans[0].Status().Description)
	require.Contains(t, spans[0].Resource().Attributes(), attribute.String("service.name", "dxa-test"))
	require.Contains(t, spans[0].Resource().Attributes(), attribute.String("deployment", "test"))
}

func TestCloseIsIdempotent(t *testing.T) {
	tp := MustNewTracerProvider(WithSamplingRatio(1))
	require.NoError(t, tp.Close(context.Background()))
	require.NoError(t, tp.Close(context.Background()))
}

func TestNoop(t *testing.T) {
	tp := Noop()

	_, span := tp.Tracer("").Start(context.Background(), "resolve")
	span.End()
	require.False(t, span.SpanContext().IsValid())
	require.NoError(t, tp.Close(context.Background()))
}
