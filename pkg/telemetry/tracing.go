package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.12.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"

	"github.com/wangzhengdao/dxa-web-application-dotnet/internal/build"
)

type TracerOption func(d *CustomTracer)

// WithOTLPEndpoint exports spans over gRPC to endpoint. Without an endpoint
// spans only reach processors registered on the provider.
func WithOTLPEndpoint(endpoint string) TracerOption {
	return func(d *CustomTracer) {
		d.endpoint = endpoint
	}
}

func WithOTLPTLS(enabled bool) TracerOption {
	return func(d *CustomTracer) {
		d.tlsEnabled = enabled
	}
}

func WithServiceName(serviceName string) TracerOption {
	return func(d *CustomTracer) {
		d.serviceName = serviceName
	}
}

func WithSamplingRatio(samplingRatio float64) TracerOption {
	return func(d *CustomTracer) {
		d.samplingRatio = samplingRatio
	}
}

// WithAttributes adds resource attributes to every span.
func WithAttributes(attrs ...attribute.KeyValue) TracerOption {
	return func(d *CustomTracer) {
		d.attributes = append(d.attributes, attrs...)
	}
}

// WithSpanProcessor hands every span to sp in addition to the OTLP exporter.
func WithSpanProcessor(sp sdktrace.SpanProcessor) TracerOption {
	return func(d *CustomTracer) {
		d.processors = append(d.processors, sp)
	}
}

type CustomTracer struct {
	endpoint    string
	tlsEnabled  bool
	serviceName string
	attributes  []attribute.KeyValue
	processors  []sdktrace.SpanProcessor

	samplingRatio float64
}

// Provider is the process-wide tracer provider. Close flushes the spans that
// are still pending.
type Provider struct {
	trace.TracerProvider

	sdk *sdktrace.TracerProvider
}

func (p *Provider) Close(ctx context.Context) error {
	if p.sdk == nil {
		return nil
	}
	sdk := p.sdk
	p.sdk = nil
	return errors.Join(sdk.ForceFlush(ctx), sdk.Shutdown(ctx))
}

// Noop returns a provider whose spans are never recorded.
func Noop() *Provider {
	return &Provider{TracerProvider: noop.NewTracerProvider()}
}

func MustNewTracerProvider(opts ...TracerOption) *Provider {
	tracer := &CustomTracer{
		endpoint:      "",
		serviceName:   build.ProjectName,
		samplingRatio: 0,
	}

	for _, opt := range opts {
		opt(tracer)
	}

	attrs := append([]attribute.KeyValue{
		semconv.ServiceNameKey.String(tracer.serviceName),
		semconv.ServiceVersionKey.String(build.Version),
	}, tracer.attributes...)

	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(attrs...))
	if err != nil {
		panic(err)
	}

	providerOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(tracer.samplingRatio))),
		sdktrace.WithResource(res),
	}

	if tracer.endpoint != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		exporterOpts := []otlptracegrpc.Option{
			otlptracegrpc.WithEndpoint(tracer.endpoint),
			otlptracegrpc.WithDialOption(grpc.WithBlock()),
		}
		if !tracer.tlsEnabled {
			exporterOpts = append(exporterOpts, otlptracegrpc.WithInsecure())
		}

		exp, err := otlptracegrpc.New(ctx, exporterOpts...)
		if err != nil {
			panic(fmt.Sprintf("failed to establish a connection with the otlp exporter: %v", err))
		}
		providerOpts = append(providerOpts, sdktrace.WithSpanProcessor(sdktrace.NewBatchSpanProcessor(exp)))
	}
	for _, sp := range tracer.processors {
		providerOpts = append(providerOpts, sdktrace.WithSpanProcessor(sp))
	}

	tp := sdktrace.NewTracerProvider(providerOpts...)

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	otel.SetTracerProvider(tp)

	return &Provider{TracerProvider: tp, sdk: tp}
}

func TraceError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
