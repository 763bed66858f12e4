package tracer

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationName names the tracer used by the store.
const InstrumentationName = "github.com/percoguru/kvstore"

// Provider manages the OpenTelemetry tracer provider.
type Provider struct {
	tp *sdktrace.TracerProvider
}

// New creates a tracer provider for serviceName. Extra options, such as a
// span processor, are passed through to the SDK.
func New(serviceName string, opts ...sdktrace.TracerProviderOption) (*Provider, error) {
	if serviceName == "" {
		serviceName = "kvstore"
	}
	res := resource.NewSchemaless(attribute.String("service.name", serviceName))

	all := append([]sdktrace.TracerProviderOption{sdktrace.WithResource(res)}, opts...)
	return &Provider{tp: sdktrace.NewTracerProvider(all...)}, nil
}

// Tracer returns the store tracer of this provider.
func (p *Provider) Tracer() trace.Tracer {
	return p.tp.Tracer(InstrumentationName)
}

// SetGlobal installs the provider as the process-wide default.
func (p *Provider) SetGlobal() {
	otel.SetTracerProvider(p.tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
}

// Shutdown flushes and stops the provider. It is safe to call more than once.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.tp == nil {
		return nil
	}
	return p.tp.Shutdown(ctx)
}

// Global returns the store tracer of the process-wide provider.
func Global() trace.Tracer {
	return otel.Tracer(InstrumentationName)
}

// StartSpan starts a span on the process-wide provider.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return Global().Start(ctx, name, trace.WithAttributes(attrs...))
}

// End records err on span, if any, and ends it.
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
