package tracer

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newRecordingProvider(t *testing.T) (*Provider, *tracetest.SpanRecorder) {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	p, err := New("test-service", sdktrace.WithSpanProcessor(sr))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	t.Cleanup(func() { p.Shutdown(context.Background()) })
	return p, sr
}

func TestNew(t *testing.T) {
	p, err := New("test-service")
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if p == nil || p.tp == nil {
		t.Fatal("New returned an empty provider")
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown returned error: %v", err)
	}
}

func TestNew_EmptyServiceName(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	p, err := New("", sdktrace.WithSpanProcessor(sr))
	if err != nil {
		t.Fatalf("New with empty service name returned error: %v", err)
	}
	defer p.Shutdown(context.Background())

	_, span := p.Tracer().Start(context.Background(), "op")
	span.End()

	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("recorded %d spans, want 1", len(spans))
	}
	v, ok := spans[0].Resource().Set().Value("service.name")
	if !ok || v.AsString() != "kvstore" {
		t.Errorf("service.name = %v, want kvstore", v.AsString())
	}
}

func TestProvider_Shutdown_Multiple(t *testing.T) {
	p, _ := New("test-service")
	ctx := context.Background()

	if err := p.Shutdown(ctx); err != nil {
		t.Errorf("first Shutdown returned error: %v", err)
	}
	if err := p.Shutdown(ctx); err != nil {
		t.Errorf("second Shutdown returned error: %v", err)
	}

	var nilProvider *Provider
	if err := nilProvider.Shutdown(ctx); err != nil {
		t.Errorf("nil provider Shutdown returned error: %v", err)
	}
}

func TestTracer_RecordsSpans(t *testing.T) {
	p, sr := newRecordingProvider(t)

	ctx, parent := p.Tracer().Start(context.Background(), "parent")
	_, child := p.Tracer().Start(ctx, "child")
	child.End()
	parent.End()

	spans := sr.Ended()
	if len(spans) != 2 {
		t.Fatalf("recorded %d spans, want 2", len(spans))
	}
	if spans[0].Name() != "child" || spans[1].Name() != "parent" {
		t.Errorf("span names = %q, %q", spans[0].Name(), spans[1].Name())
	}
	if spans[0].Parent().SpanID() != spans[1].SpanContext().SpanID() {
		t.Error("child span is not parented to parent span")
	}
}

func TestStartSpan_Global(t *testing.T) {
	p, sr := newRecordingProvider(t)
	p.SetGlobal()

	ctx, span := StartSpan(context.Background(), "global-op", attribute.String("key", "k"))
	if ctx == nil {
		t.Fatal("StartSpan returned nil context")
	}
	End(span, nil)

	spans := sr.Ended()
	if len(spans) != 1 || spans[0].Name() != "global-op" {
		t.Fatalf("recorded spans = %v", spans)
	}
	attrs := spans[0].Attributes()
	if len(attrs) != 1 || attrs[0].Value.AsString() != "k" {
		t.Errorf("attributes = %v", attrs)
	}
}

func TestEnd_RecordsError(t *testing.T) {
	p, sr := newRecordingProvider(t)

	_, span := p.Tracer().Start(context.Background(), "failing")
	End(span, errors.New("disk full"))

	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("recorded %d spans, want 1", len(spans))
	}
	if spans[0].Status().Code != codes.Error {
		t.Errorf("status = %v, want error", spans[0].Status().Code)
	}
	if len(spans[0].Events()) == 0 {
		t.Error("expected an error event")
	}
}

func TestStartSpan_ContextPreserved(t *testing.T) {
	type ctxKey string
	key := ctxKey("test-key")

	ctx := context.WithValue(context.Background(), key, "test-value")
	newCtx, span := StartSpan(ctx, "test")
	defer span.End()

	if newCtx.Value(key) != "test-value" {
		t.Error("Context value not preserved through StartSpan")
	}
}
