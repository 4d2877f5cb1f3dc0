package telemetry

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

func TestStartSpan_NoopProvider(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "test.op", attribute.String("k", "v"))
	if span == nil {
		t.Fatal("expected a span")
	}
	if span.IsRecording() {
		t.Error("expected non-recording span without a provider")
	}
	if TraceID(ctx) != "" {
		t.Error("expected no trace id without a provider")
	}
	EndSpan(span, errors.New("boom"))
}

func TestTraceID_Empty(t *testing.T) {
	if id := TraceID(context.Background()); id != "" {
		t.Errorf("expected empty trace id, got %q", id)
	}
}

func TestTraceID_FromSpanContext(t *testing.T) {
	tid, _ := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	sid, _ := trace.SpanIDFromHex("0102030405060708")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: tid, SpanID: sid})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)
	if got := TraceID(ctx); got != "0102030405060708090a0b0c0d0e0f10" {
		t.Errorf("unexpected trace id %q", got)
	}
}
