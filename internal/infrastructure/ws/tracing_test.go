package ws

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestCoreRecordsSpansPerEvent(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() {
		otel.SetTracerProvider(previous)
		_ = provider.Shutdown(context.Background())
	})

	c := newTestCore(t, time.Second)
	_, ac := c.connect(t, "a", "r1")
	c.receive(t, ac, `{"type":"chat","payload":"hi"}`)

	spans := recorder.Ended()
	if len(spans) != 2 {
		t.Fatalf("spans=%d, want 2", len(spans))
	}
	if spans[0].Name() != "signaling.connect" || spans[1].Name() != "signaling.receive" {
		t.Fatalf("span names=%q,%q", spans[0].Name(), spans[1].Name())
	}

	found := false
	for _, kv := range spans[1].Attributes() {
		if kv.Key == attribute.Key("message.type") && kv.Value.AsString() == "chat" {
			found = true
		}
	}
	if !found {
		t.Fatalf("receive span missing message.type attribute: %v", spans[1].Attributes())
	}
}
