package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// TestTraceContextPropagation checks that spans started inside handlers join the router span
// and that an incoming traceparent is honoured.
func TestTraceContextPropagation(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	r := mux.NewRouter()
	r.Use(otelmux.Middleware(ServiceAPI))
	r.HandleFunc("/api/v1/session/state", func(w http.ResponseWriter, r *http.Request) {
		_, span := otel.Tracer("sage-coach/sessionstate").Start(r.Context(), "DetectState")
		span.End()
		w.WriteHeader(http.StatusOK)
	})

	const incomingTraceID = "4bf92f3577b34da6a3ce929d0e0e4736"

	tests := []struct {
		name        string
		traceParent string
	}{
		{name: "without existing trace ID"},
		{name: "with existing trace ID", traceParent: "00-" + incomingTraceID + "-00f067aa0ba902b7-01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exporter.Reset()

			req := httptest.NewRequest(http.MethodGet, "/api/v1/session/state", nil)
			if tt.traceParent != "" {
				req.Header.Set("traceparent", tt.traceParent)
			}
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, req)

			if rr.Code != http.StatusOK {
				t.Errorf("Expected status OK, got %d", rr.Code)
			}
			if err := tp.ForceFlush(context.Background()); err != nil {
				t.Errorf("Failed to flush tracer provider: %v", err)
			}

			spans := exporter.GetSpans()
			if len(spans) != 2 {
				t.Fatalf("Expected handler and router spans, got %d", len(spans))
			}
			inner, outer := spans[0], spans[1]
			if inner.Name != "DetectState" {
				t.Errorf("Expected inner span DetectState, got %s", inner.Name)
			}
			if inner.Parent.SpanID() != outer.SpanContext.SpanID() {
				t.Error("Expected DetectState to be a child of the router span")
			}
			if tt.traceParent != "" && outer.SpanContext.TraceID().String() != incomingTraceID {
				t.Errorf("Expected trace ID %s, got %s", incomingTraceID, outer.SpanContext.TraceID())
			}
		})
	}
}
