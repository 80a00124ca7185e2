package chi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// installTracing swaps in a sampling provider that records ended spans.
func installTracing(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithSpanProcessor(rec),
	)
	prevTP, prevProp := otel.GetTracerProvider(), otel.GetTextMapPropagator()
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetTextMapPropagator(prevProp)
		_ = tp.Shutdown(t.Context())
	})
	return rec
}

func requestLine(t *testing.T, logs *observer.ObservedLogs) map[string]any {
	t.Helper()
	entries := logs.FilterMessage("http_request").All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 http_request line, got %d", len(entries))
	}
	return entries[0].ContextMap()
}

func TestRouter_RequestLogCarriesTraceID(t *testing.T) {
	installTracing(t)
	core, logs := observer.New(zapcore.InfoLevel)
	r := &mockRetriever{retrieveFn: usageRetriever(0, datedMatches())}
	h := NewRouter(newTestServer(r), RouterConfig{Logger: zap.New(core)})

	rr := do(t, h, http.MethodGet, "/api/v1/retrieve?query=treaty", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}

	if id, _ := requestLine(t, logs)["trace_id"].(string); id == "" {
		t.Error("trace_id empty in request log line with tracing enabled")
	}
}

func TestRouter_ContinuesIncomingTrace(t *testing.T) {
	installTracing(t)
	core, logs := observer.New(zapcore.InfoLevel)
	h := NewRouter(newTestServer(&mockRetriever{}), RouterConfig{Logger: zap.New(core)})

	const traceID = "4bf92f3577b34da6a3ce929d0e0e4736"
	req := httptest.NewRequest(http.MethodGet, "/api/v1/retrieve?query=x", http.NoBody)
	req.Header.Set("traceparent", "00-"+traceID+"-00f067aa0ba902b7-01")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if got := requestLine(t, logs)["trace_id"]; got != traceID {
		t.Errorf("trace_id = %v, want %s", got, traceID)
	}
}

func TestRouter_SpanNamedByRoutePattern(t *testing.T) {
	rec := installTracing(t)
	h := NewRouter(newTestServer(&mockRetriever{}), RouterConfig{})

	do(t, h, http.MethodGet, "/api/v1/retrieve?query=a", "")
	do(t, h, http.MethodGet, "/api/v1/retrieve?query=b", "")
	do(t, h, http.MethodGet, "/no/such/path", "")

	var names []string
	for _, s := range rec.Ended() {
		if s.SpanKind().String() == "server" {
			names = append(names, s.Name())
		}
	}
	want := []string{"GET /api/v1/retrieve", "GET /api/v1/retrieve", "GET unmatched"}
	if len(names) != len(want) {
		t.Fatalf("server spans = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("span[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}
