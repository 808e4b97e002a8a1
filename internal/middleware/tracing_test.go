package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func withRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		tp.Shutdown(context.Background())
	})
	return rec
}

func TestTracing_NamesSpanAfterRoutePattern(t *testing.T) {
	rec := withRecorder(t)

	r := chi.NewRouter()
	r.Use(Tracing())
	r.Post("/api/v1/checkout/orders/{id}/process", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/checkout/orders/42/process", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "POST /api/v1/checkout/orders/{id}/process", spans[0].Name())
}

func TestTracing_CallbackSpansCarryType(t *testing.T) {
	rec := withRecorder(t)

	r := chi.NewRouter()
	r.Use(Tracing())
	r.HandleFunc("/api/bluecode", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusFound)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/bluecode?type=redirect&id=1&state=success", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/bluecode?type=other", nil))

	spans := rec.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "GET /api/bluecode?type=redirect", spans[0].Name())
	assert.Equal(t, "GET /api/bluecode?type=unknown", spans[1].Name())
}

func TestTracing_WithoutRouter(t *testing.T) {
	rec := withRecorder(t)

	h := Tracing()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte(`{"ok":true}`))
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/unknown", nil))

	assert.Equal(t, http.StatusTeapot, w.Code)
	assert.Equal(t, `{"ok":true}`, w.Body.String())
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	require.Len(t, rec.Ended(), 1)
	assert.Equal(t, "GET /unknown", rec.Ended()[0].Name())
}
