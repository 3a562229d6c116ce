package httpserver

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/catalog-sync-service/internal/observability"
)

func TestCorrelationIDMiddleware(t *testing.T) {
	newRouter := func(captured *string) chi.Router {
		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(correlationIDMiddleware)
		r.Get("/test", func(w http.ResponseWriter, r *http.Request) {
			*captured = observability.RequestIDFromContext(r.Context())
			w.WriteHeader(http.StatusOK)
		})
		return r
	}

	t.Run("propagates incoming header", func(t *testing.T) {
		var captured string
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(HeaderCorrelationID, "corr-123")
		rr := httptest.NewRecorder()

		newRouter(&captured).ServeHTTP(rr, req)

		assert.Equal(t, "corr-123", rr.Header().Get(HeaderCorrelationID))
		assert.Equal(t, "corr-123", captured)
	})

	t.Run("falls back to request id", func(t *testing.T) {
		var captured string
		rr := httptest.NewRecorder()

		newRouter(&captured).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/test", nil))

		assert.NotEmpty(t, captured)
		assert.Equal(t, captured, rr.Header().Get(HeaderCorrelationID))
	})

	t.Run("generates id without request id middleware", func(t *testing.T) {
		var captured string
		r := chi.NewRouter()
		r.Use(correlationIDMiddleware)
		r.Get("/test", func(w http.ResponseWriter, r *http.Request) {
			captured = observability.RequestIDFromContext(r.Context())
		})
		rr := httptest.NewRecorder()

		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/test", nil))

		assert.Len(t, captured, 36)
		assert.Equal(t, captured, rr.Header().Get(HeaderCorrelationID))
	})
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	r := chi.NewRouter()
	r.Use(correlationIDMiddleware)
	r.Use(requestLogger(logger))
	r.Get("/boom", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	req.Header.Set(HeaderCorrelationID, "corr-9")
	r.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	require.NotEmpty(t, out)
	assert.Contains(t, out, `"level":"error"`)
	assert.Contains(t, out, `"status":502`)
	assert.Contains(t, out, `"path":"/boom"`)
	assert.Contains(t, out, `"request_id":"corr-9"`)
}

func TestJSONContentTypeMiddleware(t *testing.T) {
	h := jsonContentTypeMiddleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	rr := httptest.NewRecorder()

	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
}
