package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/catalog-sync-service/internal/domain"
	"github.com/helixir/catalog-sync-service/internal/observability"
)

func fastConfig() HTTPClientConfig {
	return HTTPClientConfig{
		Catalog:    "test",
		RateLimit:  100,
		BurstSize:  10,
		MaxRetries: 2,
		RetryDelay: 10 * time.Millisecond,
	}
}

func TestNewHTTPClient(t *testing.T) {
	t.Run("applies default values", func(t *testing.T) {
		client := NewHTTPClient(HTTPClientConfig{})

		require.NotNil(t, client)
		assert.Equal(t, 30*time.Second, client.client.Timeout)
		assert.Equal(t, "Helixir-CatalogSync/1.0", client.config.UserAgent)
		assert.Equal(t, 3, client.config.MaxRetries)
		assert.Equal(t, time.Second, client.config.RetryDelay)
	})

	t.Run("keeps custom config", func(t *testing.T) {
		client := NewHTTPClient(HTTPClientConfig{
			Timeout:      15 * time.Second,
			UserAgent:    "TestAgent/1.0",
			APIKey:       "key",
			APIKeyHeader: "X-ELS-APIKey",
		})

		assert.Equal(t, 15*time.Second, client.client.Timeout)
		assert.Equal(t, "TestAgent/1.0", client.config.UserAgent)
		assert.Equal(t, "X-ELS-APIKey", client.config.APIKeyHeader)
	})
}

func TestHTTPClient_DoSetsHeaders(t *testing.T) {
	var got http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := fastConfig()
	cfg.UserAgent = "TestAgent/2.0"
	cfg.APIKey = "secret"
	cfg.APIKeyHeader = "X-ELS-APIKey"
	cfg.Headers = map[string]string{"X-ELS-Insttoken": "inst", "X-Empty": ""}
	client := NewHTTPClient(cfg)

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL, nil)
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "TestAgent/2.0", got.Get("User-Agent"))
	assert.Equal(t, "secret", got.Get("X-ELS-APIKey"))
	assert.Equal(t, "inst", got.Get("X-ELS-Insttoken"))
	assert.Empty(t, got.Values("X-Empty"))
}

func TestHTTPClient_DoRetry(t *testing.T) {
	t.Run("retries on 429 and succeeds", func(t *testing.T) {
		var requestCount atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if requestCount.Add(1) < 3 {
				w.Header().Set("Retry-After", "0")
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		client := NewHTTPClient(fastConfig())
		req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL, nil)
		require.NoError(t, err)

		resp, err := client.Do(req)
		require.NoError(t, err)
		resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, int32(3), requestCount.Load())
	})

	t.Run("exhausted 429 is a rate limit error", func(t *testing.T) {
		var requestCount atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestCount.Add(1)
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer server.Close()

		metrics := observability.NewMetrics("test_catalog_http_ratelimit")
		cfg := fastConfig()
		cfg.Metrics = metrics
		client := NewHTTPClient(cfg)
		req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL, nil)
		require.NoError(t, err)

		resp, err := client.Do(req)
		require.Error(t, err)
		assert.Nil(t, resp)
		assert.True(t, errors.Is(err, domain.ErrRateLimited))

		var rlErr *domain.RateLimitError
		require.True(t, errors.As(err, &rlErr))
		assert.Equal(t, "test", rlErr.Catalog)
		assert.Equal(t, 10*time.Millisecond, rlErr.RetryAfter)
		assert.Equal(t, int32(3), requestCount.Load())
		assert.Equal(t, float64(3), testutil.ToFloat64(metrics.CatalogRateLimited.WithLabelValues("test")))
	})

	t.Run("exhausted 5xx is a catalog API error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		client := NewHTTPClient(fastConfig())
		req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL, nil)
		require.NoError(t, err)

		_, err = client.Do(req)
		var apiErr *domain.CatalogAPIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
		assert.Contains(t, err.Error(), "max retries exhausted")
	})

	t.Run("does not retry 4xx", func(t *testing.T) {
		var requestCount atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestCount.Add(1)
			w.WriteHeader(http.StatusBadRequest)
		}))
		defer server.Close()

		client := NewHTTPClient(fastConfig())
		req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL, nil)
		require.NoError(t, err)

		resp, err := client.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, int32(1), requestCount.Load())
	})

	t.Run("context canceled while waiting", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", "30")
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer server.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		client := NewHTTPClient(fastConfig())
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
		require.NoError(t, err)

		_, err = client.Do(req)
		assert.True(t, errors.Is(err, context.DeadlineExceeded))
	})
}

func TestHTTPClient_RateLimitPausesOtherCallers(t *testing.T) {
	var requestCount atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestCount.Add(1)
		w.Header().Set("Retry-After", "1")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	cfg := fastConfig()
	cfg.MaxRetries = 1
	client := NewHTTPClient(cfg)

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL, nil)
	require.NoError(t, err)
	_, err = client.Do(req)
	require.ErrorIs(t, err, domain.ErrRateLimited)
	assert.Equal(t, int32(2), requestCount.Load())

	// The catalog asked for a second of quiet; a fresh caller must not hit it.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req, err = http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
	require.NoError(t, err)
	_, err = client.Do(req)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int32(2), requestCount.Load())
}

func TestHTTPClient_GetJSON(t *testing.T) {
	t.Run("decodes and caches", func(t *testing.T) {
		var requestCount atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestCount.Add(1)
			assert.Equal(t, "application/json", r.Header.Get("Accept"))
			w.Write([]byte(`{"name":"Nature"}`))
		}))
		defer server.Close()

		metrics := observability.NewMetrics("test_catalog_http_cache")
		cfg := fastConfig()
		cfg.Cache = NewResponseCache(8, time.Minute)
		cfg.Metrics = metrics
		client := NewHTTPClient(cfg)

		for i := 0; i < 2; i++ {
			var out struct {
				Name string `json:"name"`
			}
			require.NoError(t, client.GetJSON(context.Background(), "journal", server.URL+"/j/1", &out))
			assert.Equal(t, "Nature", out.Name)
		}

		assert.Equal(t, int32(1), requestCount.Load())
		assert.Equal(t, float64(1), testutil.ToFloat64(metrics.CatalogCacheHits.WithLabelValues("test")))
		assert.Equal(t, float64(1), testutil.ToFloat64(metrics.CatalogRequestsTotal.WithLabelValues("test", "journal")))
	})

	t.Run("404 is not found", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		metrics := observability.NewMetrics("test_catalog_http_notfound")
		cfg := fastConfig()
		cfg.Metrics = metrics
		client := NewHTTPClient(cfg)

		var out map[string]any
		err := client.GetJSON(context.Background(), "author", server.URL, &out)
		assert.True(t, errors.Is(err, domain.ErrNotFound))
		assert.Equal(t, float64(1), testutil.ToFloat64(metrics.CatalogRequestsFailed.WithLabelValues("test", "author", "not_found")))
	})

	t.Run("non-success carries body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte("invalid api key"))
		}))
		defer server.Close()

		client := NewHTTPClient(fastConfig())
		var out map[string]any
		err := client.GetJSON(context.Background(), "author", server.URL, &out)

		var apiErr *domain.CatalogAPIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
		assert.True(t, strings.Contains(apiErr.Message, "invalid api key"))
	})

	t.Run("invalid JSON is not cached", func(t *testing.T) {
		var requestCount atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestCount.Add(1)
			w.Write([]byte(`{not json`))
		}))
		defer server.Close()

		cfg := fastConfig()
		cfg.Cache = NewResponseCache(8, time.Minute)
		client := NewHTTPClient(cfg)

		var out map[string]any
		for i := 0; i < 2; i++ {
			err := client.GetJSON(context.Background(), "author", server.URL, &out)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "decoding response")
		}
		assert.Equal(t, int32(2), requestCount.Load())
	})
}

func TestHTTPClient_getRetryDelay(t *testing.T) {
	client := NewHTTPClient(HTTPClientConfig{RetryDelay: 2 * time.Second})

	tests := []struct {
		name       string
		retryAfter string
		want       time.Duration
	}{
		{"no header", "", 2 * time.Second},
		{"seconds", "5", 5 * time.Second},
		{"zero seconds", "0", 2 * time.Second},
		{"garbage", "soon", 2 * time.Second},
		{"past date", time.Now().Add(-time.Hour).UTC().Format(http.TimeFormat), 2 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := &http.Response{Header: http.Header{}}
			if tt.retryAfter != "" {
				resp.Header.Set("Retry-After", tt.retryAfter)
			}
			assert.Equal(t, tt.want, client.getRetryDelay(resp))
		})
	}
}

func TestErrorType(t *testing.T) {
	assert.Equal(t, "not_found", errorType(domain.NewNotFoundError("author", "1")))
	assert.Equal(t, "rate_limited", errorType(domain.NewRateLimitError("scopus", time.Second)))
	assert.Equal(t, "http_503", errorType(domain.NewCatalogAPIError("scopus", 503, "", nil)))
	assert.Equal(t, "timeout", errorType(context.DeadlineExceeded))
	assert.Equal(t, "transport", errorType(errors.New("connection reset")))
}
