package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/helixir/catalog-sync-service/internal/domain"
	"github.com/helixir/catalog-sync-service/internal/observability"
)

// maxBodySize bounds decoded response bodies.
const maxBodySize = 10 << 20

// HTTPClientConfig configures the HTTP client.
type HTTPClientConfig struct {
	// Catalog labels errors and metrics.
	Catalog string

	// Timeout is the request timeout for HTTP operations.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	BurstSize int

	// MaxRetries is the maximum number of retry attempts.
	MaxRetries int

	// RetryDelay is the base delay between retries.
	RetryDelay time.Duration

	// UserAgent is the User-Agent header sent with requests.
	UserAgent string

	// APIKey is an optional API key for authentication.
	APIKey string

	// APIKeyHeader is the header name for the API key (e.g., "X-ELS-APIKey").
	APIKeyHeader string

	// Headers are extra headers set on every request.
	Headers map[string]string

	// Cache holds successful GET bodies. Nil disables caching.
	Cache *ResponseCache

	// Metrics records request outcomes. Nil disables recording.
	Metrics *observability.Metrics
}

// HTTPClient wraps http.Client with rate limiting, retries and response
// caching. It is safe for concurrent use.
type HTTPClient struct {
	client      *http.Client
	rateLimiter *RateLimiter
	config      HTTPClientConfig
}

// NewHTTPClient creates a new HTTP client with rate limiting.
// The client applies rate limiting before each request and automatically
// retries on 429 (Too Many Requests) and 5xx server errors.
func NewHTTPClient(cfg HTTPClientConfig) *HTTPClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 10
	}
	if cfg.BurstSize == 0 {
		cfg.BurstSize = 10
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "Helixir-CatalogSync/1.0"
	}

	return &HTTPClient{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		rateLimiter: NewRateLimiter(cfg.RateLimit, cfg.BurstSize),
		config:      cfg,
	}
}

// Do executes an HTTP request with rate limiting and retries.
//
// Retries cover 429 (honoring Retry-After) and 5xx responses as well as
// transport errors. When every attempt was answered with 429 the result is a
// *domain.RateLimitError; exhausted 5xx retries yield a
// *domain.CatalogAPIError.
func (c *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}
	if c.config.APIKey != "" && c.config.APIKeyHeader != "" {
		req.Header.Set(c.config.APIKeyHeader, c.config.APIKey)
	}
	for k, v := range c.config.Headers {
		if v != "" {
			req.Header.Set(k, v)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if err := c.rateLimiter.Wait(req.Context()); err != nil {
			return nil, fmt.Errorf("rate limiter wait: %w", err)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			lastErr = fmt.Errorf("request failed: %w", err)
			if attempt < c.config.MaxRetries {
				if err := c.waitForRetry(req.Context(), c.config.RetryDelay); err != nil {
					return nil, err
				}
				if err := c.resetRequestBody(req); err != nil {
					return nil, fmt.Errorf("cannot retry request: %w", err)
				}
				continue
			}
			return nil, lastErr
		}

		if !c.shouldRetry(resp.StatusCode) {
			return resp, nil
		}

		retryDelay := c.getRetryDelay(resp)
		if resp.StatusCode == http.StatusTooManyRequests && c.config.Metrics != nil {
			c.config.Metrics.RecordCatalogRateLimited(c.config.Catalog)
		}
		if resp.Body != nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			// The next Wait, ours or another caller's, sits out the pause.
			c.rateLimiter.PauseFor(retryDelay)
		}

		if attempt < c.config.MaxRetries {
			if resp.StatusCode != http.StatusTooManyRequests {
				if err := c.waitForRetry(req.Context(), retryDelay); err != nil {
					return nil, err
				}
			}
			if err := c.resetRequestBody(req); err != nil {
				return nil, fmt.Errorf("cannot retry request: %w", err)
			}
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			return nil, domain.NewRateLimitError(c.config.Catalog, retryDelay)
		}
		return nil, domain.NewCatalogAPIError(
			c.config.Catalog,
			resp.StatusCode,
			fmt.Sprintf("max retries exhausted after %d attempts", c.config.MaxRetries+1),
			nil,
		)
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return nil, errors.New("unexpected error: no response received")
}

// GetJSON fetches rawURL and decodes the JSON body into out. Successful
// bodies are served from and stored in the response cache.
//
// endpoint labels metrics and names the missing entity when the catalog
// answers 404.
func (c *HTTPClient) GetJSON(ctx context.Context, endpoint, rawURL string, out any) error {
	if body, ok := c.config.Cache.Get(rawURL); ok {
		if c.config.Metrics != nil {
			c.config.Metrics.RecordCatalogCacheHit(c.config.Catalog)
		}
		return decodeBody(body, out)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.Do(req)
	if c.config.Metrics != nil {
		c.config.Metrics.RecordCatalogRequest(c.config.Catalog, endpoint, time.Since(start).Seconds())
	}
	if err != nil {
		c.recordFailure(endpoint, err)
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		err := domain.NewNotFoundError(endpoint, rawURL)
		c.recordFailure(endpoint, err)
		return err
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		err := domain.NewCatalogAPIError(c.config.Catalog, resp.StatusCode, string(msg), nil)
		c.recordFailure(endpoint, err)
		return err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		c.recordFailure(endpoint, err)
		return fmt.Errorf("reading response: %w", err)
	}
	if err := decodeBody(body, out); err != nil {
		c.recordFailure(endpoint, err)
		return err
	}
	c.config.Cache.Add(rawURL, body)
	return nil
}

func decodeBody(body []byte, out any) error {
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func (c *HTTPClient) recordFailure(endpoint string, err error) {
	if c.config.Metrics == nil {
		return
	}
	c.config.Metrics.RecordCatalogRequestFailed(c.config.Catalog, endpoint, errorType(err))
}

// errorType classifies err for the failure metric.
func errorType(err error) string {
	var apiErr *domain.CatalogAPIError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrRateLimited):
		return "rate_limited"
	case errors.As(err, &apiErr):
		return "http_" + strconv.Itoa(apiErr.StatusCode)
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "transport"
	}
}

// shouldRetry returns true if the status code indicates we should retry.
func (c *HTTPClient) shouldRetry(statusCode int) bool {
	if statusCode == http.StatusTooManyRequests {
		return true
	}
	return statusCode >= 500 && statusCode < 600
}

// getRetryDelay determines how long to wait before retrying.
// It respects the Retry-After header if present, otherwise uses the configured retry delay.
func (c *HTTPClient) getRetryDelay(resp *http.Response) time.Duration {
	retryAfter := resp.Header.Get("Retry-After")
	if retryAfter == "" {
		return c.config.RetryDelay
	}

	if seconds, err := strconv.ParseInt(retryAfter, 10, 64); err == nil {
		if seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
		return c.config.RetryDelay
	}

	if t, err := http.ParseTime(retryAfter); err == nil {
		delay := time.Until(t)
		if delay > 0 {
			return delay
		}
	}

	return c.config.RetryDelay
}

// waitForRetry sleeps for delay unless ctx ends first.
func (c *HTTPClient) waitForRetry(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// resetRequestBody resets the request body for retry if possible.
func (c *HTTPClient) resetRequestBody(req *http.Request) error {
	if req.Body == nil || req.GetBody == nil {
		return nil
	}

	body, err := req.GetBody()
	if err != nil {
		return fmt.Errorf("failed to get request body for retry: %w", err)
	}
	req.Body = body
	return nil
}
