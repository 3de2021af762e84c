package elsclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/openscholar/elsevier-profiles/internal/domain"
	"github.com/openscholar/elsevier-profiles/internal/observability"
)

const (
	// DefaultBaseURL is the default Elsevier content API base URL.
	DefaultBaseURL = "https://api.elsevier.com/content"

	// DefaultRateLimit is the default rate limit (5 requests per second).
	DefaultRateLimit = 5.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 5

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxRetries is the default number of retry attempts on 429/5xx.
	DefaultMaxRetries = 3

	// DefaultRetryDelay is the default base delay between retries.
	DefaultRetryDelay = time.Second

	// DefaultUserAgent is the default User-Agent header.
	DefaultUserAgent = "elsevier-profiles/1.0"

	// apiKeyHeader is the HTTP header name for the Elsevier API key.
	apiKeyHeader = "X-ELS-APIKey"

	// instTokenHeader is the HTTP header name for the institutional token.
	instTokenHeader = "X-ELS-Insttoken"

	// requestIDHeader carries the per-request correlation ID.
	requestIDHeader = "X-Request-Id"

	// maxResponseBytes caps how much of a response body is read (10 MB).
	maxResponseBytes = 10 << 20

	// maxErrorBodyBytes caps how much of an error body is captured (1 MB).
	maxErrorBodyBytes = 1 << 20
)

// Config holds configuration for the Elsevier API client.
type Config struct {
	// BaseURL is the Elsevier content API base URL.
	BaseURL string

	// APIKey is the Elsevier API key for authentication.
	// Required for all requests against api.elsevier.com.
	APIKey string

	// InstToken is the optional institutional token.
	InstToken string

	// Timeout is the request timeout.
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
}

// applyDefaults sets default values for unset configuration fields.
func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RateLimit == 0 {
		c.RateLimit = DefaultRateLimit
	}
	if c.BurstSize == 0 {
		c.BurstSize = DefaultBurstSize
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = DefaultRetryDelay
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
}

// Client executes GET requests against the Elsevier content API with rate
// limiting and bounded retries. It is safe for concurrent use and is shared
// between profile entities; entities never own or close it.
type Client struct {
	config      Config
	httpClient  *http.Client
	rateLimiter *RateLimiter
	logger      zerolog.Logger
	metrics     *observability.Metrics
}

// Option customizes a Client.
type Option func(*Client)

// WithLogger sets the logger used for request logging.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithMetrics sets the metrics sink for request instrumentation.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithHTTPClient replaces the underlying http.Client.
// This is useful for testing with custom transports.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// New creates a new Elsevier API client with the given configuration.
func New(cfg Config, opts ...Option) *Client {
	cfg.applyDefaults()

	c := &Client{
		config: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		rateLimiter: NewRateLimiter(cfg.RateLimit, cfg.BurstSize),
		logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured content API base URL without a trailing slash.
func (c *Client) BaseURL() string {
	return strings.TrimRight(c.config.BaseURL, "/")
}

// ExecRequest issues a single GET against the given URL and returns the raw
// JSON response body. Rate limiting is applied before each attempt; 429 and
// 5xx responses are retried up to MaxRetries with Retry-After support.
// A 404 surfaces as *domain.NotFoundError; other non-2xx responses surface
// as *domain.ExternalAPIError.
func (c *Client) ExecRequest(ctx context.Context, rawURL string) (json.RawMessage, error) {
	requestID := observability.RequestIDFromContext(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	logger := observability.WithRequestContext(c.logger, requestID, rawURL)
	endpoint := endpointLabel(rawURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set(requestIDHeader, requestID)
	if c.config.APIKey != "" {
		req.Header.Set(apiKeyHeader, c.config.APIKey)
	}
	if c.config.InstToken != "" {
		req.Header.Set(instTokenHeader, c.config.InstToken)
	}

	startTime := time.Now()

	var lastStatus int
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait: %w", err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			if attempt < c.config.MaxRetries {
				c.recordRetry(endpoint)
				logger.Debug().Err(err).Int("attempt", attempt+1).Msg("request failed, retrying")
				if err := c.waitForRetry(ctx, c.config.RetryDelay); err != nil {
					return nil, err
				}
				continue
			}
			c.recordFailure(endpoint, "network")
			return nil, fmt.Errorf("request failed: %w", err)
		}

		if shouldRetry(resp.StatusCode) {
			lastStatus = resp.StatusCode
			retryDelay := c.retryDelayFor(resp)
			drainAndClose(resp)

			if attempt < c.config.MaxRetries {
				c.recordRetry(endpoint)
				logger.Debug().Int("status", resp.StatusCode).Int("attempt", attempt+1).Msg("retryable status, retrying")
				if err := c.waitForRetry(ctx, retryDelay); err != nil {
					return nil, err
				}
				continue
			}
			break
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
			resp.Body.Close()
			c.recordFailure(endpoint, "status_"+strconv.Itoa(resp.StatusCode))
			if resp.StatusCode == http.StatusNotFound {
				return nil, domain.NewNotFoundError(endpoint, req.URL.Path)
			}
			return nil, domain.NewExternalAPIError(req.URL.Path, resp.StatusCode, string(body), nil)
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		resp.Body.Close()
		if err != nil {
			c.recordFailure(endpoint, "body_read")
			return nil, fmt.Errorf("reading response body: %w", err)
		}
		if !json.Valid(body) {
			c.recordFailure(endpoint, "invalid_json")
			return nil, fmt.Errorf("response from %s is not valid JSON", req.URL.Path)
		}

		if c.metrics != nil {
			c.metrics.RecordRequest(endpoint, time.Since(startTime).Seconds())
		}
		logger.Debug().Int("status", resp.StatusCode).Int("bytes", len(body)).Msg("request completed")
		return body, nil
	}

	c.recordFailure(endpoint, "retries_exhausted")
	return nil, domain.NewExternalAPIError(
		req.URL.Path,
		lastStatus,
		fmt.Sprintf("retries exhausted after %d attempts", c.config.MaxRetries+1),
		nil,
	)
}

// recordRetry increments the retry counter when metrics are enabled.
func (c *Client) recordRetry(endpoint string) {
	if c.metrics != nil {
		c.metrics.RequestRetries.WithLabelValues(endpoint).Inc()
	}
}

// recordFailure increments the failure counter when metrics are enabled.
func (c *Client) recordFailure(endpoint, reason string) {
	if c.metrics != nil {
		c.metrics.RecordRequestFailure(endpoint, reason)
	}
}

// shouldRetry returns true for 429 and 5xx responses.
func shouldRetry(statusCode int) bool {
	if statusCode == http.StatusTooManyRequests {
		return true
	}
	return statusCode >= 500 && statusCode < 600
}

// retryDelayFor determines how long to wait before retrying.
// It respects the Retry-After header if present, otherwise uses the
// configured retry delay.
func (c *Client) retryDelayFor(resp *http.Response) time.Duration {
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
		if delay := time.Until(t); delay > 0 {
			return delay
		}
	}

	return c.config.RetryDelay
}

// waitForRetry waits for the specified duration, respecting context cancellation.
func (c *Client) waitForRetry(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// drainAndClose discards the remaining body and closes it so the underlying
// connection can be reused.
func drainAndClose(resp *http.Response) {
	if resp.Body != nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}
}

// endpointLabel maps a request URL to a low-cardinality metrics label.
func endpointLabel(rawURL string) string {
	switch {
	case strings.Contains(rawURL, "/search/"):
		return "search"
	case strings.Contains(rawURL, "/author/"):
		return "author"
	case strings.Contains(rawURL, "/affiliation/"):
		return "affiliation"
	default:
		return "other"
	}
}
