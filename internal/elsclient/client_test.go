package elsclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openscholar/elsevier-profiles/internal/domain"
	"github.com/openscholar/elsevier-profiles/internal/observability"
)

// newTestClient creates a client configured for testing against the given server.
func newTestClient(serverURL string, opts ...Option) *Client {
	cfg := Config{
		BaseURL:    serverURL,
		APIKey:     "test-key",
		Timeout:    5 * time.Second,
		RateLimit:  100, // High rate for testing
		BurstSize:  100,
		MaxRetries: 0,
		RetryDelay: 10 * time.Millisecond,
	}
	return New(cfg, opts...)
}

func TestConfig_applyDefaults(t *testing.T) {
	t.Run("applies all defaults", func(t *testing.T) {
		cfg := Config{}
		cfg.applyDefaults()

		assert.Equal(t, DefaultBaseURL, cfg.BaseURL)
		assert.Equal(t, DefaultTimeout, cfg.Timeout)
		assert.Equal(t, DefaultRateLimit, cfg.RateLimit)
		assert.Equal(t, DefaultBurstSize, cfg.BurstSize)
		assert.Equal(t, DefaultRetryDelay, cfg.RetryDelay)
		assert.Equal(t, DefaultUserAgent, cfg.UserAgent)
	})

	t.Run("does not override set values", func(t *testing.T) {
		cfg := Config{
			BaseURL:    "https://custom.api.org/content",
			Timeout:    60 * time.Second,
			RateLimit:  2.0,
			BurstSize:  2,
			RetryDelay: 5 * time.Second,
			UserAgent:  "custom/2.0",
		}
		cfg.applyDefaults()

		assert.Equal(t, "https://custom.api.org/content", cfg.BaseURL)
		assert.Equal(t, 60*time.Second, cfg.Timeout)
		assert.Equal(t, 2.0, cfg.RateLimit)
		assert.Equal(t, 2, cfg.BurstSize)
		assert.Equal(t, 5*time.Second, cfg.RetryDelay)
		assert.Equal(t, "custom/2.0", cfg.UserAgent)
	})
}

func TestClient_BaseURL(t *testing.T) {
	client := New(Config{BaseURL: "https://api.elsevier.com/content/"})
	assert.Equal(t, "https://api.elsevier.com/content", client.BaseURL())
}

func TestExecRequest(t *testing.T) {
	t.Run("returns raw JSON body", func(t *testing.T) {
		body := `{"search-results": {"entry": [{"dc:title": "x"}]}}`
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(body))
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		raw, err := client.ExecRequest(context.Background(), server.URL+"/search/scopus")
		require.NoError(t, err)
		assert.JSONEq(t, body, string(raw))
	})

	t.Run("sends authentication and correlation headers", func(t *testing.T) {
		var gotHeaders http.Header
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotHeaders = r.Header.Clone()
			w.Write([]byte(`{}`))
		}))
		defer server.Close()

		client := New(Config{
			BaseURL:   server.URL,
			APIKey:    "key-1",
			InstToken: "tok-1",
			RateLimit: 100,
			BurstSize: 100,
			UserAgent: "test-agent/1.0",
		})

		_, err := client.ExecRequest(context.Background(), server.URL+"/author/author_id/1")
		require.NoError(t, err)

		assert.Equal(t, "key-1", gotHeaders.Get("X-ELS-APIKey"))
		assert.Equal(t, "tok-1", gotHeaders.Get("X-ELS-Insttoken"))
		assert.Equal(t, "test-agent/1.0", gotHeaders.Get("User-Agent"))
		assert.Equal(t, "application/json", gotHeaders.Get("Accept"))
		assert.NotEmpty(t, gotHeaders.Get("X-Request-Id"))
	})

	t.Run("propagates request ID from context", func(t *testing.T) {
		var gotRequestID string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotRequestID = r.Header.Get("X-Request-Id")
			w.Write([]byte(`{}`))
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		ctx := observability.WithRequestID(context.Background(), "req-777")

		_, err := client.ExecRequest(ctx, server.URL+"/author/author_id/1")
		require.NoError(t, err)
		assert.Equal(t, "req-777", gotRequestID)
	})

	t.Run("non-2xx surfaces as ExternalAPIError", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"service-error": {"status": {"statusText": "APIKey invalid"}}}`))
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		_, err := client.ExecRequest(context.Background(), server.URL+"/author/author_id/1")
		require.Error(t, err)

		var apiErr *domain.ExternalAPIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
		assert.Contains(t, apiErr.Message, "APIKey invalid")
	})

	t.Run("invalid JSON body returns error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`<html>maintenance</html>`))
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		_, err := client.ExecRequest(context.Background(), server.URL+"/author/author_id/1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not valid JSON")
	})

	t.Run("retries on 429 honoring Retry-After", func(t *testing.T) {
		var attempts atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if attempts.Add(1) == 1 {
				w.Header().Set("Retry-After", "0")
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			w.Write([]byte(`{"ok": true}`))
		}))
		defer server.Close()

		client := New(Config{
			BaseURL:    server.URL,
			RateLimit:  100,
			BurstSize:  100,
			MaxRetries: 2,
			RetryDelay: 10 * time.Millisecond,
		})

		raw, err := client.ExecRequest(context.Background(), server.URL+"/search/scopus")
		require.NoError(t, err)
		assert.JSONEq(t, `{"ok": true}`, string(raw))
		assert.Equal(t, int32(2), attempts.Load())
	})

	t.Run("retries on 5xx until exhausted", func(t *testing.T) {
		var attempts atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			attempts.Add(1)
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		client := New(Config{
			BaseURL:    server.URL,
			RateLimit:  100,
			BurstSize:  100,
			MaxRetries: 2,
			RetryDelay: 5 * time.Millisecond,
		})

		_, err := client.ExecRequest(context.Background(), server.URL+"/search/scopus")
		require.Error(t, err)

		var apiErr *domain.ExternalAPIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
		assert.Equal(t, int32(3), attempts.Load())
	})

	t.Run("does not retry non-retryable status", func(t *testing.T) {
		var attempts atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			attempts.Add(1)
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		client := New(Config{
			BaseURL:    server.URL,
			RateLimit:  100,
			BurstSize:  100,
			MaxRetries: 3,
			RetryDelay: 5 * time.Millisecond,
		})

		_, err := client.ExecRequest(context.Background(), server.URL+"/author/author_id/404")
		require.Error(t, err)
		assert.Equal(t, int32(1), attempts.Load())
	})

	t.Run("404 surfaces as NotFoundError", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		_, err := client.ExecRequest(context.Background(), server.URL+"/author/author_id/999")
		require.Error(t, err)

		var nfErr *domain.NotFoundError
		require.ErrorAs(t, err, &nfErr)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.Equal(t, "author", nfErr.Entity)
		assert.Contains(t, nfErr.ID, "/author/author_id/999")
	})

	t.Run("context cancellation aborts request", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(2 * time.Second)
			w.Write([]byte(`{}`))
		}))
		defer server.Close()

		client := newTestClient(server.URL)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := client.ExecRequest(ctx, server.URL+"/search/scopus")
		require.Error(t, err)
	})
}

func TestExecRequest_Metrics(t *testing.T) {
	t.Run("records successful requests", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{}`))
		}))
		defer server.Close()

		m := observability.NewMetrics("test_client_requests")
		client := newTestClient(server.URL, WithMetrics(m))

		_, err := client.ExecRequest(context.Background(), server.URL+"/search/scopus")
		require.NoError(t, err)

		assert.Equal(t, float64(1), testutil.ToFloat64(m.RequestsTotal.WithLabelValues("search")))
	})

	t.Run("records failures with status reason", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		}))
		defer server.Close()

		m := observability.NewMetrics("test_client_failures")
		client := newTestClient(server.URL, WithMetrics(m))

		_, err := client.ExecRequest(context.Background(), server.URL+"/author/author_id/1")
		require.Error(t, err)

		assert.Equal(t, float64(1), testutil.ToFloat64(m.RequestsFailed.WithLabelValues("author", "status_403")))
	})
}

func TestEndpointLabel(t *testing.T) {
	tests := []struct {
		url      string
		expected string
	}{
		{"https://api.elsevier.com/content/search/scopus?query=au-id(1)", "search"},
		{"https://api.elsevier.com/content/author/author_id/7004212771", "author"},
		{"https://api.elsevier.com/content/affiliation/affiliation_id/60027950", "affiliation"},
		{"https://api.elsevier.com/content/abstract/eid/2-s2.0-1", "other"},
	}

	for _, tc := range tests {
		t.Run(tc.expected, func(t *testing.T) {
			assert.Equal(t, tc.expected, endpointLabel(tc.url))
		})
	}
}
