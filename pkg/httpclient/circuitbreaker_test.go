package httpclient

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBreakerLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestBreakerClient(name string) (*Client, CircuitBreakerConfig) {
	client := New(Config{
		Timeout:         2 * time.Second,
		MaxRetries:      0,
		MaxConnsPerHost: 10,
	})
	cfg := CircuitBreakerConfig{
		Name:         name,
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      time.Minute,
		FailureRatio: 0.5,
		MinRequests:  2,
	}
	return client, cfg
}

func TestCircuitBreaker_PassesThroughSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	client, cfg := newTestBreakerClient("cb-pass")
	cb := NewCircuitBreakerClient(client, cfg, testBreakerLogger())

	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	resp, err := cb.Do(context.Background(), req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

func TestCircuitBreaker_Treats5xxAsFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("backend exploded"))
	}))
	defer server.Close()

	client, cfg := newTestBreakerClient("cb-5xx")
	cb := NewCircuitBreakerClient(client, cfg, testBreakerLogger())

	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	_, err := cb.Do(context.Background(), req)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend exploded")
}

func TestCircuitBreaker_OpensAfterRepeatedFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client, cfg := newTestBreakerClient("cb-open")
	cb := NewCircuitBreakerClient(client, cfg, testBreakerLogger())

	for i := 0; i < 3; i++ {
		req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
		_, _ = cb.Do(context.Background(), req)
	}

	assert.Equal(t, gobreaker.StateOpen, cb.State())

	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	_, err := cb.Do(context.Background(), req)
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestCircuitBreaker_FallbackInvokedWhenOpen(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client, cfg := newTestBreakerClient("cb-fallback")
	cb := NewCircuitBreakerClient(client, cfg, testBreakerLogger()).
		WithFallback(func(ctx context.Context, err error) (*http.Response, error) {
			return &http.Response{
				StatusCode: http.StatusOK,
				Body:       io.NopCloser(strings.NewReader("fallback")),
			}, nil
		})

	for i := 0; i < 3; i++ {
		req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
		_, _ = cb.Do(context.Background(), req)
	}
	require.Equal(t, gobreaker.StateOpen, cb.State())

	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	resp, err := cb.Do(context.Background(), req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "fallback", string(body))
}
