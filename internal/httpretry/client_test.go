package httpretry_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/book-expert/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slidecast/deck2video/internal/httpretry"
)

func createTestLogger(t *testing.T) *logger.Logger {
	t.Helper()

	lg, err := logger.New(t.TempDir(), "httpretry-test.log")
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = lg.Close()
	})

	return lg
}

// recordingSleep collects requested backoff delays instead of waiting.
func recordingSleep(delays *[]time.Duration) httpretry.SleepFunc {
	return func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)

		return nil
	}
}

func TestClient_Do_SucceedsAfterTransientFailures(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	server := httptest.NewServer(
		http.HandlerFunc(
			func(responseWriter http.ResponseWriter, _ *http.Request) {
				if calls.Add(1) <= 2 {
					responseWriter.WriteHeader(http.StatusBadGateway)

					return
				}

				responseWriter.WriteHeader(http.StatusOK)
				_, _ = responseWriter.Write([]byte(`{"ok":true}`))
			},
		),
	)
	defer server.Close()

	var delays []time.Duration

	client := httpretry.NewWithSleep(3, time.Second, createTestLogger(t), recordingSleep(&delays))

	resp, err := client.Do(context.Background(), http.MethodGet, server.URL, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"ok":true}`, string(resp.Body))
	assert.Equal(t, int32(3), calls.Load(), "should have performed exactly 3 attempts")
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, delays, "backoff delays should double")
}

func TestClient_Do_ExhaustsAttempts(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	server := httptest.NewServer(
		http.HandlerFunc(
			func(responseWriter http.ResponseWriter, _ *http.Request) {
				calls.Add(1)
				responseWriter.WriteHeader(http.StatusInternalServerError)
			},
		),
	)
	defer server.Close()

	var delays []time.Duration

	client := httpretry.NewWithSleep(3, time.Second, createTestLogger(t), recordingSleep(&delays))

	_, err := client.Do(context.Background(), http.MethodGet, server.URL, nil, nil)
	require.Error(t, err)
	require.ErrorIs(t, err, httpretry.ErrUnexpectedStatus)

	assert.Equal(t, int32(3), calls.Load(), "should stop after exactly 3 attempts")
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, delays)
	assert.Contains(t, err.Error(), "after 3 attempts")
}

func TestClient_Do_NoRetryOnSuccessBody(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	// A 2xx response carrying an application-level error must not be retried.
	server := httptest.NewServer(
		http.HandlerFunc(
			func(responseWriter http.ResponseWriter, _ *http.Request) {
				calls.Add(1)
				responseWriter.WriteHeader(http.StatusOK)
				_, _ = responseWriter.Write([]byte(`{"data":{"status":"failed"}}`))
			},
		),
	)
	defer server.Close()

	var delays []time.Duration

	client := httpretry.NewWithSleep(3, time.Second, createTestLogger(t), recordingSleep(&delays))

	resp, err := client.Do(context.Background(), http.MethodGet, server.URL, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, int32(1), calls.Load())
	assert.Empty(t, delays)
	assert.Contains(t, string(resp.Body), "failed")
}

func TestClient_Do_SendsHeadersAndBody(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(
		http.HandlerFunc(
			func(responseWriter http.ResponseWriter, request *http.Request) {
				assert.Equal(t, "secret-key", request.Header.Get("X-Api-Key"))
				assert.NotEmpty(t, request.Header.Get("X-Request-Id"))

				responseWriter.WriteHeader(http.StatusOK)
			},
		),
	)
	defer server.Close()

	client := httpretry.NewWithSleep(1, time.Second, createTestLogger(t), recordingSleep(&[]time.Duration{}))

	header := http.Header{}
	header.Set("X-Api-Key", "secret-key")

	_, err := client.Do(context.Background(), http.MethodPost, server.URL, []byte("payload"), header)
	require.NoError(t, err)
}

func TestClient_Do_CancelledDuringBackoff(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(
		http.HandlerFunc(
			func(responseWriter http.ResponseWriter, _ *http.Request) {
				responseWriter.WriteHeader(http.StatusServiceUnavailable)
			},
		),
	)
	defer server.Close()

	client := httpretry.New(3, time.Minute, createTestLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Do(ctx, http.MethodGet, server.URL, nil, nil)
	require.Error(t, err)
	require.ErrorIs(t, err, context.Canceled)
}
