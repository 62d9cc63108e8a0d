// Package httpretry wraps outbound HTTP calls with bounded
// exponential-backoff retry. Every call to the avatar platform and the slide
// render service passes through one Client.
package httpretry

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/book-expert/logger"
	"github.com/google/uuid"
)

const (
	defaultRequestTimeout = 90 * time.Second

	headerRequestID = "X-Request-Id"
)

// Log formats.
const (
	logFmtAttemptFailed = "Request %s %s attempt %d/%d failed: %v"
)

// ErrUnexpectedStatus indicates a response outside the 2xx range.
var ErrUnexpectedStatus = errors.New("unexpected HTTP status")

// Response is the terminal outcome of a successful request. The body is
// fully read so callers never deal with retry-sensitive streams.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// SleepFunc pauses for the given duration, returning early with the context
// error when the context is cancelled first.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Client retries failed requests with exponential backoff: after attempt n
// (0-based) it waits baseDelay * 2^n before trying again. Transport errors
// and non-2xx statuses are retried; a 2xx response is returned as-is, and any
// application-level error inside its body is the caller's concern.
type Client struct {
	httpClient *http.Client
	attempts   int
	baseDelay  time.Duration
	sleep      SleepFunc
	log        *logger.Logger
}

// New creates a retrying client performing up to attempts tries per request.
func New(attempts int, baseDelay time.Duration, log *logger.Logger) *Client {
	return NewWithSleep(attempts, baseDelay, log, sleepContext)
}

// NewWithSleep creates a retrying client with a custom sleep function. This
// constructor is primarily for testing purposes, allowing backoff delays to
// be observed without real waiting.
func NewWithSleep(attempts int, baseDelay time.Duration, log *logger.Logger, sleep SleepFunc) *Client {
	if attempts < 1 {
		attempts = 1
	}

	return &Client{
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
		attempts:   attempts,
		baseDelay:  baseDelay,
		sleep:      sleep,
		log:        log,
	}
}

// Do performs the request, retrying on transport errors and non-2xx statuses
// until the attempt budget is exhausted. The last failure is returned wrapped
// with the attempt count; the caller decides propagation.
func (c *Client) Do(
	ctx context.Context,
	method, url string,
	body []byte,
	header http.Header,
) (Response, error) {
	requestID := uuid.NewString()

	var lastErr error

	for attempt := range c.attempts {
		if attempt > 0 {
			delay := c.baseDelay << (attempt - 1)

			sleepErr := c.sleep(ctx, delay)
			if sleepErr != nil {
				return Response{}, fmt.Errorf("retry wait aborted: %w", sleepErr)
			}
		}

		resp, err := c.doOnce(ctx, method, url, body, header, requestID)
		if err == nil {
			return resp, nil
		}

		lastErr = err
		c.log.Warn(logFmtAttemptFailed, method, url, attempt+1, c.attempts, err)
	}

	return Response{}, fmt.Errorf("%s %s failed after %d attempts: %w", method, url, c.attempts, lastErr)
}

func (c *Client) doOnce(
	ctx context.Context,
	method, url string,
	body []byte,
	header http.Header,
	requestID string,
) (Response, error) {
	var reader io.Reader = http.NoBody
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return Response{}, fmt.Errorf("failed to create request: %w", err)
	}

	for name, values := range header {
		for _, value := range values {
			req.Header.Add(name, value)
		}
	}

	req.Header.Set(headerRequestID, requestID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return Response{}, fmt.Errorf("failed to read response body: %w", readErr)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return Response{}, fmt.Errorf("%w: %s: %s", ErrUnexpectedStatus, resp.Status, string(respBody))
	}

	return Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       respBody,
	}, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
