package avatar_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slidecast/deck2video/internal/avatar"
)

// statusSequenceServer serves each status in order, repeating the last one.
func statusSequenceServer(t *testing.T, statuses []string, finalURL string, polls *atomic.Int32) *httptest.Server {
	t.Helper()

	return httptest.NewServer(
		http.HandlerFunc(
			func(responseWriter http.ResponseWriter, _ *http.Request) {
				call := int(polls.Add(1)) - 1
				if call >= len(statuses) {
					call = len(statuses) - 1
				}

				status := statuses[call]

				responseWriter.WriteHeader(http.StatusOK)

				switch status {
				case "completed", "success":
					fmt.Fprintf(responseWriter, `{"data":{"status":%q,"video_url":%q}}`, status, finalURL)
				case "failed", "error":
					fmt.Fprintf(responseWriter, `{"data":{"status":%q,"error":"render exploded"}}`, status)
				default:
					fmt.Fprintf(responseWriter, `{"data":{"status":%q}}`, status)
				}
			},
		),
	)
}

func TestPoller_AwaitCompletion_EventuallyCompletes(t *testing.T) {
	t.Parallel()

	var polls atomic.Int32

	server := statusSequenceServer(
		t,
		[]string{"processing", "processing", "completed"},
		"https://videos.example/vid-1.mp4",
		&polls,
	)
	defer server.Close()

	client := newTestClient(t, server.URL)
	poller := avatar.NewPoller(client, time.Millisecond, time.Minute, createTestLogger(t))

	videoURL, err := poller.AwaitCompletion(context.Background(), "vid-1")
	require.NoError(t, err)

	assert.Equal(t, "https://videos.example/vid-1.mp4", videoURL)
	assert.Equal(t, int32(3), polls.Load(), "should return after the third poll")
}

func TestPoller_AwaitCompletion_FailedJob(t *testing.T) {
	t.Parallel()

	var polls atomic.Int32

	server := statusSequenceServer(t, []string{"failed"}, "", &polls)
	defer server.Close()

	client := newTestClient(t, server.URL)
	poller := avatar.NewPoller(client, time.Millisecond, time.Minute, createTestLogger(t))

	_, err := poller.AwaitCompletion(context.Background(), "vid-2")
	require.ErrorIs(t, err, avatar.ErrVideoGenerationFailed)
	assert.Contains(t, err.Error(), "render exploded")
	assert.Equal(t, int32(1), polls.Load(), "a failed status must surface immediately")
}

func TestPoller_AwaitCompletion_Timeout(t *testing.T) {
	t.Parallel()

	var polls atomic.Int32

	server := statusSequenceServer(t, []string{"processing"}, "", &polls)
	defer server.Close()

	client := newTestClient(t, server.URL)
	poller := avatar.NewPoller(client, time.Millisecond, 25*time.Millisecond, createTestLogger(t))

	_, err := poller.AwaitCompletion(context.Background(), "vid-3")
	require.Error(t, err)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPoller_AwaitCompletion_CallerCancellation(t *testing.T) {
	t.Parallel()

	var polls atomic.Int32

	server := statusSequenceServer(t, []string{"processing"}, "", &polls)
	defer server.Close()

	client := newTestClient(t, server.URL)
	poller := avatar.NewPoller(client, time.Hour, 0, createTestLogger(t))

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := poller.AwaitCompletion(ctx, "vid-4")
	require.ErrorIs(t, err, context.Canceled)
}
