package narration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/book-expert/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slidecast/deck2video/internal/core"
	"github.com/slidecast/deck2video/internal/narration"
)

func createTestLogger(t *testing.T) *logger.Logger {
	t.Helper()

	lg, err := logger.New(t.TempDir(), "narration-test.log")
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = lg.Close()
	})

	return lg
}

// completionServer echoes a narration derived from the user prompt and counts
// calls.
func completionServer(t *testing.T, calls *atomic.Int32) *httptest.Server {
	t.Helper()

	return httptest.NewServer(
		http.HandlerFunc(
			func(responseWriter http.ResponseWriter, request *http.Request) {
				calls.Add(1)

				assert.Equal(t, "/v1/chat/completions", request.URL.Path)
				assert.Equal(t, "Bearer llm-key", request.Header.Get("Authorization"))

				var payload struct {
					Model    string `json:"model"`
					Messages []struct {
						Role    string `json:"role"`
						Content string `json:"content"`
					} `json:"messages"`
				}

				err := json.NewDecoder(request.Body).Decode(&payload)
				require.NoError(t, err)
				require.Len(t, payload.Messages, 2)
				assert.Equal(t, "system", payload.Messages[0].Role)
				assert.Contains(t, payload.Messages[0].Content, "virtual teacher")
				assert.Equal(t, "gpt-4o", payload.Model)

				userPrompt := payload.Messages[1].Content
				slideText := userPrompt[strings.Index(userPrompt, "\n")+1:]

				responseWriter.WriteHeader(http.StatusOK)
				fmt.Fprintf(
					responseWriter,
					`{"choices":[{"message":{"role":"assistant","content":"  narrated: %s  "}}]}`,
					slideText,
				)
			},
		),
	)
}

func newGenerator(t *testing.T, baseURL string) *narration.Generator {
	t.Helper()

	return narration.New(baseURL, "llm-key", "gpt-4o", 0.7, 300, createTestLogger(t))
}

func TestGenerator_Generate_OnePerSlideInOrder(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	server := completionServer(t, &calls)
	defer server.Close()

	generator := newGenerator(t, server.URL)

	slides := []core.Slide{
		{Index: 1, Text: "alpha"},
		{Index: 2, Text: "beta"},
		{Index: 3, Text: "gamma"},
	}

	narrations := generator.Generate(context.Background(), slides)

	require.Len(t, narrations, 3)
	assert.Equal(t, "narrated: alpha", narrations[0])
	assert.Equal(t, "narrated: beta", narrations[1])
	assert.Equal(t, "narrated: gamma", narrations[2])
	assert.Equal(t, int32(3), calls.Load())
}

func TestGenerator_Generate_BlankSlideUsesPlaceholder(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	server := completionServer(t, &calls)
	defer server.Close()

	generator := newGenerator(t, server.URL)

	slides := []core.Slide{
		{Index: 1, Text: "   \n\t "},
		{Index: 2, Text: "real content"},
	}

	narrations := generator.Generate(context.Background(), slides)

	require.Len(t, narrations, 2)
	assert.Equal(t, "This is slide 1, which mainly presents visual content.", narrations[0])
	assert.Equal(t, "narrated: real content", narrations[1])
	assert.Equal(t, int32(1), calls.Load(), "blank slides must not issue remote calls")
}

func TestGenerator_Generate_RemoteFailureFallsBack(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(
		http.HandlerFunc(
			func(responseWriter http.ResponseWriter, _ *http.Request) {
				responseWriter.WriteHeader(http.StatusInternalServerError)
			},
		),
	)
	defer server.Close()

	generator := newGenerator(t, server.URL)

	longText := strings.Repeat("x", 80)
	slides := []core.Slide{
		{Index: 1, Text: "short text"},
		{Index: 2, Text: longText},
	}

	narrations := generator.Generate(context.Background(), slides)

	require.Len(t, narrations, 2)
	assert.Equal(t, "Slide 1 content: short text...", narrations[0])
	assert.Equal(t, "Slide 2 content: "+strings.Repeat("x", 50)+"...", narrations[1])
}

func TestGenerator_Generate_NoChoicesFallsBack(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(
		http.HandlerFunc(
			func(responseWriter http.ResponseWriter, _ *http.Request) {
				responseWriter.WriteHeader(http.StatusOK)
				_, _ = responseWriter.Write([]byte(`{"choices":[]}`))
			},
		),
	)
	defer server.Close()

	generator := newGenerator(t, server.URL)

	narrations := generator.Generate(context.Background(), []core.Slide{{Index: 4, Text: "content"}})

	require.Len(t, narrations, 1)
	assert.Equal(t, "Slide 4 content: content...", narrations[0])
}
