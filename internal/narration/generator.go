// Package narration produces per-slide narration text via a chat-completions
// language model, with deterministic fallbacks so the pipeline never stalls
// on text generation.
package narration

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/book-expert/logger"

	"github.com/slidecast/deck2video/internal/core"
)

// API endpoint and headers.
const (
	apiChatCompletions = "/v1/chat/completions"

	headerAuthorization = "Authorization"
	headerContentType   = "Content-Type"
	contentTypeJSON     = "application/json"
)

// Roles and prompts.
const (
	roleSystem = "system"
	roleUser   = "user"

	systemPrompt = "You are a virtual teacher. Explain the slide content in concise, " +
		"easy to follow language with a professional, friendly tone."
	userPromptFormat = "Write the narration for the following slide text:\n%s"
)

// Deterministic substitutes: the placeholder is used for blank slides without
// any remote call, the fallback when the remote call fails.
const (
	placeholderFormat  = "This is slide %d, which mainly presents visual content."
	fallbackFormat     = "Slide %d content: %s..."
	fallbackTextLength = 50
)

const defaultRequestTimeout = 60 * time.Second

// ErrNoChoices indicates a completion response without any choices.
var ErrNoChoices = errors.New("completion response contains no choices")

// Generator calls the language-model service once per non-blank slide.
type Generator struct {
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
	log         *logger.Logger
}

// New creates a narration generator.
func New(baseURL, apiKey, model string, temperature float64, maxTokens int, log *logger.Logger) *Generator {
	return &Generator{
		httpClient:  &http.Client{Timeout: defaultRequestTimeout},
		baseURL:     baseURL,
		apiKey:      apiKey,
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
		log:         log,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Generate returns exactly one narration per input slide, in input order.
// Blank slides get the fixed placeholder without a remote call; a failed
// remote call is absorbed into the degraded fallback built from the slide
// text. Per-slide failures never abort the batch.
func (g *Generator) Generate(ctx context.Context, slides []core.Slide) []string {
	g.log.Info("Generating narration for %d slides", len(slides))

	narrations := make([]string, 0, len(slides))

	for _, slide := range slides {
		if strings.TrimSpace(slide.Text) == "" {
			narrations = append(narrations, fmt.Sprintf(placeholderFormat, slide.Index))

			continue
		}

		narration, err := g.generateOne(ctx, slide.Text)
		if err != nil {
			g.log.Error("Failed to generate narration for slide %d: %v", slide.Index, err)
			narrations = append(narrations, fallbackNarration(slide))

			continue
		}

		narrations = append(narrations, narration)
	}

	return narrations
}

// generateOne performs one chat-completion call and returns the trimmed first
// choice.
func (g *Generator) generateOne(ctx context.Context, slideText string) (string, error) {
	payload := chatRequest{
		Model: g.model,
		Messages: []chatMessage{
			{Role: roleSystem, Content: systemPrompt},
			{Role: roleUser, Content: fmt.Sprintf(userPromptFormat, slideText)},
		},
		Temperature: g.temperature,
		MaxTokens:   g.maxTokens,
	}

	body, marshalErr := json.Marshal(payload)
	if marshalErr != nil {
		return "", fmt.Errorf("failed to marshal completion request: %w", marshalErr)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		g.baseURL+apiChatCompletions,
		bytes.NewReader(body),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create completion request: %w", err)
	}

	req.Header.Set(headerContentType, contentTypeJSON)
	req.Header.Set(headerAuthorization, "Bearer "+g.apiKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)

		return "", fmt.Errorf("completion service returned %s: %s", resp.Status, string(respBody))
	}

	var parsed chatResponse

	decodeErr := json.NewDecoder(resp.Body).Decode(&parsed)
	if decodeErr != nil {
		return "", fmt.Errorf("failed to decode completion response: %w", decodeErr)
	}

	if len(parsed.Choices) == 0 {
		return "", ErrNoChoices
	}

	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

// fallbackNarration builds the degraded substitute from a bounded prefix of
// the slide text.
func fallbackNarration(slide core.Slide) string {
	text := slide.Text
	if len(text) > fallbackTextLength {
		text = text[:fallbackTextLength]
	}

	return fmt.Sprintf(fallbackFormat, slide.Index, text)
}
