// Package rasterize converts deck slides to images via the remote slide
// render service and uploads them to the avatar platform.
package rasterize

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/slidecast/deck2video/internal/httpretry"
)

// Render service endpoint and parameters.
const (
	apiRenderSlide = "/v3/slides/render"
	renderFormat   = "png"
)

// HTTP headers for render service authentication.
const (
	headerClientID     = "X-Client-Id"
	headerClientSecret = "X-Client-Secret"
)

// ErrEmptyRender indicates the render service returned a 2xx response with no
// image bytes.
var ErrEmptyRender = errors.New("render produced empty image")

// Client talks to the slide render service. One call renders one slide of
// the posted document to an image.
type Client struct {
	api          *httpretry.Client
	baseURL      string
	clientID     string
	clientSecret string
}

// NewClient creates a render service client.
func NewClient(api *httpretry.Client, baseURL, clientID, clientSecret string) *Client {
	return &Client{
		api:          api,
		baseURL:      baseURL,
		clientID:     clientID,
		clientSecret: clientSecret,
	}
}

// RenderSlide posts the document and returns the PNG bytes of the slide at
// the given 1-based index.
func (c *Client) RenderSlide(ctx context.Context, document []byte, slideIndex int) ([]byte, error) {
	renderURL := fmt.Sprintf(
		"%s%s?slide=%d&format=%s",
		c.baseURL, apiRenderSlide, slideIndex, renderFormat,
	)

	header := http.Header{}
	header.Set(headerClientID, c.clientID)
	header.Set(headerClientSecret, c.clientSecret)
	header.Set("Content-Type", "application/octet-stream")

	resp, err := c.api.Do(ctx, http.MethodPost, renderURL, document, header)
	if err != nil {
		return nil, fmt.Errorf("failed to render slide %d: %w", slideIndex, err)
	}

	if len(resp.Body) == 0 {
		return nil, fmt.Errorf("%w: slide %d", ErrEmptyRender, slideIndex)
	}

	return resp.Body, nil
}
