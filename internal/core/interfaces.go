// Package core defines the interfaces and transient domain types shared by
// the deck2video pipeline stages.
package core

import "context"

// BlobStore defines the interface for interacting with a key-value blob store.
type BlobStore interface {
	Download(ctx context.Context, key string) ([]byte, error)
	Upload(ctx context.Context, key string, data []byte) error
}

// Slide is one slide of a source deck. Index is 1-based and matches the
// slide's position in the source document; it is the correlation key between
// the rasterized image, the narration, and the final scene order.
type Slide struct {
	Index int
	Text  string
}

// SlideAsset pairs a slide index with the opaque asset id the avatar platform
// returned for that slide's rasterized image. A slide whose rasterization or
// upload failed produces no SlideAsset.
type SlideAsset struct {
	SlideIndex int
	AssetID    string
}

// ConversionResult is the terminal output of one pipeline run.
type ConversionResult struct {
	VideoID         string `json:"video_id"`
	VideoURL        string `json:"video_url"`
	SlidesProcessed int    `json:"slides_processed"`
	Title           string `json:"title"`
}

// DeckParser extracts the ordered slides of a source document.
type DeckParser interface {
	Parse(document []byte) ([]Slide, error)
}

// SlideRasterizer converts slides of a source document into uploaded image
// assets. The returned list is ordered by ascending slide index and may be
// shorter than the input when individual slides fail.
type SlideRasterizer interface {
	RasterizeAll(ctx context.Context, document []byte, slides []Slide) ([]SlideAsset, error)
}

// NarrationGenerator produces one narration string per input slide, in input
// order. Per-slide generation failures are absorbed into fallback text, so
// the result always has the same length as the input.
type NarrationGenerator interface {
	Generate(ctx context.Context, slides []Slide) []string
}

// VideoService submits a multi-scene video job to the avatar platform and
// waits for the rendered video.
type VideoService interface {
	Submit(ctx context.Context, narrations []string, assets []SlideAsset, title string) (string, error)
	AwaitCompletion(ctx context.Context, videoID string) (string, error)
}
