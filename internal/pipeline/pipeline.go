// Package pipeline orchestrates one deck-to-video conversion: fetch the deck,
// rasterize its slides, generate narration, submit the video job, and wait
// for the rendered result.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/book-expert/logger"

	"github.com/slidecast/deck2video/internal/core"
)

const defaultTitleFormat = "Deck conversion: %s"

// Structural errors, fatal to the whole conversion.
var (
	// ErrDeckNotFound indicates the deck id has no object in the blob store.
	ErrDeckNotFound = errors.New("deck not found")
	// ErrEmptyDeck indicates the document contains no slides.
	ErrEmptyDeck = errors.New("deck contains no slides")
	// ErrNoSlidesConverted indicates every slide failed rasterization or upload.
	ErrNoSlidesConverted = errors.New("no slides were converted to images")
)

// Pipeline sequences the conversion stages. It holds no per-run state; all
// intermediate results are threaded through Convert as values, so one
// Pipeline may serve any number of independent conversions.
type Pipeline struct {
	store      core.BlobStore
	parser     core.DeckParser
	rasterizer core.SlideRasterizer
	narrator   core.NarrationGenerator
	video      core.VideoService
	log        *logger.Logger
}

// New creates a conversion pipeline from its collaborating services.
func New(
	store core.BlobStore,
	parser core.DeckParser,
	rasterizer core.SlideRasterizer,
	narrator core.NarrationGenerator,
	video core.VideoService,
	log *logger.Logger,
) *Pipeline {
	return &Pipeline{
		store:      store,
		parser:     parser,
		rasterizer: rasterizer,
		narrator:   narrator,
		video:      video,
		log:        log,
	}
}

// Convert runs the full conversion for one deck. An empty title selects the
// default title; maxSlides > 0 limits how many slides are processed.
func (p *Pipeline) Convert(
	ctx context.Context,
	deckID, title string,
	maxSlides int,
) (*core.ConversionResult, error) {
	p.log.Info("Starting conversion of deck %s", deckID)

	slides, document, err := p.loadDeck(ctx, deckID, maxSlides)
	if err != nil {
		return nil, err
	}

	assets, err := p.rasterizer.RasterizeAll(ctx, document, slides)
	if err != nil {
		return nil, fmt.Errorf("rasterization failed: %w", err)
	}

	if len(assets) == 0 {
		return nil, ErrNoSlidesConverted
	}

	// Narrations are generated for exactly the slides that produced assets,
	// paired by slide index. A mid-deck rasterization failure therefore
	// never shifts a narration onto another slide's image.
	narrations := p.narrator.Generate(ctx, pairSlides(slides, assets))

	if title == "" {
		title = fmt.Sprintf(defaultTitleFormat, deckID)
	}

	videoID, err := p.video.Submit(ctx, narrations, assets, title)
	if err != nil {
		return nil, fmt.Errorf("job submission failed: %w", err)
	}

	videoURL, err := p.video.AwaitCompletion(ctx, videoID)
	if err != nil {
		return nil, err
	}

	p.log.Info("Deck %s converted: video %s, %d slides", deckID, videoID, len(narrations))

	return &core.ConversionResult{
		VideoID:         videoID,
		VideoURL:        videoURL,
		SlidesProcessed: len(narrations),
		Title:           title,
	}, nil
}

// loadDeck fetches and parses the deck, applying the slide limit.
func (p *Pipeline) loadDeck(
	ctx context.Context,
	deckID string,
	maxSlides int,
) ([]core.Slide, []byte, error) {
	document, err := p.store.Download(ctx, deckID)
	if err != nil {
		p.log.Error("Failed to fetch deck %s: %v", deckID, err)

		return nil, nil, fmt.Errorf("%w: %s", ErrDeckNotFound, deckID)
	}

	slides, err := p.parser.Parse(document)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse deck %s: %w", deckID, err)
	}

	if len(slides) == 0 {
		return nil, nil, fmt.Errorf("%w: %s", ErrEmptyDeck, deckID)
	}

	if maxSlides > 0 && len(slides) > maxSlides {
		slides = slides[:maxSlides]
	}

	return slides, document, nil
}

// pairSlides returns, in asset order, the slides whose rasterization
// succeeded. Assets reference slides by index, so the pairing survives
// sparse asset lists.
func pairSlides(slides []core.Slide, assets []core.SlideAsset) []core.Slide {
	byIndex := make(map[int]core.Slide, len(slides))
	for _, slide := range slides {
		byIndex[slide.Index] = slide
	}

	paired := make([]core.Slide, 0, len(assets))
	for _, asset := range assets {
		paired = append(paired, byIndex[asset.SlideIndex])
	}

	return paired
}
