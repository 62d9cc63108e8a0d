package rasterize

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/book-expert/logger"

	"github.com/slidecast/deck2video/internal/core"
)

const (
	tempFilePattern = "deck2video-slide-*.png"
	filePermissions = 0o600

	assetNameFormat = "slide_%d.png"
)

// Log formats.
const (
	logFmtSlideFailed    = "Failed to process slide %d: %v"
	logFmtSlideProcessed = "Processed slide %d/%d"
	logFmtTempNotRemoved = "Failed to remove temp file '%s': %v"
)

// AssetUploader pushes one rendered image to the avatar platform, returning
// its opaque asset id.
type AssetUploader interface {
	UploadAsset(ctx context.Context, data []byte, name string) (string, error)
}

// Rasterizer renders deck slides to images and uploads them, isolating
// per-slide failures so one bad slide never aborts the batch.
type Rasterizer struct {
	render   *Client
	uploader AssetUploader
	workers  int
	log      *logger.Logger
}

// New creates a Rasterizer processing up to workers slides concurrently.
func New(render *Client, uploader AssetUploader, workers int, log *logger.Logger) *Rasterizer {
	if workers < 1 {
		workers = 1
	}

	return &Rasterizer{
		render:   render,
		uploader: uploader,
		workers:  workers,
		log:      log,
	}
}

// RasterizeAll renders and uploads every slide. Slides are processed
// concurrently with one result slot per slide, so the returned assets are
// ordered by ascending slide index regardless of completion order. A slide
// whose render or upload fails is logged and skipped; the result may
// therefore be shorter than the input. It returns an error only when the
// whole batch is aborted by context cancellation.
func (r *Rasterizer) RasterizeAll(
	ctx context.Context,
	document []byte,
	slides []core.Slide,
) ([]core.SlideAsset, error) {
	slots := make([]*core.SlideAsset, len(slides))

	var waitGroup sync.WaitGroup

	workerPool := make(chan struct{}, r.workers)

	for slot, slide := range slides {
		waitGroup.Add(1)

		go func(slot int, slide core.Slide) {
			defer waitGroup.Done()

			workerPool <- struct{}{}

			defer func() { <-workerPool }()

			asset, err := r.rasterizeSlide(ctx, document, slide)
			if err != nil {
				r.log.Error(logFmtSlideFailed, slide.Index, err)

				return
			}

			slots[slot] = &asset
			r.log.Info(logFmtSlideProcessed, slide.Index, len(slides))
		}(slot, slide)
	}

	waitGroup.Wait()
	close(workerPool)

	if ctx.Err() != nil {
		return nil, fmt.Errorf("rasterization aborted: %w", ctx.Err())
	}

	assets := make([]core.SlideAsset, 0, len(slides))

	for _, slot := range slots {
		if slot != nil {
			assets = append(assets, *slot)
		}
	}

	return assets, nil
}

// rasterizeSlide renders one slide, stages the image through a scoped temp
// file, and uploads it. The temp artifact is removed on every exit path.
func (r *Rasterizer) rasterizeSlide(
	ctx context.Context,
	document []byte,
	slide core.Slide,
) (core.SlideAsset, error) {
	imageData, renderErr := r.render.RenderSlide(ctx, document, slide.Index)
	if renderErr != nil {
		return core.SlideAsset{}, renderErr
	}

	stagedData, stageErr := r.stageArtifact(imageData)
	if stageErr != nil {
		return core.SlideAsset{}, stageErr
	}

	assetName := fmt.Sprintf(assetNameFormat, slide.Index)

	assetID, uploadErr := r.uploader.UploadAsset(ctx, stagedData, assetName)
	if uploadErr != nil {
		return core.SlideAsset{}, fmt.Errorf("failed to upload %s: %w", assetName, uploadErr)
	}

	return core.SlideAsset{
		SlideIndex: slide.Index,
		AssetID:    assetID,
	}, nil
}

// stageArtifact writes the rendered image to a temp file and reads it back,
// guaranteeing the artifact is released whether or not the slide succeeds.
func (r *Rasterizer) stageArtifact(imageData []byte) ([]byte, error) {
	tempFile, createErr := os.CreateTemp("", tempFilePattern)
	if createErr != nil {
		return nil, fmt.Errorf("failed to create temp file for rendered slide: %w", createErr)
	}

	defer func() {
		removeErr := os.Remove(tempFile.Name())
		if removeErr != nil {
			r.log.Warn(logFmtTempNotRemoved, tempFile.Name(), removeErr)
		}
	}()

	closeErr := tempFile.Close()
	if closeErr != nil {
		return nil, fmt.Errorf("failed to close temp file: %w", closeErr)
	}

	writeErr := os.WriteFile(tempFile.Name(), imageData, filePermissions)
	if writeErr != nil {
		return nil, fmt.Errorf("failed to write rendered slide: %w", writeErr)
	}

	stagedData, readErr := os.ReadFile(tempFile.Name())
	if readErr != nil {
		return nil, fmt.Errorf("failed to read rendered slide back: %w", readErr)
	}

	return stagedData, nil
}
