package avatar

import (
	"context"

	"github.com/slidecast/deck2video/internal/core"
)

// Service composes the client, job builder, and poller into the
// core.VideoService used by the pipeline.
type Service struct {
	client *Client
	poller *Poller
	opts   JobOptions
}

// NewService creates a Service submitting jobs with the given fixed options.
func NewService(client *Client, poller *Poller, opts JobOptions) *Service {
	return &Service{
		client: client,
		poller: poller,
		opts:   opts,
	}
}

// Submit builds the scene list from narrations and assets and creates the
// video job, returning the platform's video id.
func (s *Service) Submit(
	ctx context.Context,
	narrations []string,
	assets []core.SlideAsset,
	title string,
) (string, error) {
	job := BuildVideoJob(narrations, assets, title, s.opts)

	return s.client.CreateVideo(ctx, job)
}

// AwaitCompletion waits for the submitted job and returns the video URL.
func (s *Service) AwaitCompletion(ctx context.Context, videoID string) (string, error) {
	return s.poller.AwaitCompletion(ctx, videoID)
}
