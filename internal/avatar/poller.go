package avatar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/book-expert/logger"
)

// Terminal job states as reported by the platform.
const (
	statusCompleted = "completed"
	statusSuccess   = "success"
	statusFailed    = "failed"
	statusError     = "error"
)

// ErrVideoGenerationFailed indicates the remote job reached a failed terminal
// state.
var ErrVideoGenerationFailed = errors.New("video generation failed")

// Poller waits for a submitted video job to reach a terminal state. The wait
// is bounded by a total timeout so a stuck remote job cannot hang the process
// forever, and it honors caller cancellation.
type Poller struct {
	client   *Client
	interval time.Duration
	timeout  time.Duration
	sleep    func(ctx context.Context, d time.Duration) error
	log      *logger.Logger
}

// NewPoller creates a poller querying the job every interval, giving up after
// timeout. A timeout of zero disables the deadline.
func NewPoller(client *Client, interval, timeout time.Duration, log *logger.Logger) *Poller {
	return &Poller{
		client:   client,
		interval: interval,
		timeout:  timeout,
		sleep:    sleepContext,
		log:      log,
	}
}

// AwaitCompletion polls the job status until it is done, failed, cancelled,
// or timed out. On success it returns the rendered video URL.
func (p *Poller) AwaitCompletion(ctx context.Context, videoID string) (string, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	p.log.Info("Waiting for video %s, polling every %s", videoID, p.interval)

	for {
		status, err := p.client.VideoStatus(ctx, videoID)
		if err != nil {
			return "", err
		}

		switch status.Status {
		case statusCompleted, statusSuccess:
			return status.VideoURL, nil
		case statusFailed, statusError:
			reason := status.Error
			if reason == "" {
				reason = "unknown error"
			}

			return "", fmt.Errorf("%w: %s", ErrVideoGenerationFailed, reason)
		default:
			p.log.Info("Video %s status: %s, still waiting", videoID, status.Status)
		}

		sleepErr := p.sleep(ctx, p.interval)
		if sleepErr != nil {
			return "", fmt.Errorf("wait for video %s aborted: %w", videoID, sleepErr)
		}
	}
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
