// Package avatar provides the client for the talking-avatar video platform:
// asset upload, video job submission, and job status polling.
package avatar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"path/filepath"

	"github.com/book-expert/logger"

	"github.com/slidecast/deck2video/internal/httpretry"
)

// API endpoints and paths.
const (
	apiUploadAsset = "/v1/asset"
	apiCreateVideo = "/v2/video/generate"
	apiVideoStatus = "/v1/video_status.get"
)

// HTTP headers.
const (
	headerAPIKey      = "X-Api-Key"
	headerContentType = "Content-Type"
	headerAccept      = "Accept"
	contentTypeJSON   = "application/json"
	contentTypePNG    = "image/png"
)

// Static errors. A 2xx response missing the expected field is a hard error:
// the platform answered successfully but the payload is unusable.
var (
	ErrMissingAssetID = errors.New("upload response contains no asset id")
	ErrMissingVideoID = errors.New("create response contains no video id")
)

// Client talks to the avatar platform. All calls go through the shared
// retrying HTTP client.
type Client struct {
	api       *httpretry.Client
	apiURL    string
	uploadURL string
	apiKey    string
	log       *logger.Logger
}

// NewClient creates an avatar platform client. apiURL serves job submission
// and status queries; uploadURL serves binary asset uploads.
func NewClient(api *httpretry.Client, apiURL, uploadURL, apiKey string, log *logger.Logger) *Client {
	return &Client{
		api:       api,
		apiURL:    apiURL,
		uploadURL: uploadURL,
		apiKey:    apiKey,
		log:       log,
	}
}

type uploadResponse struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

type createResponse struct {
	Data struct {
		VideoID string `json:"video_id"`
	} `json:"data"`
}

// JobStatus is one observation of a remote video job.
type JobStatus struct {
	Status   string `json:"status"`
	VideoURL string `json:"video_url"`
	Error    string `json:"error"`
}

type statusResponse struct {
	Data JobStatus `json:"data"`
}

// UploadAsset pushes one binary asset to the platform and returns the opaque
// asset id. The content type is inferred from the name's extension, falling
// back to image/png when unrecognized.
func (c *Client) UploadAsset(ctx context.Context, data []byte, name string) (string, error) {
	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		contentType = contentTypePNG
	}

	header := http.Header{}
	header.Set(headerAPIKey, c.apiKey)
	header.Set(headerContentType, contentType)

	resp, err := c.api.Do(ctx, http.MethodPost, c.uploadURL+apiUploadAsset, data, header)
	if err != nil {
		return "", fmt.Errorf("failed to upload asset %q: %w", name, err)
	}

	var parsed uploadResponse

	unmarshalErr := json.Unmarshal(resp.Body, &parsed)
	if unmarshalErr != nil {
		return "", fmt.Errorf("failed to parse upload response for %q: %w", name, unmarshalErr)
	}

	if parsed.Data.ID == "" {
		return "", fmt.Errorf("%w: %q", ErrMissingAssetID, name)
	}

	c.log.Info("Uploaded asset %s, id %s", name, parsed.Data.ID)

	return parsed.Data.ID, nil
}

// CreateVideo submits the assembled multi-scene job and returns the video id
// the platform assigned to it.
func (c *Client) CreateVideo(ctx context.Context, job VideoJob) (string, error) {
	payload, marshalErr := json.Marshal(job)
	if marshalErr != nil {
		return "", fmt.Errorf("failed to marshal video job: %w", marshalErr)
	}

	resp, err := c.api.Do(ctx, http.MethodPost, c.apiURL+apiCreateVideo, payload, c.jsonHeader())
	if err != nil {
		return "", fmt.Errorf("failed to submit video job: %w", err)
	}

	var parsed createResponse

	unmarshalErr := json.Unmarshal(resp.Body, &parsed)
	if unmarshalErr != nil {
		return "", fmt.Errorf("failed to parse create response: %w", unmarshalErr)
	}

	if parsed.Data.VideoID == "" {
		return "", ErrMissingVideoID
	}

	c.log.Info("Video job created, id %s, %d scenes", parsed.Data.VideoID, len(job.VideoInputs))

	return parsed.Data.VideoID, nil
}

// VideoStatus queries the current state of a submitted job.
func (c *Client) VideoStatus(ctx context.Context, videoID string) (JobStatus, error) {
	statusURL := fmt.Sprintf("%s%s?video_id=%s", c.apiURL, apiVideoStatus, url.QueryEscape(videoID))

	resp, err := c.api.Do(ctx, http.MethodGet, statusURL, nil, c.jsonHeader())
	if err != nil {
		return JobStatus{}, fmt.Errorf("failed to query status of video %s: %w", videoID, err)
	}

	var parsed statusResponse

	unmarshalErr := json.Unmarshal(resp.Body, &parsed)
	if unmarshalErr != nil {
		return JobStatus{}, fmt.Errorf("failed to parse status response for video %s: %w", videoID, unmarshalErr)
	}

	return parsed.Data, nil
}

func (c *Client) jsonHeader() http.Header {
	header := http.Header{}
	header.Set(headerAPIKey, c.apiKey)
	header.Set(headerContentType, contentTypeJSON)
	header.Set(headerAccept, contentTypeJSON)

	return header
}
