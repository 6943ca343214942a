package catapi

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hana/catnip/internal/logger"
)

// Breed is the breed metadata attached to some images by the source.
type Breed struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Image is one image record as returned by the external image source.
// The id is stable across repeated fetches of the same image.
type Image struct {
	ID     string  `json:"id"`
	URL    string  `json:"url"`
	Width  int     `json:"width"`
	Height int     `json:"height"`
	Breeds []Breed `json:"breeds,omitempty"`
}

// Client wraps the external image search API (TheCatAPI-compatible).
type Client struct {
	client  *resty.Client
	baseURL string
	apiKey  string
}

// ClientConfig holds configuration for the image source client.
type ClientConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// NewClient creates a new image source client.
// Parameters:
//   - cfg: client configuration including base URL and API key.
// Returns:
//   - *Client: initialized client wrapper.
func NewClient(cfg *ClientConfig) *Client {
	client := resty.New()
	client.SetHeader("Content-Type", "application/json")
	// Bounded timeout so a stuck upstream fails the call instead of hanging
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	client.SetTimeout(timeout)

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.thecatapi.com/v1"
	}

	return &Client{
		client:  client,
		baseURL: baseURL,
		apiKey:  cfg.APIKey,
	}
}

// Search fetches a batch of images from the source. All failure modes
// degrade to an empty slice: a missing API key, an upstream error, or a
// malformed response is logged and never surfaced to the caller, so image
// display is never blocked by the source being unavailable.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - limit: maximum number of images to request.
//   - mimeTypes: comma-separated mime type filter, empty for all.
// Returns:
//   - []Image: fetched images, empty on any failure.
func (c *Client) Search(ctx context.Context, limit int, mimeTypes string) []Image {
	log := logger.FromContext(ctx).WithField(logger.FieldComponent, "catapi")

	if c.apiKey == "" {
		log.Warn("Image source API key is not set, returning empty result")
		return []Image{}
	}

	if limit <= 0 {
		limit = 10
	}

	var images []Image
	req := c.client.R().
		SetContext(ctx).
		SetHeader("x-api-key", c.apiKey).
		SetQueryParam("limit", strconv.Itoa(limit)).
		SetResult(&images)
	if mimeTypes != "" {
		req.SetQueryParam("mime_types", mimeTypes)
	}

	resp, err := req.Get(c.baseURL + "/images/search")
	if err != nil {
		log.WithError(err).Error("Failed to fetch images from source")
		return []Image{}
	}
	if resp.IsError() {
		log.WithFields(logger.Fields{
			logger.FieldStatus: resp.StatusCode(),
		}).Error("Image source returned an error response")
		return []Image{}
	}

	return images
}

// Download fetches the raw bytes of one image, used by the mirror pipeline.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - url: absolute image URL.
// Returns:
//   - []byte: image bytes.
//   - string: content type reported by the source.
//   - error: non-nil if the download fails.
func (c *Client) Download(ctx context.Context, url string) ([]byte, string, error) {
	resp, err := c.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, "", fmt.Errorf("failed to download image: %w", err)
	}
	if resp.IsError() {
		return nil, "", fmt.Errorf("image download returned status %d", resp.StatusCode())
	}
	return resp.Body(), resp.Header().Get("Content-Type"), nil
}
