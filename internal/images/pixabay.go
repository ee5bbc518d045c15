package images

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrProviderBlocked means the image provider rejected our key; callers
// should open the circuit breaker.
var ErrProviderBlocked = errors.New("image provider blocked the request")

// Hit is one candidate image from a provider search.
type Hit struct {
	ID       int64  `json:"id"`
	Likes    int    `json:"likes"`
	Width    int    `json:"imageWidth"`
	Height   int    `json:"imageHeight"`
	LargeURL string `json:"largeImageURL"`
	WebURL   string `json:"webformatURL"`
}

// URL returns the preferred download URL for the hit.
func (h Hit) URL() string {
	if h.LargeURL != "" {
		return h.LargeURL
	}
	return h.WebURL
}

// PixabayClient searches Pixabay for horizontal stock photos.
type PixabayClient struct {
	client *resty.Client
	apiKey string
}

// backoff ladder applied between 429 retries
var searchBackoff = []time.Duration{200 * time.Millisecond, 600 * time.Millisecond, 1200 * time.Millisecond}

// NewPixabayClient creates a PixabayClient.
// Parameters:
//   - apiKey: Pixabay API key.
// Returns:
//   - *PixabayClient: initialized client.
func NewPixabayClient(apiKey string) *PixabayClient {
	client := resty.New()
	client.SetBaseURL("https://pixabay.com/api/")
	client.SetTimeout(20 * time.Second)
	return &PixabayClient{client: client, apiKey: apiKey}
}

type pixabayResponse struct {
	TotalHits int   `json:"totalHits"`
	Hits      []Hit `json:"hits"`
}

// Search queries Pixabay for up to ten popular horizontal photos. 429s
// are retried over a short backoff ladder; 403 maps to ErrProviderBlocked.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - keyword: search phrase.
// Returns:
//   - []Hit: candidate images, possibly empty.
//   - error: ErrProviderBlocked on 403, other errors after retries.
func (p *PixabayClient) Search(ctx context.Context, keyword string) ([]Hit, error) {
	var lastErr error
	sleptHint := false
	for attempt := 0; attempt <= len(searchBackoff); attempt++ {
		// A Retry-After sleep already paced this attempt; the ladder
		// delay would just double the wait.
		if attempt > 0 && !sleptHint {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(searchBackoff[attempt-1]):
			}
		}
		sleptHint = false

		var body pixabayResponse
		resp, err := p.client.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"key":         p.apiKey,
				"q":           keyword,
				"image_type":  "photo",
				"orientation": "horizontal",
				"safesearch":  "true",
				"order":       "popular",
				"per_page":    "10",
			}).
			SetResult(&body).
			Get("")
		if err != nil {
			lastErr = fmt.Errorf("failed to search pixabay: %w", err)
			continue
		}

		switch {
		case resp.StatusCode() == http.StatusForbidden:
			return nil, ErrProviderBlocked
		case resp.StatusCode() == http.StatusTooManyRequests:
			lastErr = fmt.Errorf("pixabay rate limited: HTTP 429")
			if wait := retryAfter(resp.Header().Get("Retry-After")); wait > 0 {
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(wait):
				}
				sleptHint = true
			}
			continue
		case resp.StatusCode() != http.StatusOK:
			return nil, fmt.Errorf("pixabay returned HTTP %d", resp.StatusCode())
		}

		return body.Hits, nil
	}
	return nil, lastErr
}

// retryAfter parses a Retry-After header, capped so a hostile value
// cannot stall the worker.
func retryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	secs, err := strconv.Atoi(header)
	if err != nil || secs <= 0 {
		return 0
	}
	if secs > 30 {
		secs = 30
	}
	return time.Duration(secs) * time.Second
}

// Download fetches image bytes with a size cap and content-type allowlist.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - url: image URL.
// Returns:
//   - []byte: image bytes.
//   - string: content type.
//   - error: non-nil on failure or rejected content.
func (p *PixabayClient) Download(ctx context.Context, url string) ([]byte, string, error) {
	resp, err := p.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, "", fmt.Errorf("failed to download image: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, "", fmt.Errorf("image download returned HTTP %d", resp.StatusCode())
	}
	ct := resp.Header().Get("Content-Type")
	if !allowedImageType(ct) {
		return nil, "", fmt.Errorf("rejected image content type %q", ct)
	}
	body := resp.Body()
	if len(body) > maxImageBytes {
		return nil, "", fmt.Errorf("image too large: %d bytes", len(body))
	}
	return body, ct, nil
}

const maxImageBytes = 10 << 20

func allowedImageType(ct string) bool {
	switch ct {
	case "image/jpeg", "image/png", "image/gif", "image/webp":
		return true
	}
	return false
}
