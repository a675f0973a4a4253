package staticmap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/a-ayari03/POOL-AI/internal/core/domain"
)

// Client downloads rendered images from a static-map API.
type Client struct {
	http     *http.Client
	maxBytes int64
}

// NewClient creates a Client with a per-request timeout and a response size cap.
func NewClient(timeout time.Duration, maxBytes int64) *Client {
	return &Client{
		http:     &http.Client{Timeout: timeout},
		maxBytes: maxBytes,
	}
}

// Fetch performs a single GET. Anything but a 200 image response is an error.
func (c *Client) Fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("get %s: %w", redactKey(rawURL), scrub(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, "", &domain.UpstreamError{
			URL:    redactKey(rawURL),
			Status: resp.StatusCode,
			Body:   strings.TrimSpace(string(body)),
		}
	}

	contentType := resp.Header.Get("Content-Type")
	mediaType, _, _ := mime.ParseMediaType(contentType)
	if !strings.HasPrefix(mediaType, "image/") {
		return nil, "", fmt.Errorf("%w: %q", domain.ErrUnexpectedContent, contentType)
	}

	r := io.Reader(resp.Body)
	if c.maxBytes > 0 {
		r = io.LimitReader(resp.Body, c.maxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, "", fmt.Errorf("read image: %w", err)
	}
	if c.maxBytes > 0 && int64(len(data)) > c.maxBytes {
		return nil, "", fmt.Errorf("%w: more than %d bytes", domain.ErrImageTooLarge, c.maxBytes)
	}
	return data, mediaType, nil
}

// redactKey hides the API key so URLs can be logged.
func redactKey(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid url>"
	}
	q := u.Query()
	if q.Has("key") {
		q.Set("key", "REDACTED")
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// scrub strips the raw URL, which embeds the key, from transport errors.
func scrub(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return uerr.Err
	}
	return err
}
