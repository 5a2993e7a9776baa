package description

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/novaremote/internal/logging"
	"github.com/muurk/novaremote/internal/neterr"
)

const (
	// DefaultTimeout bounds a single description fetch
	DefaultTimeout = 3 * time.Second

	// DefaultMaxBodySize caps how much of a description document is read
	DefaultMaxBodySize = 1 << 20
)

// Client retrieves device description documents over HTTP
type Client struct {
	// HTTPClient is the underlying HTTP client
	HTTPClient *http.Client

	// MaxBodySize is the maximum number of bytes read from a response body
	MaxBodySize int64
}

// NewClient creates a description client with default settings
func NewClient() *Client {
	return &Client{
		HTTPClient:  &http.Client{Timeout: DefaultTimeout},
		MaxBodySize: DefaultMaxBodySize,
	}
}

// SetTimeout sets the HTTP request timeout
func (c *Client) SetTimeout(timeout time.Duration) {
	c.HTTPClient.Timeout = timeout
}

// Fetch performs a single GET of url and returns the body as text.
// Transport failures and non-2xx statuses are returned as *neterr.Error.
// There are no retries; discovery discards the candidate instead.
func (c *Client) Fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request for %s: %w", url, err)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", neterr.Classify("fetch", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", neterr.NewHTTPError(url, resp.StatusCode)
	}

	limit := c.MaxBodySize
	if limit <= 0 {
		limit = DefaultMaxBodySize
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return "", neterr.Classify("fetch", url, err)
	}

	logging.LogPayload("Description fetched", body, zap.String("url", url), zap.Int("status", resp.StatusCode))
	return string(body), nil
}

// Describe fetches the document at url and parses it
func (c *Client) Describe(ctx context.Context, url string) (*Description, error) {
	text, err := c.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	return Parse(text)
}
