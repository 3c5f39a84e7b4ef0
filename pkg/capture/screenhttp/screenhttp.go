// Package screenhttp implements capture.ScreenSource against an HTTP
// endpoint that returns one PNG per request — typically the overlay
// companion exposing the interview window.
package screenhttp

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/auricle-ai/auricle/pkg/capture"
)

// maxFrameBytes caps a single screen grab. Anything larger than 16 MiB is
// not a screenshot.
const maxFrameBytes = 16 << 20

// Source fetches screen frames over HTTP.
type Source struct {
	url        string
	httpClient *http.Client
}

// Compile-time interface check.
var _ capture.ScreenSource = (*Source)(nil)

// Option is a functional option for Source.
type Option func(*Source)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Source) { s.httpClient = c }
}

// New creates a Source fetching from url.
func New(url string, opts ...Option) (*Source, error) {
	if url == "" {
		return nil, fmt.Errorf("screenhttp: url is required")
	}
	s := &Source{
		url:        url,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Capture fetches one frame. Network and server errors are transient (the
// caller skips the tick); a 401 or 403 is a permanent permission fault and is
// wrapped with [capture.ErrScreenFault].
func (s *Source) Capture(ctx context.Context) (capture.ScreenFrame, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return capture.ScreenFrame{}, fmt.Errorf("screenhttp: build request: %w", err)
	}
	req.Header.Set("Accept", "image/png")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return capture.ScreenFrame{}, fmt.Errorf("screenhttp: fetch: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		// The companion revoked access; retrying will not bring it back.
		return capture.ScreenFrame{}, fmt.Errorf("screenhttp: status %d: %w", resp.StatusCode, capture.ErrScreenFault)
	default:
		return capture.ScreenFrame{}, fmt.Errorf("screenhttp: unexpected status %d", resp.StatusCode)
	}

	png, err := io.ReadAll(io.LimitReader(resp.Body, maxFrameBytes))
	if err != nil {
		return capture.ScreenFrame{}, fmt.Errorf("screenhttp: read body: %w", err)
	}
	return capture.ScreenFrame{PNG: png, Timestamp: time.Now()}, nil
}
