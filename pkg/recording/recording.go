// Package recording fetches caller recordings from the telephony
// provider's media URLs.
package recording

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/relayvoice/relay/internal/httpc"
)

// DefaultTimeout bounds a single recording fetch.
const DefaultTimeout = 15 * time.Second

// ErrEmptyURL indicates the webhook carried no recording URL.
var ErrEmptyURL = errors.New("recording: empty URL")

// StatusError indicates the media server answered with a non-2xx status.
// Treated as fatal by callers since the recording will never appear.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("recording: fetch %s: status %d", e.URL, e.StatusCode)
}

// Downloader fetches recording audio over HTTP.
type Downloader struct {
	client *http.Client
	logger *slog.Logger
}

// Option configures a Downloader.
type Option func(*Downloader)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(d *Downloader) { d.client = client }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Downloader) { d.logger = logger.With("component", "recording") }
}

// NewDownloader creates a recording downloader.
func NewDownloader(opts ...Option) *Downloader {
	d := &Downloader{
		client: httpc.NewClient(DefaultTimeout),
		logger: slog.Default().With("component", "recording"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Download fetches the recording at url and returns its bytes.
// Returns a StatusError for non-2xx responses.
func (d *Downloader) Download(ctx context.Context, url string) ([]byte, error) {
	if url == "" {
		return nil, ErrEmptyURL
	}

	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("recording: create request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("recording: fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("recording: read body: %w", err)
	}

	d.logger.Debug("downloaded recording",
		"url", url,
		"bytes", len(audio),
		"latency_ms", time.Since(start).Milliseconds(),
	)

	return audio, nil
}
