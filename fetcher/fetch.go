// Package fetcher downloads source pages and locates an image already present on them.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/net/html/charset"
)

// Options configures page retrieval.
type Options struct {
	UserAgents       []string
	Referer          string
	AcceptLanguage   string
	ArticleTimeout   time.Duration
	ImageTimeout     time.Duration
	MaxResponseBytes int64
	// AllowPrivate lets requests reach loopback and private networks. Tests only.
	AllowPrivate bool
}

// NetworkError reports a failed page fetch: a transport failure or a non-2xx status.
type NetworkError struct {
	URL    string
	Status int
	Err    error
}

func (e *NetworkError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("HTTP %d for %s", e.Status, e.URL)
	}
	return fmt.Sprintf("request to %s failed: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

type Fetcher struct {
	opts   Options
	logger zerolog.Logger
	// pick returns an index in [0, n); swapped in tests for determinism.
	pick func(n int) int
}

func New(opts Options, logger zerolog.Logger) *Fetcher {
	if opts.ArticleTimeout <= 0 {
		opts.ArticleTimeout = 15 * time.Second
	}
	if opts.ImageTimeout <= 0 {
		opts.ImageTimeout = 10 * time.Second
	}
	return &Fetcher{
		opts:   opts,
		logger: logger.With().Str("component", "fetcher").Logger(),
		pick:   rand.Intn,
	}
}

// FetchHTML downloads an article page with the article timeout and returns its UTF-8 HTML
// and the parsed URL (used later as the base for relative links).
func (f *Fetcher) FetchHTML(ctx context.Context, rawURL string) ([]byte, *url.URL, error) {
	return f.fetch(ctx, rawURL, f.opts.ArticleTimeout)
}

func (f *Fetcher) fetch(ctx context.Context, rawURL string, timeout time.Duration) ([]byte, *url.URL, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, nil, &NetworkError{URL: rawURL, Err: fmt.Errorf("invalid URL: %w", err)}
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, nil, &NetworkError{URL: rawURL, Err: fmt.Errorf("unsupported scheme %q", parsed.Scheme)}
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, nil, &NetworkError{URL: rawURL, Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	if f.opts.AcceptLanguage != "" {
		req.Header.Set("Accept-Language", f.opts.AcceptLanguage)
	}
	if f.opts.Referer != "" {
		req.Header.Set("Referer", f.opts.Referer)
	}

	resp, err := newClient(timeout, f.opts.AllowPrivate).Do(req)
	if err != nil {
		return nil, nil, &NetworkError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, nil, &NetworkError{URL: rawURL, Status: resp.StatusCode}
	}

	body, err := charset.NewReader(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, nil, &NetworkError{URL: rawURL, Err: fmt.Errorf("decoding response: %w", err)}
	}
	data, err := readLimited(body, f.opts.MaxResponseBytes)
	if err != nil {
		return nil, nil, &NetworkError{URL: rawURL, Err: fmt.Errorf("reading response: %w", err)}
	}

	f.logger.Debug().Str("url", rawURL).Int("bytes", len(data)).Msg("fetched page")
	return data, parsed, nil
}

func (f *Fetcher) userAgent() string {
	if len(f.opts.UserAgents) == 0 {
		return "Mozilla/5.0"
	}
	return f.opts.UserAgents[f.pick(len(f.opts.UserAgents))]
}

// readLimited reads up to limit bytes from r and fails if there is more. A limit of 0
// reads everything.
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("response body exceeds maximum allowed size (%d bytes)", limit)
	}
	return data, nil
}
