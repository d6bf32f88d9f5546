// Package classifier turns raw fetch outcomes into validated HTML documents
// or typed fetch failures.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/guugle/internal/crawler"
	"github.com/JakeFAU/guugle/internal/linkextract"
)

// Schemes that never point at a fetchable page even without "://".
var opaqueSchemes = []string{"mailto:", "javascript:", "tel:", "data:"}

// Classifier implements crawler.Classifier on top of a Fetcher.
type Classifier struct {
	fetcher crawler.Fetcher
	limiter crawler.Limiter
	logger  *zap.Logger
}

var _ crawler.Classifier = (*Classifier)(nil)

// New constructs a Classifier. limiter may be nil.
func New(fetcher crawler.Fetcher, limiter crawler.Limiter, logger *zap.Logger) *Classifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{
		fetcher: fetcher,
		limiter: limiter,
		logger:  logger.Named("classifier"),
	}
}

// NormalizeURL prefixes scheme-less URLs with http:// and validates the result.
func NormalizeURL(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	lower := strings.ToLower(trimmed)
	for _, scheme := range opaqueSchemes {
		if strings.HasPrefix(lower, scheme) {
			return "", fmt.Errorf("unsupported scheme in %q", raw)
		}
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("missing host in %q", raw)
	}
	return u.String(), nil
}

// Classify fetches rawURL and validates the response. Failures are returned
// as *crawler.FetchError, except context cancellation which is returned as is.
func (c *Classifier) Classify(ctx context.Context, rawURL string) (crawler.Document, error) {
	target, err := NormalizeURL(rawURL)
	if err != nil {
		return crawler.Document{}, &crawler.FetchError{Kind: crawler.InvalidURL, URL: rawURL, Err: err}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, target); err != nil {
			return crawler.Document{}, fmt.Errorf("wait for %s: %w", target, err)
		}
	}

	resp, err := c.fetcher.Fetch(ctx, target)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return crawler.Document{}, fmt.Errorf("fetch %s: %w", target, ctxErr)
		}
		return crawler.Document{}, &crawler.FetchError{Kind: crawler.TransportFailure, URL: target, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return crawler.Document{}, &crawler.FetchError{
			Kind:       crawler.BadStatus,
			URL:        target,
			StatusCode: resp.StatusCode,
		}
	}

	if ct := resp.Headers.Get("Content-Type"); ct != "" && !isHTMLMediaType(ct) {
		return crawler.Document{}, &crawler.FetchError{
			Kind:       crawler.NotHTML,
			URL:        target,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("content type %q", ct),
		}
	}

	// NUL is valid UTF-8 but not storable in Postgres TEXT.
	text := strings.ReplaceAll(strings.ToValidUTF8(string(resp.Body), "\uFFFD"), "\x00", "\uFFFD")
	if !linkextract.IsHTML(text) {
		return crawler.Document{}, &crawler.FetchError{
			Kind:       crawler.NotHTML,
			URL:        target,
			StatusCode: resp.StatusCode,
			Err:        errors.New("missing html doctype"),
		}
	}

	c.logger.Debug("classified html document",
		zap.String("url", target),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(resp.Body)),
		zap.Duration("duration", resp.Duration),
	)
	return crawler.Document{URL: target, Text: text}, nil
}

func isHTMLMediaType(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}
