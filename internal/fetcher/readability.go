package fetcher

import (
	"bytes"
	"context"
	"log/slog"
	"net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"

	"github.com/IshaanNene/newsgoat/internal/types"
)

// ReadabilityExtractor fetches a page and extracts its article text in
// process.
type ReadabilityExtractor struct {
	fetcher Fetcher
	logger  *slog.Logger
}

// NewReadabilityExtractor creates an extractor that fetches through f.
func NewReadabilityExtractor(f Fetcher, logger *slog.Logger) *ReadabilityExtractor {
	return &ReadabilityExtractor{
		fetcher: f,
		logger:  logger.With("component", "readability_extractor"),
	}
}

// ExtractBody fetches rawURL and returns the article text.
func (e *ReadabilityExtractor) ExtractBody(ctx context.Context, rawURL string) (string, error) {
	resp, err := e.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return "", helperError(rawURL, e.Type(), err)
	}
	body, err := articleText(resp.Body, rawURL)
	if err != nil {
		return "", helperError(rawURL, e.Type(), err)
	}
	return body, nil
}

// Close is a no-op; the fetcher is owned by the caller.
func (e *ReadabilityExtractor) Close() error { return nil }

// Type returns the extractor type identifier.
func (e *ReadabilityExtractor) Type() string { return "readability" }

// articleText runs readability over an HTML document.
func articleText(html []byte, pageURL string) (string, error) {
	if len(bytes.TrimSpace(html)) == 0 {
		return "", types.ErrEmptyResponse
	}
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return "", types.ErrInvalidURL
	}
	article, err := readability.FromReader(bytes.NewReader(html), parsed)
	if err != nil {
		return "", &types.ParseError{URL: pageURL, Selector: "readability", Err: err}
	}
	text := strings.TrimSpace(article.TextContent)
	if text == "" {
		text = strings.TrimSpace(article.Excerpt)
	}
	if text == "" {
		return "", types.ErrNoBody
	}
	return text, nil
}
