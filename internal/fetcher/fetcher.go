// Package fetcher performs outbound fetches for scrapers. The Gate wraps
// raw fetchers with per-origin politeness and retry, and offers body
// extraction for pages that are not parsed natively.
package fetcher

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/IshaanNene/newsgoat/internal/config"
	"github.com/IshaanNene/newsgoat/internal/types"
)

// Fetcher is the interface for all raw fetcher implementations.
type Fetcher interface {
	// Fetch retrieves the content at rawURL.
	Fetch(ctx context.Context, rawURL string) (*types.Response, error)

	// Close releases any resources held by the fetcher.
	Close() error

	// Type returns the fetcher type identifier.
	Type() string
}

// BodyExtractor produces readable page text for a URL. Implementations
// return an error when no body is available.
type BodyExtractor interface {
	ExtractBody(ctx context.Context, rawURL string) (string, error)
	Close() error
	Type() string
}

// NewExtractor builds the body extractor selected by cfg.Extractor.Type.
func NewExtractor(cfg *config.Config, f Fetcher, logger *slog.Logger) (BodyExtractor, error) {
	switch cfg.Extractor.Type {
	case "command":
		return NewCommandExtractor(&cfg.Extractor, logger), nil
	case "readability", "":
		return NewReadabilityExtractor(f, logger), nil
	case "browser":
		return NewBrowserExtractor(cfg, logger), nil
	default:
		return nil, types.NewConfigError("extractor.type", "unknown extractor %q", cfg.Extractor.Type)
	}
}

func helperError(rawURL, helper string, err error) error {
	if _, ok := err.(*types.HelperError); ok {
		return err
	}
	return &types.HelperError{URL: rawURL, Helper: helper, Err: fmt.Errorf("%w: %v", types.ErrNoBody, err)}
}
