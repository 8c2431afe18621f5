package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/IshaanNene/newsgoat/internal/config"
)

// BrowserExtractor renders pages in headless Chromium and extracts the
// article text of the rendered DOM. The browser is launched on first use.
type BrowserExtractor struct {
	timeout    time.Duration
	userAgents []string
	logger     *slog.Logger

	mu      sync.Mutex
	browser *rod.Browser
	uaIndex int
}

// NewBrowserExtractor creates a browser-backed extractor.
func NewBrowserExtractor(cfg *config.Config, logger *slog.Logger) *BrowserExtractor {
	return &BrowserExtractor{
		timeout:    cfg.Extractor.Timeout,
		userAgents: cfg.Engine.UserAgents,
		logger:     logger.With("component", "browser_extractor"),
	}
}

// ExtractBody navigates to rawURL in a fresh stealth page and returns the
// readable text of the rendered document.
func (e *BrowserExtractor) ExtractBody(ctx context.Context, rawURL string) (string, error) {
	browser, ua, err := e.connect()
	if err != nil {
		return "", helperError(rawURL, e.Type(), err)
	}

	page, err := stealth.Page(browser)
	if err != nil {
		return "", helperError(rawURL, e.Type(), fmt.Errorf("stealth page: %w", err))
	}
	defer func() { _ = page.Close() }()

	if ua != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: ua}); err != nil {
			e.logger.Warn("failed to set user agent", "error", err)
		}
	}

	page = page.Context(ctx).Timeout(e.timeout)
	if err := page.Navigate(rawURL); err != nil {
		return "", helperError(rawURL, e.Type(), err)
	}
	if err := page.WaitStable(300 * time.Millisecond); err != nil {
		e.logger.Warn("page stability timeout, continuing", "url", rawURL, "error", err)
	}

	html, err := page.HTML()
	if err != nil {
		return "", helperError(rawURL, e.Type(), err)
	}

	body, err := articleText([]byte(html), rawURL)
	if err != nil {
		return "", helperError(rawURL, e.Type(), err)
	}
	e.logger.Debug("browser extracted body", "url", rawURL, "size", len(body))
	return body, nil
}

// Close shuts down the browser if it was launched.
func (e *BrowserExtractor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.browser == nil {
		return nil
	}
	err := e.browser.Close()
	e.browser = nil
	return err
}

// Type returns the extractor type identifier.
func (e *BrowserExtractor) Type() string { return "browser" }

func (e *BrowserExtractor) connect() (*rod.Browser, string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.browser == nil {
		launchURL, err := launcher.New().
			Headless(true).
			Set("disable-gpu").
			Set("disable-dev-shm-usage").
			Set("no-sandbox").
			Set("disable-blink-features", "AutomationControlled").
			Launch()
		if err != nil {
			return nil, "", fmt.Errorf("launch browser: %w", err)
		}
		browser := rod.New().ControlURL(launchURL)
		if err := browser.Connect(); err != nil {
			return nil, "", fmt.Errorf("connect browser: %w", err)
		}
		e.browser = browser
		e.logger.Info("browser extractor ready")
	}

	ua := ""
	if len(e.userAgents) > 0 {
		ua = e.userAgents[e.uaIndex%len(e.userAgents)]
		e.uaIndex++
	}
	return e.browser, ua, nil
}
