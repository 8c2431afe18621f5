package fetcher

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/IshaanNene/newsgoat/internal/config"
	"github.com/IshaanNene/newsgoat/internal/observability"
	"github.com/IshaanNene/newsgoat/internal/types"
)

// WaitFunc suspends the caller for d or until ctx is done.
type WaitFunc func(ctx context.Context, d time.Duration) error

// Gate wraps a Fetcher and a BodyExtractor with retry and hands out
// per-run Sessions that enforce the politeness delay.
type Gate struct {
	fetcher    Fetcher
	extractor  BodyExtractor
	delay      time.Duration
	maxRetries int
	retryDelay time.Duration
	wait       WaitFunc
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithWaitFunc replaces the timer used for politeness pauses.
func WithWaitFunc(fn WaitFunc) GateOption {
	return func(g *Gate) { g.wait = fn }
}

// WithMetrics records fetch and wait metrics.
func WithMetrics(m *observability.Metrics) GateOption {
	return func(g *Gate) { g.metrics = m }
}

// NewGate creates a Gate. extractor may be nil, in which case ExtractBody
// always reports no body.
func NewGate(f Fetcher, extractor BodyExtractor, cfg *config.Config, logger *slog.Logger, opts ...GateOption) *Gate {
	g := &Gate{
		fetcher:    f,
		extractor:  extractor,
		delay:      cfg.Engine.PolitenessDelay,
		maxRetries: cfg.Fetcher.MaxRetries,
		retryDelay: cfg.Fetcher.RetryDelay,
		wait:       sleepContext,
		logger:     logger.With("component", "fetch_gate"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Session starts a politeness window for one scraper run.
func (g *Gate) Session(source string) *Session {
	return &Session{
		gate:   g,
		source: source,
		window: make(map[string]struct{}),
		logger: g.logger.With("source", source),
	}
}

// Close releases the underlying fetcher and extractor.
func (g *Gate) Close() error {
	var errs []error
	if g.extractor != nil {
		errs = append(errs, g.extractor.Close())
	}
	if g.fetcher != nil {
		errs = append(errs, g.fetcher.Close())
	}
	return errors.Join(errs...)
}

// fetch calls the fetcher, retrying retryable network failures with
// exponential backoff. Status errors are returned on the first attempt.
func (g *Gate) fetch(ctx context.Context, source, rawURL string) (*types.Response, error) {
	var resp *types.Response
	op := func() error {
		start := time.Now()
		r, err := g.fetcher.Fetch(ctx, rawURL)
		g.metrics.ObserveFetch(source, err, time.Since(start))
		if err == nil {
			resp = r
			return nil
		}
		var fe *types.FetchError
		if errors.As(err, &fe) && fe.Retryable && fe.StatusCode == 0 && ctx.Err() == nil {
			return err
		}
		return backoff.Permanent(err)
	}

	if g.maxRetries <= 0 {
		if err := op(); err != nil {
			return nil, unwrapPermanent(err)
		}
		return resp, nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = g.retryDelay
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(g.maxRetries)), ctx)

	err := backoff.RetryNotify(op, policy, func(err error, next time.Duration) {
		g.logger.Warn("retrying fetch", "source", source, "url", rawURL, "in", next, "error", err)
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func unwrapPermanent(err error) error {
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return perm.Err
	}
	return err
}

// Session enforces the politeness window of a single scraper run. Origins
// contacted since the last pause are tracked; when one recurs the window is
// cleared and the session waits the politeness delay before proceeding.
// Requests to a single origin therefore pause every other time.
type Session struct {
	gate   *Gate
	source string
	logger *slog.Logger

	mu     sync.Mutex
	window map[string]struct{}
	waits  atomic.Int64
}

// Fetch retrieves rawURL after applying the politeness window.
func (s *Session) Fetch(ctx context.Context, rawURL string) (*types.Response, error) {
	if err := s.throttle(ctx, rawURL); err != nil {
		return nil, err
	}
	return s.gate.fetch(ctx, s.source, rawURL)
}

// ExtractBody obtains readable text for rawURL through the configured
// extractor after applying the politeness window. Failures and empty output
// are returned as *types.HelperError wrapping types.ErrNoBody.
func (s *Session) ExtractBody(ctx context.Context, rawURL string) (string, error) {
	if err := s.throttle(ctx, rawURL); err != nil {
		return "", err
	}
	ex := s.gate.extractor
	if ex == nil {
		return "", &types.HelperError{URL: rawURL, Helper: "none", Err: types.ErrNoBody}
	}

	body, err := ex.ExtractBody(ctx, rawURL)
	if err == nil && strings.TrimSpace(body) == "" {
		err = &types.HelperError{URL: rawURL, Helper: ex.Type(), Err: types.ErrNoBody}
	}
	s.gate.metrics.ObserveHelper(s.source, err)
	if err != nil {
		return "", helperError(rawURL, ex.Type(), err)
	}
	return body, nil
}

// Waits returns how many politeness pauses the session has taken.
func (s *Session) Waits() int {
	return int(s.waits.Load())
}

// Source returns the source name the session was opened for.
func (s *Session) Source() string {
	return s.source
}

func (s *Session) throttle(ctx context.Context, rawURL string) error {
	origin, err := Origin(rawURL)
	if err != nil {
		return &types.FetchError{URL: rawURL, Err: err}
	}

	// A recurring origin empties the window and pauses. It is not recorded
	// again, so the next request to it goes out without a pause.
	s.mu.Lock()
	_, seen := s.window[origin]
	if seen {
		clear(s.window)
	} else {
		s.window[origin] = struct{}{}
	}
	s.mu.Unlock()

	if !seen {
		return nil
	}

	s.waits.Add(1)
	s.gate.metrics.ObserveWait(s.source)
	s.logger.Debug("origin recurred, pausing", "origin", origin, "delay", s.gate.delay)
	if err := s.gate.wait(ctx, s.gate.delay); err != nil {
		return &types.FetchError{URL: rawURL, Err: err}
	}
	return nil
}

// Origin returns the scheme://host of rawURL, lowercased.
func Origin(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", types.ErrInvalidURL
	}
	if u.Scheme == "" || u.Host == "" {
		return "", types.ErrInvalidURL
	}
	return strings.ToLower(u.Scheme + "://" + u.Host), nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
