// Package scraper holds the per-source scrapers. Every scraper lists candidate
// items for one source and returns only those whose URL is not yet stored.
package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/IshaanNene/newsgoat/internal/config"
	"github.com/IshaanNene/newsgoat/internal/region"
	"github.com/IshaanNene/newsgoat/internal/types"
)

// Kind describes how a scraper discovers items.
type Kind string

const (
	KindListing Kind = "listing"
	KindAPI     Kind = "api"
	KindFeed    Kind = "feed"
)

// Scraper is implemented by every source.
type Scraper interface {
	Name() string
	Kind() Kind
	Scrape(ctx context.Context, env *Env) ([]types.CandidateItem, error)
}

// Fetcher is the fetch capability scrapers are given. A *fetcher.Session
// satisfies it, so politeness applies to every call.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*types.Response, error)
	ExtractBody(ctx context.Context, rawURL string) (string, error)
}

// SeenChecker reports whether a URL was ingested before.
type SeenChecker interface {
	Exists(ctx context.Context, url string) (bool, error)
}

// Env carries everything one scrape cycle needs.
type Env struct {
	Fetcher Fetcher
	Seen    SeenChecker
	Source  config.SourceConfig
	Lookup  *region.Lookup
	Logger  *slog.Logger
	Now     func() time.Time
}

func (e *Env) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Env) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

// seen wraps the store lookup in a StorageError so callers can abort the
// cycle on it.
func (e *Env) seen(ctx context.Context, link string) (bool, error) {
	if e.Seen == nil {
		return false, nil
	}
	ok, err := e.Seen.Exists(ctx, link)
	if err != nil {
		if _, isStorage := err.(*types.StorageError); isStorage {
			return false, err
		}
		return false, &types.StorageError{Backend: "unknown", Op: "exists", Err: err}
	}
	return ok, nil
}

// resolveURL makes href absolute against base.
func resolveURL(base, href string) (string, error) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", types.ErrInvalidURL
	}
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", err
	}
	abs := b.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", fmt.Errorf("%w: %s", types.ErrInvalidURL, href)
	}
	return abs.String(), nil
}

// sameSite reports whether a and b share a host, ignoring a leading "www.".
func sameSite(a, b string) bool {
	ua, err := url.Parse(a)
	if err != nil {
		return false
	}
	ub, err := url.Parse(b)
	if err != nil {
		return false
	}
	ha := strings.TrimPrefix(strings.ToLower(ua.Hostname()), "www.")
	hb := strings.TrimPrefix(strings.ToLower(ub.Hostname()), "www.")
	return ha != "" && ha == hb
}

// --- Registry ---

// Info holds summary information about a scraper.
type Info struct {
	Name string `json:"name"`
	Kind Kind   `json:"kind"`
}

// Registry holds the scrapers known to the binary.
type Registry struct {
	scrapers map[string]Scraper
	logger   *slog.Logger
	mu       sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		scrapers: make(map[string]Scraper),
		logger:   logger.With("component", "scraper_registry"),
	}
}

// DefaultRegistry returns a registry holding every built-in scraper.
func DefaultRegistry(logger *slog.Logger) *Registry {
	r := NewRegistry(logger)
	for _, s := range []Scraper{
		NewAntiwar(),
		NewForbes400(),
		NewYouTube(),
		NewWikipedia(),
	} {
		// Names are distinct constants, so Register cannot fail here.
		_ = r.Register(s)
	}
	return r
}

// Register adds a scraper to the registry.
func (r *Registry) Register(s Scraper) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := s.Name()
	if _, exists := r.scrapers[name]; exists {
		return fmt.Errorf("scraper %q already registered", name)
	}
	r.scrapers[name] = s
	r.logger.Debug("scraper registered", "name", name, "kind", s.Kind())
	return nil
}

// Get returns a scraper by name.
func (r *Registry) Get(name string) (Scraper, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.scrapers[name]
	return s, ok
}

// Scrapers returns all registered scrapers sorted by name.
func (r *Registry) Scrapers() []Scraper {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Scraper, 0, len(r.scrapers))
	for _, s := range r.scrapers {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// List returns summary information for all registered scrapers.
func (r *Registry) List() []Info {
	scrapers := r.Scrapers()
	infos := make([]Info, len(scrapers))
	for i, s := range scrapers {
		infos[i] = Info{Name: s.Name(), Kind: s.Kind()}
	}
	return infos
}
