package pipeline

import (
	"log/slog"
	"sync"

	"github.com/IshaanNene/newsgoat/internal/region"
	"github.com/IshaanNene/newsgoat/internal/types"
)

// Middleware processes a record and returns the (possibly modified) record.
// Return nil to drop the record from the pipeline.
type Middleware interface {
	// Name returns the middleware's identifier.
	Name() string

	// Process transforms a record. Return nil to drop it.
	Process(rec *types.MediaRecord) (*types.MediaRecord, error)
}

// Pipeline chains middleware processors together. A Pipeline is safe for
// concurrent use when each of its middleware is.
type Pipeline struct {
	middlewares []Middleware
	logger      *slog.Logger
}

// New creates a new Pipeline.
func New(logger *slog.Logger) *Pipeline {
	return &Pipeline{
		logger: logger.With("component", "pipeline"),
	}
}

// Default builds the record pipeline every run uses: in-run dedup, markup
// stripping and truncation, region tagging over title and body, then the
// required-field check.
func Default(tagger *region.Tagger, maxBody int, logger *slog.Logger) *Pipeline {
	p := New(logger)
	p.Use(NewDedupMiddleware())
	p.Use(&NormalizeMiddleware{MaxBodyLength: maxBody})
	p.Use(&TagMiddleware{Tagger: tagger})
	p.Use(&RequiredFieldsMiddleware{})
	return p
}

// Use adds a middleware to the pipeline chain.
func (p *Pipeline) Use(mw Middleware) {
	p.middlewares = append(p.middlewares, mw)
	p.logger.Debug("middleware added", "name", mw.Name(), "position", len(p.middlewares))
}

// Process runs the record through all middleware in order.
func (p *Pipeline) Process(rec *types.MediaRecord) (*types.MediaRecord, error) {
	current := rec

	for _, mw := range p.middlewares {
		result, err := mw.Process(current)
		if err != nil {
			return nil, &types.PipelineError{
				Stage: mw.Name(),
				URL:   current.URL,
				Err:   err,
			}
		}
		if result == nil {
			p.logger.Debug("record dropped", "stage", mw.Name(), "url", rec.URL)
			return nil, nil
		}
		current = result
	}

	return current, nil
}

// Len returns the number of middleware in the chain.
func (p *Pipeline) Len() int {
	return len(p.middlewares)
}

// --- Built-in Middleware ---

// DedupMiddleware drops records whose URL already passed through it. URLs
// are compared as exact strings, matching the store's identity.
type DedupMiddleware struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewDedupMiddleware() *DedupMiddleware {
	return &DedupMiddleware{
		seen: make(map[string]struct{}),
	}
}

func (m *DedupMiddleware) Name() string { return "dedup" }

func (m *DedupMiddleware) Process(rec *types.MediaRecord) (*types.MediaRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.seen[rec.URL]; exists {
		return nil, nil
	}
	m.seen[rec.URL] = struct{}{}
	return rec, nil
}

// Count returns the number of distinct URLs seen.
func (m *DedupMiddleware) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.seen)
}
