package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/IshaanNene/newsgoat/internal/config"
	"github.com/IshaanNene/newsgoat/internal/fetcher"
	"github.com/IshaanNene/newsgoat/internal/observability"
	"github.com/IshaanNene/newsgoat/internal/pipeline"
	"github.com/IshaanNene/newsgoat/internal/region"
	"github.com/IshaanNene/newsgoat/internal/scraper"
	"github.com/IshaanNene/newsgoat/internal/types"
)

// State represents the engine's current lifecycle state.
type State int32

const (
	StateIdle    State = 0
	StateRunning State = 1
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	default:
		return "unknown"
	}
}

// ErrAlreadyRunning is returned by Run while another run is in progress.
var ErrAlreadyRunning = errors.New("a run is already in progress")

// Store is the persistence boundary: seen checks for scrapers plus insert.
type Store interface {
	Exists(ctx context.Context, url string) (bool, error)
	Insert(ctx context.Context, rec *types.MediaRecord) error
}

// Engine runs every enabled scraper once per Run and hands the resulting
// records to the store.
type Engine struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *scraper.Registry
	gate     *fetcher.Gate
	store    Store
	tagger   *region.Tagger
	lookup   *region.Lookup
	metrics  *observability.Metrics
	now      func() time.Time

	state atomic.Int32
	mu    sync.RWMutex
	last  *Report
}

// New creates an Engine. Collaborators are attached with the Set methods
// before the first Run.
func New(cfg *config.Config, logger *slog.Logger) *Engine {
	return &Engine{
		cfg:    cfg,
		logger: logger.With("component", "engine"),
		now:    time.Now,
	}
}

// SetRegistry sets the scrapers the engine may run.
func (e *Engine) SetRegistry(r *scraper.Registry) { e.registry = r }

// SetGate sets the fetch gate every source session is opened on.
func (e *Engine) SetGate(g *fetcher.Gate) { e.gate = g }

// SetStore sets the persistence boundary.
func (e *Engine) SetStore(s Store) { e.store = s }

// SetRegions sets the tagger and the name lookup used by API sources.
func (e *Engine) SetRegions(t *region.Tagger, l *region.Lookup) {
	e.tagger = t
	e.lookup = l
}

// SetMetrics enables metric collection.
func (e *Engine) SetMetrics(m *observability.Metrics) { e.metrics = m }

// SetClock overrides the time source handed to scrapers.
func (e *Engine) SetClock(now func() time.Time) { e.now = now }

// GetState returns the current engine state.
func (e *Engine) GetState() State {
	return State(e.state.Load())
}

// LastReport returns the report of the most recent finished run, or nil.
func (e *Engine) LastReport() *Report {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.last
}

// Run executes one ingestion cycle. Failures of single sources are recorded
// in the report; only a *types.ConfigError is returned as an error.
func (e *Engine) Run(ctx context.Context) (*Report, error) {
	if !e.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return nil, ErrAlreadyRunning
	}
	defer e.state.Store(int32(StateIdle))

	scrapers, err := e.plan()
	if err != nil {
		return nil, err
	}

	if e.cfg.Engine.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Engine.RunTimeout)
		defer cancel()
	}

	report := &Report{StartedAt: e.now()}
	for _, s := range e.registry.Scrapers() {
		if !e.cfg.SourceEnabled(s.Name()) {
			report.Skipped = append(report.Skipped, s.Name())
		}
	}

	e.logger.Info("run starting",
		"sources", len(scrapers),
		"skipped", len(report.Skipped),
		"concurrency", e.cfg.Engine.Concurrency,
	)

	p := pipeline.Default(e.tagger, e.cfg.Normalize.MaxBodyLength, e.logger)
	results := make([]SourceReport, len(scrapers))

	var g errgroup.Group
	g.SetLimit(e.cfg.Engine.Concurrency)
	for i, s := range scrapers {
		g.Go(func() error {
			results[i] = e.runSource(ctx, s, p)
			return nil
		})
	}
	_ = g.Wait()

	report.Sources = results
	report.FinishedAt = e.now()
	e.metrics.ObserveRun(report.FinishedAt.Sub(report.StartedAt))

	e.mu.Lock()
	e.last = report
	e.mu.Unlock()

	e.logger.Info("run finished",
		"inserted", report.Inserted(),
		"failed_sources", report.Failed(),
		"duration", report.Duration(),
	)
	return report, nil
}

// plan checks that the engine can run at all and returns the enabled
// scrapers. Every problem here is fatal to the run.
func (e *Engine) plan() ([]scraper.Scraper, error) {
	if e.registry == nil {
		return nil, types.NewConfigError("sources", "no scraper registry configured")
	}
	if e.gate == nil {
		return nil, types.NewConfigError("fetcher", "no fetch gate configured")
	}
	if e.store == nil {
		return nil, types.NewConfigError("storage", "no store configured")
	}
	if e.tagger == nil || e.tagger.Index().Len() == 0 {
		return nil, types.NewConfigError("regions", "keyphrase index is empty")
	}
	if e.cfg.Engine.Concurrency < 1 {
		return nil, types.NewConfigError("engine.concurrency", "must be >= 1, got %d", e.cfg.Engine.Concurrency)
	}

	var enabled []scraper.Scraper
	for _, s := range e.registry.Scrapers() {
		src := e.cfg.Source(s.Name())
		if !src.Enabled {
			continue
		}
		if err := config.ValidateURL(src.URL); err != nil {
			return nil, &types.ConfigError{Key: "sources." + s.Name() + ".url", Err: err}
		}
		enabled = append(enabled, s)
	}
	for name, src := range e.cfg.Sources {
		if _, ok := e.registry.Get(name); !ok && src.Enabled {
			return nil, types.NewConfigError("sources."+name, "no scraper named %q", name)
		}
	}
	return enabled, nil
}

// runSource scrapes one source and pushes its candidates through the
// pipeline into the store.
func (e *Engine) runSource(ctx context.Context, s scraper.Scraper, p *pipeline.Pipeline) SourceReport {
	name := s.Name()
	logger := e.logger.With("source", name)
	start := time.Now()
	sr := SourceReport{Source: name, Kind: string(s.Kind())}

	session := e.gate.Session(name)
	env := &scraper.Env{
		Fetcher: session,
		Seen:    e.store,
		Source:  e.cfg.Source(name),
		Lookup:  e.lookup,
		Logger:  logger,
		Now:     e.now,
	}

	items, err := s.Scrape(ctx, env)
	sr.Waits = session.Waits()
	if err != nil {
		sr.setError(err)
		e.metrics.ObserveSourceError(name)
		logger.Error("source failed", "error", err)
	}
	sr.Candidates = len(items)
	e.metrics.AddItems(name, observability.OutcomeCandidate, len(items))

	for _, item := range items {
		if item.Source == "" {
			item.Source = name
		}
		rec, err := p.Process(types.NewRecord(item))
		if err != nil {
			logger.Warn("record rejected", "url", item.URL, "error", err)
			sr.Dropped++
			continue
		}
		if rec == nil {
			sr.Dropped++
			continue
		}
		sr.Emitted++

		if err := e.store.Insert(ctx, rec); err != nil {
			if errors.Is(err, types.ErrDuplicate) {
				sr.Dropped++
				continue
			}
			sr.InsertErrors++
			logger.Error("insert failed", "url", rec.URL, "error", err)
			if types.IsCanceled(err) {
				sr.setError(err)
				break
			}
			continue
		}
		sr.Inserted++
	}

	e.metrics.AddItems(name, observability.OutcomeEmitted, sr.Emitted)
	e.metrics.AddItems(name, observability.OutcomeInserted, sr.Inserted)
	e.metrics.AddItems(name, observability.OutcomeDropped, sr.Dropped)
	sr.Duration = time.Since(start)

	logger.Info("source finished",
		"candidates", sr.Candidates,
		"inserted", sr.Inserted,
		"dropped", sr.Dropped,
		"waits", sr.Waits,
	)
	return sr
}

// SourceReport summarizes one source within a run.
type SourceReport struct {
	Source       string        `json:"source"`
	Kind         string        `json:"kind"`
	Candidates   int           `json:"candidates"`
	Emitted      int           `json:"emitted"`
	Inserted     int           `json:"inserted"`
	Dropped      int           `json:"dropped"`
	InsertErrors int           `json:"insert_errors"`
	Waits        int           `json:"politeness_waits"`
	Error        string        `json:"error,omitempty"`
	Duration     time.Duration `json:"duration"`

	Err error `json:"-"`
}

func (sr *SourceReport) setError(err error) {
	if sr.Err != nil {
		return
	}
	sr.Err = err
	sr.Error = err.Error()
}

// Report is the outcome of one Run.
type Report struct {
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Sources    []SourceReport `json:"sources"`
	Skipped    []string       `json:"skipped,omitempty"`
}

// Inserted returns the number of records stored across all sources.
func (r *Report) Inserted() int {
	n := 0
	for _, s := range r.Sources {
		n += s.Inserted
	}
	return n
}

// Failed returns the number of sources that ended with an error.
func (r *Report) Failed() int {
	n := 0
	for _, s := range r.Sources {
		if s.Err != nil {
			n++
		}
	}
	return n
}

// Duration returns the wall time of the run.
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Source returns the report for name.
func (r *Report) Source(name string) (SourceReport, bool) {
	for _, s := range r.Sources {
		if s.Source == name {
			return s, true
		}
	}
	return SourceReport{}, false
}

// String renders a one-line summary.
func (r *Report) String() string {
	return fmt.Sprintf("%d sources, %d inserted, %d failed in %s",
		len(r.Sources), r.Inserted(), r.Failed(), r.Duration().Round(time.Millisecond))
}
