// Package region maps free text to region codes. It holds the keyphrase
// index built from the precomputed region table, the tagger that matches
// text against it, and the name to code lookup used by API sources.
package region

import (
	"log/slog"
	"sort"
	"strings"
)

// Index is an immutable mapping from region code to its keyphrases. It is
// safe for concurrent use once built.
type Index struct {
	codes   []string
	phrases map[string][]string
}

// Builder accumulates keyphrases per region before freezing them into an Index.
type Builder struct {
	sets   map[string]map[string]struct{}
	order  []string
	logger *slog.Logger
}

// NewBuilder creates an empty Builder.
func NewBuilder(logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		sets:   make(map[string]map[string]struct{}),
		logger: logger.With("component", "keyphrase_index"),
	}
}

// Add registers phrases for code. Blank phrases are ignored. Adding a code
// with no phrases still records it so Build can report it as dropped.
func (b *Builder) Add(code string, phrases ...string) *Builder {
	code = strings.TrimSpace(code)
	if code == "" {
		return b
	}
	set, ok := b.sets[code]
	if !ok {
		set = make(map[string]struct{})
		b.sets[code] = set
		b.order = append(b.order, code)
	}
	for _, p := range phrases {
		p = strings.TrimSpace(p)
		if p != "" {
			set[p] = struct{}{}
		}
	}
	return b
}

// AddEntries registers the keyphrases of every table entry.
func (b *Builder) AddEntries(entries []Entry) *Builder {
	for _, e := range entries {
		b.Add(e.Code, e.Keyphrases...)
	}
	return b
}

// Build freezes the builder. Regions whose keyphrase set is empty are dropped
// with a warning.
func (b *Builder) Build() *Index {
	idx := &Index{phrases: make(map[string][]string, len(b.sets))}
	dropped := 0
	for _, code := range b.order {
		set := b.sets[code]
		if len(set) == 0 {
			b.logger.Warn("dropping region without keyphrases", "region", code)
			dropped++
			continue
		}
		phrases := make([]string, 0, len(set))
		for p := range set {
			phrases = append(phrases, p)
		}
		sort.Strings(phrases)
		idx.phrases[code] = phrases
		idx.codes = append(idx.codes, code)
	}
	sort.Strings(idx.codes)

	b.logger.Debug("keyphrase index built", "regions", len(idx.codes), "dropped", dropped)
	return idx
}

// Regions returns the region codes in sorted order.
func (i *Index) Regions() []string {
	out := make([]string, len(i.codes))
	copy(out, i.codes)
	return out
}

// Keyphrases returns the keyphrases of code, or nil if the region is unknown.
func (i *Index) Keyphrases(code string) []string {
	p, ok := i.phrases[code]
	if !ok {
		return nil
	}
	out := make([]string, len(p))
	copy(out, p)
	return out
}

// Len returns the number of regions.
func (i *Index) Len() int {
	return len(i.codes)
}
