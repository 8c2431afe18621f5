package region

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"
)

// TaggerOptions configures matching.
type TaggerOptions struct {
	// FoldCase compares fragments and keyphrases case-insensitively. By
	// default both are compared in their stored casing.
	FoldCase bool
}

// Tagger reports which regions a piece of text concerns. It only reads the
// index and is safe for concurrent use.
type Tagger struct {
	idx      *Index
	foldCase bool
	phrases  map[string][]string
}

// NewTagger creates a Tagger over idx.
func NewTagger(idx *Index, opts TaggerOptions) *Tagger {
	t := &Tagger{idx: idx, foldCase: opts.FoldCase, phrases: idx.phrases}
	if opts.FoldCase {
		t.phrases = make(map[string][]string, len(idx.phrases))
		for code, ps := range idx.phrases {
			folded := make([]string, len(ps))
			for i, p := range ps {
				folded[i] = cases.Fold().String(p)
			}
			t.phrases[code] = folded
		}
	}
	return t
}

// Tag returns the sorted set of regions with at least one keyphrase occurring
// as a substring of any fragment. Matching is independent per fragment and
// the results are unioned, so adding fragments never removes a region.
func (t *Tagger) Tag(fragments ...string) []string {
	hits := make(map[string]struct{})
	for _, f := range fragments {
		if f == "" {
			continue
		}
		if t.foldCase {
			f = cases.Fold().String(f)
		}
		for _, code := range t.idx.codes {
			if _, ok := hits[code]; ok {
				continue
			}
			for _, p := range t.phrases[code] {
				if strings.Contains(f, p) {
					hits[code] = struct{}{}
					break
				}
			}
		}
	}

	out := make([]string, 0, len(hits))
	for code := range hits {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

// Index returns the index the tagger matches against.
func (t *Tagger) Index() *Index {
	return t.idx
}
