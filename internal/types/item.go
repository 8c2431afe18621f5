package types

import (
	"encoding/json"
	"sort"
	"time"
)

// CandidateItem is an item discovered from a source before normalization.
type CandidateItem struct {
	// URL is the absolute URL used as the item's identity.
	URL string

	// Title and Body are raw text as extracted; they may still carry markup.
	Title string
	Body  string

	// Source names the scraper that produced this item.
	Source string

	// Regions holds region codes the source already resolved (API sources).
	Regions []string
}

// MediaRecord is the normalized, region-tagged unit handed to storage.
type MediaRecord struct {
	URL       string    `json:"url"        bson:"url"`
	Title     string    `json:"title"      bson:"title"`
	Body      string    `json:"body"       bson:"body"`
	Regions   []string  `json:"regions"    bson:"regions"`
	Source    string    `json:"source"     bson:"source"`
	FetchedAt time.Time `json:"fetched_at" bson:"fetched_at"`
}

// NewRecord creates a MediaRecord from a candidate item. Title and body are
// copied verbatim; normalization is the pipeline's job.
func NewRecord(c CandidateItem) *MediaRecord {
	return &MediaRecord{
		URL:       c.URL,
		Title:     c.Title,
		Body:      c.Body,
		Regions:   MergeRegions(nil, c.Regions),
		Source:    c.Source,
		FetchedAt: time.Now().UTC(),
	}
}

// AddRegions unions codes into the record's region set, keeping it sorted.
func (r *MediaRecord) AddRegions(codes ...string) {
	r.Regions = MergeRegions(r.Regions, codes)
}

// HasRegion reports whether the record is tagged with code.
func (r *MediaRecord) HasRegion(code string) bool {
	i := sort.SearchStrings(r.Regions, code)
	return i < len(r.Regions) && r.Regions[i] == code
}

// ToJSON serializes the record to JSON bytes.
func (r *MediaRecord) ToJSON() ([]byte, error) {
	return json.Marshal(r)
}

// MergeRegions returns the sorted, de-duplicated union of a and b. It never
// returns nil so that records always serialize an explicit empty set.
func MergeRegions(a, b []string) []string {
	set := make(map[string]struct{}, len(a)+len(b))
	for _, c := range a {
		if c != "" {
			set[c] = struct{}{}
		}
	}
	for _, c := range b {
		if c != "" {
			set[c] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
