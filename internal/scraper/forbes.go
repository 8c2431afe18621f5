package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/IshaanNene/newsgoat/internal/config"
	"github.com/IshaanNene/newsgoat/internal/region"
	"github.com/IshaanNene/newsgoat/internal/types"
)

const forbesProfileBase = "https://www.forbes.com/profile/"

// Billionaire is one record of the billionaires endpoint that passed the
// worth threshold and resolved to a region.
type Billionaire struct {
	Name       string
	Region     string
	Country    string
	FinalWorth float64 // millions of USD, 0 when the endpoint omits it
	Source     string
	ProfileURL string
}

type billionaireRecord struct {
	PersonName           *string  `json:"personName"`
	FinalWorth           *float64 `json:"finalWorth"`
	CountryOfCitizenship *string  `json:"countryOfCitizenship"`
	URI                  string   `json:"uri"`
	Source               string   `json:"source"`
}

// Forbes400 calls the billionaires API and emits one item per person worth
// at least the configured threshold.
type Forbes400 struct{}

// NewForbes400 creates the billionaires API scraper.
func NewForbes400() *Forbes400 { return &Forbes400{} }

func (f *Forbes400) Name() string { return config.SourceForbes }
func (f *Forbes400) Kind() Kind   { return KindAPI }

func (f *Forbes400) Scrape(ctx context.Context, env *Env) ([]types.CandidateItem, error) {
	logger := env.logger()

	people, err := FetchBillionaires(ctx, env.Fetcher, env.Source, env.Lookup, logger)
	if err != nil {
		return nil, err
	}

	var items []types.CandidateItem
	for _, p := range people {
		if limit := env.Source.MaxItems; limit > 0 && len(items) >= limit {
			break
		}
		seen, err := env.seen(ctx, p.ProfileURL)
		if err != nil {
			return nil, err
		}
		if seen {
			continue
		}
		items = append(items, types.CandidateItem{
			URL:     p.ProfileURL,
			Title:   p.Name,
			Body:    p.summary(),
			Source:  f.Name(),
			Regions: []string{p.Region},
		})
	}
	return items, nil
}

func (b Billionaire) summary() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s, citizen of %s", b.Name, b.Country)
	if b.FinalWorth > 0 {
		fmt.Fprintf(&sb, ", has a net worth of $%.1f billion", b.FinalWorth/1000)
	}
	if b.Source != "" {
		fmt.Fprintf(&sb, " (%s)", b.Source)
	}
	sb.WriteString(".")
	return sb.String()
}

// FetchBillionaires calls the endpoint at src.URL and returns every record
// whose country resolves through lookup. The finalWorth >= src.MinWorth
// threshold only applies when the record reports a worth.
// Records failing the lookup or missing fields are dropped with a warning.
// A status error yields no records; a network error is returned.
func FetchBillionaires(ctx context.Context, f Fetcher, src config.SourceConfig, lookup *region.Lookup, logger *slog.Logger) ([]Billionaire, error) {
	resp, err := f.Fetch(ctx, src.URL)
	if err != nil {
		if types.IsStatusError(err) {
			logger.Error("non-success response from billionaires API", "url", src.URL, "error", err)
			return nil, nil
		}
		return nil, err
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(resp.Body, &raw); err != nil {
		logger.Warn("billionaires payload is not an array", "error", &types.ParseError{URL: src.URL, Selector: "$", Err: err})
		return nil, nil
	}

	var out []Billionaire
	filtered := 0
	for i, msg := range raw {
		var rec billionaireRecord
		if err := json.Unmarshal(msg, &rec); err != nil {
			logger.Warn("skipping malformed record", "index", i, "error", &types.ParseError{URL: src.URL, Selector: fmt.Sprintf("$[%d]", i), Err: err})
			continue
		}
		var worth float64
		if rec.FinalWorth != nil {
			if *rec.FinalWorth < src.MinWorth {
				filtered++
				continue
			}
			worth = *rec.FinalWorth
		}
		if rec.CountryOfCitizenship == nil {
			logger.Warn("skipping record without countryOfCitizenship", "index", i)
			continue
		}
		if rec.PersonName == nil || strings.TrimSpace(*rec.PersonName) == "" {
			logger.Warn("skipping record without personName", "index", i)
			continue
		}

		name := cleanPersonName(*rec.PersonName)
		code, err := lookupRegion(lookup, *rec.CountryOfCitizenship)
		if err != nil {
			logger.Warn("dropping record with unknown country", "name", name, "error", err)
			continue
		}

		uri := strings.Trim(strings.TrimSpace(rec.URI), "/")
		if uri == "" {
			uri = slug(name)
		}

		out = append(out, Billionaire{
			Name:       name,
			Region:     code,
			Country:    strings.TrimSpace(*rec.CountryOfCitizenship),
			FinalWorth: worth,
			Source:     strings.TrimSpace(rec.Source),
			ProfileURL: forbesProfileBase + uri + "/",
		})
	}

	logger.Debug("billionaires fetched", "records", len(raw), "kept", len(out), "below_threshold", filtered)
	return out, nil
}

// GroupByRegion maps region codes to the names of their billionaires,
// sorted, for use as keyphrases.
func GroupByRegion(people []Billionaire) map[string][]string {
	groups := make(map[string][]string)
	for _, p := range people {
		groups[p.Region] = append(groups[p.Region], p.Name)
	}
	for code := range groups {
		sort.Strings(groups[code])
	}
	return groups
}

// cleanPersonName drops the " & family" suffix used for family fortunes.
func cleanPersonName(name string) string {
	return strings.TrimSpace(strings.ReplaceAll(name, " & family", ""))
}

func lookupRegion(lookup *region.Lookup, country string) (string, error) {
	if lookup == nil {
		return "", &types.LookupError{Value: country, Err: errors.New("no region lookup configured")}
	}
	return lookup.Code(country)
}

func slug(name string) string {
	fields := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	return strings.Join(fields, "-")
}
