package scraper

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/IshaanNene/newsgoat/internal/config"
	"github.com/IshaanNene/newsgoat/internal/text"
	"github.com/IshaanNene/newsgoat/internal/types"
)

// wikipediaDayLayout matches the id of a day block on the current events
// portal, e.g. "2026_October_9".
const wikipediaDayLayout = "2006_January_2"

// Wikipedia scrapes today's block of the current events portal. Each
// bulleted event with an external citation becomes an item whose URL is the
// cited article and whose body is the event summary.
type Wikipedia struct{}

// NewWikipedia creates the current events scraper.
func NewWikipedia() *Wikipedia { return &Wikipedia{} }

func (w *Wikipedia) Name() string { return config.SourceWikipedia }
func (w *Wikipedia) Kind() Kind   { return KindListing }

func (w *Wikipedia) Scrape(ctx context.Context, env *Env) ([]types.CandidateItem, error) {
	logger := env.logger()
	indexURL := env.Source.URL

	resp, err := env.Fetcher.Fetch(ctx, indexURL)
	if err != nil {
		if types.IsStatusError(err) {
			logger.Error("non-success response for portal", "url", indexURL, "error", err)
			return nil, nil
		}
		return nil, err
	}

	doc, err := htmlquery.Parse(bytes.NewReader(resp.Body))
	if err != nil {
		logger.Warn("unparseable portal page", "error", &types.ParseError{URL: indexURL, Selector: "html", Err: err})
		return nil, nil
	}

	dayID := env.now().Format(wikipediaDayLayout)
	day := htmlquery.FindOne(doc, fmt.Sprintf("//div[@id=%q]", dayID))
	if day == nil {
		logger.Info("no block for today, skipping cycle", "day", dayID)
		return nil, nil
	}

	events, err := htmlquery.QueryAll(day, ".//div[contains(@class,'current-events-content')]//li[not(.//li)]")
	if err != nil {
		return nil, &types.ParseError{URL: indexURL, Selector: "current-events-content", Err: err}
	}

	var items []types.CandidateItem
	listed := make(map[string]struct{})
	for _, ev := range events {
		if limit := env.Source.MaxItems; limit > 0 && len(items) >= limit {
			break
		}
		link, summary := wikipediaEvent(ev)
		if link == "" || summary == "" {
			continue
		}
		link, err = resolveURL(indexURL, link)
		if err != nil {
			continue
		}
		if _, dup := listed[link]; dup {
			continue
		}
		listed[link] = struct{}{}

		seen, err := env.seen(ctx, link)
		if err != nil {
			return nil, err
		}
		if seen {
			continue
		}

		items = append(items, types.CandidateItem{
			URL:    link,
			Title:  text.Truncate(summary, 160),
			Body:   summary,
			Source: w.Name(),
		})
	}
	return items, nil
}

// wikipediaEvent returns the first external citation of an event and the
// event text without its citation labels.
func wikipediaEvent(li *html.Node) (string, string) {
	summary := htmlquery.InnerText(li)
	link := ""
	for _, a := range htmlquery.Find(li, ".//a[contains(@class,'external')]") {
		if link == "" {
			link = htmlquery.SelectAttr(a, "href")
		}
		if label := htmlquery.InnerText(a); label != "" {
			summary = strings.Replace(summary, "("+label+")", "", 1)
			summary = strings.Replace(summary, label, "", 1)
		}
	}
	return link, text.StripMarkup(summary)
}
