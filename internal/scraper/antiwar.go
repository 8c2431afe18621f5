package scraper

import (
	"context"
	"errors"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/IshaanNene/newsgoat/internal/config"
	"github.com/IshaanNene/newsgoat/internal/text"
	"github.com/IshaanNene/newsgoat/internal/types"
)

const (
	antiwarUpdatedStart = `<div align="right">Updated `
	antiwarUpdatedEnd   = " -"
	antiwarSection      = `<tr><td colspan="2"><h1>`
	antiwarEntry        = `<td width="50%">`

	// antiwarDateLayout matches the page's "Updated" marker, e.g.
	// "October 09, 2026".
	antiwarDateLayout = "January 02, 2006"
)

// Antiwar scrapes the latest-headlines listing. The page is only used when
// its "Updated" marker carries today's date.
type Antiwar struct{}

// NewAntiwar creates the antiwar listing scraper.
func NewAntiwar() *Antiwar { return &Antiwar{} }

func (a *Antiwar) Name() string { return config.SourceAntiwar }
func (a *Antiwar) Kind() Kind   { return KindListing }

func (a *Antiwar) Scrape(ctx context.Context, env *Env) ([]types.CandidateItem, error) {
	logger := env.logger()
	indexURL := env.Source.URL

	resp, err := env.Fetcher.Fetch(ctx, indexURL)
	if err != nil {
		if types.IsStatusError(err) {
			logger.Error("non-success response for index", "url", indexURL, "error", err)
			return nil, nil
		}
		return nil, err
	}
	page := resp.Text()

	today := env.now().Format(antiwarDateLayout)
	updated, ok := text.Between(page, antiwarUpdatedStart, antiwarUpdatedEnd)
	if !ok {
		logger.Warn("index has no freshness marker", "url", indexURL)
		return nil, nil
	}
	if strings.TrimSpace(updated) != today {
		logger.Info("index is not fresh, skipping cycle", "updated", updated, "today", today)
		return nil, nil
	}

	section, ok := text.Between(page, antiwarSection, antiwarSection)
	if !ok {
		logger.Warn("headline section not found", "error", &types.ParseError{URL: indexURL, Selector: antiwarSection, Err: types.ErrNoBody})
		return nil, nil
	}

	var items []types.CandidateItem
	listed := make(map[string]struct{})
	for _, entry := range text.SplitAfter(section, antiwarEntry) {
		if limit := env.Source.MaxItems; limit > 0 && len(items) >= limit {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		link, title, err := antiwarEntryLink(indexURL, entry)
		if err != nil {
			logger.Debug("skipping entry", "error", err)
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

		var body string
		if sameSite(link, indexURL) {
			body, err = a.onSiteBody(ctx, env, link)
			if types.IsStatusError(err) {
				logger.Error("non-success response for detail page, ending cycle", "url", link, "error", err)
				break
			}
		} else {
			body, err = env.Fetcher.ExtractBody(ctx, link)
		}
		if err != nil {
			if types.IsCanceled(err) {
				return nil, err
			}
			logger.Warn("skipping item without body", "url", link, "error", err)
			continue
		}

		items = append(items, types.CandidateItem{
			URL:    link,
			Title:  title,
			Body:   body,
			Source: a.Name(),
		})
	}

	logger.Debug("antiwar listing scraped", "entries", len(listed), "items", len(items))
	return items, nil
}

// antiwarEntryLink pulls the first link of a listing cell.
func antiwarEntryLink(indexURL, entry string) (string, string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(entry))
	if err != nil {
		return "", "", &types.ParseError{URL: indexURL, Selector: "a[href]", Err: err}
	}
	a := doc.Find("a[href]").First()
	href, ok := a.Attr("href")
	if !ok {
		return "", "", &types.ParseError{URL: indexURL, Selector: "a[href]", Err: errors.New("entry has no link")}
	}
	link, err := resolveURL(indexURL, href)
	if err != nil {
		return "", "", &types.ParseError{URL: indexURL, Selector: "a[href]", Err: err}
	}
	title := text.StripMarkup(a.Text())
	if title == "" {
		return "", "", &types.ParseError{URL: link, Selector: "a", Err: errors.New("entry has no title")}
	}
	return link, title, nil
}

// onSiteBody reads the og:description of an on-site article.
func (a *Antiwar) onSiteBody(ctx context.Context, env *Env, link string) (string, error) {
	resp, err := env.Fetcher.Fetch(ctx, link)
	if err != nil {
		return "", err
	}
	doc, err := resp.Document()
	if err != nil {
		return "", err
	}
	desc := strings.TrimSpace(doc.Find(`meta[property="og:description"]`).AttrOr("content", ""))
	if desc == "" {
		return "", &types.ParseError{URL: link, Selector: `meta[property="og:description"]`, Err: types.ErrNoBody}
	}
	return desc, nil
}
