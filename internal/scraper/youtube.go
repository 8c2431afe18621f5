package scraper

import (
	"context"
	"net/url"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/IshaanNene/newsgoat/internal/config"
	"github.com/IshaanNene/newsgoat/internal/types"
)

// YouTube reads the public video feed of each configured channel.
type YouTube struct{}

// NewYouTube creates the channel feed scraper.
func NewYouTube() *YouTube { return &YouTube{} }

func (y *YouTube) Name() string { return config.SourceYouTube }
func (y *YouTube) Kind() Kind   { return KindFeed }

// Scrape fetches every channel feed in turn. A status error skips that
// channel; a network error aborts the cycle. Entries older than
// Source.MaxAge are ignored.
func (y *YouTube) Scrape(ctx context.Context, env *Env) ([]types.CandidateItem, error) {
	logger := env.logger()
	parser := gofeed.NewParser()
	now := env.now()

	var items []types.CandidateItem
	listed := make(map[string]struct{})
	for _, channel := range env.Source.Channels {
		channel = strings.TrimSpace(channel)
		if channel == "" {
			continue
		}
		feedURL, err := channelFeedURL(env.Source.URL, channel)
		if err != nil {
			logger.Warn("skipping channel", "channel", channel, "error", err)
			continue
		}

		resp, err := env.Fetcher.Fetch(ctx, feedURL)
		if err != nil {
			if types.IsStatusError(err) {
				logger.Error("non-success response for channel feed", "channel", channel, "error", err)
				continue
			}
			return nil, err
		}

		feed, err := parser.ParseString(resp.Text())
		if err != nil {
			logger.Warn("unparseable channel feed", "channel", channel, "error", &types.ParseError{URL: feedURL, Selector: "feed", Err: err})
			continue
		}

		for _, entry := range feed.Items {
			if limit := env.Source.MaxItems; limit > 0 && len(items) >= limit {
				return items, nil
			}
			link := strings.TrimSpace(entry.Link)
			if link == "" {
				continue
			}
			if env.Source.MaxAge > 0 && entry.PublishedParsed != nil && now.Sub(*entry.PublishedParsed) > env.Source.MaxAge {
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
				Title:  entry.Title,
				Body:   entryDescription(entry),
				Source: y.Name(),
			})
		}
	}
	return items, nil
}

func channelFeedURL(base, channel string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("channel_id", channel)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// entryDescription prefers the media:group description YouTube puts in its
// Atom feeds and falls back to the generic description.
func entryDescription(item *gofeed.Item) string {
	if media, ok := item.Extensions["media"]; ok {
		for _, group := range media["group"] {
			for _, d := range group.Children["description"] {
				if v := strings.TrimSpace(d.Value); v != "" {
					return v
				}
			}
		}
	}
	if item.Description != "" {
		return item.Description
	}
	return item.Content
}
