package ingest

import (
	"context"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
	"github.com/mmcdole/gofeed"
)

const extractTimeout = 30 * time.Second

// FeedSource fetches articles from a single RSS/Atom feed. When
// extractContent is set, entries that only carry a summary get their
// full text extracted from the article page via readability.
type FeedSource struct {
	name           string
	url            string
	maxItems       int
	extractContent bool
	parser         *gofeed.Parser
}

func NewFeedSource(name, url string, maxItems int, extractContent bool) *FeedSource {
	if maxItems <= 0 {
		maxItems = 25
	}
	return &FeedSource{
		name:           name,
		url:            url,
		maxItems:       maxItems,
		extractContent: extractContent,
		parser:         gofeed.NewParser(),
	}
}

func (s *FeedSource) Name() string {
	if s.name != "" {
		return s.name
	}
	return s.url
}

func (s *FeedSource) FetchLatest(ctx context.Context, since time.Time) ([]RawArticle, error) {
	feed, err := s.parser.ParseURLWithContext(s.url, ctx)
	if err != nil {
		return nil, &SourceFetchError{Source: s.Name(), Err: err}
	}

	sourceName := s.name
	if sourceName == "" {
		sourceName = feed.Title
	}

	count := len(feed.Items)
	if count > s.maxItems {
		count = s.maxItems
	}
	out := make([]RawArticle, 0, count)
	for _, item := range feed.Items[:count] {
		publishedAt := time.Now().UTC()
		if item.PublishedParsed != nil {
			publishedAt = *item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			publishedAt = *item.UpdatedParsed
		}
		if !since.IsZero() && publishedAt.Before(since) {
			continue
		}

		summary := item.Description
		if summary == "" {
			summary = item.Content
		}
		content := item.Content
		if content == "" && s.extractContent && item.Link != "" {
			if page, err := readability.FromURL(item.Link, extractTimeout); err == nil {
				content = page.TextContent
			}
		}

		out = append(out, RawArticle{
			Title:       strings.TrimSpace(item.Title),
			URL:         strings.TrimSpace(item.Link),
			Source:      sourceName,
			PublishedAt: publishedAt,
			Content:     content,
			Summary:     summary,
		})
	}
	return out, nil
}
