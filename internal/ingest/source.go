// Package ingest keeps the article corpus fresh: it periodically pulls
// from the configured news sources, normalizes and fingerprints the
// candidates, drops duplicates via the ledger, embeds the rest, and
// upserts them into the article store.
package ingest

import (
	"context"
	"fmt"
	"time"
)

// RawArticle is a fetched-but-unprocessed candidate article.
type RawArticle struct {
	Title       string
	URL         string
	Source      string
	PublishedAt time.Time
	Content     string
	Summary     string
}

// Source is the polymorphic news-source capability. Adding a source type
// means adding an implementation, not touching the scheduler.
type Source interface {
	// FetchLatest returns candidate articles published after since.
	FetchLatest(ctx context.Context, since time.Time) ([]RawArticle, error)
	Name() string
}

// SourceFetchError wraps a single source's fetch failure. It is
// non-fatal: the cycle logs it and the source is retried on the next
// scheduled cycle.
type SourceFetchError struct {
	Source string
	Err    error
}

func (e *SourceFetchError) Error() string {
	return fmt.Sprintf("source %s fetch failed: %v", e.Source, e.Err)
}

func (e *SourceFetchError) Unwrap() error { return e.Err }
