// Package store implements the article vector index: an append-only
// collection of embedded news articles supporting idempotent upsert by
// fingerprint and top-K cosine-similarity retrieval.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	errFingerprintRequired = errors.New("article fingerprint required")
	errEmbeddingRequired   = errors.New("article embedding required")
)

// articleNamespace seeds deterministic article IDs: the same fingerprint
// always maps to the same UUID, which keeps upserts idempotent across
// ingestion cycles and process restarts.
var articleNamespace = uuid.MustParse("9f2c1f9a-52d4-4b8e-b1da-7c63a7b1d1a4")

// Article is a stored news article. Articles are created once on first
// sighting and never mutated afterwards.
type Article struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Source      string    `json:"source"`
	PublishedAt time.Time `json:"published_at"`
	Content     string    `json:"content,omitempty"`
	Summary     string    `json:"summary,omitempty"`
	Embedding   []float32 `json:"-"`
	Fingerprint string    `json:"-"`
}

// ScoredArticle pairs an article with its cosine similarity to a query
// vector, in [-1, 1].
type ScoredArticle struct {
	Article
	Similarity float64
}

// ArticleStore is the vector index contract shared by the Postgres and
// in-memory implementations. Implementations are safe for concurrent
// reads and for concurrent upserts (idempotent per fingerprint).
type ArticleStore interface {
	// Upsert stores the article. A second upsert with an already-stored
	// fingerprint is a no-op: fingerprints are unique across the store.
	Upsert(ctx context.Context, a Article) error
	// Query returns up to k nearest neighbours by cosine similarity,
	// ordered by descending similarity; ties broken by more-recent
	// published_at.
	Query(ctx context.Context, vector []float32, k int) ([]ScoredArticle, error)
	// HasFingerprint reports whether an article with the fingerprint is
	// already stored.
	HasFingerprint(ctx context.Context, fingerprint string) (bool, error)
	// Count returns the number of stored articles.
	Count(ctx context.Context) (int, error)
}

// ArticleID derives the stable article ID from its fingerprint.
func ArticleID(fingerprint string) string {
	return uuid.NewSHA1(articleNamespace, []byte(fingerprint)).String()
}
