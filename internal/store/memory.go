package store

import (
	"context"
	"math"
	"sort"
	"sync"
)

// Memory is an in-process ArticleStore with exact cosine similarity. It
// backs tests and the dependency-free development mode; the retrieval
// contract (ordering, tie-breaks, score range) matches Postgres.
type Memory struct {
	mu       sync.RWMutex
	articles []Article
	byFP     map[string]struct{}
}

func NewMemory() *Memory {
	return &Memory{byFP: make(map[string]struct{})}
}

func (m *Memory) Upsert(ctx context.Context, a Article) error {
	if a.Fingerprint == "" {
		return errFingerprintRequired
	}
	if len(a.Embedding) == 0 {
		return errEmbeddingRequired
	}
	if a.ID == "" {
		a.ID = ArticleID(a.Fingerprint)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byFP[a.Fingerprint]; ok {
		return nil
	}
	m.byFP[a.Fingerprint] = struct{}{}
	m.articles = append(m.articles, a)
	return nil
}

func (m *Memory) Query(ctx context.Context, vector []float32, k int) ([]ScoredArticle, error) {
	if k <= 0 {
		k = 5
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	results := make([]ScoredArticle, 0, len(m.articles))
	for _, a := range m.articles {
		results = append(results, ScoredArticle{
			Article:    a,
			Similarity: clampSimilarity(cosineSimilarity(vector, a.Embedding)),
		})
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].PublishedAt.After(results[j].PublishedAt)
	})
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func (m *Memory) HasFingerprint(ctx context.Context, fingerprint string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.byFP[fingerprint]
	return ok, nil
}

func (m *Memory) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.articles), nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
