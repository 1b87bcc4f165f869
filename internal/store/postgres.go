package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
)

// Postgres stores articles in a pgvector-enabled Postgres database.
// Upserts rely on the fingerprint primary key with ON CONFLICT DO
// NOTHING, so concurrent ingestion cannot double-insert.
type Postgres struct {
	DB *sql.DB
}

// NewPostgres opens and pings a connection pool for the given DSN.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Postgres{DB: db}, nil
}

func (p *Postgres) Close() error { return p.DB.Close() }

func (p *Postgres) Upsert(ctx context.Context, a Article) error {
	if a.Fingerprint == "" {
		return errFingerprintRequired
	}
	if len(a.Embedding) == 0 {
		return errEmbeddingRequired
	}
	if a.ID == "" {
		a.ID = ArticleID(a.Fingerprint)
	}
	vec, err := encodeVectorLiteral(a.Embedding)
	if err != nil {
		return err
	}
	_, err = p.DB.ExecContext(ctx, `
INSERT INTO articles (id, fingerprint, title, url, source, published_at, content, summary, embedding)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9::vector)
ON CONFLICT (fingerprint) DO NOTHING
`, a.ID, a.Fingerprint, a.Title, a.URL, a.Source, a.PublishedAt, a.Content, a.Summary, vec)
	if err != nil {
		return fmt.Errorf("upsert article: %w", err)
	}
	return nil
}

func (p *Postgres) Query(ctx context.Context, vector []float32, k int) ([]ScoredArticle, error) {
	if k <= 0 {
		k = 5
	}
	vec, err := encodeVectorLiteral(vector)
	if err != nil {
		return nil, err
	}
	rows, err := p.DB.QueryContext(ctx, `
SELECT id, fingerprint, title, url, source, published_at, content, summary,
       1 - (embedding <=> $1::vector) AS similarity
FROM articles
ORDER BY embedding <=> $1::vector ASC, published_at DESC
LIMIT $2
`, vec, k)
	if err != nil {
		return nil, fmt.Errorf("query articles: %w", err)
	}
	defer rows.Close()

	var results []ScoredArticle
	for rows.Next() {
		var res ScoredArticle
		if err := rows.Scan(&res.ID, &res.Fingerprint, &res.Title, &res.URL, &res.Source,
			&res.PublishedAt, &res.Content, &res.Summary, &res.Similarity); err != nil {
			return nil, err
		}
		res.Similarity = clampSimilarity(res.Similarity)
		results = append(results, res)
	}
	return results, rows.Err()
}

func (p *Postgres) HasFingerprint(ctx context.Context, fingerprint string) (bool, error) {
	var exists bool
	err := p.DB.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM articles WHERE fingerprint = $1)`, fingerprint).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check fingerprint: %w", err)
	}
	return exists, nil
}

func (p *Postgres) Count(ctx context.Context) (int, error) {
	var n int
	if err := p.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM articles`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count articles: %w", err)
	}
	return n, nil
}

func encodeVectorLiteral(vec []float32) (string, error) {
	if len(vec) == 0 {
		return "", fmt.Errorf("vector must not be empty")
	}
	var builder strings.Builder
	builder.WriteByte('[')
	for i, f := range vec {
		if i > 0 {
			builder.WriteByte(',')
		}
		builder.WriteString(strconv.FormatFloat(float64(f), 'f', -1, 32))
	}
	builder.WriteByte(']')
	return builder.String(), nil
}

func clampSimilarity(s float64) float64 {
	if s > 1 {
		return 1
	}
	if s < -1 {
		return -1
	}
	return s
}
