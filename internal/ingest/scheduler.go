package ingest

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/gorhill/cronexpr"
	"github.com/redis/go-redis/v9"

	"github.com/coinwire/coinwire/internal/dedup"
	"github.com/coinwire/coinwire/internal/store"
	"github.com/coinwire/coinwire/internal/telemetry"
)

const (
	defaultInterval        = 120 * time.Second
	defaultInitialLookback = 24 * time.Hour
	defaultWindow          = 2 * time.Hour
	cycleLockKey           = "ingest:lock"
	cycleLockTTL           = 10 * time.Minute
)

// Embedder is the slice of the embedding gateway the scheduler needs.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	BatchSize() int
}

// Stats is a snapshot of ingestion progress, surfaced on /healthz.
type Stats struct {
	Cycles         int       `json:"cycles"`
	LastCycle      time.Time `json:"last_cycle,omitempty"`
	LastError      string    `json:"last_error,omitempty"`
	Stored         int       `json:"stored"`
	Duplicates     int       `json:"duplicates"`
	SourceFailures int       `json:"source_failures"`
}

// Scheduler runs the periodic ingestion cycle: fetch from every source,
// normalize, dedup, embed, upsert. A failing source never aborts the
// cycle; a failing embedding batch skips only that batch's articles.
type Scheduler struct {
	sources  []Source
	store    store.ArticleStore
	ledger   dedup.Ledger
	embedder Embedder

	interval time.Duration
	lookback time.Duration
	window   time.Duration
	cronSpec string
	rdb      *redis.Client
	logger   *log.Logger

	mu    sync.Mutex
	stats Stats
	last  time.Time
}

// SchedulerConfig carries the scheduler's tunables. Zero values select
// the defaults: 120s interval, 24h initial lookback, 2h per-cycle
// window, no cron gate, no distributed lock.
type SchedulerConfig struct {
	Interval time.Duration
	// InitialLookback bounds the first cycle after startup; Window
	// bounds every cycle after that. Duplicates across the overlap are
	// absorbed by the ledger.
	InitialLookback time.Duration
	Window          time.Duration
	// Cron, when set, gates cycles on a cron expression checked at each
	// interval tick (supports @hourly, @daily, and 5-field specs).
	Cron string
	// Redis, when set, serializes cycles across replicas via SETNX.
	Redis *redis.Client
}

func NewScheduler(sources []Source, st store.ArticleStore, ledger dedup.Ledger, embedder Embedder, cfg SchedulerConfig, logger *log.Logger) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.InitialLookback <= 0 {
		cfg.InitialLookback = defaultInitialLookback
	}
	if cfg.Window <= 0 {
		cfg.Window = defaultWindow
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[INGEST] ", log.LstdFlags)
	}
	return &Scheduler{
		sources:  sources,
		store:    st,
		ledger:   ledger,
		embedder: embedder,
		interval: cfg.Interval,
		lookback: cfg.InitialLookback,
		window:   cfg.Window,
		cronSpec: cfg.Cron,
		rdb:      cfg.Redis,
		logger:   logger,
	}
}

// Stats returns a snapshot of ingestion progress.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Run executes an immediate cycle with the configured lookback, then
// cycles at the configured interval until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.cycle(ctx, time.Now().Add(-s.lookback))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if !s.due() {
				continue
			}
			s.cycle(ctx, time.Now().Add(-s.window))
		}
	}
}

// RunOnce executes a single cycle with the configured lookback. Used by
// the one-shot CLI command.
func (s *Scheduler) RunOnce(ctx context.Context) {
	s.cycle(ctx, time.Now().Add(-s.lookback))
}

func (s *Scheduler) lastCycle() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// due gates a tick on the cron expression, when one is configured.
func (s *Scheduler) due() bool {
	if s.cronSpec == "" {
		return true
	}
	last := s.lastCycle()
	if last.IsZero() {
		return true
	}
	now := time.Now()
	switch s.cronSpec {
	case "@hourly":
		return now.Sub(last) >= time.Hour
	case "@daily":
		return now.Sub(last) >= 24*time.Hour
	}
	expr, err := cronexpr.Parse(s.cronSpec)
	if err != nil {
		s.logger.Printf("invalid cron expression %q, running every tick: %v", s.cronSpec, err)
		return true
	}
	return !expr.Next(last).After(now)
}

func (s *Scheduler) cycle(ctx context.Context, since time.Time) {
	if s.rdb != nil {
		ok, err := s.rdb.SetNX(ctx, cycleLockKey, "1", cycleLockTTL).Result()
		if err != nil {
			s.logger.Printf("cycle lock: %v", err)
			return
		}
		if !ok {
			s.logger.Printf("cycle skipped, another replica holds the lock")
			return
		}
		defer s.rdb.Del(context.WithoutCancel(ctx), cycleLockKey)
	}

	started := time.Now()
	raw, failures := s.fetchAll(ctx, since)
	stored, duplicates := s.process(ctx, raw)

	s.mu.Lock()
	s.stats.Cycles++
	s.stats.LastCycle = started.UTC()
	s.stats.Stored += stored
	s.stats.Duplicates += duplicates
	s.stats.SourceFailures += failures
	if failures == len(s.sources) && len(s.sources) > 0 {
		s.stats.LastError = "all sources failed"
	} else {
		s.stats.LastError = ""
	}
	s.last = started
	s.mu.Unlock()

	outcome := "ok"
	if failures > 0 {
		outcome = "partial"
	}
	if len(s.sources) > 0 && failures == len(s.sources) {
		outcome = "failed"
	}
	telemetry.IngestCycles.WithLabelValues(outcome).Inc()
	s.logger.Printf("cycle done in %s: %d fetched, %d stored, %d duplicates, %d source failures",
		time.Since(started).Round(time.Millisecond), len(raw), stored, duplicates, failures)
}

// fetchAll queries every source concurrently. Sources only ever append
// to their own result slot, so no lock is needed.
func (s *Scheduler) fetchAll(ctx context.Context, since time.Time) ([]RawArticle, int) {
	results := make([][]RawArticle, len(s.sources))
	errs := make([]error, len(s.sources))

	var wg sync.WaitGroup
	for i, src := range s.sources {
		wg.Add(1)
		go func(i int, src Source) {
			defer wg.Done()
			articles, err := src.FetchLatest(ctx, since)
			if err != nil {
				var sfe *SourceFetchError
				if !errors.As(err, &sfe) {
					err = &SourceFetchError{Source: src.Name(), Err: err}
				}
				errs[i] = err
				return
			}
			results[i] = articles
		}(i, src)
	}
	wg.Wait()

	failures := 0
	var all []RawArticle
	for i := range s.sources {
		if errs[i] != nil {
			failures++
			telemetry.SourceFailures.WithLabelValues(s.sources[i].Name()).Inc()
			s.logger.Printf("%v", errs[i])
			continue
		}
		all = append(all, results[i]...)
	}
	return all, failures
}

// candidate is an article that survived dedup and is awaiting its
// embedding.
type candidate struct {
	raw         RawArticle
	fingerprint string
	text        string
}

// process dedups, embeds and upserts the fetched articles. Embedding
// runs in gateway-sized batches; a batch that fails to embed is skipped
// and its articles retried on a later cycle (their fingerprints are
// recorded only after a successful upsert).
func (s *Scheduler) process(ctx context.Context, raw []RawArticle) (stored, duplicates int) {
	inBatch := make(map[string]struct{}, len(raw))
	var pending []candidate
	for _, a := range raw {
		if a.Title == "" || a.URL == "" {
			continue
		}
		fp := dedup.Fingerprint(a.Title, a.URL)
		if _, ok := inBatch[fp]; ok {
			duplicates++
			continue
		}
		inBatch[fp] = struct{}{}

		seen, err := s.ledger.Seen(ctx, fp)
		if err != nil {
			s.logger.Printf("ledger seen %s: %v", fp, err)
			continue
		}
		if !seen {
			// The store is the authority when the ledger misses, e.g.
			// after a Redis flush; backfill the ledger on a hit.
			inStore, err := s.store.HasFingerprint(ctx, fp)
			if err != nil {
				s.logger.Printf("store fingerprint check %s: %v", fp, err)
				continue
			}
			if inStore {
				if _, err := s.ledger.Record(ctx, fp); err != nil {
					s.logger.Printf("ledger backfill %s: %v", fp, err)
				}
				seen = true
			}
		}
		if seen {
			duplicates++
			telemetry.ArticlesDeduplicated.Inc()
			continue
		}
		text := embeddingText(a)
		if text == "" {
			continue
		}
		pending = append(pending, candidate{raw: a, fingerprint: fp, text: text})
	}

	batchSize := s.embedder.BatchSize()
	for start := 0; start < len(pending); start += batchSize {
		end := start + batchSize
		if end > len(pending) {
			end = len(pending)
		}
		batch := pending[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.text
		}
		vectors, err := s.embedder.Embed(ctx, texts)
		if err != nil {
			s.logger.Printf("embedding batch of %d failed, skipping: %v", len(batch), err)
			continue
		}

		for i, c := range batch {
			article := store.Article{
				ID:          store.ArticleID(c.fingerprint),
				Title:       c.raw.Title,
				URL:         c.raw.URL,
				Source:      c.raw.Source,
				PublishedAt: c.raw.PublishedAt.UTC(),
				Content:     c.raw.Content,
				Summary:     c.raw.Summary,
				Embedding:   vectors[i],
				Fingerprint: c.fingerprint,
			}
			if err := s.store.Upsert(ctx, article); err != nil {
				s.logger.Printf("upsert %s: %v", c.raw.URL, err)
				continue
			}
			fresh, err := s.ledger.Record(ctx, c.fingerprint)
			if err != nil {
				s.logger.Printf("ledger record %s: %v", c.fingerprint, err)
			}
			if fresh || err != nil {
				stored++
				telemetry.ArticlesStored.Inc()
			} else {
				// A concurrent writer recorded it first; the store's
				// fingerprint conflict handling already made the upsert
				// a no-op.
				duplicates++
				telemetry.ArticlesDeduplicated.Inc()
			}
		}
	}
	return stored, duplicates
}
