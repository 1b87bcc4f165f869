// Package telemetry holds the service's Prometheus instruments.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// IngestCycles counts completed ingestion cycles, by outcome.
	IngestCycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "coinwire",
		Subsystem: "ingest",
		Name:      "cycles_total",
		Help:      "Ingestion cycles run, labelled by outcome.",
	}, []string{"outcome"})

	// ArticlesStored counts articles written to the store.
	ArticlesStored = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "coinwire",
		Subsystem: "ingest",
		Name:      "articles_stored_total",
		Help:      "New articles persisted after dedup and embedding.",
	})

	// ArticlesDeduplicated counts articles dropped by the dedup ledger.
	ArticlesDeduplicated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "coinwire",
		Subsystem: "ingest",
		Name:      "articles_deduplicated_total",
		Help:      "Articles skipped because their fingerprint was already recorded.",
	})

	// SourceFailures counts per-source fetch failures.
	SourceFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "coinwire",
		Subsystem: "ingest",
		Name:      "source_failures_total",
		Help:      "Fetch failures, labelled by source name.",
	}, []string{"source"})

	// AskRequests counts question sessions, by terminal state.
	AskRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "coinwire",
		Subsystem: "ask",
		Name:      "requests_total",
		Help:      "Question sessions, labelled by terminal state.",
	}, []string{"state"})

	// ChunksStreamed counts answer chunks delivered to clients.
	ChunksStreamed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "coinwire",
		Subsystem: "ask",
		Name:      "chunks_streamed_total",
		Help:      "Answer chunks written to response streams.",
	})

	// AskDuration observes end-to-end question latency, in seconds.
	AskDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "coinwire",
		Subsystem: "ask",
		Name:      "duration_seconds",
		Help:      "Time from question receipt to terminal event.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
	})
)
