package main

import (
	"context"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"

	"github.com/coinwire/coinwire/config"
	"github.com/coinwire/coinwire/internal/dedup"
	"github.com/coinwire/coinwire/internal/embedding"
	"github.com/coinwire/coinwire/internal/ingest"
	"github.com/coinwire/coinwire/internal/llm"
	"github.com/coinwire/coinwire/internal/rag"
	"github.com/coinwire/coinwire/internal/server"
	"github.com/coinwire/coinwire/internal/store"
)

// app holds the wired dependency graph for one process.
type app struct {
	Server    *server.Server
	Scheduler *ingest.Scheduler
	Logger    *log.Logger

	pg  *store.Postgres
	rdb *redis.Client
}

func (a *app) Close() {
	if a.pg != nil {
		_ = a.pg.Close()
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
}

func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{Logger: log.New(log.Writer(), "[COINWIRE] ", log.LstdFlags)}

	var st store.ArticleStore
	var ledger dedup.Ledger
	if cfg.Storage.Memory {
		st = store.NewMemory()
		ledger = dedup.NewMemoryLedger()
	} else {
		dsn, err := cfg.Storage.Postgres.DSN()
		if err != nil {
			return nil, err
		}
		pg, err := store.NewPostgres(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		a.pg = pg
		st = pg

		a.rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Storage.Redis.Addr(),
			Password: cfg.Storage.Redis.Pass,
			DB:       cfg.Storage.Redis.DB,
		})
		if err := a.rdb.Ping(ctx).Err(); err != nil {
			a.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		ledger = dedup.NewRedisLedger(a.rdb, 0)
	}

	primary := embedding.NewOpenAIProvider(cfg.LLM.APIKey, cfg.Embedding.Model, cfg.LLM.BaseURL,
		cfg.Embedding.Timeout, 1)
	var fallback embedding.Provider
	if cfg.Embedding.CohereAPIKey != "" {
		fallback = embedding.NewCohereProvider(cfg.Embedding.CohereAPIKey, cfg.Embedding.CohereModel,
			cfg.Embedding.Timeout)
	}
	gateway := embedding.NewGateway(primary, fallback, cfg.Embedding.BatchSize,
		cfg.Embedding.Dimensions, nil)

	generator := llm.NewOpenAIClient(cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.BaseURL,
		cfg.LLM.Temperature, cfg.LLM.MaxTokens, cfg.LLM.Timeout)
	moderator := rag.NewModerator(cfg.Moderation.BlockedPatterns...)
	engine := rag.NewEngine(gateway, st, generator, moderator, cfg.Retrieval.MaxResults, nil)

	var sources []ingest.Source
	if cfg.Ingest.NewsAPI.APIKey != "" {
		sources = append(sources, ingest.NewNewsAPISource(cfg.Ingest.NewsAPI.APIKey,
			cfg.Ingest.NewsAPI.Endpoint, cfg.Ingest.NewsAPI.Keywords, 0))
	}
	for _, f := range cfg.Ingest.Feeds {
		sources = append(sources, ingest.NewFeedSource(f.Name, f.URL, cfg.Ingest.MaxPerFeed,
			cfg.Ingest.ExtractContent))
	}
	a.Scheduler = ingest.NewScheduler(sources, st, ledger, gateway, ingest.SchedulerConfig{
		Interval:        cfg.Ingest.Interval,
		InitialLookback: cfg.Ingest.InitialLookback,
		Window:          cfg.Ingest.Lookback,
		Cron:            cfg.Ingest.Schedule,
		Redis:           a.rdb,
	}, nil)

	var stats server.StatsFunc
	if cfg.Ingest.Enabled {
		stats = a.Scheduler.Stats
	}
	a.Server = server.New(engine, st, stats, nil)
	return a, nil
}
