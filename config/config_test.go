package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	viper.Reset()
	path := writeConfig(t, `{
		"llm": {"api_key": "sk-test"},
		"storage": {"memory": true},
		"ingest": {"enabled": false}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.General.Listen != ":8080" {
		t.Fatalf("listen default: %q", cfg.General.Listen)
	}
	if cfg.Embedding.Dimensions != 1536 || cfg.Embedding.BatchSize != 8 {
		t.Fatalf("embedding defaults: %+v", cfg.Embedding)
	}
	if cfg.Retrieval.MaxResults != 10 {
		t.Fatalf("retrieval default: %d", cfg.Retrieval.MaxResults)
	}
	if cfg.Ingest.Interval != 120*time.Second {
		t.Fatalf("interval default: %v", cfg.Ingest.Interval)
	}
}

func TestLoadRejectsMissingLLMKey(t *testing.T) {
	viper.Reset()
	path := writeConfig(t, `{"storage": {"memory": true}, "ingest": {"enabled": false}}`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for missing llm.api_key")
	}
}

func TestLoadEnvOverride(t *testing.T) {
	viper.Reset()
	t.Setenv("COINWIRE_GENERAL_LISTEN", ":9090")
	path := writeConfig(t, `{
		"llm": {"api_key": "sk-test"},
		"storage": {"memory": true},
		"ingest": {"enabled": false}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.General.Listen != ":9090" {
		t.Fatalf("env override ignored: %q", cfg.General.Listen)
	}
}

func TestPostgresDSN(t *testing.T) {
	pg := PostgresConfig{Host: "db", User: "app", Password: "secret", DBName: "coinwire"}
	dsn, err := pg.DSN()
	if err != nil {
		t.Fatalf("dsn: %v", err)
	}
	want := "postgres://app:secret@db:5432/coinwire?sslmode=disable"
	if dsn != want {
		t.Fatalf("dsn: got %q, want %q", dsn, want)
	}

	pg = PostgresConfig{URL: "postgres://u:p@h/x"}
	dsn, _ = pg.DSN()
	if dsn != "postgres://u:p@h/x" {
		t.Fatalf("explicit url not preferred: %q", dsn)
	}

	if _, err := (PostgresConfig{}).DSN(); err == nil {
		t.Fatal("expected error for unconfigured postgres")
	}
}

func TestIngestValidateRequiresSources(t *testing.T) {
	c := IngestConfig{Enabled: true}
	if err := c.Validate(); err == nil {
		t.Fatal("expected error when enabled with no sources")
	}
	c.Feeds = []FeedConfig{{Name: "coindesk", URL: "https://coindesk.example/rss"}}
	if err := c.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
