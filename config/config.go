// Package config loads the service configuration from file and
// environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the service.
type Config struct {
	General    GeneralConfig    `mapstructure:"general"`
	LLM        LLMConfig        `mapstructure:"llm"`
	Embedding  EmbeddingConfig  `mapstructure:"embedding"`
	Retrieval  RetrievalConfig  `mapstructure:"retrieval"`
	Ingest     IngestConfig     `mapstructure:"ingest"`
	Moderation ModerationConfig `mapstructure:"moderation"`
	Storage    StorageConfig    `mapstructure:"storage"`
}

// GeneralConfig contains process-wide settings.
type GeneralConfig struct {
	Listen   string `mapstructure:"listen"`
	LogLevel string `mapstructure:"log_level"`
	Debug    bool   `mapstructure:"debug"`
}

// LLMConfig configures the answer-generation backend.
type LLMConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

func (c LLMConfig) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("llm.api_key is required")
	}
	return nil
}

// EmbeddingConfig configures the primary (OpenAI) and fallback (Cohere)
// embedding providers.
type EmbeddingConfig struct {
	Model        string        `mapstructure:"model"`
	Dimensions   int           `mapstructure:"dimensions"`
	BatchSize    int           `mapstructure:"batch_size"`
	Timeout      time.Duration `mapstructure:"timeout"`
	CohereAPIKey string        `mapstructure:"cohere_api_key"`
	CohereModel  string        `mapstructure:"cohere_model"`
}

func (c EmbeddingConfig) Validate() error {
	if c.Dimensions <= 0 {
		return fmt.Errorf("embedding.dimensions must be > 0")
	}
	return nil
}

// RetrievalConfig bounds similarity search.
type RetrievalConfig struct {
	MaxResults int `mapstructure:"max_results"`
}

// FeedConfig is one RSS/Atom feed.
type FeedConfig struct {
	Name string `mapstructure:"name"`
	URL  string `mapstructure:"url"`
}

// NewsAPIConfig configures the NewsAPI source.
type NewsAPIConfig struct {
	APIKey   string   `mapstructure:"api_key"`
	Endpoint string   `mapstructure:"endpoint"`
	Keywords []string `mapstructure:"keywords"`
}

// IngestConfig configures the background ingestion loop.
type IngestConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Interval        time.Duration `mapstructure:"interval"`
	InitialLookback time.Duration `mapstructure:"initial_lookback"`
	Lookback        time.Duration `mapstructure:"lookback"`
	Schedule        string        `mapstructure:"schedule"`
	NewsAPI         NewsAPIConfig `mapstructure:"newsapi"`
	Feeds           []FeedConfig  `mapstructure:"feeds"`
	MaxPerFeed      int           `mapstructure:"max_per_feed"`
	ExtractContent  bool          `mapstructure:"extract_content"`
}

func (c IngestConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.NewsAPI.APIKey == "" && len(c.Feeds) == 0 {
		return fmt.Errorf("ingest enabled but no sources configured (ingest.newsapi.api_key or ingest.feeds)")
	}
	for _, f := range c.Feeds {
		if f.URL == "" {
			return fmt.Errorf("ingest.feeds entry %q missing url", f.Name)
		}
	}
	return nil
}

// ModerationConfig overrides the built-in blocked-pattern list.
type ModerationConfig struct {
	BlockedPatterns []string `mapstructure:"blocked_patterns"`
}

// PostgresConfig locates the article store.
type PostgresConfig struct {
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// DSN assembles the connection string, preferring an explicit URL.
func (c PostgresConfig) DSN() (string, error) {
	if c.URL != "" {
		return c.URL, nil
	}
	if c.Host == "" || c.DBName == "" {
		return "", fmt.Errorf("postgres not configured (storage.postgres.url or host/dbname)")
	}
	port := c.Port
	if port == "" {
		port = "5432"
	}
	ssl := c.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, port, c.DBName, ssl), nil
}

// RedisConfig locates the dedup ledger and cycle lock.
type RedisConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
	Pass string `mapstructure:"pass"`
	DB   int    `mapstructure:"db"`
}

func (c RedisConfig) Addr() string {
	host := c.Host
	if host == "" {
		host = "localhost"
	}
	port := c.Port
	if port == "" {
		port = "6379"
	}
	return host + ":" + port
}

// StorageConfig selects the persistence backends. Memory true swaps
// Postgres and Redis for in-process implementations.
type StorageConfig struct {
	Memory   bool           `mapstructure:"memory"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

func (c StorageConfig) Validate() error {
	if c.Memory {
		return nil
	}
	_, err := c.Postgres.DSN()
	return err
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.LLM.Validate(); err != nil {
		return err
	}
	if err := c.Embedding.Validate(); err != nil {
		return err
	}
	if err := c.Ingest.Validate(); err != nil {
		return err
	}
	return c.Storage.Validate()
}

func setDefaults() {
	viper.SetDefault("general.listen", ":8080")
	viper.SetDefault("general.log_level", "info")
	viper.SetDefault("general.debug", false)

	viper.SetDefault("llm.model", "gpt-4o-mini")
	viper.SetDefault("llm.temperature", 0.2)
	viper.SetDefault("llm.max_tokens", 1024)
	viper.SetDefault("llm.timeout", time.Minute)

	viper.SetDefault("embedding.model", "text-embedding-3-small")
	viper.SetDefault("embedding.dimensions", 1536)
	viper.SetDefault("embedding.batch_size", 8)
	viper.SetDefault("embedding.timeout", 15*time.Second)
	viper.SetDefault("embedding.cohere_model", "embed-english-v3.0")

	viper.SetDefault("retrieval.max_results", 10)

	viper.SetDefault("ingest.enabled", true)
	viper.SetDefault("ingest.interval", 120*time.Second)
	viper.SetDefault("ingest.initial_lookback", 24*time.Hour)
	viper.SetDefault("ingest.lookback", 2*time.Hour)
	viper.SetDefault("ingest.max_per_feed", 25)
	viper.SetDefault("ingest.extract_content", false)

	viper.SetDefault("storage.memory", false)
	viper.SetDefault("storage.postgres.port", "5432")
	viper.SetDefault("storage.postgres.sslmode", "disable")
	viper.SetDefault("storage.redis.host", "localhost")
	viper.SetDefault("storage.redis.port", "6379")
	viper.SetDefault("storage.redis.db", 0)
}

// Load reads config from the given path (or the default search paths
// when empty), merges COINWIRE_* environment variables, and validates
// the result. A missing config file is not an error: defaults plus
// environment suffice.
func Load(path string) (*Config, error) {
	setDefaults()

	if path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("json")
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
	}

	viper.SetEnvPrefix("COINWIRE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && path != "" {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}
