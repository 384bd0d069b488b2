// Package config loads the application configuration from an optional
// file, a .env file and NEWSRAG_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/poiesic/newsrag/ai"
	"github.com/poiesic/newsrag/ingestion"
	"github.com/poiesic/newsrag/storage"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. NEWSRAG_LLM_API_KEY.
const EnvPrefix = "NEWSRAG"

// Index backends.
const (
	BackendBadger = "badger"
	BackendQdrant = "qdrant"
)

// Config is the complete application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Index     IndexConfig     `mapstructure:"index"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Ingestion IngestionConfig `mapstructure:"ingestion"`
	Chat      ChatConfig      `mapstructure:"chat"`
}

// ServerConfig contains HTTP listener settings.
type ServerConfig struct {
	Address         string        `mapstructure:"address"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// RedisConfig locates the chat history store.
type RedisConfig struct {
	URL string `mapstructure:"url"`
}

// IndexConfig selects and locates the vector index.
type IndexConfig struct {
	Backend    string `mapstructure:"backend"`
	Collection string `mapstructure:"collection"`
	Metric     string `mapstructure:"metric"`

	// Badger
	Path     string `mapstructure:"path"`
	InMemory bool   `mapstructure:"in_memory"`

	// Qdrant
	Addr   string `mapstructure:"addr"`
	APIKey string `mapstructure:"api_key"`
	TLS    bool   `mapstructure:"tls"`
}

// EmbeddingConfig configures the embedding gateway.
type EmbeddingConfig struct {
	Provider      string `mapstructure:"provider"`
	Host          string `mapstructure:"host"`
	Model         string `mapstructure:"model"`
	APIKey        string `mapstructure:"api_key"`
	PassagePrefix string `mapstructure:"passage_prefix"`
	QueryPrefix   string `mapstructure:"query_prefix"`
}

// LLMConfig configures the answer generator.
type LLMConfig struct {
	Host        string        `mapstructure:"host"`
	Model       string        `mapstructure:"model"`
	APIKey      string        `mapstructure:"api_key"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// IngestionConfig configures the document pipeline.
type IngestionConfig struct {
	Feeds       []string      `mapstructure:"feeds"`
	Limit       int           `mapstructure:"limit"`
	PoolSize    int           `mapstructure:"pool_size"`
	EmbedPolicy string        `mapstructure:"embed_policy"`
	Attempts    int           `mapstructure:"attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
}

// ChatConfig configures chat turns and history.
type ChatConfig struct {
	TopK            int           `mapstructure:"top_k"`
	KeepAlive       time.Duration `mapstructure:"keep_alive"`
	HistoryTTL      time.Duration `mapstructure:"history_ttl"`
	MaxContextChars int           `mapstructure:"max_context_chars"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":5000")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("redis.url", "redis://localhost:6379/0")

	v.SetDefault("index.backend", BackendBadger)
	v.SetDefault("index.collection", ingestion.DefaultCollection)
	v.SetDefault("index.metric", storage.MetricCosine.String())
	v.SetDefault("index.path", "newsrag-data")
	v.SetDefault("index.in_memory", false)
	v.SetDefault("index.addr", "localhost:6334")
	v.SetDefault("index.api_key", "")
	v.SetDefault("index.tls", false)

	aiDefaults := ai.DefaultConfig()
	v.SetDefault("embedding.provider", aiDefaults.EmbeddingProvider)
	v.SetDefault("embedding.host", aiDefaults.EmbeddingHost)
	v.SetDefault("embedding.model", aiDefaults.EmbeddingModel)
	v.SetDefault("embedding.api_key", "")
	v.SetDefault("embedding.passage_prefix", "")
	v.SetDefault("embedding.query_prefix", "")

	v.SetDefault("llm.host", aiDefaults.ChatHost)
	v.SetDefault("llm.model", aiDefaults.ChatModel)
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.temperature", aiDefaults.Temperature)
	v.SetDefault("llm.max_tokens", aiDefaults.MaxTokens)
	v.SetDefault("llm.timeout", aiDefaults.RequestTimeout)

	backoff := ingestion.DefaultBackoff
	v.SetDefault("ingestion.feeds", []string{"https://feeds.bbci.co.uk/news/world/rss.xml"})
	v.SetDefault("ingestion.limit", 50)
	v.SetDefault("ingestion.pool_size", 0)
	v.SetDefault("ingestion.embed_policy", ingestion.EmbedSkip.String())
	v.SetDefault("ingestion.attempts", backoff.Attempts)
	v.SetDefault("ingestion.base_delay", backoff.BaseDelay)
	v.SetDefault("ingestion.max_delay", backoff.MaxDelay)

	v.SetDefault("chat.top_k", 5)
	v.SetDefault("chat.keep_alive", 30*time.Second)
	v.SetDefault("chat.history_ttl", 24*time.Hour)
	v.SetDefault("chat.max_context_chars", 12000)
}

// Load reads the configuration. When path is empty, newsrag.{yaml,json,toml}
// is looked up in the working directory and ./config, and its absence is
// not an error. A .env file in the working directory is loaded into the
// process environment first.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("newsrag")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the sections that have no component-level validation.
// Embedding and LLM settings are validated through AI().
func (c *Config) Validate() error {
	c.Index.Backend = strings.ToLower(strings.TrimSpace(c.Index.Backend))
	switch c.Index.Backend {
	case BackendBadger:
		if c.Index.Path == "" && !c.Index.InMemory {
			return errors.New("config: index.path is required for the badger backend")
		}
	case BackendQdrant:
		if c.Index.Addr == "" {
			return errors.New("config: index.addr is required for the qdrant backend")
		}
	default:
		return fmt.Errorf("config: index.backend must be %s or %s, got %q", BackendBadger, BackendQdrant, c.Index.Backend)
	}
	if err := storage.ValidateCollectionName(c.Index.Collection); err != nil {
		return fmt.Errorf("config: index.collection: %w", err)
	}
	if _, err := storage.ParseMetric(c.Index.Metric); err != nil {
		return fmt.Errorf("config: index.metric: %w", err)
	}
	if c.Redis.URL == "" {
		return errors.New("config: redis.url is required")
	}
	if _, err := ingestion.ParseEmbedPolicy(c.Ingestion.EmbedPolicy); err != nil {
		return fmt.Errorf("config: ingestion.embed_policy: %w", err)
	}
	if c.Ingestion.Attempts < 1 {
		return errors.New("config: ingestion.attempts must be positive")
	}
	if c.Chat.TopK < 1 {
		return errors.New("config: chat.top_k must be positive")
	}
	return c.AI().Validate()
}

// AI returns the gateway configuration for the embedding and LLM sections.
func (c *Config) AI() *ai.Config {
	return ai.NewConfig(
		ai.WithEmbeddingProvider(c.Embedding.Provider),
		ai.WithEmbeddingHost(c.Embedding.Host),
		ai.WithEmbeddingModel(c.Embedding.Model),
		ai.WithEmbeddingAPIKey(c.Embedding.APIKey),
		ai.WithPrefixes(c.Embedding.PassagePrefix, c.Embedding.QueryPrefix),
		ai.WithChatHost(c.LLM.Host),
		ai.WithChatModel(c.LLM.Model),
		ai.WithChatAPIKey(c.LLM.APIKey),
		ai.WithTemperature(c.LLM.Temperature),
		ai.WithMaxTokens(c.LLM.MaxTokens),
		ai.WithRequestTimeout(c.LLM.Timeout),
	)
}

// Backoff returns the source retry policy.
func (c *Config) Backoff() ingestion.Backoff {
	return ingestion.Backoff{
		Attempts:  c.Ingestion.Attempts,
		BaseDelay: c.Ingestion.BaseDelay,
		MaxDelay:  c.Ingestion.MaxDelay,
	}
}
