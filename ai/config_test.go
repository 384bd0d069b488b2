package ai

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, EmbeddingProviderJina, cfg.EmbeddingProvider)
	assert.Equal(t, "https://api.jina.ai/v1", cfg.EmbeddingHost)
	assert.Equal(t, "jina-embeddings-v3", cfg.EmbeddingModel)
	assert.Equal(t, "https://api.openai.com/v1", cfg.ChatHost)
	assert.Equal(t, "gpt-4o-mini", cfg.ChatModel)
	assert.InDelta(t, 0.7, cfg.Temperature, 1e-9)
	assert.Equal(t, 1000, cfg.MaxTokens)
	assert.Equal(t, 60*time.Second, cfg.RequestTimeout)
}

func TestNewConfig(t *testing.T) {
	t.Run("with no options", func(t *testing.T) {
		cfg := NewConfig()

		assert.NotNil(t, cfg)
		assert.Equal(t, "gpt-4o-mini", cfg.ChatModel)
	})

	t.Run("with local openai-compatible embeddings", func(t *testing.T) {
		cfg := NewConfig(
			WithEmbeddingProvider(EmbeddingProviderOpenAI),
			WithEmbeddingHost("http://localhost:11434/v1"),
			WithEmbeddingModel("nomic-embed-text"),
			WithPrefixes("search_document: ", "search_query: "),
		)

		assert.Equal(t, EmbeddingProviderOpenAI, cfg.EmbeddingProvider)
		assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)
		assert.Equal(t, "nomic-embed-text", cfg.EmbeddingModel)
		assert.Equal(t, "search_document: ", cfg.PassagePrefix)
		assert.Equal(t, "search_query: ", cfg.QueryPrefix)
	})

	t.Run("with chat options", func(t *testing.T) {
		cfg := NewConfig(
			WithChatHost("http://chat:9090/v1"),
			WithChatModel("qwen2.5:3b"),
			WithChatAPIKey("secret"),
			WithTemperature(0.2),
			WithMaxTokens(256),
			WithRequestTimeout(5*time.Second),
		)

		assert.Equal(t, "http://chat:9090/v1", cfg.ChatHost)
		assert.Equal(t, "qwen2.5:3b", cfg.ChatModel)
		assert.Equal(t, "secret", cfg.ChatAPIKey)
		assert.InDelta(t, 0.2, cfg.Temperature, 1e-9)
		assert.Equal(t, 256, cfg.MaxTokens)
		assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	})
}

func TestConfigNormalize(t *testing.T) {
	tests := []struct {
		name     string
		host     string
		expected string
	}{
		{"already has /v1", "http://localhost:11434/v1", "http://localhost:11434/v1"},
		{"missing /v1", "http://localhost:11434", "http://localhost:11434/v1"},
		{"has trailing slash", "http://localhost:11434/", "http://localhost:11434/v1"},
		{"empty host", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{EmbeddingHost: tt.host, ChatHost: tt.host, EmbeddingProvider: " JINA "}
			cfg.Normalize()

			assert.Equal(t, tt.expected, cfg.EmbeddingHost)
			assert.Equal(t, tt.expected, cfg.ChatHost)
			assert.Equal(t, EmbeddingProviderJina, cfg.EmbeddingProvider)
		})
	}
}

func TestConfigValidate(t *testing.T) {
	t.Run("defaults are valid", func(t *testing.T) {
		require.NoError(t, DefaultConfig().Validate())
	})

	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"unknown provider", func(c *Config) { c.EmbeddingProvider = "cohere" }, "EmbeddingProvider"},
		{"missing embedding host", func(c *Config) { c.EmbeddingHost = "" }, "EmbeddingHost"},
		{"missing embedding model", func(c *Config) { c.EmbeddingModel = "" }, "EmbeddingModel"},
		{"missing chat host", func(c *Config) { c.ChatHost = "" }, "ChatHost"},
		{"missing chat model", func(c *Config) { c.ChatModel = "" }, "ChatModel"},
		{"temperature too high", func(c *Config) { c.Temperature = 3 }, "Temperature"},
		{"zero max tokens", func(c *Config) { c.MaxTokens = 0 }, "MaxTokens"},
		{"zero timeout", func(c *Config) { c.RequestTimeout = 0 }, "RequestTimeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
