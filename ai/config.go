// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package ai

import (
	"errors"
	"strings"
	"time"
)

// Embedding provider identifiers.
const (
	EmbeddingProviderJina   = "jina"
	EmbeddingProviderOpenAI = "openai"
)

// Config holds configuration for AI service providers.
type Config struct {
	// EmbeddingProvider selects the embedding backend: "jina" or "openai".
	// The openai backend speaks to any OpenAI-compatible server.
	EmbeddingProvider string

	// EmbeddingHost is the base URL for the embedding service API.
	// Example: "https://api.jina.ai/v1", "http://localhost:11434/v1"
	EmbeddingHost string

	// EmbeddingModel is the model identifier to use for text embeddings.
	// Example: "jina-embeddings-v3", "text-embedding-3-small"
	EmbeddingModel string

	// EmbeddingAPIKey authenticates embedding calls. Empty for local servers.
	EmbeddingAPIKey string

	// PassagePrefix and QueryPrefix are prepended to texts by the openai
	// backend, for instruction-tuned models that encode the mode in-band.
	PassagePrefix string
	QueryPrefix   string

	// ChatHost is the base URL for the chat completion API.
	// Example: "https://api.openai.com/v1"
	ChatHost string

	// ChatModel is the model identifier used to generate answers.
	// Example: "gpt-4o-mini", "qwen2.5:3b"
	ChatModel string

	// ChatAPIKey authenticates chat calls. Empty for local servers.
	ChatAPIKey string

	// Temperature is the sampling temperature for answers.
	// Default: 0.7
	Temperature float64

	// MaxTokens caps the length of a generated answer.
	// Default: 1000
	MaxTokens int

	// RequestTimeout bounds non-streaming gateway calls.
	// Default: 60s
	RequestTimeout time.Duration
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithEmbeddingProvider selects the embedding backend.
func WithEmbeddingProvider(provider string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingProvider = provider
	}
}

// WithEmbeddingHost sets the embedding service host URL.
func WithEmbeddingHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
	}
}

// WithEmbeddingModel sets the embedding model identifier.
func WithEmbeddingModel(model string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingModel = model
	}
}

// WithEmbeddingAPIKey sets the embedding API key.
func WithEmbeddingAPIKey(key string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingAPIKey = key
	}
}

// WithPrefixes sets the passage and query prefixes for the openai backend.
func WithPrefixes(passage, query string) ConfigOption {
	return func(c *Config) {
		c.PassagePrefix = passage
		c.QueryPrefix = query
	}
}

// WithChatHost sets the chat completion host URL.
func WithChatHost(host string) ConfigOption {
	return func(c *Config) {
		c.ChatHost = host
	}
}

// WithChatModel sets the chat model identifier.
func WithChatModel(model string) ConfigOption {
	return func(c *Config) {
		c.ChatModel = model
	}
}

// WithChatAPIKey sets the chat API key.
func WithChatAPIKey(key string) ConfigOption {
	return func(c *Config) {
		c.ChatAPIKey = key
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) ConfigOption {
	return func(c *Config) {
		c.Temperature = t
	}
}

// WithMaxTokens sets the answer token cap.
func WithMaxTokens(n int) ConfigOption {
	return func(c *Config) {
		c.MaxTokens = n
	}
}

// WithRequestTimeout sets the timeout for non-streaming calls.
func WithRequestTimeout(d time.Duration) ConfigOption {
	return func(c *Config) {
		c.RequestTimeout = d
	}
}

// DefaultConfig returns a Config targeting Jina embeddings and OpenAI chat.
func DefaultConfig() *Config {
	return &Config{
		EmbeddingProvider: EmbeddingProviderJina,
		EmbeddingHost:     "https://api.jina.ai/v1",
		EmbeddingModel:    "jina-embeddings-v3",
		ChatHost:          "https://api.openai.com/v1",
		ChatModel:         "gpt-4o-mini",
		Temperature:       0.7,
		MaxTokens:         1000,
		RequestTimeout:    60 * time.Second,
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
//
// Example:
//
//	cfg := NewConfig(
//	    WithEmbeddingProvider(EmbeddingProviderOpenAI),
//	    WithEmbeddingHost("http://localhost:11434"),
//	    WithEmbeddingModel("nomic-embed-text"),
//	)
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize ensures the configuration is in a canonical form.
// It adds the /v1 suffix to hosts if missing, which is required
// by OpenAI-compatible APIs and by the Jina endpoint layout.
func (c *Config) Normalize() {
	c.EmbeddingProvider = strings.ToLower(strings.TrimSpace(c.EmbeddingProvider))
	c.EmbeddingHost = withV1(c.EmbeddingHost)
	c.ChatHost = withV1(c.ChatHost)
}

func withV1(host string) string {
	if host == "" || strings.HasSuffix(host, "/v1") {
		return host
	}
	return strings.TrimSuffix(host, "/") + "/v1"
}

// Validate checks that the configuration is valid and complete.
// It automatically normalizes the configuration before validation.
func (c *Config) Validate() error {
	c.Normalize()

	if c.EmbeddingProvider != EmbeddingProviderJina && c.EmbeddingProvider != EmbeddingProviderOpenAI {
		return errors.New("ai config: EmbeddingProvider must be jina or openai")
	}
	if c.EmbeddingHost == "" {
		return errors.New("ai config: EmbeddingHost is required")
	}
	if c.EmbeddingModel == "" {
		return errors.New("ai config: EmbeddingModel is required")
	}
	if c.ChatHost == "" {
		return errors.New("ai config: ChatHost is required")
	}
	if c.ChatModel == "" {
		return errors.New("ai config: ChatModel is required")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return errors.New("ai config: Temperature must be between 0 and 2")
	}
	if c.MaxTokens < 1 {
		return errors.New("ai config: MaxTokens must be positive")
	}
	if c.RequestTimeout <= 0 {
		return errors.New("ai config: RequestTimeout must be positive")
	}
	return nil
}
