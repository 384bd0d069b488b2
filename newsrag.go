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


// Package newsrag wires the news chat service together and owns the
// lifecycle of its external connections.
package newsrag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/poiesic/newsrag/ai"
	"github.com/poiesic/newsrag/ai/jina"
	"github.com/poiesic/newsrag/ai/openai"
	"github.com/poiesic/newsrag/chat"
	"github.com/poiesic/newsrag/config"
	"github.com/poiesic/newsrag/core"
	"github.com/poiesic/newsrag/generation"
	"github.com/poiesic/newsrag/history"
	"github.com/poiesic/newsrag/ingestion"
	"github.com/poiesic/newsrag/metrics"
	"github.com/poiesic/newsrag/search"
	"github.com/poiesic/newsrag/server"
	"github.com/poiesic/newsrag/sources"
	"github.com/poiesic/newsrag/storage"
	"github.com/poiesic/newsrag/storage/badger"
	"github.com/poiesic/newsrag/storage/qdrant"
	"github.com/redis/go-redis/v9"
)

// ErrConfigRequired is returned by Open when no configuration is given.
var ErrConfigRequired = errors.New("config required")

// System is a fully wired news chat service.
type System struct {
	config   *config.Config
	index    storage.VectorIndex
	redis    redis.UniversalClient
	provider ai.AIProvider
	owned    ownership

	history    *history.Store
	searcher   *search.Searcher
	generation *generation.Service
	chat       *chat.Orchestrator
	pipeline   *ingestion.Pipeline
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// ownership records which connections Close must release.
type ownership struct {
	index, redis, provider bool
}

// Option configures Open.
type Option func(*options)

type options struct {
	index    storage.VectorIndex
	redis    redis.UniversalClient
	provider ai.AIProvider
	sources  []sources.Source
	logger   *slog.Logger
}

// WithIndex uses index instead of opening the configured backend.
// The caller keeps ownership.
func WithIndex(index storage.VectorIndex) Option {
	return func(o *options) { o.index = index }
}

// WithRedisClient uses client instead of dialling redis.url.
// The caller keeps ownership.
func WithRedisClient(client redis.UniversalClient) Option {
	return func(o *options) { o.redis = client }
}

// WithProvider uses provider instead of the configured AI gateways.
// The caller keeps ownership.
func WithProvider(provider ai.AIProvider) Option {
	return func(o *options) { o.provider = provider }
}

// WithSources replaces the configured feeds.
func WithSources(srcs ...sources.Source) Option {
	return func(o *options) { o.sources = srcs }
}

// WithLogger sets the logger handed to every component.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// Open connects to the configured backends and wires every component.
// Connections are lazy; use Health to probe them.
func Open(cfg *config.Config, opts ...Option) (sys *System, err error) {
	if cfg == nil {
		return nil, ErrConfigRequired
	}
	o := &options{logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}

	s := &System{
		config:   cfg,
		index:    o.index,
		redis:    o.redis,
		provider: o.provider,
		metrics:  metrics.New(),
		logger:   o.logger.With("component", "newsrag"),
	}
	defer func() {
		if err != nil {
			s.Close()
		}
	}()

	if s.index == nil {
		if s.index, err = openIndex(cfg.Index); err != nil {
			return nil, fmt.Errorf("opening index: %w", err)
		}
		s.owned.index = true
	}
	if s.redis == nil {
		redisOpts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		s.redis = redis.NewClient(redisOpts)
		s.owned.redis = true
	}
	if s.provider == nil {
		if s.provider, err = newProvider(cfg.AI()); err != nil {
			return nil, fmt.Errorf("creating ai provider: %w", err)
		}
		s.owned.provider = true
	}

	srcs := o.sources
	if len(srcs) == 0 {
		if srcs, err = feeds(cfg.Ingestion); err != nil {
			return nil, err
		}
	}

	if err := s.wire(srcs, o.logger); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *System) wire(srcs []sources.Source, logger *slog.Logger) error {
	cfg := s.config
	metric, err := storage.ParseMetric(cfg.Index.Metric)
	if err != nil {
		return err
	}
	policy, err := ingestion.ParseEmbedPolicy(cfg.Ingestion.EmbedPolicy)
	if err != nil {
		return err
	}

	if s.history, err = history.NewStore(s.redis,
		history.WithTTL(cfg.Chat.HistoryTTL),
		history.WithLogger(logger),
	); err != nil {
		return err
	}

	if s.searcher, err = search.NewSearcher(s.index, s.provider.Embedder(),
		search.WithCollection(cfg.Index.Collection),
		search.WithMonitor(s.metrics.SearchMonitor()),
		search.WithLogger(logger),
	); err != nil {
		return err
	}

	if s.generation, err = generation.NewService(s.provider.Generator(),
		generation.WithMaxContextChars(cfg.Chat.MaxContextChars),
		generation.WithLogger(logger),
	); err != nil {
		return err
	}

	if s.chat, err = chat.NewOrchestrator(s.searcher, s.generation, s.history,
		chat.WithTopK(cfg.Chat.TopK),
		chat.WithKeepAlive(cfg.Chat.KeepAlive),
		chat.WithObserver(s.metrics),
		chat.WithLogger(logger),
	); err != nil {
		return err
	}

	pipelineOpts := []ingestion.Option{
		ingestion.WithCollection(cfg.Index.Collection, metric),
		ingestion.WithEmbedPolicy(policy),
		ingestion.WithBackoff(cfg.Backoff()),
		ingestion.WithLogger(logger),
	}
	if cfg.Ingestion.PoolSize > 0 {
		pipelineOpts = append(pipelineOpts, ingestion.WithPoolSize(cfg.Ingestion.PoolSize))
	}
	s.pipeline, err = ingestion.NewPipeline(s.index, s.provider.Embedder(), srcs, pipelineOpts...)
	return err
}

func openIndex(cfg config.IndexConfig) (storage.VectorIndex, error) {
	if cfg.Backend == config.BackendQdrant {
		ix, err := qdrant.NewIndex(qdrant.Config{Addr: cfg.Addr, APIKey: cfg.APIKey, UseTLS: cfg.TLS})
		if err != nil {
			return nil, err
		}
		return ix, nil
	}
	ix, err := badger.OpenIndex(cfg.Path, cfg.InMemory)
	if err != nil {
		return nil, err
	}
	return ix, nil
}

// newProvider builds the langchaingo provider, swapping in the Jina
// embedder when configured.
func newProvider(cfg *ai.Config) (ai.AIProvider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.EmbeddingProvider != ai.EmbeddingProviderJina {
		return openai.NewProvider(cfg)
	}
	embedder, err := jina.NewEmbedder(cfg)
	if err != nil {
		return nil, err
	}
	return openai.NewProvider(cfg, openai.WithEmbedder(embedder))
}

func feeds(cfg config.IngestionConfig) ([]sources.Source, error) {
	srcs := make([]sources.Source, 0, len(cfg.Feeds))
	for _, url := range cfg.Feeds {
		feed, err := sources.NewFeed(url, sources.WithLimit(cfg.Limit))
		if err != nil {
			return nil, fmt.Errorf("feed %q: %w", url, err)
		}
		srcs = append(srcs, feed)
	}
	return srcs, nil
}

// Close releases the worker pool and every connection Open created.
func (s *System) Close() error {
	if s.pipeline != nil {
		s.pipeline.Release()
	}

	var errs []error
	if s.owned.provider && s.provider != nil {
		if err := s.provider.Close(); err != nil {
			s.logger.Error("error closing AI provider", "err", err)
			errs = append(errs, err)
		}
	}
	if s.owned.redis && s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("error closing redis client", "err", err)
			errs = append(errs, err)
		}
	}
	if s.owned.index && s.index != nil {
		if err := s.index.Close(); err != nil {
			s.logger.Error("error closing vector index", "err", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Health probes the history store and the vector index.
func (s *System) Health(ctx context.Context) error {
	return errors.Join(s.history.Ping(ctx), s.index.Health(ctx))
}

// Ingest runs the ingestion pipeline and records its outcome.
func (s *System) Ingest(ctx context.Context, recreate bool) (*ingestion.Summary, error) {
	summary, err := s.pipeline.Run(ctx, ingestion.RunOptions{Recreate: recreate})
	s.metrics.ObserveIngestion(summary, err)
	return summary, err
}

// Search runs a similarity query against the news collection.
func (s *System) Search(ctx context.Context, query string, topK int) ([]core.SearchResult, error) {
	return s.searcher.Search(ctx, query, topK)
}

// Chat returns the chat orchestrator.
func (s *System) Chat() *chat.Orchestrator {
	return s.chat
}

// History returns the chat history store.
func (s *System) History() *history.Store {
	return s.history
}

// Metrics returns the service collectors.
func (s *System) Metrics() *metrics.Metrics {
	return s.metrics
}

// Index returns the vector index.
func (s *System) Index() storage.VectorIndex {
	return s.index
}

// NewServer builds the HTTP front end over the system.
func (s *System) NewServer(opts ...server.Option) (*server.Server, error) {
	return server.New(server.Deps{
		Ingester:  s,
		Retriever: s,
		Chat:      s.chat,
		History:   s.history,
		Index:     s.index,
		Metrics:   s.metrics,
	}, opts...)
}
