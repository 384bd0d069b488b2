package search

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/poiesic/newsrag/ai"
	"github.com/poiesic/newsrag/core"
	"github.com/poiesic/newsrag/storage"
)

const (
	// DefaultTopK is the number of results returned when the caller does not ask for a count.
	DefaultTopK = 5

	// MaxTopK bounds caller-supplied result counts.
	MaxTopK = 50
)

// Searcher answers similarity queries against a news collection.
type Searcher struct {
	index      storage.VectorIndex
	embedder   ai.Embedder
	collection string
	monitor    SearchMonitor
	logger     *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithCollection sets the collection to search. Default is "news".
func WithCollection(name string) Option {
	return func(s *Searcher) error {
		if err := storage.ValidateCollectionName(name); err != nil {
			return err
		}
		s.collection = name
		return nil
	}
}

// WithMonitor installs a monitor observing every search.
// The monitor must be safe for concurrent use.
func WithMonitor(monitor SearchMonitor) Option {
	return func(s *Searcher) error {
		if monitor == nil {
			monitor = noopMonitor{}
		}
		s.monitor = monitor
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(index storage.VectorIndex, embedder ai.Embedder, opts ...Option) (*Searcher, error) {
	if index == nil {
		return nil, ErrIndexRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	s := &Searcher{
		index:      index,
		embedder:   embedder,
		collection: "news",
		monitor:    noopMonitor{},
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "searcher")

	return s, nil
}

// Search returns up to topK documents similar to query, best first.
// A topK below 1 means DefaultTopK.
func (s *Searcher) Search(ctx context.Context, query string, topK int) ([]core.SearchResult, error) {
	return s.SearchWithMonitor(ctx, query, topK, nil)
}

// SearchWithMonitor is Search with an additional per-call monitor.
// The per-call monitor is notified after the searcher's own monitor.
func (s *Searcher) SearchWithMonitor(ctx context.Context, query string, topK int, monitor SearchMonitor) ([]core.SearchResult, error) {
	mon := s.monitor
	if monitor != nil {
		mon = multiMonitor{s.monitor, monitor}
	}
	start := time.Now()
	mon.Start(query)

	results, stage, err := s.search(ctx, query, clampTopK(topK), mon)
	if err != nil {
		s.logger.Error("search failed", "stage", stage, "err", err)
		mon.Failed(stage, err, time.Since(start))
		return nil, &RetrievalError{Stage: stage, Err: err}
	}

	mon.Finish(results, time.Since(start))
	return results, nil
}

func (s *Searcher) search(ctx context.Context, query string, topK int, mon SearchMonitor) ([]core.SearchResult, Stage, error) {
	if strings.TrimSpace(query) == "" {
		return nil, StageQuery, ErrEmptyQuery
	}

	if err := s.index.Health(ctx); err != nil {
		return nil, StageHealth, err
	}

	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, StageEmbed, err
	}
	mon.AfterEmbedding(len(vector))

	results, err := s.index.Search(ctx, s.collection, vector, topK)
	if err != nil {
		return nil, StageSearch, err
	}
	core.SortResults(results)
	if len(results) > topK {
		results = results[:topK]
	}
	s.logger.Debug("search complete", "results", len(results), "top_k", topK)
	return results, "", nil
}

func clampTopK(topK int) int {
	if topK < 1 {
		return DefaultTopK
	}
	return min(topK, MaxTopK)
}
