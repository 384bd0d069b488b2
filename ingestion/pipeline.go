package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/newsrag/ai"
	"github.com/poiesic/newsrag/sources"
	"github.com/poiesic/newsrag/storage"
)

const (
	// DefaultCollection is the collection articles are stored in.
	DefaultCollection = "news"

	defaultBatchSize = 100
)

// EmbedPolicy decides what happens when a single document fails to embed.
type EmbedPolicy int

const (
	// EmbedSkip drops the document and continues.
	EmbedSkip EmbedPolicy = iota
	// EmbedAbort fails the whole run.
	EmbedAbort
)

func (p EmbedPolicy) String() string {
	if p == EmbedAbort {
		return "abort"
	}
	return "skip"
}

// ParseEmbedPolicy converts "skip" or "abort" into an EmbedPolicy.
func ParseEmbedPolicy(name string) (EmbedPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "skip":
		return EmbedSkip, nil
	case "abort":
		return EmbedAbort, nil
	default:
		return EmbedSkip, fmt.Errorf("%w: %q", ErrUnknownEmbedPolicy, name)
	}
}

// Pipeline fetches, embeds and stores news articles.
// Runs are serialized; a second concurrent Run fails fast.
type Pipeline struct {
	sources    []sources.Source
	embedder   ai.Embedder
	index      storage.VectorIndex
	collection string
	metric     storage.Metric
	pool       *ants.Pool
	policy     EmbedPolicy
	backoff    Backoff
	batchSize  int
	running    sync.Mutex
	logger     *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size shared by the fetch and embed stages.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		if p.pool != nil {
			p.pool.Release()
		}
		p.pool = pool
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// WithEmbedPolicy sets how single-document embedding failures are handled.
// Default is EmbedSkip.
func WithEmbedPolicy(policy EmbedPolicy) Option {
	return func(p *Pipeline) error {
		p.policy = policy
		return nil
	}
}

// WithBackoff sets the retry schedule for source fetches.
func WithBackoff(backoff Backoff) Option {
	return func(p *Pipeline) error {
		if backoff.Attempts < 1 {
			return ErrInvalidMaxAttempts
		}
		p.backoff = backoff
		return nil
	}
}

// WithCollection sets the target collection and its similarity metric.
// Default is "news" with cosine similarity.
func WithCollection(name string, metric storage.Metric) Option {
	return func(p *Pipeline) error {
		if err := storage.ValidateCollectionName(name); err != nil {
			return err
		}
		p.collection = name
		p.metric = metric
		return nil
	}
}

// WithBatchSize sets the number of points per upsert call.
func WithBatchSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		p.batchSize = size
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(index storage.VectorIndex, embedder ai.Embedder, srcs []sources.Source, opts ...Option) (*Pipeline, error) {
	if index == nil {
		return nil, ErrIndexRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if len(srcs) == 0 {
		return nil, ErrSourcesRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		sources:    srcs,
		embedder:   embedder,
		index:      index,
		collection: DefaultCollection,
		metric:     storage.MetricCosine,
		pool:       pool,
		policy:     EmbedSkip,
		backoff:    DefaultBackoff,
		batchSize:  defaultBatchSize,
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}
	p.logger = p.logger.With("component", "ingestion", "collection", p.collection)

	return p, nil
}

// Collection returns the name of the collection the pipeline writes to.
func (p *Pipeline) Collection() string {
	return p.collection
}

// RunOptions controls a single ingestion run.
type RunOptions struct {
	// Recreate drops the collection and rebuilds it with the dimension of
	// the first embedded document. Otherwise points are added to the
	// existing collection.
	Recreate bool
}

// Run executes fetch, normalize, embed and store.
// The returned Summary is never nil and reflects progress up to any failure.
func (p *Pipeline) Run(ctx context.Context, opts RunOptions) (*Summary, error) {
	summary := &Summary{Recreated: opts.Recreate}
	if !p.running.TryLock() {
		return summary, ErrIngestionInProgress
	}
	defer p.running.Unlock()

	start := time.Now()
	defer func() {
		summary.Duration = time.Since(start)
	}()

	p.logger.Info("starting ingestion", "sources", len(p.sources), "recreate", opts.Recreate)

	docs, err := p.fetch(ctx, summary)
	if err != nil {
		return summary, &IngestionError{Stage: StageFetch, Err: err}
	}

	embedded, err := p.embed(ctx, docs, summary)
	if err != nil {
		return summary, &IngestionError{Stage: StageEmbed, Err: err}
	}
	if len(embedded) == 0 {
		return summary, &IngestionError{Stage: StageEmbed, Err: ErrNothingToStore}
	}

	if err := p.store(ctx, embedded, opts.Recreate, summary); err != nil {
		return summary, &IngestionError{Stage: StageStore, Err: err}
	}

	p.logger.Info("ingestion complete",
		"fetched", summary.Fetched,
		"duplicates", summary.Duplicates,
		"skipped", summary.Skipped,
		"stored", summary.Stored,
		"source_failures", len(summary.SourceFailures))
	return summary, nil
}

// Release releases the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}

// submitAll runs task for every index in [0, n) on the pool and waits.
// Tasks the pool refuses run on the caller's goroutine.
func (p *Pipeline) submitAll(n int, task func(i int)) {
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		err := p.pool.Submit(func() {
			defer wg.Done()
			task(i)
		})
		if err != nil {
			p.logger.Warn("pool rejected task, running inline", "err", err)
			task(i)
			wg.Done()
		}
	}
	wg.Wait()
}
