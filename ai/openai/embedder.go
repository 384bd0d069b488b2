package openai

import (
	"context"
	"log/slog"

	"github.com/poiesic/newsrag/ai"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// Embedder implements ai.Embedder using OpenAI-compatible embedding APIs.
// Passage and query modes are expressed through configurable text prefixes,
// which instruction-tuned models such as nomic-embed-text expect.
type Embedder struct {
	embedder      embeddings.Embedder
	passagePrefix string
	queryPrefix   string
	logger        *slog.Logger
}

var _ ai.Embedder = (*Embedder)(nil)

// newEmbedder is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newEmbedder(config *ai.Config) (*Embedder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.EmbeddingHost),
		openai.WithToken(tokenOrNone(config.EmbeddingAPIKey)),
		openai.WithEmbeddingModel(config.EmbeddingModel),
	)
	if err != nil {
		return nil, err
	}

	embedder, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, err
	}

	return &Embedder{
		embedder:      embedder,
		passagePrefix: config.PassagePrefix,
		queryPrefix:   config.QueryPrefix,
		logger:        slog.Default().With("component", "openai-embedder"),
	}, nil
}

// NewEmbedder creates a new embedder using the provided configuration.
//
// Returns ai.Embedder interface to enforce abstraction.
func NewEmbedder(config *ai.Config) (ai.Embedder, error) {
	return newEmbedder(config)
}

// EmbedPassage generates a passage-mode embedding for a single text.
func (e *Embedder) EmbedPassage(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedPassages(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		e.logger.Warn("embedder returned empty result")
		return []float32{}, nil
	}
	return vectors[0], nil
}

// EmbedPassages generates passage-mode embeddings for multiple texts in a batch.
func (e *Embedder) EmbedPassages(ctx context.Context, texts []string) ([][]float32, error) {
	e.logger.Debug("generating passage embeddings", "count", len(texts))

	inputs := texts
	if e.passagePrefix != "" {
		inputs = make([]string, len(texts))
		for i, text := range texts {
			inputs[i] = e.passagePrefix + text
		}
	}

	vectors, err := e.embedder.EmbedDocuments(ctx, inputs)
	if err != nil {
		e.logger.Error("failed to generate embeddings", "count", len(texts), "err", err)
		return nil, ai.ClassifyEmbedding(err)
	}

	return vectors, nil
}

// EmbedQuery generates a query-mode embedding.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	e.logger.Debug("generating query embedding", "length", len(text))

	vector, err := e.embedder.EmbedQuery(ctx, e.queryPrefix+text)
	if err != nil {
		e.logger.Error("failed to generate query embedding", "err", err)
		return nil, ai.ClassifyEmbedding(err)
	}
	return vector, nil
}

// tokenOrNone substitutes a placeholder for local services that don't require authentication.
func tokenOrNone(key string) string {
	if key == "" {
		return "none"
	}
	return key
}
