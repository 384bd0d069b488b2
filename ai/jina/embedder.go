// Package jina implements ai.Embedder against the Jina embeddings API.
//
// Jina models are asymmetric: the request carries a task tag that selects
// passage or query encoding, so the two modes must not be mixed.
package jina

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/poiesic/newsrag/ai"
)

const (
	taskPassage = "retrieval.passage"
	taskQuery   = "retrieval.query"

	// maxBatch is the largest input array sent in one request.
	maxBatch = 128
)

// Embedder calls the Jina /embeddings endpoint.
type Embedder struct {
	endpoint   string
	model      string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

var _ ai.Embedder = (*Embedder)(nil)

// Option configures an Embedder.
type Option func(*Embedder)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(e *Embedder) {
		if client != nil {
			e.httpClient = client
		}
	}
}

// NewEmbedder creates a Jina embedder from the embedding section of config.
func NewEmbedder(config *ai.Config, opts ...Option) (*Embedder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	e := &Embedder{
		endpoint:   strings.TrimSuffix(config.EmbeddingHost, "/") + "/embeddings",
		model:      config.EmbeddingModel,
		apiKey:     config.EmbeddingAPIKey,
		httpClient: &http.Client{Timeout: config.RequestTimeout},
		logger:     slog.Default().With("component", "jina-embedder"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

type embeddingRequest struct {
	Model      string   `json:"model"`
	Task       string   `json:"task"`
	Normalized bool     `json:"normalized"`
	Input      []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// EmbedPassage generates a passage-mode embedding for a single text.
func (e *Embedder) EmbedPassage(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.embed(ctx, taskPassage, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedPassages generates passage-mode embeddings, splitting large inputs into batches.
func (e *Embedder) EmbedPassages(ctx context.Context, texts []string) ([][]float32, error) {
	e.logger.Debug("generating passage embeddings", "count", len(texts))

	vectors := make([][]float32, 0, len(texts))
	for batch := range slices.Chunk(texts, maxBatch) {
		out, err := e.embed(ctx, taskPassage, batch)
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, out...)
	}
	return vectors, nil
}

// EmbedQuery generates a query-mode embedding.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.embed(ctx, taskQuery, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (e *Embedder) embed(ctx context.Context, task string, texts []string) ([][]float32, error) {
	body, err := json.Marshal(embeddingRequest{
		Model:      e.model,
		Task:       task,
		Normalized: true,
		Input:      texts,
	})
	if err != nil {
		return nil, ai.ClassifyEmbedding(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, ai.ClassifyEmbedding(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		e.logger.Error("embedding request failed", "task", task, "err", err)
		return nil, ai.ClassifyEmbedding(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		err := &ai.StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
		e.logger.Error("embedding request rejected", "task", task, "status", resp.StatusCode)
		return nil, ai.ClassifyEmbedding(err)
	}

	var decoded embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, ai.ClassifyEmbedding(fmt.Errorf("decoding response: %w", err))
	}
	if len(decoded.Data) != len(texts) {
		return nil, ai.ClassifyEmbedding(fmt.Errorf("expected %d embeddings, received %d", len(texts), len(decoded.Data)))
	}

	vectors := make([][]float32, len(texts))
	for _, d := range decoded.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, ai.ClassifyEmbedding(fmt.Errorf("embedding index %d out of range", d.Index))
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}
