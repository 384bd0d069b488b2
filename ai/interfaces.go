package ai

import "context"

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
//
// Passage and query modes are distinct: documents are embedded as passages at
// ingestion time and questions as queries at search time. Asymmetric models
// encode the two differently, so callers must not mix them.
type Embedder interface {
	// EmbedPassage generates a passage-mode embedding for a single document text.
	// Returns an error wrapping ErrEmbedding if the embedding generation fails.
	EmbedPassage(ctx context.Context, text string) ([]float32, error)

	// EmbedPassages generates passage-mode embeddings for multiple texts in a batch.
	// The returned slice is positionally aligned with the input texts.
	// Returns an error wrapping ErrEmbedding if any embedding generation fails.
	EmbedPassages(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery generates a query-mode embedding for a search question.
	// Returns an error wrapping ErrEmbedding if the embedding generation fails.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Role is the author of a prompt message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleAssistant Role = "assistant"
	RoleUser      Role = "user"
)

// Message is a single entry in a chat prompt.
type Message struct {
	Role    Role
	Content string
}

// TextStream is a forward-only sequence of generated text fragments.
// It is not safe for concurrent use.
type TextStream interface {
	// Recv blocks until the next fragment is available.
	// It returns io.EOF once generation has finished, or a classified
	// generation error if the provider failed mid-stream.
	Recv() (string, error)

	// Close cancels generation and releases the underlying connection.
	// Close is idempotent and safe to call before the stream is exhausted.
	Close() error
}

// Generator produces answers from a chat prompt.
// Implementations must be thread-safe for concurrent use.
type Generator interface {
	// Generate returns the complete answer for the prompt.
	// Failures wrap ErrGeneration and, where recognised, ErrRateLimited,
	// ErrUnauthorized or ErrInvalidRequest.
	Generate(ctx context.Context, messages []Message) (string, error)

	// GenerateStream starts generation and returns a lazily consumed stream.
	// Cancelling ctx or closing the stream aborts the provider call.
	GenerateStream(ctx context.Context, messages []Message) (TextStream, error)
}

// AIProvider aggregates AI services for convenient initialization and lifecycle management.
type AIProvider interface {
	// Embedder returns the text embedding service.
	// The returned Embedder is safe for concurrent use.
	Embedder() Embedder

	// Generator returns the answer generation service.
	// The returned Generator is safe for concurrent use.
	Generator() Generator

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}
