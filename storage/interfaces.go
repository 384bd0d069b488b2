package storage

import (
	"context"

	"github.com/poiesic/newsrag/core"
)

// Metric is the similarity function a collection is built with.
type Metric int

const (
	// MetricCosine scores by cosine similarity.
	MetricCosine Metric = iota + 1
	// MetricDot scores by raw dot product.
	MetricDot
)

// String returns the lower-case metric name.
func (m Metric) String() string {
	switch m {
	case MetricCosine:
		return "cosine"
	case MetricDot:
		return "dot"
	default:
		return "unknown"
	}
}

// ParseMetric converts a metric name into a Metric.
func ParseMetric(name string) (Metric, error) {
	switch name {
	case "", "cosine":
		return MetricCosine, nil
	case "dot":
		return MetricDot, nil
	default:
		return 0, ErrUnknownMetric
	}
}

// VectorIndex stores embedded documents in named collections and answers
// nearest-neighbour queries over them.
// Implementations must be thread-safe and support concurrent access.
type VectorIndex interface {
	// EnsureCollection creates the collection if it does not exist.
	// An existing collection is left untouched, whatever its dimension.
	EnsureCollection(ctx context.Context, name string, dimension int, metric Metric) error

	// RecreateCollection drops the collection and all its points, then
	// creates it empty with the given dimension.
	RecreateCollection(ctx context.Context, name string, dimension int, metric Metric) error

	// Upsert inserts or overwrites points by ID.
	// Failures are reported as *IndexWriteError.
	Upsert(ctx context.Context, name string, points []core.Point) error

	// Search returns up to limit results ordered by descending score.
	// Scores are in [0, 1].
	Search(ctx context.Context, name string, vector []float32, limit int) ([]core.SearchResult, error)

	// Dimension returns the vector length the collection was created with,
	// or 0 if the collection does not exist.
	Dimension(ctx context.Context, name string) (int, error)

	// Count returns the number of points in the collection, or 0 if it
	// does not exist.
	Count(ctx context.Context, name string) (int, error)

	// Health probes liveness. Failures wrap ErrIndexUnavailable.
	Health(ctx context.Context) error

	// Close releases the underlying connection or database.
	Close() error
}
