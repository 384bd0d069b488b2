package badger

import (
	"context"
	"errors"
	"testing"

	"github.com/poiesic/newsrag/core"
	"github.com/poiesic/newsrag/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	ix, err := NewMemoryIndex()
	require.NoError(t, err)
	t.Cleanup(func() { ix.Close() })
	return ix
}

func point(id core.ID, title string, vector ...float32) core.Point {
	return core.Point{
		ID:      id,
		Vector:  vector,
		Payload: core.Payload{Title: title, Link: "https://example.com/" + title, Content: title + " body"},
	}
}

func TestIndex_RecreateSetsDimension(t *testing.T) {
	ix := newTestIndex(t)
	ctx := context.Background()

	dim, err := ix.Dimension(ctx, "news")
	require.NoError(t, err)
	assert.Equal(t, 0, dim)

	require.NoError(t, ix.RecreateCollection(ctx, "news", 3, storage.MetricCosine))
	dim, err = ix.Dimension(ctx, "news")
	require.NoError(t, err)
	assert.Equal(t, 3, dim)

	require.NoError(t, ix.RecreateCollection(ctx, "news", 5, storage.MetricCosine))
	dim, err = ix.Dimension(ctx, "news")
	require.NoError(t, err)
	assert.Equal(t, 5, dim)
}

func TestIndex_RecreateDropsPoints(t *testing.T) {
	ix := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, ix.RecreateCollection(ctx, "news", 2, storage.MetricCosine))
	require.NoError(t, ix.Upsert(ctx, "news", []core.Point{point(1, "a", 1, 0)}))

	require.NoError(t, ix.RecreateCollection(ctx, "news", 2, storage.MetricCosine))
	results, err := ix.Search(ctx, "news", []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestIndex_EnsureKeepsExisting(t *testing.T) {
	ix := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, ix.EnsureCollection(ctx, "news", 2, storage.MetricCosine))
	require.NoError(t, ix.Upsert(ctx, "news", []core.Point{point(1, "a", 1, 0)}))
	require.NoError(t, ix.EnsureCollection(ctx, "news", 7, storage.MetricCosine))

	dim, err := ix.Dimension(ctx, "news")
	require.NoError(t, err)
	assert.Equal(t, 2, dim)

	results, err := ix.Search(ctx, "news", []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestIndex_SearchOrdersAndLimits(t *testing.T) {
	ix := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, ix.RecreateCollection(ctx, "news", 2, storage.MetricCosine))
	require.NoError(t, ix.Upsert(ctx, "news", []core.Point{
		point(1, "climate", 1, 0),
		point(2, "sports", 0, 1),
		point(3, "weather", 0.9, 0.1),
		point(4, "opposite", -1, 0),
	}))

	results, err := ix.Search(ctx, "news", []float32{1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "climate", results[0].Payload.Title)
	assert.Equal(t, "weather", results[1].Payload.Title)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}
	for _, r := range results {
		assert.GreaterOrEqual(t, r.Score, float32(0))
		assert.LessOrEqual(t, r.Score, float32(1))
	}
}

func TestIndex_UpsertOverwrites(t *testing.T) {
	ix := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, ix.RecreateCollection(ctx, "news", 2, storage.MetricCosine))
	require.NoError(t, ix.Upsert(ctx, "news", []core.Point{point(1, "old", 1, 0)}))
	require.NoError(t, ix.Upsert(ctx, "news", []core.Point{point(1, "new", 1, 0)}))

	results, err := ix.Search(ctx, "news", []float32{1, 0}, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "new", results[0].Payload.Title)
}

func TestIndex_UpsertRejectsWrongDimension(t *testing.T) {
	ix := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, ix.RecreateCollection(ctx, "news", 2, storage.MetricCosine))
	err := ix.Upsert(ctx, "news", []core.Point{
		point(1, "ok", 1, 0),
		point(2, "bad", 1, 0, 0),
	})

	var writeErr *storage.IndexWriteError
	require.True(t, errors.As(err, &writeErr))
	assert.Equal(t, []core.ID{2}, writeErr.IDs)
	assert.ErrorIs(t, err, core.ErrDimensionMismatch)

	results, err := ix.Search(ctx, "news", []float32{1, 0}, 10)
	require.NoError(t, err)
	assert.Empty(t, results, "nothing written when a point is rejected")
}

func TestIndex_UpsertMissingCollection(t *testing.T) {
	ix := newTestIndex(t)

	err := ix.Upsert(context.Background(), "missing", []core.Point{point(1, "a", 1)})
	var writeErr *storage.IndexWriteError
	require.True(t, errors.As(err, &writeErr))
	assert.True(t, writeErr.Bulk())
	assert.ErrorIs(t, err, storage.ErrCollectionNotFound)
}

func TestIndex_SearchErrors(t *testing.T) {
	ix := newTestIndex(t)
	ctx := context.Background()
	require.NoError(t, ix.RecreateCollection(ctx, "news", 2, storage.MetricCosine))

	_, err := ix.Search(ctx, "news", []float32{1, 0}, 0)
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)

	_, err = ix.Search(ctx, "news", []float32{1, 0, 0}, 3)
	assert.ErrorIs(t, err, core.ErrDimensionMismatch)

	_, err = ix.Search(ctx, "other", []float32{1, 0}, 3)
	assert.ErrorIs(t, err, storage.ErrCollectionNotFound)
}

func TestIndex_InvalidCollection(t *testing.T) {
	ix := newTestIndex(t)
	ctx := context.Background()

	assert.ErrorIs(t, ix.RecreateCollection(ctx, "", 2, storage.MetricCosine), storage.ErrInvalidCollectionName)
	assert.ErrorIs(t, ix.EnsureCollection(ctx, "news", 0, storage.MetricCosine), storage.ErrInvalidQuery)
}

func TestIndex_DotMetricClamped(t *testing.T) {
	ix := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, ix.RecreateCollection(ctx, "news", 2, storage.MetricDot))
	require.NoError(t, ix.Upsert(ctx, "news", []core.Point{
		point(1, "big", 3, 3),
		point(2, "neg", -1, -1),
	}))

	results, err := ix.Search(ctx, "news", []float32{1, 1}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, float32(1), results[0].Score)
	assert.Equal(t, float32(0), results[1].Score)
}

func TestIndex_HealthAfterClose(t *testing.T) {
	ix, err := NewMemoryIndex()
	require.NoError(t, err)

	require.NoError(t, ix.Health(context.Background()))
	require.NoError(t, ix.Close())
	assert.ErrorIs(t, ix.Health(context.Background()), storage.ErrIndexUnavailable)
	assert.NoError(t, ix.Close(), "second close is a no-op")
}

func TestIndex_BorrowedBackendNotClosed(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	defer backend.Close()

	ix := NewIndex(backend)
	require.NoError(t, ix.Close())
	assert.False(t, backend.IsClosed())
}

func TestScore(t *testing.T) {
	tests := []struct {
		name   string
		metric storage.Metric
		a, b   []float32
		want   float32
	}{
		{"identical", storage.MetricCosine, []float32{1, 2}, []float32{2, 4}, 1},
		{"orthogonal", storage.MetricCosine, []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite clamps", storage.MetricCosine, []float32{1, 0}, []float32{-1, 0}, 0},
		{"zero vector", storage.MetricCosine, []float32{0, 0}, []float32{1, 0}, 0},
		{"dot", storage.MetricDot, []float32{0.5, 0}, []float32{0.5, 0}, 0.25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, score(tt.metric, tt.a, tt.b), 1e-6)
		})
	}
}

func TestIndex_Count(t *testing.T) {
	ix := newTestIndex(t)
	ctx := context.Background()

	n, err := ix.Count(ctx, "news")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	require.NoError(t, ix.RecreateCollection(ctx, "news", 2, storage.MetricCosine))
	require.NoError(t, ix.RecreateCollection(ctx, "news2", 2, storage.MetricCosine))
	require.NoError(t, ix.Upsert(ctx, "news", []core.Point{point(0, "a", 1, 0), point(1, "b", 0, 1)}))
	require.NoError(t, ix.Upsert(ctx, "news2", []core.Point{point(0, "c", 1, 1)}))
	require.NoError(t, ix.Upsert(ctx, "news", []core.Point{point(1, "b2", 0, 1)}))

	n, err = ix.Count(ctx, "news")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = ix.Count(ctx, "news2")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
