package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/newsrag/core"
	"github.com/poiesic/newsrag/storage"
)

// Index implements storage.VectorIndex on BadgerDB.
// Search is brute force over the collection's points, which suits the few
// thousand articles a news feed ingestion produces.
type Index struct {
	backend *Backend
	owned   bool
	// lifecycle serializes collection drops against reads and writes.
	lifecycle sync.RWMutex
	logger    *slog.Logger
}

var _ storage.VectorIndex = (*Index)(nil)

// NewIndex creates an index over an existing backend.
// The caller keeps ownership of the backend and must close it.
func NewIndex(backend *Backend) *Index {
	return &Index{
		backend: backend,
		logger:  slog.Default().With("component", "badger-index"),
	}
}

// OpenIndex opens a backend at filePath and returns an index that owns it.
func OpenIndex(filePath string, inMemory bool) (*Index, error) {
	backend, err := OpenBackend(filePath, inMemory)
	if err != nil {
		return nil, err
	}
	ix := NewIndex(backend)
	ix.owned = true
	return ix, nil
}

// Close closes the backend if the index opened it.
func (ix *Index) Close() error {
	if !ix.owned || ix.backend.IsClosed() {
		return nil
	}
	return ix.backend.Close()
}

// Health reports whether the database is open.
func (ix *Index) Health(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return storage.Unavailable(err)
	}
	if ix.backend.IsClosed() {
		return storage.Unavailable(storage.ErrStorageClosed)
	}
	return nil
}

// EnsureCollection creates the collection if it does not exist.
func (ix *Index) EnsureCollection(ctx context.Context, name string, dimension int, metric storage.Metric) error {
	if err := validateCollection(name, dimension); err != nil {
		return err
	}
	ix.lifecycle.Lock()
	defer ix.lifecycle.Unlock()

	_, err := ix.collection(name)
	if err == nil {
		return nil
	}
	if !errors.Is(err, storage.ErrCollectionNotFound) {
		return err
	}
	return ix.writeCollection(name, storage.CollectionInfo{Dimension: dimension, Metric: metric})
}

// RecreateCollection drops all points of the collection and rebuilds it empty.
func (ix *Index) RecreateCollection(ctx context.Context, name string, dimension int, metric storage.Metric) error {
	if err := validateCollection(name, dimension); err != nil {
		return err
	}
	ix.lifecycle.Lock()
	defer ix.lifecycle.Unlock()

	if err := ix.backend.DropPrefix(makePointPrefix(name), makeCollectionKey(name)); err != nil {
		return err
	}
	ix.logger.Info("recreated collection", "collection", name, "dimension", dimension, "metric", metric)
	return ix.writeCollection(name, storage.CollectionInfo{Dimension: dimension, Metric: metric})
}

// Dimension returns the collection's vector length, or 0 if it does not exist.
func (ix *Index) Dimension(ctx context.Context, name string) (int, error) {
	ix.lifecycle.RLock()
	defer ix.lifecycle.RUnlock()

	info, err := ix.collection(name)
	if errors.Is(err, storage.ErrCollectionNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return info.Dimension, nil
}

// Count scans the collection's point keys.
func (ix *Index) Count(ctx context.Context, name string) (int, error) {
	ix.lifecycle.RLock()
	defer ix.lifecycle.RUnlock()

	var n int
	err := ix.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = makePointPrefix(name)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			n++
		}
		return nil
	}, false)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Upsert writes points, overwriting any with the same ID.
// Points whose length differs from the collection dimension are rejected
// by ID and nothing is written.
func (ix *Index) Upsert(ctx context.Context, name string, points []core.Point) error {
	if err := ctx.Err(); err != nil {
		return &storage.IndexWriteError{Collection: name, Err: err}
	}
	ix.lifecycle.RLock()
	defer ix.lifecycle.RUnlock()

	info, err := ix.collection(name)
	if err != nil {
		return &storage.IndexWriteError{Collection: name, Err: err}
	}

	var rejected []core.ID
	for _, p := range points {
		if len(p.Vector) != info.Dimension {
			rejected = append(rejected, p.ID)
		}
	}
	if len(rejected) > 0 {
		return &storage.IndexWriteError{Collection: name, IDs: rejected, Err: core.ErrDimensionMismatch}
	}

	err = ix.backend.WithBatch(func(wb *badger.WriteBatch) error {
		for i := range points {
			if err := wb.Set(makePointKey(name, points[i].ID), storage.MarshalPoint(&points[i])); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return &storage.IndexWriteError{Collection: name, Err: err}
	}
	ix.logger.Debug("upserted points", "collection", name, "count", len(points))
	return nil
}

// Search scores every point in the collection against vector and returns
// the best limit results.
func (ix *Index) Search(ctx context.Context, name string, vector []float32, limit int) ([]core.SearchResult, error) {
	if limit < 1 {
		return nil, fmt.Errorf("%w: limit must be positive", storage.ErrInvalidQuery)
	}
	ix.lifecycle.RLock()
	defer ix.lifecycle.RUnlock()

	info, err := ix.collection(name)
	if err != nil {
		return nil, err
	}
	if len(vector) != info.Dimension {
		return nil, fmt.Errorf("%w: query has %d, collection has %d", core.ErrDimensionMismatch, len(vector), info.Dimension)
	}

	var results []core.SearchResult
	err = ix.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makePointPrefix(name)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			var point *core.Point
			err := iter.Item().Value(func(val []byte) error {
				var err error
				point, err = storage.UnmarshalPoint(val)
				return err
			})
			if err != nil {
				return err
			}

			results = append(results, core.SearchResult{
				Payload: point.Payload,
				Score:   score(info.Metric, vector, point.Vector),
			})
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	core.SortResults(results)
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (ix *Index) collection(name string) (storage.CollectionInfo, error) {
	var info storage.CollectionInfo
	err := ix.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeCollectionKey(name))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", storage.ErrCollectionNotFound, name)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			info, err = storage.UnmarshalCollectionInfo(val)
			return err
		})
	}, false)
	return info, err
}

func (ix *Index) writeCollection(name string, info storage.CollectionInfo) error {
	return ix.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set(makeCollectionKey(name), storage.MarshalCollectionInfo(info)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

func validateCollection(name string, dimension int) error {
	if err := storage.ValidateCollectionName(name); err != nil {
		return err
	}
	if dimension < 1 {
		return fmt.Errorf("%w: dimension must be positive", storage.ErrInvalidQuery)
	}
	return nil
}

// score maps a similarity into [0, 1]. Anti-correlated vectors score 0.
func score(metric storage.Metric, a, b []float32) float32 {
	var s float32
	switch metric {
	case storage.MetricDot:
		s = dotProduct(a, b)
	default:
		s = cosine(a, b)
	}
	return min(max(s, 0), 1)
}

// dotProduct calculates the dot product of two vectors.
func dotProduct(a, b []float32) float32 {
	var sum float32
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}

func cosine(a, b []float32) float32 {
	var na, nb float64
	for _, v := range a {
		na += float64(v) * float64(v)
	}
	for _, v := range b {
		nb += float64(v) * float64(v)
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(float64(dotProduct(a, b)) / (math.Sqrt(na) * math.Sqrt(nb)))
}
