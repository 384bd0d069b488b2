// Package qdrant implements storage.VectorIndex against a Qdrant server over gRPC.
package qdrant

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"

	"github.com/poiesic/newsrag/core"
	"github.com/poiesic/newsrag/storage"
	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	defaultPort = 6334
	upsertBatch = 100

	payloadTitle   = "title"
	payloadLink    = "link"
	payloadContent = "content"
)

// Config holds the Qdrant connection settings.
type Config struct {
	// Addr is host or host:port of the gRPC endpoint.
	Addr   string
	APIKey string
	UseTLS bool
}

// Index is a storage.VectorIndex backed by a Qdrant client.
type Index struct {
	client *qdrant.Client
	logger *slog.Logger
}

var _ storage.VectorIndex = (*Index)(nil)

// NewIndex connects to Qdrant. The connection is lazy; use Health to probe it.
func NewIndex(config Config) (*Index, error) {
	host, port := splitAddr(config.Addr)
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: config.APIKey,
		UseTLS: config.UseTLS,
	})
	if err != nil {
		return nil, storage.Unavailable(err)
	}
	return &Index{
		client: client,
		logger: slog.Default().With("component", "qdrant-index", "host", host, "port", port),
	}, nil
}

// Close closes the gRPC connection.
func (ix *Index) Close() error {
	return ix.client.Close()
}

// Health calls the server health check.
func (ix *Index) Health(ctx context.Context) error {
	if _, err := ix.client.HealthCheck(ctx); err != nil {
		return storage.Unavailable(err)
	}
	return nil
}

// EnsureCollection creates the collection if it does not exist.
func (ix *Index) EnsureCollection(ctx context.Context, name string, dimension int, metric storage.Metric) error {
	if err := storage.ValidateCollectionName(name); err != nil {
		return err
	}
	exists, err := ix.client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("checking collection %s: %w", name, err)
	}
	if exists {
		return nil
	}
	return ix.create(ctx, name, dimension, metric)
}

// RecreateCollection deletes the collection if present and creates it again.
func (ix *Index) RecreateCollection(ctx context.Context, name string, dimension int, metric storage.Metric) error {
	if err := storage.ValidateCollectionName(name); err != nil {
		return err
	}
	exists, err := ix.client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("checking collection %s: %w", name, err)
	}
	if exists {
		if err := ix.client.DeleteCollection(ctx, name); err != nil {
			return fmt.Errorf("deleting collection %s: %w", name, err)
		}
	}
	if err := ix.create(ctx, name, dimension, metric); err != nil {
		return err
	}
	ix.logger.Info("recreated collection", "collection", name, "dimension", dimension, "metric", metric)
	return nil
}

func (ix *Index) create(ctx context.Context, name string, dimension int, metric storage.Metric) error {
	if dimension < 1 {
		return fmt.Errorf("%w: dimension must be positive", storage.ErrInvalidQuery)
	}
	distance := qdrant.Distance_Cosine
	if metric == storage.MetricDot {
		distance = qdrant.Distance_Dot
	}
	err := ix.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimension),
			Distance: distance,
		}),
	})
	if err != nil {
		return fmt.Errorf("creating collection %s: %w", name, err)
	}
	return nil
}

// Dimension returns the collection's vector size, or 0 if it does not exist.
func (ix *Index) Dimension(ctx context.Context, name string) (int, error) {
	exists, err := ix.client.CollectionExists(ctx, name)
	if err != nil {
		return 0, fmt.Errorf("checking collection %s: %w", name, err)
	}
	if !exists {
		return 0, nil
	}
	info, err := ix.client.GetCollectionInfo(ctx, name)
	if err != nil {
		return 0, fmt.Errorf("reading collection %s: %w", name, err)
	}
	size := info.GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize()
	return int(size), nil
}

// Count returns the exact number of points in the collection.
func (ix *Index) Count(ctx context.Context, name string) (int, error) {
	exists, err := ix.client.CollectionExists(ctx, name)
	if err != nil {
		return 0, fmt.Errorf("checking collection %s: %w", name, err)
	}
	if !exists {
		return 0, nil
	}
	n, err := ix.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: name,
		Exact:          ptr(true),
	})
	if err != nil {
		return 0, queryError("counting", name, err)
	}
	return int(n), nil
}

// Upsert writes points in batches and waits for each batch to be applied.
// Qdrant does not say which points it refused, so server failures are
// reported as bulk IndexWriteErrors.
func (ix *Index) Upsert(ctx context.Context, name string, points []core.Point) error {
	dimension, err := ix.Dimension(ctx, name)
	if err != nil {
		return &storage.IndexWriteError{Collection: name, Err: err}
	}
	if dimension == 0 {
		return &storage.IndexWriteError{Collection: name, Err: fmt.Errorf("%w: %s", storage.ErrCollectionNotFound, name)}
	}

	var rejected []core.ID
	structs := make([]*qdrant.PointStruct, 0, len(points))
	for i := range points {
		if len(points[i].Vector) != dimension {
			rejected = append(rejected, points[i].ID)
			continue
		}
		structs = append(structs, toPointStruct(&points[i]))
	}
	if len(rejected) > 0 {
		return &storage.IndexWriteError{Collection: name, IDs: rejected, Err: core.ErrDimensionMismatch}
	}

	for start := 0; start < len(structs); start += upsertBatch {
		end := min(start+upsertBatch, len(structs))
		_, err := ix.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: name,
			Wait:           ptr(true),
			Points:         structs[start:end],
		})
		if err != nil {
			return &storage.IndexWriteError{Collection: name, Err: err}
		}
	}
	ix.logger.Debug("upserted points", "collection", name, "count", len(structs))
	return nil
}

// Search queries the collection for the nearest points to vector.
func (ix *Index) Search(ctx context.Context, name string, vector []float32, limit int) ([]core.SearchResult, error) {
	if limit < 1 {
		return nil, fmt.Errorf("%w: limit must be positive", storage.ErrInvalidQuery)
	}
	scored, err := ix.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: name,
		Query:          qdrant.NewQuery(vector...),
		Limit:          ptr(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, queryError("querying", name, err)
	}

	results := make([]core.SearchResult, 0, len(scored))
	for _, p := range scored {
		results = append(results, core.SearchResult{
			Payload: fromPayload(p.GetPayload()),
			Score:   clampScore(p.GetScore()),
		})
	}
	core.SortResults(results)
	return results, nil
}

func toPointStruct(p *core.Point) *qdrant.PointStruct {
	return &qdrant.PointStruct{
		Id:      qdrant.NewIDNum(uint64(p.ID)),
		Vectors: qdrant.NewVectors(p.Vector...),
		Payload: toPayload(p.Payload),
	}
}

func toPayload(p core.Payload) map[string]*qdrant.Value {
	return map[string]*qdrant.Value{
		payloadTitle:   qdrant.NewValueString(p.Title),
		payloadLink:    qdrant.NewValueString(p.Link),
		payloadContent: qdrant.NewValueString(p.Content),
	}
}

func fromPayload(values map[string]*qdrant.Value) core.Payload {
	return core.Payload{
		Title:   values[payloadTitle].GetStringValue(),
		Link:    values[payloadLink].GetStringValue(),
		Content: values[payloadContent].GetStringValue(),
	}
}

// queryError maps a gRPC NotFound onto storage.ErrCollectionNotFound.
func queryError(op, name string, err error) error {
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("%s collection %s: %w: %w", op, name, storage.ErrCollectionNotFound, err)
	}
	return fmt.Errorf("%s collection %s: %w", op, name, err)
}

func clampScore(s float32) float32 {
	return min(max(s, 0), 1)
}

// splitAddr separates host and port, defaulting to the gRPC port.
func splitAddr(addr string) (string, int) {
	if addr == "" {
		return "localhost", defaultPort
	}
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return addr, defaultPort
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return host, defaultPort
	}
	return host, port
}

func ptr[T any](v T) *T {
	return &v
}
