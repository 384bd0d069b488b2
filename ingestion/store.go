package ingestion

import (
	"context"
	"fmt"

	"github.com/poiesic/newsrag/core"
)

// store writes embedded documents to the index. Every document must share the
// first document's dimension; a mismatch fails before anything is written.
func (p *Pipeline) store(ctx context.Context, docs []core.EmbeddedDocument, recreate bool, summary *Summary) error {
	if err := p.index.Health(ctx); err != nil {
		return err
	}

	dim := len(docs[0].Embedding)
	for i := range docs {
		if err := core.ValidateEmbeddedDocument(&docs[i], dim); err != nil {
			return err
		}
	}

	// Point IDs are dense from 0, so an additive run numbers its points
	// after the count already stored.
	base := 0
	if recreate {
		if err := p.index.RecreateCollection(ctx, p.collection, dim, p.metric); err != nil {
			return err
		}
	} else {
		existing, err := p.index.Dimension(ctx, p.collection)
		if err != nil {
			return err
		}
		if existing != 0 && existing != dim {
			return fmt.Errorf("%w: collection %s has %d, documents have %d",
				core.ErrDimensionMismatch, p.collection, existing, dim)
		}
		if err := p.index.EnsureCollection(ctx, p.collection, dim, p.metric); err != nil {
			return err
		}
		if base, err = p.index.Count(ctx, p.collection); err != nil {
			return err
		}
	}
	summary.Dimension = dim

	points := make([]core.Point, len(docs))
	for i := range docs {
		points[i] = core.PointFromDocument(&docs[i])
		points[i].ID = core.ID(base + i)
	}

	for start := 0; start < len(points); start += p.batchSize {
		end := min(start+p.batchSize, len(points))
		if err := p.index.Upsert(ctx, p.collection, points[start:end]); err != nil {
			return err
		}
		summary.Stored += end - start
		p.logger.Debug("stored batch", "from", start, "to", end)
	}
	return nil
}
