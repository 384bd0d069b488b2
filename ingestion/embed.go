package ingestion

import (
	"context"
	"errors"
	"fmt"

	"github.com/poiesic/newsrag/core"
)

// embed generates passage embeddings for docs concurrently.
// Output order follows input order regardless of completion order.
func (p *Pipeline) embed(ctx context.Context, docs []core.Document, summary *Summary) ([]core.EmbeddedDocument, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	vectors := make([][]float32, len(docs))
	errs := make([]error, len(docs))
	p.submitAll(len(docs), func(i int) {
		if err := ctx.Err(); err != nil {
			errs[i] = err
			return
		}
		vectors[i], errs[i] = p.embedder.EmbedPassage(ctx, docs[i].EmbeddingText())
		if errs[i] != nil && p.policy == EmbedAbort {
			cancel()
		}
	})

	embedded := make([]core.EmbeddedDocument, 0, len(docs))
	for i := range docs {
		doc := core.EmbeddedDocument{Document: docs[i], Embedding: vectors[i]}
		err := errs[i]
		if err == nil {
			err = core.ValidateEmbeddedDocument(&doc, 0)
		}
		if err != nil {
			if p.policy == EmbedAbort {
				return nil, fmt.Errorf("document %d %q: %w", doc.ID, doc.Title, firstCause(errs, err))
			}
			p.logger.Warn("skipping document", "id", doc.ID, "title", doc.Title, "err", err)
			summary.Skipped++
			continue
		}
		embedded = append(embedded, doc)
	}

	summary.Embedded = len(embedded)
	return embedded, nil
}

// firstCause prefers a real failure over the cancellations it triggered.
func firstCause(errs []error, fallback error) error {
	for _, err := range errs {
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
	}
	return fallback
}
