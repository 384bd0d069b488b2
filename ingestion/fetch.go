package ingestion

import (
	"context"
	"strings"

	"github.com/poiesic/newsrag/core"
	"github.com/poiesic/newsrag/sources"
)

const untitled = "No title"

type fetchResult struct {
	items []sources.Item
	err   error
}

// fetch reads every source concurrently and merges the items in source order,
// assigning sequential IDs and dropping repeated identities.
func (p *Pipeline) fetch(ctx context.Context, summary *Summary) ([]core.Document, error) {
	results := make([]fetchResult, len(p.sources))
	p.submitAll(len(p.sources), func(i int) {
		results[i] = p.fetchSource(ctx, p.sources[i])
	})

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	seen := make(map[core.ID]struct{})
	var docs []core.Document
	for i, res := range results {
		src := p.sources[i]
		if res.err != nil {
			p.logger.Warn("source unavailable", "source", src.Name(), "err", res.err)
			summary.SourceFailures = append(summary.SourceFailures, SourceFailure{Source: src.Name(), Err: res.err})
			continue
		}
		for j := range res.items {
			doc := normalize(len(docs), &res.items[j])
			if key, ok := doc.IdentityKey(); ok {
				if _, dup := seen[key]; dup {
					summary.Duplicates++
					continue
				}
				seen[key] = struct{}{}
			}
			docs = append(docs, doc)
		}
	}

	summary.Fetched = len(docs)
	if len(docs) == 0 {
		return nil, &NoDocumentsError{Failures: summary.SourceFailures}
	}
	return docs, nil
}

func (p *Pipeline) fetchSource(ctx context.Context, src sources.Source) fetchResult {
	var items []sources.Item
	err := p.backoff.Retry(ctx, p.logger.With("source", src.Name()), func(ctx context.Context) error {
		var err error
		items, err = src.Fetch(ctx)
		return err
	})
	if err != nil {
		return fetchResult{err: err}
	}
	p.logger.Debug("fetched source", "source", src.Name(), "items", len(items))
	return fetchResult{items: items}
}

// normalize maps a raw item onto a Document. It never fails.
func normalize(id int, item *sources.Item) core.Document {
	title := strings.TrimSpace(item.Title)
	if title == "" {
		title = untitled
	}
	return core.Document{
		ID:       id,
		Title:    title,
		Link:     strings.TrimSpace(item.Link),
		Content:  firstNonEmpty(item.Summary, item.Content, item.Description),
		Identity: item.Identity(),
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
