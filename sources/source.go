// Package sources provides the document sources the ingestion pipeline reads
// articles from.
package sources

import (
	"context"
	"errors"
)

// ErrSourceUnavailable is wrapped by every error a source returns from Fetch.
var ErrSourceUnavailable = errors.New("source unavailable")

// Item is a raw entry as a source delivers it, before normalization.
type Item struct {
	// GUID is the source-assigned identity, if any.
	GUID  string
	Title string
	Link  string

	// Summary is a plain-text snippet of the entry.
	Summary string
	// Content is the full entry body.
	Content string
	// Description is the entry description as published.
	Description string
}

// Identity returns the dedup identity for the item: GUID, else link.
func (i *Item) Identity() string {
	if i.GUID != "" {
		return i.GUID
	}
	return i.Link
}

// Source yields articles. Implementations must be safe for concurrent use.
type Source interface {
	// Name identifies the source in logs and ingestion summaries.
	Name() string

	// Fetch returns the source's current items in publication order.
	Fetch(ctx context.Context) ([]Item, error)
}

// Static is a Source over a fixed item list.
type Static struct {
	name  string
	items []Item
	err   error
}

var _ Source = (*Static)(nil)

// NewStatic creates a source that always returns items.
func NewStatic(name string, items ...Item) *Static {
	return &Static{name: name, items: items}
}

// NewFailing creates a source whose Fetch always fails with err.
func NewFailing(name string, err error) *Static {
	return &Static{name: name, err: err}
}

func (s *Static) Name() string {
	return s.name
}

func (s *Static) Fetch(ctx context.Context) ([]Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.err != nil {
		return nil, errors.Join(ErrSourceUnavailable, s.err)
	}
	return append([]Item(nil), s.items...), nil
}
