package sources

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"
	"github.com/mmcdole/gofeed"
	"golang.org/x/net/html"
)

const (
	// DefaultFeedLimit is the number of entries taken from each feed.
	DefaultFeedLimit = 50

	defaultUserAgent = "newsrag/1.0"
	defaultTimeout   = 30 * time.Second
)

// Feed is a Source reading an RSS or Atom feed.
type Feed struct {
	url    string
	limit  int
	parser *gofeed.Parser
	logger *slog.Logger
}

var _ Source = (*Feed)(nil)

// FeedOption configures a Feed.
type FeedOption func(*Feed)

// WithLimit caps the number of entries taken from the feed.
// Values below 1 mean no limit.
func WithLimit(limit int) FeedOption {
	return func(f *Feed) {
		f.limit = limit
	}
}

// WithHTTPClient replaces the client used to download the feed.
func WithHTTPClient(client *http.Client) FeedOption {
	return func(f *Feed) {
		f.parser.Client = client
	}
}

// NewFeed creates a feed source for feedURL.
func NewFeed(feedURL string, opts ...FeedOption) (*Feed, error) {
	if _, err := url.ParseRequestURI(feedURL); err != nil {
		return nil, fmt.Errorf("invalid feed url %q: %w", feedURL, err)
	}
	parser := gofeed.NewParser()
	parser.UserAgent = defaultUserAgent
	parser.Client = &http.Client{Timeout: defaultTimeout}

	f := &Feed{
		url:    feedURL,
		limit:  DefaultFeedLimit,
		parser: parser,
		logger: slog.Default().With("component", "feed-source", "url", feedURL),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

func (f *Feed) Name() string {
	return f.url
}

// Fetch downloads and parses the feed.
func (f *Feed) Fetch(ctx context.Context) ([]Item, error) {
	feed, err := f.parser.ParseURLWithContext(f.url, ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrSourceUnavailable, f.url, err)
	}

	entries := feed.Items
	if f.limit > 0 && len(entries) > f.limit {
		entries = entries[:f.limit]
	}

	items := make([]Item, 0, len(entries))
	for _, entry := range entries {
		if entry == nil {
			continue
		}
		items = append(items, f.toItem(entry))
	}
	f.logger.Debug("fetched feed", "entries", len(feed.Items), "kept", len(items))
	return items, nil
}

func (f *Feed) toItem(entry *gofeed.Item) Item {
	body := entry.Content
	if body == "" {
		body = entry.Description
	}
	return Item{
		GUID:        strings.TrimSpace(entry.GUID),
		Title:       strings.TrimSpace(entry.Title),
		Link:        strings.TrimSpace(entry.Link),
		Summary:     PlainText(body, entry.Link),
		Content:     strings.TrimSpace(entry.Content),
		Description: strings.TrimSpace(entry.Description),
	}
}

// PlainText converts an HTML fragment to readable text.
// Full documents go through readability; fragments it cannot make sense of
// fall back to their text nodes.
func PlainText(fragment, link string) string {
	fragment = strings.TrimSpace(fragment)
	if !strings.Contains(fragment, "<") {
		return fragment
	}

	pageURL, _ := url.Parse(link)
	if pageURL == nil {
		pageURL = &url.URL{}
	}
	article, err := readability.FromReader(strings.NewReader(fragment), pageURL)
	if err == nil {
		if text := collapseSpace(article.TextContent); text != "" {
			return text
		}
	}
	return collapseSpace(textNodes(fragment))
}

func textNodes(fragment string) string {
	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(fragment))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return b.String()
		case html.TextToken:
			b.Write(z.Text())
			b.WriteByte(' ')
		}
	}
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
