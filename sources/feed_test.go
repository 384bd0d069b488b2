package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rssFeed(n int) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?><rss version="2.0"><channel><title>World</title>`)
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, `<item><title>Story %d</title><link>https://news.example.com/%d</link>`+
			`<guid>urn:story:%d</guid><description><![CDATA[<p>Body of <b>story</b> %d</p>]]></description></item>`, i, i, i, i)
	}
	b.WriteString(`</channel></rss>`)
	return b.String()
}

func serveFeed(t *testing.T, body string, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFeed_Fetch(t *testing.T) {
	srv := serveFeed(t, rssFeed(3), http.StatusOK)

	feed, err := NewFeed(srv.URL)
	require.NoError(t, err)
	assert.Equal(t, srv.URL, feed.Name())

	items, err := feed.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 3)

	first := items[0]
	assert.Equal(t, "Story 0", first.Title)
	assert.Equal(t, "https://news.example.com/0", first.Link)
	assert.Equal(t, "urn:story:0", first.Identity())
	assert.Contains(t, first.Summary, "story")
	assert.NotContains(t, first.Summary, "<")
	assert.Contains(t, first.Description, "<b>story</b>")
}

func TestFeed_Limit(t *testing.T) {
	srv := serveFeed(t, rssFeed(80), http.StatusOK)

	feed, err := NewFeed(srv.URL)
	require.NoError(t, err)
	items, err := feed.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, items, DefaultFeedLimit)

	feed, err = NewFeed(srv.URL, WithLimit(5))
	require.NoError(t, err)
	items, err = feed.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, items, 5)
	assert.Equal(t, "Story 4", items[4].Title)
}

func TestFeed_Unavailable(t *testing.T) {
	srv := serveFeed(t, "gone", http.StatusBadGateway)

	feed, err := NewFeed(srv.URL)
	require.NoError(t, err)
	_, err = feed.Fetch(context.Background())
	assert.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestNewFeed_InvalidURL(t *testing.T) {
	_, err := NewFeed("not a url")
	assert.Error(t, err)
}

func TestItem_Identity(t *testing.T) {
	assert.Equal(t, "g", (&Item{GUID: "g", Link: "l"}).Identity())
	assert.Equal(t, "l", (&Item{Link: "l"}).Identity())
	assert.Equal(t, "", (&Item{}).Identity())
}

func TestPlainText(t *testing.T) {
	assert.Equal(t, "already plain", PlainText("  already plain ", ""))

	text := PlainText("<p>Markets <em>rallied</em>\n today</p>", "https://example.com/a")
	assert.Contains(t, text, "rallied")
	assert.NotContains(t, text, "<")
	assert.NotContains(t, text, "\n")
}

func TestStatic(t *testing.T) {
	src := NewStatic("fixed", Item{Title: "a"}, Item{Title: "b"})
	items, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, items, 2)

	failing := NewFailing("down", assert.AnError)
	_, err = failing.Fetch(context.Background())
	assert.ErrorIs(t, err, ErrSourceUnavailable)
	assert.ErrorIs(t, err, assert.AnError)
}
