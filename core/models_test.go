package core

import (
	"testing"
)

func TestIDFromContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "guid",
			content: "https://www.bbc.co.uk/news/world-12345#0",
		},
		{
			name:    "empty string",
			content: "",
		},
		{
			name:    "long content",
			content: "This is a much longer piece of content that should still hash consistently",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id1 := IDFromContent(tt.content)
			id2 := IDFromContent(tt.content)

			if id1 != id2 {
				t.Errorf("IDFromContent() produced different IDs for same content: %d vs %d", id1, id2)
			}
		})
	}
}

func TestIDFromContent_Different(t *testing.T) {
	id1 := IDFromContent("content1")
	id2 := IDFromContent("content2")

	if id1 == id2 {
		t.Errorf("IDFromContent() produced same ID for different content")
	}
}

func TestDocument_IdentityKey(t *testing.T) {
	doc := Document{Identity: "guid-1"}
	key, ok := doc.IdentityKey()
	if !ok {
		t.Fatal("expected identity key")
	}
	if key != IDFromContent("guid-1") {
		t.Errorf("IdentityKey() = %d, want hash of identity", key)
	}

	anon := Document{Title: "no identity"}
	if _, ok := anon.IdentityKey(); ok {
		t.Error("expected no identity key for anonymous document")
	}
}

func TestDocument_EmbeddingText(t *testing.T) {
	doc := Document{Title: "Floods", Content: "Rivers rose overnight."}
	if got, want := doc.EmbeddingText(), "Floods Rivers rose overnight."; got != want {
		t.Errorf("EmbeddingText() = %q, want %q", got, want)
	}
}

func TestSortResults(t *testing.T) {
	results := []SearchResult{
		{Payload: Payload{Title: "a"}, Score: 0.2},
		{Payload: Payload{Title: "b"}, Score: 0.9},
		{Payload: Payload{Title: "c"}, Score: 0.5},
		{Payload: Payload{Title: "d"}, Score: 0.5},
	}
	SortResults(results)

	want := []string{"b", "c", "d", "a"}
	for i, title := range want {
		if results[i].Payload.Title != title {
			t.Errorf("position %d = %q, want %q", i, results[i].Payload.Title, title)
		}
	}
}

func TestSourceRefs(t *testing.T) {
	refs := SourceRefs([]SearchResult{
		{Payload: Payload{Title: "t", Link: "l", Content: "c"}, Score: 0.7},
	})
	if len(refs) != 1 {
		t.Fatalf("len = %d, want 1", len(refs))
	}
	if refs[0] != (SourceRef{Title: "t", Link: "l", Score: 0.7}) {
		t.Errorf("unexpected ref %+v", refs[0])
	}
}

func TestPointFromDocument(t *testing.T) {
	doc := &EmbeddedDocument{
		Document:  Document{ID: 7, Title: "t", Link: "l", Content: "c"},
		Embedding: []float32{1, 0},
	}
	p := PointFromDocument(doc)
	if p.ID != 7 || p.Payload.Title != "t" || len(p.Vector) != 2 {
		t.Errorf("unexpected point %+v", p)
	}
}
