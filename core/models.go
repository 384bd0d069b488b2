package core

import (
	"cmp"
	"encoding/binary"
	"slices"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for indexed points.
// Ingestion assigns sequential IDs; content hashes are used for source identity.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// Document is a single article as delivered by a source, after normalization.
type Document struct {
	ID      int
	Title   string
	Link    string
	Content string

	// Identity is the source-provided identity (GUID, else link) used for
	// deduplication. Empty when the source supplies none.
	Identity string
}

// IdentityKey returns the hashed dedup key for the document, or false when
// the document carries no source identity.
func (d *Document) IdentityKey() (ID, bool) {
	if d.Identity == "" {
		return 0, false
	}
	return IDFromContent(d.Identity), true
}

// EmbeddingText is the text sent to the embedder in passage mode.
func (d *Document) EmbeddingText() string {
	return d.Title + " " + d.Content
}

// EmbeddedDocument is a Document paired with its passage embedding.
type EmbeddedDocument struct {
	Document
	Embedding []float32
}

// Payload is the document data stored alongside a vector.
type Payload struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Content string `json:"content"`
}

// Point is a single vector index entry.
type Point struct {
	ID      ID
	Vector  []float32
	Payload Payload
}

// PointFromDocument converts an embedded document into an index point.
func PointFromDocument(doc *EmbeddedDocument) Point {
	return Point{
		ID:     ID(doc.ID),
		Vector: doc.Embedding,
		Payload: Payload{
			Title:   doc.Title,
			Link:    doc.Link,
			Content: doc.Content,
		},
	}
}

// SearchResult is a single similarity hit. Score is in [0, 1], higher is closer.
type SearchResult struct {
	Payload Payload `json:"payload"`
	Score   float32 `json:"score"`
}

// SortResults orders results by descending score. Ties keep their order.
func SortResults(results []SearchResult) {
	slices.SortStableFunc(results, func(a, b SearchResult) int {
		return cmp.Compare(b.Score, a.Score)
	})
}

// SourceRef is the citation attached to a bot message.
type SourceRef struct {
	Title string  `json:"title"`
	Link  string  `json:"link"`
	Score float32 `json:"score"`
}

// SourceRefs projects search results into citations.
func SourceRefs(results []SearchResult) []SourceRef {
	refs := make([]SourceRef, len(results))
	for i, r := range results {
		refs[i] = SourceRef{Title: r.Payload.Title, Link: r.Payload.Link, Score: r.Score}
	}
	return refs
}

// MessageType identifies the author of a chat message.
type MessageType string

const (
	MessageTypeUser MessageType = "user"
	MessageTypeBot  MessageType = "bot"

	// MessageTypeError marks a synthetic entry standing in for a corrupted record.
	MessageTypeError MessageType = "error"
	// MessageTypeUnknown marks a record that was stored as a bare string.
	MessageTypeUnknown MessageType = "unknown"
)

// ChatMessage is a single turn in a session's history.
type ChatMessage struct {
	ID        int64       `json:"id"`
	Type      MessageType `json:"type"`
	Content   string      `json:"content"`
	Timestamp time.Time   `json:"timestamp"`
	Sources   []SourceRef `json:"sources,omitempty"`
}

// NewUserMessage builds a user turn stamped with the current time.
func NewUserMessage(content string) *ChatMessage {
	now := time.Now().UTC()
	return &ChatMessage{
		ID:        now.UnixMilli(),
		Type:      MessageTypeUser,
		Content:   content,
		Timestamp: now,
	}
}

// NewBotMessage builds an assistant turn with its citations.
func NewBotMessage(content string, sources []SourceRef) *ChatMessage {
	now := time.Now().UTC()
	return &ChatMessage{
		ID:        now.UnixMilli(),
		Type:      MessageTypeBot,
		Content:   content,
		Timestamp: now,
		Sources:   sources,
	}
}
