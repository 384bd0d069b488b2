package chat

import "github.com/poiesic/newsrag/core"

// EventType names an event on the wire.
type EventType string

const (
	EventSources   EventType = "sources"
	EventContent   EventType = "content"
	EventComplete  EventType = "complete"
	EventError     EventType = "error"
	EventKeepAlive EventType = "keepalive"
)

// Event is one item of a streamed turn. The concrete types are
// SourcesEvent, ContentEvent, CompleteEvent, ErrorEvent and KeepAliveEvent.
type Event interface {
	Type() EventType
	event()
}

// SourcesEvent carries the retrieved citations. It precedes all content.
type SourcesEvent struct {
	Sources []core.SourceRef
}

// ContentEvent carries one generated fragment and the text so far.
type ContentEvent struct {
	Fragment string
	Text     string
}

// CompleteEvent ends a successful turn with the full answer.
type CompleteEvent struct {
	Text string
}

// ErrorEvent ends a failed turn. Message is safe to show to end users.
type ErrorEvent struct {
	Err     error
	Message string
}

// KeepAliveEvent is emitted periodically while waiting on generation.
type KeepAliveEvent struct{}

func (SourcesEvent) Type() EventType   { return EventSources }
func (ContentEvent) Type() EventType   { return EventContent }
func (CompleteEvent) Type() EventType  { return EventComplete }
func (ErrorEvent) Type() EventType     { return EventError }
func (KeepAliveEvent) Type() EventType { return EventKeepAlive }

func (SourcesEvent) event()   {}
func (ContentEvent) event()   {}
func (CompleteEvent) event()  {}
func (ErrorEvent) event()     {}
func (KeepAliveEvent) event() {}

// Terminal reports whether ev ends a turn.
func Terminal(ev Event) bool {
	switch ev.(type) {
	case CompleteEvent, ErrorEvent:
		return true
	}
	return false
}
