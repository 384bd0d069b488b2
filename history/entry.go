package history

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/poiesic/newsrag/core"
)

// corruptedContent is shown in place of a record that failed to decode.
const corruptedContent = "Failed to parse message"

// EntryKind tells how a stored record was decoded.
type EntryKind int

const (
	// Parsed is a well-formed message.
	Parsed EntryKind = iota
	// RawFallback is a bare string stored without JSON framing.
	RawFallback
	// Corrupted is a record that looked like JSON but did not decode.
	Corrupted
)

func (k EntryKind) String() string {
	switch k {
	case Parsed:
		return "parsed"
	case RawFallback:
		return "raw"
	case Corrupted:
		return "corrupted"
	default:
		return "unknown"
	}
}

// Entry is one decoded history record. Message is always usable: for
// RawFallback and Corrupted entries it is a synthetic stand-in.
type Entry struct {
	Kind    EntryKind
	Message core.ChatMessage
	// Raw is the record exactly as stored.
	Raw string
	// Err is set for Corrupted entries and wraps ErrMessageCorrupted.
	Err error
}

// decode classifies and decodes a stored record. It never fails.
func decode(raw string, now time.Time) Entry {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "{") && !strings.HasPrefix(trimmed, "[") {
		return Entry{
			Kind: RawFallback,
			Raw:  raw,
			Message: core.ChatMessage{
				Type:      core.MessageTypeUnknown,
				Content:   raw,
				Timestamp: now,
			},
		}
	}

	var msg core.ChatMessage
	if err := json.Unmarshal([]byte(trimmed), &msg); err != nil {
		return Entry{
			Kind: Corrupted,
			Raw:  raw,
			Err:  fmt.Errorf("%w: %w", ErrMessageCorrupted, err),
			Message: core.ChatMessage{
				Type:      core.MessageTypeError,
				Content:   corruptedContent,
				Timestamp: now,
			},
		}
	}
	return Entry{Kind: Parsed, Raw: raw, Message: msg}
}

// Messages projects entries onto their messages, in order.
func Messages(entries []Entry) []core.ChatMessage {
	msgs := make([]core.ChatMessage, len(entries))
	for i := range entries {
		msgs[i] = entries[i].Message
	}
	return msgs
}
