// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import (
	"fmt"
)

// ValidateChatMessage validates a ChatMessage before it is persisted.
//
// Validation rules:
//   - Type must be user or bot
//   - User content must not be empty; a bot answer may be empty
//
// NOT validated (filled in on append when missing):
//   - ID
//   - Timestamp
func ValidateChatMessage(msg *ChatMessage) error {
	if msg == nil {
		return fmt.Errorf("%w: message is nil", ErrInvalidChatMessage)
	}

	if err := ValidateMessageType(msg.Type); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidChatMessage, err)
	}

	if msg.Type == MessageTypeUser && msg.Content == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChatMessage, ErrEmptyContent)
	}

	return nil
}

// ValidateMessageType accepts only the types a caller may write.
// Error and unknown entries are produced by decoding, never stored.
func ValidateMessageType(t MessageType) error {
	if t != MessageTypeUser && t != MessageTypeBot {
		return fmt.Errorf("%w: %q", ErrInvalidMessageType, t)
	}
	return nil
}

// ValidateEmbeddedDocument checks that doc carries a vector of length dim.
// A dim of 0 only requires a non-empty vector.
func ValidateEmbeddedDocument(doc *EmbeddedDocument, dim int) error {
	if doc == nil {
		return fmt.Errorf("%w: document is nil", ErrInvalidDocument)
	}
	if len(doc.Embedding) == 0 {
		return fmt.Errorf("%w: id %d: %w", ErrInvalidDocument, doc.ID, ErrEmptyEmbedding)
	}
	if dim > 0 && len(doc.Embedding) != dim {
		return fmt.Errorf("%w: id %d: got %d, want %d", ErrDimensionMismatch, doc.ID, len(doc.Embedding), dim)
	}
	return nil
}
