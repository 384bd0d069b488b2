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

import "errors"

// Domain validation errors
var (
	// ErrInvalidChatMessage indicates a ChatMessage failed validation.
	ErrInvalidChatMessage = errors.New("invalid chat message")

	// ErrInvalidDocument indicates an EmbeddedDocument failed validation.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrEmptyContent indicates the Content field is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrInvalidMessageType indicates an unsupported MessageType for a write.
	ErrInvalidMessageType = errors.New("invalid message type")

	// ErrEmptyEmbedding indicates a document carries no vector.
	ErrEmptyEmbedding = errors.New("embedding cannot be empty")

	// ErrDimensionMismatch indicates vectors of differing lengths in one collection.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)
