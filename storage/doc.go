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


// Package storage defines the vector index abstraction used by newsrag.
//
// A VectorIndex holds named collections of fixed-dimension vectors with a
// document payload, and answers top-K similarity queries over them.
// Two implementations are provided:
//
//   - storage/badger: embedded BadgerDB index with brute-force scoring,
//     for local use and tests
//   - storage/qdrant: gRPC gateway to a Qdrant server
//
// # Usage
//
//	backend, err := badger.OpenBackend("/path/to/db", false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	index := badger.NewIndex(backend)
//	defer index.Close()
//
// Use in tests with in-memory storage:
//
//	index, err := badger.NewMemoryIndex()
//
// # Errors
//
// Upsert failures are *IndexWriteError values naming the rejected points,
// or a bulk failure when the index cannot attribute the error. Liveness
// failures wrap ErrIndexUnavailable.
//
// # Thread Safety
//
// All implementations must be thread-safe and support concurrent access
// from multiple goroutines.
package storage
