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


// Package ai provides abstractions for the AI services used by newsrag.
//
// The package defines three interfaces:
//
//   - Embedder: turns text into vectors, in passage or query mode
//   - Generator: answers a chat prompt, whole or as a TextStream
//   - AIProvider: aggregates both for initialization and shutdown
//
// # Implementation Packages
//
//   - ai/openai: langchaingo based embedder and generator for OpenAI-compatible APIs
//   - ai/jina: Jina embeddings client with retrieval task tagging
//   - ai/mock: test doubles
//
// # Errors
//
// Every embedding failure wraps ErrEmbedding and every generation failure
// wraps ErrGeneration. Recognised provider failures additionally wrap
// ErrRateLimited, ErrUnauthorized or ErrInvalidRequest so callers can
// branch with errors.Is. Nothing in this package retries; retry policy
// belongs to the caller.
//
// # Usage Example
//
//	config := ai.DefaultConfig()
//	provider, err := openai.NewProvider(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	vec, err := provider.Embedder().EmbedQuery(ctx, "What happened in Paris?")
//	stream, err := provider.Generator().GenerateStream(ctx, messages)
//	defer stream.Close()
//	for {
//	    fragment, err := stream.Recv()
//	    if err == io.EOF {
//	        break
//	    }
//	    ...
//	}
package ai
