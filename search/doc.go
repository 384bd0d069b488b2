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


// Package search retrieves the news articles most similar to a question.
//
// A search probes index liveness, embeds the question in query mode and
// asks the vector index for the nearest passages. Results are ordered by
// descending score and capped at the requested count. Any failing step
// produces a RetrievalError naming the stage; partial results are never
// returned.
//
// A SearchMonitor can observe each search, which is how retrieval latency
// reaches the metrics registry.
package search
