// Package ingestion loads news articles into a vector index.
//
// A run moves documents through four stages:
//   - fetch: read every configured source concurrently, with retries
//   - normalize: pick title, link and content from each item
//   - embed: generate passage embeddings on a worker pool
//   - store: create the collection and upsert the points
//
// Source failures and skipped embeddings are reported in the Summary.
// Store failures abort the run with an IngestionError.
package ingestion
