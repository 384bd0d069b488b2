package ingestion

import "time"

// SourceFailure records a source that failed after all retries.
type SourceFailure struct {
	Source string
	Err    error
}

// Summary describes the outcome of an ingestion run.
type Summary struct {
	// Fetched counts normalized documents after deduplication.
	Fetched int `json:"fetched"`
	// Duplicates counts items dropped because an earlier item shared their identity.
	Duplicates int `json:"duplicates"`
	// Embedded counts documents that received an embedding.
	Embedded int `json:"embedded"`
	// Skipped counts documents dropped because embedding failed.
	Skipped int `json:"skipped"`
	// Stored counts points upserted into the index.
	Stored int `json:"stored"`

	SourceFailures []SourceFailure `json:"-"`
	// Dimension is the vector length written to the collection.
	Dimension int           `json:"dimension"`
	Recreated bool          `json:"recreated"`
	Duration  time.Duration `json:"duration"`
}

// FailedSources returns the names of the sources that failed.
func (s *Summary) FailedSources() []string {
	names := make([]string, len(s.SourceFailures))
	for i, f := range s.SourceFailures {
		names[i] = f.Source
	}
	return names
}
