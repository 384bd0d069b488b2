package ingestion

import (
	"errors"
	"fmt"
)

var (
	// ErrIndexRequired is returned when a vector index is not provided.
	ErrIndexRequired = errors.New("vector index required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrSourcesRequired is returned when no document source is configured.
	ErrSourcesRequired = errors.New("at least one source required")

	// ErrIngestionInProgress is returned when a run is triggered while another is active.
	ErrIngestionInProgress = errors.New("ingestion already in progress")

	// ErrNothingToStore means every fetched document was skipped during embedding.
	ErrNothingToStore = errors.New("no embedded documents to store")

	// ErrInvalidMaxAttempts is returned when a Backoff has no attempts.
	ErrInvalidMaxAttempts = errors.New("max attempts must be greater than 0")

	// ErrUnknownEmbedPolicy is returned by ParseEmbedPolicy.
	ErrUnknownEmbedPolicy = errors.New("unknown embed policy")
)

// Stage names a pipeline step.
type Stage string

const (
	StageFetch Stage = "fetch"
	StageEmbed Stage = "embed"
	StageStore Stage = "store"
)

// IngestionError reports the stage a run failed in.
type IngestionError struct {
	Stage Stage
	Err   error
}

func (e *IngestionError) Error() string {
	return fmt.Sprintf("ingestion failed at %s: %v", e.Stage, e.Err)
}

func (e *IngestionError) Unwrap() error {
	return e.Err
}

// NoDocumentsError is returned when no source yielded a single item.
type NoDocumentsError struct {
	Failures []SourceFailure
}

func (e *NoDocumentsError) Error() string {
	return fmt.Sprintf("no documents fetched (%d sources failed)", len(e.Failures))
}

// Unwrap exposes the per-source causes.
func (e *NoDocumentsError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f.Err
	}
	return errs
}
