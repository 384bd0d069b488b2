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


package storage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/poiesic/newsrag/core"
)

var (
	// ErrCollectionNotFound indicates the named collection does not exist.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrInvalidCollectionName indicates an empty or malformed collection name.
	ErrInvalidCollectionName = errors.New("invalid collection name")

	// ErrIndexUnavailable indicates the index failed a liveness probe.
	ErrIndexUnavailable = errors.New("vector index unavailable")

	// ErrIndexWrite is wrapped by every IndexWriteError.
	ErrIndexWrite = errors.New("vector index write failed")

	// ErrStorageClosed indicates that the storage backend is closed.
	ErrStorageClosed = errors.New("storage is closed")

	// ErrInvalidQuery indicates invalid query parameters.
	ErrInvalidQuery = errors.New("invalid query parameters")

	// ErrUnknownMetric indicates an unsupported similarity metric.
	ErrUnknownMetric = errors.New("unknown similarity metric")

	// ErrSerializationFailed indicates a serialization/deserialization failure.
	ErrSerializationFailed = errors.New("serialization failed")

	// ErrTruncatedData indicates that data was truncated during reading.
	ErrTruncatedData = errors.New("truncated data")
)

// IndexWriteError reports an upsert the index refused.
// IDs names the offending points when the index reports them;
// a nil IDs means the whole batch failed.
type IndexWriteError struct {
	Collection string
	IDs        []core.ID
	Err        error
}

func (e *IndexWriteError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: collection %q", ErrIndexWrite, e.Collection)
	if len(e.IDs) > 0 {
		fmt.Fprintf(&b, ": rejected ids %v", e.IDs)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *IndexWriteError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrIndexWrite}
	}
	return []error{ErrIndexWrite, e.Err}
}

// Bulk reports whether the whole write failed rather than specific points.
func (e *IndexWriteError) Bulk() bool {
	return e.IDs == nil
}

// Unavailable wraps err as an ErrIndexUnavailable failure.
func Unavailable(err error) error {
	if err == nil || errors.Is(err, ErrIndexUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrIndexUnavailable, err)
}

// ValidateCollectionName rejects names that cannot be used as key prefixes.
func ValidateCollectionName(name string) error {
	if name == "" || strings.ContainsAny(name, ":/ ") {
		return fmt.Errorf("%w: %q", ErrInvalidCollectionName, name)
	}
	return nil
}
