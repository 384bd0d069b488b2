package history

import (
	"errors"
	"fmt"
)

var (
	// ErrClientRequired is returned when a Redis client is not provided.
	ErrClientRequired = errors.New("redis client required")

	// ErrSessionRequired is returned for an empty session ID.
	ErrSessionRequired = errors.New("session id required")

	// ErrMessageCorrupted marks a stored record that looked like JSON but
	// could not be decoded. It is only ever attached to a Corrupted entry.
	ErrMessageCorrupted = errors.New("message corrupted")
)

// SessionStoreError reports a failed history operation.
type SessionStoreError struct {
	Op        string
	SessionID string
	Err       error
}

func (e *SessionStoreError) Error() string {
	return fmt.Sprintf("history %s for session %s: %v", e.Op, e.SessionID, e.Err)
}

func (e *SessionStoreError) Unwrap() error {
	return e.Err
}
