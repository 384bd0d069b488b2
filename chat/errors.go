package chat

import (
	"errors"
	"fmt"

	"github.com/poiesic/newsrag/ai"
)

var (
	// ErrRetrieverRequired is returned when a retriever is not provided.
	ErrRetrieverRequired = errors.New("retriever required")

	// ErrGeneratorRequired is returned when a generator is not provided.
	ErrGeneratorRequired = errors.New("generator required")

	// ErrHistoryRequired is returned when a history store is not provided.
	ErrHistoryRequired = errors.New("history store required")

	// ErrSessionRequired is returned for an empty session ID.
	ErrSessionRequired = errors.New("session id required")

	// ErrEmptyMessage is returned for a blank question.
	ErrEmptyMessage = errors.New("message required")
)

// TurnError reports a failed turn and the last state it reached.
type TurnError struct {
	State State
	Err   error
}

func (e *TurnError) Error() string {
	return fmt.Sprintf("chat turn failed after %s: %v", e.State, e.Err)
}

func (e *TurnError) Unwrap() error {
	return e.Err
}

// UserMessage renders a turn failure for end users. Generation failures
// get the provider-specific wording; anything else is reported by cause.
func UserMessage(err error) string {
	if errors.Is(err, ai.ErrGeneration) {
		return ai.UserMessage(err)
	}
	var te *TurnError
	if errors.As(err, &te) {
		return te.Err.Error()
	}
	return err.Error()
}
