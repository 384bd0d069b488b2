package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmbedding is wrapped by every embedding failure.
	ErrEmbedding = errors.New("embedding failed")

	// ErrGeneration is wrapped by every generation failure.
	ErrGeneration = errors.New("generation failed")

	// ErrRateLimited indicates the provider rejected the call for quota reasons.
	ErrRateLimited = errors.New("rate limited")

	// ErrUnauthorized indicates the provider rejected the credentials.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidRequest indicates the provider rejected the request payload.
	ErrInvalidRequest = errors.New("invalid request")
)

// StatusError is returned by HTTP based clients for non-2xx responses.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status code %d", e.Code)
	}
	return fmt.Sprintf("unexpected status code %d: %s", e.Code, e.Body)
}

// category maps a provider error onto one of the specific sentinels,
// or nil when it is not recognised. Typed status errors are checked first;
// langchaingo only surfaces the status in the message text.
func category(err error) error {
	var se *StatusError
	if errors.As(err, &se) {
		switch se.Code {
		case 429:
			return ErrRateLimited
		case 401, 403:
			return ErrUnauthorized
		case 400, 422:
			return ErrInvalidRequest
		}
		return nil
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "status code: 429"), strings.Contains(msg, "status code 429"),
		strings.Contains(msg, "rate limit"):
		return ErrRateLimited
	case strings.Contains(msg, "status code: 401"), strings.Contains(msg, "status code 401"),
		strings.Contains(msg, "invalid api key"), strings.Contains(msg, "incorrect api key"):
		return ErrUnauthorized
	case strings.Contains(msg, "status code: 400"), strings.Contains(msg, "status code 400"):
		return ErrInvalidRequest
	}
	return nil
}

// ClassifyGeneration wraps err with ErrGeneration and, when recognised,
// the specific failure category. Context errors pass through untouched.
func ClassifyGeneration(err error) error {
	if err == nil || errors.Is(err, ErrGeneration) || isContextErr(err) {
		return err
	}
	if c := category(err); c != nil {
		return fmt.Errorf("%w: %w: %w", ErrGeneration, c, err)
	}
	return fmt.Errorf("%w: %w", ErrGeneration, err)
}

// ClassifyEmbedding wraps err with ErrEmbedding and, when recognised,
// the specific failure category.
func ClassifyEmbedding(err error) error {
	if err == nil || errors.Is(err, ErrEmbedding) || isContextErr(err) {
		return err
	}
	if c := category(err); c != nil {
		return fmt.Errorf("%w: %w: %w", ErrEmbedding, c, err)
	}
	return fmt.Errorf("%w: %w", ErrEmbedding, err)
}

// UserMessage renders a generation failure as text suitable for end users.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, ErrRateLimited):
		return "Rate limit exceeded. Please try again later."
	case errors.Is(err, ErrUnauthorized):
		return "Invalid API key for the language model provider."
	case errors.Is(err, ErrInvalidRequest):
		return "Invalid request to the language model provider."
	default:
		return "Failed to generate AI response: " + err.Error()
	}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
