package ai

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyGeneration(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		category error
		message  string
	}{
		{
			name:     "langchaingo rate limit",
			err:      errors.New("API returned unexpected status code: 429: Rate limit reached"),
			category: ErrRateLimited,
			message:  "Rate limit exceeded. Please try again later.",
		},
		{
			name:     "typed unauthorized",
			err:      &StatusError{Code: 401, Body: "bad key"},
			category: ErrUnauthorized,
			message:  "Invalid API key for the language model provider.",
		},
		{
			name:     "bad request",
			err:      errors.New("API returned unexpected status code: 400: context length exceeded"),
			category: ErrInvalidRequest,
			message:  "Invalid request to the language model provider.",
		},
		{
			name:    "unrecognised",
			err:     errors.New("connection reset by peer"),
			message: "Failed to generate AI response: generation failed: connection reset by peer",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ClassifyGeneration(tt.err)
			assert.ErrorIs(t, err, ErrGeneration)
			assert.ErrorIs(t, err, tt.err)
			if tt.category != nil {
				assert.ErrorIs(t, err, tt.category)
			}
			assert.Equal(t, tt.message, UserMessage(err))
		})
	}
}

func TestClassifyGeneration_PassThrough(t *testing.T) {
	assert.NoError(t, ClassifyGeneration(nil))
	assert.Equal(t, context.Canceled, ClassifyGeneration(context.Canceled))

	already := fmt.Errorf("%w: boom", ErrGeneration)
	assert.Equal(t, already, ClassifyGeneration(already))
}

func TestClassifyEmbedding(t *testing.T) {
	err := ClassifyEmbedding(&StatusError{Code: 429})
	assert.ErrorIs(t, err, ErrEmbedding)
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.NotErrorIs(t, err, ErrGeneration)

	err = ClassifyEmbedding(errors.New("malformed input"))
	assert.ErrorIs(t, err, ErrEmbedding)
	assert.NotErrorIs(t, err, ErrRateLimited)
}
