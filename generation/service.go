// Package generation turns retrieved articles and a question into a grounded
// language model prompt, and runs it as a single answer or a token stream.
package generation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/poiesic/newsrag/ai"
	"github.com/poiesic/newsrag/core"
)

// DefaultMaxContextChars bounds the article context placed in the prompt.
const DefaultMaxContextChars = 12000

// ErrGeneratorRequired is returned when a generator is not provided.
var ErrGeneratorRequired = errors.New("generator required")

// Service builds prompts and calls the language model.
type Service struct {
	generator       ai.Generator
	maxContextChars int
	systemPrompt    string
	logger          *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithMaxContextChars bounds the article context. Values below 1 keep the default.
func WithMaxContextChars(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxContextChars = n
		}
	}
}

// WithSystemPrompt replaces the system instructions.
func WithSystemPrompt(prompt string) Option {
	return func(s *Service) {
		if prompt != "" {
			s.systemPrompt = prompt
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService creates a generation service over generator.
func NewService(generator ai.Generator, opts ...Option) (*Service, error) {
	if generator == nil {
		return nil, ErrGeneratorRequired
	}
	s := &Service{
		generator:       generator,
		maxContextChars: DefaultMaxContextChars,
		systemPrompt:    SystemPrompt,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "generation")
	return s, nil
}

// BuildContext renders results as "Title: ...\nContent: ..." blocks separated
// by blank lines, in result order. Whole results are dropped from the tail
// once the character budget is spent; a first result that alone exceeds it
// is truncated.
func (s *Service) BuildContext(results []core.SearchResult) string {
	return BuildContext(results, s.maxContextChars)
}

// BuildContext is Service.BuildContext with an explicit budget.
func BuildContext(results []core.SearchResult, maxChars int) string {
	var b strings.Builder
	for i, r := range results {
		block := fmt.Sprintf("Title: %s\nContent: %s", r.Payload.Title, r.Payload.Content)
		sep := ""
		if i > 0 {
			sep = "\n\n"
		}
		if maxChars > 0 && b.Len()+len(sep)+len(block) > maxChars {
			if i == 0 {
				b.WriteString(truncate(block, maxChars))
			}
			break
		}
		b.WriteString(sep)
		b.WriteString(block)
	}
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	s = s[:n]
	for !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}

// Prompt assembles the messages sent to the model.
func (s *Service) Prompt(query, articles string) []ai.Message {
	return []ai.Message{
		{Role: ai.RoleSystem, Content: s.systemPrompt},
		{Role: ai.RoleAssistant, Content: contextPreamble + articles},
		{Role: ai.RoleUser, Content: query},
	}
}

// Generate returns the full answer to query grounded in articles.
func (s *Service) Generate(ctx context.Context, query, articles string) (string, error) {
	answer, err := s.generator.Generate(ctx, s.Prompt(query, articles))
	if err != nil {
		err = ai.ClassifyGeneration(err)
		s.logger.Error("generation failed", "err", err)
		return "", err
	}
	s.logger.Debug("generated answer", "chars", len(answer))
	return answer, nil
}

// GenerateStream starts a streamed answer. The caller must Close the stream.
func (s *Service) GenerateStream(ctx context.Context, query, articles string) (ai.TextStream, error) {
	stream, err := s.generator.GenerateStream(ctx, s.Prompt(query, articles))
	if err != nil {
		err = ai.ClassifyGeneration(err)
		s.logger.Error("opening generation stream failed", "err", err)
		return nil, err
	}
	return &classifyingStream{TextStream: stream}, nil
}

// classifyingStream classifies mid-stream provider failures.
type classifyingStream struct {
	ai.TextStream
}

func (c *classifyingStream) Recv() (string, error) {
	fragment, err := c.TextStream.Recv()
	if err != nil && err != io.EOF {
		return "", ai.ClassifyGeneration(err)
	}
	return fragment, err
}
