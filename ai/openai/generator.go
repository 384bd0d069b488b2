package openai

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/newsrag/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// Generator implements ai.Generator using OpenAI-compatible chat APIs.
type Generator struct {
	client      llms.Model
	temperature float64
	maxTokens   int
	timeout     time.Duration
	logger      *slog.Logger
}

var _ ai.Generator = (*Generator)(nil)

// newGenerator is an internal constructor that returns the concrete type.
func newGenerator(config *ai.Config) (*Generator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.ChatHost),
		openai.WithToken(tokenOrNone(config.ChatAPIKey)),
		openai.WithModel(config.ChatModel),
	)
	if err != nil {
		return nil, err
	}

	return newGeneratorWithModel(client, config), nil
}

// newGeneratorWithModel wraps an existing llms.Model. Tests use it with fakes.
func newGeneratorWithModel(client llms.Model, config *ai.Config) *Generator {
	return &Generator{
		client:      client,
		temperature: config.Temperature,
		maxTokens:   config.MaxTokens,
		timeout:     config.RequestTimeout,
		logger:      slog.Default().With("component", "openai-generator"),
	}
}

// NewGenerator creates a new generator using the provided configuration.
//
// Returns ai.Generator interface to enforce abstraction.
func NewGenerator(config *ai.Config) (ai.Generator, error) {
	return newGenerator(config)
}

// Generate returns the complete answer for the prompt.
func (g *Generator) Generate(ctx context.Context, messages []ai.Message) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	response, err := g.client.GenerateContent(ctx, toMessageContent(messages), g.callOptions()...)
	if err != nil {
		g.logger.Error("failed to generate content", "err", err)
		return "", ai.ClassifyGeneration(err)
	}

	if len(response.Choices) < 1 {
		return "", fmt.Errorf("%w: no choices returned from model", ai.ErrGeneration)
	}

	return response.Choices[0].Content, nil
}

// GenerateStream starts a streaming completion. Fragments are delivered
// through the returned stream as the provider emits them.
func (g *Generator) GenerateStream(ctx context.Context, messages []ai.Message) (ai.TextStream, error) {
	ctx, cancel := context.WithCancel(ctx)
	s := newChunkStream(cancel)

	opts := append(g.callOptions(), llms.WithStreamingFunc(s.push))
	content := toMessageContent(messages)

	go func() {
		_, err := g.client.GenerateContent(ctx, content, opts...)
		if err != nil && ctx.Err() == nil {
			g.logger.Error("stream generation failed", "err", err)
		}
		s.finish(ai.ClassifyGeneration(err))
	}()

	return s, nil
}

func (g *Generator) callOptions() []llms.CallOption {
	return []llms.CallOption{
		llms.WithTemperature(g.temperature),
		llms.WithMaxTokens(g.maxTokens),
	}
}

func toMessageContent(messages []ai.Message) []llms.MessageContent {
	content := make([]llms.MessageContent, 0, len(messages))
	for _, m := range messages {
		content = append(content, llms.MessageContent{
			Role:  roleType(m.Role),
			Parts: []llms.ContentPart{llms.TextPart(m.Content)},
		})
	}
	return content
}

func roleType(role ai.Role) llms.ChatMessageType {
	switch role {
	case ai.RoleSystem:
		return llms.ChatMessageTypeSystem
	case ai.RoleAssistant:
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}
