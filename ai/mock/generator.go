package mock

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/poiesic/newsrag/ai"
)

// MockGenerator is a test double for ai.Generator.
// By default it answers with DefaultAnswer, streamed word by word.
type MockGenerator struct {
	// GenerateFunc is called by Generate if set.
	GenerateFunc func(ctx context.Context, messages []ai.Message) (string, error)

	// GenerateStreamFunc is called by GenerateStream if set.
	GenerateStreamFunc func(ctx context.Context, messages []ai.Message) (ai.TextStream, error)

	// DefaultAnswer is the text produced when no func is injected.
	DefaultAnswer string

	mu        sync.Mutex
	callCount int
	prompts   [][]ai.Message
}

// NewMockGenerator creates a mock generator with a fixed default answer.
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{DefaultAnswer: "This is a mock answer."}
}

// Generate returns the injected or default answer.
func (m *MockGenerator) Generate(ctx context.Context, messages []ai.Message) (string, error) {
	m.record(messages)

	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, messages)
	}
	return m.DefaultAnswer, nil
}

// GenerateStream returns the injected stream or the default answer split into words.
func (m *MockGenerator) GenerateStream(ctx context.Context, messages []ai.Message) (ai.TextStream, error) {
	m.record(messages)

	if m.GenerateStreamFunc != nil {
		return m.GenerateStreamFunc(ctx, messages)
	}
	return NewStream(ctx, splitWords(m.DefaultAnswer), nil), nil
}

func (m *MockGenerator) record(messages []ai.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount++
	m.prompts = append(m.prompts, messages)
}

// CallCount returns the number of times any method was called.
func (m *MockGenerator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// LastPrompt returns the messages passed to the most recent call.
func (m *MockGenerator) LastPrompt() []ai.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.prompts) == 0 {
		return nil
	}
	return m.prompts[len(m.prompts)-1]
}

// Reset clears the call count and injected behavior.
func (m *MockGenerator) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount = 0
	m.prompts = nil
	m.GenerateFunc = nil
	m.GenerateStreamFunc = nil
}

func splitWords(s string) []string {
	words := strings.SplitAfter(s, " ")
	out := words[:0]
	for _, w := range words {
		if w != "" {
			out = append(out, w)
		}
	}
	return out
}

// Stream is a scripted ai.TextStream. It yields its fragments in order,
// then Err (or io.EOF when Err is nil).
type Stream struct {
	ctx       context.Context
	fragments []string
	err       error
	pos       int

	// Gate, when set, is received from before each fragment so tests
	// can hold the stream open.
	Gate chan struct{}

	mu     sync.Mutex
	closed bool
}

var _ ai.TextStream = (*Stream)(nil)

// NewStream creates a scripted stream bound to ctx.
func NewStream(ctx context.Context, fragments []string, err error) *Stream {
	return &Stream{ctx: ctx, fragments: fragments, err: err}
}

func (s *Stream) Recv() (string, error) {
	if s.Gate != nil && s.pos < len(s.fragments) {
		select {
		case <-s.Gate:
		case <-s.ctx.Done():
			return "", s.ctx.Err()
		}
	}
	if err := s.ctx.Err(); err != nil {
		return "", err
	}
	if s.IsClosed() {
		return "", io.ErrClosedPipe
	}
	if s.pos < len(s.fragments) {
		f := s.fragments[s.pos]
		s.pos++
		return f, nil
	}
	if s.err != nil {
		return "", s.err
	}
	return "", io.EOF
}

func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// IsClosed reports whether Close has been called.
func (s *Stream) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
