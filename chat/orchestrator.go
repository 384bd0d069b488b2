// Package chat sequences a question through history, retrieval and
// generation, as a single answer or as a stream of events.
//
// A turn moves Idle → UserSaved → Retrieved → Generating → Completed, or
// to Errored from any of those. The assistant message is only persisted
// when the turn completes.
package chat

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/newsrag/ai"
	"github.com/poiesic/newsrag/core"
	"github.com/poiesic/newsrag/generation"
	"github.com/poiesic/newsrag/history"
	"github.com/poiesic/newsrag/search"
)

const (
	// DefaultKeepAlive is the interval between keep-alive events.
	DefaultKeepAlive = 30 * time.Second
)

// Retriever finds articles relevant to a question.
type Retriever interface {
	Search(ctx context.Context, query string, topK int) ([]core.SearchResult, error)
}

// Generator answers a question from article context.
type Generator interface {
	BuildContext(results []core.SearchResult) string
	Generate(ctx context.Context, query, articles string) (string, error)
	GenerateStream(ctx context.Context, query, articles string) (ai.TextStream, error)
}

// History persists the turns of a session.
type History interface {
	Append(ctx context.Context, sessionID string, msg *core.ChatMessage) error
}

var (
	_ Retriever = (*search.Searcher)(nil)
	_ Generator = (*generation.Service)(nil)
	_ History   = (*history.Store)(nil)
)

// Mode distinguishes streamed from single-answer turns.
type Mode string

const (
	ModeAsk    Mode = "ask"
	ModeStream Mode = "stream"
)

// Observer is notified of turn outcomes and emitted events.
// Implementations must be safe for concurrent use.
type Observer interface {
	TurnFinished(mode Mode, state State, cancelled bool, elapsed time.Duration)
	EventSent(t EventType)
}

type noopObserver struct{}

func (noopObserver) TurnFinished(Mode, State, bool, time.Duration) {}
func (noopObserver) EventSent(EventType)                           {}

// Answer is the result of a non-streamed turn.
type Answer struct {
	Text    string           `json:"response"`
	Sources []core.SourceRef `json:"sources"`
}

// Orchestrator runs chat turns.
type Orchestrator struct {
	retriever Retriever
	generator Generator
	history   History
	topK      int
	keepAlive time.Duration
	observer  Observer
	logger    *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithTopK sets how many articles are retrieved per question.
func WithTopK(k int) Option {
	return func(o *Orchestrator) {
		if k > 0 {
			o.topK = k
		}
	}
}

// WithKeepAlive sets the keep-alive interval for streamed turns.
func WithKeepAlive(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.keepAlive = d
		}
	}
}

// WithObserver installs an observer.
func WithObserver(observer Observer) Option {
	return func(o *Orchestrator) {
		if observer != nil {
			o.observer = observer
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewOrchestrator wires an orchestrator from its collaborators.
func NewOrchestrator(retriever Retriever, generator Generator, hist History, opts ...Option) (*Orchestrator, error) {
	if retriever == nil {
		return nil, ErrRetrieverRequired
	}
	if generator == nil {
		return nil, ErrGeneratorRequired
	}
	if hist == nil {
		return nil, ErrHistoryRequired
	}
	o := &Orchestrator{
		retriever: retriever,
		generator: generator,
		history:   hist,
		topK:      search.DefaultTopK,
		keepAlive: DefaultKeepAlive,
		observer:  noopObserver{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.With("component", "chat")
	return o, nil
}

// NewSession returns a fresh session identifier.
func NewSession() string {
	return uuid.NewString()
}

func validate(sessionID, message string) error {
	if sessionID == "" {
		return ErrSessionRequired
	}
	if strings.TrimSpace(message) == "" {
		return ErrEmptyMessage
	}
	return nil
}

// Ask answers message in one piece. On failure nothing beyond the user
// message is persisted.
func (o *Orchestrator) Ask(ctx context.Context, sessionID, message string) (*Answer, error) {
	t := newTurn(sessionID, o.logger)
	answer, err := o.ask(ctx, t, message)
	o.finish(ctx, ModeAsk, t)
	return answer, err
}

func (o *Orchestrator) ask(ctx context.Context, t *turn, message string) (*Answer, error) {
	if err := validate(t.session, message); err != nil {
		return nil, t.fail(err)
	}
	if err := o.history.Append(ctx, t.session, core.NewUserMessage(message)); err != nil {
		return nil, t.fail(err)
	}
	t.to(UserSaved)

	results, err := o.retriever.Search(ctx, message, o.topK)
	if err != nil {
		return nil, t.fail(err)
	}
	t.to(Retrieved)
	sources := core.SourceRefs(results)

	t.to(Generating)
	text, err := o.generator.Generate(ctx, message, o.generator.BuildContext(results))
	if err != nil {
		return nil, t.fail(err)
	}

	if err := o.history.Append(ctx, t.session, core.NewBotMessage(text, sources)); err != nil {
		return nil, t.fail(err)
	}
	t.to(Completed)
	return &Answer{Text: text, Sources: sources}, nil
}

// Stream answers message as a sequence of events. The channel carries one
// SourcesEvent, then ContentEvents, then exactly one CompleteEvent or
// ErrorEvent, and is closed afterwards. A failure before retrieval yields a
// lone ErrorEvent. When ctx is cancelled the channel is closed without a
// terminal event and nothing further is persisted.
func (o *Orchestrator) Stream(ctx context.Context, sessionID, message string) <-chan Event {
	events := make(chan Event)
	go o.stream(ctx, sessionID, message, events)
	return events
}

type fragment struct {
	text string
	err  error
}

func (o *Orchestrator) stream(parent context.Context, sessionID, message string, events chan<- Event) {
	defer close(events)

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	t := newTurn(sessionID, o.logger)
	defer o.finish(ctx, ModeStream, t)

	emit := func(ev Event) bool {
		select {
		case events <- ev:
			o.observer.EventSent(ev.Type())
			return true
		case <-ctx.Done():
			return false
		}
	}
	fail := func(err error) {
		err = t.fail(err)
		if ctx.Err() != nil {
			return
		}
		emit(ErrorEvent{Err: err, Message: UserMessage(err)})
	}

	if err := validate(sessionID, message); err != nil {
		fail(err)
		return
	}
	if err := o.history.Append(ctx, sessionID, core.NewUserMessage(message)); err != nil {
		fail(err)
		return
	}
	t.to(UserSaved)

	results, err := o.retriever.Search(ctx, message, o.topK)
	if err != nil {
		fail(err)
		return
	}
	t.to(Retrieved)
	sources := core.SourceRefs(results)
	if !emit(SourcesEvent{Sources: sources}) {
		t.fail(ctx.Err())
		return
	}

	t.to(Generating)
	stream, err := o.generator.GenerateStream(ctx, message, o.generator.BuildContext(results))
	if err != nil {
		fail(err)
		return
	}
	defer stream.Close()

	fragments := make(chan fragment)
	go func() {
		for {
			text, err := stream.Recv()
			select {
			case fragments <- fragment{text: text, err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(o.keepAlive)
	defer ticker.Stop()

	var answer strings.Builder
	for done := false; !done; {
		select {
		case <-ctx.Done():
			t.fail(ctx.Err())
			return
		case <-ticker.C:
			if !emit(KeepAliveEvent{}) {
				t.fail(ctx.Err())
				return
			}
		case f := <-fragments:
			switch {
			case errors.Is(f.err, io.EOF):
				done = true
			case f.err != nil:
				fail(f.err)
				return
			case f.text != "":
				answer.WriteString(f.text)
				if !emit(ContentEvent{Fragment: f.text, Text: answer.String()}) {
					t.fail(ctx.Err())
					return
				}
			}
		}
	}

	text := answer.String()
	if err := o.history.Append(ctx, sessionID, core.NewBotMessage(text, sources)); err != nil {
		fail(err)
		return
	}
	t.to(Completed)
	emit(CompleteEvent{Text: text})
}

func (o *Orchestrator) finish(ctx context.Context, mode Mode, t *turn) {
	cancelled := t.state != Completed && (ctx.Err() != nil || errors.Is(t.err, context.Canceled))
	elapsed := t.elapsed()
	o.observer.TurnFinished(mode, t.state, cancelled, elapsed)
	switch {
	case t.state == Completed:
		t.logger.Info("turn completed", "mode", mode, "duration", elapsed)
	case cancelled:
		t.logger.Info("turn cancelled", "mode", mode, "duration", elapsed)
	default:
		t.logger.Error("turn failed", "mode", mode, "err", t.err, "duration", elapsed)
	}
}
