package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/poiesic/newsrag/ai"
	"github.com/poiesic/newsrag/ai/mock"
	"github.com/poiesic/newsrag/chat"
	"github.com/poiesic/newsrag/core"
	"github.com/poiesic/newsrag/generation"
	"github.com/poiesic/newsrag/history"
	"github.com/poiesic/newsrag/ingestion"
	"github.com/poiesic/newsrag/metrics"
	"github.com/poiesic/newsrag/search"
	"github.com/poiesic/newsrag/storage"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ingesterFunc func(ctx context.Context, recreate bool) (*ingestion.Summary, error)

func (f ingesterFunc) Ingest(ctx context.Context, recreate bool) (*ingestion.Summary, error) {
	return f(ctx, recreate)
}

type retrieverFunc func(ctx context.Context, query string, topK int) ([]core.SearchResult, error)

func (f retrieverFunc) Search(ctx context.Context, query string, topK int) ([]core.SearchResult, error) {
	return f(ctx, query, topK)
}

type healthFunc func(ctx context.Context) error

func (f healthFunc) Health(ctx context.Context) error { return f(ctx) }

var articles = []core.SearchResult{
	{Payload: core.Payload{Title: "Heatwave", Link: "https://news.example/heat", Content: "Record temperatures."}, Score: 0.9},
}

type fixture struct {
	server   *Server
	store    *history.Store
	mr       *miniredis.Miniredis
	gen      *mock.MockGenerator
	recreate []bool
}

func setupServer(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{mr: miniredis.RunT(t), gen: mock.NewMockGenerator()}
	client := redis.NewClient(&redis.Options{Addr: f.mr.Addr()})
	t.Cleanup(func() { client.Close() })

	var err error
	f.store, err = history.NewStore(client)
	require.NoError(t, err)

	retriever := retrieverFunc(func(_ context.Context, query string, _ int) ([]core.SearchResult, error) {
		if strings.TrimSpace(query) == "" {
			return nil, &search.RetrievalError{Stage: search.StageQuery, Err: search.ErrEmptyQuery}
		}
		return articles, nil
	})
	svc, err := generation.NewService(f.gen)
	require.NoError(t, err)
	orch, err := chat.NewOrchestrator(retriever, svc, f.store)
	require.NoError(t, err)

	ingester := ingesterFunc(func(_ context.Context, recreate bool) (*ingestion.Summary, error) {
		f.recreate = append(f.recreate, recreate)
		return &ingestion.Summary{Fetched: 3, Stored: 3, Dimension: 4, Recreated: recreate}, nil
	})

	f.server, err = New(Deps{
		Ingester:  ingester,
		Retriever: retriever,
		Chat:      orch,
		History:   f.store,
		Index:     healthFunc(func(context.Context) error { return nil }),
		Metrics:   metrics.New(),
	}, opts...)
	require.NoError(t, err)
	return f
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

// sseFrames parses an event stream into data objects and heartbeat markers.
func sseFrames(t *testing.T, body string) []map[string]any {
	t.Helper()
	var frames []map[string]any
	sc := bufio.NewScanner(strings.NewReader(body))
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "data: "):
			var m map[string]any
			require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &m))
			frames = append(frames, m)
		case line == ": heartbeat":
			frames = append(frames, map[string]any{"type": "heartbeat"})
		}
	}
	return frames
}

func TestNew_RequiresDeps(t *testing.T) {
	_, err := New(Deps{})
	assert.ErrorIs(t, err, ErrIngesterRequired)
}

func TestInit_DefaultsToRecreate(t *testing.T) {
	f := setupServer(t)

	rec := f.do(http.MethodPost, "/api/rag/init", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.NotEmpty(t, body["message"])
	assert.Equal(t, float64(3), body["summary"].(map[string]any)["stored"])

	rec = f.do(http.MethodPost, "/api/rag/init", `{"recreate": false}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []bool{true, false}, f.recreate)
}

func TestInit_InProgress(t *testing.T) {
	f := setupServer(t)
	f.server.deps.Ingester = ingesterFunc(func(context.Context, bool) (*ingestion.Summary, error) {
		return nil, ingestion.ErrIngestionInProgress
	})

	rec := f.do(http.MethodPost, "/api/rag/init", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, ingestion.ErrIngestionInProgress.Error(), decodeBody(t, rec)["error"])
}

func TestQuery(t *testing.T) {
	f := setupServer(t)

	rec := f.do(http.MethodPost, "/api/rag/query", `{"query": "climate", "topK": 3}`)
	require.Equal(t, http.StatusOK, rec.Code)
	results := decodeBody(t, rec)["results"].([]any)
	require.Len(t, results, 1)
	assert.Equal(t, "Heatwave", results[0].(map[string]any)["payload"].(map[string]any)["title"])

	rec = f.do(http.MethodPost, "/api/rag/query", `{"query": ""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRetrievalStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, retrievalStatus(&search.RetrievalError{Stage: search.StageQuery, Err: search.ErrEmptyQuery}))
	assert.Equal(t, http.StatusServiceUnavailable, retrievalStatus(&search.RetrievalError{Stage: search.StageHealth, Err: storage.Unavailable(errors.New("x"))}))
	assert.Equal(t, http.StatusNotFound, retrievalStatus(&search.RetrievalError{Stage: search.StageSearch, Err: storage.ErrCollectionNotFound}))
	assert.Equal(t, http.StatusInternalServerError, retrievalStatus(errors.New("x")))
}

func TestCreateSession(t *testing.T) {
	f := setupServer(t)
	rec := f.do(http.MethodPost, "/api/chat/session", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Len(t, body["sessionId"], 36)
	assert.Equal(t, "New chat session created", body["message"])
}

func TestSendMessage(t *testing.T) {
	f := setupServer(t)

	rec := f.do(http.MethodPost, "/api/chat/message", `{"sessionId": "s1", "message": "climate?"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, f.gen.DefaultAnswer, body["response"])
	assert.Len(t, body["sources"], 1)

	rec = f.do(http.MethodGet, "/api/chat/history/s1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	hist := decodeBody(t, rec)["history"].([]any)
	require.Len(t, hist, 2)
	assert.Equal(t, "user", hist[0].(map[string]any)["type"])
	assert.Equal(t, "bot", hist[1].(map[string]any)["type"])
}

func TestSendMessage_Validation(t *testing.T) {
	f := setupServer(t)
	for _, body := range []string{`{"message": "hi"}`, `{"sessionId": "s1"}`, `{}`} {
		rec := f.do(http.MethodPost, "/api/chat/message", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Equal(t, "Session ID and message are required", decodeBody(t, rec)["error"])
	}
	rec := f.do(http.MethodPost, "/api/chat", `{"sessionId": "s1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSendMessage_RateLimited(t *testing.T) {
	f := setupServer(t)
	f.gen.GenerateFunc = func(context.Context, []ai.Message) (string, error) {
		return "", &ai.StatusError{Code: 429}
	}

	rec := f.do(http.MethodPost, "/api/chat/message", `{"sessionId": "s1", "message": "q"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "Rate limit exceeded. Please try again later.", decodeBody(t, rec)["error"])
}

func TestStreamMessage(t *testing.T) {
	f := setupServer(t)

	rec := f.do(http.MethodPost, "/api/chat", `{"sessionId": "s1", "message": "climate?"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	frames := sseFrames(t, rec.Body.String())
	require.GreaterOrEqual(t, len(frames), 3)
	assert.Equal(t, "sources", frames[0]["type"])

	var text strings.Builder
	for _, fr := range frames[1 : len(frames)-1] {
		require.Equal(t, "content", fr["type"])
		text.WriteString(fr["content"].(string))
		assert.Equal(t, text.String(), fr["fullContent"])
	}
	last := frames[len(frames)-1]
	assert.Equal(t, "complete", last["type"])
	assert.Equal(t, text.String(), last["fullResponse"])
}

func TestStreamMessage_ErrorAfterSources(t *testing.T) {
	f := setupServer(t)
	f.gen.GenerateStreamFunc = func(ctx context.Context, _ []ai.Message) (ai.TextStream, error) {
		return mock.NewStream(ctx, []string{"Part"}, errors.New("status code: 429")), nil
	}

	rec := f.do(http.MethodPost, "/api/chat", `{"sessionId": "s1", "message": "q"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	frames := sseFrames(t, rec.Body.String())
	require.Len(t, frames, 3)
	assert.Equal(t, "sources", frames[0]["type"])
	assert.Equal(t, "content", frames[1]["type"])
	assert.Equal(t, map[string]any{"type": "error", "error": "Rate limit exceeded. Please try again later."}, frames[2])
}

func TestStreamMessage_LogsTerminalEvent(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	f := setupServer(t, WithLogger(logger))

	rec := f.do(http.MethodPost, "/api/chat", `{"sessionId": "s1", "message": "q"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, logs.String(), "stream finished")
	assert.Contains(t, logs.String(), "terminal=complete")

	logs.Reset()
	f.gen.GenerateStreamFunc = func(ctx context.Context, _ []ai.Message) (ai.TextStream, error) {
		return mock.NewStream(ctx, nil, errors.New("status code: 500")), nil
	}
	f.do(http.MethodPost, "/api/chat", `{"sessionId": "s1", "message": "q"}`)
	assert.Contains(t, logs.String(), "terminal=error")
}

func TestFrame(t *testing.T) {
	assert.Nil(t, frame(chat.KeepAliveEvent{}))
	assert.Equal(t, completeFrame{Type: chat.EventComplete, FullResponse: "x"}, frame(chat.CompleteEvent{Text: "x"}))
}

func TestHistory_ClearAndCleanup(t *testing.T) {
	f := setupServer(t)
	ctx := context.Background()
	require.NoError(t, f.store.Append(ctx, "s1", &core.ChatMessage{Type: core.MessageTypeUser, Content: "hello"}))
	f.mr.RPush("chat:s1", "{broken")

	rec := f.do(http.MethodGet, "/api/chat/history/s1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	hist := decodeBody(t, rec)["history"].([]any)
	require.Len(t, hist, 2)
	corrupted := hist[1].(map[string]any)
	assert.Equal(t, "error", corrupted["type"])
	assert.Equal(t, "Failed to parse message", corrupted["content"])
	assert.NotEmpty(t, corrupted["error"])

	rec = f.do(http.MethodPost, "/api/chat/cleanup/s1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decodeBody(t, rec)["recovered"])

	rec = f.do(http.MethodDelete, "/api/chat/history/s1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Chat history cleared successfully", decodeBody(t, rec)["message"])

	rec = f.do(http.MethodGet, "/api/chat/history/s1", "")
	assert.Empty(t, decodeBody(t, rec)["history"])
}

func TestHealth(t *testing.T) {
	f := setupServer(t)
	rec := f.do(http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody(t, rec)["status"])

	f.server.deps.Index = healthFunc(func(context.Context) error { return storage.Unavailable(storage.ErrStorageClosed) })
	rec = f.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "degraded", decodeBody(t, rec)["status"])

	f.mr.Close()
	rec = f.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	f := setupServer(t)
	f.do(http.MethodPost, "/api/chat", `{"sessionId": "s1", "message": "climate?"}`)

	rec := f.do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
