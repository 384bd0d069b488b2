package jina

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/poiesic/newsrag/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	auth string
	req  embeddingRequest
}

func newTestServer(t *testing.T, status int, calls *[]recorded) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)

		var req embeddingRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		*calls = append(*calls, recorded{auth: r.Header.Get("Authorization"), req: req})

		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"detail":"nope"}`))
			return
		}

		// Reply out of order to exercise index mapping.
		type item struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		}
		var data []item
		for i := len(req.Input) - 1; i >= 0; i-- {
			data = append(data, item{Index: i, Embedding: []float32{float32(i), float32(len(req.Input[i]))}})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestEmbedder(t *testing.T, srv *httptest.Server) *Embedder {
	t.Helper()
	cfg := ai.NewConfig(
		ai.WithEmbeddingHost(srv.URL),
		ai.WithEmbeddingAPIKey("jina-key"),
	)
	e, err := NewEmbedder(cfg, WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return e
}

func TestEmbedder_PassagesUsePassageTask(t *testing.T) {
	var calls []recorded
	srv := newTestServer(t, http.StatusOK, &calls)
	e := newTestEmbedder(t, srv)

	vectors, err := e.EmbedPassages(context.Background(), []string{"a", "bb", "ccc"})
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	assert.Equal(t, []float32{0, 1}, vectors[0])
	assert.Equal(t, []float32{2, 3}, vectors[2])

	require.Len(t, calls, 1)
	assert.Equal(t, "retrieval.passage", calls[0].req.Task)
	assert.Equal(t, "jina-embeddings-v3", calls[0].req.Model)
	assert.Equal(t, "Bearer jina-key", calls[0].auth)
}

func TestEmbedder_QueryUsesQueryTask(t *testing.T) {
	var calls []recorded
	srv := newTestServer(t, http.StatusOK, &calls)
	e := newTestEmbedder(t, srv)

	vector, err := e.EmbedQuery(context.Background(), "climate change")
	require.NoError(t, err)
	assert.Len(t, vector, 2)

	require.Len(t, calls, 1)
	assert.Equal(t, "retrieval.query", calls[0].req.Task)
	assert.Equal(t, []string{"climate change"}, calls[0].req.Input)
}

func TestEmbedder_BatchesLargeInputs(t *testing.T) {
	var calls []recorded
	srv := newTestServer(t, http.StatusOK, &calls)
	e := newTestEmbedder(t, srv)

	texts := make([]string, maxBatch+5)
	for i := range texts {
		texts[i] = "x"
	}
	vectors, err := e.EmbedPassages(context.Background(), texts)
	require.NoError(t, err)
	assert.Len(t, vectors, len(texts))
	assert.Len(t, calls, 2)
}

func TestEmbedder_StatusErrors(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusTooManyRequests, ai.ErrRateLimited},
		{http.StatusUnauthorized, ai.ErrUnauthorized},
		{http.StatusBadRequest, ai.ErrInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			var calls []recorded
			srv := newTestServer(t, tt.status, &calls)
			e := newTestEmbedder(t, srv)

			_, err := e.EmbedPassage(context.Background(), "text")
			require.Error(t, err)
			assert.ErrorIs(t, err, ai.ErrEmbedding)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
