package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/poiesic/newsrag/ai"
	"github.com/poiesic/newsrag/chat"
	"github.com/poiesic/newsrag/core"
	"github.com/poiesic/newsrag/history"
	"github.com/poiesic/newsrag/ingestion"
	"github.com/poiesic/newsrag/search"
	"github.com/poiesic/newsrag/storage"
)

type initRequest struct {
	Recreate *bool `json:"recreate"`
}

type initResponse struct {
	Message string             `json:"message"`
	Summary *ingestion.Summary `json:"summary"`
	Failed  []string           `json:"failedSources,omitempty"`
}

// initNews runs ingestion. The collection is recreated unless the body
// says {"recreate": false}.
func (s *Server) initNews(c echo.Context) error {
	var req initRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	recreate := req.Recreate == nil || *req.Recreate

	summary, err := s.deps.Ingester.Ingest(c.Request().Context(), recreate)
	if err != nil {
		if errors.Is(err, ingestion.ErrIngestionInProgress) {
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error()).SetInternal(err)
	}
	return c.JSON(http.StatusOK, initResponse{
		Message: "News ingested and stored",
		Summary: summary,
		Failed:  summary.FailedSources(),
	})
}

type queryRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"topK"`
}

func (s *Server) queryNews(c echo.Context) error {
	var req queryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Query) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Query is required")
	}

	results, err := s.deps.Retriever.Search(c.Request().Context(), req.Query, req.TopK)
	if err != nil {
		return echo.NewHTTPError(retrievalStatus(err), err.Error()).SetInternal(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"results": results})
}

func retrievalStatus(err error) int {
	var re *search.RetrievalError
	switch {
	case errors.As(err, &re) && re.Stage == search.StageQuery:
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrIndexUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, storage.ErrCollectionNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) createSession(c echo.Context) error {
	id := chat.NewSession()
	s.logger.Info("created session", "session", id)
	return c.JSON(http.StatusOK, map[string]string{
		"sessionId": id,
		"message":   "New chat session created",
	})
}

type messageRequest struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

func (s *Server) bindMessage(c echo.Context) (*messageRequest, error) {
	var req messageRequest
	if err := c.Bind(&req); err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.SessionID == "" || strings.TrimSpace(req.Message) == "" {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "Session ID and message are required")
	}
	return &req, nil
}

// sendMessage answers without streaming.
func (s *Server) sendMessage(c echo.Context) error {
	req, err := s.bindMessage(c)
	if err != nil {
		return err
	}
	answer, err := s.deps.Chat.Ask(c.Request().Context(), req.SessionID, req.Message)
	if err != nil {
		return echo.NewHTTPError(chatStatus(err), chat.UserMessage(err)).SetInternal(err)
	}
	return c.JSON(http.StatusOK, answer)
}

func chatStatus(err error) int {
	switch {
	case errors.Is(err, ai.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ai.ErrGeneration):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// streamMessage answers as server-sent events. Once the event stream has
// started, failures are reported in-band.
func (s *Server) streamMessage(c echo.Context) error {
	req, err := s.bindMessage(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	events := s.deps.Chat.Stream(ctx, req.SessionID, req.Message)
	w := newSSEWriter(c.Response())
	var ended chat.EventType
	for ev := range events {
		if err := w.write(ev); err != nil {
			s.logger.Info("client went away", "session", req.SessionID, "err", err)
			cancel()
			for range events {
			}
			return nil
		}
		if chat.Terminal(ev) {
			ended = ev.Type()
		}
	}
	if ended == "" {
		s.logger.Info("stream closed without a terminal event", "session", req.SessionID)
	} else {
		s.logger.Debug("stream finished", "session", req.SessionID, "terminal", ended)
	}
	return nil
}

type historyItem struct {
	core.ChatMessage
	Error string `json:"error,omitempty"`
}

func (s *Server) getHistory(c echo.Context) error {
	id := c.Param("sessionId")
	entries, err := s.deps.History.ReadAll(c.Request().Context(), id)
	if err != nil {
		return err
	}
	items := make([]historyItem, len(entries))
	for i, e := range entries {
		items[i] = historyItem{ChatMessage: e.Message}
		if e.Kind == history.Corrupted {
			items[i].Error = e.Err.Error()
		}
	}
	return c.JSON(http.StatusOK, map[string]any{"history": items})
}

func (s *Server) clearHistory(c echo.Context) error {
	if err := s.deps.History.Clear(c.Request().Context(), c.Param("sessionId")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Chat history cleared successfully"})
}

func (s *Server) cleanupSession(c echo.Context) error {
	kept, err := s.deps.History.Recover(c.Request().Context(), c.Param("sessionId"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"message":   "Session cleaned up",
		"recovered": kept,
	})
}

type healthResponse struct {
	Status string `json:"status"`
	Redis  string `json:"redis"`
	Index  string `json:"index,omitempty"`
}

func (s *Server) health(c echo.Context) error {
	ctx := c.Request().Context()
	resp := healthResponse{Status: "ok", Redis: "ok"}
	code := http.StatusOK

	if err := s.deps.History.Ping(ctx); err != nil {
		resp.Status, resp.Redis, code = "degraded", err.Error(), http.StatusServiceUnavailable
	}
	if s.deps.Index != nil {
		resp.Index = "ok"
		if err := s.deps.Index.Health(ctx); err != nil {
			resp.Status, resp.Index, code = "degraded", err.Error(), http.StatusServiceUnavailable
		}
	}
	return c.JSON(code, resp)
}
