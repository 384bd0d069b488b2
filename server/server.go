// Package server exposes ingestion, retrieval and chat over HTTP.
//
// Streamed chat turns are delivered as server-sent events: one JSON object
// per "data:" frame, with ": heartbeat" comments while the model is busy.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/poiesic/newsrag/chat"
	"github.com/poiesic/newsrag/core"
	"github.com/poiesic/newsrag/history"
	"github.com/poiesic/newsrag/ingestion"
	"github.com/poiesic/newsrag/metrics"
)

var (
	// ErrIngesterRequired is returned when Deps.Ingester is nil.
	ErrIngesterRequired = errors.New("ingester required")
	// ErrRetrieverRequired is returned when Deps.Retriever is nil.
	ErrRetrieverRequired = errors.New("retriever required")
	// ErrChatRequired is returned when Deps.Chat is nil.
	ErrChatRequired = errors.New("chat orchestrator required")
	// ErrHistoryRequired is returned when Deps.History is nil.
	ErrHistoryRequired = errors.New("history store required")
)

// Ingester runs the document pipeline.
type Ingester interface {
	Ingest(ctx context.Context, recreate bool) (*ingestion.Summary, error)
}

// Retriever answers raw similarity queries.
type Retriever interface {
	Search(ctx context.Context, query string, topK int) ([]core.SearchResult, error)
}

// Chat runs chat turns.
type Chat interface {
	Ask(ctx context.Context, sessionID, message string) (*chat.Answer, error)
	Stream(ctx context.Context, sessionID, message string) <-chan chat.Event
}

// History reads and maintains session transcripts.
type History interface {
	ReadAll(ctx context.Context, sessionID string) ([]history.Entry, error)
	Clear(ctx context.Context, sessionID string) error
	Recover(ctx context.Context, sessionID string) (int, error)
	Ping(ctx context.Context) error
}

// HealthChecker probes a dependency.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Deps are the collaborators behind the routes. Index and Metrics are optional.
type Deps struct {
	Ingester  Ingester
	Retriever Retriever
	Chat      Chat
	History   History
	Index     HealthChecker
	Metrics   *metrics.Metrics
}

// Server is the HTTP front end.
type Server struct {
	echo   *echo.Echo
	deps   Deps
	logger *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New builds the server and registers its routes.
func New(deps Deps, opts ...Option) (*Server, error) {
	switch {
	case deps.Ingester == nil:
		return nil, ErrIngesterRequired
	case deps.Retriever == nil:
		return nil, ErrRetrieverRequired
	case deps.Chat == nil:
		return nil, ErrChatRequired
	case deps.History == nil:
		return nil, ErrHistoryRequired
	}

	s := &Server{
		echo:   echo.New(),
		deps:   deps,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "server")

	e := s.echo
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.handleError
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType, echo.HeaderAuthorization},
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			s.logger.Debug("request", "method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency)
			return nil
		},
	}))

	s.routes()
	return s, nil
}

func (s *Server) routes() {
	e := s.echo
	e.GET("/health", s.health)
	if s.deps.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(s.deps.Metrics.Handler()))
	}

	rag := e.Group("/api/rag")
	rag.POST("/init", s.initNews)
	rag.POST("/query", s.queryNews)

	c := e.Group("/api/chat")
	c.POST("", s.streamMessage)
	c.POST("/session", s.createSession)
	c.POST("/message", s.sendMessage)
	c.GET("/history/:sessionId", s.getHistory)
	c.DELETE("/history/:sessionId", s.clearHistory)
	c.POST("/cleanup/:sessionId", s.cleanupSession)
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully within shutdownTimeout.
func (s *Server) ListenAndServe(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.echo,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// handleError renders every error as {"error": message}.
func (s *Server) handleError(err error, c echo.Context) {
	code := http.StatusInternalServerError
	msg := err.Error()
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if he.Message != nil {
			msg = fmt.Sprint(he.Message)
		}
	}
	req := c.Request()
	if code >= http.StatusInternalServerError {
		s.logger.Error("request failed", "status", code, "method", req.Method, "path", req.URL.Path, "err", err)
	} else {
		s.logger.Debug("request rejected", "status", code, "method", req.Method, "path", req.URL.Path, "err", err)
	}
	if !c.Response().Committed {
		if err := c.JSON(code, map[string]string{"error": msg}); err != nil {
			s.logger.Error("writing error response", "err", err)
		}
	}
}
