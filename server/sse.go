package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/poiesic/newsrag/chat"
	"github.com/poiesic/newsrag/core"
)

type sourcesFrame struct {
	Type    chat.EventType   `json:"type"`
	Sources []core.SourceRef `json:"sources"`
}

type contentFrame struct {
	Type        chat.EventType `json:"type"`
	Content     string         `json:"content"`
	FullContent string         `json:"fullContent"`
}

type completeFrame struct {
	Type         chat.EventType `json:"type"`
	FullResponse string         `json:"fullResponse"`
}

type errorFrame struct {
	Type  chat.EventType `json:"type"`
	Error string         `json:"error"`
}

// sseWriter writes chat events as server-sent events and flushes each one.
type sseWriter struct {
	resp *echo.Response
}

func newSSEWriter(resp *echo.Response) *sseWriter {
	h := resp.Header()
	h.Set(echo.HeaderContentType, "text/event-stream")
	h.Set(echo.HeaderCacheControl, "no-cache")
	h.Set("Connection", "keep-alive")
	resp.WriteHeader(http.StatusOK)
	resp.Flush()
	return &sseWriter{resp: resp}
}

// frame maps an event onto its wire object. Keep-alives have none.
func frame(ev chat.Event) any {
	switch ev := ev.(type) {
	case chat.SourcesEvent:
		return sourcesFrame{Type: chat.EventSources, Sources: ev.Sources}
	case chat.ContentEvent:
		return contentFrame{Type: chat.EventContent, Content: ev.Fragment, FullContent: ev.Text}
	case chat.CompleteEvent:
		return completeFrame{Type: chat.EventComplete, FullResponse: ev.Text}
	case chat.ErrorEvent:
		return errorFrame{Type: chat.EventError, Error: ev.Message}
	}
	return nil
}

func (w *sseWriter) write(ev chat.Event) error {
	if _, ok := ev.(chat.KeepAliveEvent); ok {
		return w.raw(": heartbeat\n\n")
	}
	data, err := json.Marshal(frame(ev))
	if err != nil {
		return err
	}
	return w.raw(fmt.Sprintf("data: %s\n\n", data))
}

func (w *sseWriter) raw(s string) error {
	if _, err := w.resp.Write([]byte(s)); err != nil {
		return err
	}
	w.resp.Flush()
	return nil
}
