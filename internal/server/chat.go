package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	core "github.com/pooriaast/sleuth/internal/agent/core"
)

// Runner starts research runs; satisfied by core.Executor and stubbed in
// tests.
type Runner interface {
	Run(ctx context.Context, question, conversationID string) <-chan core.Event
}

// ChatHandler exposes the research agent over SSE.
type ChatHandler struct {
	Runner Runner
	Logger *log.Logger
}

func (h *ChatHandler) Register(g *echo.Group) {
	g.POST("/chat", h.chat)
}

// ChatRequest is the chat endpoint payload.
type ChatRequest struct {
	Question       string `json:"question"`
	ConversationID string `json:"conversation_id"`
}

// chat streams one research run as Server-Sent Events, one frame per
// progress event: "event: <type>\ndata: <json>\n\n". The stream ends after
// the run's terminal event; a client disconnect cancels the run.
func (h *ChatHandler) chat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request")
	}

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set(echo.HeaderCacheControl, "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.Header().Set("X-Accel-Buffering", "no")
	resp.WriteHeader(http.StatusOK)

	flusher, ok := resp.Writer.(http.Flusher)
	if !ok {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "streaming unsupported")
	}

	ctx := c.Request().Context()
	for ev := range h.Runner.Run(ctx, req.Question, req.ConversationID) {
		data, err := json.Marshal(ev)
		if err != nil {
			h.Logger.Printf("failed to encode event: %v", err)
			continue
		}
		if _, err := resp.Write([]byte("event: " + string(ev.Type) + "\n")); err != nil {
			return nil
		}
		if _, err := resp.Write([]byte("data: " + string(data) + "\n\n")); err != nil {
			return nil
		}
		flusher.Flush()
	}
	return nil
}
