package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/cerinalabs/foundry/internal/render"
)

type streamRequest struct {
	ThreadID string `json:"thread_id"`
	Message  string `json:"message"`
}

type approveRequest struct {
	ThreadID string `json:"thread_id"`
	Note     string `json:"note"`
}

type saveDraftRequest struct {
	ThreadID      string `json:"thread_id"`
	Title         string `json:"title"`
	Content       string `json:"content"`
	Instructions  string `json:"instructions"`
	OriginalInput string `json:"original_input"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// handleStream runs one turn and streams its events over SSE: zero or more
// "progress" events followed by exactly one "terminal" event.
func (s *Server) handleStream(c echo.Context) error {
	var req streamRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	}
	if req.ThreadID == "" || req.Message == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "thread_id and message are required"})
	}

	events, err := s.eng.Step(c.Request().Context(), req.ThreadID, req.Message)
	if err != nil {
		return c.JSON(httpStatusFor(err), errorResponse{Error: err.Error()})
	}

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set("Cache-Control", "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.WriteHeader(http.StatusOK)

	for ev := range events {
		name := "progress"
		var payload any = ev.Progress
		if ev.Terminal != nil {
			name = "terminal"
			payload = ev.Terminal
		}
		data, err := json.Marshal(payload)
		if err != nil {
			s.logger.Error("failed to encode sse event", zap.Error(err))
			continue
		}
		if _, err := fmt.Fprintf(resp, "event: %s\ndata: %s\n\n", name, data); err != nil {
			// Client went away. The turn keeps running to its checkpointed
			// terminal state; we just stop forwarding.
			s.logger.Debug("sse client disconnected", zap.String("thread_id", req.ThreadID))
			for range events {
			}
			return nil
		}
		resp.Flush()
	}
	return nil
}

func (s *Server) handleState(c echo.Context) error {
	key := c.Param("thread_id")
	sess, err := s.eng.GetState(c.Request().Context(), key)
	if err != nil {
		return c.JSON(httpStatusFor(err), errorResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, sess)
}

func (s *Server) handleApprove(c echo.Context) error {
	var req approveRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	}
	if req.ThreadID == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "thread_id is required"})
	}

	draft, err := s.eng.Approve(c.Request().Context(), req.ThreadID, req.Note)
	if err != nil {
		return c.JSON(httpStatusFor(err), errorResponse{Error: err.Error()})
	}

	sess, err := s.eng.GetState(c.Request().Context(), req.ThreadID)
	if err != nil {
		return c.JSON(httpStatusFor(err), errorResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"version":  draft.Version,
		"markdown": render.Exercise(draft, sess.Ledger.Metadata()),
	})
}

func (s *Server) handleSaveDraft(c echo.Context) error {
	var req saveDraftRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	}
	if req.ThreadID == "" || req.Content == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "thread_id and content are required"})
	}

	draft, err := s.eng.OverwriteDraft(c.Request().Context(), req.ThreadID,
		req.Title, req.Content, req.Instructions, req.OriginalInput)
	if err != nil {
		return c.JSON(httpStatusFor(err), errorResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]any{"version": draft.Version})
}
